package model

// RelaySettings are the user's preferences for forwarding events to the message relay.
type RelaySettings struct {
	Enabled             bool   `json:"enabled"`
	Recipient           string `json:"recipient"`
	NotifyOnCreate      bool   `json:"notifyOnCreate"`
	NotifyOnActive      bool   `json:"notifyOnActive"`
	NotifyOnAcknowledge bool   `json:"notifyOnAcknowledge"`
}

// DefaultRelaySettings returns the settings used before the user saves any.
func DefaultRelaySettings(recipient string) RelaySettings {
	return RelaySettings{
		Enabled:             false,
		Recipient:           recipient,
		NotifyOnCreate:      true,
		NotifyOnActive:      true,
		NotifyOnAcknowledge: true,
	}
}
