package device

import "medtime-companion/internal/model"

// Status is the outcome of a /status check.
type Status struct {
	Connected  bool   `json:"connected"`
	DeviceTime string `json:"deviceTime,omitempty"`
}

// AlarmSpec is the armed alarm pushed to the device.
type AlarmSpec struct {
	ID       int64
	Hour     int
	Minute   int
	LEDIndex int
	Name     string
}

// SpecFor converts a stored alarm into the form pushed to the device.
func SpecFor(a model.Alarm) AlarmSpec {
	return AlarmSpec{
		ID:       a.ID,
		Hour:     int(a.Hour),
		Minute:   int(a.Minute),
		LEDIndex: a.LEDIndex,
		Name:     a.Name,
	}
}

// AckResult is the device's answer to /stopAlarm.
type AckResult struct {
	OK           bool `json:"ok"`
	Acknowledged bool `json:"acknowledged"`
}

// NetworkResult is the device's answer to /configure.
type NetworkResult struct {
	OK         bool   `json:"ok"`
	NewAddress string `json:"newAddress,omitempty"`
}

// PingResult is the device's answer to /ping.
type PingResult struct {
	Pong   bool   `json:"pong"`
	Device string `json:"device,omitempty"`
}

type ackResponse struct {
	OK           *bool `json:"ok"`
	Acknowledged *bool `json:"acknowledged"`
}

type configureResponse struct {
	Success bool   `json:"success"`
	IP      string `json:"ip"`
}
