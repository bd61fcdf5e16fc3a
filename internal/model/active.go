package model

// ActiveAlarm is the device's report about the alarm currently signaling.
// It is re-fetched on every poll and never persisted.
type ActiveAlarm struct {
	Firing       bool   `json:"active"`
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	LEDIndex     int    `json:"led"`
	Acknowledged bool   `json:"acknowledged"`
}

// LEDLabel is the one-based indicator number shown to users.
func (a ActiveAlarm) LEDLabel() int {
	return a.LEDIndex + 1
}
