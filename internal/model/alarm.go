package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the length of the circular clock used to order alarms.
const MinutesPerDay = 24 * 60

// ClockUnit is an hour or minute value. It is stored as a zero-padded
// two-digit string ("07") and accepts either a string or a number on decode.
type ClockUnit int

// String returns the zero-padded form.
func (c ClockUnit) String() string {
	return fmt.Sprintf("%02d", int(c))
}

// MarshalJSON implements json.Marshaler.
func (c ClockUnit) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ClockUnit) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid clock value %q: %w", raw, err)
	}
	*c = ClockUnit(n)
	return nil
}

// Alarm is a user-defined medication reminder.
type Alarm struct {
	ID       int64     `json:"id"`
	Hour     ClockUnit `json:"hour"`
	Minute   ClockUnit `json:"minute"`
	Name     string    `json:"name"`
	LEDIndex int       `json:"led"`
	Enabled  bool      `json:"enabled"`
}

// MinuteOfDay returns the alarm time as minutes since midnight.
func (a Alarm) MinuteOfDay() int {
	return int(a.Hour)*60 + int(a.Minute)
}

// Clock returns the alarm time as "HH:MM".
func (a Alarm) Clock() string {
	return a.Hour.String() + ":" + a.Minute.String()
}

// LEDLabel is the one-based indicator number shown to users.
func (a Alarm) LEDLabel() int {
	return a.LEDIndex + 1
}

// ForwardDistance returns how many minutes after nowMinute the alarm fires next.
// An alarm earlier in the day than now is counted as tomorrow.
func (a Alarm) ForwardDistance(nowMinute int) int {
	return ((a.MinuteOfDay()-nowMinute)%MinutesPerDay + MinutesPerDay) % MinutesPerDay
}

// CloneAlarms returns a copy of the slice that callers may mutate freely.
func CloneAlarms(in []Alarm) []Alarm {
	out := make([]Alarm, len(in))
	copy(out, in)
	return out
}
