package parse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	clockRe = regexp.MustCompile(`^(\d{1,2})\s*[:hH.]\s*(\d{1,2})$`)
	// Seconds are optional in device responses ("14:05" or "14:05:33").
	deviceTimeRe = regexp.MustCompile(`(\d{1,2}):(\d{2})(?::(\d{2}))?`)
)

// deviceTimeFields lists the keys different firmware revisions used for the current time.
var deviceTimeFields = []string{"hora", "horaAtual", "time", "timeString"}

// Clock is an hour/minute pair parsed from user input.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" style input. Blank input means 00:00, like an
// empty keypad entry. Range checks are left to the caller.
func ParseClock(raw string) (Clock, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Clock{}, nil
	}
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, fmt.Errorf("unable to parse time: %q", raw)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return Clock{Hour: h, Minute: min}, nil
}

// ParseUnit parses a single hour or minute field; blank means zero.
func ParseUnit(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unable to parse number: %q", raw)
	}
	return n, nil
}

// DeviceTime extracts the device clock from a /status body, whichever
// field name the firmware used, and normalises it to "HH:MM:SS" or "HH:MM".
// It returns "" when no usable time is present.
func DeviceTime(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	for _, key := range deviceTimeFields {
		v, ok := fields[key]
		if !ok || v == nil {
			continue
		}
		if t := NormalizeDeviceTime(fmt.Sprint(v)); t != "" {
			return t
		}
	}
	return ""
}

// NormalizeDeviceTime zero-pads a clock string found anywhere in raw.
func NormalizeDeviceTime(raw string) string {
	m := deviceTimeRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ""
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	if h > 23 || min > 59 {
		return ""
	}
	if m[3] == "" {
		return fmt.Sprintf("%02d:%02d", h, min)
	}
	sec, _ := strconv.Atoi(m[3])
	return fmt.Sprintf("%02d:%02d:%02d", h, min, sec)
}
