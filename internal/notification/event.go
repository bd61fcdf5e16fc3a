package notification

import (
	"context"
	"time"
)

// EventType names an alarm lifecycle event.
type EventType string

const (
	EventAlarmCreated      EventType = "alarm_created"
	EventAlarmActive       EventType = "alarm_active"
	EventAlarmAcknowledged EventType = "alarm_acknowledged"
)

// Event is what the core hands to sinks.
type Event struct {
	Type     EventType `json:"type"`
	AlarmID  int64     `json:"alarmId"`
	Name     string    `json:"name"`
	LEDIndex int       `json:"led"`
	Time     string    `json:"time,omitempty"` // "HH:MM" when known
	At       time.Time `json:"at"`
}

// Sink receives events. Implementations may be slow or fail; callers in
// the core go through a Dispatcher and never see the error.
type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Discard is a Sink that drops everything.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })
