package notification

import (
	"context"
	"log"
	"time"

	"github.com/sony/gobreaker"

	"medtime-companion/internal/relay"
)

// RelaySink forwards events to the message relay when the user enabled it
// for that event type. Calls go through a circuit breaker.
type RelaySink struct {
	relay   *relay.Service
	breaker *gobreaker.CircuitBreaker
}

func NewRelaySink(svc *relay.Service) *RelaySink {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "relay",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return &RelaySink{relay: svc, breaker: cb}
}

func (s *RelaySink) Notify(ctx context.Context, ev Event) error {
	settings := s.relay.Settings().Get()
	if !settings.Enabled {
		return nil
	}

	var text, image string
	switch ev.Type {
	case EventAlarmCreated:
		if !settings.NotifyOnCreate {
			return nil
		}
		text = relay.AlarmCreatedText(ev.Name, ev.Time)
	case EventAlarmActive:
		if !settings.NotifyOnActive {
			return nil
		}
		text = relay.AlarmActiveText(ev.Name, ev.Time)
		image = s.relay.ImageURL()
	case EventAlarmAcknowledged:
		if !settings.NotifyOnAcknowledge {
			return nil
		}
		text = relay.AlarmAcknowledgedText(ev.Name)
	default:
		return nil
	}

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.relay.SendText(ctx, text, image)
	})
	return err
}
