package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"medtime-companion/internal/device"
	"medtime-companion/internal/metrics"
	"medtime-companion/internal/model"
	"medtime-companion/internal/notification"
)

// ErrNotAcknowledged is returned by Confirm when the device answered but
// reported the alarm as still unacknowledged.
var ErrNotAcknowledged = errors.New("device did not acknowledge the alarm")

// ActiveSource is the part of the device link the poller uses.
type ActiveSource interface {
	GetActive(ctx context.Context) (model.ActiveAlarm, error)
	Acknowledge(ctx context.Context, id *int64) (device.AckResult, error)
}

// AlertLogger records user-visible history.
type AlertLogger interface {
	Append(ctx context.Context, title, message string) model.AlertLogEntry
}

// AlarmLookup resolves a local alarm by id for richer notifications.
type AlarmLookup func(id int64) (model.Alarm, bool)

// ActivePoller watches the device for firing alarms and raises exactly one
// notification per firing episode.
type ActivePoller struct {
	// tick serialises poll evaluation and Confirm.
	tick sync.Mutex

	stateMu  sync.RWMutex
	notified *int64
	current  model.ActiveAlarm

	src       ActiveSource
	alerts    AlertLogger
	sink      notification.Sink
	indicator *Indicator
	lookup    AlarmLookup
	interval  time.Duration
	now       func() time.Time
	done      chan struct{}
}

// Option configures an ActivePoller.
type Option func(*ActivePoller)

// WithLookup resolves firing ids to local alarms for names and times.
func WithLookup(lookup AlarmLookup) Option {
	return func(p *ActivePoller) { p.lookup = lookup }
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *ActivePoller) { p.now = now }
}

func NewActivePoller(src ActiveSource, alerts AlertLogger, sink notification.Sink, indicator *Indicator, interval time.Duration, opts ...Option) *ActivePoller {
	p := &ActivePoller{
		src:       src,
		alerts:    alerts,
		sink:      sink,
		indicator: indicator,
		interval:  interval,
		now:       time.Now,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sink == nil {
		p.sink = notification.Discard
	}
	if p.lookup == nil {
		p.lookup = func(int64) (model.Alarm, bool) { return model.Alarm{}, false }
	}
	return p
}

// PollOnce runs one tick. It returns false without touching the device
// when another tick or a confirmation is still in flight.
func (p *ActivePoller) PollOnce(ctx context.Context) bool {
	if !p.tick.TryLock() {
		metrics.ObservePoll(metrics.ResultSkipped)
		return false
	}
	defer p.tick.Unlock()

	active, err := p.src.GetActive(ctx)
	if err != nil {
		// A failed poll says nothing about the alarm; keep the memo.
		metrics.ObservePoll(metrics.ResultError)
		if p.indicator != nil {
			p.indicator.PollFailed(err)
		}
		return true
	}
	metrics.ObservePoll(metrics.ResultSuccess)
	if p.indicator != nil {
		p.indicator.PollOK()
	}

	p.apply(ctx, active)
	return true
}

func (p *ActivePoller) apply(ctx context.Context, a model.ActiveAlarm) {
	p.stateMu.Lock()
	prev := p.notified

	// An acknowledgment of the notified id ends the episode whether or not
	// the device still reports it as firing.
	if a.Acknowledged && prev != nil && *prev == a.ID {
		p.notified = nil
		p.current = model.ActiveAlarm{}
		p.stateMu.Unlock()
		p.alerts.Append(ctx, "Alarm already confirmed", fmt.Sprintf("%s was confirmed on the device", displayName(a.Name, a.ID)))
		return
	}

	if a.Firing && !a.Acknowledged {
		p.current = a
		if prev != nil && *prev == a.ID {
			p.stateMu.Unlock()
			return
		}
		id := a.ID
		p.notified = &id
		p.stateMu.Unlock()
		p.raiseActive(ctx, a)
		return
	}

	p.notified = nil
	p.current = model.ActiveAlarm{}
	p.stateMu.Unlock()
}

func (p *ActivePoller) raiseActive(ctx context.Context, a model.ActiveAlarm) {
	metrics.IncAlarmEvent(string(notification.EventAlarmActive))
	ev := notification.Event{
		Type:     notification.EventAlarmActive,
		AlarmID:  a.ID,
		Name:     a.Name,
		LEDIndex: a.LEDIndex,
		At:       p.now(),
	}
	if local, ok := p.lookup(a.ID); ok {
		ev.Time = local.Clock()
		if ev.Name == "" {
			ev.Name = local.Name
		}
	}
	ev.Name = displayName(ev.Name, a.ID)

	p.sink.Notify(ctx, ev)
	p.alerts.Append(ctx, "Medication alert", fmt.Sprintf("%s - LED %d", ev.Name, a.LEDLabel()))
}

// Confirm acknowledges the firing alarm on the device. A nil id
// acknowledges whatever the device is signaling. On failure the state is
// unchanged and the error is returned for the user to retry.
func (p *ActivePoller) Confirm(ctx context.Context, id *int64) error {
	p.tick.Lock()
	defer p.tick.Unlock()

	res, err := p.src.Acknowledge(ctx, id)
	if err != nil {
		return err
	}
	if !res.OK || !res.Acknowledged {
		return ErrNotAcknowledged
	}

	p.stateMu.Lock()
	confirmed := p.current
	if id == nil || (p.notified != nil && *p.notified == *id) {
		p.notified = nil
		p.current = model.ActiveAlarm{}
	} else {
		// Another alarm was acknowledged; the one signaling stays notified.
		confirmed = model.ActiveAlarm{ID: *id}
	}
	p.stateMu.Unlock()

	name := confirmed.Name
	if local, ok := p.lookup(confirmed.ID); ok && name == "" {
		name = local.Name
	}
	name = displayName(name, confirmed.ID)

	metrics.IncAlarmEvent(string(notification.EventAlarmAcknowledged))
	p.sink.Notify(ctx, notification.Event{
		Type:     notification.EventAlarmAcknowledged,
		AlarmID:  confirmed.ID,
		Name:     name,
		LEDIndex: confirmed.LEDIndex,
		At:       p.now(),
	})
	p.alerts.Append(ctx, "Alarm confirmed", fmt.Sprintf("%s confirmed", name))
	return nil
}

// Active returns the alarm currently signaling, if one has been notified.
func (p *ActivePoller) Active() (model.ActiveAlarm, bool) {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	if p.notified == nil {
		return model.ActiveAlarm{}, false
	}
	return p.current, true
}

// Run polls until ctx is cancelled.
func (p *ActivePoller) Run(ctx context.Context) {
	defer close(p.done)
	log.Println("Starting active-alarm poller...")
	runEvery(ctx, p.interval, func(ctx context.Context) { p.PollOnce(ctx) })
	log.Println("Active-alarm poller shutting down.")
}

// Done is closed when Run returns.
func (p *ActivePoller) Done() <-chan struct{} {
	return p.done
}

func displayName(name string, id int64) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("Alarm %d", id)
}
