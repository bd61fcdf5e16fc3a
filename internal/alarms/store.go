package alarms

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"medtime-companion/internal/device"
	"medtime-companion/internal/metrics"
	"medtime-companion/internal/model"
	"medtime-companion/internal/notification"
	"medtime-companion/internal/store"
)

// Pusher is the part of the device link the alarm store writes to.
type Pusher interface {
	SetAlarm(ctx context.Context, spec device.AlarmSpec) error
	DeleteAlarm(ctx context.Context, id int64) error
}

// AlertLogger records user-visible history.
type AlertLogger interface {
	Append(ctx context.Context, title, message string) model.AlertLogEntry
}

// Input is a new alarm as entered by the user.
type Input struct {
	Hour     int    `json:"hour"`
	Minute   int    `json:"minute"`
	Name     string `json:"name"`
	LEDIndex int    `json:"led"`
}

// Result describes a completed mutation. The local change always stands;
// DeviceErr reports a failed push of the armed alarm.
type Result struct {
	Alarm     *model.Alarm
	Armed     *model.Alarm
	DeviceErr error
}

// Store owns the alarm list, persists it on every change and keeps the
// device armed with the next alarm to fire.
type Store struct {
	mu     sync.RWMutex
	alarms []model.Alarm
	lastID int64

	// pushMu serialises pushes so the device ends up with the latest choice.
	pushMu sync.Mutex

	kv     store.Store
	link   Pusher
	alerts AlertLogger
	sink   notification.Sink

	now         func() time.Time
	loc         *time.Location
	maxLED      int
	defaultName string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for ids and next-alarm selection.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the zone alarm times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// WithMaxLEDIndex sets the highest accepted LED index.
func WithMaxLEDIndex(n int) Option {
	return func(s *Store) { s.maxLED = n }
}

// WithDefaultName sets the name given to alarms created without one.
func WithDefaultName(name string) Option {
	return func(s *Store) { s.defaultName = name }
}

// New creates an empty store. Call Load to read the persisted list.
func New(kv store.Store, link Pusher, alerts AlertLogger, sink notification.Sink, opts ...Option) *Store {
	s := &Store{
		alarms:      []model.Alarm{},
		kv:          kv,
		link:        link,
		alerts:      alerts,
		sink:        sink,
		now:         time.Now,
		loc:         time.Local,
		maxLED:      7,
		defaultName: "Alarm",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = notification.Discard
	}
	return s
}

// Load replaces the in-memory list with the persisted one. A missing or
// unreadable value yields an empty list.
func (s *Store) Load(ctx context.Context) {
	raw, ok, err := s.kv.Get(ctx, store.KeyAlarms)
	if err != nil {
		log.Printf("alarms: failed to load list: %v", err)
	}

	var decoded []model.Alarm
	if err == nil && ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			log.Printf("alarms: discarding unreadable list: %v", err)
			decoded = nil
		}
	}

	list := make([]model.Alarm, 0, len(decoded))
	var lastID int64
	for _, a := range decoded {
		if err := s.validate(int(a.Hour), int(a.Minute), a.LEDIndex); err != nil {
			log.Printf("alarms: dropping stored alarm %d: %v", a.ID, err)
			continue
		}
		list = append(list, a)
		if a.ID > lastID {
			lastID = a.ID
		}
	}

	s.mu.Lock()
	s.alarms = list
	s.lastID = lastID
	s.mu.Unlock()
}

// List returns a snapshot of the alarms in list order.
func (s *Store) List() []model.Alarm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneAlarms(s.alarms)
}

func (s *Store) validate(hour, minute, led int) error {
	if hour < 0 || hour > 23 {
		return &ValidationError{Field: "hour", Message: "must be between 0 and 23"}
	}
	if minute < 0 || minute > 59 {
		return &ValidationError{Field: "minute", Message: "must be between 0 and 59"}
	}
	if led < 0 || led > s.maxLED {
		return &ValidationError{Field: "led", Message: fmt.Sprintf("must be between 0 and %d", s.maxLED)}
	}
	return nil
}

// Create validates in, appends a new enabled alarm, persists the list and
// re-arms the device.
func (s *Store) Create(ctx context.Context, in Input) (Result, error) {
	if err := s.validate(in.Hour, in.Minute, in.LEDIndex); err != nil {
		return Result{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = s.defaultName
	}

	s.mu.Lock()
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	alarm := model.Alarm{
		ID:       id,
		Hour:     model.ClockUnit(in.Hour),
		Minute:   model.ClockUnit(in.Minute),
		Name:     name,
		LEDIndex: in.LEDIndex,
		Enabled:  true,
	}
	s.alarms = append(s.alarms, alarm)
	s.persistLocked(ctx)
	s.mu.Unlock()

	metrics.IncAlarmEvent("created")
	s.sink.Notify(ctx, notification.Event{
		Type:     notification.EventAlarmCreated,
		AlarmID:  alarm.ID,
		Name:     alarm.Name,
		LEDIndex: alarm.LEDIndex,
		Time:     alarm.Clock(),
		At:       s.now(),
	})

	res := s.Sync(ctx)
	res.Alarm = &alarm
	return res, nil
}

// Toggle flips the enabled flag of id. An unknown id is an internal
// inconsistency: it is logged and the list is still persisted and synced.
func (s *Store) Toggle(ctx context.Context, id int64) (Result, error) {
	var toggled *model.Alarm

	s.mu.Lock()
	for i := range s.alarms {
		if s.alarms[i].ID == id {
			s.alarms[i].Enabled = !s.alarms[i].Enabled
			a := s.alarms[i]
			toggled = &a
			break
		}
	}
	if toggled == nil {
		log.Printf("alarms: toggle of unknown alarm %d", id)
	}
	s.persistLocked(ctx)
	s.mu.Unlock()

	metrics.IncAlarmEvent("toggled")
	res := s.Sync(ctx)
	res.Alarm = toggled
	return res, nil
}

// Delete removes id. Deleting an unknown id leaves the list unchanged.
func (s *Store) Delete(ctx context.Context, id int64) (Result, error) {
	var removed *model.Alarm

	s.mu.Lock()
	kept := make([]model.Alarm, 0, len(s.alarms))
	for _, a := range s.alarms {
		if a.ID == id && removed == nil {
			removed = &a
			continue
		}
		kept = append(kept, a)
	}
	s.alarms = kept
	s.persistLocked(ctx)
	s.mu.Unlock()

	if removed != nil {
		metrics.IncAlarmEvent("deleted")
		s.alerts.Append(ctx, "Alarm deleted", fmt.Sprintf("%s (ID %d) removed", removed.Name, id))
		if err := s.link.DeleteAlarm(ctx, id); err != nil {
			log.Printf("alarms: device did not delete alarm %d: %v", id, err)
		}
	}

	res := s.Sync(ctx)
	res.Alarm = removed
	return res, nil
}

// Next returns the enabled alarm that fires soonest after now, treating
// earlier times of day as tomorrow. Ties go to the first in list order.
func (s *Store) Next(now time.Time) (model.Alarm, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return nextAlarm(s.alarms, now.In(s.loc))
}

func nextAlarm(list []model.Alarm, now time.Time) (model.Alarm, bool) {
	nowMinute := now.Hour()*60 + now.Minute()
	best := -1
	bestDist := model.MinutesPerDay
	for i, a := range list {
		if !a.Enabled {
			continue
		}
		if d := a.ForwardDistance(nowMinute); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return model.Alarm{}, false
	}
	return list[best], true
}

// Sync pushes the next alarm to the device. Nothing is sent when no alarm
// is enabled. A failed push leaves local state untouched.
func (s *Store) Sync(ctx context.Context) Result {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	next, ok := s.Next(s.now())
	if !ok {
		return Result{}
	}

	err := s.link.SetAlarm(ctx, device.SpecFor(next))
	metrics.ObserveAlarmPush(err)
	if err != nil {
		log.Printf("alarms: failed to arm alarm %d on device: %v", next.ID, err)
		return Result{Armed: &next, DeviceErr: err}
	}

	s.alerts.Append(ctx, "Alarm scheduled", fmt.Sprintf("LED %d at %s", next.LEDLabel(), next.Clock()))
	return Result{Armed: &next}
}

// Lookup returns the alarm with id.
func (s *Store) Lookup(id int64) (model.Alarm, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.alarms {
		if a.ID == id {
			return a, true
		}
	}
	return model.Alarm{}, false
}

// persistLocked writes the full list. Failures are logged; the in-memory
// list remains the working truth. Caller holds s.mu.
func (s *Store) persistLocked(ctx context.Context) {
	data, err := json.Marshal(s.alarms)
	if err != nil {
		log.Printf("alarms: failed to encode list: %v", err)
		return
	}
	if err := s.kv.Set(ctx, store.KeyAlarms, string(data)); err != nil {
		log.Printf("alarms: failed to persist list: %v", err)
	}
}
