package alertlog

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"medtime-companion/internal/model"
	"medtime-companion/internal/store"
)

// Log is the user-visible history of alarm events, newest first.
// Persistence failures are logged; the in-memory list stays authoritative.
type Log struct {
	mu      sync.RWMutex
	entries []model.AlertLogEntry
	lastID  int64

	kv  store.Store
	now func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New creates an empty Log persisted to kv.
func New(kv store.Store, opts ...Option) *Log {
	l := &Log{kv: kv, now: time.Now, entries: []model.AlertLogEntry{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the in-memory list with the persisted one. An unreadable
// value leaves the log empty.
func (l *Log) Load(ctx context.Context) {
	raw, ok, err := l.kv.Get(ctx, store.KeyAlerts)
	if err != nil {
		log.Printf("alertlog: failed to load history: %v", err)
		return
	}

	var entries []model.AlertLogEntry
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			log.Printf("alertlog: discarding unreadable history: %v", err)
			entries = nil
		}
	}
	if entries == nil {
		entries = []model.AlertLogEntry{}
	}

	l.mu.Lock()
	l.entries = entries
	for _, e := range entries {
		if e.ID > l.lastID {
			l.lastID = e.ID
		}
	}
	l.mu.Unlock()
}

// Append records a new entry at the head of the log and persists the list.
func (l *Log) Append(ctx context.Context, title, message string) model.AlertLogEntry {
	l.mu.Lock()
	now := l.now().UnixMilli()
	id := now
	if id <= l.lastID {
		id = l.lastID + 1
	}
	l.lastID = id
	entry := model.AlertLogEntry{ID: id, Timestamp: now, Title: title, Message: message}

	entries := make([]model.AlertLogEntry, 0, len(l.entries)+1)
	entries = append(entries, entry)
	entries = append(entries, l.entries...)
	l.entries = entries
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	l.persist(ctx, snapshot)
	return entry
}

// List returns a copy of the entries, newest first.
func (l *Log) List() []model.AlertLogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

// Clear removes every entry.
func (l *Log) Clear(ctx context.Context) {
	l.mu.Lock()
	l.entries = []model.AlertLogEntry{}
	l.mu.Unlock()

	l.persist(ctx, []model.AlertLogEntry{})
}

func (l *Log) snapshotLocked() []model.AlertLogEntry {
	out := make([]model.AlertLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) persist(ctx context.Context, entries []model.AlertLogEntry) {
	data, err := json.Marshal(entries)
	if err != nil {
		log.Printf("alertlog: failed to encode history: %v", err)
		return
	}
	if err := l.kv.Set(ctx, store.KeyAlerts, string(data)); err != nil {
		log.Printf("alertlog: failed to persist history: %v", err)
	}
}
