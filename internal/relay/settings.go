package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"medtime-companion/internal/model"
	"medtime-companion/internal/store"
)

// Settings holds the persisted relay preferences.
type Settings struct {
	mu  sync.RWMutex
	cur model.RelaySettings
	kv  store.Store
}

// NewSettings starts from the defaults for defaultRecipient.
func NewSettings(kv store.Store, defaultRecipient string) *Settings {
	return &Settings{kv: kv, cur: model.DefaultRelaySettings(defaultRecipient)}
}

// Load reads the persisted settings; unreadable values keep the defaults.
func (s *Settings) Load(ctx context.Context) {
	raw, ok, err := s.kv.Get(ctx, store.KeyRelaySettings)
	if err != nil {
		log.Printf("relay: failed to load settings: %v", err)
		return
	}
	if !ok || raw == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur
	if err := json.Unmarshal([]byte(raw), &next); err != nil {
		log.Printf("relay: ignoring unreadable settings: %v", err)
		return
	}
	s.cur = next
}

// Get returns the current settings.
func (s *Settings) Get() model.RelaySettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Save replaces the settings. The in-memory value is updated even when
// persisting fails.
func (s *Settings) Save(ctx context.Context, next model.RelaySettings) error {
	s.mu.Lock()
	s.cur = next
	s.mu.Unlock()

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode relay settings: %w", err)
	}
	if err := s.kv.Set(ctx, store.KeyRelaySettings, string(data)); err != nil {
		return fmt.Errorf("failed to persist relay settings: %w", err)
	}
	return nil
}
