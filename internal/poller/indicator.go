package poller

import (
	"sync"
	"time"

	"medtime-companion/internal/metrics"
)

// Snapshot is the connectivity state shown to the user.
type Snapshot struct {
	Connected  bool      `json:"connected"`
	DeviceTime string    `json:"deviceTime,omitempty"`
	LastError  string    `json:"lastError,omitempty"`
	CheckedAt  time.Time `json:"checkedAt"`
}

// Indicator tracks whether the device is reachable. A failed status
// check flips it at once; active polls need threshold failures in a row.
type Indicator struct {
	mu           sync.RWMutex
	snap         Snapshot
	pollFailures int
	threshold    int
	now          func() time.Time
}

func NewIndicator(threshold int) *Indicator {
	if threshold <= 0 {
		threshold = 1
	}
	return &Indicator{threshold: threshold, now: time.Now}
}

func (i *Indicator) StatusOK(deviceTime string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.snap.Connected = true
	i.snap.LastError = ""
	if deviceTime != "" {
		i.snap.DeviceTime = deviceTime
	}
	i.snap.CheckedAt = i.now()
	i.pollFailures = 0
	metrics.SetConnected(true)
}

func (i *Indicator) StatusFailed(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.snap.Connected = false
	i.snap.LastError = errString(err)
	i.snap.CheckedAt = i.now()
	metrics.SetConnected(false)
}

func (i *Indicator) PollOK() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.pollFailures = 0
	i.snap.Connected = true
	i.snap.LastError = ""
	i.snap.CheckedAt = i.now()
	metrics.SetConnected(true)
}

func (i *Indicator) PollFailed(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.pollFailures++
	if i.pollFailures < i.threshold {
		return
	}
	i.snap.Connected = false
	i.snap.LastError = errString(err)
	i.snap.CheckedAt = i.now()
	metrics.SetConnected(false)
}

// Snapshot returns the current state.
func (i *Indicator) Snapshot() Snapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.snap
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
