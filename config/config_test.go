package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Server.StatusCacheDuration)
	assert.Equal(t, FactoryDeviceAddress, cfg.Device.DefaultAddress)
	assert.Equal(t, 5*time.Second, cfg.Device.StatusTimeout)
	assert.Equal(t, 2*time.Second, cfg.Device.ActiveTimeout)
	assert.Equal(t, 8*time.Second, cfg.Device.WriteTimeout)
	assert.Equal(t, 25*time.Second, cfg.Device.ConfigureTTL)
	assert.Equal(t, 2, cfg.Device.RetryAttempts)
	assert.Equal(t, time.Second, cfg.Device.RetryBackoff)
	assert.Equal(t, 2*time.Second, cfg.Poller.ActiveInterval)
	assert.Equal(t, 3, cfg.Poller.UnreachableThreshold)
	assert.Equal(t, 7, cfg.Alarms.MaxLEDIndex)
	assert.Equal(t, "Alarm", cfg.Alarms.DefaultName)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "medtime.db", cfg.Database.DSN)
	assert.Equal(t, "medtime/events", cfg.MQTT.Topic)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, 32, cfg.WorkerPool.Queue)
}

func TestLoadExample(t *testing.T) {
	cfg, err := Load("config.example.yaml")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://192.168.4.1", cfg.Device.DefaultAddress)
	assert.Equal(t, "America/Sao_Paulo", cfg.Alarms.Timezone)
	assert.Equal(t, 2, cfg.WorkerPool.Size)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Relay.Timeout)
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  port: 9090\npoller:\n  active_interval_ms: 500\ndatabase:\n  driver: postgres\n  dsn: \"host=db\"\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Poller.ActiveInterval)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "host=db", cfg.Database.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, time.Local, AlarmsConfig{}.Location())
	assert.Equal(t, time.Local, AlarmsConfig{Timezone: "Nowhere/Invalid"}.Location())

	loc := AlarmsConfig{Timezone: "UTC"}.Location()
	assert.Equal(t, "UTC", loc.String())
}
