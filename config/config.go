package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FactoryDeviceAddress is the address the device answers on in access-point mode.
const FactoryDeviceAddress = "http://192.168.4.1"

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Device     DeviceConfig     `yaml:"device"`
	Poller     PollerConfig     `yaml:"poller"`
	Alarms     AlarmsConfig     `yaml:"alarms"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	Relay      RelayConfig      `yaml:"relay"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port                int           `yaml:"port"`
	RateLimitPerSec     float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst      int           `yaml:"rate_limit_burst"`
	StatusCacheMillis   int           `yaml:"status_cache_ms"`
	StatusCacheDuration time.Duration `yaml:"-"`
}

// DeviceConfig holds timeouts and retry policy for calls to the device.
type DeviceConfig struct {
	DefaultAddress   string        `yaml:"default_address"`
	StatusTimeoutMs  int           `yaml:"status_timeout_ms"`
	ActiveTimeoutMs  int           `yaml:"active_timeout_ms"`
	WriteTimeoutMs   int           `yaml:"write_timeout_ms"`
	ConfigureTimeout int           `yaml:"configure_timeout_seconds"`
	RetryAttempts    int           `yaml:"retry_attempts"`
	RetryBackoffMs   int           `yaml:"retry_backoff_ms"`
	StatusTimeout    time.Duration `yaml:"-"`
	ActiveTimeout    time.Duration `yaml:"-"`
	WriteTimeout     time.Duration `yaml:"-"`
	ConfigureTTL     time.Duration `yaml:"-"`
	RetryBackoff     time.Duration `yaml:"-"`
}

// PollerConfig holds the cadence of the two periodic device checks.
type PollerConfig struct {
	ActiveIntervalMs     int           `yaml:"active_interval_ms"`
	StatusIntervalMs     int           `yaml:"status_interval_ms"`
	UnreachableThreshold int           `yaml:"unreachable_threshold"`
	ActiveInterval       time.Duration `yaml:"-"`
	StatusInterval       time.Duration `yaml:"-"`
}

// AlarmsConfig holds alarm validation bounds and the wall clock used to pick the next alarm.
type AlarmsConfig struct {
	Timezone    string `yaml:"timezone"`
	MaxLEDIndex int    `yaml:"max_led_index"`
	DefaultName string `yaml:"default_name"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogSQL                 bool   `yaml:"log_sql"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// RelayConfig holds the third-party message relay endpoint.
type RelayConfig struct {
	BaseURL          string        `yaml:"base_url"`
	APIKey           string        `yaml:"api_key"`
	ImageURL         string        `yaml:"image_url"`
	DefaultRecipient string        `yaml:"default_recipient"`
	TimeoutSeconds   int           `yaml:"timeout_seconds"`
	Timeout          time.Duration `yaml:"-"`
}

// MQTTConfig holds the optional MQTT event publisher.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size  int `yaml:"size"`
	Queue int `yaml:"queue"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset values and derives the duration fields.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.StatusCacheMillis <= 0 {
		cfg.Server.StatusCacheMillis = 1000
	}
	cfg.Server.StatusCacheDuration = time.Duration(cfg.Server.StatusCacheMillis) * time.Millisecond

	if cfg.Device.DefaultAddress == "" {
		cfg.Device.DefaultAddress = FactoryDeviceAddress
	}
	if cfg.Device.StatusTimeoutMs <= 0 {
		cfg.Device.StatusTimeoutMs = 5000
	}
	if cfg.Device.ActiveTimeoutMs <= 0 {
		cfg.Device.ActiveTimeoutMs = 2000
	}
	if cfg.Device.WriteTimeoutMs <= 0 {
		cfg.Device.WriteTimeoutMs = 8000
	}
	if cfg.Device.ConfigureTimeout <= 0 {
		cfg.Device.ConfigureTimeout = 25
	}
	if cfg.Device.RetryAttempts <= 0 {
		cfg.Device.RetryAttempts = 2
	}
	if cfg.Device.RetryBackoffMs <= 0 {
		cfg.Device.RetryBackoffMs = 1000
	}
	cfg.Device.StatusTimeout = time.Duration(cfg.Device.StatusTimeoutMs) * time.Millisecond
	cfg.Device.ActiveTimeout = time.Duration(cfg.Device.ActiveTimeoutMs) * time.Millisecond
	cfg.Device.WriteTimeout = time.Duration(cfg.Device.WriteTimeoutMs) * time.Millisecond
	cfg.Device.ConfigureTTL = time.Duration(cfg.Device.ConfigureTimeout) * time.Second
	cfg.Device.RetryBackoff = time.Duration(cfg.Device.RetryBackoffMs) * time.Millisecond

	if cfg.Poller.ActiveIntervalMs <= 0 {
		cfg.Poller.ActiveIntervalMs = 2000
	}
	if cfg.Poller.StatusIntervalMs <= 0 {
		cfg.Poller.StatusIntervalMs = 2000
	}
	if cfg.Poller.UnreachableThreshold <= 0 {
		cfg.Poller.UnreachableThreshold = 3
	}
	cfg.Poller.ActiveInterval = time.Duration(cfg.Poller.ActiveIntervalMs) * time.Millisecond
	cfg.Poller.StatusInterval = time.Duration(cfg.Poller.StatusIntervalMs) * time.Millisecond

	if cfg.Alarms.Timezone == "" {
		cfg.Alarms.Timezone = "Local"
	}
	if cfg.Alarms.MaxLEDIndex <= 0 {
		cfg.Alarms.MaxLEDIndex = 7
	}
	if cfg.Alarms.DefaultName == "" {
		cfg.Alarms.DefaultName = "Alarm"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "medtime.db"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.Relay.TimeoutSeconds <= 0 {
		cfg.Relay.TimeoutSeconds = 10
	}
	cfg.Relay.Timeout = time.Duration(cfg.Relay.TimeoutSeconds) * time.Second

	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "medtime/events"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "medtimed"
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.Queue <= 0 {
		cfg.WorkerPool.Queue = 32
	}
}

// Location resolves the configured alarm timezone, falling back to the local zone.
func (c AlarmsConfig) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("Warning: invalid alarms.timezone %q: %v. Using local time.", c.Timezone, err)
		return time.Local
	}
	return loc
}
