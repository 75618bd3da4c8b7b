package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for GridLink Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Devices, programs, curves and function set assignments seed the
	// resource directory at startup.
	Devices  []DeviceConfig  `yaml:"devices"`
	Programs []ProgramConfig `yaml:"programs"`
	Curves   []CurveConfig   `yaml:"curves"`
	FSAs     []FSAConfig     `yaml:"fsas"`
}

// ServerConfig identifies this server instance.
type ServerConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Hostname string `yaml:"hostname"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// StorageConfig selects the durable-storage backend for directory snapshots.
type StorageConfig struct {
	// Backend is "sqlite" (snapshots in the database) or "memory" (no durability).
	Backend string `yaml:"backend"`

	// Cleanse empties every store after hydration and before seeding.
	Cleanse bool `yaml:"cleanse"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`

	// DefaultLimit is the page size used when a request carries no "l" parameter.
	DefaultLimit int `yaml:"default_limit"`

	// MirrorPostRate is the postRate (seconds) advertised on new mirror usage points.
	MirrorPostRate int `yaml:"mirror_post_rate"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LifecycleConfig controls the control-event lifecycle ticker.
type LifecycleConfig struct {
	// TickInterval is the ticker period in milliseconds.
	TickInterval int `yaml:"tick_interval"`

	// Simulated replaces the wall clock with a counter that advances by one
	// second per tick, starting at StartTick.
	Simulated bool  `yaml:"simulated"`
	StartTick int64 `yaml:"start_tick"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DeviceConfig describes one end device provisioned at startup.
// lFDI and sFDI are supplied by the certificate tooling and used verbatim.
type DeviceConfig struct {
	ID       string   `yaml:"id"`
	LFDI     string   `yaml:"lfdi"`
	SFDI     int64    `yaml:"sfdi"`
	PIN      int      `yaml:"pin"`
	PostRate int      `yaml:"post_rate"`
	PollRate int      `yaml:"poll_rate"`
	FSAs     []string `yaml:"fsas"`
	DERs     []string `yaml:"ders"`
}

// ProgramConfig describes a DER program and its scheduled controls.
type ProgramConfig struct {
	Description    string          `yaml:"description"`
	MRID           string          `yaml:"mrid"`
	Primacy        int             `yaml:"primacy"`
	DefaultControl *ControlConfig  `yaml:"default_control"`
	Controls       []ControlConfig `yaml:"controls"`
}

// ControlConfig describes a DER control or a program's default control.
type ControlConfig struct {
	Description string `yaml:"description"`
	MRID        string `yaml:"mrid"`
	Start       int64  `yaml:"start"`
	Duration    int64  `yaml:"duration"`

	// Base holds the control's DERControlBase values (e.g. opModConnect,
	// opModMaxLimW, opModFixedW).
	Base map[string]float64 `yaml:"base"`
}

// CurveConfig describes a DER curve.
type CurveConfig struct {
	Description string       `yaml:"description"`
	MRID        string       `yaml:"mrid"`
	CurveType   int          `yaml:"curve_type"`
	Points      [][2]float64 `yaml:"points"`
}

// FSAConfig describes a function set assignment and the programs it groups.
type FSAConfig struct {
	Description string   `yaml:"description"`
	Programs    []string `yaml:"programs"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRIDLINK_SECTION_KEY
// For example: GRIDLINK_DATABASE_PATH, GRIDLINK_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ID:       "gridlink-001",
			Name:     "GridLink",
			Hostname: "localhost:8443",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/gridlink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "gridlink-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8443,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			DefaultLimit:   1,
			MirrorPostRate: 300,
		},
		Lifecycle: LifecycleConfig{
			TickInterval: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// envOverride binds one GRIDLINK_* variable to a config field. Exactly one
// of str, num or flag is set.
type envOverride struct {
	name string
	str  *string
	num  *int
	flag *bool
}

func envOverrides(cfg *Config) []envOverride {
	return []envOverride{
		{name: "GRIDLINK_SERVER_ID", str: &cfg.Server.ID},
		{name: "GRIDLINK_DATABASE_PATH", str: &cfg.Database.Path},
		{name: "GRIDLINK_STORAGE_BACKEND", str: &cfg.Storage.Backend},
		{name: "GRIDLINK_MQTT_ENABLED", flag: &cfg.MQTT.Enabled},
		{name: "GRIDLINK_MQTT_HOST", str: &cfg.MQTT.Broker.Host},
		{name: "GRIDLINK_MQTT_PORT", num: &cfg.MQTT.Broker.Port},
		{name: "GRIDLINK_MQTT_USERNAME", str: &cfg.MQTT.Auth.Username},
		{name: "GRIDLINK_MQTT_PASSWORD", str: &cfg.MQTT.Auth.Password},
		{name: "GRIDLINK_API_HOST", str: &cfg.API.Host},
		{name: "GRIDLINK_API_PORT", num: &cfg.API.Port},
		{name: "GRIDLINK_INFLUXDB_ENABLED", flag: &cfg.InfluxDB.Enabled},
		{name: "GRIDLINK_INFLUXDB_URL", str: &cfg.InfluxDB.URL},
		{name: "GRIDLINK_INFLUXDB_TOKEN", str: &cfg.InfluxDB.Token},
		{name: "GRIDLINK_LIFECYCLE_SIMULATED", flag: &cfg.Lifecycle.Simulated},
		{name: "GRIDLINK_LOG_LEVEL", str: &cfg.Logging.Level},
	}
}

// applyEnvOverrides copies set GRIDLINK_* variables over cfg. Values that do
// not parse as the field's type are ignored.
func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides(cfg) {
		v, ok := os.LookupEnv(o.name)
		if !ok || v == "" {
			continue
		}
		switch {
		case o.str != nil:
			*o.str = v
		case o.num != nil:
			if n, err := strconv.Atoi(v); err == nil {
				*o.num = n
			}
		case o.flag != nil:
			if b, err := strconv.ParseBool(v); err == nil {
				*o.flag = b
			}
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Server.ID == "" {
		errs = append(errs, "server.id is required")
	}

	switch c.Storage.Backend {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite storage backend")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("storage.backend %q must be sqlite or memory", c.Storage.Backend))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.DefaultLimit < 0 {
		errs = append(errs, "api.default_limit must not be negative")
	}

	if c.Lifecycle.TickInterval <= 0 {
		errs = append(errs, "lifecycle.tick_interval must be positive")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if d.ID == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].id is required", i))
			continue
		}
		if seen[d.ID] {
			errs = append(errs, fmt.Sprintf("devices[%d].id %q is duplicated", i, d.ID))
		}
		seen[d.ID] = true
	}

	for i, p := range c.Programs {
		for j, ctl := range p.Controls {
			switch {
			case ctl.Duration <= 0:
				errs = append(errs, fmt.Sprintf("programs[%d].controls[%d].duration must be positive", i, j))
			case ctl.Start > math.MaxInt64-ctl.Duration:
				errs = append(errs, fmt.Sprintf("programs[%d].controls[%d] ends past the largest time", i, j))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReadDuration returns the read timeout as a Duration.
func (t APITimeoutConfig) ReadDuration() time.Duration { return time.Duration(t.Read) * time.Second }

// WriteDuration returns the write timeout as a Duration.
func (t APITimeoutConfig) WriteDuration() time.Duration { return time.Duration(t.Write) * time.Second }

// IdleDuration returns the keep-alive idle timeout as a Duration.
func (t APITimeoutConfig) IdleDuration() time.Duration { return time.Duration(t.Idle) * time.Second }

// GetTickInterval returns the lifecycle tick period as a Duration.
func (c *Config) GetTickInterval() time.Duration {
	return time.Duration(c.Lifecycle.TickInterval) * time.Millisecond
}
