// Package config loads the boot configuration. Persisted usermod
// settings in the database override the sensor defaults set here.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Log             LogConfig      `yaml:"log"`
	Database        DatabaseConfig `yaml:"database"`
	Loop            LoopConfig     `yaml:"loop"`
	HAL             HALConfig      `yaml:"hal"`
	API             APIConfig      `yaml:"api"`
	MQTT            MQTTConfig     `yaml:"mqtt"`
	Sensors         SensorsConfig  `yaml:"sensors"`
	Ledger          LedgerConfig   `yaml:"ledger"`
	ShutdownTimeout Duration       `yaml:"shutdown_timeout"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoopConfig contains host loop settings.
type LoopConfig struct {
	// Interval is the host loop cadence. Usermods rate-limit their own
	// polling on top of this.
	Interval Duration `yaml:"interval"`
}

// HALConfig selects the hardware driver.
type HALConfig struct {
	// Driver is "fake" or "gpio".
	Driver string `yaml:"driver"`
}

// APIConfig contains JSON API server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// MQTTConfig contains MQTT broadcast settings.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// SensorsConfig contains boot defaults for the sensor usermod.
type SensorsConfig struct {
	PIRPins       []uint16 `yaml:"pir_pins"`
	LDRPins       []uint16 `yaml:"ldr_pins"`
	LDRThreshold  int      `yaml:"ldr_threshold"`
	StayOnTime    Duration `yaml:"stay_on_time"`
	KnownResistor float64  `yaml:"known_resistor"`
	Voltage       float64  `yaml:"voltage"`
}

// LedgerConfig contains transition ledger retention settings.
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// GetLevel returns the log level with default.
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./bettlicht.sqlite"
	}
	if cfg.Loop.Interval == 0 {
		cfg.Loop.Interval = Duration(50 * time.Millisecond)
	}

	switch cfg.HAL.Driver {
	case "":
		cfg.HAL.Driver = "fake"
	case "fake", "gpio":
	default:
		return nil, fmt.Errorf("unknown hal driver %q (want fake or gpio)", cfg.HAL.Driver)
	}

	// API defaults
	if cfg.API.Host == "" {
		cfg.API.Host = "0.0.0.0"
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}

	// MQTT defaults
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "bettlicht"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "bettlicht"
	}

	// Sensor defaults mirror the usermod's own; the persisted config
	// document takes precedence over all of these.
	if cfg.Sensors.LDRThreshold == 0 {
		cfg.Sensors.LDRThreshold = 500
	}
	if cfg.Sensors.StayOnTime == 0 {
		cfg.Sensors.StayOnTime = Duration(60 * time.Second)
	}
	if cfg.Sensors.KnownResistor == 0 {
		cfg.Sensors.KnownResistor = 100000
	}
	if cfg.Sensors.Voltage == 0 {
		cfg.Sensors.Voltage = 5.0
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}

	return &cfg, nil
}

// expandEnvVars expands environment variables in the format ${VAR} or
// ${VAR:default}.
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
