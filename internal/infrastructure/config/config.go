package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Genius gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Radio    RadioConfig    `yaml:"radio"`
	Features FeaturesConfig `yaml:"features"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GatewayConfig identifies this gateway instance.
type GatewayConfig struct {
	// ID is used as the MQTT client ID suffix and in health messages.
	ID string `yaml:"id"`

	// HealthInterval is how often the health report is published (seconds).
	HealthInterval int `yaml:"health_interval"`

	// EventBuffer is the per-subscriber capacity of the in-process event bus.
	EventBuffer int `yaml:"event_buffer"`
}

// RadioConfig describes how the CC1101 transceiver is attached.
type RadioConfig struct {
	// SPIPort is the periph.io SPI port name, e.g. "/dev/spidev0.0" or "" for the first port.
	SPIPort string `yaml:"spi_port"`

	// SPISpeedHz is the SPI clock. The CC1101 tolerates up to 10 MHz in burst mode.
	SPISpeedHz int `yaml:"spi_speed_hz"`

	// ChipSelectPin is the GPIO driven manually as CSn (the reset sequence needs it).
	ChipSelectPin string `yaml:"chip_select_pin"`

	// GDO0Pin is the GPIO wired to the CC1101 GDO0 output.
	GDO0Pin string `yaml:"gdo0_pin"`

	// SupervisorInterval is the stuck-line poll period in milliseconds.
	SupervisorInterval int `yaml:"supervisor_interval_ms"`

	// StuckThreshold is how long GDO0 may stay high before recovery, in milliseconds.
	StuckThreshold int `yaml:"stuck_threshold_ms"`
}

// FeaturesConfig holds the gateway behaviour switches.
type FeaturesConfig struct {
	AlertOnUnknownDetectors bool `yaml:"alert_on_unknown_detectors"`
	LinesFromCommissioning  bool `yaml:"lines_from_commissioning"`
	LinesFromAlarm          bool `yaml:"lines_from_alarm"`
	LinesFromLineTest       bool `yaml:"lines_from_line_test"`
	BroadcastLine           bool `yaml:"broadcast_line"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker        MQTTBrokerConfig    `yaml:"broker"`
	Auth          MQTTAuthConfig      `yaml:"auth"`
	QoS           int                 `yaml:"qos"`
	Reconnect     MQTTReconnectConfig `yaml:"reconnect"`
	BaseTopic     string              `yaml:"base_topic"`
	HomeAssistant HomeAssistantConfig `yaml:"home_assistant"`
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

// HomeAssistantConfig controls the Home Assistant compatible publishing.
type HomeAssistantConfig struct {
	Enabled      bool   `yaml:"enabled"`
	TopicPrefix  string `yaml:"topic_prefix"`
	AlarmEnabled bool   `yaml:"alarm_enabled"`
	AlarmTopic   string `yaml:"alarm_topic"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GENIUSGW_SECTION_KEY
// For example: GENIUSGW_DATABASE_PATH, GENIUSGW_RADIO_GDO0_PIN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			ID:             "genius-gateway",
			HealthInterval: 30,
			EventBuffer:    16,
		},
		Radio: RadioConfig{
			SPIPort:            "",
			SPISpeedHz:         5_000_000,
			ChipSelectPin:      "GPIO8",
			GDO0Pin:            "GPIO25",
			SupervisorInterval: 1000,
			StuckThreshold:     200,
		},
		Features: FeaturesConfig{
			AlertOnUnknownDetectors: true,
			LinesFromCommissioning:  true,
			LinesFromAlarm:          true,
			LinesFromLineTest:       true,
			BroadcastLine:           false,
		},
		Database: DatabaseConfig{
			Path:        "./data/geniusgw.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "genius-gateway",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			BaseTopic: "genius-gateway",
			HomeAssistant: HomeAssistantConfig{
				Enabled:      false,
				TopicPrefix:  "homeassistant/binary_sensor/genius-",
				AlarmEnabled: false,
				AlarmTopic:   "smarthome/genius-gateway/alarm",
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GENIUSGW_GATEWAY_ID"); v != "" {
		cfg.Gateway.ID = v
	}

	if v := os.Getenv("GENIUSGW_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GENIUSGW_RADIO_SPI_PORT"); v != "" {
		cfg.Radio.SPIPort = v
	}
	if v := os.Getenv("GENIUSGW_RADIO_GDO0_PIN"); v != "" {
		cfg.Radio.GDO0Pin = v
	}
	if v := os.Getenv("GENIUSGW_RADIO_CS_PIN"); v != "" {
		cfg.Radio.ChipSelectPin = v
	}

	if v := os.Getenv("GENIUSGW_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GENIUSGW_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GENIUSGW_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GENIUSGW_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GENIUSGW_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("GENIUSGW_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of all validation failures, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Gateway.ID == "" {
		errs = append(errs, "gateway.id is required")
	}
	if c.Gateway.HealthInterval < 0 {
		errs = append(errs, "gateway.health_interval must not be negative")
	}

	if c.Radio.GDO0Pin == "" {
		errs = append(errs, "radio.gdo0_pin is required")
	}
	if c.Radio.ChipSelectPin == "" {
		errs = append(errs, "radio.chip_select_pin is required")
	}
	if c.Radio.SPISpeedHz <= 0 || c.Radio.SPISpeedHz > 10_000_000 {
		errs = append(errs, "radio.spi_speed_hz must be between 1 and 10000000")
	}
	if c.Radio.SupervisorInterval <= 0 {
		errs = append(errs, "radio.supervisor_interval_ms must be positive")
	}
	if c.Radio.StuckThreshold <= 0 || c.Radio.StuckThreshold >= c.Radio.SupervisorInterval {
		errs = append(errs, "radio.stuck_threshold_ms must be positive and below the supervisor interval")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.BaseTopic == "" || strings.ContainsAny(c.MQTT.BaseTopic, "+#") {
		errs = append(errs, "mqtt.base_topic is required and must not contain wildcards")
	}
	if c.MQTT.HomeAssistant.Enabled && c.MQTT.HomeAssistant.TopicPrefix == "" {
		errs = append(errs, "mqtt.home_assistant.topic_prefix is required when enabled")
	}
	if c.MQTT.HomeAssistant.AlarmEnabled && c.MQTT.HomeAssistant.AlarmTopic == "" {
		errs = append(errs, "mqtt.home_assistant.alarm_topic is required when alarm publishing is enabled")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetHealthInterval returns the health report period as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Gateway.HealthInterval) * time.Second
}

// GetSupervisorInterval returns the radio supervisor poll period.
func (c *Config) GetSupervisorInterval() time.Duration {
	return time.Duration(c.Radio.SupervisorInterval) * time.Millisecond
}

// GetStuckThreshold returns the GDO0 stuck-high threshold.
func (c *Config) GetStuckThreshold() time.Duration {
	return time.Duration(c.Radio.StuckThreshold) * time.Millisecond
}
