package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tellhaus/masd/internal/device"
)

// Config represents the application configuration
type Config struct {
	Rules           string       `yaml:"rules"` // path to the rule definition file
	Log             LogConfig    `yaml:"log"`
	WebAPI          WebAPIConfig `yaml:"webapi"`
	Device          DeviceConfig `yaml:"device"`
	ShutdownTimeout Duration     `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// WebAPIConfig contains the REST control surface settings
type WebAPIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// DeviceConfig selects and configures the device backend
type DeviceConfig struct {
	Backend      string        `yaml:"backend"` // debug | virtual | hue | mqtt
	RateLimitRPS float64       `yaml:"rate_limit_rps"`
	Devices      []DeviceEntry `yaml:"devices"` // used by the debug, virtual and mqtt backends
	Hue          HueConfig     `yaml:"hue"`
	MQTT         MQTTConfig    `yaml:"mqtt"`
	Virtual      VirtualConfig `yaml:"virtual"`
}

// DeviceEntry declares one device for backends without hardware discovery
type DeviceEntry struct {
	ID       int    `yaml:"id"`
	Name     string `yaml:"name"`
	Dimmable bool   `yaml:"dimmable"`
}

// HueConfig contains Hue bridge connection settings
type HueConfig struct {
	Bridge string `yaml:"bridge"`
	Token  string `yaml:"token"`
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker      string   `yaml:"broker"`
	ClientID    string   `yaml:"client_id"`
	TopicPrefix string   `yaml:"topic_prefix"`
	QoS         int      `yaml:"qos"`
	Timeout     Duration `yaml:"timeout"`
}

// VirtualConfig contains settings for the SQLite-backed virtual backend
type VirtualConfig struct {
	Path string `yaml:"path"`
}

// Descriptors converts the configured device entries to the device package type.
func (c *DeviceConfig) Descriptors() []device.Descriptor {
	out := make([]device.Descriptor, 0, len(c.Devices))
	for _, d := range c.Devices {
		out = append(out, device.Descriptor{ID: d.ID, Name: d.Name, Dimmable: d.Dimmable})
	}
	return out
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
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

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Rules == "" {
		c.Rules = "mas.rules"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.WebAPI.Host == "" {
		c.WebAPI.Host = "0.0.0.0"
	}
	if c.WebAPI.Port == 0 {
		c.WebAPI.Port = 8080
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = Duration(5 * time.Second)
	}

	switch c.Device.Backend {
	case "":
		c.Device.Backend = "debug"
	case "debug", "virtual", "hue", "mqtt":
	default:
		return fmt.Errorf("unknown device backend %q", c.Device.Backend)
	}
	if c.Device.RateLimitRPS == 0 {
		c.Device.RateLimitRPS = 10
	}
	if c.Device.Virtual.Path == "" {
		c.Device.Virtual.Path = "./masd.sqlite"
	}
	if c.Device.MQTT.ClientID == "" {
		c.Device.MQTT.ClientID = "masd"
	}
	if c.Device.MQTT.TopicPrefix == "" {
		c.Device.MQTT.TopicPrefix = "masd"
	}
	if c.Device.MQTT.QoS == 0 {
		c.Device.MQTT.QoS = 1
	}
	if c.Device.MQTT.Timeout == 0 {
		c.Device.MQTT.Timeout = Duration(10 * time.Second)
	}

	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
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
