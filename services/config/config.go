// Package config loads the node configuration from YAML on top of the
// built-in defaults.
package config

import (
	"cmp"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"hvac-node/errcode"
	"hvac-node/services/command"
)

//go:embed default.yaml
var defaultYAML []byte

type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Measure MeasureConfig `yaml:"measure"`
	Sensor  SensorConfig  `yaml:"sensor"`
	Display DisplayConfig `yaml:"display"`
	IR      IRConfig      `yaml:"ir"`
	Stats   StatsConfig   `yaml:"stats"`
	Log     LogConfig     `yaml:"log"`
}

type DeviceConfig struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	FirmwareName    string `yaml:"firmware_name"`
	FirmwareVersion string `yaml:"firmware_version"`
}

type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	BaseTopic      string        `yaml:"base_topic"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
	RetryInterval  time.Duration `yaml:"retry_interval"` // between connect attempts
}

type MeasureConfig struct {
	Interval time.Duration `yaml:"interval"`
	Tick     time.Duration `yaml:"tick"`
}

// Sensor types.
const (
	SensorAHT20     = "aht20"
	SensorDHT22     = "dht22"
	SensorSimulated = "simulated"
)

type SensorConfig struct {
	Type    string `yaml:"type"`
	I2CBus  string `yaml:"i2c_bus"` // periph bus name; "" selects the first bus
	Address uint16 `yaml:"address"`
	Pin     string `yaml:"pin"` // DHT data pin
}

// Display types.
const (
	DisplaySSD1306 = "ssd1306"
	DisplayLog     = "log"
)

// DisplayConfig selects the panel. The SSD1306 driver talks to address 0x3C.
type DisplayConfig struct {
	Type   string        `yaml:"type"`
	I2CBus string        `yaml:"i2c_bus"`
	Width  int           `yaml:"width"`
	Height int           `yaml:"height"`
	Settle time.Duration `yaml:"settle"`
}

// IRConfig configures the optional infrared bridge. With no topic or no
// payloads the dispatcher only logs commands.
type IRConfig struct {
	Topic    string            `yaml:"topic"`
	PowerPin string            `yaml:"power_pin"`
	Payloads map[string]string `yaml:"payloads"` // keyed by mode: off, dry, heat_auto_22
}

// Enabled reports whether commands should be forwarded to the IR bridge.
func (c IRConfig) Enabled() bool { return c.Topic != "" && len(c.Payloads) > 0 }

type StatsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		return nil, fmt.Errorf("parsing built-in config: %w", err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

// Load reads path over the defaults. An empty path yields the defaults.
// ${VAR} references in the file are expanded from the environment.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
		cfg.setDefaults()
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = cfg.Device.ID + "-" + uuid.NewString()[:8]
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	c.Device.Name = cmp.Or(c.Device.Name, c.Device.ID)
	c.MQTT.BaseTopic = cmp.Or(c.MQTT.BaseTopic, "homie")
	c.Log.Level = cmp.Or(c.Log.Level, "info")
	c.Log.Format = cmp.Or(c.Log.Format, "text")
}

// Homie IDs: lowercase letters, digits and hyphens, not starting with a hyphen.
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

func (c *Config) Validate() error {
	var errs []error
	if !idPattern.MatchString(c.Device.ID) {
		errs = append(errs, fmt.Errorf("device.id %q must match %s", c.Device.ID, idPattern))
	}
	if c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required"))
	}
	if c.Measure.Interval <= 0 {
		errs = append(errs, errors.New("measure.interval must be positive"))
	}
	if c.Measure.Tick <= 0 || c.Measure.Tick > c.Measure.Interval {
		errs = append(errs, errors.New("measure.tick must be positive and not exceed measure.interval"))
	}
	switch c.Sensor.Type {
	case SensorAHT20, SensorSimulated:
	case SensorDHT22:
		if c.Sensor.Pin == "" {
			errs = append(errs, errors.New("sensor.pin is required for dht22"))
		}
	default:
		errs = append(errs, fmt.Errorf("sensor.type %q is not one of aht20, dht22, simulated", c.Sensor.Type))
	}
	switch c.Display.Type {
	case DisplaySSD1306:
		if c.Display.Width <= 0 || c.Display.Height <= 0 {
			errs = append(errs, errors.New("display.width and display.height must be positive"))
		}
	case DisplayLog:
	default:
		errs = append(errs, fmt.Errorf("display.type %q is not one of ssd1306, log", c.Display.Type))
	}
	for k := range c.IR.Payloads {
		if _, ok := command.ParseMode(k); !ok {
			errs = append(errs, fmt.Errorf("ir.payloads: unknown mode %q", k))
		}
	}
	if c.Stats.Interval < 0 {
		errs = append(errs, errors.New("stats.interval must not be negative"))
	}
	if len(errs) > 0 {
		return errcode.Wrap(errcode.InvalidConfig, "config", errors.Join(errs...))
	}
	return nil
}
