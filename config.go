package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	CLIENT_TYPE_HTTP  = "http"
	CLIENT_TYPE_HTTPS = "https"

	DRIVER_SSD1306 = "ssd1306"
	DRIVER_CONSOLE = "console"

	DEFAULT_POLL_INTERVAL   = 200 * time.Millisecond
	DEFAULT_RENDER_INTERVAL = 2000 * time.Millisecond
	DEFAULT_OLED_WIDTH      = 128
	DEFAULT_OLED_HEIGHT     = 64
	DEFAULT_OLED_ADDRESS    = 0x3C
	DEFAULT_LINE_HEIGHT     = 12
	DEFAULT_MQTT_TOPIC      = "juryoled/lines"

	envPrefix = "JURYOLED_"
)

var (
	ErrNoSettings        = errors.New("service requires a valid settings object")
	ErrInvalidClientType = errors.New("invalid clientType in config")
	ErrSchemeMismatch    = errors.New("url scheme does not match clientType")
	ErrMissingURL        = errors.New("endpoint url is required")
	ErrInvalidDisplay    = errors.New("invalid display settings")
)

// Duration accepts either a Go duration string ("200ms", "2s") or a plain
// number of milliseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	raw := strings.TrimSpace(value.Value)
	if raw == "" {
		*d = 0
		return nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// DisplayConfig describes the OLED panel and how text is laid out on it.
type DisplayConfig struct {
	Driver     string `yaml:"driver"`
	Bus        string `yaml:"bus"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Address    uint16 `yaml:"address"`
	LineHeight int    `yaml:"lineHeight"`
	Scale      int    `yaml:"scale"`
	Wrap       *bool  `yaml:"wrap"`
	CursorX    int    `yaml:"cursorX"`
	CursorY    int    `yaml:"cursorY"`
}

func (d DisplayConfig) WrapEnabled() bool {
	return d.Wrap == nil || *d.Wrap
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PreviewConfig struct {
	Listen string `yaml:"listen"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"clientID"`
}

// Config represents the settings file. The four endpoint keys are the ones
// a plain settings.json carries, so such a file loads unchanged.
type Config struct {
	ClientType            string        `yaml:"clientType"`
	TimeURL               string        `yaml:"timeURL"`
	ScoreURL              string        `yaml:"scoreURL"`
	ShotclockURL          string        `yaml:"shotclockURL"`
	PollInterval          Duration      `yaml:"pollInterval"`
	RenderInterval        Duration      `yaml:"renderInterval"`
	RequestTimeout        Duration      `yaml:"requestTimeout"`
	TLSInsecureSkipVerify bool          `yaml:"tlsInsecureSkipVerify"`
	Display               DisplayConfig `yaml:"display"`
	Log                   LogConfig     `yaml:"log"`
	Preview               PreviewConfig `yaml:"preview"`
	MQTT                  MQTTConfig    `yaml:"mqtt"`
}

// defaultConfig returns the settings used when a key is absent.
func defaultConfig() Config {
	return Config{
		PollInterval:   Duration(DEFAULT_POLL_INTERVAL),
		RenderInterval: Duration(DEFAULT_RENDER_INTERVAL),
		Display: DisplayConfig{
			Driver:     DRIVER_SSD1306,
			Bus:        "1",
			Width:      DEFAULT_OLED_WIDTH,
			Height:     DEFAULT_OLED_HEIGHT,
			Address:    DEFAULT_OLED_ADDRESS,
			LineHeight: DEFAULT_LINE_HEIGHT,
			Scale:      1,
			CursorX:    1,
			CursorY:    1,
		},
		Log: LogConfig{Level: "info", Format: "console"},
		MQTT: MQTTConfig{
			Topic: DEFAULT_MQTT_TOPIC,
		},
	}
}

// Parse decodes YAML (or JSON) settings on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// loadConfig reads the settings file, then applies .env and environment
// overrides. It does not validate; see Config.Validate.
func loadConfig(path string, envFile string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if envFile != "" {
		if _, statErr := os.Stat(envFile); statErr == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
	}
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	override := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(envPrefix + key)); v != "" {
			*dst = v
		}
	}
	override("CLIENT_TYPE", &c.ClientType)
	override("TIME_URL", &c.TimeURL)
	override("SCORE_URL", &c.ScoreURL)
	override("SHOTCLOCK_URL", &c.ShotclockURL)
	override("LOG_LEVEL", &c.Log.Level)
	override("MQTT_BROKER", &c.MQTT.Broker)
	override("PREVIEW_LISTEN", &c.Preview.Listen)
	override("DISPLAY_DRIVER", &c.Display.Driver)
}

// Validate reports the first fatal configuration error.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNoSettings
	}
	if c.ClientType != CLIENT_TYPE_HTTP && c.ClientType != CLIENT_TYPE_HTTPS {
		return fmt.Errorf("%w: %q", ErrInvalidClientType, c.ClientType)
	}
	for _, ep := range []struct{ name, raw string }{
		{"timeURL", c.TimeURL},
		{"scoreURL", c.ScoreURL},
		{"shotclockURL", c.ShotclockURL},
	} {
		if ep.raw == "" {
			return fmt.Errorf("%w: %s", ErrMissingURL, ep.name)
		}
		u, err := url.Parse(ep.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", ep.name, ep.raw, err)
		}
		if !strings.EqualFold(u.Scheme, c.ClientType) {
			return fmt.Errorf("%w: %s is %q, clientType is %q", ErrSchemeMismatch, ep.name, u.Scheme, c.ClientType)
		}
	}
	if c.PollInterval <= 0 || c.RenderInterval <= 0 {
		return fmt.Errorf("pollInterval and renderInterval must be positive")
	}
	d := c.Display
	if d.Driver != DRIVER_SSD1306 && d.Driver != DRIVER_CONSOLE {
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidDisplay, d.Driver)
	}
	if d.Width <= 0 || d.Height <= 0 || d.LineHeight <= 0 || d.Scale <= 0 {
		return fmt.Errorf("%w: width, height, lineHeight and scale must be positive", ErrInvalidDisplay)
	}
	if d.Address == 0 || d.Address > 0x7F {
		return fmt.Errorf("%w: i2c address 0x%X out of range", ErrInvalidDisplay, d.Address)
	}
	return nil
}
