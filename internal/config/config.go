// Package config loads the doorbell-pi configuration.
//
// Values are resolved in order: built-in defaults, the YAML file (optional),
// then DOORBELL_* environment variables. The result is validated as a whole
// and every problem is reported at once.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/doorbell-pi/internal/chime"
	"github.com/sweeney/doorbell-pi/internal/engine"
	"github.com/sweeney/doorbell-pi/internal/flic"
	"github.com/sweeney/doorbell-pi/internal/gpio"
	"github.com/sweeney/doorbell-pi/internal/logic"
	"github.com/sweeney/doorbell-pi/internal/notify"
)

// Input modes.
const (
	InputGPIO = string(logic.SourceGPIO)
	InputFlic = string(logic.SourceFlic)
)

// Log outputs.
const (
	OutputStdout = "stdout"
	OutputSyslog = "syslog"
)

// Config is the root configuration structure.
type Config struct {
	Input  string       `yaml:"input"`
	GPIO   GPIOConfig   `yaml:"gpio"`
	Chime  ChimeConfig  `yaml:"chime"`
	Flic   FlicConfig   `yaml:"flic"`
	Notify NotifyConfig `yaml:"notify"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	HTTP   HTTPConfig   `yaml:"http"`
	Log    LogConfig    `yaml:"log"`
}

// GPIOConfig selects the button input and chime relay lines.
type GPIOConfig struct {
	Chip       string        `yaml:"chip"`
	InputPin   int           `yaml:"input_pin"`
	OutputPin  int           `yaml:"output_pin"`
	Pull       string        `yaml:"pull"`
	MinTrigger time.Duration `yaml:"min_trigger"`
	Poll       time.Duration `yaml:"poll"`
}

// ChimeConfig selects the ring pattern.
type ChimeConfig struct {
	Pattern string        `yaml:"pattern"`
	Pulse   time.Duration `yaml:"pulse"`
}

// FlicConfig describes the flicd daemon and the button to listen to.
type FlicConfig struct {
	Host                 string        `yaml:"host"`
	Port                 int           `yaml:"port"`
	Button               string        `yaml:"button"`
	ConnID               uint32        `yaml:"conn_id"`
	Latency              string        `yaml:"latency"`
	AutoDisconnect       int16         `yaml:"auto_disconnect"`
	ReadTimeout          time.Duration `yaml:"read_timeout"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectInitial     time.Duration `yaml:"reconnect_initial"`
	ReconnectMax         time.Duration `yaml:"reconnect_max"`
}

// NotifyConfig configures the webhook called after each ring.
// An empty URL disables it.
type NotifyConfig struct {
	URL     string        `yaml:"url"`
	Method  string        `yaml:"method"`
	Timeout time.Duration `yaml:"timeout"`
}

// MQTTConfig configures event publishing. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// HTTPConfig configures the status server. An empty address disables it.
type HTTPConfig struct {
	Addr      string `yaml:"addr"`
	MDNS      bool   `yaml:"mdns"`
	Instance  string `yaml:"instance"`
	Interface string `yaml:"interface"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Output string `yaml:"output"`
}

// Load reads the configuration. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Input: InputGPIO,
		GPIO: GPIOConfig{
			Chip:       gpio.DefaultChip,
			InputPin:   gpio.DefaultInputPin,
			OutputPin:  gpio.DefaultOutputPin,
			Pull:       string(gpio.PullUp),
			MinTrigger: logic.DefaultMinimumTrigger,
			Poll:       engine.DefaultPollInterval,
		},
		Chime: ChimeConfig{
			Pattern: string(chime.KindClassic),
			Pulse:   chime.DefaultPulse,
		},
		Flic: FlicConfig{
			Host:                 "localhost",
			Port:                 flic.DefaultPort,
			Latency:              "normal",
			AutoDisconnect:       flic.AutoDisconnectNever,
			ReadTimeout:          flic.DefaultReadTimeout,
			MaxReconnectAttempts: engine.DefaultMaxReconnectAttempts,
			ReconnectInitial:     engine.DefaultReconnectInitial,
			ReconnectMax:         engine.DefaultReconnectMax,
		},
		Notify: NotifyConfig{
			Method:  "GET",
			Timeout: notify.DefaultTimeout,
		},
		MQTT: MQTTConfig{
			ClientID:  "doorbell-pi",
			Heartbeat: 15 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr:     ":80",
			Instance: "doorbell-pi",
		},
		Log: LogConfig{
			Level:  "info",
			Output: OutputStdout,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOORBELL_INPUT"); v != "" {
		cfg.Input = v
	}
	if v := os.Getenv("DOORBELL_CHIME_PATTERN"); v != "" {
		cfg.Chime.Pattern = v
	}

	// flicd
	if v := os.Getenv("DOORBELL_FLIC_HOST"); v != "" {
		cfg.Flic.Host = v
	}
	if v := os.Getenv("DOORBELL_FLIC_BUTTON"); v != "" {
		cfg.Flic.Button = v
	}

	// Outputs
	if v := os.Getenv("DOORBELL_NOTIFY_URL"); v != "" {
		cfg.Notify.URL = v
	}
	if v := os.Getenv("DOORBELL_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("DOORBELL_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	if v := os.Getenv("DOORBELL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	switch c.Input {
	case InputGPIO, InputFlic:
	default:
		errs = append(errs, fmt.Sprintf("input must be gpio or flic, got %q", c.Input))
	}

	// GPIO: the relay is always driven, the button only in gpio mode.
	if c.GPIO.Chip == "" {
		errs = append(errs, "gpio.chip is required")
	}
	if c.GPIO.OutputPin < 0 {
		errs = append(errs, "gpio.output_pin must not be negative")
	}
	if c.Input == InputGPIO {
		if c.GPIO.InputPin < 0 {
			errs = append(errs, "gpio.input_pin must not be negative")
		}
		if c.GPIO.InputPin == c.GPIO.OutputPin {
			errs = append(errs, "gpio.input_pin and gpio.output_pin must differ")
		}
		if _, err := gpio.ParsePull(c.GPIO.Pull); err != nil {
			errs = append(errs, err.Error())
		}
		if c.GPIO.MinTrigger <= 0 {
			errs = append(errs, "gpio.min_trigger must be positive")
		}
		if c.GPIO.Poll <= 0 {
			errs = append(errs, "gpio.poll must be positive")
		}
	}

	if _, err := chime.ParsePattern(c.Chime.Pattern, c.Chime.Pulse); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Chime.Pulse <= 0 {
		errs = append(errs, "chime.pulse must be positive")
	}

	if c.Input == InputFlic {
		if c.Flic.Host == "" {
			errs = append(errs, "flic.host is required")
		}
		if c.Flic.Port < 1 || c.Flic.Port > 65535 {
			errs = append(errs, "flic.port must be between 1 and 65535")
		}
		if c.Flic.Button == "" {
			errs = append(errs, "flic.button is required (set DOORBELL_FLIC_BUTTON)")
		} else if _, err := flic.ParseButtonAddress(c.Flic.Button); err != nil {
			errs = append(errs, fmt.Sprintf("flic.button: %v", err))
		}
		if _, err := flic.ParseLatencyMode(c.Flic.Latency); err != nil {
			errs = append(errs, err.Error())
		}
		if c.Flic.ReadTimeout < 0 {
			errs = append(errs, "flic.read_timeout must not be negative")
		}
		if c.Flic.MaxReconnectAttempts < 0 {
			errs = append(errs, "flic.max_reconnect_attempts must not be negative (0 means unlimited)")
		}
		if c.Flic.ReconnectInitial <= 0 || c.Flic.ReconnectMax < c.Flic.ReconnectInitial {
			errs = append(errs, "flic.reconnect_initial must be positive and no larger than flic.reconnect_max")
		}
	}

	if c.Notify.URL != "" {
		if u, err := url.Parse(c.Notify.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("notify.url must be an http or https URL, got %q", c.Notify.URL))
		}
	}
	switch strings.ToUpper(c.Notify.Method) {
	case "GET", "POST":
	default:
		errs = append(errs, fmt.Sprintf("notify.method must be GET or POST, got %q", c.Notify.Method))
	}
	if c.Notify.Timeout <= 0 {
		errs = append(errs, "notify.timeout must be positive")
	}

	if c.MQTT.Heartbeat < 0 {
		errs = append(errs, "mqtt.heartbeat must not be negative (0 disables)")
	}
	if c.MQTT.Broker != "" && c.MQTT.ClientID == "" {
		errs = append(errs, "mqtt.client_id is required when a broker is set")
	}

	if c.HTTP.Addr != "" {
		if _, _, err := net.SplitHostPort(c.HTTP.Addr); err != nil {
			errs = append(errs, fmt.Sprintf("http.addr: %v", err))
		}
	}
	if c.HTTP.MDNS && c.HTTP.Addr == "" {
		errs = append(errs, "http.mdns requires http.addr")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level: %v", err))
	}
	switch c.Log.Output {
	case OutputStdout, OutputSyslog:
	default:
		errs = append(errs, fmt.Sprintf("log.output must be stdout or syslog, got %q", c.Log.Output))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Pattern returns the configured ring pattern.
func (c *Config) Pattern() (chime.Pattern, error) {
	return chime.ParsePattern(c.Chime.Pattern, c.Chime.Pulse)
}

// ButtonAddress returns the configured flic button address.
func (c *Config) ButtonAddress() (flic.ButtonAddress, error) {
	return flic.ParseButtonAddress(c.Flic.Button)
}

// Latency returns the configured flic latency mode.
func (c *Config) Latency() (flic.LatencyMode, error) {
	return flic.ParseLatencyMode(c.Flic.Latency)
}

// PullMode returns the configured input bias.
func (c *Config) PullMode() (gpio.Pull, error) {
	return gpio.ParsePull(c.GPIO.Pull)
}
