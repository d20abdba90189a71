// Package config holds the run configuration for Can-Hax. A Config is built
// once by the CLI from defaults, an optional YAML file, CANHAX_* environment
// variables and finally flags, then validated and passed to components.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rybolov/Can-Hax/errors"
	"github.com/rybolov/Can-Hax/frame"
	"github.com/rybolov/Can-Hax/fuzz"
	"github.com/rybolov/Can-Hax/pkg/tlsutil"
	"github.com/rybolov/Can-Hax/transport"
)

// Transport kinds.
const (
	TransportCansend   = "cansend"
	TransportNATS      = "nats"
	TransportUDP       = "udp"
	TransportWebSocket = "websocket"
)

// DefaultDelay is the pause after each fuzz frame.
const DefaultDelay = 20 * time.Second

// Config is the complete run configuration.
// The malformed-input threshold is not configurable; see errors.DefaultThreshold.
type Config struct {
	Fuzz        FuzzConfig        `yaml:"fuzz"`
	Transport   TransportConfig   `yaml:"transport"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	Log         LogConfig         `yaml:"log"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// FuzzConfig controls fuzz and zeroize runs.
type FuzzConfig struct {
	Interface  string   `yaml:"interface"`
	Identifier string   `yaml:"identifier,omitempty"`
	Mode       string   `yaml:"mode"`
	DryRun     bool     `yaml:"dry_run"`
	Delay      Duration `yaml:"delay"`
}

// TransportConfig selects and configures the frame transport.
type TransportConfig struct {
	Kind        string               `yaml:"kind"`
	CansendPath string               `yaml:"cansend_path"`
	NATS        NATSConfig           `yaml:"nats"`
	UDP         UDPConfig            `yaml:"udp"`
	WebSocket   WebSocketConfig      `yaml:"websocket"`
	Retry       errors.RetryConfig   `yaml:"retry"`
	TLS         tlsutil.ClientConfig `yaml:"tls,omitempty"`
}

// NATSConfig for the nats transport.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// UDPConfig for the udp transport.
type UDPConfig struct {
	Address string `yaml:"address"`
}

// WebSocketConfig for the websocket transport.
type WebSocketConfig struct {
	URL string `yaml:"url"`
}

// FingerprintConfig controls document generation.
type FingerprintConfig struct {
	Description string `yaml:"description,omitempty"`
	// Location is an IANA zone name for the capture date; empty means local time.
	Location string `yaml:"location,omitempty"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address; empty disables the endpoint.
	Addr string `yaml:"addr,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Fuzz: FuzzConfig{
			Mode:  fuzz.ModeFull.String(),
			Delay: Duration(DefaultDelay),
		},
		Transport: TransportConfig{
			Kind:        TransportCansend,
			CansendPath: "cansend",
			NATS: NATSConfig{
				URL:     "nats://localhost:4222",
				Subject: "canhax.tx",
			},
			Retry: errors.DefaultRetryConfig(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := fuzz.ParseMode(c.Fuzz.Mode); err != nil {
		return invalid("fuzz.mode", err.Error())
	}
	if c.Fuzz.Identifier != "" && !frame.ValidIdentifier(c.Fuzz.Identifier) {
		return invalid("fuzz.identifier", fmt.Sprintf("%q is not a 3-digit hex identifier", c.Fuzz.Identifier))
	}
	if c.Fuzz.Delay < 0 {
		return invalid("fuzz.delay", "cannot be negative")
	}

	switch c.Transport.Kind {
	case TransportCansend:
		if c.Transport.CansendPath == "" {
			return invalid("transport.cansend_path", "is required")
		}
	case TransportNATS:
		if c.Transport.NATS.URL == "" {
			return invalid("transport.nats.url", "is required")
		}
	case TransportUDP:
		if c.Transport.UDP.Address == "" {
			return invalid("transport.udp.address", "is required")
		}
	case TransportWebSocket:
		if c.Transport.WebSocket.URL == "" {
			return invalid("transport.websocket.url", "is required")
		}
	default:
		return invalid("transport.kind", fmt.Sprintf("unknown transport %q", c.Transport.Kind))
	}
	if c.Transport.Retry.MaxRetries < 0 {
		return invalid("transport.retry.max_retries", "cannot be negative")
	}

	if _, err := c.Fingerprint.TimeLocation(); err != nil {
		return invalid("fingerprint.location", err.Error())
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log.level", fmt.Sprintf("unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return invalid("log.format", fmt.Sprintf("unknown format %q", c.Log.Format))
	}
	return nil
}

func invalid(field, reason string) error {
	return fmt.Errorf("%w: %s %s", errors.ErrInvalidConfig, field, reason)
}

// TimeLocation resolves Location.
func (f FingerprintConfig) TimeLocation() (*time.Location, error) {
	if f.Location == "" {
		return time.Local, nil
	}
	return time.LoadLocation(f.Location)
}

// Mode returns the parsed fuzz mode. Call after Validate.
func (c *Config) Mode() fuzz.Mode {
	m, _ := fuzz.ParseMode(c.Fuzz.Mode)
	return m
}

// TransportSettings returns what transport factories need, loading any
// TLS material from disk.
func (c *Config) TransportSettings(runID string) (transport.Settings, error) {
	tlsConfig, err := tlsutil.LoadClientConfig(c.Transport.TLS)
	if err != nil {
		return transport.Settings{}, err
	}
	return transport.Settings{
		CansendPath:  c.Transport.CansendPath,
		NATSURL:      c.Transport.NATS.URL,
		NATSSubject:  c.Transport.NATS.Subject,
		RunID:        runID,
		UDPAddress:   c.Transport.UDP.Address,
		WebSocketURL: c.Transport.WebSocket.URL,
		TLS:          tlsConfig,
	}, nil
}

// String returns the YAML form of the config.
func (c *Config) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers    []string
	envPrefix string
	getenv    func(string) string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPrefix: "CANHAX",
		getenv:    os.Getenv,
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// Load applies defaults, every file layer, then environment overrides. The
// result is not validated; flags are expected to be applied first.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrMissingConfig, err),
				"Loader", "Load", "read "+path)
		}
		// Decoding onto the current value keeps fields the layer leaves out
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
				"Loader", "Load", "parse "+path)
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	str := map[string]*string{
		"_CAN_INTERFACE": &cfg.Fuzz.Interface,
		"_MODE":          &cfg.Fuzz.Mode,
		"_TRANSPORT":     &cfg.Transport.Kind,
		"_CANSEND_PATH":  &cfg.Transport.CansendPath,
		"_NATS_URL":      &cfg.Transport.NATS.URL,
		"_NATS_SUBJECT":  &cfg.Transport.NATS.Subject,
		"_UDP_ADDRESS":   &cfg.Transport.UDP.Address,
		"_WEBSOCKET_URL": &cfg.Transport.WebSocket.URL,
		"_LOG_LEVEL":     &cfg.Log.Level,
		"_LOG_FORMAT":    &cfg.Log.Format,
		"_METRICS_ADDR":  &cfg.Metrics.Addr,
		"_TIMEZONE":      &cfg.Fingerprint.Location,
	}
	for suffix, dst := range str {
		if val := l.getenv(l.envPrefix + suffix); val != "" {
			*dst = val
		}
	}

	if val := l.getenv(l.envPrefix + "_DELAY"); val != "" {
		d, err := ParseTiming(val)
		if err != nil {
			return errors.WrapFatal(fmt.Errorf("%w: %s_DELAY: %v", errors.ErrInvalidConfig, l.envPrefix, err),
				"Loader", "applyEnvOverrides", "parse delay")
		}
		cfg.Fuzz.Delay = Duration(d)
	}
	if val := l.getenv(l.envPrefix + "_DRY_RUN"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return errors.WrapFatal(fmt.Errorf("%w: %s_DRY_RUN: %v", errors.ErrInvalidConfig, l.envPrefix, err),
				"Loader", "applyEnvOverrides", "parse dry run")
		}
		cfg.Fuzz.DryRun = b
	}
	return nil
}
