package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rybolov/Can-Hax/errors"
	"github.com/rybolov/Can-Hax/fuzz"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "canhax.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newLoader(env map[string]string) *Loader {
	l := NewLoader()
	l.getenv = func(k string) string { return env[k] }
	return l
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20*time.Second, cfg.Fuzz.Delay.Std())
	assert.Equal(t, TransportCansend, cfg.Transport.Kind)
	assert.Equal(t, fuzz.ModeFull, cfg.Mode())
}

func TestLoader_ThresholdKeyIgnored(t *testing.T) {
	path := writeFile(t, "error_threshold: 1\nfuzz:\n  interface: vcan0\n")
	l := newLoader(nil)
	l.AddLayer(path)

	cfg, err := l.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "vcan0", cfg.Fuzz.Interface)
	assert.NotContains(t, cfg.String(), "threshold")
}

func TestLoader_FileLayer(t *testing.T) {
	path := writeFile(t, `
fuzz:
  interface: vcan0
  mode: adaptive
  delay: 250ms
transport:
  kind: udp
  udp:
    address: 127.0.0.1:20000
  retry:
    max_retries: 4
    initial_delay: 10ms
log:
  level: debug
`)
	l := newLoader(nil)
	l.AddLayer(path)

	cfg, err := l.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "vcan0", cfg.Fuzz.Interface)
	assert.Equal(t, fuzz.ModeAdaptive, cfg.Mode())
	assert.Equal(t, 250*time.Millisecond, cfg.Fuzz.Delay.Std())
	assert.Equal(t, "127.0.0.1:20000", cfg.Transport.UDP.Address)
	assert.Equal(t, 4, cfg.Transport.Retry.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, cfg.Transport.Retry.InitialDelay)
	// Untouched fields keep their defaults
	assert.Equal(t, time.Second, cfg.Transport.Retry.MaxDelay)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoader_BareNumberDelayIsSeconds(t *testing.T) {
	l := newLoader(nil)
	l.AddLayer(writeFile(t, "fuzz:\n  delay: 3\n"))

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Fuzz.Delay.Std())
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	l := newLoader(map[string]string{
		"CANHAX_TRANSPORT":     "nats",
		"CANHAX_NATS_URL":      "nats://bench:4222",
		"CANHAX_CAN_INTERFACE": "can1",
		"CANHAX_DELAY":         "0.5",
		"CANHAX_DRY_RUN":       "true",
	})
	l.AddLayer(writeFile(t, "fuzz:\n  interface: vcan0\n"))

	cfg, err := l.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, TransportNATS, cfg.Transport.Kind)
	assert.Equal(t, "nats://bench:4222", cfg.Transport.NATS.URL)
	assert.Equal(t, "can1", cfg.Fuzz.Interface)
	assert.Equal(t, 500*time.Millisecond, cfg.Fuzz.Delay.Std())
	assert.True(t, cfg.Fuzz.DryRun)

	s, err := cfg.TransportSettings("run-7")
	require.NoError(t, err)
	assert.Nil(t, s.TLS)
	assert.Equal(t, "nats://bench:4222", s.NATSURL)
	assert.Equal(t, "run-7", s.RunID)
}

func TestLoader_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		l := newLoader(nil)
		l.AddLayer(filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := l.Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrMissingConfig)
		assert.True(t, errors.IsFatal(err))
	})

	t.Run("bad yaml", func(t *testing.T) {
		l := newLoader(nil)
		l.AddLayer(writeFile(t, "fuzz: [unclosed\n"))
		_, err := l.Load()
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	})

	t.Run("bad env delay", func(t *testing.T) {
		_, err := newLoader(map[string]string{"CANHAX_DELAY": "soon"}).Load()
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	})

	t.Run("bad env dry run", func(t *testing.T) {
		_, err := newLoader(map[string]string{"CANHAX_DRY_RUN": "maybe"}).Load()
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Fuzz.Mode = "turbo" }},
		{"bad identifier", func(c *Config) { c.Fuzz.Identifier = "12G" }},
		{"negative delay", func(c *Config) { c.Fuzz.Delay = Duration(-time.Second) }},
		{"unknown transport", func(c *Config) { c.Transport.Kind = "serial" }},
		{"udp without address", func(c *Config) { c.Transport.Kind = TransportUDP }},
		{"websocket without url", func(c *Config) { c.Transport.Kind = TransportWebSocket }},
		{"nats without url", func(c *Config) { c.Transport.Kind = TransportNATS; c.Transport.NATS.URL = "" }},
		{"empty cansend path", func(c *Config) { c.Transport.CansendPath = "" }},
		{"negative retries", func(c *Config) { c.Transport.Retry.MaxRetries = -1 }},
		{"bad location", func(c *Config) { c.Fingerprint.Location = "Mars/Olympus" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
		})
	}
}

func TestParseTiming(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"20", 20 * time.Second, false},
		{"0", 0, false},
		{"1.5", 1500 * time.Millisecond, false},
		{"250ms", 250 * time.Millisecond, false},
		{"1m", time.Minute, false},
		{" 2s ", 2 * time.Second, false},
		{"", 0, true},
		{"-1", 0, true},
		{"-5s", 0, true},
		{"later", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTiming(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestString_RoundTrips(t *testing.T) {
	cfg := Default()
	cfg.Fuzz.Delay = Duration(1500 * time.Millisecond)
	path := writeFile(t, cfg.String())

	l := newLoader(nil)
	l.AddLayer(path)
	loaded, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.Fuzz, loaded.Fuzz)
	assert.Equal(t, cfg.Transport.Kind, loaded.Transport.Kind)
}

func TestTransportSettings_TLS(t *testing.T) {
	cfg := Default()
	cfg.Transport.TLS.InsecureSkipVerify = true

	s, err := cfg.TransportSettings("")
	require.NoError(t, err)
	require.NotNil(t, s.TLS)
	assert.True(t, s.TLS.InsecureSkipVerify)

	cfg.Transport.TLS.CAFiles = []string{filepath.Join(t.TempDir(), "absent.pem")}
	_, err = cfg.TransportSettings("")
	assert.Error(t, err)
}

func TestExampleConfig(t *testing.T) {
	l := newLoader(nil)
	l.AddLayer(filepath.Join("..", "configs", "example.yaml"))

	cfg, err := l.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2*time.Second, cfg.Fuzz.Delay.Std())
	assert.Equal(t, fuzz.ModeAdaptive, cfg.Mode())
}
