// Package config handles configuration for signup-runner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/signup-runner/pkg/core"
)

// Duration wraps time.Duration so YAML files can use "90s" / "500ms" forms.
type Duration time.Duration

// UnmarshalYAML parses a duration string or a bare number of seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}

	var secs float64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// MarshalYAML renders the duration in its string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DriverConfig selects and configures the automation driver.
type DriverConfig struct {
	Kind         string   `yaml:"kind"`         // uia2 or mock
	Socket       string   `yaml:"socket"`       // Unix socket path (Linux/Mac)
	Port         int      `yaml:"port"`         // TCP port when no socket is used
	ADBPath      string   `yaml:"adbPath"`      // adb binary, auto-detected when empty
	Serial       string   `yaml:"serial"`       // device serial, auto-detected when empty
	ImplicitWait Duration `yaml:"implicitWait"` // server-side element polling
}

// RetryConfig mirrors core.RetryPolicy with YAML-friendly durations.
type RetryConfig struct {
	MaxAttempts        int      `yaml:"maxAttempts"`
	BaseDelay          Duration `yaml:"baseDelay"`
	MaxDelay           Duration `yaml:"maxDelay"`
	CoordinateFallback *bool    `yaml:"coordinateFallback"`
	LowLevelFallback   *bool    `yaml:"lowLevelFallback"`
}

// StepConfig holds per-step timing budgets.
type StepConfig struct {
	Budget             Duration `yaml:"budget"`             // overall per-step budget
	ElementWait        Duration `yaml:"elementWait"`        // default waitForElement timeout
	PollInterval       Duration `yaml:"pollInterval"`       // waitForElement polling interval
	CaptchaHold        Duration `yaml:"captchaHold"`        // press-and-hold duration
	CaptchaConfirm     Duration `yaml:"captchaConfirm"`     // window to observe the post-captcha transition
	AuthWaitWindow     Duration `yaml:"authWaitWindow"`     // max wait for loading indicators to clear
	AuthWaitInterval   Duration `yaml:"authWaitInterval"`   // indicator polling interval
	PostAuthFastBudget Duration `yaml:"postAuthFastBudget"` // fast-path time budget
	PostAuthMaxNav     int      `yaml:"postAuthMaxNav"`     // exhaustive fallback attempt cap
}

// StoreConfig selects the result sink backend.
type StoreConfig struct {
	Backend     string `yaml:"backend"` // file, postgres, or redis
	FileDir     string `yaml:"fileDir"`
	PostgresDSN string `yaml:"postgresDSN"`
	RedisAddr   string `yaml:"redisAddr"`
	RedisDB     int    `yaml:"redisDB"`
}

// ServerConfig configures the REST surface.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Config is the full runner configuration (config.yaml).
type Config struct {
	Driver    DriverConfig `yaml:"driver"`
	Retry     RetryConfig  `yaml:"retry"`
	Steps     StepConfig   `yaml:"steps"`
	Store     StoreConfig  `yaml:"store"`
	Server    ServerConfig `yaml:"server"`
	LogPath   string       `yaml:"logPath"`
	Selectors string       `yaml:"selectors"` // optional catalog overlay file
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Driver: DriverConfig{
			Kind:         "uia2",
			Port:         6790,
			ImplicitWait: Duration(0),
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   Duration(500 * time.Millisecond),
			MaxDelay:    Duration(4 * time.Second),
		},
		Steps: StepConfig{
			Budget:             Duration(2 * time.Minute),
			ElementWait:        Duration(10 * time.Second),
			PollInterval:       Duration(500 * time.Millisecond),
			CaptchaHold:        Duration(15 * time.Second),
			CaptchaConfirm:     Duration(5 * time.Second),
			AuthWaitWindow:     Duration(90 * time.Second),
			AuthWaitInterval:   Duration(2 * time.Second),
			PostAuthFastBudget: Duration(7 * time.Second),
			PostAuthMaxNav:     8,
		},
		Store: StoreConfig{
			Backend: "file",
			FileDir: GetRunsDir(),
		},
		Server: ServerConfig{
			Port: 8080,
		},
		LogPath: GetLogPath(),
	}
}

// Load loads configuration from a file, layered over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory,
// falling back to the defaults when neither exists.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"config.yaml", "config.yml"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}
	return Default(), nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Driver.Kind {
	case "uia2", "mock":
	default:
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown driver kind %q", c.Driver.Kind))
	}

	switch c.Store.Backend {
	case "file", "postgres", "redis":
	default:
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown store backend %q", c.Store.Backend))
	}

	if c.Retry.MaxAttempts < 1 {
		return core.ErrInvalidConfig.WithMessage("retry.maxAttempts must be at least 1")
	}
	return nil
}

// RetryPolicy converts the retry section into the engine's policy type.
func (c *Config) RetryPolicy() core.RetryPolicy {
	p := core.DefaultRetryPolicy()
	if c.Retry.MaxAttempts > 0 {
		p.MaxAttempts = c.Retry.MaxAttempts
	}
	if c.Retry.BaseDelay > 0 {
		p.BaseDelay = c.Retry.BaseDelay.Std()
	}
	if c.Retry.MaxDelay > 0 {
		p.MaxDelay = c.Retry.MaxDelay.Std()
	}
	if c.Retry.CoordinateFallback != nil {
		p.CoordinateFallback = *c.Retry.CoordinateFallback
	}
	if c.Retry.LowLevelFallback != nil {
		p.LowLevelFallback = *c.Retry.LowLevelFallback
	}
	return p
}
