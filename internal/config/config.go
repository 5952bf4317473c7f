package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	PolicyShutdown = "shutdown"
	PolicyStale    = "stale"
)

type Config struct {
	APIPort           int       `yaml:"api_port" validate:"min=1,max=65535"`
	ListenHost        string    `yaml:"listen_host"`
	SampleIntervalSec int       `yaml:"sample_interval_sec" validate:"min=1"`
	GPUIntervalSec    int       `yaml:"gpu_interval_sec" validate:"min=1"`
	ProbeTimeoutSec   int       `yaml:"probe_timeout_sec" validate:"min=1,max=30"`
	ShutdownGraceSec  int       `yaml:"shutdown_grace_sec" validate:"min=1,max=60"`
	LogEnabled        bool      `yaml:"log_enabled"`
	ConsoleLog        bool      `yaml:"console_log"`
	Debug             bool      `yaml:"debug"`
	LogDir            string    `yaml:"log_dir"`
	RetentionDays     int       `yaml:"retention_days" validate:"min=1"`
	CORS              bool      `yaml:"cors"`
	NetworkInterface  string    `yaml:"network_interface"`
	Monitor           Monitor   `yaml:"monitor"`
	Heartbeat         Heartbeat `yaml:"heartbeat"`
	Web               Web       `yaml:"web"`
	Display           Display   `yaml:"display"`
	RateLimit         RateLimit `yaml:"rate_limit"`
}

type Monitor struct {
	CPU     bool `yaml:"cpu"`
	Memory  bool `yaml:"memory"`
	Network bool `yaml:"network"`
	Disk    bool `yaml:"disk"`
	GPU     bool `yaml:"gpu"`
}

// Heartbeat configures the upstream liveness check. When the upstream has
// not answered successfully for FailureTimeoutSec the OnFailure policy applies.
type Heartbeat struct {
	Enabled           bool   `yaml:"enabled"`
	URL               string `yaml:"url" validate:"omitempty,url"`
	IntervalSec       int    `yaml:"interval_sec" validate:"min=1"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec" validate:"min=1"`
	FailureTimeoutSec int    `yaml:"failure_timeout_sec" validate:"min=1"`
	OnFailure         string `yaml:"on_failure" validate:"oneof=shutdown stale"`
}

type Web struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port" validate:"min=1,max=65535"`
	Root    string `yaml:"root"`
}

// Display is passed through verbatim to dashboard clients.
type Display struct {
	Node   string `yaml:"node" json:"node"`
	BG     string `yaml:"bg" json:"bg"`
	Footer string `yaml:"footer" json:"footer"`
}

// RateLimit is applied per client IP. Zero RequestsPerMinute disables it.
type RateLimit struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"min=0"`
	Burst             int `yaml:"burst" validate:"min=0"`
}

var validate = validator.New()

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{
		ListenHost: "0.0.0.0",
		LogEnabled: true,
		ConsoleLog: true,
		CORS:       true,
		Monitor: Monitor{
			CPU:     true,
			Memory:  true,
			Network: true,
			Disk:    true,
		},
		Heartbeat: Heartbeat{
			URL: "http://127.0.0.1:8080/",
		},
		RateLimit: RateLimit{
			RequestsPerMinute: 600,
			Burst:             20,
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads path over the defaults. A missing file is not an error:
// the defaults are returned and callers can use Exists to decide whether to
// write them back.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Exists reports whether a config file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.APIPort <= 0 {
		c.APIPort = 8000
	}
	if c.SampleIntervalSec <= 0 {
		c.SampleIntervalSec = 1
	}
	if c.GPUIntervalSec <= 0 {
		c.GPUIntervalSec = 5
	}
	if c.ProbeTimeoutSec <= 0 {
		c.ProbeTimeoutSec = 2
	}
	if c.ShutdownGraceSec <= 0 {
		c.ShutdownGraceSec = 2
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 7
	}
	if c.Heartbeat.IntervalSec <= 0 {
		c.Heartbeat.IntervalSec = 3
	}
	if c.Heartbeat.RequestTimeoutSec <= 0 {
		c.Heartbeat.RequestTimeoutSec = 2
	}
	if c.Heartbeat.FailureTimeoutSec <= 0 {
		c.Heartbeat.FailureTimeoutSec = 10
	}
	if c.Heartbeat.OnFailure == "" {
		c.Heartbeat.OnFailure = PolicyShutdown
	}
	c.Heartbeat.OnFailure = strings.ToLower(c.Heartbeat.OnFailure)
	if c.Web.Port <= 0 {
		c.Web.Port = 8001
	}
	if c.Web.Root == "" {
		c.Web.Root = "web"
	}
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	if c.Heartbeat.Enabled && c.Heartbeat.URL == "" {
		return fmt.Errorf("heartbeat.url is required when heartbeat is enabled")
	}
	if c.Web.Enabled && c.Web.Port == c.APIPort {
		return fmt.Errorf("web.port must differ from api_port")
	}
	if c.RateLimit.RequestsPerMinute > 0 && c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.burst must be positive when rate limiting is enabled")
	}
	return nil
}

func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalSec) * time.Second
}

func (c *Config) GPUInterval() time.Duration {
	return time.Duration(c.GPUIntervalSec) * time.Second
}

func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSec) * time.Second
}

func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSec) * time.Second
}

func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.APIPort)
}

func (c *Config) WebAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.Web.Port)
}

func (h Heartbeat) Interval() time.Duration {
	return time.Duration(h.IntervalSec) * time.Second
}

func (h Heartbeat) RequestTimeout() time.Duration {
	return time.Duration(h.RequestTimeoutSec) * time.Second
}

func (h Heartbeat) FailureTimeout() time.Duration {
	return time.Duration(h.FailureTimeoutSec) * time.Second
}
