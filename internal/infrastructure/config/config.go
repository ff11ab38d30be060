package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all host configuration.
type Config struct {
	Worker     WorkerConfig     `yaml:"worker"`
	Window     WindowConfig     `yaml:"window"`
	Extensions ExtensionsConfig `yaml:"extensions"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Sandbox    SandboxConfig    `yaml:"sandbox"`
	Prefs      PrefsConfig      `yaml:"prefs"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LogConfig        `yaml:"logging"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

// WorkerConfig holds worker process configuration.
type WorkerConfig struct {
	Command      string        `envconfig:"WORKER_CMD" default:"keylog-worker" yaml:"command"`
	Args         []string      `envconfig:"WORKER_ARGS" yaml:"args"`
	Dir          string        `envconfig:"WORKER_DIR" yaml:"dir"`
	WriteTimeout time.Duration `envconfig:"WORKER_WRITE_TIMEOUT" default:"5ms" yaml:"write_timeout"`
	StopGrace    time.Duration `envconfig:"WORKER_STOP_GRACE" default:"3s" yaml:"stop_grace"`
	GateFailures uint32        `envconfig:"WORKER_GATE_FAILURES" default:"5" yaml:"gate_failures"`
	GateTimeout  time.Duration `envconfig:"WORKER_GATE_TIMEOUT" default:"2s" yaml:"gate_timeout"`
}

// WindowConfig holds display surface configuration.
type WindowConfig struct {
	ContentPath   string   `envconfig:"CONTENT_PATH" default:"index.html" yaml:"content_path"`
	AllowExternal []string `envconfig:"ALLOW_EXTERNAL" yaml:"allow_external"`
	Fullscreen    bool     `envconfig:"START_FULLSCREEN" default:"false" yaml:"fullscreen"`
}

// ExtensionsConfig holds extension module discovery configuration.
type ExtensionsConfig struct {
	Dir    string `envconfig:"MODS_DIR" default:"mods" yaml:"dir"`
	Suffix string `envconfig:"MODS_SUFFIX" default:".js" yaml:"suffix"`
}

// BridgeConfig holds capability bridge configuration.
type BridgeConfig struct {
	AppRoot   string   `envconfig:"APP_ROOT" default:"." yaml:"app_root"`
	ImageExts []string `envconfig:"IMAGE_EXTS" default:".png,.jpg,.jpeg,.gif,.webp" yaml:"image_exts"`
}

// SandboxConfig holds page runtime limits.
type SandboxConfig struct {
	InjectTimeout   time.Duration `envconfig:"INJECT_TIMEOUT" default:"5s" yaml:"inject_timeout"`
	CallbackTimeout time.Duration `envconfig:"CALLBACK_TIMEOUT" default:"1s" yaml:"callback_timeout"`
	WaitInterval    time.Duration `envconfig:"WAIT_INTERVAL" default:"500ms" yaml:"wait_interval"`
	WaitAttempts    int           `envconfig:"WAIT_ATTEMPTS" default:"40" yaml:"wait_attempts"`
}

// PrefsConfig holds preference store configuration.
type PrefsConfig struct {
	Path string `envconfig:"PREFS_PATH" default:"prefs.toml" yaml:"path"`
}

// ServerConfig holds control server configuration.
type ServerConfig struct {
	Enabled bool   `envconfig:"SERVER_ENABLED" default:"true" yaml:"enabled"`
	Port    string `envconfig:"PORT" default:"8765" yaml:"port"`
	Host    string `envconfig:"HOST" default:"127.0.0.1" yaml:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile reads a YAML file over Default. Keys absent from the file keep their
// default values; the environment is not consulted.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Worker: WorkerConfig{
			Command:      "keylog-worker",
			WriteTimeout: 5 * time.Millisecond,
			StopGrace:    3 * time.Second,
			GateFailures: 5,
			GateTimeout:  2 * time.Second,
		},
		Window: WindowConfig{
			ContentPath: "index.html",
		},
		Extensions: ExtensionsConfig{
			Dir:    "mods",
			Suffix: ".js",
		},
		Bridge: BridgeConfig{
			AppRoot:   ".",
			ImageExts: []string{".png", ".jpg", ".jpeg", ".gif", ".webp"},
		},
		Sandbox: SandboxConfig{
			InjectTimeout:   5 * time.Second,
			CallbackTimeout: time.Second,
			WaitInterval:    500 * time.Millisecond,
			WaitAttempts:    40,
		},
		Prefs: PrefsConfig{
			Path: "prefs.toml",
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    "8765",
			Host:    "127.0.0.1",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}

// Addr returns the control server listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}
