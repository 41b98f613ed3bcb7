package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Swind/go-pool-registry/core"
	"gopkg.in/yaml.v3"
)

type File struct {
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Registry RegistryConfig `yaml:"registry"`
	Pools    []PoolConfig   `yaml:"pools"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MetricsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Namespace    string        `yaml:"namespace"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type RegistryConfig struct {
	ReadyTimeout time.Duration    `yaml:"ready_timeout"`
	Debug        bool             `yaml:"debug"`
	DefaultPool  *core.PoolConfig `yaml:"default_pool,omitempty"`

	// HistoryCapacity is nil when unset; 0 turns the history off.
	HistoryCapacity *int `yaml:"history_capacity,omitempty"`
}

// PoolConfig is one named pool of the pools list.
type PoolConfig struct {
	Name            string `yaml:"name"`
	core.PoolConfig `yaml:",inline"`
}

// Load reads a YAML file, expanding ${VAR} references from the environment.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*File, error) {
	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *File {
	cfg := &File{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *File) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "poolregistry"
	}
	if cfg.Metrics.PollInterval == 0 {
		cfg.Metrics.PollInterval = 5 * time.Second
	}
	if cfg.Registry.ReadyTimeout == 0 {
		cfg.Registry.ReadyTimeout = core.DefaultReadyTimeout
	}
	if cfg.Registry.HistoryCapacity == nil {
		n := core.DefaultHistoryCapacity
		cfg.Registry.HistoryCapacity = &n
	}
	for i := range cfg.Pools {
		p := &cfg.Pools[i].PoolConfig
		if p.MaxSize == 0 {
			p.MaxSize = max(p.CoreSize, 1)
		}
		if p.KeepAlive == 0 {
			p.KeepAlive = core.DefaultKeepAlive
		}
	}
}

// Validate checks every pool entry. All problems are reported together.
func (f *File) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(f.Pools))

	for i, p := range f.Pools {
		switch {
		case p.Name == "":
			errs = append(errs, fmt.Errorf("pools[%d]: %w: missing name", i, core.ErrInvalidConfig))
			continue
		case p.Name == core.DefaultPoolName:
			errs = append(errs, fmt.Errorf("pools[%d]: %q: %w", i, p.Name, core.ErrNameReserved))
			continue
		case seen[p.Name]:
			errs = append(errs, fmt.Errorf("pools[%d]: %q: %w", i, p.Name, core.ErrPoolExists))
			continue
		}
		seen[p.Name] = true

		if err := p.PoolConfig.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("pools[%d] %q: %w", i, p.Name, err))
		}
	}

	if dp := f.Registry.DefaultPool; dp != nil {
		if err := dp.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("registry.default_pool: %w", err))
		}
	}
	if hc := f.Registry.HistoryCapacity; hc != nil && *hc < 0 {
		errs = append(errs, fmt.Errorf("registry.history_capacity: %w: negative", core.ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// Logger returns the logger the registry section asks for.
func (f *File) Logger() core.Logger {
	if f.Registry.Debug {
		return core.NewDebugLogger()
	}
	return core.NewDefaultLogger()
}

// RegistryOptions converts the registry section to core options. extra are
// appended last and win over the file.
func (f *File) RegistryOptions(extra ...core.RegistryOption) []core.RegistryOption {
	opts := []core.RegistryOption{
		core.WithLogger(f.Logger()),
		core.WithReadyTimeout(f.Registry.ReadyTimeout),
	}
	if hc := f.Registry.HistoryCapacity; hc != nil {
		opts = append(opts, core.WithHistoryCapacity(*hc))
	}
	if f.Registry.DefaultPool != nil {
		opts = append(opts, core.WithDefaultPoolConfig(*f.Registry.DefaultPool))
	}
	return append(opts, extra...)
}

// Apply creates every configured pool on reg. It keeps going after a
// failure and returns all errors joined.
func (f *File) Apply(reg *core.Registry) error {
	var errs []error
	for _, p := range f.Pools {
		if err := reg.CreatePool(p.Name, p.PoolConfig); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
