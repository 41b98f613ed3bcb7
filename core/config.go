package core

import (
	"fmt"
	"runtime"
	"time"
)

const (
	// DefaultPoolName is reserved for the registry's default pool.
	DefaultPoolName = "default"

	// DefaultReadyTimeout bounds how long a submission waits for a pool to
	// become ready.
	DefaultReadyTimeout = 1000 * time.Millisecond

	DefaultKeepAlive = 60 * time.Second

	// UnboundedQueue as QueueCapacity buffers without limit.
	UnboundedQueue = -1
)

// PoolConfig configures one named pool.
type PoolConfig struct {
	// CoreSize workers are kept alive while idle.
	CoreSize int `json:"core_size" yaml:"core_size"`

	// MaxSize bounds the number of workers. Workers above CoreSize exit
	// after KeepAlive without work.
	MaxSize int `json:"max_size" yaml:"max_size"`

	KeepAlive time.Duration `json:"keep_alive" yaml:"keep_alive"`

	// QueueCapacity: 0 hands tasks directly to idle workers, a negative
	// value is unbounded.
	QueueCapacity int `json:"queue_capacity" yaml:"queue_capacity"`

	Saturation SaturationPolicy `json:"saturation" yaml:"saturation"`

	// Daemon workers are not waited for when the registry closes.
	Daemon bool `json:"daemon" yaml:"daemon"`

	// Priority in [MinPriority, MaxPriority]; 0 means NormPriority.
	Priority int `json:"priority" yaml:"priority"`

	// ReadyTimeout overrides the registry's readiness timeout when > 0.
	ReadyTimeout time.Duration `json:"ready_timeout" yaml:"ready_timeout"`
}

// DefaultPoolConfig returns the configuration of the default pool: one
// core worker per GOMAXPROCS, twice that at most, unbounded queue.
func DefaultPoolConfig() PoolConfig {
	procs := runtime.GOMAXPROCS(0)
	return PoolConfig{
		CoreSize:      procs,
		MaxSize:       procs * 2,
		KeepAlive:     DefaultKeepAlive,
		QueueCapacity: UnboundedQueue,
		Saturation:    SaturationAbort,
		Daemon:        true,
		Priority:      NormPriority,
	}
}

// Validate checks the configuration.
func (c PoolConfig) Validate() error {
	switch {
	case c.CoreSize < 0:
		return fmt.Errorf("%w: core size %d is negative", ErrInvalidConfig, c.CoreSize)
	case c.MaxSize < 1:
		return fmt.Errorf("%w: max size %d must be at least 1", ErrInvalidConfig, c.MaxSize)
	case c.MaxSize < c.CoreSize:
		return fmt.Errorf("%w: max size %d is below core size %d", ErrInvalidConfig, c.MaxSize, c.CoreSize)
	case c.KeepAlive < 0:
		return fmt.Errorf("%w: keep-alive %v is negative", ErrInvalidConfig, c.KeepAlive)
	case c.ReadyTimeout < 0:
		return fmt.Errorf("%w: ready timeout %v is negative", ErrInvalidConfig, c.ReadyTimeout)
	case c.Priority != 0 && (c.Priority < MinPriority || c.Priority > MaxPriority):
		return fmt.Errorf("%w: priority %d outside [%d, %d]", ErrInvalidConfig, c.Priority, MinPriority, MaxPriority)
	}
	if _, ok := saturationNames[c.Saturation]; !ok {
		return fmt.Errorf("%w: unknown saturation policy %d", ErrInvalidConfig, int(c.Saturation))
	}
	return nil
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Priority == 0 {
		c.Priority = NormPriority
	}
	return c
}
