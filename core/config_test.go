package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestPoolConfig_Validate(t *testing.T) {
	valid := PoolConfig{CoreSize: 2, MaxSize: 4, KeepAlive: time.Second, QueueCapacity: 10}

	tests := []struct {
		name    string
		mutate  func(*PoolConfig)
		wantErr bool
	}{
		{"valid", func(c *PoolConfig) {}, false},
		{"zero core", func(c *PoolConfig) { c.CoreSize = 0 }, false},
		{"negative core", func(c *PoolConfig) { c.CoreSize = -1 }, true},
		{"zero max", func(c *PoolConfig) { c.CoreSize, c.MaxSize = 0, 0 }, true},
		{"max below core", func(c *PoolConfig) { c.MaxSize = 1 }, true},
		{"negative keep-alive", func(c *PoolConfig) { c.KeepAlive = -time.Second }, true},
		{"negative ready timeout", func(c *PoolConfig) { c.ReadyTimeout = -time.Second }, true},
		{"priority too high", func(c *PoolConfig) { c.Priority = 11 }, true},
		{"priority in range", func(c *PoolConfig) { c.Priority = MaxPriority }, false},
		{"unknown policy", func(c *PoolConfig) { c.Saturation = SaturationPolicy(99) }, true},
		{"hand-off queue", func(c *PoolConfig) { c.QueueCapacity = 0 }, false},
		{"unbounded queue", func(c *PoolConfig) { c.QueueCapacity = UnboundedQueue }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultPoolConfig().Validate() = %v", err)
	}
	if !cfg.Daemon {
		t.Error("default pool config should be daemon")
	}
	if cfg.QueueCapacity != UnboundedQueue {
		t.Errorf("QueueCapacity = %d, want unbounded", cfg.QueueCapacity)
	}
}

func TestSaturationPolicy_Parse(t *testing.T) {
	tests := []struct {
		in   string
		want SaturationPolicy
	}{
		{"abort", SaturationAbort},
		{"", SaturationAbort},
		{"caller-runs", SaturationCallerRuns},
		{"CALLER_RUNS", SaturationCallerRuns},
		{"discard", SaturationDiscard},
		{" discard-oldest ", SaturationDiscardOldest},
	}
	for _, tt := range tests {
		got, err := ParseSaturationPolicy(tt.in)
		if err != nil {
			t.Errorf("ParseSaturationPolicy(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSaturationPolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseSaturationPolicy("block"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("ParseSaturationPolicy(block) error = %v, want ErrInvalidConfig", err)
	}
}

func TestSaturationPolicy_JSON(t *testing.T) {
	// Given: A config with a non-default policy
	cfg := PoolConfig{CoreSize: 1, MaxSize: 1, Saturation: SaturationDiscardOldest}

	// When: It is encoded and decoded
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got PoolConfig
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	// Then: The policy survives in its text form
	if got.Saturation != SaturationDiscardOldest {
		t.Errorf("Saturation = %v, want discard-oldest", got.Saturation)
	}
}

func TestPoolState_String(t *testing.T) {
	want := map[PoolState]string{
		StateNew:       "NEW",
		StatePreparing: "PREPARING",
		StateReady:     "READY",
		StateStopping:  "STOPPING",
		PoolState(9):   "PoolState(9)",
	}
	for s, name := range want {
		if s.String() != name {
			t.Errorf("%d.String() = %q, want %q", int32(s), s.String(), name)
		}
	}
}

func TestErrorClassification(t *testing.T) {
	err := poolError("create", "p1", ErrPoolExists)

	if !IsConfigurationError(err) {
		t.Error("IsConfigurationError(ErrPoolExists) = false")
	}
	if IsNotFound(err) {
		t.Error("IsNotFound(ErrPoolExists) = true")
	}

	var pe *PoolError
	if !errors.As(err, &pe) || pe.Pool != "p1" || pe.Op != "create" {
		t.Errorf("errors.As PoolError = %+v", pe)
	}

	if !IsNotFound(poolError("submit", "x", ErrPoolNotFound)) {
		t.Error("IsNotFound(ErrPoolNotFound) = false")
	}
}
