package core

import (
	"fmt"
	"strings"
)

// SaturationPolicy selects what a pool does with a task that finds the
// queue full and every worker slot taken.
type SaturationPolicy int

const (
	// SaturationAbort rejects the task with ErrRejected.
	SaturationAbort SaturationPolicy = iota

	// SaturationCallerRuns runs the task on the submitting goroutine.
	SaturationCallerRuns

	// SaturationDiscard drops the task.
	SaturationDiscard

	// SaturationDiscardOldest drops the oldest queued task and retries.
	SaturationDiscardOldest
)

var saturationNames = map[SaturationPolicy]string{
	SaturationAbort:         "abort",
	SaturationCallerRuns:    "caller-runs",
	SaturationDiscard:       "discard",
	SaturationDiscardOldest: "discard-oldest",
}

func (p SaturationPolicy) String() string {
	if name, ok := saturationNames[p]; ok {
		return name
	}
	return fmt.Sprintf("SaturationPolicy(%d)", int(p))
}

// ParseSaturationPolicy parses the text form of a policy. Matching is case
// insensitive and accepts underscores in place of dashes.
func ParseSaturationPolicy(s string) (SaturationPolicy, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	if norm == "" {
		return SaturationAbort, nil
	}
	for p, name := range saturationNames {
		if name == norm {
			return p, nil
		}
	}
	return SaturationAbort, fmt.Errorf("%w: unknown saturation policy %q", ErrInvalidConfig, s)
}

func (p SaturationPolicy) MarshalText() ([]byte, error) {
	if _, ok := saturationNames[p]; !ok {
		return nil, fmt.Errorf("%w: unknown saturation policy %d", ErrInvalidConfig, int(p))
	}
	return []byte(p.String()), nil
}

func (p *SaturationPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseSaturationPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
