package core

import (
	"errors"
	"fmt"
)

// Registry and pool errors. Match them with errors.Is; the registry wraps
// them in a *PoolError that carries the operation and the pool name.
var (
	// Configuration errors.
	ErrNameReserved  = errors.New("pool name is reserved")
	ErrPoolExists    = errors.New("pool already exists")
	ErrInvalidConfig = errors.New("invalid pool config")

	// ErrPoolNotFound is returned for names that were never registered or
	// whose pool has been shut down.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrNotReadyTimeout is returned when a pool does not become ready
	// within the readiness timeout. The task is not enqueued.
	ErrNotReadyTimeout = errors.New("pool not ready before timeout")

	ErrPoolInitFailed = errors.New("pool initialization failed")
	ErrRejected       = errors.New("task rejected: pool saturated")
	ErrTaskDiscarded  = errors.New("task discarded before it started")
	ErrNilTask        = errors.New("task must not be nil")
	ErrRegistryClosed = errors.New("registry is closed")

	// errExecutorStopped is surfaced to callers as ErrPoolNotFound.
	errExecutorStopped = errors.New("executor is shut down")
)

// PoolError describes a failed registry operation on a named pool.
type PoolError struct {
	Op   string
	Pool string
	Err  error
}

func (e *PoolError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Pool, e.Err)
}

func (e *PoolError) Unwrap() error {
	return e.Err
}

func poolError(op, pool string, err error) error {
	return &PoolError{Op: op, Pool: pool, Err: err}
}

// IsConfigurationError reports whether err was caused by creating or
// targeting a pool with a reserved, duplicate or invalid configuration.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrNameReserved) ||
		errors.Is(err, ErrPoolExists) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsNotFound reports whether err was caused by an unknown or stopped pool.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPoolNotFound)
}

// TaskError wraps a failure raised by a unit of work, either a returned
// error or a recovered panic.
type TaskError struct {
	Pool   string
	TaskID TaskID
	Err    error
	Panic  any
	Stack  []byte
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("pool %q %s failed: %v", e.Pool, e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Panicked reports whether the task failed by panicking.
func (e *TaskError) Panicked() bool {
	return e.Panic != nil
}
