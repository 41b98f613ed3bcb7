package poolregistry

import "github.com/Swind/go-pool-registry/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the poolregistry package for most use cases.

// Task is the unit of work
type Task = core.Task

// Registry owns a set of named pools
type Registry = core.Registry

// RegistryOption configures a Registry
type RegistryOption = core.RegistryOption

// PoolConfig configures one named pool
type PoolConfig = core.PoolConfig

// PoolStats is a point-in-time copy of one pool's statistics
type PoolStats = core.PoolStats

// PoolState is the lifecycle state of a pool
type PoolState = core.PoolState

// Future is the pending outcome of a submitted task
type Future = core.Future

// Value is the pending result of a task submitted with SubmitValue
type Value[T any] = core.Value[T]

// TaskWithResult is a unit of work that produces a value
type TaskWithResult[T any] = core.TaskWithResult[T]

// TaskError wraps the failure of a task
type TaskError = core.TaskError

// TaskID identifies a submitted task
type TaskID = core.TaskID

// SaturationPolicy selects what a saturated pool does with new work
type SaturationPolicy = core.SaturationPolicy

// DefaultPoolName is the reserved name of the registry's default pool
const DefaultPoolName = core.DefaultPoolName

// Saturation policies
const (
	SaturationAbort         = core.SaturationAbort
	SaturationCallerRuns    = core.SaturationCallerRuns
	SaturationDiscard       = core.SaturationDiscard
	SaturationDiscardOldest = core.SaturationDiscardOldest
)

// Registry constructors and options
var (
	NewRegistry           = core.NewRegistry
	DefaultPoolConfig     = core.DefaultPoolConfig
	WithLogger            = core.WithLogger
	WithReadyTimeout      = core.WithReadyTimeout
	WithMetrics           = core.WithMetrics
	WithPanicHandler      = core.WithPanicHandler
	WithRejectedHandler   = core.WithRejectedTaskHandler
	WithPrepareHook       = core.WithPrepareHook
	WithDefaultPoolConfig = core.WithDefaultPoolConfig
	WithHistoryCapacity   = core.WithHistoryCapacity
)

// Error sentinels
var (
	ErrNameReserved    = core.ErrNameReserved
	ErrPoolExists      = core.ErrPoolExists
	ErrInvalidConfig   = core.ErrInvalidConfig
	ErrPoolNotFound    = core.ErrPoolNotFound
	ErrNotReadyTimeout = core.ErrNotReadyTimeout
	ErrRejected        = core.ErrRejected
	ErrTaskDiscarded   = core.ErrTaskDiscarded
)

// SubmitValue runs fn on the named pool of r and returns its pending result.
func SubmitValue[T any](r *Registry, name string, fn TaskWithResult[T]) (*Value[T], error) {
	return core.SubmitValue(r, name, fn)
}
