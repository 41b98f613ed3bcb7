package core

import (
	"context"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling panics that escape a task
// =============================================================================

// PanicHandler is the uncaught-panic hook of a pool's workers. It is called
// when a panic reaches the worker loop, for instance a task submitted with
// Registry.ExecuteOrRaise that failed. The worker keeps running afterwards.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a worker recovers a panic.
	//
	// Parameters:
	// - ctx: The context of the task that panicked
	// - poolName: The name of the pool owning the worker
	// - workerName: The name assigned by the thread factory
	// - panicInfo: The recovered value
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, poolName string, workerName string, panicInfo any, stackTrace []byte)
}

// LoggingPanicHandler reports worker panics to a Logger.
type LoggingPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic with its stack trace.
func (h *LoggingPanicHandler) HandlePanic(ctx context.Context, poolName string, workerName string, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("worker recovered from panic",
		F("pool", poolName),
		F("worker", workerName),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting task execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution performance.
type Metrics interface {
	// RecordTaskWait records how long a task sat in the pool before a
	// worker started it.
	RecordTaskWait(poolName string, wait time.Duration)

	// RecordTaskDuration records how long a task took to execute and
	// whether it succeeded.
	RecordTaskDuration(poolName string, duration time.Duration, succeeded bool)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(poolName string, panicInfo any)

	// RecordTaskRejected records that a task was rejected or discarded by
	// the saturation policy or by ShutdownNow.
	RecordTaskRejected(poolName string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskWait(poolName string, wait time.Duration) {}

func (m *NilMetrics) RecordTaskDuration(poolName string, duration time.Duration, succeeded bool) {}

func (m *NilMetrics) RecordTaskPanic(poolName string, panicInfo any) {}

func (m *NilMetrics) RecordTaskRejected(poolName string, reason string) {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when a task never runs. This can happen when:
// - The saturation policy aborts or discards it
// - ShutdownNow removes it from the queue
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	HandleRejectedTask(poolName string, id TaskID, reason string)
}

// LoggingRejectedTaskHandler logs rejected tasks at warn level.
type LoggingRejectedTaskHandler struct {
	Logger Logger
}

func (h *LoggingRejectedTaskHandler) HandleRejectedTask(poolName string, id TaskID, reason string) {
	if h.Logger == nil {
		return
	}
	h.Logger.Warn("task rejected", F("pool", poolName), F("task_id", id), F("reason", reason))
}
