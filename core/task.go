package core

import (
	"context"
	"strconv"
	"sync/atomic"
)

// Task is the unit of work (Closure). A non-nil error or a panic marks the
// task as failed.
type Task func(ctx context.Context) error

// TaskWithResult is a unit of work that produces a value.
type TaskWithResult[T any] func(ctx context.Context) (T, error)

// ErrorHandler receives the failure of a task submitted with
// Registry.ExecuteWithHandler.
type ErrorHandler func(err *TaskError)

// TaskID identifies a submitted task. IDs come from a single process-wide
// counter, so they are unique across every pool and increase in submission
// order.
type TaskID int64

var taskIDSeq atomic.Int64

// GenerateTaskID allocates the next task id.
func GenerateTaskID() TaskID {
	return TaskID(taskIDSeq.Add(1))
}

func (id TaskID) IsZero() bool {
	return id == 0
}

func (id TaskID) String() string {
	return "task-" + strconv.FormatInt(int64(id), 10)
}

// =============================================================================
// Context Helper
// =============================================================================

type taskInfoKeyType struct{}

var taskInfoKey taskInfoKeyType

type taskInfo struct {
	pool string
	id   TaskID
}

func withTaskInfo(ctx context.Context, pool string, id TaskID) context.Context {
	return context.WithValue(ctx, taskInfoKey, taskInfo{pool: pool, id: id})
}

// PoolNameFromContext returns the name of the pool running the current task.
func PoolNameFromContext(ctx context.Context) (string, bool) {
	info, ok := ctx.Value(taskInfoKey).(taskInfo)
	return info.pool, ok
}

// TaskIDFromContext returns the id of the current task.
func TaskIDFromContext(ctx context.Context) (TaskID, bool) {
	info, ok := ctx.Value(taskInfoKey).(taskInfo)
	return info.id, ok
}
