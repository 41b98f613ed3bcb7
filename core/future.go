package core

import (
	"context"
	"sync"
)

// Value is the pending result of a task submitted with SubmitValue. It
// completes once: with the task's value, with its *TaskError, or with
// ErrTaskDiscarded if the task never ran.
type Value[T any] struct {
	id   TaskID
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

// Future is the pending outcome of a task submitted with Registry.Submit.
type Future = Value[struct{}]

func newValue[T any]() *Value[T] {
	return &Value[T]{done: make(chan struct{})}
}

func (v *Value[T]) bind(id TaskID) {
	v.id = id
}

func (v *Value[T]) complete(val T, err error) {
	v.once.Do(func() {
		v.val = val
		v.err = err
		close(v.done)
	})
}

// ID returns the id of the submitted task.
func (v *Value[T]) ID() TaskID {
	return v.id
}

// Done is closed when the task has finished or was discarded.
func (v *Value[T]) Done() <-chan struct{} {
	return v.done
}

// Get blocks until the task finishes or ctx is done.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-v.done:
		return v.val, v.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait blocks until the task finishes and returns its failure, if any.
func (v *Value[T]) Wait(ctx context.Context) error {
	_, err := v.Get(ctx)
	return err
}

// Err returns the task's failure without blocking. It is nil while the task
// is pending.
func (v *Value[T]) Err() error {
	select {
	case <-v.done:
		return v.err
	default:
		return nil
	}
}

// taskErr converts a possibly nil *TaskError to an error.
func taskErr(terr *TaskError) error {
	if terr == nil {
		return nil
	}
	return terr
}
