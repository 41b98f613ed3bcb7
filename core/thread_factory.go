package core

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Thread priorities. NormPriority leaves the worker on a shared runtime
// thread; any other value dedicates an OS thread to the worker.
const (
	MinPriority  = 1
	NormPriority = 5
	MaxPriority  = 10
)

// Worker describes a goroutine started by a ThreadFactory.
type Worker struct {
	Name     string
	Seq      int64
	Pool     string
	Daemon   bool
	Priority int
}

// ThreadFactory starts the worker goroutines of one pool. Workers are named
// "<pool>-worker-<n>". Non-daemon workers are counted in a WaitGroup shared
// with the owning registry so teardown can wait for them; daemon workers
// are not waited for.
type ThreadFactory struct {
	pool     string
	daemon   bool
	priority int
	seq      atomic.Int64

	panicHandler PanicHandler
	logger       Logger
	nonDaemon    *sync.WaitGroup
}

// ThreadFactoryOption configures a ThreadFactory.
type ThreadFactoryOption func(*ThreadFactory)

// WithDaemon marks the factory's workers as daemon workers.
func WithDaemon(daemon bool) ThreadFactoryOption {
	return func(f *ThreadFactory) { f.daemon = daemon }
}

// WithPriority sets the workers' priority in [MinPriority, MaxPriority].
func WithPriority(priority int) ThreadFactoryOption {
	return func(f *ThreadFactory) { f.priority = priority }
}

// WithWorkerPanicHandler sets the uncaught-panic hook.
func WithWorkerPanicHandler(h PanicHandler) ThreadFactoryOption {
	return func(f *ThreadFactory) { f.panicHandler = h }
}

// WithWorkerLogger sets the logger used for priority failures.
func WithWorkerLogger(l Logger) ThreadFactoryOption {
	return func(f *ThreadFactory) { f.logger = l }
}

// WithNonDaemonGroup sets the WaitGroup that tracks non-daemon workers.
func WithNonDaemonGroup(wg *sync.WaitGroup) ThreadFactoryOption {
	return func(f *ThreadFactory) { f.nonDaemon = wg }
}

// NewThreadFactory creates a factory for the named pool.
func NewThreadFactory(pool string, opts ...ThreadFactoryOption) *ThreadFactory {
	f := &ThreadFactory{
		pool:     pool,
		priority: NormPriority,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.priority == 0 {
		f.priority = NormPriority
	}
	if f.logger == nil {
		f.logger = NewDefaultLogger()
	}
	if f.panicHandler == nil {
		f.panicHandler = &LoggingPanicHandler{Logger: f.logger}
	}
	return f
}

// Pool returns the name of the pool the factory serves.
func (f *ThreadFactory) Pool() string { return f.pool }

// Daemon reports whether the factory creates daemon workers.
func (f *ThreadFactory) Daemon() bool { return f.daemon }

// Priority returns the workers' priority.
func (f *ThreadFactory) Priority() int { return f.priority }

// Started returns how many workers the factory has created.
func (f *ThreadFactory) Started() int64 { return f.seq.Load() }

// NewWorker reserves the next worker name without starting anything.
func (f *ThreadFactory) NewWorker() Worker {
	n := f.seq.Add(1)
	return Worker{
		Name:     fmt.Sprintf("%s-worker-%d", f.pool, n),
		Seq:      n,
		Pool:     f.pool,
		Daemon:   f.daemon,
		Priority: f.priority,
	}
}

// Go starts fn on a new worker goroutine. A panic that escapes fn is passed
// to the panic handler instead of crashing the process.
func (f *ThreadFactory) Go(fn func(w Worker)) Worker {
	w := f.NewWorker()
	if !w.Daemon && f.nonDaemon != nil {
		f.nonDaemon.Add(1)
	}

	go func() {
		if !w.Daemon && f.nonDaemon != nil {
			defer f.nonDaemon.Done()
		}
		defer f.Recover(context.Background(), w)

		if w.Priority != NormPriority {
			// The thread is never unlocked, so it exits with the goroutine
			// and its nice value does not leak to other goroutines.
			runtime.LockOSThread()
			if err := setThreadPriority(w.Priority); err != nil {
				f.logger.Warn("failed to set worker priority",
					F("pool", f.pool),
					F("worker", w.Name),
					F("priority", w.Priority),
					F("error", err),
				)
			}
		}

		fn(w)
	}()
	return w
}

// Recover must be deferred directly. It hands a recovered panic to the
// factory's panic handler.
func (f *ThreadFactory) Recover(ctx context.Context, w Worker) {
	if r := recover(); r != nil {
		f.panicHandler.HandlePanic(ctx, f.pool, w.Name, r, debug.Stack())
	}
}
