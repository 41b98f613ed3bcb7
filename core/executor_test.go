package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestExecutor(cfg PoolConfig, handler PanicHandler) *Executor {
	opts := []ThreadFactoryOption{WithWorkerLogger(NewNoOpLogger())}
	if handler != nil {
		opts = append(opts, WithWorkerPanicHandler(handler))
	}
	return NewExecutor("exec", cfg.withDefaults(), NewThreadFactory("exec", opts...))
}

// testRunnable wraps fn and remembers whether it was discarded.
type testRunnable struct {
	*runnable
	discarded atomic.Value // string
}

func newRunnableFunc(id TaskID, fn func(ctx context.Context)) *testRunnable {
	tr := &testRunnable{}
	tr.runnable = &runnable{
		id:   id,
		task: func(ctx context.Context) error { fn(ctx); return nil },
		run:  fn,
		discard: func(reason string) {
			tr.discarded.Store(reason)
		},
	}
	return tr
}

func (r *testRunnable) discardReason() string {
	v, _ := r.discarded.Load().(string)
	return v
}

// blocker is a task body that parks until released.
type blocker struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlocker() *blocker {
	return &blocker{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (b *blocker) run(ctx context.Context) {
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
	}
}

func (b *blocker) waitStarted(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-b.started:
		case <-time.After(time.Second):
			t.Fatalf("only %d of %d blocking tasks started", i, n)
		}
	}
}

func (b *blocker) Release() {
	b.once.Do(func() { close(b.release) })
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// TestExecutor_CoreThenQueueThenAbort verifies the placement order
// Given: An executor with 1 core worker, max 1 and a queue of 1
// When: Three blocking tasks are executed
// Then: The first runs, the second is queued, the third is rejected
func TestExecutor_CoreThenQueueThenAbort(t *testing.T) {
	// Arrange
	e := newTestExecutor(PoolConfig{CoreSize: 1, MaxSize: 1, QueueCapacity: 1}, nil)
	b := newBlocker()
	defer b.Release()

	// Act
	if err := e.execute(newRunnableFunc(1, b.run).runnable); err != nil {
		t.Fatalf("execute(1) = %v", err)
	}
	b.waitStarted(t, 1)
	if err := e.execute(newRunnableFunc(2, b.run).runnable); err != nil {
		t.Fatalf("execute(2) = %v", err)
	}
	err := e.execute(newRunnableFunc(3, b.run).runnable)

	// Assert
	if !errors.Is(err, ErrRejected) {
		t.Errorf("execute(3) = %v, want ErrRejected", err)
	}
	if e.PoolSize() != 1 {
		t.Errorf("PoolSize() = %d, want 1", e.PoolSize())
	}
	if e.QueueLen() != 1 {
		t.Errorf("QueueLen() = %d, want 1", e.QueueLen())
	}
}

// TestExecutor_GrowsToMaxAndShrinks verifies non-core workers and keep-alive
// Given: core 1, max 3, hand-off queue, 20ms keep-alive
// When: Three blocking tasks run and are released
// Then: The pool grows to 3 workers and shrinks back to 1
func TestExecutor_GrowsToMaxAndShrinks(t *testing.T) {
	// Arrange
	e := newTestExecutor(PoolConfig{CoreSize: 1, MaxSize: 3, QueueCapacity: 0, KeepAlive: 20 * time.Millisecond}, nil)
	b := newBlocker()

	// Act
	for i := 1; i <= 3; i++ {
		if err := e.execute(newRunnableFunc(TaskID(i), b.run).runnable); err != nil {
			t.Fatalf("execute(%d) = %v", i, err)
		}
	}
	b.waitStarted(t, 3)

	// Assert - Grown to max, fourth is rejected
	if e.PoolSize() != 3 || e.LargestPoolSize() != 3 {
		t.Errorf("PoolSize = %d, Largest = %d, want 3 and 3", e.PoolSize(), e.LargestPoolSize())
	}
	if err := e.execute(newRunnableFunc(4, b.run).runnable); !errors.Is(err, ErrRejected) {
		t.Errorf("execute(4) = %v, want ErrRejected", err)
	}

	// Act - Release and let non-core workers time out
	b.Release()

	// Assert
	waitFor(t, "non-core workers to retire", func() bool { return e.PoolSize() == 1 })
}

// TestExecutor_CallerRuns verifies saturated work runs on the submitting goroutine
func TestExecutor_CallerRuns(t *testing.T) {
	e := newTestExecutor(PoolConfig{CoreSize: 1, MaxSize: 1, QueueCapacity: 0, Saturation: SaturationCallerRuns}, nil)
	b := newBlocker()
	defer b.Release()

	e.execute(newRunnableFunc(1, b.run).runnable)
	b.waitStarted(t, 1)

	var ran atomic.Bool
	if err := e.execute(newRunnableFunc(2, func(ctx context.Context) { ran.Store(true) }).runnable); err != nil {
		t.Fatalf("execute(2) = %v", err)
	}
	if !ran.Load() {
		t.Error("caller-runs task had not run when execute returned")
	}
}

// TestExecutor_Discard verifies the discard policy drops the new task
func TestExecutor_Discard(t *testing.T) {
	e := newTestExecutor(PoolConfig{CoreSize: 1, MaxSize: 1, QueueCapacity: 0, Saturation: SaturationDiscard}, nil)
	b := newBlocker()
	defer b.Release()

	e.execute(newRunnableFunc(1, b.run).runnable)
	b.waitStarted(t, 1)

	dropped := newRunnableFunc(2, b.run)
	if err := e.execute(dropped.runnable); err != nil {
		t.Fatalf("execute(2) = %v, want nil", err)
	}
	if dropped.discardReason() != "discard" {
		t.Errorf("discard reason = %q, want discard", dropped.discardReason())
	}
}

// TestExecutor_DiscardOldest verifies the oldest queued task makes room
// Given: core 1, max 1, queue 1 with one running and one queued task
// When: A third task is executed under discard-oldest
// Then: The queued task is dropped and the third one runs instead
func TestExecutor_DiscardOldest(t *testing.T) {
	// Arrange
	e := newTestExecutor(PoolConfig{CoreSize: 1, MaxSize: 1, QueueCapacity: 1, Saturation: SaturationDiscardOldest}, nil)
	b := newBlocker()

	e.execute(newRunnableFunc(1, b.run).runnable)
	b.waitStarted(t, 1)
	oldest := newRunnableFunc(2, func(ctx context.Context) {})
	e.execute(oldest.runnable)

	// Act
	var newestRan atomic.Bool
	if err := e.execute(newRunnableFunc(3, func(ctx context.Context) { newestRan.Store(true) }).runnable); err != nil {
		t.Fatalf("execute(3) = %v", err)
	}
	b.Release()

	// Assert
	if oldest.discardReason() != "discard-oldest" {
		t.Errorf("oldest discard reason = %q, want discard-oldest", oldest.discardReason())
	}
	waitFor(t, "newest task to run", newestRan.Load)
}

// TestExecutor_ShutdownDrainsQueue verifies graceful shutdown finishes queued work
func TestExecutor_ShutdownDrainsQueue(t *testing.T) {
	// Arrange
	e := newTestExecutor(PoolConfig{CoreSize: 1, MaxSize: 1, QueueCapacity: UnboundedQueue}, nil)
	var count atomic.Int32
	for i := 1; i <= 10; i++ {
		e.execute(newRunnableFunc(TaskID(i), func(ctx context.Context) {
			time.Sleep(time.Millisecond)
			count.Add(1)
		}).runnable)
	}

	// Act
	e.Shutdown()
	e.Shutdown()

	// Assert
	if err := e.execute(newRunnableFunc(11, func(ctx context.Context) {}).runnable); !errors.Is(err, errExecutorStopped) {
		t.Errorf("execute after Shutdown = %v, want errExecutorStopped", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.AwaitTermination(ctx); err != nil {
		t.Fatalf("AwaitTermination() = %v", err)
	}
	if count.Load() != 10 {
		t.Errorf("completed = %d, want 10", count.Load())
	}
	if !e.IsShutdown() || !e.IsTerminated() {
		t.Errorf("IsShutdown = %v, IsTerminated = %v", e.IsShutdown(), e.IsTerminated())
	}
}

// TestExecutor_ShutdownNow verifies running tasks are canceled and queued ones returned
func TestExecutor_ShutdownNow(t *testing.T) {
	// Arrange
	e := newTestExecutor(PoolConfig{CoreSize: 1, MaxSize: 1, QueueCapacity: UnboundedQueue}, nil)
	b := newBlocker()
	defer b.Release()

	var canceled atomic.Bool
	e.execute(newRunnableFunc(1, func(ctx context.Context) {
		b.run(ctx)
		canceled.Store(ctx.Err() != nil)
	}).runnable)
	b.waitStarted(t, 1)
	for i := 2; i <= 4; i++ {
		e.execute(newRunnableFunc(TaskID(i), b.run).runnable)
	}

	// Act
	pending := e.shutdownNow()

	// Assert
	if len(pending) != 3 {
		t.Errorf("len(pending) = %d, want 3", len(pending))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.AwaitTermination(ctx); err != nil {
		t.Fatalf("AwaitTermination() = %v", err)
	}
	if !canceled.Load() {
		t.Error("running task context was not canceled")
	}
}

// TestExecutor_WorkerSurvivesPanic verifies a panic does not kill the worker
func TestExecutor_WorkerSurvivesPanic(t *testing.T) {
	handler := NewTestPanicHandler()
	e := newTestExecutor(PoolConfig{CoreSize: 1, MaxSize: 1, QueueCapacity: UnboundedQueue}, handler)

	e.execute(newRunnableFunc(1, func(ctx context.Context) { panic("boom") }).runnable)

	var ran atomic.Bool
	e.execute(newRunnableFunc(2, func(ctx context.Context) { ran.Store(true) }).runnable)

	waitFor(t, "task after panic", ran.Load)
	if handler.CallCount() != 1 {
		t.Errorf("panic handler calls = %d, want 1", handler.CallCount())
	}
	if e.PoolSize() != 1 {
		t.Errorf("PoolSize() = %d, want 1", e.PoolSize())
	}
}
