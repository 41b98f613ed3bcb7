package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// PoolState is the lifecycle state of a NamedPool. States only move forward:
// NEW -> PREPARING -> READY -> STOPPING. A pool can also stop before it
// becomes ready; STOPPING is terminal.
type PoolState int32

const (
	StateNew PoolState = iota
	StatePreparing
	StateReady
	StateStopping
)

var poolStateNames = [...]string{"NEW", "PREPARING", "READY", "STOPPING"}

func (s PoolState) String() string {
	if s >= 0 && int(s) < len(poolStateNames) {
		return poolStateNames[s]
	}
	return fmt.Sprintf("PoolState(%d)", int32(s))
}

func (s PoolState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PoolState) UnmarshalText(text []byte) error {
	for i, name := range poolStateNames {
		if name == string(text) {
			*s = PoolState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown pool state %q", text)
}

// PrepareHook runs while a pool is PREPARING, before its executor is built.
// A returned error (or panic) fails the pool's initialization. ctx is
// canceled if the pool is shut down meanwhile.
type PrepareHook func(ctx context.Context, name string, cfg PoolConfig) error

// poolDeps are the collaborators a registry hands to each of its pools.
type poolDeps struct {
	logger          Logger
	metrics         Metrics
	panicHandler    PanicHandler
	rejectedHandler RejectedTaskHandler
	prepareHook     PrepareHook
	historyCapacity int
	nonDaemon       *sync.WaitGroup
}

// completion routes the outcome of one submitted task back to its caller.
type completion struct {
	// bind receives the task id before the task is handed to the executor.
	bind func(id TaskID)

	// done receives nil on success or the task's failure.
	done func(err *TaskError)

	// dropped is called if the task never runs.
	dropped func(err error)
}

// NamedPool is one named pool: its configuration, lifecycle state,
// execution engine and task tracker. The engine and tracker are built once,
// on the PREPARING -> READY transition.
type NamedPool struct {
	name string
	cfg  PoolConfig
	deps poolDeps

	state atomic.Int32

	// mu guards the transitions out of PREPARING and into STOPPING.
	mu      sync.Mutex
	initErr error

	ready   chan struct{}
	stopped chan struct{}

	prepCtx    context.Context
	prepCancel context.CancelFunc

	executor atomic.Pointer[Executor]
	tracker  atomic.Pointer[TaskTracker]
}

func newNamedPool(name string, cfg PoolConfig, deps poolDeps) *NamedPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &NamedPool{
		name:       name,
		cfg:        cfg,
		deps:       deps,
		ready:      make(chan struct{}),
		stopped:    make(chan struct{}),
		prepCtx:    ctx,
		prepCancel: cancel,
	}
}

// Name returns the pool's registry name.
func (p *NamedPool) Name() string { return p.name }

// Config returns the pool's configuration.
func (p *NamedPool) Config() PoolConfig { return p.cfg }

// State returns the current lifecycle state.
func (p *NamedPool) State() PoolState {
	return PoolState(p.state.Load())
}

// Ready is closed when the pool reaches READY.
func (p *NamedPool) Ready() <-chan struct{} { return p.ready }

// Stopped is closed when the pool reaches STOPPING.
func (p *NamedPool) Stopped() <-chan struct{} { return p.stopped }

// start begins initialization. Only the first caller moves the pool out of
// NEW; later calls return immediately.
func (p *NamedPool) start() {
	if p.state.CompareAndSwap(int32(StateNew), int32(StatePreparing)) {
		p.deps.logger.Debug("pool preparing", F("pool", p.name))
		go p.prepare()
	}
}

func (p *NamedPool) prepare() {
	if err := p.runPrepareHook(); err != nil {
		p.deps.logger.Error("pool initialization failed", F("pool", p.name), F("error", err))
		p.mu.Lock()
		p.initErr = err
		p.stopLocked()
		p.mu.Unlock()
		return
	}

	tracker := NewTaskTracker(p.name, p.deps.historyCapacity, p.deps.metrics)
	factory := NewThreadFactory(p.name,
		WithDaemon(p.cfg.Daemon),
		WithPriority(p.cfg.Priority),
		WithWorkerPanicHandler(p.deps.panicHandler),
		WithWorkerLogger(p.deps.logger),
		WithNonDaemonGroup(p.deps.nonDaemon),
	)
	executor := NewExecutor(p.name, p.cfg, factory)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() != StatePreparing {
		// Shut down while preparing; the engine never ran anything.
		executor.Shutdown()
		return
	}
	p.tracker.Store(tracker)
	p.executor.Store(executor)
	p.state.Store(int32(StateReady))
	close(p.ready)

	p.deps.logger.Info("pool ready",
		F("pool", p.name),
		F("core_size", p.cfg.CoreSize),
		F("max_size", p.cfg.MaxSize),
		F("queue_capacity", p.cfg.QueueCapacity),
		F("saturation", p.cfg.Saturation),
	)
}

func (p *NamedPool) runPrepareHook() (err error) {
	hook := p.deps.prepareHook
	if hook == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("prepare hook panic: %v\n%s", r, debug.Stack())
		}
	}()
	return hook(p.prepCtx, p.name, p.cfg)
}

// stopLocked moves the pool to STOPPING. It reports false if the pool was
// already stopping.
func (p *NamedPool) stopLocked() bool {
	if p.State() == StateStopping {
		return false
	}
	p.state.Store(int32(StateStopping))
	close(p.stopped)
	p.prepCancel()
	return true
}

// awaitReady blocks until the pool is READY, stops, or timeout elapses.
func (p *NamedPool) awaitReady(timeout time.Duration) error {
	switch p.State() {
	case StateReady:
		return nil
	case StateStopping:
		return p.stoppedErr()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.ready:
		if p.State() == StateReady {
			return nil
		}
		return p.stoppedErr()
	case <-p.stopped:
		return p.stoppedErr()
	case <-timer.C:
		return ErrNotReadyTimeout
	}
}

func (p *NamedPool) stoppedErr() error {
	p.mu.Lock()
	err := p.initErr
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPoolInitFailed, err)
	}
	return ErrPoolNotFound
}

// submit instruments task and hands it to the executor.
func (p *NamedPool) submit(task Task, c completion) (TaskID, error) {
	if p.State() != StateReady {
		return 0, p.stoppedErr()
	}
	tracker := p.tracker.Load()
	executor := p.executor.Load()

	id := tracker.SubmitTask()
	if c.bind != nil {
		c.bind(id)
	}

	r := &runnable{id: id, task: task}
	r.run = func(ctx context.Context) { p.run(ctx, r, c) }
	r.discard = func(reason string) { p.drop(r, reason, c) }

	if err := executor.execute(r); err != nil {
		if errors.Is(err, errExecutorStopped) {
			tracker.Refuse(id, "stopped")
			return 0, ErrPoolNotFound
		}
		tracker.Refuse(id, SaturationAbort.String())
		p.deps.rejectedHandler.HandleRejectedTask(p.name, id, SaturationAbort.String())
		return 0, err
	}
	return id, nil
}

func (p *NamedPool) run(ctx context.Context, r *runnable, c completion) {
	tracker := p.tracker.Load()
	tracker.StartTask(r.id)

	terr := p.invoke(withTaskInfo(ctx, p.name, r.id), r)

	panicked := terr != nil && terr.Panicked()
	tracker.complete(r.id, terr == nil, panicked)
	if panicked {
		p.deps.metrics.RecordTaskPanic(p.name, terr.Panic)
	}

	if c.done != nil {
		c.done(terr)
	}
}

func (p *NamedPool) invoke(ctx context.Context, r *runnable) (terr *TaskError) {
	defer func() {
		if rec := recover(); rec != nil {
			terr = &TaskError{
				Pool:   p.name,
				TaskID: r.id,
				Err:    fmt.Errorf("panic: %v", rec),
				Panic:  rec,
				Stack:  debug.Stack(),
			}
		}
	}()

	if err := r.task(ctx); err != nil {
		return &TaskError{Pool: p.name, TaskID: r.id, Err: err}
	}
	return nil
}

func (p *NamedPool) drop(r *runnable, reason string, c completion) {
	if tracker := p.tracker.Load(); tracker != nil {
		tracker.Discard(r.id, reason)
	}
	p.deps.rejectedHandler.HandleRejectedTask(p.name, r.id, reason)
	if c.dropped != nil {
		c.dropped(fmt.Errorf("%w: %s", ErrTaskDiscarded, reason))
	}
}

// Shutdown moves the pool to STOPPING and lets queued and running tasks
// finish. It reports false if the pool was already stopping.
func (p *NamedPool) Shutdown() bool {
	p.mu.Lock()
	changed := p.stopLocked()
	p.mu.Unlock()

	if !changed {
		return false
	}
	if executor := p.executor.Load(); executor != nil {
		executor.Shutdown()
	}
	p.deps.logger.Info("pool stopping", F("pool", p.name))
	return true
}

// ShutdownNow moves the pool to STOPPING, cancels the context of running
// tasks and returns the tasks that never started.
func (p *NamedPool) ShutdownNow() []Task {
	p.mu.Lock()
	changed := p.stopLocked()
	p.mu.Unlock()

	executor := p.executor.Load()
	if executor == nil {
		return nil
	}
	pending := executor.shutdownNow()

	tasks := make([]Task, 0, len(pending))
	for _, r := range pending {
		r.discard("shutdown-now")
		tasks = append(tasks, r.task)
	}
	if changed {
		p.deps.logger.Info("pool stopping now", F("pool", p.name), F("dropped", len(tasks)))
	}
	return tasks
}

// AwaitTermination waits until every worker has exited after shutdown.
func (p *NamedPool) AwaitTermination(ctx context.Context) error {
	select {
	case <-p.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}
	executor := p.executor.Load()
	if executor == nil {
		return nil
	}
	return executor.AwaitTermination(ctx)
}

// Stats returns a snapshot of the pool's configuration and statistics.
func (p *NamedPool) Stats() PoolStats {
	stats := PoolStats{
		Name:          p.name,
		State:         p.State(),
		CoreSize:      p.cfg.CoreSize,
		MaxSize:       p.cfg.MaxSize,
		QueueCapacity: p.cfg.QueueCapacity,
	}
	if tracker := p.tracker.Load(); tracker != nil {
		tracker.Fill(&stats)
	}
	if executor := p.executor.Load(); executor != nil {
		stats.Workers = executor.PoolSize()
		stats.Queued = executor.QueueLen()
	}
	return stats
}

// RecentTasks returns the pool's latest completion records, newest first.
func (p *NamedPool) RecentTasks(limit int) []TaskExecutionRecord {
	tracker := p.tracker.Load()
	if tracker == nil {
		return nil
	}
	return tracker.RecentTasks(limit)
}
