package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Registry owns a set of named pools. It is created with the reserved
// default pool and is safe for concurrent use; the submit path takes no
// registry-wide lock.
type Registry struct {
	pools   sync.Map // name -> *NamedPool
	retired sync.Map // name -> *NamedPool shut down but maybe not terminated

	opts      registryOptions
	deps      poolDeps
	nonDaemon sync.WaitGroup
	closed    atomic.Bool
}

// NewRegistry creates a registry and starts its default pool.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := defaultRegistryOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = NewDefaultLogger()
	}
	if o.metrics == nil {
		o.metrics = &NilMetrics{}
	}
	if o.panicHandler == nil {
		o.panicHandler = &LoggingPanicHandler{Logger: o.logger}
	}
	if o.rejectedHandler == nil {
		o.rejectedHandler = &LoggingRejectedTaskHandler{Logger: o.logger}
	}

	r := &Registry{opts: o}
	r.deps = poolDeps{
		logger:          o.logger,
		metrics:         o.metrics,
		panicHandler:    o.panicHandler,
		rejectedHandler: o.rejectedHandler,
		prepareHook:     o.prepareHook,
		historyCapacity: o.historyCapacity,
		nonDaemon:       &r.nonDaemon,
	}

	cfg := o.defaultPool
	if err := cfg.Validate(); err != nil {
		o.logger.Warn("invalid default pool config, using built-in defaults", F("error", err))
		cfg = DefaultPoolConfig()
	}
	cfg.Daemon = true

	p := newNamedPool(DefaultPoolName, cfg.withDefaults(), r.deps)
	r.pools.Store(DefaultPoolName, p)
	p.start()
	return r
}

// Logger returns the registry's logging sink.
func (r *Registry) Logger() Logger {
	return r.opts.logger
}

// CreatePool registers a new pool and starts its initialization. The pool
// accepts work once it is READY; submissions made before then wait up to
// the readiness timeout.
func (r *Registry) CreatePool(name string, cfg PoolConfig) error {
	const op = "create"

	if r.closed.Load() {
		return poolError(op, name, ErrRegistryClosed)
	}
	if name == DefaultPoolName {
		return poolError(op, name, ErrNameReserved)
	}
	if name == "" {
		return poolError(op, name, fmt.Errorf("%w: empty pool name", ErrInvalidConfig))
	}
	if err := cfg.Validate(); err != nil {
		return poolError(op, name, err)
	}

	p := newNamedPool(name, cfg.withDefaults(), r.deps)
	if _, loaded := r.pools.LoadOrStore(name, p); loaded {
		return poolError(op, name, ErrPoolExists)
	}
	if r.closed.Load() {
		// Lost a race with Close.
		r.pools.CompareAndDelete(name, p)
		p.Shutdown()
		return poolError(op, name, ErrRegistryClosed)
	}

	p.start()
	r.opts.logger.Info("pool created",
		F("pool", name),
		F("core_size", cfg.CoreSize),
		F("max_size", cfg.MaxSize),
		F("queue_capacity", cfg.QueueCapacity),
	)
	return nil
}

// Lookup returns the registered pool with the given name.
func (r *Registry) Lookup(name string) (*NamedPool, bool) {
	v, ok := r.pools.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*NamedPool), true
}

// Has reports whether a pool with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.pools.Load(name)
	return ok
}

// Names returns the registered pool names in sorted order.
func (r *Registry) Names() []string {
	var names []string
	r.pools.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	sort.Strings(names)
	return names
}

func (r *Registry) readyTimeout(p *NamedPool) time.Duration {
	if d := p.Config().ReadyTimeout; d > 0 {
		return d
	}
	return r.opts.readyTimeout
}

func (r *Registry) readyPool(op, name string) (*NamedPool, error) {
	if r.closed.Load() {
		return nil, poolError(op, name, ErrRegistryClosed)
	}
	p, ok := r.Lookup(name)
	if !ok {
		return nil, poolError(op, name, ErrPoolNotFound)
	}
	p.start()
	if err := p.awaitReady(r.readyTimeout(p)); err != nil {
		return nil, poolError(op, name, err)
	}
	return p, nil
}

func (r *Registry) dispatch(op, name string, task Task, c completion) error {
	if task == nil {
		return poolError(op, name, ErrNilTask)
	}
	p, err := r.readyPool(op, name)
	if err != nil {
		return err
	}
	if _, err := p.submit(task, c); err != nil {
		return poolError(op, name, err)
	}
	return nil
}

// Submit runs task on the named pool and returns a Future that completes
// with the task's failure, if any. It fails with ErrPoolNotFound for
// unknown or stopped pools, ErrNotReadyTimeout if the pool is not ready in
// time and ErrRejected if the pool is saturated under the abort policy.
func (r *Registry) Submit(name string, task Task) (*Future, error) {
	f := newValue[struct{}]()
	err := r.dispatch("submit", name, task, completion{
		bind:    f.bind,
		done:    func(terr *TaskError) { f.complete(struct{}{}, taskErr(terr)) },
		dropped: func(err error) { f.complete(struct{}{}, err) },
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// SubmitValue runs fn on the named pool of r and returns its pending result.
func SubmitValue[T any](r *Registry, name string, fn TaskWithResult[T]) (*Value[T], error) {
	if fn == nil {
		return nil, poolError("submit", name, ErrNilTask)
	}

	v := newValue[T]()
	var result T
	task := func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	}

	err := r.dispatch("submit", name, task, completion{
		bind: v.bind,
		done: func(terr *TaskError) {
			if terr != nil {
				var zero T
				v.complete(zero, terr)
				return
			}
			v.complete(result, nil)
		},
		dropped: func(err error) {
			var zero T
			v.complete(zero, err)
		},
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Execute runs task on the named pool without a result. Task failures are
// logged.
func (r *Registry) Execute(name string, task Task) error {
	return r.dispatch("execute", name, task, completion{
		done: func(terr *TaskError) {
			if terr != nil {
				r.logTaskFailure(terr)
			}
		},
	})
}

// ExecuteWithHandler runs task on the named pool and passes its failure to
// handler instead of the log. A task that never runs reaches handler with
// ErrTaskDiscarded.
func (r *Registry) ExecuteWithHandler(name string, task Task, handler ErrorHandler) error {
	if handler == nil {
		return r.Execute(name, task)
	}

	var id TaskID
	return r.dispatch("execute", name, task, completion{
		bind: func(tid TaskID) { id = tid },
		done: func(terr *TaskError) {
			if terr != nil {
				handler(terr)
			}
		},
		dropped: func(err error) {
			handler(&TaskError{Pool: name, TaskID: id, Err: err})
		},
	})
}

// ExecuteOrRaise runs task on the named pool and re-panics its failure as a
// *TaskError on the worker, where the pool's PanicHandler receives it. The
// worker keeps running.
func (r *Registry) ExecuteOrRaise(name string, task Task) error {
	return r.dispatch("execute", name, task, completion{
		done: func(terr *TaskError) {
			if terr != nil {
				panic(terr)
			}
		},
	})
}

func (r *Registry) logTaskFailure(terr *TaskError) {
	fields := []Field{
		F("pool", terr.Pool),
		F("task_id", terr.TaskID),
		F("error", terr.Err),
	}
	if terr.Panicked() {
		fields = append(fields, F("stack", string(terr.Stack)))
	}
	r.opts.logger.Error("task failed", fields...)
}

// Shutdown removes the named pool and stops it. Queued and running tasks
// finish; new submissions fail with ErrPoolNotFound. The default pool
// cannot be shut down.
func (r *Registry) Shutdown(name string) error {
	p, err := r.retire("shutdown", name)
	if err != nil {
		return err
	}
	p.Shutdown()
	return nil
}

// ShutdownNow is Shutdown that also cancels the context of running tasks
// and returns the tasks that never started.
func (r *Registry) ShutdownNow(name string) ([]Task, error) {
	p, err := r.retire("shutdown", name)
	if err != nil {
		return nil, err
	}
	return p.ShutdownNow(), nil
}

func (r *Registry) retire(op, name string) (*NamedPool, error) {
	if name == DefaultPoolName {
		return nil, poolError(op, name, ErrNameReserved)
	}
	v, ok := r.pools.LoadAndDelete(name)
	if !ok {
		return nil, poolError(op, name, ErrPoolNotFound)
	}
	p := v.(*NamedPool)
	r.retired.Store(name, p)
	return p, nil
}

// AwaitTermination blocks until every worker of the named pool has exited
// after it was shut down, or ctx is done.
func (r *Registry) AwaitTermination(ctx context.Context, name string) error {
	v, ok := r.retired.Load(name)
	if !ok {
		if v, ok = r.pools.Load(name); !ok {
			return poolError("await", name, ErrPoolNotFound)
		}
	}
	p := v.(*NamedPool)
	if err := p.AwaitTermination(ctx); err != nil {
		return poolError("await", name, err)
	}
	r.retired.CompareAndDelete(name, p)
	return nil
}

// ShutdownWait shuts down the named pool and waits for its termination.
func (r *Registry) ShutdownWait(ctx context.Context, name string) error {
	if err := r.Shutdown(name); err != nil {
		return err
	}
	return r.AwaitTermination(ctx, name)
}

// Stats returns the statistics of the named pool.
func (r *Registry) Stats(name string) (PoolStats, error) {
	p, ok := r.Lookup(name)
	if !ok {
		return PoolStats{}, poolError("stats", name, ErrPoolNotFound)
	}
	return p.Stats(), nil
}

// Snapshot returns the statistics of every registered pool, sorted by
// name. Counters are read without stopping the pools.
func (r *Registry) Snapshot() []PoolStats {
	var out []PoolStats
	r.pools.Range(func(_, v any) bool {
		out = append(out, v.(*NamedPool).Stats())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close shuts down every pool, the default pool included, and waits until
// the workers of non-daemon pools have exited or ctx is done. Operations on
// a closed registry fail with ErrRegistryClosed.
func (r *Registry) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	var pools []*NamedPool
	collect := func(m *sync.Map) {
		m.Range(func(k, v any) bool {
			m.Delete(k)
			pools = append(pools, v.(*NamedPool))
			return true
		})
	}
	collect(&r.pools)
	collect(&r.retired)

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range pools {
		p.Shutdown()
		if p.Config().Daemon {
			continue
		}
		g.Go(func() error {
			return p.AwaitTermination(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("close registry: %w", err)
	}

	done := make(chan struct{})
	go func() {
		r.nonDaemon.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("close registry: %w", ctx.Err())
	}

	r.opts.logger.Info("registry closed", F("pools", len(pools)))
	return nil
}

// IsClosed reports whether Close has been called.
func (r *Registry) IsClosed() bool {
	return r.closed.Load()
}
