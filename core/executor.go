package core

import (
	"context"
	"sync"
	"sync/atomic"
)

// runnable is one queued unit of work as the executor sees it.
type runnable struct {
	id TaskID

	// task is the unit of work as submitted; ShutdownNow hands it back.
	task Task

	// run executes the instrumented task.
	run func(ctx context.Context)

	// discard is called exactly once for a task that will never run.
	discard func(reason string)
}

// Executor is the bounded execution engine of one pool: a work queue and up
// to MaxSize workers started by a ThreadFactory.
//
// A task is placed, in order of preference, on a new core worker, in the
// queue, on a new non-core worker; failing all three the saturation policy
// decides. Workers above CoreSize exit after KeepAlive without work.
type Executor struct {
	name    string
	cfg     PoolConfig
	queue   *workQueue
	factory *ThreadFactory

	// ctx is handed to every task and canceled by ShutdownNow.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex // serializes worker creation against shutdown
	workers    atomic.Int32
	largest    atomic.Int32
	shutdown   atomic.Bool
	wg         sync.WaitGroup
	terminated chan struct{}
}

// NewExecutor creates an executor. No worker starts until work arrives.
func NewExecutor(name string, cfg PoolConfig, factory *ThreadFactory) *Executor {
	if factory == nil {
		factory = NewThreadFactory(name)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		name:       name,
		cfg:        cfg,
		queue:      newWorkQueue(cfg.QueueCapacity, cfg.MaxSize),
		factory:    factory,
		ctx:        ctx,
		cancel:     cancel,
		terminated: make(chan struct{}),
	}
}

func (e *Executor) execute(r *runnable) error {
	if e.shutdown.Load() {
		return errExecutorStopped
	}

	if int(e.workers.Load()) < e.cfg.CoreSize && e.tryAddWorker(r, true) {
		return nil
	}

	if e.queue.Offer(r) {
		if e.workers.Load() == 0 {
			e.tryAddWorker(nil, false)
		}
		return nil
	}

	if e.tryAddWorker(r, false) {
		return nil
	}

	if e.shutdown.Load() {
		return errExecutorStopped
	}
	return e.saturate(r)
}

func (e *Executor) saturate(r *runnable) error {
	switch e.cfg.Saturation {
	case SaturationCallerRuns:
		e.runOnCaller(r)
		return nil

	case SaturationDiscard:
		r.discard(SaturationDiscard.String())
		return nil

	case SaturationDiscardOldest:
		if oldest, ok := e.queue.RemoveOldest(); ok {
			oldest.discard(SaturationDiscardOldest.String())
		}
		if e.queue.Offer(r) || e.tryAddWorker(r, false) {
			return nil
		}
		if e.shutdown.Load() {
			return errExecutorStopped
		}
		// Nothing to evict (hand-off queue) or the slot was taken again.
		r.discard(SaturationDiscardOldest.String())
		return nil

	default:
		return ErrRejected
	}
}

func (e *Executor) runOnCaller(r *runnable) {
	caller := Worker{Name: e.name + "-caller", Pool: e.name, Priority: NormPriority}
	defer e.factory.Recover(e.ctx, caller)
	r.run(e.ctx)
}

func (e *Executor) tryAddWorker(first *runnable, core bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdown.Load() {
		return false
	}
	limit := e.cfg.MaxSize
	if core {
		limit = e.cfg.CoreSize
	}
	if int(e.workers.Load()) >= limit {
		return false
	}
	e.startWorkerLocked(first)
	return true
}

func (e *Executor) startWorkerLocked(first *runnable) {
	n := e.workers.Add(1)
	for {
		largest := e.largest.Load()
		if n <= largest || e.largest.CompareAndSwap(largest, n) {
			break
		}
	}

	e.wg.Add(1)
	e.factory.Go(func(w Worker) {
		defer e.wg.Done()
		e.workerLoop(w, first)
	})
}

func (e *Executor) workerLoop(w Worker, task *runnable) {
	for {
		if task == nil {
			timed := int(e.workers.Load()) > e.cfg.CoreSize

			var status takeStatus
			task, status = e.queue.Take(e.ctx.Done(), timed, e.cfg.KeepAlive)
			switch status {
			case takeTimeout:
				if e.retireIdleWorker() {
					return
				}
				continue
			case takeClosed:
				e.workers.Add(-1)
				return
			}
		}

		e.runTask(w, task)
		task = nil
	}
}

func (e *Executor) runTask(w Worker, r *runnable) {
	defer e.factory.Recover(e.ctx, w)
	r.run(e.ctx)
}

// retireIdleWorker removes the calling worker if the pool is above its
// core size.
func (e *Executor) retireIdleWorker() bool {
	for {
		n := e.workers.Load()
		if int(n) <= e.cfg.CoreSize {
			return false
		}
		if e.workers.CompareAndSwap(n, n-1) {
			break
		}
	}
	// Work offered while this worker was leaving must not be stranded.
	if e.queue.Len() > 0 && e.workers.Load() == 0 {
		e.tryAddWorker(nil, false)
	}
	return true
}

// Shutdown stops accepting work. Queued and running tasks finish.
// Repeated calls are no-ops.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.shutdown.CompareAndSwap(false, true) {
		return
	}
	e.queue.Close()
	if e.workers.Load() == 0 && e.queue.Len() > 0 {
		e.startWorkerLocked(nil)
	}
	go e.awaitWorkers()
}

// shutdownNow stops accepting work, cancels the context of running tasks
// and returns the tasks that never started.
func (e *Executor) shutdownNow() []*runnable {
	e.mu.Lock()
	defer e.mu.Unlock()

	first := e.shutdown.CompareAndSwap(false, true)
	pending := e.queue.CloseAndDrain()
	e.cancel()
	if first {
		go e.awaitWorkers()
	}
	return pending
}

func (e *Executor) awaitWorkers() {
	e.wg.Wait()
	e.cancel()
	close(e.terminated)
}

// AwaitTermination blocks until every worker has exited after shutdown or
// ctx is done.
func (e *Executor) AwaitTermination(ctx context.Context) error {
	select {
	case <-e.terminated:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) IsShutdown() bool {
	return e.shutdown.Load()
}

func (e *Executor) IsTerminated() bool {
	select {
	case <-e.terminated:
		return true
	default:
		return false
	}
}

// PoolSize returns the number of live workers.
func (e *Executor) PoolSize() int {
	return int(e.workers.Load())
}

// LargestPoolSize returns the highest number of workers seen at once.
func (e *Executor) LargestPoolSize() int {
	return int(e.largest.Load())
}

// QueueLen returns the number of queued tasks.
func (e *Executor) QueueLen() int {
	return e.queue.Len()
}

// Terminated is closed once every worker has exited after shutdown.
func (e *Executor) Terminated() <-chan struct{} {
	return e.terminated
}
