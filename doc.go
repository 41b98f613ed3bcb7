// Package poolregistry provides named, bounded worker pools with per-task
// instrumentation for Go.
//
// A Registry owns any number of pools, each identified by a unique name and
// configured with a core size, a maximum size, a queue capacity and a
// saturation policy. Every submitted task gets a process-wide TaskID and is
// timed from submission to start and from start to finish; Snapshot returns
// the statistics of every pool at any time.
//
// # Quick Start
//
// Use the process-wide registry, created on first use:
//
//	defer poolregistry.CloseDefault(context.Background())
//
//	poolregistry.CreatePool("io", poolregistry.PoolConfig{
//		CoreSize:      2,
//		MaxSize:       8,
//		QueueCapacity: 100,
//		Saturation:    poolregistry.SaturationCallerRuns,
//	})
//
//	f, err := poolregistry.Submit("io", func(ctx context.Context) error {
//		return fetch(ctx)
//	})
//
// Or create and pass an explicit registry:
//
//	reg := poolregistry.NewRegistry(poolregistry.WithLogger(logger))
//	defer reg.Close(ctx)
//
// # Key Concepts
//
// Default pool: every registry starts with a pool named "default". It cannot
// be created or shut down by user code; its workers never delay Close.
//
// Lifecycle: a pool moves NEW -> PREPARING -> READY -> STOPPING. Submissions
// to a pool that is not READY yet wait up to the readiness timeout (1s by
// default) and then fail with ErrNotReadyTimeout without enqueuing the task.
//
// Saturation: when the queue is full and MaxSize workers are busy, the pool
// aborts (ErrRejected), runs the task on the caller, discards it, or
// discards the oldest queued task.
//
// Failures: Submit returns a Future carrying the task's *TaskError. Execute
// logs failures, ExecuteWithHandler hands them to a callback and
// ExecuteOrRaise re-panics them on the worker where the PanicHandler sees
// them. A failing task never stops a worker.
//
// # Example
//
//	import (
//		"context"
//		poolregistry "github.com/Swind/go-pool-registry"
//	)
//
//	func main() {
//		reg := poolregistry.NewRegistry()
//		defer reg.Close(context.Background())
//
//		reg.CreatePool("p1", poolregistry.PoolConfig{CoreSize: 2, MaxSize: 4, QueueCapacity: 10})
//		reg.Execute("p1", func(ctx context.Context) error {
//			println("hello from p1")
//			return nil
//		})
//
//		for _, s := range reg.Snapshot() {
//			println(s.Name, s.Submitted, s.Completed)
//		}
//	}
//
// For more details, see https://github.com/Swind/go-pool-registry
package poolregistry
