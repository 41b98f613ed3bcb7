package core

import (
	"math"
	"sync/atomic"
	"time"
)

// durationAggregate folds durations into a running total and a min/max pair.
// min holds math.MaxInt64 until the first observation.
type durationAggregate struct {
	total atomic.Int64
	min   atomic.Int64
	max   atomic.Int64
}

func (a *durationAggregate) init() {
	a.min.Store(math.MaxInt64)
}

func (a *durationAggregate) observe(d time.Duration) {
	n := int64(d)
	if n < 0 {
		n = 0
	}
	a.total.Add(n)

	for {
		cur := a.min.Load()
		if n >= cur || a.min.CompareAndSwap(cur, n) {
			break
		}
	}
	for {
		cur := a.max.Load()
		if n <= cur || a.max.CompareAndSwap(cur, n) {
			break
		}
	}
}

func (a *durationAggregate) load() (total, lo, hi time.Duration) {
	total = time.Duration(a.total.Load())
	hi = time.Duration(a.max.Load())
	if m := a.min.Load(); m != math.MaxInt64 {
		lo = time.Duration(m)
	}
	return total, lo, hi
}

// statsAccumulator holds one pool's counters. Every field is updated with
// atomic operations only.
type statsAccumulator struct {
	submitted             atomic.Int64
	blocked               atomic.Int64
	running               atomic.Int64
	completed             atomic.Int64
	completedSuccessfully atomic.Int64
	discarded             atomic.Int64
	rejected              atomic.Int64
	panicked              atomic.Int64

	wait durationAggregate
	exec durationAggregate
}

func newStatsAccumulator() *statsAccumulator {
	s := &statsAccumulator{}
	s.wait.init()
	s.exec.init()
	return s
}

// fill copies the counters into stats. Each load is atomic on its own; the
// copy as a whole is not.
func (s *statsAccumulator) fill(stats *PoolStats) {
	stats.Submitted = s.submitted.Load()
	stats.Blocked = s.blocked.Load()
	stats.Running = s.running.Load()
	stats.Completed = s.completed.Load()
	stats.CompletedSuccessfully = s.completedSuccessfully.Load()
	stats.Discarded = s.discarded.Load()
	stats.Rejected = s.rejected.Load()
	stats.Panicked = s.panicked.Load()
	stats.TotalWait, stats.MinWait, stats.MaxWait = s.wait.load()
	stats.TotalExec, stats.MinExec, stats.MaxExec = s.exec.load()
}
