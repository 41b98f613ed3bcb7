package core

import (
	"sync"
	"time"
)

// taskRecord is the live instrumentation record of one task. started and
// finished are written by the goroutine that runs the task.
type taskRecord struct {
	id        TaskID
	submitted time.Time
	started   time.Time
	finished  time.Time
}

// TaskTracker instruments the tasks of one pool. It keeps a record per
// in-flight task and folds every start and completion into the pool's
// statistics. All methods are safe for concurrent use.
type TaskTracker struct {
	pool    string
	live    sync.Map // TaskID -> *taskRecord
	stats   *statsAccumulator
	history *executionHistory
	metrics Metrics
	now     func() time.Time
}

// NewTaskTracker creates a tracker for the named pool keeping up to
// historyCapacity completion records.
func NewTaskTracker(pool string, historyCapacity int, metrics Metrics) *TaskTracker {
	if metrics == nil {
		metrics = &NilMetrics{}
	}
	return &TaskTracker{
		pool:    pool,
		stats:   newStatsAccumulator(),
		history: newExecutionHistory(historyCapacity),
		metrics: metrics,
		now:     time.Now,
	}
}

// SubmitTask allocates a task id and records the task as blocked.
func (t *TaskTracker) SubmitTask() TaskID {
	id := GenerateTaskID()
	t.live.Store(id, &taskRecord{id: id, submitted: t.now()})
	t.stats.submitted.Add(1)
	t.stats.blocked.Add(1)
	return id
}

// StartTask moves the task from blocked to running and records its wait
// time. It returns false for ids the tracker does not know.
func (t *TaskTracker) StartTask(id TaskID) bool {
	v, ok := t.live.Load(id)
	if !ok {
		return false
	}
	rec := v.(*taskRecord)
	rec.started = t.now()
	if rec.started.Before(rec.submitted) {
		rec.started = rec.submitted
	}

	t.stats.blocked.Add(-1)
	t.stats.running.Add(1)

	wait := rec.started.Sub(rec.submitted)
	t.stats.wait.observe(wait)
	t.metrics.RecordTaskWait(t.pool, wait)
	return true
}

// CompleteTask records the end of a started task and forgets it.
func (t *TaskTracker) CompleteTask(id TaskID, succeeded bool) bool {
	return t.complete(id, succeeded, false)
}

func (t *TaskTracker) complete(id TaskID, succeeded, panicked bool) bool {
	v, ok := t.live.LoadAndDelete(id)
	if !ok {
		return false
	}
	rec := v.(*taskRecord)
	rec.finished = t.now()
	if rec.finished.Before(rec.started) {
		rec.finished = rec.started
	}

	t.stats.running.Add(-1)
	t.stats.completed.Add(1)
	if succeeded {
		t.stats.completedSuccessfully.Add(1)
	}
	if panicked {
		t.stats.panicked.Add(1)
	}

	exec := rec.finished.Sub(rec.started)
	t.stats.exec.observe(exec)
	t.metrics.RecordTaskDuration(t.pool, exec, succeeded)

	t.history.Add(TaskExecutionRecord{
		TaskID:      id,
		Pool:        t.pool,
		SubmittedAt: rec.submitted,
		StartedAt:   rec.started,
		FinishedAt:  rec.finished,
		Wait:        rec.started.Sub(rec.submitted),
		Duration:    exec,
		Succeeded:   succeeded,
		Panicked:    panicked,
	})
	return true
}

// Discard forgets an accepted task that will never start, moving it from
// blocked to discarded. It stays counted as submitted.
func (t *TaskTracker) Discard(id TaskID, reason string) bool {
	if _, ok := t.live.LoadAndDelete(id); !ok {
		return false
	}
	t.stats.blocked.Add(-1)
	t.stats.discarded.Add(1)
	t.metrics.RecordTaskRejected(t.pool, reason)
	return true
}

// Refuse withdraws a task the pool would not accept. The submission is
// rolled back and only counted as rejected.
func (t *TaskTracker) Refuse(id TaskID, reason string) bool {
	if _, ok := t.live.LoadAndDelete(id); !ok {
		return false
	}
	t.stats.submitted.Add(-1)
	t.stats.blocked.Add(-1)
	t.stats.rejected.Add(1)
	t.metrics.RecordTaskRejected(t.pool, reason)
	return true
}

// InFlight returns the number of tasks submitted but not yet completed or
// discarded.
func (t *TaskTracker) InFlight() int {
	n := 0
	t.live.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// RecentTasks returns the latest completion records, newest first.
func (t *TaskTracker) RecentTasks(limit int) []TaskExecutionRecord {
	return t.history.Recent(limit)
}

// LastTask returns the most recent completion record.
func (t *TaskTracker) LastTask() (TaskExecutionRecord, bool) {
	return t.history.Last()
}

// Fill copies the tracker's counters into stats.
func (t *TaskTracker) Fill(stats *PoolStats) {
	t.stats.fill(stats)
}
