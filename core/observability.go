package core

import "time"

// TaskExecutionRecord captures a completed task execution event.
type TaskExecutionRecord struct {
	TaskID      TaskID    `json:"task_id"`
	Pool        string    `json:"pool"`
	SubmittedAt time.Time `json:"submitted_at"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`

	Wait     time.Duration `json:"wait"`
	Duration time.Duration `json:"duration"`

	Succeeded bool `json:"succeeded"`
	Panicked  bool `json:"panicked"`
}

// PoolStats is a read-only, point-in-time copy of one pool's configuration
// and statistics. Counters are read independently, so while tasks are in
// flight Submitted may briefly differ from Blocked+Running+Completed+Discarded.
// Once the pool drains the sum is exact. Discarded counts accepted tasks
// dropped before they started; Rejected counts submissions the pool refused
// and is not part of Submitted.
type PoolStats struct {
	Name          string    `json:"name"`
	State         PoolState `json:"state"`
	CoreSize      int       `json:"core_size"`
	MaxSize       int       `json:"max_size"`
	QueueCapacity int       `json:"queue_capacity"`
	Workers       int       `json:"workers"`
	Queued        int       `json:"queued"`

	Submitted             int64 `json:"submitted"`
	Blocked               int64 `json:"blocked"`
	Running               int64 `json:"running"`
	Completed             int64 `json:"completed"`
	CompletedSuccessfully int64 `json:"completed_successfully"`
	Discarded             int64 `json:"discarded"`
	Rejected              int64 `json:"rejected"`
	Panicked              int64 `json:"panicked"`

	TotalWait time.Duration `json:"total_wait"`
	MinWait   time.Duration `json:"min_wait"`
	MaxWait   time.Duration `json:"max_wait"`
	TotalExec time.Duration `json:"total_exec"`
	MinExec   time.Duration `json:"min_exec"`
	MaxExec   time.Duration `json:"max_exec"`
}

// Failed returns the number of completed tasks that did not succeed.
func (s PoolStats) Failed() int64 {
	return s.Completed - s.CompletedSuccessfully
}

// AvgWait returns the mean submit-to-start time of started tasks.
func (s PoolStats) AvgWait() time.Duration {
	started := s.Running + s.Completed
	if started <= 0 {
		return 0
	}
	return s.TotalWait / time.Duration(started)
}

// AvgExec returns the mean execution time of completed tasks.
func (s PoolStats) AvgExec() time.Duration {
	if s.Completed <= 0 {
		return 0
	}
	return s.TotalExec / time.Duration(s.Completed)
}
