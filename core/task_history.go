package core

import (
	"sync"

	"github.com/eapache/queue"
)

// executionHistory keeps the last limit completion records of a pool,
// evicting the oldest once full. A limit of zero keeps nothing.
type executionHistory struct {
	mu      sync.Mutex
	limit   int
	records *queue.Queue
}

func newExecutionHistory(limit int) *executionHistory {
	if limit < 0 {
		limit = DefaultHistoryCapacity
	}
	return &executionHistory{limit: limit, records: queue.New()}
}

func (h *executionHistory) Add(record TaskExecutionRecord) {
	if h.limit == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.records.Length() == h.limit {
		h.records.Remove()
	}
	h.records.Add(record)
}

// Recent returns up to n records, newest first. n <= 0 means all.
func (h *executionHistory) Recent(n int) []TaskExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	size := h.records.Length()
	if size == 0 {
		return nil
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]TaskExecutionRecord, n)
	for i := range out {
		out[i] = h.records.Get(-1 - i).(TaskExecutionRecord)
	}
	return out
}

// Last returns the newest record.
func (h *executionHistory) Last() (TaskExecutionRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.records.Length() == 0 {
		return TaskExecutionRecord{}, false
	}
	return h.records.Get(-1).(TaskExecutionRecord), true
}
