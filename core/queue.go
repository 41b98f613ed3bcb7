package core

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// takeStatus tells a worker why workQueue.Take returned.
type takeStatus int

const (
	takeOK takeStatus = iota
	takeTimeout
	takeClosed
)

// workQueue is the per-pool FIFO of tasks waiting for a worker.
//
// Capacity < 0 is unbounded. Capacity == 0 is a direct hand-off: Offer only
// succeeds when an idle worker is blocked in Take and can receive the item
// at once. Capacity > 0 bounds the number of buffered items.
type workQueue struct {
	mu       sync.Mutex
	items    *queue.Queue
	capacity int
	waiting  int // workers parked in Take
	closed   bool

	signal chan struct{}
	done   chan struct{}
}

// newWorkQueue creates a queue. signalDepth sizes the wake-up channel and
// should be at least the maximum number of workers.
func newWorkQueue(capacity, signalDepth int) *workQueue {
	if signalDepth < 1 {
		signalDepth = 1
	}
	return &workQueue{
		items:    queue.New(),
		capacity: capacity,
		signal:   make(chan struct{}, signalDepth*2),
		done:     make(chan struct{}),
	}
}

// Offer appends item if there is room and reports whether it did.
func (q *workQueue) Offer(item *runnable) bool {
	q.mu.Lock()
	if q.closed || !q.hasRoomLocked() {
		q.mu.Unlock()
		return false
	}
	q.items.Add(item)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
		// Signal channel full; parked workers are already being woken.
	}
	return true
}

func (q *workQueue) hasRoomLocked() bool {
	switch {
	case q.capacity < 0:
		return true
	case q.capacity == 0:
		return q.waiting > q.items.Length()
	default:
		return q.items.Length() < q.capacity
	}
}

// Take removes the head item, waiting for one if the queue is empty.
// With timeout > 0 the wait is bounded; with timeout == 0 and timed set the
// queue is only polled. Take returns takeClosed once the queue is closed and
// empty, or when stop fires.
func (q *workQueue) Take(stop <-chan struct{}, timed bool, timeout time.Duration) (*runnable, takeStatus) {
	var deadline <-chan time.Time
	if timed && timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		q.mu.Lock()
		if q.items.Length() > 0 {
			item := q.items.Remove().(*runnable)
			q.mu.Unlock()
			return item, takeOK
		}
		if q.closed {
			q.mu.Unlock()
			return nil, takeClosed
		}
		if timed && timeout <= 0 {
			q.mu.Unlock()
			return nil, takeTimeout
		}
		q.waiting++
		q.mu.Unlock()

		status, woke := takeOK, false
		select {
		case <-q.signal:
			woke = true
		case <-q.done:
			woke = true
		case <-stop:
			status = takeClosed
		case <-deadline:
			status = takeTimeout
		}

		q.mu.Lock()
		q.waiting--
		if status == takeTimeout && q.items.Length() > 0 {
			// A hand-off may have counted on this worker; take it.
			item := q.items.Remove().(*runnable)
			q.mu.Unlock()
			return item, takeOK
		}
		q.mu.Unlock()

		if !woke {
			return nil, status
		}
	}
}

// RemoveOldest removes and returns the head item.
func (q *workQueue) RemoveOldest() (*runnable, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Length() == 0 {
		return nil, false
	}
	return q.items.Remove().(*runnable), true
}

// Drain removes and returns every queued item in FIFO order.
func (q *workQueue) Drain() []*runnable {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drainLocked()
}

func (q *workQueue) drainLocked() []*runnable {
	n := q.items.Length()
	if n == 0 {
		return nil
	}
	out := make([]*runnable, 0, n)
	for q.items.Length() > 0 {
		out = append(out, q.items.Remove().(*runnable))
	}
	// Release the ring's backing array.
	q.items = queue.New()
	return out
}

// Close stops the queue from accepting items. Queued items can still be
// taken. It returns false if the queue was already closed.
func (q *workQueue) Close() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.closed = true
	close(q.done)
	return true
}

// CloseAndDrain closes the queue and removes every queued item at once, so
// no worker can take them afterwards.
func (q *workQueue) CloseAndDrain() []*runnable {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return q.drainLocked()
}

func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

func (q *workQueue) Capacity() int {
	return q.capacity
}

func (q *workQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
