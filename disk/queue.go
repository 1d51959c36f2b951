package disk

import (
	"sync"
)

// requestQueue is an unbounded FIFO channel between any number of producer
// goroutines and the scheduler's single worker. put never blocks; get
// blocks while the queue is empty. A nil request is the shutdown sentinel:
// it is delivered after everything enqueued before it and closes the queue,
// so nothing can slip in behind it and sit unserviced forever.
type requestQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	closed   bool
	items    []*DiskRequest
}

func newRequestQueue() *requestQueue {
	q := &requestQueue{}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// put appends r and wakes the worker if it is waiting. It reports false
// once the sentinel has been enqueued; the item is dropped then.
func (q *requestQueue) put(r *DiskRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if r == nil {
		q.closed = true
	}
	q.items = append(q.items, r)
	q.notEmpty.Signal()
	return true
}

// get removes and returns the oldest item, waiting for one if necessary.
func (q *requestQueue) get() *DiskRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		q.notEmpty.Wait()
	}
	r := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return r
}
