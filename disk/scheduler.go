package disk

import (
	"sync"

	"github.com/golang/glog"
)

/*
Scheduler decouples callers from the latency of synchronous disk access.
Requests from any number of goroutines are funneled through one unbounded
FIFO queue and carried out, strictly in enqueue order, by a single worker
goroutine that the Scheduler owns for its entire lifetime. Each request
carries its own completion handle; the worker resolves it once the
underlying disk call has returned.
*/
type Scheduler struct {
	dm       DiskManager
	queue    *requestQueue
	workerWg sync.WaitGroup
	shutdown sync.Once
}

// NewScheduler spawns the worker goroutine and returns the running
// scheduler. The caller must call Shutdown when done with it.
func NewScheduler(dm DiskManager) *Scheduler {
	s := &Scheduler{
		dm:    dm,
		queue: newRequestQueue(),
	}
	s.workerWg.Add(1)
	go s.workerLoop()
	return s
}

// Schedule enqueues one disk request and returns immediately. The request's
// Data buffer must stay valid and untouched until its Done handle resolves.
// Scheduling after Shutdown is caller misuse and aborts.
func (s *Scheduler) Schedule(r *DiskRequest) {
	if r == nil || r.Done == nil {
		glog.Fatalf("scheduled an invalid disk request")
	}
	// The queue decides under its own lock, so a Schedule racing Shutdown
	// either lands ahead of the sentinel and completes, or fails here.
	if !s.queue.put(r) {
		glog.Fatalf("scheduled a disk request after shutdown")
	}
}

// workerLoop is the body of the single worker goroutine. It drains the
// queue in FIFO order until it sees the shutdown sentinel. Disk faults are
// unrecoverable here: a request is never resolved with failure, the process
// aborts instead.
func (s *Scheduler) workerLoop() {
	defer s.workerWg.Done()
	for {
		r := s.queue.get()
		if r == nil {
			return
		}

		if r.IsWrite {
			if err := s.dm.WritePage(r.PageID, r.Data); err != nil {
				glog.Fatalf("disk write of page %d failed: %v", r.PageID, err)
			}
			r.Done.Set(true)
			continue
		}

		if err := s.dm.ReadPage(r.PageID, r.Data); err != nil {
			glog.Fatalf("disk read of page %d failed: %v", r.PageID, err)
		}
		r.Done.Set(true)
	}
}

// Shutdown stops the scheduler: it enqueues the shutdown sentinel and waits
// for the worker to exit. Every request scheduled before Shutdown has its
// completion handle resolved by the time Shutdown returns. Safe to call
// more than once; later calls are no-ops.
func (s *Scheduler) Shutdown() {
	s.shutdown.Do(func() {
		s.queue.put(nil)
		s.workerWg.Wait()
		glog.V(1).Info("disk scheduler worker exited")
	})
}
