package disk

import (
	"sync"

	"github.com/golang/glog"
)

// DiskRequest represents one disk operation to be carried out by the
// scheduler's worker. Data is borrowed from the caller: it must stay valid
// and untouched until the request's completion handle resolves.
type DiskRequest struct {
	// IsWrite selects between WritePage (true) and ReadPage (false).
	IsWrite bool
	// PageID is the page the operation targets.
	PageID PageID
	// Data is the caller-owned page buffer, exactly one page in size.
	Data []byte
	// Done resolves once the operation has completed.
	Done *Promise
}

// NewReadRequest builds a read of page id into buf with a fresh handle.
func NewReadRequest(id PageID, buf []byte) *DiskRequest {
	return &DiskRequest{IsWrite: false, PageID: id, Data: buf, Done: NewPromise()}
}

// NewWriteRequest builds a write of buf to page id with a fresh handle.
func NewWriteRequest(id PageID, buf []byte) *DiskRequest {
	return &DiskRequest{IsWrite: true, PageID: id, Data: buf, Done: NewPromise()}
}

// Promise is a single-assignment completion handle. The producer side calls
// Set exactly once; any number of Wait calls then observe that one value.
// Resolving a Promise twice is a programming error and aborts.
type Promise struct {
	mu   sync.Mutex
	set  bool
	done chan struct{}
	ok   bool
}

// NewPromise returns an unresolved Promise.
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Set resolves the promise with ok. Fatal if the promise already resolved;
// the mutex makes the violation report deterministic even for racing Set
// calls.
func (p *Promise) Set(ok bool) {
	p.mu.Lock()
	if p.set {
		p.mu.Unlock()
		glog.Fatalf("promise resolved twice")
	}
	p.set = true
	p.ok = ok
	close(p.done)
	p.mu.Unlock()
}

// Wait blocks until the promise resolves and returns its value.
func (p *Promise) Wait() bool {
	<-p.done
	return p.ok
}

// Resolved reports whether Set has been called, without blocking.
func (p *Promise) Resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
