package disk

import (
	"bytes"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingManager wraps a MemoryManager and records the order operations
// reach the disk layer, so tests can assert FIFO servicing.
type recordingManager struct {
	*MemoryManager
	mu  sync.Mutex
	ops []PageID
}

func newRecordingManager(pageSize int) *recordingManager {
	return &recordingManager{MemoryManager: NewMemoryManager(pageSize)}
}

func (m *recordingManager) ReadPage(id PageID, buf []byte) error {
	m.record(id)
	return m.MemoryManager.ReadPage(id, buf)
}

func (m *recordingManager) WritePage(id PageID, buf []byte) error {
	m.record(id)
	return m.MemoryManager.WritePage(id, buf)
}

func (m *recordingManager) record(id PageID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, id)
}

func (m *recordingManager) recorded() []PageID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PageID(nil), m.ops...)
}

func TestSchedulerRoundTrip(t *testing.T) {
	const pageSize = 256
	s := NewScheduler(NewMemoryManager(pageSize))
	defer s.Shutdown()

	out := make([]byte, pageSize)
	for i := range out {
		out[i] = byte(i % 251)
	}
	write := NewWriteRequest(5, out)
	s.Schedule(write)
	assert.True(t, write.Done.Wait(), "write handle resolves with success")

	in := make([]byte, pageSize)
	read := NewReadRequest(5, in)
	s.Schedule(read)
	assert.True(t, read.Done.Wait())
	assert.Equal(t, out, in, "read must observe the scheduled write")
}

func TestSchedulerRoundTripThroughFile(t *testing.T) {
	opts := DefaultOptions(t.TempDir())
	opts.SyncWrites = false
	m, err := NewManager(opts)
	require.NoError(t, err)
	defer m.Close()

	s := NewScheduler(m)

	out := make([]byte, m.PageSize())
	for i := range out {
		out[i] = byte(i)
	}
	write := NewWriteRequest(2, out)
	in := make([]byte, m.PageSize())
	read := NewReadRequest(2, in)

	// Both enqueued before either is awaited: FIFO order guarantees the
	// read sees the write.
	s.Schedule(write)
	s.Schedule(read)
	require.True(t, write.Done.Wait())
	require.True(t, read.Done.Wait())
	assert.Equal(t, out, in)

	s.Shutdown()
	assert.Equal(t, 1, m.PagesWritten())
	assert.Equal(t, 1, m.PagesRead())
}

func TestSchedulerServicesRequestsInOrder(t *testing.T) {
	const pageSize = 64
	rm := newRecordingManager(pageSize)
	s := NewScheduler(rm)

	var want []PageID
	var requests []*DiskRequest
	for i := 0; i < 50; i++ {
		r := NewWriteRequest(PageID(i), make([]byte, pageSize))
		s.Schedule(r)
		requests = append(requests, r)
		want = append(want, PageID(i))
	}
	for _, r := range requests {
		require.True(t, r.Done.Wait())
	}
	s.Shutdown()

	assert.Equal(t, want, rm.recorded(), "worker must service requests in enqueue order")
}

func TestSchedulerShutdownDrainsQueue(t *testing.T) {
	const pageSize = 64
	s := NewScheduler(NewMemoryManager(pageSize))

	var requests []*DiskRequest
	for i := 0; i < 100; i++ {
		r := NewWriteRequest(PageID(i), make([]byte, pageSize))
		s.Schedule(r)
		requests = append(requests, r)
	}

	// Shutdown must not return before every queued request resolved.
	s.Shutdown()
	for i, r := range requests {
		assert.True(t, r.Done.Resolved(), "request %d left unresolved after shutdown", i)
	}

	// A second Shutdown is a no-op.
	s.Shutdown()
}

func TestSchedulerConcurrentProducers(t *testing.T) {
	const (
		pageSize  = 64
		producers = 8
		perWorker = 25
	)
	rm := newRecordingManager(pageSize)
	s := NewScheduler(rm)

	var wg sync.WaitGroup
	for g := 0; g < producers; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				buf := make([]byte, pageSize)
				buf[0] = byte(base)
				r := NewWriteRequest(PageID(base*perWorker+i), buf)
				s.Schedule(r)
				assert.True(t, r.Done.Wait())
			}
		}(g)
	}
	wg.Wait()
	s.Shutdown()

	// Every request was serviced exactly once.
	assert.Len(t, rm.recorded(), producers*perWorker)
	assert.Equal(t, producers*perWorker, rm.MemoryManager.Size())
}

func TestRequestQueueClosesAtSentinel(t *testing.T) {
	q := newRequestQueue()

	first := NewWriteRequest(0, nil)
	assert.True(t, q.put(first))
	assert.True(t, q.put(nil), "sentinel itself is accepted")

	// Anything behind the sentinel would never be serviced, so the queue
	// must refuse it rather than strand its completion handle.
	assert.False(t, q.put(NewWriteRequest(1, nil)))

	// Items ahead of the sentinel are still delivered, in order.
	assert.Same(t, first, q.get())
	assert.Nil(t, q.get())
}

// fatalScenarios are scheduler-side contract violations that must abort
// the process. Each runs in a re-executed child so the abort can be
// observed.
var fatalScenarios = map[string]struct {
	run  func()
	want string
}{
	"schedule after shutdown": {
		run: func() {
			s := NewScheduler(NewMemoryManager(64))
			s.Shutdown()
			s.Schedule(NewWriteRequest(0, make([]byte, 64)))
		},
		want: "after shutdown",
	},
	"promise resolved twice": {
		run: func() {
			p := NewPromise()
			p.Set(true)
			p.Set(false)
		},
		want: "resolved twice",
	},
}

func TestContractViolationsAreFatal(t *testing.T) {
	if name := os.Getenv("FRAMEDB_FATAL_SCENARIO"); name != "" {
		fatalScenarios[name].run()
		os.Exit(0) // not reached when the violation aborts as required
	}

	for name, tc := range fatalScenarios {
		t.Run(name, func(t *testing.T) {
			cmd := exec.Command(os.Args[0], "-test.run=TestContractViolationsAreFatal$")
			cmd.Env = append(os.Environ(), "FRAMEDB_FATAL_SCENARIO="+name)
			var stderr bytes.Buffer
			cmd.Stderr = &stderr

			err := cmd.Run()
			var exitErr *exec.ExitError
			require.ErrorAs(t, err, &exitErr, "child must abort, stderr: %s", stderr.String())
			assert.False(t, exitErr.Success())
			assert.Contains(t, stderr.String(), tc.want)
		})
	}
}

func TestPromise(t *testing.T) {
	t.Run("wait blocks until set", func(t *testing.T) {
		p := NewPromise()
		assert.False(t, p.Resolved())

		done := make(chan bool, 1)
		go func() {
			done <- p.Wait()
		}()

		select {
		case <-done:
			t.Fatal("Wait returned before the promise resolved")
		case <-time.After(20 * time.Millisecond):
		}

		p.Set(true)
		select {
		case v := <-done:
			assert.True(t, v)
		case <-time.After(time.Second):
			t.Fatal("Wait did not return after the promise resolved")
		}
	})

	t.Run("repeated wait sees the same value", func(t *testing.T) {
		p := NewPromise()
		p.Set(true)
		assert.True(t, p.Resolved())
		assert.True(t, p.Wait())
		assert.True(t, p.Wait())
	})
}
