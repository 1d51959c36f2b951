package disk

import (
	"fmt"
	"sync"
)

// MemoryManager is a map-backed DiskManager. It is used by tests and by
// ephemeral pools that never need their pages to survive the process.
type MemoryManager struct {
	pageSize int
	mu       sync.Mutex
	pages    map[PageID][]byte
}

// NewMemoryManager returns an empty in-memory disk manager with the given
// page size.
func NewMemoryManager(pageSize int) *MemoryManager {
	return &MemoryManager{
		pageSize: pageSize,
		pages:    make(map[PageID][]byte),
	}
}

// ReadPage copies the stored contents of page id into buf. An unwritten
// page reads as zeroes, matching the file-backed Manager.
func (m *MemoryManager) ReadPage(id PageID, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkRequest(id, buf); err != nil {
		return err
	}
	page, ok := m.pages[id]
	if !ok {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	copy(buf, page)
	return nil
}

// WritePage stores a copy of buf as the contents of page id.
func (m *MemoryManager) WritePage(id PageID, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkRequest(id, buf); err != nil {
		return err
	}
	page := make([]byte, len(buf))
	copy(page, buf)
	m.pages[id] = page
	return nil
}

func (m *MemoryManager) checkRequest(id PageID, buf []byte) error {
	if id < 0 {
		return fmt.Errorf("invalid page id %d", id)
	}
	if len(buf) != m.pageSize {
		return fmt.Errorf("buffer size %d does not match page size %d", len(buf), m.pageSize)
	}
	return nil
}

// Size returns the number of pages ever written.
func (m *MemoryManager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.pages)
}
