package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/glog"
)

// PageID identifies one fixed-size page inside the data file.
type PageID int64

// DiskManager abstracts the synchronous page I/O primitives the scheduler
// drives. Both calls block until the page transfer is done; callers must
// hand in a buffer of exactly one page.
type DiskManager interface {
	// ReadPage fills buf with the contents of page id.
	ReadPage(id PageID, buf []byte) error
	// WritePage writes buf as the contents of page id.
	WritePage(id PageID, buf []byte) error
}

// Manager is the file-backed DiskManager used by the database. It keeps one
// data file open and addresses pages by offset. The Manager is thread-safe.
type Manager struct {
	opts         Options
	file         *os.File
	isNew        bool
	mu           sync.Mutex
	pagesRead    int
	pagesWritten int
}

// NewManager opens (or creates) the data file described by opts.
func NewManager(opts Options) (*Manager, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	isNew := false
	if _, err := os.Stat(opts.Path); os.IsNotExist(err) {
		isNew = true
		if err := os.MkdirAll(opts.Path, 0755); err != nil {
			return nil, fmt.Errorf("cannot create directory %s: %v", opts.Path, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("cannot access directory %s: %v", opts.Path, err)
	}

	dataPath := filepath.Join(opts.Path, opts.DataFile)
	if !isNew {
		if _, err := os.Stat(dataPath); os.IsNotExist(err) {
			isNew = true
		}
	}

	f, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, fmt.Errorf("cannot open data file %s: %v", dataPath, err)
	}
	glog.V(1).Infof("opened data file %s (new=%v, page size %d)", dataPath, isNew, opts.PageSize)

	return &Manager{
		opts:  opts,
		file:  f,
		isNew: isNew,
	}, nil
}

// ReadPage reads page id into buf. Reading past the current end of the file
// yields a zeroed page, so freshly allocated pages are readable before their
// first write.
func (m *Manager) ReadPage(id PageID, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkRequest(id, buf); err != nil {
		return err
	}

	offset := int64(id) * int64(m.opts.PageSize)
	n, err := m.file.ReadAt(buf, offset)

	if err == nil && n == len(buf) {
		m.pagesRead++
		return nil
	}

	// A read beyond the written extent is a zero page, not a fault.
	if errors.Is(err, io.EOF) {
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		m.pagesRead++
		return nil
	}

	if err != nil {
		return fmt.Errorf("cannot read page %d: %v", id, err)
	}
	return fmt.Errorf("short read on page %d: expected %d bytes, got %d", id, len(buf), n)
}

// WritePage writes buf as the contents of page id, syncing if configured.
func (m *Manager) WritePage(id PageID, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkRequest(id, buf); err != nil {
		return err
	}

	offset := int64(id) * int64(m.opts.PageSize)
	n, err := m.file.WriteAt(buf, offset)
	if err != nil {
		return fmt.Errorf("cannot write page %d: %v", id, err)
	}
	if n != len(buf) {
		return fmt.Errorf("short write on page %d: expected %d bytes, wrote %d", id, len(buf), n)
	}

	if m.opts.SyncWrites {
		if err := m.file.Sync(); err != nil {
			return fmt.Errorf("cannot sync data file to disk: %v", err)
		}
	}
	m.pagesWritten++
	return nil
}

func (m *Manager) checkRequest(id PageID, buf []byte) error {
	if id < 0 {
		return fmt.Errorf("invalid page id %d", id)
	}
	if len(buf) != m.opts.PageSize {
		return fmt.Errorf("buffer size %d does not match page size %d", len(buf), m.opts.PageSize)
	}
	return nil
}

// Size returns the number of pages currently in the data file.
func (m *Manager) Size() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fileInfo, err := m.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("cannot stat data file: %v", err)
	}
	return int(fileInfo.Size() / int64(m.opts.PageSize)), nil
}

// IsNew returns true if the data file was newly created.
func (m *Manager) IsNew() bool {
	return m.isNew
}

// PageSize returns the fixed page size used by the Manager.
func (m *Manager) PageSize() int {
	return m.opts.PageSize
}

// PagesRead returns the number of successful page reads so far.
func (m *Manager) PagesRead() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.pagesRead
}

// PagesWritten returns the number of successful page writes so far.
func (m *Manager) PagesWritten() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.pagesWritten
}

// Close closes the underlying data file. The Manager must not be used after
// Close; in-flight scheduler work must be drained first.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.file.Close(); err != nil {
		return fmt.Errorf("cannot close data file: %v", err)
	}
	glog.V(1).Infof("closed data file after %d reads, %d writes", m.pagesRead, m.pagesWritten)
	return nil
}
