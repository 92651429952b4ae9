// Package buffer implements the Buffer Pool Manager: a fixed-size
// in-memory cache of fixed-size pages with pin counts, dirty tracking,
// and LRU replacement, per §4.2 of the specification.
package buffer

import (
	"fmt"
	"sync"

	"github.com/nikhilrao/relstore/internal/logger"
	"github.com/nikhilrao/relstore/internal/metrics"
	"github.com/nikhilrao/relstore/pkg/common"
	"github.com/nikhilrao/relstore/pkg/dberrors"
	"github.com/nikhilrao/relstore/pkg/diskmgr"
)

// DiskManager is the subset of diskmgr.Manager the buffer pool needs,
// so tests can substitute an in-memory fake (mirroring the teacher's
// TestContext pattern of swapping page-management callbacks).
type DiskManager interface {
	ReadPage(id common.PageID, out []byte) error
	WritePage(id common.PageID, data []byte) error
	AllocatePage() (common.PageID, error)
	DeallocatePage(id common.PageID) error
}

var _ DiskManager = (*diskmgr.Manager)(nil)

// Manager is the Buffer Pool Manager. Every public operation below is
// atomic with respect to the page table, free list, and replacer: they
// share one mutex, per the concurrency model's single critical section
// rule. Per-frame content is additionally guarded by the frame's own
// latch for callers that read/write page bytes across unpin.
type Manager struct {
	mu sync.Mutex

	frames    []*Frame
	pageTable map[common.PageID]int
	freeList  []int
	replacer  *lruReplacer

	disk DiskManager
	log  *logger.Logger
	met  *metrics.Metrics
}

// NewManager creates a pool of poolSize frames backed by disk.
func NewManager(poolSize int, disk DiskManager, met *metrics.Metrics) *Manager {
	frames := make([]*Frame, poolSize)
	free := make([]int, poolSize)
	for i := range frames {
		frames[i] = &Frame{pageID: common.InvalidPageID}
		free[i] = i
	}
	return &Manager{
		frames:    frames,
		pageTable: make(map[common.PageID]int),
		freeList:  free,
		replacer:  newLRUReplacer(),
		disk:      disk,
		log:       logger.Get().Component("buffer"),
		met:       met,
	}
}

// FetchPage pins and returns the frame holding logical page id,
// reading it from disk on a cache miss. It returns an InvalidPageID
// error for InvalidPageID, and a Failed error when every frame is
// pinned and there is no victim.
func (m *Manager) FetchPage(id common.PageID) (*Frame, error) {
	if id == common.InvalidPageID {
		return nil, dberrors.New(dberrors.InvalidPageID, "buffer.FetchPage", "", nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.pageTable[id]; ok {
		f := m.frames[idx]
		if f.pinCount == 0 {
			m.replacer.pin(idx)
		}
		f.pinCount++
		m.met.RecordFetch(true)
		m.updatePinnedGauge()
		return f, nil
	}

	idx, victimErr := m.findVictimLocked()
	if victimErr != nil {
		m.met.RecordFetch(false)
		return nil, victimErr
	}

	f := m.frames[idx]
	if err := m.disk.ReadPage(id, f.data[:]); err != nil {
		// The frame is already detached from the old id; leave it in
		// the free list rather than the page table on read failure.
		m.freeList = append(m.freeList, idx)
		return nil, err
	}
	f.pageID = id
	f.pinCount = 1
	f.dirty = false
	m.pageTable[id] = idx
	m.met.RecordFetch(false)
	m.updatePinnedGauge()
	return f, nil
}

// NewPage allocates a fresh logical page via the disk manager and pins
// a zeroed frame for it, behaving like FetchPage for new content.
func (m *Manager) NewPage() (*Frame, common.PageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.findVictimLocked()
	if err != nil {
		return nil, common.InvalidPageID, err
	}

	id, err := m.disk.AllocatePage()
	if err != nil {
		m.freeList = append(m.freeList, idx)
		return nil, common.InvalidPageID, err
	}

	f := m.frames[idx]
	f.pageID = id
	f.pinCount = 1
	f.dirty = false
	for i := range f.data {
		f.data[i] = 0
	}
	m.pageTable[id] = idx
	m.updatePinnedGauge()
	return f, id, nil
}

// findVictimLocked selects a frame for (re)use: free list preferred,
// then the LRU victim. The caller must hold m.mu.
func (m *Manager) findVictimLocked() (int, error) {
	if n := len(m.freeList); n > 0 {
		idx := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		return idx, nil
	}

	idx, ok := m.replacer.victim()
	if !ok {
		return 0, dberrors.New(dberrors.Failed, "buffer.findVictim", "no unpinned frame available", nil)
	}
	m.met.RecordEviction()

	f := m.frames[idx]
	if f.dirty {
		if err := m.disk.WritePage(f.pageID, f.data[:]); err != nil {
			// Put the frame back up for eviction; the caller can retry.
			m.replacer.unpin(idx)
			return 0, err
		}
	}
	delete(m.pageTable, f.pageID)
	f.reset()
	return idx, nil
}

// UnpinPage decrements id's pin count and ORs isDirty into the frame's
// dirty flag (a prior true is never downgraded by a later false, per
// the resolved §9 ambiguity). When the pin count reaches zero the frame
// becomes eligible for eviction.
func (m *Manager) UnpinPage(id common.PageID, isDirty bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.pageTable[id]
	if !ok {
		return dberrors.New(dberrors.NotFound, "buffer.UnpinPage", fmt.Sprint(id), nil)
	}
	f := m.frames[idx]
	if f.pinCount == 0 {
		return dberrors.New(dberrors.Failed, "buffer.UnpinPage", fmt.Sprint(id), fmt.Errorf("already unpinned"))
	}
	if isDirty {
		f.dirty = true
	}
	f.pinCount--
	if f.pinCount == 0 {
		m.replacer.unpin(idx)
	}
	m.updatePinnedGauge()
	return nil
}

// FlushPage writes id's frame through to disk if resident, clearing its
// dirty flag.
func (m *Manager) FlushPage(id common.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.pageTable[id]
	if !ok {
		return dberrors.New(dberrors.NotFound, "buffer.FlushPage", fmt.Sprint(id), nil)
	}
	f := m.frames[idx]
	if err := m.disk.WritePage(id, f.data[:]); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

// FlushAllPages writes every resident page through to disk, used on
// shutdown.
func (m *Manager) FlushAllPages() error {
	m.mu.Lock()
	ids := make([]common.PageID, 0, len(m.pageTable))
	for id := range m.pageTable {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.FlushPage(id); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage removes id from the buffer pool and deallocates it on
// disk. It fails if the page is resident and pinned.
func (m *Manager) DeletePage(id common.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.pageTable[id]
	if ok {
		f := m.frames[idx]
		if f.pinCount > 0 {
			return dberrors.New(dberrors.PinnedPageInUse, "buffer.DeletePage", fmt.Sprint(id), nil)
		}
		m.replacer.pin(idx) // remove from victim set before reuse
		delete(m.pageTable, id)
		f.reset()
		m.freeList = append(m.freeList, idx)
	}

	return m.disk.DeallocatePage(id)
}

func (m *Manager) updatePinnedGauge() {
	pinned := 0
	for _, f := range m.frames {
		if f.pinCount > 0 {
			pinned++
		}
	}
	m.met.SetPinnedPages(pinned)
}
