// Package diskmgr implements the Disk Manager: it maps a logical
// page-id space onto a single host file using bitmap-page extents for
// allocation, per the specification's §4.1.
package diskmgr

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nikhilrao/relstore/internal/logger"
	"github.com/nikhilrao/relstore/internal/metrics"
	"github.com/nikhilrao/relstore/pkg/common"
	"github.com/nikhilrao/relstore/pkg/dberrors"
	"github.com/nikhilrao/relstore/pkg/page"
)

const (
	metaHeaderSize = 8 // allocated(u32) | num_extents(u32)
	maxExtents     = (common.PageSize - metaHeaderSize) / 4

	extentPages = page.BitmapSize + 1 // one bitmap page + its data pages
)

// Manager is the Disk Manager: it owns the backing file and the
// logical-to-physical page translation. All file access is funnelled
// through a single mutex, matching the "disk file is a second critical
// section" rule in the concurrency model.
type Manager struct {
	mu sync.Mutex

	path string
	fd   *os.File

	allocated  uint32
	numExtents uint32
	extentUsed [maxExtents]uint32

	log *logger.Logger
	met *metrics.Metrics
}

// Open creates or opens the database file at path and loads (or
// initializes) its meta page.
func Open(path string, met *metrics.Metrics) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, dberrors.New(dberrors.IoError, "diskmgr.Open", path, err)
	}

	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, dberrors.New(dberrors.IoError, "diskmgr.Open", path, err)
	}

	if dirFd, derr := os.Open(filepath.Dir(path)); derr == nil {
		dirFd.Sync()
		dirFd.Close()
	}

	m := &Manager{
		path: path,
		fd:   fd,
		log:  logger.Get().Component("diskmgr"),
		met:  met,
	}

	stat, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, dberrors.New(dberrors.IoError, "diskmgr.Open", path, err)
	}

	if stat.Size() == 0 {
		if err := m.writeMeta(); err != nil {
			fd.Close()
			return nil, err
		}
	} else if err := m.readMeta(); err != nil {
		fd.Close()
		return nil, err
	}

	return m, nil
}

// Close flushes the meta page and closes the backing file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeMetaLocked(); err != nil {
		return err
	}
	if err := m.fd.Sync(); err != nil {
		return dberrors.New(dberrors.IoError, "diskmgr.Close", m.path, err)
	}
	return m.fd.Close()
}

func extentAndOffset(l common.PageID) (extent uint32, offset uint32) {
	li := uint32(l)
	return li / page.BitmapSize, li % page.BitmapSize
}

func physicalID(extent, offset uint32) int64 {
	return 1 + int64(extent)*int64(extentPages) + 1 + int64(offset)
}

func bitmapPhysicalID(extent uint32) int64 {
	return 1 + int64(extent)*int64(extentPages)
}

// ReadPage reads logical page l into out, which must be common.PageSize
// long.
func (m *Manager) ReadPage(l common.PageID, out []byte) error {
	if l == common.InvalidPageID || len(out) != common.PageSize {
		return dberrors.New(dberrors.InvalidPageID, "diskmgr.ReadPage", fmt.Sprint(l), nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	ext, off := extentAndOffset(l)
	n, err := m.fd.ReadAt(out, physicalID(ext, off)*common.PageSize)
	m.met.RecordRead(time.Since(start).Seconds())
	if err != nil && n != common.PageSize {
		return dberrors.New(dberrors.IoError, "diskmgr.ReadPage", fmt.Sprint(l), err)
	}
	return nil
}

// WritePage writes data (common.PageSize bytes) to logical page l.
func (m *Manager) WritePage(l common.PageID, data []byte) error {
	if l == common.InvalidPageID || len(data) != common.PageSize {
		return dberrors.New(dberrors.InvalidPageID, "diskmgr.WritePage", fmt.Sprint(l), nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	ext, off := extentAndOffset(l)
	_, err := m.fd.WriteAt(data, physicalID(ext, off)*common.PageSize)
	m.met.RecordWrite(time.Since(start).Seconds())
	if err != nil {
		return dberrors.New(dberrors.IoError, "diskmgr.WritePage", fmt.Sprint(l), err)
	}
	return nil
}

// AllocatePage reserves and returns a fresh logical page id.
func (m *Manager) AllocatePage() (common.PageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if common.PageID(m.allocated) >= common.MaxValidPageID {
		return common.InvalidPageID, dberrors.New(dberrors.OutOfSpace, "diskmgr.AllocatePage", "", nil)
	}

	for e := uint32(0); e < m.numExtents; e++ {
		if m.extentUsed[e] < page.BitmapSize {
			off, err := m.allocateInExtent(e)
			if err != nil {
				return common.InvalidPageID, err
			}
			return common.PageID(e*page.BitmapSize + off), nil
		}
	}

	// Every existing extent is full: initialise a new one.
	e := m.numExtents
	if e >= maxExtents {
		return common.InvalidPageID, dberrors.New(dberrors.OutOfSpace, "diskmgr.AllocatePage", "no room for new extent", nil)
	}
	bm := make([]byte, common.PageSize)
	page.NewBitmapPage(bm).Reset()
	if _, err := m.fd.WriteAt(bm, bitmapPhysicalID(e)*common.PageSize); err != nil {
		return common.InvalidPageID, dberrors.New(dberrors.IoError, "diskmgr.AllocatePage", "", err)
	}
	m.numExtents++

	off, err := m.allocateInExtent(e)
	if err != nil {
		return common.InvalidPageID, err
	}
	return common.PageID(e*page.BitmapSize + off), nil
}

func (m *Manager) allocateInExtent(e uint32) (uint32, error) {
	buf := make([]byte, common.PageSize)
	if _, err := m.fd.ReadAt(buf, bitmapPhysicalID(e)*common.PageSize); err != nil {
		return 0, dberrors.New(dberrors.IoError, "diskmgr.allocateInExtent", "", err)
	}
	bm := page.NewBitmapPage(buf)
	off, ok := bm.Allocate()
	if !ok {
		return 0, dberrors.New(dberrors.OutOfSpace, "diskmgr.allocateInExtent", "", nil)
	}
	if _, err := m.fd.WriteAt(buf, bitmapPhysicalID(e)*common.PageSize); err != nil {
		return 0, dberrors.New(dberrors.IoError, "diskmgr.allocateInExtent", "", err)
	}
	m.allocated++
	m.extentUsed[e]++
	m.met.SetAllocatedPages(int(m.allocated))
	if err := m.writeMetaLocked(); err != nil {
		return 0, err
	}
	return off, nil
}

// DeallocatePage returns logical page l to the free bitmap.
func (m *Manager) DeallocatePage(l common.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ext, off := extentAndOffset(l)
	if ext >= m.numExtents {
		return dberrors.New(dberrors.InvalidPageID, "diskmgr.DeallocatePage", fmt.Sprint(l), nil)
	}

	buf := make([]byte, common.PageSize)
	if _, err := m.fd.ReadAt(buf, bitmapPhysicalID(ext)*common.PageSize); err != nil {
		return dberrors.New(dberrors.IoError, "diskmgr.DeallocatePage", fmt.Sprint(l), err)
	}
	bm := page.NewBitmapPage(buf)
	if bm.IsFree(off) {
		return nil
	}
	bm.Deallocate(off)
	if _, err := m.fd.WriteAt(buf, bitmapPhysicalID(ext)*common.PageSize); err != nil {
		return dberrors.New(dberrors.IoError, "diskmgr.DeallocatePage", fmt.Sprint(l), err)
	}

	m.allocated--
	m.extentUsed[ext]--
	if m.extentUsed[ext] == 0 && ext == m.numExtents-1 {
		m.numExtents--
	}
	m.met.SetAllocatedPages(int(m.allocated))
	return m.writeMetaLocked()
}

// IsPageFree reports whether logical page l is unallocated.
func (m *Manager) IsPageFree(l common.PageID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ext, off := extentAndOffset(l)
	if ext >= m.numExtents {
		return true, nil
	}
	buf := make([]byte, common.PageSize)
	if _, err := m.fd.ReadAt(buf, bitmapPhysicalID(ext)*common.PageSize); err != nil {
		return false, dberrors.New(dberrors.IoError, "diskmgr.IsPageFree", fmt.Sprint(l), err)
	}
	return page.NewBitmapPage(buf).IsFree(off), nil
}

// AllocatedPages returns the number of currently allocated logical
// pages, equal to the sum of set bits across all bitmaps (invariant 1).
func (m *Manager) AllocatedPages() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(m.allocated)
}

func (m *Manager) writeMeta() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeMetaLocked()
}

func (m *Manager) writeMetaLocked() error {
	buf := make([]byte, common.PageSize)
	binary.LittleEndian.PutUint32(buf[0:4], m.allocated)
	binary.LittleEndian.PutUint32(buf[4:8], m.numExtents)
	for i := uint32(0); i < maxExtents; i++ {
		binary.LittleEndian.PutUint32(buf[metaHeaderSize+i*4:metaHeaderSize+i*4+4], m.extentUsed[i])
	}
	if _, err := m.fd.WriteAt(buf, 0); err != nil {
		return dberrors.New(dberrors.IoError, "diskmgr.writeMeta", "", err)
	}
	return nil
}

func (m *Manager) readMeta() error {
	buf := make([]byte, common.PageSize)
	if _, err := m.fd.ReadAt(buf, 0); err != nil {
		return dberrors.New(dberrors.IoError, "diskmgr.readMeta", "", err)
	}
	m.allocated = binary.LittleEndian.Uint32(buf[0:4])
	m.numExtents = binary.LittleEndian.Uint32(buf[4:8])
	for i := uint32(0); i < maxExtents; i++ {
		m.extentUsed[i] = binary.LittleEndian.Uint32(buf[metaHeaderSize+i*4 : metaHeaderSize+i*4+4])
	}
	return nil
}
