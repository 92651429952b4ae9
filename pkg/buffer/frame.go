package buffer

import (
	"sync"

	"github.com/nikhilrao/relstore/pkg/common"
)

// Frame is a slot in the buffer pool holding one cached page, per
// §3's Frame invariant: pin_count > 0 implies the frame is not in the
// replacer's victim set.
type Frame struct {
	pageID   common.PageID
	data     [common.PageSize]byte
	pinCount uint32
	dirty    bool
	latch    sync.RWMutex
}

// PageID returns the logical page currently held by this frame.
func (f *Frame) PageID() common.PageID { return f.pageID }

// Data returns the frame's backing buffer. Callers holding the frame's
// pin may read or write it directly; writers should mark the frame
// dirty via UnpinPage(id, true).
func (f *Frame) Data() []byte { return f.data[:] }

// PinCount returns the frame's current pin count.
func (f *Frame) PinCount() uint32 { return f.pinCount }

// Dirty reports whether the frame has unflushed modifications.
func (f *Frame) Dirty() bool { return f.dirty }

// RLock/RUnlock/Lock/Unlock expose the frame's content latch so callers
// can serialize reads against writes of the same page's bytes, per the
// "frame latches give per-page serial order" concurrency rule.
func (f *Frame) RLock()   { f.latch.RLock() }
func (f *Frame) RUnlock() { f.latch.RUnlock() }
func (f *Frame) Lock()    { f.latch.Lock() }
func (f *Frame) Unlock()  { f.latch.Unlock() }

func (f *Frame) reset() {
	f.pageID = common.InvalidPageID
	f.pinCount = 0
	f.dirty = false
	for i := range f.data {
		f.data[i] = 0
	}
}
