package page

import (
	"encoding/binary"
	"math/bits"

	"github.com/nikhilrao/relstore/pkg/common"
)

const bitmapHeaderSize = 4

// BitmapSize is the number of logical data pages one bitmap page can
// track (the spec's "B"), derived from the fixed page size.
const BitmapSize = (common.PageSize - bitmapHeaderSize) * 8

// BitmapPage is a typed view over a raw page buffer holding one
// extent's allocation bitmap plus a next-free-bit hint. Bit 0 is the
// most-significant bit of byte 0, matching the external format.
type BitmapPage []byte

// NewBitmapPage wraps buf (which must be common.PageSize long) as a
// BitmapPage view.
func NewBitmapPage(buf []byte) BitmapPage { return BitmapPage(buf) }

// Reset zeroes the bitmap and its hint, as done when a new extent is
// initialised.
func (b BitmapPage) Reset() {
	for i := range b {
		b[i] = 0
	}
}

func (b BitmapPage) nextFreeHint() uint32 {
	return binary.LittleEndian.Uint32(b[0:4])
}

func (b BitmapPage) setNextFreeHint(v uint32) {
	binary.LittleEndian.PutUint32(b[0:4], v)
}

func (b BitmapPage) bits() []byte { return b[bitmapHeaderSize:] }

// IsFree reports whether logical offset (within the extent) is unset.
func (b BitmapPage) IsFree(offset uint32) bool {
	byteIdx := offset / 8
	bitIdx := 7 - (offset % 8)
	return b.bits()[byteIdx]&(1<<bitIdx) == 0
}

func (b BitmapPage) set(offset uint32, val bool) {
	byteIdx := offset / 8
	bitIdx := 7 - (offset % 8)
	if val {
		b.bits()[byteIdx] |= 1 << bitIdx
	} else {
		b.bits()[byteIdx] &^= 1 << bitIdx
	}
}

// Allocate scans forward from the hint for the next zero bit, sets it,
// and returns its offset. Returns ok=false when the extent is full.
func (b BitmapPage) Allocate() (offset uint32, ok bool) {
	hint := b.nextFreeHint()
	for i := uint32(0); i < BitmapSize; i++ {
		candidate := (hint + i) % BitmapSize
		if b.IsFree(candidate) {
			b.set(candidate, true)
			b.setNextFreeHint(candidate + 1)
			return candidate, true
		}
	}
	return 0, false
}

// Deallocate clears offset's bit and pulls the hint backward if the
// freed bit sits earlier than the current hint.
func (b BitmapPage) Deallocate(offset uint32) {
	b.set(offset, false)
	if offset < b.nextFreeHint() {
		b.setNextFreeHint(offset)
	}
}

// UsedCount returns the number of set bits (allocated pages) in this
// extent, used to keep the disk meta page's counters honest.
func (b BitmapPage) UsedCount() int {
	count := 0
	for _, by := range b.bits() {
		count += bits.OnesCount8(by)
	}
	return count
}
