package page

import (
	"encoding/binary"

	"github.com/nikhilrao/relstore/pkg/common"
)

// LeafPage stores (key, RowID) pairs in sorted key order, plus a
// forward link to the next leaf for range scans.
type LeafPage []byte

// NewLeafPage initializes buf as an empty leaf page for the given key
// size, computing max_size from the available page capacity.
func NewLeafPage(buf []byte, pageID common.PageID, keySize int) LeafPage {
	n := BTreeNode(buf)
	n.setNodeType(NodeLeaf)
	n.SetLSN(0)
	n.setSize(0)
	n.setKeySize(keySize)
	n.setPageID(pageID)
	n.SetParentPageID(common.InvalidPageID)
	p := LeafPage(buf)
	p.SetNextPageID(common.InvalidPageID)
	// One slot of headroom is reserved so a split can insert before
	// redistributing, rather than needing the new entry to already fit.
	n.setMaxSize(p.capacity() - 1)
	return p
}

func WrapLeafPage(buf []byte) LeafPage { return LeafPage(buf) }

func (p LeafPage) KeySize() int  { return BTreeNode(p).KeySize() }
func (p LeafPage) Size() int     { return BTreeNode(p).Size() }
func (p LeafPage) MaxSize() int  { return BTreeNode(p).MaxSize() }
func (p LeafPage) setSize(v int) { BTreeNode(p).setSize(v) }

func (p LeafPage) entrySize() int { return p.KeySize() + 8 }

func (p LeafPage) capacity() int {
	return (common.PageSize - bLeafHeaderSize) / p.entrySize()
}

func (p LeafPage) NextPageID() common.PageID {
	return common.PageID(int32(binary.LittleEndian.Uint32(p[bNodeHeaderSize : bNodeHeaderSize+4])))
}
func (p LeafPage) SetNextPageID(id common.PageID) {
	binary.LittleEndian.PutUint32(p[bNodeHeaderSize:bNodeHeaderSize+4], uint32(int32(id)))
}

func (p LeafPage) entryOffset(i int) int { return bLeafHeaderSize + i*p.entrySize() }

// KeyAt returns a copy of the key at index i.
func (p LeafPage) KeyAt(i int) []byte {
	off := p.entryOffset(i)
	ks := p.KeySize()
	out := make([]byte, ks)
	copy(out, p[off:off+ks])
	return out
}

// ValueAt returns the RowID stored at index i.
func (p LeafPage) ValueAt(i int) common.RowID {
	off := p.entryOffset(i) + p.KeySize()
	return common.RowID{
		PageID:  common.PageID(int32(binary.LittleEndian.Uint32(p[off : off+4]))),
		SlotNum: binary.LittleEndian.Uint32(p[off+4 : off+8]),
	}
}

func (p LeafPage) setEntry(i int, key []byte, rid common.RowID) {
	off := p.entryOffset(i)
	ks := p.KeySize()
	copy(p[off:off+ks], key)
	binary.LittleEndian.PutUint32(p[off+ks:off+ks+4], uint32(int32(rid.PageID)))
	binary.LittleEndian.PutUint32(p[off+ks+4:off+ks+8], rid.SlotNum)
}

// IsFull reports whether the leaf has reached its max size.
func (p LeafPage) IsFull() bool { return p.Size() >= p.MaxSize() }

// insertAt shifts entries [i:size) right by one and writes (key, rid)
// at index i.
func (p LeafPage) insertAt(i int, key []byte, rid common.RowID) {
	n := p.Size()
	for j := n; j > i; j-- {
		src := p.entryOffset(j - 1)
		dst := p.entryOffset(j)
		copy(p[dst:dst+p.entrySize()], p[src:src+p.entrySize()])
	}
	p.setEntry(i, key, rid)
	p.setSize(n + 1)
}

// Insert inserts (key, rid) in sorted order using cmp for ordering. It
// does not check for an existing equal key; the tree's find-then-insert
// path checks with FindIndex first, which keeps keys unique — callers
// needing duplicates should encode a tiebreaker into the key.
func (p LeafPage) Insert(key []byte, rid common.RowID, cmp func(a, b []byte) int) {
	i := p.lowerBound(key, cmp)
	p.insertAt(i, key, rid)
}

// LowerBound returns the first index whose key is >= key.
func (p LeafPage) LowerBound(key []byte, cmp func(a, b []byte) int) int {
	return p.lowerBound(key, cmp)
}

// lowerBound returns the first index whose key is >= key.
func (p LeafPage) lowerBound(key []byte, cmp func(a, b []byte) int) int {
	lo, hi := 0, p.Size()
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(p.KeyAt(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Find returns the value for key and true, or false if absent.
func (p LeafPage) Find(key []byte, cmp func(a, b []byte) int) (common.RowID, bool) {
	i := p.lowerBound(key, cmp)
	if i < p.Size() && cmp(p.KeyAt(i), key) == 0 {
		return p.ValueAt(i), true
	}
	return common.InvalidRowID, false
}

// FindIndex returns the slot index of key and true, or false if absent.
func (p LeafPage) FindIndex(key []byte, cmp func(a, b []byte) int) (int, bool) {
	i := p.lowerBound(key, cmp)
	if i < p.Size() && cmp(p.KeyAt(i), key) == 0 {
		return i, true
	}
	return -1, false
}

// MinSize is the fewest entries a non-root leaf may hold before it must
// redistribute or coalesce with a sibling.
func (p LeafPage) MinSize() int { return (p.MaxSize() + 1) / 2 }

// RemoveAt deletes the entry at index i, shifting later entries left.
func (p LeafPage) RemoveAt(i int) {
	n := p.Size()
	for j := i; j < n-1; j++ {
		src := p.entryOffset(j + 1)
		dst := p.entryOffset(j)
		copy(p[dst:dst+p.entrySize()], p[src:src+p.entrySize()])
	}
	p.setSize(n - 1)
}

// MoveHalfTo transfers the upper half of p's entries to other (used on
// split), returning the first moved key (the separator for the parent).
func (p LeafPage) MoveHalfTo(other LeafPage) []byte {
	n := p.Size()
	mid := n / 2
	for i := mid; i < n; i++ {
		other.insertAt(other.Size(), p.KeyAt(i), p.ValueAt(i))
	}
	p.setSize(mid)
	return other.KeyAt(0)
}

// MoveAllTo appends all of p's entries onto other (used on merge).
func (p LeafPage) MoveAllTo(other LeafPage) {
	for i := 0; i < p.Size(); i++ {
		other.insertAt(other.Size(), p.KeyAt(i), p.ValueAt(i))
	}
	p.setSize(0)
}

// MoveFirstToEndOf moves p's first entry onto the end of other
// (borrowing from the right sibling during redistribution).
func (p LeafPage) MoveFirstToEndOf(other LeafPage) {
	other.insertAt(other.Size(), p.KeyAt(0), p.ValueAt(0))
	p.RemoveAt(0)
}

// MoveLastToFrontOf moves p's last entry onto the front of other
// (borrowing from the left sibling during redistribution).
func (p LeafPage) MoveLastToFrontOf(other LeafPage) {
	last := p.Size() - 1
	other.insertAt(0, p.KeyAt(last), p.ValueAt(last))
	p.RemoveAt(last)
}
