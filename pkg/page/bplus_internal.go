package page

import (
	"encoding/binary"

	"github.com/nikhilrao/relstore/pkg/common"
)

// InternalPage stores size child pointers and size-1 separator keys:
// entry 0's key is unused (it only carries the leftmost child
// pointer), entry i (i>=1) pairs key_i with the child whose keys are
// all >= key_i (and < key_(i+1) if it exists).
type InternalPage []byte

// NewInternalPage initializes buf as an empty internal page.
func NewInternalPage(buf []byte, pageID common.PageID, keySize int) InternalPage {
	n := BTreeNode(buf)
	n.setNodeType(NodeInternal)
	n.SetLSN(0)
	n.setSize(0)
	n.setKeySize(keySize)
	n.setPageID(pageID)
	n.SetParentPageID(common.InvalidPageID)
	p := InternalPage(buf)
	n.setMaxSize(p.capacity() - 1)
	return p
}

func WrapInternalPage(buf []byte) InternalPage { return InternalPage(buf) }

func (p InternalPage) KeySize() int  { return BTreeNode(p).KeySize() }
func (p InternalPage) Size() int     { return BTreeNode(p).Size() }
func (p InternalPage) MaxSize() int  { return BTreeNode(p).MaxSize() }
func (p InternalPage) setSize(v int) { BTreeNode(p).setSize(v) }

func (p InternalPage) entrySize() int { return p.KeySize() + 4 }

func (p InternalPage) capacity() int {
	return (common.PageSize - bNodeHeaderSize) / p.entrySize()
}

func (p InternalPage) IsFull() bool { return p.Size() >= p.MaxSize() }

func (p InternalPage) entryOffset(i int) int { return bNodeHeaderSize + i*p.entrySize() }

func (p InternalPage) KeyAt(i int) []byte {
	off := p.entryOffset(i)
	ks := p.KeySize()
	out := make([]byte, ks)
	copy(out, p[off:off+ks])
	return out
}

func (p InternalPage) ValueAt(i int) common.PageID {
	off := p.entryOffset(i) + p.KeySize()
	return common.PageID(int32(binary.LittleEndian.Uint32(p[off : off+4])))
}

// SetKeyAt overwrites the separator key at index i without touching its
// child pointer, used to re-key a parent entry after redistribution.
func (p InternalPage) SetKeyAt(i int, key []byte) {
	off := p.entryOffset(i)
	copy(p[off:off+p.KeySize()], key)
}

func (p InternalPage) setEntry(i int, key []byte, child common.PageID) {
	off := p.entryOffset(i)
	ks := p.KeySize()
	copy(p[off:off+ks], key)
	binary.LittleEndian.PutUint32(p[off+ks:off+ks+4], uint32(int32(child)))
}

func (p InternalPage) insertAt(i int, key []byte, child common.PageID) {
	n := p.Size()
	for j := n; j > i; j-- {
		src := p.entryOffset(j - 1)
		dst := p.entryOffset(j)
		copy(p[dst:dst+p.entrySize()], p[src:src+p.entrySize()])
	}
	p.setEntry(i, key, child)
	p.setSize(n + 1)
}

// MinSize is the fewest children a non-root internal node may hold
// before it must redistribute or coalesce with a sibling.
func (p InternalPage) MinSize() int { return (p.MaxSize() + 1) / 2 }

func (p InternalPage) RemoveAt(i int) {
	n := p.Size()
	for j := i; j < n-1; j++ {
		src := p.entryOffset(j + 1)
		dst := p.entryOffset(j)
		copy(p[dst:dst+p.entrySize()], p[src:src+p.entrySize()])
	}
	p.setSize(n - 1)
}

// PopulateNewRoot sets this (freshly allocated) page up as a new root
// with one separator key between left and right children.
func (p InternalPage) PopulateNewRoot(left common.PageID, key []byte, right common.PageID) {
	p.setEntry(0, make([]byte, p.KeySize()), left)
	p.setEntry(1, key, right)
	p.setSize(2)
}

// Lookup returns the child page id to descend into for key.
func (p InternalPage) Lookup(key []byte, cmp func(a, b []byte) int) common.PageID {
	i := 1
	n := p.Size()
	for i < n && cmp(p.KeyAt(i), key) <= 0 {
		i++
	}
	return p.ValueAt(i - 1)
}

// ValueIndex returns the slot index holding child, or -1.
func (p InternalPage) ValueIndex(child common.PageID) int {
	for i := 0; i < p.Size(); i++ {
		if p.ValueAt(i) == child {
			return i
		}
	}
	return -1
}

// InsertNodeAfter inserts (key, newChild) immediately after the entry
// for oldChild, used when a child page splits.
func (p InternalPage) InsertNodeAfter(oldChild common.PageID, key []byte, newChild common.PageID) {
	idx := p.ValueIndex(oldChild)
	p.insertAt(idx+1, key, newChild)
}

// MoveHalfTo transfers the upper half of p's entries (including the
// separator key above the split point, which becomes the parent's new
// separator) to other.
func (p InternalPage) MoveHalfTo(other InternalPage) []byte {
	n := p.Size()
	mid := n / 2
	upKey := p.KeyAt(mid)
	other.setEntry(0, make([]byte, p.KeySize()), p.ValueAt(mid))
	other.setSize(1)
	for i := mid + 1; i < n; i++ {
		other.insertAt(other.Size(), p.KeyAt(i), p.ValueAt(i))
	}
	p.setSize(mid)
	return upKey
}

// MoveAllTo appends all of p's entries onto other given the parent
// separator key above p (which becomes other's new key for p's
// leftmost child pointer).
func (p InternalPage) MoveAllTo(other InternalPage, parentKey []byte) {
	other.insertAt(other.Size(), parentKey, p.ValueAt(0))
	for i := 1; i < p.Size(); i++ {
		other.insertAt(other.Size(), p.KeyAt(i), p.ValueAt(i))
	}
	p.setSize(0)
}

// MoveFirstToEndOf moves p's first child onto the end of other, using
// parentKey as the separator installed above the moved child; it
// returns the new separator key the parent should use above p.
func (p InternalPage) MoveFirstToEndOf(other InternalPage, parentKey []byte) []byte {
	other.insertAt(other.Size(), parentKey, p.ValueAt(0))
	newParentKey := p.KeyAt(1)
	p.RemoveAt(0)
	return newParentKey
}

// MoveLastToFrontOf moves p's last child onto the front of other, using
// parentKey as the separator currently above other; it returns the new
// separator key the parent should use above other.
func (p InternalPage) MoveLastToFrontOf(other InternalPage, parentKey []byte) []byte {
	last := p.Size() - 1
	newParentKey := p.KeyAt(last)
	other.insertAt(0, make([]byte, p.KeySize()), p.ValueAt(last))
	other.SetKeyAt(1, parentKey)
	p.RemoveAt(last)
	return newParentKey
}
