package page

import (
	"encoding/binary"

	"github.com/nikhilrao/relstore/pkg/common"
)

// NodeType distinguishes a B+Tree internal node from a leaf.
type NodeType uint32

const (
	NodeLeaf NodeType = iota
	NodeInternal
)

// B+Tree node header, shared by internal and leaf pages:
//
//	node_type(4) | lsn(4) | size(4) | max_size(4) | parent_page_id(4) | page_id(4) | key_size(4)
//
// Leaf pages append a next_leaf_page_id(4) field after the common
// header; internal pages do not.
const (
	bNodeHeaderSize = 28
	bLeafHeaderSize = bNodeHeaderSize + 4
)

// BTreeNode is the header shared by LeafPage and InternalPage.
type BTreeNode []byte

func (n BTreeNode) NodeType() NodeType { return NodeType(binary.LittleEndian.Uint32(n[0:4])) }
func (n BTreeNode) setNodeType(t NodeType) {
	binary.LittleEndian.PutUint32(n[0:4], uint32(t))
}

func (n BTreeNode) LSN() uint32     { return binary.LittleEndian.Uint32(n[4:8]) }
func (n BTreeNode) SetLSN(v uint32) { binary.LittleEndian.PutUint32(n[4:8], v) }

func (n BTreeNode) Size() int        { return int(binary.LittleEndian.Uint32(n[8:12])) }
func (n BTreeNode) setSize(v int)    { binary.LittleEndian.PutUint32(n[8:12], uint32(v)) }

func (n BTreeNode) MaxSize() int     { return int(binary.LittleEndian.Uint32(n[12:16])) }
func (n BTreeNode) setMaxSize(v int) { binary.LittleEndian.PutUint32(n[12:16], uint32(v)) }

func (n BTreeNode) ParentPageID() common.PageID {
	return common.PageID(int32(binary.LittleEndian.Uint32(n[16:20])))
}
func (n BTreeNode) SetParentPageID(id common.PageID) {
	binary.LittleEndian.PutUint32(n[16:20], uint32(int32(id)))
}

func (n BTreeNode) PageID() common.PageID {
	return common.PageID(int32(binary.LittleEndian.Uint32(n[20:24])))
}
func (n BTreeNode) setPageID(id common.PageID) {
	binary.LittleEndian.PutUint32(n[20:24], uint32(int32(id)))
}

func (n BTreeNode) KeySize() int     { return int(binary.LittleEndian.Uint32(n[24:28])) }
func (n BTreeNode) setKeySize(v int) { binary.LittleEndian.PutUint32(n[24:28], uint32(v)) }

// IsLeaf reports whether this node is a leaf page.
func (n BTreeNode) IsLeaf() bool { return n.NodeType() == NodeLeaf }

// IsRoot reports whether this node currently has no parent.
func (n BTreeNode) IsRoot() bool { return n.ParentPageID() == common.InvalidPageID }
