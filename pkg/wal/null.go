package wal

import "github.com/nikhilrao/relstore/pkg/common"

// NullLogManager is the default LogManager: it assigns monotonically
// increasing LSNs (so page headers still get a meaningful opaque
// value) but never persists anything. Used when the engine is run
// without durability, matching spec.md §1's "transaction, lock, and
// log managers are opaque handles" — the core never requires one.
type NullLogManager struct {
	lsn uint32
}

var _ LogManager = (*NullLogManager)(nil)

// AppendRecord discards data and returns the next LSN.
func (n *NullLogManager) AppendRecord(pageID common.PageID, data []byte) (uint32, error) {
	n.lsn++
	return n.lsn, nil
}

// Flush is a no-op.
func (n *NullLogManager) Flush() error { return nil }
