package txn

import "github.com/nikhilrao/relstore/pkg/common"

// LockMode is the granularity a lock hook is requested at.
type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

// LockManager is the opaque lock hook a transaction-aware caller layered
// above the Table Heap and B+Tree would call Acquire against before
// touching a row, and Release via the owning transaction's commit/abort
// when done. This module never evaluates conflicts itself, and nothing
// in pkg/heap or pkg/index calls it directly; see DESIGN.md's "Where
// pkg/txn's and pkg/wal's hooks get called" entry.
type LockManager interface {
	Acquire(t *Transaction, rid common.RowID, mode LockMode) error
	Release(t *Transaction, rid common.RowID) error
}

// NullLockManager grants every request unconditionally.
type NullLockManager struct{}

var _ LockManager = (*NullLockManager)(nil)

func (NullLockManager) Acquire(t *Transaction, rid common.RowID, mode LockMode) error { return nil }
func (NullLockManager) Release(t *Transaction, rid common.RowID) error                { return nil }
