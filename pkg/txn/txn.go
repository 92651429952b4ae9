// Package txn defines the opaque transaction and lock handles for a
// transaction-aware caller layered above the core (spec.md §1). Nothing
// in this module calls these hooks, and the package does not define
// concurrency-control or durability semantics for them — that belongs
// to a SQL front end's transaction/lock manager, out of scope here.
package txn

// State is a transaction's lifecycle state.
type State int

const (
	StateActive State = iota
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ID identifies a transaction.
type ID uint64

// Transaction is the opaque handle a transaction-aware caller would
// pass into Catalog/Heap/Index operations. Its fields are visible so a
// real transaction manager can be built around it, but nothing in this
// module inspects them beyond
// State.
type Transaction struct {
	ID    ID
	State State
}

// Manager begins, commits, and aborts Transactions. No package in this
// module accepts a Manager or calls Begin/Commit/Abort.
type Manager interface {
	Begin() *Transaction
	Commit(t *Transaction) error
	Abort(t *Transaction) error
}

// NullManager is the default Manager: every transaction commits
// immediately and Abort is a no-op, matching "the core has no mandatory
// transaction dependency."
type NullManager struct {
	next ID
}

var _ Manager = (*NullManager)(nil)

func (m *NullManager) Begin() *Transaction {
	m.next++
	return &Transaction{ID: m.next, State: StateActive}
}

func (m *NullManager) Commit(t *Transaction) error {
	t.State = StateCommitted
	return nil
}

func (m *NullManager) Abort(t *Transaction) error {
	t.State = StateAborted
	return nil
}
