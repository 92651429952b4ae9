package buffer

import "github.com/nikhilrao/relstore/pkg/common"

// PageGuard pins a single page for the duration of its scope and
// releases it exactly once via Release, so callers cannot forget to
// unpin a fetched frame on an early-return path.
type PageGuard struct {
	pool     *Manager
	frame    *Frame
	dirty    bool
	released bool
}

// FetchPageGuarded fetches and pins id, returning a guard that unpins it
// on Release.
func (m *Manager) FetchPageGuarded(id common.PageID) (*PageGuard, error) {
	f, err := m.FetchPage(id)
	if err != nil {
		return nil, err
	}
	return &PageGuard{pool: m, frame: f}, nil
}

// NewPageGuarded allocates a fresh page and returns a guard over it.
func (m *Manager) NewPageGuarded() (*PageGuard, common.PageID, error) {
	f, id, err := m.NewPage()
	if err != nil {
		return nil, common.InvalidPageID, err
	}
	return &PageGuard{pool: m, frame: f}, id, nil
}

// Frame returns the guarded frame.
func (g *PageGuard) Frame() *Frame { return g.frame }

// MarkDirty records that the guard's release should flag the page dirty.
func (g *PageGuard) MarkDirty() { g.dirty = true }

// Release unpins the guarded page, propagating any dirty mark recorded
// via MarkDirty. It is a no-op if already released.
func (g *PageGuard) Release() error {
	if g.released {
		return nil
	}
	g.released = true
	return g.pool.UnpinPage(g.frame.PageID(), g.dirty)
}
