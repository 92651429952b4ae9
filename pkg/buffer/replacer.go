package buffer

import "container/list"

// lruReplacer tracks unpinned frames and selects the least-recently-
// unpinned one as the next eviction victim, per §4.2's LRU Replacer.
// It is an intrusive doubly linked list plus a hash map, giving O(1)
// Victim/Pin/Unpin as the spec suggests.
type lruReplacer struct {
	order *list.List                 // front = LRU (oldest), back = MRU
	index map[int]*list.Element      // frame id -> its element in order
}

func newLRUReplacer() *lruReplacer {
	return &lruReplacer{
		order: list.New(),
		index: make(map[int]*list.Element),
	}
}

// victim removes and returns the least-recently-unpinned frame id.
func (r *lruReplacer) victim() (frameID int, ok bool) {
	front := r.order.Front()
	if front == nil {
		return 0, false
	}
	id := front.Value.(int)
	r.order.Remove(front)
	delete(r.index, id)
	return id, true
}

// pin removes frameID from the replacer's victim set (it is no longer
// eligible for eviction while pinned).
func (r *lruReplacer) pin(frameID int) {
	if el, ok := r.index[frameID]; ok {
		r.order.Remove(el)
		delete(r.index, frameID)
	}
}

// unpin inserts frameID at the MRU end if it is not already present.
func (r *lruReplacer) unpin(frameID int) {
	if _, ok := r.index[frameID]; ok {
		return
	}
	r.index[frameID] = r.order.PushBack(frameID)
}

// size returns the number of frames currently eligible for eviction.
func (r *lruReplacer) size() int { return r.order.Len() }
