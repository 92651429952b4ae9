package index

import (
	"github.com/nikhilrao/relstore/internal/logger"
	"github.com/nikhilrao/relstore/internal/metrics"
	"github.com/nikhilrao/relstore/pkg/buffer"
	"github.com/nikhilrao/relstore/pkg/common"
	"github.com/nikhilrao/relstore/pkg/dberrors"
	"github.com/nikhilrao/relstore/pkg/page"
)

// Tree is a disk-backed B+Tree index: an ordered mapping from
// GenericKey to RowID, built from page-framed leaf and internal pages
// pinned through the buffer pool. Its current root is tracked in the
// well-known index-roots page rather than in memory, so a restart picks
// up exactly where the index left off.
type Tree struct {
	bp      *buffer.Manager
	indexID uint32
	km      *KeyManager
	log     *logger.Logger
	met     *metrics.Metrics
}

// Create allocates a fresh, empty leaf root page for a new index and
// records it in the index-roots page.
func Create(bp *buffer.Manager, indexID uint32, km *KeyManager, met *metrics.Metrics) (*Tree, error) {
	t := &Tree{bp: bp, indexID: indexID, km: km, met: met, log: logger.Get().Component("index")}

	guard, id, err := bp.NewPageGuarded()
	if err != nil {
		return nil, err
	}
	page.NewLeafPage(guard.Frame().Data(), id, km.KeySize())
	guard.MarkDirty()
	if err := guard.Release(); err != nil {
		return nil, err
	}
	if err := t.setRoot(id); err != nil {
		return nil, err
	}
	return t, nil
}

// Open wraps an existing index whose root is recorded at indexID in
// the index-roots page.
func Open(bp *buffer.Manager, indexID uint32, km *KeyManager, met *metrics.Metrics) *Tree {
	return &Tree{bp: bp, indexID: indexID, km: km, met: met, log: logger.Get().Component("index")}
}

func (t *Tree) cmp(a, b []byte) int { return t.km.Compare(GenericKey(a), GenericKey(b)) }

func (t *Tree) getRoot() (common.PageID, error) {
	guard, err := t.bp.FetchPageGuarded(common.IndexRootsPageID)
	if err != nil {
		return common.InvalidPageID, err
	}
	defer guard.Release()
	roots := page.WrapIndexRootsPage(guard.Frame().Data())
	return roots.GetRoot(t.indexID), nil
}

func (t *Tree) setRoot(id common.PageID) error {
	guard, err := t.bp.FetchPageGuarded(common.IndexRootsPageID)
	if err != nil {
		return err
	}
	roots := page.WrapIndexRootsPage(guard.Frame().Data())
	if err := roots.SetRoot(t.indexID, id); err != nil {
		guard.Release()
		return err
	}
	guard.MarkDirty()
	return guard.Release()
}

// RootPageID exposes the current root for diagnostics and tests.
func (t *Tree) RootPageID() (common.PageID, error) { return t.getRoot() }

// findLeafPath descends from the root to the leaf that key belongs in,
// returning the leaf's page id and the page ids of its ancestors
// (root first).
func (t *Tree) findLeafPath(key GenericKey) (common.PageID, []common.PageID, error) {
	root, err := t.getRoot()
	if err != nil {
		return common.InvalidPageID, nil, err
	}
	var path []common.PageID
	cur := root
	for {
		guard, err := t.bp.FetchPageGuarded(cur)
		if err != nil {
			return common.InvalidPageID, nil, err
		}
		node := page.BTreeNode(guard.Frame().Data())
		if node.IsLeaf() {
			guard.Release()
			return cur, path, nil
		}
		internal := page.WrapInternalPage(guard.Frame().Data())
		next := internal.Lookup(key, t.cmp)
		guard.Release()
		path = append(path, cur)
		cur = next
	}
}

// GetValue looks up key, returning its RowID and true, or false if
// absent.
func (t *Tree) GetValue(key GenericKey) (common.RowID, bool, error) {
	leafID, _, err := t.findLeafPath(key)
	if err != nil {
		return common.InvalidRowID, false, err
	}
	guard, err := t.bp.FetchPageGuarded(leafID)
	if err != nil {
		return common.InvalidRowID, false, err
	}
	defer guard.Release()
	leaf := page.WrapLeafPage(guard.Frame().Data())
	rid, ok := leaf.Find(key, t.cmp)
	return rid, ok, nil
}

// Insert adds (key, rid) to the tree, splitting nodes up to the root as
// needed. It returns AlreadyExists if key is already present.
func (t *Tree) Insert(key GenericKey, rid common.RowID) error {
	leafID, path, err := t.findLeafPath(key)
	if err != nil {
		return err
	}
	leafGuard, err := t.bp.FetchPageGuarded(leafID)
	if err != nil {
		return err
	}
	leaf := page.WrapLeafPage(leafGuard.Frame().Data())
	if _, found := leaf.FindIndex(key, t.cmp); found {
		leafGuard.Release()
		return dberrors.New(dberrors.AlreadyExists, "index.Insert", "", nil)
	}

	leaf.Insert(key, rid, t.cmp)
	leafGuard.MarkDirty()

	if leaf.Size() <= leaf.MaxSize() {
		return leafGuard.Release()
	}

	rightGuard, rightID, err := t.bp.NewPageGuarded()
	if err != nil {
		leafGuard.Release()
		return err
	}
	rightLeaf := page.NewLeafPage(rightGuard.Frame().Data(), rightID, t.km.KeySize())
	sep := leaf.MoveHalfTo(rightLeaf)
	rightLeaf.SetNextPageID(leaf.NextPageID())
	leaf.SetNextPageID(rightID)
	page.BTreeNode(rightGuard.Frame().Data()).SetParentPageID(page.BTreeNode(leafGuard.Frame().Data()).ParentPageID())
	rightGuard.MarkDirty()

	t.met.RecordSplit("leaf")
	return t.insertIntoParent(leafGuard, leafID, sep, rightGuard, rightID, path)
}

// insertIntoParent installs (sep, rightID) as a new sibling of leftID in
// their parent (creating a new root if leftID had none), recursing if
// the parent itself must split. It releases leftGuard and rightGuard.
func (t *Tree) insertIntoParent(leftGuard *buffer.PageGuard, leftID common.PageID, sep []byte, rightGuard *buffer.PageGuard, rightID common.PageID, path []common.PageID) error {
	if len(path) == 0 {
		newRootGuard, newRootID, err := t.bp.NewPageGuarded()
		if err != nil {
			leftGuard.Release()
			rightGuard.Release()
			return err
		}
		newRoot := page.NewInternalPage(newRootGuard.Frame().Data(), newRootID, t.km.KeySize())
		newRoot.PopulateNewRoot(leftID, sep, rightID)
		newRootGuard.MarkDirty()

		page.BTreeNode(leftGuard.Frame().Data()).SetParentPageID(newRootID)
		page.BTreeNode(rightGuard.Frame().Data()).SetParentPageID(newRootID)
		leftGuard.MarkDirty()
		rightGuard.MarkDirty()

		if err := t.setRoot(newRootID); err != nil {
			leftGuard.Release()
			rightGuard.Release()
			newRootGuard.Release()
			return err
		}
		if err := leftGuard.Release(); err != nil {
			return err
		}
		if err := rightGuard.Release(); err != nil {
			return err
		}
		return newRootGuard.Release()
	}

	parentID := path[len(path)-1]
	parentGuard, err := t.bp.FetchPageGuarded(parentID)
	if err != nil {
		leftGuard.Release()
		rightGuard.Release()
		return err
	}
	parent := page.WrapInternalPage(parentGuard.Frame().Data())
	parent.InsertNodeAfter(leftID, sep, rightID)
	page.BTreeNode(rightGuard.Frame().Data()).SetParentPageID(parentID)
	rightGuard.MarkDirty()

	if err := leftGuard.Release(); err != nil {
		rightGuard.Release()
		parentGuard.Release()
		return err
	}
	if err := rightGuard.Release(); err != nil {
		parentGuard.Release()
		return err
	}

	if parent.Size() <= parent.MaxSize() {
		parentGuard.MarkDirty()
		return parentGuard.Release()
	}

	newRightGuard, newRightID, err := t.bp.NewPageGuarded()
	if err != nil {
		parentGuard.Release()
		return err
	}
	newRightInternal := page.NewInternalPage(newRightGuard.Frame().Data(), newRightID, t.km.KeySize())
	upKey := parent.MoveHalfTo(newRightInternal)
	parentGuard.MarkDirty()
	newRightGuard.MarkDirty()

	for i := 0; i < newRightInternal.Size(); i++ {
		if err := t.reparentChild(newRightInternal.ValueAt(i), newRightID); err != nil {
			parentGuard.Release()
			newRightGuard.Release()
			return err
		}
	}

	t.met.RecordSplit("internal")
	return t.insertIntoParent(parentGuard, parentID, upKey, newRightGuard, newRightID, path[:len(path)-1])
}

func (t *Tree) reparentChild(childID, newParentID common.PageID) error {
	guard, err := t.bp.FetchPageGuarded(childID)
	if err != nil {
		return err
	}
	page.BTreeNode(guard.Frame().Data()).SetParentPageID(newParentID)
	guard.MarkDirty()
	return guard.Release()
}

// Remove deletes key from the tree, redistributing or coalescing
// underfull nodes up to the root as needed. It is a no-op (returns
// NotFound) if key is absent.
func (t *Tree) Remove(key GenericKey) error {
	leafID, path, err := t.findLeafPath(key)
	if err != nil {
		return err
	}
	guard, err := t.bp.FetchPageGuarded(leafID)
	if err != nil {
		return err
	}
	leaf := page.WrapLeafPage(guard.Frame().Data())
	idx, found := leaf.FindIndex(key, t.cmp)
	if !found {
		guard.Release()
		return dberrors.New(dberrors.NotFound, "index.Remove", "", nil)
	}
	leaf.RemoveAt(idx)
	guard.MarkDirty()

	root, err := t.getRoot()
	if err != nil {
		guard.Release()
		return err
	}
	if leafID == root || leaf.Size() >= leaf.MinSize() {
		return guard.Release()
	}
	return t.coalesceOrRedistributeLeaf(guard, leafID, path)
}

func (t *Tree) coalesceOrRedistributeLeaf(guard *buffer.PageGuard, nodeID common.PageID, path []common.PageID) error {
	leaf := page.WrapLeafPage(guard.Frame().Data())
	if len(path) == 0 {
		return guard.Release() // root leaf has no minimum occupancy
	}
	parentID := path[len(path)-1]
	parentGuard, err := t.bp.FetchPageGuarded(parentID)
	if err != nil {
		guard.Release()
		return err
	}
	parent := page.WrapInternalPage(parentGuard.Frame().Data())
	idx := parent.ValueIndex(nodeID)

	if idx > 0 {
		leftID := parent.ValueAt(idx - 1)
		leftGuard, err := t.bp.FetchPageGuarded(leftID)
		if err != nil {
			guard.Release()
			parentGuard.Release()
			return err
		}
		leftLeaf := page.WrapLeafPage(leftGuard.Frame().Data())
		if leftLeaf.Size() > leftLeaf.MinSize() {
			leftLeaf.MoveLastToFrontOf(leaf)
			parent.SetKeyAt(idx, leaf.KeyAt(0))
			leftGuard.MarkDirty()
			guard.MarkDirty()
			parentGuard.MarkDirty()
			leftGuard.Release()
			return t.releaseBoth(guard, parentGuard)
		}
		// merge leaf into leftLeaf
		leaf.MoveAllTo(leftLeaf)
		leftLeaf.SetNextPageID(leaf.NextPageID())
		leftGuard.MarkDirty()
		guard.Release()
		t.met.RecordMerge("leaf")
		parent.RemoveAt(idx)
		parentGuard.MarkDirty()
		if err := leftGuard.Release(); err != nil {
			parentGuard.Release()
			return err
		}
		return t.shrinkParentAfterMerge(parentGuard, parentID, path[:len(path)-1])
	}

	// no left sibling: merge/redistribute with the right sibling
	rightID := parent.ValueAt(idx + 1)
	rightGuard, err := t.bp.FetchPageGuarded(rightID)
	if err != nil {
		guard.Release()
		parentGuard.Release()
		return err
	}
	rightLeaf := page.WrapLeafPage(rightGuard.Frame().Data())
	if rightLeaf.Size() > rightLeaf.MinSize() {
		rightLeaf.MoveFirstToEndOf(leaf)
		parent.SetKeyAt(idx+1, rightLeaf.KeyAt(0))
		rightGuard.MarkDirty()
		guard.MarkDirty()
		parentGuard.MarkDirty()
		rightGuard.Release()
		return t.releaseBoth(guard, parentGuard)
	}
	rightLeaf.MoveAllTo(leaf)
	leaf.SetNextPageID(rightLeaf.NextPageID())
	guard.MarkDirty()
	rightGuard.Release()
	t.met.RecordMerge("leaf")
	parent.RemoveAt(idx + 1)
	parentGuard.MarkDirty()
	if err := guard.Release(); err != nil {
		parentGuard.Release()
		return err
	}
	return t.shrinkParentAfterMerge(parentGuard, parentID, path[:len(path)-1])
}

func (t *Tree) releaseBoth(a, b *buffer.PageGuard) error {
	if err := a.Release(); err != nil {
		b.Release()
		return err
	}
	return b.Release()
}

// shrinkParentAfterMerge checks whether parentID is now underfull after
// a child merge and recurses up the tree if so.
func (t *Tree) shrinkParentAfterMerge(parentGuard *buffer.PageGuard, parentID common.PageID, path []common.PageID) error {
	parent := page.WrapInternalPage(parentGuard.Frame().Data())
	root, err := t.getRoot()
	if err != nil {
		parentGuard.Release()
		return err
	}
	if parentID == root {
		if parent.Size() == 1 {
			// Root collapsed to a single child: that child becomes root.
			onlyChild := parent.ValueAt(0)
			if err := t.reparentChild(onlyChild, common.InvalidPageID); err != nil {
				parentGuard.Release()
				return err
			}
			if err := t.setRoot(onlyChild); err != nil {
				parentGuard.Release()
				return err
			}
		}
		return parentGuard.Release()
	}
	if parent.Size() >= parent.MinSize() {
		return parentGuard.Release()
	}
	return t.coalesceOrRedistributeInternal(parentGuard, parentID, path)
}

func (t *Tree) coalesceOrRedistributeInternal(guard *buffer.PageGuard, nodeID common.PageID, path []common.PageID) error {
	node := page.WrapInternalPage(guard.Frame().Data())
	if len(path) == 0 {
		return guard.Release()
	}
	parentID := path[len(path)-1]
	parentGuard, err := t.bp.FetchPageGuarded(parentID)
	if err != nil {
		guard.Release()
		return err
	}
	parent := page.WrapInternalPage(parentGuard.Frame().Data())
	idx := parent.ValueIndex(nodeID)

	if idx > 0 {
		leftID := parent.ValueAt(idx - 1)
		leftGuard, err := t.bp.FetchPageGuarded(leftID)
		if err != nil {
			guard.Release()
			parentGuard.Release()
			return err
		}
		leftNode := page.WrapInternalPage(leftGuard.Frame().Data())
		if leftNode.Size() > leftNode.MinSize() {
			newSep := leftNode.MoveLastToFrontOf(node, parent.KeyAt(idx))
			if err := t.reparentChild(node.ValueAt(0), nodeID); err != nil {
				leftGuard.Release()
				guard.Release()
				parentGuard.Release()
				return err
			}
			parent.SetKeyAt(idx, newSep)
			leftGuard.MarkDirty()
			guard.MarkDirty()
			parentGuard.MarkDirty()
			leftGuard.Release()
			return t.releaseBoth(guard, parentGuard)
		}
		movedCount := node.Size()
		node.MoveAllTo(leftNode, parent.KeyAt(idx))
		for i := leftNode.Size() - movedCount; i < leftNode.Size(); i++ {
			if err := t.reparentChild(leftNode.ValueAt(i), leftID); err != nil {
				break
			}
		}
		leftGuard.MarkDirty()
		guard.Release()
		t.met.RecordMerge("internal")
		parent.RemoveAt(idx)
		parentGuard.MarkDirty()
		if err := leftGuard.Release(); err != nil {
			parentGuard.Release()
			return err
		}
		return t.shrinkParentAfterMerge(parentGuard, parentID, path[:len(path)-1])
	}

	rightID := parent.ValueAt(idx + 1)
	rightGuard, err := t.bp.FetchPageGuarded(rightID)
	if err != nil {
		guard.Release()
		parentGuard.Release()
		return err
	}
	rightNode := page.WrapInternalPage(rightGuard.Frame().Data())
	if rightNode.Size() > rightNode.MinSize() {
		newSep := rightNode.MoveFirstToEndOf(node, parent.KeyAt(idx+1))
		if err := t.reparentChild(node.ValueAt(node.Size()-1), nodeID); err != nil {
			rightGuard.Release()
			guard.Release()
			parentGuard.Release()
			return err
		}
		parent.SetKeyAt(idx+1, newSep)
		rightGuard.MarkDirty()
		guard.MarkDirty()
		parentGuard.MarkDirty()
		rightGuard.Release()
		return t.releaseBoth(guard, parentGuard)
	}
	movedFrom := rightNode.Size()
	rightNode.MoveAllTo(node, parent.KeyAt(idx+1))
	for i := node.Size() - movedFrom; i < node.Size(); i++ {
		if err := t.reparentChild(node.ValueAt(i), nodeID); err != nil {
			break
		}
	}
	guard.MarkDirty()
	rightGuard.Release()
	t.met.RecordMerge("internal")
	parent.RemoveAt(idx + 1)
	parentGuard.MarkDirty()
	if err := guard.Release(); err != nil {
		parentGuard.Release()
		return err
	}
	return t.shrinkParentAfterMerge(parentGuard, parentID, path[:len(path)-1])
}

// Iterator walks (key, RowID) pairs across leaf pages in ascending
// order, following each leaf's next-page link so a scan never needs to
// revisit internal nodes.
type Iterator struct {
	tree *Tree
	leaf common.PageID
	idx  int
	size int
	done bool
}

// Begin returns an iterator positioned at the tree's smallest key.
func (t *Tree) Begin() (*Iterator, error) {
	root, err := t.getRoot()
	if err != nil {
		return nil, err
	}
	cur := root
	for {
		guard, err := t.bp.FetchPageGuarded(cur)
		if err != nil {
			return nil, err
		}
		node := page.BTreeNode(guard.Frame().Data())
		if node.IsLeaf() {
			leaf := page.WrapLeafPage(guard.Frame().Data())
			size := leaf.Size()
			guard.Release()
			return &Iterator{tree: t, leaf: cur, idx: 0, size: size, done: size == 0}, nil
		}
		internal := page.WrapInternalPage(guard.Frame().Data())
		next := internal.ValueAt(0)
		guard.Release()
		cur = next
	}
}

// Seek returns an iterator positioned at the first key >= key.
func (t *Tree) Seek(key GenericKey) (*Iterator, error) {
	leafID, _, err := t.findLeafPath(key)
	if err != nil {
		return nil, err
	}
	guard, err := t.bp.FetchPageGuarded(leafID)
	if err != nil {
		return nil, err
	}
	leaf := page.WrapLeafPage(guard.Frame().Data())
	idx := leaf.LowerBound(key, t.cmp)
	size := leaf.Size()
	guard.Release()
	it := &Iterator{tree: t, leaf: leafID, idx: idx, size: size, done: idx >= size}
	if it.done {
		if err := it.advanceLeaf(); err != nil {
			return nil, err
		}
	}
	return it, nil
}

func (it *Iterator) advanceLeaf() error {
	guard, err := it.tree.bp.FetchPageGuarded(it.leaf)
	if err != nil {
		return err
	}
	leaf := page.WrapLeafPage(guard.Frame().Data())
	next := leaf.NextPageID()
	guard.Release()
	if next == common.InvalidPageID {
		it.done = true
		return nil
	}
	guard, err = it.tree.bp.FetchPageGuarded(next)
	if err != nil {
		return err
	}
	nextLeaf := page.WrapLeafPage(guard.Frame().Data())
	size := nextLeaf.Size()
	guard.Release()
	it.leaf, it.idx, it.size = next, 0, size
	if size == 0 {
		return it.advanceLeaf()
	}
	return nil
}

// Valid reports whether the iterator is positioned on an entry.
func (it *Iterator) Valid() bool { return !it.done }

// Key returns the current entry's key.
func (it *Iterator) Key() (GenericKey, error) {
	guard, err := it.tree.bp.FetchPageGuarded(it.leaf)
	if err != nil {
		return nil, err
	}
	defer guard.Release()
	leaf := page.WrapLeafPage(guard.Frame().Data())
	return GenericKey(leaf.KeyAt(it.idx)), nil
}

// Value returns the current entry's RowID.
func (it *Iterator) Value() (common.RowID, error) {
	guard, err := it.tree.bp.FetchPageGuarded(it.leaf)
	if err != nil {
		return common.InvalidRowID, err
	}
	defer guard.Release()
	leaf := page.WrapLeafPage(guard.Frame().Data())
	return leaf.ValueAt(it.idx), nil
}

// Next advances the iterator by one entry.
func (it *Iterator) Next() error {
	if it.done {
		return nil
	}
	it.idx++
	if it.idx >= it.size {
		return it.advanceLeaf()
	}
	return nil
}

// Destroy releases every page belonging to this index back to the disk
// manager, used when the owning table or index is dropped.
func (t *Tree) Destroy() error {
	root, err := t.getRoot()
	if err != nil {
		return err
	}
	return t.destroySubtree(root)
}

func (t *Tree) destroySubtree(id common.PageID) error {
	guard, err := t.bp.FetchPageGuarded(id)
	if err != nil {
		return err
	}
	node := page.BTreeNode(guard.Frame().Data())
	isLeaf := node.IsLeaf()
	var children []common.PageID
	if !isLeaf {
		internal := page.WrapInternalPage(guard.Frame().Data())
		for i := 0; i < internal.Size(); i++ {
			children = append(children, internal.ValueAt(i))
		}
	}
	if err := guard.Release(); err != nil {
		return err
	}
	for _, c := range children {
		if err := t.destroySubtree(c); err != nil {
			return err
		}
	}
	return t.bp.DeletePage(id)
}
