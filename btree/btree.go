package btree

import (
	"sync"

	"github.com/pkg/errors"

	"tarndb/common"
)

// maxHeight bounds a descent. A path longer than this can only come from a cycle in a corrupt file.
const maxHeight = 64

type Options struct {
	// Order is the maximum number of children of an internal node. Nodes hold at most Order-1 keys. It is only
	// used when a new file is created, an existing file keeps its stored order.
	Order int

	// CacheBytes is the capacity of the page cache. Zero disables caching.
	CacheBytes int64
}

func DefaultOptions() Options {
	return Options{Order: common.DefaultOrder}
}

// BTree is a disk resident B+Tree mapping a byte string key to a set of primary keys. Its nodes are addressed by
// page id through a Pager, the root page id and allocation counters live in the file header.
//
// Public methods are serialized by a mutex, so a tree can be shared, but a structural change is a sequence of
// independent page writes and is not atomic against crashes.
type BTree struct {
	// order is stored in the file header, it is cached here since it never changes for an open file.
	order  int
	pager  *Pager
	mu     sync.Mutex
	closed bool
}

// Open opens the tree stored at path, creating the file with an empty root leaf at page 0 if it does not exist.
func Open(path string, opts Options) (*BTree, error) {
	return open(path, opts, true)
}

// OpenExisting opens the tree at path and fails if the file does not exist or holds no tree.
func OpenExisting(path string, opts Options) (*BTree, error) {
	return open(path, opts, false)
}

func open(path string, opts Options, create bool) (*BTree, error) {
	pager, created, err := NewPager(path, opts.Order, create, opts.CacheBytes)
	if err != nil {
		return nil, err
	}

	tree := &BTree{
		order: pager.Order(),
		pager: pager,
	}

	if created {
		if err := pager.WriteNode(NewLeafNode(pager.Root())); err != nil {
			_ = pager.Close()
			return nil, err
		}
		if err := pager.WriteMetadata(); err != nil {
			_ = pager.Close()
			return nil, err
		}
		return tree, nil
	}

	if _, err := pager.ReadNode(pager.Root()); err != nil {
		_ = pager.Close()
		return nil, errors.Wrap(err, "reading root")
	}

	return tree, nil
}

func (tree *BTree) Order() int {
	return tree.order
}

// Root returns the page id of the current root node.
func (tree *BTree) Root() Pointer {
	return tree.pager.Root()
}

func (tree *BTree) GetPager() *Pager {
	return tree.pager
}

// FindLeafNodePath descends from the root to the leaf that key belongs to. The returned path holds the page ids from
// root to leaf, the leaf included.
func (tree *BTree) FindLeafNodePath(key []byte) (*Node, []Pointer, error) {
	tree.mu.Lock()
	defer tree.mu.Unlock()
	if tree.closed {
		return nil, nil, ErrClosed
	}

	return tree.findLeafNodePath(key)
}

func (tree *BTree) findLeafNodePath(key []byte) (*Node, []Pointer, error) {
	path := make([]Pointer, 0, 4)
	curr := tree.pager.Root()
	for {
		if len(path) >= maxHeight {
			return nil, nil, errors.Wrapf(ErrTreeLogic, "descent deeper than %d levels", maxHeight)
		}
		path = append(path, curr)

		node, err := tree.pager.ReadNode(curr)
		if err != nil {
			return nil, nil, err
		}
		if node.IsLeaf {
			return node, path, nil
		}

		curr = node.Children[node.FindChildIndex(key)]
	}
}

// FindPrimaryKeys returns a copy of the primary keys stored for key. The bool is false if key is not in the tree.
func (tree *BTree) FindPrimaryKeys(key []byte) ([][]byte, bool, error) {
	tree.mu.Lock()
	defer tree.mu.Unlock()
	if tree.closed {
		return nil, false, ErrClosed
	}

	leaf, _, err := tree.findLeafNodePath(key)
	if err != nil {
		return nil, false, err
	}

	i, found := leaf.FindKey(key)
	if !found {
		return nil, false, nil
	}
	return clonePrimaryKeys(leaf.Values[i]), true, nil
}

// Height returns the number of levels, a tree with a single leaf has height 1.
func (tree *BTree) Height() (int, error) {
	tree.mu.Lock()
	defer tree.mu.Unlock()
	if tree.closed {
		return 0, ErrClosed
	}

	_, path, err := tree.leftmostLeaf()
	if err != nil {
		return 0, err
	}
	return len(path), nil
}

// Count returns the number of distinct keys by walking the leaf chain.
func (tree *BTree) Count() (int, error) {
	tree.mu.Lock()
	defer tree.mu.Unlock()
	if tree.closed {
		return 0, ErrClosed
	}

	n, _, err := tree.leftmostLeaf()
	if err != nil {
		return 0, err
	}

	num := 0
	for {
		num += len(n.Keys)
		if n.NextLeaf == InvalidPointer {
			return num, nil
		}
		if n, err = tree.pager.ReadNode(n.NextLeaf); err != nil {
			return 0, err
		}
	}
}

func (tree *BTree) leftmostLeaf() (*Node, []Pointer, error) {
	path := make([]Pointer, 0, 4)
	curr := tree.pager.Root()
	for {
		if len(path) >= maxHeight {
			return nil, nil, errors.Wrapf(ErrTreeLogic, "descent deeper than %d levels", maxHeight)
		}
		path = append(path, curr)

		n, err := tree.pager.ReadNode(curr)
		if err != nil {
			return nil, nil, err
		}
		if n.IsLeaf {
			return n, path, nil
		}
		curr = n.Children[0]
	}
}

// Sync flushes the backing file to stable storage.
func (tree *BTree) Sync() error {
	tree.mu.Lock()
	defer tree.mu.Unlock()
	if tree.closed {
		return ErrClosed
	}
	return tree.pager.Sync()
}

// Close persists the metadata and closes the backing file. A closed tree rejects every further operation.
func (tree *BTree) Close() error {
	tree.mu.Lock()
	defer tree.mu.Unlock()
	if tree.closed {
		return nil
	}
	tree.closed = true

	if err := tree.pager.WriteMetadata(); err != nil {
		_ = tree.pager.Close()
		return err
	}
	return tree.pager.Close()
}

// allocatePage hands out a page id and persists the allocation counters.
func (tree *BTree) allocatePage() (Pointer, error) {
	p, err := tree.pager.AllocatePageID()
	if err != nil {
		return 0, err
	}
	return p, tree.pager.WriteMetadata()
}

// deallocatePage pushes a page to the free list and persists the new free list head.
func (tree *BTree) deallocatePage(p Pointer) error {
	if err := tree.pager.DeallocatePageID(p); err != nil {
		return err
	}
	return tree.pager.WriteMetadata()
}

// setRoot changes and persists the root page id.
func (tree *BTree) setRoot(p Pointer) error {
	tree.pager.SetRoot(p)
	return tree.pager.WriteMetadata()
}

// reparent points the parent pointer of every given child to parent.
func (tree *BTree) reparent(children []Pointer, parent Pointer) error {
	for _, c := range children {
		child, err := tree.pager.ReadNode(c)
		if err != nil {
			return err
		}
		if child.Parent == parent {
			continue
		}
		child.Parent = parent
		if err := tree.pager.WriteNode(child); err != nil {
			return err
		}
	}
	return nil
}

func (tree *BTree) readInternal(p Pointer) (*Node, error) {
	n, err := tree.pager.ReadNode(p)
	if err != nil {
		return nil, err
	}
	if n.IsLeaf {
		return nil, errors.Wrapf(ErrUnexpectedNodeType, "page %d is a leaf, expected internal node", p)
	}
	return n, nil
}
