package index

import (
	"log"
	"sync"

	"tarndb/btree"
	"tarndb/common"
)

type Option func(*btree.Options)

// WithCacheBytes sets the size of the page cache, zero disables it.
func WithCacheBytes(n int64) Option {
	return func(o *btree.Options) {
		o.CacheBytes = n
	}
}

// BTreeIndex is an Index stored in a single B+Tree file.
type BTreeIndex struct {
	name string
	path string
	opts btree.Options

	// mu guards tree, which is replaced by Load. The tree serializes its own operations.
	mu   sync.RWMutex
	tree *btree.BTree
}

var _ Index = &BTreeIndex{}

// NewBTreeIndex opens the index file at path, creating it with the given order if it does not exist. An existing
// file keeps the order it was created with.
func NewBTreeIndex(name, path string, order int, opts ...Option) (*BTreeIndex, error) {
	o := btree.DefaultOptions()
	o.Order = order
	for _, opt := range opts {
		opt(&o)
	}

	tree, err := btree.Open(path, o)
	if err != nil {
		return nil, wrapErr(name, err)
	}

	if common.EnableLogging {
		log.Printf("index %s opened at %s with order %d\n", name, path, tree.Order())
	}
	return &BTreeIndex{
		name: name,
		path: path,
		opts: o,
		tree: tree,
	}, nil
}

func (idx *BTreeIndex) Name() string {
	return idx.name
}

func (idx *BTreeIndex) Path() string {
	return idx.path
}

// Tree exposes the underlying tree for tooling such as verification and dumps.
func (idx *BTreeIndex) Tree() *btree.BTree {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree
}

func (idx *BTreeIndex) Insert(value, pk []byte) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return wrapErr(idx.name, idx.tree.Insert(value, pk))
}

func (idx *BTreeIndex) Find(value []byte) ([][]byte, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	pks, _, err := idx.tree.FindPrimaryKeys(value)
	if err != nil {
		return nil, wrapErr(idx.name, err)
	}
	return pks, nil
}

func (idx *BTreeIndex) Delete(value, pk []byte) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	_, err := idx.tree.Delete(value, pk)
	return wrapErr(idx.name, err)
}

// Update deletes (oldValue, pk) and inserts (newValue, pk). The two steps are not atomic.
func (idx *BTreeIndex) Update(oldValue, newValue, pk []byte) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if _, err := idx.tree.Delete(oldValue, pk); err != nil {
		return wrapErr(idx.name, err)
	}
	return wrapErr(idx.name, idx.tree.Insert(newValue, pk))
}

func (idx *BTreeIndex) Save() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return wrapErr(idx.name, idx.tree.Sync())
}

// Load closes the current tree and reopens the file, rereading order, root and free list. It fails if the file no
// longer holds an index, in which case the index stays closed.
func (idx *BTreeIndex) Load() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.tree.Close(); err != nil {
		return wrapErr(idx.name, err)
	}

	tree, err := btree.OpenExisting(idx.path, idx.opts)
	if err != nil {
		return wrapErr(idx.name, err)
	}
	idx.tree = tree

	if common.EnableLogging {
		log.Printf("index %s reloaded from %s, root is %v\n", idx.name, idx.path, tree.Root())
	}
	return nil
}

func (idx *BTreeIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return wrapErr(idx.name, idx.tree.Close())
}
