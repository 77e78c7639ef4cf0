package btree

// TreeIterator walks the leaf chain in ascending key order. It does not hold the tree's lock between calls, so it
// must not be used while the tree is modified.
type TreeIterator struct {
	tree *BTree
	node *Node
	idx  int
	key  []byte
	pks  [][]byte
	err  error
}

// Iterator returns an iterator positioned before the smallest key.
func (tree *BTree) Iterator() (*TreeIterator, error) {
	tree.mu.Lock()
	defer tree.mu.Unlock()
	if tree.closed {
		return nil, ErrClosed
	}

	leaf, _, err := tree.leftmostLeaf()
	if err != nil {
		return nil, err
	}
	return &TreeIterator{tree: tree, node: leaf}, nil
}

// Seek returns an iterator positioned before the smallest key greater than or equal to key.
func (tree *BTree) Seek(key []byte) (*TreeIterator, error) {
	tree.mu.Lock()
	defer tree.mu.Unlock()
	if tree.closed {
		return nil, ErrClosed
	}

	leaf, _, err := tree.findLeafNodePath(key)
	if err != nil {
		return nil, err
	}
	idx, _ := leaf.FindKey(key)
	return &TreeIterator{tree: tree, node: leaf, idx: idx}, nil
}

// Next advances to the next key. It returns false when the keys are exhausted or an error occurred.
func (it *TreeIterator) Next() bool {
	if it.err != nil || it.node == nil {
		return false
	}

	// skip to the next leaf when the current one is exhausted, only an empty root leaf has no keys at all
	for it.idx >= len(it.node.Keys) {
		if it.node.NextLeaf == InvalidPointer {
			it.node, it.key, it.pks = nil, nil, nil
			return false
		}

		next, err := it.tree.pager.ReadNode(it.node.NextLeaf)
		if err != nil {
			it.err = err
			return false
		}
		it.node, it.idx = next, 0
	}

	it.key, it.pks = it.node.Keys[it.idx], it.node.Values[it.idx]
	it.idx++
	return true
}

func (it *TreeIterator) Key() []byte {
	return it.key
}

func (it *TreeIterator) PrimaryKeys() [][]byte {
	return it.pks
}

func (it *TreeIterator) Err() error {
	return it.err
}
