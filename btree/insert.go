package btree

import (
	"log"

	"github.com/pkg/errors"

	"tarndb/common"
)

// Insert adds pk to the primary keys of key. Inserting a pair that is already present changes nothing.
func (tree *BTree) Insert(key, pk []byte) error {
	tree.mu.Lock()
	defer tree.mu.Unlock()
	if tree.closed {
		return ErrClosed
	}

	return tree.insert(cloneBytes(key), cloneBytes(pk))
}

func (tree *BTree) insert(key, pk []byte) error {
	leaf, path, err := tree.findLeafNodePath(key)
	if err != nil {
		return err
	}

	if !leaf.InsertPrimaryKey(key, pk) {
		return nil
	}

	if leaf.IsOverflow(tree.order) {
		return tree.split(leaf, path)
	}
	return tree.pager.WriteNode(leaf)
}

// split splits an overflowing node whose root to node path is given, and links the new right node into the parent.
// A parent that overflows in turn is split recursively, a split root is replaced by a new internal root.
func (tree *BTree) split(n *Node, path []Pointer) error {
	if len(path) == 0 {
		return errors.Wrap(ErrTreeLogic, "empty path in split")
	}
	path = path[:len(path)-1]
	if len(path) > 0 && n.Parent != path[len(path)-1] {
		return errors.Wrapf(ErrTreeLogic, "page %d has parent %v, path says %d", n.PageID, n.Parent, path[len(path)-1])
	}

	newPageID, err := tree.allocatePage()
	if err != nil {
		return err
	}

	key, right, err := n.Split(tree.order, newPageID)
	if err != nil {
		return err
	}
	if !right.IsLeaf {
		if err := tree.reparent(right.Children, right.PageID); err != nil {
			return err
		}
	}

	if len(path) == 0 {
		return tree.growRoot(n, key, right)
	}

	if err := tree.pager.WriteNode(n); err != nil {
		return err
	}
	if err := tree.pager.WriteNode(right); err != nil {
		return err
	}

	parent, err := tree.readInternal(path[len(path)-1])
	if err != nil {
		return err
	}
	if err := parent.InsertChildAfter(n.PageID, key, right.PageID); err != nil {
		return err
	}

	if parent.IsOverflow(tree.order) {
		return tree.split(parent, path)
	}
	return tree.pager.WriteNode(parent)
}

// growRoot creates a new root above the two halves of the old one.
func (tree *BTree) growRoot(left *Node, key []byte, right *Node) error {
	rootPageID, err := tree.allocatePage()
	if err != nil {
		return err
	}

	root := NewInternalNode(rootPageID, left.PageID)
	root.Keys = append(root.Keys, key)
	root.Children = append(root.Children, right.PageID)

	left.Parent = rootPageID
	right.Parent = rootPageID

	if err := tree.pager.WriteNode(left); err != nil {
		return err
	}
	if err := tree.pager.WriteNode(right); err != nil {
		return err
	}
	if err := tree.pager.WriteNode(root); err != nil {
		return err
	}

	if common.EnableLogging {
		log.Printf("root %d split, new root is %d\n", left.PageID, rootPageID)
	}
	return tree.setRoot(rootPageID)
}
