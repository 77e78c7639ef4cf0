package btree

import (
	"log"

	"github.com/pkg/errors"

	"tarndb/common"
)

// Delete removes pk from key's primary keys, or key with all of its primary keys when pk is nil. A key whose last
// primary key is removed is removed as well. It returns true if anything was removed.
func (tree *BTree) Delete(key, pk []byte) (bool, error) {
	tree.mu.Lock()
	defer tree.mu.Unlock()
	if tree.closed {
		return false, ErrClosed
	}

	return tree.delete(key, pk)
}

func (tree *BTree) delete(key, pk []byte) (bool, error) {
	leaf, path, err := tree.findLeafNodePath(key)
	if err != nil {
		return false, err
	}

	i, found := leaf.FindKey(key)
	if !found {
		return false, nil
	}

	keyRemoved := false
	if pk != nil {
		if !leaf.RemovePrimaryKey(i, pk) {
			return false, nil
		}
		if len(leaf.Values[i]) == 0 {
			leaf.DeleteAt(i)
			keyRemoved = true
		}
	} else {
		leaf.DeleteAt(i)
		keyRemoved = true
	}

	if keyRemoved && leaf.IsUnderflow(tree.order) && leaf.PageID != tree.pager.Root() {
		return true, tree.handleUnderflow(leaf, path)
	}
	return true, tree.pager.WriteNode(leaf)
}

// handleUnderflow restores the minimum fill of n, the last entry of path. It borrows a key from a sibling that can
// lend one, otherwise it merges n with a sibling and continues with the parent, which lost a key.
func (tree *BTree) handleUnderflow(n *Node, path []Pointer) error {
	if len(path) == 0 {
		return errors.Wrap(ErrTreeLogic, "empty path in underflow handling")
	}
	path = path[:len(path)-1]

	if n.PageID == tree.pager.Root() {
		return tree.collapseRoot(n)
	}
	if len(path) == 0 {
		return errors.Wrapf(ErrTreeLogic, "no parent for non root page %d", n.PageID)
	}

	parentPageID := path[len(path)-1]
	if n.Parent != parentPageID {
		return errors.Wrapf(ErrTreeLogic, "page %d has parent %v, path says %d", n.PageID, n.Parent, parentPageID)
	}

	parent, err := tree.readInternal(parentPageID)
	if err != nil {
		return err
	}

	idx, ok := parent.ChildIndex(n.PageID)
	if !ok {
		return errors.Wrapf(ErrTreeLogic, "page %d is not a child of %d", n.PageID, parent.PageID)
	}

	var left, right *Node
	if idx > 0 {
		if left, err = tree.readSibling(parent.Children[idx-1], n); err != nil {
			return err
		}
		if left.CanLend(tree.order) {
			return tree.borrowFromLeft(n, left, parent, idx-1)
		}
	}

	if idx < len(parent.Children)-1 {
		if right, err = tree.readSibling(parent.Children[idx+1], n); err != nil {
			return err
		}
		if right.CanLend(tree.order) {
			return tree.borrowFromRight(n, right, parent, idx)
		}
	}

	switch {
	case left != nil:
		err = tree.merge(left, n, parent, idx-1)
	case right != nil:
		err = tree.merge(n, right, parent, idx)
	default:
		err = errors.Wrapf(ErrTreeLogic, "page %d has no siblings", n.PageID)
	}
	if err != nil {
		return err
	}

	if parent.PageID == tree.pager.Root() {
		return tree.collapseRoot(parent)
	}
	if parent.IsUnderflow(tree.order) {
		return tree.handleUnderflow(parent, path)
	}
	return tree.pager.WriteNode(parent)
}

// collapseRoot makes the only child of an internal root with no keys the new root. Any other root is only written.
func (tree *BTree) collapseRoot(root *Node) error {
	if root.IsLeaf || len(root.Keys) > 0 || len(root.Children) != 1 {
		return tree.pager.WriteNode(root)
	}

	child, err := tree.pager.ReadNode(root.Children[0])
	if err != nil {
		return err
	}

	child.Parent = InvalidPointer
	if err := tree.pager.WriteNode(child); err != nil {
		return err
	}
	if err := tree.setRoot(child.PageID); err != nil {
		return err
	}

	if common.EnableLogging {
		log.Printf("root %d collapsed, new root is %d\n", root.PageID, child.PageID)
	}
	return tree.deallocatePage(root.PageID)
}

func (tree *BTree) readSibling(p Pointer, n *Node) (*Node, error) {
	sibling, err := tree.pager.ReadNode(p)
	if err != nil {
		return nil, err
	}
	if sibling.IsLeaf != n.IsLeaf {
		return nil, errors.Wrapf(ErrUnexpectedNodeType, "page %d and its sibling %d are on different levels", n.PageID, p)
	}
	return sibling, nil
}

// borrowFromLeft moves the last entry of left to the front of n. sep is the index of the separator between them in
// parent.
func (tree *BTree) borrowFromLeft(n, left, parent *Node, sep int) error {
	last := len(left.Keys) - 1

	if n.IsLeaf {
		key, pks := left.Keys[last], left.Values[last]
		left.DeleteAt(last)

		n.Keys = insertAt(n.Keys, 0, key)
		n.Values = insertAt(n.Values, 0, pks)
		parent.Keys[sep] = key
	} else {
		child := left.Children[len(left.Children)-1]

		n.Keys = insertAt(n.Keys, 0, parent.Keys[sep])
		n.Children = insertAt(n.Children, 0, child)
		parent.Keys[sep] = left.Keys[last]

		left.Keys = left.Keys[:last]
		left.Children = left.Children[:len(left.Children)-1]

		if err := tree.reparent([]Pointer{child}, n.PageID); err != nil {
			return err
		}
	}

	return tree.writeNodes(n, left, parent)
}

// borrowFromRight moves the first entry of right to the back of n. sep is the index of the separator between them
// in parent.
func (tree *BTree) borrowFromRight(n, right, parent *Node, sep int) error {
	if n.IsLeaf {
		key, pks := right.Keys[0], right.Values[0]
		right.DeleteAt(0)

		n.Keys = append(n.Keys, key)
		n.Values = append(n.Values, pks)
		parent.Keys[sep] = right.Keys[0]
	} else {
		child := right.Children[0]

		n.Keys = append(n.Keys, parent.Keys[sep])
		n.Children = append(n.Children, child)
		parent.Keys[sep] = right.Keys[0]

		right.Keys = deleteAt(right.Keys, 0)
		right.Children = deleteAt(right.Children, 0)

		if err := tree.reparent([]Pointer{child}, n.PageID); err != nil {
			return err
		}
	}

	return tree.writeNodes(n, right, parent)
}

// merge moves everything in right into left and removes the separator at sep and the pointer to right from parent.
// A leaf merge drops the separator, an internal merge pulls it down between the two key lists. right's page is
// freed. parent is modified but not written.
func (tree *BTree) merge(left, right, parent *Node, sep int) error {
	if left.IsLeaf {
		left.Keys = append(left.Keys, right.Keys...)
		left.Values = append(left.Values, right.Values...)
		left.NextLeaf = right.NextLeaf
	} else {
		left.Keys = append(left.Keys, parent.Keys[sep])
		left.Keys = append(left.Keys, right.Keys...)
		left.Children = append(left.Children, right.Children...)

		if err := tree.reparent(right.Children, left.PageID); err != nil {
			return err
		}
	}

	parent.Keys = deleteAt(parent.Keys, sep)
	parent.Children = deleteAt(parent.Children, sep+1)

	if err := tree.pager.WriteNode(left); err != nil {
		return err
	}
	return tree.deallocatePage(right.PageID)
}

func (tree *BTree) writeNodes(nodes ...*Node) error {
	for _, n := range nodes {
		if err := tree.pager.WriteNode(n); err != nil {
			return err
		}
	}
	return nil
}
