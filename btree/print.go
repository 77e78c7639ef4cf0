package btree

import (
	"fmt"
	"io"
)

// Print writes the tree level by level, "###" separates levels.
func (tree *BTree) Print(w io.Writer) error {
	tree.mu.Lock()
	defer tree.mu.Unlock()
	if tree.closed {
		return ErrClosed
	}

	level := []Pointer{tree.pager.Root()}
	for len(level) > 0 {
		next := make([]Pointer, 0)
		for _, p := range level {
			n, err := tree.pager.ReadNode(p)
			if err != nil {
				return err
			}
			n.PrintNode(w)
			if !n.IsLeaf {
				next = append(next, n.Children...)
			}
		}
		fmt.Fprint(w, "###\n")
		level = next
	}

	return nil
}
