package btree

import "github.com/pkg/errors"

type Stats struct {
	Filename            string
	Order               int
	Root                Pointer
	Height              int
	Keys                int
	PrimaryKeys         int
	Leaves              int
	InternalNodes       int
	NextAvailablePageID Pointer
	FreePages           int
}

// Stats walks the whole tree and the free list.
func (tree *BTree) Stats() (Stats, error) {
	tree.mu.Lock()
	defer tree.mu.Unlock()
	if tree.closed {
		return Stats{}, ErrClosed
	}

	s := Stats{
		Filename:            tree.pager.Filename(),
		Order:               tree.order,
		Root:                tree.pager.Root(),
		NextAvailablePageID: tree.pager.NextAvailablePageID(),
	}

	level := []Pointer{s.Root}
	for len(level) > 0 {
		s.Height++
		next := make([]Pointer, 0)
		for _, p := range level {
			n, err := tree.pager.ReadNode(p)
			if err != nil {
				return Stats{}, err
			}
			if !n.IsLeaf {
				s.InternalNodes++
				next = append(next, n.Children...)
				continue
			}

			s.Leaves++
			s.Keys += len(n.Keys)
			for _, pks := range n.Values {
				s.PrimaryKeys += len(pks)
			}
		}
		if s.Height > maxHeight {
			return Stats{}, errors.Wrapf(ErrTreeLogic, "tree deeper than %d levels", maxHeight)
		}
		level = next
	}

	free, err := tree.pager.FreePages()
	if err != nil {
		return Stats{}, err
	}
	s.FreePages = len(free)

	return s, nil
}
