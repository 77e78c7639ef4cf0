package btree

import (
	"bytes"
	"fmt"
	"strings"
)

// maxProblems caps the number of violations a VerifyError collects.
const maxProblems = 100

// VerifyError lists every invariant violation found by Verify.
type VerifyError struct {
	Problems []string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("%d invariant violations: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

type verifier struct {
	tree      *BTree
	visited   map[Pointer]bool
	leaves    []Pointer
	leafDepth int
	problems  []string
}

func (v *verifier) addf(format string, args ...any) {
	if len(v.problems) < maxProblems {
		v.problems = append(v.problems, fmt.Sprintf(format, args...))
	}
}

// Verify walks the whole tree and checks key order, routing bounds, fill factor, parent pointers, equal leaf depth,
// the leaf chain and that no free page is still referenced. It returns a *VerifyError if any check fails, other
// errors mean a page could not be read.
func (tree *BTree) Verify() error {
	tree.mu.Lock()
	defer tree.mu.Unlock()
	if tree.closed {
		return ErrClosed
	}

	v := &verifier{
		tree:      tree,
		visited:   map[Pointer]bool{},
		leafDepth: -1,
	}

	root := tree.pager.Root()
	if err := v.walk(root, InvalidPointer, nil, nil, 0); err != nil {
		return err
	}
	if err := v.checkLeafChain(); err != nil {
		return err
	}
	if err := v.checkFreeList(); err != nil {
		return err
	}

	if len(v.problems) > 0 {
		return &VerifyError{Problems: v.problems}
	}
	return nil
}

// walk checks the subtree at p. Every key in it must be in [lo, hi), a nil bound is open.
func (v *verifier) walk(p Pointer, parent Pointer, lo, hi []byte, depth int) error {
	if depth > maxHeight {
		v.addf("tree deeper than %d levels at page %d", maxHeight, p)
		return nil
	}
	if p >= v.tree.pager.NextAvailablePageID() {
		v.addf("page %d was never allocated", p)
		return nil
	}
	if v.visited[p] {
		v.addf("page %d is referenced more than once", p)
		return nil
	}
	v.visited[p] = true

	n, err := v.tree.pager.ReadNode(p)
	if err != nil {
		return err
	}

	order := v.tree.order
	isRoot := parent == InvalidPointer
	if n.Parent != parent {
		v.addf("page %d has parent %v, expected %v", p, n.Parent, parent)
	}
	if len(n.Keys) > order-1 {
		v.addf("page %d has %d keys, more than %d", p, len(n.Keys), order-1)
	}
	if !isRoot && len(n.Keys) < MinKeys(order) {
		v.addf("page %d has %d keys, less than %d", p, len(n.Keys), MinKeys(order))
	}

	for i := 1; i < len(n.Keys); i++ {
		if bytes.Compare(n.Keys[i-1], n.Keys[i]) >= 0 {
			v.addf("page %d keys are not strictly ascending at %d", p, i)
		}
	}

	if n.IsLeaf {
		v.checkLeaf(n, lo, hi, depth)
		return nil
	}

	if isRoot && len(n.Keys) == 0 {
		v.addf("internal root %d has no keys", p)
	}
	if len(n.Children) != len(n.Keys)+1 {
		v.addf("page %d has %d keys and %d children", p, len(n.Keys), len(n.Children))
		return nil
	}

	for i, c := range n.Children {
		childLo, childHi := lo, hi
		if i > 0 {
			childLo = n.Keys[i-1]
		}
		if i < len(n.Keys) {
			childHi = n.Keys[i]
		}
		if err := v.walk(c, p, childLo, childHi, depth+1); err != nil {
			return err
		}
	}

	return nil
}

func (v *verifier) checkLeaf(n *Node, lo, hi []byte, depth int) {
	if v.leafDepth == -1 {
		v.leafDepth = depth
	} else if v.leafDepth != depth {
		v.addf("leaf %d is at depth %d, other leaves are at %d", n.PageID, depth, v.leafDepth)
	}
	v.leaves = append(v.leaves, n.PageID)

	if len(n.Values) != len(n.Keys) {
		v.addf("leaf %d has %d keys and %d values", n.PageID, len(n.Keys), len(n.Values))
		return
	}

	for i, k := range n.Keys {
		if lo != nil && bytes.Compare(k, lo) < 0 {
			v.addf("leaf %d key %q is less than lower bound %q", n.PageID, k, lo)
		}
		if hi != nil && bytes.Compare(k, hi) >= 0 {
			v.addf("leaf %d key %q is not less than upper bound %q", n.PageID, k, hi)
		}

		pks := n.Values[i]
		if len(pks) == 0 {
			v.addf("leaf %d key %q has no primary keys", n.PageID, k)
		}
		for j := 1; j < len(pks); j++ {
			if bytes.Compare(pks[j-1], pks[j]) >= 0 {
				v.addf("leaf %d key %q primary keys are not sorted and unique", n.PageID, k)
				break
			}
		}
	}
}

// checkLeafChain follows NextLeaf from the leftmost leaf. It must visit exactly the leaves found by walk, in order.
func (v *verifier) checkLeafChain() error {
	if len(v.leaves) == 0 {
		return nil
	}

	curr := v.leaves[0]
	for i := 0; ; i++ {
		if i >= len(v.leaves) {
			v.addf("leaf chain is longer than the %d leaves of the tree", len(v.leaves))
			return nil
		}
		if curr != v.leaves[i] {
			v.addf("leaf chain visits %d at position %d, expected %d", curr, i, v.leaves[i])
			return nil
		}

		n, err := v.tree.pager.ReadNode(curr)
		if err != nil {
			return err
		}
		if n.NextLeaf == InvalidPointer {
			if i != len(v.leaves)-1 {
				v.addf("leaf chain ends at %d after %d of %d leaves", curr, i+1, len(v.leaves))
			}
			return nil
		}
		curr = n.NextLeaf
	}
}

func (v *verifier) checkFreeList() error {
	free, err := v.tree.pager.FreePages()
	if err != nil {
		v.addf("free list: %v", err)
		return nil
	}

	for _, p := range free {
		if v.visited[p] {
			v.addf("free page %d is still part of the tree", p)
		}
	}
	return nil
}
