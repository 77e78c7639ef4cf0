package btree

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"tarndb/disk"
)

type Pointer uint64

// InvalidPointer means "no page". It is used for the root's parent and the last leaf's next pointer.
const InvalidPointer = Pointer(disk.InvalidPageID)

func (p Pointer) Bytes() []byte {
	res := make([]byte, 8)
	binary.BigEndian.PutUint64(res, uint64(p))
	return res
}

func (p Pointer) String() string {
	if p == InvalidPointer {
		return "nil"
	}
	return fmt.Sprintf("%d", uint64(p))
}

// Node is the content of one page. Internal nodes use Keys and Children, leaves use Keys, Values and NextLeaf.
// Relations between nodes are page ids, never references to other Node values.
type Node struct {
	IsLeaf bool
	PageID Pointer
	Parent Pointer
	Keys   [][]byte

	// Children has len(Keys)+1 entries. Everything under Children[i] is less than Keys[i] and everything under
	// Children[len(Keys)] is greater than or equal to the last key.
	Children []Pointer

	// Values[i] is the sorted, deduplicated and non-empty list of primary keys of Keys[i].
	Values   [][][]byte
	NextLeaf Pointer
}

func NewLeafNode(pageID Pointer) *Node {
	return &Node{
		IsLeaf:   true,
		PageID:   pageID,
		Parent:   InvalidPointer,
		Keys:     make([][]byte, 0),
		Values:   make([][][]byte, 0),
		NextLeaf: InvalidPointer,
	}
}

func NewInternalNode(pageID Pointer, firstPointer Pointer) *Node {
	return &Node{
		IsLeaf:   false,
		PageID:   pageID,
		Parent:   InvalidPointer,
		Keys:     make([][]byte, 0),
		Children: []Pointer{firstPointer},
		NextLeaf: InvalidPointer,
	}
}

// MinKeys is the least number of keys a non root node can hold for the given order.
func MinKeys(order int) int {
	return (order - 1) / 2
}

func (n *Node) HasParent() bool {
	return n.Parent != InvalidPointer
}

func (n *Node) KeyLen() int {
	return len(n.Keys)
}

func (n *Node) IsFull(order int) bool {
	return len(n.Keys) >= order-1
}

// IsOverflow reports that the node holds one key more than allowed and has to be split.
func (n *Node) IsOverflow(order int) bool {
	return len(n.Keys) >= order
}

func (n *Node) IsUnderflow(order int) bool {
	return len(n.Keys) < MinKeys(order)
}

// CanLend reports whether a sibling can give away one key without underflowing itself.
func (n *Node) CanLend(order int) bool {
	return len(n.Keys) > MinKeys(order)
}

// FindKey binary searches key. If it is not found, the returned index is where it should be inserted.
func (n *Node) FindKey(key []byte) (int, bool) {
	i := sort.Search(len(n.Keys), func(i int) bool {
		return bytes.Compare(n.Keys[i], key) >= 0
	})
	return i, i < len(n.Keys) && bytes.Equal(n.Keys[i], key)
}

// FindChildIndex returns the number of separators less than or equal to key, so a key equal to a separator
// descends to its right.
func (n *Node) FindChildIndex(key []byte) int {
	return sort.Search(len(n.Keys), func(i int) bool {
		return bytes.Compare(n.Keys[i], key) > 0
	})
}

// ChildIndex returns the position of p in Children.
func (n *Node) ChildIndex(p Pointer) (int, bool) {
	for i, c := range n.Children {
		if c == p {
			return i, true
		}
	}
	return -1, false
}

// InsertChildAfter puts key and right just after the child left. It is used to link a node created by a split.
func (n *Node) InsertChildAfter(left Pointer, key []byte, right Pointer) error {
	if n.IsLeaf {
		return errors.Wrapf(ErrUnexpectedNodeType, "page %d is a leaf", n.PageID)
	}

	i, ok := n.ChildIndex(left)
	if !ok {
		return errors.Wrapf(ErrTreeLogic, "page %d is not a child of %d", left, n.PageID)
	}

	n.Keys = insertAt(n.Keys, i, key)
	n.Children = insertAt(n.Children, i+1, right)
	return nil
}

// InsertPrimaryKey adds pk to key's list, creating the key if needed. It returns false if pk was already there.
func (n *Node) InsertPrimaryKey(key, pk []byte) bool {
	i, found := n.FindKey(key)
	if !found {
		n.Keys = insertAt(n.Keys, i, key)
		n.Values = insertAt(n.Values, i, [][]byte{pk})
		return true
	}

	pks := n.Values[i]
	j := sort.Search(len(pks), func(j int) bool {
		return bytes.Compare(pks[j], pk) >= 0
	})
	if j < len(pks) && bytes.Equal(pks[j], pk) {
		return false
	}

	n.Values[i] = insertAt(pks, j, pk)
	return true
}

// RemovePrimaryKey removes pk from the list at idx. It returns false if pk is not in the list. The caller removes
// the key if the list becomes empty.
func (n *Node) RemovePrimaryKey(idx int, pk []byte) bool {
	pks := n.Values[idx]
	for j := range pks {
		if bytes.Equal(pks[j], pk) {
			n.Values[idx] = deleteAt(pks, j)
			return true
		}
	}
	return false
}

// DeleteAt removes the key at idx together with its value list.
func (n *Node) DeleteAt(idx int) {
	n.Keys = deleteAt(n.Keys, idx)
	if n.IsLeaf {
		n.Values = deleteAt(n.Values, idx)
	}
}

// Split divides a node holding order keys. mid is (order-1)/2. An internal node gives Keys[mid] to its parent and
// keeps none of it, a leaf copies Keys[mid] up and keeps it as the first key of the right node. The receiver
// becomes the left half. Children moved to the right half still point to the receiver as parent, the caller fixes
// them.
func (n *Node) Split(order int, newPageID Pointer) ([]byte, *Node, error) {
	if len(n.Keys) < order {
		return nil, nil, errors.Wrapf(ErrTreeLogic, "page %d has %d keys, split needs %d", n.PageID, len(n.Keys), order)
	}

	mid := (order - 1) / 2

	if n.IsLeaf {
		right := &Node{
			IsLeaf:   true,
			PageID:   newPageID,
			Parent:   n.Parent,
			Keys:     append(make([][]byte, 0, len(n.Keys)-mid), n.Keys[mid:]...),
			Values:   append(make([][][]byte, 0, len(n.Values)-mid), n.Values[mid:]...),
			NextLeaf: n.NextLeaf,
		}

		n.Keys = n.Keys[:mid:mid]
		n.Values = n.Values[:mid:mid]
		n.NextLeaf = newPageID

		return right.Keys[0], right, nil
	}

	promoted := n.Keys[mid]
	right := &Node{
		IsLeaf:   false,
		PageID:   newPageID,
		Parent:   n.Parent,
		Keys:     append(make([][]byte, 0, len(n.Keys)-mid-1), n.Keys[mid+1:]...),
		Children: append(make([]Pointer, 0, len(n.Children)-mid-1), n.Children[mid+1:]...),
		NextLeaf: InvalidPointer,
	}

	n.Keys = n.Keys[:mid:mid]
	n.Children = n.Children[: mid+1 : mid+1]

	return promoted, right, nil
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := &Node{
		IsLeaf:   n.IsLeaf,
		PageID:   n.PageID,
		Parent:   n.Parent,
		Keys:     make([][]byte, len(n.Keys)),
		NextLeaf: n.NextLeaf,
	}
	for i, k := range n.Keys {
		c.Keys[i] = cloneBytes(k)
	}

	if n.IsLeaf {
		c.Values = make([][][]byte, len(n.Values))
		for i, pks := range n.Values {
			c.Values[i] = clonePrimaryKeys(pks)
		}
	} else {
		c.Children = append(make([]Pointer, 0, len(n.Children)), n.Children...)
	}

	return c
}

// PrintNode writes a single line description of the node.
func (n *Node) PrintNode(w io.Writer) {
	keys := make([]string, 0, len(n.Keys))
	for _, k := range n.Keys {
		keys = append(keys, fmt.Sprintf("%q", k))
	}

	if n.IsLeaf {
		fmt.Fprintf(w, "leaf(%d) parent=%v next=%v keys=[%s]\n", n.PageID, n.Parent, n.NextLeaf, strings.Join(keys, " "))
		return
	}

	children := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		children = append(children, c.String())
	}
	fmt.Fprintf(w, "internal(%d) parent=%v keys=[%s] children=[%s]\n", n.PageID, n.Parent, strings.Join(keys, " "), strings.Join(children, " "))
}

func insertAt[T any](arr []T, idx int, v T) []T {
	var zero T
	arr = append(arr, zero)
	copy(arr[idx+1:], arr[idx:])
	arr[idx] = v
	return arr
}

func deleteAt[T any](arr []T, idx int) []T {
	copy(arr[idx:], arr[idx+1:])
	var zero T
	arr[len(arr)-1] = zero
	return arr[:len(arr)-1]
}

func cloneBytes(b []byte) []byte {
	return append(make([]byte, 0, len(b)), b...)
}

func clonePrimaryKeys(pks [][]byte) [][]byte {
	res := make([][]byte, len(pks))
	for i, pk := range pks {
		res[i] = cloneBytes(pk)
	}
	return res
}
