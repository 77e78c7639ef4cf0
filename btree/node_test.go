package btree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leafWith(pageID Pointer, keys ...string) *Node {
	n := NewLeafNode(pageID)
	for _, k := range keys {
		n.InsertPrimaryKey([]byte(k), []byte("pk_"+k))
	}
	return n
}

func TestNode(t *testing.T) {
	t.Run("find key should return insert position when key is missing", func(t *testing.T) {
		n := leafWith(0, "b", "d", "f")

		i, found := n.FindKey([]byte("d"))
		assert.True(t, found)
		assert.Equal(t, 1, i)

		i, found = n.FindKey([]byte("e"))
		assert.False(t, found)
		assert.Equal(t, 2, i)

		i, found = n.FindKey([]byte("a"))
		assert.False(t, found)
		assert.Equal(t, 0, i)
	})

	t.Run("key equal to a separator should descend right", func(t *testing.T) {
		n := NewInternalNode(0, 1)
		n.Keys = [][]byte{[]byte("b"), []byte("d")}
		n.Children = []Pointer{1, 2, 3}

		assert.Equal(t, 0, n.FindChildIndex([]byte("a")))
		assert.Equal(t, 1, n.FindChildIndex([]byte("b")))
		assert.Equal(t, 1, n.FindChildIndex([]byte("c")))
		assert.Equal(t, 2, n.FindChildIndex([]byte("d")))
		assert.Equal(t, 2, n.FindChildIndex([]byte("z")))
	})

	t.Run("insert primary key should keep keys and primary keys sorted and unique", func(t *testing.T) {
		n := NewLeafNode(0)

		assert.True(t, n.InsertPrimaryKey([]byte("k2"), []byte("3")))
		assert.True(t, n.InsertPrimaryKey([]byte("k1"), []byte("1")))
		assert.True(t, n.InsertPrimaryKey([]byte("k2"), []byte("1")))
		assert.True(t, n.InsertPrimaryKey([]byte("k2"), []byte("2")))
		assert.False(t, n.InsertPrimaryKey([]byte("k2"), []byte("2")))

		assert.Equal(t, []string{"k1", "k2"}, keysOf(n))
		assert.Equal(t, [][]byte{[]byte("1"), []byte("2"), []byte("3")}, n.Values[1])
	})

	t.Run("remove primary key should report whether it was present", func(t *testing.T) {
		n := NewLeafNode(0)
		n.InsertPrimaryKey([]byte("k"), []byte("1"))
		n.InsertPrimaryKey([]byte("k"), []byte("2"))

		assert.False(t, n.RemovePrimaryKey(0, []byte("3")))
		assert.True(t, n.RemovePrimaryKey(0, []byte("1")))
		assert.Equal(t, [][]byte{[]byte("2")}, n.Values[0])
	})

	t.Run("fill checks should follow order", func(t *testing.T) {
		n := leafWith(0, "a", "b", "c")

		assert.True(t, n.IsFull(4))
		assert.False(t, n.IsOverflow(4))
		assert.False(t, n.IsUnderflow(4))
		assert.True(t, n.CanLend(4))

		n = leafWith(0, "a")
		assert.False(t, n.CanLend(4))
		assert.Equal(t, 1, MinKeys(4))
		assert.Equal(t, 1, MinKeys(3))
		assert.Equal(t, 2, MinKeys(5))
	})

	t.Run("leaf split should copy middle key to the right node", func(t *testing.T) {
		n := leafWith(0, "a", "b", "c", "d")
		n.NextLeaf = 9
		n.Parent = 7

		sep, right, err := n.Split(4, 5)
		require.NoError(t, err)

		assert.Equal(t, "b", string(sep))
		assert.Equal(t, []string{"a"}, keysOf(n))
		assert.Equal(t, []string{"b", "c", "d"}, keysOf(right))
		assert.Len(t, right.Values, 3)
		assert.Equal(t, Pointer(5), n.NextLeaf)
		assert.Equal(t, Pointer(9), right.NextLeaf)
		assert.Equal(t, Pointer(7), right.Parent)
		assert.True(t, right.IsLeaf)
	})

	t.Run("internal split should promote middle key", func(t *testing.T) {
		n := NewInternalNode(0, 10)
		n.Keys = [][]byte{[]byte("b"), []byte("d"), []byte("f"), []byte("h")}
		n.Children = []Pointer{10, 11, 12, 13, 14}

		sep, right, err := n.Split(4, 5)
		require.NoError(t, err)

		assert.Equal(t, "d", string(sep))
		assert.Equal(t, []string{"b"}, keysOf(n))
		assert.Equal(t, []Pointer{10, 11}, n.Children)
		assert.Equal(t, []string{"f", "h"}, keysOf(right))
		assert.Equal(t, []Pointer{12, 13, 14}, right.Children)
	})

	t.Run("split should refuse a node that is not overflowing", func(t *testing.T) {
		n := leafWith(0, "a", "b", "c")

		_, _, err := n.Split(4, 5)
		assert.ErrorIs(t, err, ErrTreeLogic)
	})

	t.Run("appending to left half after split should not change right half", func(t *testing.T) {
		n := leafWith(0, "a", "b", "c", "d", "e")

		_, right, err := n.Split(5, 1)
		require.NoError(t, err)
		n.InsertPrimaryKey([]byte("bb"), []byte("x"))

		assert.Equal(t, []string{"a", "b", "bb"}, keysOf(n))
		assert.Equal(t, []string{"c", "d", "e"}, keysOf(right))
	})

	t.Run("insert child after should link right node next to left", func(t *testing.T) {
		n := NewInternalNode(0, 1)
		n.Keys = [][]byte{[]byte("m")}
		n.Children = []Pointer{1, 2}

		require.NoError(t, n.InsertChildAfter(1, []byte("f"), 3))
		assert.Equal(t, []string{"f", "m"}, keysOf(n))
		assert.Equal(t, []Pointer{1, 3, 2}, n.Children)

		assert.ErrorIs(t, n.InsertChildAfter(42, []byte("x"), 4), ErrTreeLogic)
		assert.ErrorIs(t, leafWith(1).InsertChildAfter(1, []byte("x"), 4), ErrUnexpectedNodeType)
	})

	t.Run("clone should not share memory", func(t *testing.T) {
		n := leafWith(0, "a")
		c := n.Clone()
		c.Keys[0][0] = 'z'
		c.Values[0][0][0] = 'z'

		assert.Equal(t, "a", string(n.Keys[0]))
		assert.Equal(t, "pk_a", string(n.Values[0][0]))
	})
}
