package btree

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarndb/common"
)

func TestPersistent_All_Inserted_Should_Be_Found_After_File_Is_Closed_And_Reopened(t *testing.T) {
	for _, cacheBytes := range []int64{0, 1 << 20} {
		name := newFileName()
		tree, err := Open(name, Options{Order: 5, CacheBytes: cacheBytes})
		require.NoError(t, err)

		for i := 0; i < 300; i++ {
			require.NoError(t, tree.Insert(key(i), pk(i)))
		}
		for i := 0; i < 300; i += 3 {
			_, err := tree.Delete(key(i), nil)
			require.NoError(t, err)
		}
		root, next := tree.Root(), tree.GetPager().NextAvailablePageID()
		require.NoError(t, tree.Close())

		tree, err = Open(name, Options{Order: 5, CacheBytes: cacheBytes})
		require.NoError(t, err)

		assert.Equal(t, root, tree.Root())
		assert.Equal(t, next, tree.GetPager().NextAvailablePageID())
		for i := 0; i < 300; i++ {
			_, found, err := tree.FindPrimaryKeys(key(i))
			require.NoError(t, err)
			assert.Equal(t, i%3 != 0, found, "key %d", i)
		}
		require.NoError(t, tree.Verify())

		require.NoError(t, tree.Close())
		common.Remove(name)
	}
}

func TestPersistence(t *testing.T) {
	t.Run("stored order should win over requested order", func(t *testing.T) {
		name := newFileName()
		defer common.Remove(name)

		tree, err := Open(name, Options{Order: 4})
		require.NoError(t, err)
		insertKeys(t, tree, "a", "b", "c", "d")
		require.NoError(t, tree.Close())

		tree, err = Open(name, Options{Order: 50})
		require.NoError(t, err)
		defer tree.Close()

		assert.Equal(t, 4, tree.Order())
		insertKeys(t, tree, "e", "f")
		require.NoError(t, tree.Verify())
	})

	t.Run("open existing should fail without a tree file", func(t *testing.T) {
		name := newFileName()
		defer common.Remove(name)

		_, err := OpenExisting(name, DefaultOptions())
		assert.Error(t, err)
	})

	t.Run("open existing should load a saved tree", func(t *testing.T) {
		name := newFileName()
		defer common.Remove(name)

		tree, err := Open(name, DefaultOptions())
		require.NoError(t, err)
		insertKeys(t, tree, "x")
		require.NoError(t, tree.Sync())
		require.NoError(t, tree.Close())

		tree, err = OpenExisting(name, Options{})
		require.NoError(t, err)
		defer tree.Close()

		assert.Equal(t, common.DefaultOrder, tree.Order())
		assert.Equal(t, []string{"x"}, leafKeys(t, tree))
	})

	t.Run("order smaller than three should be rejected", func(t *testing.T) {
		name := newFileName()
		defer common.Remove(name)

		_, err := Open(name, Options{Order: 2})
		assert.ErrorIs(t, err, ErrTreeLogic)
	})
}

func TestVerify(t *testing.T) {
	t.Run("broken parent pointer should be reported", func(t *testing.T) {
		tree := newTestTree(t, 4)
		insertKeys(t, tree, "a", "b", "c", "d")

		leaf := readNode(t, tree, 1)
		leaf.Parent = 0
		require.NoError(t, tree.GetPager().WriteNode(leaf))

		err := tree.Verify()
		var verifyErr *VerifyError
		require.ErrorAs(t, err, &verifyErr)
		assert.Contains(t, verifyErr.Problems[0], "parent")
	})

	t.Run("broken leaf chain should be reported", func(t *testing.T) {
		tree := newTestTree(t, 4)
		insertKeys(t, tree, "a", "b", "c", "d")

		leaf := readNode(t, tree, 0)
		leaf.NextLeaf = InvalidPointer
		require.NoError(t, tree.GetPager().WriteNode(leaf))

		var verifyErr *VerifyError
		require.ErrorAs(t, tree.Verify(), &verifyErr)
	})

	t.Run("key outside its separator range should be reported", func(t *testing.T) {
		tree := newTestTree(t, 4)
		insertKeys(t, tree, "c", "a", "b", "d")

		leaf := readNode(t, tree, 0)
		leaf.Keys[0] = []byte("z")
		require.NoError(t, tree.GetPager().WriteNode(leaf))

		var verifyErr *VerifyError
		require.ErrorAs(t, tree.Verify(), &verifyErr)
	})
}

func TestStatsAndPrint(t *testing.T) {
	t.Run("stats should describe the tree", func(t *testing.T) {
		tree := newTestTree(t, 4)
		insertKeys(t, tree, "a", "b", "c", "d", "e")
		require.NoError(t, tree.Insert([]byte("a"), []byte("second")))
		deleteKeys(t, tree, "a")

		s, err := tree.Stats()
		require.NoError(t, err)
		assert.Equal(t, 4, s.Order)
		assert.Equal(t, Pointer(2), s.Root)
		assert.Equal(t, 2, s.Height)
		assert.Equal(t, 4, s.Keys)
		assert.Equal(t, 4, s.PrimaryKeys)
		assert.Equal(t, 2, s.Leaves)
		assert.Equal(t, 1, s.InternalNodes)
		assert.Equal(t, Pointer(4), s.NextAvailablePageID)
		assert.Equal(t, 1, s.FreePages)
	})

	t.Run("print should write one line per node and level separators", func(t *testing.T) {
		tree := newTestTree(t, 4)
		insertKeys(t, tree, "c", "a", "b", "d")

		buf := bytes.Buffer{}
		require.NoError(t, tree.Print(&buf))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		assert.Equal(t, []string{
			`internal(2) parent=nil keys=["b"] children=[0 1]`,
			"###",
			`leaf(0) parent=2 next=1 keys=["a"]`,
			`leaf(1) parent=2 next=nil keys=["b" "c" "d"]`,
			"###",
		}, lines)
	})
}

func TestIterator(t *testing.T) {
	t.Run("empty tree should yield nothing", func(t *testing.T) {
		tree := newTestTree(t, 4)
		assert.Empty(t, leafKeys(t, tree))
	})

	t.Run("seek should start at the first key not less than the target", func(t *testing.T) {
		tree := newTestTree(t, 4)
		for i := 0; i < 100; i += 2 {
			require.NoError(t, tree.Insert(key(i), pk(i)))
		}

		it, err := tree.Seek(key(31))
		require.NoError(t, err)

		res := make([]string, 0)
		for it.Next() {
			res = append(res, string(it.Key()))
			assert.Len(t, it.PrimaryKeys(), 1)
		}
		require.NoError(t, it.Err())

		assert.Len(t, res, 34)
		assert.Equal(t, string(key(32)), res[0])
		assert.Equal(t, string(key(98)), res[len(res)-1])
	})

	t.Run("seek past the last key should yield nothing", func(t *testing.T) {
		tree := newTestTree(t, 4)
		insertKeys(t, tree, "a", "b", "c", "d", "e")

		it, err := tree.Seek([]byte("z"))
		require.NoError(t, err)
		assert.False(t, it.Next())
		assert.NoError(t, it.Err())
	})
}
