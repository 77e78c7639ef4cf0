package btree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarndb/common"
	"tarndb/disk"
)

func newTestPager(t *testing.T, cacheBytes int64) *Pager {
	t.Helper()

	name := newFileName()
	p, created, err := NewPager(name, 4, true, cacheBytes)
	require.NoError(t, err)
	require.True(t, created)

	t.Cleanup(func() {
		_ = p.Close()
		common.Remove(name)
	})
	return p
}

func TestPager(t *testing.T) {
	for _, cacheBytes := range []int64{0, 1 << 20} {
		cacheBytes := cacheBytes
		name := "without cache"
		if cacheBytes > 0 {
			name = "with cache"
		}

		t.Run(name, func(t *testing.T) {
			t.Run("written node should be read back", func(t *testing.T) {
				p := newTestPager(t, cacheBytes)

				id, err := p.AllocatePageID()
				require.NoError(t, err)

				n := leafWith(id, "a", "b")
				require.NoError(t, p.WriteNode(n))

				read, err := p.ReadNode(id)
				require.NoError(t, err)
				assert.Equal(t, n, read)
			})

			t.Run("overwritten node should never be read stale", func(t *testing.T) {
				p := newTestPager(t, cacheBytes)

				id, err := p.AllocatePageID()
				require.NoError(t, err)

				n := NewLeafNode(id)
				for i := 0; i < 50; i++ {
					n.InsertPrimaryKey(key(i), pk(i))
					require.NoError(t, p.WriteNode(n))

					read, err := p.ReadNode(id)
					require.NoError(t, err)
					require.Len(t, read.Keys, i+1)
				}
			})

			t.Run("modifying a read node should not change the page", func(t *testing.T) {
				p := newTestPager(t, cacheBytes)

				id, err := p.AllocatePageID()
				require.NoError(t, err)
				require.NoError(t, p.WriteNode(leafWith(id, "a")))

				read, err := p.ReadNode(id)
				require.NoError(t, err)
				read.Keys[0][0] = 'z'

				read, err = p.ReadNode(id)
				require.NoError(t, err)
				assert.Equal(t, []string{"a"}, keysOf(read))
			})

			t.Run("page never written should not be found", func(t *testing.T) {
				p := newTestPager(t, cacheBytes)

				_, err := p.ReadNode(5)
				assert.ErrorIs(t, err, ErrNodeNotFound)
			})

			t.Run("node bigger than a page should be rejected", func(t *testing.T) {
				p := newTestPager(t, cacheBytes)

				id, err := p.AllocatePageID()
				require.NoError(t, err)

				n := NewLeafNode(id)
				n.InsertPrimaryKey(make([]byte, disk.PageSize), []byte("pk"))

				assert.ErrorIs(t, p.WriteNode(n), ErrPageFull)
			})

			t.Run("page holding another node id should not be decoded", func(t *testing.T) {
				p := newTestPager(t, cacheBytes)

				_, err := p.AllocatePageID()
				require.NoError(t, err)
				id, err := p.AllocatePageID()
				require.NoError(t, err)

				data, err := leafWith(0, "a").Encode()
				require.NoError(t, err)
				require.NoError(t, p.file.WritePage(uint64(id), data))

				_, err = p.ReadNode(id)
				assert.ErrorIs(t, err, ErrDeserialization)
			})

			t.Run("deallocated page should be handed out again", func(t *testing.T) {
				p := newTestPager(t, cacheBytes)

				ids := make([]Pointer, 0)
				for i := 0; i < 3; i++ {
					id, err := p.AllocatePageID()
					require.NoError(t, err)
					require.NoError(t, p.WriteNode(NewLeafNode(id)))
					ids = append(ids, id)
				}

				require.NoError(t, p.DeallocatePageID(ids[0]))
				require.NoError(t, p.DeallocatePageID(ids[2]))

				free, err := p.FreePages()
				require.NoError(t, err)
				assert.Equal(t, []Pointer{ids[2], ids[0]}, free)

				id, err := p.AllocatePageID()
				require.NoError(t, err)
				assert.Equal(t, ids[2], id)

				assert.ErrorIs(t, p.DeallocatePageID(InvalidPointer), ErrTreeLogic)
			})
		})
	}

	t.Run("order smaller than three should be rejected", func(t *testing.T) {
		name := newFileName()
		defer common.Remove(name)

		_, _, err := NewPager(name, 2, true, 0)
		assert.ErrorIs(t, err, ErrTreeLogic)
	})
}
