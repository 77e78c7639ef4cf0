package btree

import (
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/errors"

	"tarndb/disk"
)

// Pager translates page ids to nodes. It wraps a disk.PageFile, encodes and decodes nodes and optionally keeps
// recently read pages in a ristretto cache. The cache only holds encoded pages and every write or free evicts the
// page before returning, so a read always observes the caller's previous writes.
type Pager struct {
	file  *disk.PageFile
	cache *ristretto.Cache[uint64, []byte]

	// fillLock orders filling the cache after a disk read against evicting it before a disk write.
	fillLock sync.Mutex
}

// NewPager opens the page file at path. The returned bool reports whether a fresh file was initialized. When
// cacheBytes is zero no cache is used.
func NewPager(path string, order int, create bool, cacheBytes int64) (*Pager, bool, error) {
	f, created, err := disk.OpenPageFile(path, order, create)
	if err != nil {
		if errors.Is(err, disk.ErrOrderTooSmall) {
			return nil, false, errors.Wrap(ErrTreeLogic, err.Error())
		}
		return nil, false, err
	}

	p := &Pager{file: f}
	if cacheBytes > 0 {
		p.cache, err = newPageCache(cacheBytes)
		if err != nil {
			_ = f.Close()
			return nil, false, err
		}
	}

	return p, created, nil
}

func newPageCache(cacheBytes int64) (*ristretto.Cache[uint64, []byte], error) {
	// ristretto advises ten counters per item it is expected to hold when full
	numCounters := cacheBytes / disk.PageSize * 10
	if numCounters < 100 {
		numCounters = 100
	}

	c, err := ristretto.NewCache(&ristretto.Config[uint64, []byte]{
		NumCounters: numCounters,
		MaxCost:     cacheBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating page cache")
	}
	return c, nil
}

// ReadNode reads and decodes the node stored at pageID.
func (p *Pager) ReadNode(pageID Pointer) (*Node, error) {
	data, err := p.readPage(pageID)
	if err != nil {
		return nil, err
	}

	n, err := DecodeNode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "page %d", pageID)
	}
	if n.PageID != pageID {
		return nil, errors.Wrapf(ErrDeserialization, "page %d holds node of page %d", pageID, n.PageID)
	}

	return n, nil
}

func (p *Pager) readPage(pageID Pointer) ([]byte, error) {
	if p.cache != nil {
		if data, ok := p.cache.Get(uint64(pageID)); ok {
			return data, nil
		}
	}

	p.fillLock.Lock()
	defer p.fillLock.Unlock()

	data, err := p.file.ReadPage(uint64(pageID))
	if errors.Is(err, disk.ErrPageNotFound) {
		return nil, errors.Wrapf(ErrNodeNotFound, "page %d", pageID)
	}
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		p.cache.Set(uint64(pageID), data, int64(len(data)))
	}
	return data, nil
}

// WriteNode encodes the node and writes it to its page. A node whose encoding exceeds the page size is rejected with
// ErrPageFull.
func (p *Pager) WriteNode(n *Node) error {
	data, err := n.Encode()
	if err != nil {
		return errors.Wrapf(err, "page %d", n.PageID)
	}
	if len(data) > disk.PageSize {
		return errors.Wrapf(ErrPageFull, "node of page %d needs %d bytes, page size is %d", n.PageID, len(data), disk.PageSize)
	}

	p.fillLock.Lock()
	defer p.fillLock.Unlock()

	p.evict(n.PageID)
	return p.file.WritePage(uint64(n.PageID), data)
}

// AllocatePageID returns a page id to write a new node to. Metadata is not persisted.
func (p *Pager) AllocatePageID() (Pointer, error) {
	id, err := p.file.Allocate()
	return Pointer(id), err
}

// DeallocatePageID pushes pageID to the free list. Metadata is not persisted.
func (p *Pager) DeallocatePageID(pageID Pointer) error {
	if pageID == InvalidPointer {
		return errors.Wrap(ErrTreeLogic, "cannot deallocate the sentinel page id")
	}

	p.fillLock.Lock()
	defer p.fillLock.Unlock()

	p.evict(pageID)
	return p.file.Free(uint64(pageID))
}

// WriteMetadata persists order, root, next available page id and free list head.
func (p *Pager) WriteMetadata() error {
	return p.file.WriteHeader()
}

func (p *Pager) Order() int {
	return int(p.file.Header().Order)
}

func (p *Pager) Root() Pointer {
	return Pointer(p.file.Header().RootPageID)
}

func (p *Pager) SetRoot(pageID Pointer) {
	p.file.SetRoot(uint64(pageID))
}

func (p *Pager) NextAvailablePageID() Pointer {
	return Pointer(p.file.Header().NextAvailablePageID)
}

// FreePages returns the free list in pop order.
func (p *Pager) FreePages() ([]Pointer, error) {
	ids, err := p.file.FreePages()
	if err != nil {
		return nil, err
	}

	res := make([]Pointer, len(ids))
	for i, id := range ids {
		res[i] = Pointer(id)
	}
	return res, nil
}

func (p *Pager) Filename() string {
	return p.file.Filename()
}

func (p *Pager) Sync() error {
	return p.file.Sync()
}

func (p *Pager) Close() error {
	if p.cache != nil {
		p.cache.Close()
	}
	return p.file.Close()
}

// evict drops pageID from the cache and waits until ristretto has applied every buffered operation, so that an
// older Set cannot reappear after the page changed.
func (p *Pager) evict(pageID Pointer) {
	if p.cache == nil {
		return
	}
	p.cache.Del(uint64(pageID))
	p.cache.Wait()
}
