package disk

import (
	"encoding/binary"
	"log"

	"github.com/pkg/errors"

	"tarndb/common"
)

/*
	Freed pages form a singly linked list rooted at Header.FreeListHead. The first 8 bytes of a free page hold the id
	of the next free page, InvalidPageID ends the list. Allocate and Free only change the in-memory header; callers
	decide when to persist it with WriteHeader.
*/

// Allocate pops the head of the free list if there is one, otherwise it hands out the next never used page id.
func (d *PageFile) Allocate() (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.header.FreeListHead == InvalidPageID {
		pageID := d.header.NextAvailablePageID
		d.header.NextAvailablePageID++
		return pageID, nil
	}

	pageID := d.header.FreeListHead
	next, err := d.readNextFree(pageID)
	if err != nil {
		return 0, err
	}

	d.header.FreeListHead = next
	if common.EnableLogging {
		log.Printf("page %d is reused from the free list\n", pageID)
	}
	return pageID, nil
}

// Free pushes pageID on the free list.
func (d *PageFile) Free(pageID uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if pageID == InvalidPageID || pageID >= d.header.NextAvailablePageID {
		return errors.Wrapf(ErrInvalidPageID, "cannot free page %d", pageID)
	}

	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, d.header.FreeListHead)
	if _, err := d.file.WriteAt(data, pageOffset(pageID)); err != nil {
		return errors.Wrapf(err, "freeing page %d", pageID)
	}

	d.header.FreeListHead = pageID
	return nil
}

// FreePages walks the free list from its head and returns the page ids in pop order.
func (d *PageFile) FreePages() ([]uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res := make([]uint64, 0)
	for curr := d.header.FreeListHead; curr != InvalidPageID; {
		// a list longer than the number of pages ever handed out must contain a cycle
		if uint64(len(res)) >= d.header.NextAvailablePageID {
			return nil, errors.Errorf("free list has a cycle at page %d", curr)
		}
		res = append(res, curr)

		next, err := d.readNextFree(curr)
		if err != nil {
			return nil, err
		}
		curr = next
	}

	return res, nil
}

func (d *PageFile) readNextFree(pageID uint64) (uint64, error) {
	data := make([]byte, 8)
	n, err := d.file.ReadAt(data, pageOffset(pageID))
	if n != len(data) {
		if err == nil {
			err = ErrPageNotFound
		}
		return 0, errors.Wrapf(err, "reading free list entry at page %d", pageID)
	}

	return binary.BigEndian.Uint64(data), nil
}
