package disk

import (
	"encoding/binary"
	"math"
)

const (
	// PageSize is the size of every page in the data region of the file.
	PageSize = 4096

	// HeaderSize is order(u32) + root(u64) + next available page(u64) + free list head(u64).
	HeaderSize = 4 + 8 + 8 + 8

	// MinOrder is the smallest fan-out a tree can be created with.
	MinOrder = 3

	// InvalidPageID marks "no page" and the end of the free list.
	InvalidPageID = uint64(math.MaxUint64)
)

// Header is the metadata stored at the beginning of the file. The header region is one page wide, so page 0's data
// starts at offset PageSize.
type Header struct {
	Order               uint32
	RootPageID          uint64
	NextAvailablePageID uint64
	FreeListHead        uint64
}

func readHeader(data []byte) Header {
	return Header{
		Order:               binary.BigEndian.Uint32(data),
		RootPageID:          binary.BigEndian.Uint64(data[4:]),
		NextAvailablePageID: binary.BigEndian.Uint64(data[12:]),
		FreeListHead:        binary.BigEndian.Uint64(data[20:]),
	}
}

func writeHeader(h Header, dest []byte) {
	binary.BigEndian.PutUint32(dest, h.Order)
	binary.BigEndian.PutUint64(dest[4:], h.RootPageID)
	binary.BigEndian.PutUint64(dest[12:], h.NextAvailablePageID)
	binary.BigEndian.PutUint64(dest[20:], h.FreeListHead)
}

// pageOffset returns where page id's data begins in the file.
func pageOffset(pageID uint64) int64 {
	return int64(PageSize) + int64(pageID)*int64(PageSize)
}
