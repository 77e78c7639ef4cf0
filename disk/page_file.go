package disk

import (
	"io"
	"log"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// PageFile owns the backing file of one index. It translates page ids to file offsets, keeps the header in memory
// and manages the free list. Every file access happens under mu, so callers sharing a PageFile serialize their page
// reads and writes. Nothing here makes a sequence of writes atomic.
type PageFile struct {
	file     *os.File
	filename string
	mu       sync.Mutex
	header   Header
}

// OpenPageFile opens the file at path. If it holds a valid header, the header is loaded and the stored order wins
// over the requested one. Otherwise, when create is true, a fresh header is written with root 0, next available
// page 1 and an empty free list. The returned bool reports whether a new header was initialized.
func OpenPageFile(path string, order int, create bool) (*PageFile, bool, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, false, errors.Wrapf(err, "opening %s", path)
	}

	stats, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, false, errors.Wrapf(err, "stat %s", path)
	}

	filesize := stats.Size()
	log.Printf("index file %s is initializing, file size is %d \n", path, filesize)

	d := &PageFile{file: f, filename: path}
	if filesize >= HeaderSize {
		data := make([]byte, HeaderSize)
		if _, err := f.ReadAt(data, 0); err != nil {
			_ = f.Close()
			return nil, false, errors.Wrapf(err, "reading header of %s", path)
		}

		h := readHeader(data)
		if h.Order != 0 {
			if order != 0 && int(h.Order) != order {
				log.Printf("order mismatch for %s, requested: %d, stored: %d. using stored order \n", path, order, h.Order)
			}
			d.header = h
			return d, false, nil
		}
	}

	if !create {
		_ = f.Close()
		return nil, false, errors.Wrapf(ErrInvalidHeader, "%s", path)
	}

	if order < MinOrder {
		_ = f.Close()
		if filesize == 0 {
			_ = os.Remove(path)
		}
		return nil, false, errors.Wrapf(ErrOrderTooSmall, "order %d, minimum is %d", order, MinOrder)
	}

	d.header = Header{
		Order:               uint32(order),
		RootPageID:          0,
		NextAvailablePageID: 1,
		FreeListHead:        InvalidPageID,
	}
	if err := d.WriteHeader(); err != nil {
		_ = f.Close()
		return nil, false, err
	}

	return d, true, nil
}

func (d *PageFile) Filename() string {
	return d.filename
}

// Header returns a copy of the in-memory header. It may be ahead of the persisted one until WriteHeader is called.
func (d *PageFile) Header() Header {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.header
}

func (d *PageFile) SetRoot(pageID uint64) {
	d.mu.Lock()
	d.header.RootPageID = pageID
	d.mu.Unlock()
}

// WriteHeader persists the in-memory header at offset 0.
func (d *PageFile) WriteHeader() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data := make([]byte, HeaderSize)
	writeHeader(d.header, data)
	if _, err := d.file.WriteAt(data, 0); err != nil {
		return errors.Wrap(err, "writing header")
	}
	return nil
}

// ReadPage reads exactly one page. A page that has never been written returns ErrPageNotFound.
func (d *PageFile) ReadPage(pageID uint64) ([]byte, error) {
	if pageID == InvalidPageID {
		return nil, errors.Wrap(ErrInvalidPageID, "read")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	data := make([]byte, PageSize)
	n, err := d.file.ReadAt(data, pageOffset(pageID))
	if err == io.EOF || (err == nil && n != PageSize) {
		return nil, errors.Wrapf(ErrPageNotFound, "page %d", pageID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading page %d", pageID)
	}

	return data, nil
}

// WritePage zero pads data to PageSize and writes it at the page's offset.
func (d *PageFile) WritePage(pageID uint64, data []byte) error {
	if pageID == InvalidPageID {
		return errors.Wrap(ErrInvalidPageID, "write")
	}
	if len(data) > PageSize {
		return errors.Wrapf(ErrPageOverflow, "page %d: %d bytes", pageID, len(data))
	}

	page := make([]byte, PageSize)
	copy(page, data)

	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.file.WriteAt(page, pageOffset(pageID))
	if err != nil {
		return errors.Wrapf(err, "writing page %d", pageID)
	}
	if n != PageSize {
		return errors.Wrapf(io.ErrShortWrite, "writing page %d", pageID)
	}

	return nil
}

func (d *PageFile) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return errors.Wrap(d.file.Sync(), "sync")
}

func (d *PageFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Close()
}
