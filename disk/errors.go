package disk

import "errors"

var (
	// ErrPageNotFound is returned when a page is read past the end of the file, i.e. it has never been written.
	ErrPageNotFound = errors.New("page not found")

	// ErrInvalidPageID is returned when the sentinel page id is used as a real page.
	ErrInvalidPageID = errors.New("invalid page id")

	// ErrOrderTooSmall is returned when a file is created with an order that cannot keep a B+Tree balanced.
	ErrOrderTooSmall = errors.New("order is too small")

	// ErrPageOverflow is returned when a caller tries to write more than PageSize bytes to a page.
	ErrPageOverflow = errors.New("data exceeds page size")
)

// ErrInvalidHeader is returned when an existing file does not start with a usable header.
var ErrInvalidHeader = errors.New("invalid file header")
