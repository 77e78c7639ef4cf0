package btree

import "errors"

var (
	// ErrSerialization is returned when a node cannot be encoded, e.g. a length does not fit the on-disk width.
	ErrSerialization = errors.New("serialization error")

	// ErrDeserialization is returned for malformed page bytes, an unknown node tag included.
	ErrDeserialization = errors.New("deserialization error")

	// ErrNodeNotFound is returned when a page that was never written is read as a node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrPageFull is returned when an encoded node does not fit a page. It means order and key sizes do not match
	// the page size and should be treated as a configuration error.
	ErrPageFull = errors.New("page full")

	// ErrUnexpectedNodeType is returned when a leaf was found where an internal node was expected or vice versa.
	ErrUnexpectedNodeType = errors.New("unexpected node type")

	// ErrTreeLogic is returned when an invariant of the tree is violated.
	ErrTreeLogic = errors.New("tree logic error")

	// ErrClosed is returned by operations on a closed tree.
	ErrClosed = errors.New("tree is closed")
)
