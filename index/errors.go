package index

import (
	"fmt"
	"io"
	"io/fs"

	"github.com/pkg/errors"

	"tarndb/btree"
	"tarndb/disk"
)

type Kind uint8

const (
	// KindIO is a file system failure, including a file that holds no index.
	KindIO Kind = iota + 1

	// KindSerialization means malformed bytes on disk or in a dump.
	KindSerialization

	// KindIndex is an index level failure: a missing or oversized node, or a broken tree invariant.
	KindIndex

	// KindLock means the guard of the index handle could not be used, i.e. the handle is closed.
	KindLock

	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindSerialization:
		return "serialization"
	case KindIndex:
		return "index"
	case KindLock:
		return "lock"
	case KindInternal:
		return "internal"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ErrCorruptDump is returned by Restore for a stream that was not written by Dump.
var ErrCorruptDump = errors.New("corrupt dump")

// Error is returned by every Index operation. errors.Is and errors.As see through it to the underlying tree or file
// error.
type Error struct {
	Kind  Kind
	Index string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("index %s: %s error: %v", e.Index, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func wrapErr(name string, err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kindOf(err), Index: name, Err: err}
}

func kindOf(err error) Kind {
	var pathErr *fs.PathError

	switch {
	case errors.Is(err, btree.ErrSerialization),
		errors.Is(err, btree.ErrDeserialization),
		errors.Is(err, ErrCorruptDump):
		return KindSerialization
	case errors.Is(err, btree.ErrClosed):
		return KindLock
	case errors.Is(err, btree.ErrNodeNotFound),
		errors.Is(err, btree.ErrPageFull),
		errors.Is(err, btree.ErrUnexpectedNodeType),
		errors.Is(err, btree.ErrTreeLogic),
		errors.Is(err, disk.ErrInvalidPageID),
		errors.Is(err, disk.ErrPageOverflow):
		return KindIndex
	case errors.As(err, &pathErr),
		errors.Is(err, disk.ErrInvalidHeader),
		errors.Is(err, io.ErrUnexpectedEOF):
		return KindIO
	default:
		return KindInternal
	}
}
