package btree

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

/*
	Node layout, all integers big endian:

	tag(1) 0=internal 1=leaf | page id(8) | has parent(1) [parent(8)] | key count(4) | keys: len(4) bytes...
	internal: child count(4) | children(8 each)
	leaf:     value count(4) | per key: pk count(4) | pks: len(4) bytes... | has next(1) [next(8)]
*/

const (
	internalNodeTag = uint8(0)
	leafNodeTag     = uint8(1)
)

// Encode serializes the node. The result is not padded, the pager pads it to a full page.
func (n *Node) Encode() ([]byte, error) {
	buf := make([]byte, 0, n.encodedSize())

	if n.IsLeaf {
		buf = append(buf, leafNodeTag)
	} else {
		buf = append(buf, internalNodeTag)
	}
	buf = binary.BigEndian.AppendUint64(buf, uint64(n.PageID))
	buf = appendOptionalPointer(buf, n.Parent)

	var err error
	if buf, err = appendLen(buf, len(n.Keys)); err != nil {
		return nil, err
	}
	for _, k := range n.Keys {
		if buf, err = appendBytes(buf, k); err != nil {
			return nil, err
		}
	}

	if !n.IsLeaf {
		if buf, err = appendLen(buf, len(n.Children)); err != nil {
			return nil, err
		}
		for _, c := range n.Children {
			buf = binary.BigEndian.AppendUint64(buf, uint64(c))
		}
		return buf, nil
	}

	if buf, err = appendLen(buf, len(n.Values)); err != nil {
		return nil, err
	}
	for _, pks := range n.Values {
		if buf, err = appendLen(buf, len(pks)); err != nil {
			return nil, err
		}
		for _, pk := range pks {
			if buf, err = appendBytes(buf, pk); err != nil {
				return nil, err
			}
		}
	}
	buf = appendOptionalPointer(buf, n.NextLeaf)

	return buf, nil
}

func (n *Node) encodedSize() int {
	size := 1 + 8 + 1 + 8 + 4
	for _, k := range n.Keys {
		size += 4 + len(k)
	}

	if !n.IsLeaf {
		return size + 4 + 8*len(n.Children)
	}

	size += 4
	for _, pks := range n.Values {
		size += 4
		for _, pk := range pks {
			size += 4 + len(pk)
		}
	}
	return size + 1 + 8
}

// DecodeNode parses a node from data. Trailing bytes, such as page padding, are ignored.
func DecodeNode(data []byte) (*Node, error) {
	r := nodeReader{data: data}

	tag := r.uint8()
	if r.err != nil {
		return nil, r.err
	}
	if tag != internalNodeTag && tag != leafNodeTag {
		return nil, errors.Wrapf(ErrDeserialization, "unknown node tag %d", tag)
	}

	n := &Node{
		IsLeaf:   tag == leafNodeTag,
		PageID:   Pointer(r.uint64()),
		Parent:   r.optionalPointer(),
		NextLeaf: InvalidPointer,
	}

	keyCount := r.count()
	n.Keys = make([][]byte, 0, keyCount)
	for i := 0; i < keyCount && r.err == nil; i++ {
		n.Keys = append(n.Keys, r.bytes())
	}

	if !n.IsLeaf {
		childCount := r.count()
		n.Children = make([]Pointer, 0, childCount)
		for i := 0; i < childCount && r.err == nil; i++ {
			n.Children = append(n.Children, Pointer(r.uint64()))
		}
		if r.err != nil {
			return nil, r.err
		}
		if len(n.Children) != len(n.Keys)+1 {
			return nil, errors.Wrapf(ErrDeserialization, "page %d has %d keys and %d children", n.PageID, len(n.Keys), len(n.Children))
		}
		return n, nil
	}

	valueCount := r.count()
	n.Values = make([][][]byte, 0, valueCount)
	for i := 0; i < valueCount && r.err == nil; i++ {
		pkCount := r.count()
		pks := make([][]byte, 0, pkCount)
		for j := 0; j < pkCount && r.err == nil; j++ {
			pks = append(pks, r.bytes())
		}
		n.Values = append(n.Values, pks)
	}
	n.NextLeaf = r.optionalPointer()

	if r.err != nil {
		return nil, r.err
	}
	if len(n.Values) != len(n.Keys) {
		return nil, errors.Wrapf(ErrDeserialization, "page %d has %d keys and %d values", n.PageID, len(n.Keys), len(n.Values))
	}

	return n, nil
}

func appendOptionalPointer(buf []byte, p Pointer) []byte {
	if p == InvalidPointer {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return binary.BigEndian.AppendUint64(buf, uint64(p))
}

func appendLen(buf []byte, l int) ([]byte, error) {
	if uint64(l) > math.MaxUint32 {
		return nil, errors.Wrapf(ErrSerialization, "length %d does not fit 4 bytes", l)
	}
	return binary.BigEndian.AppendUint32(buf, uint32(l)), nil
}

func appendBytes(buf []byte, b []byte) ([]byte, error) {
	buf, err := appendLen(buf, len(b))
	if err != nil {
		return nil, err
	}
	return append(buf, b...), nil
}

// nodeReader reads big endian fields and remembers the first error, so a caller checks it once per group of reads.
type nodeReader struct {
	data []byte
	off  int
	err  error
}

func (r *nodeReader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.err = errors.Wrapf(ErrDeserialization, "unexpected end of data at offset %d, need %d bytes", r.off, n)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *nodeReader) uint8() uint8 {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *nodeReader) uint32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *nodeReader) uint64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// count reads a u32 length. Lengths that cannot be satisfied by the remaining bytes are rejected early, so a corrupt
// page does not trigger a huge allocation.
func (r *nodeReader) count() int {
	c := int(r.uint32())
	if r.err == nil && c > len(r.data)-r.off {
		r.err = errors.Wrapf(ErrDeserialization, "count %d exceeds remaining %d bytes", c, len(r.data)-r.off)
	}
	if r.err != nil {
		return 0
	}
	return c
}

func (r *nodeReader) bytes() []byte {
	l := r.count()
	b := r.next(l)
	if b == nil {
		return nil
	}
	return cloneBytes(b)
}

func (r *nodeReader) optionalPointer() Pointer {
	switch flag := r.uint8(); {
	case r.err != nil:
		return InvalidPointer
	case flag == 0:
		return InvalidPointer
	case flag == 1:
		return Pointer(r.uint64())
	default:
		r.err = errors.Wrapf(ErrDeserialization, "invalid presence flag %d at offset %d", flag, r.off-1)
		return InvalidPointer
	}
}
