package index

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

/*
	A dump is a magic header followed by one block per key in ascending key order. A block is its uvarint length and
	the snappy encoding of:

	uvarint(len(key)) key uvarint(pk count) [uvarint(len(pk)) pk]...
*/

var dumpMagic = []byte("TIDX\x01")

// maxBlockSize bounds a single decoded block, a key with its primary keys always fits in one page.
const maxBlockSize = 1 << 20

// Dump writes every key of idx with its primary keys to w and returns the number of keys written.
func Dump(idx *BTreeIndex, w io.Writer) (int, error) {
	it, err := idx.Tree().Iterator()
	if err != nil {
		return 0, wrapErr(idx.name, err)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(dumpMagic); err != nil {
		return 0, wrapErr(idx.name, errors.Wrap(err, "writing dump header"))
	}

	n := 0
	lenBuf := make([]byte, 0, binary.MaxVarintLen64)
	for it.Next() {
		block := snappy.Encode(nil, encodeRecord(it.Key(), it.PrimaryKeys()))
		lenBuf = binary.AppendUvarint(lenBuf[:0], uint64(len(block)))

		if _, err := bw.Write(lenBuf); err != nil {
			return n, wrapErr(idx.name, errors.Wrap(err, "writing dump"))
		}
		if _, err := bw.Write(block); err != nil {
			return n, wrapErr(idx.name, errors.Wrap(err, "writing dump"))
		}
		n++
	}
	if err := it.Err(); err != nil {
		return n, wrapErr(idx.name, err)
	}

	if err := bw.Flush(); err != nil {
		return n, wrapErr(idx.name, errors.Wrap(err, "writing dump"))
	}
	return n, nil
}

// Restore inserts every pair of a dump written by Dump into idx and returns the number of keys read. Pairs already in
// idx are kept.
func Restore(idx Index, r io.Reader) (int, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(dumpMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return 0, wrapErr(idx.Name(), errors.Wrap(ErrCorruptDump, "missing header"))
	}
	if string(magic) != string(dumpMagic) {
		return 0, wrapErr(idx.Name(), errors.Wrapf(ErrCorruptDump, "unknown header %q", magic))
	}

	n := 0
	for {
		blockLen, err := binary.ReadUvarint(br)
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, wrapErr(idx.Name(), errors.Wrapf(ErrCorruptDump, "block %d: %v", n, err))
		}
		if blockLen > maxBlockSize {
			return n, wrapErr(idx.Name(), errors.Wrapf(ErrCorruptDump, "block %d has length %d", n, blockLen))
		}

		block := make([]byte, blockLen)
		if _, err := io.ReadFull(br, block); err != nil {
			return n, wrapErr(idx.Name(), errors.Wrapf(ErrCorruptDump, "block %d: %v", n, err))
		}

		data, err := snappy.Decode(nil, block)
		if err != nil {
			return n, wrapErr(idx.Name(), errors.Wrapf(ErrCorruptDump, "block %d: %v", n, err))
		}

		key, pks, err := decodeRecord(data)
		if err != nil {
			return n, wrapErr(idx.Name(), errors.Wrapf(err, "block %d", n))
		}
		for _, pk := range pks {
			if err := idx.Insert(key, pk); err != nil {
				return n, err
			}
		}
		n++
	}
}

func encodeRecord(key []byte, pks [][]byte) []byte {
	size := binary.MaxVarintLen64 * (2 + len(pks))
	size += len(key)
	for _, pk := range pks {
		size += len(pk)
	}

	res := make([]byte, 0, size)
	res = binary.AppendUvarint(res, uint64(len(key)))
	res = append(res, key...)
	res = binary.AppendUvarint(res, uint64(len(pks)))
	for _, pk := range pks {
		res = binary.AppendUvarint(res, uint64(len(pk)))
		res = append(res, pk...)
	}
	return res
}

func decodeRecord(data []byte) ([]byte, [][]byte, error) {
	offset := 0
	uvarint := func() (uint64, bool) {
		v, n := binary.Uvarint(data[offset:])
		if n <= 0 {
			return 0, false
		}
		offset += n
		return v, true
	}
	bytes := func() ([]byte, bool) {
		l, ok := uvarint()
		if !ok || l > uint64(len(data)-offset) {
			return nil, false
		}
		b := data[offset : offset+int(l)]
		offset += int(l)
		return b, true
	}

	key, ok := bytes()
	if !ok {
		return nil, nil, errors.Wrap(ErrCorruptDump, "truncated key")
	}

	count, ok := uvarint()
	if !ok || count == 0 || count > uint64(len(data)-offset) {
		return nil, nil, errors.Wrap(ErrCorruptDump, "invalid primary key count")
	}

	pks := make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		pk, ok := bytes()
		if !ok {
			return nil, nil, errors.Wrapf(ErrCorruptDump, "truncated primary key %d", i)
		}
		pks = append(pks, pk)
	}

	if offset != len(data) {
		return nil, nil, errors.Wrapf(ErrCorruptDump, "%d trailing bytes", len(data)-offset)
	}
	return key, pks, nil
}
