/*
Package metadata implements the small preview index written to each
scanned directory of SFF archives, so a front-end can display thumbnails
without consulting the central database.

The file is a fixed header followed by an entry table of (CRC, offset,
length) triples sorted by CRC, then the PNG blobs back to back. All
multi-byte fields are little endian.
*/
package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

const (
	// Filename is the expected filename used when writing to disk
	Filename = "previews.idx"

	maxEntries = 4096

	entrySize = 12
)

var magic = [8]byte{'S', 'F', 'F', 'I', 'D', 'X', '0', '1'}

// DB is the preview index object. It implements the
// encoding.BinaryMarshaler and encoding.BinaryUnmarshaler interfaces.
type DB struct {
	checksums map[uint32]uint16
	previews  [][]byte
}

// New returns an empty preview index
func New() *DB {
	return &DB{
		checksums: make(map[uint32]uint16),
	}
}

// Length returns the number of checksums in the index
func (db *DB) Length() int {
	return len(db.checksums)
}

// Set stores the provided PNG-encoded preview for the given CRC
func (db *DB) Set(crc uint32, preview []byte) error {
	if len(preview) == 0 {
		return errors.New("empty preview")
	}
	if _, ok := db.checksums[crc]; !ok {
		db.previews = append(db.previews, preview)
		db.checksums[crc] = uint16(len(db.previews) - 1)
	}
	return nil
}

// Get returns the preview stored for the given CRC, or nil
func (db *DB) Get(crc uint32) []byte {
	i, ok := db.checksums[crc]
	if !ok {
		return nil
	}
	return db.previews[i]
}

// MarshalBinary encodes the index into binary form and returns the result
func (db *DB) MarshalBinary() ([]byte, error) {
	length := len(db.checksums)

	if length > maxEntries {
		return nil, fmt.Errorf("more than %d entries", maxEntries)
	}

	keys := make([]uint32, 0, len(db.checksums))
	for k := range db.checksums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	b := new(bytes.Buffer)

	if _, err := b.Write(magic[:]); err != nil {
		return nil, err
	}
	if err := binary.Write(b, binary.LittleEndian, uint32(length)); err != nil {
		return nil, err
	}

	// Entry table; blob offsets are relative to the end of the table
	var offset uint32
	for _, k := range keys {
		preview := db.previews[db.checksums[k]]
		entry := [3]uint32{k, offset, uint32(len(preview))}
		if err := binary.Write(b, binary.LittleEndian, &entry); err != nil {
			return nil, err
		}
		offset += uint32(len(preview))
	}

	for _, k := range keys {
		if _, err := b.Write(db.previews[db.checksums[k]]); err != nil {
			return nil, err
		}
	}

	return b.Bytes(), nil
}

// UnmarshalBinary decodes the index from binary form
func (db *DB) UnmarshalBinary(b []byte) error {
	if len(b) < len(magic)+4 {
		return errors.New("truncated header")
	}
	if !bytes.Equal(b[:len(magic)], magic[:]) {
		return errors.New("bad magic")
	}

	length := int(binary.LittleEndian.Uint32(b[len(magic):]))
	if length > maxEntries {
		return fmt.Errorf("more than %d entries", maxEntries)
	}

	table := len(magic) + 4
	blobs := table + length*entrySize
	if len(b) < blobs {
		return errors.New("truncated entry table")
	}

	db.checksums = make(map[uint32]uint16, length)
	db.previews = db.previews[:0]

	for i := 0; i < length; i++ {
		base := table + i*entrySize
		crc := binary.LittleEndian.Uint32(b[base:])
		offset := int(binary.LittleEndian.Uint32(b[base+4:]))
		size := int(binary.LittleEndian.Uint32(b[base+8:]))
		if offset < 0 || size < 0 || blobs+offset+size > len(b) {
			return errors.New("entry outside buffer")
		}
		if err := db.Set(crc, b[blobs+offset:blobs+offset+size]); err != nil {
			return err
		}
	}

	return nil
}
