package sff

import "encoding/binary"

// Bounds-checked little-endian reads over the raw archive buffer. The
// buffer is untrusted third-party data, so every offset is validated
// before use and violations surface as CorruptedDataError.

func readU8(b []byte, off int) (byte, error) {
	if off < 0 || off >= len(b) {
		return 0, &CorruptedDataError{Reason: "read past end of buffer"}
	}
	return b[off], nil
}

func readU16(b []byte, off int) (uint16, error) {
	if off < 0 || off+2 > len(b) {
		return 0, &CorruptedDataError{Reason: "read past end of buffer"}
	}
	return binary.LittleEndian.Uint16(b[off:]), nil
}

func readU32(b []byte, off int) (uint32, error) {
	if off < 0 || off+4 > len(b) {
		return 0, &CorruptedDataError{Reason: "read past end of buffer"}
	}
	return binary.LittleEndian.Uint32(b[off:]), nil
}

// slice returns b[off:off+length] if the range lies entirely within b.
func slice(b []byte, off, length int) ([]byte, error) {
	if off < 0 || length < 0 || off+length > len(b) {
		return nil, &CorruptedDataError{Reason: "payload outside buffer"}
	}
	return b[off : off+length], nil
}
