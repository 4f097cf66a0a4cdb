package sff

// The two custom pixel compression schemes defined by the SFF version 2
// format. Both decoders stop as soon as either buffer is exhausted so
// that truncated or malformed input can never read or write out of
// bounds.

// rle8Decode decompresses RLE8 data into dst. A control byte with its
// top two bits set to 01 encodes a run: the low six bits give the run
// length and the next byte the value. Top bits 00 encode a raw run: the
// low six bits count literal bytes copied verbatim. Any other control
// byte is itself a single literal pixel.
func rle8Decode(src, dst []byte) {
	i, j := 0, 0
	for i < len(src) && j < len(dst) {
		d := src[i]
		i++
		switch d & 0xc0 {
		case 0x40:
			if i >= len(src) {
				return
			}
			v := src[i]
			i++
			for n := int(d & 0x3f); n > 0 && j < len(dst); n-- {
				dst[j] = v
				j++
			}
		case 0x00:
			for n := int(d & 0x3f); n > 0 && i < len(src) && j < len(dst); n-- {
				dst[j] = src[i]
				i++
				j++
			}
		default:
			dst[j] = d
			j++
		}
	}
}

// rle8Encode produces a stream that rle8Decode inverts exactly. Pixel
// values colliding with the 00/01 control prefixes are always escaped
// through the run form.
func rle8Encode(src []byte) []byte {
	out := make([]byte, 0, len(src))
	for i := 0; i < len(src); {
		j := i
		for j < len(src) && j-i < 63 && src[j] == src[i] {
			j++
		}
		n := j - i
		if n > 1 || src[i]&0x80 == 0 {
			out = append(out, 0x40|byte(n), src[i])
		} else {
			out = append(out, src[i])
		}
		i = j
	}
	return out
}

// lz5Decode decompresses LZ5 data into dst. The stream starts with a
// 4-byte uncompressed-size hint, then alternates control bytes and
// packets. Each control bit, LSB first, selects a literal byte (clear)
// or a two-byte back-reference (set) encoding a 6-bit length plus one
// and a 10-bit offset: length = (b1 & 0x3f) + 1,
// offset = ((b1 & 0xc0) << 2) | b2, copied byte by byte from
// dst[pos-offset-1] so overlapping self-references extend runs.
func lz5Decode(src, dst []byte) {
	if len(src) < 4 {
		return
	}
	src = src[4:]
	i, j := 0, 0
	for j < len(dst) {
		if i >= len(src) {
			return
		}
		ctrl := src[i]
		i++
		for bit := 0; bit < 8 && j < len(dst); bit++ {
			if ctrl&(1<<uint(bit)) != 0 {
				if i+1 >= len(src) {
					return
				}
				b1, b2 := src[i], src[i+1]
				i += 2
				length := int(b1&0x3f) + 1
				offset := int(b1&0xc0)<<2 | int(b2)
				pos := j - offset - 1
				if pos < 0 {
					return
				}
				for ; length > 0 && j < len(dst); length-- {
					dst[j] = dst[pos]
					pos++
					j++
				}
			} else {
				if i >= len(src) {
					return
				}
				dst[j] = src[i]
				i++
				j++
			}
		}
	}
}
