package sff

import "image"

// Version 1 layout constants. Subfile records form a forward-linked
// chain starting at the offset stored in the header; each record is a
// 32-byte header followed by an inline PCX payload.
const (
	v1ImageCountOffset  = 20
	v1FirstRecordOffset = 24

	v1RecordSize = 32

	// v1MaxRecords bounds the chain walk so a malformed next-offset
	// cycle cannot loop forever.
	v1MaxRecords = 4096

	pcxHeaderSize  = 128
	pcxPaletteSize = 768
	pcxMaxDim      = 2000
)

type v1Record struct {
	next    uint32
	length  uint32
	group   uint16
	image   uint16
	link    uint16
	samePal bool
}

func parseV1Record(data []byte, off int) (v1Record, error) {
	var r v1Record
	var err error
	if r.next, err = readU32(data, off); err != nil {
		return r, err
	}
	if r.length, err = readU32(data, off+4); err != nil {
		return r, err
	}
	if r.group, err = readU16(data, off+12); err != nil {
		return r, err
	}
	if r.image, err = readU16(data, off+14); err != nil {
		return r, err
	}
	if r.link, err = readU16(data, off+16); err != nil {
		return r, err
	}
	flag, err := readU8(data, off+18)
	if err != nil {
		return r, err
	}
	r.samePal = flag != 0
	return r, nil
}

func extractV1(data []byte, sel selection) (image.Image, error) {
	// Portraits and stage previews use the same conventional targets in
	// a version 1 archive; the record carries no dimensions to filter
	// on before decoding.
	targets := [2][2]uint16{{portraitGroup, 0}, {backgroundGroup, 0}}
	var firstErr error
	for _, t := range targets {
		img, err := extractSpriteV1(data, t[0], t[1])
		if err == nil {
			return img, nil
		}
		if firstErr == nil {
			if _, ok := err.(*SpriteNotFoundError); !ok {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, &SpriteNotFoundError{Group: portraitGroup, Image: 0}
}

func extractSpriteV1(data []byte, group, imageNo uint16) (image.Image, error) {
	count, err := readU32(data, v1ImageCountOffset)
	if err != nil {
		return nil, err
	}
	first, err := readU32(data, v1FirstRecordOffset)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, &SpriteNotFoundError{Group: group, Image: imageNo}
	}
	if int(first) >= len(data) {
		return nil, &CorruptedDataError{Reason: "first record offset out of range"}
	}

	// The first record's trailing palette doubles as the shared palette
	// for any later record flagged as reusing it.
	var shared []byte

	off := int(first)
	for i := 0; i < int(count) && i < v1MaxRecords; i++ {
		rec, err := parseV1Record(data, off)
		if err != nil {
			return nil, err
		}

		payload, err := slice(data, off+v1RecordSize, int(rec.length))
		if err != nil {
			return nil, err
		}
		if i == 0 {
			if pal := trailingPalette(payload); pal != nil {
				shared = pal
			}
		}

		if rec.group == group && rec.image == imageNo {
			// Linked sprites alias another record's pixel data and are
			// not resolved here; keep scanning for a standalone match.
			linked := rec.link != 0 && uint32(rec.link) < count
			if !linked && rec.length != 0 {
				// The shared palette applies only to records that opt in
				// through the same-palette flag.
				var fallback []byte
				if rec.samePal {
					fallback = shared
				}
				return decodePCX(payload, fallback)
			}
		}

		if rec.next == 0 || int(rec.next) <= off {
			break
		}
		off = int(rec.next)
	}
	return nil, &SpriteNotFoundError{Group: group, Image: imageNo}
}

// trailingPalette returns the 768-byte R,G,B table at the end of a PCX
// payload, or nil when the marker byte preceding it is absent.
func trailingPalette(pcx []byte) []byte {
	if len(pcx) < pcxHeaderSize+pcxPaletteSize+1 {
		return nil
	}
	if pcx[len(pcx)-pcxPaletteSize-1] != 12 {
		return nil
	}
	return pcx[len(pcx)-pcxPaletteSize:]
}

// decodePCX decodes an 8-bit indexed PCX image. fallback supplies the
// R,G,B palette for payloads without a trailing palette block.
func decodePCX(pcx, fallback []byte) (image.Image, error) {
	if len(pcx) < pcxHeaderSize {
		return nil, &CorruptedDataError{Reason: "pcx payload shorter than header"}
	}
	if pcx[0] != 0x0a {
		return nil, &CorruptedDataError{Reason: "bad pcx magic"}
	}
	encoded := pcx[2] == 1
	if pcx[3] != 8 {
		return nil, &CorruptedDataError{Reason: "pcx color depth is not 8-bit"}
	}

	xmin, _ := readU16(pcx, 4)
	ymin, _ := readU16(pcx, 6)
	xmax, _ := readU16(pcx, 8)
	ymax, _ := readU16(pcx, 10)
	w := int(xmax) - int(xmin) + 1
	h := int(ymax) - int(ymin) + 1
	if w <= 0 || w >= pcxMaxDim || h <= 0 || h >= pcxMaxDim {
		return nil, &DimensionsError{Width: w, Height: h}
	}
	bpl, _ := readU16(pcx, 66)
	stride := int(bpl)
	if stride < w {
		stride = w
	}

	body := pcx[pcxHeaderSize:]
	var rgb []byte
	if pal := trailingPalette(pcx); pal != nil {
		rgb = pal
		body = pcx[pcxHeaderSize : len(pcx)-pcxPaletteSize-1]
	} else if fallback != nil {
		rgb = fallback
	} else {
		return nil, &CorruptedDataError{Reason: "pcx palette missing"}
	}

	indices := decodePCXScanlines(body, w, h, stride, encoded)
	return indexedImage(indices, w, h, paletteFromRGB(rgb)), nil
}

// decodePCXScanlines run-length decodes the image body row by row. A
// control byte with both high bits set carries a repeat count in its
// low six bits followed by one value byte; anything else is a literal.
// Runs never carry across scanlines; decoded bytes past the visible
// width pad out the scanline stride and are dropped.
func decodePCXScanlines(body []byte, w, h, stride int, encoded bool) []byte {
	indices := make([]byte, w*h)
	i := 0
	for y := 0; y < h && i < len(body); y++ {
		for x := 0; x < stride && i < len(body); {
			d := body[i]
			i++
			n := 1
			if encoded && d >= 0xc0 {
				if i >= len(body) {
					return indices
				}
				n = int(d & 0x3f)
				d = body[i]
				i++
			}
			for ; n > 0 && x < stride; n-- {
				if x < w {
					indices[y*w+x] = d
				}
				x++
			}
		}
	}
	return indices
}
