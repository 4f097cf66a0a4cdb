package sff

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"
)

// Version 2 layout constants. Sprite and palette nodes are fixed-size
// table entries; pixel and palette payloads live in one of two shared
// data sections ("literal" and "true color").
const (
	v2SpriteOffsetOffset  = 36
	v2SpriteCountOffset   = 40
	v2PaletteOffsetOffset = 44
	v2PaletteCountOffset  = 48
	v2LDataOffsetOffset   = 52
	v2LDataLengthOffset   = 56
	v2TDataOffsetOffset   = 60
	v2TDataLengthOffset   = 64

	v2SpriteNodeSize  = 28
	v2PaletteNodeSize = 16

	v2MaxDim = 4000

	// maxPaletteDepth bounds recursive palette link resolution so a
	// link cycle cannot recurse forever.
	maxPaletteDepth = 16
)

// Pixel format tags stored in a version 2 sprite node.
const (
	formatRaw   = 0
	formatRLE8  = 2
	formatRLE5  = 3
	formatLZ5   = 4
	formatPNG8  = 10
	formatPNG24 = 11
	formatPNG32 = 12
)

type v2Header struct {
	spriteOff   uint32
	spriteCount uint32
	palOff      uint32
	palCount    uint32
	ldataOff    uint32
	ldataLen    uint32
	tdataOff    uint32
	tdataLen    uint32
}

func parseV2Header(data []byte) (v2Header, error) {
	var h v2Header
	var err error
	if h.spriteOff, err = readU32(data, v2SpriteOffsetOffset); err != nil {
		return h, err
	}
	if h.spriteCount, err = readU32(data, v2SpriteCountOffset); err != nil {
		return h, err
	}
	if h.palOff, err = readU32(data, v2PaletteOffsetOffset); err != nil {
		return h, err
	}
	if h.palCount, err = readU32(data, v2PaletteCountOffset); err != nil {
		return h, err
	}
	if h.ldataOff, err = readU32(data, v2LDataOffsetOffset); err != nil {
		return h, err
	}
	if h.ldataLen, err = readU32(data, v2LDataLengthOffset); err != nil {
		return h, err
	}
	if h.tdataOff, err = readU32(data, v2TDataOffsetOffset); err != nil {
		return h, err
	}
	if h.tdataLen, err = readU32(data, v2TDataLengthOffset); err != nil {
		return h, err
	}
	return h, nil
}

type v2Sprite struct {
	group   uint16
	image   uint16
	width   uint16
	height  uint16
	link    uint16
	format  byte
	depth   byte
	dataOff uint32
	dataLen uint32
	palIdx  uint16
	flags   uint16
}

func parseV2Sprite(data []byte, h v2Header, i int) (v2Sprite, error) {
	base := int(h.spriteOff) + i*v2SpriteNodeSize
	var s v2Sprite
	var err error
	if s.group, err = readU16(data, base); err != nil {
		return s, err
	}
	if s.image, err = readU16(data, base+2); err != nil {
		return s, err
	}
	if s.width, err = readU16(data, base+4); err != nil {
		return s, err
	}
	if s.height, err = readU16(data, base+6); err != nil {
		return s, err
	}
	if s.link, err = readU16(data, base+12); err != nil {
		return s, err
	}
	if s.format, err = readU8(data, base+14); err != nil {
		return s, err
	}
	if s.depth, err = readU8(data, base+15); err != nil {
		return s, err
	}
	if s.dataOff, err = readU32(data, base+16); err != nil {
		return s, err
	}
	if s.dataLen, err = readU32(data, base+20); err != nil {
		return s, err
	}
	if s.palIdx, err = readU16(data, base+24); err != nil {
		return s, err
	}
	if s.flags, err = readU16(data, base+26); err != nil {
		return s, err
	}
	return s, nil
}

func extractV2(data []byte, sel selection) (image.Image, error) {
	h, err := parseV2Header(data)
	if err != nil {
		return nil, err
	}

	// One pass over the table, remembering the first entry of each
	// tier. Linked sprites carry no pixel data of their own and are not
	// resolved, so they never become candidates.
	portraitBig := -1 // group 9000, both sides over 50
	portraitAny := -1 // group 9000
	fallbackBig := -1 // group 0 image 0, both sides over 30
	fallbackAny := -1 // group 0 image 0
	for i := 0; i < int(h.spriteCount); i++ {
		s, err := parseV2Sprite(data, h, i)
		if err != nil {
			return nil, err
		}
		if s.link != 0 || s.dataLen == 0 {
			continue
		}
		switch {
		case s.group == portraitGroup:
			if portraitAny < 0 {
				portraitAny = i
			}
			if portraitBig < 0 && s.width > 50 && s.height > 50 {
				portraitBig = i
			}
		case s.group == backgroundGroup && s.image == 0:
			if fallbackAny < 0 {
				fallbackAny = i
			}
			if fallbackBig < 0 && s.width > 30 && s.height > 30 {
				fallbackBig = i
			}
		}
	}

	var candidates []int
	switch sel {
	case selectPortrait:
		if portraitBig >= 0 {
			candidates = append(candidates, portraitBig)
		} else if portraitAny >= 0 {
			candidates = append(candidates, portraitAny)
		}
		if fallbackBig >= 0 {
			candidates = append(candidates, fallbackBig)
		}
	case selectStagePreview:
		if portraitAny >= 0 {
			candidates = append(candidates, portraitAny)
		}
		if fallbackAny >= 0 {
			candidates = append(candidates, fallbackAny)
		}
	}

	var firstErr error
	for _, i := range candidates {
		s, err := parseV2Sprite(data, h, i)
		if err != nil {
			return nil, err
		}
		img, err := decodeV2Sprite(data, h, s)
		if err == nil {
			return img, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, &SpriteNotFoundError{Group: portraitGroup, Image: 0}
}

func extractSpriteV2(data []byte, group, imageNo uint16) (image.Image, error) {
	h, err := parseV2Header(data)
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(h.spriteCount); i++ {
		s, err := parseV2Sprite(data, h, i)
		if err != nil {
			return nil, err
		}
		if s.group != group || s.image != imageNo {
			continue
		}
		if s.link != 0 || s.dataLen == 0 {
			continue
		}
		return decodeV2Sprite(data, h, s)
	}
	return nil, &SpriteNotFoundError{Group: group, Image: imageNo}
}

// decodeV2Sprite locates the sprite's payload in its data section and
// dispatches on the pixel format tag.
func decodeV2Sprite(data []byte, h v2Header, s v2Sprite) (image.Image, error) {
	w, ht := int(s.width), int(s.height)
	if w <= 0 || w >= v2MaxDim || ht <= 0 || ht >= v2MaxDim {
		return nil, &DimensionsError{Width: w, Height: ht}
	}

	// Flag bit 0 selects the true color section over the literal one.
	sectionOff, sectionLen := h.ldataOff, h.ldataLen
	if s.flags&1 != 0 {
		sectionOff, sectionLen = h.tdataOff, h.tdataLen
	}
	if uint64(s.dataOff)+uint64(s.dataLen) > uint64(sectionLen) {
		return nil, &CorruptedDataError{Reason: "sprite payload outside data section"}
	}
	payload, err := slice(data, int(sectionOff)+int(s.dataOff), int(s.dataLen))
	if err != nil {
		return nil, err
	}

	switch s.format {
	case formatRaw:
		if s.depth > 8 {
			if len(payload) < w*ht*4 {
				return nil, &CorruptedDataError{Reason: "raw payload shorter than sprite"}
			}
			img := image.NewRGBA(image.Rect(0, 0, w, ht))
			copy(img.Pix, payload[:w*ht*4])
			return img, nil
		}
		pal, err := v2Palette(data, h, int(s.palIdx), 0)
		if err != nil {
			return nil, err
		}
		return indexedImage(payload, w, ht, pal), nil

	case formatRLE8:
		// The payload begins with a 4-byte uncompressed-size hint.
		if len(payload) < 4 {
			return nil, &CorruptedDataError{Reason: "rle8 payload shorter than header"}
		}
		pal, err := v2Palette(data, h, int(s.palIdx), 0)
		if err != nil {
			return nil, err
		}
		indices := make([]byte, w*ht)
		rle8Decode(payload[4:], indices)
		return indexedImage(indices, w, ht, pal), nil

	case formatRLE5:
		return nil, &DecodingError{Reason: "rle5 pixel format unsupported"}

	case formatLZ5:
		pal, err := v2Palette(data, h, int(s.palIdx), 0)
		if err != nil {
			return nil, err
		}
		indices := make([]byte, w*ht)
		lz5Decode(payload, indices)
		return indexedImage(indices, w, ht, pal), nil

	case formatPNG8:
		if len(payload) < 4 {
			return nil, &CorruptedDataError{Reason: "png payload shorter than header"}
		}
		m, err := png.Decode(bytes.NewReader(payload[4:]))
		if err != nil {
			return nil, &DecodingError{Reason: err.Error()}
		}
		pm, ok := m.(*image.Paletted)
		if !ok {
			return nil, &DecodingError{Reason: "indexed png did not decode to paletted image"}
		}
		pal, err := v2Palette(data, h, int(s.palIdx), 0)
		if err != nil {
			return nil, err
		}
		b := pm.Bounds()
		return indexedImage(pm.Pix, b.Dx(), b.Dy(), pal), nil

	case formatPNG24, formatPNG32:
		if len(payload) < 4 {
			return nil, &CorruptedDataError{Reason: "png payload shorter than header"}
		}
		m, err := png.Decode(bytes.NewReader(payload[4:]))
		if err != nil {
			return nil, &DecodingError{Reason: err.Error()}
		}
		if rgba, ok := m.(*image.RGBA); ok {
			return rgba, nil
		}
		b := m.Bounds()
		rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), m, b.Min, draw.Src)
		return rgba, nil

	default:
		return nil, &DecodingError{Reason: "unknown pixel format"}
	}
}

// v2Palette resolves palette node idx to a materialized color table. A
// node with zero payload length aliases another node through its link
// index; resolution recurses with a depth cap to survive link cycles.
func v2Palette(data []byte, h v2Header, idx, depth int) (*palette, error) {
	if depth >= maxPaletteDepth {
		return nil, &CorruptedDataError{Reason: "palette link chain too deep"}
	}
	if idx < 0 || uint32(idx) >= h.palCount {
		return nil, &CorruptedDataError{Reason: "palette index out of range"}
	}
	base := int(h.palOff) + idx*v2PaletteNodeSize
	link, err := readU16(data, base+6)
	if err != nil {
		return nil, err
	}
	off, err := readU32(data, base+8)
	if err != nil {
		return nil, err
	}
	length, err := readU32(data, base+12)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		if int(link) == idx {
			return nil, &CorruptedDataError{Reason: "palette links to itself"}
		}
		return v2Palette(data, h, int(link), depth+1)
	}
	if uint64(off)+uint64(length) > uint64(h.ldataLen) {
		return nil, &CorruptedDataError{Reason: "palette payload outside data section"}
	}
	rgba, err := slice(data, int(h.ldataOff)+int(off), int(length))
	if err != nil {
		return nil, err
	}
	return paletteFromRGBA(rgba), nil
}
