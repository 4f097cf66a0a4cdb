package sff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/ericpauley/go-quantize/quantize"
	"github.com/nfnt/resize"
)

// StagePreviewMax caps the longest side of the thumbnail sprite emitted
// by WriteStageBackground.
const StagePreviewMax = 320

// writerHeaderSize is the size of the synthesized version 2 header; the
// sprite node table starts immediately after it.
const writerHeaderSize = 68

// SpriteEntry is one sprite to place into a synthesized archive. Build
// entries with NewImageEntry or NewIndexedEntry.
type SpriteEntry struct {
	Group  uint16
	Image  uint16
	Width  uint16
	Height uint16

	format  byte
	depth   byte
	payload []byte // compressed pixel data, without the 4-byte size hint
	palette []byte // packed R,G,B,A table, nil for true color entries
}

// NewImageEntry encodes m as an embedded true color PNG payload.
func NewImageEntry(group, imageNo uint16, m image.Image) (SpriteEntry, error) {
	w, h, err := entryBounds(m)
	if err != nil {
		return SpriteEntry{}, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		return SpriteEntry{}, fmt.Errorf("sff: encode sprite: %w", err)
	}
	return SpriteEntry{
		Group:   group,
		Image:   imageNo,
		Width:   uint16(w),
		Height:  uint16(h),
		format:  formatPNG32,
		depth:   32,
		payload: buf.Bytes(),
	}, nil
}

// NewIndexedEntry quantizes m down to a 255-color palette, reserving
// index 0 as transparent, and stores the pixel indices RLE8 compressed
// alongside a real palette block.
func NewIndexedEntry(group, imageNo uint16, m image.Image) (SpriteEntry, error) {
	w, h, err := entryBounds(m)
	if err != nil {
		return SpriteEntry{}, err
	}

	q := quantize.MedianCutQuantizer{}
	qp := q.Quantize(make(color.Palette, 0, 255), m)
	pal := append(color.Palette{color.RGBA{}}, qp...)

	pm := image.NewPaletted(image.Rect(0, 0, w, h), pal)
	draw.Draw(pm, pm.Bounds(), m, m.Bounds().Min, draw.Src)

	block := make([]byte, 4*len(pal))
	for i, c := range pal {
		r, g, b, a := c.RGBA()
		block[i*4+0] = byte(r >> 8)
		block[i*4+1] = byte(g >> 8)
		block[i*4+2] = byte(b >> 8)
		block[i*4+3] = byte(a >> 8)
	}

	return SpriteEntry{
		Group:   group,
		Image:   imageNo,
		Width:   uint16(w),
		Height:  uint16(h),
		format:  formatRLE8,
		depth:   8,
		payload: rle8Encode(pm.Pix),
		palette: block,
	}, nil
}

func entryBounds(m image.Image) (int, int, error) {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || w >= v2MaxDim || h <= 0 || h >= v2MaxDim {
		return 0, 0, &DimensionsError{Width: w, Height: h}
	}
	return w, h, nil
}

// WriteArchive synthesizes a minimal version 2 archive from the given
// entries: a 68-byte header, the sprite node table, a dummy transparent
// palette node (plus one real node per indexed entry), then the literal
// data section holding every payload behind a 4-byte size hint. All
// multi-byte fields are little endian.
func WriteArchive(w io.Writer, sprites []SpriteEntry) error {
	if len(sprites) == 0 {
		return &CorruptedDataError{Reason: "no sprites to write"}
	}

	type palNode struct {
		colors  uint16
		dataOff uint32
		dataLen uint32
	}

	var ldata bytes.Buffer

	// Palette node 0 is the dummy every archive must carry: a single
	// fully transparent black color.
	ldata.Write([]byte{0, 0, 0, 0})
	palNodes := []palNode{{colors: 1, dataOff: 0, dataLen: 4}}

	palIdx := make([]uint16, len(sprites))
	for i, s := range sprites {
		if s.palette == nil {
			continue
		}
		palIdx[i] = uint16(len(palNodes))
		palNodes = append(palNodes, palNode{
			colors:  uint16(len(s.palette) / 4),
			dataOff: uint32(ldata.Len()),
			dataLen: uint32(len(s.palette)),
		})
		ldata.Write(s.palette)
	}

	type spriteNode struct {
		dataOff uint32
		dataLen uint32
	}
	nodes := make([]spriteNode, len(sprites))
	var hint [4]byte
	for i, s := range sprites {
		nodes[i].dataOff = uint32(ldata.Len())
		nodes[i].dataLen = uint32(4 + len(s.payload))
		uncompressed := uint32(s.Width) * uint32(s.Height)
		if s.depth > 8 {
			uncompressed *= 4
		}
		binary.LittleEndian.PutUint32(hint[:], uncompressed)
		ldata.Write(hint[:])
		ldata.Write(s.payload)
	}

	spriteOff := uint32(writerHeaderSize)
	palOff := spriteOff + uint32(len(sprites))*v2SpriteNodeSize
	ldataOff := palOff + uint32(len(palNodes))*v2PaletteNodeSize

	header := make([]byte, writerHeaderSize)
	copy(header, signature)
	header[versionOffset] = 2
	binary.LittleEndian.PutUint32(header[v2SpriteOffsetOffset:], spriteOff)
	binary.LittleEndian.PutUint32(header[v2SpriteCountOffset:], uint32(len(sprites)))
	binary.LittleEndian.PutUint32(header[v2PaletteOffsetOffset:], palOff)
	binary.LittleEndian.PutUint32(header[v2PaletteCountOffset:], uint32(len(palNodes)))
	binary.LittleEndian.PutUint32(header[v2LDataOffsetOffset:], ldataOff)
	binary.LittleEndian.PutUint32(header[v2LDataLengthOffset:], uint32(ldata.Len()))
	binary.LittleEndian.PutUint32(header[v2TDataOffsetOffset:], ldataOff+uint32(ldata.Len()))
	binary.LittleEndian.PutUint32(header[v2TDataLengthOffset:], 0)
	if _, err := w.Write(header); err != nil {
		return err
	}

	node := make([]byte, v2SpriteNodeSize)
	for i, s := range sprites {
		binary.LittleEndian.PutUint16(node[0:], s.Group)
		binary.LittleEndian.PutUint16(node[2:], s.Image)
		binary.LittleEndian.PutUint16(node[4:], s.Width)
		binary.LittleEndian.PutUint16(node[6:], s.Height)
		binary.LittleEndian.PutUint16(node[8:], 0)  // axis x
		binary.LittleEndian.PutUint16(node[10:], 0) // axis y
		binary.LittleEndian.PutUint16(node[12:], 0) // link
		node[14] = s.format
		node[15] = s.depth
		binary.LittleEndian.PutUint32(node[16:], nodes[i].dataOff)
		binary.LittleEndian.PutUint32(node[20:], nodes[i].dataLen)
		binary.LittleEndian.PutUint16(node[24:], palIdx[i])
		binary.LittleEndian.PutUint16(node[26:], 0) // flags: literal section
		if _, err := w.Write(node); err != nil {
			return err
		}
	}

	pnode := make([]byte, v2PaletteNodeSize)
	for _, p := range palNodes {
		binary.LittleEndian.PutUint16(pnode[0:], 0) // group
		binary.LittleEndian.PutUint16(pnode[2:], 0) // item
		binary.LittleEndian.PutUint16(pnode[4:], p.colors)
		binary.LittleEndian.PutUint16(pnode[6:], 0) // link
		binary.LittleEndian.PutUint32(pnode[8:], p.dataOff)
		binary.LittleEndian.PutUint32(pnode[12:], p.dataLen)
		if _, err := w.Write(pnode); err != nil {
			return err
		}
	}

	_, err := w.Write(ldata.Bytes())
	return err
}

// WriteStageBackground synthesizes the two-sprite stage archive: the
// full size background as group 0, image 0 and a proportionally resized
// thumbnail, capped at StagePreviewMax on its longest side, as group
// 9000, image 0.
func WriteStageBackground(m image.Image, w io.Writer) error {
	full, err := NewImageEntry(backgroundGroup, 0, m)
	if err != nil {
		return err
	}
	thumb, err := NewImageEntry(portraitGroup, 0,
		resize.Thumbnail(StagePreviewMax, StagePreviewMax, m, resize.Lanczos3))
	if err != nil {
		return err
	}
	return WriteArchive(w, []SpriteEntry{full, thumb})
}

// WriteStageBackgroundFile writes the stage archive to a temporary file
// in the destination directory and renames it into place, so a failed
// write never leaves a partial archive behind.
func WriteStageBackgroundFile(m image.Image, path string) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".sff-*")
	if err != nil {
		return err
	}
	if err := WriteStageBackground(m, f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), path)
}
