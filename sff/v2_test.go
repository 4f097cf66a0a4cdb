package sff

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

type v2TestSprite struct {
	group, image  uint16
	width, height uint16
	link          uint16
	format, depth byte
	dataOff       uint32
	dataLen       uint32
	pal, flags    uint16
}

type v2TestPalette struct {
	colors, link uint16
	dataOff      uint32
	dataLen      uint32
}

func buildV2Archive(sprites []v2TestSprite, pals []v2TestPalette, ldata, tdata []byte) []byte {
	spriteOff := writerHeaderSize
	palOff := spriteOff + len(sprites)*v2SpriteNodeSize
	ldataOff := palOff + len(pals)*v2PaletteNodeSize
	tdataOff := ldataOff + len(ldata)

	data := make([]byte, tdataOff+len(tdata))
	copy(data, signature)
	data[versionOffset] = 2
	binary.LittleEndian.PutUint32(data[v2SpriteOffsetOffset:], uint32(spriteOff))
	binary.LittleEndian.PutUint32(data[v2SpriteCountOffset:], uint32(len(sprites)))
	binary.LittleEndian.PutUint32(data[v2PaletteOffsetOffset:], uint32(palOff))
	binary.LittleEndian.PutUint32(data[v2PaletteCountOffset:], uint32(len(pals)))
	binary.LittleEndian.PutUint32(data[v2LDataOffsetOffset:], uint32(ldataOff))
	binary.LittleEndian.PutUint32(data[v2LDataLengthOffset:], uint32(len(ldata)))
	binary.LittleEndian.PutUint32(data[v2TDataOffsetOffset:], uint32(tdataOff))
	binary.LittleEndian.PutUint32(data[v2TDataLengthOffset:], uint32(len(tdata)))

	for i, s := range sprites {
		base := spriteOff + i*v2SpriteNodeSize
		binary.LittleEndian.PutUint16(data[base:], s.group)
		binary.LittleEndian.PutUint16(data[base+2:], s.image)
		binary.LittleEndian.PutUint16(data[base+4:], s.width)
		binary.LittleEndian.PutUint16(data[base+6:], s.height)
		binary.LittleEndian.PutUint16(data[base+12:], s.link)
		data[base+14] = s.format
		data[base+15] = s.depth
		binary.LittleEndian.PutUint32(data[base+16:], s.dataOff)
		binary.LittleEndian.PutUint32(data[base+20:], s.dataLen)
		binary.LittleEndian.PutUint16(data[base+24:], s.pal)
		binary.LittleEndian.PutUint16(data[base+26:], s.flags)
	}
	for i, p := range pals {
		base := palOff + i*v2PaletteNodeSize
		binary.LittleEndian.PutUint16(data[base+4:], p.colors)
		binary.LittleEndian.PutUint16(data[base+6:], p.link)
		binary.LittleEndian.PutUint32(data[base+8:], p.dataOff)
		binary.LittleEndian.PutUint32(data[base+12:], p.dataLen)
	}
	copy(data[ldataOff:], ldata)
	copy(data[tdataOff:], tdata)
	return data
}

// fourColorPalette is a 4-color RGBA block: transparent, red, green, blue.
func fourColorPalette() []byte {
	return []byte{
		0, 0, 0, 0,
		0xff, 0, 0, 0xff,
		0, 0xff, 0, 0xff,
		0, 0, 0xff, 0xff,
	}
}

func pngPayload(t *testing.T, m image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, m))
	payload := make([]byte, 4+buf.Len())
	binary.LittleEndian.PutUint32(payload, uint32(buf.Len()))
	copy(payload[4:], buf.Bytes())
	return payload
}

func TestV2PortraitFromPNGSprite(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for i := range src.Pix {
		src.Pix[i] = byte(i)
	}
	payload := pngPayload(t, src)

	data := buildV2Archive(
		[]v2TestSprite{{
			group: 9000, width: 100, height: 100,
			format: formatPNG32, depth: 32,
			dataOff: 4, dataLen: uint32(len(payload)),
		}},
		[]v2TestPalette{{colors: 1, dataLen: 4}},
		append([]byte{0, 0, 0, 0}, payload...),
		nil,
	)

	m, err := ExtractPortrait(data)
	require.NoError(t, err)

	b := m.Bounds()
	require.Equal(t, 100, b.Dx())
	require.Equal(t, 100, b.Dy())
}

func TestV2Raw8(t *testing.T) {
	ldata := append(fourColorPalette(), 1, 2, 3, 0)

	data := buildV2Archive(
		[]v2TestSprite{{
			group: 9000, image: 0, width: 2, height: 2,
			format: formatRaw, depth: 8,
			dataOff: 16, dataLen: 4,
		}},
		[]v2TestPalette{{colors: 4, dataLen: 16}},
		ldata,
		nil,
	)

	m, err := ExtractSprite(data, 9000, 0)
	require.NoError(t, err)

	require.Equal(t, color.RGBA{R: 0xff, A: 0xff}, m.At(0, 0))
	require.Equal(t, color.RGBA{G: 0xff, A: 0xff}, m.At(1, 0))
	require.Equal(t, color.RGBA{B: 0xff, A: 0xff}, m.At(0, 1))
	require.Equal(t, color.RGBA{}, m.At(1, 1))
}

func TestV2Raw32(t *testing.T) {
	pixels := []byte{
		1, 2, 3, 255, 4, 5, 6, 255,
		7, 8, 9, 255, 10, 11, 12, 255,
	}
	ldata := append([]byte{0, 0, 0, 0}, pixels...)

	data := buildV2Archive(
		[]v2TestSprite{{
			group: 0, image: 0, width: 2, height: 2,
			format: formatRaw, depth: 32,
			dataOff: 4, dataLen: uint32(len(pixels)),
		}},
		[]v2TestPalette{{colors: 1, dataLen: 4}},
		ldata,
		nil,
	)

	m, err := ExtractSprite(data, 0, 0)
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 1, G: 2, B: 3, A: 255}, m.At(0, 0))
	require.Equal(t, color.RGBA{R: 10, G: 11, B: 12, A: 255}, m.At(1, 1))
}

func TestV2RLE8Sprite(t *testing.T) {
	indices := []byte{1, 1, 1, 2, 2, 3, 0, 0, 0}
	compressed := rle8Encode(indices)
	payload := make([]byte, 4+len(compressed))
	binary.LittleEndian.PutUint32(payload, uint32(len(indices)))
	copy(payload[4:], compressed)

	data := buildV2Archive(
		[]v2TestSprite{{
			group: 9000, image: 0, width: 3, height: 3,
			format: formatRLE8, depth: 8,
			dataOff: 16, dataLen: uint32(len(payload)),
		}},
		[]v2TestPalette{{colors: 4, dataLen: 16}},
		append(fourColorPalette(), payload...),
		nil,
	)

	m, err := ExtractSprite(data, 9000, 0)
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 0xff, A: 0xff}, m.At(0, 0))
	require.Equal(t, color.RGBA{G: 0xff, A: 0xff}, m.At(0, 1))
	require.Equal(t, color.RGBA{B: 0xff, A: 0xff}, m.At(2, 1))
	require.Equal(t, color.RGBA{}, m.At(2, 2))
}

func TestV2LZ5Sprite(t *testing.T) {
	// One literal, a length-4 self-referencing back-reference extending
	// it, then four more literals: indices {1,1,1,1,1,2,3,0,0}.
	stream := []byte{0x02, 1, 0x03, 0x00, 2, 3, 0, 0}
	payload := make([]byte, 4+len(stream))
	binary.LittleEndian.PutUint32(payload, 9)
	copy(payload[4:], stream)

	data := buildV2Archive(
		[]v2TestSprite{{
			group: 9000, image: 0, width: 3, height: 3,
			format: formatLZ5, depth: 8,
			dataOff: 16, dataLen: uint32(len(payload)),
		}},
		[]v2TestPalette{{colors: 4, dataLen: 16}},
		append(fourColorPalette(), payload...),
		nil,
	)

	m, err := ExtractSprite(data, 9000, 0)
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 0xff, A: 0xff}, m.At(0, 0))
	require.Equal(t, color.RGBA{R: 0xff, A: 0xff}, m.At(1, 1))
	require.Equal(t, color.RGBA{G: 0xff, A: 0xff}, m.At(2, 1))
	require.Equal(t, color.RGBA{B: 0xff, A: 0xff}, m.At(0, 2))
	require.Equal(t, color.RGBA{}, m.At(1, 2))
}

func TestV2IndexedPNGSprite(t *testing.T) {
	// The embedded PNG's own palette is irrelevant; its pixel indices
	// are mapped through the archive palette instead.
	pm := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{
		color.Gray{}, color.Gray{Y: 1}, color.Gray{Y: 2}, color.Gray{Y: 3},
	})
	copy(pm.Pix, []byte{1, 2, 3, 0})
	payload := pngPayload(t, pm)

	data := buildV2Archive(
		[]v2TestSprite{{
			group: 9000, image: 0, width: 2, height: 2,
			format: formatPNG8, depth: 8,
			dataOff: 16, dataLen: uint32(len(payload)),
		}},
		[]v2TestPalette{{colors: 4, dataLen: 16}},
		append(fourColorPalette(), payload...),
		nil,
	)

	m, err := ExtractSprite(data, 9000, 0)
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 0xff, A: 0xff}, m.At(0, 0))
	require.Equal(t, color.RGBA{G: 0xff, A: 0xff}, m.At(1, 0))
	require.Equal(t, color.RGBA{B: 0xff, A: 0xff}, m.At(0, 1))
	require.Equal(t, color.RGBA{}, m.At(1, 1))
}

func TestV2PayloadOutsideSection(t *testing.T) {
	data := buildV2Archive(
		[]v2TestSprite{{
			group: 9000, width: 2, height: 2,
			format: formatRaw, depth: 8,
			dataOff: 2, dataLen: 100, // past the 8-byte literal section
		}},
		[]v2TestPalette{{colors: 1, dataLen: 4}},
		make([]byte, 8),
		nil,
	)

	_, err := ExtractPortrait(data)
	var corrupted *CorruptedDataError
	require.ErrorAs(t, err, &corrupted)
}

func TestV2LinkedSpriteSkipped(t *testing.T) {
	ldata := append(fourColorPalette(), 1, 2, 3, 0)

	data := buildV2Archive(
		[]v2TestSprite{
			{
				group: 9000, image: 0, width: 200, height: 200,
				format: formatRaw, depth: 8, link: 1,
				dataOff: 16, dataLen: 4,
			},
			{
				group: 9000, image: 1, width: 2, height: 2,
				format: formatRaw, depth: 8,
				dataOff: 16, dataLen: 4,
			},
		},
		[]v2TestPalette{{colors: 4, dataLen: 16}},
		ldata,
		nil,
	)

	// The linked record is skipped even though it matches first; the
	// standalone group 9000 entry is picked instead.
	m, err := ExtractPortrait(data)
	require.NoError(t, err)
	require.Equal(t, 2, m.Bounds().Dx())

	// An exact lookup of the linked record reports not found.
	_, err = ExtractSprite(data, 9000, 0)
	var nf *SpriteNotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestV2PaletteLink(t *testing.T) {
	// Palette node 0 has no payload and aliases node 1.
	ldata := append(fourColorPalette(), 1, 2, 3, 0)

	data := buildV2Archive(
		[]v2TestSprite{{
			group: 9000, image: 0, width: 2, height: 2,
			format: formatRaw, depth: 8,
			dataOff: 16, dataLen: 4,
		}},
		[]v2TestPalette{
			{colors: 0, link: 1, dataLen: 0},
			{colors: 4, dataLen: 16},
		},
		ldata,
		nil,
	)

	m, err := ExtractSprite(data, 9000, 0)
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 0xff, A: 0xff}, m.At(0, 0))
}

func TestV2PaletteLinkCycle(t *testing.T) {
	data := buildV2Archive(
		[]v2TestSprite{{
			group: 9000, image: 0, width: 2, height: 2,
			format: formatRaw, depth: 8,
			dataOff: 0, dataLen: 4,
		}},
		[]v2TestPalette{
			{colors: 0, link: 1, dataLen: 0},
			{colors: 0, link: 0, dataLen: 0},
		},
		make([]byte, 4),
		nil,
	)

	_, err := ExtractSprite(data, 9000, 0)
	var corrupted *CorruptedDataError
	require.ErrorAs(t, err, &corrupted)
}

func TestV2RLE5IsDecodeFailure(t *testing.T) {
	data := buildV2Archive(
		[]v2TestSprite{{
			group: 9000, image: 0, width: 2, height: 2,
			format: formatRLE5, depth: 8,
			dataOff: 4, dataLen: 4,
		}},
		[]v2TestPalette{{colors: 1, dataLen: 4}},
		make([]byte, 8),
		nil,
	)

	_, err := ExtractSprite(data, 9000, 0)
	var decErr *DecodingError
	require.ErrorAs(t, err, &decErr)
}

func TestV2InvalidDimensions(t *testing.T) {
	data := buildV2Archive(
		[]v2TestSprite{{
			group: 9000, image: 0, width: 4000, height: 2,
			format: formatRaw, depth: 8,
			dataOff: 4, dataLen: 4,
		}},
		[]v2TestPalette{{colors: 1, dataLen: 4}},
		make([]byte, 8),
		nil,
	)

	_, err := ExtractSprite(data, 9000, 0)
	var dims *DimensionsError
	require.ErrorAs(t, err, &dims)
	require.Equal(t, 4000, dims.Width)
}

func TestV2SecondaryDataSection(t *testing.T) {
	pixels := []byte{1, 2, 3, 255, 4, 5, 6, 255, 7, 8, 9, 255, 10, 11, 12, 255}

	data := buildV2Archive(
		[]v2TestSprite{{
			group: 9000, image: 0, width: 2, height: 2,
			format: formatRaw, depth: 32,
			dataOff: 0, dataLen: uint32(len(pixels)),
			flags: 1, // payload lives in the true color section
		}},
		[]v2TestPalette{{colors: 1, dataLen: 4}},
		make([]byte, 4),
		pixels,
	)

	m, err := ExtractSprite(data, 9000, 0)
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 1, G: 2, B: 3, A: 255}, m.At(0, 0))
}

func TestV2PortraitPrefersLargeGroup9000(t *testing.T) {
	ldata := append(fourColorPalette(), bytes.Repeat([]byte{1}, 60*60)...)

	data := buildV2Archive(
		[]v2TestSprite{
			{
				group: 9000, image: 0, width: 2, height: 2,
				format: formatRaw, depth: 8,
				dataOff: 16, dataLen: 4,
			},
			{
				group: 9000, image: 1, width: 60, height: 60,
				format: formatRaw, depth: 8,
				dataOff: 16, dataLen: 60 * 60,
			},
		},
		[]v2TestPalette{{colors: 4, dataLen: 16}},
		ldata,
		nil,
	)

	m, err := ExtractPortrait(data)
	require.NoError(t, err)
	require.Equal(t, 60, m.Bounds().Dx())

	// The stage preview heuristic has no size threshold and takes the
	// first group 9000 entry instead.
	m, err = ExtractStagePreview(data)
	require.NoError(t, err)
	require.Equal(t, 2, m.Bounds().Dx())
}
