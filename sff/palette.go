package sff

import (
	"image"
	"image/color"
)

// palette is a fully materialized 256-entry color table. Index 0 is
// always fully transparent regardless of what the archive stored.
type palette [256]color.RGBA

// paletteFromRGB builds a palette from a packed 768-byte R,G,B table as
// found at the tail of a version 1 PCX payload.
func paletteFromRGB(rgb []byte) *palette {
	var p palette
	for i := 0; i < 256 && i*3+2 < len(rgb); i++ {
		if i == 0 {
			continue
		}
		p[i] = color.RGBA{R: rgb[i*3], G: rgb[i*3+1], B: rgb[i*3+2], A: 0xff}
	}
	return &p
}

// paletteFromRGBA builds a palette from a packed 4-bytes-per-color
// R,G,B,A table as found in a version 2 literal data section. The
// stored alpha byte is unreliable in the wild, so opaque alpha is
// assumed for every index but 0.
func paletteFromRGBA(rgba []byte) *palette {
	var p palette
	n := len(rgba) / 4
	if n > 256 {
		n = 256
	}
	for i := 1; i < n; i++ {
		p[i] = color.RGBA{R: rgba[i*4], G: rgba[i*4+1], B: rgba[i*4+2], A: 0xff}
	}
	return &p
}

// indexedImage maps one index byte per pixel through pal into an RGBA
// image. Missing pixels (truncated index data) stay transparent.
func indexedImage(indices []byte, w, h int, pal *palette) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	n := w * h
	if len(indices) < n {
		n = len(indices)
	}
	for i := 0; i < n; i++ {
		c := pal[indices[i]]
		img.Pix[i*4+0] = c.R
		img.Pix[i*4+1] = c.G
		img.Pix[i*4+2] = c.B
		img.Pix[i*4+3] = c.A
	}
	return img
}
