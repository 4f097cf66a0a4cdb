/*
Package sff implements a decoder and encoder for Elecbyte SFF sprite
archives, the container format used by M.U.G.E.N-style fighting game
content.

Two incompatible major versions exist. Version 1 stores a forward-linked
chain of subfile records each carrying an inline PCX image and an
optional trailing palette. Version 2 stores randomly addressable sprite
and palette node tables over two shared data sections and supports
several pixel encodings: raw, RLE8, LZ5 and embedded PNG payloads.

The package never trusts the input buffer; every read is bounds checked
and malformed data is reported as a typed error rather than a panic.
*/
package sff

import (
	"image"
	"os"
)

const (
	// signature is the fixed 12-byte tag at the start of every archive,
	// including the trailing NUL.
	signature = "ElecbyteSpr\x00"

	// minHeaderSize is the smallest amount of data any entry point will
	// look at before giving up.
	minHeaderSize = 32

	// versionOffset locates the major version byte within the header.
	versionOffset = 15
)

// Conventional group numbers used by the selection heuristics.
const (
	portraitGroup   = 9000
	backgroundGroup = 0
)

// selection picks between the two sprite lookup strategies.
type selection int

const (
	selectPortrait selection = iota
	selectStagePreview
)

// version validates the signature and returns the major version byte.
func version(data []byte) (byte, error) {
	if len(data) < minHeaderSize {
		return 0, ErrFileTooSmall
	}
	if string(data[:len(signature)]) != signature {
		return 0, ErrInvalidSignature
	}
	return data[versionOffset], nil
}

// ExtractPortrait decodes the sprite conventionally used as the
// character select icon: the first group 9000 entry, preferring one
// larger than 50 pixels on both sides, falling back to a group 0,
// image 0 entry over 30 pixels.
func ExtractPortrait(data []byte) (image.Image, error) {
	return extract(data, selectPortrait)
}

// ExtractStagePreview decodes the sprite conventionally used as a stage
// thumbnail. The lookup order matches ExtractPortrait but without the
// size thresholds.
func ExtractStagePreview(data []byte) (image.Image, error) {
	return extract(data, selectStagePreview)
}

// ExtractSprite decodes the first sprite in the archive matching the
// given group and image numbers exactly. Records that alias another
// sprite's pixel data are skipped, not resolved.
func ExtractSprite(data []byte, group, imageNo uint16) (image.Image, error) {
	v, err := version(data)
	if err != nil {
		return nil, err
	}
	if v >= 2 {
		return extractSpriteV2(data, group, imageNo)
	}
	return extractSpriteV1(data, group, imageNo)
}

func extract(data []byte, sel selection) (image.Image, error) {
	v, err := version(data)
	if err != nil {
		return nil, err
	}
	if v >= 2 {
		return extractV2(data, sel)
	}
	return extractV1(data, sel)
}

// ExtractPortraitFile reads the archive at path and delegates to
// ExtractPortrait.
func ExtractPortraitFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ExtractPortrait(data)
}

// ExtractStagePreviewFile reads the archive at path and delegates to
// ExtractStagePreview.
func ExtractStagePreviewFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ExtractStagePreview(data)
}
