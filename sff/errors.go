package sff

import (
	"errors"
	"fmt"
)

var (
	// ErrFileTooSmall is returned for buffers shorter than the minimum
	// archive header.
	ErrFileTooSmall = errors.New("sff: file too small")

	// ErrInvalidSignature is returned when the 12-byte tag at the start
	// of the buffer does not match.
	ErrInvalidSignature = errors.New("sff: invalid signature")

	// ErrUnsupportedVersion is returned for archive versions this
	// package does not implement.
	ErrUnsupportedVersion = errors.New("sff: unsupported version")
)

// SpriteNotFoundError reports that no decodable sprite matched the
// requested group and image numbers.
type SpriteNotFoundError struct {
	Group, Image uint16
}

func (e *SpriteNotFoundError) Error() string {
	return fmt.Sprintf("sff: sprite %d,%d not found", e.Group, e.Image)
}

// CorruptedDataError reports structural damage: offsets or lengths that
// point outside the buffer, malformed record chains, broken palette
// links and the like.
type CorruptedDataError struct {
	Reason string
}

func (e *CorruptedDataError) Error() string {
	return "sff: corrupted data: " + e.Reason
}

// DecodingError reports a sprite whose pixel payload could not be
// decoded even though the surrounding structure was intact.
type DecodingError struct {
	Reason string
}

func (e *DecodingError) Error() string {
	return "sff: decoding failed: " + e.Reason
}

// DimensionsError reports sprite dimensions outside the permitted
// range.
type DimensionsError struct {
	Width, Height int
}

func (e *DimensionsError) Error() string {
	return fmt.Sprintf("sff: invalid dimensions %dx%d", e.Width, e.Height)
}
