package sff

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func v1Header(count, first uint32) []byte {
	b := make([]byte, minHeaderSize)
	copy(b, signature)
	b[versionOffset] = 1
	binary.LittleEndian.PutUint32(b[v1ImageCountOffset:], count)
	binary.LittleEndian.PutUint32(b[v1FirstRecordOffset:], first)
	return b
}

func TestTooSmallBuffer(t *testing.T) {
	for _, data := range [][]byte{nil, {}, make([]byte, minHeaderSize-1)} {
		_, err := ExtractPortrait(data)
		require.ErrorIs(t, err, ErrFileTooSmall)

		_, err = ExtractStagePreview(data)
		require.ErrorIs(t, err, ErrFileTooSmall)

		_, err = ExtractSprite(data, 9000, 0)
		require.ErrorIs(t, err, ErrFileTooSmall)
	}
}

func TestInvalidSignature(t *testing.T) {
	data := make([]byte, minHeaderSize)
	copy(data, "NotElecbyte\x00")

	_, err := ExtractPortrait(data)
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, err = ExtractStagePreview(data)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSignatureIsCaseSensitive(t *testing.T) {
	data := v1Header(1, 32)
	copy(data, "ELECBYTESPR\x00")

	_, err := ExtractPortrait(data)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestV1ZeroSpriteCount(t *testing.T) {
	data := v1Header(0, 32)

	_, err := ExtractPortrait(data)
	var nf *SpriteNotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestV1FirstRecordOffsetOutOfRange(t *testing.T) {
	data := v1Header(1, 0xffff)

	_, err := ExtractSprite(data, 9000, 0)
	var corrupted *CorruptedDataError
	require.ErrorAs(t, err, &corrupted)
}
