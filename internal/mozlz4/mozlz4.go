// Package mozlz4 decodes the Gecko session-store file format: an 8-byte
// magic, a little-endian uncompressed size, and a single raw LZ4 block with
// no frame header.
package mozlz4

import (
	"encoding/binary"
	"fmt"
)

// Magic is the first 8 bytes of every mozLz4 file.
var Magic = []byte("mozLz40\x00")

const headerLen = 12

// DecodeFile validates the mozLz4 header and decompresses the payload.
func DecodeFile(data []byte) ([]byte, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("mozlz4: file too short (%d bytes)", len(data))
	}
	for i, b := range Magic {
		if data[i] != b {
			return nil, fmt.Errorf("mozlz4: bad magic %q", data[:len(Magic)])
		}
	}
	size := binary.LittleEndian.Uint32(data[8:12])
	return DecodeBlock(data[headerLen:], int(size))
}

// DecodeBlock decompresses one raw LZ4 block into exactly size bytes.
//
// Block layout, repeated until input is exhausted: a token byte whose high
// nibble is the literal length and low nibble is the match length minus 4;
// a nibble of 15 is extended by summing following bytes, stopping at the
// first byte below 255 (which is still added). Literals are copied verbatim;
// a match is a 2-byte little-endian back offset plus the match length,
// copied byte by byte so offsets shorter than the match length repeat.
func DecodeBlock(src []byte, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("mozlz4: negative size %d", size)
	}
	dst := make([]byte, 0, size)
	i := 0

	for i < len(src) {
		token := src[i]
		i++

		litLen := int(token >> 4)
		if litLen == 15 {
			n, advance, err := extendLength(src[i:])
			if err != nil {
				return nil, err
			}
			litLen += n
			i += advance
		}

		if i+litLen > len(src) {
			return nil, fmt.Errorf("mozlz4: literal run of %d overruns input", litLen)
		}
		dst = append(dst, src[i:i+litLen]...)
		i += litLen

		// The final sequence is literals only.
		if i >= len(src) {
			break
		}

		if i+2 > len(src) {
			return nil, fmt.Errorf("mozlz4: truncated match offset")
		}
		offset := int(binary.LittleEndian.Uint16(src[i:]))
		i += 2
		if offset == 0 || offset > len(dst) {
			return nil, fmt.Errorf("mozlz4: match offset %d outside output of %d", offset, len(dst))
		}

		matchLen := int(token&0x0F) + 4
		if token&0x0F == 15 {
			n, advance, err := extendLength(src[i:])
			if err != nil {
				return nil, err
			}
			matchLen += n
			i += advance
		}

		// Byte-by-byte so overlapping copies produce run-length expansion.
		pos := len(dst) - offset
		for j := 0; j < matchLen; j++ {
			dst = append(dst, dst[pos+j])
		}
	}

	if len(dst) != size {
		return nil, fmt.Errorf("mozlz4: decompressed %d bytes, header declared %d", len(dst), size)
	}
	return dst, nil
}

// extendLength sums extension bytes for a maxed-out length nibble.
// Returns the added length and the number of input bytes consumed.
func extendLength(src []byte) (int, int, error) {
	total := 0
	for i, b := range src {
		total += int(b)
		if b != 255 {
			return total, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("mozlz4: truncated length extension")
}
