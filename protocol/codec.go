package protocol

import (
	"encoding/binary"
	"math/bits"
	"strings"
)

// hexDigits is the uppercase alphabet used by HexDump.
const hexDigits = "0123456789ABCDEF"

// SwapEndian32 reverses the byte order of a 32-bit word.
// The device is big-endian on the wire; applying it twice yields the input.
func SwapEndian32(v uint32) uint32 {
	return bits.ReverseBytes32(v)
}

// SwapEndian reverses a 4-byte field in place.
// Any other width is left untouched since the protocol only frames
// addresses, lengths and values as 4-byte fields.
func SwapEndian(b []byte) {
	if len(b) != WordSize {
		return
	}
	b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
}

// EncodeWord returns the 4-byte big-endian wire form of v: the
// little-endian host layout of the swapped word.
func EncodeWord(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(make([]byte, 0, WordSize), SwapEndian32(v))
}

// DecodeWord reads a big-endian word. It returns false when b is not 4 bytes.
// b is not modified.
func DecodeWord(b []byte) (uint32, bool) {
	if len(b) != WordSize {
		return 0, false
	}
	var w [WordSize]byte
	copy(w[:], b)
	SwapEndian(w[:])
	return binary.LittleEndian.Uint32(w[:]), true
}

// HexDump renders b as space-separated uppercase hex pairs terminated by a newline.
//
// Example:
//
//	protocol.HexDump([]byte{0xD7, 0x00}) // "D7 00\n"
func HexDump(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b)*3 + 1)
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte(hexDigits[c>>4])
		sb.WriteByte(hexDigits[c&0x0F])
	}
	sb.WriteByte('\n')
	return sb.String()
}
