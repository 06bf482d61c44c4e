// Outer frame: spec.md §6.1. `"loro" || 12 zero bytes || u32 xxHash32(body)
// LE, seeded XXH_SEED || u16 EncodeMode BE || body`.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/OneOfOne/xxhash"
)

const (
	MagicDoc = "loro"
	XXHSeed  = 0x4F524F4C

	EncodeModeFastSnapshot uint16 = 3
	EncodeModeFastUpdates  uint16 = 4
)

const headerLen = 4 + 12 + 4 + 2 // magic + reserved + checksum + mode

// WriteFrame wraps body in the outer frame for the given encode mode.
func WriteFrame(mode uint16, body []byte) []byte {
	out := make([]byte, 0, headerLen+len(body))
	out = append(out, MagicDoc...)
	out = append(out, make([]byte, 12)...)

	var sumBuf [4]byte
	binary.LittleEndian.PutUint32(sumBuf[:], xxhash.ChecksumS32(body, XXHSeed))
	out = append(out, sumBuf[:]...)

	var modeBuf [2]byte
	binary.BigEndian.PutUint16(modeBuf[:], mode)
	out = append(out, modeBuf[:]...)

	return append(out, body...)
}

// ReadFrame validates the magic and checksum and returns the encode mode
// and body.
func ReadFrame(data []byte) (mode uint16, body []byte, err error) {
	if len(data) < headerLen {
		return 0, nil, fmt.Errorf("codec: frame shorter than header: %w", ErrTruncated)
	}
	if string(data[0:4]) != MagicDoc {
		return 0, nil, fmt.Errorf("codec: bad magic %q: %w", data[0:4], ErrBadMagic)
	}
	wantSum := binary.LittleEndian.Uint32(data[16:20])
	mode = binary.BigEndian.Uint16(data[20:22])
	body = data[headerLen:]

	if xxhash.ChecksumS32(body, XXHSeed) != wantSum {
		return 0, nil, fmt.Errorf("codec: frame checksum mismatch: %w", ErrChecksumMismatch)
	}
	if mode != EncodeModeFastSnapshot && mode != EncodeModeFastUpdates {
		return 0, nil, fmt.Errorf("codec: unsupported encode mode %d: %w", mode, ErrUnsupportedEncodeMode)
	}
	return mode, body, nil
}
