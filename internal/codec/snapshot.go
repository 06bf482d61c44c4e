// FastSnapshot/FastUpdates bodies: spec.md §6.2/§6.3.
package codec

import (
	"encoding/binary"
	"fmt"
)

// EmptyState is the single byte spec.md §6.2 reserves to mean "state_bytes
// empty" rather than writing a zero-length section indistinguishable from
// "not yet computed".
const EmptyState = "E"

// Snapshot is the decoded form of a FastSnapshot body (§6.2).
type Snapshot struct {
	OplogBytes       []byte
	StateBytes       []byte // nil/empty means EmptyState was written
	ShallowStateBytes []byte
}

func putU32Section(buf []byte, section []byte) []byte {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(section)))
	buf = append(buf, l[:]...)
	return append(buf, section...)
}

func readU32Section(buf []byte) ([]byte, int, error) {
	if len(buf) < 4 {
		return nil, 0, fmt.Errorf("codec: truncated section length: %w", ErrTruncated)
	}
	l := binary.BigEndian.Uint32(buf[0:4])
	if len(buf) < 4+int(l) {
		return nil, 0, fmt.Errorf("codec: truncated section body: %w", ErrTruncated)
	}
	return buf[4 : 4+l], 4 + int(l), nil
}

// EncodeSnapshot builds a FastSnapshot body. A nil/empty stateBytes is
// written as the single EmptyState byte per spec.md §6.2.
func EncodeSnapshot(s Snapshot) []byte {
	state := s.StateBytes
	if len(state) == 0 {
		state = []byte(EmptyState)
	}
	var out []byte
	out = putU32Section(out, s.OplogBytes)
	out = putU32Section(out, state)
	out = putU32Section(out, s.ShallowStateBytes)
	return out
}

// DecodeSnapshot parses a FastSnapshot body.
func DecodeSnapshot(body []byte) (Snapshot, error) {
	var s Snapshot
	oplog, n, err := readU32Section(body)
	if err != nil {
		return s, err
	}
	s.OplogBytes = oplog
	body = body[n:]

	state, n, err := readU32Section(body)
	if err != nil {
		return s, err
	}
	if len(state) == 1 && state[0] == EmptyState[0] {
		s.StateBytes = nil
	} else {
		s.StateBytes = state
	}
	body = body[n:]

	shallow, _, err := readU32Section(body)
	if err != nil {
		return s, err
	}
	s.ShallowStateBytes = shallow
	return s, nil
}

// EncodeUpdates builds a FastUpdates body: a sequence of
// (LEB128 block_len, block_bytes) covering all change blocks (§6.3).
func EncodeUpdates(blocks [][]byte) []byte {
	var out []byte
	for _, b := range blocks {
		out = putBytes(out, b)
	}
	return out
}

// DecodeUpdates parses a FastUpdates body back into its change blocks.
func DecodeUpdates(body []byte) ([][]byte, error) {
	var blocks [][]byte
	for len(body) > 0 {
		b, n, err := readBytes(body)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
		body = body[n:]
	}
	return blocks, nil
}
