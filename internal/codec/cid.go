// Container-ID encoding: spec.md §6.6.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/version"
)

const rootFlag = 0x80

// EncodeContainerID writes id per §6.6: root is
// `0x80|kind || LEB128 name_len || name`; child is
// `kind || u64 peer LE || i32 counter LE`.
func EncodeContainerID(id cid.ContainerID) []byte {
	if id.IsRoot {
		out := []byte{rootFlag | byte(id.Kind)}
		return putBytes(out, []byte(id.Name))
	}
	out := make([]byte, 0, 1+8+4)
	out = append(out, byte(id.Kind))
	var peerBuf [8]byte
	binary.LittleEndian.PutUint64(peerBuf[:], id.CreatedBy.Peer)
	out = append(out, peerBuf[:]...)
	var counterBuf [4]byte
	binary.LittleEndian.PutUint32(counterBuf[:], uint32(id.CreatedBy.Counter))
	return append(out, counterBuf[:]...)
}

// DecodeContainerID parses a container ID, returning the number of bytes
// consumed.
func DecodeContainerID(buf []byte) (cid.ContainerID, int, error) {
	if len(buf) < 1 {
		return cid.ContainerID{}, 0, fmt.Errorf("codec: empty container id: %w", ErrTruncated)
	}
	tag := buf[0]
	if tag&rootFlag != 0 {
		kind := cid.Kind(tag &^ rootFlag)
		name, n, err := readBytes(buf[1:])
		if err != nil {
			return cid.ContainerID{}, 0, err
		}
		return cid.Root(string(name), kind), 1 + n, nil
	}
	if len(buf) < 1+8+4 {
		return cid.ContainerID{}, 0, fmt.Errorf("codec: truncated child container id: %w", ErrTruncated)
	}
	kind := cid.Kind(tag)
	peer := binary.LittleEndian.Uint64(buf[1:9])
	counter := int32(binary.LittleEndian.Uint32(buf[9:13]))
	return cid.Child(version.ID{Peer: peer, Counter: counter}, kind), 13, nil
}
