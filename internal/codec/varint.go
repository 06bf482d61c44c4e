// Package codec implements the binary wire formats of spec.md §6: the
// outer frame (§6.1), FastSnapshot/FastUpdates bodies (§6.2/§6.3), the
// Change Block envelope (§6.5), container-ID encoding (§6.6), and the
// columnar RLE encoders §6.5's header/ops/cids columns are built from.
//
// The teacher persists JSON files directly (internal/storage/storage.go)
// and has no binary framing of its own, so this package has no teacher
// analog to adapt; it is built directly from spec.md's byte layouts.
// "Postcard" is a Rust-specific wire format with no Go ecosystem
// equivalent in the retrieval pack, so the envelope here is a Go-native
// length-prefixed encoding carrying the same named fields rather than a
// byte-for-byte postcard reimplementation — the one place this module
// goes to the standard library by necessity (encoding/binary's varint),
// not by default.
package codec

import "encoding/binary"

// putUvarint appends the LEB128 encoding of v to buf. encoding/binary's
// Uvarint already implements the same base-128 continuation-bit scheme as
// LEB128, so no hand-rolled varint is needed here.
func putUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// readUvarint decodes a LEB128 varint from buf, returning the value and
// the number of bytes consumed.
func readUvarint(buf []byte) (uint64, int, error) {
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, 0, ErrTruncated
	}
	return v, n, nil
}

func putBytes(buf []byte, b []byte) []byte {
	buf = putUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

func readBytes(buf []byte) ([]byte, int, error) {
	l, n, err := readUvarint(buf)
	if err != nil {
		return nil, 0, err
	}
	if n+int(l) > len(buf) {
		return nil, 0, ErrTruncated
	}
	return buf[n : n+int(l)], n + int(l), nil
}
