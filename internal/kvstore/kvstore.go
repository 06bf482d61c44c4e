// Package kvstore implements the SSTable-like block store of spec.md §6.4:
// sorted KV entries grouped into ~4KiB blocks, each optionally compressed
// with the raw LZ4 block format (lz4.CompressBlock; not the LZ4 Frame
// format) and guarded by a seeded xxHash32 checksum, with a trailing
// block-meta index enabling O(log n) point lookups.
//
// No teacher package persists data this way (it writes one JSON file per
// document, see the retired internal/storage/storage.go); the interface
// shape is grounded on other_examples' yndnr-tokmesh-go KVEngine
// (Get/Set/Scan/SaveSnapshot/LoadSnapshot), adapted from a pluggable-backend
// interface to the concrete single-file layout the spec mandates.
package kvstore

import (
	"encoding/binary"
	"sort"

	"github.com/OneOfOne/xxhash"
	"github.com/pierrec/lz4/v4"

	"github.com/loro-dev/loro/internal/loroerr"
)

const (
	MagicSSTable   = "LORO"
	SchemaVersion  = 0
	XXHSeed        = 0x4F524F4C
	DefaultMaxSize = 4096

	flagLargeValue  = 0x80
	flagCompression = 0x7F
	compressNone    = 0
	compressLZ4     = 1
)

func checksum(b []byte) uint32 {
	return xxhash.ChecksumS32(b, XXHSeed)
}

// entry is one in-memory KV pair pending a Build() call.
type entry struct {
	key, value []byte
}

// Writer accumulates KV entries (which MUST be Put in ascending key order,
// matching an SSTable's sorted-run invariant) and Builds the on-disk bytes.
type Writer struct {
	entries    []entry
	maxSize    int
	lastKey    []byte
	hasLastKey bool
}

func NewWriter(maxBlockSize int) *Writer {
	if maxBlockSize <= 0 {
		maxBlockSize = DefaultMaxSize
	}
	return &Writer{maxSize: maxBlockSize}
}

// Put appends a key-value pair. Keys must be strictly increasing.
func (w *Writer) Put(key, value []byte) error {
	if w.hasLastKey && compareBytes(key, w.lastKey) <= 0 {
		return errOutOfOrder
	}
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	w.entries = append(w.entries, entry{key: k, value: v})
	w.lastKey = k
	w.hasLastKey = true
	return nil
}

type blockMeta struct {
	offset     uint32
	firstKey   []byte
	lastKey    []byte
	flags      uint8
	hasLastKey bool
}

// Build emits the full SSTable file bytes.
func (w *Writer) Build() []byte {
	var body []byte
	var metas []blockMeta

	i := 0
	for i < len(w.entries) {
		// A value large enough on its own gets a dedicated "large" block.
		if len(w.entries[i].value) > w.maxSize {
			e := w.entries[i]
			offset := uint32(len(body))
			raw := e.value
			chunk, flags := maybeCompress(raw)
			flags |= flagLargeValue
			body = append(body, chunk...)
			metas = append(metas, blockMeta{offset: offset, firstKey: e.key, flags: flags})
			i++
			continue
		}

		j := i
		size := 0
		var blockEntries []entry
		for j < len(w.entries) {
			e := w.entries[j]
			if len(e.value) > w.maxSize {
				break
			}
			add := len(e.key) + len(e.value) + 8
			if size+add > w.maxSize && len(blockEntries) > 0 {
				break
			}
			blockEntries = append(blockEntries, e)
			size += add
			j++
		}

		raw := buildNormalBlock(blockEntries)
		offset := uint32(len(body))
		chunk, flags := maybeCompress(raw)
		body = append(body, chunk...)
		metas = append(metas, blockMeta{
			offset:     offset,
			firstKey:   blockEntries[0].key,
			lastKey:    blockEntries[len(blockEntries)-1].key,
			flags:      flags,
			hasLastKey: true,
		})
		i = j
	}

	out := make([]byte, 0, len(body)+256)
	out = append(out, MagicSSTable...)
	out = append(out, SchemaVersion)
	out = append(out, body...)

	metaStart := len(out)
	out = appendU32(out, uint32(len(metas)))
	for _, m := range metas {
		out = appendU32(out, m.offset)
		out = appendU16(out, uint16(len(m.firstKey)))
		out = append(out, m.firstKey...)
		out = append(out, m.flags)
		if m.hasLastKey {
			out = appendU16(out, uint16(len(m.lastKey)))
			out = append(out, m.lastKey...)
		}
	}
	metaChecksum := checksum(out[metaStart:])
	out = appendU32(out, metaChecksum)

	out = appendU32(out, uint32(metaStart))
	return out
}

func maybeCompress(raw []byte) ([]byte, uint8) {
	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))
	var c lz4.Compressor
	n, err := c.CompressBlock(raw, compressed)
	if err != nil || n == 0 || n >= len(raw) {
		return raw, compressNone
	}
	return compressed[:n], compressLZ4
}

func buildNormalBlock(entries []entry) []byte {
	var body []byte
	offsets := make([]uint16, 0, len(entries))
	var prevKey []byte
	for _, e := range entries {
		offsets = append(offsets, uint16(len(body)))
		cpl := commonPrefixLen(prevKey, e.key)
		body = appendUvarint(body, uint64(cpl))
		suffix := e.key[cpl:]
		body = appendUvarint(body, uint64(len(suffix)))
		body = append(body, suffix...)
		body = appendUvarint(body, uint64(len(e.value)))
		body = append(body, e.value...)
		prevKey = e.key
	}
	for _, off := range offsets {
		body = appendU16(body, off)
	}
	body = appendU16(body, uint16(len(entries)))
	body = appendU32(body, checksum(body))
	return body
}

// Reader parses the bytes Writer.Build produced and supports point lookup
// and full forward iteration.
type Reader struct {
	data  []byte
	metas []readerBlockMeta
}

type readerBlockMeta struct {
	start, end int // byte range within data, of the (possibly compressed) block chunk
	firstKey   []byte
	lastKey    []byte
	hasLastKey bool
	flags      uint8
}

func Open(data []byte) (*Reader, error) {
	if len(data) < len(MagicSSTable)+1+4 {
		return nil, loroerr.ErrTruncated
	}
	if string(data[:len(MagicSSTable)]) != MagicSSTable {
		return nil, loroerr.ErrBadMagic
	}
	// schema version byte at data[4], currently unchecked beyond presence.

	metaOffset := binary.LittleEndian.Uint32(data[len(data)-4:])
	if int(metaOffset) > len(data)-4 {
		return nil, loroerr.ErrTruncated
	}
	metaSection := data[metaOffset : len(data)-4]
	if len(metaSection) < 8 {
		return nil, loroerr.ErrTruncated
	}
	storedChecksum := binary.LittleEndian.Uint32(metaSection[len(metaSection)-4:])
	metaBody := metaSection[:len(metaSection)-4]
	if checksum(metaBody) != storedChecksum {
		return nil, loroerr.ErrChecksumMismatch
	}

	r := &Reader{data: data}
	buf := metaBody
	count := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]

	type partial struct {
		offset            uint32
		firstKey, lastKey []byte
		flags             uint8
		hasLastKey        bool
	}
	var partials []partial
	for i := uint32(0); i < count; i++ {
		offset := binary.LittleEndian.Uint32(buf[:4])
		buf = buf[4:]
		fkLen := binary.LittleEndian.Uint16(buf[:2])
		buf = buf[2:]
		firstKey := buf[:fkLen]
		buf = buf[fkLen:]
		flags := buf[0]
		buf = buf[1:]
		p := partial{offset: offset, firstKey: firstKey, flags: flags}
		if flags&flagLargeValue == 0 {
			lkLen := binary.LittleEndian.Uint16(buf[:2])
			buf = buf[2:]
			lastKey := buf[:lkLen]
			buf = buf[lkLen:]
			p.lastKey = lastKey
			p.hasLastKey = true
		}
		partials = append(partials, p)
	}

	bodyEnd := int(metaOffset)
	for i, p := range partials {
		end := bodyEnd
		if i+1 < len(partials) {
			end = len(MagicSSTable) + 1 + int(partials[i+1].offset)
		}
		start := len(MagicSSTable) + 1 + int(p.offset)
		r.metas = append(r.metas, readerBlockMeta{
			start: start, end: end,
			firstKey: p.firstKey, lastKey: p.lastKey,
			hasLastKey: p.hasLastKey, flags: p.flags,
		})
	}
	return r, nil
}

func (r *Reader) decompressBlock(m readerBlockMeta) ([]byte, error) {
	raw := r.data[m.start:m.end]
	comp := m.flags & flagCompression
	if comp == compressNone {
		return raw, nil
	}
	if comp == compressLZ4 {
		// We don't persist the uncompressed size explicitly; grow a buffer
		// until decompression succeeds, doubling each time.
		size := len(raw) * 4
		if size < 256 {
			size = 256
		}
		for attempt := 0; attempt < 20; attempt++ {
			dst := make([]byte, size)
			n, err := lz4.UncompressBlock(raw, dst)
			if err == nil {
				return dst[:n], nil
			}
			size *= 2
		}
		return nil, loroerr.ErrTruncated
	}
	return nil, loroerr.ErrUnsupportedEncodeMode
}

// Get performs a point lookup, returning (value, true) if key is present.
func (r *Reader) Get(key []byte) ([]byte, bool, error) {
	idx := sort.Search(len(r.metas), func(i int) bool {
		return compareBytes(r.metas[i].firstKey, key) > 0
	}) - 1
	if idx < 0 {
		return nil, false, nil
	}
	m := r.metas[idx]
	if m.hasLastKey && compareBytes(key, m.lastKey) > 0 {
		return nil, false, nil
	}
	if !m.hasLastKey && compareBytes(key, m.firstKey) != 0 {
		return nil, false, nil
	}

	block, err := r.decompressBlock(m)
	if err != nil {
		return nil, false, err
	}
	if m.flags&flagLargeValue != 0 {
		return block, true, nil
	}
	return findInNormalBlock(block, key)
}

func findInNormalBlock(block []byte, key []byte) ([]byte, bool, error) {
	if len(block) < 6 {
		return nil, false, loroerr.ErrTruncated
	}
	storedChecksum := binary.LittleEndian.Uint32(block[len(block)-4:])
	if checksum(block[:len(block)-4]) != storedChecksum {
		return nil, false, loroerr.ErrChecksumMismatch
	}
	count := binary.LittleEndian.Uint16(block[len(block)-6 : len(block)-4])
	offsetsStart := len(block) - 6 - int(count)*2
	entriesBody := block[:offsetsStart]

	var prevKey []byte
	pos := 0
	for pos < len(entriesBody) {
		cpl, n := binary.Uvarint(entriesBody[pos:])
		pos += n
		suffixLen, n := binary.Uvarint(entriesBody[pos:])
		pos += n
		suffix := entriesBody[pos : pos+int(suffixLen)]
		pos += int(suffixLen)
		fullKey := append(append([]byte(nil), prevKey[:cpl]...), suffix...)
		valueLen, n := binary.Uvarint(entriesBody[pos:])
		pos += n
		value := entriesBody[pos : pos+int(valueLen)]
		pos += int(valueLen)

		if compareBytes(fullKey, key) == 0 {
			return value, true, nil
		}
		prevKey = fullKey
	}
	return nil, false, nil
}

// Iterate calls fn for every KV pair in ascending key order; fn returning
// false stops iteration early.
func (r *Reader) Iterate(fn func(key, value []byte) bool) error {
	for _, m := range r.metas {
		block, err := r.decompressBlock(m)
		if err != nil {
			return err
		}
		if m.flags&flagLargeValue != 0 {
			if !fn(m.firstKey, block) {
				return nil
			}
			continue
		}
		if len(block) < 6 {
			return loroerr.ErrTruncated
		}
		count := binary.LittleEndian.Uint16(block[len(block)-6 : len(block)-4])
		offsetsStart := len(block) - 6 - int(count)*2
		entriesBody := block[:offsetsStart]

		var prevKey []byte
		pos := 0
		for pos < len(entriesBody) {
			cpl, n := binary.Uvarint(entriesBody[pos:])
			pos += n
			suffixLen, n := binary.Uvarint(entriesBody[pos:])
			pos += n
			suffix := entriesBody[pos : pos+int(suffixLen)]
			pos += int(suffixLen)
			fullKey := append(append([]byte(nil), prevKey[:cpl]...), suffix...)
			valueLen, n := binary.Uvarint(entriesBody[pos:])
			pos += n
			value := entriesBody[pos : pos+int(valueLen)]
			pos += int(valueLen)

			if !fn(fullKey, value) {
				return nil
			}
			prevKey = fullKey
		}
	}
	return nil
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendUvarint(b []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(b, tmp[:n]...)
}

var errOutOfOrder = outOfOrderErr{}

type outOfOrderErr struct{}

func (outOfOrderErr) Error() string { return "kvstore: Put keys must be strictly increasing" }
