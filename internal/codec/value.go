// Tagged value stream: spec.md §6.5, "values: tagged value stream, tag
// kinds 0..16 as specified; nested LoroValue has its own kind enum." Op
// payloads carry opaque `any` content (container values, map values,
// counter deltas), so this is the generic encoder every op-content
// encoder in change_block.go delegates to for that opaque part.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

const (
	valNull = iota
	valFalse
	valTrue
	valFloat64
	valInt64
	valString
	valBytes
	valList
	valMap
)

// encodeAnyValue encodes an arbitrary JSON-ish value (nil, bool, float64,
// int, string, []byte, []any, map[string]any) into the tagged stream.
func encodeAnyValue(v any) []byte {
	switch x := v.(type) {
	case nil:
		return []byte{valNull}
	case bool:
		if x {
			return []byte{valTrue}
		}
		return []byte{valFalse}
	case float64:
		var buf [9]byte
		buf[0] = valFloat64
		binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(x))
		return buf[:]
	case int:
		return encodeAnyValue(int64(x))
	case int32:
		return encodeAnyValue(int64(x))
	case int64:
		out := []byte{valInt64}
		return putUvarint(out, zigzag(x))
	case string:
		out := []byte{valString}
		return putBytes(out, []byte(x))
	case []byte:
		out := []byte{valBytes}
		return putBytes(out, x)
	case []any:
		out := []byte{valList}
		out = putUvarint(out, uint64(len(x)))
		for _, e := range x {
			out = putBytes(out, encodeAnyValue(e))
		}
		return out
	case map[string]any:
		out := []byte{valMap}
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out = putUvarint(out, uint64(len(keys)))
		for _, k := range keys {
			out = putBytes(out, []byte(k))
			out = putBytes(out, encodeAnyValue(x[k]))
		}
		return out
	default:
		// Fallback for container-internal types (e.g. rune already handled
		// by callers as string): best-effort string form.
		out := []byte{valString}
		return putBytes(out, []byte(fmt.Sprint(x)))
	}
}

func decodeAnyValue(buf []byte) (any, error) {
	if len(buf) == 0 {
		return nil, ErrTruncated
	}
	tag, rest := buf[0], buf[1:]
	switch tag {
	case valNull:
		return nil, nil
	case valFalse:
		return false, nil
	case valTrue:
		return true, nil
	case valFloat64:
		if len(rest) < 8 {
			return nil, ErrTruncated
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(rest)), nil
	case valInt64:
		zz, _, err := readUvarint(rest)
		if err != nil {
			return nil, err
		}
		return unzigzag(zz), nil
	case valString:
		b, _, err := readBytes(rest)
		return string(b), err
	case valBytes:
		b, _, err := readBytes(rest)
		return append([]byte(nil), b...), err
	case valList:
		count, off, err := readUvarint(rest)
		if err != nil {
			return nil, err
		}
		out := make([]any, count)
		for i := range out {
			elemBuf, n, err := readBytes(rest[off:])
			if err != nil {
				return nil, err
			}
			off += n
			elem, err := decodeAnyValue(elemBuf)
			if err != nil {
				return nil, err
			}
			out[i] = elem
		}
		return out, nil
	case valMap:
		count, off, err := readUvarint(rest)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, count)
		for i := uint64(0); i < count; i++ {
			k, n, err := readBytes(rest[off:])
			if err != nil {
				return nil, err
			}
			off += n
			vBuf, n, err := readBytes(rest[off:])
			if err != nil {
				return nil, err
			}
			off += n
			v, err := decodeAnyValue(vBuf)
			if err != nil {
				return nil, err
			}
			out[string(k)] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("codec: unknown value tag %d", tag)
	}
}
