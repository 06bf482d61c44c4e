// Columnar RLE encoders backing the Change Block header/ops/cids columns
// (spec.md §6.5): BoolRle, AnyRle (generic run-length over comparable
// values), DeltaRle (run-length over consecutive deltas), DeltaOfDelta
// (run-length over second-order deltas, best for near-linear sequences
// like lamport/timestamp columns), and Rle[T] (plain run-length).
package codec

// runLengths groups consecutive equal values in vs into (value, count)
// pairs.
func runLengths[T comparable](vs []T) []struct {
	Value T
	Count int
} {
	var out []struct {
		Value T
		Count int
	}
	for _, v := range vs {
		if len(out) > 0 && out[len(out)-1].Value == v {
			out[len(out)-1].Count++
			continue
		}
		out = append(out, struct {
			Value T
			Count int
		}{v, 1})
	}
	return out
}

// EncodeBoolRle run-length encodes a bool column as alternating run
// lengths, starting with the count of the first value (itself encoded as
// a leading bool byte so a column can start with either value).
func EncodeBoolRle(vs []bool) []byte {
	var out []byte
	if len(vs) == 0 {
		return out
	}
	first := vs[0]
	if first {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	runs := runLengths(vs)
	out = putUvarint(out, uint64(len(runs)))
	for _, r := range runs {
		out = putUvarint(out, uint64(r.Count))
	}
	return out
}

// DecodeBoolRle reverses EncodeBoolRle, given the expected element count.
func DecodeBoolRle(buf []byte, count int) ([]bool, int, error) {
	if count == 0 {
		return nil, 0, nil
	}
	if len(buf) < 1 {
		return nil, 0, ErrTruncated
	}
	cur := buf[0] != 0
	off := 1
	nRuns, n, err := readUvarint(buf[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	out := make([]bool, 0, count)
	for i := uint64(0); i < nRuns; i++ {
		runLen, n, err := readUvarint(buf[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
		for j := uint64(0); j < runLen; j++ {
			out = append(out, cur)
		}
		cur = !cur
	}
	return out, off, nil
}

// EncodeAnyRle run-length encodes an arbitrary uint64 column: each run is
// (count, value).
func EncodeAnyRle(vs []uint64) []byte {
	runs := runLengths(vs)
	var out []byte
	out = putUvarint(out, uint64(len(runs)))
	for _, r := range runs {
		out = putUvarint(out, uint64(r.Count))
		out = putUvarint(out, r.Value)
	}
	return out
}

func DecodeAnyRle(buf []byte) ([]uint64, int, error) {
	nRuns, off, err := readUvarint(buf)
	if err != nil {
		return nil, 0, err
	}
	var out []uint64
	for i := uint64(0); i < nRuns; i++ {
		runLen, n, err := readUvarint(buf[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
		val, n, err := readUvarint(buf[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
		for j := uint64(0); j < runLen; j++ {
			out = append(out, val)
		}
	}
	return out, off, nil
}

func zigzag(v int64) uint64  { return uint64((v << 1) ^ (v >> 63)) }
func unzigzag(v uint64) int64 { return int64(v>>1) ^ -int64(v&1) }

// EncodeDeltaRle run-length encodes the first-order deltas between
// consecutive elements of vs (zigzag-coded so negative deltas stay
// compact), ideal for monotonic or near-monotonic i32/u32 columns like
// container_idx and prop.
func EncodeDeltaRle(vs []int64) []byte {
	if len(vs) == 0 {
		return []byte{0}
	}
	deltas := make([]uint64, len(vs))
	deltas[0] = zigzag(vs[0])
	for i := 1; i < len(vs); i++ {
		deltas[i] = zigzag(vs[i] - vs[i-1])
	}
	var out []byte
	out = putUvarint(out, uint64(len(vs)))
	out = append(out, EncodeAnyRle(deltas)...)
	return out
}

func DecodeDeltaRle(buf []byte) ([]int64, int, error) {
	count, off, err := readUvarint(buf)
	if err != nil {
		return nil, 0, err
	}
	if count == 0 {
		return nil, off, nil
	}
	deltas, n, err := DecodeAnyRle(buf[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	out := make([]int64, count)
	out[0] = unzigzag(deltas[0])
	for i := 1; i < int(count); i++ {
		out[i] = out[i-1] + unzigzag(deltas[i])
	}
	return out, off, nil
}

// EncodeDeltaOfDelta run-length encodes second-order deltas, matching
// spec.md §6.5's choice for the lamport and timestamp columns (near-linear
// sequences compress to almost entirely zero second-order deltas).
func EncodeDeltaOfDelta(vs []int64) []byte {
	if len(vs) == 0 {
		return []byte{0}
	}
	firstDeltas := make([]int64, len(vs))
	firstDeltas[0] = vs[0]
	for i := 1; i < len(vs); i++ {
		firstDeltas[i] = vs[i] - vs[i-1]
	}
	secondDeltas := make([]int64, len(firstDeltas))
	secondDeltas[0] = firstDeltas[0]
	for i := 1; i < len(firstDeltas); i++ {
		secondDeltas[i] = firstDeltas[i] - firstDeltas[i-1]
	}
	zz := make([]uint64, len(secondDeltas))
	for i, d := range secondDeltas {
		zz[i] = zigzag(d)
	}
	var out []byte
	out = putUvarint(out, uint64(len(vs)))
	out = append(out, EncodeAnyRle(zz)...)
	return out
}

func DecodeDeltaOfDelta(buf []byte) ([]int64, int, error) {
	count, off, err := readUvarint(buf)
	if err != nil {
		return nil, 0, err
	}
	if count == 0 {
		return nil, off, nil
	}
	zz, n, err := DecodeAnyRle(buf[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	secondDeltas := make([]int64, count)
	for i, z := range zz {
		secondDeltas[i] = unzigzag(z)
	}
	firstDeltas := make([]int64, count)
	firstDeltas[0] = secondDeltas[0]
	for i := 1; i < int(count); i++ {
		firstDeltas[i] = firstDeltas[i-1] + secondDeltas[i]
	}
	out := make([]int64, count)
	out[0] = firstDeltas[0]
	for i := 1; i < int(count); i++ {
		out[i] = out[i-1] + firstDeltas[i]
	}
	return out, off, nil
}

// EncodeByteRle run-length encodes a raw byte column (used for
// value_type/u8 kind columns).
func EncodeByteRle(vs []byte) []byte {
	u64s := make([]uint64, len(vs))
	for i, v := range vs {
		u64s[i] = uint64(v)
	}
	return EncodeAnyRle(u64s)
}

func DecodeByteRle(buf []byte) ([]byte, int, error) {
	u64s, n, err := DecodeAnyRle(buf)
	if err != nil {
		return nil, 0, err
	}
	out := make([]byte, len(u64s))
	for i, v := range u64s {
		out[i] = byte(v)
	}
	return out, n, nil
}
