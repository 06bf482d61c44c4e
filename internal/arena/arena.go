// Package arena implements the process-local deduplicating stores of
// spec.md §2/§4.1: interned strings (container names, map keys, style
// keys), interned container identifiers, and prefix-compressed fractional
// index positions.
//
// Grounded on the teacher's internal/storage/index.go IndexManager, which
// deduplicates by collection:name into a map guarded by a sync.RWMutex;
// arenas reuse that exact "map + RWMutex, lazily grown" shape for a
// different kind of dedup (strings/cids/positions instead of indexes).
package arena

import (
	"sort"
	"sync"

	"github.com/loro-dev/loro/internal/cid"
)

// StringArena interns strings (container names, map keys, style keys) to
// small dense indices so columnar encoders can store a DeltaRle<u32> index
// instead of repeating bytes (spec.md §6.5 "keys" column).
type StringArena struct {
	mu      sync.RWMutex
	byIndex []string
	byValue map[string]uint32
}

func NewStringArena() *StringArena {
	return &StringArena{byValue: make(map[string]uint32)}
}

// Intern returns the index for s, assigning a new one if s is unseen.
func (a *StringArena) Intern(s string) uint32 {
	a.mu.RLock()
	if idx, ok := a.byValue[s]; ok {
		a.mu.RUnlock()
		return idx
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if idx, ok := a.byValue[s]; ok {
		return idx
	}
	idx := uint32(len(a.byIndex))
	a.byIndex = append(a.byIndex, s)
	a.byValue[s] = idx
	return idx
}

func (a *StringArena) Lookup(idx uint32) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if int(idx) >= len(a.byIndex) {
		return "", false
	}
	return a.byIndex[idx], true
}

func (a *StringArena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.byIndex)
}

// All returns a snapshot of the interned strings in index order, used by
// the codec to serialize the whole table.
func (a *StringArena) All() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.byIndex))
	copy(out, a.byIndex)
	return out
}

// ContainerArena interns ContainerIDs, so ops can reference a container by
// a small index (spec.md §6.5 "cids" column) instead of repeating the full
// ContainerID encoding per op.
type ContainerArena struct {
	mu      sync.RWMutex
	byIndex []cid.ContainerID
	byValue map[cid.ContainerID]uint32
}

func NewContainerArena() *ContainerArena {
	return &ContainerArena{byValue: make(map[cid.ContainerID]uint32)}
}

func (a *ContainerArena) Intern(c cid.ContainerID) uint32 {
	a.mu.RLock()
	if idx, ok := a.byValue[c]; ok {
		a.mu.RUnlock()
		return idx
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if idx, ok := a.byValue[c]; ok {
		return idx
	}
	idx := uint32(len(a.byIndex))
	a.byIndex = append(a.byIndex, c)
	a.byValue[c] = idx
	return idx
}

func (a *ContainerArena) Lookup(idx uint32) (cid.ContainerID, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if int(idx) >= len(a.byIndex) {
		return cid.ContainerID{}, false
	}
	return a.byIndex[idx], true
}

func (a *ContainerArena) All() []cid.ContainerID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]cid.ContainerID, len(a.byIndex))
	copy(out, a.byIndex)
	return out
}

// PositionArena stores fractional-index byte strings (tree sibling order,
// spec.md §4.3.4) in a prefix-compressed arena: entries are kept sorted so
// adjacent entries usually share a long common prefix, and interning
// returns a handle rather than the raw bytes.
type PositionArena struct {
	mu      sync.Mutex
	entries [][]byte // sorted
}

func NewPositionArena() *PositionArena { return &PositionArena{} }

// Intern inserts pos (if unseen) keeping entries sorted, and returns its
// handle (current index in sorted order). Handles are NOT stable across
// further Intern calls that insert before them; callers that need a stable
// reference should keep the raw bytes (as returned by At) instead.
func (a *PositionArena) Intern(pos []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := sort.Search(len(a.entries), func(i int) bool {
		return compareBytes(a.entries[i], pos) >= 0
	})
	if i < len(a.entries) && compareBytes(a.entries[i], pos) == 0 {
		return i
	}
	a.entries = append(a.entries, nil)
	copy(a.entries[i+1:], a.entries[i:])
	cp := make([]byte, len(pos))
	copy(cp, pos)
	a.entries[i] = cp
	return i
}

func (a *PositionArena) At(i int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.entries) {
		return nil
	}
	return a.entries[i]
}

// Encode emits the arena as a prefix-compressed byte stream: for each entry
// in sorted order, a varint common-prefix length with the previous entry,
// then the suffix bytes, matching §6.5's "positions: prefix-compressed byte
// arena for fractional indices".
func (a *PositionArena) Encode() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	var buf []byte
	var prev []byte
	for _, e := range a.entries {
		cpl := commonPrefixLen(prev, e)
		buf = appendUvarint(buf, uint64(cpl))
		suffix := e[cpl:]
		buf = appendUvarint(buf, uint64(len(suffix)))
		buf = append(buf, suffix...)
		prev = e
	}
	return buf
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

func appendUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}
