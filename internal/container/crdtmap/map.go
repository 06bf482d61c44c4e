// Package crdtmap implements the Map container of spec.md §4.3.3:
// last-writer-wins per key, tombstones retained for convergence.
//
// Grounded directly on the teacher's internal/resolver/crdt_resolver.go
// ApplyOperation/mergeDocuments: "merge non-conflicting fields, LWW on
// conflicting ones" generalized from whole-document payload merge to
// per-key entries carrying an explicit (lamport, peer) stamp instead of
// the teacher's (timestamp, peer id) pair.
package crdtmap

import "github.com/loro-dev/loro/internal/container/crdtcommon"

// entry is one key's current LWW record. Deleted entries keep Value=nil but
// remain in the map so a later concurrent write can still be compared
// against their stamp (spec.md: "retained for convergence").
type entry struct {
	value   any
	stamp   crdtcommon.Stamp
	deleted bool
}

// Map is the in-memory state of a Map container. apply_local and integrate
// share the same Set/Delete entry points; the distinction (local vs remote)
// lives in how the caller obtains the Stamp (current vs imported lamport).
type Map struct {
	entries map[string]*entry
}

func New() *Map {
	return &Map{entries: make(map[string]*entry)}
}

// Set applies a write to key under stamp, keeping whichever of the
// existing and incoming values wins the (lamport desc, peer desc) compare.
// Returns true if this write became (or stayed) the visible value.
func (m *Map) Set(key string, value any, stamp crdtcommon.Stamp) bool {
	cur, ok := m.entries[key]
	if !ok || crdtcommon.Wins(stamp, cur.stamp) {
		m.entries[key] = &entry{value: value, stamp: stamp}
		return true
	}
	return false
}

// Delete tombstones key under stamp following the same LWW compare as Set;
// per spec.md, delete is represented as a Null value, not entry removal.
func (m *Map) Delete(key string, stamp crdtcommon.Stamp) bool {
	cur, ok := m.entries[key]
	if !ok || crdtcommon.Wins(stamp, cur.stamp) {
		m.entries[key] = &entry{stamp: stamp, deleted: true}
		return true
	}
	return false
}

// Get returns the visible value for key, or (nil, false) if absent or
// tombstoned.
func (m *Map) Get(key string) (any, bool) {
	e, ok := m.entries[key]
	if !ok || e.deleted {
		return nil, false
	}
	return e.value, true
}

// Keys returns the currently-visible (non-tombstoned) keys, unordered.
func (m *Map) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		if !e.deleted {
			keys = append(keys, k)
		}
	}
	return keys
}

// Len returns the number of visible keys.
func (m *Map) Len() int { return len(m.Keys()) }

// ToMap materializes the visible key/value pairs as a plain map, matching
// the teacher's ToRegular conversion shape.
func (m *Map) ToMap() map[string]any {
	out := make(map[string]any, len(m.entries))
	for k, e := range m.entries {
		if !e.deleted {
			out[k] = e.value
		}
	}
	return out
}
