// Package opcontent defines the concrete per-container-kind payload types
// carried in oplog.Op.Content. oplog itself stays payload-agnostic (an
// import cycle would otherwise form between oplog and the container
// packages), so this package is the single place that names every
// concrete op shape — pkg/loro constructs these when a container handle
// buffers a mutation into the active Transaction, internal/codec switches
// on them to build the Change Block's columnar ops/values streams, and
// each internal/container/* package's remote-apply path consumes them
// when integrating a Change from the OpLog.
package opcontent

import "github.com/loro-dev/loro/internal/version"

// TextInsert inserts a single rune at a Fugue position (internal/container/
// text.InsertRune). LeftOrigin is the identity of the rune this insert sits
// immediately after (nil means "new head"), captured at authoring time so
// remote peers integrate it by origin identity rather than by replaying
// the author's local visible index, which a concurrent edit could have
// since shifted.
type TextInsert struct {
	VisibleIndex int
	Rune         rune
	LeftOrigin   *version.IdLp
}

// TextDelete tombstones the rune identified by ID (internal/container/
// text.Delete).
type TextDelete struct {
	ID version.IdLp
}

// TextMark/TextUnmark apply or retract a Peritext-style style range
// (internal/container/text.Mark/Unmark). Start/End are filled in by the
// transaction builder from the current visible-order IDs at op-creation
// time.
type TextMark struct {
	Key        string
	Value      any
	Start, End version.IdLp
}

type TextUnmark struct {
	Key        string
	Start, End version.IdLp
}

// ListInsert/ListDelete mirror TextInsert/TextDelete for opaque-value
// lists (internal/container/list).
type ListInsert struct {
	VisibleIndex int
	Value        any
	LeftOrigin   *version.IdLp
}

type ListDelete struct {
	ID version.IdLp
}

// MovableListInsert/Move/Set mirror internal/container/movablelist's
// mutators; Move's LeftOriginPos is nil when the element becomes the new
// head.
type MovableListInsert struct {
	VisibleIndex int
	Value        any
	LeftOrigin   *version.IdLp
}

type MovableListMove struct {
	ElemID         version.IdLp
	LeftOriginPos  *version.IdLp
}

type MovableListSet struct {
	ElemID version.IdLp
	Value  any
}

// MapSet/MapDelete mirror internal/container/crdtmap.Set/Delete.
type MapSet struct {
	Key   string
	Value any
}

type MapDelete struct {
	Key string
}

// TreeCreate/TreeMove/TreeDelete mirror internal/container/tree's
// mutators. Frac is the fractional sibling index assigned at op-creation
// time (so remote peers integrating this op place the node identically).
type TreeCreate struct {
	Parent string
	Frac   []byte
}

type TreeMove struct {
	Target    string
	NewParent string
	Frac      []byte
}

type TreeDelete struct {
	Target string
	Frac   []byte
}

// CounterIncrement mirrors internal/container/counter.Add.
type CounterIncrement struct {
	Delta float64
}
