// Package diff defines the uniform delta types every container kind
// produces from integrate/apply_local (spec.md §4.3) and that event
// dispatch (§4.7) and undo (§4.6) consume.
//
// Grounded on the teacher's types.CRDTOperation/DistributedDocument, whose
// Type/Data/Payload fields already carry enough information to reconstruct
// a delta; pulled out here into its own type family (one variant per
// container kind) so containers, events, undo and the codec can share it
// without re-deriving op shape from raw state.
package diff

// Kind discriminates which container-specific delta a Diff carries.
type Kind uint8

const (
	KindText Kind = iota
	KindList
	KindMovableList
	KindMap
	KindTree
	KindCounter
)

// TextOp is one run in a Peritext-style rope delta: Retain, Insert (with
// optional attached styles), or Delete, matching the Quill-style delta
// convention the teacher's event shape was generalized toward.
type TextOp struct {
	Retain     int
	Insert     string
	Delete     int
	Attributes map[string]any
}

// ListOp mirrors TextOp for opaque-value lists.
type ListOp struct {
	Retain int
	Insert []any
	Delete int
}

// MapEntry describes one key's LWW change.
type MapEntry struct {
	Key     string
	Value   any // nil Value + Deleted=true means tombstoned
	Deleted bool
}

// TreeEdit describes one node create/move/delete.
type TreeEdit struct {
	Target   string // node id, string form
	Parent   string // new parent node id, "" if root, "deleted" pseudo-parent if deleted
	Index    int    // sibling position after the edit
	IsDelete bool
	IsCreate bool
}

// CounterOp is a single signed increment applied to the running sum.
type CounterOp struct {
	Increment float64
}

// Diff is a uniform container delta. Exactly one of the slices is non-nil,
// selected by Kind.
type Diff struct {
	Kind    Kind
	Text    []TextOp
	List    []ListOp
	Map     []MapEntry
	Tree    []TreeEdit
	Counter []CounterOp
}

// IsEmpty reports whether the diff carries no observable change.
func (d Diff) IsEmpty() bool {
	return len(d.Text) == 0 && len(d.List) == 0 && len(d.Map) == 0 &&
		len(d.Tree) == 0 && len(d.Counter) == 0
}
