package undo

import (
	"sort"

	"github.com/loro-dev/loro/internal/diff"
)

// posEdit is one insert-or-delete action at an absolute position in a
// shared coordinate space, the common representation transformTextOps/
// transformListOps reduce retain/insert/delete sequences to so that
// position shifting can be computed uniformly. payload carries the
// inserted content (string or []any) so it travels with its edit through
// reordering instead of needing a separately-indexed parallel slice.
type posEdit struct {
	pos     int
	del     int
	ins     int // inserted length (runes for text, elements for list)
	payload any
}

func flattenText(ops []diff.TextOp) []posEdit {
	pos := 0
	var out []posEdit
	for _, op := range ops {
		switch {
		case op.Insert != "":
			out = append(out, posEdit{pos: pos, ins: len([]rune(op.Insert)), payload: op.Insert})
		case op.Delete > 0:
			out = append(out, posEdit{pos: pos, del: op.Delete})
			pos += op.Delete
		default:
			pos += op.Retain
		}
	}
	return out
}

func flattenList(ops []diff.ListOp) []posEdit {
	pos := 0
	var out []posEdit
	for _, op := range ops {
		switch {
		case len(op.Insert) > 0:
			out = append(out, posEdit{pos: pos, ins: len(op.Insert), payload: op.Insert})
		case op.Delete > 0:
			out = append(out, posEdit{pos: pos, del: op.Delete})
			pos += op.Delete
		default:
			pos += op.Retain
		}
	}
	return out
}

// transformPos shifts each edit in base by the net effect of net's edits
// that precede it, reporting ambiguous when a base delete and a net delete
// cover any of the same original positions (spec.md §9's explicit
// ambiguous case: "overlapping deletes on the same region").
func transformPos(base, net []posEdit) (out []posEdit, ambiguous bool) {
	for _, b := range base {
		shift := 0
		for _, n := range net {
			if n.ins > 0 {
				if n.pos <= b.pos {
					shift += n.ins
				}
				continue
			}
			if n.del == 0 {
				continue
			}
			nEnd := n.pos + n.del
			if b.del > 0 {
				bEnd := b.pos + b.del
				if n.pos < bEnd && b.pos < nEnd {
					ambiguous = true
				}
			}
			switch {
			case nEnd <= b.pos:
				shift -= n.del
			case n.pos < b.pos:
				shift -= b.pos - n.pos
			}
		}
		nb := b
		nb.pos += shift
		if nb.pos < 0 {
			nb.pos = 0
		}
		out = append(out, nb)
	}
	return out, ambiguous
}

func unflattenText(edits []posEdit) []diff.TextOp {
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].pos < edits[j].pos })
	var out []diff.TextOp
	cursor := 0
	for _, e := range edits {
		if e.pos > cursor {
			out = append(out, diff.TextOp{Retain: e.pos - cursor})
			cursor = e.pos
		}
		if e.ins > 0 {
			out = append(out, diff.TextOp{Insert: e.payload.(string)})
		}
		if e.del > 0 {
			out = append(out, diff.TextOp{Delete: e.del})
			cursor += e.del
		}
	}
	return out
}

func unflattenList(edits []posEdit) []diff.ListOp {
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].pos < edits[j].pos })
	var out []diff.ListOp
	cursor := 0
	for _, e := range edits {
		if e.pos > cursor {
			out = append(out, diff.ListOp{Retain: e.pos - cursor})
			cursor = e.pos
		}
		if e.ins > 0 {
			out = append(out, diff.ListOp{Insert: e.payload.([]any)})
		}
		if e.del > 0 {
			out = append(out, diff.ListOp{Delete: e.del})
			cursor += e.del
		}
	}
	return out
}

// transformTextOps transforms a Peritext-style rope delta against another
// that has since been applied to the same text container.
func transformTextOps(base, against []diff.TextOp) ([]diff.TextOp, bool) {
	if len(against) == 0 {
		return base, false
	}
	transformed, ambiguous := transformPos(flattenText(base), flattenText(against))
	if ambiguous {
		return nil, true
	}
	return unflattenText(transformed), false
}

// transformListOps is transformTextOps's counterpart for opaque-value
// lists (and movable-lists, which share the same position-delta shape).
func transformListOps(base, against []diff.ListOp) ([]diff.ListOp, bool) {
	if len(against) == 0 {
		return base, false
	}
	transformed, ambiguous := transformPos(flattenList(base), flattenList(against))
	if ambiguous {
		return nil, true
	}
	return unflattenList(transformed), false
}

// transformMapOps drops any base entry whose key was touched by against
// (spec.md §4.6: "map key operations are dropped if the target key has been
// subsequently set; redo will restore").
func transformMapOps(base, against []diff.MapEntry) []diff.MapEntry {
	if len(against) == 0 {
		return base
	}
	touched := make(map[string]bool, len(against))
	for _, e := range against {
		touched[e.Key] = true
	}
	var out []diff.MapEntry
	for _, e := range base {
		if touched[e.Key] {
			continue
		}
		out = append(out, e)
	}
	return out
}
