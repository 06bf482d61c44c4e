// Package text implements the Text container of spec.md §4.3.1: a
// Fugue-ordered rope of runes plus a style-mark registry.
//
// Character ordering reuses internal/container/list's Fugue integration
// (the spec explicitly notes list and text share the same ordering rule).
// Style marks are new relative to the teacher (no rich-text concept exists
// in knirvbase); the (lamport desc, peer desc) winner-on-intersection rule
// reuses crdtcommon.Wins, the same helper list/crdtmap use.
package text

import (
	"fmt"

	"github.com/loro-dev/loro/internal/config"
	"github.com/loro-dev/loro/internal/container/crdtcommon"
	"github.com/loro-dev/loro/internal/container/list"
	"github.com/loro-dev/loro/internal/loroerr"
	"github.com/loro-dev/loro/internal/version"
)

// mark is one applied style span. Start/End identify the rune elements the
// mark's anchors are attached to; the two expand flags, taken from the
// style's expand rule, decide whether a rune exactly at either boundary is
// covered.
type mark struct {
	key              string
	value            any // nil value = style removal
	stamp            crdtcommon.Stamp
	start, end       version.IdLp
	expandBeforeFlag bool
	expandAfterFlag  bool
}

// Text is the in-memory state of a Text container.
type Text struct {
	runes  *list.List
	marks  []mark
	styles map[string]config.StyleConfig
	defSty *config.StyleConfig
}

func New(styles map[string]config.StyleConfig, defaultStyle *config.StyleConfig) *Text {
	if styles == nil {
		styles = map[string]config.StyleConfig{}
	}
	return &Text{runes: list.New(), styles: styles, defSty: defaultStyle}
}

// InsertRune inserts a single rune at the given visible Unicode-scalar
// index, returning the new element's identity for style-anchor bookkeeping.
func (t *Text) InsertRune(visibleIndex int, id version.IdLp, stamp crdtcommon.Stamp, r rune) *list.Element {
	return t.runes.Insert(visibleIndex, id, stamp, r)
}

// IntegrateRune places a remotely-authored rune at its Fugue-ordered
// position relative to leftOrigin (nil meaning "new head"), for replay
// where the origin identity recorded on the op — not the replaying peer's
// local visible index — determines placement.
func (t *Text) IntegrateRune(id version.IdLp, leftOrigin *version.IdLp, stamp crdtcommon.Stamp, r rune) {
	t.runes.Integrate(&list.Element{ID: id, LeftOrigin: leftOrigin, Stamp: stamp, Value: r})
}

// Delete tombstones the rune identified by id.
func (t *Text) Delete(id version.IdLp) error {
	return t.runes.Delete(id)
}

// Mark applies a style key/value over the half-open rune range [startID,
// endID) (identified by element identity, not index, so concurrent edits
// elsewhere don't invalidate the anchors). Fails with ErrUnknownStyle
// unless key is registered or a document-wide default style exists.
func (t *Text) Mark(key string, value any, stamp crdtcommon.Stamp, start, end version.IdLp) error {
	sc, ok := t.styles[key]
	if !ok {
		if t.defSty == nil {
			return fmt.Errorf("text: style %q: %w", key, loroerr.ErrUnknownStyle)
		}
		sc = *t.defSty
	}
	t.marks = append(t.marks, mark{
		key: key, value: value, stamp: stamp, start: start, end: end,
		expandBeforeFlag: sc.Expand == config.ExpandBefore || sc.Expand == config.ExpandBoth,
		expandAfterFlag:  sc.Expand == config.ExpandAfter || sc.Expand == config.ExpandBoth,
	})
	return nil
}

// Unmark removes a style over a range: recorded as a mark with a nil value,
// matching spec.md's "mark with null value and ALIVE cleared removes the
// style on the intersection".
func (t *Text) Unmark(key string, stamp crdtcommon.Stamp, start, end version.IdLp) error {
	return t.Mark(key, nil, stamp, start, end)
}

// String returns the currently-visible text.
func (t *Text) String() string {
	vals := t.runes.Values()
	out := make([]rune, len(vals))
	for i, v := range vals {
		out[i] = v.(rune)
	}
	return string(out)
}

// Len returns the number of visible runes (Unicode scalar unit count).
func (t *Text) Len() int { return t.runes.Len() }

// IDAt returns the identity of the visible rune at index i, for callers
// (the public Document facade) that need to turn a visible-index delete
// request into the IdLp Delete expects.
func (t *Text) IDAt(i int) (version.IdLp, bool) {
	order := t.visibleOrder()
	if i < 0 || i >= len(order) {
		return version.IdLp{}, false
	}
	return order[i], true
}

// StylesAt returns the effective key->value styles active at visible rune
// index i, resolving overlapping concurrent marks by (lamport desc, peer
// desc) per spec.md §4.3.1.
func (t *Text) StylesAt(i int) map[string]any {
	order := t.visibleOrder()
	if i < 0 || i >= len(order) {
		return nil
	}
	target := order[i]

	winners := make(map[string]mark)
	for _, m := range t.marks {
		if !t.rangeCovers(m, target, order) {
			continue
		}
		cur, ok := winners[m.key]
		if !ok || crdtcommon.Wins(m.stamp, cur.stamp) {
			winners[m.key] = m
		}
	}

	out := map[string]any{}
	for k, m := range winners {
		if m.value != nil {
			out[k] = m.value
		}
	}
	return out
}

// visibleOrder returns the IDs of currently-visible runes in sequence
// order, used to resolve mark ranges into index membership.
func (t *Text) visibleOrder() []version.IdLp {
	return t.runes.IDs()
}

// rangeCovers reports whether target currently falls within m's marked
// range [start, end) — end exclusive, so m.end's own rune is never covered
// by the base range. Membership is decided by the anchors' current
// visible-index positions, not by m's original index arguments, so the
// range rides along with concurrent inserts/deletes elsewhere in the text.
// A rune inserted exactly adjacent to an anchor only joins the range if
// m's expand rule calls for it on that side (spec.md §4.3.1, §8 law 9):
// immediately before start joins under ExpandBefore/ExpandBoth, and
// immediately after the range (at the position end's rune now occupies)
// joins under ExpandAfter/ExpandBoth. ExpandNone covers neither side.
func (t *Text) rangeCovers(m mark, target version.IdLp, order []version.IdLp) bool {
	startIdx, startOK := indexOf(order, m.start)
	endIdx, endOK := indexOf(order, m.end)
	if !startOK || !endOK {
		return false
	}
	ti, ok := indexOf(order, target)
	if !ok {
		return false
	}
	if ti >= startIdx && ti < endIdx {
		return true
	}
	if m.expandBeforeFlag && ti == startIdx-1 {
		return true
	}
	if m.expandAfterFlag && ti == endIdx {
		return true
	}
	return false
}

func indexOf(order []version.IdLp, id version.IdLp) (int, bool) {
	for i, o := range order {
		if o == id {
			return i, true
		}
	}
	return -1, false
}
