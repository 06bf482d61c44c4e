package text

import (
	"errors"
	"testing"

	"github.com/loro-dev/loro/internal/config"
	"github.com/loro-dev/loro/internal/container/crdtcommon"
	"github.com/loro-dev/loro/internal/loroerr"
	"github.com/loro-dev/loro/internal/version"
)

func insertString(t *testing.T, tx *Text, s string, peer version.PeerID) []version.IdLp {
	t.Helper()
	var ids []version.IdLp
	for i, r := range []rune(s) {
		id := version.IdLp{Peer: peer, Lamport: version.Lamport(i + 1)}
		tx.InsertRune(i, id, crdtcommon.Stamp{Lamport: id.Lamport, Peer: peer}, r)
		ids = append(ids, id)
	}
	return ids
}

func TestInsertAndString(t *testing.T) {
	tx := New(nil, nil)
	insertString(t, tx, "abc", 1)
	if got := tx.String(); got != "abc" {
		t.Fatalf("got %q, want %q", got, "abc")
	}
}

func TestDeleteHidesRune(t *testing.T) {
	tx := New(nil, nil)
	ids := insertString(t, tx, "abc", 1)
	if err := tx.Delete(ids[1]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := tx.String(); got != "ac" {
		t.Fatalf("got %q, want %q", got, "ac")
	}
}

func TestMarkRejectsUnknownStyleWithoutDefault(t *testing.T) {
	tx := New(nil, nil)
	ids := insertString(t, tx, "abc", 1)
	err := tx.Mark("bold", true, crdtcommon.Stamp{Lamport: 1, Peer: 1}, ids[0], ids[2])
	if err == nil {
		t.Fatal("expected unknown style to fail")
	}
	if !errors.Is(err, loroerr.ErrUnknownStyle) {
		t.Fatalf("expected ErrUnknownStyle, got %v", err)
	}
}

func TestMarkAppliesRegisteredStyle(t *testing.T) {
	tx := New(map[string]config.StyleConfig{"bold": {Expand: config.ExpandNone}}, nil)
	ids := insertString(t, tx, "abcde", 1)
	if err := tx.Mark("bold", true, crdtcommon.Stamp{Lamport: 1, Peer: 1}, ids[1], ids[3]); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if styles := tx.StylesAt(1); styles["bold"] != true {
		t.Fatalf("expected rune at index 1 to be bold, got %v", styles)
	}
	if styles := tx.StylesAt(0); styles["bold"] == true {
		t.Fatalf("expected rune at index 0 to not be bold, got %v", styles)
	}
	if styles := tx.StylesAt(3); styles["bold"] == true {
		t.Fatalf("expected end anchor to be exclusive, got %v", styles)
	}
}

func TestMarkExpandRulesDecideBoundaryInsertion(t *testing.T) {
	tx := New(map[string]config.StyleConfig{
		"none":   {Expand: config.ExpandNone},
		"before": {Expand: config.ExpandBefore},
		"after":  {Expand: config.ExpandAfter},
		"both":   {Expand: config.ExpandBoth},
	}, nil)
	ids := insertString(t, tx, "abcde", 1)

	for _, key := range []string{"none", "before", "after", "both"} {
		if err := tx.Mark(key, true, crdtcommon.Stamp{Lamport: 1, Peer: 1}, ids[1], ids[3]); err != nil {
			t.Fatalf("Mark %s: %v", key, err)
		}
	}

	beforeBoundary := tx.StylesAt(0) // rune 'a', immediately before the range
	afterBoundary := tx.StylesAt(3)  // rune 'd', the range's exclusive end anchor

	if beforeBoundary["none"] == true || beforeBoundary["after"] == true {
		t.Fatalf("none/after should not expand before the range, got %v", beforeBoundary)
	}
	if beforeBoundary["before"] != true || beforeBoundary["both"] != true {
		t.Fatalf("before/both should expand to the rune immediately before start, got %v", beforeBoundary)
	}
	if afterBoundary["none"] == true || afterBoundary["before"] == true {
		t.Fatalf("none/before should not expand past the range, got %v", afterBoundary)
	}
	if afterBoundary["after"] != true || afterBoundary["both"] != true {
		t.Fatalf("after/both should expand to the rune immediately after the range, got %v", afterBoundary)
	}
}

func TestConcurrentMarksResolveByLamportDesc(t *testing.T) {
	tx := New(map[string]config.StyleConfig{"color": {Expand: config.ExpandNone}}, nil)
	ids := insertString(t, tx, "abcd", 1)

	_ = tx.Mark("color", "red", crdtcommon.Stamp{Lamport: 1, Peer: 5}, ids[0], ids[3])
	_ = tx.Mark("color", "blue", crdtcommon.Stamp{Lamport: 2, Peer: 1}, ids[0], ids[2])

	if got := tx.StylesAt(0)["color"]; got != "blue" {
		t.Fatalf("expected higher-lamport mark to win at index 0, got %v", got)
	}
	if got := tx.StylesAt(2)["color"]; got != "red" {
		t.Fatalf("expected original mark to remain outside the overlap, got %v", got)
	}
}

func TestCursorResolveDriftsOnDeletedAnchor(t *testing.T) {
	tx := New(nil, nil)
	ids := insertString(t, tx, "abc", 1)
	_ = tx.Delete(ids[1])

	resolved := tx.Resolve(Cursor{ID: ids[1], Side: SideAt})
	if !resolved.Updated {
		t.Fatal("expected cursor on deleted rune to report drift")
	}
	if resolved.Update != ids[0] {
		t.Fatalf("expected drift to nearest live predecessor %v, got %v", ids[0], resolved.Update)
	}
}

func TestToUnitConversions(t *testing.T) {
	tx := New(nil, nil)
	insertString(t, tx, "a\U0001F600b", 1) // a, emoji (2 UTF-16 units, 4 UTF-8 bytes), b
	if got := tx.ToUnit(3, UnitUnicode); got != 3 {
		t.Fatalf("unicode passthrough: got %d", got)
	}
	if got := tx.ToUnit(3, UnitUTF16); got != 4 {
		t.Fatalf("utf16 offset: got %d, want 4", got)
	}
	if got := tx.ToUnit(3, UnitUTF8); got != 6 {
		t.Fatalf("utf8 offset: got %d, want 6", got)
	}
}
