package undo

import (
	"reflect"
	"testing"

	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/diff"
)

func TestTransformTextShiftsPastEarlierInsert(t *testing.T) {
	// base: delete 1 rune at position 5 (the undo diff recorded right after
	// the edit being undone). against: someone inserted 3 runes at position 0
	// since then, so the delete must now target position 8.
	base := []diff.TextOp{{Retain: 5}, {Delete: 1}}
	against := []diff.TextOp{{Insert: "abc"}}

	got, ambiguous := transformTextOps(base, against)
	if ambiguous {
		t.Fatal("expected unambiguous transform")
	}
	want := []diff.TextOp{{Retain: 8}, {Delete: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestTransformTextShrinksPastEarlierDeleteOfLaterRegion(t *testing.T) {
	// base deletes 2 runes at position 10; against deleted 4 runes at
	// position 0, entirely before base's target, so base's position shifts
	// left by 4 with no overlap.
	base := []diff.TextOp{{Retain: 10}, {Delete: 2}}
	against := []diff.TextOp{{Delete: 4}}

	got, ambiguous := transformTextOps(base, against)
	if ambiguous {
		t.Fatal("expected unambiguous transform")
	}
	want := []diff.TextOp{{Retain: 6}, {Delete: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestTransformTextOverlappingDeletesAreAmbiguous(t *testing.T) {
	base := []diff.TextOp{{Retain: 2}, {Delete: 3}} // deletes [2,5)
	against := []diff.TextOp{{Retain: 3}, {Delete: 3}} // deletes [3,6), overlaps [3,5)

	_, ambiguous := transformTextOps(base, against)
	if !ambiguous {
		t.Fatal("expected ambiguous transform for overlapping deletes")
	}
}

func TestTransformTextPreservesInsertedContent(t *testing.T) {
	base := []diff.TextOp{{Retain: 2}, {Insert: "xy"}}
	against := []diff.TextOp{{Insert: "ab"}}

	got, ambiguous := transformTextOps(base, against)
	if ambiguous {
		t.Fatal("expected unambiguous transform")
	}
	want := []diff.TextOp{{Retain: 4}, {Insert: "xy"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestTransformListShiftsPastEarlierInsert(t *testing.T) {
	base := []diff.ListOp{{Retain: 1}, {Delete: 1}}
	against := []diff.ListOp{{Insert: []any{"a", "b"}}}

	got, ambiguous := transformListOps(base, against)
	if ambiguous {
		t.Fatal("expected unambiguous transform")
	}
	want := []diff.ListOp{{Retain: 3}, {Delete: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestTransformMapDropsEntryTouchedSince(t *testing.T) {
	base := []diff.MapEntry{{Key: "a", Value: "old-a"}, {Key: "b", Value: "old-b"}}
	against := []diff.MapEntry{{Key: "a", Value: "someone-elses-write"}}

	got := transformMapOps(base, against)
	want := []diff.MapEntry{{Key: "b", Value: "old-b"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestTransformAgainstLogChainsMultipleEntries(t *testing.T) {
	base := diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{{Retain: 5}, {Delete: 1}}}
	target := cid.Root("text", cid.KindText)
	log := []loggedDiff{
		{target: target, d: diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{{Insert: "ab"}}}},
		{target: target, d: diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{{Insert: "cd"}}}},
	}
	got, ambiguous := transformAgainstLog(target, base, log)
	if ambiguous {
		t.Fatal("expected unambiguous transform")
	}
	want := []diff.TextOp{{Retain: 9}, {Delete: 1}}
	if !reflect.DeepEqual(got.Text, want) {
		t.Fatalf("got %+v, want %+v", got.Text, want)
	}
}
