package undo

import (
	"testing"
	"time"

	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/diff"
	"github.com/loro-dev/loro/internal/version"
)

type fakeApplier struct {
	applied   []diff.Diff
	frontiers version.Frontiers
}

func (f *fakeApplier) ApplyLocal(target cid.ContainerID, d diff.Diff, origin string) error {
	f.applied = append(f.applied, d)
	return nil
}
func (f *fakeApplier) CurrentFrontiers() version.Frontiers { return f.frontiers }

type fakeRecomputer struct{ calls int }

func (r *fakeRecomputer) RecomputeInverse(target cid.ContainerID, from, to version.Frontiers) (diff.Diff, error) {
	r.calls++
	return diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{{Retain: 0}}}, nil
}

var textC = cid.Root("doc", cid.KindText)

func TestUndoAppliesInverseAndPushesRedo(t *testing.T) {
	app := &fakeApplier{}
	m := NewManager(app, &fakeRecomputer{}, time.Second, nil, 0)

	forward := map[cid.ContainerID]diff.Diff{textC: {Kind: diff.KindText, Text: []diff.TextOp{{Insert: "hi"}}}}
	inverse := map[cid.ContainerID]diff.Diff{textC: {Kind: diff.KindText, Text: []diff.TextOp{{Delete: 2}}}}
	m.TrackLocalCommit(version.IdSpan{Peer: 1, Start: 0, Length: 2}, forward, inverse, nil, "", 1000)

	if !m.CanUndo() {
		t.Fatal("expected CanUndo")
	}
	ok, err := m.Undo()
	if err != nil || !ok {
		t.Fatalf("Undo: ok=%v err=%v", ok, err)
	}
	if len(app.applied) != 1 {
		t.Fatalf("expected 1 applied diff, got %d", len(app.applied))
	}
	if !m.CanRedo() {
		t.Fatal("expected CanRedo after undo")
	}
	if m.CanUndo() {
		t.Fatal("expected undo stack empty after popping its only item")
	}
}

func TestLocalCommitsWithinMergeIntervalCombineIntoOneItem(t *testing.T) {
	app := &fakeApplier{}
	m := NewManager(app, &fakeRecomputer{}, time.Second, nil, 0)

	m.TrackLocalCommit(version.IdSpan{Peer: 1, Start: 0, Length: 1},
		map[cid.ContainerID]diff.Diff{textC: {Kind: diff.KindText, Text: []diff.TextOp{{Insert: "a"}}}},
		map[cid.ContainerID]diff.Diff{textC: {Kind: diff.KindText, Text: []diff.TextOp{{Delete: 1}}}},
		nil, "", 1000)
	m.TrackLocalCommit(version.IdSpan{Peer: 1, Start: 1, Length: 1},
		map[cid.ContainerID]diff.Diff{textC: {Kind: diff.KindText, Text: []diff.TextOp{{Retain: 1}, {Insert: "b"}}}},
		map[cid.ContainerID]diff.Diff{textC: {Kind: diff.KindText, Text: []diff.TextOp{{Retain: 1}, {Delete: 1}}}},
		nil, "", 1200)

	if len(m.undoStack) != 1 {
		t.Fatalf("expected merged stack of 1 item, got %d", len(m.undoStack))
	}
	if m.undoStack[0].IDSpan.Length != 2 {
		t.Fatalf("expected merged span length 2, got %d", m.undoStack[0].IDSpan.Length)
	}
}

func TestExcludedOriginDoesNotPushButIsLoggedForTransform(t *testing.T) {
	app := &fakeApplier{}
	m := NewManager(app, &fakeRecomputer{}, time.Second, []string{"sync:"}, 0)

	m.TrackLocalCommit(version.IdSpan{Peer: 2, Start: 0, Length: 1},
		map[cid.ContainerID]diff.Diff{textC: {Kind: diff.KindText, Text: []diff.TextOp{{Insert: "x"}}}},
		map[cid.ContainerID]diff.Diff{textC: {Kind: diff.KindText, Text: []diff.TextOp{{Delete: 1}}}},
		nil, "sync:remote", 1000)

	if m.CanUndo() {
		t.Fatal("expected excluded-origin commit not to be pushed onto the undo stack")
	}
	if len(m.log) != 1 {
		t.Fatalf("expected excluded commit still logged for future transforms, got %d entries", len(m.log))
	}
}

func TestAmbiguousOverlapFallsBackToRecompute(t *testing.T) {
	app := &fakeApplier{}
	rec := &fakeRecomputer{}
	m := NewManager(app, rec, time.Second, nil, 0)

	m.TrackLocalCommit(version.IdSpan{Peer: 1, Start: 0, Length: 1},
		map[cid.ContainerID]diff.Diff{textC: {Kind: diff.KindText, Text: []diff.TextOp{{Insert: "xyz"}}}},
		map[cid.ContainerID]diff.Diff{textC: {Kind: diff.KindText, Text: []diff.TextOp{{Delete: 3}}}},
		nil, "", 1000)

	// Someone else deletes an overlapping range since this commit.
	m.TrackRemoteImport(map[cid.ContainerID]diff.Diff{
		textC: {Kind: diff.KindText, Text: []diff.TextOp{{Delete: 2}}},
	})

	ok, err := m.Undo()
	if err != nil || !ok {
		t.Fatalf("Undo: ok=%v err=%v", ok, err)
	}
	if rec.calls != 1 {
		t.Fatalf("expected recompute fallback to be invoked once, got %d", rec.calls)
	}
}
