package loro

import (
	"testing"
	"time"

	"github.com/loro-dev/loro/internal/config"
)

func newTestDoc(peer uint64) *Document {
	opts := config.Default()
	opts.PeerID = peer
	return New(opts)
}

func TestTextInsertDeleteAndCommit(t *testing.T) {
	d := newTestDoc(1)
	text, err := d.GetText("title")
	if err != nil {
		t.Fatalf("GetText: %v", err)
	}
	if err := text.InsertUTF8(0, "hello"); err != nil {
		t.Fatalf("InsertUTF8: %v", err)
	}
	if got := text.String(); got != "hello" {
		t.Fatalf("got %q, want hello", got)
	}
	if err := text.Delete(1, 3); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := text.String(); got != "ho" {
		t.Fatalf("got %q, want ho", got)
	}
	if _, err := d.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if d.GetPendingTxnLength() != 0 {
		t.Fatalf("pending txn should be empty after commit")
	}
}

func TestDuplicateRootNameDifferentKindRejected(t *testing.T) {
	d := newTestDoc(1)
	if _, err := d.GetText("shared"); err != nil {
		t.Fatalf("GetText: %v", err)
	}
	if _, err := d.GetMap("shared"); err == nil {
		t.Fatalf("expected ErrDuplicateContainerName, got nil")
	}
}

func TestMapSetDelete(t *testing.T) {
	d := newTestDoc(1)
	m, err := d.GetMap("meta")
	if err != nil {
		t.Fatalf("GetMap: %v", err)
	}
	if err := m.Set("author", "alice"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok := m.Get("author"); !ok || v != "alice" {
		t.Fatalf("got %v,%v want alice,true", v, ok)
	}
	if err := m.Delete("author"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := m.Get("author"); ok {
		t.Fatalf("expected key gone after Delete")
	}
}

func TestListInsertDelete(t *testing.T) {
	d := newTestDoc(1)
	l, err := d.GetList("items")
	if err != nil {
		t.Fatalf("GetList: %v", err)
	}
	if err := l.Insert(0, "a"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := l.Insert(1, "b"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := l.Insert(1, "c"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	want := []any{"a", "c", "b"}
	got := l.Values()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if err := l.Delete(0, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := l.Values(); len(got) != 2 || got[0] != "c" {
		t.Fatalf("got %v after delete", got)
	}
}

func TestCounterIncrement(t *testing.T) {
	d := newTestDoc(1)
	c, err := d.GetCounter("score")
	if err != nil {
		t.Fatalf("GetCounter: %v", err)
	}
	if err := c.Increment(3); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if err := c.Increment(-1.5); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if got := c.Value(); got != 1.5 {
		t.Fatalf("got %v, want 1.5", got)
	}
}

func TestTreeCreateMoveDelete(t *testing.T) {
	d := newTestDoc(1)
	tr, err := d.GetTree("outline")
	if err != nil {
		t.Fatalf("GetTree: %v", err)
	}
	root, err := tr.CreateNode("")
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	child, err := tr.CreateNode(root)
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	other, err := tr.CreateNode("")
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	if kids := tr.Children(root); len(kids) != 1 || kids[0] != child {
		t.Fatalf("got children %v, want [%s]", kids, child)
	}
	if err := tr.Move(child, other); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if kids := tr.Children(other); len(kids) != 1 || kids[0] != child {
		t.Fatalf("got children %v after move, want [%s]", kids, child)
	}
	if err := tr.Move(root, child); err == nil {
		t.Fatalf("expected ErrCyclicMove moving root under its own descendant")
	}
	if err := tr.Delete(child); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !tr.IsDeleted(child) {
		t.Fatalf("expected child deleted")
	}
}

func TestMovableListInsertMoveSet(t *testing.T) {
	d := newTestDoc(1)
	ml, err := d.GetMovableList("board")
	if err != nil {
		t.Fatalf("GetMovableList: %v", err)
	}
	if err := ml.Insert(0, "a"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := ml.Insert(1, "b"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := ml.Insert(2, "c"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := ml.Move(0, 3); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got := ml.Values()
	want := []any{"b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if err := ml.Set(0, "B"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := ml.Values(); got[0] != "B" {
		t.Fatalf("got %v, want B at index 0", got)
	}
}

func TestExportImportRoundTripFastUpdates(t *testing.T) {
	src := newTestDoc(1)
	text, err := src.GetText("title")
	if err != nil {
		t.Fatalf("GetText: %v", err)
	}
	if err := text.InsertUTF8(0, "hi"); err != nil {
		t.Fatalf("InsertUTF8: %v", err)
	}
	if _, err := src.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	blob, err := src.Export(EncodeFastUpdates)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := newTestDoc(2)
	if err := dst.Import(blob); err != nil {
		t.Fatalf("Import: %v", err)
	}
	dstText, err := dst.GetText("title")
	if err != nil {
		t.Fatalf("GetText on dst: %v", err)
	}
	if got := dstText.String(); got != "hi" {
		t.Fatalf("got %q after import, want hi", got)
	}
}

func TestExportImportRoundTripSnapshot(t *testing.T) {
	src := newTestDoc(1)
	m, err := src.GetMap("meta")
	if err != nil {
		t.Fatalf("GetMap: %v", err)
	}
	if err := m.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := src.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	blob, err := src.Export(EncodeFastSnapshot)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := newTestDoc(2)
	if err := dst.Import(blob); err != nil {
		t.Fatalf("Import: %v", err)
	}
	dstMap, err := dst.GetMap("meta")
	if err != nil {
		t.Fatalf("GetMap on dst: %v", err)
	}
	if v, ok := dstMap.Get("k"); !ok || v != "v" {
		t.Fatalf("got %v,%v want v,true", v, ok)
	}
}

func TestCheckoutRewindsAndReattach(t *testing.T) {
	d := newTestDoc(1)
	text, err := d.GetText("title")
	if err != nil {
		t.Fatalf("GetText: %v", err)
	}
	if err := text.InsertUTF8(0, "a"); err != nil {
		t.Fatalf("InsertUTF8: %v", err)
	}
	if _, err := d.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	mid := d.Frontiers()

	if err := text.InsertUTF8(1, "b"); err != nil {
		t.Fatalf("InsertUTF8: %v", err)
	}
	if _, err := d.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	head := d.Frontiers()

	if err := d.Checkout(mid); err != nil {
		t.Fatalf("Checkout(mid): %v", err)
	}
	text, err = d.GetText("title")
	if err != nil {
		t.Fatalf("GetText after checkout: %v", err)
	}
	if got := text.String(); got != "a" {
		t.Fatalf("got %q after checkout to mid, want a", got)
	}
	if err := text.InsertUTF8(0, "x"); err == nil {
		t.Fatalf("expected ErrDetachedEditNotAllowed while detached")
	}

	if err := d.Checkout(head); err != nil {
		t.Fatalf("Checkout(head): %v", err)
	}
	text, err = d.GetText("title")
	if err != nil {
		t.Fatalf("GetText after re-checkout: %v", err)
	}
	if got := text.String(); got != "ab" {
		t.Fatalf("got %q after checkout to head, want ab", got)
	}
	if err := text.InsertUTF8(2, "c"); err != nil {
		t.Fatalf("expected editing to be allowed back at head: %v", err)
	}
}

func TestUndoRedoTextAndMap(t *testing.T) {
	d := newTestDoc(1)
	d.EnableUndo(0, nil, 0)

	text, err := d.GetText("title")
	if err != nil {
		t.Fatalf("GetText: %v", err)
	}
	if err := text.InsertUTF8(0, "hello"); err != nil {
		t.Fatalf("InsertUTF8: %v", err)
	}
	if _, err := d.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	m, err := d.GetMap("meta")
	if err != nil {
		t.Fatalf("GetMap: %v", err)
	}
	if err := m.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := d.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if !d.CanUndo() {
		t.Fatalf("expected CanUndo after two commits")
	}

	if ok, err := d.Undo(); err != nil || !ok {
		t.Fatalf("Undo map set: ok=%v err=%v", ok, err)
	}
	if _, ok := m.Get("k"); ok {
		t.Fatalf("expected map key undone")
	}
	if got := text.String(); got != "hello" {
		t.Fatalf("got %q, want hello still present", got)
	}

	if ok, err := d.Undo(); err != nil || !ok {
		t.Fatalf("Undo text insert: ok=%v err=%v", ok, err)
	}
	if got := text.String(); got != "" {
		t.Fatalf("got %q after undoing insert, want empty", got)
	}
	if !d.CanRedo() {
		t.Fatalf("expected CanRedo after two undos")
	}

	if ok, err := d.Redo(); err != nil || !ok {
		t.Fatalf("Redo text insert: ok=%v err=%v", ok, err)
	}
	if got := text.String(); got != "hello" {
		t.Fatalf("got %q after redo, want hello", got)
	}

	if ok, err := d.Redo(); err != nil || !ok {
		t.Fatalf("Redo map set: ok=%v err=%v", ok, err)
	}
	if v, ok := m.Get("k"); !ok || v != "v" {
		t.Fatalf("got %v,%v after redo, want v,true", v, ok)
	}
	if d.CanRedo() {
		t.Fatalf("expected redo stack drained")
	}
}

func TestUndoMergeWindowCombinesAdjacentEdits(t *testing.T) {
	d := newTestDoc(1)
	d.EnableUndo(time.Hour, nil, 0)

	text, err := d.GetText("title")
	if err != nil {
		t.Fatalf("GetText: %v", err)
	}
	if err := text.InsertUTF8(0, "a"); err != nil {
		t.Fatalf("InsertUTF8: %v", err)
	}
	if _, err := d.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := text.InsertUTF8(1, "b"); err != nil {
		t.Fatalf("InsertUTF8: %v", err)
	}
	if _, err := d.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if ok, err := d.Undo(); err != nil || !ok {
		t.Fatalf("Undo: ok=%v err=%v", ok, err)
	}
	if got := text.String(); got != "" {
		t.Fatalf("got %q, want both inserts undone together within the merge window", got)
	}
	if d.CanUndo() {
		t.Fatalf("expected undo stack drained after a single merged undo")
	}
}

func TestConcurrentTextInsertsConvergeAcrossPeers(t *testing.T) {
	a := newTestDoc(1)
	ta, err := a.GetText("doc")
	if err != nil {
		t.Fatalf("GetText: %v", err)
	}
	if err := ta.InsertUTF8(0, "ac"); err != nil {
		t.Fatalf("InsertUTF8: %v", err)
	}
	if _, err := a.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	base, err := a.Export(EncodeFastSnapshot)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	b := newTestDoc(2)
	if err := b.Import(base); err != nil {
		t.Fatalf("Import: %v", err)
	}
	tb, err := b.GetText("doc")
	if err != nil {
		t.Fatalf("GetText on b: %v", err)
	}

	// Both peers concurrently insert between 'a' and 'c'.
	if err := ta.InsertUTF8(1, "X"); err != nil {
		t.Fatalf("InsertUTF8 on a: %v", err)
	}
	if _, err := a.Commit(); err != nil {
		t.Fatalf("Commit a: %v", err)
	}
	if err := tb.InsertUTF8(1, "Y"); err != nil {
		t.Fatalf("InsertUTF8 on b: %v", err)
	}
	if _, err := b.Commit(); err != nil {
		t.Fatalf("Commit b: %v", err)
	}

	aUpdate, err := a.Export(EncodeFastUpdates)
	if err != nil {
		t.Fatalf("Export a: %v", err)
	}
	bUpdate, err := b.Export(EncodeFastUpdates)
	if err != nil {
		t.Fatalf("Export b: %v", err)
	}

	if err := a.Import(bUpdate); err != nil {
		t.Fatalf("Import b into a: %v", err)
	}
	if err := b.Import(aUpdate); err != nil {
		t.Fatalf("Import a into b: %v", err)
	}

	if got, want := ta.String(), tb.String(); got != want {
		t.Fatalf("diverged: a=%q b=%q", got, want)
	}
	if len(ta.String()) != 4 {
		t.Fatalf("got %q, want 4 runes (a, X, Y or Y, X, c in some deterministic order)", ta.String())
	}
}
