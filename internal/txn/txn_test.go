package txn

import (
	"testing"
	"time"

	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/oplog"
	"github.com/loro-dev/loro/internal/version"
)

func op(counter version.Counter, content any) oplog.Op {
	return oplog.Op{Container: cid.Root("doc", cid.KindText), Counter: counter, Content: content}
}

func TestCommitAppendsFirstChange(t *testing.T) {
	store := oplog.NewChangeStore()
	committer := NewCommitter(store, time.Second)
	tx := New(1)
	tx.AddOp(op(0, "a"))
	tx.AddOp(op(1, "b"))

	change, err := committer.Commit(tx, 1000, true)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if change == nil || change.Len != 2 {
		t.Fatalf("expected a change with len 2, got %+v", change)
	}
	if tx.Len() != 0 {
		t.Fatalf("expected transaction to be cleared, got %d ops", tx.Len())
	}
}

func TestCommitMergesWithinInterval(t *testing.T) {
	store := oplog.NewChangeStore()
	committer := NewCommitter(store, time.Second)
	tx := New(1)
	tx.AddOp(op(0, "a"))
	c1, err := committer.Commit(tx, 1000, true)
	if err != nil {
		t.Fatalf("Commit 1: %v", err)
	}

	tx.AddOp(op(0, "b")) // counter reassigned by Commit
	c2, err := committer.Commit(tx, 1200, true)
	if err != nil {
		t.Fatalf("Commit 2: %v", err)
	}
	if c2 != c1 {
		t.Fatal("expected second commit to merge into the first Change object")
	}
	if c1.Len != 2 {
		t.Fatalf("expected merged change len 2, got %d", c1.Len)
	}
}

func TestCommitDoesNotMergeAfterIntervalElapses(t *testing.T) {
	store := oplog.NewChangeStore()
	committer := NewCommitter(store, time.Second)
	tx := New(1)
	tx.AddOp(op(0, "a"))
	c1, _ := committer.Commit(tx, 1000, true)

	tx.AddOp(op(0, "b"))
	c2, err := committer.Commit(tx, 5000, true)
	if err != nil {
		t.Fatalf("Commit 2: %v", err)
	}
	if c2 == c1 {
		t.Fatal("expected commit outside merge interval to start a new Change")
	}
}

func TestCommitDoesNotMergeAfterRemoteImport(t *testing.T) {
	store := oplog.NewChangeStore()
	committer := NewCommitter(store, time.Hour)
	tx := New(1)
	tx.AddOp(op(0, "a"))
	c1, _ := committer.Commit(tx, 1000, true)

	committer.NotifyRemoteImport(1)

	tx.AddOp(op(0, "b"))
	c2, err := committer.Commit(tx, 1001, true)
	if err != nil {
		t.Fatalf("Commit 2: %v", err)
	}
	if c2 == c1 {
		t.Fatal("expected commit after intervening remote import to start a new Change")
	}
}

func TestEmptyExplicitCommitClearsPendingOptions(t *testing.T) {
	store := oplog.NewChangeStore()
	committer := NewCommitter(store, time.Second)
	tx := New(1)
	tx.SetNextCommitOptions(CommitOptions{Message: "hello"})

	change, err := committer.Commit(tx, 1000, true)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if change != nil {
		t.Fatalf("expected no change for an empty commit, got %+v", change)
	}

	tx.AddOp(op(0, "a"))
	change, err = committer.Commit(tx, 1001, true)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if change.Message != "" {
		t.Fatalf("expected discarded message, got %q", change.Message)
	}
}

func TestEmptyImplicitCommitPreservesPendingOptions(t *testing.T) {
	store := oplog.NewChangeStore()
	committer := NewCommitter(store, time.Second)
	tx := New(1)
	tx.SetNextCommitOptions(CommitOptions{Message: "hello"})

	_, err := committer.Commit(tx, 1000, false)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx.AddOp(op(0, "a"))
	change, err := committer.Commit(tx, 1001, true)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if change.Message != "hello" {
		t.Fatalf("expected preserved message, got %q", change.Message)
	}
}
