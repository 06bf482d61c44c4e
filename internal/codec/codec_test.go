package codec

import (
	"reflect"
	"testing"

	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/oplog"
	"github.com/loro-dev/loro/internal/opcontent"
	"github.com/loro-dev/loro/internal/version"
)

func TestFrameRoundtrip(t *testing.T) {
	body := []byte("hello change block")
	framed := WriteFrame(EncodeModeFastUpdates, body)

	mode, got, err := ReadFrame(framed)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if mode != EncodeModeFastUpdates {
		t.Fatalf("got mode %d, want %d", mode, EncodeModeFastUpdates)
	}
	if string(got) != string(body) {
		t.Fatalf("got body %q, want %q", got, body)
	}
}

func TestReadFrameRejectsBadMagic(t *testing.T) {
	framed := WriteFrame(EncodeModeFastUpdates, []byte("x"))
	framed[0] = 'x'
	if _, _, err := ReadFrame(framed); err == nil {
		t.Fatal("expected error for corrupted magic")
	}
}

func TestReadFrameRejectsCorruptedBody(t *testing.T) {
	framed := WriteFrame(EncodeModeFastUpdates, []byte("hello"))
	framed[len(framed)-1] ^= 0xFF
	if _, _, err := ReadFrame(framed); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}

func TestSnapshotRoundtripWithEmptyState(t *testing.T) {
	s := Snapshot{OplogBytes: []byte("oplog"), ShallowStateBytes: []byte("shallow")}
	body := EncodeSnapshot(s)

	got, err := DecodeSnapshot(body)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if string(got.OplogBytes) != "oplog" || got.StateBytes != nil || string(got.ShallowStateBytes) != "shallow" {
		t.Fatalf("got %+v", got)
	}
}

func TestSnapshotRoundtripWithState(t *testing.T) {
	s := Snapshot{OplogBytes: []byte("o"), StateBytes: []byte("state-bytes"), ShallowStateBytes: []byte("s")}
	body := EncodeSnapshot(s)
	got, err := DecodeSnapshot(body)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if string(got.StateBytes) != "state-bytes" {
		t.Fatalf("got state %q", got.StateBytes)
	}
}

func TestUpdatesRoundtrip(t *testing.T) {
	blocks := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	body := EncodeUpdates(blocks)
	got, err := DecodeUpdates(body)
	if err != nil {
		t.Fatalf("DecodeUpdates: %v", err)
	}
	if len(got) != 3 || string(got[0]) != "one" || string(got[2]) != "three" {
		t.Fatalf("got %v", got)
	}
}

func TestContainerIDRoundtripRootAndChild(t *testing.T) {
	root := cid.Root("my-doc", cid.KindTree)
	buf := EncodeContainerID(root)
	got, n, err := DecodeContainerID(buf)
	if err != nil {
		t.Fatalf("DecodeContainerID (root): %v", err)
	}
	if n != len(buf) || got != root {
		t.Fatalf("got %+v, want %+v", got, root)
	}

	child := cid.Child(version.ID{Peer: 7, Counter: 42}, cid.KindMap)
	buf = EncodeContainerID(child)
	got, _, err = DecodeContainerID(buf)
	if err != nil {
		t.Fatalf("DecodeContainerID (child): %v", err)
	}
	if got != child {
		t.Fatalf("got %+v, want %+v", got, child)
	}
}

func TestDeltaOfDeltaRoundtripOnLinearSequence(t *testing.T) {
	vs := []int64{100, 101, 102, 103, 110, 111}
	buf := EncodeDeltaOfDelta(vs)
	got, _, err := DecodeDeltaOfDelta(buf)
	if err != nil {
		t.Fatalf("DecodeDeltaOfDelta: %v", err)
	}
	if !reflect.DeepEqual(got, vs) {
		t.Fatalf("got %v, want %v", got, vs)
	}
}

func TestBoolRleRoundtrip(t *testing.T) {
	vs := []bool{true, true, true, false, false, true}
	buf := EncodeBoolRle(vs)
	got, _, err := DecodeBoolRle(buf, len(vs))
	if err != nil {
		t.Fatalf("DecodeBoolRle: %v", err)
	}
	if !reflect.DeepEqual(got, vs) {
		t.Fatalf("got %v, want %v", got, vs)
	}
}

func TestAnyValueRoundtripNestedStructure(t *testing.T) {
	v := map[string]any{
		"name": "loro",
		"tags": []any{"a", "b"},
		"n":    float64(3),
		"ok":   true,
		"nil":  nil,
	}
	buf := encodeAnyValue(v)
	got, err := decodeAnyValue(buf)
	if err != nil {
		t.Fatalf("decodeAnyValue: %v", err)
	}
	if !reflect.DeepEqual(got, v) {
		t.Fatalf("got %#v, want %#v", got, v)
	}
}

func TestChangeBlockRoundtrip(t *testing.T) {
	target := cid.Root("doc", cid.KindText)
	changes := []*oplog.Change{
		{
			ID:        version.ID{Peer: 1, Counter: 0},
			Lamport:   0,
			Timestamp: 1000,
			Deps:      nil,
			Ops: []oplog.Op{
				{Container: target, Counter: 0, Content: opcontent.TextInsert{VisibleIndex: 0, Rune: 'h'}},
				{Container: target, Counter: 1, Content: opcontent.TextInsert{
					VisibleIndex: 1, Rune: 'i',
					LeftOrigin: &version.IdLp{Peer: 1, Lamport: 0},
				}},
			},
			Len:     2,
			Message: "greeting",
		},
		{
			ID:        version.ID{Peer: 1, Counter: 2},
			Lamport:   2,
			Timestamp: 1500,
			Deps:      version.Frontiers{{Peer: 1, Counter: 1}},
			Ops: []oplog.Op{
				{Container: target, Counter: 0, Content: opcontent.TextDelete{ID: version.IdLp{Peer: 1, Lamport: 0}}},
			},
			Len: 1,
		},
	}

	encoded, err := EncodeChangeBlock(changes)
	if err != nil {
		t.Fatalf("EncodeChangeBlock: %v", err)
	}
	got, err := DecodeChangeBlock(encoded)
	if err != nil {
		t.Fatalf("DecodeChangeBlock: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d changes, want 2", len(got))
	}
	if got[0].Message != "greeting" || got[0].ID != changes[0].ID || len(got[0].Ops) != 2 {
		t.Fatalf("got first change %+v", got[0])
	}
	if ti, ok := got[0].Ops[0].Content.(opcontent.TextInsert); !ok || ti.Rune != 'h' || ti.LeftOrigin != nil {
		t.Fatalf("got op content %+v", got[0].Ops[0].Content)
	}
	if ti, ok := got[0].Ops[1].Content.(opcontent.TextInsert); !ok || ti.Rune != 'i' ||
		ti.LeftOrigin == nil || *ti.LeftOrigin != (version.IdLp{Peer: 1, Lamport: 0}) {
		t.Fatalf("got op content %+v, want LeftOrigin {1 0}", got[0].Ops[1].Content)
	}
	if !got[1].Deps.Equal(changes[1].Deps) {
		t.Fatalf("got deps %+v, want %+v", got[1].Deps, changes[1].Deps)
	}
	if td, ok := got[1].Ops[0].Content.(opcontent.TextDelete); !ok || td.ID != (version.IdLp{Peer: 1, Lamport: 0}) {
		t.Fatalf("got second change op content %+v", got[1].Ops[0].Content)
	}
}
