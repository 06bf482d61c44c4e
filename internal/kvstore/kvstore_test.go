package kvstore

import (
	"bytes"
	"fmt"
	"testing"
)

func TestWriterReaderRoundtrip(t *testing.T) {
	w := NewWriter(DefaultMaxSize)
	keys := []string{"a", "ab", "abc", "b", "ba", "c"}
	for i, k := range keys {
		if err := w.Put([]byte(k), []byte(fmt.Sprintf("value-%d", i))); err != nil {
			t.Fatalf("Put(%q): %v", k, err)
		}
	}
	data := w.Build()

	r, err := Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i, k := range keys {
		v, ok, err := r.Get([]byte(k))
		if err != nil {
			t.Fatalf("Get(%q): %v", k, err)
		}
		if !ok {
			t.Fatalf("expected key %q to be present", k)
		}
		want := fmt.Sprintf("value-%d", i)
		if string(v) != want {
			t.Fatalf("Get(%q) = %q, want %q", k, v, want)
		}
	}

	if _, ok, err := r.Get([]byte("zzz")); err != nil || ok {
		t.Fatalf("expected missing key to return ok=false, got ok=%v err=%v", ok, err)
	}
}

func TestWriterRejectsOutOfOrderKeys(t *testing.T) {
	w := NewWriter(DefaultMaxSize)
	if err := w.Put([]byte("b"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w.Put([]byte("a"), []byte("2")); err == nil {
		t.Fatal("expected out-of-order Put to fail")
	}
}

func TestIterateOrdersKeysAscending(t *testing.T) {
	w := NewWriter(32) // small blocks to force multiple block boundaries
	keys := []string{"aa", "ab", "ba", "bb", "ca", "cb", "da", "db"}
	for _, k := range keys {
		if err := w.Put([]byte(k), bytes.Repeat([]byte{'x'}, 10)); err != nil {
			t.Fatalf("Put(%q): %v", k, err)
		}
	}
	data := w.Build()
	r, err := Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var seen []string
	if err := r.Iterate(func(k, v []byte) bool {
		seen = append(seen, string(k))
		return true
	}); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(seen) != len(keys) {
		t.Fatalf("got %d keys, want %d: %v", len(seen), len(keys), seen)
	}
	for i, k := range keys {
		if seen[i] != k {
			t.Fatalf("key[%d] = %q, want %q (order: %v)", i, seen[i], k, seen)
		}
	}
}

func TestLargeValueBlock(t *testing.T) {
	w := NewWriter(16)
	large := bytes.Repeat([]byte{'y'}, 1024)
	if err := w.Put([]byte("big"), large); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w.Put([]byte("small"), []byte("ok")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data := w.Build()

	r, err := Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	v, ok, err := r.Get([]byte("big"))
	if err != nil || !ok {
		t.Fatalf("Get(big): ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(v, large) {
		t.Fatal("large value round-trip mismatch")
	}
	v, ok, err = r.Get([]byte("small"))
	if err != nil || !ok || string(v) != "ok" {
		t.Fatalf("Get(small) = %q, ok=%v, err=%v", v, ok, err)
	}
}

func TestOpenRejectsCorruptMeta(t *testing.T) {
	w := NewWriter(DefaultMaxSize)
	_ = w.Put([]byte("a"), []byte("1"))
	data := w.Build()
	corrupt := append([]byte(nil), data...)
	corrupt[len(corrupt)-10] ^= 0xFF // flip a byte inside the meta checksum region

	if _, err := Open(corrupt); err == nil {
		t.Fatal("expected corrupted meta to fail checksum validation")
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	if _, err := Open([]byte("XXXX\x00\x00\x00\x00\x00")); err == nil {
		t.Fatal("expected bad magic to be rejected")
	}
}
