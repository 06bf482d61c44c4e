package counter

import "testing"

func TestAddAccumulates(t *testing.T) {
	c := New()
	c.Add(1.5)
	c.Add(-0.5)
	c.Add(2)
	if got := c.Value(); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
	if c.AppliedCount() != 3 {
		t.Fatalf("expected 3 applied increments, got %d", c.AppliedCount())
	}
}

func TestMergeOrderConverges(t *testing.T) {
	orderA := New()
	orderA.Add(1)
	orderA.Add(2)
	orderA.Add(3)

	orderB := New()
	orderB.Add(3)
	orderB.Add(1)
	orderB.Add(2)

	if orderA.Value() != orderB.Value() {
		t.Fatalf("expected sum to be order-independent for integer increments: %v vs %v", orderA.Value(), orderB.Value())
	}
}
