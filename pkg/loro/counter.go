package loro

import (
	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/container/counter"
	"github.com/loro-dev/loro/internal/diff"
	"github.com/loro-dev/loro/internal/opcontent"
	"github.com/loro-dev/loro/internal/oplog"
)

// CounterHandle is a live reference to a Counter container (spec.md
// §4.3.5): concurrent increments commute and simply sum, so no
// lamport/peer tie-break is needed.
type CounterHandle struct {
	doc    *Document
	target cid.ContainerID
	state  *counter.Counter
}

func (d *Document) GetCounter(name string) (*CounterHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	target, err := d.rootContainer(name, cid.KindCounter)
	if err != nil {
		return nil, err
	}
	st, ok := d.containers[target].(*counter.Counter)
	if !ok {
		st = counter.New()
		d.containers[target] = st
	}
	return &CounterHandle{doc: d, target: target, state: st}, nil
}

func (h *CounterHandle) ContainerID() cid.ContainerID { return h.target }
func (h *CounterHandle) Value() float64               { return h.state.Value() }

// Increment applies a signed delta.
func (h *CounterHandle) Increment(delta float64) error {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	if err := h.doc.checkEditableLocked(); err != nil {
		return err
	}
	h.state.Add(delta)
	h.doc.tx.AddOp(oplog.Op{Container: h.target, Content: opcontent.CounterIncrement{Delta: delta}})

	forward := diff.CounterOp{Increment: delta}
	inverse := diff.CounterOp{Increment: -delta}
	h.doc.recordDiff(h.target, diff.Diff{Kind: diff.KindCounter, Counter: []diff.CounterOp{forward}},
		diff.Diff{Kind: diff.KindCounter, Counter: []diff.CounterOp{inverse}})
	return nil
}
