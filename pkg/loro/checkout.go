package loro

import (
	"context"

	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/event"
	"github.com/loro-dev/loro/internal/loroerr"
	"github.com/loro-dev/loro/internal/oplog"
	"github.com/loro-dev/loro/internal/tracing"
	"github.com/loro-dev/loro/internal/version"
	"go.opentelemetry.io/otel/attribute"
)

// Checkout rewinds the document's materialized state to target (spec.md
// §4.5/§6.7): the oplog itself is untouched — only the in-memory container
// states are rebuilt by replaying target's causal closure from scratch.
// The document enters detached mode unless target equals the oplog's
// current frontiers, mirroring Detach's semantics.
func (d *Document) Checkout(target version.Frontiers) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, span := tracing.StartSpan(context.Background(), "loro.checkout", attribute.Int("frontiers", len(target)))
	defer span.End()

	if _, err := d.commitLocked(false); err != nil {
		return err
	}

	targetVV, err := d.store.VersionVectorAt(target)
	if err != nil {
		return err
	}
	if d.shallowFrontiers != nil {
		shallowVV, err := d.store.VersionVectorAt(d.shallowFrontiers)
		if err != nil {
			return err
		}
		if !targetVV.IncludesVV(shallowVV) {
			return loroerr.ErrCannotCheckoutBeforeShallowRoot
		}
	}

	from := d.store.Frontiers()
	d.containers = make(map[cid.ContainerID]any)
	d.rootKinds = make(map[string]cid.Kind)

	var events []event.ContainerEvent
	d.store.Iterate(func(c *oplog.Change) bool {
		if c.End().Counter > targetVV[c.ID.Peer] {
			return true // this change falls outside the checkout target
		}
		for _, op := range c.Ops {
			lamport := c.Lamport + version.Lamport(op.Counter-c.ID.Counter)
			fwd := d.applyRemoteOp(op, c.ID.Peer, lamport)
			if !fwd.IsEmpty() {
				events = append(events, event.ContainerEvent{Target: op.Container, Diff: fwd})
			}
		}
		return true
	})

	atHead := version.Compare(targetVV, d.store.VersionVector()) == version.Equal
	d.detached = !atHead
	if d.detached {
		d.detachedFrontiers = target.Clone()
	} else {
		d.detachedFrontiers = nil
	}

	d.dispatcher.Emit(event.Batch{By: event.ByCheckout, From: from, To: target.Clone(), Events: events})
	if d.metrics != nil {
		d.metrics.CheckoutCount.Inc()
	}
	return nil
}

// SetShallowFrontiers marks target as the oldest frontier this document's
// history can be checked out to, for when a shallow-snapshot import trims
// everything older (spec.md §4.5/§6.8). Exposed for that future import path;
// nothing in this build calls it yet.
func (d *Document) SetShallowFrontiers(target version.Frontiers) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shallowFrontiers = target.Clone()
}
