package loro

import (
	"encoding/json"
	"math/rand"

	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/diff"
	"github.com/loro-dev/loro/internal/oplog"
	"github.com/loro-dev/loro/internal/version"
)

// ImportStatus reports what an import actually integrated (spec.md §6.7,
// §7): Success is the store's whole version vector after the import (not
// only what this import added); Pending is non-nil (an empty version
// vector) when any change is still buffered on a missing dependency, and
// nil otherwise. Pending carries no per-peer ranges.
type ImportStatus struct {
	Success version.VersionVector
	Pending version.VersionVector
}

// ImportWithStatus is Import's full-fidelity form, returning the
// ImportStatus spec.md §6.7 documents for import(bytes). Import itself
// keeps its simpler error-only signature for existing callers; this is the
// one place that also reports whether anything is left pending.
func (d *Document) ImportWithStatus(data []byte) (ImportStatus, error) {
	if err := d.Import(data); err != nil {
		return ImportStatus{}, err
	}

	d.mu.Lock()
	after := d.store.VersionVector()
	pendingCount := d.store.PendingCount()
	d.mu.Unlock()

	status := ImportStatus{Success: after}
	if pendingCount > 0 {
		status.Pending = version.NewVersionVector()
	}
	return status, nil
}

// ImportBatch imports a sequence of blobs in order, matching §6.7's
// import_batch: later blobs commonly depend on earlier ones in the same
// batch (e.g. a FastUpdates blob followed by another peer's), so importing
// out of this order may leave more of the batch pending than necessary,
// but never incorrectly — ChangeStore.Import always buffers instead of
// rejecting an op whose deps aren't satisfied yet.
func (d *Document) ImportBatch(datas [][]byte) (ImportStatus, error) {
	var last ImportStatus
	for _, data := range datas {
		status, err := d.ImportWithStatus(data)
		if err != nil {
			return status, err
		}
		last = status
	}
	return last, nil
}

// Fork produces an independent document seeded from a snapshot of self
// (spec.md §4.5/§6.7): it shares no mutable state with the source, and is
// assigned a fresh peer id distinct from the source's so the two can be
// edited concurrently without colliding on (peer, counter) identity.
func (d *Document) Fork() (*Document, error) {
	blob, err := d.Export(EncodeFastSnapshot)
	if err != nil {
		return nil, err
	}
	opts := d.opts
	for {
		opts.PeerID = rand.Uint64()
		if opts.PeerID != 0 && opts.PeerID != d.peer {
			break
		}
	}
	nd := New(opts)
	if err := nd.Import(blob); err != nil {
		return nil, err
	}
	return nd, nil
}

// ReplaceWithShallow declares target as the new shallow root (spec.md
// §4.5): Checkout to any frontier strictly older than target now fails
// with ErrCannotCheckoutBeforeShallowRoot. It deliberately does not call
// oplog.ChangeStore.TrimBefore to physically drop the pre-target history:
// this engine's Checkout always rebuilds container state by replaying from
// genesis (it carries no separate persisted-state baseline to replay from
// instead), so discarding history older than target would also make
// target itself unreachable, not just frontiers before it. TrimBefore is
// still useful as a standalone primitive once a snapshot-seeded replay
// path exists to seed the trimmed range's starting state; wiring that is
// future work (see DESIGN.md).
func (d *Document) ReplaceWithShallow(target version.Frontiers) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.store.VersionVectorAt(target); err != nil {
		return err
	}
	d.shallowFrontiers = target.Clone()
	return nil
}

// GetChangeAt returns the Change containing id (§6.7 get_change_at).
func (d *Document) GetChangeAt(id version.ID) (*oplog.Change, bool) {
	c, _, ok := d.store.Get(id)
	return c, ok
}

// GetChangeAtLamport returns the Change from peer whose Lamport range
// contains lamport (§6.7 get_change_at_lamport).
func (d *Document) GetChangeAtLamport(peer version.PeerID, lamport version.Lamport) (*oplog.Change, bool) {
	return d.store.GetAtLamport(peer, lamport)
}

// TravelChangeAncestors walks the causal ancestry of frontiers, invoking
// visit once per Change reached in dependency order; stops early if visit
// returns false (§6.7 travel_change_ancestors).
func (d *Document) TravelChangeAncestors(frontiers version.Frontiers, visit func(*oplog.Change) bool) error {
	return d.store.TravelAncestors(frontiers, visit)
}

// FindIdSpansBetween reports, per peer, the counter span present in b but
// not a (forward) and the span present in a but not b (retreat) — §4.2/§6.7
// diff_between_frontiers / find_id_spans_between.
func (d *Document) FindIdSpansBetween(a, b version.Frontiers) (forward, retreat []version.IdSpan, err error) {
	return d.store.DiffBetweenFrontiers(a, b)
}

// GetUncommittedOpsAsJson serializes the active transaction's buffered ops
// (§6.7 get_uncommitted_ops_as_json), for introspection before a commit.
func (d *Document) GetUncommittedOpsAsJson() ([]byte, error) {
	d.mu.Lock()
	ops := d.tx.Ops()
	d.mu.Unlock()
	return json.Marshal(ops)
}

// ContainerDiff pairs one container's delta with its target, the element
// type of Document.Diff's result (§6.7 diff(a,b) → [(cid, JsonDiff)]).
type ContainerDiff struct {
	Target cid.ContainerID
	Diff   diff.Diff
}

// Diff replays the ops each container gained moving from frontiers a to
// frontiers b against an isolated shadow state (never touching the live
// document), returning one ContainerDiff per touched container (§6.7
// diff(a,b)). b is expected to descend from (or be concurrent with, via a's
// own causal closure) a in the usual forward-replay sense; a span present
// in a but not b contributes nothing, since there is no general inverse
// replay for an arbitrary container's accumulated state.
func (d *Document) Diff(a, b version.Frontiers) ([]ContainerDiff, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	avv, err := d.store.VersionVectorAt(a)
	if err != nil {
		return nil, err
	}
	bvv, err := d.store.VersionVectorAt(b)
	if err != nil {
		return nil, err
	}

	shadow := &Document{opts: d.opts, containers: map[cid.ContainerID]any{}, rootKinds: map[string]cid.Kind{}}
	out := map[cid.ContainerID]diff.Diff{}
	var order []cid.ContainerID

	d.store.Iterate(func(c *oplog.Change) bool {
		for _, op := range c.Ops {
			lamport := c.Lamport + version.Lamport(op.Counter-c.ID.Counter)
			switch {
			case op.Counter < avv[c.ID.Peer]:
				shadow.applyRemoteOp(op, c.ID.Peer, lamport)
			case op.Counter < bvv[c.ID.Peer]:
				fwd := shadow.applyRemoteOp(op, c.ID.Peer, lamport)
				if !fwd.IsEmpty() {
					if _, seen := out[op.Container]; !seen {
						order = append(order, op.Container)
					}
					out[op.Container] = mergeDiff(out[op.Container], fwd)
				}
			}
		}
		return true
	})

	result := make([]ContainerDiff, 0, len(order))
	for _, t := range order {
		result = append(result, ContainerDiff{Target: t, Diff: out[t]})
	}
	return result, nil
}

// ApplyDiff replays a set of container diffs (typically produced by Diff
// against another document's export) as new local edits on this document,
// committing them as one Change (§6.7 apply_diff).
func (d *Document) ApplyDiff(diffs []ContainerDiff) error {
	for _, cd := range diffs {
		if cd.Diff.IsEmpty() {
			continue
		}
		if err := d.applyLocalDiff(cd.Target, cd.Diff); err != nil {
			return err
		}
	}
	_, err := d.Commit()
	return err
}
