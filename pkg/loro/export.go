package loro

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/codec"
	"github.com/loro-dev/loro/internal/container/counter"
	"github.com/loro-dev/loro/internal/container/crdtcommon"
	"github.com/loro-dev/loro/internal/container/crdtmap"
	"github.com/loro-dev/loro/internal/container/list"
	"github.com/loro-dev/loro/internal/container/movablelist"
	"github.com/loro-dev/loro/internal/container/text"
	"github.com/loro-dev/loro/internal/container/tree"
	"github.com/loro-dev/loro/internal/diff"
	"github.com/loro-dev/loro/internal/event"
	"github.com/loro-dev/loro/internal/loroerr"
	"github.com/loro-dev/loro/internal/opcontent"
	"github.com/loro-dev/loro/internal/oplog"
	"github.com/loro-dev/loro/internal/tracing"
	"github.com/loro-dev/loro/internal/version"
	"go.opentelemetry.io/otel/attribute"
)

// EncodeMode selects an export format (spec.md §6.1/§6.2/§6.3).
type EncodeMode uint16

const (
	EncodeFastSnapshot EncodeMode = EncodeMode(codec.EncodeModeFastSnapshot)
	EncodeFastUpdates  EncodeMode = EncodeMode(codec.EncodeModeFastUpdates)
)

// Export serializes the document per mode, implicitly committing any
// pending transaction first (spec.md §6.7: "export always observes a
// clean commit boundary").
func (d *Document) Export(mode EncodeMode) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, span := tracing.StartSpan(context.Background(), "loro.export", attribute.Int("mode", int(mode)))
	defer span.End()

	if _, err := d.commitLocked(false); err != nil {
		return nil, err
	}

	switch mode {
	case EncodeFastUpdates:
		var blocks [][]byte
		var batch []*oplog.Change
		d.store.Iterate(func(c *oplog.Change) bool {
			batch = append(batch, c)
			return true
		})
		for len(batch) > 0 {
			n := len(batch)
			if n > 64 {
				n = 64
			}
			block, err := codec.EncodeChangeBlock(batch[:n])
			if err != nil {
				if d.metrics != nil {
					d.metrics.EncodeErrors.Inc()
				}
				return nil, err
			}
			blocks = append(blocks, block)
			batch = batch[n:]
		}
		return codec.WriteFrame(codec.EncodeModeFastUpdates, codec.EncodeUpdates(blocks)), nil
	case EncodeFastSnapshot:
		var all []*oplog.Change
		d.store.Iterate(func(c *oplog.Change) bool {
			all = append(all, c)
			return true
		})
		oplogBytes, err := codec.EncodeChangeBlock(all)
		if err != nil {
			if d.metrics != nil {
				d.metrics.EncodeErrors.Inc()
			}
			return nil, err
		}
		snap := codec.Snapshot{OplogBytes: oplogBytes}
		out := codec.WriteFrame(codec.EncodeModeFastSnapshot, codec.EncodeSnapshot(snap))
		if d.metrics != nil {
			d.metrics.OplogSizeBytes.Set(float64(len(oplogBytes)))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("loro: export mode %d: %w", mode, ErrUnsupportedEncodeMode)
	}
}

// Import ingests a byte blob previously produced by Export, integrating any
// causally-ready changes and firing a ByImport event batch for whatever it
// newly applied.
func (d *Document) Import(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, span := tracing.StartSpan(context.Background(), "loro.import", attribute.Int("bytes", len(data)))
	defer span.End()

	start := time.Now()
	if d.metrics != nil {
		d.metrics.ImportBytes.Add(float64(len(data)))
		defer func() { d.metrics.ImportDuration.Observe(time.Since(start).Seconds()) }()
	}

	encodeErr := func(err error) error {
		if d.metrics != nil && err != nil {
			if errors.Is(err, loroerr.ErrChecksumMismatch) {
				d.metrics.ChecksumMismatches.Inc()
			} else {
				d.metrics.EncodeErrors.Inc()
			}
		}
		return err
	}

	mode, body, err := codec.ReadFrame(data)
	if err != nil {
		return encodeErr(err)
	}

	var blocks [][]byte
	switch mode {
	case codec.EncodeModeFastUpdates:
		blocks, err = codec.DecodeUpdates(body)
		if err != nil {
			return encodeErr(err)
		}
	case codec.EncodeModeFastSnapshot:
		snap, err := codec.DecodeSnapshot(body)
		if err != nil {
			return encodeErr(err)
		}
		blocks = [][]byte{snap.OplogBytes}
	default:
		return fmt.Errorf("loro: import mode %d: %w", mode, ErrUnsupportedEncodeMode)
	}

	from := d.store.Frontiers()
	touchedPeers := map[version.PeerID]bool{}
	diffsByTarget := map[cid.ContainerID]diff.Diff{}

	for _, blockBuf := range blocks {
		changes, err := codec.DecodeChangeBlock(blockBuf)
		if err != nil {
			return encodeErr(err)
		}
		for _, c := range changes {
			applied, err := d.store.Import(c)
			if err != nil {
				return encodeErr(err)
			}
			if len(applied) == 0 {
				continue
			}
			touchedPeers[c.ID.Peer] = true
			for _, op := range c.Ops {
				lamport := c.Lamport + version.Lamport(op.Counter-c.ID.Counter)
				fwd := d.applyRemoteOp(op, c.ID.Peer, lamport)
				if !fwd.IsEmpty() {
					diffsByTarget[op.Container] = mergeDiff(diffsByTarget[op.Container], fwd)
				}
			}
			if d.metrics != nil {
				d.metrics.OpsApplied.Add(float64(len(c.Ops)))
			}
		}
	}

	for peer := range touchedPeers {
		d.commit.NotifyRemoteImport(peer)
	}

	if d.metrics != nil {
		d.metrics.PendingOps.Set(float64(d.store.PendingCount()))
	}

	if len(diffsByTarget) == 0 {
		return nil
	}

	if d.undoMgr != nil {
		d.undoMgr.TrackRemoteImport(diffsByTarget)
	}

	events := make([]event.ContainerEvent, 0, len(diffsByTarget))
	for target, dv := range diffsByTarget {
		events = append(events, event.ContainerEvent{Target: target, Diff: dv})
	}
	d.dispatcher.Emit(event.Batch{By: event.ByImport, From: from, To: d.store.Frontiers(), Events: events})
	return nil
}

// containerState returns (creating if absent) the in-memory state for
// target, dispatching on its Kind the same way GetText/GetMap/... do for
// locally-named roots.
func (d *Document) containerState(target cid.ContainerID) any {
	if st, ok := d.containers[target]; ok {
		return st
	}
	var st any
	switch target.Kind {
	case cid.KindText:
		st = text.New(d.opts.Text.Styles, d.opts.Text.DefaultStyle)
	case cid.KindList:
		st = list.New()
	case cid.KindMovableList:
		st = movablelist.New()
	case cid.KindMap:
		st = crdtmap.New()
	case cid.KindTree:
		st = tree.New()
	case cid.KindCounter:
		st = counter.New()
	}
	d.containers[target] = st
	if target.IsRoot {
		d.rootKinds[target.Name] = target.Kind
	}
	return st
}

// applyRemoteOp integrates one imported op into its container's state,
// returning the forward diff it produced (empty if the op was a no-op,
// e.g. a losing concurrent move).
func (d *Document) applyRemoteOp(op oplog.Op, peer version.PeerID, lamport version.Lamport) diff.Diff {
	st := d.containerState(op.Container)
	stamp := crdtcommon.Stamp{Lamport: lamport, Peer: peer}

	switch c := op.Content.(type) {
	case opcontent.TextInsert:
		t := st.(*text.Text)
		id := version.IdLp{Peer: peer, Lamport: lamport}
		t.IntegrateRune(id, c.LeftOrigin, stamp, c.Rune)
		return diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{{Retain: c.VisibleIndex, Insert: string(c.Rune)}}}
	case opcontent.TextDelete:
		t := st.(*text.Text)
		_ = t.Delete(c.ID)
		return diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{{Delete: 1}}}
	case opcontent.TextMark:
		t := st.(*text.Text)
		_ = t.Mark(c.Key, c.Value, stamp, c.Start, c.End)
		return diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{{Attributes: map[string]any{c.Key: c.Value}}}}
	case opcontent.TextUnmark:
		t := st.(*text.Text)
		_ = t.Unmark(c.Key, stamp, c.Start, c.End)
		return diff.Diff{Kind: diff.KindText, Text: []diff.TextOp{{Attributes: map[string]any{c.Key: nil}}}}
	case opcontent.ListInsert:
		l := st.(*list.List)
		id := version.IdLp{Peer: peer, Lamport: lamport}
		l.Integrate(&list.Element{ID: id, LeftOrigin: c.LeftOrigin, Stamp: stamp, Value: c.Value})
		return diff.Diff{Kind: diff.KindList, List: []diff.ListOp{{Retain: c.VisibleIndex, Insert: []any{c.Value}}}}
	case opcontent.ListDelete:
		l := st.(*list.List)
		_ = l.Delete(c.ID)
		return diff.Diff{Kind: diff.KindList, List: []diff.ListOp{{Delete: 1}}}
	case opcontent.MovableListInsert:
		m := st.(*movablelist.MovableList)
		id := version.IdLp{Peer: peer, Lamport: lamport}
		m.Integrate(id, c.LeftOrigin, stamp, c.Value)
		return diff.Diff{Kind: diff.KindMovableList, List: []diff.ListOp{{Retain: c.VisibleIndex, Insert: []any{c.Value}}}}
	case opcontent.MovableListMove:
		m := st.(*movablelist.MovableList)
		id := version.IdLp{Peer: peer, Lamport: lamport}
		value, _ := m.ValueOf(c.ElemID)
		_ = m.Move(c.ElemID, id, c.LeftOriginPos, stamp, value)
		return diff.Diff{Kind: diff.KindMovableList}
	case opcontent.MovableListSet:
		m := st.(*movablelist.MovableList)
		_ = m.Set(c.ElemID, c.Value, stamp)
		return diff.Diff{Kind: diff.KindMovableList}
	case opcontent.MapSet:
		mp := st.(*crdtmap.Map)
		if mp.Set(c.Key, c.Value, stamp) {
			return diff.Diff{Kind: diff.KindMap, Map: []diff.MapEntry{{Key: c.Key, Value: c.Value}}}
		}
	case opcontent.MapDelete:
		mp := st.(*crdtmap.Map)
		if mp.Delete(c.Key, stamp) {
			return diff.Diff{Kind: diff.KindMap, Map: []diff.MapEntry{{Key: c.Key, Deleted: true}}}
		}
	case opcontent.TreeCreate:
		tr := st.(*tree.Tree)
		id := version.IdLp{Peer: peer, Lamport: lamport}
		nodeID := nodeIDString(id)
		tr.CreateNode(nodeID, c.Parent, c.Frac, stamp)
		return diff.Diff{Kind: diff.KindTree, Tree: []diff.TreeEdit{{Target: nodeID, Parent: c.Parent, IsCreate: true}}}
	case opcontent.TreeMove:
		tr := st.(*tree.Tree)
		if err := tr.Move(c.Target, c.NewParent, c.Frac, stamp); err != nil {
			return diff.Diff{}
		}
		return diff.Diff{Kind: diff.KindTree, Tree: []diff.TreeEdit{{Target: c.Target, Parent: c.NewParent}}}
	case opcontent.TreeDelete:
		tr := st.(*tree.Tree)
		if err := tr.Delete(c.Target, c.Frac, stamp); err != nil {
			return diff.Diff{}
		}
		return diff.Diff{Kind: diff.KindTree, Tree: []diff.TreeEdit{{Target: c.Target, Parent: tree.DeletedParent, IsDelete: true}}}
	case opcontent.CounterIncrement:
		ct := st.(*counter.Counter)
		ct.Add(c.Delta)
		return diff.Diff{Kind: diff.KindCounter, Counter: []diff.CounterOp{{Increment: c.Delta}}}
	}
	return diff.Diff{}
}
