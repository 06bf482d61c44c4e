// Package loro is the public facade of the engine (spec.md §6.7): a
// Document owning one OpLog/state pair plus container handles for each
// root container, grounded on the teacher's pkg/knirvbase.DB (wraps an
// internal orchestrator behind New/Collection/Raw/Shutdown). Generalized
// from a distributed-DB-with-network facade to a single-process CRDT
// document: Collection(name) becomes GetText/GetMap/GetList/.../get_by_path,
// and the network enable/disable options become the detached-editing and
// commit-merge options of config.DocOptions.
package loro

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/config"
	"github.com/loro-dev/loro/internal/diff"
	"github.com/loro-dev/loro/internal/event"
	"github.com/loro-dev/loro/internal/logging"
	"github.com/loro-dev/loro/internal/loroerr"
	"github.com/loro-dev/loro/internal/monitoring"
	"github.com/loro-dev/loro/internal/oplog"
	"github.com/loro-dev/loro/internal/tracing"
	"github.com/loro-dev/loro/internal/txn"
	"github.com/loro-dev/loro/internal/undo"
	"github.com/loro-dev/loro/internal/version"
	"go.opentelemetry.io/otel/attribute"
)

// Document is the root handle of a Loro CRDT document (spec.md §3, §6.7).
type Document struct {
	mu sync.Mutex

	peer   version.PeerID
	opts   config.DocOptions
	store  *oplog.ChangeStore
	commit *txn.Committer
	tx     *txn.Transaction

	dispatcher *event.Dispatcher
	log        *logging.Logger
	metrics    *monitoring.Metrics

	containers map[cid.ContainerID]any // *text.Text / *list.List / ..., keyed by root/child id
	rootKinds  map[string]cid.Kind     // name -> kind, to enforce spec.md's "root name is keyed by (name, kind)" rule

	detached          bool
	detachedFrontiers version.Frontiers

	// shallowFrontiers, when non-nil, marks the oldest point a shallow
	// import retained (spec.md §4.5/§6.8): Checkout refuses to rewind to
	// anything older. ReplaceWithShallow sets it (as can
	// SetShallowFrontiers); while it is nil the guard never fires.
	shallowFrontiers version.Frontiers

	// undoMgr is nil until EnableUndo is called (spec.md §4.6 is opt-in).
	// suppressUndoTrack is set while undoRedo's own follow-up commit runs,
	// since Manager.apply already logs that commit's diffs into its own
	// intervening-ops log; tracking it a second time here would cross it
	// twice during future transforms.
	undoMgr           *undo.Manager
	suppressUndoTrack bool

	txnLamportBase  *version.Lamport
	txnLamportNext  version.Lamport
	txnForwardDiffs map[cid.ContainerID]diff.Diff
	txnInverseDiffs map[cid.ContainerID]diff.Diff
}

// New constructs an empty Document. A zero opts.PeerID is replaced with a
// randomly chosen one, matching §6.7's "peer id chosen at creation or
// overridden" behavior.
func New(opts config.DocOptions) *Document {
	if opts.PeerID == 0 {
		opts.PeerID = rand.Uint64()
	}
	store := oplog.NewChangeStore()
	d := &Document{
		peer:       opts.PeerID,
		opts:       opts,
		store:      store,
		commit:     txn.NewCommitter(store, opts.Commit.MergeInterval),
		tx:         txn.New(opts.PeerID),
		dispatcher: event.NewDispatcher(),
		log:        logging.Noop(),
		containers: make(map[cid.ContainerID]any),
		rootKinds:  make(map[string]cid.Kind),
	}
	return d
}

// rootContainer returns the root ContainerID for (name, kind), creating it
// on first use. A name reused with a different kind is rejected
// (spec.md §6.7: ErrDuplicateContainerName).
func (d *Document) rootContainer(name string, kind cid.Kind) (cid.ContainerID, error) {
	if existing, ok := d.rootKinds[name]; ok {
		if existing != kind {
			return cid.ContainerID{}, loroerr.ErrDuplicateContainerName
		}
		return cid.Root(name, kind), nil
	}
	d.rootKinds[name] = kind
	return cid.Root(name, kind), nil
}

// WithLogger attaches a structured logger (go.uber.org/zap via
// internal/logging), replacing the no-op default.
func (d *Document) WithLogger(l *logging.Logger) *Document { d.log = l; return d }

// WithMetrics attaches a prometheus.Metrics registry.
func (d *Document) WithMetrics(m *monitoring.Metrics) *Document { d.metrics = m; return d }

func (d *Document) PeerID() version.PeerID { return d.peer }

// SetPeerID overrides the document's peer id (§6.7 set_peer_id); only
// valid before any local commit, mirroring the upstream restriction that
// changing identity mid-history would corrupt causal ordering.
func (d *Document) SetPeerID(peer version.PeerID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.store.VersionVector()[d.peer] != 0 {
		return fmt.Errorf("loro: cannot change peer id after local commits exist")
	}
	d.peer = peer
	d.tx = txn.New(peer)
	return nil
}

func (d *Document) Frontiers() version.Frontiers { return d.store.Frontiers() }
func (d *Document) OplogFrontiers() version.Frontiers { return d.store.Frontiers() }
func (d *Document) OplogVersionVector() version.VersionVector { return d.store.VersionVector() }

// GetPendingTxnLength reports the number of ops buffered in the active
// transaction (§6.7 get_pending_txn_length).
func (d *Document) GetPendingTxnLength() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tx.Len()
}

// SetNextCommitOptions stages message/origin/timestamp for the next commit.
func (d *Document) SetNextCommitOptions(opts txn.CommitOptions) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tx.SetNextCommitOptions(opts)
}

func (d *Document) ClearNextCommitOptions() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tx.ClearNextCommitOptions()
}

// Commit materializes the active transaction into a Change, dispatching a
// ByLocal event batch for whatever containers it touched.
func (d *Document) Commit() (*oplog.Change, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commitLocked(true)
}

func (d *Document) commitLocked(isExplicit bool) (*oplog.Change, error) {
	_, span := tracing.StartSpan(context.Background(), "loro.commit",
		attribute.Bool("explicit", isExplicit), attribute.Int64("peer", int64(d.peer)))
	defer span.End()

	start := time.Now()
	forward := d.txnForwardDiffs
	inverse := d.txnInverseDiffs
	from := d.store.Frontiers()
	origin := d.tx.PendingOrigin()
	startCounter := d.store.VersionVector()[d.peer]
	opsLen := int32(d.tx.Len())

	change, err := d.commit.Commit(d.tx, time.Now().UnixMilli(), isExplicit)
	d.resetTxnScratch()
	if err != nil {
		return nil, err
	}
	if change == nil {
		return nil, nil
	}
	if d.metrics != nil {
		d.metrics.ChangesCommitted.Inc()
		d.metrics.CommitDuration.Observe(time.Since(start).Seconds())
	}

	if d.undoMgr != nil && !d.suppressUndoTrack && len(forward) > 0 {
		span := version.IdSpan{Peer: d.peer, Start: startCounter, Length: opsLen}
		d.undoMgr.TrackLocalCommit(span, forward, inverse, nil, origin, change.Timestamp)
	}

	events := make([]event.ContainerEvent, 0, len(forward))
	for target, diffv := range forward {
		events = append(events, event.ContainerEvent{Target: target, Diff: diffv})
	}
	d.dispatcher.Emit(event.Batch{
		Origin: change.Message,
		By:     event.ByLocal,
		From:   from,
		To:     d.store.Frontiers(),
		Events: events,
	})
	return change, nil
}

func (d *Document) resetTxnScratch() {
	d.txnLamportBase = nil
	d.txnForwardDiffs = nil
	d.txnInverseDiffs = nil
}

// Subscribe registers a document-level event handler.
func (d *Document) Subscribe(h event.Handler) {
	d.dispatcher.Subscribe(h)
	d.bumpActiveSubscriptions()
}

// SubscribeLocalUpdates registers a handler fired only for locally
// originated batches.
func (d *Document) SubscribeLocalUpdates(h event.Handler) {
	d.dispatcher.SubscribeLocalUpdates(h)
	d.bumpActiveSubscriptions()
}

// SubscribeContainer registers a handler fired only for batches touching
// target.
func (d *Document) SubscribeContainer(target cid.ContainerID, h event.Handler) {
	d.dispatcher.SubscribeContainer(target, h)
	d.bumpActiveSubscriptions()
}

func (d *Document) bumpActiveSubscriptions() {
	if d.metrics != nil {
		d.metrics.ActiveSubscriptions.Inc()
	}
}

// Detach puts the document into detached-editing mode at its current
// frontiers (§4.5/§6.7 detach).
func (d *Document) Detach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detached = true
	d.detachedFrontiers = d.store.Frontiers()
}

// Attach returns the document to tracking-the-latest-frontiers mode.
func (d *Document) Attach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detached = false
	d.detachedFrontiers = nil
}

func (d *Document) SetDetachedEditing(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.Detached.EditingEnabled = enabled
}

// checkEditableLocked returns ErrDetachedEditNotAllowed if the document is
// detached and detached editing hasn't been opted into.
func (d *Document) checkEditableLocked() error {
	if d.detached && !d.opts.Detached.EditingEnabled {
		return loroerr.ErrDetachedEditNotAllowed
	}
	return nil
}

// nextOpLamport assigns identity for the k-th op of the in-flight
// transaction: computed once per transaction from the committer's current
// frontier-derived next lamport (see txn.Committer.NextLamport's doc
// comment for why this stays correct whether the eventual commit merges
// into the previous Change or starts a new one), then incremented op by
// op so concurrent local ops within one transaction get distinct lamports.
func (d *Document) nextOpLamport() version.Lamport {
	if d.txnLamportBase == nil {
		base := d.commit.NextLamport()
		d.txnLamportBase = &base
		d.txnLamportNext = base
	}
	lp := d.txnLamportNext
	d.txnLamportNext++
	return lp
}

func (d *Document) nextIdLp() version.IdLp {
	return version.IdLp{Peer: d.peer, Lamport: d.nextOpLamport()}
}

func (d *Document) recordDiff(target cid.ContainerID, forward, inverse diff.Diff) {
	if d.txnForwardDiffs == nil {
		d.txnForwardDiffs = make(map[cid.ContainerID]diff.Diff)
		d.txnInverseDiffs = make(map[cid.ContainerID]diff.Diff)
	}
	d.txnForwardDiffs[target] = mergeDiff(d.txnForwardDiffs[target], forward)
	d.txnInverseDiffs[target] = mergeDiff(inverse, d.txnInverseDiffs[target]) // inverse composes in reverse
}

func mergeDiff(a, b diff.Diff) diff.Diff {
	if a.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return a
	}
	out := a
	out.Kind = a.Kind
	out.Text = append(append([]diff.TextOp(nil), a.Text...), b.Text...)
	out.List = append(append([]diff.ListOp(nil), a.List...), b.List...)
	out.Map = append(append([]diff.MapEntry(nil), a.Map...), b.Map...)
	out.Tree = append(append([]diff.TreeEdit(nil), a.Tree...), b.Tree...)
	out.Counter = append(append([]diff.CounterOp(nil), a.Counter...), b.Counter...)
	return out
}
