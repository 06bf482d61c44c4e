// Package txn implements transaction/commit orchestration (spec.md §4.4):
// buffering a peer's ops, assigning counters/lamport/deps at commit time,
// and merging into the previous Change when the merge-interval window and
// contiguity conditions hold.
//
// Grounded on the teacher's DistributedCollection.Insert/broadcastOperation
// (buffer an op, stamp it with the current vector, emit), generalized from
// "stamp and broadcast immediately" to "buffer until an explicit or
// implicit commit, then materialize one Change".
package txn

import (
	"time"

	"github.com/loro-dev/loro/internal/oplog"
	"github.com/loro-dev/loro/internal/version"
)

// CommitOptions carries the pending-commit-option lifecycle state of
// spec.md §4.4 (message / origin / timestamp).
type CommitOptions struct {
	Message string
	Origin  string
	// Timestamp, if zero, is filled by Committer.Commit from its nowMillis
	// argument (this package never calls time.Now() so it stays
	// deterministic under test).
	Timestamp int64
}

// Transaction buffers ops for one peer between commit boundaries.
type Transaction struct {
	peer    version.PeerID
	ops     []oplog.Op
	pending *CommitOptions // set_next_commit_options; survives an empty implicit commit, cleared by an empty explicit one
}

func New(peer version.PeerID) *Transaction {
	return &Transaction{peer: peer}
}

// AddOp buffers one op for the in-flight transaction.
func (t *Transaction) AddOp(op oplog.Op) {
	t.ops = append(t.ops, op)
}

// Len returns the number of uncommitted ops (get_pending_txn_length).
func (t *Transaction) Len() int { return len(t.ops) }

// Ops returns the currently-buffered ops (get_uncommitted_ops_as_json
// builds on this).
func (t *Transaction) Ops() []oplog.Op {
	out := make([]oplog.Op, len(t.ops))
	copy(out, t.ops)
	return out
}

// SetNextCommitOptions stages message/origin/timestamp for the next
// non-empty commit.
func (t *Transaction) SetNextCommitOptions(opts CommitOptions) {
	t.pending = &opts
}

// ClearNextCommitOptions discards any staged options.
func (t *Transaction) ClearNextCommitOptions() {
	t.pending = nil
}

// PendingOrigin reports the origin staged for the next commit, "" if none
// (internal/undo's merge-window bookkeeping keys off this per commit).
func (t *Transaction) PendingOrigin() string {
	if t.pending == nil {
		return ""
	}
	return t.pending.Origin
}

// lastChangeByPeer tracks, for merge eligibility, the most recently
// committed Change per peer along with the origin/timestamp it closed
// with and whether a remote change was integrated since.
type lastChangeByPeer struct {
	change           *oplog.Change
	origin           string
	closedAt         int64
	interveningImport bool
}

// Committer commits transactions into a ChangeStore, implementing the
// merge-into-previous-change rule of spec.md §4.4.
type Committer struct {
	store         *oplog.ChangeStore
	mergeInterval time.Duration
	last          map[version.PeerID]*lastChangeByPeer
}

func NewCommitter(store *oplog.ChangeStore, mergeInterval time.Duration) *Committer {
	return &Committer{store: store, mergeInterval: mergeInterval, last: make(map[version.PeerID]*lastChangeByPeer)}
}

// NotifyRemoteImport marks peer's merge chain as broken by an intervening
// remote integration, per "merge does not cross ... after an intervening
// remote integration".
func (c *Committer) NotifyRemoteImport(peer version.PeerID) {
	if l, ok := c.last[peer]; ok {
		l.interveningImport = true
	}
}

// Commit materializes t's buffered ops into the store, either by
// appending a new Change or merging into the previous one.
//
// isExplicit distinguishes an explicit commit() call from an implicit one
// triggered by export: an empty explicit commit consumes and discards
// pending options; an empty implicit commit preserves them (spec.md §4.4).
func (c *Committer) Commit(t *Transaction, nowMillis int64, isExplicit bool) (*oplog.Change, error) {
	opts := CommitOptions{}
	if t.pending != nil {
		opts = *t.pending
	}
	if opts.Timestamp == 0 {
		opts.Timestamp = nowMillis
	}

	if len(t.ops) == 0 {
		if isExplicit {
			t.ClearNextCommitOptions()
		}
		return nil, nil
	}

	vv := c.store.VersionVector()
	startCounter := vv[t.peer]
	frontiers := c.store.Frontiers()
	deps := elideSelfDep(frontiers, t.peer, startCounter)

	lamport := c.NextLamport()

	opsLen := int32(len(t.ops))
	for i := range t.ops {
		t.ops[i].Counter = startCounter + version.Counter(i)
	}

	if prev, ok := c.last[t.peer]; ok && c.mergeable(prev, opts, nowMillis, startCounter) {
		c.store.ExtendMergedChange(prev.change, t.ops, opsLen)
		prev.closedAt = opts.Timestamp
		prev.origin = opts.Origin
		t.ops = nil
		t.ClearNextCommitOptions()
		return prev.change, nil
	}

	change := &oplog.Change{
		ID:        version.ID{Peer: t.peer, Counter: startCounter},
		Lamport:   lamport,
		Timestamp: opts.Timestamp,
		Deps:      deps,
		Ops:       append([]oplog.Op(nil), t.ops...),
		Len:       opsLen,
		Message:   opts.Message,
	}
	if err := c.store.Append(change); err != nil {
		return nil, err
	}
	c.last[t.peer] = &lastChangeByPeer{change: change, origin: opts.Origin, closedAt: opts.Timestamp}
	t.ops = nil
	t.ClearNextCommitOptions()
	return change, nil
}

// NextLamport reports the lamport value the next op buffered for peer
// would receive if committed right now, whether that commit ends up
// merging into the still-open previous Change or starting a new one: both
// cases resolve to "one past the peer's current frontier tip", since a
// mergeable previous Change's tip is always exactly the store's frontier
// entry for that peer. Container handles call this once per transaction
// (caching the result) to assign element identity (IdLp) at local-apply
// time, before the transaction is committed.
func (c *Committer) NextLamport() version.Lamport {
	var lamport version.Lamport
	for _, d := range c.store.Frontiers() {
		if dc, _, ok := c.store.Get(d); ok {
			end := dc.Lamport + version.Lamport(dc.Len) - 1
			if end+1 > lamport {
				lamport = end + 1
			}
		}
	}
	return lamport
}

func (c *Committer) mergeable(prev *lastChangeByPeer, opts CommitOptions, nowMillis int64, startCounter version.Counter) bool {
	if prev.interveningImport {
		return false
	}
	if prev.origin != opts.Origin {
		return false
	}
	if time.Duration(nowMillis-prev.closedAt)*time.Millisecond > c.mergeInterval {
		return false
	}
	// Contiguity: nothing else may have been appended for this peer since
	// prev closed (no intervening change pushed the counter forward).
	return prev.change.End().Counter == startCounter
}

// elideSelfDep drops a peer's own most recent contiguous run from its
// frontier dep set: a change always implicitly depends on its own
// predecessor, so that dependency is never listed explicitly.
func elideSelfDep(f version.Frontiers, peer version.PeerID, startCounter version.Counter) version.Frontiers {
	out := make(version.Frontiers, 0, len(f))
	for _, id := range f {
		if id.Peer == peer && id.Counter == startCounter-1 {
			continue
		}
		out = append(out, id)
	}
	return out
}
