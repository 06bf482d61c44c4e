// Package oplog implements the append-only change log of spec.md §4.1/§4.2:
// Change/Op records, a causal DAG keyed by (peer, counter) identity, and
// pending-dependency buffering for imports that arrive before their causal
// ancestors.
//
// Grounded on the teacher's internal/storage/storage.go (FileStorage's
// Insert/Find/FindAll shape, generalized from "one JSON file per document"
// to "append-only change blocks backed by a kvstore"), and on
// internal/collection/distributed_collection.go's operationLog/
// pruneOperationLog/broadcastOperation for append/prune discipline.
package oplog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/loroerr"
	"github.com/loro-dev/loro/internal/version"
)

// Op is one atomic mutation against a single container. Content is opaque
// here (container packages define their own concrete payload types) to
// avoid an import cycle between oplog and container.
type Op struct {
	Container cid.ContainerID
	Counter   version.Counter // absolute counter of this op; Counter - Change.ID.Counter gives its offset within the Change
	Content   any
}

// Change is a batch of Ops committed atomically by one peer, the unit of
// causality and of on-disk storage (spec.md §4.2, §6.5).
type Change struct {
	ID        version.ID
	Lamport   version.Lamport
	Timestamp int64 // unix millis; informational only, never used for ordering
	Deps      version.Frontiers
	Ops       []Op
	Len       int32 // number of counter slots consumed; Ops may be fewer if merged
	Message   string
}

func (c Change) End() version.ID { return c.ID.Inc(c.Len) }

func (c Change) Span() version.IdSpan {
	return version.IdSpan{Peer: c.ID.Peer, Start: c.ID.Counter, Length: c.Len}
}

// ChangeStore holds the full causal history for one document. It is not
// itself durable; internal/codec persists snapshots of it through
// internal/kvstore, mirroring the teacher's "in-memory collection synced to
// FileStorage on demand" split rather than write-through-on-every-op.
type ChangeStore struct {
	mu sync.RWMutex

	// byPeer holds each peer's changes ordered by counter, mirroring a
	// per-peer append log.
	byPeer map[version.PeerID][]*Change

	vv        version.VersionVector
	frontiers version.Frontiers

	// pending holds changes whose Deps are not yet satisfied, keyed by the
	// ID of the first missing dependency that blocks them.
	pending map[version.ID][]*Change
}

func NewChangeStore() *ChangeStore {
	return &ChangeStore{
		byPeer:    make(map[version.PeerID][]*Change),
		vv:        version.NewVersionVector(),
		frontiers: nil,
		pending:   make(map[version.ID][]*Change),
	}
}

// VersionVector returns a clone of the store's current version vector.
func (s *ChangeStore) VersionVector() version.VersionVector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vv.Clone()
}

// Frontiers returns a clone of the store's current frontiers.
func (s *ChangeStore) Frontiers() version.Frontiers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frontiers.Clone()
}

// Get returns the Change containing id, and the offset of id within it.
func (s *ChangeStore) Get(id version.ID) (*Change, int32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	changes := s.byPeer[id.Peer]
	// changes are append-ordered by counter; binary search on start counter.
	i := sort.Search(len(changes), func(i int) bool {
		return changes[i].ID.Counter > id.Counter
	}) - 1
	if i < 0 {
		return nil, 0, false
	}
	c := changes[i]
	if !c.Span().ContainsCounter(id.Counter) {
		return nil, 0, false
	}
	return c, id.Counter - c.ID.Counter, true
}

// Contains reports whether id has already been recorded.
func (s *ChangeStore) Contains(id version.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return id.Counter < s.vv[id.Peer]
}

// ExtendMergedChange grows an already-appended Change in place (used by
// txn's commit-merge path, spec.md §4.4) by appending ops and advancing the
// store's version vector to match the change's new end counter. The caller
// must already hold the only reference to c via a prior Append.
func (s *ChangeStore) ExtendMergedChange(c *Change, newOps []Op, addedLen int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Ops = append(c.Ops, newOps...)
	c.Len += addedLen
	s.vv.SetEnd(c.ID.Peer, c.End().Counter)

	newTip := c.ID.Inc(c.Len - 1)
	for i, id := range s.frontiers {
		if id.Peer == c.ID.Peer {
			s.frontiers[i] = newTip
			return
		}
	}
	s.frontiers = append(s.frontiers, newTip)
}

// Append records a locally-authored change: its Deps must already be the
// store's current frontiers, and its ID.Counter must immediately follow the
// peer's last recorded change.
func (s *ChangeStore) Append(c *Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(c)
}

func (s *ChangeStore) appendLocked(c *Change) error {
	expected := s.vv[c.ID.Peer]
	if c.ID.Counter != expected {
		return fmt.Errorf("oplog: change %s out of order, expected counter %d: %w", c.ID, expected, loroerr.ErrVersionMismatch)
	}
	s.byPeer[c.ID.Peer] = append(s.byPeer[c.ID.Peer], c)
	s.vv.SetEnd(c.ID.Peer, c.End().Counter)
	s.frontiers = advanceFrontiers(s.frontiers, c)
	return nil
}

// advanceFrontiers drops any frontier entries c depends on and adds c's own
// end ID, matching the minimal-antichain definition in spec.md's GLOSSARY.
func advanceFrontiers(f version.Frontiers, c *Change) version.Frontiers {
	depSet := make(map[version.ID]bool, len(c.Deps))
	for _, d := range c.Deps {
		depSet[d] = true
	}
	out := make(version.Frontiers, 0, len(f)+1)
	for _, id := range f {
		if !depSet[id] {
			out = append(out, id)
		}
	}
	out = append(out, c.ID.Inc(c.Len-1))
	return out
}

// Import records a remotely-received change, buffering it in pending if its
// Deps aren't all satisfied yet, and recursively draining any pending
// changes that become satisfied as a result. It returns the set of change
// IDs actually applied (for event/diff emission upstream).
func (s *ChangeStore) Import(c *Change) ([]version.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID.Counter < s.vv[c.ID.Peer] {
		return nil, nil // already known; import is idempotent
	}

	missing, ok := s.firstMissingDepLocked(c)
	if !ok {
		s.pending[missing] = append(s.pending[missing], c)
		return nil, nil
	}

	applied := []version.ID{}
	queue := []*Change{c}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.ID.Counter < s.vv[cur.ID.Peer] {
			continue // became redundant via another path in this batch
		}
		if err := s.appendLocked(cur); err != nil {
			return applied, err
		}
		applied = append(applied, cur.ID)

		for offset := int32(0); offset < cur.Len; offset++ {
			dependents := s.pending[cur.ID.Inc(offset)]
			if len(dependents) == 0 {
				continue
			}
			delete(s.pending, cur.ID.Inc(offset))
			for _, dep := range dependents {
				if _, ok := s.firstMissingDepLocked(dep); ok {
					queue = append(queue, dep)
				} else {
					// still missing something else; re-buffer under the new blocker
					newMissing, _ := s.firstMissingDepLocked(dep)
					s.pending[newMissing] = append(s.pending[newMissing], dep)
				}
			}
		}
	}
	return applied, nil
}

// firstMissingDepLocked reports the first dependency of c not yet satisfied
// by s.vv — the implicit same-peer predecessor (counter-1) when c leaves a
// counter gap, else the first unsatisfied Dep — or ok=true if all are
// satisfied (missing is the zero ID).
func (s *ChangeStore) firstMissingDepLocked(c *Change) (missing version.ID, ok bool) {
	if c.ID.Counter > s.vv[c.ID.Peer] {
		return version.ID{Peer: c.ID.Peer, Counter: c.ID.Counter - 1}, false
	}
	for _, d := range c.Deps {
		if d.Counter >= s.vv[d.Peer] {
			return d, false
		}
	}
	return version.ID{}, true
}

// PendingCount returns the number of changes buffered awaiting dependencies,
// for diagnostics/metrics.
func (s *ChangeStore) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, v := range s.pending {
		n += len(v)
	}
	return n
}

// Iterate walks every recorded change in an order consistent with the
// causal DAG (a peer's changes never precede one of their own dependencies)
// by sorting all changes once by (lamport, peer): a change's lamport always
// exceeds its dependencies', so this order is causal and deterministic, the
// merge order container packages rely on.
func (s *ChangeStore) Iterate(fn func(*Change) bool) {
	s.mu.RLock()
	all := make([]*Change, 0)
	for _, cs := range s.byPeer {
		all = append(all, cs...)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Lamport != all[j].Lamport {
			return all[i].Lamport < all[j].Lamport
		}
		return all[i].ID.Peer < all[j].ID.Peer
	})
	for _, c := range all {
		if !fn(c) {
			return
		}
	}
}

// VersionVectorAt computes the version vector implied by an arbitrary
// frontiers value, which need not be the store's current tip (spec.md §4.5
// checkout). It walks the causal closure: each Deps edge, plus the implicit
// same-peer predecessor edge that txn's elideSelfDep never records
// explicitly.
func (s *ChangeStore) VersionVectorAt(frontiers version.Frontiers) (version.VersionVector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vv := version.NewVersionVector()
	visited := make(map[version.ID]bool)
	queue := append(version.Frontiers(nil), frontiers...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		changes := s.byPeer[id.Peer]
		i := sort.Search(len(changes), func(i int) bool {
			return changes[i].ID.Counter > id.Counter
		}) - 1
		if i < 0 || !changes[i].Span().ContainsCounter(id.Counter) {
			return nil, fmt.Errorf("oplog: %s: %w", id, loroerr.ErrUnknownFrontier)
		}
		c := changes[i]
		if end := id.Counter + 1; end > vv[id.Peer] {
			vv[id.Peer] = end
		}
		queue = append(queue, c.Deps...)
		if c.ID.Counter > 0 {
			queue = append(queue, version.ID{Peer: id.Peer, Counter: c.ID.Counter - 1})
		}
	}
	return vv, nil
}

// ChangesSince returns every change not yet covered by vv, in causal order,
// for incremental export (spec.md §6.3 FastUpdates).
func (s *ChangeStore) ChangesSince(vv version.VersionVector) []*Change {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Change
	for peer, changes := range s.byPeer {
		start := vv[peer]
		for _, c := range changes {
			if c.End().Counter > start {
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Lamport != out[j].Lamport {
			return out[i].Lamport < out[j].Lamport
		}
		return out[i].ID.Peer < out[j].ID.Peer
	})
	return out
}

// GetAtLamport returns the Change from peer whose Lamport range contains
// lamport (get_change_at_lamport, spec.md §6.7). A peer's changes are
// appended in counter order, and lamport is non-decreasing with counter
// within one peer (each change's lamport is 1+max(dep lamports), and a
// peer's own previous change is always an implicit dep), so counter order
// is also lamport order here.
func (s *ChangeStore) GetAtLamport(peer version.PeerID, lamport version.Lamport) (*Change, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	changes := s.byPeer[peer]
	i := sort.Search(len(changes), func(i int) bool {
		return changes[i].Lamport+version.Lamport(changes[i].Len) > lamport
	})
	if i >= len(changes) || lamport < changes[i].Lamport {
		return nil, false
	}
	return changes[i], true
}

// TravelAncestors walks the causal ancestry of frontiers in the same order
// VersionVectorAt traverses (each change's explicit Deps plus the implicit
// same-peer predecessor edge), invoking visit once per distinct Change
// reached. Stops early if visit returns false (travel_change_ancestors,
// spec.md §6.7).
func (s *ChangeStore) TravelAncestors(frontiers version.Frontiers, visit func(*Change) bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visitedIDs := make(map[version.ID]bool)
	visitedChanges := make(map[*Change]bool)
	queue := append(version.Frontiers(nil), frontiers...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visitedIDs[id] {
			continue
		}
		visitedIDs[id] = true

		changes := s.byPeer[id.Peer]
		i := sort.Search(len(changes), func(i int) bool {
			return changes[i].ID.Counter > id.Counter
		}) - 1
		if i < 0 || !changes[i].Span().ContainsCounter(id.Counter) {
			return fmt.Errorf("oplog: %s: %w", id, loroerr.ErrUnknownFrontier)
		}
		c := changes[i]
		if !visitedChanges[c] {
			visitedChanges[c] = true
			if !visit(c) {
				return nil
			}
		}
		queue = append(queue, c.Deps...)
		if c.ID.Counter > 0 {
			queue = append(queue, version.ID{Peer: id.Peer, Counter: c.ID.Counter - 1})
		}
	}
	return nil
}

// DiffBetweenFrontiers resolves a and b to version vectors and reports, per
// peer, the counter span present in b but not a (forward) and the span
// present in a but not b (retreat) — spec.md §4.2's
// diff_between_frontiers.
func (s *ChangeStore) DiffBetweenFrontiers(a, b version.Frontiers) (forward, retreat []version.IdSpan, err error) {
	avv, err := s.VersionVectorAt(a)
	if err != nil {
		return nil, nil, err
	}
	bvv, err := s.VersionVectorAt(b)
	if err != nil {
		return nil, nil, err
	}
	peers := make(map[version.PeerID]bool, len(avv)+len(bvv))
	for p := range avv {
		peers[p] = true
	}
	for p := range bvv {
		peers[p] = true
	}
	for p := range peers {
		ac, bc := avv[p], bvv[p]
		if bc > ac {
			forward = append(forward, version.IdSpan{Peer: p, Start: ac, Length: int32(bc - ac)})
		}
		if ac > bc {
			retreat = append(retreat, version.IdSpan{Peer: p, Start: bc, Length: int32(ac - bc)})
		}
	}
	return forward, retreat, nil
}

// TrimBefore discards every Change entirely covered by vv from this store,
// for replace_with_shallow (spec.md §4.5): history strictly before the new
// shallow root is dropped so it can no longer be exported or checked out
// to. A change only partially covered by vv (vv falls mid-change) is kept
// whole — the shallow root always lands on a change boundary in practice
// since it is derived from a Frontiers value, itself always a change's end
// id.
func (s *ChangeStore) TrimBefore(vv version.VersionVector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for peer, changes := range s.byPeer {
		end := vv[peer]
		i := sort.Search(len(changes), func(i int) bool {
			return changes[i].End().Counter > end
		})
		if i > 0 {
			s.byPeer[peer] = append([]*Change(nil), changes[i:]...)
		}
	}
}
