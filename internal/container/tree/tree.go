// Package tree implements the Tree container of spec.md §4.3.4:
// fractional-indexed children, deletion via move-to-a-reserved-parent,
// and deterministic cycle rejection on concurrent moves.
//
// Grounded on the teacher's crdt_resolver.go (lamport desc, peer desc)
// tie-break, applied here to "which concurrent move of a node wins" rather
// than to a document-wide LWW field.
package tree

import (
	"bytes"
	"sort"

	"github.com/loro-dev/loro/internal/container/crdtcommon"
	"github.com/loro-dev/loro/internal/loroerr"
)

// DeletedParent is the reserved pseudo-parent node id used to represent
// deletion (spec.md: "a move to a reserved 'deleted' pseudo-parent").
const DeletedParent = "deleted"

// node holds one tree node's current position (parent + fractional index)
// plus the position it was created at, which moves reset to on replay.
type node struct {
	id           string
	createParent string
	createFrac   []byte
	parent       string // "" = root, DeletedParent = tombstoned
	frac         []byte
}

// moveRecord is one integrated Move op, kept so the tree can be replayed
// from scratch in priority order whenever a new concurrent move arrives.
type moveRecord struct {
	seq       int
	target    string
	newParent string
	frac      []byte
	stamp     crdtcommon.Stamp
}

// Tree is the in-memory state of a Tree container.
type Tree struct {
	nodes    map[string]*node
	children map[string][]string // parent id -> child ids, kept sorted by frac
	moves    []moveRecord
	nextSeq  int
}

func New() *Tree {
	return &Tree{nodes: make(map[string]*node), children: make(map[string][]string)}
}

// CreateNode creates id as a new node under parent ("" for root) at frac.
func (tr *Tree) CreateNode(id, parent string, frac []byte, stamp crdtcommon.Stamp) {
	n := &node{id: id, parent: parent, frac: frac, createParent: parent, createFrac: frac}
	tr.nodes[id] = n
	tr.insertChild(parent, id, frac)
}

func (tr *Tree) insertChild(parent, id string, frac []byte) {
	siblings := tr.children[parent]
	i := sort.Search(len(siblings), func(i int) bool {
		return bytes.Compare(tr.nodes[siblings[i]].frac, frac) > 0
	})
	siblings = append(siblings, "")
	copy(siblings[i+1:], siblings[i:])
	siblings[i] = id
	tr.children[parent] = siblings
}

func (tr *Tree) removeChild(parent, id string) {
	siblings := tr.children[parent]
	for i, s := range siblings {
		if s == id {
			tr.children[parent] = append(siblings[:i], siblings[i+1:]...)
			return
		}
	}
}

// moveOutcome reports what happened to the move just appended once the full
// replay in Move settles.
type moveOutcome int

const (
	outcomeApplied moveOutcome = iota
	outcomeLostToHigherPriority
	outcomeCycle
)

// Move repositions target under newParent at frac. Because two different
// nodes' concurrent moves can form a mutual cycle (spec.md §8 S3: P1 moves B
// under A while P2 concurrently moves A under B), the winner can't be
// decided by the order moves happen to be applied in — whichever side
// arrives first would otherwise win regardless of priority. Instead every
// Move op integrated so far is kept, and the whole tree is recomputed from
// creation positions by replaying all of them in a single fixed order,
// highest (lamport, peer) first: the first move seen for a given target
// wins outright, and every later, lower-priority move for the same target
// — including one that would only create a cycle because the winner was
// applied first — becomes a no-op. This makes the result depend only on
// the (lamport, peer) pairs involved, not on arrival order.
func (tr *Tree) Move(target, newParent string, frac []byte, stamp crdtcommon.Stamp) error {
	if _, ok := tr.nodes[target]; !ok {
		return loroerr.ErrContainerNotFound
	}
	seq := tr.nextSeq
	tr.nextSeq++
	tr.moves = append(tr.moves, moveRecord{seq: seq, target: target, newParent: newParent, frac: frac, stamp: stamp})

	switch tr.rebuild(seq) {
	case outcomeCycle:
		return loroerr.ErrCyclicMove
	default:
		return nil // applied, or lost to a higher-priority concurrent move: either way, not an error
	}
}

// rebuild resets every node to its creation position and replays tr.moves
// in descending (lamport, peer) priority order, applying each move that
// doesn't cycle against state as decided so far and skipping every move
// whose target already has a higher-priority decision. It returns the
// outcome for the move whose seq is watchSeq.
func (tr *Tree) rebuild(watchSeq int) moveOutcome {
	for _, n := range tr.nodes {
		n.parent = n.createParent
		n.frac = n.createFrac
	}
	tr.children = make(map[string][]string)
	for id, n := range tr.nodes {
		tr.insertChild(n.parent, id, n.frac)
	}

	sorted := append([]moveRecord(nil), tr.moves...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return crdtcommon.Wins(sorted[i].stamp, sorted[j].stamp)
	})

	decided := make(map[string]bool, len(sorted))
	result := outcomeLostToHigherPriority
	for _, mv := range sorted {
		if decided[mv.target] {
			if mv.seq == watchSeq {
				result = outcomeLostToHigherPriority
			}
			continue
		}
		decided[mv.target] = true

		if mv.newParent != DeletedParent && tr.wouldCycle(mv.target, mv.newParent) {
			if mv.seq == watchSeq {
				result = outcomeCycle
			}
			continue
		}

		n := tr.nodes[mv.target]
		tr.removeChild(n.parent, mv.target)
		n.parent = mv.newParent
		n.frac = mv.frac
		tr.insertChild(mv.newParent, mv.target, mv.frac)

		if mv.seq == watchSeq {
			result = outcomeApplied
		}
	}
	return result
}

// wouldCycle reports whether newParent is target itself or a descendant of
// target, which would introduce a cycle.
func (tr *Tree) wouldCycle(target, newParent string) bool {
	cur := newParent
	seen := map[string]bool{}
	for cur != "" && cur != DeletedParent {
		if cur == target {
			return true
		}
		if seen[cur] {
			return false // already-cyclic state elsewhere; don't loop forever
		}
		seen[cur] = true
		n, ok := tr.nodes[cur]
		if !ok {
			return false
		}
		cur = n.parent
	}
	return false
}

// Delete moves target to the reserved deleted pseudo-parent.
func (tr *Tree) Delete(target string, frac []byte, stamp crdtcommon.Stamp) error {
	return tr.Move(target, DeletedParent, frac, stamp)
}

// Children returns the sibling-ordered (by fractional index) live child ids
// of parent.
func (tr *Tree) Children(parent string) []string {
	out := make([]string, 0, len(tr.children[parent]))
	out = append(out, tr.children[parent]...)
	return out
}

// Frac returns the fractional index currently backing id's sibling
// position, for callers (the public Document facade) that need to compute
// a new sibling's frac relative to an existing one.
func (tr *Tree) Frac(id string) ([]byte, bool) {
	n, ok := tr.nodes[id]
	if !ok {
		return nil, false
	}
	return n.frac, true
}

// IsDeleted reports whether id is currently hidden under the deleted
// pseudo-parent.
func (tr *Tree) IsDeleted(id string) bool {
	n, ok := tr.nodes[id]
	return ok && n.parent == DeletedParent
}

// Parent returns id's current parent ("" for root, DeletedParent if
// tombstoned).
func (tr *Tree) Parent(id string) (string, bool) {
	n, ok := tr.nodes[id]
	if !ok {
		return "", false
	}
	return n.parent, true
}

// DeepValue walks from root, skipping deleted subtrees, matching
// get_deep_value's "deleted nodes hidden" contract (spec.md §4.3.4).
func (tr *Tree) DeepValue(parent string) []string {
	var out []string
	for _, c := range tr.children[parent] {
		if tr.IsDeleted(c) {
			continue
		}
		out = append(out, c)
		out = append(out, tr.DeepValue(c)...)
	}
	return out
}

// NewFracBetween generates a fractional index byte string whose
// lexicographic value sits strictly between left and right (nil bounds
// mean "no neighbor on that side", i.e. -infinity / +infinity). Absent
// bytes of left are treated as 0x00; absent bytes of right (when right is
// non-nil) are likewise treated as 0x00, and right==nil is treated as
// "room at every digit" (0x100) so appending past a nil upper bound always
// succeeds in one step.
func NewFracBetween(left, right []byte) []byte {
	out := make([]byte, 0, 4)
	for i := 0; i < maxFracDepth; i++ {
		lb := byteAt(left, i)
		rb := 256
		if right != nil {
			rb = byteAt(right, i)
		}
		if rb-lb >= 2 {
			out = append(out, byte(lb+(rb-lb)/2))
			return out
		}
		out = append(out, byte(lb))
	}
	// Pathological case (right is a long run sharing every digit with
	// left): extend one more byte rather than returning a non-distinct key.
	return append(out, 0x80)
}

const maxFracDepth = 16

func byteAt(b []byte, i int) int {
	if i >= len(b) {
		return 0
	}
	return int(b[i])
}
