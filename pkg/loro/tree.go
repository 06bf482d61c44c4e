package loro

import (
	"fmt"

	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/container/crdtcommon"
	"github.com/loro-dev/loro/internal/container/tree"
	"github.com/loro-dev/loro/internal/diff"
	"github.com/loro-dev/loro/internal/opcontent"
	"github.com/loro-dev/loro/internal/oplog"
	"github.com/loro-dev/loro/internal/version"
)

// TreeHandle is a live reference to a Tree container (spec.md §4.3.4):
// nodes addressed by string id ("peer@lamport" of their creating op's
// IdLp, see nodeIDString),
// ordered among siblings by a fractional index.
type TreeHandle struct {
	doc    *Document
	target cid.ContainerID
	state  *tree.Tree
}

func (d *Document) GetTree(name string) (*TreeHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	target, err := d.rootContainer(name, cid.KindTree)
	if err != nil {
		return nil, err
	}
	st, ok := d.containers[target].(*tree.Tree)
	if !ok {
		st = tree.New()
		d.containers[target] = st
	}
	return &TreeHandle{doc: d, target: target, state: st}, nil
}

func (h *TreeHandle) ContainerID() cid.ContainerID { return h.target }
func (h *TreeHandle) Children(parent string) []string { return h.state.Children(parent) }
func (h *TreeHandle) IsDeleted(id string) bool        { return h.state.IsDeleted(id) }
func (h *TreeHandle) Parent(id string) (string, bool) { return h.state.Parent(id) }
func (h *TreeHandle) DeepValue(parent string) []string { return h.state.DeepValue(parent) }

// CreateNode creates a new node under parent ("" for a root-level node),
// returning the new node's id.
func (h *TreeHandle) CreateNode(parent string) (string, error) {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	if err := h.doc.checkEditableLocked(); err != nil {
		return "", err
	}
	id := h.doc.nextIdLp()
	stamp := crdtcommon.Stamp{Lamport: id.Lamport, Peer: id.Peer}
	nodeID := nodeIDString(id)

	frac := rightmostFrac(h.state, parent)
	h.state.CreateNode(nodeID, parent, frac, stamp)
	h.doc.tx.AddOp(oplog.Op{Container: h.target, Content: opcontent.TreeCreate{Parent: parent, Frac: frac}})

	idx := len(h.state.Children(parent)) - 1
	forward := diff.TreeEdit{Target: nodeID, Parent: parent, Index: idx, IsCreate: true}
	inverse := diff.TreeEdit{Target: nodeID, Parent: "deleted", IsDelete: true}
	h.doc.recordDiff(h.target, diff.Diff{Kind: diff.KindTree, Tree: []diff.TreeEdit{forward}},
		diff.Diff{Kind: diff.KindTree, Tree: []diff.TreeEdit{inverse}})
	return nodeID, nil
}

// Move reparents target under newParent, appending it as the new rightmost
// sibling. Fails with ErrCyclicMove if newParent is a descendant of target.
func (h *TreeHandle) Move(target, newParent string) error {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	if err := h.doc.checkEditableLocked(); err != nil {
		return err
	}
	oldParent, _ := h.state.Parent(target)
	id := h.doc.nextIdLp()
	stamp := crdtcommon.Stamp{Lamport: id.Lamport, Peer: id.Peer}
	frac := rightmostFrac(h.state, newParent)
	if err := h.state.Move(target, newParent, frac, stamp); err != nil {
		return err
	}
	h.doc.tx.AddOp(oplog.Op{Container: h.target, Content: opcontent.TreeMove{Target: target, NewParent: newParent, Frac: frac}})

	idx := len(h.state.Children(newParent)) - 1
	forward := diff.TreeEdit{Target: target, Parent: newParent, Index: idx}
	inverse := diff.TreeEdit{Target: target, Parent: oldParent}
	h.doc.recordDiff(h.target, diff.Diff{Kind: diff.KindTree, Tree: []diff.TreeEdit{forward}},
		diff.Diff{Kind: diff.KindTree, Tree: []diff.TreeEdit{inverse}})
	return nil
}

// Delete tombstones target (and, per the underlying Tree's DeepValue
// convention, hides its whole subtree from traversal).
func (h *TreeHandle) Delete(target string) error {
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	if err := h.doc.checkEditableLocked(); err != nil {
		return err
	}
	oldParent, _ := h.state.Parent(target)
	id := h.doc.nextIdLp()
	stamp := crdtcommon.Stamp{Lamport: id.Lamport, Peer: id.Peer}
	frac := rightmostFrac(h.state, "deleted")
	if err := h.state.Delete(target, frac, stamp); err != nil {
		return err
	}
	h.doc.tx.AddOp(oplog.Op{Container: h.target, Content: opcontent.TreeDelete{Target: target, Frac: frac}})

	forward := diff.TreeEdit{Target: target, Parent: "deleted", IsDelete: true}
	inverse := diff.TreeEdit{Target: target, Parent: oldParent}
	h.doc.recordDiff(h.target, diff.Diff{Kind: diff.KindTree, Tree: []diff.TreeEdit{forward}},
		diff.Diff{Kind: diff.KindTree, Tree: []diff.TreeEdit{inverse}})
	return nil
}

// nodeIDString derives the Tree container's string node-id convention
// (peer@lamport) from the IdLp assigned to the creating op.
func nodeIDString(id version.IdLp) string {
	return fmt.Sprintf("%d@%d", id.Peer, id.Lamport)
}

// rightmostFrac computes a fractional index placing a new sibling after
// every existing live child of parent.
func rightmostFrac(t *tree.Tree, parent string) []byte {
	children := t.Children(parent)
	if len(children) == 0 {
		return tree.NewFracBetween(nil, nil)
	}
	leftFrac, _ := t.Frac(children[len(children)-1])
	return tree.NewFracBetween(leftFrac, nil)
}
