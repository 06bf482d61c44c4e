// Package event implements subscription registries and EventBatch dispatch
// on a microtask-equivalent boundary (spec.md §4.7): a commit or import
// schedules its batch to run after the current mutation returns, so nested
// mutations from within a subscriber form a fresh batch rather than
// interleaving with the one in flight.
//
// Grounded on the teacher's internal/network/network_manager.go
// (handlers map[MessageType][]MessageHandler + OnMessage registration),
// generalized from wire-protocol message dispatch to local diff-event
// dispatch keyed by container id and by the document-wide/local-updates
// levels spec.md §4.7 requires.
package event

import (
	"sync"

	"github.com/loro-dev/loro/internal/cid"
	"github.com/loro-dev/loro/internal/diff"
	"github.com/loro-dev/loro/internal/version"
)

// By discriminates what caused a batch (spec.md §4.7): by=import never
// fires for local commits or checkout, by=local never fires for remote
// ops, by=checkout fires once per checkout even if also an import (import
// wins when both occur in the same call).
type By int

const (
	ByLocal By = iota
	ByImport
	ByCheckout
)

// ContainerEvent is one container's diff within a batch.
type ContainerEvent struct {
	Target cid.ContainerID
	Path   []string
	Diff   diff.Diff
}

// Batch is the unit of delivery to subscribers (spec.md §4.7).
type Batch struct {
	Origin string
	By     By
	From   version.Frontiers
	To     version.Frontiers
	Events []ContainerEvent
}

// Handler receives a Batch.
type Handler func(Batch)

// Dispatcher owns the subscription registries and the microtask-equivalent
// delivery queue: a buffered channel drained by one dedicated goroutine,
// so that handlers never run re-entrantly inside the call that produced
// their batch, and are always invoked in production order.
type Dispatcher struct {
	subMu         sync.RWMutex
	docSubs       []Handler
	localSubs     []Handler
	containerSubs map[cid.ContainerID][]Handler

	queue chan Batch
	done  chan struct{}
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		containerSubs: make(map[cid.ContainerID][]Handler),
		queue:         make(chan Batch, 64),
		done:          make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	for {
		select {
		case b, ok := <-d.queue:
			if !ok {
				close(d.done)
				return
			}
			d.deliver(b)
		}
	}
}

// deliver snapshots the subscriber lists under the read lock, then invokes
// handlers outside it: Subscribe* can safely be called from within a
// handler without deadlocking on subMu, and registering a subscriber from
// another goroutine mid-delivery can never race with these reads.
func (d *Dispatcher) deliver(b Batch) {
	d.subMu.RLock()
	docSubs := append([]Handler(nil), d.docSubs...)
	var localSubs []Handler
	if b.By == ByLocal {
		localSubs = append([]Handler(nil), d.localSubs...)
	}
	containerSubs := make([][]Handler, len(b.Events))
	for i, ev := range b.Events {
		containerSubs[i] = append([]Handler(nil), d.containerSubs[ev.Target]...)
	}
	d.subMu.RUnlock()

	for _, h := range docSubs {
		h(b)
	}
	for _, h := range localSubs {
		h(b)
	}
	for _, hs := range containerSubs {
		for _, h := range hs {
			h(b)
		}
	}
}

// Subscribe registers a document-level handler, invoked for every batch.
func (d *Dispatcher) Subscribe(h Handler) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	d.docSubs = append(d.docSubs, h)
}

// SubscribeLocalUpdates registers a handler invoked only for By=ByLocal
// batches.
func (d *Dispatcher) SubscribeLocalUpdates(h Handler) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	d.localSubs = append(d.localSubs, h)
}

// SubscribeContainer registers a handler invoked only for batches touching
// target.
func (d *Dispatcher) SubscribeContainer(target cid.ContainerID, h Handler) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	d.containerSubs[target] = append(d.containerSubs[target], h)
}

// Emit schedules b for asynchronous delivery, never blocking the caller
// longer than it takes to enqueue.
func (d *Dispatcher) Emit(b Batch) {
	d.queue <- b
}

// Close stops the dispatch goroutine once all queued batches have drained.
func (d *Dispatcher) Close() {
	close(d.queue)
	<-d.done
}
