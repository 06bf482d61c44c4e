package event

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/loro-dev/loro/internal/cid"
)

func TestDispatcherDeliversToDocSubscriber(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	received := make(chan Batch, 1)
	d.Subscribe(func(b Batch) { received <- b })

	d.Emit(Batch{By: ByLocal})
	b := <-received
	if b.By != ByLocal {
		t.Fatalf("got By=%v, want ByLocal", b.By)
	}
}

func TestDispatcherLocalSubsOnlySeeLocalBatches(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	var localCount, docCount int32
	d.Subscribe(func(Batch) { atomic.AddInt32(&docCount, 1) })
	d.SubscribeLocalUpdates(func(Batch) { atomic.AddInt32(&localCount, 1) })

	done := make(chan struct{}, 1)
	d.Subscribe(func(b Batch) {
		if b.By == ByImport {
			done <- struct{}{}
		}
	})

	d.Emit(Batch{By: ByLocal})
	d.Emit(Batch{By: ByImport})
	<-done

	if atomic.LoadInt32(&docCount) != 2 {
		t.Fatalf("expected doc subscriber to see both batches, got %d", docCount)
	}
	if atomic.LoadInt32(&localCount) != 1 {
		t.Fatalf("expected local subscriber to see only the local batch, got %d", localCount)
	}
}

// TestConcurrentSubscribeAndEmitIsRaceFree registers subscribers from many
// goroutines while batches are concurrently emitted and delivered, so that
// `go test -race` catches any unsynchronized access to the subscriber
// registries shared with the dispatch goroutine's deliver loop.
func TestConcurrentSubscribeAndEmitIsRaceFree(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	target := cid.ContainerID{IsRoot: true, Name: "t"}
	var wg sync.WaitGroup
	const goroutines = 10
	const perGoroutine = 20

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				d.Subscribe(func(Batch) {})
				d.SubscribeLocalUpdates(func(Batch) {})
				d.SubscribeContainer(target, func(Batch) {})
				d.Emit(Batch{By: ByLocal, Events: []ContainerEvent{{Target: target}}})
			}
		}()
	}
	wg.Wait()
}
