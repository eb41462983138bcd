package actor

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Node is one stage of the pipeline: a pure-ish function from an inbound
// event to zero or more outbound events. Implementations may have side
// effects (writing to the store) but must not block on anything other
// than ctx and their own I/O.
type Node interface {
	Name() string
	Handles() Kind
	Handle(ctx context.Context, ev Event) ([]Event, error)
}

// DAG wires a fixed node set into a fan-out pipeline keyed by event Kind:
// every node registered for a Kind receives every event of that Kind.
// Mailboxing is a single buffered channel (spec.md §5 "bounded
// mailboxes"); backpressure is the channel's own blocking-send semantics.
type DAG struct {
	ctx    context.Context
	cancel context.CancelFunc

	mailbox chan Event
	nodes   map[Kind][]Node
	feed    *event.Feed

	pending sync.WaitGroup
	workers sync.WaitGroup

	mu       sync.Mutex
	firstErr error
}

// New builds a DAG whose mailbox holds up to mailboxCap undelivered
// events before Emit blocks.
func New(ctx context.Context, mailboxCap int, nodes ...Node) *DAG {
	ctx, cancel := context.WithCancel(ctx)
	d := &DAG{
		ctx:     ctx,
		cancel:  cancel,
		mailbox: make(chan Event, mailboxCap),
		nodes:   make(map[Kind][]Node),
		feed:    new(event.Feed),
	}
	for _, n := range nodes {
		d.nodes[n.Handles()] = append(d.nodes[n.Handles()], n)
	}
	return d
}

// Subscribe returns every event the DAG processes on ch, for progress
// reporting or tests. Mirrors ChainService.CanonicalBlockFeed.
func (d *DAG) Subscribe(ch chan<- Event) event.Subscription {
	return d.feed.Subscribe(ch)
}

// Emit injects an event into the DAG. Safe for concurrent callers; blocks
// while the mailbox is full or returns immediately once the DAG has been
// cancelled.
func (d *DAG) Emit(ev Event) {
	d.pending.Add(1)
	select {
	case d.mailbox <- ev:
	case <-d.ctx.Done():
		d.pending.Done()
	}
}

// Run starts workerCount goroutines draining the mailbox.
func (d *DAG) Run(workerCount int) {
	for i := 0; i < workerCount; i++ {
		d.workers.Add(1)
		go d.worker()
	}
}

func (d *DAG) worker() {
	defer d.workers.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case ev := <-d.mailbox:
			d.process(ev)
		}
	}
}

// process hands ev to every subscribed node, re-emitting outputs before
// marking ev itself done — Add happens before the parent's Done so the
// WaitGroup can never observe zero while descendants are still unsent.
func (d *DAG) process(ev Event) {
	defer d.pending.Done()
	d.feed.Send(ev)
	for _, n := range d.nodes[ev.Kind] {
		out, err := n.Handle(d.ctx, ev)
		if err != nil {
			d.recordErr(errors.Wrapf(err, "actor %s", n.Name()))
			log.WithError(err).WithField("actor", n.Name()).Error("actor failed")
			continue
		}
		for _, o := range out {
			d.Emit(o)
		}
	}
}

func (d *DAG) recordErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.firstErr == nil {
		d.firstErr = err
	}
}

// WaitQuiescent blocks until no event is in flight or queued anywhere in
// the DAG (spec.md §5 "quiescence"), then stops all workers and returns
// the first actor error observed, if any.
func (d *DAG) WaitQuiescent() error {
	done := make(chan struct{})
	go func() {
		d.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-d.ctx.Done():
	}
	d.cancel()
	d.workers.Wait()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firstErr
}

// Shutdown cancels the DAG without waiting for quiescence.
func (d *DAG) Shutdown() {
	d.cancel()
	d.workers.Wait()
}
