package actor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

const (
	kindStart Kind = 100 + iota
	kindMiddle
	kindEnd
)

type fnNode struct {
	name    string
	handles Kind
	fn      func(ev Event) ([]Event, error)
}

func (n *fnNode) Name() string  { return n.name }
func (n *fnNode) Handles() Kind { return n.handles }
func (n *fnNode) Handle(ctx context.Context, ev Event) ([]Event, error) {
	return n.fn(ev)
}

func TestDAGRunsMultiStagePipeline(t *testing.T) {
	var got int32
	stage1 := &fnNode{name: "stage1", handles: kindStart, fn: func(ev Event) ([]Event, error) {
		return []Event{{Kind: kindMiddle, PCBPath: ev.PCBPath}}, nil
	}}
	stage2 := &fnNode{name: "stage2", handles: kindMiddle, fn: func(ev Event) ([]Event, error) {
		return []Event{{Kind: kindEnd, PCBPath: ev.PCBPath}}, nil
	}}
	stage3 := &fnNode{name: "stage3", handles: kindEnd, fn: func(ev Event) ([]Event, error) {
		atomic.AddInt32(&got, 1)
		return nil, nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dag := New(ctx, 16, stage1, stage2, stage3)
	dag.Run(2)
	dag.Emit(Event{Kind: kindStart, PCBPath: "a"})
	dag.Emit(Event{Kind: kindStart, PCBPath: "b"})

	require.NoError(t, dag.WaitQuiescent())
	require.EqualValues(t, 2, atomic.LoadInt32(&got))
}

func TestDAGWaitQuiescentReturnsFirstActorError(t *testing.T) {
	failing := &fnNode{name: "failing", handles: kindStart, fn: func(ev Event) ([]Event, error) {
		return nil, errBoom
	}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dag := New(ctx, 16, failing)
	dag.Run(1)
	dag.Emit(Event{Kind: kindStart})

	err := dag.WaitQuiescent()
	require.Error(t, err)
	require.Contains(t, err.Error(), "failing")
}

func TestDAGEmitBlocksOnFullMailboxUntilDrained(t *testing.T) {
	var mu sync.Mutex
	release := make(chan struct{})
	blocker := &fnNode{name: "blocker", handles: kindStart, fn: func(ev Event) ([]Event, error) {
		mu.Lock()
		defer mu.Unlock()
		<-release
		return nil, nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dag := New(ctx, 1, blocker)
	dag.Run(1)

	dag.Emit(Event{Kind: kindStart})
	dag.Emit(Event{Kind: kindStart})

	emitted := make(chan struct{})
	go func() {
		dag.Emit(Event{Kind: kindStart})
		close(emitted)
	}()

	select {
	case <-emitted:
		t.Fatal("Emit should have blocked on a full mailbox")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-emitted
	require.NoError(t, dag.WaitQuiescent())
}
