package eventlog

import (
	"context"

	"github.com/pkg/errors"

	"github.com/prysmaticlabs/mina-indexer/indexer/tree"
)

// EventSource is the subset of *store.Store replay needs, kept as an
// interface so tests can replay against an in-memory fake without a real
// bbolt file.
type EventSource interface {
	ForEachEvent(ctx context.Context, fn func(seq uint64, payload []byte) error) error
}

// Replay rebuilds a witness tree from the durable event log, starting at
// genesis, by re-inserting every NewBlock event's block in the order it
// was originally observed. Per spec.md §8's replay-equivalence property,
// this must converge to the same best tip as the live run that produced
// the log, since Tree.Insert is a pure function of (current tree state,
// next block) and the log preserves original insertion order.
func Replay(ctx context.Context, src EventSource, genesis tree.Node) (*tree.Tree, error) {
	t := tree.New(genesis)
	err := src.ForEachEvent(ctx, func(seq uint64, payload []byte) error {
		ev, err := Decode(payload)
		if err != nil {
			return errors.Wrapf(err, "could not decode event at seq %d", seq)
		}
		if ev.Kind != NewBlock {
			return nil
		}
		t.Insert(tree.Node{
			StateHash:  ev.Block.StateHash,
			ParentHash: ev.Block.PreviousStateHash,
			Height:     ev.Block.Height,
			Slot:       ev.Block.GlobalSlot,
			BodyRef:    ev.Block.BodyRef,
		})
		return nil
	})
	return t, err
}
