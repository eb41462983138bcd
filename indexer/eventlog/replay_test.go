package eventlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prysmaticlabs/mina-indexer/indexer/tree"
	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

type fakeEventSource struct {
	payloads [][]byte
}

func (f *fakeEventSource) append(ev Event) {
	payload, err := Encode(ev)
	if err != nil {
		panic(err)
	}
	f.payloads = append(f.payloads, payload)
}

func (f *fakeEventSource) ForEachEvent(ctx context.Context, fn func(seq uint64, payload []byte) error) error {
	for i, p := range f.payloads {
		if err := fn(uint64(i), p); err != nil {
			return err
		}
	}
	return nil
}

func genesisNode() tree.Node {
	return tree.Node{StateHash: "G", Height: 0}
}

func TestReplayReconvergesToSameBestTipAsLiveInsertOrder(t *testing.T) {
	live := tree.New(genesisNode())
	blocks := []types.Block{
		{StateHash: "A", PreviousStateHash: "G", Height: 1},
		{StateHash: "B", PreviousStateHash: "A", Height: 2},
		{StateHash: "C", PreviousStateHash: "B", Height: 3},
	}

	src := &fakeEventSource{}
	for _, b := range blocks {
		outcome, _ := live.Insert(tree.Node{
			StateHash: b.StateHash, ParentHash: b.PreviousStateHash, Height: b.Height,
		})
		src.append(Event{Kind: NewBlock, Block: b, Outcome: outcome})
	}

	replayed, err := Replay(context.Background(), src, genesisNode())
	require.NoError(t, err)
	require.Equal(t, live.BestTip(), replayed.BestTip())
}

func TestReplaySkipsNonNewBlockEvents(t *testing.T) {
	src := &fakeEventSource{}
	src.append(Event{Kind: NewStakingLedger, LedgerHash: "L", StakingEpoch: 1})
	src.append(Event{Kind: NewBlock, Block: types.Block{StateHash: "A", PreviousStateHash: "G", Height: 1}})

	replayed, err := Replay(context.Background(), src, genesisNode())
	require.NoError(t, err)
	require.Equal(t, types.StateHash("A"), replayed.BestTip().StateHash)
}

func TestReplayPropagatesDecodeError(t *testing.T) {
	src := &fakeEventSource{payloads: [][]byte{[]byte("not a gob payload")}}
	_, err := Replay(context.Background(), src, genesisNode())
	require.Error(t, err)
}
