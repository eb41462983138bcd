package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestPutAndGetBlock(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	b := types.Block{StateHash: "A", PreviousStateHash: "G", Height: 1, GlobalSlot: 1}
	require.NoError(t, s.PutBlock(ctx, b))

	got, found, err := s.GetBlock(ctx, "A")
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, got.Equal(b))

	_, found, err = s.GetBlock(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)
}

func TestGetBlocksAtHeightAcrossForks(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.PutBlock(ctx, types.Block{StateHash: "A", Height: 1}))
	require.NoError(t, s.PutBlock(ctx, types.Block{StateHash: "Ap", Height: 1}))
	require.NoError(t, s.PutBlock(ctx, types.Block{StateHash: "B", Height: 2}))

	blocks, err := s.GetBlocksAtHeight(ctx, 1)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
}

func TestSetCanonicityByDiffWritesAndClearsIndex(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	d := types.CanonicityDiff{StateHash: "A", Height: 5, GlobalSlot: 50}

	require.NoError(t, s.SetCanonicityByDiff(ctx, d, types.Canonical))
	sh, found, err := s.CanonicalHashAtHeight(ctx, 5)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, types.StateHash("A"), sh)

	require.NoError(t, s.SetCanonicityByDiff(ctx, d, types.Orphaned))
	_, found, err = s.CanonicalHashAtHeight(ctx, 5)
	require.NoError(t, err)
	require.False(t, found)

	c, err := s.GetCanonicity(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, types.Orphaned, c)
}

func TestBestTipRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_, found, err := s.BestTip(ctx)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.SetBestTip(ctx, "A"))
	sh, found, err := s.BestTip(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, types.StateHash("A"), sh)
}

func TestEventLogAppendsInOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seq0, err := s.AppendEvent(ctx, []byte("first"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), seq0)

	seq1, err := s.AppendEvent(ctx, []byte("second"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), seq1)

	var seen [][]byte
	require.NoError(t, s.ForEachEvent(ctx, func(seq uint64, payload []byte) error {
		seen = append(seen, payload)
		return nil
	}))
	require.Equal(t, [][]byte{[]byte("first"), []byte("second")}, seen)
}

func TestUsernameHistoryAccumulates(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.SetUsername(ctx, "alice", "first"))
	require.NoError(t, s.SetUsername(ctx, "alice", "second"))

	name, found, err := s.GetUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "second", name)
}

func TestZkappEventsAppendAndCount(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.AppendZkappEvent(ctx, types.DefaultToken, "alice", []byte("event-1")))
	require.NoError(t, s.AppendZkappEvent(ctx, types.DefaultToken, "alice", []byte("event-2")))

	count, err := s.ZkappEventCount(ctx, types.DefaultToken, "alice")
	require.NoError(t, err)
	require.Equal(t, uint32(2), count)

	events, err := s.ZkappEvents(ctx, types.DefaultToken, "alice")
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("event-1"), []byte("event-2")}, events)
}

func TestChainIDIsRecordedOnce(t *testing.T) {
	s := openTestStore(t)
	id, err := s.ChainID()
	require.NoError(t, err)
	require.Empty(t, id)

	require.NoError(t, s.SetChainID("mainnet"))
	id, err = s.ChainID()
	require.NoError(t, err)
	require.Equal(t, "mainnet", id)
}

func TestCheckVersionRejectsDowngrade(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.CheckVersion(DBVersion{Major: 2}))
	err := s.CheckVersion(DBVersion{Major: 1})
	require.Error(t, err)
}
