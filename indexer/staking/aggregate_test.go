package staking_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prysmaticlabs/mina-indexer/indexer/staking"
	"github.com/prysmaticlabs/mina-indexer/indexer/store"
	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

func TestAggregateDelegationsSinglePassRollup(t *testing.T) {
	l := store.StakingLedger{
		Network: "mainnet",
		Epoch:   1,
		Entries: []store.StakingLedgerEntry{
			{PublicKey: "A", Balance: 100, Delegate: "X"},
			{PublicKey: "B", Balance: 50, Delegate: "X"},
			{PublicKey: "C", Balance: 10, Delegate: "Y"},
		},
	}

	aggs := staking.AggregateDelegations(l)
	require.Len(t, aggs, 2)

	require.Equal(t, types.PublicKey("X"), aggs[0].Delegate)
	require.Equal(t, uint32(2), aggs[0].Count)
	require.Equal(t, types.Amount(150), aggs[0].TotalStake)

	require.Equal(t, types.PublicKey("Y"), aggs[1].Delegate)
	require.Equal(t, uint32(1), aggs[1].Count)
	require.Equal(t, types.Amount(10), aggs[1].TotalStake)
}

func TestAggregateDelegationsEmptyLedger(t *testing.T) {
	aggs := staking.AggregateDelegations(store.StakingLedger{})
	require.Empty(t, aggs)
}
