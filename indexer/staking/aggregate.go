// Package staking derives per-delegate rollups from an epoch staking
// ledger snapshot. Grounded on original_source/'s delegation_total/ single
// pass over ledger entries; adapted here to the store's column shapes.
package staking

import (
	"sort"

	"github.com/prysmaticlabs/mina-indexer/indexer/store"
	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

// AggregateDelegations rolls up a staking ledger's entries into one
// {delegate -> count, total_stake} record per delegate, in a single pass
// over l.Entries. Results are sorted by delegate for deterministic output
// across runs against the same ledger.
func AggregateDelegations(l store.StakingLedger) []store.DelegationAggregate {
	byDelegate := make(map[types.PublicKey]*store.DelegationAggregate, len(l.Entries))
	for _, e := range l.Entries {
		agg, ok := byDelegate[e.Delegate]
		if !ok {
			agg = &store.DelegationAggregate{Delegate: e.Delegate}
			byDelegate[e.Delegate] = agg
		}
		agg.Count++
		agg.TotalStake = agg.TotalStake.Add(e.Balance)
	}

	out := make([]store.DelegationAggregate, 0, len(byDelegate))
	for _, agg := range byDelegate {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Delegate < out[j].Delegate })
	return out
}
