package store

import (
	"context"

	"go.opencensus.io/trace"

	"github.com/prysmaticlabs/mina-indexer/indexer/types"
	bolt "go.etcd.io/bbolt"
)

// StakingLedgerEntry is one row of an epoch staking ledger.
type StakingLedgerEntry struct {
	PublicKey types.PublicKey
	Balance   types.Balance
	Delegate  types.PublicKey
}

// StakingLedger is the full per-epoch snapshot, keyed by its ledger hash.
type StakingLedger struct {
	LedgerHash types.LedgerHash
	Network    string
	Epoch      uint32
	Entries    []StakingLedgerEntry
}

// DelegationAggregate is the per-delegate rollup spec.md §4.7 requires:
// count of delegators and total stake delegated.
type DelegationAggregate struct {
	Delegate   types.PublicKey
	Count      uint32
	TotalStake types.Balance
}

// PutStakingLedger stores a deduplicated-by-hash staking ledger, indexed
// both by ledger hash and by (network, epoch).
func (s *Store) PutStakingLedger(ctx context.Context, l StakingLedger) error {
	ctx, span := trace.StartSpan(ctx, "Store.PutStakingLedger")
	defer span.End()
	enc, err := encode(l)
	if err != nil {
		return err
	}
	lhEnc, err := encode(l.LedgerHash)
	if err != nil {
		return err
	}
	return s.NewBatch().
		Put(stakingLedgersBucket, []byte(l.LedgerHash), enc).
		Put(stakingLedgersByEpochBkt, stakingLedgerEpochKey(l.Network, l.Epoch), lhEnc).
		Commit(ctx)
}

// HasStakingLedger reports whether a ledger with this hash has already
// been ingested, satisfying the "deduplicates by ledger_hash" rule.
func (s *Store) HasStakingLedger(ctx context.Context, h types.LedgerHash) (bool, error) {
	_, span := trace.StartSpan(ctx, "Store.HasStakingLedger")
	defer span.End()
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(stakingLedgersBucket).Get([]byte(h)) != nil
		return nil
	})
	return found, err
}

// GetStakingLedgerByEpoch retrieves the staking ledger for (network, epoch).
func (s *Store) GetStakingLedgerByEpoch(ctx context.Context, network string, epoch uint32) (StakingLedger, bool, error) {
	_, span := trace.StartSpan(ctx, "Store.GetStakingLedgerByEpoch")
	defer span.End()
	var l StakingLedger
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		lhRaw := tx.Bucket(stakingLedgersByEpochBkt).Get(stakingLedgerEpochKey(network, epoch))
		if lhRaw == nil {
			return nil
		}
		var lh types.LedgerHash
		if err := decode(lhRaw, &lh); err != nil {
			return err
		}
		raw := tx.Bucket(stakingLedgersBucket).Get([]byte(lh))
		if raw == nil {
			return nil
		}
		found = true
		return decode(raw, &l)
	})
	return l, found, err
}

// PutDelegationAggregates stores the per-epoch delegation rollup.
func (s *Store) PutDelegationAggregates(ctx context.Context, network string, epoch uint32, aggs []DelegationAggregate) error {
	_, span := trace.StartSpan(ctx, "Store.PutDelegationAggregates")
	defer span.End()
	enc, err := encode(aggs)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(delegationsBucket).Put(stakingLedgerEpochKey(network, epoch), enc)
	})
}

// GetDelegationAggregates retrieves the per-epoch delegation rollup.
func (s *Store) GetDelegationAggregates(ctx context.Context, network string, epoch uint32) ([]DelegationAggregate, error) {
	_, span := trace.StartSpan(ctx, "Store.GetDelegationAggregates")
	defer span.End()
	var aggs []DelegationAggregate
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(delegationsBucket).Get(stakingLedgerEpochKey(network, epoch))
		if raw == nil {
			return nil
		}
		return decode(raw, &aggs)
	})
	return aggs, err
}
