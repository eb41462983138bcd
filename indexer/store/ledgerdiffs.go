package store

import (
	"context"

	"go.opencensus.io/trace"

	"github.com/prysmaticlabs/mina-indexer/indexer/ledger"
	"github.com/prysmaticlabs/mina-indexer/indexer/types"
	bolt "go.etcd.io/bbolt"
)

// PutLedgerDiff persists a block's ledger diff, keyed by state hash.
// Diffs are write-once: a block's account-diff list never changes once
// computed.
func (s *Store) PutLedgerDiff(ctx context.Context, d ledger.LedgerDiff) error {
	ctx, span := trace.StartSpan(ctx, "Store.PutLedgerDiff")
	defer span.End()
	batch := s.NewBatch()
	if err := PutLedgerDiffBatch(batch, d); err != nil {
		return err
	}
	return batch.Commit(ctx)
}

// PutLedgerDiffBatch queues a ledger diff write onto an existing batch;
// see PutBlockBatch.
func PutLedgerDiffBatch(batch *WriteBatch, d ledger.LedgerDiff) error {
	enc, err := encode(d)
	if err != nil {
		return err
	}
	batch.Put(ledgerDiffsBucket, []byte(d.StateHash), enc)
	return nil
}

// DiffFor implements ledger.DiffSource, returning the stored diff for a
// state hash.
func (s *Store) DiffFor(ctx context.Context, h types.StateHash) (ledger.LedgerDiff, bool, error) {
	_, span := trace.StartSpan(ctx, "Store.DiffFor")
	defer span.End()
	var d ledger.LedgerDiff
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(ledgerDiffsBucket).Get([]byte(h))
		if raw == nil {
			return nil
		}
		found = true
		return decode(raw, &d)
	})
	return d, found, err
}

// PathFromAncestor implements ledger.DiffSource: it walks parent pointers
// from h back through the blocks bucket until it reaches a memoized
// ancestor (per isMemoized) or genesis, returning the walked hashes in
// root-to-h (ascending, apply) order along with the ancestor it stopped
// at ("" meaning genesis).
func (s *Store) PathFromAncestor(ctx context.Context, h types.StateHash, isMemoized func(types.StateHash) bool) ([]types.StateHash, types.StateHash, error) {
	ctx, span := trace.StartSpan(ctx, "Store.PathFromAncestor")
	defer span.End()
	var path []types.StateHash
	cur := h
	for {
		if isMemoized(cur) {
			return path, cur, nil
		}
		b, ok, err := s.GetBlock(ctx, cur)
		if err != nil {
			return nil, "", err
		}
		path = append([]types.StateHash{cur}, path...)
		if !ok || b.PreviousStateHash == "" {
			return path, "", nil
		}
		cur = b.PreviousStateHash
	}
}
