package store

import (
	"context"

	"go.opencensus.io/trace"

	"github.com/prysmaticlabs/mina-indexer/indexer/types"
	bolt "go.etcd.io/bbolt"
)

// PutBlock persists a block record and its height/slot index entries in
// one atomic batch, matching spec.md's "writes within one block's
// processing form one atomic batch" ordering guarantee.
func (s *Store) PutBlock(ctx context.Context, b types.Block) error {
	ctx, span := trace.StartSpan(ctx, "Store.PutBlock")
	defer span.End()
	batch := s.NewBatch()
	if err := PutBlockBatch(batch, b); err != nil {
		return err
	}
	return batch.Commit(ctx)
}

// PutBlockBatch queues a block record and its height/slot index entries
// onto an existing batch, for callers that need the block write to land
// atomically alongside other writes (e.g. LedgerApplierActor.Handle's
// block + ledger diff + user commands as one block-processing batch,
// spec.md §4.1/§5).
func PutBlockBatch(batch *WriteBatch, b types.Block) error {
	enc, err := encode(b)
	if err != nil {
		return err
	}
	batch.
		Put(blocksBucket, []byte(b.StateHash), enc).
		Put(blocksByHeightBucket, heightStateHashKey(b.Height, b.StateHash), nil).
		Put(blocksBySlotBucket, slotStateHashKey(b.GlobalSlot, b.StateHash), nil)
	return nil
}

// GetBlock retrieves a block by state hash. The bool result is false if
// the block is absent.
func (s *Store) GetBlock(ctx context.Context, h types.StateHash) (types.Block, bool, error) {
	_, span := trace.StartSpan(ctx, "Store.GetBlock")
	defer span.End()
	var b types.Block
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(blocksBucket).Get([]byte(h))
		if raw == nil {
			return nil
		}
		found = true
		return decode(raw, &b)
	})
	return b, found, err
}

// GetBlocksAtHeight returns every observed block at the given height,
// across all forks.
func (s *Store) GetBlocksAtHeight(ctx context.Context, h types.Height) ([]types.Block, error) {
	_, span := trace.StartSpan(ctx, "Store.GetBlocksAtHeight")
	defer span.End()
	var out []types.Block
	prefix := heightKey(h)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(blocksByHeightBucket).Cursor()
		blocksBkt := tx.Bucket(blocksBucket)
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			sh := types.StateHash(k[len(prefix):])
			raw := blocksBkt.Get([]byte(sh))
			if raw == nil {
				continue
			}
			var b types.Block
			if err := decode(raw, &b); err != nil {
				return err
			}
			out = append(out, b)
		}
		return nil
	})
	return out, err
}

// GetBlocksAtSlot returns every observed block at the given global slot.
func (s *Store) GetBlocksAtSlot(ctx context.Context, slot types.GlobalSlot) ([]types.Block, error) {
	_, span := trace.StartSpan(ctx, "Store.GetBlocksAtSlot")
	defer span.End()
	var out []types.Block
	prefix := slotKey(slot)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(blocksBySlotBucket).Cursor()
		blocksBkt := tx.Bucket(blocksBucket)
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			sh := types.StateHash(k[len(prefix):])
			raw := blocksBkt.Get([]byte(sh))
			if raw == nil {
				continue
			}
			var b types.Block
			if err := decode(raw, &b); err != nil {
				return err
			}
			out = append(out, b)
		}
		return nil
	})
	return out, err
}

// SetCanonicity records the canonicity status of a block, and, when the
// block becomes Canonical, its canonical-index entries at height and
// slot; when it becomes Orphaned those index entries are removed.
func (s *Store) SetCanonicity(ctx context.Context, b types.Block, c types.Canonicity) error {
	return s.SetCanonicityByDiff(ctx, types.CanonicityDiff{StateHash: b.StateHash, Height: b.Height, GlobalSlot: b.GlobalSlot}, c)
}

// SetCanonicityByDiff is SetCanonicity taking only the identity/position
// triple a CanonicityUpdate carries, so the canonicity writer actor
// doesn't need to re-fetch the full block record for every diff.
func (s *Store) SetCanonicityByDiff(ctx context.Context, d types.CanonicityDiff, c types.Canonicity) error {
	ctx, span := trace.StartSpan(ctx, "Store.SetCanonicityByDiff")
	defer span.End()
	enc, err := encode(c)
	if err != nil {
		return err
	}
	batch := s.NewBatch().Put(canonicityBucket, []byte(d.StateHash), enc)
	switch c {
	case types.Canonical:
		shEnc, err := encode(d.StateHash)
		if err != nil {
			return err
		}
		batch.Put(canonicalAtHeightBucket, heightKey(d.Height), shEnc)
		batch.Put(canonicalAtSlotBucket, slotKey(d.GlobalSlot), shEnc)
	case types.Orphaned:
		batch.Delete(canonicalAtHeightBucket, heightKey(d.Height))
		batch.Delete(canonicalAtSlotBucket, slotKey(d.GlobalSlot))
	}
	return batch.Commit(ctx)
}

// GetCanonicity returns the recorded canonicity status of a block.
func (s *Store) GetCanonicity(ctx context.Context, h types.StateHash) (types.Canonicity, error) {
	_, span := trace.StartSpan(ctx, "Store.GetCanonicity")
	defer span.End()
	var c types.Canonicity
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(canonicityBucket).Get([]byte(h))
		if raw == nil {
			return nil
		}
		return decode(raw, &c)
	})
	return c, err
}

// CanonicalHashAtHeight returns the canonical state hash at a given
// height, satisfying the invariant canonical_at_height(h) == state_hash(c).
func (s *Store) CanonicalHashAtHeight(ctx context.Context, h types.Height) (types.StateHash, bool, error) {
	_, span := trace.StartSpan(ctx, "Store.CanonicalHashAtHeight")
	defer span.End()
	var sh types.StateHash
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(canonicalAtHeightBucket).Get(heightKey(h))
		if raw == nil {
			return nil
		}
		found = true
		return decode(raw, &sh)
	})
	return sh, found, err
}

// SetBestTip records the current best-tip state hash in fixed_keys.
func (s *Store) SetBestTip(ctx context.Context, h types.StateHash) error {
	_, span := trace.StartSpan(ctx, "Store.SetBestTip")
	defer span.End()
	enc, err := encode(h)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(fixedKeysBucket).Put(bestTipKey, enc)
	})
}

// BestTip returns the persisted best-tip state hash, if any.
func (s *Store) BestTip(ctx context.Context) (types.StateHash, bool, error) {
	_, span := trace.StartSpan(ctx, "Store.BestTip")
	defer span.End()
	var sh types.StateHash
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(fixedKeysBucket).Get(bestTipKey)
		if raw == nil {
			return nil
		}
		found = true
		return decode(raw, &sh)
	})
	return sh, found, err
}

// SetCanonicalRoot records the current canonical root state hash.
func (s *Store) SetCanonicalRoot(ctx context.Context, h types.StateHash) error {
	_, span := trace.StartSpan(ctx, "Store.SetCanonicalRoot")
	defer span.End()
	enc, err := encode(h)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(fixedKeysBucket).Put(genesisKey, enc)
	})
}

// CanonicalRoot returns the persisted canonical root state hash, if any.
func (s *Store) CanonicalRoot(ctx context.Context) (types.StateHash, bool, error) {
	_, span := trace.StartSpan(ctx, "Store.CanonicalRoot")
	defer span.End()
	var sh types.StateHash
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(fixedKeysBucket).Get(genesisKey)
		if raw == nil {
			return nil
		}
		found = true
		return decode(raw, &sh)
	})
	return sh, found, err
}
