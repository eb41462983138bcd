package store

import (
	"context"

	"go.opencensus.io/trace"

	bolt "go.etcd.io/bbolt"

	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

// UserCommandRecord is a derived, queryable record of one payment or
// delegation extracted from a block's staged ledger diff (spec.md §4.5
// step 1's "extracted commands" index).
type UserCommandRecord struct {
	StateHash types.StateHash
	Height    types.Height
	Kind      string // "payment" or "delegation"
	From      types.PublicKey
	To        types.PublicKey
	Amount    types.Amount
	Fee       types.Amount
	Nonce     types.Nonce
	Failed    bool
}

// PutUserCommands appends the derived command index for one block. Keyed
// by heightStateHashKey so a later height-ordered scan is a single cursor
// walk, matching the blocks_by_height index's key shape.
func (s *Store) PutUserCommands(ctx context.Context, records []UserCommandRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, span := trace.StartSpan(ctx, "Store.PutUserCommands")
	defer span.End()
	batch := s.NewBatch()
	if err := PutUserCommandsBatch(batch, records); err != nil {
		return err
	}
	return batch.Commit(ctx)
}

// PutUserCommandsBatch queues the derived command index for one block
// onto an existing batch; see PutBlockBatch.
func PutUserCommandsBatch(batch *WriteBatch, records []UserCommandRecord) error {
	for i, r := range records {
		enc, err := encode(r)
		if err != nil {
			return err
		}
		key := append(heightStateHashKey(r.Height, r.StateHash), be32(uint32(i))...)
		batch.Put(userCommandsBucket, key, enc)
	}
	return nil
}

// UserCommandsAtHeight returns every derived command recorded for blocks
// at the given height, across all forks.
func (s *Store) UserCommandsAtHeight(ctx context.Context, h types.Height) ([]UserCommandRecord, error) {
	_, span := trace.StartSpan(ctx, "Store.UserCommandsAtHeight")
	defer span.End()
	var out []UserCommandRecord
	prefix := heightKey(h)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(userCommandsBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var r UserCommandRecord
			if err := decode(v, &r); err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}
