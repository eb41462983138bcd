package store

import (
	"context"
	"encoding/binary"

	"go.opencensus.io/trace"

	"github.com/prysmaticlabs/mina-indexer/indexer/types"
	bolt "go.etcd.io/bbolt"
)

// AppendZkappEvent appends an event blob to an account's event log and
// bumps its count, within a single bucket transaction.
func (s *Store) AppendZkappEvent(ctx context.Context, token types.TokenAddress, pk types.PublicKey, blob []byte) error {
	_, span := trace.StartSpan(ctx, "Store.AppendZkappEvent")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		counts := tx.Bucket(zkappEventsCountBucket)
		events := tx.Bucket(zkappEventsBucket)

		countKey := zkappEventCountKey(token, pk)
		count := uint32(0)
		if raw := counts.Get(countKey); raw != nil {
			count = binary.BigEndian.Uint32(raw)
		}
		if err := events.Put(zkappEventKey(token, pk, count), blob); err != nil {
			return err
		}
		return counts.Put(countKey, be32(count+1))
	})
}

// ZkappEventCount returns the number of events recorded for an account.
func (s *Store) ZkappEventCount(ctx context.Context, token types.TokenAddress, pk types.PublicKey) (uint32, error) {
	_, span := trace.StartSpan(ctx, "Store.ZkappEventCount")
	defer span.End()
	count := uint32(0)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(zkappEventsCountBucket).Get(zkappEventCountKey(token, pk))
		if raw != nil {
			count = binary.BigEndian.Uint32(raw)
		}
		return nil
	})
	return count, err
}

// ZkappEvents returns all event blobs recorded for an account, in index
// order, via a prefix range scan (token ‖ public_key).
func (s *Store) ZkappEvents(ctx context.Context, token types.TokenAddress, pk types.PublicKey) ([][]byte, error) {
	_, span := trace.StartSpan(ctx, "Store.ZkappEvents")
	defer span.End()
	var out [][]byte
	prefix := zkappEventPrefix(token, pk)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(zkappEventsBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			cp := make([]byte, len(v))
			copy(cp, v)
			out = append(out, cp)
		}
		return nil
	})
	return out, err
}
