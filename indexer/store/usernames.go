package store

import (
	"context"
	"encoding/binary"

	"go.opencensus.io/trace"

	"github.com/prysmaticlabs/mina-indexer/indexer/types"
	bolt "go.etcd.io/bbolt"
)

// SetUsername assigns the current username for pk and appends the prior
// value (if any) to its history, keyed by an incrementing index.
func (s *Store) SetUsername(ctx context.Context, pk types.PublicKey, name string) error {
	_, span := trace.StartSpan(ctx, "Store.SetUsername")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		usernames := tx.Bucket(usernamesBucket)
		history := tx.Bucket(usernameHistoryBucket)

		idx := uint32(0)
		c := history.Cursor()
		prefix := []byte(pk)
		last := []byte(nil)
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			last = k
		}
		if last != nil {
			idx = binary.BigEndian.Uint32(last[len(prefix):]) + 1
		}

		enc, err := encode(name)
		if err != nil {
			return err
		}
		if err := history.Put(usernameHistoryKey(pk, idx), enc); err != nil {
			return err
		}
		return usernames.Put([]byte(pk), enc)
	})
}

// GetUsername returns the current username assigned to pk.
func (s *Store) GetUsername(ctx context.Context, pk types.PublicKey) (string, bool, error) {
	_, span := trace.StartSpan(ctx, "Store.GetUsername")
	defer span.End()
	var name string
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(usernamesBucket).Get([]byte(pk))
		if raw == nil {
			return nil
		}
		found = true
		return decode(raw, &name)
	})
	return name, found, err
}
