package store

import (
	"context"

	"go.opencensus.io/trace"

	bolt "go.etcd.io/bbolt"
)

// WriteBatch accumulates puts across column families and commits them in
// a single bbolt transaction: all writes land or none do. This is the
// store's atomicity contract (spec.md §4.1); bbolt's single-writer MVCC
// transaction already spans every bucket in the database, so WriteBatch
// is a thin builder in front of one db.Update call.
type WriteBatch struct {
	s    *Store
	puts []put
	dels []del
}

type put struct {
	bucket []byte
	key    []byte
	value  []byte
}

type del struct {
	bucket []byte
	key    []byte
}

// NewBatch starts a new atomic write batch.
func (s *Store) NewBatch() *WriteBatch {
	return &WriteBatch{s: s}
}

// Put queues a key/value write against the named bucket.
func (b *WriteBatch) Put(bucket, key, value []byte) *WriteBatch {
	b.puts = append(b.puts, put{bucket, key, value})
	return b
}

// Delete queues a key deletion against the named bucket.
func (b *WriteBatch) Delete(bucket, key []byte) *WriteBatch {
	b.dels = append(b.dels, del{bucket, key})
	return b
}

// Commit applies every queued put/delete in one bbolt transaction.
func (b *WriteBatch) Commit(ctx context.Context) error {
	_, span := trace.StartSpan(ctx, "Store.WriteBatch.Commit")
	defer span.End()
	return b.s.db.Update(func(tx *bolt.Tx) error {
		for _, p := range b.puts {
			if err := tx.Bucket(p.bucket).Put(p.key, p.value); err != nil {
				return err
			}
		}
		for _, d := range b.dels {
			if err := tx.Bucket(d.bucket).Delete(d.key); err != nil {
				return err
			}
		}
		return nil
	})
}
