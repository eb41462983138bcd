package store

import (
	"context"

	"go.opencensus.io/trace"

	bolt "go.etcd.io/bbolt"
)

// AppendEvent appends a pre-encoded event payload at the next sequence
// number and returns that sequence number. Readers MUST iterate
// events_log in ascending key order (spec.md §6); bbolt's cursor already
// does that over the big-endian sequence key, so no extra sort is needed.
func (s *Store) AppendEvent(ctx context.Context, payload []byte) (uint64, error) {
	_, span := trace.StartSpan(ctx, "Store.AppendEvent")
	defer span.End()
	var seq uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(eventsLogBucket)
		nextSeq, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		// NextSequence starts at 1; the log's sequence numbers are
		// 0-based per spec.md's "0..N-1" invariant.
		seq = nextSeq - 1
		return bkt.Put(seqKey(seq), payload)
	})
	return seq, err
}

// EventCount returns N, the number of events appended so far.
func (s *Store) EventCount(ctx context.Context) (uint64, error) {
	_, span := trace.StartSpan(ctx, "Store.EventCount")
	defer span.End()
	var n uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		n = uint64(tx.Bucket(eventsLogBucket).Stats().KeyN)
		return nil
	})
	return n, err
}

// GetEvent returns the raw payload at sequence number seq.
func (s *Store) GetEvent(ctx context.Context, seq uint64) ([]byte, bool, error) {
	_, span := trace.StartSpan(ctx, "Store.GetEvent")
	defer span.End()
	var out []byte
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(eventsLogBucket).Get(seqKey(seq))
		if raw == nil {
			return nil
		}
		found = true
		out = make([]byte, len(raw))
		copy(out, raw)
		return nil
	})
	return out, found, err
}

// ForEachEvent walks every event in ascending sequence order, calling fn
// with the sequence number and payload. Used for full-log replay.
func (s *Store) ForEachEvent(ctx context.Context, fn func(seq uint64, payload []byte) error) error {
	_, span := trace.StartSpan(ctx, "Store.ForEachEvent")
	defer span.End()
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(eventsLogBucket).Cursor()
		seq := uint64(0)
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := fn(seq, v); err != nil {
				return err
			}
			seq++
		}
		return nil
	})
}
