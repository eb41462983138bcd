// Package store implements the column-keyed persistent store (spec.md
// §4.1): a single embedded bbolt database partitioned into named buckets,
// one per logical "column family", with atomic batched writes and ordered
// bidirectional iteration. Grounded on the teacher's validator/db/kv and
// beacon-chain/db/kv packages.
package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	prombolt "github.com/prysmaticlabs/prombbolt"
	bolt "go.etcd.io/bbolt"
)

const databaseFileName = "indexer.db"

// Bucket names, one per spec.md §4.1 column.
var (
	blocksBucket             = []byte("blocks")
	blocksByHeightBucket     = []byte("blocks_by_height")
	blocksBySlotBucket       = []byte("blocks_by_slot")
	canonicalAtHeightBucket  = []byte("canonical_at_height")
	canonicalAtSlotBucket    = []byte("canonical_at_slot")
	canonicityBucket         = []byte("canonicity")
	usernamesBucket          = []byte("usernames")
	usernameHistoryBucket    = []byte("username_history")
	zkappEventsBucket        = []byte("zkapp_events")
	zkappEventsCountBucket   = []byte("zkapp_events_count")
	eventsLogBucket          = []byte("events_log")
	fixedKeysBucket          = []byte("fixed_keys")
	stakingLedgersBucket     = []byte("staking_ledgers")
	stakingLedgersByEpochBkt = []byte("staking_ledgers_by_epoch")
	delegationsBucket        = []byte("delegations")
	userCommandsBucket       = []byte("user_commands")
	ledgerDiffsBucket        = []byte("ledger_diffs")
)

var allBuckets = [][]byte{
	blocksBucket, blocksByHeightBucket, blocksBySlotBucket,
	canonicalAtHeightBucket, canonicalAtSlotBucket, canonicityBucket,
	usernamesBucket, usernameHistoryBucket,
	zkappEventsBucket, zkappEventsCountBucket,
	eventsLogBucket, fixedKeysBucket,
	stakingLedgersBucket, stakingLedgersByEpochBkt, delegationsBucket,
	userCommandsBucket, ledgerDiffsBucket,
}

// Well-known fixed_keys entries (spec.md §9 "Global state").
var (
	chainIDKey   = []byte("chain_id")
	bestTipKey   = []byte("best_tip")
	dbVersionKey = []byte("db_version")
	genesisKey   = []byte("genesis_state_hash")
)

// DBVersion identifies the on-disk schema. Downgrades across a major
// version are rejected (spec.md §6).
type DBVersion struct {
	Major, Minor, Patch uint32
	GitCommit           string
}

// Store is the bbolt-backed implementation of the column store.
type Store struct {
	db           *bolt.DB
	databasePath string
}

// Open initializes (or reopens) the store at dirPath, creating buckets on
// first use.
func Open(dirPath string) (*Store, error) {
	if err := os.MkdirAll(dirPath, 0o700); err != nil {
		return nil, errors.Wrap(err, "could not create store directory")
	}
	datafile := filepath.Join(dirPath, databaseFileName)
	db, err := bolt.Open(datafile, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, errors.New("cannot obtain database lock, store may be in use by another process")
		}
		return nil, errors.Wrap(err, "could not open store")
	}
	s := &Store{db: db, databasePath: dirPath}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "could not create buckets")
	}
	if err := prometheus.Register(createBoltCollector(s.db)); err != nil {
		// A second Store in the same process (tests) re-registering the
		// same collector name is not fatal.
		_ = err
	}
	return s, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	prometheus.Unregister(createBoltCollector(s.db))
	return s.db.Close()
}

// DatabasePath returns the directory this store writes to.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

func createBoltCollector(db *bolt.DB) prometheus.Collector {
	return prombolt.New("indexerDB", db)
}

// CheckVersion enforces spec.md §6: downgrades across a major version
// are rejected. If no version is recorded yet, current is written.
func (s *Store) CheckVersion(current DBVersion) error {
	var stored DBVersion
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(fixedKeysBucket).Get(dbVersionKey)
		if raw == nil {
			return nil
		}
		found = true
		return decode(raw, &stored)
	})
	if err != nil {
		return errors.Wrap(err, "could not read db_version")
	}
	if found && stored.Major > current.Major {
		return errors.Errorf("store schema major version %d is newer than indexer version %d: refusing downgrade", stored.Major, current.Major)
	}
	enc, err := encode(current)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(fixedKeysBucket).Put(dbVersionKey, enc)
	})
}

// ChainID returns the configured chain id, if set.
func (s *Store) ChainID() (string, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(fixedKeysBucket).Get(chainIDKey)
		if raw == nil {
			return nil
		}
		return decode(raw, &id)
	})
	return id, err
}

// SetChainID records the process-wide chain id; mutated only by the
// supervisor at startup, per spec.md §9.
func (s *Store) SetChainID(id string) error {
	enc, err := encode(id)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(fixedKeysBucket).Put(chainIDKey, enc)
	})
}
