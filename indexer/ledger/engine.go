package ledger

import (
	"context"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

// DiffSource resolves the stored LedgerDiff for a state hash, and the
// ancestor path (root-exclusive, ascending) from the nearest memoized
// ancestor (or genesis) to h. The actor DAG's ledger applier writes
// diffs through this same interface's backing store.
type DiffSource interface {
	DiffFor(ctx context.Context, h types.StateHash) (LedgerDiff, bool, error)
	PathFromAncestor(ctx context.Context, h types.StateHash, isMemoized func(types.StateHash) bool) ([]types.StateHash, types.StateHash, error)
}

// cacheCost approximates a Ledger's memory cost for ristretto's
// cost-based eviction, proportional to account count — the same
// "entries accessed, cost-weighted" policy the teacher's block/validator
// ristretto caches in db/kv/kv.go use.
func cacheCost(l *Ledger) int64 {
	return int64(len(l.accounts))*64 + 64
}

// Engine computes and memoizes canonical ledgers by state hash
// (spec.md §4.5 "Ledger memoization"): on demand, walk from the nearest
// memoized ancestor and apply diffs forward; memoized results may be
// evicted by a bounded LRU and are always regenerable by replay.
type Engine struct {
	genesis *Ledger
	src     DiffSource
	cache   *ristretto.Cache
}

// NewEngine constructs a memoizing ledger engine seeded with the genesis
// ledger and backed by src for diff/path lookups.
func NewEngine(genesis *Ledger, src DiffSource, maxCost int64) (*Engine, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not create ledger cache")
	}
	return &Engine{genesis: genesis, src: src, cache: cache}, nil
}

// LedgerAt returns the ledger at state hash h, computed by replaying
// diffs forward from the nearest memoized ancestor. When memoize is
// true, the result is written back to the cache and may later evict an
// older entry.
func (e *Engine) LedgerAt(ctx context.Context, h types.StateHash, memoize bool) (*Ledger, error) {
	ctx, span := trace.StartSpan(ctx, "ledger.Engine.LedgerAt")
	defer span.End()
	path, ancestor, err := e.src.PathFromAncestor(ctx, h, e.isMemoized)
	if err != nil {
		return nil, errors.Wrap(err, "could not resolve ancestor path")
	}
	base := e.genesis
	if ancestor != "" {
		if v, ok := e.cache.Get(string(ancestor)); ok {
			base = v.(*Ledger)
		}
	}
	cur := base
	for _, sh := range path {
		diff, ok, err := e.src.DiffFor(ctx, sh)
		if err != nil {
			return nil, errors.Wrapf(err, "could not load diff for %s", sh)
		}
		if !ok {
			return nil, errors.Errorf("missing ledger diff for %s", sh)
		}
		cur = Apply(cur, diff)
	}
	if memoize {
		e.cache.Set(string(h), cur, cacheCost(cur))
	}
	return cur, nil
}

func (e *Engine) isMemoized(h types.StateHash) bool {
	_, ok := e.cache.Get(string(h))
	return ok
}

// Evict drops a memoized entry, used by tests and by pruning.
func (e *Engine) Evict(h types.StateHash) {
	e.cache.Del(string(h))
}
