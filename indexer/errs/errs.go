// Package errs enumerates the indexer's error kinds (spec.md §7), as
// sentinel values checked with errors.Is rather than as distinguished
// types.
package errs

import "github.com/pkg/errors"

var (
	// ErrParse marks a malformed PCB or staking-ledger file: missing
	// required field, bad JSON. Non-fatal: the offending path is logged
	// and ingestion continues.
	ErrParse = errors.New("parse error")

	// ErrIntegrity marks a block whose claimed parent is present in the
	// tree but contradicts it (mismatched height/slot/hash fields for
	// the same state hash). Fatal: ingestion stops.
	ErrIntegrity = errors.New("integrity error")

	// ErrStore marks a backend I/O failure. Retried with exponential
	// backoff up to three attempts before being treated as fatal.
	ErrStore = errors.New("store error")

	// ErrBootstrap marks a missing genesis ledger or unreadable store
	// at startup. Always fatal.
	ErrBootstrap = errors.New("bootstrap error")

	// ErrTimeout marks a per-file parse timeout. Non-fatal: the path is
	// skipped and logged.
	ErrTimeout = errors.New("parse timeout")
)
