// Package ledger implements the ledger diff engine (spec.md §4.5):
// deriving account diffs from a parsed block's staged-ledger-diff
// section, and applying/unapplying them against a ledger snapshot.
package ledger

import (
	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

// DiffKind discriminates an AccountDiff's variant. Go lacks Rust-style
// sum types; following the teacher's flat-struct protobuf-message
// convention (proto/beacon/p2p/v1), one struct carries every variant's
// fields and Kind says which apply.
type DiffKind uint8

const (
	KindPayment DiffKind = iota
	KindCoinbase
	KindFeeTransfer
	KindDelegation
	KindZkappUpdate
	KindTokenSupply
	KindUsernameAssignment
	KindAccountCreationFee
)

// AccountDiff is one entry of a block's LedgerDiff. It is reversible: it
// carries the pre-image fields Unapply needs to undo it exactly.
type AccountDiff struct {
	Kind DiffKind

	// Payment / FeeTransfer / Coinbase / AccountCreationFee
	From   types.PublicKey
	To     types.PublicKey
	Token  types.TokenAddress
	Amount types.Amount
	Fee    types.Amount
	Nonce  types.Nonce
	Failed bool

	// Coinbase
	Supercharge bool

	// Delegation
	Delegate types.PublicKey

	// ZkappUpdate — placeholder surface (spec.md §9 Open Question (a):
	// upstream zkapp-command schemas are not stable enough to model
	// beyond app-state/action/event blobs).
	ZkappBlob []byte

	// TokenSupply
	SupplyDelta types.Amount
	SupplyNeg   bool

	// UsernameAssignment
	PublicKey types.PublicKey
	Username  string

	// Reversal state, filled in when the diff is constructed against a
	// ledger (PreBalanceFrom/To are the balances immediately before this
	// diff applied; PreDelegate/PreNonce/PreUsername are the prior
	// values of fields this diff overwrites).
	PreBalanceFrom types.Balance
	PreBalanceTo   types.Balance
	PreDelegate    types.PublicKey
	PreNonce       types.Nonce
	PreUsername    string
	CreatedAccount bool
}

// LedgerDiff is the ordered list of account diffs derived from one block.
// Order matters: later derivations (fee totals, creation-fee deduction)
// depend on the order observed in the source staged-ledger diff.
type LedgerDiff struct {
	StateHash types.StateHash
	Entries   []AccountDiff
}
