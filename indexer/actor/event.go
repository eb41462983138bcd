// Package actor implements the ingestion pipeline as a small DAG of
// single-purpose stages exchanging one flat event type, each stage
// fanning its output out to every downstream stage subscribed to the
// event kind it produces.
//
// Grounded on the teacher's oldest blockchain service loop
// (beacon-chain/blockchain/service.go: incomingBlockFeed, a done channel,
// a single select loop) generalized from one linear stage to a named DAG,
// and on github.com/ethereum/go-ethereum/event.Feed for the broadcast
// fan-out primitive (a dependency the teacher's go.mod already carries).
package actor

import (
	"github.com/prysmaticlabs/mina-indexer/indexer/ledger"
	"github.com/prysmaticlabs/mina-indexer/indexer/store"
	"github.com/prysmaticlabs/mina-indexer/indexer/tree"
	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

// Kind discriminates the stage of the pipeline an Event belongs to,
// mirroring the flow in spec.md §2: discovery -> parse -> ancestor link
// -> witness-tree integrate -> canonicity decide -> ledger diff apply.
type Kind uint8

const (
	KindPCBDiscovered Kind = iota
	KindBlockParsed
	KindAncestorLinked
	KindNewBlock
	KindCanonicityUpdate
	KindLedgerDiffReady
	KindStakingLedgerDiscovered
)

func (k Kind) String() string {
	switch k {
	case KindPCBDiscovered:
		return "PCBDiscovered"
	case KindBlockParsed:
		return "BlockParsed"
	case KindAncestorLinked:
		return "AncestorLinked"
	case KindNewBlock:
		return "NewBlock"
	case KindCanonicityUpdate:
		return "CanonicityUpdate"
	case KindLedgerDiffReady:
		return "LedgerDiffReady"
	default:
		return "StakingLedgerDiscovered"
	}
}

// ParsedBlock is everything downstream stages need out of a precomputed
// block file, already decoded (spec.md §6 "Minimum fields consumed").
type ParsedBlock struct {
	Block        types.Block
	Payments     []ledger.PaymentCommand
	Delegations  []ledger.DelegationCommand
	Coinbase     ledger.CoinbaseCommand
	FeeTransfers []ledger.FeeTransferCommand
	Usernames    []ledger.UsernameCommand
	ZkappEvents  map[types.PublicKey][][]byte
}

// Event is the single message type flowing through the DAG: a flat
// struct with a Kind discriminator, in the teacher's protobuf-message
// idiom, rather than a Go sum type (there is no schema compiler here to
// generate one from).
type Event struct {
	Kind Kind

	Network string
	PCBPath string

	Parsed ParsedBlock

	TreeNode tree.Node
	Outcome  tree.InsertOutcome
	Update   *types.CanonicityUpdate

	Diff ledger.LedgerDiff

	StakingLedger store.StakingLedger
}
