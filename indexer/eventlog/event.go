// Package eventlog defines the durable, replayable event type appended
// to the store's events_log column (spec.md §3, §4.6) and the replay
// driver that rebuilds witness-tree and canonicity state from it.
//
// Values are gob-encoded the same way indexer/store encodes everything
// else with no protobuf schema of its own; grounded on the teacher's
// db/kv/encoding.go (proto+snappy) pattern, generalized to gob.
package eventlog

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"

	"github.com/prysmaticlabs/mina-indexer/indexer/tree"
	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

// Kind discriminates the tagged union spec.md §3 names: NewBlock,
// NewCanonicalBlock, NewStakingLedger, WitnessTreeUpdate.
type Kind uint8

const (
	NewBlock Kind = iota
	NewCanonicalBlock
	NewStakingLedger
	WitnessTreeUpdate
)

func (k Kind) String() string {
	switch k {
	case NewBlock:
		return "NewBlock"
	case NewCanonicalBlock:
		return "NewCanonicalBlock"
	case NewStakingLedger:
		return "NewStakingLedger"
	default:
		return "WitnessTreeUpdate"
	}
}

// Event is the persisted record. Only the fields relevant to Kind are
// populated; this mirrors the teacher's single-struct message style used
// throughout proto/beacon/p2p/v1 rather than a Go sum type, since the
// encoding has to be one flat gob-registered shape.
type Event struct {
	Kind Kind

	Block        types.Block
	Outcome      tree.InsertOutcome
	Update       types.CanonicityUpdate
	LedgerHash   types.LedgerHash
	StakingEpoch uint32
}

// Encode gob-encodes ev for storage.
func Encode(ev Event) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ev); err != nil {
		return nil, errors.Wrap(err, "could not encode event")
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode.
func Decode(payload []byte) (Event, error) {
	var ev Event
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&ev); err != nil {
		return Event{}, errors.Wrap(err, "could not decode event")
	}
	return ev, nil
}

// EncodeNewBlock builds and encodes the NewBlock event the event-log
// writer actor appends for every observed block.
func EncodeNewBlock(b types.Block, outcome tree.InsertOutcome) ([]byte, error) {
	return Encode(Event{Kind: NewBlock, Block: b, Outcome: outcome})
}
