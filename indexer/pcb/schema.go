// Package pcb decodes precomputed-block JSON files (spec.md §6 "Input
// file format") into the flat command lists the ledger package's Builder
// consumes. Mina encodes large integers as JSON strings, so every
// numeric field here is a string with a small parse step — the same
// shape the teacher's JSON-RPC response types use for uint256 fields.
package pcb

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"github.com/prysmaticlabs/mina-indexer/indexer/ledger"
	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

// Schema discriminates the top-level shape (spec.md §6: "v2 has
// {version, data:{...}}, v1 is flat").
type Schema int

const (
	SchemaV1 Schema = iota
	SchemaV2
)

// Detect sniffs the top-level shape without a full parse.
func Detect(raw []byte) Schema {
	var probe struct {
		Version int             `json:"version"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.Data != nil {
		return SchemaV2
	}
	return SchemaV1
}

type protocolState struct {
	PreviousStateHash string `json:"previous_state_hash"`
	Body              struct {
		GenesisStateHash string `json:"genesis_state_hash"`
		ConsensusState   struct {
			BlockchainLength        string `json:"blockchain_length"`
			GlobalSlotSinceGenesis  string `json:"global_slot_since_genesis"`
			BlockCreator             string `json:"block_creator"`
			CoinbaseReceiver         string `json:"coinbase_receiver"`
		} `json:"consensus_state"`
	} `json:"body"`
}

type signedCommandPayloadCommon struct {
	Fee    string `json:"fee"`
	Nonce  string `json:"nonce"`
	Memo   string `json:"memo"`
	Sender string `json:"source_pk"`
}

// userCommand is the simplified shape of one entry in
// staged_ledger_diff.diff[i].commands: a tagged (kind, payload) pair the
// way Mina's JSON encodes its OCaml variant types.
type userCommand struct {
	Data   [2]json.RawMessage `json:"data"`
	Status json.RawMessage    `json:"status"`
}

type paymentPayload struct {
	Common  signedCommandPayloadCommon `json:"common"`
	Body    [2]json.RawMessage         `json:"body"`
}

type stagedLedgerDiffBody struct {
	Completed interface{}   `json:"completed_works"`
	Commands  []userCommand `json:"commands"`
	Coinbase  json.RawMessage `json:"coinbase"`
}

type stagedLedgerDiff struct {
	Diff [2]*stagedLedgerDiffBody `json:"diff"`
}

// precomputedBlockV1 is the flat (v1) precomputed-block shape.
type precomputedBlockV1 struct {
	ScheduledTime     string            `json:"scheduled_time"`
	ProtocolState     protocolState     `json:"protocol_state"`
	StagedLedgerDiff  stagedLedgerDiff  `json:"staged_ledger_diff"`
}

type precomputedBlockV2 struct {
	Version int                `json:"version"`
	Data    precomputedBlockV1 `json:"data"`
}

func parseUintString(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

func parseIntString(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// Decoded is the generic dynamic-dispatch view spec.md §9 calls for: a
// common accessor surface over v1/v2 blocks, with version internals kept
// inside this package.
type Decoded struct {
	StateHash         types.StateHash
	PreviousStateHash types.StateHash
	GenesisStateHash  types.StateHash
	Height            types.Height
	GlobalSlot        types.GlobalSlot
	Creator           types.PublicKey
	CoinbaseReceiver  types.PublicKey
	ProducedAt        int64

	Payments     []ledger.PaymentCommand
	Delegations  []ledger.DelegationCommand
	Coinbase     ledger.CoinbaseCommand
	FeeTransfers []ledger.FeeTransferCommand
	Usernames    []ledger.UsernameCommand
}

// Parse decodes a precomputed-block file's raw bytes. stateHash comes
// from the filename (spec.md §6 "parsing fills in authoritative values"
// refers to every other field; the hash itself is the file's identity).
func Parse(raw []byte, stateHash types.StateHash) (Decoded, error) {
	switch Detect(raw) {
	case SchemaV2:
		var v2 precomputedBlockV2
		if err := json.Unmarshal(raw, &v2); err != nil {
			return Decoded{}, errors.Wrap(err, "could not parse v2 precomputed block")
		}
		return decodeCommon(v2.Data, stateHash)
	default:
		var v1 precomputedBlockV1
		if err := json.Unmarshal(raw, &v1); err != nil {
			return Decoded{}, errors.Wrap(err, "could not parse v1 precomputed block")
		}
		return decodeCommon(v1, stateHash)
	}
}

func decodeCommon(b precomputedBlockV1, stateHash types.StateHash) (Decoded, error) {
	scheduled, err := parseIntString(b.ScheduledTime)
	if err != nil {
		return Decoded{}, errors.Wrap(err, "invalid scheduled_time")
	}
	height, err := parseUintString(b.ProtocolState.Body.ConsensusState.BlockchainLength)
	if err != nil {
		return Decoded{}, errors.Wrap(err, "invalid blockchain_length")
	}
	slot, err := parseUintString(b.ProtocolState.Body.ConsensusState.GlobalSlotSinceGenesis)
	if err != nil {
		return Decoded{}, errors.Wrap(err, "invalid global_slot_since_genesis")
	}

	d := Decoded{
		StateHash:         stateHash,
		PreviousStateHash: types.StateHash(b.ProtocolState.PreviousStateHash),
		GenesisStateHash:  types.StateHash(b.ProtocolState.Body.GenesisStateHash),
		Height:            types.Height(height),
		GlobalSlot:        types.GlobalSlot(slot),
		Creator:           types.PublicKey(b.ProtocolState.Body.ConsensusState.BlockCreator),
		CoinbaseReceiver:  types.PublicKey(b.ProtocolState.Body.ConsensusState.CoinbaseReceiver),
		ProducedAt:        scheduled,
	}

	if err := decodeStagedLedgerDiff(b.StagedLedgerDiff, d.CoinbaseReceiver, &d); err != nil {
		return Decoded{}, err
	}
	return d, nil
}

// decodeStagedLedgerDiff extracts payments, delegations, the coinbase
// amount, and any memo-encoded username assignment out of the first diff
// half (spec.md's "diff" is a pair to support the second, pending
// pre-hardfork half; the indexer only needs the applied half).
func decodeStagedLedgerDiff(d stagedLedgerDiff, coinbaseReceiver types.PublicKey, out *Decoded) error {
	body := d.Diff[0]
	if body == nil {
		return nil
	}
	for _, cmd := range body.Commands {
		var kind string
		if len(cmd.Data[0]) > 0 {
			_ = json.Unmarshal(cmd.Data[0], &kind)
		}
		var payload paymentPayload
		if len(cmd.Data[1]) > 0 {
			if err := json.Unmarshal(cmd.Data[1], &payload); err != nil {
				continue // malformed command: spec.md §7 ParseError, skip and continue
			}
		}
		fee, err := parseUintString(payload.Common.Fee)
		if err != nil {
			continue
		}
		nonce, err := parseUintString(payload.Common.Nonce)
		if err != nil {
			continue
		}

		switch kind {
		case "Payment":
			var receiver, amountStr string
			if len(payload.Body[1]) > 0 {
				var fields struct {
					Receiver string `json:"receiver_pk"`
					Amount   string `json:"amount"`
				}
				_ = json.Unmarshal(payload.Body[1], &fields)
				receiver, amountStr = fields.Receiver, fields.Amount
			}
			amount, err := parseUintString(amountStr)
			if err != nil {
				continue
			}
			out.Payments = append(out.Payments, ledger.PaymentCommand{
				From:   types.PublicKey(payload.Common.Sender),
				To:     types.PublicKey(receiver),
				Token:  types.DefaultToken,
				Amount: types.Amount(amount),
				Fee:    types.Amount(fee),
				Nonce:  types.Nonce(nonce),
			})
			if u := usernameFromMemo(payload.Common.Memo); u != "" {
				out.Usernames = append(out.Usernames, ledger.UsernameCommand{
					PublicKey: types.PublicKey(receiver),
					Username:  u,
				})
			}
		case "Stake_delegation":
			var newDelegate string
			if len(payload.Body[1]) > 0 {
				var fields struct {
					NewDelegate string `json:"new_delegate"`
				}
				_ = json.Unmarshal(payload.Body[1], &fields)
				newDelegate = fields.NewDelegate
			}
			out.Delegations = append(out.Delegations, ledger.DelegationCommand{
				From:     types.PublicKey(payload.Common.Sender),
				Delegate: types.PublicKey(newDelegate),
				Fee:      types.Amount(fee),
				Nonce:    types.Nonce(nonce),
			})
		}
	}

	if len(body.Coinbase) > 0 {
		var tagged [2]json.RawMessage
		if err := json.Unmarshal(body.Coinbase, &tagged); err == nil && len(tagged) == 2 {
			var kind string
			_ = json.Unmarshal(tagged[0], &kind)
			if kind != "Zero" {
				var fields struct {
					Amount string `json:"amount"`
				}
				_ = json.Unmarshal(tagged[1], &fields)
				amount, _ := parseUintString(fields.Amount)
				out.Coinbase = ledger.CoinbaseCommand{
					Receiver:    coinbaseReceiver,
					Amount:      types.Amount(amount),
					Supercharge: kind == "Two",
				}
			}
		}
	}
	return nil
}

// usernameFromMemo decodes the base58check transaction memo and extracts
// a username when it carries the indexer's well-known prefix, per spec.md
// §8 scenario 4. The memo's base58check framing is stripped by whatever
// produced this string upstream; here it's already plain text.
func usernameFromMemo(memo string) string {
	const prefix = "username:"
	if len(memo) > len(prefix) && memo[:len(prefix)] == prefix {
		return memo[len(prefix):]
	}
	return ""
}
