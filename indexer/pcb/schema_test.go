package pcb

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prysmaticlabs/mina-indexer/indexer/types"
)

func TestDetectDistinguishesV1FromV2(t *testing.T) {
	require.Equal(t, SchemaV1, Detect([]byte(`{"scheduled_time":"1"}`)))
	require.Equal(t, SchemaV2, Detect([]byte(`{"version":2,"data":{"scheduled_time":"1"}}`)))
}

func rawString(s string) json.RawMessage {
	b, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return b
}

func rawValue(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func buildBlock() precomputedBlockV1 {
	paymentCmd := userCommand{
		Data: [2]json.RawMessage{
			rawString("Payment"),
			rawValue(paymentPayload{
				Common: signedCommandPayloadCommon{
					Fee: "1", Nonce: "0", Memo: "username:alice", Sender: "sender-pk",
				},
				Body: [2]json.RawMessage{
					rawString("Payment"),
					rawValue(struct {
						Receiver string `json:"receiver_pk"`
						Amount   string `json:"amount"`
					}{Receiver: "receiver-pk", Amount: "100"}),
				},
			}),
		},
	}
	delegationCmd := userCommand{
		Data: [2]json.RawMessage{
			rawString("Stake_delegation"),
			rawValue(paymentPayload{
				Common: signedCommandPayloadCommon{
					Fee: "2", Nonce: "1", Memo: "", Sender: "delegator-pk",
				},
				Body: [2]json.RawMessage{
					rawString("Stake_delegation"),
					rawValue(struct {
						NewDelegate string `json:"new_delegate"`
					}{NewDelegate: "new-delegate-pk"}),
				},
			}),
		},
	}

	b := precomputedBlockV1{
		ScheduledTime: "1600000000",
		ProtocolState: protocolState{
			PreviousStateHash: "G",
		},
		StagedLedgerDiff: stagedLedgerDiff{
			Diff: [2]*stagedLedgerDiffBody{
				{
					Commands: []userCommand{paymentCmd, delegationCmd},
					Coinbase: rawValue([2]json.RawMessage{
						rawString("One"),
						rawValue(struct {
							Amount string `json:"amount"`
						}{Amount: "720000000000"}),
					}),
				},
				nil,
			},
		},
	}
	b.ProtocolState.Body.GenesisStateHash = "GEN"
	b.ProtocolState.Body.ConsensusState.BlockchainLength = "10"
	b.ProtocolState.Body.ConsensusState.GlobalSlotSinceGenesis = "20"
	b.ProtocolState.Body.ConsensusState.BlockCreator = "creator-pk"
	b.ProtocolState.Body.ConsensusState.CoinbaseReceiver = "coinbase-receiver-pk"
	return b
}

func TestParseV1ExtractsPaymentsDelegationsCoinbaseAndUsername(t *testing.T) {
	raw, err := json.Marshal(buildBlock())
	require.NoError(t, err)

	d, err := Parse(raw, "STATEHASH")
	require.NoError(t, err)

	require.Equal(t, types.StateHash("STATEHASH"), d.StateHash)
	require.Equal(t, types.StateHash("G"), d.PreviousStateHash)
	require.Equal(t, types.Height(10), d.Height)
	require.Equal(t, types.GlobalSlot(20), d.GlobalSlot)

	require.Len(t, d.Payments, 1)
	require.Equal(t, types.PublicKey("sender-pk"), d.Payments[0].From)
	require.Equal(t, types.PublicKey("receiver-pk"), d.Payments[0].To)
	require.Equal(t, types.Amount(100), d.Payments[0].Amount)

	require.Len(t, d.Delegations, 1)
	require.Equal(t, types.PublicKey("delegator-pk"), d.Delegations[0].From)
	require.Equal(t, types.PublicKey("new-delegate-pk"), d.Delegations[0].Delegate)

	require.Equal(t, types.PublicKey("coinbase-receiver-pk"), d.Coinbase.Receiver)
	require.Equal(t, types.Amount(720000000000), d.Coinbase.Amount)
	require.False(t, d.Coinbase.Supercharge)

	require.Len(t, d.Usernames, 1)
	require.Equal(t, types.PublicKey("receiver-pk"), d.Usernames[0].PublicKey)
	require.Equal(t, "alice", d.Usernames[0].Username)
}

func TestParseV2UnwrapsDataEnvelope(t *testing.T) {
	v2 := precomputedBlockV2{Version: 2, Data: buildBlock()}
	raw, err := json.Marshal(v2)
	require.NoError(t, err)

	require.Equal(t, SchemaV2, Detect(raw))
	d, err := Parse(raw, "STATEHASH")
	require.NoError(t, err)
	require.Len(t, d.Payments, 1)
	require.Equal(t, types.Height(10), d.Height)
}

func TestUsernameFromMemoRequiresPrefix(t *testing.T) {
	require.Equal(t, "alice", usernameFromMemo("username:alice"))
	require.Equal(t, "", usernameFromMemo("alice"))
	require.Equal(t, "", usernameFromMemo(""))
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := Parse([]byte("not json"), "STATEHASH")
	require.Error(t, err)
}
