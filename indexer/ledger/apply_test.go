package ledger

import (
	"testing"

	"github.com/prysmaticlabs/mina-indexer/indexer/types"
	"github.com/stretchr/testify/require"
)

func TestApplyUnapplyRoundTripsPayment(t *testing.T) {
	l := NewLedger()
	l.set(types.DefaultToken, "alice", Account{Balance: 1_000_000_000})
	l.set(types.DefaultToken, "bob", Account{Balance: 0})

	b := NewBuilder(l, 0)
	b.AddPayment(PaymentCommand{
		From: "alice", To: "bob", Token: types.DefaultToken,
		Amount: 500_000_000, Fee: 1_000_000, Nonce: 0,
	})
	diff := b.Build("block1")

	applied := Apply(l, diff)
	require.Equal(t, types.Balance(499_000_000), applied.Account(types.DefaultToken, "alice").Balance)
	require.Equal(t, types.Balance(500_000_000), applied.Account(types.DefaultToken, "bob").Balance)
	require.Equal(t, types.Nonce(1), applied.Account(types.DefaultToken, "alice").Nonce)

	unapplied := Unapply(applied, diff)
	require.Equal(t, l.Account(types.DefaultToken, "alice"), unapplied.Account(types.DefaultToken, "alice"))
	require.Equal(t, l.Account(types.DefaultToken, "bob"), unapplied.Account(types.DefaultToken, "bob"))

	reapplied := Apply(unapplied, diff)
	require.Equal(t, applied.Account(types.DefaultToken, "alice"), reapplied.Account(types.DefaultToken, "alice"))
	require.Equal(t, applied.Account(types.DefaultToken, "bob"), reapplied.Account(types.DefaultToken, "bob"))
}

func TestApplySaturatesOnUnderflow(t *testing.T) {
	l := NewLedger()
	l.set(types.DefaultToken, "alice", Account{Balance: 10})

	b := NewBuilder(l, 0)
	b.AddPayment(PaymentCommand{
		From: "alice", To: "bob", Token: types.DefaultToken,
		Amount: 1_000, Fee: 0, Nonce: 0,
	})
	diff := b.Build("block1")
	applied := Apply(l, diff)
	require.Equal(t, types.Balance(0), applied.Account(types.DefaultToken, "alice").Balance)
}

func TestAccountCreationFeeChargedOnce(t *testing.T) {
	l := NewLedger()
	b := NewBuilder(l, 1_000_000)
	b.AddCoinbase(CoinbaseCommand{Receiver: "creator", Amount: 720_000_000_000})
	diff := b.Build("block1")
	applied := Apply(l, diff)

	require.Equal(t, types.Balance(720_000_000_000-1_000_000), applied.Account(types.DefaultToken, "creator").Balance)
	require.Len(t, diff.Entries, 2)
	require.Equal(t, KindAccountCreationFee, diff.Entries[0].Kind)
}

func TestUsernameAssignmentRoundTrips(t *testing.T) {
	l := NewLedger()
	b := NewBuilder(l, 0)
	b.AddUsername(UsernameCommand{PublicKey: "pk1", Username: "Betelgeuse"})
	diff := b.Build("block1")

	applied := Apply(l, diff)
	require.Equal(t, "Betelgeuse", applied.Account(types.DefaultToken, "pk1").Username)

	unapplied := Unapply(applied, diff)
	require.Equal(t, "", unapplied.Account(types.DefaultToken, "pk1").Username)
}
