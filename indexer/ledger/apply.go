package ledger

import "github.com/prysmaticlabs/mina-indexer/indexer/types"

// Account is one token-account's mutable state.
type Account struct {
	Balance  types.Balance
	Nonce    types.Nonce
	Delegate types.PublicKey
	Username string
}

// accountKey identifies an account within a Ledger: (token, public key).
type accountKey struct {
	Token types.TokenAddress
	PK    types.PublicKey
}

// Ledger is an immutable-by-convention snapshot of every account's state.
// Apply/Unapply never mutate their receiver; they return a new Ledger,
// matching spec.md's "apply(ledger, diff) -> ledger'" pure-function
// contract.
type Ledger struct {
	accounts map[accountKey]Account
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{accounts: make(map[accountKey]Account)}
}

// clone returns a shallow copy with its own account map, so Apply never
// mutates the input ledger.
func (l *Ledger) clone() *Ledger {
	out := &Ledger{accounts: make(map[accountKey]Account, len(l.accounts))}
	for k, v := range l.accounts {
		out.accounts[k] = v
	}
	return out
}

// Account returns the account state for (token, pk), defaulting to a
// fresh zero-value account when unseen.
func (l *Ledger) Account(token types.TokenAddress, pk types.PublicKey) Account {
	return l.accounts[accountKey{token, pk}]
}

func (l *Ledger) has(token types.TokenAddress, pk types.PublicKey) bool {
	_, ok := l.accounts[accountKey{token, pk}]
	return ok
}

func (l *Ledger) set(token types.TokenAddress, pk types.PublicKey, a Account) {
	l.accounts[accountKey{token, pk}] = a
}

// Apply returns a new ledger with every diff entry applied in order.
// Balance arithmetic saturates (types.Amount.Add/Sub); a well-formed
// block never actually underflows, but saturation guarantees it can
// never do so silently even if one does.
//
// KindAccountCreationFee entries are recorded in Entries ahead of the
// diff that credits the new account (for audit ordering), but a newly
// created account has no balance to deduct the fee from until that
// credit lands. So the fee diffs for newly *credited* accounts are
// applied in a second pass, after every other entry, against the
// balance the credit actually left behind (spec.md §4.5 step 3).
// Creation fees for newly observed debited accounts (a payment sender,
// a delegator) carry no credit to wait for and apply in the first pass
// like any other entry.
func Apply(l *Ledger, diff LedgerDiff) *Ledger {
	out := l.clone()
	for _, d := range diff.Entries {
		if d.Kind == KindAccountCreationFee && d.CreatedAccount {
			continue
		}
		applyOne(out, d)
	}
	for _, d := range diff.Entries {
		if d.Kind == KindAccountCreationFee && d.CreatedAccount {
			applyOne(out, d)
		}
	}
	return out
}

// Unapply returns a new ledger with every diff entry undone, using each
// entry's carried pre-image fields. It undoes the second-pass
// creation-fee diffs Apply applies last first, then everything else in
// reverse order, so it round-trips with Apply:
// Unapply(Apply(L, d), d) == L.
func Unapply(l *Ledger, diff LedgerDiff) *Ledger {
	out := l.clone()
	for i := len(diff.Entries) - 1; i >= 0; i-- {
		d := diff.Entries[i]
		if d.Kind == KindAccountCreationFee && d.CreatedAccount {
			unapplyOne(out, d)
		}
	}
	for i := len(diff.Entries) - 1; i >= 0; i-- {
		d := diff.Entries[i]
		if d.Kind == KindAccountCreationFee && d.CreatedAccount {
			continue
		}
		unapplyOne(out, d)
	}
	return out
}

func applyOne(l *Ledger, d AccountDiff) {
	switch d.Kind {
	case KindPayment:
		from := l.Account(d.Token, d.From)
		to := l.Account(d.Token, d.To)
		if !d.Failed {
			from.Balance = from.Balance.Sub(d.Amount)
			to.Balance = to.Balance.Add(d.Amount)
		}
		from.Balance = from.Balance.Sub(d.Fee)
		from.Nonce = d.Nonce + 1
		l.set(d.Token, d.From, from)
		l.set(d.Token, d.To, to)

	case KindCoinbase:
		to := l.Account(d.Token, d.To)
		to.Balance = to.Balance.Add(d.Amount)
		l.set(d.Token, d.To, to)

	case KindFeeTransfer:
		to := l.Account(d.Token, d.To)
		to.Balance = to.Balance.Add(d.Amount)
		l.set(d.Token, d.To, to)

	case KindDelegation:
		from := l.Account(d.Token, d.From)
		from.Delegate = d.Delegate
		from.Balance = from.Balance.Sub(d.Fee)
		from.Nonce = d.Nonce + 1
		l.set(d.Token, d.From, from)

	case KindZkappUpdate:
		// Placeholder surface: the zkapp account-update blob is stored
		// verbatim via the zkapp event columns, not applied to balances.

	case KindTokenSupply:
		to := l.Account(d.Token, d.To)
		if d.SupplyNeg {
			to.Balance = to.Balance.Sub(d.SupplyDelta)
		} else {
			to.Balance = to.Balance.Add(d.SupplyDelta)
		}
		l.set(d.Token, d.To, to)

	case KindUsernameAssignment:
		acc := l.Account(d.Token, d.PublicKey)
		acc.Username = d.Username
		l.set(d.Token, d.PublicKey, acc)

	case KindAccountCreationFee:
		// Debited accounts (CreatedAccount == false) are charged here,
		// against a balance that already existed. Credited accounts defer
		// to Apply's second pass instead, once the paired credit has
		// landed (spec.md §4.5 step 3).
		to := l.Account(d.Token, d.To)
		to.Balance = to.Balance.Sub(d.Fee)
		l.set(d.Token, d.To, to)
	}
}

func unapplyOne(l *Ledger, d AccountDiff) {
	switch d.Kind {
	case KindPayment:
		from := l.Account(d.Token, d.From)
		to := l.Account(d.Token, d.To)
		from.Balance = from.PreBalanceFrom
		to.Balance = to.PreBalanceTo
		from.Nonce = d.PreNonce
		l.set(d.Token, d.From, from)
		l.set(d.Token, d.To, to)

	case KindCoinbase, KindFeeTransfer:
		to := l.Account(d.Token, d.To)
		to.Balance = d.PreBalanceTo
		l.set(d.Token, d.To, to)

	case KindDelegation:
		from := l.Account(d.Token, d.From)
		from.Balance = d.PreBalanceFrom
		from.Delegate = d.PreDelegate
		from.Nonce = d.PreNonce
		l.set(d.Token, d.From, from)

	case KindZkappUpdate:
		// no balance effect to undo

	case KindTokenSupply:
		to := l.Account(d.Token, d.To)
		to.Balance = d.PreBalanceTo
		l.set(d.Token, d.To, to)

	case KindUsernameAssignment:
		acc := l.Account(d.Token, d.PublicKey)
		acc.Username = d.PreUsername
		l.set(d.Token, d.PublicKey, acc)

	case KindAccountCreationFee:
		to := l.Account(d.Token, d.To)
		to.Balance = d.PreBalanceTo
		l.set(d.Token, d.To, to)
	}
}
