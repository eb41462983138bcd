package ledger

import "github.com/prysmaticlabs/mina-indexer/indexer/types"

// PaymentCommand is an extracted user-command payment (spec.md §4.5 step 1).
type PaymentCommand struct {
	From, To types.PublicKey
	Token    types.TokenAddress
	Amount   types.Amount
	Fee      types.Amount
	Nonce    types.Nonce
	Failed   bool
}

// DelegationCommand is an extracted delegation user command.
type DelegationCommand struct {
	From, Delegate types.PublicKey
	Fee            types.Amount
	Nonce          types.Nonce
}

// CoinbaseCommand is the block's internal coinbase command.
type CoinbaseCommand struct {
	Receiver    types.PublicKey
	Amount      types.Amount
	Supercharge bool
}

// FeeTransferCommand is one internal fee transfer to a snark worker.
type FeeTransferCommand struct {
	Receiver types.PublicKey
	Amount   types.Amount
}

// UsernameCommand assigns a username via a memo-prefixed payment,
// resolved from the payment's memo by the caller (spec.md §8 scenario 4).
type UsernameCommand struct {
	PublicKey types.PublicKey
	Username  string
}

// CreationFee is paid once by the crediting party the first time a token
// account is observed. Its value is read from the block's own
// account-created record, so it is passed in rather than hardcoded here
// (the Mina protocol has changed this value across hard forks).
type CreationFee = types.Amount

// Builder accumulates AccountDiff entries against a ledger snapshot,
// filling in each entry's reversal pre-image fields as it goes so the
// resulting LedgerDiff round-trips through Apply/Unapply immediately.
//
// Builder preserves source order: fee transfers and coinbase are merged
// in call order (spec.md §4.5 step 4 — "fee transfers before coinbase
// unless block says otherwise").
type Builder struct {
	ledger  *Ledger
	entries []AccountDiff
	seen    map[accountKey]bool
	fee     CreationFee
}

// NewBuilder starts building a diff against snapshot l, with creationFee
// applied to any account observed for the first time.
func NewBuilder(l *Ledger, creationFee CreationFee) *Builder {
	return &Builder{ledger: l, seen: make(map[accountKey]bool), fee: creationFee}
}

// maybeCreationFee builds the creation-fee diff for (token, pk) the first
// time it is observed, without applying it. The caller decides when to
// apply it against b.ledger: before the paired diff for a debited
// account, after for a credited one, so the fee is always charged
// against a balance that actually holds the funds it is deducted from
// (spec.md §4.5 step 3; original_source/src/block/post_hardfork/
// account_created.rs subtracts the fee from the post-credit balance).
func (b *Builder) maybeCreationFee(token types.TokenAddress, pk types.PublicKey) (AccountDiff, bool) {
	key := accountKey{token, pk}
	if b.seen[key] || b.ledger.has(token, pk) {
		return AccountDiff{}, false
	}
	b.seen[key] = true
	to := b.ledger.Account(token, pk)
	return AccountDiff{
		Kind:         KindAccountCreationFee,
		To:           pk,
		Token:        token,
		Fee:          b.fee,
		PreBalanceTo: to.Balance,
	}, true
}

// AddFeeTransfer appends an internal fee-transfer diff.
func (b *Builder) AddFeeTransfer(c FeeTransferCommand) {
	feeDiff, isNew := b.maybeCreationFee(types.DefaultToken, c.Receiver)
	to := b.ledger.Account(types.DefaultToken, c.Receiver)
	d := AccountDiff{
		Kind:         KindFeeTransfer,
		To:           c.Receiver,
		Token:        types.DefaultToken,
		Amount:       c.Amount,
		PreBalanceTo: to.Balance,
	}
	applyOne(b.ledger, d)
	if isNew {
		feeDiff.CreatedAccount = true
		applyOne(b.ledger, feeDiff)
		b.entries = append(b.entries, feeDiff, d)
		return
	}
	b.entries = append(b.entries, d)
}

// AddCoinbase appends the block's coinbase diff.
func (b *Builder) AddCoinbase(c CoinbaseCommand) {
	feeDiff, isNew := b.maybeCreationFee(types.DefaultToken, c.Receiver)
	to := b.ledger.Account(types.DefaultToken, c.Receiver)
	d := AccountDiff{
		Kind:         KindCoinbase,
		To:           c.Receiver,
		Token:        types.DefaultToken,
		Amount:       c.Amount,
		Supercharge:  c.Supercharge,
		PreBalanceTo: to.Balance,
	}
	applyOne(b.ledger, d)
	if isNew {
		feeDiff.CreatedAccount = true
		applyOne(b.ledger, feeDiff)
		b.entries = append(b.entries, feeDiff, d)
		return
	}
	b.entries = append(b.entries, d)
}

// AddPayment appends a payment diff, deducting creation fees for any
// never-before-seen sender or receiver. A new sender's fee is charged
// before the payment debits it (there is no credit to wait for); a new
// receiver's fee is charged after the payment credits it.
func (b *Builder) AddPayment(c PaymentCommand) {
	fromFeeDiff, fromIsNew := b.maybeCreationFee(c.Token, c.From)
	if fromIsNew {
		applyOne(b.ledger, fromFeeDiff)
	}
	toFeeDiff, toIsNew := b.maybeCreationFee(c.Token, c.To)

	from := b.ledger.Account(c.Token, c.From)
	to := b.ledger.Account(c.Token, c.To)
	d := AccountDiff{
		Kind:           KindPayment,
		From:           c.From,
		To:             c.To,
		Token:          c.Token,
		Amount:         c.Amount,
		Fee:            c.Fee,
		Nonce:          c.Nonce,
		Failed:         c.Failed,
		PreBalanceFrom: from.Balance,
		PreBalanceTo:   to.Balance,
		PreNonce:       from.Nonce,
	}
	applyOne(b.ledger, d)

	if fromIsNew {
		b.entries = append(b.entries, fromFeeDiff)
	}
	if toIsNew {
		toFeeDiff.CreatedAccount = true
		applyOne(b.ledger, toFeeDiff)
		b.entries = append(b.entries, toFeeDiff)
	}
	b.entries = append(b.entries, d)
}

// AddDelegation appends a delegation diff.
func (b *Builder) AddDelegation(c DelegationCommand) {
	feeDiff, isNew := b.maybeCreationFee(types.DefaultToken, c.From)
	if isNew {
		applyOne(b.ledger, feeDiff)
	}
	from := b.ledger.Account(types.DefaultToken, c.From)
	d := AccountDiff{
		Kind:           KindDelegation,
		From:           c.From,
		Token:          types.DefaultToken,
		Delegate:       c.Delegate,
		Fee:            c.Fee,
		Nonce:          c.Nonce,
		PreBalanceFrom: from.Balance,
		PreDelegate:    from.Delegate,
		PreNonce:       from.Nonce,
	}
	applyOne(b.ledger, d)
	if isNew {
		b.entries = append(b.entries, feeDiff)
	}
	b.entries = append(b.entries, d)
}

// AddUsername appends a username-assignment diff resolved from a
// memo-prefixed payment.
func (b *Builder) AddUsername(c UsernameCommand) {
	acc := b.ledger.Account(types.DefaultToken, c.PublicKey)
	d := AccountDiff{
		Kind:        KindUsernameAssignment,
		PublicKey:   c.PublicKey,
		Token:       types.DefaultToken,
		Username:    c.Username,
		PreUsername: acc.Username,
	}
	b.entries = append(b.entries, d)
	applyOne(b.ledger, d)
}

// Build returns the finished, order-preserving LedgerDiff.
func (b *Builder) Build(stateHash types.StateHash) LedgerDiff {
	return LedgerDiff{StateHash: stateHash, Entries: b.entries}
}
