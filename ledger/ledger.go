// Package ledger keeps pull-payment balances and per-currency escrow totals.
//
// Every mutation can run inside a transaction. The ledger records the
// pre-image of each entry the first time a transaction touches it, so Rollback
// restores the exact state seen by Begin.
package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/cloudx-io/assetauction/core"
)

var (
	ErrInsufficientBalance = errors.New("insufficient claimable balance")
	ErrEscrowUnderflow     = errors.New("escrow underflow")
	ErrInvalidAmount       = errors.New("amount must be a whole non-negative number")
	ErrTxInProgress        = errors.New("ledger transaction already in progress")
)

type balanceKey struct {
	account  core.Address
	currency core.Address
}

type preImage struct {
	amount  core.Amount
	existed bool
}

// Balance is one claimable entry.
type Balance struct {
	Account  core.Address
	Currency core.Address
	Amount   core.Amount
}

// Ledger is not safe for concurrent use.
type Ledger struct {
	claimable map[balanceKey]core.Amount
	escrow    map[core.Address]core.Amount

	inTx         bool
	claimablePre map[balanceKey]preImage
	escrowPre    map[core.Address]preImage
}

func New() *Ledger {
	return &Ledger{
		claimable: make(map[balanceKey]core.Amount),
		escrow:    make(map[core.Address]core.Amount),
	}
}

// Begin opens a transaction.
func (l *Ledger) Begin() error {
	if l.inTx {
		return ErrTxInProgress
	}
	l.inTx = true
	l.claimablePre = make(map[balanceKey]preImage)
	l.escrowPre = make(map[core.Address]preImage)
	return nil
}

// Commit keeps every mutation made since Begin.
func (l *Ledger) Commit() {
	l.endTx()
}

// Rollback restores the state seen by Begin. It is a no-op outside a transaction.
func (l *Ledger) Rollback() {
	if !l.inTx {
		return
	}
	for k, pre := range l.claimablePre {
		if pre.existed {
			l.claimable[k] = pre.amount
		} else {
			delete(l.claimable, k)
		}
	}
	for c, pre := range l.escrowPre {
		if pre.existed {
			l.escrow[c] = pre.amount
		} else {
			delete(l.escrow, c)
		}
	}
	l.endTx()
}

func (l *Ledger) endTx() {
	l.inTx = false
	l.claimablePre = nil
	l.escrowPre = nil
}

// Claimable returns the withdrawable balance of account in currency.
func (l *Ledger) Claimable(account, currency core.Address) core.Amount {
	return l.claimable[balanceKey{account, currency}]
}

// Escrow returns the total of winning bids currently held in currency.
func (l *Ledger) Escrow(currency core.Address) core.Amount {
	return l.escrow[currency]
}

// Credit adds amount to the claimable balance and returns the new balance.
func (l *Ledger) Credit(account, currency core.Address, amount core.Amount) (core.Amount, error) {
	if !core.ValidAmount(amount) {
		return core.ZeroAmount, fmt.Errorf("credit %s: %w", amount, ErrInvalidAmount)
	}
	k := balanceKey{account, currency}
	next := l.claimable[k].Add(amount)
	l.setClaimable(k, next)
	return next, nil
}

// Debit removes amount from the claimable balance and returns the new balance.
func (l *Ledger) Debit(account, currency core.Address, amount core.Amount) (core.Amount, error) {
	if !core.ValidAmount(amount) {
		return core.ZeroAmount, fmt.Errorf("debit %s: %w", amount, ErrInvalidAmount)
	}
	k := balanceKey{account, currency}
	cur := l.claimable[k]
	if cur.LessThan(amount) {
		return cur, fmt.Errorf("debit %s from %s: %w", amount, cur, ErrInsufficientBalance)
	}
	next := cur.Sub(amount)
	l.setClaimable(k, next)
	return next, nil
}

// Drain zeroes the claimable balance and returns what it held.
func (l *Ledger) Drain(account, currency core.Address) core.Amount {
	k := balanceKey{account, currency}
	cur := l.claimable[k]
	if cur.IsZero() {
		return cur
	}
	l.setClaimable(k, core.ZeroAmount)
	return cur
}

// Lock adds amount to the escrow total of currency.
func (l *Ledger) Lock(currency core.Address, amount core.Amount) error {
	if !core.ValidAmount(amount) {
		return fmt.Errorf("lock %s: %w", amount, ErrInvalidAmount)
	}
	l.setEscrow(currency, l.escrow[currency].Add(amount))
	return nil
}

// Release removes amount from the escrow total of currency.
func (l *Ledger) Release(currency core.Address, amount core.Amount) error {
	if !core.ValidAmount(amount) {
		return fmt.Errorf("release %s: %w", amount, ErrInvalidAmount)
	}
	cur := l.escrow[currency]
	if cur.LessThan(amount) {
		return fmt.Errorf("release %s from %s: %w", amount, cur, ErrEscrowUnderflow)
	}
	l.setEscrow(currency, cur.Sub(amount))
	return nil
}

// Balances returns every non-zero claimable entry, ordered by account then currency.
func (l *Ledger) Balances() []Balance {
	out := make([]Balance, 0, len(l.claimable))
	for k, amt := range l.claimable {
		if amt.IsZero() {
			continue
		}
		out = append(out, Balance{Account: k.account, Currency: k.currency, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].Account[:], out[j].Account[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(out[i].Currency[:], out[j].Currency[:]) < 0
	})
	return out
}

// Currencies returns every currency with an escrow entry.
func (l *Ledger) Currencies() []core.Address {
	out := make([]core.Address, 0, len(l.escrow))
	for c := range l.escrow {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

func (l *Ledger) setClaimable(k balanceKey, amount core.Amount) {
	if l.inTx {
		if _, seen := l.claimablePre[k]; !seen {
			prev, existed := l.claimable[k]
			l.claimablePre[k] = preImage{amount: prev, existed: existed}
		}
	}
	l.claimable[k] = amount
}

func (l *Ledger) setEscrow(currency core.Address, amount core.Amount) {
	if l.inTx {
		if _, seen := l.escrowPre[currency]; !seen {
			prev, existed := l.escrow[currency]
			l.escrowPre[currency] = preImage{amount: prev, existed: existed}
		}
	}
	l.escrow[currency] = amount
}
