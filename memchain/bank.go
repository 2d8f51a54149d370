package memchain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudx-io/assetauction/core"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// ReceiveHook runs after currency lands in an account. Returning an error
// reverts the transfer.
type ReceiveHook func(ctx context.Context, currency core.Address, amount core.Amount) error

type holding struct {
	account  core.Address
	currency core.Address
}

// Bank holds native and token balances and moves them in and out of a vault
// account on the vault's behalf.
type Bank struct {
	vault core.Address

	mu       sync.Mutex
	balances map[holding]core.Amount
	hooks    map[core.Address]ReceiveHook
}

func NewBank(vault core.Address) *Bank {
	return &Bank{
		vault:    vault,
		balances: make(map[holding]core.Amount),
		hooks:    make(map[core.Address]ReceiveHook),
	}
}

// Mint creates amount of currency in account.
func (b *Bank) Mint(account, currency core.Address, amount core.Amount) error {
	if !core.ValidAmount(amount) {
		return fmt.Errorf("mint %s: not a whole non-negative amount", amount)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	k := holding{account, currency}
	b.balances[k] = b.balances[k].Add(amount)
	return nil
}

// BalanceOf returns what account holds in currency.
func (b *Bank) BalanceOf(account, currency core.Address) core.Amount {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[holding{account, currency}]
}

// OnReceive installs the hook run when account receives currency. A nil hook
// removes it.
func (b *Bank) OnReceive(account core.Address, hook ReceiveHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hook == nil {
		delete(b.hooks, account)
		return
	}
	b.hooks[account] = hook
}

// TransferIn moves amount from an account into the vault.
func (b *Bank) TransferIn(ctx context.Context, currency, from core.Address, amount core.Amount) error {
	return b.transfer(ctx, currency, from, b.vault, amount)
}

// TransferOut moves amount from the vault to an account.
func (b *Bank) TransferOut(ctx context.Context, currency, to core.Address, amount core.Amount) error {
	return b.transfer(ctx, currency, b.vault, to, amount)
}

func (b *Bank) transfer(ctx context.Context, currency, from, to core.Address, amount core.Amount) error {
	if !core.ValidAmount(amount) {
		return fmt.Errorf("transfer %s: not a whole non-negative amount", amount)
	}
	b.mu.Lock()
	if err := b.move(currency, from, to, amount); err != nil {
		b.mu.Unlock()
		return err
	}
	hook := b.hooks[to]
	b.mu.Unlock()

	if hook == nil {
		return nil
	}
	if err := hook(ctx, currency, amount); err != nil {
		b.mu.Lock()
		defer b.mu.Unlock()
		if rerr := b.move(currency, to, from, amount); rerr != nil {
			return fmt.Errorf("reverting rejected transfer to %s: %v (rejected: %w)", to.Hex(), rerr, err)
		}
		return fmt.Errorf("transfer to %s rejected: %w", to.Hex(), err)
	}
	return nil
}

func (b *Bank) move(currency, from, to core.Address, amount core.Amount) error {
	src, dst := holding{from, currency}, holding{to, currency}
	if b.balances[src].LessThan(amount) {
		return fmt.Errorf("%s holds %s of %s, needs %s: %w", from.Hex(), b.balances[src], currency.Hex(), amount, ErrInsufficientFunds)
	}
	b.balances[src] = b.balances[src].Sub(amount)
	b.balances[dst] = b.balances[dst].Add(amount)
	return nil
}
