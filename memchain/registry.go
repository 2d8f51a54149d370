// Package memchain provides in-memory stand-ins for the platform registry,
// asset contracts and currency transfers an auction engine depends on.
//
// Transfers invoke receive hooks after the balances move, and a hook that
// fails reverts the transfer. Hooks run without any memchain lock held, so
// they may call back into the engine.
package memchain

import (
	"context"
	"sync"

	"github.com/cloudx-io/assetauction/core"
)

// Registry is an in-memory platform registry with a flat basis-point fee.
type Registry struct {
	mu           sync.RWMutex
	inactive     map[core.Address]bool
	approved     map[core.Address]bool
	feeRecipient core.Address
	feeBps       uint32
}

// NewRegistry returns a registry where every platform is active and only the
// native currency is approved.
func NewRegistry(feeRecipient core.Address, feeBps uint32) (*Registry, error) {
	if err := core.ValidateBasisPoints(feeBps); err != nil {
		return nil, err
	}
	return &Registry{
		inactive:     make(map[core.Address]bool),
		approved:     map[core.Address]bool{core.NativeCurrency: true},
		feeRecipient: feeRecipient,
		feeBps:       feeBps,
	}, nil
}

// SetActive flips the activation state of platform.
func (r *Registry) SetActive(platform core.Address, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inactive[platform] = !active
}

// Approve adds currency to the whitelist.
func (r *Registry) Approve(currency core.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approved[currency] = true
}

// Revoke removes currency from the whitelist.
func (r *Registry) Revoke(currency core.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.approved, currency)
}

func (r *Registry) IsPlatformActive(_ context.Context, platform core.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.inactive[platform], nil
}

func (r *Registry) IsApprovedCurrency(_ context.Context, currency core.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.approved[currency], nil
}

func (r *Registry) FeeInfo(_ context.Context, amount core.Amount) (core.Address, core.Amount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeRecipient, core.ApplyBasisPoints(amount, r.feeBps), nil
}
