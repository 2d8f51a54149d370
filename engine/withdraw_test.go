package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/assetauction/core"
)

// outbidAlice leaves alice with a claimable refund of 150 in currency.
func outbidAlice(t *testing.T, h *harness, currency core.Address) core.Auction {
	t.Helper()
	a := h.open(t, 100, currency)
	h.bid(t, alice, a, 0, 150)
	h.bid(t, bob, a, 0, 200)
	return a
}

func TestWithdraw(t *testing.T) {
	h := setupEngine(t)
	outbidAlice(t, h, token)
	h.events.reset()

	paid, err := h.eng.Withdraw(h.ctx, alice, token)
	assert.NoError(t, err)
	check.Equal(t, "150", paid.String())
	check.Equal(t, "0", h.claimable(alice, token))
	check.Equal(t, "1000", h.bank.BalanceOf(alice, token).String())
	check.Equal(t, "200", h.bank.BalanceOf(custody, token).String())
	check.Equal(t, []core.EventKind{core.EventBalanceUpdated}, h.events.kinds())
	h.conserved(t)

	_, err = h.eng.Withdraw(h.ctx, alice, token)
	check.True(t, errors.Is(err, ErrInvalidState))
}

func TestWithdraw_ReentrantCallSeesZeroBalance(t *testing.T) {
	h := setupEngine(t)
	outbidAlice(t, h, core.NativeCurrency)

	var (
		calls        int
		seenBalance  core.Amount
		reentryError error
	)
	h.bank.OnReceive(alice, func(ctx context.Context, _ core.Address, _ core.Amount) error {
		calls++
		seenBalance = h.eng.Claimable(alice, core.NativeCurrency)
		_, reentryError = h.eng.Withdraw(ctx, alice, core.NativeCurrency)
		return nil
	})

	paid, err := h.eng.Withdraw(h.ctx, alice, core.NativeCurrency)
	assert.NoError(t, err)
	check.Equal(t, "150", paid.String())
	check.Equal(t, 1, calls)
	check.True(t, seenBalance.IsZero())
	check.True(t, errors.Is(reentryError, ErrReentrant))
	check.Equal(t, "1000", h.bank.BalanceOf(alice, core.NativeCurrency).String())
	check.Equal(t, "0", h.claimable(alice, core.NativeCurrency))
	h.conserved(t)
}

func TestWithdraw_RejectedTransferRestoresBalance(t *testing.T) {
	h := setupEngine(t)
	outbidAlice(t, h, core.NativeCurrency)
	h.events.reset()

	rejection := errors.New("cannot receive")
	h.bank.OnReceive(alice, func(context.Context, core.Address, core.Amount) error {
		return rejection
	})

	_, err := h.eng.Withdraw(h.ctx, alice, core.NativeCurrency)
	check.True(t, errors.Is(err, ErrTransferFailed))
	check.True(t, errors.Is(err, rejection))
	check.Equal(t, "150", h.claimable(alice, core.NativeCurrency))
	check.Equal(t, "850", h.bank.BalanceOf(alice, core.NativeCurrency).String())
	check.Equal(t, 0, len(h.events.events))

	h.bank.OnReceive(alice, nil)
	paid, err := h.eng.Withdraw(h.ctx, alice, core.NativeCurrency)
	assert.NoError(t, err)
	check.Equal(t, "150", paid.String())
}

func TestReentrancy_BidDuringCurrencyPull(t *testing.T) {
	h := setupEngine(t)
	a := h.open(t, 100, token)

	// A token whose transfer hook tries to bid again on the same auction.
	var reentryError error
	h.bank.OnReceive(custody, func(ctx context.Context, _ core.Address, _ core.Amount) error {
		_, reentryError = h.eng.PlaceBid(ctx, bob, BidParams{AuctionID: a.ID, ExternalAmount: amt(500)})
		return nil
	})

	h.bid(t, alice, a, 0, 150)
	check.True(t, errors.Is(reentryError, ErrReentrant))
	winner, winning, _ := h.eng.HighestBid(a.ID)
	check.Equal(t, alice, winner)
	check.Equal(t, "150", winning.String())
	h.conserved(t)
}

func TestReentrancy_FailingHookAbortsOperation(t *testing.T) {
	h := setupEngine(t)
	a := h.open(t, 100, core.NativeCurrency)
	h.bid(t, alice, a, 0, 150)
	h.finish()

	// The recipient re-enters from the asset callback and propagates the rejection.
	h.nft.RegisterReceiver(carol, reentrantReceiver{h: h, id: a})

	_, err := h.eng.Claim(h.ctx, alice, a.ID, carol)
	check.True(t, errors.Is(err, ErrTransferFailed))
	check.True(t, errors.Is(err, ErrReentrant))
	check.False(t, h.eng.guard.held.Load())
	check.Equal(t, core.StatusEnded, h.status(t, a.ID))
	check.Equal(t, 0, len(h.eng.Balances()))
	h.conserved(t)

	_, err = h.eng.Claim(h.ctx, alice, a.ID, alice)
	check.NoError(t, err)
}

type reentrantReceiver struct {
	h  *harness
	id core.Auction
}

func (r reentrantReceiver) OnAssetReceived(ctx context.Context, _, _ core.Address, _ uint64, _ []byte) ([4]byte, error) {
	if err := r.h.eng.Cancel(ctx, seller, r.id.ID); err != nil {
		return [4]byte{}, err
	}
	return AcceptanceToken, nil
}

func TestGuard_ReleasedAfterFailure(t *testing.T) {
	h := setupEngine(t)
	a := h.open(t, 100, core.NativeCurrency)

	_, err := h.placeBid(alice, a, 0, 50)
	check.True(t, errors.Is(err, ErrReserveNotMet))
	check.False(t, h.eng.guard.held.Load())

	h.bid(t, alice, a, 0, 150)
}
