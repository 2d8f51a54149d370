package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/cloudx-io/assetauction/core"
)

// BidParams funds a bid. The new standing bid is the bidder's prior bid plus
// FromOwnBalance (taken from their claimable balance) plus ExternalAmount
// (pulled from their account). AttachedNative is the native value sent with
// the call and must equal ExternalAmount on native auctions and be zero
// otherwise.
type BidParams struct {
	AuctionID      uuid.UUID
	FromOwnBalance core.Amount
	ExternalAmount core.Amount
	AttachedNative core.Amount
}

// PlaceBid raises bidder's standing bid on an active auction. The previous
// winner, if different, is refunded to their claimable balance.
func (e *Engine) PlaceBid(ctx context.Context, bidder core.Address, p BidParams) (core.Bid, error) {
	const op = "place bid"

	var placed core.Bid
	err := e.run(ctx, op, func(tx *opTx) error {
		for _, amt := range []core.Amount{p.FromOwnBalance, p.ExternalAmount, p.AttachedNative} {
			if !core.ValidAmount(amt) {
				return newError(KindInvalidArgument, op, "amount %s is not a whole non-negative amount", amt)
			}
		}

		a, err := e.auction(op, p.AuctionID)
		if err != nil {
			return err
		}
		status, err := e.status(ctx, op, &a)
		if err != nil {
			return err
		}
		if status != core.StatusActive {
			return newError(KindInactiveAuction, op, "auction %s is %s", a.ID, status)
		}

		if own := e.ledger.Claimable(bidder, a.Currency); own.LessThan(p.FromOwnBalance) {
			return newError(KindInsufficientOwnBalance, op, "own balance %s is below %s", own, p.FromOwnBalance)
		}
		if a.IsNative() {
			if !p.AttachedNative.Equal(p.ExternalAmount) {
				return newError(KindCurrencyMismatch, op, "attached native value %s does not match external amount %s", p.AttachedNative, p.ExternalAmount)
			}
		} else if !p.AttachedNative.IsZero() {
			return newError(KindCurrencyMismatch, op, "native value attached to a %s auction", a.Currency.Hex())
		}

		priorOwn := e.store.BidAmount(a.ID, bidder)
		prevWinner, prevHighest := e.store.HighestBid(a.ID)
		total := core.SumAmounts(p.FromOwnBalance, p.ExternalAmount, priorOwn)
		if !core.Outbids(total, prevHighest) {
			return newError(KindBidTooLow, op, "bid %s does not exceed %s", total, prevHighest)
		}
		if !core.MeetsReserve(total, a.ReservePrice) {
			return newError(KindReserveNotMet, op, "bid %s is below reserve %s", total, a.ReservePrice)
		}

		// Only the increase over the previous winning amount enters escrow; a
		// refunded previous winner's amount moves from escrow to their balance.
		if err := e.ledger.Lock(a.Currency, total.Sub(prevHighest)); err != nil {
			return wrapError(KindInvalidState, op, err, "locking escrow")
		}
		if prevWinner != (core.Address{}) && prevWinner != bidder {
			outbid, _ := e.store.Bid(a.ID, prevWinner)
			outbid.Amount = core.ZeroAmount
			if err := e.store.PutBid(a.ID, prevWinner, outbid); err != nil {
				return wrapError(KindInvalidState, op, err, "clearing outbid bid")
			}
			if err := e.credit(tx, op, prevWinner, a.Currency, prevHighest); err != nil {
				return err
			}
		}
		if !p.FromOwnBalance.IsZero() {
			bal, err := e.ledger.Debit(bidder, a.Currency, p.FromOwnBalance)
			if err != nil {
				return wrapError(KindInsufficientOwnBalance, op, err, "debiting own balance")
			}
			tx.emit(core.BalanceUpdated{Account: bidder, Currency: a.Currency, Balance: bal})
		}

		placed = core.Bid{Amount: total, Timestamp: e.clock.Now()}
		if err := e.store.PutBid(a.ID, bidder, placed); err != nil {
			return wrapError(KindInvalidState, op, err, "recording bid")
		}
		if err := e.store.SetHighestBidder(a.ID, bidder); err != nil {
			return wrapError(KindInvalidState, op, err, "recording winner")
		}
		tx.emit(core.BidPlaced{AuctionID: a.ID, Bidder: bidder, Amount: total, Timestamp: placed.Timestamp})

		return e.gateway.pullCurrency(ctx, op, a.Currency, bidder, p.ExternalAmount)
	})
	if err != nil {
		return core.Bid{}, err
	}

	e.metrics.bids.Add(ctx, 1)
	log.Debugf("auction %s: %s bid %s", p.AuctionID, bidder.Hex(), placed.Amount)
	return placed, nil
}
