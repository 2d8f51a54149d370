package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/cloudx-io/assetauction/core"
)

// Cancel stops a pending or active auction. The standing winning bid, if any,
// leaves escrow and is credited back to its bidder. The asset stays in custody
// until the owner reclaims it with Claim.
func (e *Engine) Cancel(ctx context.Context, caller core.Address, id uuid.UUID) error {
	const op = "cancel"

	return e.run(ctx, op, func(tx *opTx) error {
		a, err := e.auction(op, id)
		if err != nil {
			return err
		}
		if caller != a.Owner && !e.IsOperator(caller) {
			return newError(KindNotAuthorized, op, "%s may not cancel auction %s", caller.Hex(), a.ID)
		}
		if e.store.Cancelled(a.ID) {
			return newError(KindAlreadySet, op, "auction %s already cancelled", a.ID)
		}
		status, err := e.status(ctx, op, &a)
		if err != nil {
			return err
		}
		if status != core.StatusActive && status != core.StatusPending {
			return newError(KindInvalidState, op, "auction %s is %s", a.ID, status)
		}

		winner, winning := e.store.HighestBid(a.ID)
		if !winning.IsZero() {
			if err := e.ledger.Release(a.Currency, winning); err != nil {
				return wrapError(KindInvalidState, op, err, "releasing escrow")
			}
			refunded, _ := e.store.Bid(a.ID, winner)
			refunded.Amount = core.ZeroAmount
			if err := e.store.PutBid(a.ID, winner, refunded); err != nil {
				return wrapError(KindInvalidState, op, err, "clearing refunded bid")
			}
			if err := e.credit(tx, op, winner, a.Currency, winning); err != nil {
				return err
			}
		} else {
			winner = core.Address{}
		}
		if err := e.store.MarkCancelled(a.ID); err != nil {
			return wrapError(KindAlreadySet, op, err, "marking cancelled")
		}
		tx.emit(core.AuctionCancelled{
			AuctionID:    a.ID,
			Canceller:    caller,
			Refunded:     winner,
			RefundAmount: winning,
		})

		log.Infof("auction %s cancelled by %s, refunded %s", a.ID, caller.Hex(), winning)
		return nil
	})
}
