package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/cloudx-io/assetauction/core"
)

// Claim releases the asset of a finished auction to recipient.
//
// The winning bidder claims after the end time: the winning amount is settled
// and the returned settlement describes the split. The owner reclaims a
// cancelled auction, or an ended one that drew no bid or whose reserve was
// never met; nothing is settled and the returned settlement is nil.
func (e *Engine) Claim(ctx context.Context, caller core.Address, id uuid.UUID, recipient core.Address) (*core.Settlement, error) {
	const op = "claim"

	var settled *core.Settlement
	err := e.run(ctx, op, func(tx *opTx) error {
		if recipient == (core.Address{}) {
			return newError(KindInvalidArgument, op, "recipient is the zero address")
		}
		a, err := e.auction(op, id)
		if err != nil {
			return err
		}
		if e.store.Claimed(a.ID) {
			return newError(KindAlreadySet, op, "auction %s already claimed", a.ID)
		}
		winner, winning := e.store.HighestBid(a.ID)
		isWinner := winner != (core.Address{}) && caller == winner
		if !isWinner && caller != a.Owner {
			return newError(KindNotAuthorized, op, "%s is neither the winner nor the owner of auction %s", caller.Hex(), a.ID)
		}
		status, err := e.status(ctx, op, &a)
		if err != nil {
			return err
		}
		if status != core.StatusCancelled && status != core.StatusEnded {
			return newError(KindInvalidState, op, "auction %s is %s", a.ID, status)
		}

		now := e.clock.Now()
		cancelled := e.store.Cancelled(a.ID)
		ended := now.After(a.EndTime)
		switch {
		case isWinner && !cancelled && ended && core.MeetsReserve(winning, a.ReservePrice) && !winning.IsZero():
			if settled, err = e.distribute(ctx, tx, op, &a, winning); err != nil {
				return err
			}
		case caller == a.Owner && (cancelled || (ended && (winning.IsZero() || !core.MeetsReserve(winning, a.ReservePrice)))):
			// Reclaim without a sale.
		case caller == a.Owner && ended && !winning.IsZero():
			return newError(KindNotAuthorized, op, "auction %s was won by %s", a.ID, winner.Hex())
		default:
			return newError(KindInvalidState, op, "auction %s cannot be claimed by %s yet", a.ID, caller.Hex())
		}

		if err := e.store.MarkClaimed(a.ID); err != nil {
			return wrapError(KindAlreadySet, op, err, "marking claimed")
		}
		tx.emit(core.AssetClaimed{
			AuctionID:     a.ID,
			Claimant:      caller,
			Recipient:     recipient,
			AssetContract: a.AssetContract,
			AssetID:       a.AssetID,
			Settlement:    settled,
			ClaimedAt:     now,
		})

		return e.gateway.releaseAsset(ctx, op, &a, recipient)
	})
	if err != nil {
		return nil, err
	}

	if settled != nil {
		e.metrics.settlements.Add(ctx, 1)
	}
	log.Infof("auction %s claimed by %s", id, caller.Hex())
	return settled, nil
}

// Resolve settles an ended auction on behalf of its winner and releases the
// asset to them. Only operators may resolve.
func (e *Engine) Resolve(ctx context.Context, operator core.Address, id uuid.UUID) (*core.Settlement, error) {
	const op = "resolve"

	var settled *core.Settlement
	err := e.run(ctx, op, func(tx *opTx) error {
		if !e.IsOperator(operator) {
			return newError(KindNotAuthorized, op, "%s is not an operator", operator.Hex())
		}
		a, err := e.auction(op, id)
		if err != nil {
			return err
		}
		if e.store.Claimed(a.ID) {
			return newError(KindAlreadySet, op, "auction %s already claimed", a.ID)
		}
		status, err := e.status(ctx, op, &a)
		if err != nil {
			return err
		}
		if status != core.StatusEnded {
			return newError(KindInvalidState, op, "auction %s is %s", a.ID, status)
		}
		winner, winning := e.store.HighestBid(a.ID)
		if winning.IsZero() {
			return newError(KindInvalidState, op, "auction %s has no winning bid", a.ID)
		}

		if settled, err = e.distribute(ctx, tx, op, &a, winning); err != nil {
			return err
		}
		if err := e.store.MarkClaimed(a.ID); err != nil {
			return wrapError(KindAlreadySet, op, err, "marking claimed")
		}
		tx.emit(core.AssetClaimed{
			AuctionID:     a.ID,
			Claimant:      operator,
			Recipient:     winner,
			AssetContract: a.AssetContract,
			AssetID:       a.AssetID,
			Settlement:    settled,
			ClaimedAt:     e.clock.Now(),
		})

		return e.gateway.releaseAsset(ctx, op, &a, winner)
	})
	if err != nil {
		return nil, err
	}

	e.metrics.settlements.Add(ctx, 1)
	log.Infof("auction %s resolved by operator %s", id, operator.Hex())
	return settled, nil
}
