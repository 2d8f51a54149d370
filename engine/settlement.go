package engine

import (
	"context"

	"github.com/cloudx-io/assetauction/core"
)

// distribute moves the winning amount of a out of escrow and credits it to the
// fee recipient, the royalty recipient and the seller. Fee and royalty are both
// quoted on the gross amount.
func (e *Engine) distribute(ctx context.Context, tx *opTx, op string, a *core.Auction, gross core.Amount) (*core.Settlement, error) {
	if err := e.ledger.Release(a.Currency, gross); err != nil {
		return nil, wrapError(KindInvalidState, op, err, "releasing escrow")
	}

	feeRecipient, fee, err := e.registry.FeeInfo(ctx, gross)
	if err != nil {
		return nil, wrapError(KindUnknown, op, err, "querying platform fee")
	}
	contract, err := e.gateway.contract(ctx, op, a.AssetContract)
	if err != nil {
		return nil, err
	}
	artist, royalty, err := contract.RoyaltyInfo(ctx, a.AssetID, gross)
	if err != nil {
		return nil, wrapError(KindUnknown, op, err, "querying royalty")
	}
	if !core.ValidAmount(fee) || !core.ValidAmount(royalty) {
		return nil, newError(KindInvalidState, op, "fee %s or royalty %s is not a whole non-negative amount", fee, royalty)
	}

	s, err := core.SplitProceeds(gross, a.Currency, a.Owner, feeRecipient, fee, artist, royalty)
	if err != nil {
		return nil, wrapError(KindInvalidState, op, err, "splitting proceeds of auction %s", a.ID)
	}
	if err := e.credit(tx, op, s.FeeRecipient, s.Currency, s.Fee); err != nil {
		return nil, err
	}
	if err := e.credit(tx, op, s.RoyaltyRecipient, s.Currency, s.Royalty); err != nil {
		return nil, err
	}
	if err := e.credit(tx, op, s.Seller, s.Currency, s.SellerProceeds); err != nil {
		return nil, err
	}

	log.Debugf("auction %s settled: fee %s, royalty %s, seller %s", a.ID, s.Fee, s.Royalty, s.SellerProceeds)
	return s, nil
}
