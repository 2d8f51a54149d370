package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cloudx-io/assetauction/core"
)

// AuctionParams describes an auction to open.
type AuctionParams struct {
	AssetContract core.Address
	AssetID       uint64
	StartTime     time.Time
	EndTime       time.Time
	ReservePrice  core.Amount
	Currency      core.Address
}

// CreateAuction takes custody of one unit of the asset and opens an auction
// for it. The asset contract must support the royalty standard and owner must
// hold the asset.
func (e *Engine) CreateAuction(ctx context.Context, owner core.Address, p AuctionParams) (core.Auction, error) {
	const op = "create auction"

	var created core.Auction
	err := e.run(ctx, op, func(tx *opTx) error {
		if !core.ValidAmount(p.ReservePrice) {
			return newError(KindInvalidArgument, op, "reserve price %s is not a whole non-negative amount", p.ReservePrice)
		}
		if !p.EndTime.After(p.StartTime) {
			return newError(KindInvalidArgument, op, "end time %s is not after start time %s", p.EndTime, p.StartTime)
		}
		if now := e.clock.Now(); !p.EndTime.After(now) {
			return newError(KindInvalidArgument, op, "end time %s is not in the future", p.EndTime)
		}

		active, err := e.platformActive(ctx, op)
		if err != nil {
			return err
		}
		if !active {
			return newError(KindInvalidState, op, "platform is not active")
		}
		approved, err := e.registry.IsApprovedCurrency(ctx, p.Currency)
		if err != nil {
			return wrapError(KindUnknown, op, err, "querying currency approval")
		}
		if !approved {
			return newError(KindCurrencyMismatch, op, "currency %s is not approved", p.Currency.Hex())
		}

		contract, err := e.gateway.contract(ctx, op, p.AssetContract)
		if err != nil {
			return err
		}
		supported, err := contract.SupportsRoyaltyStandard(ctx)
		if err != nil {
			return wrapError(KindUnknown, op, err, "probing royalty support")
		}
		if !supported {
			return newError(KindInvalidArgument, op, "asset contract %s does not support royalties", p.AssetContract.Hex())
		}
		owned, err := contract.OwnedAmount(ctx, owner, p.AssetID)
		if err != nil {
			return wrapError(KindUnknown, op, err, "querying asset balance")
		}
		if owned < 1 {
			return newError(KindNotAuthorized, op, "%s does not own asset %d", owner.Hex(), p.AssetID)
		}

		created = core.Auction{
			ID:            uuid.New(),
			Owner:         owner,
			AssetContract: p.AssetContract,
			AssetID:       p.AssetID,
			StartTime:     p.StartTime,
			EndTime:       p.EndTime,
			ReservePrice:  p.ReservePrice,
			Currency:      p.Currency,
		}
		if err := e.store.Create(created); err != nil {
			return wrapError(KindInvalidState, op, err, "recording auction")
		}
		tx.emit(core.AuctionCreated{Auction: created})

		return e.gateway.pullAsset(ctx, op, contract, owner, p.AssetID)
	})
	if err != nil {
		return core.Auction{}, err
	}

	log.Infof("created auction %s for asset %d of %s (reserve %s)", created.ID, created.AssetID, created.AssetContract.Hex(), created.ReservePrice)
	return created, nil
}
