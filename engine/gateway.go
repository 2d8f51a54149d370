package engine

import (
	"context"

	"github.com/cloudx-io/assetauction/core"
)

// gateway wraps every transfer that crosses the engine boundary. Each engine
// operation performs at most one gateway call, after all bookkeeping is done.
type gateway struct {
	self       core.Address
	assets     AssetResolver
	currencies CurrencyTransfer
}

func (g *gateway) contract(ctx context.Context, op string, addr core.Address) (AssetContract, error) {
	c, err := g.assets.AssetContract(ctx, addr)
	if err != nil {
		return nil, wrapError(KindInvalidArgument, op, err, "resolving asset contract %s", addr.Hex())
	}
	return c, nil
}

// pullAsset moves the auctioned asset from its owner into custody.
func (g *gateway) pullAsset(ctx context.Context, op string, c AssetContract, from core.Address, assetID uint64) error {
	if err := c.SafeTransferFrom(ctx, g.self, from, g.self, assetID, nil); err != nil {
		return wrapError(KindTransferFailed, op, err, "pulling asset %d from %s", assetID, from.Hex())
	}
	return nil
}

// releaseAsset moves the custodied asset to recipient.
func (g *gateway) releaseAsset(ctx context.Context, op string, a *core.Auction, to core.Address) error {
	c, err := g.contract(ctx, op, a.AssetContract)
	if err != nil {
		return err
	}
	if err := c.SafeTransferFrom(ctx, g.self, g.self, to, a.AssetID, nil); err != nil {
		return wrapError(KindTransferFailed, op, err, "releasing asset %d to %s", a.AssetID, to.Hex())
	}
	return nil
}

func (g *gateway) pullCurrency(ctx context.Context, op string, currency, from core.Address, amount core.Amount) error {
	if amount.IsZero() {
		return nil
	}
	if err := g.currencies.TransferIn(ctx, currency, from, amount); err != nil {
		return wrapError(KindTransferFailed, op, err, "pulling %s of %s from %s", amount, currency.Hex(), from.Hex())
	}
	return nil
}

func (g *gateway) payOut(ctx context.Context, op string, currency, to core.Address, amount core.Amount) error {
	if err := g.currencies.TransferOut(ctx, currency, to, amount); err != nil {
		return wrapError(KindTransferFailed, op, err, "paying %s of %s to %s", amount, currency.Hex(), to.Hex())
	}
	return nil
}

// OnAssetReceived accepts safe transfers into custody.
func (e *Engine) OnAssetReceived(_ context.Context, operator, from core.Address, assetID uint64, _ []byte) ([4]byte, error) {
	log.Debugf("received asset %d from %s (operator %s)", assetID, from.Hex(), operator.Hex())
	return AcceptanceToken, nil
}
