package engine

import (
	"context"

	"github.com/cloudx-io/assetauction/core"
)

// AcceptanceToken is returned by an asset receiver to accept a safe transfer.
// It is the selector of onERC1155Received(address,address,uint256,uint256,bytes).
var AcceptanceToken = [4]byte{0xf2, 0x3a, 0x6e, 0x61}

// PlatformRegistry exposes the platform's activation state, currency whitelist
// and fee schedule.
type PlatformRegistry interface {
	IsPlatformActive(ctx context.Context, platform core.Address) (bool, error)
	IsApprovedCurrency(ctx context.Context, currency core.Address) (bool, error)
	// FeeInfo returns the platform fee owed on amount and who receives it.
	FeeInfo(ctx context.Context, amount core.Amount) (recipient core.Address, fee core.Amount, err error)
}

// RoyaltySource reports creator royalties for the assets of one contract.
type RoyaltySource interface {
	SupportsRoyaltyStandard(ctx context.Context) (bool, error)
	RoyaltyInfo(ctx context.Context, assetID uint64, price core.Amount) (recipient core.Address, amount core.Amount, err error)
}

// AssetContract is a multi-token contract holding the auctioned assets.
type AssetContract interface {
	RoyaltySource
	OwnedAmount(ctx context.Context, owner core.Address, assetID uint64) (uint64, error)
	// SafeTransferFrom moves one unit of assetID on behalf of operator. When
	// to is a registered AssetReceiver the contract calls it and fails unless
	// it answers with AcceptanceToken.
	SafeTransferFrom(ctx context.Context, operator, from, to core.Address, assetID uint64, data []byte) error
}

// AssetResolver looks up the asset contract deployed at an address.
type AssetResolver interface {
	AssetContract(ctx context.Context, contract core.Address) (AssetContract, error)
}

// AssetResolverFunc adapts a function to AssetResolver.
type AssetResolverFunc func(ctx context.Context, contract core.Address) (AssetContract, error)

func (f AssetResolverFunc) AssetContract(ctx context.Context, contract core.Address) (AssetContract, error) {
	return f(ctx, contract)
}

// CurrencyTransfer moves native or token currency between accounts and the
// engine's custody account. Transfers may call back into the engine.
type CurrencyTransfer interface {
	TransferIn(ctx context.Context, currency, from core.Address, amount core.Amount) error
	TransferOut(ctx context.Context, currency, to core.Address, amount core.Amount) error
}

// AssetReceiver accepts safe asset transfers.
type AssetReceiver interface {
	OnAssetReceived(ctx context.Context, operator, from core.Address, assetID uint64, data []byte) ([4]byte, error)
}

// EventSink receives committed events in delivery order.
type EventSink interface {
	Emit(ctx context.Context, ev core.Event)
}

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) Emit(ctx context.Context, ev core.Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, ev)
		}
	}
}
