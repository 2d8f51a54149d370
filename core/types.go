package core

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Address identifies an account, an asset contract or a currency.
// The zero address doubles as the native currency and as "no bidder".
type Address = common.Address

// Amount is a whole, non-negative number of currency base units.
type Amount = decimal.Decimal

// NativeCurrency is the currency identifier of the chain's native asset.
var NativeCurrency = Address{}

// ZeroAmount is the additive identity for Amount.
var ZeroAmount = decimal.Zero

// Auction is the immutable record of a single-asset auction.
type Auction struct {
	ID            uuid.UUID `json:"id"`
	Owner         Address   `json:"owner"`
	AssetContract Address   `json:"asset_contract"`
	AssetID       uint64    `json:"asset_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	ReservePrice  Amount    `json:"reserve_price"`
	Currency      Address   `json:"currency"`
}

// IsNative reports whether the auction is denominated in the native currency.
func (a *Auction) IsNative() bool {
	return a.Currency == NativeCurrency
}

// Bid is the standing commitment of one bidder on one auction.
// An outbid bid keeps its record with a zero amount.
type Bid struct {
	Amount    Amount    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// Settlement is the split of a winning amount among fee recipient, royalty
// recipient and seller.
type Settlement struct {
	Currency         Address `json:"currency"`
	Gross            Amount  `json:"gross"`
	FeeRecipient     Address `json:"fee_recipient"`
	Fee              Amount  `json:"fee"`
	RoyaltyRecipient Address `json:"royalty_recipient"`
	Royalty          Amount  `json:"royalty"`
	Seller           Address `json:"seller"`
	SellerProceeds   Amount  `json:"seller_proceeds"`
}

// Balanced reports whether fee, royalty and seller proceeds add up to the gross amount.
func (s *Settlement) Balanced() bool {
	return s.Fee.Add(s.Royalty).Add(s.SellerProceeds).Equal(s.Gross)
}
