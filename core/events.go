package core

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies an audit event. The numeric order is the order in which
// events of one operation are delivered.
type EventKind int

const (
	EventAuctionCreated EventKind = iota
	EventAuctionCancelled
	EventBidPlaced
	EventAssetClaimed
	EventBalanceUpdated
)

var eventKindNames = [...]string{
	EventAuctionCreated:   "auction_created",
	EventAuctionCancelled: "auction_cancelled",
	EventBidPlaced:        "bid_placed",
	EventAssetClaimed:     "asset_claimed",
	EventBalanceUpdated:   "balance_updated",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return "unknown"
	}
	return eventKindNames[k]
}

// Event is a state change observable outside the engine.
type Event interface {
	Kind() EventKind
}

type AuctionCreated struct {
	Auction Auction `json:"auction"`
}

type AuctionCancelled struct {
	AuctionID uuid.UUID `json:"auction_id"`
	Canceller Address   `json:"canceller"`
	// Refunded is the zero address when the auction had no standing bid.
	Refunded     Address `json:"refunded"`
	RefundAmount Amount  `json:"refund_amount"`
}

type BidPlaced struct {
	AuctionID uuid.UUID `json:"auction_id"`
	Bidder    Address   `json:"bidder"`
	Amount    Amount    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// AssetClaimed is emitted when the asset leaves custody. Settlement is nil when
// the owner reclaimed the asset without a sale.
type AssetClaimed struct {
	AuctionID     uuid.UUID   `json:"auction_id"`
	Claimant      Address     `json:"claimant"`
	Recipient     Address     `json:"recipient"`
	AssetContract Address     `json:"asset_contract"`
	AssetID       uint64      `json:"asset_id"`
	Settlement    *Settlement `json:"settlement,omitempty"`
	ClaimedAt     time.Time   `json:"claimed_at"`
}

type BalanceUpdated struct {
	Account  Address `json:"account"`
	Currency Address `json:"currency"`
	Balance  Amount  `json:"balance"`
}

func (AuctionCreated) Kind() EventKind   { return EventAuctionCreated }
func (AuctionCancelled) Kind() EventKind { return EventAuctionCancelled }
func (BidPlaced) Kind() EventKind        { return EventBidPlaced }
func (AssetClaimed) Kind() EventKind     { return EventAssetClaimed }
func (BalanceUpdated) Kind() EventKind   { return EventBalanceUpdated }
