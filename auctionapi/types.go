// Package auctionapi defines the JSON messages exchanged with the auction
// daemon and the signed receipt format shared with validators.
package auctionapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/cloudx-io/assetauction/core"
)

// Request and response type tags.
const (
	TypePing              = "ping"
	TypeCreateAuction     = "create_auction"
	TypePlaceBid          = "place_bid"
	TypeClaim             = "claim"
	TypeResolve           = "resolve"
	TypeCancel            = "cancel"
	TypeWithdraw          = "withdraw"
	TypeStatus            = "status"
	TypeAuction           = "auction"
	TypeBalance           = "balance"
	TypeReceipt           = "receipt"
	TypeSetPlatformActive = "set_platform_active"

	TypePong  = "pong"
	TypeOK    = "ok"
	TypeError = "error"
)

// Request carries only the type tag; it is decoded first to pick the full
// request type.
type Request struct {
	Type string `json:"type"`
}

type CreateAuctionRequest struct {
	Type          string       `json:"type"`
	Owner         core.Address `json:"owner"`
	AssetContract core.Address `json:"asset_contract"`
	AssetID       uint64       `json:"asset_id"`
	StartTime     time.Time    `json:"start_time"`
	EndTime       time.Time    `json:"end_time"`
	ReservePrice  core.Amount  `json:"reserve_price"`
	// Currency is the zero address for the native currency.
	Currency core.Address `json:"currency"`
}

type PlaceBidRequest struct {
	Type           string       `json:"type"`
	AuctionID      uuid.UUID    `json:"auction_id"`
	Bidder         core.Address `json:"bidder"`
	FromOwnBalance core.Amount  `json:"from_own_balance"`
	ExternalAmount core.Amount  `json:"external_amount"`
	AttachedNative core.Amount  `json:"attached_native"`
}

type ClaimRequest struct {
	Type      string       `json:"type"`
	AuctionID uuid.UUID    `json:"auction_id"`
	Caller    core.Address `json:"caller"`
	Recipient core.Address `json:"recipient"`
}

type ResolveRequest struct {
	Type      string       `json:"type"`
	AuctionID uuid.UUID    `json:"auction_id"`
	Operator  core.Address `json:"operator"`
}

type CancelRequest struct {
	Type      string       `json:"type"`
	AuctionID uuid.UUID    `json:"auction_id"`
	Caller    core.Address `json:"caller"`
}

type WithdrawRequest struct {
	Type     string       `json:"type"`
	Account  core.Address `json:"account"`
	Currency core.Address `json:"currency"`
}

// AuctionQuery serves the status, auction and receipt requests.
type AuctionQuery struct {
	Type      string    `json:"type"`
	AuctionID uuid.UUID `json:"auction_id"`
}

type BalanceRequest struct {
	Type     string       `json:"type"`
	Account  core.Address `json:"account"`
	Currency core.Address `json:"currency"`
}

type SetPlatformActiveRequest struct {
	Type     string       `json:"type"`
	Operator core.Address `json:"operator"`
	Active   bool         `json:"active"`
}

// ErrorResponse reports a rejected request. Kind is the engine failure kind
// when the engine rejected it.
type ErrorResponse struct {
	Type    string `json:"type"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

type PongResponse struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type OKResponse struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type AuctionResponse struct {
	Type          string       `json:"type"`
	Auction       core.Auction `json:"auction"`
	Status        core.Status  `json:"status"`
	HighestBidder core.Address `json:"highest_bidder"`
	HighestBid    core.Amount  `json:"highest_bid"`
	Cancelled     bool         `json:"cancelled"`
	Claimed       bool         `json:"claimed"`
}

type BidResponse struct {
	Type      string    `json:"type"`
	AuctionID uuid.UUID `json:"auction_id"`
	Bid       core.Bid  `json:"bid"`
}

type StatusResponse struct {
	Type      string      `json:"type"`
	AuctionID uuid.UUID   `json:"auction_id"`
	Status    core.Status `json:"status"`
}

// ClaimResponse answers claim and resolve. Settlement and receipt are absent
// when the owner reclaimed the asset without a sale.
type ClaimResponse struct {
	Type              string            `json:"type"`
	AuctionID         uuid.UUID         `json:"auction_id"`
	Settlement        *core.Settlement  `json:"settlement,omitempty"`
	ReceiptCOSEBase64 ReceiptCOSEBase64 `json:"receipt_cose_base64,omitempty"`
}

type BalanceResponse struct {
	Type      string       `json:"type"`
	Account   core.Address `json:"account"`
	Currency  core.Address `json:"currency"`
	Claimable core.Amount  `json:"claimable"`
}

type WithdrawResponse struct {
	Type     string       `json:"type"`
	Account  core.Address `json:"account"`
	Currency core.Address `json:"currency"`
	Amount   core.Amount  `json:"amount"`
}

// ReceiptResponse carries a settlement receipt and the PEM public key that
// verifies it.
type ReceiptResponse struct {
	Type              string            `json:"type"`
	AuctionID         uuid.UUID         `json:"auction_id"`
	PublicKey         string            `json:"public_key"`
	ReceiptCOSEBase64 ReceiptCOSEBase64 `json:"receipt_cose_base64"`
}
