package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/ledger"
)

// Snapshot is a read-only view of one auction.
type Snapshot struct {
	Auction       core.Auction `json:"auction"`
	Status        core.Status  `json:"status"`
	HighestBidder core.Address `json:"highest_bidder"`
	HighestBid    core.Amount  `json:"highest_bid"`
	Cancelled     bool         `json:"cancelled"`
	Claimed       bool         `json:"claimed"`
}

// Auction returns the current view of auction id.
func (e *Engine) Auction(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	a, err := e.auction("auction", id)
	if err != nil {
		return Snapshot{}, err
	}
	return e.snapshot(ctx, a)
}

// Auctions returns every auction in creation order.
func (e *Engine) Auctions(ctx context.Context) ([]Snapshot, error) {
	all := e.store.All()
	out := make([]Snapshot, 0, len(all))
	for _, a := range all {
		s, err := e.snapshot(ctx, a)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (e *Engine) snapshot(ctx context.Context, a core.Auction) (Snapshot, error) {
	status, err := e.status(ctx, "auction", &a)
	if err != nil {
		return Snapshot{}, err
	}
	winner, winning := e.store.HighestBid(a.ID)
	return Snapshot{
		Auction:       a,
		Status:        status,
		HighestBidder: winner,
		HighestBid:    winning,
		Cancelled:     e.store.Cancelled(a.ID),
		Claimed:       e.store.Claimed(a.ID),
	}, nil
}

// Bid returns the stored bid of bidder on auction id. Outbid and refunded bids
// read as zero.
func (e *Engine) Bid(id uuid.UUID, bidder core.Address) (core.Bid, error) {
	if _, err := e.auction("bid", id); err != nil {
		return core.Bid{}, err
	}
	b, ok := e.store.Bid(id, bidder)
	if !ok {
		return core.Bid{Amount: core.ZeroAmount}, nil
	}
	return b, nil
}

// HighestBid returns the current winner of auction id and their amount. The
// winner is the zero address when nobody has bid.
func (e *Engine) HighestBid(id uuid.UUID) (core.Address, core.Amount, error) {
	if _, err := e.auction("highest bid", id); err != nil {
		return core.Address{}, core.ZeroAmount, err
	}
	winner, winning := e.store.HighestBid(id)
	return winner, winning, nil
}

// Claimable returns the withdrawable balance of account in currency.
func (e *Engine) Claimable(account, currency core.Address) core.Amount {
	return e.ledger.Claimable(account, currency)
}

// Escrow returns the total of standing winning bids held in currency.
func (e *Engine) Escrow(currency core.Address) core.Amount {
	return e.ledger.Escrow(currency)
}

// Balances returns every non-zero claimable balance.
func (e *Engine) Balances() []ledger.Balance {
	return e.ledger.Balances()
}

// CheckConservation verifies that, for every currency, escrow equals the sum of
// the winning bids of auctions that are neither cancelled nor claimed.
func (e *Engine) CheckConservation() error {
	expected := make(map[core.Address]core.Amount)
	for _, a := range e.store.All() {
		if e.store.Cancelled(a.ID) || e.store.Claimed(a.ID) {
			continue
		}
		_, winning := e.store.HighestBid(a.ID)
		expected[a.Currency] = expected[a.Currency].Add(winning)
	}
	for _, c := range e.ledger.Currencies() {
		if _, ok := expected[c]; !ok {
			expected[c] = core.ZeroAmount
		}
	}
	for c, want := range expected {
		if got := e.ledger.Escrow(c); !got.Equal(want) {
			return fmt.Errorf("escrow of %s is %s, standing bids total %s", c.Hex(), got, want)
		}
	}
	return nil
}
