package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/assetauction/core"
)

var (
	owner = core.Address{0x0e}
	alice = core.Address{0xa1}
	bob   = core.Address{0xb0}
)

func newAuction() core.Auction {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return core.Auction{
		ID:           uuid.New(),
		Owner:        owner,
		AssetID:      7,
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
		ReservePrice: decimal.NewFromInt(100),
	}
}

func bid(v int64) core.Bid {
	return core.Bid{Amount: decimal.NewFromInt(v), Timestamp: time.Unix(v, 0)}
}

func TestCreateGet(t *testing.T) {
	s := New()
	a := newAuction()

	assert.NoError(t, s.Create(a))
	got, err := s.Get(a.ID)
	assert.NoError(t, err)
	check.Equal(t, a.ID, got.ID)
	check.Equal(t, uint64(7), got.AssetID)

	err = s.Create(a)
	check.True(t, errors.Is(err, ErrExists))

	_, err = s.Get(uuid.New())
	check.True(t, errors.Is(err, ErrNotFound))
}

func TestAll_CreationOrder(t *testing.T) {
	s := New()
	a1, a2, a3 := newAuction(), newAuction(), newAuction()
	for _, a := range []core.Auction{a1, a2, a3} {
		assert.NoError(t, s.Create(a))
	}

	all := s.All()
	assert.Equal(t, 3, len(all))
	check.Equal(t, a1.ID, all[0].ID)
	check.Equal(t, a2.ID, all[1].ID)
	check.Equal(t, a3.ID, all[2].ID)
}

func TestBids(t *testing.T) {
	s := New()
	a := newAuction()
	assert.NoError(t, s.Create(a))

	_, ok := s.Bid(a.ID, alice)
	check.False(t, ok)
	check.Equal(t, "0", s.BidAmount(a.ID, alice).String())

	assert.NoError(t, s.PutBid(a.ID, alice, bid(150)))
	assert.NoError(t, s.PutBid(a.ID, bob, bid(200)))
	assert.NoError(t, s.SetHighestBidder(a.ID, bob))
	assert.NoError(t, s.PutBid(a.ID, alice, core.Bid{Amount: decimal.Zero}))

	b, ok := s.Bid(a.ID, alice)
	check.True(t, ok)
	check.Equal(t, "0", b.Amount.String())

	winner, amount := s.HighestBid(a.ID)
	check.Equal(t, bob, winner)
	check.Equal(t, "200", amount.String())
	check.Equal(t, []core.Address{alice, bob}, s.Bidders(a.ID))

	err := s.PutBid(uuid.New(), alice, bid(1))
	check.True(t, errors.Is(err, ErrNotFound))
}

func TestFlags_SetOnce(t *testing.T) {
	s := New()
	a := newAuction()
	assert.NoError(t, s.Create(a))

	check.False(t, s.Cancelled(a.ID))
	assert.NoError(t, s.MarkCancelled(a.ID))
	check.True(t, s.Cancelled(a.ID))
	check.True(t, errors.Is(s.MarkCancelled(a.ID), ErrAlreadySet))

	assert.NoError(t, s.MarkClaimed(a.ID))
	check.True(t, s.Claimed(a.ID))
	check.True(t, errors.Is(s.MarkClaimed(a.ID), ErrAlreadySet))

	check.True(t, errors.Is(s.MarkClaimed(uuid.New()), ErrNotFound))
}

func TestRollback(t *testing.T) {
	s := New()
	existing := newAuction()
	assert.NoError(t, s.Create(existing))
	assert.NoError(t, s.PutBid(existing.ID, alice, bid(150)))
	assert.NoError(t, s.SetHighestBidder(existing.ID, alice))

	assert.NoError(t, s.Begin())
	created := newAuction()
	assert.NoError(t, s.Create(created))
	assert.NoError(t, s.PutBid(created.ID, bob, bid(120)))
	assert.NoError(t, s.PutBid(existing.ID, alice, core.Bid{Amount: decimal.Zero}))
	assert.NoError(t, s.PutBid(existing.ID, bob, bid(300)))
	assert.NoError(t, s.SetHighestBidder(existing.ID, bob))
	assert.NoError(t, s.MarkCancelled(existing.ID))
	s.Rollback()

	_, err := s.Get(created.ID)
	check.True(t, errors.Is(err, ErrNotFound))
	check.Equal(t, 1, len(s.All()))

	winner, amount := s.HighestBid(existing.ID)
	check.Equal(t, alice, winner)
	check.Equal(t, "150", amount.String())
	check.False(t, s.Cancelled(existing.ID))
	check.Equal(t, []core.Address{alice}, s.Bidders(existing.ID))
	_, ok := s.Bid(existing.ID, bob)
	check.False(t, ok)
}

func TestBegin_Nested(t *testing.T) {
	s := New()
	assert.NoError(t, s.Begin())
	check.True(t, errors.Is(s.Begin(), ErrTxInProgress))
	s.Commit()
	check.NoError(t, s.Begin())
	s.Rollback()
}
