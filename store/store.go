// Package store owns auction records, per-auction bids and the cancelled and
// claimed flags. Like the ledger, it journals pre-images so a failed operation
// can be rolled back.
package store

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cloudx-io/assetauction/core"
)

var (
	ErrNotFound     = errors.New("auction not found")
	ErrExists       = errors.New("auction already exists")
	ErrAlreadySet   = errors.New("flag already set")
	ErrTxInProgress = errors.New("store transaction already in progress")
)

type bidKey struct {
	auction uuid.UUID
	bidder  core.Address
}

type flags struct {
	highest   core.Address
	cancelled bool
	claimed   bool
}

type bidPre struct {
	bid     core.Bid
	existed bool
}

// Store is not safe for concurrent use.
type Store struct {
	auctions map[uuid.UUID]core.Auction
	order    []uuid.UUID
	flags    map[uuid.UUID]flags
	bids     map[bidKey]core.Bid
	bidders  map[uuid.UUID][]core.Address

	inTx       bool
	created    []uuid.UUID
	flagsPre   map[uuid.UUID]flags
	bidsPre    map[bidKey]bidPre
	biddersPre map[uuid.UUID]int
}

func New() *Store {
	return &Store{
		auctions: make(map[uuid.UUID]core.Auction),
		flags:    make(map[uuid.UUID]flags),
		bids:     make(map[bidKey]core.Bid),
		bidders:  make(map[uuid.UUID][]core.Address),
	}
}

func (s *Store) Begin() error {
	if s.inTx {
		return ErrTxInProgress
	}
	s.inTx = true
	s.created = nil
	s.flagsPre = make(map[uuid.UUID]flags)
	s.bidsPre = make(map[bidKey]bidPre)
	s.biddersPre = make(map[uuid.UUID]int)
	return nil
}

func (s *Store) Commit() {
	s.endTx()
}

// Rollback undoes every mutation made since Begin.
func (s *Store) Rollback() {
	if !s.inTx {
		return
	}
	for k, pre := range s.bidsPre {
		if pre.existed {
			s.bids[k] = pre.bid
		} else {
			delete(s.bids, k)
		}
	}
	for id, n := range s.biddersPre {
		s.bidders[id] = s.bidders[id][:n]
	}
	for id, pre := range s.flagsPre {
		s.flags[id] = pre
	}
	for _, id := range s.created {
		delete(s.auctions, id)
		delete(s.flags, id)
		delete(s.bidders, id)
		s.order = s.order[:len(s.order)-1]
	}
	s.endTx()
}

func (s *Store) endTx() {
	s.inTx = false
	s.created = nil
	s.flagsPre = nil
	s.bidsPre = nil
	s.biddersPre = nil
}

// Create records a new auction. Auction IDs are unique.
func (s *Store) Create(a core.Auction) error {
	if _, ok := s.auctions[a.ID]; ok {
		return fmt.Errorf("create %s: %w", a.ID, ErrExists)
	}
	s.auctions[a.ID] = a
	s.flags[a.ID] = flags{}
	s.order = append(s.order, a.ID)
	if s.inTx {
		s.created = append(s.created, a.ID)
	}
	return nil
}

// Get returns a copy of the auction record.
func (s *Store) Get(id uuid.UUID) (core.Auction, error) {
	a, ok := s.auctions[id]
	if !ok {
		return core.Auction{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return a, nil
}

// All returns every auction in creation order.
func (s *Store) All() []core.Auction {
	out := make([]core.Auction, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.auctions[id])
	}
	return out
}

// Bid returns the bid of bidder on auction id, if one was ever placed.
func (s *Store) Bid(id uuid.UUID, bidder core.Address) (core.Bid, bool) {
	b, ok := s.bids[bidKey{id, bidder}]
	return b, ok
}

// BidAmount returns the stored bid amount, zero if none.
func (s *Store) BidAmount(id uuid.UUID, bidder core.Address) core.Amount {
	return s.bids[bidKey{id, bidder}].Amount
}

// Bidders returns every account that ever bid on auction id, in first-bid order.
func (s *Store) Bidders(id uuid.UUID) []core.Address {
	out := make([]core.Address, len(s.bidders[id]))
	copy(out, s.bidders[id])
	return out
}

// PutBid stores the bid of bidder on auction id.
func (s *Store) PutBid(id uuid.UUID, bidder core.Address, bid core.Bid) error {
	if _, ok := s.auctions[id]; !ok {
		return fmt.Errorf("put bid on %s: %w", id, ErrNotFound)
	}
	k := bidKey{id, bidder}
	prev, existed := s.bids[k]
	if s.inTx {
		if _, seen := s.bidsPre[k]; !seen {
			s.bidsPre[k] = bidPre{bid: prev, existed: existed}
		}
	}
	if !existed {
		if s.inTx {
			if _, seen := s.biddersPre[id]; !seen {
				s.biddersPre[id] = len(s.bidders[id])
			}
		}
		s.bidders[id] = append(s.bidders[id], bidder)
	}
	s.bids[k] = bid
	return nil
}

// HighestBidder returns the current winner, the zero address if none.
func (s *Store) HighestBidder(id uuid.UUID) core.Address {
	return s.flags[id].highest
}

// HighestBid returns the current winner and the amount of their bid.
func (s *Store) HighestBid(id uuid.UUID) (core.Address, core.Amount) {
	h := s.flags[id].highest
	return h, s.BidAmount(id, h)
}

func (s *Store) SetHighestBidder(id uuid.UUID, bidder core.Address) error {
	return s.updateFlags(id, func(f *flags) error {
		f.highest = bidder
		return nil
	})
}

func (s *Store) Cancelled(id uuid.UUID) bool { return s.flags[id].cancelled }

func (s *Store) Claimed(id uuid.UUID) bool { return s.flags[id].claimed }

// MarkCancelled sets the cancelled flag. It can be set only once.
func (s *Store) MarkCancelled(id uuid.UUID) error {
	return s.updateFlags(id, func(f *flags) error {
		if f.cancelled {
			return fmt.Errorf("cancel %s: %w", id, ErrAlreadySet)
		}
		f.cancelled = true
		return nil
	})
}

// MarkClaimed sets the claimed flag. It can be set only once.
func (s *Store) MarkClaimed(id uuid.UUID) error {
	return s.updateFlags(id, func(f *flags) error {
		if f.claimed {
			return fmt.Errorf("claim %s: %w", id, ErrAlreadySet)
		}
		f.claimed = true
		return nil
	})
}

func (s *Store) updateFlags(id uuid.UUID, fn func(*flags) error) error {
	cur, ok := s.flags[id]
	if !ok {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	next := cur
	if err := fn(&next); err != nil {
		return err
	}
	if s.inTx {
		if _, seen := s.flagsPre[id]; !seen {
			s.flagsPre[id] = cur
		}
	}
	s.flags[id] = next
	return nil
}
