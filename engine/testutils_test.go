package engine

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/memchain"
)

var (
	custody  = core.Address{0xee}
	seller   = core.Address{0x5e}
	alice    = core.Address{0xa1}
	bob      = core.Address{0xb0}
	carol    = core.Address{0xc0}
	treasury = core.Address{0x7e}
	artist   = core.Address{0xa7}
	operator = core.Address{0x0b}
	token    = core.Address{0x70}
	nftAddr  = core.Address{0x11}
	plainNFT = core.Address{0x12}

	genesisTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
)

const (
	assetID     = uint64(1)
	feeBps      = 300
	royaltyBps  = 500
	startingBal = 1_000
)

func amt(v int64) core.Amount {
	return decimal.NewFromInt(v)
}

// recorder keeps every delivered event.
type recorder struct {
	events []core.Event
}

func (r *recorder) Emit(_ context.Context, ev core.Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []core.EventKind {
	out := make([]core.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind()
	}
	return out
}

func (r *recorder) reset() {
	r.events = nil
}

type receiverFunc func() ([4]byte, error)

func (f receiverFunc) OnAssetReceived(context.Context, core.Address, core.Address, uint64, []byte) ([4]byte, error) {
	return f()
}

type harness struct {
	ctx    context.Context
	eng    *Engine
	clk    *clock.Mock
	reg    *memchain.Registry
	bank   *memchain.Bank
	nft    *memchain.MultiToken
	events *recorder
}

func setupEngine(t *testing.T) *harness {
	t.Helper()

	clk := clock.NewMock()
	clk.Set(genesisTime)

	reg, err := memchain.NewRegistry(treasury, feeBps)
	assert.NoError(t, err)
	reg.Approve(token)

	bank := memchain.NewBank(custody)
	for _, acct := range []core.Address{alice, bob, carol} {
		assert.NoError(t, bank.Mint(acct, core.NativeCurrency, amt(startingBal)))
		assert.NoError(t, bank.Mint(acct, token, amt(startingBal)))
	}

	nft := memchain.NewMultiToken(nftAddr, true)
	assert.NoError(t, nft.Issue(assetID, seller, 1, artist, royaltyBps))
	assert.NoError(t, nft.Issue(assetID+1, seller, 1, seller, royaltyBps))
	plain := memchain.NewMultiToken(plainNFT, false)
	assert.NoError(t, plain.Issue(assetID, seller, 1, artist, royaltyBps))
	contracts := memchain.NewContracts(nft, plain)

	rec := &recorder{}
	eng, err := New(Config{
		Address:  custody,
		Registry: reg,
		Assets: AssetResolverFunc(func(_ context.Context, addr core.Address) (AssetContract, error) {
			m, err := contracts.Get(addr)
			if err != nil {
				return nil, err
			}
			return m, nil
		}),
		Currencies: bank,
		Events:     rec,
		Clock:      clk,
		Operators:  []core.Address{operator},
	})
	assert.NoError(t, err)
	nft.RegisterReceiver(custody, eng)
	plain.RegisterReceiver(custody, eng)

	return &harness{
		ctx:    context.Background(),
		eng:    eng,
		clk:    clk,
		reg:    reg,
		bank:   bank,
		nft:    nft,
		events: rec,
	}
}

// open creates an hour-long auction of the default asset starting now.
func (h *harness) open(t *testing.T, reserve int64, currency core.Address) core.Auction {
	t.Helper()
	return h.openAsset(t, assetID, reserve, currency)
}

func (h *harness) openAsset(t *testing.T, id uint64, reserve int64, currency core.Address) core.Auction {
	t.Helper()
	now := h.clk.Now()
	a, err := h.eng.CreateAuction(h.ctx, seller, AuctionParams{
		AssetContract: nftAddr,
		AssetID:       id,
		StartTime:     now,
		EndTime:       now.Add(time.Hour),
		ReservePrice:  amt(reserve),
		Currency:      currency,
	})
	assert.NoError(t, err)
	h.conserved(t)
	return a
}

// bid places an externally funded bid, attaching native value when needed.
func (h *harness) bid(t *testing.T, bidder core.Address, a core.Auction, own, external int64) {
	t.Helper()
	_, err := h.placeBid(bidder, a, own, external)
	assert.NoError(t, err)
	h.conserved(t)
}

func (h *harness) placeBid(bidder core.Address, a core.Auction, own, external int64) (core.Bid, error) {
	p := BidParams{
		AuctionID:      a.ID,
		FromOwnBalance: amt(own),
		ExternalAmount: amt(external),
		AttachedNative: decimal.Zero,
	}
	if a.IsNative() {
		p.AttachedNative = amt(external)
	}
	return h.eng.PlaceBid(h.ctx, bidder, p)
}

func (h *harness) finish() {
	h.clk.Add(time.Hour + time.Second)
}

func (h *harness) conserved(t *testing.T) {
	t.Helper()
	assert.NoError(t, h.eng.CheckConservation())
}

func (h *harness) claimable(account, currency core.Address) string {
	return h.eng.Claimable(account, currency).String()
}

func (h *harness) status(t *testing.T, id uuid.UUID) core.Status {
	t.Helper()
	s, err := h.eng.Status(h.ctx, id)
	assert.NoError(t, err)
	return s
}

func (h *harness) owns(account core.Address) uint64 {
	n, _ := h.nft.OwnedAmount(h.ctx, account, assetID)
	return n
}
