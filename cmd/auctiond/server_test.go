package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/assetauction/auctionapi"
	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/journal"
	"github.com/cloudx-io/assetauction/memchain"
	"github.com/cloudx-io/assetauction/receipt"
	"github.com/cloudx-io/assetauction/validation"
)

var (
	custody  = common.HexToAddress("0xee")
	seller   = common.HexToAddress("0x5e")
	alice    = common.HexToAddress("0xa1")
	bob      = common.HexToAddress("0xb0")
	treasury = common.HexToAddress("0x7e")
	artist   = common.HexToAddress("0xa7")
	operator = common.HexToAddress("0x0b")
	nftAddr  = common.HexToAddress("0x11")

	genesisTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
)

type testServer struct {
	*Server
	ctx context.Context
	clk *clock.Mock
	out *bytes.Buffer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(genesisTime)
	keys, err := receipt.NewKeyManager()
	assert.NoError(t, err)

	genesis := &memchain.Genesis{
		FeeRecipient: treasury,
		FeeBps:       300,
		Balances: []memchain.GenesisBalance{
			{Account: alice, Currency: core.NativeCurrency, Amount: decimal.NewFromInt(1000)},
			{Account: bob, Currency: core.NativeCurrency, Amount: decimal.NewFromInt(1000)},
		},
		Contracts: []memchain.GenesisContract{{
			Address:   nftAddr,
			Royalties: true,
			Assets: []memchain.GenesisAsset{
				{ID: 1, Owner: seller, Amount: 1, Artist: artist, RoyaltyBps: 500},
			},
		}},
	}

	var buf bytes.Buffer
	s, err := NewServer(Config{
		EngineAddress: custody,
		Operators:     []core.Address{operator},
		Genesis:       genesis,
		Keys:          keys,
		Journal:       &buf,
		Clock:         clk,
		MaxWorkers:    4,
	})
	assert.NoError(t, err)
	t.Cleanup(s.Close)
	return &testServer{Server: s, ctx: context.Background(), clk: clk, out: &buf}
}

// call round-trips req through the JSON handler and decodes the response into out.
func (s *testServer) call(t *testing.T, req any, out any) {
	t.Helper()
	raw, err := json.Marshal(req)
	assert.NoError(t, err)
	resp, err := json.Marshal(s.handle(s.ctx, raw))
	assert.NoError(t, err)
	assert.NoError(t, json.Unmarshal(resp, out))
}

func (s *testServer) callErr(t *testing.T, req any) auctionapi.ErrorResponse {
	t.Helper()
	var resp auctionapi.ErrorResponse
	s.call(t, req, &resp)
	assert.Equal(t, auctionapi.TypeError, resp.Type)
	return resp
}

func (s *testServer) create(t *testing.T) uuid.UUID {
	t.Helper()
	var resp auctionapi.AuctionResponse
	s.call(t, auctionapi.CreateAuctionRequest{
		Type:          auctionapi.TypeCreateAuction,
		Owner:         seller,
		AssetContract: nftAddr,
		AssetID:       1,
		StartTime:     genesisTime,
		EndTime:       genesisTime.Add(time.Hour),
		ReservePrice:  decimal.NewFromInt(100),
		Currency:      core.NativeCurrency,
	}, &resp)
	assert.Equal(t, auctionapi.TypeAuction, resp.Type)
	check.Equal(t, core.StatusActive, resp.Status)
	return resp.Auction.ID
}

func (s *testServer) bid(t *testing.T, id uuid.UUID, bidder core.Address, amount int64) auctionapi.BidResponse {
	t.Helper()
	var resp auctionapi.BidResponse
	s.call(t, auctionapi.PlaceBidRequest{
		Type:           auctionapi.TypePlaceBid,
		AuctionID:      id,
		Bidder:         bidder,
		FromOwnBalance: decimal.Zero,
		ExternalAmount: decimal.NewFromInt(amount),
		AttachedNative: decimal.NewFromInt(amount),
	}, &resp)
	return resp
}

func TestServer_Ping(t *testing.T) {
	s := newTestServer(t)
	var resp auctionapi.PongResponse
	s.call(t, auctionapi.Request{Type: auctionapi.TypePing}, &resp)
	check.Equal(t, auctionapi.TypePong, resp.Type)
	check.Equal(t, genesisTime.Unix(), resp.Timestamp)
}

func TestServer_AuctionLifecycle(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t)

	first := s.bid(t, id, alice, 150)
	check.Equal(t, auctionapi.TypePlaceBid, first.Type)
	check.True(t, first.Bid.Amount.Equal(decimal.NewFromInt(150)))
	s.bid(t, id, bob, 200)

	var bal auctionapi.BalanceResponse
	s.call(t, auctionapi.BalanceRequest{Type: auctionapi.TypeBalance, Account: alice, Currency: core.NativeCurrency}, &bal)
	check.True(t, bal.Claimable.Equal(decimal.NewFromInt(150)))

	s.clk.Add(time.Hour + time.Second)

	var st auctionapi.StatusResponse
	s.call(t, auctionapi.AuctionQuery{Type: auctionapi.TypeStatus, AuctionID: id}, &st)
	check.Equal(t, core.StatusEnded, st.Status)

	var claimed auctionapi.ClaimResponse
	s.call(t, auctionapi.ClaimRequest{Type: auctionapi.TypeClaim, AuctionID: id, Caller: bob, Recipient: bob}, &claimed)
	assert.Equal(t, auctionapi.TypeClaim, claimed.Type)
	assert.NotNil(t, claimed.Settlement)
	check.True(t, claimed.Settlement.Fee.Equal(decimal.NewFromInt(6)))
	check.True(t, claimed.Settlement.Royalty.Equal(decimal.NewFromInt(10)))
	check.True(t, claimed.Settlement.SellerProceeds.Equal(decimal.NewFromInt(184)))
	check.NotEqual(t, "", claimed.ReceiptCOSEBase64.String())

	var rcpt auctionapi.ReceiptResponse
	s.call(t, auctionapi.AuctionQuery{Type: auctionapi.TypeReceipt, AuctionID: id}, &rcpt)
	check.Equal(t, claimed.ReceiptCOSEBase64, rcpt.ReceiptCOSEBase64)
	result, err := validation.VerifyReceipt(rcpt.ReceiptCOSEBase64, rcpt.PublicKey)
	assert.NoError(t, err)
	check.True(t, result.IsValid())

	var withdrawn auctionapi.WithdrawResponse
	s.call(t, auctionapi.WithdrawRequest{Type: auctionapi.TypeWithdraw, Account: seller, Currency: core.NativeCurrency}, &withdrawn)
	check.True(t, withdrawn.Amount.Equal(decimal.NewFromInt(184)))
	check.True(t, s.chain.Bank.BalanceOf(seller, core.NativeCurrency).Equal(decimal.NewFromInt(184)))

	var snap auctionapi.AuctionResponse
	s.call(t, auctionapi.AuctionQuery{Type: auctionapi.TypeAuction, AuctionID: id}, &snap)
	check.Equal(t, core.StatusEndedClaimed, snap.Status)
	check.True(t, snap.Claimed)
	check.Equal(t, bob, snap.HighestBidder)

	entries, err := journal.ReadAll(s.out)
	assert.NoError(t, err)
	check.NoError(t, journal.Verify(entries))
	check.Equal(t, s.journal.Head(), entries[len(entries)-1].Hash)
}

func TestServer_Errors(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t)

	resp := s.callErr(t, auctionapi.PlaceBidRequest{
		Type:           auctionapi.TypePlaceBid,
		AuctionID:      id,
		Bidder:         alice,
		FromOwnBalance: decimal.Zero,
		ExternalAmount: decimal.NewFromInt(50),
		AttachedNative: decimal.NewFromInt(50),
	})
	check.Equal(t, "reserve_not_met", resp.Kind)

	resp = s.callErr(t, auctionapi.AuctionQuery{Type: auctionapi.TypeStatus, AuctionID: uuid.New()})
	check.Equal(t, "not_found", resp.Kind)

	resp = s.callErr(t, auctionapi.CancelRequest{Type: auctionapi.TypeCancel, AuctionID: id, Caller: alice})
	check.Equal(t, "not_authorized", resp.Kind)

	resp = s.callErr(t, auctionapi.AuctionQuery{Type: auctionapi.TypeReceipt, AuctionID: id})
	check.Equal(t, "", resp.Kind)

	resp = s.callErr(t, auctionapi.Request{Type: "mint"})
	check.Equal(t, "unknown request type: mint", resp.Message)

	var out auctionapi.ErrorResponse
	resp2, err := json.Marshal(s.handle(s.ctx, []byte("{not json")))
	assert.NoError(t, err)
	assert.NoError(t, json.Unmarshal(resp2, &out))
	check.Equal(t, auctionapi.TypeError, out.Type)
}

func TestServer_CancelAndPlatformSwitch(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t)
	s.bid(t, id, alice, 120)

	resp := s.callErr(t, auctionapi.SetPlatformActiveRequest{Type: auctionapi.TypeSetPlatformActive, Operator: alice, Active: false})
	check.Equal(t, "", resp.Kind)

	var ok auctionapi.OKResponse
	s.call(t, auctionapi.SetPlatformActiveRequest{Type: auctionapi.TypeSetPlatformActive, Operator: operator, Active: false}, &ok)
	check.Equal(t, auctionapi.TypeOK, ok.Type)

	var st auctionapi.StatusResponse
	s.call(t, auctionapi.AuctionQuery{Type: auctionapi.TypeStatus, AuctionID: id}, &st)
	check.Equal(t, core.StatusCancelled, st.Status)

	s.call(t, auctionapi.SetPlatformActiveRequest{Type: auctionapi.TypeSetPlatformActive, Operator: operator, Active: true}, &ok)

	var snap auctionapi.AuctionResponse
	s.call(t, auctionapi.CancelRequest{Type: auctionapi.TypeCancel, AuctionID: id, Caller: operator}, &snap)
	check.Equal(t, core.StatusCancelled, snap.Status)
	check.True(t, snap.Cancelled)

	var bal auctionapi.BalanceResponse
	s.call(t, auctionapi.BalanceRequest{Type: auctionapi.TypeBalance, Account: alice, Currency: core.NativeCurrency}, &bal)
	check.True(t, bal.Claimable.Equal(decimal.NewFromInt(120)))

	var claimed auctionapi.ClaimResponse
	s.call(t, auctionapi.ClaimRequest{Type: auctionapi.TypeClaim, AuctionID: id, Caller: seller, Recipient: seller}, &claimed)
	check.True(t, claimed.Settlement == nil)
	check.Equal(t, "", claimed.ReceiptCOSEBase64.String())
}

func TestServer_Serve(t *testing.T) {
	s := newTestServer(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listener) }()

	conn, err := net.Dial("tcp", listener.Addr().String())
	assert.NoError(t, err)
	assert.NoError(t, json.NewEncoder(conn).Encode(auctionapi.Request{Type: auctionapi.TypePing}))
	var pong auctionapi.PongResponse
	assert.NoError(t, json.NewDecoder(conn).Decode(&pong))
	check.Equal(t, auctionapi.TypePong, pong.Type)
	check.NoError(t, conn.Close())

	cancel()
	check.NoError(t, <-done)
}
