package receipt

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/assetauction/auctionapi"
	"github.com/cloudx-io/assetauction/core"
)

var (
	issuedAt  = time.Date(2024, 1, 1, 13, 0, 1, 0, time.UTC)
	claimedAt = time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)
)

func testClaim() core.AssetClaimed {
	seller := common.HexToAddress("0x5e")
	return core.AssetClaimed{
		AuctionID:     uuid.MustParse("6f1c2a4e-8a53-4d9b-9a57-0a9e4c3d2b11"),
		Claimant:      common.HexToAddress("0xa1"),
		Recipient:     common.HexToAddress("0xA1"),
		AssetContract: common.HexToAddress("0x11"),
		AssetID:       1,
		ClaimedAt:     claimedAt,
		Settlement: &core.Settlement{
			Currency:         core.NativeCurrency,
			Gross:            decimal.NewFromInt(200),
			FeeRecipient:     common.HexToAddress("0x7e"),
			Fee:              decimal.NewFromInt(6),
			RoyaltyRecipient: common.HexToAddress("0xa7"),
			Royalty:          decimal.NewFromInt(10),
			Seller:           seller,
			SellerProceeds:   decimal.NewFromInt(184),
		},
	}
}

func newTestIssuer(t *testing.T) (*Issuer, *KeyManager) {
	t.Helper()
	km, err := NewKeyManager()
	assert.NoError(t, err)
	clk := clock.NewMock()
	clk.Set(issuedAt)
	iss, err := NewIssuer(km, clk)
	assert.NoError(t, err)
	return iss, km
}

func TestIssuer_Issue(t *testing.T) {
	iss, km := newTestIssuer(t)
	claimed := testClaim()

	raw, err := iss.Issue(claimed)
	assert.NoError(t, err)

	var msg cose.Sign1Message
	assert.NoError(t, msg.UnmarshalCBOR(raw))

	alg, err := msg.Headers.Protected.Algorithm()
	assert.NoError(t, err)
	check.Equal(t, cose.AlgorithmES384, alg)

	verifier, err := cose.NewVerifier(cose.AlgorithmES384, km.PublicKey)
	assert.NoError(t, err)
	check.NoError(t, msg.Verify(nil, verifier))

	var payload auctionapi.ReceiptPayload
	assert.NoError(t, cbor.Unmarshal(msg.Payload, &payload))
	check.Equal(t, claimed.AuctionID.String(), payload.AuctionID)
	check.Equal(t, "0x00000000000000000000000000000000000000a1", payload.Recipient)
	check.Equal(t, "0x0000000000000000000000000000000000000011", payload.AssetContract)
	check.Equal(t, uint64(1), payload.AssetID)
	check.True(t, payload.Settlement.Balanced())
	check.True(t, payload.Settlement.Fee.Equal(decimal.NewFromInt(6)))
	check.Equal(t, core.ComputeSettlementHash(payload.AuctionID, &payload.Settlement), payload.SettlementHash)
	check.True(t, payload.ClaimedAt.Equal(claimedAt))
	check.True(t, payload.IssuedAt.Equal(issuedAt))

	keyID, _ := km.KeyID()
	check.Equal(t, keyID, payload.SignerKeyID)
}

func TestIssuer_IssueTamperedFails(t *testing.T) {
	iss, km := newTestIssuer(t)

	raw, err := iss.Issue(testClaim())
	assert.NoError(t, err)

	var msg cose.Sign1Message
	assert.NoError(t, msg.UnmarshalCBOR(raw))
	msg.Payload[len(msg.Payload)-1] ^= 0x01

	verifier, err := cose.NewVerifier(cose.AlgorithmES384, km.PublicKey)
	assert.NoError(t, err)
	check.Error(t, msg.Verify(nil, verifier))
}

func TestIssuer_Emit(t *testing.T) {
	iss, _ := newTestIssuer(t)
	ctx := context.Background()
	claimed := testClaim()

	reclaim := claimed
	reclaim.AuctionID = uuid.New()
	reclaim.Settlement = nil

	iss.Emit(ctx, core.BidPlaced{AuctionID: claimed.AuctionID})
	iss.Emit(ctx, reclaim)
	_, ok := iss.Receipt(claimed.AuctionID)
	check.False(t, ok)
	_, ok = iss.Receipt(reclaim.AuctionID)
	check.False(t, ok)

	iss.Emit(ctx, claimed)
	raw, ok := iss.Receipt(claimed.AuctionID)
	assert.True(t, ok)
	check.True(t, len(raw) > 0)
}

func TestIssuer_IssueWithoutSettlement(t *testing.T) {
	iss, _ := newTestIssuer(t)
	claimed := testClaim()
	claimed.Settlement = nil

	_, err := iss.Issue(claimed)
	check.Error(t, err)
}
