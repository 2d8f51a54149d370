// Package receipt signs settlement receipts for claimed auctions.
//
// A receipt is a COSE_Sign1 message (ES384) whose payload is the CBOR encoded
// auctionapi.ReceiptPayload. Anyone holding the issuer's public key can check
// a receipt offline with the validation package.
package receipt

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	golog "github.com/ipfs/go-log/v2"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/assetauction/auctionapi"
	"github.com/cloudx-io/assetauction/core"
)

var log = golog.Logger("auction/receipt")

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(err)
	}
}

// Issuer signs a receipt for every settled claim it sees. It is an event sink
// and safe for concurrent use.
type Issuer struct {
	keys   *KeyManager
	signer cose.Signer
	keyID  string
	clock  clock.Clock

	lk       sync.RWMutex
	receipts map[uuid.UUID]auctionapi.ReceiptCOSE
}

func NewIssuer(keys *KeyManager, clk clock.Clock) (*Issuer, error) {
	signer, err := keys.signer()
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}
	keyID, err := keys.KeyID()
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Issuer{
		keys:     keys,
		signer:   signer,
		keyID:    keyID,
		clock:    clk,
		receipts: make(map[uuid.UUID]auctionapi.ReceiptCOSE),
	}, nil
}

// Emit issues a receipt when ev is a settled claim and ignores anything else.
func (i *Issuer) Emit(_ context.Context, ev core.Event) {
	claimed, ok := ev.(core.AssetClaimed)
	if !ok || claimed.Settlement == nil {
		return
	}
	r, err := i.Issue(claimed)
	if err != nil {
		log.Errorf("issuing receipt for auction %s: %v", claimed.AuctionID, err)
		return
	}
	i.lk.Lock()
	i.receipts[claimed.AuctionID] = r
	i.lk.Unlock()
	log.Infof("issued receipt for auction %s (%d bytes)", claimed.AuctionID, len(r))
}

// Issue signs a receipt for a settled claim.
func (i *Issuer) Issue(claimed core.AssetClaimed) (auctionapi.ReceiptCOSE, error) {
	if claimed.Settlement == nil {
		return nil, fmt.Errorf("auction %s was not settled", claimed.AuctionID)
	}
	auctionID := claimed.AuctionID.String()
	payload := auctionapi.ReceiptPayload{
		AuctionID:      auctionID,
		AssetContract:  strings.ToLower(claimed.AssetContract.Hex()),
		AssetID:        claimed.AssetID,
		Recipient:      strings.ToLower(claimed.Recipient.Hex()),
		Settlement:     *claimed.Settlement,
		SettlementHash: core.ComputeSettlementHash(auctionID, claimed.Settlement),
		SignerKeyID:    i.keyID,
		ClaimedAt:      claimed.ClaimedAt.UTC(),
		IssuedAt:       i.clock.Now().UTC(),
	}
	payloadBytes, err := encMode.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal receipt payload: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected[cose.HeaderLabelAlgorithm] = cose.AlgorithmES384
	msg.Headers.Unprotected[cose.HeaderLabelKeyID] = []byte(i.keyID)
	msg.Payload = payloadBytes
	if err := msg.Sign(rand.Reader, nil, i.signer); err != nil {
		return nil, fmt.Errorf("failed to sign receipt: %w", err)
	}
	raw, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt: %w", err)
	}
	return auctionapi.ReceiptCOSE(raw), nil
}

// Receipt returns the receipt issued for auction id.
func (i *Issuer) Receipt(id uuid.UUID) (auctionapi.ReceiptCOSE, bool) {
	i.lk.RLock()
	defer i.lk.RUnlock()
	r, ok := i.receipts[id]
	return r, ok
}

// PublicKeyPEM returns the PEM key that verifies this issuer's receipts.
func (i *Issuer) PublicKeyPEM() (string, error) {
	return i.keys.PublicKeyPEM()
}
