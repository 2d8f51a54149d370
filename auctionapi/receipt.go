package auctionapi

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudx-io/assetauction/core"
)

// ReceiptCOSE is a raw COSE_Sign1 settlement receipt.
type ReceiptCOSE []byte

// ReceiptCOSEBase64 is a base64 encoded receipt, standard or URL-safe.
type ReceiptCOSEBase64 string

// ReceiptCOSEGzip is a gzip compressed receipt in unpadded URL-safe base64.
type ReceiptCOSEGzip string

func (r ReceiptCOSE) EncodeBase64() ReceiptCOSEBase64 {
	return ReceiptCOSEBase64(base64.StdEncoding.EncodeToString(r))
}

// EncodeURLSafe encodes the receipt for use in URLs, without padding.
func (r ReceiptCOSE) EncodeURLSafe() ReceiptCOSEBase64 {
	return ReceiptCOSEBase64(base64.RawURLEncoding.EncodeToString(r))
}

// CompressGzip gzips the receipt and encodes it URL-safe. The output is
// deterministic for a given receipt.
func (r ReceiptCOSE) CompressGzip() (ReceiptCOSEGzip, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(r); err != nil {
		return "", fmt.Errorf("compress receipt: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress receipt: %w", err)
	}
	return ReceiptCOSEGzip(base64.RawURLEncoding.EncodeToString(buf.Bytes())), nil
}

func (b ReceiptCOSEBase64) String() string {
	return string(b)
}

// Decode accepts standard, URL-safe, padded and unpadded encodings.
func (b ReceiptCOSEBase64) Decode() (ReceiptCOSE, error) {
	s := strings.TrimSpace(string(b))
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if raw, err := enc.DecodeString(s); err == nil {
			return ReceiptCOSE(raw), nil
		}
	}
	return nil, fmt.Errorf("receipt is not valid base64")
}

func (g ReceiptCOSEGzip) String() string {
	return string(g)
}

func (g ReceiptCOSEGzip) Decompress() (ReceiptCOSE, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(string(g))
	if err != nil {
		return nil, fmt.Errorf("decode compressed receipt: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open compressed receipt: %w", err)
	}
	defer func() { _ = zr.Close() }()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress receipt: %w", err)
	}
	return ReceiptCOSE(raw), nil
}

// ReceiptPayload is the signed content of a settlement receipt.
type ReceiptPayload struct {
	AuctionID     string          `cbor:"auction_id" json:"auction_id"`
	AssetContract string          `cbor:"asset_contract" json:"asset_contract"`
	AssetID       uint64          `cbor:"asset_id" json:"asset_id"`
	Recipient     string          `cbor:"recipient" json:"recipient"`
	Settlement    core.Settlement `cbor:"settlement" json:"settlement"`
	// SettlementHash is core.ComputeSettlementHash over AuctionID and Settlement.
	SettlementHash string `cbor:"settlement_hash" json:"settlement_hash"`
	// SignerKeyID is the hex SHA-256 of the signer's DER public key.
	SignerKeyID string    `cbor:"signer_key_id" json:"signer_key_id"`
	ClaimedAt   time.Time `cbor:"claimed_at" json:"claimed_at"`
	IssuedAt    time.Time `cbor:"issued_at" json:"issued_at"`
}
