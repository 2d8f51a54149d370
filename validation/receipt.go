// Package validation verifies signed settlement receipts offline.
package validation

import (
	"fmt"

	"github.com/cloudx-io/assetauction/auctionapi"
	"github.com/cloudx-io/assetauction/auctionapi/parsing"
	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/receipt"
)

// VerifyReceipt validates a settlement receipt and verifies:
// - The COSE_Sign1 signature against the provided public key
// - The receipt names the provided key as its signer
// - The settlement hash commits to the settlement
// - Fee, royalty and seller proceeds add up to the gross amount
//
// Returns:
//   - ReceiptValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed input or key)
func VerifyReceipt(receiptB64 auctionapi.ReceiptCOSEBase64, publicKeyPEM string) (*ReceiptValidationResult, error) {
	coseBytes, err := receiptB64.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return verify(coseBytes, publicKeyPEM)
}

// VerifyCompressedReceipt is VerifyReceipt for the gzipped form.
func VerifyCompressedReceipt(receiptGzip auctionapi.ReceiptCOSEGzip, publicKeyPEM string) (*ReceiptValidationResult, error) {
	coseBytes, err := receiptGzip.Decompress()
	if err != nil {
		return nil, fmt.Errorf("decompress receipt: %w", err)
	}
	return verify(coseBytes, publicKeyPEM)
}

func verify(coseBytes auctionapi.ReceiptCOSE, publicKeyPEM string) (*ReceiptValidationResult, error) {
	pub, err := ParsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return nil, err
	}
	keyID, err := receipt.KeyID(pub)
	if err != nil {
		return nil, err
	}

	result := &ReceiptValidationResult{}

	if err := VerifyCOSESignature(coseBytes, pub); err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Signature invalid: %v", err))
	} else {
		result.SignatureValid = true
		result.ValidationDetails = append(result.ValidationDetails, "Signature verified with ES384")
	}

	payload, err := parsing.DecodeReceiptPayload(coseBytes)
	if err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Receipt payload unreadable: %v", err))
		return result, nil
	}
	result.Payload = payload

	result.PublicKeyMatch = validateSigner(payload, keyID, result)
	result.HashValid = validateSettlementHash(payload, result)
	result.SplitBalanced = validateSplit(payload, result)

	return result, nil
}

func validateSigner(payload *auctionapi.ReceiptPayload, keyID string, result *ReceiptValidationResult) bool {
	if payload.SignerKeyID == keyID {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Signer key matches: %s", keyID))
		return true
	}
	result.ValidationDetails = append(result.ValidationDetails,
		fmt.Sprintf("Signer key mismatch: receipt names %s, provided key is %s", payload.SignerKeyID, keyID))
	return false
}

func validateSettlementHash(payload *auctionapi.ReceiptPayload, result *ReceiptValidationResult) bool {
	computed := core.ComputeSettlementHash(payload.AuctionID, &payload.Settlement)
	if computed == payload.SettlementHash {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Settlement hash matches: %s", computed))
		return true
	}
	result.ValidationDetails = append(result.ValidationDetails,
		fmt.Sprintf("Settlement hash mismatch. Computed: %s, receipt: %s", computed, payload.SettlementHash))
	return false
}

func validateSplit(payload *auctionapi.ReceiptPayload, result *ReceiptValidationResult) bool {
	s := &payload.Settlement
	if s.Balanced() && !s.Gross.IsNegative() {
		result.ValidationDetails = append(result.ValidationDetails,
			fmt.Sprintf("Split balanced: fee %s + royalty %s + seller %s = %s", s.Fee, s.Royalty, s.SellerProceeds, s.Gross))
		return true
	}
	result.ValidationDetails = append(result.ValidationDetails,
		fmt.Sprintf("Split unbalanced: fee %s + royalty %s + seller %s != %s", s.Fee, s.Royalty, s.SellerProceeds, s.Gross))
	return false
}
