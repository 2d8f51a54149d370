package validation

import "github.com/cloudx-io/assetauction/auctionapi"

// ReceiptValidationResult contains the outcome of each receipt check.
type ReceiptValidationResult struct {
	SignatureValid bool
	// PublicKeyMatch reports whether the receipt names the provided key as signer.
	PublicKeyMatch bool
	// HashValid reports whether the settlement hash commits to the settlement.
	HashValid bool
	// SplitBalanced reports whether fee, royalty and proceeds add up to gross.
	SplitBalanced     bool
	ValidationDetails []string

	// Payload is nil when the receipt payload could not be decoded.
	Payload *auctionapi.ReceiptPayload
}

// IsValid returns true if all receipt checks passed
func (r *ReceiptValidationResult) IsValid() bool {
	return r.SignatureValid && r.PublicKeyMatch && r.HashValid && r.SplitBalanced
}
