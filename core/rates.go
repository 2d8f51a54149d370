package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BasisPointsDenominator is the number of basis points in 100%.
const BasisPointsDenominator = 10_000

var bpsDenominator = decimal.NewFromInt(BasisPointsDenominator)

// ApplyBasisPoints returns floor(amount * bps / 10000).
// Uses decimal arithmetic so the truncation is exact for any amount size.
func ApplyBasisPoints(amount Amount, bps uint32) Amount {
	if bps == 0 || amount.IsZero() {
		return decimal.Zero
	}
	q, _ := amount.Mul(decimal.NewFromInt(int64(bps))).QuoRem(bpsDenominator, 0)
	return q
}

// ValidateBasisPoints rejects rates above 100%.
func ValidateBasisPoints(bps uint32) error {
	if bps > BasisPointsDenominator {
		return fmt.Errorf("rate %d bps exceeds %d", bps, BasisPointsDenominator)
	}
	return nil
}

// SplitProceeds computes the settlement of gross among the fee recipient, the
// royalty recipient and the seller. Fee and royalty are both taken from gross,
// not chained; any truncation remainder stays with the seller. A royalty owed to
// the seller is not deducted and not paid separately.
func SplitProceeds(
	gross Amount,
	currency, seller Address,
	feeRecipient Address, fee Amount,
	artist Address, royalty Amount,
) (*Settlement, error) {
	s := &Settlement{
		Currency:       currency,
		Gross:          gross,
		FeeRecipient:   feeRecipient,
		Fee:            fee,
		Royalty:        decimal.Zero,
		Seller:         seller,
		SellerProceeds: gross.Sub(fee),
	}
	if artist != seller && !royalty.IsZero() {
		s.RoyaltyRecipient = artist
		s.Royalty = royalty
		s.SellerProceeds = s.SellerProceeds.Sub(royalty)
	}
	if s.SellerProceeds.Sign() < 0 {
		return nil, fmt.Errorf("fee %s and royalty %s exceed proceeds %s", fee, s.Royalty, gross)
	}
	return s, nil
}
