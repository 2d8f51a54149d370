package core

import (
	"github.com/shopspring/decimal"
)

// ValidAmount reports whether a is a whole, non-negative number of base units.
func ValidAmount(a Amount) bool {
	return a.Sign() >= 0 && a.IsInteger()
}

// MeetsReserve returns true if the bid amount meets or exceeds the reserve price.
func MeetsReserve(amount, reserve Amount) bool {
	return amount.GreaterThanOrEqual(reserve)
}

// Outbids returns true if total is strictly higher than the current winning amount.
// Ties never displace the standing bidder.
func Outbids(total, winning Amount) bool {
	return total.GreaterThan(winning)
}

// SumAmounts adds amounts exactly.
func SumAmounts(amounts ...Amount) Amount {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	return sum
}
