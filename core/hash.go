package core

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// ComputeEventHash chains one journal entry onto the previous one.
// This is used by the journal (to append entries) and by its verifier.
//
// Formula: SHA256(prev_hash + "|" + seq + "|" + kind + "|" + hex(payload))
func ComputeEventHash(prevHash string, seq uint64, kind string, payload []byte) string {
	data := fmt.Sprintf("%s|%d|%s|%x", prevHash, seq, kind, payload)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputeSettlementHash commits to the full split of one settled auction.
// This is used by the receipt issuer (to sign) and by validation (to verify).
//
// Formula: SHA256(auction_id + "|" + currency + "|" + gross + "|" + fee_recipient:fee
//
//	+ "|" + royalty_recipient:royalty + "|" + seller:seller_proceeds)
//
// Addresses are lower-case hex and amounts are integer strings, so the hash
// does not depend on how decimals are represented in memory.
func ComputeSettlementHash(auctionID string, s *Settlement) string {
	data := strings.Join([]string{
		auctionID,
		addressKey(s.Currency),
		s.Gross.String(),
		addressKey(s.FeeRecipient) + ":" + s.Fee.String(),
		addressKey(s.RoyaltyRecipient) + ":" + s.Royalty.String(),
		addressKey(s.Seller) + ":" + s.SellerProceeds.String(),
	}, "|")
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

func addressKey(a Address) string {
	return strings.ToLower(a.Hex())
}
