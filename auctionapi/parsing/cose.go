// Package parsing decodes signed receipts without verifying them.
package parsing

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/assetauction/auctionapi"
)

// coseSign1Tag is the CBOR tag of a tagged COSE_Sign1 message.
const coseSign1Tag = 18

// Sign1 holds the parts of a COSE_Sign1 message that a verifier needs.
type Sign1 struct {
	Protected []byte
	Payload   []byte
	Signature []byte
}

// ParseSign1 splits a tagged or untagged COSE_Sign1 message.
// COSE_Sign1 structure: [protected, unprotected, payload, signature]
func ParseSign1(coseBytes []byte) (*Sign1, error) {
	body := coseBytes
	var tag cbor.RawTag
	if err := cbor.Unmarshal(coseBytes, &tag); err == nil {
		if tag.Number != coseSign1Tag {
			return nil, fmt.Errorf("unexpected CBOR tag %d", tag.Number)
		}
		body = tag.Content
	}

	var coseArray []any
	if err := cbor.Unmarshal(body, &coseArray); err != nil {
		return nil, fmt.Errorf("parse COSE array: %w", err)
	}
	if len(coseArray) != 4 {
		return nil, fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements, got %d", len(coseArray))
	}

	protected, ok := coseArray[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid protected headers")
	}
	payload, ok := coseArray[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid payload in COSE structure")
	}
	signature, ok := coseArray[3].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid signature")
	}
	return &Sign1{Protected: protected, Payload: payload, Signature: signature}, nil
}

// ExtractCOSEPayload returns the payload of a COSE_Sign1 message.
func ExtractCOSEPayload(coseBytes []byte) ([]byte, error) {
	msg, err := ParseSign1(coseBytes)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

// DecodeReceiptPayload decodes the settlement receipt carried by a COSE_Sign1
// message. The signature is not checked.
func DecodeReceiptPayload(coseBytes []byte) (*auctionapi.ReceiptPayload, error) {
	payload, err := ExtractCOSEPayload(coseBytes)
	if err != nil {
		return nil, err
	}
	var rp auctionapi.ReceiptPayload
	if err := cbor.Unmarshal(payload, &rp); err != nil {
		return nil, fmt.Errorf("parse receipt payload: %w", err)
	}
	return &rp, nil
}
