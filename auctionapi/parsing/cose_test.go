package parsing

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/assetauction/auctionapi"
)

func signedMessage(t *testing.T, payload []byte) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	assert.NoError(t, err)
	signer, err := cose.NewSigner(cose.AlgorithmES384, key)
	assert.NoError(t, err)

	msg := cose.NewSign1Message()
	msg.Headers.Protected[cose.HeaderLabelAlgorithm] = cose.AlgorithmES384
	msg.Payload = payload
	assert.NoError(t, msg.Sign(rand.Reader, nil, signer))
	raw, err := msg.MarshalCBOR()
	assert.NoError(t, err)
	return raw
}

func TestParseSign1_TaggedAndUntagged(t *testing.T) {
	tagged := signedMessage(t, []byte("payload"))

	msg, err := ParseSign1(tagged)
	assert.NoError(t, err)
	check.Equal(t, []byte("payload"), msg.Payload)
	check.Equal(t, 96, len(msg.Signature))
	check.True(t, len(msg.Protected) > 0)

	var tag cbor.RawTag
	assert.NoError(t, cbor.Unmarshal(tagged, &tag))
	untagged := []byte(tag.Content)

	payload, err := ExtractCOSEPayload(untagged)
	assert.NoError(t, err)
	check.Equal(t, []byte("payload"), payload)
}

func TestParseSign1_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data any
	}{
		{"not an array", "hello"},
		{"wrong length", []any{[]byte{}, map[int]int{}, []byte("p")}},
		{"payload not bytes", []any{[]byte{}, map[int]int{}, "p", []byte{}}},
		{"wrong tag", cbor.Tag{Number: 98, Content: []any{[]byte{}, map[int]int{}, []byte("p"), []byte{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := cbor.Marshal(tt.data)
			assert.NoError(t, err)
			_, err = ParseSign1(raw)
			check.Error(t, err)
		})
	}
}

func TestDecodeReceiptPayload(t *testing.T) {
	want := auctionapi.ReceiptPayload{
		AuctionID:      "6f1c2a4e-8a53-4d9b-9a57-0a9e4c3d2b11",
		AssetID:        7,
		SettlementHash: "abc",
	}
	payload, err := cbor.Marshal(want)
	assert.NoError(t, err)

	got, err := DecodeReceiptPayload(signedMessage(t, payload))
	assert.NoError(t, err)
	check.Equal(t, want.AuctionID, got.AuctionID)
	check.Equal(t, want.AssetID, got.AssetID)
	check.Equal(t, want.SettlementHash, got.SettlementHash)

	_, err = DecodeReceiptPayload(signedMessage(t, []byte{0xff}))
	check.Error(t, err)
}
