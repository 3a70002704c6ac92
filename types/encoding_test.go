package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase58RoundTrip(t *testing.T) {
	var k PublicKey
	k[0], k[32] = 3, 0xee

	parsed, err := PublicKeyFromBase58(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	// Leading zero bytes are kept as '1' digits.
	var h Hash
	assert.Equal(t, strings.Repeat("1", HashLength), h.String())
	zero, err := HashFromBase58(h.String())
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}

func TestBase58RejectsWrongLength(t *testing.T) {
	var h Hash
	h[5] = 1

	_, err := PublicKeyFromBase58(h.String())
	assert.ErrorContains(t, err, "invalid public key length")

	_, err = SignatureFromBase58(h.String())
	assert.ErrorContains(t, err, "invalid signature length")

	_, err = HashFromBase58("0OIl")
	assert.ErrorContains(t, err, "invalid base58 hash")

	_, err = PublicKeyFromBase58("abc")
	assert.ErrorContains(t, err, "invalid public key length")
}

func TestTextMarshaling(t *testing.T) {
	var sig Signature
	sig[63] = 9
	status := struct {
		Signature Signature `json:"signature"`
		Owner     PublicKey `json:"owner"`
	}{Signature: sig}

	data, err := json.Marshal(status)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"`+sig.String()+`"`)

	var decoded struct {
		Signature Signature `json:"signature"`
		Owner     PublicKey `json:"owner"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, sig, decoded.Signature)
	assert.True(t, decoded.Owner.IsZero())
}

func TestAccountCopyIsDeep(t *testing.T) {
	a := &Account{Lamports: 1, Data: []byte{1}}
	cp := a.Copy()
	cp.Data[0] = 2
	cp.Lamports = 3
	assert.Equal(t, byte(1), a.Data[0])
	assert.Equal(t, uint64(1), a.Lamports)
	assert.Nil(t, (*Account)(nil).Copy())
}
