package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txguard/types"
)

func TestAccountSerialization(t *testing.T) {
	var owner types.PublicKey
	owner[0] = 2
	owner[32] = 9

	account := &types.Account{Lamports: 42, Space: 3, Owner: owner, Data: []byte{1, 2, 3}}
	data, err := MarshalAccount(account)
	require.NoError(t, err)
	assert.Contains(t, string(data), owner.String())

	decoded, err := UnmarshalAccount(data)
	require.NoError(t, err)
	assert.Equal(t, account, decoded)

	_, err = MarshalAccount(nil)
	assert.Error(t, err)
	_, err = UnmarshalAccount(nil)
	assert.Error(t, err)
	_, err = UnmarshalAccount([]byte(`{"owner":"0OIl"}`))
	assert.Error(t, err)
}

func TestSignatureStatusSerialization(t *testing.T) {
	status := &types.SignatureStatus{Slot: 7, ConfirmationStatus: types.StatusProcessed}
	data, err := MarshalSignatureStatus(status)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "err")

	decoded, err := UnmarshalSignatureStatus(data)
	require.NoError(t, err)
	assert.Equal(t, status, decoded)
}
