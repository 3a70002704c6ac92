// Package storetest holds the behavior every LedgerStore backend must share.
package storetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txguard/store"
	"txguard/types"
)

func key(b byte) types.PublicKey {
	var k types.PublicKey
	k[0] = 2
	k[1] = b
	return k
}

func sig(b byte) types.Signature {
	var s types.Signature
	s[0] = b
	s[63] = b
	return s
}

// Run exercises s. The store must be empty on entry.
func Run(t *testing.T, s store.LedgerStore) {
	t.Run("missing entries", func(t *testing.T) {
		account, err := s.GetAccount(key(0xff))
		require.NoError(t, err)
		assert.Nil(t, account)

		status, err := s.GetSignatureStatus(sig(0xff))
		require.NoError(t, err)
		assert.Nil(t, status)
	})

	t.Run("apply batch", func(t *testing.T) {
		err := s.ApplyBatch(&store.Batch{
			Accounts: types.AccountSet{
				key(1): {Lamports: 100},
				key(2): {Lamports: 5, Space: 2, Data: []byte{0, 0}},
			},
			Signature: sig(1),
			Status:    &types.SignatureStatus{Slot: 3, ConfirmationStatus: types.StatusProcessed},
		})
		require.NoError(t, err)

		account, err := s.GetAccount(key(2))
		require.NoError(t, err)
		require.NotNil(t, account)
		assert.Equal(t, uint64(5), account.Lamports)
		assert.Equal(t, []byte{0, 0}, account.Data)

		status, err := s.GetSignatureStatus(sig(1))
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.Equal(t, types.StatusProcessed, status.ConfirmationStatus)
		assert.Equal(t, uint64(3), status.Slot)
	})

	t.Run("returned accounts are copies", func(t *testing.T) {
		account, err := s.GetAccount(key(1))
		require.NoError(t, err)
		account.Lamports = 0

		again, err := s.GetAccount(key(1))
		require.NoError(t, err)
		assert.Equal(t, uint64(100), again.Lamports)
	})

	t.Run("deletions", func(t *testing.T) {
		err := s.ApplyBatch(&store.Batch{
			Accounts:  types.AccountSet{key(1): {Lamports: 105}},
			Deletions: []types.PublicKey{key(2)},
			Signature: sig(2),
			Status:    &types.SignatureStatus{Slot: 4, ConfirmationStatus: types.StatusProcessed},
		})
		require.NoError(t, err)

		account, err := s.GetAccount(key(2))
		require.NoError(t, err)
		assert.Nil(t, account)

		account, err = s.GetAccount(key(1))
		require.NoError(t, err)
		assert.Equal(t, uint64(105), account.Lamports)
	})

	t.Run("confirm up to slot", func(t *testing.T) {
		n, err := s.ConfirmUpTo(3)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		status, err := s.GetSignatureStatus(sig(1))
		require.NoError(t, err)
		assert.Equal(t, types.StatusConfirmed, status.ConfirmationStatus)

		status, err = s.GetSignatureStatus(sig(2))
		require.NoError(t, err)
		assert.Equal(t, types.StatusProcessed, status.ConfirmationStatus)

		n, err = s.ConfirmUpTo(10)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = s.ConfirmUpTo(10)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("batch without status", func(t *testing.T) {
		err := s.ApplyBatch(&store.Batch{Accounts: types.AccountSet{key(3): {Lamports: 1}}})
		require.NoError(t, err)

		account, err := s.GetAccount(key(3))
		require.NoError(t, err)
		assert.Equal(t, uint64(1), account.Lamports)
	})

	t.Run("closed", func(t *testing.T) {
		require.NoError(t, s.Close())

		_, err := s.GetAccount(key(1))
		assert.ErrorIs(t, err, store.ErrClosed)
		assert.ErrorIs(t, s.ApplyBatch(&store.Batch{}), store.ErrClosed)
		assert.NoError(t, s.Close())
	})
}
