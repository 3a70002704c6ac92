package blockchain_test

import (
	"testing"

	b "txguard/blockchain"
	"txguard/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initAccount(state *types.State, key types.PublicKey, lamports uint64) {
	state.Accounts[key] = &types.Account{
		Lamports: lamports,
		Owner:    b.SystemProgramID,
	}
}

func decodeOp(t *testing.T, ins types.Instruction) types.Op {
	t.Helper()
	op, err := b.DecodeOp(ins)
	require.NoError(t, err)
	return op
}

func TestPerformTransfer(t *testing.T) {
	state := types.NewState()
	monke, jeff := newKeypair(t), newKeypair(t)
	initAccount(state, monke.PublicKey(), 200_000_000_000)

	op := decodeOp(t, b.Transfer(b.TransferParams{
		FromPubkey: monke.PublicKey(),
		ToPubkey:   jeff.PublicKey(),
		Lamports:   100_000_000_000,
	}))
	require.NoError(t, op.Validate(state))
	op.PerformOp(state)

	assert.Equal(t, uint64(100_000_000_000), state.Accounts[monke.PublicKey()].Lamports)
	assert.Equal(t, uint64(100_000_000_000), state.Accounts[jeff.PublicKey()].Lamports)
	assert.Equal(t, b.SystemProgramID, state.Accounts[jeff.PublicKey()].Owner)
}

func TestPerformUndoTransfer(t *testing.T) {
	state := types.NewState()
	monke, jeff := newKeypair(t), newKeypair(t)
	initAccount(state, monke.PublicKey(), 200_000_000_000)

	op := decodeOp(t, b.Transfer(b.TransferParams{
		FromPubkey: monke.PublicKey(),
		ToPubkey:   jeff.PublicKey(),
		Lamports:   100_000_000_000,
	}))
	undo := op.PerformOp(state)
	undo.PerformUndo(state)

	assert.Equal(t, uint64(200_000_000_000), state.Accounts[monke.PublicKey()].Lamports)
	_, exists := state.Accounts[jeff.PublicKey()]
	assert.False(t, exists, "Jeff was not removed from the account set")
}

func TestUndoTransferToExistingAccount(t *testing.T) {
	state := types.NewState()
	monke, jeff := newKeypair(t), newKeypair(t)
	initAccount(state, monke.PublicKey(), 10)
	initAccount(state, jeff.PublicKey(), 10)

	op := decodeOp(t, b.Transfer(b.TransferParams{FromPubkey: monke.PublicKey(), ToPubkey: jeff.PublicKey(), Lamports: 10}))
	op.PerformOp(state).PerformUndo(state)

	require.Contains(t, state.Accounts, jeff.PublicKey())
	assert.Equal(t, uint64(10), state.Accounts[jeff.PublicKey()].Lamports)
	assert.Equal(t, uint64(10), state.Accounts[monke.PublicKey()].Lamports)
}

func TestPerformCreateAccount(t *testing.T) {
	state := types.NewState()
	wallet, account := newKeypair(t), newKeypair(t)
	rent := b.MinimumBalanceForRentExemption(accountSize)
	initAccount(state, wallet.PublicKey(), 5*b.LamportsPerSol)

	op := decodeOp(t, createAccountIx(wallet, account))
	require.NoError(t, op.Validate(state))
	undo := op.PerformOp(state)

	created := state.Accounts[account.PublicKey()]
	require.NotNil(t, created)
	assert.Equal(t, rent, created.Lamports)
	assert.Equal(t, uint64(accountSize), created.Space)
	assert.Len(t, created.Data, accountSize)
	assert.Equal(t, 5*b.LamportsPerSol-rent, state.Accounts[wallet.PublicKey()].Lamports)

	undo.PerformUndo(state)
	assert.NotContains(t, state.Accounts, account.PublicKey())
	assert.Equal(t, uint64(5*b.LamportsPerSol), state.Accounts[wallet.PublicKey()].Lamports)
}

func TestValidateCreateAccount(t *testing.T) {
	wallet, account := newKeypair(t), newKeypair(t)
	rent := b.MinimumBalanceForRentExemption(accountSize)

	t.Run("account already in use", func(t *testing.T) {
		state := types.NewState()
		initAccount(state, wallet.PublicKey(), b.LamportsPerSol)
		initAccount(state, account.PublicKey(), 1)
		err := decodeOp(t, createAccountIx(wallet, account)).Validate(state)
		assert.ErrorIs(t, err, b.ErrAccountAlreadyInUse)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		state := types.NewState()
		initAccount(state, wallet.PublicKey(), rent-1)
		err := decodeOp(t, createAccountIx(wallet, account)).Validate(state)
		assert.ErrorIs(t, err, b.ErrInsufficientFunds)
	})

	t.Run("payer does not exist", func(t *testing.T) {
		err := decodeOp(t, createAccountIx(wallet, account)).Validate(types.NewState())
		assert.ErrorIs(t, err, b.ErrAccountNotFound)
	})

	t.Run("not rent exempt", func(t *testing.T) {
		state := types.NewState()
		initAccount(state, wallet.PublicKey(), b.LamportsPerSol)
		ix := b.CreateAccount(b.CreateAccountParams{
			FromPubkey:       wallet.PublicKey(),
			NewAccountPubkey: account.PublicKey(),
			Lamports:         rent - 1,
			Space:            accountSize,
			ProgramID:        b.SystemProgramID,
		})
		err := decodeOp(t, ix).Validate(state)
		assert.ErrorIs(t, err, b.ErrInsufficientFundsForRent)
	})
}

func TestDecodeOpRejectsUnsignedAccounts(t *testing.T) {
	wallet, account := newKeypair(t), newKeypair(t)

	ix := createAccountIx(wallet, account)
	ix.Accounts[1].IsSigner = false
	_, err := b.DecodeOp(ix)
	assert.ErrorIs(t, err, b.ErrMissingRequiredSignature)

	ix = createAccountIx(wallet, account)
	ix.ProgramID = account.PublicKey()
	_, err = b.DecodeOp(ix)
	assert.ErrorIs(t, err, b.ErrUnsupportedProgram)

	ix = createAccountIx(wallet, account)
	ix.Data = ix.Data[:10]
	_, err = b.DecodeOp(ix)
	assert.ErrorIs(t, err, b.ErrInvalidInstruction)
}

func TestApplyOpsUndoesOnFailure(t *testing.T) {
	state := types.NewState()
	wallet, account, jeff := newKeypair(t), newKeypair(t), newKeypair(t)
	initAccount(state, wallet.PublicKey(), b.LamportsPerSol)

	ops := []types.Op{
		&b.FeeOp{Payer: wallet.PublicKey(), Lamports: b.LamportsPerSignature},
		decodeOp(t, b.Transfer(b.TransferParams{FromPubkey: wallet.PublicKey(), ToPubkey: jeff.PublicKey(), Lamports: 1_000})),
		decodeOp(t, createAccountIx(wallet, account)),
		// Overdraws the wallet after the previous ops.
		decodeOp(t, b.Transfer(b.TransferParams{FromPubkey: wallet.PublicKey(), ToPubkey: jeff.PublicKey(), Lamports: b.LamportsPerSol})),
	}

	err := b.ApplyOps(state, ops)
	require.ErrorIs(t, err, b.ErrInsufficientFunds)
	assert.Contains(t, err.Error(), "operation 3")

	assert.Len(t, state.Accounts, 1)
	assert.Equal(t, uint64(b.LamportsPerSol), state.Accounts[wallet.PublicKey()].Lamports)
}
