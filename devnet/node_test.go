package devnet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	b "txguard/blockchain"
	"txguard/store/memory"
	t "txguard/types"
)

const testFaucetLamports = 1_000 * b.LamportsPerSol

func newTestNode(tt *testing.T) *Node {
	tt.Helper()
	n, err := NewNode(NodeConfig{
		SlotInterval:   10 * time.Millisecond,
		FaucetSeed:     "test-faucet",
		FaucetLamports: testFaucetLamports,
	}, memory.NewMemoryStore(), zap.NewNop())
	require.NoError(tt, err)
	return n
}

func newKeypair(tt *testing.T) *b.Keypair {
	tt.Helper()
	kp, err := b.GenerateKeypair()
	require.NoError(tt, err)
	return kp
}

func createAccountTx(tt *testing.T, n *Node, wallet, account *b.Keypair, space uint64) *b.Transaction {
	tt.Helper()
	tx := b.NewTransaction(b.WithRecentBlockhash(n.GetRecentBlockhash()))
	tx.Add(b.CreateAccount(b.CreateAccountParams{
		FromPubkey:       wallet.PublicKey(),
		NewAccountPubkey: account.PublicKey(),
		Lamports:         n.GetMinimumBalanceForRentExemption(space),
		Space:            space,
		ProgramID:        b.SystemProgramID,
	}))
	tx.SetFeePayer(wallet.PublicKey())
	return tx
}

func TestGenesisFundsFaucet(tt *testing.T) {
	n := newTestNode(tt)

	balance, err := n.GetBalance(n.Faucet())
	require.NoError(tt, err)
	assert.Equal(tt, uint64(testFaucetLamports), balance)
	assert.Zero(tt, n.GetSlot())
}

func TestAirdropConfirmsAfterNextSlot(tt *testing.T) {
	n := newTestNode(tt)
	wallet := newKeypair(tt)

	sig, err := n.RequestAirdrop(wallet.PublicKey(), 5*b.LamportsPerSol)
	require.NoError(tt, err)

	balance, err := n.GetBalance(wallet.PublicKey())
	require.NoError(tt, err)
	assert.Equal(tt, uint64(5*b.LamportsPerSol), balance)

	status, err := n.GetSignatureStatus(sig)
	require.NoError(tt, err)
	require.NotNil(tt, status)
	assert.Equal(tt, t.StatusProcessed, status.ConfirmationStatus)

	require.NoError(tt, n.AdvanceSlot())
	status, err = n.GetSignatureStatus(sig)
	require.NoError(tt, err)
	assert.Equal(tt, t.StatusConfirmed, status.ConfirmationStatus)

	faucet, err := n.GetBalance(n.Faucet())
	require.NoError(tt, err)
	assert.Equal(tt, uint64(testFaucetLamports-5*b.LamportsPerSol-b.LamportsPerSignature), faucet)
}

func TestSendCreateAccount(tt *testing.T) {
	n := newTestNode(tt)
	wallet, account := newKeypair(tt), newKeypair(tt)

	_, err := n.RequestAirdrop(wallet.PublicKey(), 5*b.LamportsPerSol)
	require.NoError(tt, err)

	tx := createAccountTx(tt, n, wallet, account, 1000)
	require.NoError(tt, tx.Sign(wallet, account))
	raw, err := tx.Serialize()
	require.NoError(tt, err)

	sig, err := n.SendRawTransaction(raw)
	require.NoError(tt, err)
	expected, _ := tx.Signature()
	assert.Equal(tt, expected, sig)

	created, err := n.GetAccountInfo(account.PublicKey())
	require.NoError(tt, err)
	require.NotNil(tt, created)
	assert.Equal(tt, uint64(1000), created.Space)
	assert.Equal(tt, b.MinimumBalanceForRentExemption(1000), created.Lamports)

	balance, err := n.GetBalance(wallet.PublicKey())
	require.NoError(tt, err)
	assert.Equal(tt, 5*b.LamportsPerSol-b.MinimumBalanceForRentExemption(1000)-2*b.LamportsPerSignature, balance)

	_, err = n.SendRawTransaction(raw)
	assert.ErrorIs(tt, err, ErrAlreadyProcessed)
}

func TestSendRejectsTamperedTransaction(tt *testing.T) {
	n := newTestNode(tt)
	wallet, account := newKeypair(tt), newKeypair(tt)
	_, err := n.RequestAirdrop(wallet.PublicKey(), 5*b.LamportsPerSol)
	require.NoError(tt, err)

	tx := createAccountTx(tt, n, wallet, account, 1000)
	require.NoError(tt, tx.Sign(wallet, account))
	raw, err := tx.Serialize()
	require.NoError(tt, err)

	// Flip the last byte of the instruction data, which is the owner key.
	tampered := append([]byte{}, raw...)
	tampered[len(tampered)-1] ^= 0xff

	_, err = n.SendRawTransaction(tampered)
	var sigErr *b.SignatureVerificationError
	require.ErrorAs(tt, err, &sigErr)

	info, err := n.GetAccountInfo(account.PublicKey())
	require.NoError(tt, err)
	assert.Nil(tt, info)
}

func TestSendRejectsMissingSignature(tt *testing.T) {
	n := newTestNode(tt)
	wallet, account := newKeypair(tt), newKeypair(tt)

	tx := createAccountTx(tt, n, wallet, account, 1000)
	require.NoError(tt, tx.PartialSign(wallet))
	raw, err := tx.SerializeWith(b.SerializeConfig{RequireAllSignatures: false})
	require.NoError(tt, err)

	_, err = n.SendRawTransaction(raw)
	var missing *b.MissingSignersError
	require.ErrorAs(tt, err, &missing)
	assert.Equal(tt, []t.PublicKey{account.PublicKey()}, missing.Signers)
}

func TestSendRejectsStaleBlockhash(tt *testing.T) {
	n := newTestNode(tt)
	wallet, account := newKeypair(tt), newKeypair(tt)
	_, err := n.RequestAirdrop(wallet.PublicKey(), 5*b.LamportsPerSol)
	require.NoError(tt, err)

	tx := createAccountTx(tt, n, wallet, account, 1000)
	require.NoError(tt, tx.Sign(wallet, account))
	raw, err := tx.Serialize()
	require.NoError(tt, err)

	for i := 0; i < RecentBlockhashQueueLength; i++ {
		require.NoError(tt, n.AdvanceSlot())
	}

	_, err = n.SendRawTransaction(raw)
	assert.ErrorIs(tt, err, ErrBlockhashNotFound)
}

func TestFailedInstructionChargesFee(tt *testing.T) {
	n := newTestNode(tt)
	wallet, account := newKeypair(tt), newKeypair(tt)
	// Enough for the fee, not for the rent.
	_, err := n.RequestAirdrop(wallet.PublicKey(), 1_000_000)
	require.NoError(tt, err)

	tx := createAccountTx(tt, n, wallet, account, 1000)
	require.NoError(tt, tx.Sign(wallet, account))
	raw, err := tx.Serialize()
	require.NoError(tt, err)

	sig, err := n.SendRawTransaction(raw)
	require.NoError(tt, err)

	status, err := n.GetSignatureStatus(sig)
	require.NoError(tt, err)
	assert.Contains(tt, status.Err, b.ErrInsufficientFunds.Error())

	balance, err := n.GetBalance(wallet.PublicKey())
	require.NoError(tt, err)
	assert.Equal(tt, uint64(1_000_000-2*b.LamportsPerSignature), balance)

	info, err := n.GetAccountInfo(account.PublicKey())
	require.NoError(tt, err)
	assert.Nil(tt, info)
}

func TestFeePayerMustExist(tt *testing.T) {
	n := newTestNode(tt)
	wallet, account := newKeypair(tt), newKeypair(tt)

	tx := createAccountTx(tt, n, wallet, account, 1000)
	require.NoError(tt, tx.Sign(wallet, account))
	raw, err := tx.Serialize()
	require.NoError(tt, err)

	_, err = n.SendRawTransaction(raw)
	assert.ErrorIs(tt, err, b.ErrAccountNotFound)
}

func TestBlockhashQueueIsBounded(tt *testing.T) {
	n := newTestNode(tt)
	first := n.GetRecentBlockhash()

	require.NoError(tt, n.AdvanceSlot())
	assert.NotEqual(tt, first, n.GetRecentBlockhash())
	assert.Equal(tt, uint64(1), n.GetSlot())

	for i := 0; i < 2*RecentBlockhashQueueLength; i++ {
		require.NoError(tt, n.AdvanceSlot())
	}
	assert.Len(tt, n.blockhashes, RecentBlockhashQueueLength)
	assert.False(tt, n.isRecent(first))
}
