package devnet

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	b "txguard/blockchain"
	t "txguard/types"
)

func TestRPCErrorCodes(tt *testing.T) {
	cases := map[string]struct {
		err  error
		code int
	}{
		"tampered":  {errors.Wrap(&b.SignatureVerificationError{}, "send"), CodeSignatureVerificationFailure},
		"unsigned":  {&b.MissingSignersError{}, CodeSignatureVerificationFailure},
		"garbage":   {errors.Wrap(b.ErrMalformedTransaction, "parse"), CodeInvalidParams},
		"stale":     {errors.Wrap(ErrBlockhashNotFound, "send"), CodeBlockhashNotFound},
		"duplicate": {ErrAlreadyProcessed, CodeTransactionPrecheckFailed},
		"fee":       {errors.Wrap(b.ErrInsufficientFunds, "fee payer cannot pay"), CodeTransactionPrecheckFailed},
		"other":     {errors.New("disk on fire"), CodeServerError},
	}
	for name, tc := range cases {
		tt.Run(name, func(tt *testing.T) {
			err := rpcError(tc.err)
			var coded rpc.Error
			require.ErrorAs(tt, err, &coded)
			assert.Equal(tt, tc.code, coded.ErrorCode())
			assert.ErrorIs(tt, err, tc.err)
		})
	}
	assert.NoError(tt, rpcError(nil))
}

func TestRPCServerRoundTrip(tt *testing.T) {
	n := newTestNode(tt)
	srv, err := NewRPCServer(n)
	require.NoError(tt, err)
	defer srv.Stop()

	client := rpc.DialInProc(srv)
	defer client.Close()
	ctx := context.Background()

	var hash t.Hash
	require.NoError(tt, client.CallContext(ctx, &hash, "ledger_getRecentBlockhash"))
	assert.Equal(tt, n.GetRecentBlockhash(), hash)

	var rent uint64
	require.NoError(tt, client.CallContext(ctx, &rent, "ledger_getMinimumBalanceForRentExemption", 1000))
	assert.Equal(tt, b.MinimumBalanceForRentExemption(1000), rent)

	var balance uint64
	require.NoError(tt, client.CallContext(ctx, &balance, "ledger_getBalance", n.Faucet()))
	assert.Equal(tt, uint64(testFaucetLamports), balance)

	var sig t.Signature
	err = client.CallContext(ctx, &sig, "ledger_sendRawTransaction", "0x00")
	var coded rpc.Error
	require.ErrorAs(tt, err, &coded)
	assert.Equal(tt, CodeInvalidParams, coded.ErrorCode())
}
