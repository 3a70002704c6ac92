// Package ledger talks to a ledger node over JSON-RPC.
package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"txguard/config"
	"txguard/types"
)

var (
	ErrTransactionFailed   = errors.New("transaction failed")
	ErrConfirmationTimeout = errors.New("transaction was not confirmed in time")
)

// Client is the ledger API used by the demo runner.
type Client interface {
	RequestAirdrop(ctx context.Context, to types.PublicKey, lamports uint64) (types.Signature, error)
	// ConfirmTransaction blocks until sig is confirmed, fails, or the
	// configured timeout elapses.
	ConfirmTransaction(ctx context.Context, sig types.Signature) error
	GetRecentBlockhash(ctx context.Context) (types.Hash, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, space uint64) (uint64, error)
	SendRawTransaction(ctx context.Context, raw []byte) (types.Signature, error)
	GetBalance(ctx context.Context, key types.PublicKey) (uint64, error)
	GetAccountInfo(ctx context.Context, key types.PublicKey) (*types.Account, error)
	Close()
}

type RPCClient struct {
	rpc    *rpc.Client
	cfg    config.LedgerConfig
	logger *zap.Logger
}

var _ Client = (*RPCClient)(nil)

// Dial connects to cfg.Endpoint. http(s), ws(s) and IPC endpoints are accepted.
func Dial(ctx context.Context, cfg *config.LedgerConfig, logger *zap.Logger) (*RPCClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := rpc.DialContext(ctx, cfg.Endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to ledger at %s", cfg.Endpoint)
	}
	return NewRPCClient(c, cfg, logger), nil
}

func NewRPCClient(c *rpc.Client, cfg *config.LedgerConfig, logger *zap.Logger) *RPCClient {
	return &RPCClient{
		rpc:    c,
		cfg:    *cfg,
		logger: logger.With(zap.String("component", "ledger")),
	}
}

func (c *RPCClient) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if err := c.rpc.CallContext(ctx, result, "ledger_"+method, args...); err != nil {
		return errors.Wrapf(err, "ledger_%s", method)
	}
	return nil
}

func (c *RPCClient) RequestAirdrop(ctx context.Context, to types.PublicKey, lamports uint64) (types.Signature, error) {
	var sig types.Signature
	err := c.call(ctx, &sig, "requestAirdrop", to, lamports)
	return sig, err
}

func (c *RPCClient) GetRecentBlockhash(ctx context.Context) (types.Hash, error) {
	var hash types.Hash
	err := c.call(ctx, &hash, "getRecentBlockhash")
	return hash, err
}

func (c *RPCClient) GetMinimumBalanceForRentExemption(ctx context.Context, space uint64) (uint64, error) {
	var lamports uint64
	err := c.call(ctx, &lamports, "getMinimumBalanceForRentExemption", space)
	return lamports, err
}

func (c *RPCClient) SendRawTransaction(ctx context.Context, raw []byte) (types.Signature, error) {
	var sig types.Signature
	err := c.call(ctx, &sig, "sendRawTransaction", hexutil.Bytes(raw))
	return sig, err
}

func (c *RPCClient) GetBalance(ctx context.Context, key types.PublicKey) (uint64, error) {
	var lamports uint64
	err := c.call(ctx, &lamports, "getBalance", key)
	return lamports, err
}

// GetAccountInfo returns nil if the account does not exist.
func (c *RPCClient) GetAccountInfo(ctx context.Context, key types.PublicKey) (*types.Account, error) {
	var account *types.Account
	err := c.call(ctx, &account, "getAccountInfo", key)
	return account, err
}

func (c *RPCClient) GetSignatureStatus(ctx context.Context, sig types.Signature) (*types.SignatureStatus, error) {
	var status *types.SignatureStatus
	err := c.call(ctx, &status, "getSignatureStatus", sig)
	return status, err
}

func (c *RPCClient) ConfirmTransaction(ctx context.Context, sig types.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(c.cfg.PollInterval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return errors.Wrapf(ErrConfirmationTimeout, "%s after %s", sig, c.cfg.ConfirmTimeout)
		}

		status, err := c.GetSignatureStatus(ctx, sig)
		if err != nil {
			if ctx.Err() != nil {
				return errors.Wrapf(ErrConfirmationTimeout, "%s after %s", sig, c.cfg.ConfirmTimeout)
			}
			return err
		}
		if status == nil {
			continue
		}
		if status.Err != "" {
			return errors.Wrapf(ErrTransactionFailed, "%s: %s", sig, status.Err)
		}
		if status.ConfirmationStatus == types.StatusConfirmed {
			c.logger.Sugar().Debugw("Transaction confirmed", "signature", sig, "slot", status.Slot)
			return nil
		}
	}
}

func (c *RPCClient) Close() {
	c.rpc.Close()
}
