package devnet

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"

	b "txguard/blockchain"
	t "txguard/types"
)

// JSON-RPC error codes returned by the ledger namespace.
const (
	CodeServerError                  = -32000
	CodeTransactionPrecheckFailed    = -32002
	CodeSignatureVerificationFailure = -32003
	CodeBlockhashNotFound            = -32004
	CodeInvalidParams                = -32602
)

// Error carries a JSON-RPC error code back to the caller.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string  { return e.Err.Error() }
func (e *Error) ErrorCode() int { return e.Code }
func (e *Error) Unwrap() error  { return e.Err }

func rpcError(err error) error {
	if err == nil {
		return nil
	}

	var (
		sigErr        *b.SignatureVerificationError
		missingErr    *b.MissingSignersError
		incompleteErr *b.IncompleteTransactionError
	)
	code := CodeServerError
	switch {
	case errors.As(err, &sigErr), errors.As(err, &missingErr):
		code = CodeSignatureVerificationFailure
	case errors.Is(err, b.ErrMalformedTransaction), errors.As(err, &incompleteErr):
		code = CodeInvalidParams
	case errors.Is(err, ErrBlockhashNotFound):
		code = CodeBlockhashNotFound
	case errors.Is(err, ErrAlreadyProcessed),
		errors.Is(err, b.ErrUnsupportedProgram),
		errors.Is(err, b.ErrInvalidInstruction),
		errors.Is(err, b.ErrMissingRequiredSignature),
		errors.Is(err, b.ErrReadonlyAccountModified),
		errors.Is(err, b.ErrInsufficientFunds),
		errors.Is(err, b.ErrAccountNotFound),
		errors.Is(err, b.ErrInvalidAccountOwner):
		code = CodeTransactionPrecheckFailed
	}
	return &Error{Code: code, Err: err}
}

// API is served under the "ledger" namespace, e.g. ledger_sendRawTransaction.
type API struct {
	node *Node
}

func NewAPI(node *Node) *API {
	return &API{node: node}
}

func (api *API) GetSlot(ctx context.Context) (uint64, error) {
	return api.node.GetSlot(), nil
}

func (api *API) GetRecentBlockhash(ctx context.Context) (t.Hash, error) {
	return api.node.GetRecentBlockhash(), nil
}

func (api *API) GetMinimumBalanceForRentExemption(ctx context.Context, space uint64) (uint64, error) {
	return api.node.GetMinimumBalanceForRentExemption(space), nil
}

func (api *API) GetBalance(ctx context.Context, key t.PublicKey) (uint64, error) {
	balance, err := api.node.GetBalance(key)
	return balance, rpcError(err)
}

func (api *API) GetAccountInfo(ctx context.Context, key t.PublicKey) (*t.Account, error) {
	account, err := api.node.GetAccountInfo(key)
	return account, rpcError(err)
}

func (api *API) GetSignatureStatus(ctx context.Context, sig t.Signature) (*t.SignatureStatus, error) {
	status, err := api.node.GetSignatureStatus(sig)
	return status, rpcError(err)
}

func (api *API) RequestAirdrop(ctx context.Context, to t.PublicKey, lamports uint64) (t.Signature, error) {
	sig, err := api.node.RequestAirdrop(to, lamports)
	return sig, rpcError(err)
}

func (api *API) SendRawTransaction(ctx context.Context, raw hexutil.Bytes) (t.Signature, error) {
	sig, err := api.node.SendRawTransaction(raw)
	return sig, rpcError(err)
}
