package store

import (
	"github.com/pkg/errors"

	"txguard/types"
)

var ErrClosed = errors.New("ledger store is closed")

// Batch is the result of executing one transaction. It is written atomically:
// either every account change and the signature status land, or none do.
type Batch struct {
	// Accounts are upserted in full.
	Accounts types.AccountSet
	// Deletions are removed after the upserts.
	Deletions []types.PublicKey
	Signature types.Signature
	Status    *types.SignatureStatus
}

// LedgerStore persists devnet accounts and transaction statuses.
// Implementations must be safe for concurrent use.
type LedgerStore interface {
	// GetAccount returns nil if the account does not exist, error only on
	// storage failure.
	GetAccount(key types.PublicKey) (*types.Account, error)

	// ApplyBatch writes the batch atomically.
	ApplyBatch(batch *Batch) error

	// GetSignatureStatus returns nil if the signature is unknown.
	GetSignatureStatus(sig types.Signature) (*types.SignatureStatus, error)

	// ConfirmUpTo promotes every processed status at or below slot to
	// confirmed and returns how many were promoted.
	ConfirmUpTo(slot uint64) (int, error)

	Close() error
}
