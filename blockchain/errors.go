package blockchain

import (
	"errors"
	"fmt"
	"strings"

	t "txguard/types"
)

var ErrMalformedTransaction = errors.New("malformed transaction")

// IncompleteTransactionError is returned when metadata needed to compile the
// message is missing.
type IncompleteTransactionError struct {
	Field string
}

func (e *IncompleteTransactionError) Error() string {
	return fmt.Sprintf("incomplete transaction: %s required", e.Field)
}

// MissingSignersError lists required signers without a signature.
type MissingSignersError struct {
	Signers []t.PublicKey
}

func (e *MissingSignersError) Error() string {
	keys := make([]string, len(e.Signers))
	for i, k := range e.Signers {
		keys[i] = k.String()
	}
	return fmt.Sprintf("missing signature for public key(s): %s", strings.Join(keys, ", "))
}

// SignatureVerificationError means a stored signature no longer matches the
// transaction content.
type SignatureVerificationError struct {
	Signer t.PublicKey
}

func (e *SignatureVerificationError) Error() string {
	return fmt.Sprintf("transaction has been modified after it was signed: signature of %s does not verify", e.Signer)
}

type UnknownSignerError struct {
	Signer t.PublicKey
}

func (e *UnknownSignerError) Error() string {
	return fmt.Sprintf("unknown signer: %s is not required by the transaction", e.Signer)
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedTransaction, fmt.Sprintf(format, args...))
}
