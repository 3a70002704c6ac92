package blockchain

import (
	t "txguard/types"
)

// SignaturePair is one entry of the signature table. A nil Signature marks a
// signer slot that has not been filled yet.
type SignaturePair struct {
	PublicKey t.PublicKey
	Signature *t.Signature
}

// Transaction accumulates instructions and signer metadata. It keeps no cached
// encoding: every Sign, Serialize and VerifySignatures call recompiles the
// message from the current fields, so any change after signing is caught by
// the signatures themselves.
type Transaction struct {
	RecentBlockhash t.Hash
	FeePayer        *t.PublicKey
	Instructions    []t.Instruction
	Signatures      []SignaturePair
}

type TransactionOption func(tx *Transaction)

func WithRecentBlockhash(hash t.Hash) TransactionOption {
	return func(tx *Transaction) { tx.RecentBlockhash = hash }
}

func WithFeePayer(key t.PublicKey) TransactionOption {
	return func(tx *Transaction) { tx.SetFeePayer(key) }
}

func NewTransaction(opts ...TransactionOption) *Transaction {
	tx := &Transaction{}
	for _, opt := range opts {
		opt(tx)
	}
	return tx
}

func (tx *Transaction) Add(instructions ...t.Instruction) *Transaction {
	tx.Instructions = append(tx.Instructions, instructions...)
	return tx
}

func (tx *Transaction) SetRecentBlockhash(hash t.Hash) *Transaction {
	tx.RecentBlockhash = hash
	return tx
}

func (tx *Transaction) SetFeePayer(key t.PublicKey) *Transaction {
	tx.FeePayer = &key
	return tx
}

// feePayer falls back to the first entry of the signature table when no fee
// payer was set explicitly.
func (tx *Transaction) feePayer() (t.PublicKey, bool) {
	if tx.FeePayer != nil {
		return *tx.FeePayer, true
	}
	if len(tx.Signatures) > 0 {
		return tx.Signatures[0].PublicKey, true
	}
	return t.PublicKey{}, false
}

func (tx *Transaction) CompileMessage() (*Message, error) {
	if tx.RecentBlockhash.IsZero() {
		return nil, &IncompleteTransactionError{Field: "recent blockhash"}
	}
	feePayer, ok := tx.feePayer()
	if !ok {
		return nil, &IncompleteTransactionError{Field: "fee payer"}
	}
	return compileMessage(feePayer, tx.RecentBlockhash, tx.Instructions)
}

// SerializeMessage returns the canonical bytes signers sign.
func (tx *Transaction) SerializeMessage() ([]byte, error) {
	msg, err := tx.CompileMessage()
	if err != nil {
		return nil, err
	}
	return msg.Encode(), nil
}

// Sign replaces the signature table with signatures from exactly the given
// signers.
func (tx *Transaction) Sign(signers ...*Keypair) error {
	prev := tx.Signatures
	tx.Signatures = nil
	if err := tx.PartialSign(signers...); err != nil {
		tx.Signatures = prev
		return err
	}
	return nil
}

// PartialSign adds or replaces signatures for the given signers and leaves
// every other entry untouched. On error the table is left as it was.
func (tx *Transaction) PartialSign(signers ...*Keypair) error {
	prev := append([]SignaturePair(nil), tx.Signatures...)
	if err := tx.partialSign(uniqueSigners(signers)); err != nil {
		tx.Signatures = prev
		return err
	}
	return nil
}

func (tx *Transaction) partialSign(signers []*Keypair) error {
	for _, kp := range signers {
		tx.setSignature(kp.PublicKey(), nil)
	}

	msg, err := tx.CompileMessage()
	if err != nil {
		return err
	}

	required := make(map[t.PublicKey]bool, msg.Header.NumRequiredSignatures)
	for _, key := range msg.SignerKeys() {
		required[key] = true
	}

	encoded := msg.Encode()
	for _, kp := range signers {
		if !required[kp.PublicKey()] {
			return &UnknownSignerError{Signer: kp.PublicKey()}
		}
		sig, err := kp.Sign(encoded)
		if err != nil {
			return err
		}
		tx.setSignature(kp.PublicKey(), &sig)
	}

	return nil
}

// AddSignature attaches an externally produced signature. It is checked at
// serialization time like any other entry.
func (tx *Transaction) AddSignature(pubKey t.PublicKey, sig t.Signature) {
	tx.setSignature(pubKey, &sig)
}

func (tx *Transaction) setSignature(pubKey t.PublicKey, sig *t.Signature) {
	for i := range tx.Signatures {
		if tx.Signatures[i].PublicKey == pubKey {
			if sig != nil {
				tx.Signatures[i].Signature = sig
			}
			return
		}
	}
	tx.Signatures = append(tx.Signatures, SignaturePair{PublicKey: pubKey, Signature: sig})
}

func (tx *Transaction) signatureOf(pubKey t.PublicKey) *t.Signature {
	for _, pair := range tx.Signatures {
		if pair.PublicKey == pubKey {
			return pair.Signature
		}
	}
	return nil
}

// Signature returns the fee payer's signature, which identifies the transaction
// on the ledger.
func (tx *Transaction) Signature() (t.Signature, bool) {
	feePayer, ok := tx.feePayer()
	if !ok {
		return t.Signature{}, false
	}
	sig := tx.signatureOf(feePayer)
	if sig == nil {
		return t.Signature{}, false
	}
	return *sig, true
}

func uniqueSigners(signers []*Keypair) []*Keypair {
	seen := make(map[t.PublicKey]bool, len(signers))
	out := make([]*Keypair, 0, len(signers))
	for _, kp := range signers {
		if seen[kp.PublicKey()] {
			continue
		}
		seen[kp.PublicKey()] = true
		out = append(out, kp)
	}
	return out
}
