package blockchain

import (
	t "txguard/types"
)

type SerializeConfig struct {
	// RequireAllSignatures fails serialization with MissingSignersError when a
	// required signer has no signature. Disable it to hand a partially signed
	// transaction to another party.
	RequireAllSignatures bool
}

// VerifySignatures checks every stored signature against the message compiled
// from the transaction's current content.
func (tx *Transaction) VerifySignatures() error {
	msg, err := tx.CompileMessage()
	if err != nil {
		return err
	}
	return tx.verify(msg.Encode())
}

func (tx *Transaction) verify(encoded []byte) error {
	for _, pair := range tx.Signatures {
		if pair.Signature == nil {
			continue
		}
		if !Verify(pair.PublicKey, encoded, *pair.Signature) {
			return &SignatureVerificationError{Signer: pair.PublicKey}
		}
	}
	return nil
}

func (tx *Transaction) Serialize() ([]byte, error) {
	return tx.SerializeWith(SerializeConfig{RequireAllSignatures: true})
}

// SerializeWith returns the wire form: the signature count, one 64-byte slot per
// required signer in message order (zeroed when absent), then the message.
func (tx *Transaction) SerializeWith(cfg SerializeConfig) ([]byte, error) {
	msg, err := tx.CompileMessage()
	if err != nil {
		return nil, err
	}
	encoded := msg.Encode()

	if err := tx.verify(encoded); err != nil {
		return nil, err
	}

	signers := msg.SignerKeys()
	var missing []t.PublicKey
	data := appendLength(nil, len(signers))
	for _, key := range signers {
		sig := tx.signatureOf(key)
		if sig == nil {
			missing = append(missing, key)
			data = append(data, make([]byte, t.SignatureLength)...)
			continue
		}
		data = append(data, sig[:]...)
	}

	if cfg.RequireAllSignatures && len(missing) > 0 {
		return nil, &MissingSignersError{Signers: missing}
	}

	return append(data, encoded...), nil
}

// Parse rebuilds a transaction from its wire form. Zeroed signature slots are
// left out of the signature table.
func Parse(raw []byte) (*Transaction, error) {
	r := &reader{data: raw}

	numSigs, err := r.readLength()
	if err != nil {
		return nil, err
	}
	sigs := make([]t.Signature, numSigs)
	for i := range sigs {
		b, err := r.readBytes(t.SignatureLength)
		if err != nil {
			return nil, err
		}
		copy(sigs[i][:], b)
	}

	msg, err := decodeMessage(r)
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, malformed("%d trailing bytes after message", r.remaining())
	}
	if numSigs != int(msg.Header.NumRequiredSignatures) {
		return nil, malformed("%d signatures for %d required signers", numSigs, msg.Header.NumRequiredSignatures)
	}

	tx := NewTransaction(
		WithRecentBlockhash(msg.RecentBlockhash),
		WithFeePayer(msg.AccountKeys[0]),
	)
	tx.Instructions = msg.instructions()
	for i, key := range msg.SignerKeys() {
		if sigs[i].IsZero() {
			continue
		}
		sig := sigs[i]
		tx.Signatures = append(tx.Signatures, SignaturePair{PublicKey: key, Signature: &sig})
	}

	return tx, nil
}
