package blockchain

import (
	"crypto/sha256"
	"fmt"

	t "txguard/types"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

const SecretKeyLength = 32

type Keypair struct {
	privKey *secp256k1.PrivateKey
	pubKey  t.PublicKey
}

func GenerateKeypair() (*Keypair, error) {
	privKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return newKeypair(privKey), nil
}

func KeypairFromSecretKey(secret []byte) (*Keypair, error) {
	if len(secret) != SecretKeyLength {
		return nil, fmt.Errorf("secret key must be %d bytes, got %d", SecretKeyLength, len(secret))
	}
	privKey := secp256k1.PrivKeyFromBytes(secret)
	if privKey.Key.IsZero() {
		return nil, fmt.Errorf("secret key is zero modulo the curve order")
	}
	return newKeypair(privKey), nil
}

// KeypairFromSeed derives a deterministic keypair from sha256(seed). Only meant
// for well-known local identities such as the devnet faucet.
func KeypairFromSeed(seed string) (*Keypair, error) {
	secret := sha256.Sum256([]byte(seed))
	return KeypairFromSecretKey(secret[:])
}

func newKeypair(privKey *secp256k1.PrivateKey) *Keypair {
	var pub t.PublicKey
	copy(pub[:], privKey.PubKey().SerializeCompressed())
	return &Keypair{privKey: privKey, pubKey: pub}
}

func (k *Keypair) PublicKey() t.PublicKey {
	return k.pubKey
}

func (k *Keypair) SecretKey() []byte {
	return k.privKey.Serialize()
}

// Sign produces a schnorr signature over sha256(message).
func (k *Keypair) Sign(message []byte) (t.Signature, error) {
	hash := sha256.Sum256(message)
	sig, err := schnorr.Sign(k.privKey, hash[:])
	if err != nil {
		return t.Signature{}, fmt.Errorf("failed to sign message: %w", err)
	}

	var out t.Signature
	copy(out[:], sig.Serialize())
	return out, nil
}

func Verify(pubKey t.PublicKey, message []byte, sig t.Signature) bool {
	pk, err := secp256k1.ParsePubKey(pubKey[:])
	if err != nil {
		return false
	}
	parsed, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return false
	}
	hash := sha256.Sum256(message)
	return parsed.Verify(hash[:], pk)
}
