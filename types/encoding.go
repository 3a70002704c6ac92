package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

func (k PublicKey) String() string { return base58.Encode(k[:]) }
func (h Hash) String() string      { return base58.Encode(h[:]) }
func (s Signature) String() string { return base58.Encode(s[:]) }

func (k PublicKey) IsZero() bool { return k == PublicKey{} }
func (h Hash) IsZero() bool      { return h == Hash{} }
func (s Signature) IsZero() bool { return s == Signature{} }

func PublicKeyFromBase58(s string) (PublicKey, error) {
	var k PublicKey
	err := decodeFixed(s, k[:], "public key")
	return k, err
}

func HashFromBase58(s string) (Hash, error) {
	var h Hash
	err := decodeFixed(s, h[:], "hash")
	return h, err
}

func SignatureFromBase58(s string) (Signature, error) {
	var sig Signature
	err := decodeFixed(s, sig[:], "signature")
	return sig, err
}

func decodeFixed(s string, dst []byte, what string) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("invalid base58 %s: %w", what, err)
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("invalid %s length: got %d bytes, want %d", what, len(raw), len(dst))
	}
	copy(dst, raw)
	return nil
}

func (k PublicKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }
func (h Hash) MarshalText() ([]byte, error)      { return []byte(h.String()), nil }
func (s Signature) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (k *PublicKey) UnmarshalText(text []byte) error {
	return decodeFixed(string(text), k[:], "public key")
}

func (h *Hash) UnmarshalText(text []byte) error {
	return decodeFixed(string(text), h[:], "hash")
}

func (s *Signature) UnmarshalText(text []byte) error {
	return decodeFixed(string(text), s[:], "signature")
}
