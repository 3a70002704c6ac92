package blockchain

import (
	"encoding/binary"
	"math"

	t "txguard/types"
)

func appendLength(data []byte, n int) []byte {
	return binary.AppendUvarint(data, uint64(n))
}

func appendKey(data []byte, key t.PublicKey) []byte {
	return append(data, key[:]...)
}

// reader walks an encoded message or transaction. Every read reports
// truncation as ErrMalformedTransaction.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) readByte() (byte, error) {
	if r.remaining() < 1 {
		return 0, malformed("unexpected end of data at offset %d", r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readLength() (int, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		return 0, malformed("invalid length prefix at offset %d", r.pos)
	}
	if v > math.MaxUint16 {
		return 0, malformed("length %d at offset %d exceeds limit", v, r.pos)
	}
	r.pos += n
	return int(v), nil
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, malformed("need %d bytes at offset %d, have %d", n, r.pos, r.remaining())
	}
	out := append([]byte{}, r.data[r.pos:r.pos+n]...)
	r.pos += n
	return out, nil
}

func (r *reader) readKey() (t.PublicKey, error) {
	var key t.PublicKey
	raw, err := r.readBytes(t.PublicKeyLength)
	if err != nil {
		return key, err
	}
	copy(key[:], raw)
	return key, nil
}
