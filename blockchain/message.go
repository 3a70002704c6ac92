package blockchain

import (
	"math"
	"sort"

	t "txguard/types"
)

type MessageHeader struct {
	NumRequiredSignatures uint8
	NumReadonlySigned     uint8
	NumReadonlyUnsigned   uint8
}

type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

// Message is the canonical content of a transaction: the bytes every signer
// signs and every verifier recomputes.
type Message struct {
	Header          MessageHeader
	AccountKeys     []t.PublicKey
	RecentBlockhash t.Hash
	Instructions    []CompiledInstruction
}

func compileMessage(feePayer t.PublicKey, blockhash t.Hash, instructions []t.Instruction) (*Message, error) {
	metas := []t.AccountMeta{{PublicKey: feePayer, IsSigner: true, IsWritable: true}}
	index := map[t.PublicKey]int{feePayer: 0}

	merge := func(meta t.AccountMeta) {
		if i, ok := index[meta.PublicKey]; ok {
			metas[i].IsSigner = metas[i].IsSigner || meta.IsSigner
			metas[i].IsWritable = metas[i].IsWritable || meta.IsWritable
			return
		}
		index[meta.PublicKey] = len(metas)
		metas = append(metas, meta)
	}

	// Lengths on the wire are capped at MaxUint16 so every encoded message decodes.
	if len(instructions) > math.MaxUint16 {
		return nil, malformed("too many instructions: %d", len(instructions))
	}
	for i, ins := range instructions {
		if len(ins.Accounts) > math.MaxUint16 {
			return nil, malformed("instruction %d references too many accounts: %d", i, len(ins.Accounts))
		}
		if len(ins.Data) > math.MaxUint16 {
			return nil, malformed("instruction %d data too long: %d bytes", i, len(ins.Data))
		}
		for _, meta := range ins.Accounts {
			merge(meta)
		}
		merge(t.AccountMeta{PublicKey: ins.ProgramID})
	}

	if len(metas) > math.MaxUint8 {
		return nil, malformed("too many accounts: %d", len(metas))
	}

	// Fee payer stays first: it is already a writable signer and the sort is stable.
	sort.SliceStable(metas, func(i, j int) bool {
		return metaRank(metas[i]) < metaRank(metas[j])
	})

	msg := &Message{
		AccountKeys:     make([]t.PublicKey, len(metas)),
		RecentBlockhash: blockhash,
	}
	positions := make(map[t.PublicKey]uint8, len(metas))
	for i, meta := range metas {
		msg.AccountKeys[i] = meta.PublicKey
		positions[meta.PublicKey] = uint8(i)

		switch {
		case meta.IsSigner:
			msg.Header.NumRequiredSignatures++
			if !meta.IsWritable {
				msg.Header.NumReadonlySigned++
			}
		case !meta.IsWritable:
			msg.Header.NumReadonlyUnsigned++
		}
	}

	msg.Instructions = make([]CompiledInstruction, len(instructions))
	for i, ins := range instructions {
		accounts := make([]uint8, len(ins.Accounts))
		for j, meta := range ins.Accounts {
			accounts[j] = positions[meta.PublicKey]
		}
		msg.Instructions[i] = CompiledInstruction{
			ProgramIDIndex: positions[ins.ProgramID],
			Accounts:       accounts,
			Data:           append([]byte{}, ins.Data...),
		}
	}

	return msg, nil
}

// 0 writable signer, 1 readonly signer, 2 writable, 3 readonly.
func metaRank(meta t.AccountMeta) int {
	rank := 0
	if !meta.IsSigner {
		rank += 2
	}
	if !meta.IsWritable {
		rank++
	}
	return rank
}

func (m *Message) SignerKeys() []t.PublicKey {
	return m.AccountKeys[:m.Header.NumRequiredSignatures]
}

func (m *Message) IsSigner(i int) bool {
	return i < int(m.Header.NumRequiredSignatures)
}

func (m *Message) IsWritable(i int) bool {
	numSigned := int(m.Header.NumRequiredSignatures)
	if i < numSigned {
		return i < numSigned-int(m.Header.NumReadonlySigned)
	}
	return i < len(m.AccountKeys)-int(m.Header.NumReadonlyUnsigned)
}

func (m *Message) Encode() []byte {
	data := []byte{
		m.Header.NumRequiredSignatures,
		m.Header.NumReadonlySigned,
		m.Header.NumReadonlyUnsigned,
	}

	data = appendLength(data, len(m.AccountKeys))
	for _, key := range m.AccountKeys {
		data = appendKey(data, key)
	}

	data = append(data, m.RecentBlockhash[:]...)

	data = appendLength(data, len(m.Instructions))
	for _, ins := range m.Instructions {
		data = append(data, ins.ProgramIDIndex)
		data = appendLength(data, len(ins.Accounts))
		data = append(data, ins.Accounts...)
		data = appendLength(data, len(ins.Data))
		data = append(data, ins.Data...)
	}

	return data
}

func DecodeMessage(data []byte) (*Message, error) {
	r := &reader{data: data}
	msg, err := decodeMessage(r)
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, malformed("%d trailing bytes after message", r.remaining())
	}
	return msg, nil
}

func decodeMessage(r *reader) (*Message, error) {
	header, err := r.readBytes(3)
	if err != nil {
		return nil, err
	}
	msg := &Message{Header: MessageHeader{
		NumRequiredSignatures: header[0],
		NumReadonlySigned:     header[1],
		NumReadonlyUnsigned:   header[2],
	}}

	numKeys, err := r.readLength()
	if err != nil {
		return nil, err
	}
	if numKeys > math.MaxUint8 {
		return nil, malformed("too many accounts: %d", numKeys)
	}
	msg.AccountKeys = make([]t.PublicKey, numKeys)
	for i := range msg.AccountKeys {
		if msg.AccountKeys[i], err = r.readKey(); err != nil {
			return nil, err
		}
	}

	signed := int(msg.Header.NumRequiredSignatures)
	if signed == 0 || signed > numKeys ||
		int(msg.Header.NumReadonlySigned) >= signed ||
		int(msg.Header.NumReadonlyUnsigned) > numKeys-signed {
		return nil, malformed("inconsistent message header %+v for %d accounts", msg.Header, numKeys)
	}

	blockhash, err := r.readBytes(t.HashLength)
	if err != nil {
		return nil, err
	}
	copy(msg.RecentBlockhash[:], blockhash)

	numInstructions, err := r.readLength()
	if err != nil {
		return nil, err
	}
	msg.Instructions = make([]CompiledInstruction, numInstructions)
	for i := range msg.Instructions {
		ins := &msg.Instructions[i]
		if ins.ProgramIDIndex, err = r.readByte(); err != nil {
			return nil, err
		}
		if int(ins.ProgramIDIndex) >= numKeys {
			return nil, malformed("program index %d out of range", ins.ProgramIDIndex)
		}

		numAccounts, err := r.readLength()
		if err != nil {
			return nil, err
		}
		if ins.Accounts, err = r.readBytes(numAccounts); err != nil {
			return nil, err
		}
		for _, idx := range ins.Accounts {
			if int(idx) >= numKeys {
				return nil, malformed("account index %d out of range", idx)
			}
		}

		dataLen, err := r.readLength()
		if err != nil {
			return nil, err
		}
		if ins.Data, err = r.readBytes(dataLen); err != nil {
			return nil, err
		}
	}

	return msg, nil
}

// instructions expands compiled instructions back into account metas using the
// header's signer and writable ranges.
func (m *Message) instructions() []t.Instruction {
	out := make([]t.Instruction, len(m.Instructions))
	for i, ci := range m.Instructions {
		metas := make([]t.AccountMeta, len(ci.Accounts))
		for j, idx := range ci.Accounts {
			metas[j] = t.AccountMeta{
				PublicKey:  m.AccountKeys[idx],
				IsSigner:   m.IsSigner(int(idx)),
				IsWritable: m.IsWritable(int(idx)),
			}
		}
		out[i] = t.Instruction{
			ProgramID: m.AccountKeys[ci.ProgramIDIndex],
			Accounts:  metas,
			Data:      ci.Data,
		}
	}
	return out
}
