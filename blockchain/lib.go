package blockchain

import (
	"encoding/binary"

	t "txguard/types"
)

const (
	LamportsPerSol = 1_000_000_000

	// MaxPermittedDataLength bounds the space of a single account.
	MaxPermittedDataLength = 10 * 1024 * 1024
)

// SystemProgramID owns plain wallet accounts and executes account creation and
// transfers.
var SystemProgramID = t.PublicKey{}

// System instruction discriminants. The gap at 1 is kept so the numbering
// matches the ledger's system program.
const (
	systemCreateAccount uint32 = 0
	systemTransfer      uint32 = 2
)

type CreateAccountParams struct {
	FromPubkey       t.PublicKey
	NewAccountPubkey t.PublicKey
	Lamports         uint64
	Space            uint64
	ProgramID        t.PublicKey
}

type TransferParams struct {
	FromPubkey t.PublicKey
	ToPubkey   t.PublicKey
	Lamports   uint64
}

func CreateAccount(p CreateAccountParams) t.Instruction {
	data := binary.LittleEndian.AppendUint32(nil, systemCreateAccount)
	data = binary.LittleEndian.AppendUint64(data, p.Lamports)
	data = binary.LittleEndian.AppendUint64(data, p.Space)
	data = appendKey(data, p.ProgramID)

	return t.Instruction{
		ProgramID: SystemProgramID,
		Accounts: []t.AccountMeta{
			{PublicKey: p.FromPubkey, IsSigner: true, IsWritable: true},
			{PublicKey: p.NewAccountPubkey, IsSigner: true, IsWritable: true},
		},
		Data: data,
	}
}

func Transfer(p TransferParams) t.Instruction {
	data := binary.LittleEndian.AppendUint32(nil, systemTransfer)
	data = binary.LittleEndian.AppendUint64(data, p.Lamports)

	return t.Instruction{
		ProgramID: SystemProgramID,
		Accounts: []t.AccountMeta{
			{PublicKey: p.FromPubkey, IsSigner: true, IsWritable: true},
			{PublicKey: p.ToPubkey, IsSigner: false, IsWritable: true},
		},
		Data: data,
	}
}
