package blockchain

import (
	"encoding/binary"
	"errors"
	"fmt"

	t "txguard/types"
)

var (
	ErrUnsupportedProgram       = errors.New("unsupported program")
	ErrInvalidInstruction       = errors.New("invalid instruction data")
	ErrMissingRequiredSignature = errors.New("missing required signature for instruction")
	ErrAccountNotFound          = errors.New("account does not exist")
	ErrAccountAlreadyInUse      = errors.New("account already in use")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrInsufficientFundsForRent = errors.New("insufficient funds for rent")
	ErrInvalidAccountOwner      = errors.New("account is not owned by the system program")
	ErrInvalidAccountDataLength = errors.New("invalid account data length")
	ErrReadonlyAccountModified  = errors.New("instruction modifies a read-only account")
)

// DecodeOp turns a system program instruction back into an executable ledger
// operation.
func DecodeOp(ins t.Instruction) (t.Op, error) {
	if ins.ProgramID != SystemProgramID {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProgram, ins.ProgramID)
	}
	if len(ins.Data) < 4 {
		return nil, ErrInvalidInstruction
	}

	data := ins.Data[4:]
	switch binary.LittleEndian.Uint32(ins.Data) {
	case systemCreateAccount:
		if len(data) != 16+t.PublicKeyLength || len(ins.Accounts) != 2 {
			return nil, ErrInvalidInstruction
		}
		if err := requireSignerWritable(ins.Accounts[0], ins.Accounts[1]); err != nil {
			return nil, err
		}
		op := &CreateAccountOp{
			From:       ins.Accounts[0].PublicKey,
			NewAccount: ins.Accounts[1].PublicKey,
			Lamports:   binary.LittleEndian.Uint64(data[0:8]),
			Space:      binary.LittleEndian.Uint64(data[8:16]),
		}
		copy(op.Owner[:], data[16:])
		return op, nil

	case systemTransfer:
		if len(data) != 8 || len(ins.Accounts) != 2 {
			return nil, ErrInvalidInstruction
		}
		if err := requireSignerWritable(ins.Accounts[0]); err != nil {
			return nil, err
		}
		if !ins.Accounts[1].IsWritable {
			return nil, ErrReadonlyAccountModified
		}
		return &TransferOp{
			From:     ins.Accounts[0].PublicKey,
			To:       ins.Accounts[1].PublicKey,
			Lamports: binary.LittleEndian.Uint64(data),
		}, nil
	}

	return nil, ErrInvalidInstruction
}

func requireSignerWritable(metas ...t.AccountMeta) error {
	for _, meta := range metas {
		if !meta.IsSigner {
			return fmt.Errorf("%w: %s", ErrMissingRequiredSignature, meta.PublicKey)
		}
		if !meta.IsWritable {
			return fmt.Errorf("%w: %s", ErrReadonlyAccountModified, meta.PublicKey)
		}
	}
	return nil
}

// debitable checks that key is a system account holding at least lamports.
func debitable(state *t.State, key t.PublicKey, lamports uint64) error {
	account, exists := state.Accounts[key]
	if !exists {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	if account.Owner != SystemProgramID {
		return fmt.Errorf("%w: %s", ErrInvalidAccountOwner, key)
	}
	if account.Lamports < lamports {
		return fmt.Errorf("%w: %s has %d lamports, needs %d", ErrInsufficientFunds, key, account.Lamports, lamports)
	}
	return nil
}

// CreateAccount operation definition
type CreateAccountOp struct {
	From       t.PublicKey
	NewAccount t.PublicKey
	Lamports   uint64
	Space      uint64
	Owner      t.PublicKey
}

type CreateAccountUndo struct {
	From       t.PublicKey
	NewAccount t.PublicKey
	Lamports   uint64
}

func (op *CreateAccountOp) Validate(state *t.State) error {
	if op.From == op.NewAccount {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, op.NewAccount)
	}
	if err := debitable(state, op.From, op.Lamports); err != nil {
		return err
	}
	if _, exists := state.Accounts[op.NewAccount]; exists {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, op.NewAccount)
	}
	if op.Space > MaxPermittedDataLength {
		return fmt.Errorf("%w: %d", ErrInvalidAccountDataLength, op.Space)
	}
	if op.Lamports < MinimumBalanceForRentExemption(op.Space) {
		return fmt.Errorf("%w: %d lamports for %d bytes", ErrInsufficientFundsForRent, op.Lamports, op.Space)
	}
	return nil
}

func (op *CreateAccountOp) PerformOp(state *t.State) t.UndoOp {
	state.Accounts[op.From].Lamports -= op.Lamports
	state.Accounts[op.NewAccount] = &t.Account{
		Lamports: op.Lamports,
		Space:    op.Space,
		Owner:    op.Owner,
		Data:     make([]byte, op.Space),
	}

	return &CreateAccountUndo{
		From:       op.From,
		NewAccount: op.NewAccount,
		Lamports:   op.Lamports,
	}
}

func (u *CreateAccountUndo) PerformUndo(state *t.State) {
	delete(state.Accounts, u.NewAccount)
	state.Accounts[u.From].Lamports += u.Lamports
}

// Transfer operation definition
type TransferOp struct {
	From     t.PublicKey
	To       t.PublicKey
	Lamports uint64
}

type TransferUndo struct {
	From     t.PublicKey
	To       t.PublicKey
	Lamports uint64
	Created  bool
}

func (op *TransferOp) Validate(state *t.State) error {
	return debitable(state, op.From, op.Lamports)
}

func (op *TransferOp) PerformOp(state *t.State) t.UndoOp {
	accounts := state.Accounts
	accounts[op.From].Lamports -= op.Lamports

	created := false
	if account, exists := accounts[op.To]; exists {
		account.Lamports += op.Lamports
	} else {
		accounts[op.To] = &t.Account{Lamports: op.Lamports, Owner: SystemProgramID}
		created = true
	}

	return &TransferUndo{
		From:     op.From,
		To:       op.To,
		Lamports: op.Lamports,
		Created:  created,
	}
}

func (u *TransferUndo) PerformUndo(state *t.State) {
	accounts := state.Accounts

	// If the transfer created the recipient, remove it again.
	if u.Created {
		delete(accounts, u.To)
	} else {
		accounts[u.To].Lamports -= u.Lamports
	}

	accounts[u.From].Lamports += u.Lamports
}

// Fee operation definition. The ledger charges it to the fee payer before any
// instruction runs.
type FeeOp struct {
	Payer    t.PublicKey
	Lamports uint64
}

type FeeUndo struct {
	Payer    t.PublicKey
	Lamports uint64
}

func (op *FeeOp) Validate(state *t.State) error {
	return debitable(state, op.Payer, op.Lamports)
}

func (op *FeeOp) PerformOp(state *t.State) t.UndoOp {
	state.Accounts[op.Payer].Lamports -= op.Lamports
	return &FeeUndo{Payer: op.Payer, Lamports: op.Lamports}
}

func (u *FeeUndo) PerformUndo(state *t.State) {
	state.Accounts[u.Payer].Lamports += u.Lamports
}

// ApplyOps validates and performs ops in order. If any op fails validation the
// ones already performed are undone in reverse and the state is left as it was.
func ApplyOps(state *t.State, ops []t.Op) error {
	undos := make([]t.UndoOp, 0, len(ops))
	for i, op := range ops {
		if err := op.Validate(state); err != nil {
			for j := len(undos) - 1; j >= 0; j-- {
				undos[j].PerformUndo(state)
			}
			return fmt.Errorf("operation %d: %w", i, err)
		}
		undos = append(undos, op.PerformOp(state))
	}
	return nil
}
