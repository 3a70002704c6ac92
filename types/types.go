package types

// Keys and hashes

const (
	PublicKeyLength = 33
	HashLength      = 32
	SignatureLength = 64
)

// PublicKey is a compressed secp256k1 public key. Program identifiers share the
// same shape.
type PublicKey [PublicKeyLength]byte

type Hash [HashLength]byte

// Signature is a serialized schnorr signature.
type Signature [SignatureLength]byte

// Instructions

type AccountMeta struct {
	PublicKey  PublicKey
	IsSigner   bool
	IsWritable bool
}

type Instruction struct {
	ProgramID PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// State Management

type Account struct {
	Lamports uint64    `json:"lamports"`
	Space    uint64    `json:"space"`
	Owner    PublicKey `json:"owner"`
	Data     []byte    `json:"data,omitempty"`
}

func (a *Account) Copy() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	if a.Data != nil {
		cp.Data = append([]byte{}, a.Data...)
	}
	return &cp
}

type AccountSet = map[PublicKey]*Account

type State struct {
	Accounts AccountSet
}

func NewState() *State {
	return &State{Accounts: make(AccountSet)}
}

// Ledger Operations

type Op interface {
	Validate(state *State) error
	PerformOp(state *State) UndoOp
}

type UndoOp interface {
	PerformUndo(state *State)
}

// Submission status

const (
	StatusProcessed = "processed"
	StatusConfirmed = "confirmed"
)

type SignatureStatus struct {
	Slot               uint64 `json:"slot"`
	ConfirmationStatus string `json:"confirmationStatus"`
	Err                string `json:"err,omitempty"`
}
