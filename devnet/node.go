// Package devnet is a single process ledger node. It accepts the same wire
// transactions the client library produces and runs them through the same
// integrity guard before executing any instruction.
package devnet

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	b "txguard/blockchain"
	"txguard/store"
	t "txguard/types"
)

// RecentBlockhashQueueLength is how many slots a blockhash stays valid for.
const RecentBlockhashQueueLength = 150

var (
	ErrBlockhashNotFound = errors.New("blockhash not found")
	ErrAlreadyProcessed  = errors.New("transaction already processed")
)

type NodeConfig struct {
	SlotInterval   time.Duration
	FaucetSeed     string
	FaucetLamports uint64
}

type Node struct {
	mu          sync.Mutex
	slot        uint64
	blockhashes []t.Hash // oldest first
	faucet      *b.Keypair
	cfg         NodeConfig
	store       store.LedgerStore
	logger      *zap.Logger
}

// NewNode derives the faucet from cfg.FaucetSeed and funds it on first start.
func NewNode(cfg NodeConfig, st store.LedgerStore, logger *zap.Logger) (*Node, error) {
	faucet, err := b.KeypairFromSeed(cfg.FaucetSeed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive faucet keypair")
	}

	n := &Node{
		faucet: faucet,
		cfg:    cfg,
		store:  st,
		logger: logger.With(zap.String("component", "devnet")),
	}
	genesis := sha256.Sum256([]byte("txguard-devnet:" + cfg.FaucetSeed))
	n.blockhashes = []t.Hash{genesis}

	account, err := st.GetAccount(faucet.PublicKey())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load faucet account")
	}
	if account == nil {
		err := st.ApplyBatch(&store.Batch{Accounts: t.AccountSet{
			faucet.PublicKey(): {Lamports: cfg.FaucetLamports, Owner: b.SystemProgramID},
		}})
		if err != nil {
			return nil, errors.Wrap(err, "failed to fund faucet")
		}
		n.logger.Sugar().Infow("Funded faucet", "faucet", faucet.PublicKey(), "lamports", cfg.FaucetLamports)
	}

	return n, nil
}

func (n *Node) Faucet() t.PublicKey {
	return n.faucet.PublicKey()
}

// Run produces a slot every SlotInterval until ctx is done.
func (n *Node) Run(ctx context.Context) {
	ticker := time.NewTicker(n.cfg.SlotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := n.AdvanceSlot(); err != nil {
				n.logger.Sugar().Errorw("Failed to advance slot", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// AdvanceSlot produces the next slot and its blockhash. Transactions processed
// in earlier slots become confirmed.
func (n *Node) AdvanceSlot() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	prev := n.blockhashes[len(n.blockhashes)-1]
	n.slot++
	next := sha256.Sum256(binary.BigEndian.AppendUint64(prev[:], n.slot))
	n.blockhashes = append(n.blockhashes, next)
	if len(n.blockhashes) > RecentBlockhashQueueLength {
		n.blockhashes = n.blockhashes[1:]
	}

	confirmed, err := n.store.ConfirmUpTo(n.slot - 1)
	if err != nil {
		return err
	}
	if confirmed > 0 {
		n.logger.Sugar().Debugw("Confirmed transactions", "slot", n.slot, "count", confirmed)
	}
	return nil
}

func (n *Node) GetSlot() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.slot
}

func (n *Node) GetRecentBlockhash() t.Hash {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.blockhashes[len(n.blockhashes)-1]
}

func (n *Node) GetMinimumBalanceForRentExemption(space uint64) uint64 {
	return b.MinimumBalanceForRentExemption(space)
}

func (n *Node) GetAccountInfo(key t.PublicKey) (*t.Account, error) {
	return n.store.GetAccount(key)
}

// GetBalance is zero for accounts that do not exist.
func (n *Node) GetBalance(key t.PublicKey) (uint64, error) {
	account, err := n.store.GetAccount(key)
	if err != nil || account == nil {
		return 0, err
	}
	return account.Lamports, nil
}

func (n *Node) GetSignatureStatus(sig t.Signature) (*t.SignatureStatus, error) {
	return n.store.GetSignatureStatus(sig)
}

// RequestAirdrop transfers lamports from the faucet. The transfer goes through
// the regular submission pipeline.
func (n *Node) RequestAirdrop(to t.PublicKey, lamports uint64) (t.Signature, error) {
	tx := b.NewTransaction(
		b.WithRecentBlockhash(n.GetRecentBlockhash()),
		b.WithFeePayer(n.faucet.PublicKey()),
	)
	tx.Add(b.Transfer(b.TransferParams{
		FromPubkey: n.faucet.PublicKey(),
		ToPubkey:   to,
		Lamports:   lamports,
	}))
	if err := tx.Sign(n.faucet); err != nil {
		return t.Signature{}, errors.Wrap(err, "failed to sign airdrop")
	}
	raw, err := tx.Serialize()
	if err != nil {
		return t.Signature{}, errors.Wrap(err, "failed to serialize airdrop")
	}
	return n.SendRawTransaction(raw)
}

// SendRawTransaction verifies and executes a wire transaction. It returns the
// fee payer's signature, which identifies the transaction. Transactions that
// fail verification are rejected outright. Once verified, a failing
// instruction still costs the fee and the failure is recorded in the status.
func (n *Node) SendRawTransaction(raw []byte) (t.Signature, error) {
	tx, err := b.Parse(raw)
	if err != nil {
		return t.Signature{}, err
	}
	// Re-serializing checks every signature against the content and that every
	// required signer signed.
	if _, err := tx.Serialize(); err != nil {
		return t.Signature{}, err
	}
	msg, err := tx.CompileMessage()
	if err != nil {
		return t.Signature{}, err
	}
	sig, _ := tx.Signature()

	ops := make([]t.Op, 0, len(tx.Instructions))
	for i, ins := range tx.Instructions {
		op, err := b.DecodeOp(ins)
		if err != nil {
			return t.Signature{}, errors.Wrapf(err, "instruction %d", i)
		}
		ops = append(ops, op)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.isRecent(tx.RecentBlockhash) {
		return t.Signature{}, errors.Wrapf(ErrBlockhashNotFound, "%s", tx.RecentBlockhash)
	}
	status, err := n.store.GetSignatureStatus(sig)
	if err != nil {
		return t.Signature{}, err
	}
	if status != nil {
		return t.Signature{}, errors.Wrapf(ErrAlreadyProcessed, "%s", sig)
	}

	state := t.NewState()
	for _, key := range msg.AccountKeys {
		account, err := n.store.GetAccount(key)
		if err != nil {
			return t.Signature{}, err
		}
		if account != nil {
			state.Accounts[key] = account
		}
	}
	loaded := make([]t.PublicKey, 0, len(state.Accounts))
	for key := range state.Accounts {
		loaded = append(loaded, key)
	}

	fee := &b.FeeOp{
		Payer:    msg.AccountKeys[0],
		Lamports: b.LamportsPerSignature * uint64(msg.Header.NumRequiredSignatures),
	}
	if err := b.ApplyOps(state, []t.Op{fee}); err != nil {
		return t.Signature{}, errors.Wrap(err, "fee payer cannot pay")
	}

	result := &t.SignatureStatus{Slot: n.slot, ConfirmationStatus: t.StatusProcessed}
	execErr := b.ApplyOps(state, ops)
	if execErr != nil {
		result.Err = execErr.Error()
	}

	batch := &store.Batch{
		Accounts:  state.Accounts,
		Signature: sig,
		Status:    result,
	}
	for _, key := range loaded {
		if _, exists := state.Accounts[key]; !exists {
			batch.Deletions = append(batch.Deletions, key)
		}
	}
	if err := n.store.ApplyBatch(batch); err != nil {
		return t.Signature{}, errors.Wrap(err, "failed to persist transaction")
	}

	if execErr != nil {
		n.logger.Sugar().Infow("Transaction failed", "signature", sig, "slot", n.slot, "error", execErr)
		return sig, nil
	}
	n.logger.Sugar().Debugw("Transaction processed", "signature", sig, "slot", n.slot)
	return sig, nil
}

func (n *Node) isRecent(hash t.Hash) bool {
	for _, h := range n.blockhashes {
		if h == hash {
			return true
		}
	}
	return false
}
