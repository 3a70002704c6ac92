// Package demo walks through signing a transaction and having a third party
// tamper with it after the fact.
package demo

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	b "txguard/blockchain"
	"txguard/config"
	"txguard/ledger"
	"txguard/types"
)

// Report records what a run did. SecondSignature stays zero when the tampered
// transaction is refused.
type Report struct {
	RunID            string
	Wallet           types.PublicKey
	Accounts         [3]types.PublicKey
	WalletBalance    uint64
	AirdropSignature types.Signature
	FirstSignature   types.Signature
	FirstAccount     *types.Account
	SecondSignature  types.Signature
}

type Runner struct {
	client ledger.Client
	cfg    config.DemoConfig
	logger *zap.Logger

	// GenerateKeypair is replaced in tests.
	GenerateKeypair func() (*b.Keypair, error)
}

func NewRunner(client ledger.Client, cfg *config.DemoConfig, logger *zap.Logger) *Runner {
	return &Runner{
		client:          client,
		cfg:             *cfg,
		logger:          logger.With(zap.String("component", "demo")),
		GenerateKeypair: b.GenerateKeypair,
	}
}

type keys struct {
	wallet   *b.Keypair
	accounts [3]*b.Keypair
}

// Run executes each step in order and stops at the first error. Scenario two is
// expected to fail with *blockchain.SignatureVerificationError unless
// SkipTamper is set.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	log := r.logger.With(zap.String("run_id", report.RunID))

	k, err := r.generateKeys()
	if err != nil {
		return report, err
	}
	report.Wallet = k.wallet.PublicKey()
	for i, kp := range k.accounts {
		report.Accounts[i] = kp.PublicKey()
	}

	if report.AirdropSignature, err = r.fund(ctx, k.wallet); err != nil {
		log.Error("Airdrop failed", zap.Error(err))
		return report, err
	}
	if report.WalletBalance, err = r.client.GetBalance(ctx, report.Wallet); err != nil {
		log.Error("Balance lookup failed", zap.Error(err))
		return report, err
	}
	log.Info("Wallet funded",
		zap.Stringer("wallet", report.Wallet),
		zap.Stringer("signature", report.AirdropSignature),
		zap.Uint64("lamports", report.WalletBalance))

	if report.FirstSignature, err = r.signedCreateAccount(ctx, k); err != nil {
		log.Error("Scenario one failed", zap.Error(err))
		return report, err
	}
	log.Info("Signature #1", zap.Stringer("signature", report.FirstSignature))
	if err := r.client.ConfirmTransaction(ctx, report.FirstSignature); err != nil {
		log.Error("Scenario one failed", zap.Error(err))
		return report, err
	}
	if report.FirstAccount, err = r.createdAccount(ctx, report.Accounts[0]); err != nil {
		log.Error("Scenario one failed", zap.Error(err))
		return report, err
	}
	log.Info("Account created",
		zap.Stringer("account", report.Accounts[0]),
		zap.Uint64("space", report.FirstAccount.Space),
		zap.Uint64("lamports", report.FirstAccount.Lamports))

	if report.SecondSignature, err = r.tamperedCreateAccount(ctx, k); err != nil {
		log.Error("Scenario two failed", zap.Error(err))
		return report, err
	}
	log.Info("Signature #2", zap.Stringer("signature", report.SecondSignature))
	if err := r.client.ConfirmTransaction(ctx, report.SecondSignature); err != nil {
		log.Error("Scenario two failed", zap.Error(err))
		return report, err
	}

	return report, nil
}

func (r *Runner) generateKeys() (*keys, error) {
	k := &keys{}
	var err error
	if k.wallet, err = r.GenerateKeypair(); err != nil {
		return nil, errors.Wrap(err, "failed to generate wallet keypair")
	}
	for i := range k.accounts {
		if k.accounts[i], err = r.GenerateKeypair(); err != nil {
			return nil, errors.Wrapf(err, "failed to generate account keypair %d", i+1)
		}
	}
	return k, nil
}

func (r *Runner) fund(ctx context.Context, wallet *b.Keypair) (types.Signature, error) {
	sig, err := r.client.RequestAirdrop(ctx, wallet.PublicKey(), r.cfg.AirdropLamports)
	if err != nil {
		return sig, err
	}
	return sig, r.client.ConfirmTransaction(ctx, sig)
}

// createdAccount looks up an account a confirmed transaction should have
// created.
func (r *Runner) createdAccount(ctx context.Context, key types.PublicKey) (*types.Account, error) {
	account, err := r.client.GetAccountInfo(ctx, key)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errors.Errorf("account %s missing after confirmation", key)
	}
	return account, nil
}

// createAccountInputs fetches a fresh blockhash and the rent-exempt balance.
func (r *Runner) createAccountInputs(ctx context.Context) (types.Hash, uint64, error) {
	hash, err := r.client.GetRecentBlockhash(ctx)
	if err != nil {
		return hash, 0, err
	}
	rent, err := r.client.GetMinimumBalanceForRentExemption(ctx, r.cfg.AccountSize)
	return hash, rent, err
}

func (r *Runner) createAccount(from, account *b.Keypair, lamports uint64) types.Instruction {
	return b.CreateAccount(b.CreateAccountParams{
		FromPubkey:       from.PublicKey(),
		NewAccountPubkey: account.PublicKey(),
		Lamports:         lamports,
		Space:            r.cfg.AccountSize,
		ProgramID:        b.SystemProgramID,
	})
}

// signedCreateAccount is left untouched after signing, so the ledger accepts it.
// The fee payer is not set and defaults to the first signer.
func (r *Runner) signedCreateAccount(ctx context.Context, k *keys) (types.Signature, error) {
	hash, rent, err := r.createAccountInputs(ctx)
	if err != nil {
		return types.Signature{}, err
	}

	tx := b.NewTransaction(b.WithRecentBlockhash(hash))
	tx.Add(r.createAccount(k.wallet, k.accounts[0], rent))
	if err := tx.Sign(k.wallet, k.accounts[0]); err != nil {
		return types.Signature{}, err
	}
	raw, err := tx.Serialize()
	if err != nil {
		return types.Signature{}, err
	}
	return r.client.SendRawTransaction(ctx, raw)
}

// tamperedCreateAccount signs a transaction, serializes it as if handing it to
// someone else, and has that party parse it, append an instruction and sign
// only their own part. Serializing the result fails before anything is sent.
func (r *Runner) tamperedCreateAccount(ctx context.Context, k *keys) (types.Signature, error) {
	hash, rent, err := r.createAccountInputs(ctx)
	if err != nil {
		return types.Signature{}, err
	}

	tx := b.NewTransaction(
		b.WithFeePayer(k.wallet.PublicKey()),
		b.WithRecentBlockhash(hash),
	)
	tx.Add(r.createAccount(k.wallet, k.accounts[1], rent))
	if err := tx.PartialSign(k.wallet); err != nil {
		return types.Signature{}, err
	}
	if err := tx.PartialSign(k.accounts[1]); err != nil {
		return types.Signature{}, err
	}
	shared, err := tx.Serialize()
	if err != nil {
		return types.Signature{}, err
	}

	parsed, err := b.Parse(shared)
	if err != nil {
		return types.Signature{}, err
	}
	if !r.cfg.SkipTamper {
		parsed.Add(r.createAccount(k.wallet, k.accounts[2], rent))
		if err := parsed.PartialSign(k.accounts[2]); err != nil {
			return types.Signature{}, err
		}
	}

	raw, err := parsed.Serialize()
	if err != nil {
		return types.Signature{}, err
	}
	return r.client.SendRawTransaction(ctx, raw)
}
