package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	b "txguard/blockchain"
	"txguard/config"
	"txguard/demo"
	"txguard/devnet"
	"txguard/ledger"
	"txguard/logger"
	"txguard/store"
	"txguard/store/badger"
	"txguard/store/memory"
	"txguard/store/redis"
)

func main() {
	app := &cli.App{
		Name:  "txguard",
		Usage: "Sign ledger transactions and refuse ones modified after signing",
		Commands: []*cli.Command{
			{
				Name:  "demo",
				Usage: "Fund a wallet, submit a signed transaction, then try to submit a tampered one",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "rpc-url", Usage: "ledger JSON-RPC endpoint"},
					&cli.Uint64Flag{Name: "account-size", Usage: "data size of the created accounts"},
					&cli.Uint64Flag{Name: "airdrop-lamports", Usage: "lamports requested for the wallet"},
					&cli.BoolFlag{Name: "skip-tamper", Usage: "submit the re-parsed transaction unmodified"},
					&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
				},
				Action: runDemo,
			},
			{
				Name:  "devnet",
				Usage: "Run a local ledger node",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "listen", Usage: "JSON-RPC listen address"},
					&cli.StringFlag{Name: "store", Usage: "ledger store: memory, badger or redis"},
					&cli.StringFlag{Name: "data-dir", Usage: "badger data directory"},
					&cli.StringFlag{Name: "redis-addr", Usage: "redis server address"},
					&cli.DurationFlag{Name: "slot-interval", Usage: "time between slots"},
					&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
				},
				Action: runDevnet,
			},
			{
				Name:   "keygen",
				Usage:  "Print a fresh keypair",
				Action: runKeygen,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runDemo(c *cli.Context) error {
	cfg, err := config.LoadDemoConfig()
	if err != nil {
		return err
	}
	if c.IsSet("rpc-url") {
		cfg.Ledger.Endpoint = c.String("rpc-url")
	}
	if c.IsSet("account-size") {
		cfg.AccountSize = c.Uint64("account-size")
	}
	if c.IsSet("airdrop-lamports") {
		cfg.AirdropLamports = c.Uint64("airdrop-lamports")
	}
	if c.IsSet("skip-tamper") {
		cfg.SkipTamper = c.Bool("skip-tamper")
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return errors.Wrap(err, "failed to create logger")
	}
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := ledger.Dial(ctx, &cfg.Ledger, l)
	if err != nil {
		return err
	}
	defer client.Close()

	report, err := demo.NewRunner(client, cfg, l).Run(ctx)
	var sigErr *b.SignatureVerificationError
	if errors.As(err, &sigErr) {
		l.Info("Tampered transaction refused before submission",
			zap.String("run_id", report.RunID),
			zap.Stringer("signer", sigErr.Signer))
		return nil
	}
	return err
}

func runDevnet(c *cli.Context) error {
	cfg, err := config.LoadDevnetConfig()
	if err != nil {
		return err
	}
	if c.IsSet("listen") {
		cfg.ListenAddr = c.String("listen")
	}
	if c.IsSet("store") {
		cfg.Store = c.String("store")
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.IsSet("redis-addr") {
		cfg.RedisAddr = c.String("redis-addr")
	}
	if c.IsSet("slot-interval") {
		cfg.SlotInterval = c.Duration("slot-interval")
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return errors.Wrap(err, "failed to create logger")
	}
	defer func() { _ = l.Sync() }()

	st, err := openStore(cfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	node, err := devnet.NewNode(devnet.NodeConfig{
		SlotInterval:   cfg.SlotInterval,
		FaucetSeed:     cfg.FaucetSeed,
		FaucetLamports: cfg.FaucetLamports,
	}, st, l)
	if err != nil {
		return err
	}
	srv, err := devnet.NewRPCServer(node)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go node.Run(ctx)
	l.Sugar().Infow("Devnet started", "faucet", node.Faucet(), "store", cfg.Store, "slot_interval", cfg.SlotInterval)
	return devnet.Serve(ctx, cfg.ListenAddr, srv, l)
}

func openStore(cfg *config.DevnetConfig, l *zap.Logger) (store.LedgerStore, error) {
	switch cfg.Store {
	case config.StoreBadger:
		return badger.NewBadgerStore(cfg.DataDir, l)
	case config.StoreRedis:
		return redis.NewRedisStore(&redis.RedisConfig{Address: cfg.RedisAddr, DB: cfg.RedisDB}, l)
	default:
		l.Warn("Using in-memory ledger store, all state is lost on exit")
		return memory.NewMemoryStore(), nil
	}
}

func runKeygen(c *cli.Context) error {
	kp, err := b.GenerateKeypair()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "public key: %s\nsecret key: %s\n", kp.PublicKey(), hexutil.Encode(kp.SecretKey()))
	return nil
}

