package redis

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"txguard/store"
	"txguard/types"
)

const (
	keyPrefixAccount   = "txguard:account:"
	keyPrefixSigStatus = "txguard:sigstatus:"
	// Sorted set of processed signatures scored by slot.
	keyPending           = "txguard:pending"
	keySchemaVersion     = "txguard:metadata:schema_version"
	currentSchemaVersion = "v1"

	opTimeout = 5 * time.Second
)

type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address  string
	Password string
	DB       int
	// KeyPrefix is prepended to every key, letting several devnets share one
	// server.
	KeyPrefix string
}

// RedisStore is a LedgerStore on a Redis server. Batches are written inside
// MULTI/EXEC.
type RedisStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

var _ store.LedgerStore = (*RedisStore)(nil)

func NewRedisStore(cfg *RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, errors.New("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "failed to connect to Redis at %s", cfg.Address)
	}

	rs := &RedisStore{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}
	if err := rs.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	logger.Sugar().Infow("Redis ledger store initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)
	return rs, nil
}

func (r *RedisStore) prefixKey(key string) string {
	return r.keyPrefix + key
}

func (r *RedisStore) accountKey(key types.PublicKey) string {
	return r.prefixKey(keyPrefixAccount + key.String())
}

func (r *RedisStore) statusKey(sig types.Signature) string {
	return r.prefixKey(keyPrefixSigStatus + sig.String())
}

func (r *RedisStore) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existing, err := r.client.Get(ctx, schemaKey).Result()
	if errors.Is(err, redis.Nil) {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return errors.Wrap(err, "failed to read schema version")
	}
	if existing != currentSchemaVersion {
		return errors.Errorf("unsupported schema version: %s (expected: %s)", existing, currentSchemaVersion)
	}
	return nil
}

func (r *RedisStore) GetAccount(key types.PublicKey) (*types.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, store.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.accountKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load account %s", key)
	}
	return store.UnmarshalAccount(data)
}

func (r *RedisStore) ApplyBatch(batch *store.Batch) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return store.ErrClosed
	}

	accounts := make(map[string][]byte, len(batch.Accounts))
	for key, account := range batch.Accounts {
		data, err := store.MarshalAccount(account)
		if err != nil {
			return err
		}
		accounts[r.accountKey(key)] = data
	}

	var status []byte
	if batch.Status != nil {
		var err error
		if status, err = store.MarshalSignatureStatus(batch.Status); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, data := range accounts {
			pipe.Set(ctx, key, data, 0)
		}
		for _, key := range batch.Deletions {
			pipe.Del(ctx, r.accountKey(key))
		}
		if status != nil {
			pipe.Set(ctx, r.statusKey(batch.Signature), status, 0)
			if batch.Status.ConfirmationStatus == types.StatusProcessed {
				pipe.ZAdd(ctx, r.prefixKey(keyPending), redis.Z{
					Score:  float64(batch.Status.Slot),
					Member: batch.Signature.String(),
				})
			}
		}
		return nil
	})
	return errors.Wrap(err, "failed to apply batch")
}

func (r *RedisStore) GetSignatureStatus(sig types.Signature) (*types.SignatureStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, store.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.statusKey(sig)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load status of %s", sig)
	}
	return store.UnmarshalSignatureStatus(data)
}

// ConfirmUpTo holds the write lock: the read of pending members and their
// promotion must not interleave with another promotion.
func (r *RedisStore) ConfirmUpTo(slot uint64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, store.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	pendingKey := r.prefixKey(keyPending)
	members, err := r.client.ZRangeByScore(ctx, pendingKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatUint(slot, 10),
	}).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to list pending signatures")
	}
	if len(members) == 0 {
		return 0, nil
	}

	updates := make(map[string][]byte, len(members))
	for _, member := range members {
		sig, err := types.SignatureFromBase58(member)
		if err != nil {
			r.logger.Sugar().Warnw("Dropping malformed pending signature", "member", member, "error", err)
			continue
		}
		data, err := r.client.Get(ctx, r.statusKey(sig)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return 0, errors.Wrapf(err, "failed to load status of %s", sig)
		}
		status, err := store.UnmarshalSignatureStatus(data)
		if err != nil {
			return 0, err
		}
		status.ConfirmationStatus = types.StatusConfirmed
		if updates[r.statusKey(sig)], err = store.MarshalSignatureStatus(status); err != nil {
			return 0, err
		}
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, data := range updates {
			pipe.Set(ctx, key, data, 0)
		}
		pipe.ZRem(ctx, pendingKey, toAny(members)...)
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to confirm up to slot %d", slot)
	}
	return len(updates), nil
}

func toAny(members []string) []interface{} {
	out := make([]interface{}, len(members))
	for i, m := range members {
		out[i] = m
	}
	return out
}

func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.client.Close(); err != nil {
		return errors.Wrap(err, "failed to close Redis client")
	}
	r.logger.Sugar().Info("Redis ledger store closed")
	return nil
}
