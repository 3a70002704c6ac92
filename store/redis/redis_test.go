package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"txguard/store/storetest"
)

// getTestRedisAddress uses REDIS_TEST_ADDRESS if set, otherwise localhost:6379.
func getTestRedisAddress() string {
	if addr := os.Getenv("REDIS_TEST_ADDRESS"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// requireRedis skips the test when no server is reachable. Each store gets a
// fresh key prefix in DB 15, removed again on cleanup.
func requireRedis(t *testing.T) *RedisStore {
	t.Helper()

	cfg := &RedisConfig{
		Address:   getTestRedisAddress(),
		DB:        15,
		KeyPrefix: fmt.Sprintf("test-%d:", time.Now().UnixNano()),
	}
	rs, err := NewRedisStore(cfg, zap.NewNop())
	if err != nil {
		t.Skipf("Redis not available at %s: %v", cfg.Address, err)
	}

	t.Cleanup(func() {
		ctx := context.Background()
		keys, err := rs.client.Keys(ctx, cfg.KeyPrefix+"*").Result()
		if err == nil && len(keys) > 0 {
			rs.client.Del(ctx, keys...)
		}
		_ = rs.Close()
	})
	return rs
}

func TestRedisStore(t *testing.T) {
	rs := requireRedis(t)

	// The shared suite closes the store; keep a second connection for cleanup.
	other, err := NewRedisStore(&RedisConfig{Address: getTestRedisAddress(), DB: 15, KeyPrefix: rs.keyPrefix}, zap.NewNop())
	require.NoError(t, err)
	storetest.Run(t, other)
}

func TestNewRedisStoreRejectsEmptyConfig(t *testing.T) {
	_, err := NewRedisStore(nil, zap.NewNop())
	require.Error(t, err)

	_, err = NewRedisStore(&RedisConfig{}, zap.NewNop())
	require.Error(t, err)
}
