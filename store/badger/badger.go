package badger

import (
	"context"
	"encoding/binary"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"txguard/store"
	"txguard/types"
)

const (
	keyPrefixAccount   = "account:"
	keyPrefixSigStatus = "sigstatus:"
	// pending:<big endian slot><signature> indexes processed statuses by slot.
	keyPrefixPending     = "pending:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerStore is a disk-backed LedgerStore. Each batch is one badger
// transaction.
type BadgerStore struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ store.LedgerStore = (*BadgerStore)(nil)

// NewBadgerStore opens (or creates) the database at dataPath and starts value
// log garbage collection in the background.
func NewBadgerStore(dataPath string, logger *zap.Logger) (*BadgerStore, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve absolute path")
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open badger database at %s", absPath)
	}

	bs := &BadgerStore{db: db, logger: logger}
	if err := bs.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	ctx, cancel := context.WithCancel(context.Background())
	bs.gcCancel = cancel
	bs.gcWg.Add(1)
	go bs.runGC(ctx)

	logger.Sugar().Infow("Badger ledger store initialized", "path", absPath)
	return bs, nil
}

func (b *BadgerStore) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return errors.Wrap(err, "failed to read schema version")
		}

		var existing string
		if err := item.Value(func(val []byte) error {
			existing = string(val)
			return nil
		}); err != nil {
			return errors.Wrap(err, "failed to read schema version value")
		}
		if existing != currentSchemaVersion {
			return errors.Errorf("unsupported schema version: %s (expected: %s)", existing, currentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerStore) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func accountKey(key types.PublicKey) []byte {
	return append([]byte(keyPrefixAccount), key[:]...)
}

func statusKey(sig types.Signature) []byte {
	return append([]byte(keyPrefixSigStatus), sig[:]...)
}

func pendingKey(slot uint64, sig types.Signature) []byte {
	k := binary.BigEndian.AppendUint64([]byte(keyPrefixPending), slot)
	return append(k, sig[:]...)
}

// get copies the value at key, returning nil when absent.
func get(txn *badgerdb.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (b *BadgerStore) GetAccount(key types.PublicKey) (*types.Account, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, store.ErrClosed
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) (err error) {
		data, err = get(txn, accountKey(key))
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load account %s", key)
	}
	if data == nil {
		return nil, nil
	}
	return store.UnmarshalAccount(data)
}

func (b *BadgerStore) ApplyBatch(batch *store.Batch) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return store.ErrClosed
	}

	err := b.db.Update(func(txn *badgerdb.Txn) error {
		for key, account := range batch.Accounts {
			data, err := store.MarshalAccount(account)
			if err != nil {
				return err
			}
			if err := txn.Set(accountKey(key), data); err != nil {
				return err
			}
		}
		for _, key := range batch.Deletions {
			if err := txn.Delete(accountKey(key)); err != nil {
				return err
			}
		}
		if batch.Status == nil {
			return nil
		}

		data, err := store.MarshalSignatureStatus(batch.Status)
		if err != nil {
			return err
		}
		if err := txn.Set(statusKey(batch.Signature), data); err != nil {
			return err
		}
		if batch.Status.ConfirmationStatus == types.StatusProcessed {
			return txn.Set(pendingKey(batch.Status.Slot, batch.Signature), []byte{})
		}
		return nil
	})
	return errors.Wrap(err, "failed to apply batch")
}

func (b *BadgerStore) GetSignatureStatus(sig types.Signature) (*types.SignatureStatus, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, store.ErrClosed
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) (err error) {
		data, err = get(txn, statusKey(sig))
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load status of %s", sig)
	}
	if data == nil {
		return nil, nil
	}
	return store.UnmarshalSignatureStatus(data)
}

func (b *BadgerStore) ConfirmUpTo(slot uint64) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, store.ErrClosed
	}

	confirmed := 0
	err := b.db.Update(func(txn *badgerdb.Txn) error {
		prefix := []byte(keyPrefixPending)
		it := txn.NewIterator(badgerdb.IteratorOptions{Prefix: prefix})
		var pending [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().KeyCopy(nil)
			if binary.BigEndian.Uint64(k[len(prefix):]) > slot {
				break
			}
			pending = append(pending, k)
		}
		it.Close()

		for _, k := range pending {
			var sig types.Signature
			copy(sig[:], k[len(prefix)+8:])

			data, err := get(txn, statusKey(sig))
			if err != nil {
				return err
			}
			if data != nil {
				status, err := store.UnmarshalSignatureStatus(data)
				if err != nil {
					return err
				}
				status.ConfirmationStatus = types.StatusConfirmed
				if data, err = store.MarshalSignatureStatus(status); err != nil {
					return err
				}
				if err := txn.Set(statusKey(sig), data); err != nil {
					return err
				}
				confirmed++
			}
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to confirm up to slot %d", slot)
	}
	return confirmed, nil
}

func (b *BadgerStore) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close badger database")
	}

	b.logger.Sugar().Info("Badger ledger store closed")
	return nil
}
