package memory

import (
	"sync"

	"txguard/store"
	"txguard/types"
)

// MemoryStore keeps the ledger in process memory. Everything is lost on exit.
// Values are deep copied on the way in and out.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts types.AccountSet
	statuses map[types.Signature]types.SignatureStatus
	closed   bool
}

var _ store.LedgerStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(types.AccountSet),
		statuses: make(map[types.Signature]types.SignatureStatus),
	}
}

func (m *MemoryStore) GetAccount(key types.PublicKey) (*types.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, store.ErrClosed
	}
	return m.accounts[key].Copy(), nil
}

func (m *MemoryStore) ApplyBatch(batch *store.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return store.ErrClosed
	}

	for key, account := range batch.Accounts {
		m.accounts[key] = account.Copy()
	}
	for _, key := range batch.Deletions {
		delete(m.accounts, key)
	}
	if batch.Status != nil {
		m.statuses[batch.Signature] = *batch.Status
	}
	return nil
}

func (m *MemoryStore) GetSignatureStatus(sig types.Signature) (*types.SignatureStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, store.ErrClosed
	}
	status, ok := m.statuses[sig]
	if !ok {
		return nil, nil
	}
	return &status, nil
}

func (m *MemoryStore) ConfirmUpTo(slot uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, store.ErrClosed
	}

	confirmed := 0
	for sig, status := range m.statuses {
		if status.ConfirmationStatus == types.StatusProcessed && status.Slot <= slot {
			status.ConfirmationStatus = types.StatusConfirmed
			m.statuses[sig] = status
			confirmed++
		}
	}
	return confirmed, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
