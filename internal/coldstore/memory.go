package coldstore

import (
	"context"
	"sync"

	"github.com/ledgerworks/paymentsengine/internal/domain"
)

// MemoryStore is an unbounded, sync.RWMutex-guarded map. It is the
// default cold tier for the cli subcommand and for tests, grounded in
// the original's InMemoryStore (tokio::sync::RwLock<HashMap<...>>).
type MemoryStore struct {
	mu    sync.RWMutex
	items map[domain.TxID]domain.StoredTransaction
}

// NewMemoryStore creates an empty in-memory cold store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[domain.TxID]domain.StoredTransaction)}
}

func (s *MemoryStore) Get(_ context.Context, id domain.TxID) (domain.StoredTransaction, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.items[id]
	return tx, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, id domain.TxID, tx domain.StoredTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = tx
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, id domain.TxID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)
