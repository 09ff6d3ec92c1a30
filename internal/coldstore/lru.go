package coldstore

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ledgerworks/paymentsengine/internal/domain"
)

// LRUStore bounds cold-tier memory for long-running server processes
// using hashicorp/golang-lru's thread-safe Cache, a supplemental
// feature beyond the original's unbounded InMemoryStore (see
// SPEC_FULL.md §4.7 for the rationale).
type LRUStore struct {
	cache *lru.Cache
}

// NewLRUStore creates a cold store bounded to size entries.
func NewLRUStore(size int) (*LRUStore, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("coldstore: new lru cache: %w", err)
	}
	return &LRUStore{cache: c}, nil
}

func (s *LRUStore) Get(_ context.Context, id domain.TxID) (domain.StoredTransaction, bool, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return domain.StoredTransaction{}, false, nil
	}
	return v.(domain.StoredTransaction), true, nil
}

func (s *LRUStore) Put(_ context.Context, id domain.TxID, tx domain.StoredTransaction) error {
	s.cache.Add(id, tx)
	return nil
}

func (s *LRUStore) Remove(_ context.Context, id domain.TxID) error {
	s.cache.Remove(id)
	return nil
}

var _ Store = (*LRUStore)(nil)
