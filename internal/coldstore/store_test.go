package coldstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerworks/paymentsengine/internal/domain"
	"github.com/ledgerworks/paymentsengine/internal/money"
)

func sampleTx() domain.StoredTransaction {
	amt, _ := money.Parse("10.0")
	return domain.StoredTransaction{
		Client:    1,
		Type:      domain.Deposit,
		Amount:    amt,
		CreatedAt: time.Now(),
	}
}

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put(ctx, 1, sampleTx()))

	got, ok, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.ClientID(1), got.Client)

	require.NoError(t, s.Remove(ctx, 1))
	_, ok, err = s.Get(ctx, 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestLRUStore(t *testing.T) {
	s, err := NewLRUStore(8)
	require.NoError(t, err)
	testStore(t, s)
}

func TestLRUStoreEvicts(t *testing.T) {
	s, err := NewLRUStore(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, 1, sampleTx()))
	require.NoError(t, s.Put(ctx, 2, sampleTx()))
	require.NoError(t, s.Put(ctx, 3, sampleTx()))

	_, ok, _ := s.Get(ctx, 1)
	require.False(t, ok, "oldest entry should have been evicted")
}
