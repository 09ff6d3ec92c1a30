package shard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ledgerworks/paymentsengine/internal/coldstore"
	"github.com/ledgerworks/paymentsengine/internal/domain"
	"github.com/ledgerworks/paymentsengine/internal/money"
	"github.com/ledgerworks/paymentsengine/internal/worker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testWorkerConfig() worker.Config {
	return worker.Config{
		QueueSize:              16,
		HotRetention:           90 * 24 * time.Hour,
		MigrationSweepInterval: time.Hour,
		IdleCheckInterval:      5 * time.Minute,
		IdleTimeout:            time.Hour,
	}
}

func amount(s string) *money.Decimal {
	d, err := money.Parse(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func TestRouteCreatesExactlyOneWorkerPerClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := New(ctx, 4, coldstore.NewMemoryStore(), testWorkerConfig())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.route(domain.ClientID(7))
		}()
	}
	wg.Wait()

	s := m.shardFor(7)
	s.mu.RLock()
	defer s.mu.RUnlock()
	require.Len(t, s.workers, 1)
}

func TestCrossClientIsolation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := New(ctx, 4, coldstore.NewMemoryStore(), testWorkerConfig())

	require.NoError(t, m.Submit(context.Background(), domain.Transaction{Type: domain.Deposit, Client: 1, TxID: 1, Amount: amount("100.0")}))
	require.NoError(t, m.Submit(context.Background(), domain.Transaction{Type: domain.Deposit, Client: 2, TxID: 2, Amount: amount("200.0")}))
	require.NoError(t, m.Submit(context.Background(), domain.Transaction{Type: domain.Dispute, Client: 1, TxID: 1}))

	acc1, ok, err := m.Snapshot(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "0.0000", acc1.Available.String())
	require.Equal(t, "100.0000", acc1.Held.String())

	acc2, ok, err := m.Snapshot(context.Background(), 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "200.0000", acc2.Available.String())
	require.Equal(t, "0.0000", acc2.Held.String())
}

func TestSnapshotWithoutWorkerReturnsNotOK(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := New(ctx, 4, coldstore.NewMemoryStore(), testWorkerConfig())

	_, ok, err := m.Snapshot(context.Background(), 42)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSnapshotAllCollatesAcrossShards(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := New(ctx, 4, coldstore.NewMemoryStore(), testWorkerConfig())

	for c := domain.ClientID(1); c <= 10; c++ {
		require.NoError(t, m.Submit(context.Background(), domain.Transaction{Type: domain.Deposit, Client: c, TxID: domain.TxID(c), Amount: amount("1.0")}))
	}

	accs, err := m.SnapshotAll(context.Background())
	require.NoError(t, err)
	require.Len(t, accs, 10)
}

func TestRouteRespawnsAfterWorkerIdlesOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := testWorkerConfig()
	cfg.IdleCheckInterval = 5 * time.Millisecond
	cfg.IdleTimeout = 10 * time.Millisecond
	m := New(ctx, 4, coldstore.NewMemoryStore(), cfg)

	first := m.route(domain.ClientID(3))
	require.Eventually(t, func() bool { return !first.Alive() }, time.Second, 5*time.Millisecond,
		"worker should have idled out")

	second := m.route(domain.ClientID(3))
	require.NotSame(t, first, second, "route should evict the dead handle and spawn a replacement")
	require.True(t, second.Alive())

	// The stale handle must never hang a caller: Apply on it fails fast
	// instead of blocking on a reply nothing will ever send.
	err := first.Apply(context.Background(), domain.Transaction{Type: domain.Deposit, Client: 3, TxID: 1, Amount: amount("1.0")})
	require.ErrorIs(t, err, domain.ErrWorkerUnavailable)
}

func TestSnapshotEvictsDeadHandleWithoutRespawning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := testWorkerConfig()
	cfg.IdleCheckInterval = 5 * time.Millisecond
	cfg.IdleTimeout = 10 * time.Millisecond
	m := New(ctx, 4, coldstore.NewMemoryStore(), cfg)

	h := m.route(domain.ClientID(9))
	require.Eventually(t, func() bool { return !h.Alive() }, time.Second, 5*time.Millisecond,
		"worker should have idled out")

	_, ok, err := m.Snapshot(context.Background(), 9)
	require.NoError(t, err)
	require.False(t, ok)

	s := m.shardFor(9)
	s.mu.RLock()
	_, stillPresent := s.workers[9]
	s.mu.RUnlock()
	require.False(t, stillPresent, "dead handle should have been evicted from the shard map")
}
