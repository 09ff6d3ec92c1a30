// Package worker implements the per-account actor from spec.md §4.1:
// exactly one long-lived goroutine per live client, reached only
// through its Handle, serially applying one transaction at a time.
//
// This generalizes the teacher's per-subpool reservation
// (core/txpool.go's "reservations map[common.Address]SubPool") from
// one serialization unit per transaction *class* to one per client
// *account*, and realizes the original Rust's tokio actor
// (account_actor.rs: mpsc::Receiver<AccountMessage> + tokio::select!
// over two interval timers) with a goroutine, a request channel, and
// two time.Tickers, stopped by context cancellation as well as by a
// Stop message.
package worker

import (
	"context"
	"time"

	luxlog "github.com/luxfi/log"

	"github.com/ledgerworks/paymentsengine/internal/coldstore"
	"github.com/ledgerworks/paymentsengine/internal/domain"
	"github.com/ledgerworks/paymentsengine/internal/logging"
	"github.com/ledgerworks/paymentsengine/internal/metrics"
	"github.com/ledgerworks/paymentsengine/internal/util"
)

// Config carries the tunables an account worker needs from
// internal/config, kept narrow so the package doesn't import the
// whole engine configuration.
type Config struct {
	QueueSize              int
	HotRetention           time.Duration
	MigrationSweepInterval time.Duration
	IdleCheckInterval      time.Duration
	IdleTimeout            time.Duration
	// Metrics is optional; nil in tests that don't care about
	// observability. When set, migrate() reports the outcome of each
	// entry it tries to move through it.
	Metrics *metrics.Metrics
}

// request is the closed sum type of messages a worker accepts,
// mirroring account_actor.rs's AccountMessage enum.
type request interface{ isRequest() }

type applyRequest struct {
	tx    domain.Transaction
	reply chan<- error
}

type readStateRequest struct {
	reply chan<- domain.Account
}

type migrateNowRequest struct {
	done chan<- struct{}
}

type stopRequest struct {
	done chan<- struct{}
}

func (applyRequest) isRequest()     {}
func (readStateRequest) isRequest() {}
func (migrateNowRequest) isRequest() {}
func (stopRequest) isRequest()      {}

// Handle is the only way outside code talks to a worker. done is
// closed once run() exits (idle timeout, ctx cancellation, or Stop),
// so a caller blocked on a reply that will never come fails fast
// instead of waiting out its own ctx — and so route() can detect and
// evict a dead handle instead of handing it out again.
type Handle struct {
	reqs chan request
	done chan struct{}
}

// Alive reports whether the worker's run loop is still active. A
// handle can go false at any time (idle timeout races with every
// caller); Alive is a point-in-time check, not a guarantee for the
// send that follows it, which is why every method below also selects
// on done.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Apply submits tx for serialized application and awaits the result.
// Returns domain.ErrWorkerUnavailable if the worker has exited (before
// or during the call) or ctx's deadline passes first.
func (h *Handle) Apply(ctx context.Context, tx domain.Transaction) error {
	reply := make(chan error, 1)
	select {
	case h.reqs <- applyRequest{tx: tx, reply: reply}:
	case <-h.done:
		return domain.ErrWorkerUnavailable
	case <-ctx.Done():
		return domain.ErrWorkerUnavailable
	}
	select {
	case err := <-reply:
		return err
	case <-h.done:
		return domain.ErrWorkerUnavailable
	case <-ctx.Done():
		return domain.ErrWorkerUnavailable
	}
}

// ReadState returns a snapshot of the account's current state.
func (h *Handle) ReadState(ctx context.Context) (domain.Account, error) {
	reply := make(chan domain.Account, 1)
	select {
	case h.reqs <- readStateRequest{reply: reply}:
	case <-h.done:
		return domain.Account{}, domain.ErrWorkerUnavailable
	case <-ctx.Done():
		return domain.Account{}, domain.ErrWorkerUnavailable
	}
	select {
	case acc := <-reply:
		return acc, nil
	case <-h.done:
		return domain.Account{}, domain.ErrWorkerUnavailable
	case <-ctx.Done():
		return domain.Account{}, domain.ErrWorkerUnavailable
	}
}

// MigrateNow requests an out-of-band hot->cold migration sweep and
// waits for it to finish; used by tests.
func (h *Handle) MigrateNow(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case h.reqs <- migrateNowRequest{done: done}:
	case <-h.done:
		return domain.ErrWorkerUnavailable
	case <-ctx.Done():
		return domain.ErrWorkerUnavailable
	}
	select {
	case <-done:
		return nil
	case <-h.done:
		return domain.ErrWorkerUnavailable
	case <-ctx.Done():
		return domain.ErrWorkerUnavailable
	}
}

// Stop asks the worker to drain pending messages and exit, then waits
// for it to do so.
func (h *Handle) Stop(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case h.reqs <- stopRequest{done: done}:
	case <-h.done:
		return domain.ErrWorkerUnavailable
	case <-ctx.Done():
		return domain.ErrWorkerUnavailable
	}
	select {
	case <-done:
		return nil
	case <-h.done:
		return domain.ErrWorkerUnavailable
	case <-ctx.Done():
		return domain.ErrWorkerUnavailable
	}
}

// worker owns the canonical state of one account. Nothing outside
// run() ever touches account or hot; that single-goroutine ownership
// is what makes per-client serialization correct without a lock.
type worker struct {
	client       domain.ClientID
	account      domain.Account
	hot          map[domain.TxID]domain.StoredTransaction
	cold         coldstore.Store
	cfg          Config
	clock        util.Clock
	lastActivity time.Time
	log          luxlog.Logger
	reqs         chan request
}

// Spawn launches a new account worker goroutine and returns its
// Handle. The worker runs until ctx is cancelled, it receives Stop, or
// it has been idle longer than cfg.IdleTimeout.
func Spawn(ctx context.Context, client domain.ClientID, cold coldstore.Store, cfg Config, clock util.Clock) *Handle {
	if clock == nil {
		clock = util.RealClock
	}
	w := &worker{
		client:       client,
		account:      domain.NewAccount(client),
		hot:          make(map[domain.TxID]domain.StoredTransaction),
		cold:         cold,
		cfg:          cfg,
		clock:        clock,
		lastActivity: clock.Now(),
		log:          logging.Named("worker").With("client", uint16(client)),
		reqs:         make(chan request, cfg.QueueSize),
	}
	done := make(chan struct{})
	go func() {
		w.run(ctx)
		close(done)
	}()
	return &Handle{reqs: w.reqs, done: done}
}

func (w *worker) run(ctx context.Context) {
	migrationTicker := time.NewTicker(w.cfg.MigrationSweepInterval)
	defer migrationTicker.Stop()
	idleTicker := time.NewTicker(w.cfg.IdleCheckInterval)
	defer idleTicker.Stop()

	for {
		select {
		case req, ok := <-w.reqs:
			if !ok {
				return
			}
			w.lastActivity = w.clock.Now()
			switch r := req.(type) {
			case applyRequest:
				r.reply <- w.apply(ctx, r.tx)
			case readStateRequest:
				r.reply <- w.account
			case migrateNowRequest:
				w.migrate(ctx)
				close(r.done)
			case stopRequest:
				close(r.done)
				return
			}

		case <-migrationTicker.C:
			w.migrate(ctx)

		case <-idleTicker.C:
			if w.clock.Now().Sub(w.lastActivity) > w.cfg.IdleTimeout {
				w.log.Debug("worker idle timeout, shutting down")
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// migrate moves hot entries older than HotRetention to the cold tier.
// A failed cold-write keeps the entry hot (no data loss) per spec.md §4.1.
func (w *worker) migrate(ctx context.Context) {
	cutoff := w.clock.Now().Add(-w.cfg.HotRetention)
	for id, tx := range w.hot {
		if tx.CreatedAt.After(cutoff) {
			continue
		}
		if err := w.cold.Put(ctx, id, tx); err != nil {
			w.log.Error("failed to migrate transaction to cold storage, keeping hot", "tx", uint32(id), "err", err)
			w.observeMigration(metrics.OutcomeErr)
			continue
		}
		delete(w.hot, id)
		w.observeMigration(metrics.OutcomeOK)
	}
}

func (w *worker) observeMigration(outcome string) {
	if w.cfg.Metrics == nil {
		return
	}
	w.cfg.Metrics.MigrationsTotal.WithLabelValues(outcome).Inc()
}
