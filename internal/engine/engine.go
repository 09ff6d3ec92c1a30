// Package engine wires together the registry, shard manager, and event
// log into the submission protocol of spec.md §4: register new-money
// transaction IDs for global uniqueness, apply to the owning account
// worker, compensate the registry on failure, and durably log only
// what actually committed.
//
// Grounded directly on original_source/scalable_engine.rs's
// ScalableEngine::process/rebuild_from_events, generalized from a
// single Arc<dyn TransactionStore> field set into the teacher's
// component-composition style (plain struct embedding, constructor
// returning (*T, error), metrics and a named logger threaded through).
package engine

import (
	"context"
	"fmt"
	"time"

	luxlog "github.com/luxfi/log"

	"github.com/ledgerworks/paymentsengine/internal/coldstore"
	"github.com/ledgerworks/paymentsengine/internal/config"
	"github.com/ledgerworks/paymentsengine/internal/domain"
	"github.com/ledgerworks/paymentsengine/internal/elog"
	"github.com/ledgerworks/paymentsengine/internal/logging"
	"github.com/ledgerworks/paymentsengine/internal/metrics"
	"github.com/ledgerworks/paymentsengine/internal/registry"
	"github.com/ledgerworks/paymentsengine/internal/shard"
	"github.com/ledgerworks/paymentsengine/internal/worker"
)

// Engine is the façade external callers (the CLI and the TCP server)
// submit transactions to and read snapshots from.
type Engine struct {
	shards  *shard.Manager
	txs     *registry.Registry
	log     *elog.Log
	logPath string
	metrics *metrics.Metrics
	logger  luxlog.Logger
}

// New constructs an Engine per cfg, opening its event log at
// cfg.EventLogPath and its cold store per cfg.ColdStoreBackend. Callers
// should follow New with ReplayFromLog to rebuild prior state.
func New(ctx context.Context, cfg config.Config, reg *metrics.Metrics) (*Engine, error) {
	cold, err := newColdStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: cold store: %w", err)
	}

	eventLog, err := elog.Open(cfg.EventLogPath)
	if err != nil {
		return nil, fmt.Errorf("engine: event log: %w", err)
	}

	workerCfg := worker.Config{
		QueueSize:              cfg.WorkerQueueSize,
		HotRetention:           cfg.HotRetention,
		MigrationSweepInterval: cfg.MigrationSweepInterval,
		IdleCheckInterval:      cfg.IdleCheckInterval,
		IdleTimeout:            cfg.IdleTimeout,
		Metrics:                reg,
	}

	return &Engine{
		shards:  shard.New(ctx, cfg.AccountShards, cold, workerCfg),
		txs:     registry.New(ctx, cfg.RegistryShards, cfg.RegistryQueueSize, reg),
		log:     eventLog,
		logPath: cfg.EventLogPath,
		metrics: reg,
		logger:  logging.Named("engine"),
	}, nil
}

func newColdStore(cfg config.Config) (coldstore.Store, error) {
	switch cfg.ColdStoreBackend {
	case "", "memory":
		return coldstore.NewMemoryStore(), nil
	case "lru":
		return coldstore.NewLRUStore(cfg.ColdStoreLRUSize)
	default:
		return nil, fmt.Errorf("unknown cold store backend %q", cfg.ColdStoreBackend)
	}
}

// Close releases the event log's file handle.
func (e *Engine) Close() error {
	return e.log.Close()
}

// Submit runs the five-step protocol of spec.md §4.6: register new
// money IDs for uniqueness, apply to the owning worker, compensate the
// registry if the apply fails, and append only successful
// transactions to the event log.
func (e *Engine) Submit(ctx context.Context, tx domain.Transaction) error {
	start := time.Now()
	err := e.submit(ctx, tx)
	e.observe(tx, err, time.Since(start))
	return err
}

func (e *Engine) submit(ctx context.Context, tx domain.Transaction) error {
	isNewMoney := tx.Type.IsNewMoney()

	if isNewMoney {
		isNew, err := e.txs.Register(ctx, tx.TxID)
		if err != nil {
			return err
		}
		if !isNew {
			return domain.ErrDuplicateTransaction
		}
	}

	if err := e.shards.Submit(ctx, tx); err != nil {
		if isNewMoney {
			if _, unregErr := e.txs.Unregister(ctx, tx.TxID); unregErr != nil {
				e.logger.Warn("failed to compensate registry after rejected submission", "tx", uint32(tx.TxID), "err", unregErr)
			}
		}
		return err
	}

	if err := e.log.Append(tx); err != nil {
		e.logger.Error("committed transaction failed to persist to event log", "tx", uint32(tx.TxID), "err", err)
		return err
	}
	return nil
}

func (e *Engine) observe(tx domain.Transaction, err error, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeErr
	}
	e.metrics.SubmitTotal.WithLabelValues(outcome).Inc()
	e.metrics.SubmitLatency.Observe(elapsed.Seconds())
}

// ReplayFromLog rebuilds engine state from the event log, called once
// at startup before accepting new submissions. Matches
// rebuild_from_events: new-money transaction IDs are re-registered and
// every record is re-applied through the shard manager directly,
// bypassing Submit so replay never re-appends to the log it is
// reading from. Individual record failures (e.g. a dispute whose
// target migrated and is no longer retrievable) are logged and
// skipped rather than aborting the whole replay.
func (e *Engine) ReplayFromLog(ctx context.Context) error {
	start := time.Now()
	events, err := elog.Replay(e.logPath)
	if err != nil {
		return fmt.Errorf("engine: replay: %w", err)
	}

	for _, tx := range events {
		if tx.Type.IsNewMoney() {
			if _, err := e.txs.Register(ctx, tx.TxID); err != nil {
				e.logger.Warn("replay: failed to register tx id", "tx", uint32(tx.TxID), "err", err)
			}
		}
		if err := e.shards.Submit(ctx, tx); err != nil {
			e.logger.Warn("replay: failed to re-apply transaction", "tx", uint32(tx.TxID), "err", err)
		}
	}

	e.logger.Info("replay complete", "records", len(events), "elapsed", time.Since(start))
	if e.metrics != nil {
		e.metrics.ReplayDuration.Observe(time.Since(start).Seconds())
	}
	return nil
}

// Snapshot returns client's current account state, if it has any
// recorded activity.
func (e *Engine) Snapshot(ctx context.Context, client domain.ClientID) (domain.Account, bool, error) {
	return e.shards.Snapshot(ctx, client)
}

// SnapshotAll returns every account known to the engine.
func (e *Engine) SnapshotAll(ctx context.Context) ([]domain.Account, error) {
	return e.shards.SnapshotAll(ctx)
}
