// Package config binds engine-wide tunables the way the teacher's node
// binaries do: spf13/pflag for the flag set, spf13/viper to layer
// environment variables and defaults over it, spf13/cast for the odd
// type coercion viper itself doesn't do.
package config

import (
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every tunable named or implied by spec.md §4-§5.
type Config struct {
	// AccountShards is N from spec.md §4.2: the shard manager's
	// client_id-mod-N partition count. Reference value 16.
	AccountShards int
	// RegistryShards is M from spec.md §4.3: the tx-ID registry's
	// tx_id-mod-M partition count.
	RegistryShards int
	// WorkerQueueSize sizes each account worker's request channel.
	WorkerQueueSize int
	// RegistryQueueSize sizes each registry shard's request channel.
	RegistryQueueSize int
	// HotRetention is the age past which a stored transaction migrates
	// from hot to cold storage.
	HotRetention time.Duration
	// MigrationSweepInterval is how often a worker checks for
	// migratable transactions in the background.
	MigrationSweepInterval time.Duration
	// IdleCheckInterval is how often a worker checks whether it has
	// been idle past IdleTimeout.
	IdleCheckInterval time.Duration
	// IdleTimeout is the duration of inactivity after which a worker
	// self-terminates.
	IdleTimeout time.Duration
	// ColdStoreBackend selects "memory" or "lru".
	ColdStoreBackend string
	// ColdStoreLRUSize bounds the LRU cold-store backend's entry count.
	ColdStoreLRUSize int
	// EventLogPath is where the append-only redo stream lives.
	EventLogPath string
	// ServerBindAddr is the TCP address the server subcommand listens on.
	ServerBindAddr string
	// ServerMaxConnections bounds concurrent connections the server accepts.
	ServerMaxConnections int
	// MetricsAddr is where /metrics and /healthz are served, empty to disable.
	MetricsAddr string
}

// Default returns the reference configuration from spec.md (16 shards,
// 90-day hot retention, hourly migration sweep, 5-minute idle checks,
// 1-hour idle timeout) matching the original's account_actor.rs defaults.
func Default() Config {
	return Config{
		AccountShards:          16,
		RegistryShards:         16,
		WorkerQueueSize:        1000,
		RegistryQueueSize:      10000,
		HotRetention:           90 * 24 * time.Hour,
		MigrationSweepInterval: time.Hour,
		IdleCheckInterval:      5 * time.Minute,
		IdleTimeout:            time.Hour,
		ColdStoreBackend:       "memory",
		ColdStoreLRUSize:       100000,
		EventLogPath:           "paymentsengine.log",
		ServerBindAddr:         "0.0.0.0:8080",
		ServerMaxConnections:   1000,
		MetricsAddr:            "",
	}
}

// BindFlags registers every Config field onto fs with the Default
// values, then layers viper (env var PAYMENTSENGINE_*) on top; no
// config file is read. Flags win only when explicitly set; otherwise
// viper's precedence (flag > env > default) resolves it.
func BindFlags(fs *pflag.FlagSet) (*viper.Viper, error) {
	d := Default()

	fs.Int("account-shards", d.AccountShards, "number of account shards (N)")
	fs.Int("registry-shards", d.RegistryShards, "number of tx-id registry shards (M)")
	fs.Int("worker-queue-size", d.WorkerQueueSize, "per-account worker request channel size")
	fs.Int("registry-queue-size", d.RegistryQueueSize, "per-registry-shard request channel size")
	fs.Duration("hot-retention", d.HotRetention, "age at which a stored transaction migrates to cold storage")
	fs.Duration("migration-sweep-interval", d.MigrationSweepInterval, "background hot->cold migration sweep period")
	fs.Duration("idle-check-interval", d.IdleCheckInterval, "worker idle-check period")
	fs.Duration("idle-timeout", d.IdleTimeout, "worker self-termination idle threshold")
	fs.String("cold-store-backend", d.ColdStoreBackend, "cold tier backend: memory|lru")
	fs.Int("cold-store-lru-size", d.ColdStoreLRUSize, "entry cap for the lru cold-store backend")
	fs.String("event-log", d.EventLogPath, "path to the append-only event log")
	fs.String("bind", d.ServerBindAddr, "server mode TCP bind address")
	fs.Int("max-connections", d.ServerMaxConnections, "server mode maximum concurrent connections")
	fs.String("metrics-addr", d.MetricsAddr, "address to serve /metrics and /healthz on, empty to disable")

	v := viper.New()
	v.SetEnvPrefix("paymentsengine")
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	return v, nil
}

// FromViper reads every field back out of v, applying spf13/cast where
// viper's own Get* accessors aren't precise enough for our types.
func FromViper(v *viper.Viper) Config {
	return Config{
		AccountShards:          cast.ToInt(v.Get("account-shards")),
		RegistryShards:         cast.ToInt(v.Get("registry-shards")),
		WorkerQueueSize:        cast.ToInt(v.Get("worker-queue-size")),
		RegistryQueueSize:      cast.ToInt(v.Get("registry-queue-size")),
		HotRetention:           v.GetDuration("hot-retention"),
		MigrationSweepInterval: v.GetDuration("migration-sweep-interval"),
		IdleCheckInterval:      v.GetDuration("idle-check-interval"),
		IdleTimeout:            v.GetDuration("idle-timeout"),
		ColdStoreBackend:       cast.ToString(v.Get("cold-store-backend")),
		ColdStoreLRUSize:       cast.ToInt(v.Get("cold-store-lru-size")),
		EventLogPath:           cast.ToString(v.Get("event-log")),
		ServerBindAddr:         cast.ToString(v.Get("bind")),
		ServerMaxConnections:   cast.ToInt(v.Get("max-connections")),
		MetricsAddr:            cast.ToString(v.Get("metrics-addr")),
	}
}
