package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"

	luxlog "github.com/luxfi/log"

	"github.com/ledgerworks/paymentsengine/internal/config"
	"github.com/ledgerworks/paymentsengine/internal/engine"
	"github.com/ledgerworks/paymentsengine/internal/logging"
	"github.com/ledgerworks/paymentsengine/internal/metrics"
	"github.com/ledgerworks/paymentsengine/internal/netio"
)

// serverCommand runs the persistent TCP server from spec.md §6,
// grounded on original_source/server.rs's run(): bind, rebuild state
// from the event log, then accept bounded connections forever.
// Extends the original with /metrics and /healthz, the teacher's own
// node binaries' convention for exposing prometheus/client_golang.
func serverCommand() *cli.Command {
	d := config.Default()
	return &cli.Command{
		Name:  "server",
		Usage: "run the TCP transaction-stream server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: d.ServerBindAddr, Usage: "TCP bind address"},
			&cli.IntFlag{Name: "max-connections", Value: d.ServerMaxConnections, Usage: "maximum concurrent connections"},
			&cli.StringFlag{Name: "event-log", Value: d.EventLogPath, Usage: "path to the append-only event log"},
			&cli.StringFlag{Name: "cold-store-backend", Value: d.ColdStoreBackend, Usage: "cold tier backend: memory|lru"},
			&cli.StringFlag{Name: "metrics-addr", Value: d.MetricsAddr, Usage: "address to serve /metrics and /healthz on, empty to disable"},
			&cli.StringFlag{Name: "diagnostic-log", Value: "paymentsengine-diagnostics.log", Usage: "path to the rotated operational diagnostic log (separate from the event log)"},
		},
		Action: runServer,
	}
}

func runServer(c *cli.Context) error {
	log := logging.Named("main")
	diag := logging.NewRotatingDiagnosticLog(c.String("diagnostic-log"))

	// Env vars (PAYMENTSENGINE_*) layer beneath explicit CLI flags: bind
	// the same field set onto a throwaway pflag.FlagSet so viper can
	// pick up anything set in the environment, then let an explicitly
	// passed urfave/cli flag win.
	fs := pflag.NewFlagSet("paymentsengine", pflag.ContinueOnError)
	v, err := config.BindFlags(fs)
	if err != nil {
		return cli.Exit(fmt.Sprintf("binding config flags: %v", err), 1)
	}
	if err := fs.Parse(nil); err != nil {
		return cli.Exit(fmt.Sprintf("parsing config flags: %v", err), 1)
	}
	cfg := config.FromViper(v)

	if c.IsSet("bind") {
		cfg.ServerBindAddr = c.String("bind")
	}
	if c.IsSet("max-connections") {
		cfg.ServerMaxConnections = c.Int("max-connections")
	}
	if c.IsSet("event-log") {
		cfg.EventLogPath = c.String("event-log")
	}
	if c.IsSet("cold-store-backend") {
		cfg.ColdStoreBackend = c.String("cold-store-backend")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	eng, err := engine.New(ctx, cfg, m)
	if err != nil {
		diag.Error("engine startup failed", "err", err)
		return cli.Exit(fmt.Sprintf("starting engine: %v", err), 1)
	}
	defer eng.Close()

	log.Info("replaying event log", "path", cfg.EventLogPath)
	diag.Info("replay starting", "path", cfg.EventLogPath)
	if err := eng.ReplayFromLog(ctx); err != nil {
		diag.Error("replay failed", "err", err)
		return cli.Exit(fmt.Sprintf("replaying event log: %v", err), 1)
	}
	diag.Info("replay complete")

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, reg, log)
	}

	ln, err := net.Listen("tcp", cfg.ServerBindAddr)
	if err != nil {
		return cli.Exit(fmt.Sprintf("binding %s: %v", cfg.ServerBindAddr, err), 1)
	}
	defer ln.Close()

	srv := netio.New(eng, cfg.ServerMaxConnections)
	log.Info("server starting", "bind", cfg.ServerBindAddr, "max_connections", cfg.ServerMaxConnections)

	err = srv.Serve(ctx, ln)
	if errors.Is(err, context.Canceled) {
		log.Info("server shutting down")
		diag.Info("server shutting down")
		return nil
	}
	return err
}

func serveMetrics(addr string, reg *prometheus.Registry, log luxlog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server exited", "err", err)
	}
}
