package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/ledgerworks/paymentsengine/internal/config"
	"github.com/ledgerworks/paymentsengine/internal/csvio"
	"github.com/ledgerworks/paymentsengine/internal/engine"
	"github.com/ledgerworks/paymentsengine/internal/metrics"
)

// cliCommand runs the one-shot mode from spec.md §6: read a
// transaction file, process it, write the resulting snapshot to
// stdout. Grounded on original_source/cli.rs's run(): an ephemeral,
// per-process event log under the OS temp directory, in-memory cold
// storage, and no log output mixed into stdout.
func cliCommand() *cli.Command {
	return &cli.Command{
		Name:      "cli",
		Usage:     "process a transaction file and print account snapshots",
		ArgsUsage: "<input-file>",
		Action:    runCLI,
	}
}

func runCLI(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("expected exactly one input file argument", 1)
	}
	inputPath := c.Args().Get(0)

	f, err := os.Open(inputPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("opening input: %v", err), 1)
	}
	defer f.Close()

	cfg := config.Default()
	cfg.EventLogPath = filepath.Join(os.TempDir(), fmt.Sprintf("paymentsengine-cli-%d.log", os.Getpid()))
	defer os.Remove(cfg.EventLogPath)

	ctx := context.Background()
	eng, err := engine.New(ctx, cfg, metrics.New(prometheus.NewRegistry()))
	if err != nil {
		return cli.Exit(fmt.Sprintf("starting engine: %v", err), 1)
	}
	defer eng.Close()

	reader := csvio.NewReader(f)
	for {
		tx, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Ignore parse errors, matching cli.rs's silent skip.
			continue
		}
		// Best-effort: a single rejected transaction does not abort
		// the run, matching cli.rs's `let _ = engine.process(row)`.
		_ = eng.Submit(ctx, tx)
	}

	accounts, err := eng.SnapshotAll(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("snapshotting accounts: %v", err), 1)
	}
	return csvio.WriteAccounts(os.Stdout, accounts)
}
