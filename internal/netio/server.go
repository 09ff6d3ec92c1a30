// Package netio implements the TCP-connection-per-submission server
// from spec.md §6: a listener bounded to ServerMaxConnections
// concurrent connections, each streaming CSV transaction records in
// and writing the resulting account snapshot back out.
//
// Grounded on original_source/server.rs: tokio::sync::Semaphore
// acquired per connection before accept becomes
// golang.org/x/sync/semaphore.Weighted acquired per connection before
// spawning its handler goroutine; the per-connection CSV stream/write
// pairing is internal/csvio's Reader/WriteAccounts.
package netio

import (
	"context"
	"io"
	"net"

	"golang.org/x/sync/semaphore"

	luxlog "github.com/luxfi/log"

	"github.com/ledgerworks/paymentsengine/internal/csvio"
	"github.com/ledgerworks/paymentsengine/internal/engine"
	"github.com/ledgerworks/paymentsengine/internal/logging"
)

// Server accepts transaction-stream connections bounded by a
// semaphore-weighted concurrency limit.
type Server struct {
	engine *engine.Engine
	sem    *semaphore.Weighted
	log    luxlog.Logger
}

// New constructs a Server bounded to maxConnections simultaneous
// connections, submitting everything it reads to eng.
func New(eng *engine.Engine, maxConnections int) *Server {
	return &Server{
		engine: eng,
		sem:    semaphore.NewWeighted(int64(maxConnections)),
		log:    logging.Named("netio"),
	}
}

// Serve accepts connections on ln until ctx is cancelled or accept
// fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("listening", "addr", ln.Addr().String())
	// Closing ln on cancellation unblocks a pending Accept.
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	for {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return err
		}

		conn, err := ln.Accept()
		if err != nil {
			s.sem.Release(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return err
			}
		}

		go func() {
			defer s.sem.Release(1)
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	addr := conn.RemoteAddr().String()
	s.log.Info("accepted connection", "addr", addr)

	reader := csvio.NewReader(conn)
	for {
		tx, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed record: skip silently, subsequent records
			// proceed (spec.md §6/§7 ingestion policy).
			continue
		}
		if err := s.engine.Submit(ctx, tx); err != nil {
			s.log.Warn("submit failed", "addr", addr, "err", err)
		}
	}

	accounts, err := s.engine.SnapshotAll(ctx)
	if err != nil {
		s.log.Error("snapshot failed", "addr", addr, "err", err)
		return
	}
	if err := csvio.WriteAccounts(conn, accounts); err != nil {
		s.log.Error("write accounts failed", "addr", addr, "err", err)
	}
}
