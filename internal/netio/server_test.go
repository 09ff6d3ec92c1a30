package netio

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ledgerworks/paymentsengine/internal/config"
	"github.com/ledgerworks/paymentsengine/internal/engine"
	"github.com/ledgerworks/paymentsengine/internal/metrics"
)

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := config.Default()
	cfg.AccountShards = 2
	cfg.RegistryShards = 2
	cfg.EventLogPath = filepath.Join(t.TempDir(), "events.log")

	eng, err := engine.New(ctx, cfg, metrics.New(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	return New(eng, 4), eng
}

func TestServerStreamsTransactionsAndReturnsSnapshot(t *testing.T) {
	srv, _ := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("type,client,tx,amount\ndeposit,1,1,10.0\nwithdrawal,1,2,4.0\n"))
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	scanner := bufio.NewScanner(conn)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	require.GreaterOrEqual(t, len(lines), 2)
	require.Equal(t, "client,available,held,total,locked", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "1,6.0000,0.0000,6.0000,false"))
}
