package elog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerworks/paymentsengine/internal/domain"
	"github.com/ledgerworks/paymentsengine/internal/money"
)

func amount(s string) *money.Decimal {
	d, err := money.Parse(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func TestAppendAndReplayRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	l, err := Open(path)
	require.NoError(t, err)

	txs := []domain.Transaction{
		{Type: domain.Deposit, Client: 1, TxID: 1, Amount: amount("3.0")},
		{Type: domain.Deposit, Client: 2, TxID: 2, Amount: amount("7.5")},
		{Type: domain.Withdrawal, Client: 1, TxID: 3, Amount: amount("1.5")},
		{Type: domain.Dispute, Client: 1, TxID: 1},
		{Type: domain.Resolve, Client: 1, TxID: 1},
		{Type: domain.Chargeback, Client: 2, TxID: 2},
	}
	for _, tx := range txs {
		require.NoError(t, l.Append(tx))
	}
	require.NoError(t, l.Close())

	replayed, err := Replay(path)
	require.NoError(t, err)
	require.Len(t, replayed, len(txs))
	for i, tx := range txs {
		require.Equal(t, tx.Type, replayed[i].Type)
		require.Equal(t, tx.Client, replayed[i].Client)
		require.Equal(t, tx.TxID, replayed[i].TxID)
		if tx.Amount != nil {
			require.NotNil(t, replayed[i].Amount)
			require.True(t, tx.Amount.Equal(*replayed[i].Amount))
		} else {
			require.Nil(t, replayed[i].Amount)
		}
	}
}

func TestReplayMissingFileReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.log")
	out, err := Replay(path)
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestReplaySkipsHeaderAndMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(domain.Transaction{Type: domain.Deposit, Client: 1, TxID: 1, Amount: amount("1.0")}))
	require.NoError(t, l.Close())

	// Prepend a header line and inject a malformed line by rewriting the file.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	withJunk := "type,client,tx,amount\nnot,a,valid\n" + string(raw)
	require.NoError(t, os.WriteFile(path, []byte(withJunk), 0o644))

	out, err := Replay(path)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, domain.Deposit, out[0].Type)
}
