package csvio

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerworks/paymentsengine/internal/domain"
	"github.com/ledgerworks/paymentsengine/internal/money"
)

func TestReaderSkipsHeaderAndParsesRows(t *testing.T) {
	input := strings.Join([]string{
		"type,client,tx,amount",
		"deposit,1,1,3.0",
		"withdrawal,1,2,1.5",
		"dispute,1,1,",
		"",
	}, "\n")

	r := NewReader(strings.NewReader(input))

	tx1, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, domain.Deposit, tx1.Type)
	require.Equal(t, domain.ClientID(1), tx1.Client)
	require.Equal(t, domain.TxID(1), tx1.TxID)
	require.NotNil(t, tx1.Amount)
	require.Equal(t, "3.0000", tx1.Amount.String())

	tx2, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, domain.Withdrawal, tx2.Type)

	tx3, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, domain.Dispute, tx3.Type)
	require.Nil(t, tx3.Amount)

	_, err = r.Next()
	require.True(t, errors.Is(err, io.EOF))
}

func TestReaderWithoutHeaderStillWorks(t *testing.T) {
	input := "deposit,1,1,5.0\n"
	r := NewReader(strings.NewReader(input))

	tx, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, domain.Deposit, tx.Type)
	require.Equal(t, domain.ClientID(1), tx.Client)
}

func TestReaderRejectsUnknownType(t *testing.T) {
	r := NewReader(strings.NewReader("frobnicate,1,1,5.0\n"))
	_, err := r.Next()
	require.Error(t, err)
}

func TestWriteAccountsSortsByClientAndFormatsFourDecimals(t *testing.T) {
	accs := []domain.Account{
		mustAccount(t, 2, "200.0", "0.0", false),
		mustAccount(t, 1, "1.5", "0.25", true),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, accs))

	expected := "client,available,held,total,locked\n" +
		"1,1.5000,0.2500,1.7500,true\n" +
		"2,200.0000,0.0000,200.0000,false\n"
	require.Equal(t, expected, buf.String())
}

func mustAccount(t *testing.T, client domain.ClientID, available, held string, locked bool) domain.Account {
	t.Helper()
	a, err := money.Parse(available)
	require.NoError(t, err)
	h, err := money.Parse(held)
	require.NoError(t, err)
	return domain.Account{Client: client, Available: a, Held: h, Locked: locked}
}
