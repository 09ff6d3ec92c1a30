// Package domain holds the core value types of the payments engine:
// accounts, stored transactions, and the transaction records submitted
// to it. None of these types carry behavior that crosses a goroutine
// boundary with shared mutable state — they are snapshotted by value.
package domain

import (
	"strings"
	"time"

	"github.com/ledgerworks/paymentsengine/internal/money"
)

// ClientID identifies an account. 16 bits per the wire format.
type ClientID uint16

// TxID identifies a transaction. 32 bits per the wire format, globally
// unique among new-money transactions.
type TxID uint32

// TransactionType is one of the five record kinds the stream carries.
type TransactionType int

const (
	Deposit TransactionType = iota
	Withdrawal
	Dispute
	Resolve
	Chargeback
)

func (t TransactionType) String() string {
	switch t {
	case Deposit:
		return "deposit"
	case Withdrawal:
		return "withdrawal"
	case Dispute:
		return "dispute"
	case Resolve:
		return "resolve"
	case Chargeback:
		return "chargeback"
	default:
		return "unknown"
	}
}

// ParseTransactionType parses the case-insensitive wire representation
// of a transaction type, as found in the CSV stream and the event log.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deposit":
		return Deposit, true
	case "withdrawal":
		return Withdrawal, true
	case "dispute":
		return Dispute, true
	case "resolve":
		return Resolve, true
	case "chargeback":
		return Chargeback, true
	default:
		return 0, false
	}
}

// IsNewMoney reports whether t introduces a new globally-unique
// transaction ID that must pass the registry gate.
func (t TransactionType) IsNewMoney() bool {
	return t == Deposit || t == Withdrawal
}

// Transaction is one record from the submission stream.
type Transaction struct {
	Type   TransactionType
	Client ClientID
	TxID   TxID
	Amount *money.Decimal // nil for dispute/resolve/chargeback
}

// Account is a per-client balance record. It is always handed out by
// value (a snapshot); only the owning worker goroutine ever holds a
// mutable instance.
type Account struct {
	Client    ClientID
	Available money.Decimal
	Held      money.Decimal
	Locked    bool
}

// Total returns available + held.
func (a Account) Total() money.Decimal {
	return a.Available.Add(a.Held)
}

// NewAccount returns a fresh, unlocked, zero-balance account.
func NewAccount(client ClientID) Account {
	return Account{Client: client}
}

// StoredTransaction is the durable record of an accepted deposit or
// withdrawal, kept so later disputes can reference it.
type StoredTransaction struct {
	Client      ClientID
	Type        TransactionType // Deposit or Withdrawal
	Amount      money.Decimal   // original amount, always > 0
	Disputed    bool
	HeldAmount  *money.Decimal // set iff Disputed; amount moved to held at dispute time
	CreatedAt   time.Time
}

// Clone returns a value copy safe to mutate independently of the
// original (HeldAmount, if set, is copied rather than aliased).
func (s StoredTransaction) Clone() StoredTransaction {
	out := s
	if s.HeldAmount != nil {
		h := *s.HeldAmount
		out.HeldAmount = &h
	}
	return out
}
