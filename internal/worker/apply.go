package worker

import (
	"context"

	"github.com/ledgerworks/paymentsengine/internal/domain"
	"github.com/ledgerworks/paymentsengine/internal/money"
)

// apply dispatches tx by type, exactly the match in the original's
// process_transaction. Either the account mutates and nil is
// returned, or no field changes and an *domain.EngineError is
// returned (spec.md §4.1's failure semantics).
func (w *worker) apply(ctx context.Context, tx domain.Transaction) error {
	switch tx.Type {
	case domain.Deposit:
		return w.applyDeposit(tx)
	case domain.Withdrawal:
		return w.applyWithdrawal(tx)
	case domain.Dispute:
		return w.applyDispute(ctx, tx)
	case domain.Resolve:
		return w.applyResolve(ctx, tx)
	case domain.Chargeback:
		return w.applyChargeback(ctx, tx)
	default:
		return domain.ErrTransactionNotFound
	}
}

func validateAmount(amount *money.Decimal) (money.Decimal, error) {
	if amount == nil {
		return money.Zero, domain.ErrMissingAmount
	}
	if !amount.IsPositive() {
		return money.Zero, domain.ErrInvalidAmount
	}
	return *amount, nil
}

func (w *worker) applyDeposit(tx domain.Transaction) error {
	amount, err := validateAmount(tx.Amount)
	if err != nil {
		return err
	}
	if w.account.Locked {
		return domain.ErrAccountLocked
	}

	w.account.Available = w.account.Available.Add(amount)
	w.hot[tx.TxID] = domain.StoredTransaction{
		Client:    w.client,
		Type:      domain.Deposit,
		Amount:    amount,
		CreatedAt: w.clock.Now(),
	}
	return nil
}

func (w *worker) applyWithdrawal(tx domain.Transaction) error {
	amount, err := validateAmount(tx.Amount)
	if err != nil {
		return err
	}
	if w.account.Locked {
		return domain.ErrAccountLocked
	}
	if w.account.Available.LessThan(amount) {
		return domain.ErrInsufficientFunds
	}

	w.account.Available = w.account.Available.Sub(amount)
	// Withdrawals are stored for audit only; never disputable (spec.md §4.1).
	w.hot[tx.TxID] = domain.StoredTransaction{
		Client:    w.client,
		Type:      domain.Withdrawal,
		Amount:    amount,
		CreatedAt: w.clock.Now(),
	}
	return nil
}

// lookup finds a stored transaction, consulting hot then cold, per
// spec.md §4.1's tiering rule.
func (w *worker) lookup(ctx context.Context, id domain.TxID) (domain.StoredTransaction, bool, error) {
	if tx, ok := w.hot[id]; ok {
		return tx, true, nil
	}
	tx, ok, err := w.cold.Get(ctx, id)
	if err != nil {
		return domain.StoredTransaction{}, false, err
	}
	return tx, ok, nil
}

// writeBack updates a stored transaction in whichever tier it was
// found in, per spec.md §4.1.
func (w *worker) writeBack(ctx context.Context, id domain.TxID, tx domain.StoredTransaction, foundHot bool) error {
	if foundHot {
		w.hot[id] = tx
		return nil
	}
	if err := w.cold.Put(ctx, id, tx); err != nil {
		w.log.Error("failed to update transaction in cold storage", "tx", uint32(id), "err", err)
		return domain.ErrTransactionNotFound
	}
	return nil
}

// removeStored deletes a stored transaction from whichever tier it
// was found in.
func (w *worker) removeStored(ctx context.Context, id domain.TxID, foundHot bool) {
	if foundHot {
		delete(w.hot, id)
		return
	}
	if err := w.cold.Remove(ctx, id); err != nil {
		w.log.Error("failed to remove transaction from cold storage", "tx", uint32(id), "err", err)
	}
}

func (w *worker) applyDispute(ctx context.Context, tx domain.Transaction) error {
	if w.account.Locked {
		return domain.ErrAccountLocked
	}

	stored, foundHot, err := w.lookupForMutation(ctx, tx.TxID)
	if err != nil {
		return err
	}
	if stored.Client != w.client {
		return domain.ErrClientMismatch
	}
	if stored.Type != domain.Deposit {
		return domain.ErrTransactionNotFound
	}
	if stored.Disputed {
		return domain.ErrAlreadyDisputed
	}

	amount := stored.Amount
	stored.Disputed = true
	stored.HeldAmount = &amount
	if err := w.writeBack(ctx, tx.TxID, stored, foundHot); err != nil {
		return err
	}

	w.account.Available = w.account.Available.Sub(amount) // may go negative
	w.account.Held = w.account.Held.Add(amount)
	return nil
}

func (w *worker) applyResolve(ctx context.Context, tx domain.Transaction) error {
	if w.account.Locked {
		return domain.ErrAccountLocked
	}

	stored, foundHot, err := w.lookupForMutation(ctx, tx.TxID)
	if err != nil {
		return err
	}
	if stored.Client != w.client {
		return domain.ErrClientMismatch
	}
	if !stored.Disputed {
		return domain.ErrNotDisputed
	}

	amount := *stored.HeldAmount
	stored.Disputed = false
	stored.HeldAmount = nil
	if err := w.writeBack(ctx, tx.TxID, stored, foundHot); err != nil {
		return err
	}

	w.account.Held = w.account.Held.Sub(amount)
	w.account.Available = w.account.Available.Add(amount)
	return nil
}

func (w *worker) applyChargeback(ctx context.Context, tx domain.Transaction) error {
	if w.account.Locked {
		return domain.ErrAccountLocked
	}

	stored, foundHot, err := w.lookupForMutation(ctx, tx.TxID)
	if err != nil {
		return err
	}
	if stored.Client != w.client {
		return domain.ErrClientMismatch
	}
	if !stored.Disputed {
		return domain.ErrNotDisputed
	}

	w.account.Held = w.account.Held.Sub(*stored.HeldAmount)
	w.account.Locked = true
	w.removeStored(ctx, tx.TxID, foundHot)
	// The registry entry for this transaction is never released here;
	// that is the registry's concern, not the worker's (spec.md §4.1).
	return nil
}

// lookupForMutation is lookup plus the TransactionNotFound mapping
// dispute/resolve/chargeback all share.
func (w *worker) lookupForMutation(ctx context.Context, id domain.TxID) (domain.StoredTransaction, bool, error) {
	stored, ok, err := w.lookup(ctx, id)
	if err != nil {
		return domain.StoredTransaction{}, false, domain.ErrTransactionNotFound
	}
	if !ok {
		return domain.StoredTransaction{}, false, domain.ErrTransactionNotFound
	}
	_, foundHot := w.hot[id]
	return stored, foundHot, nil
}
