// Package coldstore implements the cold tier contract from spec.md §4.1
// and §6: get/put/remove over StoredTransaction, safe under concurrent
// callers. The hot tier lives inside the account worker and never
// crosses this boundary.
package coldstore

import (
	"context"

	"github.com/ledgerworks/paymentsengine/internal/domain"
)

// Store is the cold-tier collaborator contract.
type Store interface {
	Get(ctx context.Context, id domain.TxID) (domain.StoredTransaction, bool, error)
	Put(ctx context.Context, id domain.TxID, tx domain.StoredTransaction) error
	Remove(ctx context.Context, id domain.TxID) error
}
