package sheets

import (
	"context"

	"github.com/garyjeong/household-ledger-server/internal/core"
)

// Ports for outbound export adapters.
type (
	// TransactionWriter appends a transaction row to the export target.
	// The returned row reference is adapter-specific and only used for
	// logging.
	TransactionWriter interface {
		Append(ctx context.Context, t core.Transaction, categoryName string) (rowRef string, err error)
	}

	// TransactionDeleter removes the row previously written for the
	// transaction, matched by its ledger id.
	TransactionDeleter interface {
		Delete(ctx context.Context, transactionID int64) error
	}
)
