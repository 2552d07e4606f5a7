// Package memory is an in-process stand-in for the spreadsheet export,
// used in tests and local development without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/sheets"
)

type Row struct {
	Transaction core.Transaction
	Category    string
}

type Store struct {
	mu   sync.Mutex
	rows []Row
}

var (
	_ sheets.TransactionWriter  = (*Store)(nil)
	_ sheets.TransactionDeleter = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

// Append stores the row and returns a synthetic reference.
func (s *Store) Append(_ context.Context, t core.Transaction, categoryName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, Row{Transaction: t, Category: categoryName})
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Delete removes every row carrying the transaction id. Missing rows
// are not an error, matching the spreadsheet adapter.
func (s *Store) Delete(_ context.Context, transactionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[:0]
	for _, r := range s.rows {
		if r.Transaction.ID != transactionID {
			kept = append(kept, r)
		}
	}
	s.rows = kept
	return nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Row(nil), s.rows...)
}
