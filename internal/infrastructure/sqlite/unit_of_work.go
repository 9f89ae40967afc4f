package sqlite

import (
	"context"
	"fmt"

	"github.com/ticketguard/scoring/internal/domain/port"
)

// UnitOfWork implements port.UnitOfWork with a database/sql transaction.
type UnitOfWork struct {
	store *Store
}

// NewUnitOfWork creates a UnitOfWork on s.
func NewUnitOfWork(s *Store) *UnitOfWork {
	return &UnitOfWork{store: s}
}

// Do runs fn with repositories bound to one transaction. The store holds a
// single connection, so fn must only use the repositories it is given.
func (u *UnitOfWork) Do(ctx context.Context, fn func(port.ProfileRepository, port.PredictionRepository) error) error {
	tx, err := u.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&ProfileRepository{db: tx}, &PredictionRepository{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit tx: %w", err)
	}
	return nil
}
