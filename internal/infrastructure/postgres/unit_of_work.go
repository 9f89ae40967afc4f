package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ticketguard/scoring/internal/domain/port"
	pgpkg "github.com/ticketguard/scoring/pkg/postgres"
)

// UnitOfWork implements port.UnitOfWork with a pgx transaction.
type UnitOfWork struct {
	db pgpkg.TxStarter
}

// NewUnitOfWork creates a UnitOfWork that opens its transactions on db.
func NewUnitOfWork(db pgpkg.TxStarter) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Do runs fn with a profile and a prediction repository bound to the same
// transaction.
func (u *UnitOfWork) Do(ctx context.Context, fn func(port.ProfileRepository, port.PredictionRepository) error) error {
	return pgpkg.WithTransaction(ctx, u.db, func(tx pgx.Tx) error {
		return fn(NewProfileRepository(tx), NewPredictionRepository(tx))
	})
}
