package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ticketguard/scoring/internal/domain/feature"
	"github.com/ticketguard/scoring/internal/domain/model"
	"github.com/ticketguard/scoring/internal/errs"
	pgpkg "github.com/ticketguard/scoring/pkg/postgres"
)

const profileColumns = `id, email,
	age, country, city, account_age_days, purchases_last_12_months,
	canceled_orders, tickets_per_order_avg, distance_to_venue_km,
	payment_failures_ratio, event_affinity_score, night_purchase_ratio,
	resale_reports_count, attendance_rate,
	created_at, updated_at`

// ProfileRepository implements port.ProfileRepository using PostgreSQL.
type ProfileRepository struct {
	db pgpkg.Querier
}

// NewProfileRepository creates a new PostgreSQL-backed profile repository.
// db may be a pool or a transaction.
func NewProfileRepository(db pgpkg.Querier) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Upsert inserts the profile or replaces the features of the profile with
// the same email, returning the stored row.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *model.UserProfile) (*model.UserProfile, error) {
	query := `
		INSERT INTO user_profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (email) DO UPDATE SET
			age = EXCLUDED.age,
			country = EXCLUDED.country,
			city = EXCLUDED.city,
			account_age_days = EXCLUDED.account_age_days,
			purchases_last_12_months = EXCLUDED.purchases_last_12_months,
			canceled_orders = EXCLUDED.canceled_orders,
			tickets_per_order_avg = EXCLUDED.tickets_per_order_avg,
			distance_to_venue_km = EXCLUDED.distance_to_venue_km,
			payment_failures_ratio = EXCLUDED.payment_failures_ratio,
			event_affinity_score = EXCLUDED.event_affinity_score,
			night_purchase_ratio = EXCLUDED.night_purchase_ratio,
			resale_reports_count = EXCLUDED.resale_reports_count,
			attendance_rate = EXCLUDED.attendance_rate,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + profileColumns

	f := profile.Features()
	row := r.db.QueryRow(ctx, query,
		profile.ID(),
		profile.Email(),
		f.Age,
		f.Country,
		f.City,
		f.AccountAgeDays,
		f.PurchasesLast12Months,
		f.CanceledOrders,
		f.TicketsPerOrderAvg,
		f.DistanceToVenueKm,
		f.PaymentFailuresRatio,
		f.EventAffinityScore,
		f.NightPurchaseRatio,
		f.ResaleReportsCount,
		f.AttendanceRate,
		profile.CreatedAt(),
		profile.UpdatedAt(),
	)
	stored, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return stored, nil
}

// FindByEmail retrieves a profile by its normalized email.
func (r *ProfileRepository) FindByEmail(ctx context.Context, email string) (*model.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE email = $1`

	profile, err := scanProfile(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.Newf(errs.CodeNotFound, "no profile for %s", email)
		}
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return profile, nil
}

func scanProfile(row pgx.Row) (*model.UserProfile, error) {
	var (
		id        uuid.UUID
		email     string
		f         feature.Row
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(
		&id, &email,
		&f.Age, &f.Country, &f.City, &f.AccountAgeDays, &f.PurchasesLast12Months,
		&f.CanceledOrders, &f.TicketsPerOrderAvg, &f.DistanceToVenueKm,
		&f.PaymentFailuresRatio, &f.EventAffinityScore, &f.NightPurchaseRatio,
		&f.ResaleReportsCount, &f.AttendanceRate,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	return model.ReconstructUserProfile(id, email, f, createdAt.UTC(), updatedAt.UTC()), nil
}
