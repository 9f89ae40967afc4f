package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ticketguard/scoring/internal/domain/feature"
	"github.com/ticketguard/scoring/internal/domain/model"
	"github.com/ticketguard/scoring/internal/domain/valueobject"
	"github.com/ticketguard/scoring/internal/errs"
)

const profileColumns = `id, email,
	age, country, city, account_age_days, purchases_last_12_months,
	canceled_orders, tickets_per_order_avg, distance_to_venue_km,
	payment_failures_ratio, event_affinity_score, night_purchase_ratio,
	resale_reports_count, attendance_rate,
	created_at, updated_at`

// querier is the statement surface shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ProfileRepository implements port.ProfileRepository on SQLite.
type ProfileRepository struct {
	db querier
}

// NewProfileRepository creates a profile repository backed by s.
func NewProfileRepository(s *Store) *ProfileRepository {
	return &ProfileRepository{db: s.db}
}

// Upsert inserts the profile or replaces the features of the profile with
// the same email, returning the stored row.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *model.UserProfile) (*model.UserProfile, error) {
	query := `
		INSERT INTO user_profiles (` + profileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			age = excluded.age,
			country = excluded.country,
			city = excluded.city,
			account_age_days = excluded.account_age_days,
			purchases_last_12_months = excluded.purchases_last_12_months,
			canceled_orders = excluded.canceled_orders,
			tickets_per_order_avg = excluded.tickets_per_order_avg,
			distance_to_venue_km = excluded.distance_to_venue_km,
			payment_failures_ratio = excluded.payment_failures_ratio,
			event_affinity_score = excluded.event_affinity_score,
			night_purchase_ratio = excluded.night_purchase_ratio,
			resale_reports_count = excluded.resale_reports_count,
			attendance_rate = excluded.attendance_rate,
			updated_at = excluded.updated_at`

	f := profile.Features()
	_, err := r.db.ExecContext(ctx, query,
		profile.ID().String(),
		profile.Email(),
		f.Age, f.Country, f.City, f.AccountAgeDays, f.PurchasesLast12Months,
		f.CanceledOrders, f.TicketsPerOrderAvg, f.DistanceToVenueKm,
		f.PaymentFailuresRatio, f.EventAffinityScore, f.NightPurchaseRatio,
		f.ResaleReportsCount, f.AttendanceRate,
		profile.CreatedAt(),
		profile.UpdatedAt(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	// Read back to get the surviving id.
	stored, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE email = ?`, profile.Email()))
	if err != nil {
		return nil, fmt.Errorf("failed to read upserted profile: %w", err)
	}
	return stored, nil
}

// FindByEmail retrieves a profile by its normalized email.
func (r *ProfileRepository) FindByEmail(ctx context.Context, email string) (*model.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE email = ?`

	profile, err := scanProfile(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.Newf(errs.CodeNotFound, "no profile for %s", email)
		}
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return profile, nil
}

func scanProfile(row *sql.Row) (*model.UserProfile, error) {
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

// PredictionRepository implements port.PredictionRepository on SQLite.
type PredictionRepository struct {
	db querier
}

// NewPredictionRepository creates a prediction repository backed by s.
func NewPredictionRepository(s *Store) *PredictionRepository {
	return &PredictionRepository{db: s.db}
}

// Save appends a prediction.
func (r *PredictionRepository) Save(ctx context.Context, p *model.Prediction) error {
	s := p.Score()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO predictions (
			id, user_id, attendance_probability, reseller_probability,
			risk_label, model_version, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID().String(),
		p.UserID().String(),
		s.AttendanceProbability(),
		s.ResellerProbability(),
		s.RiskLabel().String(),
		s.ModelVersion(),
		p.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}

// ListByUser returns up to limit predictions for a user, newest first.
func (r *PredictionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Prediction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, attendance_probability, reseller_probability,
			risk_label, model_version, created_at
		FROM predictions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		userID.String(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var predictions []*model.Prediction
	for rows.Next() {
		var (
			id         uuid.UUID
			uid        uuid.UUID
			attendance float64
			reseller   float64
			label      string
			version    string
			createdAt  time.Time
		)
		if err := rows.Scan(&id, &uid, &attendance, &reseller, &label, &version, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		riskLabel, err := valueobject.RiskLabelFromString(label)
		if err != nil {
			return nil, fmt.Errorf("failed to parse risk label: %w", err)
		}
		score := valueobject.ReconstructScore(attendance, reseller, riskLabel, version)
		predictions = append(predictions, model.ReconstructPrediction(id, uid, score, createdAt.UTC()))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate predictions: %w", err)
	}
	return predictions, nil
}
