package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ticketguard/scoring/internal/domain/model"
	"github.com/ticketguard/scoring/internal/domain/valueobject"
	pgpkg "github.com/ticketguard/scoring/pkg/postgres"
)

// PredictionRepository implements port.PredictionRepository using PostgreSQL.
type PredictionRepository struct {
	db pgpkg.Querier
}

// NewPredictionRepository creates a new PostgreSQL-backed prediction
// repository. db may be a pool or a transaction.
func NewPredictionRepository(db pgpkg.Querier) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// Save appends a prediction. Predictions are never updated.
func (r *PredictionRepository) Save(ctx context.Context, p *model.Prediction) error {
	query := `
		INSERT INTO predictions (
			id, user_id, attendance_probability, reseller_probability,
			risk_label, model_version, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	s := p.Score()
	_, err := r.db.Exec(ctx, query,
		p.ID(),
		p.UserID(),
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
	query := `
		SELECT id, user_id, attendance_probability, reseller_probability,
			risk_label, model_version, created_at
		FROM predictions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
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
