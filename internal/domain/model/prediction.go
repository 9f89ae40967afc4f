package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ticketguard/scoring/internal/domain/event"
	"github.com/ticketguard/scoring/internal/domain/valueobject"
	"github.com/ticketguard/scoring/pkg/events"
)

// Prediction is an immutable record of one score served for a profile.
type Prediction struct {
	events.EventCollector

	createdAt time.Time
	score     valueobject.Score
	id        uuid.UUID
	userID    uuid.UUID
}

// NewPrediction records score for profile and emits PredictionRecorded.
func NewPrediction(profile *UserProfile, score valueobject.Score) (*Prediction, error) {
	if profile == nil {
		return nil, fmt.Errorf("profile is required")
	}
	if score.RiskLabel().IsZero() {
		return nil, fmt.Errorf("score has no risk label")
	}
	p := &Prediction{
		id:        uuid.New(),
		userID:    profile.ID(),
		score:     score,
		createdAt: time.Now().UTC(),
	}
	p.Record(event.NewPredictionRecorded(event.PredictionRecorded{
		PredictionID:          p.id,
		UserID:                p.userID,
		Email:                 profile.Email(),
		AttendanceProbability: score.AttendanceProbability(),
		ResellerProbability:   score.ResellerProbability(),
		RiskLabel:             score.RiskLabel().String(),
		ModelVersion:          score.ModelVersion(),
		RecordedAt:            p.createdAt,
	}))
	return p, nil
}

// ReconstructPrediction rebuilds a prediction from persisted data (no events).
func ReconstructPrediction(id, userID uuid.UUID, score valueobject.Score, createdAt time.Time) *Prediction {
	return &Prediction{
		id:        id,
		userID:    userID,
		score:     score,
		createdAt: createdAt,
	}
}

func (p *Prediction) ID() uuid.UUID            { return p.id }
func (p *Prediction) UserID() uuid.UUID        { return p.userID }
func (p *Prediction) Score() valueobject.Score { return p.score }
func (p *Prediction) CreatedAt() time.Time     { return p.createdAt }
