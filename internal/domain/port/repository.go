package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/ticketguard/scoring/internal/domain/feature"
	"github.com/ticketguard/scoring/internal/domain/model"
	"github.com/ticketguard/scoring/internal/domain/valueobject"
	"github.com/ticketguard/scoring/pkg/events"
)

// ProfileRepository defines the persistence port for user profiles.
type ProfileRepository interface {
	// Upsert stores the profile keyed by email. When a profile with the same
	// email already exists its features are replaced and the stored
	// aggregate, with its original ID, is returned.
	Upsert(ctx context.Context, profile *model.UserProfile) (*model.UserProfile, error)

	// FindByEmail returns errs.ErrNotFound when no profile matches.
	FindByEmail(ctx context.Context, email string) (*model.UserProfile, error)
}

// PredictionRepository defines the persistence port for served predictions.
type PredictionRepository interface {
	Save(ctx context.Context, prediction *model.Prediction) error

	// ListByUser returns the newest predictions first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Prediction, error)
}

// UnitOfWork runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(profiles ProfileRepository, predictions PredictionRepository) error) error
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// EventPublisher defines the port for publishing domain events.
type EventPublisher interface {
	Publish(ctx context.Context, events ...events.DomainEvent) error
}

// Scorer turns a feature row into a score using the served model.
type Scorer interface {
	Predict(ctx context.Context, row feature.Row) (valueobject.Score, error)
}
