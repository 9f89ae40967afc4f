package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ticketguard/scoring/internal/domain/feature"
)

// UserProfile is the aggregate root holding the latest behavioural features
// submitted for a buyer, keyed by email.
type UserProfile struct {
	createdAt time.Time
	updatedAt time.Time
	email     string
	features  feature.Row
	id        uuid.UUID
}

// NewUserProfile creates a profile for a buyer seen for the first time.
func NewUserProfile(email string, features feature.Row) (*UserProfile, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	now := time.Now().UTC()
	return &UserProfile{
		id:        uuid.New(),
		email:     email,
		features:  features,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// UpdateFeatures replaces the stored features with a newer submission.
func (p *UserProfile) UpdateFeatures(features feature.Row) {
	p.features = features
	p.updatedAt = time.Now().UTC()
}

// ReconstructUserProfile rebuilds a profile from persisted data.
func ReconstructUserProfile(id uuid.UUID, email string, features feature.Row, createdAt, updatedAt time.Time) *UserProfile {
	return &UserProfile{
		id:        id,
		email:     email,
		features:  features,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// NormalizeEmail trims and lower-cases an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *UserProfile) ID() uuid.UUID         { return p.id }
func (p *UserProfile) Email() string         { return p.email }
func (p *UserProfile) Features() feature.Row { return p.features }
func (p *UserProfile) CreatedAt() time.Time  { return p.createdAt }
func (p *UserProfile) UpdatedAt() time.Time  { return p.updatedAt }
