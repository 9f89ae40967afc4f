package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ticketguard/scoring/internal/domain/feature"
	"github.com/ticketguard/scoring/internal/domain/model"
	"github.com/ticketguard/scoring/internal/domain/port"
	"github.com/ticketguard/scoring/internal/domain/valueobject"
	"github.com/ticketguard/scoring/internal/errs"
	"github.com/ticketguard/scoring/pkg/events"
)

// --- Mock implementations ---

type mockProfileRepository struct {
	mu       sync.Mutex
	byEmail  map[string]*model.UserProfile
	upsertFn func(ctx context.Context, profile *model.UserProfile) (*model.UserProfile, error)
}

func newMockProfileRepository() *mockProfileRepository {
	return &mockProfileRepository{byEmail: make(map[string]*model.UserProfile)}
}

func (m *mockProfileRepository) Upsert(ctx context.Context, profile *model.UserProfile) (*model.UserProfile, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, profile)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byEmail[profile.Email()]; ok {
		existing.UpdateFeatures(profile.Features())
		return existing, nil
	}
	m.byEmail[profile.Email()] = profile
	return profile, nil
}

func (m *mockProfileRepository) FindByEmail(_ context.Context, email string) (*model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byEmail[email]; ok {
		return p, nil
	}
	return nil, errs.New(errs.CodeNotFound, "profile not found")
}

type mockPredictionRepository struct {
	mu     sync.Mutex
	saved  []*model.Prediction
	saveFn func(ctx context.Context, p *model.Prediction) error
	limits []int
}

func (m *mockPredictionRepository) Save(ctx context.Context, p *model.Prediction) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, p)
	return nil
}

func (m *mockPredictionRepository) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*model.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits = append(m.limits, limit)
	var out []*model.Prediction
	for i := len(m.saved) - 1; i >= 0 && len(out) < limit; i-- {
		if m.saved[i].UserID() == userID {
			out = append(out, m.saved[i])
		}
	}
	return out, nil
}

type mockUnitOfWork struct {
	profiles    *mockProfileRepository
	predictions *mockPredictionRepository
	calls       int
}

func (m *mockUnitOfWork) Do(_ context.Context, fn func(port.ProfileRepository, port.PredictionRepository) error) error {
	m.calls++
	return fn(m.profiles, m.predictions)
}

type mockEventPublisher struct {
	mu        sync.Mutex
	published []events.DomainEvent
	publishFn func(ctx context.Context, evts ...events.DomainEvent) error
}

func (m *mockEventPublisher) Publish(ctx context.Context, evts ...events.DomainEvent) error {
	if m.publishFn != nil {
		return m.publishFn(ctx, evts...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, evts...)
	return nil
}

func (m *mockEventPublisher) Events() []events.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.DomainEvent(nil), m.published...)
}

type mockScorer struct {
	probability float64
	predictFn   func(ctx context.Context, row feature.Row) (valueobject.Score, error)
	rows        []feature.Row
}

func (m *mockScorer) Predict(ctx context.Context, row feature.Row) (valueobject.Score, error) {
	m.rows = append(m.rows, row)
	if m.predictFn != nil {
		return m.predictFn(ctx, row)
	}
	return valueobject.NewScore(m.probability, "v1")
}

type mockMetrics struct {
	mu          sync.Mutex
	predictions []string
	runs        []string
	accuracies  []float64
}

func (m *mockMetrics) RecordPrediction(_ context.Context, riskLabel string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions = append(m.predictions, riskLabel)
}

func (m *mockMetrics) RecordTrainingRun(_ context.Context, outcome string, _ time.Duration, accuracy float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, outcome)
	m.accuracies = append(m.accuracies, accuracy)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRow() feature.Row {
	return feature.Row{
		Age:                   29,
		Country:               "CL",
		City:                  "Santiago",
		AccountAgeDays:        950,
		PurchasesLast12Months: 8,
		TicketsPerOrderAvg:    1.4,
		DistanceToVenueKm:     12.5,
		PaymentFailuresRatio:  0.02,
		EventAffinityScore:    0.91,
		NightPurchaseRatio:    0.12,
		AttendanceRate:        0.88,
	}
}
