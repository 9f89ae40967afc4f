// Package inference serves predictions from a lazily loaded model artifact.
package inference

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ticketguard/scoring/internal/domain/feature"
	"github.com/ticketguard/scoring/internal/domain/valueobject"
	"github.com/ticketguard/scoring/internal/errs"
	"github.com/ticketguard/scoring/internal/ml/artifact"
)

// Loader reads the current artifact from wherever it is persisted.
type Loader interface {
	Load(ctx context.Context) (*artifact.Artifact, error)
}

// LoadRecorder observes every underlying artifact load.
type LoadRecorder interface {
	RecordModelLoad(ctx context.Context, err error)
}

// Service caches one artifact per generation. The first caller of a
// generation loads it and concurrent callers share that load. Invalidate
// starts a new generation; a load still in flight for the old generation
// is returned to its own callers but never cached.
type Service struct {
	loader   Loader
	logger   *slog.Logger
	recorder LoadRecorder

	group singleflight.Group

	mu         sync.RWMutex
	current    *artifact.Artifact
	generation uint64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithLoadRecorder reports each artifact load to r.
func WithLoadRecorder(r LoadRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// NewService returns a Service reading artifacts from loader. Nothing is
// loaded until the first prediction.
func NewService(loader Loader, opts ...Option) *Service {
	s := &Service{loader: loader, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Predict scores one feature row.
func (s *Service) Predict(ctx context.Context, row feature.Row) (valueobject.Score, error) {
	a, err := s.Artifact(ctx)
	if err != nil {
		return valueobject.Score{}, err
	}
	score, err := valueobject.NewScore(a.PredictProba(row), a.Version)
	if err != nil {
		return valueobject.Score{}, fmt.Errorf("score row: %w", err)
	}
	return score, nil
}

// PredictMap scores features keyed by name. The keys must match the feature
// schema exactly, otherwise an InvalidFeatureSchema error is returned.
func (s *Service) PredictMap(ctx context.Context, features map[string]any) (valueobject.Score, error) {
	row, err := feature.FromMap(features)
	if err != nil {
		return valueobject.Score{}, err
	}
	return s.Predict(ctx, row)
}

// Artifact returns the cached artifact, loading it if needed. Load failures
// are ModelUnavailable errors wrapping the store error and are not cached.
func (s *Service) Artifact(ctx context.Context) (*artifact.Artifact, error) {
	s.mu.RLock()
	a, gen := s.current, s.generation
	s.mu.RUnlock()
	if a != nil {
		return a, nil
	}

	v, err, _ := s.group.Do(fmt.Sprintf("artifact-%d", gen), func() (any, error) {
		s.mu.RLock()
		if s.generation == gen && s.current != nil {
			cached := s.current
			s.mu.RUnlock()
			return cached, nil
		}
		s.mu.RUnlock()

		// Waiters share this load, so one caller's cancellation must not
		// fail it for the others.
		loaded, err := s.loader.Load(context.WithoutCancel(ctx))
		if s.recorder != nil {
			s.recorder.RecordModelLoad(ctx, err)
		}
		if err != nil {
			s.logger.Error("failed to load model artifact", slog.String("error", err.Error()))
			return nil, err
		}

		s.mu.Lock()
		if s.generation == gen {
			s.current = loaded
		}
		s.mu.Unlock()
		s.logger.Info("model artifact loaded",
			slog.String("version", loaded.Version),
			slog.String("fingerprint", loaded.Fingerprint()),
		)
		return loaded, nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.CodeModelUnavailable, "model artifact is unavailable", err)
	}
	return v.(*artifact.Artifact), nil
}

// Current returns the cached artifact without loading, or nil.
func (s *Service) Current() *artifact.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Invalidate drops the cached artifact so the next prediction reloads it.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.current = nil
	s.generation++
	s.mu.Unlock()
	s.logger.Info("model artifact cache invalidated")
}
