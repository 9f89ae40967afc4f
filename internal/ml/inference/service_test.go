package inference

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketguard/scoring/internal/domain/feature"
	"github.com/ticketguard/scoring/internal/domain/valueobject"
	"github.com/ticketguard/scoring/internal/errs"
	"github.com/ticketguard/scoring/internal/ml/artifact"
	"github.com/ticketguard/scoring/internal/ml/forest"
	"github.com/ticketguard/scoring/internal/ml/trainer"
)

var (
	fixtureOnce sync.Once
	fixtureA    *artifact.Artifact
	fixtureB    *artifact.Artifact
	fixtureErr  error
)

// fixtures trains two small artifacts once per test binary.
func fixtures(t *testing.T) (*artifact.Artifact, *artifact.Artifact) {
	t.Helper()
	fixtureOnce.Do(func() {
		tr := trainer.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
		cfg := trainer.DefaultConfig()
		cfg.Size = 1000
		cfg.Forest = forest.Config{Trees: 10, MaxDepth: 6, MinSamplesLeaf: 3, Seed: 42}
		res, err := tr.Run(context.Background(), cfg)
		if err != nil {
			fixtureErr = err
			return
		}
		fixtureA = res.Artifact

		cfg.Seed = 7
		cfg.Version = "v2"
		res, err = tr.Run(context.Background(), cfg)
		if err != nil {
			fixtureErr = err
			return
		}
		fixtureB = res.Artifact
	})
	require.NoError(t, fixtureErr)
	return fixtureA, fixtureB
}

// countingLoader wraps a loader, counts calls and can hold every load until
// release is closed.
type countingLoader struct {
	inner   Loader
	calls   atomic.Int32
	release chan struct{}
}

func (l *countingLoader) Load(ctx context.Context) (*artifact.Artifact, error) {
	l.calls.Add(1)
	if l.release != nil {
		<-l.release
	}
	return l.inner.Load(ctx)
}

type loaderFunc func(ctx context.Context) (*artifact.Artifact, error)

func (f loaderFunc) Load(ctx context.Context) (*artifact.Artifact, error) { return f(ctx) }

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

func newService(loader Loader) *Service {
	return NewService(loader, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestPredict_ConcurrentFirstCallsLoadOnce(t *testing.T) {
	a, _ := fixtures(t)
	path := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, artifact.Save(path, a))

	loader := &countingLoader{inner: artifact.NewStore(path), release: make(chan struct{})}
	svc := newService(loader)

	const callers = 32
	var wg sync.WaitGroup
	scores := make([]valueobject.Score, callers)
	errCh := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := svc.Predict(context.Background(), sampleRow())
			if err != nil {
				errCh <- err
				return
			}
			scores[i] = s
		}()
	}

	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(loader.release)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), loader.calls.Load())
	for _, s := range scores[1:] {
		assert.Equal(t, scores[0], s)
	}

	_, err := svc.Predict(context.Background(), sampleRow())
	require.NoError(t, err)
	assert.Equal(t, int32(1), loader.calls.Load(), "cached artifact is reused")
}

func TestPredict_InvalidateReloadsFromPath(t *testing.T) {
	a, b := fixtures(t)
	path := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, artifact.Save(path, a))

	loader := &countingLoader{inner: artifact.NewStore(path)}
	svc := newService(loader)

	first, err := svc.Predict(context.Background(), sampleRow())
	require.NoError(t, err)
	assert.Equal(t, "v1", first.ModelVersion())

	require.NoError(t, artifact.Save(path, b))
	stale, err := svc.Predict(context.Background(), sampleRow())
	require.NoError(t, err)
	assert.Equal(t, "v1", stale.ModelVersion(), "no reload without invalidate")
	assert.Equal(t, int32(1), loader.calls.Load())

	svc.Invalidate()
	assert.Nil(t, svc.Current())

	second, err := svc.Predict(context.Background(), sampleRow())
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load())
	assert.Equal(t, "v2", second.ModelVersion())
	assert.Equal(t, b.Fingerprint(), svc.Current().Fingerprint())
}

func TestPredict_InvalidateDuringLoadDiscardsStaleResult(t *testing.T) {
	a, _ := fixtures(t)
	loader := &countingLoader{
		inner:   loaderFunc(func(context.Context) (*artifact.Artifact, error) { return a, nil }),
		release: make(chan struct{}),
	}
	svc := newService(loader)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Artifact(context.Background())
	}()
	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, time.Millisecond)

	svc.Invalidate()
	close(loader.release)
	<-done

	assert.Nil(t, svc.Current(), "load from the old generation is not cached")
	_, err := svc.Artifact(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestPredict_ModelUnavailable(t *testing.T) {
	svc := newService(artifact.NewStore(filepath.Join(t.TempDir(), "missing.bin")))

	_, err := svc.Predict(context.Background(), sampleRow())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrModelUnavailable)
	assert.ErrorIs(t, err, errs.ErrArtifactNotFound)
	assert.Equal(t, errs.CodeModelUnavailable, errs.CodeOf(err))
}

func TestPredict_FailedLoadIsRetried(t *testing.T) {
	a, _ := fixtures(t)
	var calls atomic.Int32
	svc := newService(loaderFunc(func(context.Context) (*artifact.Artifact, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("disk on fire")
		}
		return a, nil
	}))

	_, err := svc.Predict(context.Background(), sampleRow())
	assert.ErrorIs(t, err, errs.ErrModelUnavailable)

	_, err = svc.Predict(context.Background(), sampleRow())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPredictMap_SchemaErrors(t *testing.T) {
	a, _ := fixtures(t)
	svc := newService(loaderFunc(func(context.Context) (*artifact.Artifact, error) { return a, nil }))

	good := sampleRow().Map()
	s, err := svc.PredictMap(context.Background(), good)
	require.NoError(t, err)
	direct, err := svc.Predict(context.Background(), sampleRow())
	require.NoError(t, err)
	assert.Equal(t, direct, s)

	missing := sampleRow().Map()
	delete(missing, feature.City)
	_, err = svc.PredictMap(context.Background(), missing)
	assert.ErrorIs(t, err, errs.ErrInvalidFeatureSchema)

	extra := sampleRow().Map()
	extra["favourite_band"] = "Los Prisioneros"
	_, err = svc.PredictMap(context.Background(), extra)
	assert.ErrorIs(t, err, errs.ErrInvalidFeatureSchema)

	mistyped := sampleRow().Map()
	mistyped[feature.Age] = "twenty-nine"
	_, err = svc.PredictMap(context.Background(), mistyped)
	assert.ErrorIs(t, err, errs.ErrInvalidFeatureSchema)
}

func TestPredict_OutputInvariants(t *testing.T) {
	a, _ := fixtures(t)
	svc := newService(loaderFunc(func(context.Context) (*artifact.Artifact, error) { return a, nil }))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("probabilities are complementary and the label follows the threshold", prop.ForAll(
		func(age, accountAge, resale int, tickets, failures, affinity, night, attendance float64, country string) bool {
			row := sampleRow()
			row.Age = age
			row.AccountAgeDays = accountAge
			row.ResaleReportsCount = resale
			row.TicketsPerOrderAvg = tickets
			row.PaymentFailuresRatio = failures
			row.EventAffinityScore = affinity
			row.NightPurchaseRatio = night
			row.AttendanceRate = attendance
			row.Country = country

			s, err := svc.Predict(context.Background(), row)
			if err != nil {
				return false
			}
			p := s.AttendanceProbability()
			if p < 0 || p > 1 {
				return false
			}
			if s.ResellerProbability() != 1-p {
				return false
			}
			return (s.RiskLabel() == valueobject.RiskLabelAttendee) == (p >= valueobject.AttendeeThreshold)
		},
		gen.IntRange(13, 100),
		gen.IntRange(0, 5000),
		gen.IntRange(0, 12),
		gen.Float64Range(0, 10),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.OneConstOf("CL", "AR", "US", "ZZ"),
	))

	properties.TestingRun(t)
}

type recorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *recorder) RecordModelLoad(_ context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func TestService_RecordsLoads(t *testing.T) {
	rec := &recorder{}
	svc := NewService(
		artifact.NewStore(filepath.Join(t.TempDir(), "missing.bin")),
		WithLoadRecorder(rec),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	_, _ = svc.Artifact(context.Background())
	require.Len(t, rec.errs, 1)
	assert.Error(t, rec.errs[0])
}
