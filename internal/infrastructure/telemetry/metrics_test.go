package telemetry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ticketguard/scoring/internal/errs"
	"github.com/ticketguard/scoring/internal/ml/artifact"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return 0
}

func newMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	m, err := NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)
	return m, reader
}

func TestMetrics_Predictions(t *testing.T) {
	m, reader := newMetrics(t)
	ctx := context.Background()

	m.RecordPrediction(ctx, "attendee", 3*time.Millisecond)
	m.RecordPrediction(ctx, "attendee", 5*time.Millisecond)
	m.RecordPrediction(ctx, "reseller_risk", time.Millisecond)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumFor(t, got["scoring_predictions_total"], "risk_label", "attendee"))
	assert.Equal(t, int64(1), sumFor(t, got["scoring_predictions_total"], "risk_label", "reseller_risk"))

	hist, ok := got["scoring_predict_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestMetrics_ModelLoads(t *testing.T) {
	m, reader := newMetrics(t)
	ctx := context.Background()

	m.RecordModelLoad(ctx, nil)
	m.RecordModelLoad(ctx, errs.New(errs.CodeArtifactNotFound, "missing"))
	m.RecordModelLoad(ctx, errs.New(errs.CodeArtifactCorrupt, "bad magic"))
	m.RecordModelLoad(ctx, errors.New("permission denied"))

	loads := collect(t, reader)["scoring_model_loads_total"]
	for _, outcome := range []string{LoadSuccess, LoadNotFound, LoadCorrupt, LoadError} {
		assert.Equal(t, int64(1), sumFor(t, loads, "outcome", outcome), outcome)
	}
}

func TestLoadOutcome_ArtifactErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := artifact.Load(filepath.Join(dir, "missing.bin"))
	assert.Equal(t, LoadNotFound, LoadOutcome(err))

	_, err = artifact.Load(dir)
	assert.Equal(t, LoadCorrupt, LoadOutcome(err), "read failures are typed")
}

func TestMetrics_TrainingRuns(t *testing.T) {
	m, reader := newMetrics(t)
	ctx := context.Background()

	m.RecordTrainingRun(ctx, "trained", time.Minute, 0.87)
	m.RecordTrainingRun(ctx, "failed", time.Second, 0)

	got := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, got["scoring_training_runs_total"], "outcome", "trained"))
	assert.Equal(t, int64(1), sumFor(t, got["scoring_training_runs_total"], "outcome", "failed"))

	gauge, ok := got["scoring_validation_accuracy"].Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, 0.87, gauge.DataPoints[0].Value, "failed runs do not reset accuracy")
}
