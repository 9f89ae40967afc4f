// Package telemetry records scoring metrics through OpenTelemetry.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ticketguard/scoring/internal/errs"
)

const meterName = "github.com/ticketguard/scoring"

// Model load outcomes.
const (
	LoadSuccess  = "success"
	LoadNotFound = "not_found"
	LoadCorrupt  = "corrupt"
	LoadError    = "error"
)

// Metrics implements the prediction, model load and training recorders.
type Metrics struct {
	predictions      metric.Int64Counter
	predictDuration  metric.Float64Histogram
	modelLoads       metric.Int64Counter
	trainingRuns     metric.Int64Counter
	trainingDuration metric.Float64Histogram
	accuracy         metric.Float64Gauge
}

// NewMetrics creates the instruments on provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.predictions, err = meter.Int64Counter("scoring_predictions_total",
		metric.WithDescription("Predictions served, by risk label.")); err != nil {
		return nil, fmt.Errorf("create predictions counter: %w", err)
	}
	if m.predictDuration, err = meter.Float64Histogram("scoring_predict_duration_seconds",
		metric.WithDescription("End to end scoring latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5)); err != nil {
		return nil, fmt.Errorf("create predict duration histogram: %w", err)
	}
	if m.modelLoads, err = meter.Int64Counter("scoring_model_loads_total",
		metric.WithDescription("Model artifact loads, by outcome.")); err != nil {
		return nil, fmt.Errorf("create model loads counter: %w", err)
	}
	if m.trainingRuns, err = meter.Int64Counter("scoring_training_runs_total",
		metric.WithDescription("Finished training runs, by outcome.")); err != nil {
		return nil, fmt.Errorf("create training runs counter: %w", err)
	}
	if m.trainingDuration, err = meter.Float64Histogram("scoring_training_duration_seconds",
		metric.WithDescription("Training run duration."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 300, 600, 1800)); err != nil {
		return nil, fmt.Errorf("create training duration histogram: %w", err)
	}
	if m.accuracy, err = meter.Float64Gauge("scoring_validation_accuracy",
		metric.WithDescription("Validation accuracy of the last successful training run.")); err != nil {
		return nil, fmt.Errorf("create validation accuracy gauge: %w", err)
	}
	return m, nil
}

// RecordPrediction counts one served prediction.
func (m *Metrics) RecordPrediction(ctx context.Context, riskLabel string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("risk_label", riskLabel))
	m.predictions.Add(ctx, 1, attrs)
	m.predictDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordModelLoad counts one artifact load.
func (m *Metrics) RecordModelLoad(ctx context.Context, err error) {
	m.modelLoads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", LoadOutcome(err))))
}

// RecordTrainingRun records a finished run. accuracy is only reported for
// successful runs.
func (m *Metrics) RecordTrainingRun(ctx context.Context, outcome string, duration time.Duration, accuracy float64) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.trainingRuns.Add(ctx, 1, attrs)
	m.trainingDuration.Record(ctx, duration.Seconds(), attrs)
	if outcome == "trained" {
		m.accuracy.Record(ctx, accuracy)
	}
}

// LoadOutcome classifies a load error for the outcome label.
func LoadOutcome(err error) string {
	switch {
	case err == nil:
		return LoadSuccess
	case errors.Is(err, errs.ErrArtifactNotFound):
		return LoadNotFound
	case errors.Is(err, errs.ErrArtifactCorrupt):
		return LoadCorrupt
	default:
		return LoadError
	}
}
