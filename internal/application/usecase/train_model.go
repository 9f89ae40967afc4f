package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ticketguard/scoring/internal/application/dto"
	"github.com/ticketguard/scoring/internal/domain/event"
	"github.com/ticketguard/scoring/internal/domain/port"
	"github.com/ticketguard/scoring/internal/errs"
	"github.com/ticketguard/scoring/internal/ml/artifact"
	"github.com/ticketguard/scoring/internal/ml/synth"
	"github.com/ticketguard/scoring/internal/ml/trainer"
)

// Training run statuses.
const (
	RunStatusTraining  = "training"
	RunStatusSucceeded = "trained"
	RunStatusFailed    = "failed"
)

// ModelTrainer fits an artifact for a training config.
type ModelTrainer interface {
	Run(ctx context.Context, cfg trainer.Config) (*trainer.Result, error)
}

// ArtifactSaver persists artifacts at a fixed location.
type ArtifactSaver interface {
	Save(ctx context.Context, a *artifact.Artifact) error
	Path() string
}

// CacheInvalidator drops a cached model so the next use reloads it.
type CacheInvalidator interface {
	Invalidate()
}

// TrainingMetrics records finished training runs.
type TrainingMetrics interface {
	RecordTrainingRun(ctx context.Context, outcome string, duration time.Duration, accuracy float64)
}

// TrainModel coordinates training runs. At most one run is in flight at a
// time, because two runs would race to replace the same artifact file.
type TrainModel struct {
	trainer   ModelTrainer
	store     ArtifactSaver
	cache     CacheInvalidator
	publisher port.EventPublisher
	metrics   TrainingMetrics
	logger    *slog.Logger
	tracer    trace.Tracer
	base      trainer.Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	last    *dto.TrainingRunResponse
}

// NewTrainModel creates the training coordinator. base supplies the
// hyperparameters and the default size and seed. metrics may be nil.
func NewTrainModel(
	t ModelTrainer,
	store ArtifactSaver,
	cache CacheInvalidator,
	publisher port.EventPublisher,
	metrics TrainingMetrics,
	logger *slog.Logger,
	base trainer.Config,
) *TrainModel {
	ctx, cancel := context.WithCancel(context.Background())
	return &TrainModel{
		trainer:   t,
		store:     store,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		base:      base,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start validates the request, claims the training slot and runs training
// in the background. It returns ErrTrainingInProgress when a run is already
// in flight.
func (uc *TrainModel) Start(req dto.TrainModelRequest) (dto.TrainingRunResponse, error) {
	cfg, err := uc.config(req)
	if err != nil {
		return dto.TrainingRunResponse{}, err
	}
	run, err := uc.begin(cfg)
	if err != nil {
		return dto.TrainingRunResponse{}, err
	}

	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		_, _ = uc.execute(uc.ctx, run, cfg)
	}()
	return run, nil
}

// Run trains synchronously and returns the finished run.
func (uc *TrainModel) Run(ctx context.Context, req dto.TrainModelRequest) (dto.TrainingRunResponse, error) {
	cfg, err := uc.config(req)
	if err != nil {
		return dto.TrainingRunResponse{}, err
	}
	run, err := uc.begin(cfg)
	if err != nil {
		return dto.TrainingRunResponse{}, err
	}
	return uc.execute(ctx, run, cfg)
}

// Status returns the most recent run, or nil when none has started.
func (uc *TrainModel) Status() *dto.TrainingRunResponse {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.last == nil {
		return nil
	}
	cp := *uc.last
	return &cp
}

// Close cancels a background run between trees and waits for it to stop.
func (uc *TrainModel) Close() {
	uc.cancel()
	uc.wg.Wait()
}

// Wait blocks until background runs have finished.
func (uc *TrainModel) Wait() {
	uc.wg.Wait()
}

func (uc *TrainModel) config(req dto.TrainModelRequest) (trainer.Config, error) {
	cfg := uc.base
	if req.Size != nil {
		cfg.Size = *req.Size
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if cfg.Size < synth.MinSize {
		return trainer.Config{}, errs.Invalid(
			fmt.Sprintf("--size must be at least %d", synth.MinSize),
			map[string][]string{"size": {fmt.Sprintf("Ensure this value is greater than or equal to %d.", synth.MinSize)}},
		)
	}
	return cfg, nil
}

func (uc *TrainModel) begin(cfg trainer.Config) (dto.TrainingRunResponse, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.running {
		return dto.TrainingRunResponse{}, errs.New(errs.CodeTrainingInProgress, "a training run is already in progress")
	}
	uc.running = true
	run := dto.TrainingRunResponse{
		RunID:     uuid.New(),
		Status:    RunStatusTraining,
		ModelPath: uc.store.Path(),
		Size:      cfg.Size,
		Seed:      cfg.Seed,
		StartedAt: time.Now().UTC(),
	}
	uc.last = &run
	return run, nil
}

func (uc *TrainModel) finish(run dto.TrainingRunResponse) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.running = false
	uc.last = &run
}

func (uc *TrainModel) execute(ctx context.Context, run dto.TrainingRunResponse, cfg trainer.Config) (dto.TrainingRunResponse, error) {
	ctx, span := uc.tracer.Start(ctx, "TrainModel.execute", trace.WithAttributes(
		attribute.String("scoring.run_id", run.RunID.String()),
		attribute.Int("scoring.size", cfg.Size),
		attribute.Int64("scoring.seed", cfg.Seed),
	))
	defer span.End()

	logger := uc.logger.With(slog.String("run_id", run.RunID.String()))
	logger.Info("training run started", slog.Int("size", cfg.Size), slog.Int64("seed", cfg.Seed))

	res, err := uc.train(ctx, cfg)
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	duration := finished.Sub(run.StartedAt)

	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err.Error()
		uc.finish(run)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if uc.metrics != nil {
			uc.metrics.RecordTrainingRun(ctx, RunStatusFailed, duration, 0)
		}
		if errors.Is(err, context.Canceled) {
			logger.Warn("training run cancelled")
		} else {
			logger.Error("training run failed", slog.String("error", err.Error()))
		}
		return run, err
	}

	acc := res.ValidationAccuracy
	run.Status = RunStatusSucceeded
	run.ValidationAccuracy = &acc
	run.Records = res.Records
	run.Fingerprint = res.Artifact.Fingerprint()
	uc.finish(run)

	// Pick the new artifact up in this process before telling the others.
	uc.cache.Invalidate()

	evt := event.NewModelTrained(event.ModelTrained{
		RunID:              run.RunID,
		Version:            res.Artifact.Version,
		Fingerprint:        run.Fingerprint,
		ModelPath:          run.ModelPath,
		Records:            res.Records,
		ValidationAccuracy: acc,
		TrainedAt:          res.Artifact.TrainedAt,
	})
	if err := uc.publisher.Publish(ctx, evt); err != nil {
		logger.Warn("failed to publish model trained event", slog.String("error", err.Error()))
	}

	if uc.metrics != nil {
		uc.metrics.RecordTrainingRun(ctx, RunStatusSucceeded, duration, acc)
	}
	logger.Info("training run finished",
		slog.Float64("validation_accuracy", acc),
		slog.String("model_path", run.ModelPath),
		slog.Duration("duration", duration),
	)
	return run, nil
}

func (uc *TrainModel) train(ctx context.Context, cfg trainer.Config) (*trainer.Result, error) {
	res, err := uc.trainer.Run(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to train model: %w", err)
	}
	if err := uc.store.Save(ctx, res.Artifact); err != nil {
		return nil, fmt.Errorf("failed to save model artifact: %w", err)
	}
	return res, nil
}
