// Package trainer turns a labelled dataset into a persisted model artifact.
package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ticketguard/scoring/internal/domain/feature"
	"github.com/ticketguard/scoring/internal/errs"
	"github.com/ticketguard/scoring/internal/ml/artifact"
	"github.com/ticketguard/scoring/internal/ml/forest"
	"github.com/ticketguard/scoring/internal/ml/preprocess"
	"github.com/ticketguard/scoring/internal/ml/synth"
)

// Result describes a finished training run.
type Result struct {
	Artifact           *artifact.Artifact
	ValidationAccuracy float64
	Records            int
	TrainRecords       int
	ValidationRecords  int
	Duration           time.Duration
}

// Trainer fits artifacts. The zero value is not usable; use New.
type Trainer struct {
	logger *slog.Logger
	now    func() time.Time
}

// New returns a Trainer that logs progress to logger.
func New(logger *slog.Logger) *Trainer {
	return &Trainer{logger: logger, now: time.Now}
}

// Run generates a dataset of cfg.Size rows from cfg.Seed and trains on it.
func (t *Trainer) Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Size < synth.MinSize {
		return nil, errs.Newf(errs.CodeInvalidArgument, "--size must be at least %d", synth.MinSize)
	}
	ds, err := synth.Generate(cfg.Size, cfg.Seed)
	if err != nil {
		return nil, err
	}
	t.logger.Info("generated training dataset",
		slog.Int("records", ds.Len()),
		slog.Int64("seed", cfg.Seed),
		slog.Float64("positive_rate", ds.PositiveRate()),
	)
	return t.Train(ctx, ds, cfg)
}

// Train splits ds, fits the transformer on the training rows only, fits the
// forest on their encoding and scores the held-out rows.
func (t *Trainer) Train(ctx context.Context, ds *synth.Dataset, cfg Config) (*Result, error) {
	if ds.Len() < synth.MinSize {
		return nil, errs.Newf(errs.CodeInvalidArgument, "--size must be at least %d", synth.MinSize)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrap(errs.CodeInvalidArgument, "invalid training config", err)
	}
	start := t.now()

	labels := ds.Labels()
	trainIdx, testIdx, err := StratifiedSplit(labels, cfg.ValidationFraction, cfg.SplitSeed)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalidArgument, "split dataset", err)
	}
	rows := ds.Features()
	trainRows, trainLabels := pick(rows, labels, trainIdx)
	testRows, testLabels := pick(rows, labels, testIdx)

	tr, err := preprocess.Fit(trainRows)
	if err != nil {
		return nil, fmt.Errorf("fit transformer: %w", err)
	}

	t.logger.Info("fitting forest",
		slog.Int("train_records", len(trainRows)),
		slog.Int("features", tr.Width()),
		slog.Int("trees", cfg.Forest.Trees),
	)
	f, err := forest.Fit(ctx, tr.Transform(trainRows), trainLabels, cfg.Forest)
	if err != nil {
		return nil, err
	}

	accuracy := f.Accuracy(tr.Transform(testRows), testLabels)
	a, err := artifact.New(cfg.Version, tr, f, ds.Len(), accuracy, t.now())
	if err != nil {
		return nil, fmt.Errorf("bundle artifact: %w", err)
	}

	res := &Result{
		Artifact:           a,
		ValidationAccuracy: accuracy,
		Records:            ds.Len(),
		TrainRecords:       len(trainRows),
		ValidationRecords:  len(testRows),
		Duration:           t.now().Sub(start),
	}
	t.logger.Info("training finished",
		slog.Float64("validation_accuracy", accuracy),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

func pick(rows []feature.Row, labels []int, idx []int) ([]feature.Row, []int) {
	r := make([]feature.Row, len(idx))
	l := make([]int, len(idx))
	for i, j := range idx {
		r[i] = rows[j]
		l[i] = labels[j]
	}
	return r, l
}
