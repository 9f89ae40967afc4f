// Package forest fits and evaluates random-forest binary classifiers.
//
// Trees are CART trees grown on bootstrap samples with Gini impurity and a
// random subset of features per split. Candidate thresholds come from a
// per-feature histogram of at most MaxBins bins computed once per fit.
package forest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config holds the ensemble hyperparameters.
type Config struct {
	Trees          int `json:"trees" yaml:"trees"`
	MaxDepth       int `json:"max_depth" yaml:"max_depth"`
	MinSamplesLeaf int `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	// MaxFeatures is the number of features tried per split. Zero means
	// the square root of the feature count.
	MaxFeatures int   `json:"max_features" yaml:"max_features"`
	Seed        int64 `json:"seed" yaml:"seed"`
	// Workers bounds the number of trees grown in parallel. Zero means
	// GOMAXPROCS.
	Workers int `json:"-" yaml:"workers"`
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Trees:          300,
		MaxDepth:       16,
		MinSamplesLeaf: 3,
		Seed:           42,
	}
}

// Validate reports the first invalid hyperparameter.
func (c Config) Validate() error {
	switch {
	case c.Trees < 1:
		return fmt.Errorf("trees must be positive, got %d", c.Trees)
	case c.MaxDepth < 1:
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	case c.MinSamplesLeaf < 1:
		return fmt.Errorf("min_samples_leaf must be positive, got %d", c.MinSamplesLeaf)
	case c.MaxFeatures < 0:
		return fmt.Errorf("max_features must not be negative, got %d", c.MaxFeatures)
	case c.Workers < 0:
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// Forest is an immutable fitted ensemble. Its probability is the mean of the
// tree outputs.
type Forest struct {
	Trees       []Tree `json:"trees"`
	FeatureSize int    `json:"feature_size"`
	Config      Config `json:"config"`
}

// PredictProba returns the class-1 probability of x.
func (f *Forest) PredictProba(x []float64) float64 {
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Evaluate(x)
	}
	p := sum / float64(len(f.Trees))
	// Guard against rounding just past the unit interval.
	return math.Min(1, math.Max(0, p))
}

// Predict returns the most probable class; ties go to class 0.
func (f *Forest) Predict(x []float64) int {
	if f.PredictProba(x) > 0.5 {
		return 1
	}
	return 0
}

// Accuracy returns the fraction of rows whose predicted class matches y.
func (f *Forest) Accuracy(x [][]float64, y []int) float64 {
	if len(x) == 0 {
		return 0
	}
	var correct int
	for i, row := range x {
		if f.Predict(row) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(x))
}

// Validate checks that every tree is well formed and sized for FeatureSize.
func (f *Forest) Validate() error {
	if len(f.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	for i := range f.Trees {
		t := &f.Trees[i]
		if t.FeatureSize != f.FeatureSize {
			return fmt.Errorf("tree %d expects %d features, forest has %d", i, t.FeatureSize, f.FeatureSize)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// Fit grows a forest on the row-major matrix x with binary labels y. Trees
// are grown concurrently; each draws from its own generator derived from
// cfg.Seed and the tree index, so the result does not depend on scheduling.
// Cancelling ctx stops the fit between trees.
func Fit(ctx context.Context, x [][]float64, y []int, cfg Config) (*Forest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(x) == 0 {
		return nil, errors.New("cannot fit forest on zero rows")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("got %d rows and %d labels", len(x), len(y))
	}
	featureSize := len(x[0])
	for i, row := range x {
		if len(row) != featureSize {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), featureSize)
		}
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return nil, fmt.Errorf("label %d is %d, want 0 or 1", i, label)
		}
	}

	bins := newBinner(x, featureSize)
	data := &binnedData{
		binner: bins,
		cols:   bins.transform(x),
		y:      y,
	}

	mtry := cfg.MaxFeatures
	if mtry == 0 {
		mtry = int(math.Sqrt(float64(featureSize)))
	}
	mtry = max(1, min(mtry, featureSize))

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]Tree, cfg.Trees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(i)))
			gr := &grower{
				data:     data,
				rng:      rng,
				mtry:     mtry,
				maxDepth: cfg.MaxDepth,
				minLeaf:  cfg.MinSamplesLeaf,
				features: make([]int, featureSize),
			}
			trees[i] = gr.grow(bootstrap(rng, len(y)), featureSize)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	return &Forest{Trees: trees, FeatureSize: featureSize, Config: cfg}, nil
}

func bootstrap(rng *rand.Rand, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.IntN(n)
	}
	return idx
}
