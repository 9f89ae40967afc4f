// Package artifact bundles a fitted transformer with the forest trained on
// its output and persists the pair as one unit.
package artifact

import (
	"fmt"
	"time"

	"github.com/ticketguard/scoring/internal/domain/feature"
	"github.com/ticketguard/scoring/internal/ml/forest"
	"github.com/ticketguard/scoring/internal/ml/preprocess"
)

// Artifact is immutable once built or loaded and safe for concurrent use.
type Artifact struct {
	Version            string                  `json:"version"`
	TrainedAt          time.Time               `json:"trained_at"`
	Records            int                     `json:"records"`
	ValidationAccuracy float64                 `json:"validation_accuracy"`
	Transformer        *preprocess.Transformer `json:"transformer"`
	Forest             *forest.Forest          `json:"forest"`

	fingerprint string
}

// New bundles a transformer and the forest fitted on its output.
func New(version string, t *preprocess.Transformer, f *forest.Forest, records int, accuracy float64, trainedAt time.Time) (*Artifact, error) {
	a := &Artifact{
		Version:            version,
		TrainedAt:          trainedAt.UTC(),
		Records:            records,
		ValidationAccuracy: accuracy,
		Transformer:        t,
		Forest:             f,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks that both halves are present, well formed and agree on
// the width of the encoded feature vector.
func (a *Artifact) Validate() error {
	if a.Transformer == nil {
		return fmt.Errorf("artifact has no transformer")
	}
	if a.Forest == nil {
		return fmt.Errorf("artifact has no forest")
	}
	if err := a.Transformer.Validate(); err != nil {
		return fmt.Errorf("transformer: %w", err)
	}
	if err := a.Forest.Validate(); err != nil {
		return fmt.Errorf("forest: %w", err)
	}
	if w := a.Transformer.Width(); w != a.Forest.FeatureSize {
		return fmt.Errorf("transformer produces %d columns, forest expects %d", w, a.Forest.FeatureSize)
	}
	if a.ValidationAccuracy < 0 || a.ValidationAccuracy > 1 {
		return fmt.Errorf("validation accuracy %v outside [0,1]", a.ValidationAccuracy)
	}
	return nil
}

// PredictProba returns the class-1 probability for a raw feature row.
func (a *Artifact) PredictProba(row feature.Row) float64 {
	return a.Forest.PredictProba(a.Transformer.TransformRow(row))
}

// Fingerprint identifies the exact model content. It is set when the
// artifact is encoded or decoded.
func (a *Artifact) Fingerprint() string {
	return a.fingerprint
}
