package valueobject

import (
	"fmt"
	"math"
)

// Score is the outcome of running one profile through the model.
type Score struct {
	attendance   float64
	reseller     float64
	label        RiskLabel
	modelVersion string
}

// NewScore builds a Score from the class-1 probability of the model.
// The reseller probability is its exact complement.
func NewScore(attendance float64, modelVersion string) (Score, error) {
	if math.IsNaN(attendance) || attendance < 0 || attendance > 1 {
		return Score{}, fmt.Errorf("attendance probability must be within [0,1], got %v", attendance)
	}
	return Score{
		attendance:   attendance,
		reseller:     1.0 - attendance,
		label:        RiskLabelFromProbability(attendance),
		modelVersion: modelVersion,
	}, nil
}

// ReconstructScore rebuilds a persisted score as it was served, without
// re-deriving the label.
func ReconstructScore(attendance, reseller float64, label RiskLabel, modelVersion string) Score {
	return Score{
		attendance:   attendance,
		reseller:     reseller,
		label:        label,
		modelVersion: modelVersion,
	}
}

// AttendanceProbability returns the probability that the buyer attends.
func (s Score) AttendanceProbability() float64 { return s.attendance }

// ResellerProbability returns 1 - AttendanceProbability.
func (s Score) ResellerProbability() float64 { return s.reseller }

// RiskLabel returns the thresholded label.
func (s Score) RiskLabel() RiskLabel { return s.label }

// ModelVersion returns the version tag of the model that produced the score.
func (s Score) ModelVersion() string { return s.modelVersion }
