package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ticketguard/scoring/pkg/events"
)

const (
	// EventTypePredictionRecorded is emitted when a scored profile is stored.
	EventTypePredictionRecorded = "scoring.prediction.recorded"

	// EventTypeModelTrained is emitted when a new artifact has been saved.
	EventTypeModelTrained = "scoring.model.trained"

	AggregateTypePrediction  = "Prediction"
	AggregateTypeTrainingRun = "TrainingRun"
)

// PredictionRecorded is published after a prediction has been persisted.
type PredictionRecorded struct {
	PredictionID          uuid.UUID `json:"prediction_id"`
	UserID                uuid.UUID `json:"user_id"`
	Email                 string    `json:"email"`
	AttendanceProbability float64   `json:"attendance_probability"`
	ResellerProbability   float64   `json:"reseller_probability"`
	RiskLabel             string    `json:"risk_label"`
	ModelVersion          string    `json:"model_version"`
	RecordedAt            time.Time `json:"recorded_at"`
}

// NewPredictionRecorded wraps p as a domain event.
func NewPredictionRecorded(p PredictionRecorded) events.DomainEvent {
	return events.NewBaseEvent(EventTypePredictionRecorded, p.PredictionID, AggregateTypePrediction, mustJSON(p))
}

// ModelTrained is published when a training run has saved a new artifact.
// Other replicas invalidate their cached model on receipt.
type ModelTrained struct {
	RunID              uuid.UUID `json:"run_id"`
	Version            string    `json:"version"`
	Fingerprint        string    `json:"fingerprint"`
	ModelPath          string    `json:"model_path"`
	Records            int       `json:"records"`
	ValidationAccuracy float64   `json:"validation_accuracy"`
	TrainedAt          time.Time `json:"trained_at"`
}

// NewModelTrained wraps m as a domain event.
func NewModelTrained(m ModelTrained) events.DomainEvent {
	return events.NewBaseEvent(EventTypeModelTrained, m.RunID, AggregateTypeTrainingRun, mustJSON(m))
}

// The payload types hold only strings, numbers, UUIDs and times, which
// always marshal.
func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
