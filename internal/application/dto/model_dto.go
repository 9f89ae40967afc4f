package dto

import (
	"time"

	"github.com/google/uuid"
)

// TrainModelRequest is the optional body of a retraining request. Nil
// fields fall back to the configured defaults.
type TrainModelRequest struct {
	Size *int   `json:"size,omitempty"`
	Seed *int64 `json:"seed,omitempty"`
}

// TrainingRunResponse describes a training run.
type TrainingRunResponse struct {
	StartedAt          time.Time  `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
	Status             string     `json:"status"`
	ModelPath          string     `json:"model_path"`
	Error              string     `json:"error,omitempty"`
	Fingerprint        string     `json:"fingerprint,omitempty"`
	ValidationAccuracy *float64   `json:"validation_accuracy,omitempty"`
	Size               int        `json:"size"`
	Seed               int64      `json:"seed"`
	Records            int        `json:"records,omitempty"`
	RunID              uuid.UUID  `json:"run_id"`
}

// ModelInfoResponse describes the served model and the last training run.
type ModelInfoResponse struct {
	TrainedAt          *time.Time           `json:"trained_at,omitempty"`
	LastRun            *TrainingRunResponse `json:"last_run,omitempty"`
	ModelPath          string               `json:"model_path"`
	Version            string               `json:"version,omitempty"`
	Fingerprint        string               `json:"fingerprint,omitempty"`
	Records            int                  `json:"records,omitempty"`
	ValidationAccuracy float64              `json:"validation_accuracy,omitempty"`
	Loaded             bool                 `json:"loaded"`
}
