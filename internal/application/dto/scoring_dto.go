package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ticketguard/scoring/internal/domain/model"
	"github.com/ticketguard/scoring/internal/domain/valueobject"
)

// ScoreUserRequest is the input DTO for the ScoreUser use case. Features
// holds the loosely typed feature values keyed by schema name.
type ScoreUserRequest struct {
	Features map[string]any `json:"features"`
	Email    string         `json:"email"`
}

// ScoreResponse is the output DTO returned after scoring a profile.
type ScoreResponse struct {
	RiskLabel             string  `json:"risk_label"`
	ModelVersion          string  `json:"model_version"`
	AttendanceProbability float64 `json:"attendance_probability"`
	ResellerProbability   float64 `json:"reseller_probability"`
}

// FromScore maps a score to the response DTO.
func FromScore(s valueobject.Score) ScoreResponse {
	return ScoreResponse{
		AttendanceProbability: s.AttendanceProbability(),
		ResellerProbability:   s.ResellerProbability(),
		RiskLabel:             s.RiskLabel().String(),
		ModelVersion:          s.ModelVersion(),
	}
}

// PredictionResponse is one entry of a prediction history.
type PredictionResponse struct {
	CreatedAt             time.Time `json:"created_at"`
	RiskLabel             string    `json:"risk_label"`
	ModelVersion          string    `json:"model_version"`
	AttendanceProbability float64   `json:"attendance_probability"`
	ResellerProbability   float64   `json:"reseller_probability"`
	ID                    uuid.UUID `json:"id"`
}

// PredictionHistoryResponse lists the predictions served for one email.
type PredictionHistoryResponse struct {
	Email       string               `json:"email"`
	Predictions []PredictionResponse `json:"predictions"`
	UserID      uuid.UUID            `json:"user_id"`
}

// FromPrediction maps a prediction to its response DTO.
func FromPrediction(p *model.Prediction) PredictionResponse {
	s := p.Score()
	return PredictionResponse{
		ID:                    p.ID(),
		AttendanceProbability: s.AttendanceProbability(),
		ResellerProbability:   s.ResellerProbability(),
		RiskLabel:             s.RiskLabel().String(),
		ModelVersion:          s.ModelVersion(),
		CreatedAt:             p.CreatedAt(),
	}
}
