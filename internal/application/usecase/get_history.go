package usecase

import (
	"context"
	"fmt"

	"github.com/ticketguard/scoring/internal/application/dto"
	"github.com/ticketguard/scoring/internal/domain/model"
	"github.com/ticketguard/scoring/internal/domain/port"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// GetPredictionHistory is the use case for listing the predictions served
// for one email.
type GetPredictionHistory struct {
	profiles    port.ProfileRepository
	predictions port.PredictionRepository
}

// NewGetPredictionHistory creates a new GetPredictionHistory use case.
func NewGetPredictionHistory(profiles port.ProfileRepository, predictions port.PredictionRepository) *GetPredictionHistory {
	return &GetPredictionHistory{profiles: profiles, predictions: predictions}
}

// Execute returns up to limit predictions, newest first. A non-positive
// limit means DefaultHistoryLimit and larger values are capped at
// MaxHistoryLimit. An unknown email yields errs.ErrNotFound.
func (uc *GetPredictionHistory) Execute(ctx context.Context, email string, limit int) (dto.PredictionHistoryResponse, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)

	profile, err := uc.profiles.FindByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return dto.PredictionHistoryResponse{}, fmt.Errorf("failed to find profile: %w", err)
	}

	preds, err := uc.predictions.ListByUser(ctx, profile.ID(), limit)
	if err != nil {
		return dto.PredictionHistoryResponse{}, fmt.Errorf("failed to list predictions: %w", err)
	}

	resp := dto.PredictionHistoryResponse{
		UserID:      profile.ID(),
		Email:       profile.Email(),
		Predictions: make([]dto.PredictionResponse, 0, len(preds)),
	}
	for _, p := range preds {
		resp.Predictions = append(resp.Predictions, dto.FromPrediction(p))
	}
	return resp, nil
}
