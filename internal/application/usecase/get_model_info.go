package usecase

import (
	"github.com/ticketguard/scoring/internal/application/dto"
	"github.com/ticketguard/scoring/internal/ml/artifact"
)

// LoadedModel exposes the artifact currently cached by the inference
// service without triggering a load.
type LoadedModel interface {
	Current() *artifact.Artifact
}

// RunStatus reports the last training run.
type RunStatus interface {
	Status() *dto.TrainingRunResponse
}

// GetModelInfo is the use case for describing the served model.
type GetModelInfo struct {
	model     LoadedModel
	runs      RunStatus
	modelPath string
}

// NewGetModelInfo creates a new GetModelInfo use case. runs may be nil when
// the process cannot train.
func NewGetModelInfo(model LoadedModel, runs RunStatus, modelPath string) *GetModelInfo {
	return &GetModelInfo{model: model, runs: runs, modelPath: modelPath}
}

// Execute describes the cached model, if any, and the last training run.
func (uc *GetModelInfo) Execute() dto.ModelInfoResponse {
	resp := dto.ModelInfoResponse{ModelPath: uc.modelPath}
	if a := uc.model.Current(); a != nil {
		trainedAt := a.TrainedAt
		resp.Loaded = true
		resp.Version = a.Version
		resp.Fingerprint = a.Fingerprint()
		resp.Records = a.Records
		resp.ValidationAccuracy = a.ValidationAccuracy
		resp.TrainedAt = &trainedAt
	}
	if uc.runs != nil {
		resp.LastRun = uc.runs.Status()
	}
	return resp
}
