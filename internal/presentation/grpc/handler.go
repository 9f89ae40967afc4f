package grpc

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ticketguard/scoring/internal/application/dto"
	"github.com/ticketguard/scoring/internal/errs"
)

// ScoreExecutor scores one buyer.
type ScoreExecutor interface {
	Execute(ctx context.Context, req dto.ScoreUserRequest) (dto.ScoreResponse, error)
}

// ModelDescriber describes the served model.
type ModelDescriber interface {
	Execute() dto.ModelInfoResponse
}

// Compile-time assertion that ScoringServiceHandler implements ScoringServiceServer.
var _ ScoringServiceServer = (*ScoringServiceHandler)(nil)

// ScoringServiceHandler implements the gRPC ScoringServiceServer interface.
type ScoringServiceHandler struct {
	UnimplementedScoringServiceServer
	score     ScoreExecutor
	modelInfo ModelDescriber
	logger    *slog.Logger
}

// NewScoringServiceHandler creates a new gRPC handler.
func NewScoringServiceHandler(score ScoreExecutor, modelInfo ModelDescriber, logger *slog.Logger) *ScoringServiceHandler {
	return &ScoringServiceHandler{score: score, modelInfo: modelInfo, logger: logger}
}

// Proto-aligned request/response message types.

// ScoreRequest represents the proto ScoreRequest message.
type ScoreRequest struct {
	Features map[string]any `json:"features"`
	Email    string         `json:"email"`
}

// ScoreResponse represents the proto ScoreResponse message.
type ScoreResponse struct {
	RiskLabel             string  `json:"risk_label"`
	ModelVersion          string  `json:"model_version"`
	AttendanceProbability float64 `json:"attendance_probability"`
	ResellerProbability   float64 `json:"reseller_probability"`
}

// GetModelInfoRequest represents the proto GetModelInfoRequest message.
type GetModelInfoRequest struct{}

// GetModelInfoResponse represents the proto GetModelInfoResponse message.
type GetModelInfoResponse struct {
	TrainedAt          string  `json:"trained_at,omitempty"`
	ModelPath          string  `json:"model_path"`
	Version            string  `json:"version,omitempty"`
	Fingerprint        string  `json:"fingerprint,omitempty"`
	LastRunStatus      string  `json:"last_run_status,omitempty"`
	Records            int64   `json:"records,omitempty"`
	ValidationAccuracy float64 `json:"validation_accuracy,omitempty"`
	Loaded             bool    `json:"loaded"`
}

// Score handles a score request.
func (h *ScoringServiceHandler) Score(ctx context.Context, req *ScoreRequest) (*ScoreResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	result, err := h.score.Execute(ctx, dto.ScoreUserRequest{Email: req.Email, Features: req.Features})
	if err != nil {
		return nil, h.toStatus(err)
	}
	return &ScoreResponse{
		AttendanceProbability: result.AttendanceProbability,
		ResellerProbability:   result.ResellerProbability,
		RiskLabel:             result.RiskLabel,
		ModelVersion:          result.ModelVersion,
	}, nil
}

// GetModelInfo handles a model info request.
func (h *ScoringServiceHandler) GetModelInfo(_ context.Context, _ *GetModelInfoRequest) (*GetModelInfoResponse, error) {
	info := h.modelInfo.Execute()
	resp := &GetModelInfoResponse{
		ModelPath:          info.ModelPath,
		Version:            info.Version,
		Fingerprint:        info.Fingerprint,
		Records:            int64(info.Records),
		ValidationAccuracy: info.ValidationAccuracy,
		Loaded:             info.Loaded,
	}
	if info.TrainedAt != nil {
		resp.TrainedAt = info.TrainedAt.Format(time.RFC3339)
	}
	if info.LastRun != nil {
		resp.LastRunStatus = info.LastRun.Status
	}
	return resp, nil
}

func (h *ScoringServiceHandler) toStatus(err error) error {
	switch errs.CodeOf(err) {
	case errs.CodeInvalidArgument, errs.CodeInvalidFeatureSchema:
		return status.Error(codes.InvalidArgument, describeFields(err))
	case errs.CodeModelUnavailable, errs.CodeArtifactNotFound, errs.CodeArtifactCorrupt:
		return status.Error(codes.Unavailable, "model unavailable")
	default:
		h.logger.Error("Unhandled error while scoring user request", slog.String("error", err.Error()))
		return status.Error(codes.Internal, "internal error")
	}
}

// describeFields flattens field messages into "field: msg" pairs sorted by
// field.
func describeFields(err error) string {
	fields := errs.FieldsOf(err)
	if len(fields) == 0 {
		return err.Error()
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(fields[name], " "))
	}
	return strings.Join(parts, "; ")
}
