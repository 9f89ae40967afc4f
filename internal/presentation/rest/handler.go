package rest

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ticketguard/scoring/internal/application/dto"
)

// TrainTokenHeader carries the shared secret for the retraining endpoint.
const TrainTokenHeader = "X-Train-Token"

// maxBodyBytes bounds request bodies; a score request is well under 4 KiB.
const maxBodyBytes = 64 << 10

// ScoreExecutor scores one buyer.
type ScoreExecutor interface {
	Execute(ctx context.Context, req dto.ScoreUserRequest) (dto.ScoreResponse, error)
}

// HistoryExecutor lists the predictions served for an email.
type HistoryExecutor interface {
	Execute(ctx context.Context, email string, limit int) (dto.PredictionHistoryResponse, error)
}

// TrainingStarter starts a background training run.
type TrainingStarter interface {
	Start(req dto.TrainModelRequest) (dto.TrainingRunResponse, error)
}

// ModelDescriber describes the served model.
type ModelDescriber interface {
	Execute() dto.ModelInfoResponse
}

// TrainEndpointConfig gates the retraining endpoint.
type TrainEndpointConfig struct {
	Token   string
	Enabled bool
}

// ScoringHandler serves the scoring REST API.
type ScoringHandler struct {
	score     ScoreExecutor
	history   HistoryExecutor
	training  TrainingStarter
	modelInfo ModelDescriber
	trainCfg  TrainEndpointConfig
	logger    *slog.Logger
}

// NewScoringHandler creates the REST handler. training may be nil when the
// process cannot train, which behaves like a disabled endpoint.
func NewScoringHandler(
	score ScoreExecutor,
	history HistoryExecutor,
	training TrainingStarter,
	modelInfo ModelDescriber,
	trainCfg TrainEndpointConfig,
	logger *slog.Logger,
) *ScoringHandler {
	return &ScoringHandler{
		score:     score,
		history:   history,
		training:  training,
		modelInfo: modelInfo,
		trainCfg:  trainCfg,
		logger:    logger,
	}
}

// RegisterRoutes attaches the API routes to the given mux.
func (h *ScoringHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/score", h.scoreUser)
	mux.HandleFunc("GET /api/v1/users/{email}/predictions", h.listPredictions)
	mux.HandleFunc("POST /api/v1/model/train", h.trainModel)
	mux.HandleFunc("GET /api/v1/model", h.getModel)
}

// scoreUser accepts a flat object: "email" plus the feature keys.
func (h *ScoringHandler) scoreUser(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil || body == nil {
		writeDetail(w, http.StatusBadRequest, "JSON parse error: expected an object.")
		return
	}

	req := dto.ScoreUserRequest{Features: body}
	if raw, ok := body["email"]; ok {
		email, isString := raw.(string)
		if !isString {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"email": {"Not a valid string."}})
			return
		}
		req.Email = email
		delete(body, "email")
	}

	resp, err := h.score.Execute(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, "Unhandled error while scoring user request", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ScoringHandler) listPredictions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"limit": {"A valid positive integer is required."}})
			return
		}
		limit = n
	}

	resp, err := h.history.Execute(r.Context(), r.PathValue("email"), limit)
	if err != nil {
		writeError(w, h.logger, "failed to list predictions", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type trainAccepted struct {
	Status    string `json:"status"`
	RunID     string `json:"run_id"`
	ModelPath string `json:"model_path"`
}

func (h *ScoringHandler) trainModel(w http.ResponseWriter, r *http.Request) {
	if !h.trainCfg.Enabled || h.training == nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	if !h.authorizedToTrain(r) {
		writeDetail(w, http.StatusUnauthorized, "Unauthorized.")
		return
	}

	var req dto.TrainModelRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeDetail(w, http.StatusBadRequest, "JSON parse error: "+err.Error())
		return
	}

	run, err := h.training.Start(req)
	if err != nil {
		writeError(w, h.logger, "failed to start training run", err)
		return
	}
	h.logger.Info("training run accepted",
		slog.String("run_id", run.RunID.String()),
		slog.Int("size", run.Size),
	)
	writeJSON(w, http.StatusAccepted, trainAccepted{
		Status:    run.Status,
		RunID:     run.RunID.String(),
		ModelPath: run.ModelPath,
	})
}

// authorizedToTrain compares the token in constant time. An unset token
// never matches.
func (h *ScoringHandler) authorizedToTrain(r *http.Request) bool {
	if h.trainCfg.Token == "" {
		return false
	}
	got := r.Header.Get(TrainTokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.trainCfg.Token)) == 1
}

func (h *ScoringHandler) getModel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.modelInfo.Execute())
}
