package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketguard/scoring/internal/application/dto"
	"github.com/ticketguard/scoring/internal/errs"
	"github.com/ticketguard/scoring/pkg/testutil"
)

// --- Mock implementations ---

type mockScore struct {
	got       dto.ScoreUserRequest
	executeFn func(ctx context.Context, req dto.ScoreUserRequest) (dto.ScoreResponse, error)
}

func (m *mockScore) Execute(ctx context.Context, req dto.ScoreUserRequest) (dto.ScoreResponse, error) {
	m.got = req
	if m.executeFn != nil {
		return m.executeFn(ctx, req)
	}
	return dto.ScoreResponse{
		AttendanceProbability: 0.82,
		ResellerProbability:   0.18,
		RiskLabel:             "attendee",
		ModelVersion:          "v1",
	}, nil
}

type mockHistory struct {
	email string
	limit int
	err   error
}

func (m *mockHistory) Execute(_ context.Context, email string, limit int) (dto.PredictionHistoryResponse, error) {
	m.email, m.limit = email, limit
	if m.err != nil {
		return dto.PredictionHistoryResponse{}, m.err
	}
	return dto.PredictionHistoryResponse{Email: email, UserID: testutil.TestProfileID}, nil
}

type mockTraining struct {
	got     *dto.TrainModelRequest
	startFn func(req dto.TrainModelRequest) (dto.TrainingRunResponse, error)
}

func (m *mockTraining) Start(req dto.TrainModelRequest) (dto.TrainingRunResponse, error) {
	m.got = &req
	if m.startFn != nil {
		return m.startFn(req)
	}
	return dto.TrainingRunResponse{
		RunID:     uuid.MustParse("00000000-0000-0000-0000-0000000000aa"),
		Status:    "training",
		ModelPath: "/data/model.bin",
	}, nil
}

type mockModelInfo struct {
	resp dto.ModelInfoResponse
}

func (m *mockModelInfo) Execute() dto.ModelInfoResponse { return m.resp }

// --- Helpers ---

type handlerFixture struct {
	score    *mockScore
	history  *mockHistory
	training *mockTraining
	info     *mockModelInfo
	logs     *bytes.Buffer
	mux      *http.ServeMux
}

func newHandlerFixture(trainCfg TrainEndpointConfig) *handlerFixture {
	f := &handlerFixture{
		score:    &mockScore{},
		history:  &mockHistory{},
		training: &mockTraining{},
		info:     &mockModelInfo{},
		logs:     &bytes.Buffer{},
		mux:      http.NewServeMux(),
	}
	logger := slog.New(slog.NewJSONHandler(f.logs, nil))
	NewScoringHandler(f.score, f.history, f.training, f.info, trainCfg, logger).RegisterRoutes(f.mux)
	return f
}

func (f *handlerFixture) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func scoreBody(t *testing.T) string {
	t.Helper()
	b, err := json.Marshal(testutil.ScoreRequestBody(testutil.TestEmail))
	require.NoError(t, err)
	return string(b)
}

// --- Tests ---

func TestScoreUser(t *testing.T) {
	t.Run("returns the score", func(t *testing.T) {
		f := newHandlerFixture(TrainEndpointConfig{})
		rec := f.do(http.MethodPost, "/api/v1/score", scoreBody(t), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"attendance_probability":0.82,"reseller_probability":0.18,"risk_label":"attendee","model_version":"v1"}`, rec.Body.String())
		assert.Equal(t, testutil.TestEmail, f.score.got.Email)
		assert.NotContains(t, f.score.got.Features, "email")
		assert.Equal(t, json.Number("29"), f.score.got.Features["age"])
		assert.Len(t, f.score.got.Features, 13)
	})

	t.Run("validation errors map fields to messages", func(t *testing.T) {
		f := newHandlerFixture(TrainEndpointConfig{})
		f.score.executeFn = func(context.Context, dto.ScoreUserRequest) (dto.ScoreResponse, error) {
			return dto.ScoreResponse{}, errs.Invalid("invalid score request", map[string][]string{
				"age": {"Ensure this value is greater than or equal to 13."},
			})
		}
		rec := f.do(http.MethodPost, "/api/v1/score", scoreBody(t), nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"age":["Ensure this value is greater than or equal to 13."]}`, rec.Body.String())
	})

	t.Run("non string email", func(t *testing.T) {
		f := newHandlerFixture(TrainEndpointConfig{})
		rec := f.do(http.MethodPost, "/api/v1/score", `{"email": 42}`, nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"email"`)
	})

	t.Run("malformed json", func(t *testing.T) {
		f := newHandlerFixture(TrainEndpointConfig{})
		for _, body := range []string{`{"email":`, `[1,2]`, `null`} {
			rec := f.do(http.MethodPost, "/api/v1/score", body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})

	t.Run("model unavailable is 503", func(t *testing.T) {
		f := newHandlerFixture(TrainEndpointConfig{})
		f.score.executeFn = func(context.Context, dto.ScoreUserRequest) (dto.ScoreResponse, error) {
			return dto.ScoreResponse{}, errs.Wrap(errs.CodeModelUnavailable, "no model",
				errs.New(errs.CodeArtifactNotFound, "missing"))
		}
		rec := f.do(http.MethodPost, "/api/v1/score", scoreBody(t), nil)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"detail"`)
	})

	t.Run("unexpected errors are logged and hidden", func(t *testing.T) {
		f := newHandlerFixture(TrainEndpointConfig{})
		f.score.executeFn = func(context.Context, dto.ScoreUserRequest) (dto.ScoreResponse, error) {
			return dto.ScoreResponse{}, errors.New("connection reset by peer")
		}
		rec := f.do(http.MethodPost, "/api/v1/score", scoreBody(t), nil)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection reset")
		assert.Contains(t, f.logs.String(), "Unhandled error while scoring user request")
		assert.Contains(t, f.logs.String(), "connection reset by peer")
	})
}

func TestListPredictions(t *testing.T) {
	f := newHandlerFixture(TrainEndpointConfig{})

	rec := f.do(http.MethodGet, "/api/v1/users/fan@example.com/predictions?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fan@example.com", f.history.email)
	assert.Equal(t, 5, f.history.limit)

	rec = f.do(http.MethodGet, "/api/v1/users/fan@example.com/predictions", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, f.history.limit, "no limit uses the use case default")

	rec = f.do(http.MethodGet, "/api/v1/users/fan@example.com/predictions?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.history.err = errs.New(errs.CodeNotFound, "no profile")
	rec = f.do(http.MethodGet, "/api/v1/users/ghost@example.com/predictions", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrainModel(t *testing.T) {
	enabled := TrainEndpointConfig{Enabled: true, Token: "s3cret"}
	auth := map[string]string{TrainTokenHeader: "s3cret"}

	tests := []struct {
		name     string
		cfg      TrainEndpointConfig
		body     string
		headers  map[string]string
		startErr error
		wantCode int
	}{
		{name: "disabled", cfg: TrainEndpointConfig{Token: "s3cret"}, headers: auth, wantCode: http.StatusNotFound},
		{name: "missing token", cfg: enabled, wantCode: http.StatusUnauthorized},
		{name: "wrong token", cfg: enabled, headers: map[string]string{TrainTokenHeader: "guess"}, wantCode: http.StatusUnauthorized},
		{name: "empty configured token never matches", cfg: TrainEndpointConfig{Enabled: true}, headers: map[string]string{TrainTokenHeader: ""}, wantCode: http.StatusUnauthorized},
		{name: "accepted without body", cfg: enabled, headers: auth, wantCode: http.StatusAccepted},
		{name: "accepted with overrides", cfg: enabled, headers: auth, body: `{"size": 5000, "seed": 3}`, wantCode: http.StatusAccepted},
		{name: "unknown body field", cfg: enabled, headers: auth, body: `{"trees": 5}`, wantCode: http.StatusBadRequest},
		{name: "run in flight", cfg: enabled, headers: auth, startErr: errs.New(errs.CodeTrainingInProgress, "busy"), wantCode: http.StatusConflict},
		{
			name: "size too small", cfg: enabled, headers: auth, body: `{"size": 10}`,
			startErr: errs.Invalid("invalid training request", map[string][]string{"size": {"Ensure this value is greater than or equal to 1000."}}),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newHandlerFixture(tc.cfg)
			if tc.startErr != nil {
				f.training.startFn = func(dto.TrainModelRequest) (dto.TrainingRunResponse, error) {
					return dto.TrainingRunResponse{}, tc.startErr
				}
			}
			rec := f.do(http.MethodPost, "/api/v1/model/train", tc.body, tc.headers)
			assert.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
		})
	}

	t.Run("accepted response", func(t *testing.T) {
		f := newHandlerFixture(enabled)
		rec := f.do(http.MethodPost, "/api/v1/model/train", `{"size": 5000}`, auth)

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.JSONEq(t, `{"status":"training","run_id":"00000000-0000-0000-0000-0000000000aa","model_path":"/data/model.bin"}`, rec.Body.String())
		require.NotNil(t, f.training.got)
		require.NotNil(t, f.training.got.Size)
		assert.Equal(t, 5000, *f.training.got.Size)
		assert.Nil(t, f.training.got.Seed)
	})
}

func TestGetModel(t *testing.T) {
	f := newHandlerFixture(TrainEndpointConfig{})
	f.info.resp = dto.ModelInfoResponse{ModelPath: "/data/model.bin", Loaded: true, Version: "v1"}

	rec := f.do(http.MethodGet, "/api/v1/model", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got dto.ModelInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Loaded)
	assert.Equal(t, "v1", got.Version)
}
