package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ticketguard/scoring/internal/errs"
)

// detail is the body of every non-field error response.
type detail struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, detail{Detail: msg})
}

// writeError maps a use case error to its HTTP response. Unclassified
// errors are logged with logMsg and hidden behind a 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, logMsg string, err error) {
	switch errs.CodeOf(err) {
	case errs.CodeInvalidArgument, errs.CodeInvalidFeatureSchema:
		if fields := errs.FieldsOf(err); len(fields) > 0 {
			writeJSON(w, http.StatusBadRequest, fields)
			return
		}
		writeDetail(w, http.StatusBadRequest, messageOf(err))
	case errs.CodeNotFound:
		writeDetail(w, http.StatusNotFound, "Not found.")
	case errs.CodeTrainingInProgress:
		writeDetail(w, http.StatusConflict, "A training run is already in progress.")
	case errs.CodeModelUnavailable, errs.CodeArtifactNotFound, errs.CodeArtifactCorrupt:
		writeDetail(w, http.StatusServiceUnavailable, "Model unavailable. Train the model first.")
	default:
		logger.Error(logMsg, slog.String("error", err.Error()))
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
	}
}

func messageOf(err error) string {
	var e *errs.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
