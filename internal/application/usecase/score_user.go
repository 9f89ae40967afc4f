package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ticketguard/scoring/internal/application/dto"
	"github.com/ticketguard/scoring/internal/domain/feature"
	"github.com/ticketguard/scoring/internal/domain/model"
	"github.com/ticketguard/scoring/internal/domain/port"
	"github.com/ticketguard/scoring/internal/errs"
)

const tracerName = "github.com/ticketguard/scoring/internal/application/usecase"

// emailMaxLength matches the user_profiles.email column.
const emailMaxLength = 254

// PredictionMetrics records served predictions.
type PredictionMetrics interface {
	RecordPrediction(ctx context.Context, riskLabel string, duration time.Duration)
}

// ScoreUser is the use case for scoring a buyer profile and recording the
// prediction.
type ScoreUser struct {
	uow         port.UnitOfWork
	publisher   port.EventPublisher
	scorer      port.Scorer
	metrics     PredictionMetrics
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewScoreUser creates a new ScoreUser use case. metrics may be nil.
func NewScoreUser(
	uow port.UnitOfWork,
	publisher port.EventPublisher,
	scorer port.Scorer,
	metrics PredictionMetrics,
	logger *slog.Logger,
) *ScoreUser {
	return &ScoreUser{
		uow:         uow,
		publisher:   publisher,
		scorer:      scorer,
		metrics:     metrics,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
	}
}

// Execute validates the request, scores it, then upserts the profile and
// stores the prediction in one unit of work before publishing
// PredictionRecorded.
func (uc *ScoreUser) Execute(ctx context.Context, req dto.ScoreUserRequest) (dto.ScoreResponse, error) {
	ctx, span := uc.tracer.Start(ctx, "ScoreUser.Execute")
	defer span.End()
	start := time.Now()

	// 1. Validate email, schema and ranges, reporting every field at once.
	row, err := ValidateScoreRequest(req)
	if err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return dto.ScoreResponse{}, err
	}
	profile, err := model.NewUserProfile(req.Email, row)
	if err != nil {
		return dto.ScoreResponse{}, errs.Wrap(errs.CodeInvalidArgument, "invalid profile", err)
	}

	// 2. Score outside the transaction; the first call may load the model.
	score, err := uc.scorer.Predict(ctx, row)
	if err != nil {
		return dto.ScoreResponse{}, uc.fail(span, err)
	}
	span.SetAttributes(
		attribute.String("scoring.risk_label", score.RiskLabel().String()),
		attribute.String("scoring.model_version", score.ModelVersion()),
	)

	// 3. Upsert the profile keyed by email and append the prediction.
	var prediction *model.Prediction
	err = uc.uow.Do(ctx, func(profiles port.ProfileRepository, predictions port.PredictionRepository) error {
		stored, err := profiles.Upsert(ctx, profile)
		if err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		prediction, err = model.NewPrediction(stored, score)
		if err != nil {
			return fmt.Errorf("failed to create prediction: %w", err)
		}
		if err := predictions.Save(ctx, prediction); err != nil {
			return fmt.Errorf("failed to save prediction: %w", err)
		}
		return nil
	})
	if err != nil {
		return dto.ScoreResponse{}, uc.fail(span, err)
	}

	// 4. Publish. The prediction is already stored, so a broker outage is
	// logged rather than failing the request.
	if evts := prediction.ClearEvents(); len(evts) > 0 {
		if err := uc.publisher.Publish(ctx, evts...); err != nil {
			uc.logger.Warn("failed to publish prediction events",
				slog.String("prediction_id", prediction.ID().String()),
				slog.String("error", err.Error()),
			)
		}
	}

	if uc.metrics != nil {
		uc.metrics.RecordPrediction(ctx, score.RiskLabel().String(), time.Since(start))
	}
	return dto.FromScore(score), nil
}

func (uc *ScoreUser) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// ValidateScoreRequest checks the email and feature values of a score
// request and returns the parsed row. Failures are InvalidArgument errors
// whose Fields map each offending key to its messages.
func ValidateScoreRequest(req dto.ScoreUserRequest) (feature.Row, error) {
	fields := make(map[string][]string)

	email := strings.TrimSpace(req.Email)
	switch {
	case email == "":
		fields["email"] = []string{"This field is required."}
	case len(email) > emailMaxLength:
		fields["email"] = []string{fmt.Sprintf("Ensure this field has no more than %d characters.", emailMaxLength)}
	case !govalidator.IsEmail(email):
		fields["email"] = []string{"Enter a valid email address."}
	}

	row, err := feature.FromMap(req.Features)
	if err != nil {
		for k, v := range errs.FieldsOf(err) {
			fields[k] = append(fields[k], v...)
		}
	} else if err := row.Validate(); err != nil {
		for k, v := range errs.FieldsOf(err) {
			fields[k] = append(fields[k], v...)
		}
	}

	if len(fields) > 0 {
		return feature.Row{}, errs.Invalid("invalid score request", fields)
	}
	return row, nil
}
