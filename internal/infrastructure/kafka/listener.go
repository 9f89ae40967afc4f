package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ticketguard/scoring/internal/domain/event"
	"github.com/ticketguard/scoring/pkg/events"
	"github.com/ticketguard/scoring/pkg/kafka"
)

// ArtifactPuller refreshes the local artifact from shared storage.
type ArtifactPuller interface {
	Pull(ctx context.Context) (bool, error)
}

// CacheInvalidator drops the cached model.
type CacheInvalidator interface {
	Invalidate()
}

// ModelReloadListener reacts to models trained by other processes: it
// pulls the new artifact from the mirror, when there is one, and drops the
// cached model so the next prediction loads it.
type ModelReloadListener struct {
	source string
	puller ArtifactPuller
	cache  CacheInvalidator
	logger *slog.Logger
}

// NewModelReloadListener creates a listener ignoring events from source.
// puller may be nil when the artifact path is shared storage.
func NewModelReloadListener(source string, puller ArtifactPuller, cache CacheInvalidator, logger *slog.Logger) *ModelReloadListener {
	return &ModelReloadListener{source: source, puller: puller, cache: cache, logger: logger}
}

// Handle processes one message. It matches kafka.Handler.
func (l *ModelReloadListener) Handle(ctx context.Context, msg kafka.Message) error {
	if t, ok := msg.Headers[HeaderEventType]; ok && t != event.EventTypeModelTrained {
		return nil
	}
	env, err := events.DecodeEnvelope(msg.Value)
	if err != nil {
		// Undecodable messages are dropped; retrying cannot fix them.
		l.logger.Warn("skipping malformed event", slog.String("error", err.Error()))
		return nil
	}
	if env.EventType != event.EventTypeModelTrained {
		return nil
	}
	if env.Source == l.source {
		// This process already invalidated when it finished training.
		return nil
	}

	var trained event.ModelTrained
	if err := env.DecodePayload(&trained); err != nil {
		l.logger.Warn("skipping malformed model trained event", slog.String("error", err.Error()))
		return nil
	}

	if l.puller != nil {
		if _, err := l.puller.Pull(ctx); err != nil {
			return fmt.Errorf("failed to pull trained model %s: %w", trained.Fingerprint, err)
		}
	}
	l.cache.Invalidate()
	l.logger.Info("model reloaded after remote training",
		slog.String("source", env.Source),
		slog.String("run_id", trained.RunID.String()),
		slog.String("fingerprint", trained.Fingerprint),
		slog.Float64("validation_accuracy", trained.ValidationAccuracy),
	)
	return nil
}
