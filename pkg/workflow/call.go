package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/observability"
	"github.com/aretw0/lectern/pkg/ports"
	"go.opentelemetry.io/otel/attribute"
)

// Call makes one model call on behalf of a workflow step. The completion is
// trimmed; a blank completion is reported as domain.ErrEmptyCompletion.
func Call(ctx context.Context, gen ports.Generator, metrics *observability.Metrics, w domain.Workflow, purpose string, prompt domain.Prompt) (string, error) {
	ctx, span := observability.StartSpan(ctx, "model."+purpose,
		attribute.String("workflow", string(w)),
		attribute.Float64("temperature", prompt.Temperature),
	)

	start := time.Now()
	out, err := gen.Generate(ctx, prompt)
	if err == nil {
		out = strings.TrimSpace(out)
		if out == "" {
			err = domain.ErrEmptyCompletion
		}
	}
	metrics.ObserveModelCall(string(w), purpose, time.Since(start), err)
	observability.EndSpan(span, err)

	if err != nil {
		return "", fmt.Errorf("%s model call: %w", purpose, err)
	}
	return out, nil
}

// GenerationFailure classifies a failed model call.
func GenerationFailure(err error, message string) *domain.Failure {
	code := domain.CodeModelFailed
	if errors.Is(err, domain.ErrEmptyCompletion) {
		code = domain.CodeEmptyCompletion
	}
	return domain.NewFailure(domain.KindGeneration, code, message)
}

// Publish sends an event without letting a delivery failure reach the caller.
func Publish(ctx context.Context, pub ports.EventPublisher, logger *slog.Logger, event domain.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, event); err != nil {
		logger.Warn("event publish failed", "type", event.Type, "session_id", event.SessionID, "error", err)
	}
}
