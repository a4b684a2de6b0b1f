// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stages

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Request is one generation call.
type Request struct {
	// Stage names the caller for logging.
	Stage  string
	Prompt string
	// JSON asks the backend for a JSON-only response.
	JSON bool
	// Thinking asks the backend to reason before answering, where supported.
	Thinking bool
}

// Model generates text from a prompt.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// retryModel retries failed calls of the wrapped model.
type retryModel struct {
	model      Model
	maxRetries int
	logger     *zap.Logger
}

// WithRetry wraps m so that each call is retried up to maxRetries times
// with exponential backoff.
func WithRetry(m Model, maxRetries int, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retryModel{model: m, maxRetries: maxRetries, logger: logger}
}

func (r *retryModel) Generate(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			r.logger.Debug("retrying model call",
				zap.String("stage", req.Stage),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		out, err := r.model.Generate(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d retries: %w", r.maxRetries, lastErr)
}
