package source

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/plotmap/mapview/internal/plot"
)

// WithRetry wraps src so transport failures are retried with exponential
// backoff inside one fetch. Malformed payloads and 304s are returned as is.
// maxRetries <= 0 returns src unchanged. Commit and Rollback are forwarded
// when src is a Committer.
func WithRetry(src Source, maxRetries int, baseBackoff time.Duration, logger *slog.Logger) Source {
	if maxRetries <= 0 {
		return src
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retrying{src: src, maxRetries: maxRetries, backoff: baseBackoff, logger: logger}
}

type retrying struct {
	src        Source
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

func (r *retrying) Commit() {
	if c, ok := r.src.(Committer); ok {
		c.Commit()
	}
}

func (r *retrying) Rollback() {
	if c, ok := r.src.(Committer); ok {
		c.Rollback()
	}
}

func (r *retrying) Fetch(ctx context.Context) ([]plot.Plot, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		plots, err := r.src.Fetch(ctx)
		if err == nil || !errors.Is(err, ErrTransport) {
			return plots, err
		}
		lastErr = err
		if ctx.Err() != nil || attempt == r.maxRetries {
			break
		}
		wait := r.backoff * (1 << uint(attempt))
		r.logger.WarnContext(ctx, "source: retrying fetch",
			"attempt", attempt+1,
			"max_retries", r.maxRetries,
			"backoff_ms", wait.Milliseconds(),
			"error", err)
		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}
