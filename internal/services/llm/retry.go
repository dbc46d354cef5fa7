package llm

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
)

const maxTransportAttempts = 3

// retryBackoff returns the delay before the given retry attempt (1-based)
func retryBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

// withTransportRetries runs fn up to maxTransportAttempts times, backing off
// 1s, 2s, 4s between attempts. Only transport-level failures are retried;
// provider, parse, and token-limit errors surface immediately.
func withTransportRetries(ctx context.Context, logger arbor.ILogger, task string, fn func() (*ProviderResponse, error)) (*ProviderResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= maxTransportAttempts; attempt++ {
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return nil, err
		}
		if attempt == maxTransportAttempts {
			break
		}

		delay := retryBackoff(attempt)
		logger.Warn().
			Str("task", task).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Err(err).
			Msg("LLM transport error, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}
