// Package retry runs remote calls with jittered exponential backoff.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const MaxRetries = 3

// IsRetryable checks if an error is worth retrying: Mistral API 429/5xx through
// the OpenAI-compatible client (OCR, chat, embeddings) and transient qdrant gRPC codes.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted:
			return true
		}
	}
	return false
}

// IsRateLimited reports whether the remote side asked us to slow down.
func IsRateLimited(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	if s, ok := status.FromError(err); ok {
		return s.Code() == codes.ResourceExhausted
	}
	return false
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// Policy bounds how a call is retried.
type Policy struct {
	MaxRetries int
	// RateLimitWait is the minimum wait after a rate-limit response.
	RateLimitWait time.Duration
	Backoff       func(attempt int) time.Duration
}

// DefaultPolicy waits at least rateLimitWait after a 429.
func DefaultPolicy(rateLimitWait time.Duration) Policy {
	return Policy{MaxRetries: MaxRetries, RateLimitWait: rateLimitWait, Backoff: Backoff}
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// attempts run out. The last error is returned.
func (p Policy) Do(ctx context.Context, log *slog.Logger, op string, fn func(context.Context) error) error {
	attempts := p.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = Backoff
	}

	var lastErr error
	for attempt := range attempts {
		lastErr = fn(ctx)
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}
		wait := backoff(attempt)
		if IsRateLimited(lastErr) && p.RateLimitWait > wait {
			wait = p.RateLimitWait
		}
		log.Warn("retryable error", "op", op, "attempt", attempt, "wait", wait, "error", lastErr)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
