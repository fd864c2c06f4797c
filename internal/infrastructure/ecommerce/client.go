package ecommerce

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wasla/backend/internal/domain/integration"
)

// maxResponseSize is the maximum allowed response size from a provider API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// maxFetchAttempts bounds transient retries for one provider request
const maxFetchAttempts = 3

// doRequest executes an HTTP request and classifies failures into the
// provider error taxonomy. Transient failures retry with jittered backoff;
// rate limits and permanent failures return to the run immediately. The
// caller owns the request; auth headers are already set.
func doRequest(client *http.Client, req *http.Request) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		body, err := send(client, req)
		if err == nil || attempt >= maxFetchAttempts || !errors.Is(err, integration.ErrProviderTransient) {
			return body, err
		}
		if sleepErr := sleepCtx(req.Context(), backoffDelay(attempt, time.Second, time.Minute)); sleepErr != nil {
			return nil, err
		}
	}
}

func send(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrProviderTransient, err)
	}
	return readClassified(resp)
}

// readClassified drains a response and classifies non-2xx statuses.
// Split from doRequest for callers that need response headers first.
func readClassified(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", integration.ErrProviderTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", integration.ErrProviderAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &integration.RateLimitError{RetryAfter: retryAfterDelay(resp, 1)}
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", integration.ErrProviderTransient, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d: %s", integration.ErrInvalidPayload, resp.StatusCode, truncate(body, 200))
	}

	return body, nil
}

// retryAfterDelay honors the provider's Retry-After header when present,
// falling back to exponential backoff with jitter
func retryAfterDelay(resp *http.Response, attempt int) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(v); err == nil {
			if d := time.Until(at); d > 0 {
				return d
			}
		}
	}
	return backoffDelay(attempt, time.Second, time.Minute)
}

// backoffDelay computes capped exponential backoff with full jitter
func backoffDelay(attempt int, base, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if d > cap {
		d = cap
	}
	// Full jitter keeps concurrent lanes from hammering the provider in step
	return time.Duration(rand.Int63n(int64(d)) + int64(d)/2)
}

// headerValue looks up a header case-insensitively from a plain map
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	lower := strings.ToLower(name)
	for k, v := range headers {
		if strings.ToLower(k) == lower {
			return v
		}
	}
	return ""
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// sleepCtx waits for d unless the context is cancelled first
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
