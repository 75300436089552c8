package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultMaxAttempts = 4
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 10 * time.Second
)

// transport is the shared HTTP layer for all provider clients. Retry policy:
// 429/503 honor Retry-After when present, otherwise exponential backoff with
// full jitter; 5xx and network errors retry with the same backoff; other 4xx
// fail immediately. Exhausted attempts surface as an APIError classified by
// the last status seen.
type transport struct {
	provider    string
	httpClient  *http.Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       func(time.Duration) // injectable for tests
}

func newTransport(provider string) *transport {
	return &transport{
		provider:    provider,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		sleep:       time.Sleep,
	}
}

// doJSON performs the request and decodes a 2xx JSON response into out.
func (t *transport) doJSON(ctx context.Context, method, url string, headers map[string]string, body []byte, out interface{}) error {
	var lastStatus int
	var lastBody string
	var retryAfter time.Duration

	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		if attempt > 0 {
			t.sleep(t.backoffDelay(attempt, retryAfter))
			retryAfter = 0
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := t.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warnf("[%s] Request failed (attempt %d/%d): %v", t.provider, attempt+1, t.maxAttempts, err)
			lastStatus = 0
			lastBody = err.Error()
			continue
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
		resp.Body.Close()
		lastStatus = resp.StatusCode
		lastBody = string(respBody)

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return &APIError{Provider: t.provider, Kind: KindClientError, Status: resp.StatusCode, Body: "invalid JSON response"}
			}
			return nil
		case resp.StatusCode == http.StatusNotFound:
			return &APIError{Provider: t.provider, Kind: KindNotFound, Status: resp.StatusCode, Body: lastBody}
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
			retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			log.Warnf("[%s] Throttled (status %d, attempt %d/%d)", t.provider, resp.StatusCode, attempt+1, t.maxAttempts)
			continue
		case resp.StatusCode >= 500:
			log.Warnf("[%s] Server error (status %d, attempt %d/%d)", t.provider, resp.StatusCode, attempt+1, t.maxAttempts)
			continue
		default:
			// Other 4xx are not transient; do not retry.
			return &APIError{Provider: t.provider, Kind: KindClientError, Status: resp.StatusCode, Body: lastBody}
		}
	}

	return &APIError{Provider: t.provider, Kind: exhaustedKind(lastStatus), Status: lastStatus, Body: lastBody}
}

// exhaustedKind classifies a retried-then-exhausted request by its last status.
func exhaustedKind(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServerError
	default:
		return KindExhausted
	}
}

// backoffDelay computes the delay before the given (1-based) retry attempt:
// a Retry-After hint wins, else base * 2^(attempt-1) with full jitter,
// capped at maxDelay.
func (t *transport) backoffDelay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		if retryAfter > t.maxDelay {
			retryAfter = t.maxDelay
		}
		return retryAfter
	}

	delay := t.baseDelay << (attempt - 1)
	if delay > t.maxDelay {
		delay = t.maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay) + 1))
	return jitter
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
