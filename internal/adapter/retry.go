package adapter

import (
	"bytes"
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryConfig tunes the HTTP 429 retry loop shared by the hosted providers.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns the stock tuning: up to 5 attempts with
// exponential backoff from 1s capped at 30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// postJSON sends one JSON POST and returns the status, headers and body.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, payload []byte) (int, http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, resp.Header, body, nil
}

// postWith429Retries POSTs payload, retrying only on HTTP 429. Every other
// status, including 5xx, is returned to the caller on the first attempt.
// The server's Retry-After is honored when parseable; otherwise the delay
// grows as base*2^(attempt-1) capped at max. A small uniform jitter keeps
// concurrent workers from thundering in lockstep. When attempts run out the
// last 429 response is returned, not an error, so the caller can surface
// its status.
func postWith429Retries(ctx context.Context, client *http.Client, url string, header http.Header, payload []byte, cfg RetryConfig) (int, []byte, error) {
	attempt := 0
	for {
		status, respHeader, body, err := postJSON(ctx, client, url, header, payload)
		if err != nil {
			return 0, nil, err
		}
		if status != http.StatusTooManyRequests {
			return status, body, nil
		}
		attempt++
		if attempt >= cfg.MaxAttempts {
			return status, body, nil
		}
		var wait float64
		if ra := RetryAfterSeconds(respHeader.Get("Retry-After")); ra != nil {
			wait = math.Min(cfg.MaxDelay.Seconds(), math.Max(0, *ra))
		} else {
			wait = math.Min(cfg.MaxDelay.Seconds(), cfg.BaseDelay.Seconds()*math.Pow(2, float64(attempt-1)))
		}
		jitter := rand.Float64() * math.Min(1.0, 0.25*wait)
		if err := sleepCtx(ctx, time.Duration((wait+jitter)*float64(time.Second))); err != nil {
			return 0, nil, err
		}
	}
}

// RetryAfterSeconds parses a Retry-After header value. Bare digit strings
// are delta seconds; anything else is tried as an HTTP-date. Unparseable
// values yield nil so callers fall back to exponential backoff.
func RetryAfterSeconds(value string) *float64 {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	digits := true
	for _, r := range v {
		if r < '0' || r > '9' {
			digits = false
			break
		}
	}
	if digits {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil
		}
		return &n
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return nil
	}
	secs := time.Until(t).Seconds()
	if secs < 0 {
		secs = 0
	}
	return &secs
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
