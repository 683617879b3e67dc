// Package httptool implements the make_http_request capability: an
// outbound HTTP call wrapped with bounded retries, per-attempt timeouts,
// and response truncation. The invoker always produces an observation
// string — success or failure — so the model, not the loop, decides what
// a failed call means.
package httptool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pompdany/gatekeeper/internal/config"
	"github.com/pompdany/gatekeeper/internal/httpkit"
)

// DefaultMaxBytes caps how much of a response body is read before
// extraction and truncation (256 KB).
const DefaultMaxBytes int64 = 256 * 1024

// Invoker performs one network action with bounded retry. The retry is
// a fixed (flat) delay between attempts — with only a handful of
// attempts an exponential schedule buys nothing.
type Invoker struct {
	client   *http.Client
	logger   *slog.Logger
	attempts int
	delay    time.Duration
	timeout  time.Duration // per attempt
	maxChars int
	maxBytes int64
}

// NewInvoker creates an invoker from config. Zero values fall back to
// the platform defaults (3 attempts, 2s delay, 15s timeout, 1200 chars).
func NewInvoker(cfg config.HTTPToolConfig, logger *slog.Logger) *Invoker {
	def := config.Default().HTTPTool
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxResponseChars <= 0 {
		cfg.MaxResponseChars = def.MaxResponseChars
	}

	return &Invoker{
		// Each attempt is bounded by its own context deadline, so the
		// client-level timeout stays off.
		client:   httpkit.NewClient(httpkit.WithTimeout(0)),
		logger:   logger,
		attempts: cfg.Attempts,
		delay:    cfg.RetryDelay,
		timeout:  cfg.Timeout,
		maxChars: cfg.MaxResponseChars,
		maxBytes: DefaultMaxBytes,
	}
}

// Invoke performs the HTTP request and returns an observation string.
// headersJSON and dataJSON are optional JSON-encoded blobs, matching the
// argument shape the model emits.
func (i *Invoker) Invoke(ctx context.Context, method, rawURL, headersJSON, dataJSON string) string {
	headers, err := parseStringMap(headersJSON)
	if err != nil {
		return fmt.Sprintf("make_http_request failed: invalid headers JSON: %v", err)
	}

	var body string
	if dataJSON != "" && dataJSON != "{}" {
		// Validate early so every attempt sends the same payload.
		if !json.Valid([]byte(dataJSON)) {
			return "make_http_request failed: invalid data JSON"
		}
		body = dataJSON
	}

	var lastErr error
	for attempt := 1; attempt <= i.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return fmt.Sprintf("make_http_request failed after %d attempts: %v", attempt-1, ctx.Err())
			case <-time.After(i.delay):
			}
		}

		obs, err := i.attempt(ctx, method, rawURL, headers, body)
		if err == nil {
			if attempt > 1 && i.logger != nil {
				i.logger.Info("http request succeeded after retry",
					"method", method,
					"url", rawURL,
					"attempts", attempt,
				)
			}
			return obs
		}

		lastErr = err
		if i.logger != nil {
			i.logger.Warn("http request attempt failed",
				"method", method,
				"url", rawURL,
				"attempt", attempt,
				"max_attempts", i.attempts,
				"error", err,
			)
		}
	}

	return fmt.Sprintf("make_http_request failed after %d attempts: %v", i.attempts, lastErr)
}

// attempt performs a single bounded request. Transport errors are
// returned for retry; any HTTP response, whatever its status, is a
// result the model should see.
func (i *Invoker) attempt(ctx context.Context, method, rawURL string, headers map[string]string, body string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, rawURL, reader)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, i.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	text := string(raw)
	if isHTML(resp.Header.Get("Content-Type")) {
		_, text = extractHTML(text)
	}
	text = truncateUTF8(text, i.maxChars)

	return fmt.Sprintf("Status: %d\n%s", resp.StatusCode, text), nil
}

// parseStringMap decodes an optional JSON object of string values.
func parseStringMap(s string) (map[string]string, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func isHTML(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// truncateUTF8 truncates a string to maxChars characters, ensuring it
// doesn't break in the middle of a multi-byte character.
func truncateUTF8(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	count := 0
	for i := range s {
		if count >= maxChars {
			return s[:i]
		}
		count++
	}
	return s
}
