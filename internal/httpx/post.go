// Package httpx holds the outbound JSON POST helper shared by the tracking
// sinks and the conversions forwarder.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/hvac-leadsite/internal/telemetry"
)

const maxErrorBody = 4 << 10

// DefaultClient is used when callers pass a nil *http.Client.
var DefaultClient = &http.Client{Timeout: 10 * time.Second}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("post %s: unexpected status %d: %s", e.URL, e.Code, e.Body)
}

// PostJSON marshals body, POSTs it to url with trace headers attached and
// decodes a 2xx JSON response into out when out is non-nil.
func PostJSON(ctx context.Context, client *http.Client, url string, body, out any) error {
	if client == nil {
		client = DefaultClient
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	telemetry.InjectHeaders(ctx, req.Header)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", redact(url), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{URL: redact(url), Code: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// redact strips the query string, which carries credentials for the
// analytics and conversions endpoints.
func redact(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
