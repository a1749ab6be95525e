// Package orchestrator is the HTTP client for the external chat orchestrator.
// The orchestrator owns answer generation, routing, and telemetry; this
// service only forwards the conversation turn and relays the result.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrTimeout marks an upstream call that exceeded the configured deadline.
// The API layer maps it to 504.
var ErrTimeout = errors.New("chat orchestrator timed out")

// DefaultTimeout bounds the outbound chat fetch when the config does not
// override it.
const DefaultTimeout = 120 * time.Second

// ChatRequest is the payload forwarded to the orchestrator.
type ChatRequest struct {
	ThreadID string         `json:"thread_id"`
	Message  string         `json:"message"`
	Query    string         `json:"query"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Metrics carries the orchestrator's per-answer measurements. Absent values
// stay nil so the transcript never records fabricated zeros.
type Metrics struct {
	LatencyMs *float64 `json:"latency_ms,omitempty"`
	TokensIn  *float64 `json:"tokens_in,omitempty"`
	TokensOut *float64 `json:"tokens_out,omitempty"`
	CostUSD   *float64 `json:"cost_usd,omitempty"`
	Model     string   `json:"model,omitempty"`
}

// ChatResponse mirrors the orchestrator's answer shape. Telemetry and
// citations are passed through verbatim into the transcript record.
type ChatResponse struct {
	Text        string          `json:"text"`
	Route       string          `json:"route,omitempty"`
	Metrics     Metrics         `json:"metrics"`
	Telemetry   json.RawMessage `json:"telemetry,omitempty"`
	Citations   json.RawMessage `json:"citations,omitempty"`
	Used        json.RawMessage `json:"used,omitempty"`
	SourcesUsed json.RawMessage `json:"sources_used,omitempty"`
}

// Client calls the orchestrator's respond endpoint.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// Respond forwards one conversation turn. Failures are never retried; a
// deadline hit returns ErrTimeout, anything else a wrapped upstream error
// carrying the orchestrator's detail text when one was provided.
func (c *Client) Respond(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/respond", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("chat orchestrator unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := strings.TrimSpace(gjson.GetBytes(body, "detail").String())
		if detail == "" {
			detail = strings.TrimSpace(string(body))
		}
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("chat orchestrator returned %d: %s", resp.StatusCode, detail)
	}

	var out ChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	return &out, nil
}
