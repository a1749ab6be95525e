// Package tunnel is the REST client for the external data-tunnel/ingestion
// service, which owns document ingestion and indexing.
package tunnel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// Document describes one ingested document as reported by the tunnel.
type Document struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// UpstreamError carries the tunnel's status and human-readable detail so the
// API layer can relay both.
type UpstreamError struct {
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("data tunnel returned %d: %s", e.StatusCode, e.Detail)
}

// Client talks to the data-tunnel document endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// List returns the ingested documents.
func (c *Client) List(ctx context.Context) ([]Document, error) {
	body, err := c.do(ctx, http.MethodGet, "/documents", "", nil)
	if err != nil {
		return nil, err
	}

	var docs []Document
	// Some tunnel revisions wrap the list in {"documents": [...]}.
	if err := json.Unmarshal(body, &docs); err != nil {
		var wrapped struct {
			Documents []Document `json:"documents"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil {
			return nil, fmt.Errorf("decode document list: %w", err)
		}
		docs = wrapped.Documents
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

// Upload sends one file as multipart form data and returns the created
// document record.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*Document, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy upload payload: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("finalize upload form: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/documents", form.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &doc, nil
}

// Reindex asks the tunnel to rebuild the index for one document.
func (c *Client) Reindex(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, "/documents/"+url.PathEscape(id)+"/reindex", "", nil)
	return err
}

// Delete removes an ingested document.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), "", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build tunnel request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("data tunnel unreachable: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tunnel response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail := strings.TrimSpace(gjson.GetBytes(payload, "detail").String())
		if detail == "" {
			detail = strings.TrimSpace(string(payload))
		}
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Detail: detail}
	}
	return payload, nil
}
