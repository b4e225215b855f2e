// Package ctl is the HTTP client used by the syncctl operator CLI to talk to
// the internal admin API.
package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ContextKey is the context value key under which the root command stores the
// configured client for subcommands.
const ContextKey = "ctl-client"

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type Connection struct {
	Provider        string    `json:"provider"`
	Status          string    `json:"status"`
	RemoteAccountID string    `json:"remoteAccountId"`
	LastSyncAt      time.Time `json:"lastSyncAt"`
}

type DeadLetter struct {
	ID        int64           `json:"id"`
	JobID     int64           `json:"jobId"`
	TenantID  string          `json:"tenantId"`
	Provider  string          `json:"provider"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Reason    string          `json:"reason"`
	LastError string          `json:"lastError"`
	CreatedAt time.Time       `json:"createdAt"`
}

type DeadLetterPage struct {
	Total   int          `json:"total"`
	Letters []DeadLetter `json:"letters"`
}

func (c *Client) ListConnections(ctx context.Context, tenantID string) ([]Connection, error) {
	q := url.Values{}
	if tenantID != "" {
		q.Set("tenant", tenantID)
	}
	var out []Connection
	if err := c.do(ctx, http.MethodGet, "/api/connections", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Disconnect(ctx context.Context, tenantID, provider string) error {
	body := map[string]string{"tenantId": tenantID}
	return c.do(ctx, http.MethodPost, "/api/connections/"+url.PathEscape(provider)+"/disconnect", nil, body, nil)
}

func (c *Client) ListDeadLetters(ctx context.Context, tenantID string, limit int) (*DeadLetterPage, error) {
	q := url.Values{}
	if tenantID != "" {
		q.Set("tenant", tenantID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out DeadLetterPage
	if err := c.do(ctx, http.MethodGet, "/api/deadletters", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RetryDeadLetter re-enqueues a dead letter and returns the new job id.
func (c *Client) RetryDeadLetter(ctx context.Context, id int64) (int64, error) {
	var out struct {
		JobID int64 `json:"jobId"`
	}
	path := "/api/deadletters/" + strconv.FormatInt(id, 10) + "/retry"
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &out); err != nil {
		return 0, err
	}
	return out.JobID, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
