package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultRequestTimeout = 20 * time.Second

// HTTPClientOptions configures a generic JSON REST client for one provider.
type HTTPClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
}

// HTTPClient is the production Client for providers exposing a JSON REST
// API. It performs a single attempt per call and classifies the outcome;
// retry pacing belongs to the queue, not to the transport, so a 429 or 5xx
// surfaces immediately as a RetryableError carrying the Retry-After hint.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

func NewHTTPClient(opts HTTPClientOptions) *HTTPClient {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		userAgent:  strings.TrimSpace(opts.UserAgent),
	}
}

func (c *HTTPClient) CreateRecord(ctx context.Context, token, entityType, externalID string, fields map[string]any) (string, error) {
	body := map[string]any{
		"externalId": externalID,
		"fields":     fields,
	}
	respBody, err := c.do(ctx, http.MethodPost, "/objects/"+entityType, token, body)
	if err != nil {
		return "", err
	}
	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.ID == "" {
		return "", fmt.Errorf("create %s: response missing record id", entityType)
	}
	return parsed.ID, nil
}

func (c *HTTPClient) UpdateRecord(ctx context.Context, token, entityType, remoteID string, fields map[string]any) error {
	body := map[string]any{"fields": fields}
	_, err := c.do(ctx, http.MethodPatch, "/objects/"+entityType+"/"+remoteID, token, body)
	return err
}

func (c *HTTPClient) FetchRecord(ctx context.Context, token, entityType, remoteID string) (map[string]any, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/objects/"+entityType+"/"+remoteID, token, nil)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Fields map[string]any `json:"fields"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("fetch %s/%s: decode response: %w", entityType, remoteID, err)
	}
	return parsed.Fields, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection resets are transient by definition.
		return nil, &RetryableError{Err: err}
	}
	respBody, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, &RetryableError{Status: resp.StatusCode, Err: readErr}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return respBody, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &RetryableError{
			Status:     resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("%s %s: %s", method, path, strings.TrimSpace(string(respBody))),
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Status: resp.StatusCode}
	default:
		return nil, &ValidationError{
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(respBody)),
		}
	}
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
