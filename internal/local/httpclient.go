package local

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
)

var ErrNotFound = errors.New("local entity not found")

// HTTPClientOptions configures the client for the host CRM's internal API.
type HTTPClientOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// HTTPClient implements Store over the host CRM's internal HTTP API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPClient(opts HTTPClientOptions) *HTTPClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		apiKey:     opts.APIKey,
		httpClient: httpClient,
	}
}

func (c *HTTPClient) ReadFields(ctx context.Context, tenantID, entityType, localID string) (map[string]any, error) {
	path := fmt.Sprintf("/internal/entities/%s/%s?tenant=%s", entityType, localID, tenantID)
	respBody, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("read %s/%s: unexpected status %d", entityType, localID, status)
	}
	var parsed struct {
		Fields map[string]any `json:"fields"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("read %s/%s: decode response: %w", entityType, localID, err)
	}
	return parsed.Fields, nil
}

func (c *HTTPClient) ApplyRemote(ctx context.Context, tenantID, entityType, localID string, fields map[string]any) (string, error) {
	payload := map[string]any{
		"tenant":  tenantID,
		"localId": localID,
		"fields":  fields,
	}
	respBody, status, err := c.do(ctx, http.MethodPut, "/internal/entities/"+entityType, payload)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("apply %s: unexpected status %d", entityType, status)
	}
	var parsed struct {
		LocalID string `json:"localId"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.LocalID == "" {
		return "", fmt.Errorf("apply %s: response missing local id", entityType)
	}
	return parsed.LocalID, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return respBody, resp.StatusCode, nil
}
