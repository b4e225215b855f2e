// Package provider holds the outbound clients for the external CRM/ATS
// systems. The engine never depends on a particular provider's payload
// shape: records cross this boundary as flat field maps, and errors come
// back classified so the worker can decide between retry and dead-letter.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Client is the narrow surface the sync worker uses to talk to one external
// system. Create calls carry a caller-generated external id so that a
// replayed job cannot produce a second remote record.
type Client interface {
	CreateRecord(ctx context.Context, token, entityType, externalID string, fields map[string]any) (remoteID string, err error)
	UpdateRecord(ctx context.Context, token, entityType, remoteID string, fields map[string]any) error
	FetchRecord(ctx context.Context, token, entityType, remoteID string) (map[string]any, error)
}

// Registry maps provider name to its client, built once at startup.
type Registry map[string]Client

func (r Registry) Get(name string) (Client, error) {
	c, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return c, nil
}

var ErrUnknownProvider = errors.New("unknown provider")

// RetryableError marks transient failures: timeouts, 429s, 5xx responses.
// The worker re-enqueues with backoff.
type RetryableError struct {
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("retryable provider error (status=%d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("retryable provider error (status=%d)", e.Status)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// ValidationError marks a 4xx rejection of the payload itself. Retrying an
// identical payload cannot succeed, so the worker dead-letters immediately,
// keeping the provider's response body for operator diagnosis.
type ValidationError struct {
	Status int
	Body   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("provider rejected payload (status=%d): %s", e.Status, e.Body)
}

// AuthError marks a 401/403 from the provider API with a token the refresher
// considered valid.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("provider rejected credentials (status=%d)", e.Status)
}

func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
