package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Enqueue(ctx context.Context, p EnqueueParams) (int64, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) Claim(ctx context.Context, limit int, tenantID string) ([]Job, error) {
	args := m.Called(ctx, limit, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Job), args.Error(1)
}

func (m *MockRepository) Reinsert(ctx context.Context, job Job) (int64, error) {
	args := m.Called(ctx, job)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) InsertDeadLetter(ctx context.Context, dl DeadLetter) (int64, error) {
	args := m.Called(ctx, dl)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) AbandonTenant(ctx context.Context, tenantID, provider string, reason DeadLetterReason) (int, error) {
	args := m.Called(ctx, tenantID, provider, reason)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) CountDeadLetters(ctx context.Context, tenantID string) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) ListDeadLetters(ctx context.Context, tenantID string, limit int) ([]DeadLetter, error) {
	args := m.Called(ctx, tenantID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]DeadLetter), args.Error(1)
}

func (m *MockRepository) GetDeadLetter(ctx context.Context, id int64) (*DeadLetter, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DeadLetter), args.Error(1)
}

func (m *MockRepository) DeleteDeadLetter(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestService(repo Repository) *Service {
	return NewService(repo, slog.Default(), nil)
}

func TestService_Enqueue_Defaults(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	mockRepo.On("Enqueue", mock.Anything, mock.MatchedBy(func(p EnqueueParams) bool {
		return p.MaxAttempts == DefaultMaxAttempts && !p.NotBefore.IsZero()
	})).Return(int64(42), nil)

	id, err := service.Enqueue(context.Background(), EnqueueParams{
		TenantID: "t1",
		Provider: "hubspot",
		Type:     JobTypeSyncContact,
		Payload:  json.RawMessage(`{"localId":"c-1"}`),
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(42), id)

	mockRepo.AssertExpectations(t)
}

func TestService_Enqueue_Validation(t *testing.T) {
	tests := []struct {
		name   string
		params EnqueueParams
	}{
		{
			name:   "missing tenant",
			params: EnqueueParams{Provider: "hubspot", Type: JobTypeSyncDeal},
		},
		{
			name:   "missing provider",
			params: EnqueueParams{TenantID: "t1", Type: JobTypeSyncDeal},
		},
		{
			name:   "unknown job type",
			params: EnqueueParams{TenantID: "t1", Provider: "hubspot", Type: JobType("sync-unknown")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			service := newTestService(mockRepo)

			_, err := service.Enqueue(context.Background(), tt.params)
			assert.ErrorIs(t, err, ErrInvalidInput)
			mockRepo.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
		})
	}
}

func TestService_Claim_ClampsLimit(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{name: "zero becomes one", limit: 0, wantLimit: 1},
		{name: "negative becomes one", limit: -5, wantLimit: 1},
		{name: "within range", limit: 10, wantLimit: 10},
		{name: "above max clamped", limit: 500, wantLimit: claimLimitMax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			service := newTestService(mockRepo)

			mockRepo.On("Claim", mock.Anything, tt.wantLimit, "").Return([]Job{}, nil)

			_, err := service.Claim(context.Background(), tt.limit, "")
			assert.NoError(t, err)
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestService_Retry_Reinserts(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	before := time.Now()
	job := Job{
		ID:          7,
		TenantID:    "t1",
		Provider:    "hubspot",
		Type:        JobTypeSyncDeal,
		Attempts:    2,
		MaxAttempts: 10,
	}

	mockRepo.On("Reinsert", mock.Anything, mock.MatchedBy(func(j Job) bool {
		return j.Attempts == 3 && j.NotBefore.After(before) && j.LastError == "boom"
	})).Return(int64(7), nil)

	err := service.Retry(context.Background(), job, errors.New("boom"))
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "InsertDeadLetter", mock.Anything, mock.Anything)
}

func TestService_RetryWithDelay_HonorsProviderHint(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	before := time.Now()
	job := Job{
		ID:          7,
		TenantID:    "t1",
		Provider:    "hubspot",
		Type:        JobTypeSyncDeal,
		Attempts:    0,
		MaxAttempts: 10,
	}

	// The first backoff step is ~30s; a 10-minute hint must win.
	mockRepo.On("Reinsert", mock.Anything, mock.MatchedBy(func(j Job) bool {
		return !j.NotBefore.Before(before.Add(10 * time.Minute))
	})).Return(int64(7), nil)

	err := service.RetryWithDelay(context.Background(), job, 10*time.Minute, errors.New("rate limited"))
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestService_RetryWithDelay_ShortHintKeepsBackoff(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default(), &ServiceConfig{BackoffBase: time.Minute})
	service.config.Jitter = 0

	before := time.Now()
	job := Job{ID: 8, TenantID: "t1", Provider: "hubspot", Type: JobTypeSyncDeal, MaxAttempts: 10}

	// A hint below the backoff curve must not shorten the delay.
	mockRepo.On("Reinsert", mock.Anything, mock.MatchedBy(func(j Job) bool {
		return !j.NotBefore.Before(before.Add(time.Minute))
	})).Return(int64(8), nil)

	err := service.RetryWithDelay(context.Background(), job, time.Second, errors.New("rate limited"))
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestService_Retry_ExhaustedGoesToDeadLetter(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	job := Job{
		ID:          7,
		TenantID:    "t1",
		Provider:    "hubspot",
		Type:        JobTypeSyncDeal,
		Attempts:    9,
		MaxAttempts: 10,
	}

	mockRepo.On("InsertDeadLetter", mock.Anything, mock.MatchedBy(func(dl DeadLetter) bool {
		return dl.JobID == 7 && dl.Reason == ReasonExhausted && dl.Attempts == 10 && dl.LastError == "still down"
	})).Return(int64(1), nil)

	err := service.Retry(context.Background(), job, errors.New("still down"))
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "Reinsert", mock.Anything, mock.Anything)
}

func TestService_Fail_WritesDeadLetter(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	job := Job{ID: 3, TenantID: "t1", Provider: "hubspot", Type: JobTypePushQuote, Attempts: 1}

	mockRepo.On("InsertDeadLetter", mock.Anything, mock.MatchedBy(func(dl DeadLetter) bool {
		return dl.Reason == ReasonValidation && dl.LastError == "bad payload"
	})).Return(int64(9), nil)

	err := service.Fail(context.Background(), job, ReasonValidation, errors.New("bad payload"))
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestService_Backoff_Monotonic(t *testing.T) {
	service := newTestService(new(MockRepository))

	prev := time.Duration(0)
	for attempt := 1; attempt <= 12; attempt++ {
		delay := service.Backoff(attempt)
		if delay >= service.config.BackoffCap {
			assert.Equal(t, service.config.BackoffCap, delay)
			break
		}
		assert.Greater(t, delay, prev, "attempt %d must back off strictly later", attempt)
		prev = delay
	}
}

func TestService_Backoff_Capped(t *testing.T) {
	service := NewService(new(MockRepository), slog.Default(), &ServiceConfig{
		BackoffBase: time.Second,
		BackoffCap:  8 * time.Second,
	})

	assert.Equal(t, 8*time.Second, service.Backoff(4))
	assert.Equal(t, 8*time.Second, service.Backoff(40))
}

func TestService_Abandon(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	mockRepo.On("AbandonTenant", mock.Anything, "t1", "hubspot", ReasonDisconnected).Return(4, nil)

	n, err := service.Abandon(context.Background(), "t1", "hubspot", ReasonDisconnected)
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	mockRepo.AssertExpectations(t)
}

func TestService_Replay(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	dl := &DeadLetter{
		ID:       11,
		JobID:    7,
		TenantID: "t1",
		Provider: "hubspot",
		Type:     JobTypeSyncContact,
		Payload:  json.RawMessage(`{"localId":"c-1"}`),
	}

	mockRepo.On("GetDeadLetter", mock.Anything, int64(11)).Return(dl, nil)
	mockRepo.On("Enqueue", mock.Anything, mock.MatchedBy(func(p EnqueueParams) bool {
		return p.TenantID == "t1" && p.Type == JobTypeSyncContact && p.MaxAttempts == DefaultMaxAttempts
	})).Return(int64(99), nil)
	mockRepo.On("DeleteDeadLetter", mock.Anything, int64(11)).Return(nil)

	id, err := service.Replay(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, int64(99), id)
	mockRepo.AssertExpectations(t)
}
