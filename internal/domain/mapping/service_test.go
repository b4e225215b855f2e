package mapping

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/exp/slog"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetByLocal(ctx context.Context, tenantID, provider, entityType, localID string) (*Mapping, error) {
	args := m.Called(ctx, tenantID, provider, entityType, localID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Mapping), args.Error(1)
}

func (m *MockRepository) GetByRemote(ctx context.Context, tenantID, provider, entityType, remoteID string) (*Mapping, error) {
	args := m.Called(ctx, tenantID, provider, entityType, remoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Mapping), args.Error(1)
}

func (m *MockRepository) Upsert(ctx context.Context, mp *Mapping) error {
	args := m.Called(ctx, mp)
	return args.Error(0)
}

func (m *MockRepository) TouchInbound(ctx context.Context, tenantID, provider, entityType, localID string, remoteModifiedAt, at time.Time) error {
	args := m.Called(ctx, tenantID, provider, entityType, localID, remoteModifiedAt, at)
	return args.Error(0)
}

func (m *MockRepository) SetSyncError(ctx context.Context, tenantID, provider, entityType, localID, syncError string) error {
	args := m.Called(ctx, tenantID, provider, entityType, localID, syncError)
	return args.Error(0)
}

func TestService_Upsert_Validation(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	err := service.Upsert(context.Background(), &Mapping{
		TenantID: "t1", Provider: "hubspot", EntityType: "deal", LocalID: "d-1",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
	mockRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestService_Upsert_DefaultsLastSyncedAt(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	mockRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(m *Mapping) bool {
		return !m.LastSyncedAt.IsZero()
	})).Return(nil)

	err := service.Upsert(context.Background(), &Mapping{
		TenantID: "t1", Provider: "hubspot", EntityType: "deal",
		LocalID: "d-1", RemoteID: "r-9",
	})
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestService_InEchoWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	window := 10 * time.Second

	tests := []struct {
		name          string
		lastInboundAt time.Time
		repoErr       error
		want          bool
		wantErr       bool
	}{
		{
			name:          "inbound just applied",
			lastInboundAt: now.Add(-2 * time.Second),
			want:          true,
		},
		{
			name:          "inbound outside window",
			lastInboundAt: now.Add(-time.Minute),
			want:          false,
		},
		{
			name:          "no inbound recorded",
			lastInboundAt: time.Time{},
			want:          false,
		},
		{
			name:    "no mapping at all",
			repoErr: ErrNotFound,
			want:    false,
		},
		{
			name:    "repository failure propagates",
			repoErr: errors.New("db down"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			service := NewService(mockRepo, slog.Default())
			service.now = func() time.Time { return now }

			if tt.repoErr != nil {
				mockRepo.On("GetByLocal", mock.Anything, "t1", "hubspot", "contact", "c-1").
					Return(nil, tt.repoErr)
			} else {
				mockRepo.On("GetByLocal", mock.Anything, "t1", "hubspot", "contact", "c-1").
					Return(&Mapping{LastInboundAt: tt.lastInboundAt}, nil)
			}

			got, err := service.InEchoWindow(context.Background(), "t1", "hubspot", "contact", "c-1", window)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_MarkInbound(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	remoteModified := now.Add(-time.Second)

	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())
	service.now = func() time.Time { return now }

	mockRepo.On("TouchInbound", mock.Anything, "t1", "hubspot", "contact", "c-1", remoteModified, now).Return(nil)

	err := service.MarkInbound(context.Background(), "t1", "hubspot", "contact", "c-1", remoteModified)
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestService_ResolveLocal_RequiresID(t *testing.T) {
	service := NewService(new(MockRepository), slog.Default())

	_, err := service.ResolveLocal(context.Background(), "t1", "hubspot", "contact", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
