package credential

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
	"golang.org/x/oauth2"

	"crmsync/internal/domain/connection"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Get(ctx context.Context, tenantID, provider string) (*Credential, error) {
	args := m.Called(ctx, tenantID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Credential), args.Error(1)
}

func (m *MockRepository) Upsert(ctx context.Context, c *Credential) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockRepository) ReplaceIfVersion(ctx context.Context, c *Credential, expectedVersion int) (bool, error) {
	args := m.Called(ctx, c, expectedVersion)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, tenantID, provider string) error {
	args := m.Called(ctx, tenantID, provider)
	return args.Error(0)
}

// MockExchanger mocks the OAuth round trips
type MockExchanger struct {
	mock.Mock
}

func (m *MockExchanger) ExchangeCode(ctx context.Context, provider, code string) (*oauth2.Token, error) {
	args := m.Called(ctx, provider, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth2.Token), args.Error(1)
}

func (m *MockExchanger) Refresh(ctx context.Context, provider, refreshToken string) (*oauth2.Token, error) {
	args := m.Called(ctx, provider, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth2.Token), args.Error(1)
}

// MockConnections mocks connection.Servicer; only MarkAuthFailed matters here
type MockConnections struct {
	mock.Mock
}

func (m *MockConnections) MarkAuthFailed(ctx context.Context, tenantID, provider string) error {
	args := m.Called(ctx, tenantID, provider)
	return args.Error(0)
}

// connStub adapts MockConnections to the full connection.Servicer surface;
// only MarkAuthFailed is reachable from this package.
type connStub struct {
	mock *MockConnections
}

func (c connStub) Complete(ctx context.Context, tenantID, provider, remoteAccountID string) (*connection.Connection, error) {
	return nil, nil
}

func (c connStub) Active(ctx context.Context, tenantID, provider string) (*connection.Connection, error) {
	return nil, nil
}

func (c connStub) ByRoutingToken(ctx context.Context, provider, routingToken string) (*connection.Connection, error) {
	return nil, nil
}

func (c connStub) List(ctx context.Context, tenantID string) ([]connection.Connection, error) {
	return nil, nil
}

func (c connStub) Disconnect(ctx context.Context, tenantID, provider string) error {
	return nil
}

func (c connStub) MarkAuthFailed(ctx context.Context, tenantID, provider string) error {
	return c.mock.MarkAuthFailed(ctx, tenantID, provider)
}

func (c connStub) TouchLastSync(ctx context.Context, tenantID, provider string) error {
	return nil
}

func newTestService(repo Repository, ex Exchanger, conns *MockConnections) *Service {
	return &Service{
		repo:        repo,
		exchanger:   ex,
		connections: connStub{conns},
		log:         slog.Default(),
		now:         time.Now,
		locks:       make(map[string]*sync.Mutex),
	}
}

func TestService_GetValidToken_FreshTokenNoRefresh(t *testing.T) {
	mockRepo := new(MockRepository)
	mockEx := new(MockExchanger)
	service := newTestService(mockRepo, mockEx, new(MockConnections))

	mockRepo.On("Get", mock.Anything, "t1", "hubspot").Return(&Credential{
		AccessToken: "tok-live",
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil)

	token, err := service.GetValidToken(context.Background(), "t1", "hubspot")
	require.NoError(t, err)
	assert.Equal(t, "tok-live", token)
	mockEx.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_GetValidToken_ExpiredRefreshesTransparently(t *testing.T) {
	mockRepo := new(MockRepository)
	mockEx := new(MockExchanger)
	service := newTestService(mockRepo, mockEx, new(MockConnections))

	stale := &Credential{
		TenantID: "t1", Provider: "hubspot",
		AccessToken: "tok-stale", RefreshToken: "rt-1",
		ExpiresAt: time.Now().Add(-time.Minute),
		Version:   3,
	}
	mockRepo.On("Get", mock.Anything, "t1", "hubspot").Return(stale, nil)
	mockEx.On("Refresh", mock.Anything, "hubspot", "rt-1").Return(&oauth2.Token{
		AccessToken:  "tok-new",
		RefreshToken: "rt-2",
		Expiry:       time.Now().Add(time.Hour),
	}, nil)
	mockRepo.On("ReplaceIfVersion", mock.Anything, mock.MatchedBy(func(c *Credential) bool {
		return c.AccessToken == "tok-new" && c.RefreshToken == "rt-2"
	}), 3).Return(true, nil)

	token, err := service.GetValidToken(context.Background(), "t1", "hubspot")
	require.NoError(t, err)
	assert.Equal(t, "tok-new", token)
	mockRepo.AssertExpectations(t)
	mockEx.AssertExpectations(t)
}

func TestService_GetValidToken_ExpiringSoonRefreshes(t *testing.T) {
	mockRepo := new(MockRepository)
	mockEx := new(MockExchanger)
	service := newTestService(mockRepo, mockEx, new(MockConnections))

	// Still valid, but inside the safety margin.
	almost := &Credential{
		TenantID: "t1", Provider: "hubspot",
		AccessToken: "tok-stale", RefreshToken: "rt-1",
		ExpiresAt: time.Now().Add(time.Minute),
	}
	mockRepo.On("Get", mock.Anything, "t1", "hubspot").Return(almost, nil)
	mockEx.On("Refresh", mock.Anything, "hubspot", "rt-1").Return(&oauth2.Token{
		AccessToken: "tok-new",
		Expiry:      time.Now().Add(time.Hour),
	}, nil)
	mockRepo.On("ReplaceIfVersion", mock.Anything, mock.Anything, 0).Return(true, nil)

	token, err := service.GetValidToken(context.Background(), "t1", "hubspot")
	require.NoError(t, err)
	assert.Equal(t, "tok-new", token)
}

func TestService_GetValidToken_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	mockRepo := new(MockRepository)
	mockEx := new(MockExchanger)
	service := newTestService(mockRepo, mockEx, new(MockConnections))

	stale := &Credential{
		TenantID: "t1", Provider: "hubspot",
		AccessToken: "tok-stale", RefreshToken: "rt-keep",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	mockRepo.On("Get", mock.Anything, "t1", "hubspot").Return(stale, nil)
	mockEx.On("Refresh", mock.Anything, "hubspot", "rt-keep").Return(&oauth2.Token{
		AccessToken: "tok-new",
		Expiry:      time.Now().Add(time.Hour),
	}, nil)
	mockRepo.On("ReplaceIfVersion", mock.Anything, mock.MatchedBy(func(c *Credential) bool {
		return c.RefreshToken == "rt-keep"
	}), 0).Return(true, nil)

	_, err := service.GetValidToken(context.Background(), "t1", "hubspot")
	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestService_GetValidToken_VersionRaceLoserReReads(t *testing.T) {
	mockRepo := new(MockRepository)
	mockEx := new(MockExchanger)
	service := newTestService(mockRepo, mockEx, new(MockConnections))

	stale := &Credential{
		TenantID: "t1", Provider: "hubspot",
		AccessToken: "tok-stale", RefreshToken: "rt-1",
		ExpiresAt: time.Now().Add(-time.Minute),
		Version:   3,
	}
	winner := &Credential{
		AccessToken: "tok-winner",
		ExpiresAt:   time.Now().Add(time.Hour),
		Version:     4,
	}

	// First two Gets observe the stale row, the post-race re-read sees the
	// winner's credential.
	mockRepo.On("Get", mock.Anything, "t1", "hubspot").Return(stale, nil).Twice()
	mockEx.On("Refresh", mock.Anything, "hubspot", "rt-1").Return(&oauth2.Token{
		AccessToken: "tok-loser",
		Expiry:      time.Now().Add(time.Hour),
	}, nil)
	mockRepo.On("ReplaceIfVersion", mock.Anything, mock.Anything, 3).Return(false, nil)
	mockRepo.On("Get", mock.Anything, "t1", "hubspot").Return(winner, nil).Once()

	token, err := service.GetValidToken(context.Background(), "t1", "hubspot")
	require.NoError(t, err)
	assert.Equal(t, "tok-winner", token)
}

func TestService_GetValidToken_RevokedRefreshDisconnects(t *testing.T) {
	mockRepo := new(MockRepository)
	mockEx := new(MockExchanger)
	mockConns := new(MockConnections)
	service := newTestService(mockRepo, mockEx, mockConns)

	stale := &Credential{
		TenantID: "t1", Provider: "hubspot",
		AccessToken: "tok-stale", RefreshToken: "rt-dead",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	mockRepo.On("Get", mock.Anything, "t1", "hubspot").Return(stale, nil)
	mockEx.On("Refresh", mock.Anything, "hubspot", "rt-dead").Return(nil, &oauth2.RetrieveError{
		Response: &http.Response{StatusCode: http.StatusBadRequest},
	})
	mockConns.On("MarkAuthFailed", mock.Anything, "t1", "hubspot").Return(nil)
	// The revoked credential row is removed so the dead exchange cannot recur.
	mockRepo.On("Delete", mock.Anything, "t1", "hubspot").Return(nil)

	_, err := service.GetValidToken(context.Background(), "t1", "hubspot")
	assert.ErrorIs(t, err, ErrAuthRevoked)
	mockConns.AssertExpectations(t)
	mockRepo.AssertExpectations(t)
}

func TestService_GetValidToken_TransientRefreshFailureIsNotRevocation(t *testing.T) {
	mockRepo := new(MockRepository)
	mockEx := new(MockExchanger)
	mockConns := new(MockConnections)
	service := newTestService(mockRepo, mockEx, mockConns)

	stale := &Credential{
		TenantID: "t1", Provider: "hubspot",
		AccessToken: "tok-stale", RefreshToken: "rt-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	mockRepo.On("Get", mock.Anything, "t1", "hubspot").Return(stale, nil)
	mockEx.On("Refresh", mock.Anything, "hubspot", "rt-1").Return(nil, errors.New("connection reset"))

	_, err := service.GetValidToken(context.Background(), "t1", "hubspot")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthRevoked)
	mockConns.AssertNotCalled(t, "MarkAuthFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Connect_StoresWholesale(t *testing.T) {
	mockRepo := new(MockRepository)
	mockEx := new(MockExchanger)
	service := newTestService(mockRepo, mockEx, new(MockConnections))

	expiry := time.Now().Add(30 * time.Minute)
	mockEx.On("ExchangeCode", mock.Anything, "hubspot", "code-1").Return(&oauth2.Token{
		AccessToken:  "tok-1",
		RefreshToken: "rt-1",
		Expiry:       expiry,
	}, nil)
	mockRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(c *Credential) bool {
		return c.TenantID == "t1" && c.Provider == "hubspot" &&
			c.AccessToken == "tok-1" && c.RefreshToken == "rt-1" && c.ExpiresAt.Equal(expiry)
	})).Return(nil)

	tok, err := service.Connect(context.Background(), "t1", "hubspot", "code-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.AccessToken)
	mockRepo.AssertExpectations(t)
}
