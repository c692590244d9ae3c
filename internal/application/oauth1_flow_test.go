package application

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/manorfm/connectM/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockOAuth1Factory is a mock implementation of domain.OAuth1ConnectionFactory
type MockOAuth1Factory struct {
	mock.Mock
	id   string
	kind domain.APIKind
}

func NewMockOAuth1Factory(id string, kind domain.APIKind) *MockOAuth1Factory {
	return &MockOAuth1Factory{id: id, kind: kind}
}

func (m *MockOAuth1Factory) ProviderID() string        { return m.id }
func (m *MockOAuth1Factory) APIKind() domain.APIKind   { return m.kind }
func (m *MockOAuth1Factory) Protocol() domain.Protocol { return domain.ProtocolOAuth1 }

func (m *MockOAuth1Factory) FetchRequestToken(ctx context.Context, callbackURL string, params url.Values) (*domain.RequestToken, error) {
	args := m.Called(ctx, callbackURL, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RequestToken), args.Error(1)
}

func (m *MockOAuth1Factory) AuthorizeURL(token *domain.RequestToken, callbackURL string, params url.Values) string {
	args := m.Called(token, callbackURL, params)
	return args.String(0)
}

func (m *MockOAuth1Factory) ExchangeForAccess(ctx context.Context, token *domain.RequestToken, verifier string) (*domain.Credentials, error) {
	args := m.Called(ctx, token, verifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Credentials), args.Error(1)
}

func (m *MockOAuth1Factory) FetchProfile(ctx context.Context, creds domain.Credentials) (*domain.UserProfile, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserProfile), args.Error(1)
}

func awaitingSession(providerID string) *domain.TransientAuthSession {
	return &domain.TransientAuthSession{
		ProviderID:   providerID,
		RequestToken: domain.RequestToken{Value: "req-token", Secret: "req-secret"},
		State:        domain.FlowAwaitingProviderAuthorization,
		ExpiresAt:    time.Now().Add(time.Minute),
	}
}

func TestOAuth1Flow_Initiate(t *testing.T) {
	tests := []struct {
		name       string
		setupMock  func(*MockOAuth1Factory)
		wantURL    string
		wantErr    error
		wantTokens domain.RequestToken
	}{
		{
			name: "success",
			setupMock: func(m *MockOAuth1Factory) {
				token := &domain.RequestToken{Value: "req-token", Secret: "req-secret"}
				m.On("FetchRequestToken", mock.Anything, "https://app/connect/twitter", mock.Anything).Return(token, nil)
				m.On("AuthorizeURL", token, "https://app/connect/twitter", mock.Anything).
					Return("https://twitter/authorize?oauth_token=req-token")
			},
			wantURL:    "https://twitter/authorize?oauth_token=req-token",
			wantTokens: domain.RequestToken{Value: "req-token", Secret: "req-secret"},
		},
		{
			name: "provider unavailable",
			setupMock: func(m *MockOAuth1Factory) {
				m.On("FetchRequestToken", mock.Anything, mock.Anything, mock.Anything).
					Return(nil, domain.ErrProviderUnavailable)
			},
			wantErr: domain.ErrProviderUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewMockOAuth1Factory("twitter", "twitter")
			tt.setupMock(factory)

			flow := NewOAuth1Flow(10*time.Minute, zap.NewNop())
			redirectURL, session, err := flow.Initiate(context.Background(), factory, "https://app/connect/twitter", url.Values{})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, session)
				factory.AssertNotCalled(t, "AuthorizeURL", mock.Anything, mock.Anything, mock.Anything)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, redirectURL)
			assert.Equal(t, tt.wantTokens, session.RequestToken)
			assert.Equal(t, domain.FlowAwaitingProviderAuthorization, session.State)
			assert.Equal(t, "twitter", session.ProviderID)
			assert.WithinDuration(t, time.Now().Add(10*time.Minute), session.ExpiresAt, 5*time.Second)
			factory.AssertExpectations(t)
		})
	}
}

func TestOAuth1Flow_Complete(t *testing.T) {
	creds := &domain.Credentials{AccessToken: "access", Secret: "secret"}

	tests := []struct {
		name      string
		callback  domain.CallbackParams
		setupMock func(*MockOAuth1Factory)
		wantErr   error
	}{
		{
			name:     "success",
			callback: domain.CallbackParams{"oauth_token": "req-token", "oauth_verifier": "verifier"},
			setupMock: func(m *MockOAuth1Factory) {
				m.On("ExchangeForAccess", mock.Anything, mock.MatchedBy(func(token *domain.RequestToken) bool {
					return token.Value == "req-token" && token.Secret == "req-secret"
				}), "verifier").Return(creds, nil)
				m.On("FetchProfile", mock.Anything, *creds).Return(&domain.UserProfile{ID: "1234", Name: "jack"}, nil)
			},
		},
		{
			name:      "missing verifier",
			callback:  domain.CallbackParams{"oauth_token": "req-token"},
			setupMock: func(m *MockOAuth1Factory) {},
			wantErr:   domain.ErrInvalidVerifier,
		},
		{
			name:      "request token mismatch",
			callback:  domain.CallbackParams{"oauth_token": "other", "oauth_verifier": "verifier"},
			setupMock: func(m *MockOAuth1Factory) {},
			wantErr:   domain.ErrInvalidVerifier,
		},
		{
			name:     "token exchange rejected",
			callback: domain.CallbackParams{"oauth_verifier": "verifier"},
			setupMock: func(m *MockOAuth1Factory) {
				m.On("ExchangeForAccess", mock.Anything, mock.Anything, "verifier").Return(nil, domain.ErrTokenExchange)
			},
			wantErr: domain.ErrTokenExchange,
		},
		{
			name:     "profile unavailable",
			callback: domain.CallbackParams{"oauth_verifier": "verifier"},
			setupMock: func(m *MockOAuth1Factory) {
				m.On("ExchangeForAccess", mock.Anything, mock.Anything, "verifier").Return(creds, nil)
				m.On("FetchProfile", mock.Anything, *creds).Return(nil, domain.ErrProviderUnavailable)
			},
			wantErr: domain.ErrProviderUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewMockOAuth1Factory("twitter", "twitter")
			tt.setupMock(factory)

			flow := NewOAuth1Flow(10*time.Minute, zap.NewNop())
			session := awaitingSession("twitter")
			conn, err := flow.Complete(context.Background(), factory, session, tt.callback)

			assert.True(t, session.Consumed())
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, conn)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, domain.ConnectionKey{ProviderID: "twitter", ProviderUserID: "1234"}, conn.Key)
			assert.Equal(t, "jack", conn.DisplayName)
			assert.Equal(t, "secret", conn.Credentials.Secret)
			assert.Equal(t, domain.FlowCompleted, session.State)
			factory.AssertExpectations(t)
		})
	}
}

func TestOAuth1Flow_CompleteTwice(t *testing.T) {
	creds := &domain.Credentials{AccessToken: "access", Secret: "secret"}
	factory := NewMockOAuth1Factory("twitter", "twitter")
	factory.On("ExchangeForAccess", mock.Anything, mock.Anything, "verifier").Return(creds, nil).Once()
	factory.On("FetchProfile", mock.Anything, *creds).Return(&domain.UserProfile{ID: "1234"}, nil).Once()

	flow := NewOAuth1Flow(10*time.Minute, zap.NewNop())
	session := awaitingSession("twitter")
	callback := domain.CallbackParams{"oauth_verifier": "verifier"}

	_, err := flow.Complete(context.Background(), factory, session, callback)
	require.NoError(t, err)

	_, err = flow.Complete(context.Background(), factory, session, callback)
	assert.ErrorIs(t, err, domain.ErrAuthSessionNotFound)
	factory.AssertExpectations(t)
}

func TestOAuth1Flow_CompleteWrongProvider(t *testing.T) {
	factory := NewMockOAuth1Factory("twitter", "twitter")
	flow := NewOAuth1Flow(10*time.Minute, zap.NewNop())

	_, err := flow.Complete(context.Background(), factory, awaitingSession("tumblr"), domain.CallbackParams{"oauth_verifier": "v"})
	assert.ErrorIs(t, err, domain.ErrAuthSessionNotFound)

	_, err = flow.Complete(context.Background(), factory, nil, domain.CallbackParams{"oauth_verifier": "v"})
	assert.ErrorIs(t, err, domain.ErrAuthSessionNotFound)
}
