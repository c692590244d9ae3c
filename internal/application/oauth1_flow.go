package application

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/manorfm/connectM/internal/domain"
	"go.uber.org/zap"
)

const (
	paramOAuthToken    = "oauth_token"
	paramOAuthVerifier = "oauth_verifier"
)

// OAuth1Flow runs the OAuth1 request token handshake. It keeps no state of its
// own; the TransientAuthSession it returns must be stored by the caller.
type OAuth1Flow struct {
	sessionTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewOAuth1Flow creates a new OAuth1Flow
func NewOAuth1Flow(sessionTTL time.Duration, logger *zap.Logger) *OAuth1Flow {
	return &OAuth1Flow{
		sessionTTL: sessionTTL,
		now:        time.Now,
		logger:     logger,
	}
}

// Initiate fetches a request token and returns the provider authorization URL
// with the session that must be presented on callback
func (f *OAuth1Flow) Initiate(ctx context.Context, factory domain.OAuth1ConnectionFactory, callbackURL string, params url.Values) (string, *domain.TransientAuthSession, error) {
	session := &domain.TransientAuthSession{
		ProviderID:  factory.ProviderID(),
		CallbackURL: callbackURL,
		State:       domain.FlowNotStarted,
	}

	token, err := factory.FetchRequestToken(ctx, callbackURL, params)
	if err != nil {
		f.logger.Error("Failed to fetch request token",
			zap.String("provider_id", factory.ProviderID()),
			zap.Error(err))
		return "", nil, err
	}
	session.RequestToken = *token
	session.State = domain.FlowRequestTokenObtained

	redirectURL := factory.AuthorizeURL(token, callbackURL, params)
	session.State = domain.FlowAwaitingProviderAuthorization
	session.ExpiresAt = f.now().Add(f.sessionTTL)

	return redirectURL, session, nil
}

// Complete exchanges the verifier for access credentials and builds the connection.
// The session is consumed whether or not the exchange succeeds.
func (f *OAuth1Flow) Complete(ctx context.Context, factory domain.OAuth1ConnectionFactory, session *domain.TransientAuthSession, callback domain.CallbackParams) (*domain.Connection, error) {
	if session == nil {
		return nil, domain.ErrAuthSessionNotFound
	}
	if err := session.Consume(f.now()); err != nil {
		return nil, err
	}
	if session.ProviderID != factory.ProviderID() {
		return nil, fmt.Errorf("%w: session belongs to %s", domain.ErrAuthSessionNotFound, session.ProviderID)
	}

	verifier := callback.Get(paramOAuthVerifier)
	if verifier == "" {
		return nil, fmt.Errorf("%w: callback has no %s", domain.ErrInvalidVerifier, paramOAuthVerifier)
	}
	if token := callback.Get(paramOAuthToken); token != "" && token != session.RequestToken.Value {
		return nil, fmt.Errorf("%w: request token mismatch", domain.ErrInvalidVerifier)
	}

	creds, err := factory.ExchangeForAccess(ctx, &session.RequestToken, verifier)
	if err != nil {
		f.logger.Error("Failed to exchange request token",
			zap.String("provider_id", factory.ProviderID()),
			zap.Error(err))
		return nil, err
	}

	profile, err := factory.FetchProfile(ctx, *creds)
	if err != nil {
		f.logger.Error("Failed to fetch profile",
			zap.String("provider_id", factory.ProviderID()),
			zap.Error(err))
		return nil, err
	}

	conn, err := domain.NewConnection(factory.ProviderID(), profile, *creds)
	if err != nil {
		return nil, err
	}
	session.State = domain.FlowCompleted

	return conn, nil
}
