package application

import (
	"context"
	"fmt"
	"net/url"

	"github.com/manorfm/connectM/internal/domain"
	"go.uber.org/zap"
)

const (
	paramCode             = "code"
	paramState            = "state"
	paramError            = "error"
	paramErrorDescription = "error_description"
)

// OAuth2Flow runs the OAuth2 authorization code grant
type OAuth2Flow struct {
	logger *zap.Logger
}

// NewOAuth2Flow creates a new OAuth2Flow
func NewOAuth2Flow(logger *zap.Logger) *OAuth2Flow {
	return &OAuth2Flow{logger: logger}
}

// Initiate returns the provider authorization URL
func (f *OAuth2Flow) Initiate(factory domain.OAuth2ConnectionFactory, callbackURL string, scopes []string, state string, params url.Values) string {
	return factory.AuthorizeURL(callbackURL, scopes, state, params)
}

// Complete exchanges the authorization code and builds the connection
func (f *OAuth2Flow) Complete(ctx context.Context, factory domain.OAuth2ConnectionFactory, callbackURL string, callback domain.CallbackParams) (*domain.Connection, error) {
	if reason := callback.Get(paramError); reason != "" {
		if description := callback.Get(paramErrorDescription); description != "" {
			reason = reason + ": " + description
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrAuthorizationDenied, reason)
	}

	code := callback.Get(paramCode)
	if code == "" {
		return nil, fmt.Errorf("%w: callback has no %s", domain.ErrInvalidCallback, paramCode)
	}

	creds, err := factory.ExchangeForAccess(ctx, code, callbackURL)
	if err != nil {
		f.logger.Error("Failed to exchange authorization code",
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

	return domain.NewConnection(factory.ProviderID(), profile, *creds)
}
