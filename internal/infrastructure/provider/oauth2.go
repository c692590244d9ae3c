package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/manorfm/connectM/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// OAuth2Config configures an OAuth 2.0 provider
type OAuth2Config struct {
	ProviderID   string
	APIKind      domain.APIKind
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	Scopes       []string
	Profile      ProfileMapping
}

// OAuth2Factory connects users to an OAuth 2.0 provider with the authorization code grant
type OAuth2Factory struct {
	cfg        OAuth2Config
	httpClient *http.Client
	profiles   *ProfileFetcher
	logger     *zap.Logger
}

// NewOAuth2Factory creates a new OAuth2Factory
func NewOAuth2Factory(cfg OAuth2Config, httpClient *http.Client, logger *zap.Logger) *OAuth2Factory {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OAuth2Factory{
		cfg:        cfg,
		httpClient: httpClient,
		profiles:   NewProfileFetcher(cfg.Profile, BearerSigner{}, httpClient),
		logger:     logger,
	}
}

func (f *OAuth2Factory) ProviderID() string { return f.cfg.ProviderID }

func (f *OAuth2Factory) APIKind() domain.APIKind { return f.cfg.APIKind }

func (f *OAuth2Factory) Protocol() domain.Protocol { return domain.ProtocolOAuth2 }

// AuthorizeURL returns the authorization endpoint URL. Configured scopes are
// used when scopes is empty.
func (f *OAuth2Factory) AuthorizeURL(redirectURI string, scopes []string, state string, params url.Values) string {
	cfg := f.oauth2Config(redirectURI)
	if len(scopes) > 0 {
		cfg.Scopes = scopes
	}

	var opts []oauth2.AuthCodeOption
	for key, values := range params {
		if len(values) > 0 {
			opts = append(opts, oauth2.SetAuthURLParam(key, values[0]))
		}
	}

	return cfg.AuthCodeURL(state, opts...)
}

// ExchangeForAccess trades an authorization code for access credentials
func (f *OAuth2Factory) ExchangeForAccess(ctx context.Context, code, redirectURI string) (*domain.Credentials, error) {
	cfg := f.oauth2Config(redirectURI)

	token, err := cfg.Exchange(f.withClient(ctx), code)
	if err != nil {
		f.logger.Warn("Authorization code exchange failed",
			zap.String("provider", f.cfg.ProviderID),
			zap.Error(err))
		return nil, oauth2Error(err)
	}

	return credentialsFromToken(token, ""), nil
}

// Refresh obtains new credentials with the refresh token of creds
func (f *OAuth2Factory) Refresh(ctx context.Context, creds domain.Credentials) (*domain.Credentials, error) {
	if creds.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", domain.ErrTokenExchange)
	}

	cfg := f.oauth2Config("")
	expired := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		Expiry:       time.Unix(1, 0),
	}

	token, err := cfg.TokenSource(f.withClient(ctx), expired).Token()
	if err != nil {
		f.logger.Warn("Token refresh failed",
			zap.String("provider", f.cfg.ProviderID),
			zap.Error(err))
		return nil, oauth2Error(err)
	}

	return credentialsFromToken(token, creds.RefreshToken), nil
}

// FetchProfile loads the profile of the account owning creds
func (f *OAuth2Factory) FetchProfile(ctx context.Context, creds domain.Credentials) (*domain.UserProfile, error) {
	return f.profiles.Fetch(ctx, creds)
}

func (f *OAuth2Factory) oauth2Config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     f.cfg.ClientID,
		ClientSecret: f.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  f.cfg.AuthorizeURL,
			TokenURL: f.cfg.TokenURL,
		},
		RedirectURL: redirectURI,
		Scopes:      append([]string(nil), f.cfg.Scopes...),
	}
}

func (f *OAuth2Factory) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
}

func credentialsFromToken(token *oauth2.Token, previousRefresh string) *domain.Credentials {
	creds := &domain.Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = previousRefresh
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		creds.ExpiresAt = &expiry
	}
	return creds
}

// oauth2Error maps token endpoint rejections to ErrTokenExchange and
// everything else to ErrProviderUnavailable
func oauth2Error(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		return fmt.Errorf("%w: %v", domain.ErrTokenExchange, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
}
