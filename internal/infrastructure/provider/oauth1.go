package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/garyburd/go-oauth/oauth"
	"github.com/manorfm/connectM/internal/domain"
	"go.uber.org/zap"
)

// OAuth1Config configures an OAuth 1.0a provider
type OAuth1Config struct {
	ProviderID      string
	APIKind         domain.APIKind
	ConsumerKey     string
	ConsumerSecret  string
	RequestTokenURL string
	AuthorizeURL    string
	AccessTokenURL  string
	Profile         ProfileMapping
}

// OAuth1Factory connects users to an OAuth 1.0a provider
type OAuth1Factory struct {
	cfg        OAuth1Config
	client     *oauth.Client
	httpClient *http.Client
	profiles   *ProfileFetcher
	logger     *zap.Logger
}

// NewOAuth1Factory creates a new OAuth1Factory
func NewOAuth1Factory(cfg OAuth1Config, httpClient *http.Client, logger *zap.Logger) *OAuth1Factory {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	client := &oauth.Client{
		Credentials: oauth.Credentials{
			Token:  cfg.ConsumerKey,
			Secret: cfg.ConsumerSecret,
		},
		TemporaryCredentialRequestURI: cfg.RequestTokenURL,
		ResourceOwnerAuthorizationURI: cfg.AuthorizeURL,
		TokenRequestURI:               cfg.AccessTokenURL,
	}

	return &OAuth1Factory{
		cfg:        cfg,
		client:     client,
		httpClient: httpClient,
		profiles:   NewProfileFetcher(cfg.Profile, NewOAuth1Signer(client), httpClient),
		logger:     logger,
	}
}

func (f *OAuth1Factory) ProviderID() string { return f.cfg.ProviderID }

func (f *OAuth1Factory) APIKind() domain.APIKind { return f.cfg.APIKind }

func (f *OAuth1Factory) Protocol() domain.Protocol { return domain.ProtocolOAuth1 }

// FetchRequestToken obtains temporary credentials bound to callbackURL
func (f *OAuth1Factory) FetchRequestToken(ctx context.Context, callbackURL string, params url.Values) (*domain.RequestToken, error) {
	creds, err := f.client.RequestTemporaryCredentialsContext(f.withClient(ctx), callbackURL, params)
	if err != nil {
		f.logger.Warn("Request token fetch failed",
			zap.String("provider", f.cfg.ProviderID),
			zap.Error(err))
		return nil, oauth1Error(err, domain.ErrProviderUnavailable)
	}

	return &domain.RequestToken{Value: creds.Token, Secret: creds.Secret}, nil
}

// AuthorizeURL returns the authorization page for token. The callback is
// repeated as oauth_callback for providers still on OAuth 1.0.
func (f *OAuth1Factory) AuthorizeURL(token *domain.RequestToken, callbackURL string, params url.Values) string {
	extra := url.Values{}
	for key, values := range params {
		extra[key] = append([]string(nil), values...)
	}
	if callbackURL != "" {
		extra.Set("oauth_callback", callbackURL)
	}

	return f.client.AuthorizationURL(&oauth.Credentials{Token: token.Value, Secret: token.Secret}, extra)
}

// ExchangeForAccess trades the authorized request token and verifier for access credentials
func (f *OAuth1Factory) ExchangeForAccess(ctx context.Context, token *domain.RequestToken, verifier string) (*domain.Credentials, error) {
	temp := &oauth.Credentials{Token: token.Value, Secret: token.Secret}

	creds, _, err := f.client.RequestTokenContext(f.withClient(ctx), temp, verifier)
	if err != nil {
		f.logger.Warn("Access token exchange failed",
			zap.String("provider", f.cfg.ProviderID),
			zap.Error(err))
		return nil, oauth1Error(err, domain.ErrTokenExchange)
	}

	return &domain.Credentials{AccessToken: creds.Token, Secret: creds.Secret}, nil
}

// FetchProfile loads the profile of the account owning creds
func (f *OAuth1Factory) FetchProfile(ctx context.Context, creds domain.Credentials) (*domain.UserProfile, error) {
	return f.profiles.Fetch(ctx, creds)
}

func (f *OAuth1Factory) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth.HTTPClient, f.httpClient)
}

// oauth1Error maps transport failures to ErrProviderUnavailable and
// rejected requests to rejected
func oauth1Error(err error, rejected error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	var tokenErr oauth.RequestCredentialsError
	if errors.As(err, &tokenErr) && tokenErr.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	return fmt.Errorf("%w: %v", rejected, err)
}
