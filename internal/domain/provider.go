package domain

import (
	"context"
	"net/http"
	"net/url"
)

// APIKind tags the API binding a factory produces. Interceptors are routed by it.
type APIKind string

// Protocol is the authorization protocol a provider speaks
type Protocol string

const (
	ProtocolOAuth1 Protocol = "oauth1"
	ProtocolOAuth2 Protocol = "oauth2"
)

// ConnectionFactory knows how to connect a user to one provider
type ConnectionFactory interface {
	ProviderID() string
	APIKind() APIKind
	Protocol() Protocol

	// FetchProfile loads the provider profile of the account that owns creds
	FetchProfile(ctx context.Context, creds Credentials) (*UserProfile, error)
}

// RequestToken is an unauthorized OAuth1 request token
type RequestToken struct {
	Value  string `json:"value"`
	Secret string `json:"secret"`
}

// OAuth1ConnectionFactory drives the OAuth1 request-token handshake
type OAuth1ConnectionFactory interface {
	ConnectionFactory

	// FetchRequestToken obtains an unauthorized request token bound to callbackURL
	FetchRequestToken(ctx context.Context, callbackURL string, params url.Values) (*RequestToken, error)

	// AuthorizeURL returns the provider page where the user authorizes token
	AuthorizeURL(token *RequestToken, callbackURL string, params url.Values) string

	// ExchangeForAccess trades an authorized request token and its verifier for access credentials
	ExchangeForAccess(ctx context.Context, token *RequestToken, verifier string) (*Credentials, error)
}

// OAuth2ConnectionFactory drives the OAuth2 authorization code grant
type OAuth2ConnectionFactory interface {
	ConnectionFactory

	// AuthorizeURL returns the provider page where the user grants access
	AuthorizeURL(redirectURI string, scopes []string, state string, params url.Values) string

	// ExchangeForAccess trades an authorization code for access credentials
	ExchangeForAccess(ctx context.Context, code, redirectURI string) (*Credentials, error)

	// Refresh obtains fresh credentials from a refresh token
	Refresh(ctx context.Context, creds Credentials) (*Credentials, error)
}

// RequestSigner authorizes outgoing provider requests with stored credentials
type RequestSigner interface {
	Sign(req *http.Request, creds Credentials) error
}

// StateCodec issues and verifies the OAuth2 state parameter
type StateCodec interface {
	Issue(userID, providerID string) (string, error)
	Verify(state, userID, providerID string) error
}

// TokenSealer encrypts credentials before they are stored
type TokenSealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}
