package provider

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/garyburd/go-oauth/oauth"
	"github.com/manorfm/connectM/internal/domain"
	"golang.org/x/oauth2"
)

// OAuth1Signer signs requests with the OAuth1 HMAC-SHA1 Authorization header.
// Query parameters of the request URL are part of the signature base string.
type OAuth1Signer struct {
	client *oauth.Client
}

// NewOAuth1Signer creates a signer using the consumer credentials of client
func NewOAuth1Signer(client *oauth.Client) *OAuth1Signer {
	return &OAuth1Signer{client: client}
}

// Sign adds the Authorization header for creds to req
func (s *OAuth1Signer) Sign(req *http.Request, creds domain.Credentials) error {
	if creds.AccessToken == "" {
		return fmt.Errorf("%w: missing access token", domain.ErrTokenExchange)
	}

	token := &oauth.Credentials{Token: creds.AccessToken, Secret: creds.Secret}
	if err := s.client.SetAuthorizationHeader(req.Header, token, req.Method, req.URL, nil); err != nil {
		return fmt.Errorf("%w: signing request: %v", domain.ErrInternal, err)
	}
	return nil
}

// BearerSigner authorizes requests with an OAuth2 bearer token
type BearerSigner struct{}

// Sign adds the bearer Authorization header for creds to req
func (BearerSigner) Sign(req *http.Request, creds domain.Credentials) error {
	if creds.AccessToken == "" {
		return fmt.Errorf("%w: missing access token", domain.ErrTokenExchange)
	}

	token := &oauth2.Token{AccessToken: creds.AccessToken, TokenType: "Bearer"}
	token.SetAuthHeader(req)
	return nil
}

// ParseQueryParameters returns the query parameters of rawURL, keeping the
// first value of repeated keys
func ParseQueryParameters(rawURL string) (map[string]string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	values, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, err
	}

	params := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			params[key] = vals[0]
		}
	}
	return params, nil
}
