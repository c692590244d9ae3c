package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/garyburd/go-oauth/oauth"
	"github.com/manorfm/connectM/internal/domain"
	"github.com/manorfm/connectM/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	requestTokenStatus int
	accessTokenStatus  int
	tokenStatus        int
	profileStatus      int
	tokenBody          map[string]interface{}
	profile            map[string]interface{}
	lastTokenForm      url.Values
	lastProfileAuth    string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		requestTokenStatus: http.StatusOK,
		accessTokenStatus:  http.StatusOK,
		tokenStatus:        http.StatusOK,
		profileStatus:      http.StatusOK,
		tokenBody: map[string]interface{}{
			"access_token":  "access-2",
			"token_type":    "bearer",
			"refresh_token": "refresh-2",
			"expires_in":    3600,
		},
		profile: map[string]interface{}{
			"id":         json.Number("42"),
			"name":       "Ann",
			"html_url":   "https://example.com/ann",
			"avatar_url": "https://example.com/ann.png",
		},
	}
}

func (p *fakeProvider) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/oauth/request_token", func(w http.ResponseWriter, r *http.Request) {
		if p.requestTokenStatus != http.StatusOK {
			w.WriteHeader(p.requestTokenStatus)
			return
		}
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		_, _ = w.Write([]byte("oauth_token=request-1&oauth_token_secret=request-secret&oauth_callback_confirmed=true"))
	})

	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if p.accessTokenStatus != http.StatusOK {
			w.WriteHeader(p.accessTokenStatus)
			return
		}
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		_, _ = w.Write([]byte("oauth_token=access-1&oauth_token_secret=access-secret"))
	})

	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		p.lastTokenForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		if p.tokenStatus != http.StatusOK {
			w.WriteHeader(p.tokenStatus)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		_ = json.NewEncoder(w).Encode(p.tokenBody)
	})

	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		p.lastProfileAuth = r.Header.Get("Authorization")
		if p.profileStatus != http.StatusOK {
			w.WriteHeader(p.profileStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p.profile)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func profileMapping(baseURL string) ProfileMapping {
	return ProfileMapping{
		URL:        baseURL + "/profile",
		IDField:    "id",
		NameField:  "name",
		LinkField:  "html_url",
		ImageField: "avatar_url",
	}
}

func newTestOAuth1Factory(baseURL string) *OAuth1Factory {
	return NewOAuth1Factory(OAuth1Config{
		ProviderID:      "twitter",
		APIKind:         "twitter",
		ConsumerKey:     "consumer-key",
		ConsumerSecret:  "consumer-secret",
		RequestTokenURL: baseURL + "/oauth/request_token",
		AuthorizeURL:    baseURL + "/oauth/authorize",
		AccessTokenURL:  baseURL + "/oauth/access_token",
		Profile:         profileMapping(baseURL),
	}, http.DefaultClient, zap.NewNop())
}

func newTestOAuth2Factory(baseURL string) *OAuth2Factory {
	return NewOAuth2Factory(OAuth2Config{
		ProviderID:   "github",
		APIKind:      "github",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthorizeURL: baseURL + "/oauth2/authorize",
		TokenURL:     baseURL + "/oauth2/token",
		Scopes:       []string{"read:user"},
		Profile:      profileMapping(baseURL),
	}, http.DefaultClient, zap.NewNop())
}

func TestOAuth1Factory_Handshake(t *testing.T) {
	fake := newFakeProvider()
	srv := fake.server(t)
	factory := newTestOAuth1Factory(srv.URL)
	ctx := context.Background()

	assert.Equal(t, domain.ProtocolOAuth1, factory.Protocol())
	assert.Equal(t, domain.APIKind("twitter"), factory.APIKind())

	token, err := factory.FetchRequestToken(ctx, "https://app/connect/twitter", nil)
	require.NoError(t, err)
	assert.Equal(t, "request-1", token.Value)
	assert.Equal(t, "request-secret", token.Secret)

	authorizeURL := factory.AuthorizeURL(token, "https://app/connect/twitter", url.Values{"force_login": {"true"}})
	params, err := ParseQueryParameters(authorizeURL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(authorizeURL, srv.URL+"/oauth/authorize?"))
	assert.Equal(t, "request-1", params["oauth_token"])
	assert.Equal(t, "https://app/connect/twitter", params["oauth_callback"])
	assert.Equal(t, "true", params["force_login"])

	creds, err := factory.ExchangeForAccess(ctx, token, "verifier")
	require.NoError(t, err)
	assert.Equal(t, "access-1", creds.AccessToken)
	assert.Equal(t, "access-secret", creds.Secret)

	profile, err := factory.FetchProfile(ctx, *creds)
	require.NoError(t, err)
	assert.Equal(t, "42", profile.ID)
	assert.Equal(t, "Ann", profile.Name)
	assert.True(t, strings.HasPrefix(fake.lastProfileAuth, "OAuth "))
	assert.Contains(t, fake.lastProfileAuth, `oauth_token="access-1"`)
}

func TestOAuth1Factory_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(p *fakeProvider)
		call    func(f *OAuth1Factory) error
		wantErr error
	}{
		{
			name:  "request token endpoint failing",
			setup: func(p *fakeProvider) { p.requestTokenStatus = http.StatusInternalServerError },
			call: func(f *OAuth1Factory) error {
				_, err := f.FetchRequestToken(context.Background(), "https://app/cb", nil)
				return err
			},
			wantErr: domain.ErrProviderUnavailable,
		},
		{
			name:  "request token rejected",
			setup: func(p *fakeProvider) { p.requestTokenStatus = http.StatusUnauthorized },
			call: func(f *OAuth1Factory) error {
				_, err := f.FetchRequestToken(context.Background(), "https://app/cb", nil)
				return err
			},
			wantErr: domain.ErrProviderUnavailable,
		},
		{
			name:  "access token endpoint failing",
			setup: func(p *fakeProvider) { p.accessTokenStatus = http.StatusServiceUnavailable },
			call: func(f *OAuth1Factory) error {
				_, err := f.ExchangeForAccess(context.Background(), &domain.RequestToken{Value: "request-1", Secret: "s"}, "v")
				return err
			},
			wantErr: domain.ErrProviderUnavailable,
		},
		{
			name:  "verifier rejected",
			setup: func(p *fakeProvider) { p.accessTokenStatus = http.StatusUnauthorized },
			call: func(f *OAuth1Factory) error {
				_, err := f.ExchangeForAccess(context.Background(), &domain.RequestToken{Value: "request-1", Secret: "s"}, "bad")
				return err
			},
			wantErr: domain.ErrTokenExchange,
		},
		{
			name:  "profile unauthorized",
			setup: func(p *fakeProvider) { p.profileStatus = http.StatusUnauthorized },
			call: func(f *OAuth1Factory) error {
				_, err := f.FetchProfile(context.Background(), domain.Credentials{AccessToken: "a", Secret: "s"})
				return err
			},
			wantErr: domain.ErrTokenExchange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeProvider()
			tt.setup(fake)
			srv := fake.server(t)

			err := tt.call(newTestOAuth1Factory(srv.URL))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOAuth1Factory_ProviderDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	factory := newTestOAuth1Factory(srv.URL)
	srv.Close()

	_, err := factory.FetchRequestToken(context.Background(), "https://app/cb", nil)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestOAuth2Factory_AuthorizeURL(t *testing.T) {
	factory := newTestOAuth2Factory("https://provider.example")

	tests := []struct {
		name      string
		scopes    []string
		state     string
		params    url.Values
		wantScope string
		wantState bool
	}{
		{
			name:      "configured scopes",
			state:     "state-1",
			wantScope: "read:user",
			wantState: true,
		},
		{
			name:      "requested scopes",
			scopes:    []string{"repo", "gist"},
			state:     "state-1",
			wantScope: "repo gist",
			wantState: true,
		},
		{
			name:      "without state",
			params:    url.Values{"display": {"popup"}},
			wantScope: "read:user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := factory.AuthorizeURL("https://app/connect/github", tt.scopes, tt.state, tt.params)

			params, err := ParseQueryParameters(raw)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(raw, "https://provider.example/oauth2/authorize?"))
			assert.Equal(t, "client-id", params["client_id"])
			assert.Equal(t, "https://app/connect/github", params["redirect_uri"])
			assert.Equal(t, "code", params["response_type"])
			assert.Equal(t, tt.wantScope, params["scope"])

			_, hasState := params["state"]
			assert.Equal(t, tt.wantState, hasState)
			for key := range tt.params {
				assert.Equal(t, tt.params.Get(key), params[key])
			}
		})
	}
}

func TestOAuth2Factory_Exchange(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "success", status: http.StatusOK},
		{name: "invalid grant", status: http.StatusBadRequest, wantErr: domain.ErrTokenExchange},
		{name: "provider failing", status: http.StatusServiceUnavailable, wantErr: domain.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeProvider()
			fake.tokenStatus = tt.status
			srv := fake.server(t)
			factory := newTestOAuth2Factory(srv.URL)

			creds, err := factory.ExchangeForAccess(context.Background(), "code-1", "https://app/connect/github")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "access-2", creds.AccessToken)
			assert.Equal(t, "refresh-2", creds.RefreshToken)
			require.NotNil(t, creds.ExpiresAt)
			assert.Equal(t, "code-1", fake.lastTokenForm.Get("code"))
			assert.Equal(t, "https://app/connect/github", fake.lastTokenForm.Get("redirect_uri"))
		})
	}
}

func TestOAuth2Factory_Refresh(t *testing.T) {
	fake := newFakeProvider()
	fake.tokenBody = map[string]interface{}{
		"access_token": "access-3",
		"token_type":   "bearer",
	}
	srv := fake.server(t)
	factory := newTestOAuth2Factory(srv.URL)

	creds, err := factory.Refresh(context.Background(), domain.Credentials{AccessToken: "access-2", RefreshToken: "refresh-2"})
	require.NoError(t, err)
	assert.Equal(t, "access-3", creds.AccessToken)
	assert.Equal(t, "refresh-2", creds.RefreshToken)
	assert.Nil(t, creds.ExpiresAt)
	assert.Equal(t, "refresh_token", fake.lastTokenForm.Get("grant_type"))

	_, err = factory.Refresh(context.Background(), domain.Credentials{AccessToken: "access-2"})
	assert.ErrorIs(t, err, domain.ErrTokenExchange)
}

func TestProfileFetcher(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		profile map[string]interface{}
		mapping func(base string) ProfileMapping
		want    *domain.UserProfile
		wantErr error
	}{
		{
			name:    "flat profile",
			status:  http.StatusOK,
			profile: newFakeProvider().profile,
			mapping: profileMapping,
			want: &domain.UserProfile{
				ID:         "42",
				Name:       "Ann",
				ProfileURL: "https://example.com/ann",
				ImageURL:   "https://example.com/ann.png",
			},
		},
		{
			name:   "nested profile",
			status: http.StatusOK,
			profile: map[string]interface{}{
				"data": map[string]interface{}{"id": "abc", "username": "ann"},
			},
			mapping: func(base string) ProfileMapping {
				return ProfileMapping{URL: base + "/profile", IDField: "data.id", NameField: "data.username"}
			},
			want: &domain.UserProfile{ID: "abc", Name: "ann"},
		},
		{
			name:    "missing id",
			status:  http.StatusOK,
			profile: map[string]interface{}{"name": "Ann"},
			mapping: profileMapping,
			wantErr: domain.ErrProviderUnavailable,
		},
		{
			name:    "revoked token",
			status:  http.StatusForbidden,
			mapping: profileMapping,
			wantErr: domain.ErrTokenExchange,
		},
		{
			name:    "provider failing",
			status:  http.StatusBadGateway,
			mapping: profileMapping,
			wantErr: domain.ErrProviderUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeProvider()
			fake.profileStatus = tt.status
			fake.profile = tt.profile
			srv := fake.server(t)

			fetcher := NewProfileFetcher(tt.mapping(srv.URL), BearerSigner{}, http.DefaultClient)
			profile, err := fetcher.Fetch(context.Background(), domain.Credentials{AccessToken: "access-2"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, profile)
			assert.Equal(t, "Bearer access-2", fake.lastProfileAuth)
		})
	}
}

func TestSigners(t *testing.T) {
	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "https://api.example.com/me", nil)
		require.NoError(t, BearerSigner{}.Sign(req, domain.Credentials{AccessToken: "token"}))
		assert.Equal(t, "Bearer token", req.Header.Get("Authorization"))

		assert.ErrorIs(t, BearerSigner{}.Sign(req, domain.Credentials{}), domain.ErrTokenExchange)
	})

	t.Run("oauth1", func(t *testing.T) {
		signer := NewOAuth1Signer(&oauth.Client{Credentials: oauth.Credentials{Token: "consumer-key", Secret: "consumer-secret"}})
		req := httptest.NewRequest(http.MethodGet, "https://api.example.com/me?include_email=true", nil)

		require.NoError(t, signer.Sign(req, domain.Credentials{AccessToken: "token", Secret: "secret"}))
		header := req.Header.Get("Authorization")
		assert.True(t, strings.HasPrefix(header, "OAuth "))
		assert.Contains(t, header, `oauth_consumer_key="consumer-key"`)
		assert.Contains(t, header, `oauth_token="token"`)
		assert.Contains(t, header, "oauth_signature=")

		assert.ErrorIs(t, signer.Sign(req, domain.Credentials{}), domain.ErrTokenExchange)
	})
}

func TestParseQueryParameters(t *testing.T) {
	params, err := ParseQueryParameters("https://app/connect/twitter?oauth_token=abc&oauth_verifier=v1&oauth_token=dup")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"oauth_token": "abc", "oauth_verifier": "v1"}, params)

	params, err = ParseQueryParameters("https://app/connect/twitter")
	require.NoError(t, err)
	assert.Empty(t, params)

	_, err = ParseQueryParameters("https://app/?%zz")
	assert.Error(t, err)
}

func TestNewFactories(t *testing.T) {
	providers := []config.ProviderConfig{
		{ID: "twitter", Protocol: "oauth1", APIKind: "twitter"},
		{ID: "github", Protocol: "oauth2", APIKind: "github"},
	}

	factories, err := NewFactories(providers, nil, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, factories, 2)
	assert.Equal(t, "twitter", factories[0].ProviderID())
	assert.Equal(t, domain.ProtocolOAuth1, factories[0].Protocol())
	assert.Equal(t, "github", factories[1].ProviderID())
	assert.Equal(t, domain.ProtocolOAuth2, factories[1].Protocol())

	_, err = NewFactories([]config.ProviderConfig{{ID: "x", Protocol: "saml"}}, nil, zap.NewNop())
	assert.Error(t, err)
}
