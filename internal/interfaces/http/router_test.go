package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/manorfm/connectM/internal/domain"
	"github.com/manorfm/connectM/internal/infrastructure/config"
	"github.com/manorfm/connectM/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubConnectService struct {
	domain.ConnectService
	removed []string
	userIDs []string
}

func (s *stubConnectService) ConnectionStatus(_ context.Context, in domain.Interaction) (*domain.StatusView, error) {
	s.userIDs = append(s.userIDs, in.UserID)
	return &domain.StatusView{View: "connect/status"}, nil
}

func (s *stubConnectService) RemoveConnections(_ context.Context, in domain.Interaction, providerID string) (string, error) {
	s.removed = append(s.removed, providerID)
	return "/connect/" + providerID, nil
}

type stubChecker struct{ err error }

func (c stubChecker) Ping(context.Context) error { return c.err }

func newTestRouter(t *testing.T, service domain.ConnectService, checks map[string]HealthChecker) (*Router, string) {
	t.Helper()

	cfg := config.NewConfig()
	cfg.ApplicationURL = "https://app.example.com"
	cfg.SessionCookieSecure = false

	tokenAuth, err := jwt.NewTokenAuth("test-secret")
	require.NoError(t, err)
	token, err := jwt.IssueUserToken(tokenAuth, "user-1", time.Minute)
	require.NoError(t, err)

	router := NewRouter(service, tokenAuth, checks, cfg, zap.NewNop())
	t.Cleanup(router.Close)
	return router, token
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		checks         map[string]HealthChecker
		expectedStatus int
		expectedBody   string
	}{
		{name: "health", path: "/health", expectedStatus: http.StatusOK, expectedBody: "OK"},
		{name: "live", path: "/health/live", expectedStatus: http.StatusOK, expectedBody: "Alive"},
		{
			name:           "ready",
			path:           "/health/ready",
			checks:         map[string]HealthChecker{"database": stubChecker{}, "sessions": stubChecker{}},
			expectedStatus: http.StatusOK,
			expectedBody:   "Ready",
		},
		{
			name:           "not ready",
			path:           "/health/ready",
			checks:         map[string]HealthChecker{"sessions": stubChecker{err: errors.New("connection refused")}},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "sessions unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, &stubConnectService{}, tt.checks)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestRouter_ConnectRequiresUser(t *testing.T) {
	service := &stubConnectService{}
	router, token := newTestRouter(t, service, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/connect", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, service.userIDs)

	req := httptest.NewRequest(http.MethodGet, "/connect", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"user-1"}, service.userIDs)

	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "connect_sid" {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	assert.NotEmpty(t, sessionCookie.Value)
	assert.True(t, sessionCookie.HttpOnly)
}

func TestRouter_MethodOverride(t *testing.T) {
	service := &stubConnectService{}
	router, token := newTestRouter(t, service, nil)

	form := url.Values{"_method": {"DELETE"}}
	req := httptest.NewRequest(http.MethodPost, "/connect/github", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/connect/github", w.Header().Get("Location"))
	assert.Equal(t, []string{"github"}, service.removed)
}
