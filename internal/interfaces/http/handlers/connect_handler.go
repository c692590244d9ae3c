package handlers

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/manorfm/connectM/internal/domain"
	"github.com/manorfm/connectM/internal/infrastructure/provider"
	"github.com/manorfm/connectM/internal/interfaces/http/dto"
	httperrors "github.com/manorfm/connectM/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// callbackParams mark a request to a provider URL as a provider callback
var callbackParams = []string{"oauth_token", "oauth_verifier", "code", "error"}

var validate = newValidator()

// newValidator reports fields by their form names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	return v
}

// ConnectHandler exposes the connect flow over HTTP
type ConnectHandler struct {
	service        domain.ConnectService
	applicationURL string
	connectPath    string
	logger         *zap.Logger
}

// NewConnectHandler creates a new ConnectHandler. applicationURL may be empty,
// in which case callback URLs are derived from the request.
func NewConnectHandler(service domain.ConnectService, applicationURL, connectPath string, logger *zap.Logger) *ConnectHandler {
	return &ConnectHandler{
		service:        service,
		applicationURL: strings.TrimRight(applicationURL, "/"),
		connectPath:    "/" + strings.Trim(connectPath, "/"),
		logger:         logger,
	}
}

// ConnectionStatusHandler renders the status of every provider
// @Summary Connection status
// @Tags connect
// @Produce json
// @Success 200 {object} dto.StatusResponse
// @Failure 401 {object} httperrors.ErrorResponse
// @Router /connect [get]
func (h *ConnectHandler) ConnectionStatusHandler(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ConnectionStatus(r.Context(), h.interaction(r))
	if err != nil {
		httperrors.RespondWithError(w, err)
		return
	}

	h.respondStatus(w, view)
}

// ProviderHandler renders the status of one provider, or completes a
// connection when the request is a provider callback
// @Summary Provider status or provider callback
// @Tags connect
// @Produce json
// @Param providerId path string true "Provider ID"
// @Success 200 {object} dto.StatusResponse
// @Success 302
// @Failure 404 {object} httperrors.ErrorResponse
// @Router /connect/{providerId} [get]
func (h *ConnectHandler) ProviderHandler(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerId")

	if isCallback(r) {
		h.completeConnection(w, r, providerID)
		return
	}

	view, err := h.service.ProviderStatus(r.Context(), h.interaction(r), providerID)
	if err != nil {
		httperrors.RespondWithError(w, err)
		return
	}

	h.respondStatus(w, view)
}

// ConnectHandler starts a connection and redirects to the provider
// @Summary Start connecting a provider
// @Tags connect
// @Accept x-www-form-urlencoded
// @Param providerId path string true "Provider ID"
// @Param scope formData string false "Comma separated scopes"
// @Success 302
// @Failure 400 {object} httperrors.ErrorResponse
// @Failure 404 {object} httperrors.ErrorResponse
// @Failure 502 {object} httperrors.ErrorResponse
// @Router /connect/{providerId} [post]
func (h *ConnectHandler) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerId")

	req := dto.ConnectRequest{
		Scopes: scopes(r.FormValue("scope")),
		Method: r.FormValue("_method"),
	}
	if validation := httperrors.NewValidationErrors(validate.Struct(req)); validation.HasErrors() {
		httperrors.RespondErrorWithDetails(w, domain.ErrInvalidRequest, validation.ToErrorDetails())
		return
	}

	redirectURL, err := h.service.Connect(r.Context(), h.interaction(r), providerID, req.Scopes)
	if err != nil {
		h.logger.Warn("Failed to start connection",
			zap.String("provider_id", providerID),
			zap.Error(err))
		httperrors.RespondWithError(w, err)
		return
	}

	h.redirect(w, r, redirectURL)
}

// RemoveConnectionsHandler removes every connection to a provider
// @Summary Disconnect a provider
// @Tags connect
// @Param providerId path string true "Provider ID"
// @Success 302
// @Router /connect/{providerId} [delete]
func (h *ConnectHandler) RemoveConnectionsHandler(w http.ResponseWriter, r *http.Request) {
	redirectURL, err := h.service.RemoveConnections(r.Context(), h.interaction(r), chi.URLParam(r, "providerId"))
	if err != nil {
		httperrors.RespondWithError(w, err)
		return
	}

	h.redirect(w, r, redirectURL)
}

// RemoveConnectionHandler removes one connection
// @Summary Disconnect one provider account
// @Tags connect
// @Param providerId path string true "Provider ID"
// @Param providerUserId path string true "Provider user ID"
// @Success 302
// @Router /connect/{providerId}/{providerUserId} [delete]
func (h *ConnectHandler) RemoveConnectionHandler(w http.ResponseWriter, r *http.Request) {
	redirectURL, err := h.service.RemoveConnection(r.Context(), h.interaction(r), connectionKey(r))
	if err != nil {
		httperrors.RespondWithError(w, err)
		return
	}

	h.redirect(w, r, redirectURL)
}

// RefreshConnectionHandler refreshes credentials and profile of one connection
// @Summary Refresh a connection
// @Tags connect
// @Produce json
// @Param providerId path string true "Provider ID"
// @Param providerUserId path string true "Provider user ID"
// @Success 200 {object} dto.ConnectionResponse
// @Failure 404 {object} httperrors.ErrorResponse
// @Router /connect/{providerId}/{providerUserId}/refresh [post]
func (h *ConnectHandler) RefreshConnectionHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.service.RefreshConnection(r.Context(), h.interaction(r), connectionKey(r))
	if err != nil {
		httperrors.RespondWithError(w, err)
		return
	}

	noCache(w)
	respondJSON(w, http.StatusOK, dto.NewConnectionResponse(conn), h.logger)
}

func (h *ConnectHandler) completeConnection(w http.ResponseWriter, r *http.Request, providerID string) {
	params, err := provider.ParseQueryParameters(r.URL.String())
	if err != nil {
		var validation httperrors.ValidationErrors
		validation.Add("query", err.Error())
		httperrors.RespondErrorWithDetails(w, domain.ErrInvalidCallback, validation.ToErrorDetails())
		return
	}

	outcome, err := h.service.CompleteConnection(r.Context(), h.interaction(r), providerID, domain.CallbackParams(params))
	if err != nil {
		httperrors.RespondWithError(w, err)
		return
	}

	if outcome.Err != nil {
		h.logger.Info("Connection not completed",
			zap.String("provider_id", providerID),
			zap.String("code", domain.CodeOf(outcome.Err)))
	}

	noCache(w)
	http.Redirect(w, r, outcome.RedirectURL, http.StatusFound)
}

func (h *ConnectHandler) interaction(r *http.Request) domain.Interaction {
	userID, _ := domain.GetSubject(r.Context())
	sessionID, _ := domain.GetSessionID(r.Context())

	return domain.Interaction{
		UserID:     userID,
		SessionID:  sessionID,
		ConnectURL: h.baseURL(r) + h.connectPath,
	}
}

// baseURL prefers the configured application URL. Otherwise the scheme and
// host of the request are used, honouring X-Forwarded-Proto.
func (h *ConnectHandler) baseURL(r *http.Request) string {
	if h.applicationURL != "" {
		return h.applicationURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}

	return scheme + "://" + r.Host
}

func (h *ConnectHandler) respondStatus(w http.ResponseWriter, view *domain.StatusView) {
	noCache(w)
	respondJSON(w, http.StatusOK, dto.NewStatusResponse(view), h.logger)
}

// redirect answers with a 302, or with the target as JSON for API clients
func (h *ConnectHandler) redirect(w http.ResponseWriter, r *http.Request, target string) {
	noCache(w)
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		respondJSON(w, http.StatusOK, dto.RedirectResponse{RedirectURL: target}, h.logger)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func isCallback(r *http.Request) bool {
	query := r.URL.Query()
	for _, param := range callbackParams {
		if query.Get(param) != "" {
			return true
		}
	}
	return false
}

func connectionKey(r *http.Request) domain.ConnectionKey {
	return domain.ConnectionKey{
		ProviderID:     chi.URLParam(r, "providerId"),
		ProviderUserID: chi.URLParam(r, "providerUserId"),
	}
}

func scopes(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", time.UnixMilli(1).UTC().Format(http.TimeFormat))
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Add("Cache-Control", "no-store")
}

func respondJSON(w http.ResponseWriter, status int, body interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
