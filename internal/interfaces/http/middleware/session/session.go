package session

import (
	"net/http"

	"github.com/manorfm/connectM/internal/domain"
	infrasession "github.com/manorfm/connectM/internal/infrastructure/session"
	httperrors "github.com/manorfm/connectM/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// Middleware binds every request to a browser session identified by a cookie.
// Pending OAuth1 authorizations and flash state are keyed by this session.
type Middleware struct {
	opts   infrasession.CookieOptions
	logger *zap.Logger
}

func NewMiddleware(opts infrasession.CookieOptions, logger *zap.Logger) *Middleware {
	return &Middleware{opts: opts, logger: logger}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := infrasession.ReadCookie(r, m.opts)
		if sessionID == "" {
			id, err := infrasession.GenerateID()
			if err != nil {
				m.logger.Error("Failed to generate session id", zap.Error(err))
				httperrors.RespondWithError(w, domain.ErrInternal)
				return
			}
			sessionID = id
			infrasession.SetCookie(w, sessionID, m.opts)
		}

		next.ServeHTTP(w, r.WithContext(domain.WithSessionID(r.Context(), sessionID)))
	})
}
