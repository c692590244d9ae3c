package auth

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/manorfm/connectM/internal/domain"
	httperrors "github.com/manorfm/connectM/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

type AuthMiddleware struct {
	tokenAuth *jwtauth.JWTAuth
	logger    *zap.Logger
}

func NewAuthMiddleware(tokenAuth *jwtauth.JWTAuth, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokenAuth: tokenAuth, logger: logger}
}

// Verifier reads the user token from the Authorization header or the jwt
// cookie. Provider callbacks arrive as browser redirects and only carry the cookie.
func (m *AuthMiddleware) Verifier(next http.Handler) http.Handler {
	return jwtauth.Verify(m.tokenAuth, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie)(next)
}

// Authenticator rejects requests without a valid token and stores the
// token subject as the current user
func (m *AuthMiddleware) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			m.logger.Debug("Rejected unauthenticated request",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			httperrors.RespondWithError(w, domain.ErrUnauthorized)
			return
		}

		subject := token.Subject()
		if subject == "" {
			m.logger.Debug("Rejected token without subject", zap.String("path", r.URL.Path))
			httperrors.RespondWithError(w, domain.ErrUnauthorized)
			return
		}

		ctx := domain.WithSubject(r.Context(), subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
