package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/manorfm/connectM/internal/domain"
	"github.com/manorfm/connectM/internal/infrastructure/config"
	infrasession "github.com/manorfm/connectM/internal/infrastructure/session"
	"github.com/manorfm/connectM/internal/interfaces/http/handlers"
	"github.com/manorfm/connectM/internal/interfaces/http/middleware/auth"
	"github.com/manorfm/connectM/internal/interfaces/http/middleware/ratelimit"
	"github.com/manorfm/connectM/internal/interfaces/http/middleware/session"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HealthChecker is a dependency checked by the readiness endpoint
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Router struct {
	router      *chi.Mux
	rateLimiter *ratelimit.RateLimiter
}

func NewRouter(
	service domain.ConnectService,
	tokenAuth *jwtauth.JWTAuth,
	checks map[string]HealthChecker,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	authMiddleware := auth.NewAuthMiddleware(tokenAuth, logger)
	sessionMiddleware := session.NewMiddleware(infrasession.CookieOptions{
		Name:   cfg.SessionCookieName,
		Secure: cfg.SessionCookieSecure,
	}, logger)
	rateLimiter := ratelimit.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 3*time.Minute)

	connectHandler := handlers.NewConnectHandler(service, cfg.ApplicationURL, cfg.ConnectPath, logger)

	// Create router with middleware
	router := createRouter()

	// Health check endpoints
	router.Group(func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
			for name, check := range checks {
				if err := check.Ping(r.Context()); err != nil {
					logger.Error("Health check failed", zap.String("dependency", name), zap.Error(err))
					w.WriteHeader(http.StatusServiceUnavailable)
					w.Write([]byte(name + " unavailable"))
					return
				}
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Ready"))
		})

		r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Alive"))
		})
	})

	// Swagger UI configuration
	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
		httpSwagger.DeepLinking(true),
	))

	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "docs/swagger.json")
	})

	router.Route(cfg.ConnectPath, func(r chi.Router) {
		r.Use(sessionMiddleware.Handler)
		r.Use(authMiddleware.Verifier, authMiddleware.Authenticator)
		r.Use(rateLimiter.Middleware)

		r.Get("/", connectHandler.ConnectionStatusHandler)
		r.Get("/{providerId}", connectHandler.ProviderHandler)
		r.Post("/{providerId}", connectHandler.ConnectHandler)
		r.Delete("/{providerId}", connectHandler.RemoveConnectionsHandler)
		r.Delete("/{providerId}/{providerUserId}", connectHandler.RemoveConnectionHandler)
		r.Post("/{providerId}/{providerUserId}/refresh", connectHandler.RefreshConnectionHandler)
	})

	return &Router{router: router, rateLimiter: rateLimiter}
}

func createRouter() *chi.Mux {
	router := chi.NewRouter()

	// Add middleware
	router.Use(middleware.RequestID)
	router.Use(requestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(methodOverride)

	return router
}

// requestID exposes the chi request id to the application layer
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(domain.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// methodOverride lets HTML forms issue DELETE through a POST with _method=DELETE
func methodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if strings.EqualFold(r.FormValue("_method"), http.MethodDelete) {
				r.Method = http.MethodDelete
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Close stops background work owned by the router
func (r *Router) Close() {
	r.rateLimiter.Stop()
}
