package application

import (
	"context"
	"net/url"

	"github.com/manorfm/connectM/internal/domain"
	"go.uber.org/zap"
)

// InterceptorRegistry holds connect interceptors by API kind. It is built at
// startup and must not be modified while requests are served.
type InterceptorRegistry struct {
	interceptors map[domain.APIKind][]domain.ConnectInterceptor
}

// NewInterceptorRegistry creates an empty InterceptorRegistry
func NewInterceptorRegistry() *InterceptorRegistry {
	return &InterceptorRegistry{
		interceptors: make(map[domain.APIKind][]domain.ConnectInterceptor),
	}
}

// Register adds an interceptor for factories of the given kind
func (r *InterceptorRegistry) Register(kind domain.APIKind, interceptor domain.ConnectInterceptor) {
	r.interceptors[kind] = append(r.interceptors[kind], interceptor)
}

// For returns the interceptors for kind in registration order
func (r *InterceptorRegistry) For(kind domain.APIKind) []domain.ConnectInterceptor {
	return r.interceptors[kind]
}

// AuditInterceptor logs connection attempts
type AuditInterceptor struct {
	logger *zap.Logger
}

// NewAuditInterceptor creates a new AuditInterceptor
func NewAuditInterceptor(logger *zap.Logger) *AuditInterceptor {
	return &AuditInterceptor{logger: logger}
}

func (a *AuditInterceptor) PreConnect(ctx context.Context, factory domain.ConnectionFactory, params url.Values) error {
	userID, _ := domain.GetSubject(ctx)
	requestID, _ := domain.GetRequestID(ctx)
	a.logger.Info("Connection authorization started",
		zap.String("user_id", userID),
		zap.String("provider_id", factory.ProviderID()),
		zap.String("request_id", requestID))
	return nil
}

func (a *AuditInterceptor) PostConnect(ctx context.Context, conn *domain.Connection) error {
	requestID, _ := domain.GetRequestID(ctx)
	a.logger.Info("Connection added",
		zap.String("user_id", conn.UserID),
		zap.String("provider_id", conn.Key.ProviderID),
		zap.String("provider_user_id", conn.Key.ProviderUserID),
		zap.String("request_id", requestID))
	return nil
}
