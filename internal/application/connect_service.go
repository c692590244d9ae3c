package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/manorfm/connectM/internal/domain"
	"go.uber.org/zap"
)

const providerIDPlaceholder = "{providerId}"

// ViewConfig holds the view name templates. {providerId} is replaced with the provider id.
type ViewConfig struct {
	Status         string
	Connect        string
	Connected      string
	StatusRedirect string
}

// DefaultViewConfig returns the standard view names for a connect endpoint mounted at connectPath
func DefaultViewConfig(connectPath string) ViewConfig {
	return ViewConfig{
		Status:         "connect/status",
		Connect:        "connect/" + providerIDPlaceholder + "Connect",
		Connected:      "connect/" + providerIDPlaceholder + "Connected",
		StatusRedirect: strings.TrimRight(connectPath, "/") + "/" + providerIDPlaceholder,
	}
}

func (v ViewConfig) render(template, providerID string) string {
	return strings.ReplaceAll(template, providerIDPlaceholder, providerID)
}

// ConnectConfig configures a ConnectService
type ConnectConfig struct {
	Views          ViewConfig
	AuthSessionTTL time.Duration
	// RequireState rejects OAuth2 callbacks that do not echo a state parameter
	RequireState bool
}

type connectService struct {
	registry     *ConnectionFactoryRegistry
	connections  domain.UsersConnectionRepository
	sessions     domain.AuthSessionStore
	flashes      domain.FlashStore
	interceptors *InterceptorRegistry
	states       domain.StateCodec
	oauth1       *OAuth1Flow
	oauth2       *OAuth2Flow
	cfg          ConnectConfig
	now          func() time.Time
	logger       *zap.Logger
}

// NewConnectService creates the connect orchestrator
func NewConnectService(
	registry *ConnectionFactoryRegistry,
	connections domain.UsersConnectionRepository,
	sessions domain.AuthSessionStore,
	flashes domain.FlashStore,
	interceptors *InterceptorRegistry,
	states domain.StateCodec,
	cfg ConnectConfig,
	logger *zap.Logger,
) domain.ConnectService {
	return &connectService{
		registry:     registry,
		connections:  connections,
		sessions:     sessions,
		flashes:      flashes,
		interceptors: interceptors,
		states:       states,
		oauth1:       NewOAuth1Flow(cfg.AuthSessionTTL, logger),
		oauth2:       NewOAuth2Flow(logger),
		cfg:          cfg,
		now:          time.Now,
		logger:       logger,
	}
}

func (s *connectService) ConnectionStatus(ctx context.Context, in domain.Interaction) (*domain.StatusView, error) {
	if in.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	connections, err := s.connections.ForUser(in.UserID).FindAllConnections(ctx)
	if err != nil {
		s.logger.Error("Failed to find connections", zap.String("user_id", in.UserID), zap.Error(err))
		return nil, err
	}

	view := &domain.StatusView{
		View:        s.cfg.Views.Status,
		ProviderIDs: s.registry.RegisteredProviderIDs(),
		Connections: connections,
	}
	s.applyFlash(ctx, in, view, "")

	return view, nil
}

func (s *connectService) ProviderStatus(ctx context.Context, in domain.Interaction, providerID string) (*domain.StatusView, error) {
	if in.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if _, err := s.registry.Factory(providerID); err != nil {
		return nil, err
	}

	connections, err := s.connections.ForUser(in.UserID).FindConnections(ctx, providerID)
	if err != nil {
		s.logger.Error("Failed to find connections",
			zap.String("user_id", in.UserID),
			zap.String("provider_id", providerID),
			zap.Error(err))
		return nil, err
	}

	template := s.cfg.Views.Connected
	if len(connections) == 0 {
		template = s.cfg.Views.Connect
	}

	view := &domain.StatusView{
		View:        s.cfg.Views.render(template, providerID),
		ProviderIDs: []string{providerID},
		Connections: map[string][]*domain.Connection{providerID: connections},
	}
	s.applyFlash(ctx, in, view, providerID)

	return view, nil
}

func (s *connectService) Connect(ctx context.Context, in domain.Interaction, providerID string, scopes []string) (string, error) {
	if in.UserID == "" {
		return "", domain.ErrUnauthorized
	}

	factory, err := s.registry.Factory(providerID)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	for _, interceptor := range s.interceptors.For(factory.APIKind()) {
		if err := interceptor.PreConnect(ctx, factory, params); err != nil {
			s.logger.Warn("Connect interceptor rejected authorization",
				zap.String("provider_id", providerID),
				zap.Error(err))
			return "", err
		}
	}

	callbackURL := in.CallbackURL(providerID)

	switch f := factory.(type) {
	case domain.OAuth1ConnectionFactory:
		if in.SessionID == "" {
			return "", fmt.Errorf("%w: no browser session", domain.ErrAuthSessionNotFound)
		}
		redirectURL, session, err := s.oauth1.Initiate(ctx, f, callbackURL, params)
		if err != nil {
			return "", err
		}
		if err := s.sessions.PutAuthSession(ctx, authSessionKey(in, providerID), session); err != nil {
			s.logger.Error("Failed to store authorization session",
				zap.String("provider_id", providerID),
				zap.Error(err))
			return "", fmt.Errorf("%w: %v", domain.ErrInternal, err)
		}
		return redirectURL, nil

	case domain.OAuth2ConnectionFactory:
		state, err := s.states.Issue(in.UserID, providerID)
		if err != nil {
			s.logger.Error("Failed to issue state", zap.String("provider_id", providerID), zap.Error(err))
			return "", fmt.Errorf("%w: %v", domain.ErrInternal, err)
		}
		return s.oauth2.Initiate(f, callbackURL, scopes, state, params), nil
	}

	return "", fmt.Errorf("%w: unsupported protocol %s", domain.ErrInternal, factory.Protocol())
}

func (s *connectService) CompleteConnection(ctx context.Context, in domain.Interaction, providerID string, callback domain.CallbackParams) (*domain.CallbackOutcome, error) {
	if in.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	factory, err := s.registry.Factory(providerID)
	if err != nil {
		return nil, err
	}

	outcome := &domain.CallbackOutcome{
		RedirectURL: s.cfg.Views.render(s.cfg.Views.StatusRedirect, providerID),
	}

	conn, err := s.completeFlow(ctx, in, factory, callback)
	if err == nil {
		conn.UserID = in.UserID
		err = s.connections.ForUser(in.UserID).AddConnection(ctx, conn)
	}

	switch {
	case err == nil:
		outcome.Connection = conn
		s.postConnect(ctx, factory, conn)

	case errors.Is(err, domain.ErrDuplicateConnection):
		s.logger.Info("Connection already exists",
			zap.String("user_id", in.UserID),
			zap.String("provider_id", providerID),
			zap.String("provider_user_id", conn.Key.ProviderUserID))
		outcome.Duplicate = true
		s.putFlash(ctx, in, &domain.Flash{ProviderID: providerID, Duplicate: &conn.Key})

	default:
		s.logger.Warn("Connection attempt failed",
			zap.String("user_id", in.UserID),
			zap.String("provider_id", providerID),
			zap.Error(err))
		outcome.Err = err
		s.putFlash(ctx, in, &domain.Flash{ProviderID: providerID, ErrorCode: domain.CodeOf(err)})
	}

	return outcome, nil
}

func (s *connectService) completeFlow(ctx context.Context, in domain.Interaction, factory domain.ConnectionFactory, callback domain.CallbackParams) (*domain.Connection, error) {
	switch f := factory.(type) {
	case domain.OAuth1ConnectionFactory:
		if in.SessionID == "" {
			return nil, fmt.Errorf("%w: no browser session", domain.ErrAuthSessionNotFound)
		}
		session, err := s.sessions.TakeAuthSession(ctx, authSessionKey(in, f.ProviderID()))
		if err != nil {
			return nil, err
		}
		if callback.Has(paramCode) {
			return nil, fmt.Errorf("%w: authorization code sent to an OAuth1 provider", domain.ErrInvalidCallback)
		}
		return s.oauth1.Complete(ctx, f, session, callback)

	case domain.OAuth2ConnectionFactory:
		if callback.Has(paramOAuthToken) || callback.Has(paramOAuthVerifier) {
			return nil, fmt.Errorf("%w: oauth1 parameters sent to an OAuth2 provider", domain.ErrInvalidCallback)
		}
		if state := callback.Get(paramState); state != "" {
			if err := s.states.Verify(state, in.UserID, f.ProviderID()); err != nil {
				return nil, err
			}
		} else if s.cfg.RequireState {
			return nil, fmt.Errorf("%w: callback has no state", domain.ErrInvalidState)
		}
		return s.oauth2.Complete(ctx, f, in.CallbackURL(f.ProviderID()), callback)
	}

	return nil, fmt.Errorf("%w: unsupported protocol %s", domain.ErrInternal, factory.Protocol())
}

func (s *connectService) postConnect(ctx context.Context, factory domain.ConnectionFactory, conn *domain.Connection) {
	for _, interceptor := range s.interceptors.For(factory.APIKind()) {
		if err := interceptor.PostConnect(ctx, conn); err != nil {
			s.logger.Warn("Post connect interceptor failed",
				zap.String("provider_id", conn.Key.ProviderID),
				zap.Error(err))
		}
	}
}

func (s *connectService) RemoveConnections(ctx context.Context, in domain.Interaction, providerID string) (string, error) {
	if in.UserID == "" {
		return "", domain.ErrUnauthorized
	}
	if _, err := s.registry.Factory(providerID); err != nil {
		return "", err
	}

	if err := s.connections.ForUser(in.UserID).RemoveConnections(ctx, providerID); err != nil {
		s.logger.Error("Failed to remove connections",
			zap.String("user_id", in.UserID),
			zap.String("provider_id", providerID),
			zap.Error(err))
		return "", err
	}

	return s.cfg.Views.render(s.cfg.Views.StatusRedirect, providerID), nil
}

func (s *connectService) RemoveConnection(ctx context.Context, in domain.Interaction, key domain.ConnectionKey) (string, error) {
	if in.UserID == "" {
		return "", domain.ErrUnauthorized
	}
	if _, err := s.registry.Factory(key.ProviderID); err != nil {
		return "", err
	}

	if err := s.connections.ForUser(in.UserID).RemoveConnection(ctx, key); err != nil {
		s.logger.Error("Failed to remove connection",
			zap.String("user_id", in.UserID),
			zap.String("connection", key.String()),
			zap.Error(err))
		return "", err
	}

	return s.cfg.Views.render(s.cfg.Views.StatusRedirect, key.ProviderID), nil
}

func (s *connectService) RefreshConnection(ctx context.Context, in domain.Interaction, key domain.ConnectionKey) (*domain.Connection, error) {
	if in.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	factory, err := s.registry.Factory(key.ProviderID)
	if err != nil {
		return nil, err
	}

	repo := s.connections.ForUser(in.UserID)
	conn, err := repo.FindConnection(ctx, key)
	if err != nil {
		return nil, err
	}

	creds := conn.Credentials
	if f, ok := factory.(domain.OAuth2ConnectionFactory); ok && creds.RefreshToken != "" && creds.Expired(s.now()) {
		refreshed, err := f.Refresh(ctx, creds)
		if err != nil {
			s.logger.Error("Failed to refresh access token",
				zap.String("connection", key.String()),
				zap.Error(err))
			return nil, err
		}
		creds = *refreshed
	}

	profile, err := factory.FetchProfile(ctx, creds)
	if err != nil {
		return nil, err
	}
	if profile.ID != key.ProviderUserID {
		return nil, fmt.Errorf("%w: credentials now belong to another account", domain.ErrTokenExchange)
	}

	conn.Credentials = creds
	conn.ApplyProfile(profile)
	conn.UpdatedAt = s.now()

	if err := repo.UpdateConnection(ctx, conn); err != nil {
		return nil, err
	}

	return conn, nil
}

// applyFlash shows the pending flash on view. A view scoped to providerID
// leaves a flash raised by another provider in place for its own page.
func (s *connectService) applyFlash(ctx context.Context, in domain.Interaction, view *domain.StatusView, providerID string) {
	if in.SessionID == "" {
		return
	}

	flash, err := s.flashes.TakeFlash(ctx, in.SessionID)
	if err != nil {
		s.logger.Warn("Failed to read flash", zap.Error(err))
		return
	}
	if flash == nil {
		return
	}
	if providerID != "" && flash.ProviderID != providerID {
		s.putFlash(ctx, in, flash)
		return
	}

	view.DuplicateConnection = flash.Duplicate
	view.ErrorCode = flash.ErrorCode
}

func (s *connectService) putFlash(ctx context.Context, in domain.Interaction, flash *domain.Flash) {
	if in.SessionID == "" {
		return
	}
	if err := s.flashes.PutFlash(ctx, in.SessionID, flash); err != nil {
		s.logger.Warn("Failed to store flash", zap.Error(err))
	}
}

func authSessionKey(in domain.Interaction, providerID string) string {
	return in.SessionID + ":" + in.UserID + ":" + providerID
}
