package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manorfm/connectM/internal/application"
	"github.com/manorfm/connectM/internal/domain"
	"github.com/manorfm/connectM/internal/infrastructure/config"
	"github.com/manorfm/connectM/internal/infrastructure/crypto"
	"github.com/manorfm/connectM/internal/infrastructure/database"
	"github.com/manorfm/connectM/internal/infrastructure/jwt"
	"github.com/manorfm/connectM/internal/infrastructure/provider"
	"github.com/manorfm/connectM/internal/infrastructure/repository"
	"github.com/manorfm/connectM/internal/infrastructure/session"
	httprouter "github.com/manorfm/connectM/internal/interfaces/http"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// sessionStore is both halves of the transient session storage
type sessionStore interface {
	domain.AuthSessionStore
	domain.FlashStore
	httprouter.HealthChecker
}

// connectionStore is the connection repository together with its readiness check
type connectionStore interface {
	domain.UsersConnectionRepository
	httprouter.HealthChecker
}

// @title Connect Service API
// @version 1.0
// @description Links local users to their accounts at OAuth1 and OAuth2 providers
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Register providers
	registry := application.NewConnectionFactoryRegistry(logger)
	httpClient := &http.Client{Timeout: 15 * time.Second}
	factories, err := provider.NewFactories(cfg.Providers, httpClient, logger)
	if err != nil {
		logger.Fatal("Failed to configure providers", zap.Error(err))
	}
	for _, factory := range factories {
		if err := registry.Register(factory); err != nil {
			logger.Fatal("Failed to register provider", zap.String("provider", factory.ProviderID()), zap.Error(err))
		}
	}
	registry.Freeze()

	connections, closeConnections := newConnectionStore(ctx, cfg, registry, logger)
	defer closeConnections()

	sessions, closeSessions := newSessionStore(ctx, cfg, logger)
	defer closeSessions()

	interceptors := application.NewInterceptorRegistry()
	audit := application.NewAuditInterceptor(logger)
	for _, factory := range factories {
		if len(interceptors.For(factory.APIKind())) == 0 {
			interceptors.Register(factory.APIKind(), audit)
		}
	}

	states, err := jwt.NewStateCodec(cfg.StateSecret, cfg.StateTTL)
	if err != nil {
		logger.Fatal("Failed to initialize state codec", zap.Error(err))
	}
	tokenAuth, err := jwt.NewTokenAuth(cfg.JWTSecret)
	if err != nil {
		logger.Fatal("Failed to initialize token verifier", zap.Error(err))
	}

	service := application.NewConnectService(
		registry,
		connections,
		sessions,
		sessions,
		interceptors,
		states,
		application.ConnectConfig{
			Views:          application.DefaultViewConfig(cfg.ConnectPath),
			AuthSessionTTL: cfg.AuthSessionTTL,
			RequireState:   cfg.RequireOAuth2State,
		},
		logger,
	)

	// Create router
	router := httprouter.NewRouter(service, tokenAuth, map[string]httprouter.HealthChecker{
		"connections": connections,
		"sessions":    sessions,
	}, cfg, logger)
	defer router.Close()

	// Start server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", zap.Int("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("Server exited properly")
}

func newConnectionStore(ctx context.Context, cfg *config.Config, registry *application.ConnectionFactoryRegistry, logger *zap.Logger) (connectionStore, func()) {
	if cfg.StorageDriver == "memory" {
		logger.Warn("Using in-memory connection storage, connections are lost on restart")
		return repository.NewMemoryConnectionRepository(registry), func() {}
	}

	db, err := database.NewPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if cfg.DBAutoMigrate {
		if err := db.RunMigrations(ctx, cfg.DBMigrationsDir); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	sealer, err := crypto.NewSealer(cfg.TokenEncryptionKey)
	if err != nil {
		logger.Fatal("Failed to initialize token sealer", zap.Error(err))
	}

	return repository.NewConnectionRepository(db, registry, sealer, logger), db.Close
}

func newSessionStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (sessionStore, func()) {
	if cfg.SessionStore == "memory" {
		logger.Warn("Using in-memory session storage, run a single instance only")
		store := session.NewMemoryStore(cfg.FlashTTL)
		return store, store.Stop
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	store := session.NewRedisStore(client, cfg.FlashTTL)
	if err := store.Ping(ctx); err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	logger.Info("Connected to redis", zap.String("addr", cfg.RedisAddr))

	return store, func() { client.Close() }
}
