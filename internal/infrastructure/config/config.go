package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// ProviderConfig describes one provider the service can connect to
type ProviderConfig struct {
	ID              string   `validate:"required,alphanum"`
	Protocol        string   `validate:"required,oneof=oauth1 oauth2"`
	APIKind         string   `validate:"required"`
	ClientID        string   `validate:"required"`
	ClientSecret    string   `validate:"required"`
	AuthorizeURL    string   `validate:"required,url"`
	TokenURL        string   `validate:"required,url"`
	RequestTokenURL string   `validate:"required_if=Protocol oauth1,omitempty,url"`
	Scopes          []string `validate:"omitempty,dive,required"`

	ProfileURL        string `validate:"required,url"`
	ProfileIDField    string `validate:"required"`
	ProfileNameField  string
	ProfileURLField   string
	ProfileImageField string
}

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerPort     int    `validate:"min=1,max=65535"`
	ApplicationURL string `validate:"omitempty,url"`
	ConnectPath    string `validate:"required,startswith=/"`

	// Storage configuration
	StorageDriver   string `validate:"oneof=postgres memory"`
	DBHost          string
	DBPort          int
	DBUser          string
	DBPassword      string
	DBName          string
	DBMigrationsDir string
	DBAutoMigrate   bool

	// Session configuration
	SessionStore        string `validate:"oneof=redis memory"`
	RedisAddr           string `validate:"required_if=SessionStore redis"`
	RedisPassword       string
	RedisDB             int
	AuthSessionTTL      time.Duration `validate:"min=1s"`
	FlashTTL            time.Duration `validate:"min=1s"`
	SessionCookieName   string        `validate:"required"`
	SessionCookieSecure bool

	// Token configuration
	JWTSecret          string `validate:"required"`
	StateSecret        string `validate:"required"`
	StateTTL           time.Duration
	RequireOAuth2State bool
	TokenEncryptionKey string `validate:"required_if=StorageDriver postgres"`

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Providers in registration order
	Providers []ProviderConfig `validate:"dive"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		ServerPort:  8080,
		ConnectPath: "/connect",

		StorageDriver:   "postgres",
		DBPort:          5432,
		DBMigrationsDir: "migrations",

		SessionStore:      "redis",
		RedisAddr:         "localhost:6379",
		AuthSessionTTL:    10 * time.Minute,
		FlashTTL:          5 * time.Minute,
		SessionCookieName: "connect_sid",

		StateTTL:           10 * time.Minute,
		RequireOAuth2State: true,

		RateLimitRPS:   100,
		RateLimitBurst: 200,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env from project root
	_ = godotenv.Load()

	defaults := NewConfig()

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	serverPort, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	authSessionTTL, err := getEnvDuration("AUTH_SESSION_TTL", defaults.AuthSessionTTL)
	if err != nil {
		return nil, err
	}

	flashTTL, err := getEnvDuration("FLASH_TTL", defaults.FlashTTL)
	if err != nil {
		return nil, err
	}

	stateTTL, err := getEnvDuration("STATE_TTL", defaults.StateTTL)
	if err != nil {
		return nil, err
	}

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "100"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	providers, err := loadProviders()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:     serverPort,
		ApplicationURL: strings.TrimRight(getEnv("APPLICATION_URL", ""), "/"),
		ConnectPath:    getEnv("CONNECT_PATH", defaults.ConnectPath),

		StorageDriver:   getEnv("STORAGE_DRIVER", defaults.StorageDriver),
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          dbPort,
		DBUser:          getEnv("DB_USER", "owner"),
		DBPassword:      getEnv("DB_PASSWORD", "ownerTest"),
		DBName:          getEnv("DB_NAME", "connections"),
		DBMigrationsDir: getEnv("DB_MIGRATIONS_DIR", defaults.DBMigrationsDir),
		DBAutoMigrate:   getEnvBool("DB_AUTO_MIGRATE", false),

		SessionStore:        getEnv("SESSION_STORE", defaults.SessionStore),
		RedisAddr:           getEnv("REDIS_ADDR", defaults.RedisAddr),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		AuthSessionTTL:      authSessionTTL,
		FlashTTL:            flashTTL,
		SessionCookieName:   getEnv("SESSION_COOKIE_NAME", defaults.SessionCookieName),
		SessionCookieSecure: getEnvBool("SESSION_COOKIE_SECURE", true),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		StateSecret:        getEnv("STATE_SECRET", ""),
		StateTTL:           stateTTL,
		RequireOAuth2State: getEnvBool("OAUTH2_REQUIRE_STATE", defaults.RequireOAuth2State),
		TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),

		RateLimitRPS:   rps,
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", defaults.RateLimitBurst),

		Providers: providers,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if seen[p.ID] {
			return fmt.Errorf("invalid configuration: provider %q configured twice", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// loadProviders reads PROVIDERS and the PROVIDER_<ID>_* variables of each entry
func loadProviders() ([]ProviderConfig, error) {
	var providers []ProviderConfig
	for _, id := range splitList(getEnv("PROVIDERS", "")) {
		prefix := "PROVIDER_" + strings.ToUpper(id) + "_"

		protocol := strings.ToLower(getEnv(prefix+"PROTOCOL", "oauth2"))
		if protocol != "oauth1" && protocol != "oauth2" {
			return nil, fmt.Errorf("invalid %sPROTOCOL: %q", prefix, protocol)
		}

		providers = append(providers, ProviderConfig{
			ID:              id,
			Protocol:        protocol,
			APIKind:         getEnv(prefix+"API_KIND", id),
			ClientID:        getEnv(prefix+"CLIENT_ID", ""),
			ClientSecret:    getEnv(prefix+"CLIENT_SECRET", ""),
			AuthorizeURL:    getEnv(prefix+"AUTHORIZE_URL", ""),
			TokenURL:        getEnv(prefix+"TOKEN_URL", ""),
			RequestTokenURL: getEnv(prefix+"REQUEST_TOKEN_URL", ""),
			Scopes:          splitList(getEnv(prefix+"SCOPES", "")),

			ProfileURL:        getEnv(prefix+"PROFILE_URL", ""),
			ProfileIDField:    getEnv(prefix+"PROFILE_ID_FIELD", "id"),
			ProfileNameField:  getEnv(prefix+"PROFILE_NAME_FIELD", "name"),
			ProfileURLField:   getEnv(prefix+"PROFILE_URL_FIELD", "html_url"),
			ProfileImageField: getEnv(prefix+"PROFILE_IMAGE_FIELD", "avatar_url"),
		})
	}
	return providers, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}
