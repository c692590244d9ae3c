package application

import (
	"fmt"
	"sync"

	"github.com/manorfm/connectM/internal/domain"
	"go.uber.org/zap"
)

// ConnectionFactoryRegistry maps provider ids to connection factories.
// Factories are registered at startup; after Freeze the registry is read only.
type ConnectionFactoryRegistry struct {
	mu        sync.RWMutex
	factories map[string]domain.ConnectionFactory
	order     []string
	frozen    bool
	logger    *zap.Logger
}

// NewConnectionFactoryRegistry creates an empty registry
func NewConnectionFactoryRegistry(logger *zap.Logger) *ConnectionFactoryRegistry {
	return &ConnectionFactoryRegistry{
		factories: make(map[string]domain.ConnectionFactory),
		logger:    logger,
	}
}

// Register adds a factory under its provider id
func (r *ConnectionFactoryRegistry) Register(factory domain.ConnectionFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return domain.ErrRegistryFrozen
	}

	id := factory.ProviderID()
	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("%w: %s", domain.ErrProviderAlreadyRegistered, id)
	}

	r.factories[id] = factory
	r.order = append(r.order, id)

	r.logger.Info("Registered connection factory",
		zap.String("provider_id", id),
		zap.String("protocol", string(factory.Protocol())),
		zap.String("api_kind", string(factory.APIKind())))
	return nil
}

// Freeze stops further registrations
func (r *ConnectionFactoryRegistry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Factory returns the factory registered for providerID
func (r *ConnectionFactoryRegistry) Factory(providerID string) (domain.ConnectionFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, providerID)
	}
	return factory, nil
}

// OAuth1Factory returns the OAuth1 factory registered for providerID
func (r *ConnectionFactoryRegistry) OAuth1Factory(providerID string) (domain.OAuth1ConnectionFactory, error) {
	factory, err := r.Factory(providerID)
	if err != nil {
		return nil, err
	}
	oauth1, ok := factory.(domain.OAuth1ConnectionFactory)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an OAuth1 provider", domain.ErrInvalidCallback, providerID)
	}
	return oauth1, nil
}

// OAuth2Factory returns the OAuth2 factory registered for providerID
func (r *ConnectionFactoryRegistry) OAuth2Factory(providerID string) (domain.OAuth2ConnectionFactory, error) {
	factory, err := r.Factory(providerID)
	if err != nil {
		return nil, err
	}
	oauth2, ok := factory.(domain.OAuth2ConnectionFactory)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an OAuth2 provider", domain.ErrInvalidCallback, providerID)
	}
	return oauth2, nil
}

// RegisteredProviderIDs returns provider ids in registration order
func (r *ConnectionFactoryRegistry) RegisteredProviderIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}
