package domain

import "context"

// ConnectionRepository defines access to one user's connections
type ConnectionRepository interface {
	// FindAllConnections returns connections grouped by provider id.
	// Every registered provider has an entry, empty when not connected.
	FindAllConnections(ctx context.Context) (map[string][]*Connection, error)

	// FindConnections returns the connections to providerID ordered by rank
	FindConnections(ctx context.Context, providerID string) ([]*Connection, error)

	// FindConnection returns the connection for key
	FindConnection(ctx context.Context, key ConnectionKey) (*Connection, error)

	// FindPrimaryConnection returns the lowest ranked connection to providerID
	FindPrimaryConnection(ctx context.Context, providerID string) (*Connection, error)

	// AddConnection stores a new connection, failing with a DuplicateConnectionError
	// when the key already exists for the user
	AddConnection(ctx context.Context, conn *Connection) error

	// UpdateConnection replaces the profile attributes and credentials of a connection
	UpdateConnection(ctx context.Context, conn *Connection) error

	// RemoveConnection deletes the connection for key. Missing keys are ignored.
	RemoveConnection(ctx context.Context, key ConnectionKey) error

	// RemoveConnections deletes every connection to providerID
	RemoveConnections(ctx context.Context, providerID string) error
}

// UsersConnectionRepository hands out repositories scoped to a user
type UsersConnectionRepository interface {
	ForUser(userID string) ConnectionRepository
	Ping(ctx context.Context) error
}

// ProviderLister lists provider ids in registration order
type ProviderLister interface {
	RegisteredProviderIDs() []string
}
