package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/manorfm/connectM/internal/domain"
	"github.com/oklog/ulid/v2"
)

// MemoryConnectionRepository keeps connections in process memory. It backs
// STORAGE_DRIVER=memory and tests.
type MemoryConnectionRepository struct {
	mu          sync.Mutex
	connections map[string][]domain.Connection
	providers   domain.ProviderLister
}

// NewMemoryConnectionRepository creates an empty MemoryConnectionRepository
func NewMemoryConnectionRepository(providers domain.ProviderLister) *MemoryConnectionRepository {
	return &MemoryConnectionRepository{
		connections: make(map[string][]domain.Connection),
		providers:   providers,
	}
}

// ForUser returns the repository of userID
func (r *MemoryConnectionRepository) ForUser(userID string) domain.ConnectionRepository {
	return &memoryUserConnections{parent: r, userID: userID}
}

// Ping always succeeds
func (r *MemoryConnectionRepository) Ping(ctx context.Context) error {
	return nil
}

type memoryUserConnections struct {
	parent *MemoryConnectionRepository
	userID string
}

func (m *memoryUserConnections) FindAllConnections(ctx context.Context) (map[string][]*domain.Connection, error) {
	m.parent.mu.Lock()
	defer m.parent.mu.Unlock()

	result := make(map[string][]*domain.Connection)
	for _, providerID := range m.parent.providers.RegisteredProviderIDs() {
		result[providerID] = []*domain.Connection{}
	}
	for _, conn := range m.sorted() {
		result[conn.Key.ProviderID] = append(result[conn.Key.ProviderID], conn)
	}
	return result, nil
}

func (m *memoryUserConnections) FindConnections(ctx context.Context, providerID string) ([]*domain.Connection, error) {
	m.parent.mu.Lock()
	defer m.parent.mu.Unlock()

	result := []*domain.Connection{}
	for _, conn := range m.sorted() {
		if conn.Key.ProviderID == providerID {
			result = append(result, conn)
		}
	}
	return result, nil
}

func (m *memoryUserConnections) FindConnection(ctx context.Context, key domain.ConnectionKey) (*domain.Connection, error) {
	m.parent.mu.Lock()
	defer m.parent.mu.Unlock()

	for _, conn := range m.parent.connections[m.userID] {
		if conn.Key == key {
			c := conn
			return &c, nil
		}
	}
	return nil, domain.ErrConnectionNotFound
}

func (m *memoryUserConnections) FindPrimaryConnection(ctx context.Context, providerID string) (*domain.Connection, error) {
	connections, err := m.FindConnections(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if len(connections) == 0 {
		return nil, domain.ErrConnectionNotFound
	}
	return connections[0], nil
}

func (m *memoryUserConnections) AddConnection(ctx context.Context, conn *domain.Connection) error {
	m.parent.mu.Lock()
	defer m.parent.mu.Unlock()

	rank := 0
	for _, existing := range m.parent.connections[m.userID] {
		if existing.Key == conn.Key {
			return domain.NewDuplicateConnectionError(conn)
		}
		if existing.Key.ProviderID == conn.Key.ProviderID && existing.Rank > rank {
			rank = existing.Rank
		}
	}

	now := time.Now()
	if conn.ID == (ulid.ULID{}) {
		conn.ID = ulid.Make()
	}
	conn.UserID = m.userID
	conn.Rank = rank + 1
	conn.CreatedAt = now
	conn.UpdatedAt = now

	m.parent.connections[m.userID] = append(m.parent.connections[m.userID], *conn)
	return nil
}

func (m *memoryUserConnections) UpdateConnection(ctx context.Context, conn *domain.Connection) error {
	m.parent.mu.Lock()
	defer m.parent.mu.Unlock()

	connections := m.parent.connections[m.userID]
	for i := range connections {
		if connections[i].Key == conn.Key {
			connections[i].DisplayName = conn.DisplayName
			connections[i].ProfileURL = conn.ProfileURL
			connections[i].ImageURL = conn.ImageURL
			connections[i].Credentials = conn.Credentials
			connections[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return domain.ErrConnectionNotFound
}

func (m *memoryUserConnections) RemoveConnection(ctx context.Context, key domain.ConnectionKey) error {
	m.remove(func(conn domain.Connection) bool { return conn.Key == key })
	return nil
}

func (m *memoryUserConnections) RemoveConnections(ctx context.Context, providerID string) error {
	m.remove(func(conn domain.Connection) bool { return conn.Key.ProviderID == providerID })
	return nil
}

func (m *memoryUserConnections) remove(match func(domain.Connection) bool) {
	m.parent.mu.Lock()
	defer m.parent.mu.Unlock()

	kept := m.parent.connections[m.userID][:0]
	for _, conn := range m.parent.connections[m.userID] {
		if !match(conn) {
			kept = append(kept, conn)
		}
	}
	m.parent.connections[m.userID] = kept
}

// sorted returns copies ordered by provider then rank. Callers hold the lock.
func (m *memoryUserConnections) sorted() []*domain.Connection {
	connections := make([]*domain.Connection, 0, len(m.parent.connections[m.userID]))
	for _, conn := range m.parent.connections[m.userID] {
		c := conn
		connections = append(connections, &c)
	}
	sort.Slice(connections, func(i, j int) bool {
		if connections[i].Key.ProviderID != connections[j].Key.ProviderID {
			return connections[i].Key.ProviderID < connections[j].Key.ProviderID
		}
		return connections[i].Rank < connections[j].Rank
	})
	return connections
}
