package domain

import (
	"context"
	"net/url"
)

// ConnectInterceptor observes connection attempts for one API kind
type ConnectInterceptor interface {
	// PreConnect runs before the user is sent to the provider and may add
	// authorization parameters
	PreConnect(ctx context.Context, factory ConnectionFactory, params url.Values) error

	// PostConnect runs after a new connection has been stored
	PostConnect(ctx context.Context, conn *Connection) error
}

// Interaction identifies who is connecting and from where
type Interaction struct {
	UserID    string
	SessionID string
	// ConnectURL is the absolute URL of the connect endpoint, without provider id
	ConnectURL string
}

// CallbackURL returns the URL the provider redirects back to
func (i Interaction) CallbackURL(providerID string) string {
	return i.ConnectURL + "/" + providerID
}

// StatusView is the model of a connection status page
type StatusView struct {
	View                string
	ProviderIDs         []string
	Connections         map[string][]*Connection
	DuplicateConnection *ConnectionKey
	ErrorCode           string
}

// CallbackOutcome is the result of processing a provider callback
type CallbackOutcome struct {
	RedirectURL string
	Connection  *Connection
	Duplicate   bool
	Err         error
}

// ConnectService drives users through connecting to providers
type ConnectService interface {
	ConnectionStatus(ctx context.Context, in Interaction) (*StatusView, error)
	ProviderStatus(ctx context.Context, in Interaction, providerID string) (*StatusView, error)
	Connect(ctx context.Context, in Interaction, providerID string, scopes []string) (string, error)
	CompleteConnection(ctx context.Context, in Interaction, providerID string, callback CallbackParams) (*CallbackOutcome, error)
	RemoveConnections(ctx context.Context, in Interaction, providerID string) (string, error)
	RemoveConnection(ctx context.Context, in Interaction, key ConnectionKey) (string, error)
	RefreshConnection(ctx context.Context, in Interaction, key ConnectionKey) (*Connection, error)
}
