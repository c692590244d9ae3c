package dto

import (
	"time"

	"github.com/manorfm/connectM/internal/domain"
)

// ConnectionKeyResponse identifies a connection
type ConnectionKeyResponse struct {
	ProviderID     string `json:"provider_id"`
	ProviderUserID string `json:"provider_user_id"`
}

// ConnectionResponse is a connection as shown to its owner. Credentials are never exposed.
type ConnectionResponse struct {
	ID             string     `json:"id"`
	ProviderID     string     `json:"provider_id"`
	ProviderUserID string     `json:"provider_user_id"`
	Rank           int        `json:"rank"`
	DisplayName    string     `json:"display_name,omitempty"`
	ProfileURL     string     `json:"profile_url,omitempty"`
	ImageURL       string     `json:"image_url,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func NewConnectionResponse(conn *domain.Connection) *ConnectionResponse {
	return &ConnectionResponse{
		ID:             conn.ID.String(),
		ProviderID:     conn.Key.ProviderID,
		ProviderUserID: conn.Key.ProviderUserID,
		Rank:           conn.Rank,
		DisplayName:    conn.DisplayName,
		ProfileURL:     conn.ProfileURL,
		ImageURL:       conn.ImageURL,
		ExpiresAt:      conn.Credentials.ExpiresAt,
		CreatedAt:      conn.CreatedAt,
		UpdatedAt:      conn.UpdatedAt,
	}
}

// StatusResponse is the model of a connection status view
type StatusResponse struct {
	View                string                           `json:"view"`
	ProviderIDs         []string                         `json:"provider_ids"`
	Connections         map[string][]*ConnectionResponse `json:"connections"`
	DuplicateConnection *ConnectionKeyResponse           `json:"duplicate_connection,omitempty"`
	ConnectError        string                           `json:"connect_error,omitempty"`
}

func NewStatusResponse(view *domain.StatusView) *StatusResponse {
	resp := &StatusResponse{
		View:         view.View,
		ProviderIDs:  view.ProviderIDs,
		Connections:  make(map[string][]*ConnectionResponse, len(view.Connections)),
		ConnectError: view.ErrorCode,
	}

	for providerID, connections := range view.Connections {
		items := make([]*ConnectionResponse, 0, len(connections))
		for _, conn := range connections {
			items = append(items, NewConnectionResponse(conn))
		}
		resp.Connections[providerID] = items
	}

	if view.DuplicateConnection != nil {
		resp.DuplicateConnection = &ConnectionKeyResponse{
			ProviderID:     view.DuplicateConnection.ProviderID,
			ProviderUserID: view.DuplicateConnection.ProviderUserID,
		}
	}

	return resp
}

// RedirectResponse is returned instead of a redirect when the client asks for JSON
type RedirectResponse struct {
	RedirectURL string `json:"redirect_url"`
}
