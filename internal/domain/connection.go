package domain

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// ConnectionKey identifies a provider account. It is unique within a user's connections.
type ConnectionKey struct {
	ProviderID     string `json:"provider_id"`
	ProviderUserID string `json:"provider_user_id"`
}

func (k ConnectionKey) String() string {
	return k.ProviderID + ":" + k.ProviderUserID
}

// Credentials holds the access grant obtained from a provider.
// OAuth1 connections use AccessToken and Secret, OAuth2 connections
// use AccessToken, RefreshToken and ExpiresAt.
type Credentials struct {
	AccessToken  string     `json:"-"`
	Secret       string     `json:"-"`
	RefreshToken string     `json:"-"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the access token is past its expiry at now
func (c Credentials) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// UserProfile is the subset of a provider profile kept on a connection
type UserProfile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ProfileURL string `json:"profile_url"`
	ImageURL   string `json:"image_url"`
}

// Connection links a local user to an account at a provider
type Connection struct {
	ID          ULID          `json:"id"`
	UserID      string        `json:"user_id"`
	Key         ConnectionKey `json:"key"`
	Rank        int           `json:"rank"`
	DisplayName string        `json:"display_name"`
	ProfileURL  string        `json:"profile_url"`
	ImageURL    string        `json:"image_url"`
	Credentials Credentials   `json:"credentials"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewConnection builds a connection for providerID from a fetched profile
func NewConnection(providerID string, profile *UserProfile, creds Credentials) (*Connection, error) {
	if profile == nil || profile.ID == "" {
		return nil, fmt.Errorf("%w: profile for %s has no user id", ErrProviderUnavailable, providerID)
	}

	now := time.Now()
	conn := &Connection{
		ID: ulid.Make(),
		Key: ConnectionKey{
			ProviderID:     providerID,
			ProviderUserID: profile.ID,
		},
		Credentials: creds,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	conn.ApplyProfile(profile)

	return conn, nil
}

// ApplyProfile copies the display attributes of profile onto the connection
func (c *Connection) ApplyProfile(profile *UserProfile) {
	c.DisplayName = profile.Name
	c.ProfileURL = profile.ProfileURL
	c.ImageURL = profile.ImageURL
}
