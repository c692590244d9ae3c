package domain

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// FlowState is the position of an authorization flow
type FlowState int

const (
	FlowNotStarted FlowState = iota
	FlowRequestTokenObtained
	FlowAwaitingProviderAuthorization
	FlowCompleted
)

func (s FlowState) String() string {
	switch s {
	case FlowNotStarted:
		return "not_started"
	case FlowRequestTokenObtained:
		return "request_token_obtained"
	case FlowAwaitingProviderAuthorization:
		return "awaiting_provider_authorization"
	case FlowCompleted:
		return "completed"
	}
	return fmt.Sprintf("flow_state(%d)", int(s))
}

// TransientAuthSession holds an OAuth1 request token between initiation and callback.
// It is single use and never persisted durably.
type TransientAuthSession struct {
	ProviderID   string       `json:"provider_id"`
	RequestToken RequestToken `json:"request_token"`
	CallbackURL  string       `json:"callback_url"`
	State        FlowState    `json:"state"`
	ExpiresAt    time.Time    `json:"expires_at"`

	consumed atomic.Bool
}

// Consume claims the session for a completion attempt. Only the first call succeeds.
func (s *TransientAuthSession) Consume(now time.Time) error {
	if !s.consumed.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: session already consumed", ErrAuthSessionNotFound)
	}
	if s.State != FlowAwaitingProviderAuthorization {
		return fmt.Errorf("%w: session is %s", ErrAuthSessionNotFound, s.State)
	}
	if !now.Before(s.ExpiresAt) {
		return fmt.Errorf("%w: session expired", ErrAuthSessionNotFound)
	}
	return nil
}

// Consumed reports whether Consume has been called
func (s *TransientAuthSession) Consumed() bool {
	return s.consumed.Load()
}

// AuthSessionStore keeps transient OAuth1 sessions keyed per user agent
type AuthSessionStore interface {
	PutAuthSession(ctx context.Context, key string, session *TransientAuthSession) error

	// TakeAuthSession returns and removes the session in one step
	TakeAuthSession(ctx context.Context, key string) (*TransientAuthSession, error)
}

// Flash is one-shot state shown by the next status render
type Flash struct {
	ProviderID string         `json:"provider_id"`
	Duplicate  *ConnectionKey `json:"duplicate,omitempty"`
	ErrorCode  string         `json:"error_code,omitempty"`
}

// FlashStore keeps flash state per browser session
type FlashStore interface {
	PutFlash(ctx context.Context, sessionID string, flash *Flash) error

	// TakeFlash returns and removes the flash. It returns nil when there is none.
	TakeFlash(ctx context.Context, sessionID string) (*Flash, error)
}

// CallbackParams are the query parameters a provider sent back
type CallbackParams map[string]string

// Get returns the value of key or an empty string
func (p CallbackParams) Get(key string) string {
	return p[key]
}

// Has reports whether key is present with a non-empty value
func (p CallbackParams) Has(key string) bool {
	return p[key] != ""
}
