package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/manorfm/connectM/internal/domain"
	"github.com/oklog/ulid/v2"
)

// StateClaims binds an OAuth2 state value to a user and provider
type StateClaims struct {
	ProviderID string `json:"pid"`
	jwt.RegisteredClaims
}

// StateCodec signs the OAuth2 state parameter with HMAC-SHA256
type StateCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateCodec creates a new StateCodec
func NewStateCodec(secret string, ttl time.Duration) (*StateCodec, error) {
	if secret == "" {
		return nil, errors.New("state secret is required")
	}
	return &StateCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue returns a signed state for userID connecting to providerID
func (c *StateCodec) Issue(userID, providerID string) (string, error) {
	now := c.now()
	claims := StateClaims{
		ProviderID: providerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("error signing state: %w", err)
	}
	return signed, nil
}

// Verify checks that state was issued by this codec for userID and providerID and has not expired
func (c *StateCodec) Verify(state, userID, providerID string) error {
	claims := &StateClaims{}
	_, err := jwt.ParseWithClaims(state, claims, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidState, err)
	}

	if claims.Subject != userID || claims.ProviderID != providerID {
		return fmt.Errorf("%w: state was issued for another interaction", domain.ErrInvalidState)
	}
	return nil
}
