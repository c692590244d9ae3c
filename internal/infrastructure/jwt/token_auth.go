package jwt

import (
	"errors"
	"time"

	"github.com/go-chi/jwtauth/v5"
)

// NewTokenAuth returns the verifier for user bearer tokens signed with HS256
func NewTokenAuth(secret string) (*jwtauth.JWTAuth, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return jwtauth.New("HS256", []byte(secret), nil), nil
}

// IssueUserToken signs a user token for subject. It is used by tooling and tests;
// production tokens come from the identity provider sharing the secret.
func IssueUserToken(auth *jwtauth.JWTAuth, subject string, ttl time.Duration) (string, error) {
	claims := map[string]interface{}{"sub": subject}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, ttl)

	_, token, err := auth.Encode(claims)
	return token, err
}
