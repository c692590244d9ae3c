package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/manorfm/connectM/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type store interface {
	domain.AuthSessionStore
	domain.FlashStore
}

func newRedisStore(t *testing.T) store {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Minute)
}

func newMemoryStore(t *testing.T) store {
	s := NewMemoryStore(time.Minute)
	t.Cleanup(s.Stop)
	return s
}

func TestStores(t *testing.T) {
	stores := []struct {
		name  string
		build func(*testing.T) store
	}{
		{name: "redis", build: newRedisStore},
		{name: "memory", build: newMemoryStore},
	}

	for _, st := range stores {
		t.Run(st.name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("take auth session once", func(t *testing.T) {
				s := st.build(t)
				session := &domain.TransientAuthSession{
					ProviderID:   "twitter",
					RequestToken: domain.RequestToken{Value: "tok", Secret: "sec"},
					CallbackURL:  "https://app/connect/twitter",
					State:        domain.FlowAwaitingProviderAuthorization,
					ExpiresAt:    time.Now().Add(time.Minute),
				}
				require.NoError(t, s.PutAuthSession(ctx, "sid:user:twitter", session))

				taken, err := s.TakeAuthSession(ctx, "sid:user:twitter")
				require.NoError(t, err)
				assert.Equal(t, "twitter", taken.ProviderID)
				assert.Equal(t, "sec", taken.RequestToken.Secret)
				assert.Equal(t, domain.FlowAwaitingProviderAuthorization, taken.State)
				assert.False(t, taken.Consumed())

				_, err = s.TakeAuthSession(ctx, "sid:user:twitter")
				assert.ErrorIs(t, err, domain.ErrAuthSessionNotFound)
			})

			t.Run("missing auth session", func(t *testing.T) {
				s := st.build(t)
				_, err := s.TakeAuthSession(ctx, "nope")
				assert.ErrorIs(t, err, domain.ErrAuthSessionNotFound)
			})

			t.Run("expired auth session rejected", func(t *testing.T) {
				s := st.build(t)
				err := s.PutAuthSession(ctx, "k", &domain.TransientAuthSession{ExpiresAt: time.Now().Add(-time.Second)})
				assert.Error(t, err)
			})

			t.Run("flash is shown once", func(t *testing.T) {
				s := st.build(t)
				key := domain.ConnectionKey{ProviderID: "x", ProviderUserID: "1"}
				require.NoError(t, s.PutFlash(ctx, "sid", &domain.Flash{ProviderID: "x", Duplicate: &key}))

				flash, err := s.TakeFlash(ctx, "sid")
				require.NoError(t, err)
				require.NotNil(t, flash)
				assert.Equal(t, &key, flash.Duplicate)

				flash, err = s.TakeFlash(ctx, "sid")
				require.NoError(t, err)
				assert.Nil(t, flash)
			})
		})
	}
}

func TestCookies(t *testing.T) {
	t.Run("set and read", func(t *testing.T) {
		w := httptest.NewRecorder()
		SetCookie(w, "abc", CookieOptions{Secure: true})

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, DefaultCookieName, cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
		assert.True(t, cookies[0].Secure)
		assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(cookies[0])
		assert.Equal(t, "abc", ReadCookie(r, CookieOptions{}))
	})

	t.Run("generate id", func(t *testing.T) {
		first, err := GenerateID()
		require.NoError(t, err)
		second, err := GenerateID()
		require.NoError(t, err)

		assert.Len(t, first, 43)
		assert.NotEqual(t, first, second)
	})
}
