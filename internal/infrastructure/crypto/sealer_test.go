package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer(t *testing.T) {
	sealer, err := NewSealer("a-long-test-secret")
	require.NoError(t, err)

	t.Run("seal and open", func(t *testing.T) {
		sealed, err := sealer.Seal("access-token")
		require.NoError(t, err)
		assert.NotEqual(t, "access-token", sealed)

		plaintext, err := sealer.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "access-token", plaintext)
	})

	t.Run("nonce differs per seal", func(t *testing.T) {
		first, err := sealer.Seal("same")
		require.NoError(t, err)
		second, err := sealer.Seal("same")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("empty stays empty", func(t *testing.T) {
		sealed, err := sealer.Seal("")
		require.NoError(t, err)
		assert.Empty(t, sealed)

		plaintext, err := sealer.Open("")
		require.NoError(t, err)
		assert.Empty(t, plaintext)
	})

	t.Run("other key cannot open", func(t *testing.T) {
		other, err := NewSealer("another-secret")
		require.NoError(t, err)

		sealed, err := sealer.Seal("access-token")
		require.NoError(t, err)

		_, err = other.Open(sealed)
		assert.ErrorIs(t, err, ErrUnsealable)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := sealer.Open("not base64 !!")
		assert.ErrorIs(t, err, ErrUnsealable)

		_, err = sealer.Open("c2hvcnQ")
		assert.ErrorIs(t, err, ErrUnsealable)
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := NewSealer("")
		assert.Error(t, err)
	})
}
