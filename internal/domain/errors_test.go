package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode string
	}{
		{
			name:         "sentinel",
			err:          ErrUnknownProvider,
			expectedCode: "UNKNOWN_PROVIDER",
		},
		{
			name:         "wrapped sentinel",
			err:          fmt.Errorf("%w: connection refused", ErrProviderUnavailable),
			expectedCode: "PROVIDER_UNAVAILABLE",
		},
		{
			name:         "duplicate connection",
			err:          fmt.Errorf("add: %w", NewDuplicateConnectionError(&Connection{})),
			expectedCode: "DUPLICATE_CONNECTION",
		},
		{
			name:         "plain error",
			err:          errors.New("boom"),
			expectedCode: "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedCode, AsError(tt.err).GetCode())
			assert.Equal(t, tt.expectedCode, CodeOf(tt.err))
		})
	}

	assert.Nil(t, AsError(nil))
	assert.Empty(t, CodeOf(nil))
}

func TestDuplicateConnectionError(t *testing.T) {
	conn := &Connection{Key: ConnectionKey{ProviderID: "github", ProviderUserID: "42"}}
	err := fmt.Errorf("insert: %w", NewDuplicateConnectionError(conn))

	assert.True(t, errors.Is(err, ErrDuplicateConnection))
	assert.False(t, errors.Is(err, ErrConnectionNotFound))

	var dup *DuplicateConnectionError
	if assert.True(t, errors.As(err, &dup)) {
		assert.Equal(t, conn, dup.Connection)
	}
	assert.Contains(t, err.Error(), "github:42")
}
