package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var sentinels = []error{
	ErrMissingDatabase,
	ErrMissingURLs,
	ErrConfigurationStoreNotRegistered,
	ErrNilNames,
	ErrEmptyFilter,
	ErrNilGrant,
	ErrNilDeviceCode,
	ErrDeviceCodeExists,
	ErrUserCodeExists,
	ErrDeviceCodeNotFound,
}

func TestSentinelErrors_ImplementErrorInterface(t *testing.T) {
	for _, err := range sentinels {
		assert.NotEmpty(t, err.Error(), "sentinel error should have non-empty message")
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinel errors should be distinct: %q vs %q", sentinels[i], sentinels[j])
		}
	}
}

func TestSentinelErrors_ExpectedMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrMissingDatabase, "a database name is required"},
		{ErrMissingURLs, "at least one database url is required"},
		{ErrDeviceCodeNotFound, "could not update device code"},
		{ErrNilNames, "names must not be nil"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestSentinelErrors_SurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("storing device authorization: %w", ErrUserCodeExists)
	assert.True(t, errors.Is(wrapped, ErrUserCodeExists))
	assert.False(t, errors.Is(wrapped, ErrDeviceCodeExists))
}
