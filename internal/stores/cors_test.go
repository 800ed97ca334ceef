package stores

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/idsrv-docstore/internal/mappers"
)

func TestIsOriginAllowed(t *testing.T) {
	h := testConfiguration(t)
	seed(t, h,
		mappers.ClientToEntity(newClient("spa", "https://app.example.com", "http://localhost:3000")),
		mappers.ClientToEntity(newClient("backend")),
	)
	s := NewCorsPolicyService(h)

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://app.example.com", true},
		{"HTTPS://APP.EXAMPLE.COM", true},
		{"http://localhost:3000", true},
		{"https://evil.example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			got, err := s.IsOriginAllowed(context.Background(), tt.origin)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsOriginAllowed_NoClients(t *testing.T) {
	got, err := NewCorsPolicyService(testConfiguration(t)).IsOriginAllowed(context.Background(), "https://a.example.com")
	require.NoError(t, err)
	assert.False(t, got)
}
