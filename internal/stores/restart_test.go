package stores

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/alexjbarnes/idsrv-docstore/internal/errors"
	"github.com/alexjbarnes/idsrv-docstore/internal/holder"
	"github.com/alexjbarnes/idsrv-docstore/internal/mappers"
	"github.com/alexjbarnes/idsrv-docstore/internal/models"
)

// reopenConfiguration closes h and opens a new holder over the same
// database, the way a restarted process would.
func reopenConfiguration(t *testing.T, h *holder.Configuration, opts holder.StoreOptions) *holder.Configuration {
	t.Helper()
	require.NoError(t, h.Close())

	reopened, err := holder.NewConfiguration(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	return reopened
}

func reopenOperational(t *testing.T, h *holder.Operational, opts holder.StoreOptions) *holder.Operational {
	t.Helper()
	require.NoError(t, h.Close())

	reopened, err := holder.NewOperational(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	return reopened
}

func TestRestart_ClientFoundImmediately(t *testing.T) {
	ctx := context.Background()
	opts := boltOptions(t, "config")

	h, err := holder.NewConfiguration(ctx, opts)
	require.NoError(t, err)
	seed(t, h, mappers.ClientToEntity(newClient("web", "https://app.example")))

	h = reopenConfiguration(t, h, opts)

	// No index wait is configured and nothing is seeded after reopening.
	got, err := NewClientStore(h).FindClientByID(ctx, "web")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "web", got.ClientID)

	allowed, err := NewCorsPolicyService(h).IsOriginAllowed(ctx, "https://APP.example")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRestart_CreateIndexesDisabled(t *testing.T) {
	ctx := context.Background()
	opts := boltOptions(t, "config")

	h, err := holder.NewConfiguration(ctx, opts)
	require.NoError(t, err)
	seed(t, h, mappers.ClientToEntity(newClient("web", "https://app.example")))

	opts.CreateIndexes = false
	h = reopenConfiguration(t, h, opts)

	got, err := NewClientStore(h).FindClientByID(ctx, "web")
	require.NoError(t, err)
	require.NotNil(t, got)

	missing, err := NewClientStore(h).FindClientByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	allowed, err := NewCorsPolicyService(h).IsOriginAllowed(ctx, "https://app.example")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRestart_RemoveAllSeesExistingGrants(t *testing.T) {
	ctx := context.Background()
	opts := boltOptions(t, "ops")

	h, err := holder.NewOperational(ctx, opts)
	require.NoError(t, err)

	s := NewPersistedGrantStore(h)
	for i := range 50 {
		storeGrants(t, s, newGrant(fmt.Sprintf("k%d", i), "web", "alice", "s1", "refresh_token"))
	}
	storeGrants(t, s, newGrant("other", "web", "bob", "s2", "refresh_token"))

	h = reopenOperational(t, h, opts)
	s = NewPersistedGrantStore(h)

	require.NoError(t, s.RemoveAll(ctx, models.PersistedGrantFilter{SubjectID: "alice"}))

	left, err := s.GetAll(ctx, models.PersistedGrantFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "bob", left[0].SubjectID)
}

func TestRestart_StoreUpdatesExistingGrant(t *testing.T) {
	ctx := context.Background()
	opts := boltOptions(t, "ops")

	h, err := holder.NewOperational(ctx, opts)
	require.NoError(t, err)
	storeGrants(t, NewPersistedGrantStore(h), newGrant("k1", "web", "alice", "s1", "refresh_token"))

	h = reopenOperational(t, h, opts)
	s := NewPersistedGrantStore(h)

	updated := newGrant("k1", "web", "alice", "s1", "refresh_token")
	updated.Data = "rotated"
	require.NoError(t, s.Store(ctx, updated))
	require.NoError(t, s.Store(ctx, updated))

	all, err := s.GetAll(ctx, models.PersistedGrantFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)

	got, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "rotated", got.Data)
}

func TestRestart_DeviceCodeDuplicatesDetected(t *testing.T) {
	ctx := context.Background()
	opts := boltOptions(t, "ops")

	h, err := holder.NewOperational(ctx, opts)
	require.NoError(t, err)
	require.NoError(t, NewDeviceFlowStore(h, nil).StoreDeviceAuthorization(ctx, "dev-1", "USER-1", newDeviceCode("tv")))

	h = reopenOperational(t, h, opts)
	s := NewDeviceFlowStore(h, nil)

	err = s.StoreDeviceAuthorization(ctx, "dev-1", "USER-2", newDeviceCode("tv"))
	assert.ErrorIs(t, err, errs.ErrDeviceCodeExists)

	err = s.StoreDeviceAuthorization(ctx, "dev-2", "USER-1", newDeviceCode("tv"))
	assert.ErrorIs(t, err, errs.ErrUserCodeExists)

	found, err := s.FindByUserCode(ctx, "USER-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "tv", found.ClientID)
}
