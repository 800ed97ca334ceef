package indexes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/idsrv-docstore/internal/docdb"
	"github.com/alexjbarnes/idsrv-docstore/internal/entities"
)

func testStore(t *testing.T) *docdb.DocumentStore {
	t.Helper()
	s, err := docdb.Open(context.Background(), docdb.Options{
		URLs:     []string{"bolt://" + t.TempDir()},
		Database: "indexes",
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCollectionsMatchEntities(t *testing.T) {
	assert.Equal(t, (&entities.Client{}).Collection(), ClientIndex.Collection)
	assert.Equal(t, (&entities.APIResource{}).Collection(), APIResourceIndex.Collection)
	assert.Equal(t, (&entities.APIScope{}).Collection(), APIScopeIndex.Collection)
	assert.Equal(t, (&entities.IdentityResource{}).Collection(), IdentityResourceIndex.Collection)
	assert.Equal(t, (&entities.PersistedGrant{}).Collection(), PersistedGrantIndex.Collection)
	assert.Equal(t, (&entities.DeviceFlowCode{}).Collection(), DeviceFlowCodeIndex.Collection)
}

func TestFamilies(t *testing.T) {
	names := func(defs []docdb.IndexDefinition) []string {
		out := make([]string, len(defs))
		for i, d := range defs {
			out[i] = d.Name
		}
		return out
	}

	assert.ElementsMatch(t,
		[]string{ClientIndexName, APIResourceIndexName, APIScopeIndexName, IdentityResourceIndexName},
		names(Configuration()))
	assert.ElementsMatch(t,
		[]string{PersistedGrantIndexName, DeviceFlowCodeIndexName},
		names(Operational()))
}

func TestExecute_IdempotentAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	opts := docdb.Options{URLs: []string{"bolt://" + dir}, Database: "indexes"}

	s, err := docdb.Open(ctx, opts)
	require.NoError(t, err)
	require.NoError(t, ExecuteConfigurationIndexes(ctx, s))
	require.NoError(t, ExecuteConfigurationIndexes(ctx, s))
	require.NoError(t, ExecuteOperationalIndexes(ctx, s))

	sess := s.OpenSession()
	require.NoError(t, sess.Store(ctx, &entities.Client{ClientID: "web"}))
	require.NoError(t, sess.SaveChanges(ctx))
	sess.Close()
	require.NoError(t, s.Close())

	reopened, err := docdb.Open(ctx, opts)
	require.NoError(t, err)
	defer reopened.Close()

	// Every index is served again before anything is executed.
	for _, def := range append(Configuration(), Operational()...) {
		_, err := reopened.IsStale(def.Name)
		require.NoError(t, err, def.Name)
	}

	found, err := docdb.QueryIndex[entities.Client](reopened.OpenSession(), ClientIndexName).
		WhereEquals(FieldClientID, "web").
		Any(ctx)
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, ExecuteConfigurationIndexes(ctx, reopened))
	require.NoError(t, ExecuteOperationalIndexes(ctx, reopened))
	require.NoError(t, reopened.WaitForIndexing(ctx, 5*time.Second))

	for _, def := range append(Configuration(), Operational()...) {
		stale, err := reopened.IsStale(def.Name)
		require.NoError(t, err)
		assert.False(t, stale, def.Name)
	}
}

func TestClientIndex_ProjectsOriginsCaseFolded(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, ExecuteConfigurationIndexes(ctx, s))

	sess := s.OpenSession()
	require.NoError(t, sess.Store(ctx, &entities.Client{
		ClientID:           "web",
		AllowedCorsOrigins: []string{"https://A.Example"},
	}))
	require.NoError(t, sess.SaveChanges(ctx))
	sess.Close()

	found, err := docdb.QueryIndex[entities.Client](s.OpenSession(), ClientIndexName).
		ContainsAny(FieldAllowedCorsOrigins, []string{"HTTPS://a.example"}).
		WaitForNonStaleResults(5 * time.Second).
		Any(ctx)
	require.NoError(t, err)
	assert.True(t, found)
}
