package stores

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alexjbarnes/idsrv-docstore/internal/docdb"
	"github.com/alexjbarnes/idsrv-docstore/internal/entities"
	errs "github.com/alexjbarnes/idsrv-docstore/internal/errors"
	"github.com/alexjbarnes/idsrv-docstore/internal/holder"
	"github.com/alexjbarnes/idsrv-docstore/internal/indexes"
	"github.com/alexjbarnes/idsrv-docstore/internal/mappers"
	"github.com/alexjbarnes/idsrv-docstore/internal/models"
)

// ResourceStore looks up identity resources, API resources and scopes.
type ResourceStore struct {
	holder *holder.Configuration
	logger *slog.Logger
}

var _ models.ResourceStore = (*ResourceStore)(nil)

// NewResourceStore returns a resource store reading through h.
func NewResourceStore(h *holder.Configuration) *ResourceStore {
	return &ResourceStore{holder: h, logger: h.Logger().With(slog.String("store", storeResource))}
}

// FindIdentityResourcesByScopeName returns the identity resources named in
// scopeNames.
func (s *ResourceStore) FindIdentityResourcesByScopeName(ctx context.Context, scopeNames []string) (_ []*models.IdentityResource, err error) {
	defer observe(s.holder.Metrics(), storeResource, "find_identity_resources_by_scope_name", &err)()

	if scopeNames == nil {
		return nil, fmt.Errorf("scope names: %w", errs.ErrNilNames)
	}

	sess := s.holder.OpenSession()
	defer sess.Close()

	found, err := indexQuery[entities.IdentityResource](sess, indexes.IdentityResourceIndexName, s.holder.NonStaleQueryTimeout()).
		WhereIn(indexes.FieldName, scopeNames).
		ToList(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding identity resources: %w", err)
	}

	out := make([]*models.IdentityResource, 0, len(found))
	for _, e := range found {
		out = append(out, mappers.IdentityResourceToModel(e))
	}

	s.logger.Debug("found identity resources",
		slog.Any("scopes", scopeNames),
		slog.Int("count", len(out)),
	)

	return out, nil
}

// FindAPIScopesByName returns the API scopes named in scopeNames.
func (s *ResourceStore) FindAPIScopesByName(ctx context.Context, scopeNames []string) (_ []*models.APIScope, err error) {
	defer observe(s.holder.Metrics(), storeResource, "find_api_scopes_by_name", &err)()

	if scopeNames == nil {
		return nil, fmt.Errorf("scope names: %w", errs.ErrNilNames)
	}

	sess := s.holder.OpenSession()
	defer sess.Close()

	found, err := indexQuery[entities.APIScope](sess, indexes.APIScopeIndexName, s.holder.NonStaleQueryTimeout()).
		WhereIn(indexes.FieldName, scopeNames).
		ToList(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding api scopes: %w", err)
	}

	out := make([]*models.APIScope, 0, len(found))
	for _, e := range found {
		out = append(out, mappers.APIScopeToModel(e))
	}

	s.logger.Debug("found api scopes",
		slog.Any("scopes", scopeNames),
		slog.Int("count", len(out)),
	)

	return out, nil
}

// FindAPIResourcesByScopeName returns every API resource exposing at least
// one of scopeNames.
func (s *ResourceStore) FindAPIResourcesByScopeName(ctx context.Context, scopeNames []string) (_ []*models.APIResource, err error) {
	defer observe(s.holder.Metrics(), storeResource, "find_api_resources_by_scope_name", &err)()

	if scopeNames == nil {
		return nil, fmt.Errorf("scope names: %w", errs.ErrNilNames)
	}

	sess := s.holder.OpenSession()
	defer sess.Close()

	found, err := indexQuery[entities.APIResource](sess, indexes.APIResourceIndexName, s.holder.NonStaleQueryTimeout()).
		ContainsAny(indexes.FieldScopes, scopeNames).
		ToList(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding api resources by scope: %w", err)
	}

	out := apiResourcesToModels(found)

	s.logger.Debug("found api resources by scope",
		slog.Any("scopes", scopeNames),
		slog.Int("count", len(out)),
	)

	return out, nil
}

// FindAPIResourcesByName returns the API resources named in names.
func (s *ResourceStore) FindAPIResourcesByName(ctx context.Context, names []string) (_ []*models.APIResource, err error) {
	defer observe(s.holder.Metrics(), storeResource, "find_api_resources_by_name", &err)()

	if names == nil {
		return nil, fmt.Errorf("api resource names: %w", errs.ErrNilNames)
	}

	sess := s.holder.OpenSession()
	defer sess.Close()

	found, err := indexQuery[entities.APIResource](sess, indexes.APIResourceIndexName, s.holder.NonStaleQueryTimeout()).
		WhereIn(indexes.FieldName, names).
		ToList(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding api resources: %w", err)
	}

	out := apiResourcesToModels(found)

	s.logger.Debug("found api resources",
		slog.Any("names", names),
		slog.Int("count", len(out)),
	)

	return out, nil
}

// GetAllResources returns every resource, including those hidden from
// discovery. Filtering for discovery is up to the host.
func (s *ResourceStore) GetAllResources(ctx context.Context) (_ *models.Resources, err error) {
	defer observe(s.holder.Metrics(), storeResource, "get_all_resources", &err)()

	sess := s.holder.OpenSession()
	defer sess.Close()

	identity, err := docdb.QueryCollection[entities.IdentityResource](sess).ToList(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing identity resources: %w", err)
	}

	apis, err := docdb.QueryCollection[entities.APIResource](sess).ToList(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing api resources: %w", err)
	}

	scopes, err := docdb.QueryCollection[entities.APIScope](sess).ToList(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing api scopes: %w", err)
	}

	result := &models.Resources{
		IdentityResources: make([]*models.IdentityResource, 0, len(identity)),
		APIResources:      apiResourcesToModels(apis),
		APIScopes:         make([]*models.APIScope, 0, len(scopes)),
	}

	for _, e := range identity {
		result.IdentityResources = append(result.IdentityResources, mappers.IdentityResourceToModel(e))
	}

	for _, e := range scopes {
		result.APIScopes = append(result.APIScopes, mappers.APIScopeToModel(e))
	}

	s.logger.Debug("loaded all resources",
		slog.Int("identity_resources", len(result.IdentityResources)),
		slog.Int("api_resources", len(result.APIResources)),
		slog.Int("api_scopes", len(result.APIScopes)),
	)

	return result, nil
}

func apiResourcesToModels(found []*entities.APIResource) []*models.APIResource {
	out := make([]*models.APIResource, 0, len(found))
	for _, e := range found {
		out = append(out, mappers.APIResourceToModel(e))
	}

	return out
}
