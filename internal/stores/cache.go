package stores

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/bluele/gcache"

	errs "github.com/alexjbarnes/idsrv-docstore/internal/errors"
	"github.com/alexjbarnes/idsrv-docstore/internal/metrics"
	"github.com/alexjbarnes/idsrv-docstore/internal/models"
)

// Cache label values for metrics.
const (
	cacheClient   = "client"
	cacheResource = "resource"
	cacheCors     = "cors_policy"
)

// CacheOptions sizes the configuration store caches. A non-positive Size
// leaves the cache unbounded; a non-positive Expiration keeps entries
// until evicted.
type CacheOptions struct {
	Expiration time.Duration
	Size       int
	Metrics    *metrics.Metrics
}

func newCache(opts CacheOptions) gcache.Cache {
	b := gcache.New(opts.Size)
	if opts.Size > 0 {
		b = b.LRU()
	} else {
		b = b.Simple()
	}

	if opts.Expiration > 0 {
		b = b.Expiration(opts.Expiration)
	}

	return b.Build()
}

// cached returns the value under key, loading and storing it on a miss.
// Nil results are cached like any other.
func cached[V any](c gcache.Cache, m *metrics.Metrics, name, key string, load func() (V, error)) (V, error) {
	if v, err := c.Get(key); err == nil {
		if typed, ok := v.(V); ok {
			m.CacheLookup(name, true)
			return typed, nil
		}
	}

	m.CacheLookup(name, false)

	v, err := load()
	if err != nil {
		var zero V
		return zero, err
	}

	_ = c.Set(key, v)

	return v, nil
}

// CachingClientStore caches client lookups, including misses. Returned
// clients are shared between callers and must not be modified.
type CachingClientStore struct {
	inner   models.ClientStore
	cache   gcache.Cache
	metrics *metrics.Metrics
}

var _ models.ClientStore = (*CachingClientStore)(nil)

// NewCachingClientStore caches inner lookups by client id, including
// misses.
func NewCachingClientStore(inner models.ClientStore, opts CacheOptions) *CachingClientStore {
	return &CachingClientStore{inner: inner, cache: newCache(opts), metrics: opts.Metrics}
}

func (s *CachingClientStore) FindClientByID(ctx context.Context, clientID string) (*models.Client, error) {
	return cached(s.cache, s.metrics, cacheClient, clientID, func() (*models.Client, error) {
		return s.inner.FindClientByID(ctx, clientID)
	})
}

// Purge drops every cached client.
func (s *CachingClientStore) Purge() { s.cache.Purge() }

// CachingResourceStore caches resource lookups by the set of names asked
// for. Returned values are shared and must not be modified.
type CachingResourceStore struct {
	inner   models.ResourceStore
	cache   gcache.Cache
	metrics *metrics.Metrics
}

var _ models.ResourceStore = (*CachingResourceStore)(nil)

// NewCachingResourceStore caches inner lookups by the sorted set of
// names.
func NewCachingResourceStore(inner models.ResourceStore, opts CacheOptions) *CachingResourceStore {
	return &CachingResourceStore{inner: inner, cache: newCache(opts), metrics: opts.Metrics}
}

// namesKey is independent of the order and repetition of names.
func namesKey(kind string, names []string) string {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	return kind + ":" + strings.Join(sorted, "\x00")
}

func (s *CachingResourceStore) FindIdentityResourcesByScopeName(ctx context.Context, scopeNames []string) ([]*models.IdentityResource, error) {
	if scopeNames == nil {
		return nil, errs.ErrNilNames
	}

	return cached(s.cache, s.metrics, cacheResource, namesKey("identity", scopeNames), func() ([]*models.IdentityResource, error) {
		return s.inner.FindIdentityResourcesByScopeName(ctx, scopeNames)
	})
}

func (s *CachingResourceStore) FindAPIScopesByName(ctx context.Context, scopeNames []string) ([]*models.APIScope, error) {
	if scopeNames == nil {
		return nil, errs.ErrNilNames
	}

	return cached(s.cache, s.metrics, cacheResource, namesKey("scope", scopeNames), func() ([]*models.APIScope, error) {
		return s.inner.FindAPIScopesByName(ctx, scopeNames)
	})
}

func (s *CachingResourceStore) FindAPIResourcesByScopeName(ctx context.Context, scopeNames []string) ([]*models.APIResource, error) {
	if scopeNames == nil {
		return nil, errs.ErrNilNames
	}

	return cached(s.cache, s.metrics, cacheResource, namesKey("api-by-scope", scopeNames), func() ([]*models.APIResource, error) {
		return s.inner.FindAPIResourcesByScopeName(ctx, scopeNames)
	})
}

func (s *CachingResourceStore) FindAPIResourcesByName(ctx context.Context, apiResourceNames []string) ([]*models.APIResource, error) {
	if apiResourceNames == nil {
		return nil, errs.ErrNilNames
	}

	return cached(s.cache, s.metrics, cacheResource, namesKey("api", apiResourceNames), func() ([]*models.APIResource, error) {
		return s.inner.FindAPIResourcesByName(ctx, apiResourceNames)
	})
}

func (s *CachingResourceStore) GetAllResources(ctx context.Context) (*models.Resources, error) {
	return cached(s.cache, s.metrics, cacheResource, "all", func() (*models.Resources, error) {
		return s.inner.GetAllResources(ctx)
	})
}

// Purge drops every cached resource lookup.
func (s *CachingResourceStore) Purge() { s.cache.Purge() }

// CachingCorsPolicyService caches origin decisions.
type CachingCorsPolicyService struct {
	inner   models.CorsPolicyService
	cache   gcache.Cache
	metrics *metrics.Metrics
}

var _ models.CorsPolicyService = (*CachingCorsPolicyService)(nil)

// NewCachingCorsPolicyService caches inner answers by lowercased origin.
func NewCachingCorsPolicyService(inner models.CorsPolicyService, opts CacheOptions) *CachingCorsPolicyService {
	return &CachingCorsPolicyService{inner: inner, cache: newCache(opts), metrics: opts.Metrics}
}

func (s *CachingCorsPolicyService) IsOriginAllowed(ctx context.Context, origin string) (bool, error) {
	return cached(s.cache, s.metrics, cacheCors, strings.ToLower(origin), func() (bool, error) {
		return s.inner.IsOriginAllowed(ctx, origin)
	})
}

// Purge drops every cached decision.
func (s *CachingCorsPolicyService) Purge() { s.cache.Purge() }
