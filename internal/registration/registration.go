// Package registration wires the store families into the contracts the
// host consumes.
package registration

import (
	"context"
	"errors"
	"log/slog"
	"time"

	errs "github.com/alexjbarnes/idsrv-docstore/internal/errors"
	"github.com/alexjbarnes/idsrv-docstore/internal/holder"
	"github.com/alexjbarnes/idsrv-docstore/internal/logging"
	"github.com/alexjbarnes/idsrv-docstore/internal/metrics"
	"github.com/alexjbarnes/idsrv-docstore/internal/models"
	"github.com/alexjbarnes/idsrv-docstore/internal/serialization"
	"github.com/alexjbarnes/idsrv-docstore/internal/stores"
)

// Services are the wired store contracts. Fields of a family that was not
// registered are nil.
type Services struct {
	ClientStore         models.ClientStore
	ResourceStore       models.ResourceStore
	CorsPolicyService   models.CorsPolicyService
	PersistedGrantStore models.PersistedGrantStore
	DeviceFlowStore     models.DeviceFlowStore

	Configuration *holder.Configuration
	Operational   *holder.Operational
}

// Builder registers store families one at a time.
type Builder struct {
	logger     *slog.Logger
	metrics    *metrics.Metrics
	serializer serialization.PersistentGrantSerializer
	services   Services
}

// Option configures a Builder.
type Option func(*Builder)

// WithMetrics records store activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// WithSerializer replaces the JSON serializer used for device codes.
func WithSerializer(s serialization.PersistentGrantSerializer) Option {
	return func(b *Builder) { b.serializer = s }
}

func New(logger *slog.Logger, opts ...Option) *Builder {
	b := &Builder{logger: logging.Discard(logger)}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

func (b *Builder) storeOptions(configure func(*holder.StoreOptions)) holder.StoreOptions {
	opts := holder.DefaultStoreOptions()
	opts.Logger = b.logger
	opts.Metrics = b.metrics

	if configure != nil {
		configure(&opts)
	}

	return opts
}

// AddConfigurationStore opens the configuration store and wires the
// client, resource and CORS stores over it. Registering again replaces
// the previous registration and closes its store.
func (b *Builder) AddConfigurationStore(ctx context.Context, configure func(*holder.StoreOptions)) error {
	h, err := holder.NewConfiguration(ctx, b.storeOptions(configure))
	if err != nil {
		return err
	}

	if prev := b.services.Configuration; prev != nil {
		prev.Close()
	}

	b.services.Configuration = h
	b.services.ClientStore = stores.NewClientStore(h)
	b.services.ResourceStore = stores.NewResourceStore(h)
	b.services.CorsPolicyService = stores.NewCorsPolicyService(h)

	b.logger.Info("configuration store registered", slog.String("database", h.DocumentStore().Database()))

	return nil
}

// AddConfigurationStoreCache puts caches of the given expiration and size
// in front of the configuration stores.
func (b *Builder) AddConfigurationStoreCache(expiration time.Duration, size int) error {
	if b.services.Configuration == nil {
		return errs.ErrConfigurationStoreNotRegistered
	}

	opts := stores.CacheOptions{Expiration: expiration, Size: size, Metrics: b.metrics}

	b.services.ClientStore = stores.NewCachingClientStore(b.services.ClientStore, opts)
	b.services.ResourceStore = stores.NewCachingResourceStore(b.services.ResourceStore, opts)
	b.services.CorsPolicyService = stores.NewCachingCorsPolicyService(b.services.CorsPolicyService, opts)

	b.logger.Info("configuration store cache enabled",
		slog.Duration("expiration", expiration),
		slog.Int("size", size),
	)

	return nil
}

// AddOperationalStore opens the operational store and wires the grant and
// device flow stores over it.
func (b *Builder) AddOperationalStore(ctx context.Context, configure func(*holder.StoreOptions)) error {
	h, err := holder.NewOperational(ctx, b.storeOptions(configure))
	if err != nil {
		return err
	}

	if prev := b.services.Operational; prev != nil {
		prev.Close()
	}

	b.services.Operational = h
	b.services.PersistedGrantStore = stores.NewPersistedGrantStore(h)
	b.services.DeviceFlowStore = stores.NewDeviceFlowStore(h, b.serializer)

	b.logger.Info("operational store registered", slog.String("database", h.DocumentStore().Database()))

	return nil
}

// Services returns what has been wired so far.
func (b *Builder) Services() Services {
	return b.services
}

// Close releases both families' stores.
func (b *Builder) Close() error {
	var errList []error

	if h := b.services.Configuration; h != nil {
		if err := h.Close(); err != nil {
			errList = append(errList, err)
		}
	}

	if h := b.services.Operational; h != nil {
		if err := h.Close(); err != nil {
			errList = append(errList, err)
		}
	}

	return errors.Join(errList...)
}
