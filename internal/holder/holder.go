// Package holder owns the document store connection of each store family
// and hands out one session per store call.
package holder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexjbarnes/idsrv-docstore/internal/docdb"
	errs "github.com/alexjbarnes/idsrv-docstore/internal/errors"
	"github.com/alexjbarnes/idsrv-docstore/internal/indexes"
	"github.com/alexjbarnes/idsrv-docstore/internal/logging"
	"github.com/alexjbarnes/idsrv-docstore/internal/metrics"
)

// DefaultIndexWaitTimeout bounds how long writes wait for their index.
const DefaultIndexWaitTimeout = 5 * time.Second

// StoreOptions configures a store family.
type StoreOptions struct {
	// ConfigureDocumentStore fills in urls, database name and an optional
	// client certificate. Ignored when DocumentStore is set.
	ConfigureDocumentStore func(*docdb.Options)

	// CreateIndexes registers the family's indexes on construction. When
	// false the indexes must already have been executed against the
	// database; the store serves the saved definitions.
	CreateIndexes bool

	// DocumentStore is an externally owned store. The holder uses it and
	// never closes it.
	DocumentStore *docdb.DocumentStore

	// IndexWaitTimeout bounds the wait for indexes after a save.
	IndexWaitTimeout time.Duration

	// NonStaleQueryTimeout, when positive, makes reads wait up to this long
	// for non-stale results.
	NonStaleQueryTimeout time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// DefaultStoreOptions enables index creation and the default index wait.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{
		CreateIndexes:    true,
		IndexWaitTimeout: DefaultIndexWaitTimeout,
	}
}

type holder struct {
	store *docdb.DocumentStore
	owned bool
	opts  StoreOptions

	closeOnce sync.Once
	closeErr  error
}

func newHolder(ctx context.Context, opts StoreOptions, family string, execute func(context.Context, *docdb.DocumentStore) error) (*holder, error) {
	opts.Logger = logging.Discard(opts.Logger).With(slog.String("family", family))

	if opts.IndexWaitTimeout <= 0 {
		opts.IndexWaitTimeout = DefaultIndexWaitTimeout
	}

	h := &holder{store: opts.DocumentStore, opts: opts}

	if h.store == nil {
		store, err := openStore(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("%s store: %w", family, err)
		}

		h.store = store
		h.owned = true
	}

	if opts.CreateIndexes {
		if err := execute(ctx, h.store); err != nil {
			h.Close()
			return nil, err
		}
	}

	opts.Logger.Debug("document store ready",
		slog.String("database", h.store.Database()),
		slog.Bool("owned", h.owned),
		slog.Bool("create_indexes", opts.CreateIndexes),
	)

	return h, nil
}

// openStore validates the configured options and opens a store that owns
// the certificate, if any.
func openStore(ctx context.Context, opts StoreOptions) (*docdb.DocumentStore, error) {
	dbOpts := docdb.Options{Logger: opts.Logger}
	if opts.ConfigureDocumentStore != nil {
		opts.ConfigureDocumentStore(&dbOpts)
	}

	cert := dbOpts.Certificate
	closeCert := func() {
		if cert != nil {
			cert.Close()
		}
	}

	if dbOpts.Database == "" {
		closeCert()
		return nil, errs.ErrMissingDatabase
	}

	if len(dbOpts.URLs) == 0 && dbOpts.Backend == nil {
		closeCert()
		return nil, errs.ErrMissingURLs
	}

	store, err := docdb.Open(ctx, dbOpts)
	if err != nil {
		closeCert()
		return nil, err
	}

	if cert != nil {
		// Released with the connection, in the same Close.
		store.AfterClose(cert.Close)
	}

	return store, nil
}

// OpenSession returns a fresh session for a single store call.
func (h *holder) OpenSession() *docdb.Session {
	return h.store.OpenSession()
}

// DocumentStore returns the underlying store.
func (h *holder) DocumentStore() *docdb.DocumentStore {
	return h.store
}

func (h *holder) Logger() *slog.Logger { return h.opts.Logger }

func (h *holder) Metrics() *metrics.Metrics { return h.opts.Metrics }

// IndexWait returns the wait applied after saves touching indexName.
func (h *holder) IndexWait(indexName string) docdb.IndexWait {
	return docdb.IndexWait{Indexes: []string{indexName}, Timeout: h.opts.IndexWaitTimeout}
}

// NonStaleQueryTimeout is the read wait, zero when reads do not wait.
func (h *holder) NonStaleQueryTimeout() time.Duration {
	return h.opts.NonStaleQueryTimeout
}

// Close releases an owned store and its certificate once. Externally
// supplied stores are left open.
func (h *holder) Close() error {
	h.closeOnce.Do(func() {
		if h.owned {
			h.closeErr = h.store.Close()
		}
	})

	return h.closeErr
}

// Configuration holds the store of clients and resources.
type Configuration struct {
	*holder
}

// NewConfiguration opens or adopts the configuration store.
func NewConfiguration(ctx context.Context, opts StoreOptions) (*Configuration, error) {
	h, err := newHolder(ctx, opts, "configuration", indexes.ExecuteConfigurationIndexes)
	if err != nil {
		return nil, err
	}

	return &Configuration{holder: h}, nil
}

// Operational holds the store of grants and device codes.
type Operational struct {
	*holder
}

// NewOperational opens or adopts the operational store.
func NewOperational(ctx context.Context, opts StoreOptions) (*Operational, error) {
	h, err := newHolder(ctx, opts, "operational", indexes.ExecuteOperationalIndexes)
	if err != nil {
		return nil, err
	}

	return &Operational{holder: h}, nil
}
