// Package docdb is an embedded document database client. Documents are
// JSON values grouped into collections, written through sessions that
// commit atomically, and queried through asynchronously maintained
// index projections that may lag behind recent writes.
package docdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultWaitTimeout is the bounded wait applied when a caller asks for
// non-stale results without a timeout of its own.
const DefaultWaitTimeout = 5 * time.Second

// IndexesCollection holds the executed index definitions, keyed by index
// name.
const IndexesCollection = "@indexes"

// Options configures a DocumentStore.
type Options struct {
	// URLs of the database. bolt:// and file:// point at a directory
	// holding one file per database; redis:// and rediss:// are tried in
	// order until one answers. A redis database may be shared by several
	// processes: indexes notice writes made elsewhere and rebuild before
	// reporting fresh results.
	URLs []string

	// Database selects the file (bolt) or key prefix (redis).
	Database string

	// Certificate is presented to remote databases over TLS.
	Certificate *Certificate

	// Backend replaces url based backend selection.
	Backend Backend

	Logger *slog.Logger
}

// changeSet is one committed batch tagged with its etag and, on a shared
// backend, the collection versions it produced.
type changeSet struct {
	etag      uint64
	versions  map[string]uint64
	mutations []Mutation
}

// DocumentStore is the long lived handle to a database. It is safe for
// concurrent use; sessions opened from it are not.
type DocumentStore struct {
	database string
	backend  Backend
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// commitMu serializes commits and index snapshots so the etag order
	// matches the backend write order.
	commitMu sync.Mutex

	mu              sync.RWMutex
	etag            uint64
	collectionEtags map[string]uint64
	indexes         map[string]*index
	closed          bool
	afterClose      []func() error

	queueMu sync.Mutex
	queue   []changeSet
	wake    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// Open validates opts, connects the backend and starts the indexer.
func Open(ctx context.Context, opts Options) (*DocumentStore, error) {
	if opts.Database == "" {
		return nil, ErrNoDatabase
	}

	if len(opts.URLs) == 0 && opts.Backend == nil {
		return nil, ErrNoURLs
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	backend := opts.Backend
	if backend == nil {
		var err error

		backend, err = openBackend(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", opts.Database, err)
		}
	}

	storeCtx, cancel := context.WithCancel(context.Background())

	s := &DocumentStore{
		database:        opts.Database,
		backend:         backend,
		logger:          opts.Logger.With(slog.String("database", opts.Database)),
		ctx:             storeCtx,
		cancel:          cancel,
		collectionEtags: make(map[string]uint64),
		indexes:         make(map[string]*index),
		wake:            make(chan struct{}, 1),
		done:            make(chan struct{}),
	}

	s.wg.Add(1)
	go s.runIndexer()

	if err := s.loadIndexes(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("loading index definitions of %s: %w", opts.Database, err)
	}

	return s, nil
}

// Database returns the database name the store was opened with.
func (s *DocumentStore) Database() string {
	return s.database
}

// OpenSession starts a new unit of work.
func (s *DocumentStore) OpenSession() *Session {
	return &Session{
		store:   s,
		tracked: make(map[string]*tracked),
	}
}

// AfterClose registers fn to run once when the store is closed, after
// the backend has been released.
func (s *DocumentStore) AfterClose(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.afterClose = append(s.afterClose, fn)
}

// Close stops the indexer, releases the backend and runs the after close
// hooks. Later calls return the first result.
func (s *DocumentStore) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		hooks := s.afterClose
		s.mu.Unlock()

		s.cancel()
		close(s.done)
		s.wg.Wait()

		// Let an in-flight commit finish before the backend goes away.
		s.commitMu.Lock()
		err := s.backend.Close()
		s.commitMu.Unlock()

		errs := []error{err}
		for _, fn := range hooks {
			errs = append(errs, fn())
		}

		s.closeErr = errors.Join(errs...)
	})

	return s.closeErr
}

func (s *DocumentStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.closed
}

// ExecuteIndex saves def in the database and registers it. Building the
// projection happens in the background; queries wait for the first build
// to finish. Executing an identical definition again is a no-op.
func (s *DocumentStore) ExecuteIndex(ctx context.Context, def IndexDefinition) error {
	if err := def.validate(); err != nil {
		return err
	}

	s.mu.RLock()
	closed := s.closed
	existing, ok := s.indexes[def.Name]
	s.mu.RUnlock()

	if closed {
		return ErrStoreClosed
	}

	if ok && existing.def.equal(def) {
		return nil
	}

	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encoding index %s: %w", def.Name, err)
	}

	if err := s.commitRaw(ctx, []Mutation{{Collection: IndexesCollection, ID: def.Name, Doc: raw}}); err != nil {
		return fmt.Errorf("saving index %s: %w", def.Name, err)
	}

	return s.register(def, true)
}

// ExecuteIndexes registers every definition in order.
func (s *DocumentStore) ExecuteIndexes(ctx context.Context, defs ...IndexDefinition) error {
	for _, def := range defs {
		if err := s.ExecuteIndex(ctx, def); err != nil {
			return fmt.Errorf("executing index %s: %w", def.Name, err)
		}
	}

	return nil
}

// loadIndexes registers the saved definitions that are not registered
// yet.
func (s *DocumentStore) loadIndexes(ctx context.Context) error {
	var defs []IndexDefinition

	err := s.backend.Scan(ctx, IndexesCollection, func(id string, doc []byte) error {
		var def IndexDefinition
		if err := json.Unmarshal(doc, &def); err != nil {
			s.logger.Warn("skipping unreadable index definition",
				slog.String("index", id),
				slog.String("error", err.Error()),
			)

			return nil
		}

		if err := def.validate(); err != nil {
			s.logger.Warn("skipping invalid index definition",
				slog.String("index", id),
				slog.String("error", err.Error()),
			)

			return nil
		}

		defs = append(defs, def)

		return nil
	})
	if err != nil {
		return err
	}

	for _, def := range defs {
		if err := s.register(def, false); err != nil {
			return err
		}
	}

	if len(defs) > 0 {
		s.logger.Debug("index definitions loaded", slog.Int("count", len(defs)))
	}

	return nil
}

// register installs def and starts its first build. An existing index of
// the same name is kept when it is identical, or when replace is false.
func (s *DocumentStore) register(def IndexDefinition, replace bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}

	if existing, ok := s.indexes[def.Name]; ok && (!replace || existing.def.equal(def)) {
		s.mu.Unlock()
		return nil
	}

	ix := newIndex(def)
	s.indexes[def.Name] = ix
	s.wg.Add(1)
	s.mu.Unlock()

	go s.build(ix)

	return nil
}

// rebuild starts a fresh build of ix unless one is running or the store
// is closing.
func (s *DocumentStore) rebuild(ix *index) {
	if !ix.startBuild() {
		return
	}

	s.mu.RLock()
	closed := s.closed
	if !closed {
		s.wg.Add(1)
	}
	s.mu.RUnlock()

	if closed {
		ix.abortBuild()
		return
	}

	go s.build(ix)
}

// build scans the collection and installs the result. The caller has
// claimed the build and added to wg.
func (s *DocumentStore) build(ix *index) {
	defer s.wg.Done()

	start := time.Now()

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if s.ctx.Err() != nil {
		ix.abortBuild()
		return
	}

	s.mu.RLock()
	etag := s.etag
	s.mu.RUnlock()

	entries := make(map[string]entry)

	// The version is read before the scan; a write landing in between only
	// causes one more rebuild.
	version, err := s.version(s.ctx, ix.def.Collection)
	if err == nil {
		err = s.backend.Scan(s.ctx, ix.def.Collection, func(id string, doc []byte) error {
			entries[id] = ix.def.project(doc)
			return nil
		})
	}

	if err != nil {
		if errors.Is(err, context.Canceled) && s.ctx.Err() != nil {
			ix.abortBuild()
			return
		}

		s.logger.Error("building index failed",
			slog.String("index", ix.def.Name),
			slog.String("error", err.Error()),
		)

		ix.failBuild(fmt.Errorf("%w: %s: %w", ErrIndexBuildFailed, ix.def.Name, err))

		return
	}

	// Installed under commitMu so no commit can slip between the snapshot
	// and the index becoming live.
	ix.finishBuild(entries, etag, version)

	s.logger.Debug("index built",
		slog.String("index", ix.def.Name),
		slog.Int("entries", len(entries)),
		slog.Duration("elapsed", time.Since(start)),
	)
}

// awaitBuild blocks until ix finished its first build. A failed build is
// retried on the next call.
func (s *DocumentStore) awaitBuild(ctx context.Context, ix *index) error {
	for {
		built, changed, err := ix.buildState()
		if built {
			return nil
		}

		if err != nil {
			s.rebuild(ix)
			return err
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return ErrStoreClosed
		}
	}
}

// version returns the shared version of collection, always 0 on a
// backend owned by this process.
func (s *DocumentStore) version(ctx context.Context, collection string) (uint64, error) {
	vb, ok := s.backend.(versionedBackend)
	if !ok {
		return 0, nil
	}

	return vb.Version(ctx, collection)
}

// target returns what ix must have processed to be fresh, starting a
// rebuild when another process wrote to its collection.
func (s *DocumentStore) target(ctx context.Context, ix *index) (uint64, uint64, error) {
	version, err := s.version(ctx, ix.def.Collection)
	if err != nil {
		return 0, 0, fmt.Errorf("checking %s: %w", ix.def.Name, err)
	}

	if ix.behind(version) {
		s.rebuild(ix)
	}

	return s.lastEtag(ix.def.Collection), version, nil
}

// lookupIndex returns the named index, reloading the saved definitions
// once when it is not registered in this process.
func (s *DocumentStore) lookupIndex(ctx context.Context, name string) (*index, error) {
	if ix, ok := s.registered(name); ok {
		return ix, nil
	}

	if s.isClosed() {
		return nil, ErrStoreClosed
	}

	if err := s.loadIndexes(ctx); err != nil {
		return nil, fmt.Errorf("loading index definitions: %w", err)
	}

	if ix, ok := s.registered(name); ok {
		return ix, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
}

func (s *DocumentStore) registered(name string) (*index, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ix, ok := s.indexes[name]

	return ix, ok
}

func (s *DocumentStore) lastEtag(collection string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collectionEtags[collection]
}

// IsStale reports whether the named index has not yet processed every
// write to its collection.
func (s *DocumentStore) IsStale(name string) (bool, error) {
	ix, err := s.lookupIndex(s.ctx, name)
	if err != nil {
		return false, err
	}

	etag, version, err := s.target(s.ctx, ix)
	if err != nil {
		return false, err
	}

	ok, _ := ix.caughtUp(etag, version)

	return !ok, nil
}

// WaitForIndexing waits, up to timeout, for every registered index to
// catch up with the writes made so far.
func (s *DocumentStore) WaitForIndexing(ctx context.Context, timeout time.Duration) error {
	s.mu.RLock()
	indexes := make([]*index, 0, len(s.indexes))
	for _, ix := range s.indexes {
		indexes = append(indexes, ix)
	}
	s.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)

	for _, ix := range indexes {
		g.Go(func() error {
			etag, version, err := s.target(gctx, ix)
			if err != nil {
				return err
			}

			if !ix.wait(gctx, etag, version, timeout) {
				return fmt.Errorf("%w: %s", ErrIndexWaitTimeout, ix.def.Name)
			}

			return nil
		})
	}

	return g.Wait()
}

// waitForIndexes waits for the named indexes to process etag.
func (s *DocumentStore) waitForIndexes(ctx context.Context, names []string, etag uint64, timeout time.Duration) error {
	for _, name := range names {
		ix, err := s.lookupIndex(ctx, name)
		if err != nil {
			return err
		}

		if !ix.wait(ctx, etag, 0, timeout) {
			return fmt.Errorf("%w: %s after %s", ErrIndexWaitTimeout, name, timeout)
		}
	}

	return nil
}

func (s *DocumentStore) load(ctx context.Context, collection, id string) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}

	return s.backend.Get(ctx, collection, id)
}

func (s *DocumentStore) scan(ctx context.Context, collection string, fn func(id string, doc []byte) error) error {
	if s.isClosed() {
		return ErrStoreClosed
	}

	return s.backend.Scan(ctx, collection, fn)
}

// commit writes batch atomically and hands it to the indexer. It returns
// the etag assigned to the batch.
func (s *DocumentStore) commit(ctx context.Context, batch []Mutation) (uint64, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if s.isClosed() {
		return 0, ErrStoreClosed
	}

	var versions map[string]uint64

	if vb, ok := s.backend.(versionedBackend); ok {
		var err error

		versions, err = vb.CommitVersioned(ctx, batch)
		if err != nil {
			return 0, err
		}
	} else if err := s.backend.Commit(ctx, batch); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.etag++
	etag := s.etag
	for _, m := range batch {
		s.collectionEtags[m.Collection] = etag
	}
	s.mu.Unlock()

	s.queueMu.Lock()
	s.queue = append(s.queue, changeSet{etag: etag, versions: versions, mutations: batch})
	s.queueMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	return etag, nil
}

// commitRaw writes batch without handing it to the indexer.
func (s *DocumentStore) commitRaw(ctx context.Context, batch []Mutation) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if s.isClosed() {
		return ErrStoreClosed
	}

	return s.backend.Commit(ctx, batch)
}

func (s *DocumentStore) runIndexer() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.queueMu.Lock()
		pending := s.queue
		s.queue = nil
		s.queueMu.Unlock()

		for _, cs := range pending {
			s.mu.RLock()
			indexes := make([]*index, 0, len(s.indexes))
			for _, ix := range s.indexes {
				indexes = append(indexes, ix)
			}
			s.mu.RUnlock()

			for _, ix := range indexes {
				ix.apply(cs)
			}
		}
	}
}
