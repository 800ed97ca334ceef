package docdb

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// QueryStatistics describes how a query was answered.
type QueryStatistics struct {
	IndexName    string
	IsStale      bool
	TotalResults int
	Duration     time.Duration
}

type clause struct {
	field  string
	values []string
}

// Query builds a query over one collection, optionally through an index.
// Results are tracked by the session.
type Query[T any, PT docPtr[T]] struct {
	session     *Session
	indexName   string
	clauses     []clause
	waitStale   bool
	waitTimeout time.Duration
	stats       *QueryStatistics
}

// QueryIndex starts a query answered by the named index.
func QueryIndex[T any, PT docPtr[T]](s *Session, indexName string) *Query[T, PT] {
	return &Query[T, PT]{session: s, indexName: indexName}
}

// QueryCollection starts an unfiltered query over every document of the
// collection. It sees writes immediately but cannot be filtered.
func QueryCollection[T any, PT docPtr[T]](s *Session) *Query[T, PT] {
	return &Query[T, PT]{session: s}
}

// WhereEquals keeps documents where any term of field equals value.
func (q *Query[T, PT]) WhereEquals(field, value string) *Query[T, PT] {
	q.clauses = append(q.clauses, clause{field: field, values: []string{value}})
	return q
}

// WhereIn keeps documents where any term of field is one of values. An
// empty values set matches nothing.
func (q *Query[T, PT]) WhereIn(field string, values []string) *Query[T, PT] {
	q.clauses = append(q.clauses, clause{field: field, values: append([]string(nil), values...)})
	return q
}

// ContainsAny keeps documents whose multi-valued field shares at least one
// term with values.
func (q *Query[T, PT]) ContainsAny(field string, values []string) *Query[T, PT] {
	return q.WhereIn(field, values)
}

// WaitForNonStaleResults waits up to timeout for the index to catch up
// before answering. When it does not, the query runs against the stale
// index and Statistics reports IsStale. Without it a query still waits for
// the first build of a newly registered index, but not for later writes.
func (q *Query[T, PT]) WaitForNonStaleResults(timeout time.Duration) *Query[T, PT] {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}

	q.waitStale = true
	q.waitTimeout = timeout

	return q
}

// Statistics records query statistics into stats when the query runs.
func (q *Query[T, PT]) Statistics(stats *QueryStatistics) *Query[T, PT] {
	q.stats = stats
	return q
}

// ToList returns every matching document.
func (q *Query[T, PT]) ToList(ctx context.Context) ([]PT, error) {
	return q.run(ctx, 0)
}

// FirstOrDefault returns the first match or nil.
func (q *Query[T, PT]) FirstOrDefault(ctx context.Context) (PT, error) {
	docs, err := q.run(ctx, 1)
	if err != nil || len(docs) == 0 {
		return nil, err
	}

	return docs[0], nil
}

// SingleOrDefault returns the only match, nil when there is none, and
// ErrMultipleResults when there is more than one.
func (q *Query[T, PT]) SingleOrDefault(ctx context.Context) (PT, error) {
	docs, err := q.run(ctx, 2)
	if err != nil || len(docs) == 0 {
		return nil, err
	}

	if len(docs) > 1 {
		return nil, ErrMultipleResults
	}

	return docs[0], nil
}

// Any reports whether at least one document matches.
func (q *Query[T, PT]) Any(ctx context.Context) (bool, error) {
	docs, err := q.run(ctx, 1)
	if err != nil {
		return false, err
	}

	return len(docs) > 0, nil
}

// run executes the query, stopping after limit results when limit > 0.
func (q *Query[T, PT]) run(ctx context.Context, limit int) ([]PT, error) {
	s := q.session
	if s.closed {
		return nil, ErrSessionClosed
	}

	start := time.Now()
	collection := PT(new(T)).Collection()

	var (
		docs  []PT
		stale bool
		err   error
	)

	if q.indexName == "" {
		docs, err = q.scanCollection(ctx, collection, limit)
	} else {
		docs, stale, err = q.searchIndex(ctx, collection, limit)
	}

	if err != nil {
		return nil, err
	}

	if q.stats != nil {
		*q.stats = QueryStatistics{
			IndexName:    q.indexName,
			IsStale:      stale,
			TotalResults: len(docs),
			Duration:     time.Since(start),
		}
	}

	return docs, nil
}

func (q *Query[T, PT]) scanCollection(ctx context.Context, collection string, limit int) ([]PT, error) {
	if len(q.clauses) > 0 {
		return nil, fmt.Errorf("%w: query on %s", ErrIndexRequired, collection)
	}

	raw := make(map[string][]byte)

	err := q.session.store.scan(ctx, collection, func(id string, doc []byte) error {
		raw[id] = doc
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", collection, err)
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	var docs []PT

	for _, id := range ids {
		doc, found, err := materialize[T, PT](ctx, q.session, collection, id, raw[id])
		if err != nil {
			return nil, err
		}

		if !found {
			continue
		}

		docs = append(docs, doc)
		if limit > 0 && len(docs) == limit {
			break
		}
	}

	return docs, nil
}

func (q *Query[T, PT]) searchIndex(ctx context.Context, collection string, limit int) ([]PT, bool, error) {
	store := q.session.store

	ix, err := store.lookupIndex(ctx, q.indexName)
	if err != nil {
		return nil, false, err
	}

	if ix.def.Collection != collection {
		return nil, false, fmt.Errorf("docdb: index %s covers %s, not %s", ix.def.Name, ix.def.Collection, collection)
	}

	preds := make([]predicate, 0, len(q.clauses))

	for _, c := range q.clauses {
		f, ok := ix.def.field(c.field)
		if !ok {
			return nil, false, fmt.Errorf("%w: %s.%s", ErrUnknownField, ix.def.Name, c.field)
		}

		values := make([]string, len(c.values))
		for i, v := range c.values {
			values[i] = f.Analyzer.apply(v)
		}

		preds = append(preds, predicate{field: c.field, values: values})
	}

	// An index that has never been built knows nothing, which is not the
	// same as knowing of no match.
	if err := store.awaitBuild(ctx, ix); err != nil {
		return nil, false, err
	}

	etag, version, err := store.target(ctx, ix)
	if err != nil {
		return nil, false, err
	}

	var fresh bool
	if q.waitStale {
		fresh = ix.wait(ctx, etag, version, q.waitTimeout)
	} else {
		fresh, _ = ix.caughtUp(etag, version)
	}

	var docs []PT

	for _, id := range ix.search(preds) {
		// The index may still list documents deleted since it last ran.
		doc, found, err := materialize[T, PT](ctx, q.session, collection, id, nil)
		if err != nil {
			return nil, false, err
		}

		if !found {
			continue
		}

		docs = append(docs, doc)
		if limit > 0 && len(docs) == limit {
			break
		}
	}

	return docs, !fresh, nil
}
