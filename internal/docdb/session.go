package docdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Document is implemented by every persisted entity.
type Document interface {
	Collection() string
	DocumentID() string
	SetDocumentID(id string)
}

// IdentityDeriver is implemented by documents whose id is a pure function
// of their content. The session recomputes the id on Store and on every
// SaveChanges, moving the document when the derived id changes.
type IdentityDeriver interface {
	DeriveDocumentID() string
}

// IndexWait configures waiting for indexes after SaveChanges.
type IndexWait struct {
	Indexes        []string
	Timeout        time.Duration
	ThrowOnTimeout bool
}

type docPtr[T any] interface {
	*T
	Document
}

type tracked struct {
	doc        Document
	collection string
	id         string
	original   []byte
	isNew      bool
	deleted    bool
}

func trackKey(collection, id string) string {
	return collection + "\x00" + id
}

// Session is a unit of work. Documents loaded or queried through it are
// tracked; SaveChanges writes every new, modified or deleted document in
// one atomic commit. A session must not be shared between goroutines.
type Session struct {
	store   *DocumentStore
	tracked map[string]*tracked
	order   []string
	wait    *IndexWait
	closed  bool
}

// WaitForIndexesAfterSaveChanges makes the next SaveChanges block until
// the given indexes have processed the commit, or the timeout passes.
func (s *Session) WaitForIndexesAfterSaveChanges(w IndexWait) {
	if w.Timeout <= 0 {
		w.Timeout = DefaultWaitTimeout
	}

	s.wait = &w
}

func (s *Session) track(t *tracked) {
	key := trackKey(t.collection, t.id)
	if _, ok := s.tracked[key]; !ok {
		s.order = append(s.order, key)
	}

	s.tracked[key] = t
}

// Store schedules doc for insertion. Documents without an id get
// "<collection>/<uuid>".
func (s *Session) Store(_ context.Context, doc Document) error {
	if s.closed {
		return ErrSessionClosed
	}

	id := doc.DocumentID()

	if d, ok := doc.(IdentityDeriver); ok {
		id = d.DeriveDocumentID()
	}

	if id == "" {
		id = doc.Collection() + "/" + uuid.NewString()
	}

	doc.SetDocumentID(id)

	key := trackKey(doc.Collection(), id)
	if t, ok := s.tracked[key]; ok {
		if t.doc != doc && !t.deleted {
			return fmt.Errorf("%w: %s", ErrNonUniqueObject, id)
		}

		t.doc = doc
		t.deleted = false

		return nil
	}

	s.track(&tracked{doc: doc, collection: doc.Collection(), id: id, isNew: true})

	return nil
}

// Delete schedules doc for removal.
func (s *Session) Delete(doc Document) error {
	if s.closed {
		return ErrSessionClosed
	}

	key := trackKey(doc.Collection(), doc.DocumentID())

	t, ok := s.tracked[key]
	if !ok {
		s.track(&tracked{doc: doc, collection: doc.Collection(), id: doc.DocumentID(), deleted: true})
		return nil
	}

	t.deleted = true

	return nil
}

// Load fetches a document by id, or returns nil when it does not exist.
func Load[T any, PT docPtr[T]](ctx context.Context, s *Session, id string) (PT, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}

	doc, _, err := materialize[T, PT](ctx, s, PT(new(T)).Collection(), id, nil)

	return doc, err
}

// materialize returns the tracked instance for id, decoding raw (or
// loading it when raw is nil) the first time the session sees it. found
// is false when the document does not exist or is pending deletion.
func materialize[T any, PT docPtr[T]](ctx context.Context, s *Session, collection, id string, raw []byte) (doc PT, found bool, err error) {
	if t, ok := s.tracked[trackKey(collection, id)]; ok {
		if t.deleted {
			return nil, false, nil
		}

		doc, ok := t.doc.(PT)
		if !ok {
			return nil, false, fmt.Errorf("docdb: %s is tracked as %T", id, t.doc)
		}

		return doc, true, nil
	}

	if raw == nil {
		raw, err = s.store.load(ctx, collection, id)
		if err != nil {
			return nil, false, fmt.Errorf("loading %s: %w", id, err)
		}

		if raw == nil {
			return nil, false, nil
		}
	}

	doc = PT(new(T))
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, false, fmt.Errorf("decoding %s: %w", id, err)
	}

	doc.SetDocumentID(id)
	s.track(&tracked{doc: doc, collection: collection, id: id, original: raw})

	return doc, true, nil
}

// SaveChanges commits every pending change. Nothing is written when no
// tracked document changed.
func (s *Session) SaveChanges(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}

	var batch []Mutation

	encoded := make(map[string][]byte, len(s.order))
	moved := make(map[string]string)

	for _, key := range s.order {
		t := s.tracked[key]

		if t.deleted {
			if !t.isNew {
				batch = append(batch, Mutation{Collection: t.collection, ID: t.id, Delete: true})
			}

			continue
		}

		id := t.id
		if d, ok := t.doc.(IdentityDeriver); ok {
			if derived := d.DeriveDocumentID(); derived != "" && derived != id {
				if !t.isNew {
					batch = append(batch, Mutation{Collection: t.collection, ID: id, Delete: true})
				}

				id = derived
				t.doc.SetDocumentID(id)
				moved[key] = id
			}
		}

		raw, err := json.Marshal(t.doc)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", id, err)
		}

		encoded[key] = raw

		if t.isNew || moved[key] != "" || !bytes.Equal(raw, t.original) {
			batch = append(batch, Mutation{Collection: t.collection, ID: id, Doc: raw})
		}
	}

	if len(batch) == 0 {
		return nil
	}

	etag, err := s.store.commit(ctx, batch)
	if err != nil {
		return fmt.Errorf("saving changes: %w", err)
	}

	s.afterCommit(encoded, moved)

	if s.wait == nil {
		return nil
	}

	w := *s.wait
	s.wait = nil

	if err := s.store.waitForIndexes(ctx, w.Indexes, etag, w.Timeout); err != nil {
		if w.ThrowOnTimeout {
			return err
		}

		s.store.logger.Warn("indexes still stale after save",
			slog.Any("indexes", w.Indexes),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// afterCommit makes the committed state the new baseline.
func (s *Session) afterCommit(encoded map[string][]byte, moved map[string]string) {
	order := s.order
	s.order = nil
	old := s.tracked
	s.tracked = make(map[string]*tracked, len(old))

	for _, key := range order {
		t := old[key]
		if t.deleted {
			continue
		}

		if id, ok := moved[key]; ok {
			t.id = id
		}

		t.original = encoded[key]
		t.isNew = false
		s.track(t)
	}
}

// Close discards tracked state. The session cannot be used afterwards.
func (s *Session) Close() {
	s.closed = true
	s.tracked = nil
	s.order = nil
}
