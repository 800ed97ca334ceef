package stores

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alexjbarnes/idsrv-docstore/internal/docdb"
	"github.com/alexjbarnes/idsrv-docstore/internal/entities"
	errs "github.com/alexjbarnes/idsrv-docstore/internal/errors"
	"github.com/alexjbarnes/idsrv-docstore/internal/holder"
	"github.com/alexjbarnes/idsrv-docstore/internal/indexes"
	"github.com/alexjbarnes/idsrv-docstore/internal/mappers"
	"github.com/alexjbarnes/idsrv-docstore/internal/models"
)

// PersistedGrantStore stores grants under the SHA-256 of the key the host
// addresses them by. Save failures after a successful lookup are logged
// and not returned.
type PersistedGrantStore struct {
	holder *holder.Operational
	logger *slog.Logger
}

var _ models.PersistedGrantStore = (*PersistedGrantStore)(nil)

// NewPersistedGrantStore returns a grant store writing through h.
func NewPersistedGrantStore(h *holder.Operational) *PersistedGrantStore {
	return &PersistedGrantStore{holder: h, logger: h.Logger().With(slog.String("store", storePersistedGrant))}
}

// Store inserts the grant, or updates the existing grant with the same key
// in place.
func (s *PersistedGrantStore) Store(ctx context.Context, grant *models.PersistedGrant) (err error) {
	defer observe(s.holder.Metrics(), storePersistedGrant, "store", &err)()

	if grant == nil {
		return errs.ErrNilGrant
	}

	hashed := mappers.HashGrantKey(grant.Key)

	sess := s.holder.OpenSession()
	defer sess.Close()

	existing, err := s.byKey(sess, hashed).SingleOrDefault(ctx)
	if err != nil {
		return fmt.Errorf("looking up persisted grant: %w", err)
	}

	if existing == nil {
		s.logger.Debug("persisted grant not found, inserting", slog.String("key", hashed))

		if err := sess.Store(ctx, mappers.PersistedGrantToEntity(grant)); err != nil {
			return fmt.Errorf("storing persisted grant: %w", err)
		}
	} else {
		s.logger.Debug("persisted grant found, updating", slog.String("key", hashed))
		mappers.UpdatePersistedGrant(grant, existing)
	}

	sess.WaitForIndexesAfterSaveChanges(s.holder.IndexWait(indexes.PersistedGrantIndexName))

	if err := sess.SaveChanges(ctx); err != nil {
		s.holder.Metrics().Swallowed(storePersistedGrant, "store")
		s.logger.Warn("saving persisted grant failed",
			slog.String("key", hashed),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// Get returns the grant stored under key, or nil.
func (s *PersistedGrantStore) Get(ctx context.Context, key string) (_ *models.PersistedGrant, err error) {
	defer observe(s.holder.Metrics(), storePersistedGrant, "get", &err)()

	hashed := mappers.HashGrantKey(key)

	sess := s.holder.OpenSession()
	defer sess.Close()

	e, err := s.byKey(sess, hashed).FirstOrDefault(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting persisted grant: %w", err)
	}

	model := mappers.PersistedGrantToModel(e)

	s.logger.Debug("persisted grant lookup",
		slog.String("key", hashed),
		slog.Bool("found", model != nil),
	)

	return model, nil
}

// GetAll returns every grant matching filter. An empty filter matches all
// grants.
func (s *PersistedGrantStore) GetAll(ctx context.Context, filter models.PersistedGrantFilter) (_ []*models.PersistedGrant, err error) {
	defer observe(s.holder.Metrics(), storePersistedGrant, "get_all", &err)()

	sess := s.holder.OpenSession()
	defer sess.Close()

	found, err := s.filtered(sess, filter).ToList(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing persisted grants: %w", err)
	}

	out := make([]*models.PersistedGrant, 0, len(found))
	for _, e := range found {
		out = append(out, mappers.PersistedGrantToModel(e))
	}

	s.logger.Debug("listed persisted grants", slog.Int("count", len(out)))

	return out, nil
}

// Remove deletes the grant stored under key. A missing grant is not an
// error.
func (s *PersistedGrantStore) Remove(ctx context.Context, key string) (err error) {
	defer observe(s.holder.Metrics(), storePersistedGrant, "remove", &err)()

	hashed := mappers.HashGrantKey(key)

	sess := s.holder.OpenSession()
	defer sess.Close()

	e, err := s.byKey(sess, hashed).FirstOrDefault(ctx)
	if err != nil {
		return fmt.Errorf("looking up persisted grant: %w", err)
	}

	if e == nil {
		s.logger.Debug("no persisted grant to remove", slog.String("key", hashed))
		return nil
	}

	s.logger.Debug("removing persisted grant", slog.String("key", hashed))

	if err := sess.Delete(e); err != nil {
		return fmt.Errorf("removing persisted grant: %w", err)
	}

	sess.WaitForIndexesAfterSaveChanges(s.holder.IndexWait(indexes.PersistedGrantIndexName))

	if err := sess.SaveChanges(ctx); err != nil {
		s.holder.Metrics().Swallowed(storePersistedGrant, "remove")
		s.logger.Error("removing persisted grant failed",
			slog.String("key", hashed),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// RemoveAll deletes every grant matching filter. An empty filter deletes
// all grants; callers validate the filter first when that is unsafe.
func (s *PersistedGrantStore) RemoveAll(ctx context.Context, filter models.PersistedGrantFilter) (err error) {
	defer observe(s.holder.Metrics(), storePersistedGrant, "remove_all", &err)()

	sess := s.holder.OpenSession()
	defer sess.Close()

	found, err := s.filtered(sess, filter).ToList(ctx)
	if err != nil {
		return fmt.Errorf("listing persisted grants: %w", err)
	}

	s.logger.Debug("removing persisted grants", slog.Int("count", len(found)))

	for _, e := range found {
		if err := sess.Delete(e); err != nil {
			return fmt.Errorf("removing persisted grant: %w", err)
		}
	}

	sess.WaitForIndexesAfterSaveChanges(s.holder.IndexWait(indexes.PersistedGrantIndexName))

	if err := sess.SaveChanges(ctx); err != nil {
		s.holder.Metrics().Swallowed(storePersistedGrant, "remove_all")
		s.logger.Error("removing persisted grants failed",
			slog.Int("count", len(found)),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

func (s *PersistedGrantStore) byKey(sess *docdb.Session, hashed string) *docdb.Query[entities.PersistedGrant, *entities.PersistedGrant] {
	return indexQuery[entities.PersistedGrant](sess, indexes.PersistedGrantIndexName, s.holder.NonStaleQueryTimeout()).
		WhereEquals(indexes.FieldKey, hashed)
}

// filtered applies each non-blank filter field as an equality predicate.
func (s *PersistedGrantStore) filtered(sess *docdb.Session, filter models.PersistedGrantFilter) *docdb.Query[entities.PersistedGrant, *entities.PersistedGrant] {
	q := indexQuery[entities.PersistedGrant](sess, indexes.PersistedGrantIndexName, s.holder.NonStaleQueryTimeout())

	if v := strings.TrimSpace(filter.ClientID); v != "" {
		q.WhereEquals(indexes.FieldClientID, v)
	}

	if v := strings.TrimSpace(filter.SessionID); v != "" {
		q.WhereEquals(indexes.FieldSessionID, v)
	}

	if v := strings.TrimSpace(filter.SubjectID); v != "" {
		q.WhereEquals(indexes.FieldSubjectID, v)
	}

	if v := strings.TrimSpace(filter.Type); v != "" {
		q.WhereEquals(indexes.FieldType, v)
	}

	return q
}
