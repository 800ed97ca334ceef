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
	"github.com/alexjbarnes/idsrv-docstore/internal/serialization"
)

// DeviceFlowStore keeps device authorizations addressable by both their
// device code and their user code.
type DeviceFlowStore struct {
	holder     *holder.Operational
	serializer serialization.PersistentGrantSerializer
	logger     *slog.Logger
}

var _ models.DeviceFlowStore = (*DeviceFlowStore)(nil)

// NewDeviceFlowStore returns a store using serializer for the payload, or
// JSON when serializer is nil.
func NewDeviceFlowStore(h *holder.Operational, serializer serialization.PersistentGrantSerializer) *DeviceFlowStore {
	if serializer == nil {
		serializer = serialization.NewJSONSerializer()
	}

	return &DeviceFlowStore{
		holder:     h,
		serializer: serializer,
		logger:     h.Logger().With(slog.String("store", storeDeviceFlow)),
	}
}

// StoreDeviceAuthorization saves a new authorization. Both codes must be
// unused.
func (s *DeviceFlowStore) StoreDeviceAuthorization(ctx context.Context, deviceCode, userCode string, data *models.DeviceCode) (err error) {
	defer observe(s.holder.Metrics(), storeDeviceFlow, "store_device_authorization", &err)()

	if data == nil {
		return errs.ErrNilDeviceCode
	}

	sess := s.holder.OpenSession()
	defer sess.Close()

	taken, err := s.byField(sess, indexes.FieldDeviceCode, deviceCode).Any(ctx)
	if err != nil {
		return fmt.Errorf("looking up device code: %w", err)
	}

	if taken {
		return fmt.Errorf("device code %s: %w", deviceCode, errs.ErrDeviceCodeExists)
	}

	taken, err = s.byField(sess, indexes.FieldUserCode, userCode).Any(ctx)
	if err != nil {
		return fmt.Errorf("looking up user code: %w", err)
	}

	if taken {
		return fmt.Errorf("user code %s: %w", userCode, errs.ErrUserCodeExists)
	}

	payload, err := s.serializer.Serialize(data)
	if err != nil {
		return err
	}

	if err := sess.Store(ctx, mappers.DeviceFlowCodeToEntity(data, deviceCode, userCode, payload)); err != nil {
		return fmt.Errorf("storing device code: %w", err)
	}

	sess.WaitForIndexesAfterSaveChanges(s.holder.IndexWait(indexes.DeviceFlowCodeIndexName))

	if err := sess.SaveChanges(ctx); err != nil {
		return fmt.Errorf("saving device code: %w", err)
	}

	return nil
}

// FindByUserCode returns the authorization for userCode, or nil.
func (s *DeviceFlowStore) FindByUserCode(ctx context.Context, userCode string) (_ *models.DeviceCode, err error) {
	defer observe(s.holder.Metrics(), storeDeviceFlow, "find_by_user_code", &err)()

	model, err := s.find(ctx, indexes.FieldUserCode, userCode)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("user code lookup",
		slog.String("user_code", userCode),
		slog.Bool("found", model != nil),
	)

	return model, nil
}

// FindByDeviceCode returns the authorization for deviceCode, or nil.
func (s *DeviceFlowStore) FindByDeviceCode(ctx context.Context, deviceCode string) (_ *models.DeviceCode, err error) {
	defer observe(s.holder.Metrics(), storeDeviceFlow, "find_by_device_code", &err)()

	model, err := s.find(ctx, indexes.FieldDeviceCode, deviceCode)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("device code lookup",
		slog.String("device_code", deviceCode),
		slog.Bool("found", model != nil),
	)

	return model, nil
}

// UpdateByUserCode replaces the payload and subject of the authorization
// for userCode. The codes themselves never change.
func (s *DeviceFlowStore) UpdateByUserCode(ctx context.Context, userCode string, data *models.DeviceCode) (err error) {
	defer observe(s.holder.Metrics(), storeDeviceFlow, "update_by_user_code", &err)()

	if data == nil {
		return errs.ErrNilDeviceCode
	}

	sess := s.holder.OpenSession()
	defer sess.Close()

	existing, err := s.byField(sess, indexes.FieldUserCode, userCode).SingleOrDefault(ctx)
	if err != nil {
		return fmt.Errorf("looking up user code: %w", err)
	}

	if existing == nil {
		s.logger.Error("user code not found", slog.String("user_code", userCode))
		return fmt.Errorf("user code %s: %w", userCode, errs.ErrDeviceCodeNotFound)
	}

	payload, err := s.serializer.Serialize(data)
	if err != nil {
		return err
	}

	s.logger.Debug("updating user code", slog.String("user_code", userCode))

	existing.SubjectID = data.Subject.SubjectID()
	existing.Data = payload

	sess.WaitForIndexesAfterSaveChanges(s.holder.IndexWait(indexes.DeviceFlowCodeIndexName))

	if err := sess.SaveChanges(ctx); err != nil {
		s.holder.Metrics().Swallowed(storeDeviceFlow, "update_by_user_code")
		s.logger.Warn("updating user code failed",
			slog.String("user_code", userCode),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// RemoveByDeviceCode deletes the authorization for deviceCode if present.
func (s *DeviceFlowStore) RemoveByDeviceCode(ctx context.Context, deviceCode string) (err error) {
	defer observe(s.holder.Metrics(), storeDeviceFlow, "remove_by_device_code", &err)()

	sess := s.holder.OpenSession()
	defer sess.Close()

	e, err := s.byField(sess, indexes.FieldDeviceCode, deviceCode).FirstOrDefault(ctx)
	if err != nil {
		return fmt.Errorf("looking up device code: %w", err)
	}

	if e == nil {
		s.logger.Debug("no device code to remove", slog.String("device_code", deviceCode))
		return nil
	}

	s.logger.Debug("removing device code", slog.String("device_code", deviceCode))

	if err := sess.Delete(e); err != nil {
		return fmt.Errorf("removing device code: %w", err)
	}

	sess.WaitForIndexesAfterSaveChanges(s.holder.IndexWait(indexes.DeviceFlowCodeIndexName))

	if err := sess.SaveChanges(ctx); err != nil {
		s.holder.Metrics().Swallowed(storeDeviceFlow, "remove_by_device_code")
		s.logger.Info("removing device code failed",
			slog.String("device_code", deviceCode),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

func (s *DeviceFlowStore) find(ctx context.Context, field, value string) (*models.DeviceCode, error) {
	sess := s.holder.OpenSession()
	defer sess.Close()

	e, err := s.byField(sess, field, value).FirstOrDefault(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding device code by %s: %w", field, err)
	}

	if e == nil {
		return nil, nil
	}

	var model models.DeviceCode
	if err := s.serializer.Deserialize(e.Data, &model); err != nil {
		return nil, err
	}

	return &model, nil
}

func (s *DeviceFlowStore) byField(sess *docdb.Session, field, value string) *docdb.Query[entities.DeviceFlowCode, *entities.DeviceFlowCode] {
	return indexQuery[entities.DeviceFlowCode](sess, indexes.DeviceFlowCodeIndexName, s.holder.NonStaleQueryTimeout()).
		WhereEquals(field, value)
}
