package mappers

import (
	"github.com/alexjbarnes/idsrv-docstore/internal/entities"
	"github.com/alexjbarnes/idsrv-docstore/internal/models"
)

// PersistedGrantToEntity maps a grant for storage, replacing the raw key
// with its hash.
func PersistedGrantToEntity(m *models.PersistedGrant) *entities.PersistedGrant {
	if m == nil {
		return nil
	}

	e := &entities.PersistedGrant{Key: HashGrantKey(m.Key)}
	copyGrant(m, e)

	return e
}

// PersistedGrantToModel maps a stored grant. The key stays hashed.
func PersistedGrantToModel(e *entities.PersistedGrant) *models.PersistedGrant {
	if e == nil {
		return nil
	}

	return &models.PersistedGrant{
		Key:          e.Key,
		Type:         e.Type,
		SubjectID:    e.SubjectID,
		SessionID:    e.SessionID,
		ClientID:     e.ClientID,
		Description:  e.Description,
		CreationTime: e.CreationTime,
		Expiration:   e.Expiration,
		ConsumedTime: e.ConsumedTime,
		Data:         e.Data,
	}
}

// UpdatePersistedGrant copies m onto a tracked entity, leaving its id and
// key untouched.
func UpdatePersistedGrant(m *models.PersistedGrant, e *entities.PersistedGrant) {
	if m == nil || e == nil {
		return
	}

	copyGrant(m, e)
}

func copyGrant(m *models.PersistedGrant, e *entities.PersistedGrant) {
	e.Type = m.Type
	e.SubjectID = m.SubjectID
	e.SessionID = m.SessionID
	e.ClientID = m.ClientID
	e.Description = m.Description
	e.CreationTime = m.CreationTime
	e.Expiration = m.Expiration
	e.ConsumedTime = m.ConsumedTime
	e.Data = m.Data
}

// DeviceFlowCodeToEntity maps a device authorization for storage. data is
// the already serialized payload.
func DeviceFlowCodeToEntity(m *models.DeviceCode, deviceCode, userCode, data string) *entities.DeviceFlowCode {
	if m == nil {
		return nil
	}

	return &entities.DeviceFlowCode{
		DeviceCode:   deviceCode,
		UserCode:     userCode,
		ClientID:     m.ClientID,
		Description:  m.Description,
		SessionID:    m.SessionID,
		SubjectID:    m.Subject.SubjectID(),
		CreationTime: m.CreationTime,
		Expiration:   timePtr(m.CreationTime.Add(seconds(m.Lifetime))),
		Data:         data,
	}
}
