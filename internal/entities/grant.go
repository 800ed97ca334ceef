package entities

import "time"

// PersistedGrant is stored in the PersistedGrants collection. Key is the
// hex SHA-256 of the key the host addresses the grant by.
type PersistedGrant struct {
	ID string `json:"-"`

	Key          string     `json:"Key"`
	Type         string     `json:"Type"`
	SubjectID    string     `json:"SubjectId,omitempty"`
	SessionID    string     `json:"SessionId,omitempty"`
	ClientID     string     `json:"ClientId"`
	Description  string     `json:"Description,omitempty"`
	CreationTime time.Time  `json:"CreationTime"`
	Expiration   *time.Time `json:"Expiration,omitempty"`
	ConsumedTime *time.Time `json:"ConsumedTime,omitempty"`
	Data         string     `json:"Data"`
}

func (g *PersistedGrant) Collection() string      { return "PersistedGrants" }
func (g *PersistedGrant) DocumentID() string      { return g.ID }
func (g *PersistedGrant) SetDocumentID(id string) { g.ID = id }

// DeviceFlowCode is stored in the DeviceFlowCodes collection. DeviceCode
// and UserCode are each unique across documents. Data is the serialized
// device authorization.
type DeviceFlowCode struct {
	ID string `json:"-"`

	DeviceCode   string     `json:"DeviceCode"`
	UserCode     string     `json:"UserCode"`
	SubjectID    string     `json:"SubjectId,omitempty"`
	SessionID    string     `json:"SessionId,omitempty"`
	ClientID     string     `json:"ClientId"`
	Description  string     `json:"Description,omitempty"`
	CreationTime time.Time  `json:"CreationTime"`
	Expiration   *time.Time `json:"Expiration,omitempty"`
	Data         string     `json:"Data"`
}

func (d *DeviceFlowCode) Collection() string      { return "DeviceFlowCodes" }
func (d *DeviceFlowCode) DocumentID() string      { return d.ID }
func (d *DeviceFlowCode) SetDocumentID(id string) { d.ID = id }
