package models

import (
	"strings"
	"time"

	errs "github.com/alexjbarnes/idsrv-docstore/internal/errors"
)

// ClaimSubject is the subject identifier claim type.
const ClaimSubject = "sub"

// PersistedGrant is a refresh token, authorization code, consent or other
// grant the host persists. Data is serialized by the host and opaque here.
type PersistedGrant struct {
	Key          string     `json:"key"`
	Type         string     `json:"type"`
	SubjectID    string     `json:"subjectId,omitempty"`
	SessionID    string     `json:"sessionId,omitempty"`
	ClientID     string     `json:"clientId"`
	Description  string     `json:"description,omitempty"`
	CreationTime time.Time  `json:"creationTime"`
	Expiration   *time.Time `json:"expiration,omitempty"`
	ConsumedTime *time.Time `json:"consumedTime,omitempty"`
	Data         string     `json:"data"`
}

// PersistedGrantFilter selects grants. Empty fields do not filter; a
// filter with no fields set matches every grant.
type PersistedGrantFilter struct {
	SubjectID string
	SessionID string
	ClientID  string
	Type      string
}

// IsEmpty reports whether no field is set.
func (f PersistedGrantFilter) IsEmpty() bool {
	return strings.TrimSpace(f.SubjectID) == "" &&
		strings.TrimSpace(f.SessionID) == "" &&
		strings.TrimSpace(f.ClientID) == "" &&
		strings.TrimSpace(f.Type) == ""
}

// Validate rejects the empty filter. Stores do not call it; callers for
// whom "match everything" is unsafe do.
func (f PersistedGrantFilter) Validate() error {
	if f.IsEmpty() {
		return errs.ErrEmptyFilter
	}

	return nil
}

// Claim is a single claim about a subject.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ClaimsPrincipal is an authenticated subject.
type ClaimsPrincipal struct {
	AuthenticationType string  `json:"authenticationType,omitempty"`
	Claims             []Claim `json:"claims"`
}

// FindFirst returns the first claim of claimType, or nil.
func (p *ClaimsPrincipal) FindFirst(claimType string) *Claim {
	if p == nil {
		return nil
	}

	for i := range p.Claims {
		if p.Claims[i].Type == claimType {
			return &p.Claims[i]
		}
	}

	return nil
}

// SubjectID returns the value of the subject claim, or "".
func (p *ClaimsPrincipal) SubjectID() string {
	if c := p.FindFirst(ClaimSubject); c != nil {
		return c.Value
	}

	return ""
}

// DeviceCode is the state of a device authorization request. Lifetime is
// in seconds.
type DeviceCode struct {
	CreationTime     time.Time        `json:"creationTime"`
	Lifetime         int              `json:"lifetime"`
	ClientID         string           `json:"clientId"`
	Description      string           `json:"description,omitempty"`
	IsOpenID         bool             `json:"isOpenId"`
	IsAuthorized     bool             `json:"isAuthorized"`
	RequestedScopes  []string         `json:"requestedScopes"`
	AuthorizedScopes []string         `json:"authorizedScopes,omitempty"`
	Subject          *ClaimsPrincipal `json:"subject,omitempty"`
	SessionID        string           `json:"sessionId,omitempty"`
}
