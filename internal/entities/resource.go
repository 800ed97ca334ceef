// Package entities defines the document shapes persisted by the stores.
// They are distinct from the host framework models in internal/models and
// are only converted through internal/mappers.
package entities

import "time"

// ResourceKind tags a resource family. Its value is also the collection
// name and the document id prefix.
type ResourceKind string

const (
	KindAPIResource      ResourceKind = "ApiResources"
	KindAPIScope         ResourceKind = "ApiScopes"
	KindIdentityResource ResourceKind = "IdentityResources"
)

// FormatDocumentID returns the id of the resource of kind named name.
func FormatDocumentID(kind ResourceKind, name string) string {
	return string(kind) + "/" + name
}

// Resource holds the fields shared by every resource family.
type Resource struct {
	ID                      string     `json:"-"`
	Enabled                 bool       `json:"Enabled"`
	Name                    string     `json:"Name"`
	DisplayName             string     `json:"DisplayName,omitempty"`
	Description             string     `json:"Description,omitempty"`
	ShowInDiscoveryDocument bool       `json:"ShowInDiscoveryDocument"`
	UserClaims              []string   `json:"UserClaims"`
	Properties              []Property `json:"Properties"`
}

func newResource() Resource {
	return Resource{Enabled: true, ShowInDiscoveryDocument: true}
}

func (r *Resource) DocumentID() string      { return r.ID }
func (r *Resource) SetDocumentID(id string) { r.ID = id }

// APIResource is stored in the ApiResources collection.
type APIResource struct {
	Resource

	// AllowedAccessTokenSigningAlgorithms is the comma joined algorithm list.
	AllowedAccessTokenSigningAlgorithms string     `json:"AllowedAccessTokenSigningAlgorithms,omitempty"`
	Secrets                             []Secret   `json:"Secrets"`
	Scopes                              []string   `json:"Scopes"`
	Created                             time.Time  `json:"Created"`
	Updated                             *time.Time `json:"Updated,omitempty"`
	LastAccessed                        *time.Time `json:"LastAccessed,omitempty"`
	NonEditable                         bool       `json:"NonEditable"`
}

// NewAPIResource returns an API resource with its defaults applied.
func NewAPIResource(name string) *APIResource {
	r := &APIResource{Resource: newResource(), Created: time.Now().UTC()}
	r.SetName(name)
	return r
}

func (r *APIResource) Collection() string { return string(KindAPIResource) }

func (r *APIResource) DeriveDocumentID() string {
	return FormatDocumentID(KindAPIResource, r.Name)
}

// SetName renames the resource and recomputes its id.
func (r *APIResource) SetName(name string) {
	r.Name = name
	r.ID = r.DeriveDocumentID()
}

// APIScope is stored in the ApiScopes collection.
type APIScope struct {
	Resource

	Required  bool `json:"Required"`
	Emphasize bool `json:"Emphasize"`
}

// NewAPIScope returns an API scope with its defaults applied.
func NewAPIScope(name string) *APIScope {
	s := &APIScope{Resource: newResource()}
	s.SetName(name)
	return s
}

func (s *APIScope) Collection() string { return string(KindAPIScope) }

func (s *APIScope) DeriveDocumentID() string {
	return FormatDocumentID(KindAPIScope, s.Name)
}

// SetName renames the scope and recomputes its id.
func (s *APIScope) SetName(name string) {
	s.Name = name
	s.ID = s.DeriveDocumentID()
}

// IdentityResource is stored in the IdentityResources collection.
type IdentityResource struct {
	Resource

	Required    bool       `json:"Required"`
	Emphasize   bool       `json:"Emphasize"`
	Created     time.Time  `json:"Created"`
	Updated     *time.Time `json:"Updated,omitempty"`
	NonEditable bool       `json:"NonEditable"`
}

// NewIdentityResource returns an identity resource with its defaults
// applied.
func NewIdentityResource(name string) *IdentityResource {
	r := &IdentityResource{Resource: newResource(), Created: time.Now().UTC()}
	r.SetName(name)
	return r
}

func (r *IdentityResource) Collection() string { return string(KindIdentityResource) }

func (r *IdentityResource) DeriveDocumentID() string {
	return FormatDocumentID(KindIdentityResource, r.Name)
}

// SetName renames the resource and recomputes its id.
func (r *IdentityResource) SetName(name string) {
	r.Name = name
	r.ID = r.DeriveDocumentID()
}
