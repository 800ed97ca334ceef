package models

// APIResource is a protected API and the scopes it exposes.
type APIResource struct {
	Enabled                 bool              `json:"enabled" yaml:"enabled"`
	Name                    string            `json:"name" yaml:"name"`
	DisplayName             string            `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Description             string            `json:"description,omitempty" yaml:"description,omitempty"`
	ShowInDiscoveryDocument bool              `json:"showInDiscoveryDocument" yaml:"showInDiscoveryDocument"`
	UserClaims              []string          `json:"userClaims" yaml:"userClaims"`
	Properties              map[string]string `json:"properties" yaml:"properties"`

	Scopes                              []string `json:"scopes" yaml:"scopes"`
	APISecrets                          []Secret `json:"apiSecrets" yaml:"apiSecrets"`
	// Stored comma joined: names must be non-blank, without commas or
	// surrounding spaces.
	AllowedAccessTokenSigningAlgorithms []string `json:"allowedAccessTokenSigningAlgorithms" yaml:"allowedAccessTokenSigningAlgorithms"`
}

// NewAPIResource returns an enabled, discoverable API resource.
func NewAPIResource(name string) *APIResource {
	return &APIResource{
		Enabled:                 true,
		Name:                    name,
		ShowInDiscoveryDocument: true,
		Properties:              map[string]string{},
	}
}

// APIScope is a scope a client can request access to.
type APIScope struct {
	Enabled                 bool              `json:"enabled" yaml:"enabled"`
	Name                    string            `json:"name" yaml:"name"`
	DisplayName             string            `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Description             string            `json:"description,omitempty" yaml:"description,omitempty"`
	ShowInDiscoveryDocument bool              `json:"showInDiscoveryDocument" yaml:"showInDiscoveryDocument"`
	UserClaims              []string          `json:"userClaims" yaml:"userClaims"`
	Properties              map[string]string `json:"properties" yaml:"properties"`

	Required  bool `json:"required" yaml:"required"`
	Emphasize bool `json:"emphasize" yaml:"emphasize"`
}

// NewAPIScope returns an enabled, discoverable scope.
func NewAPIScope(name string) *APIScope {
	return &APIScope{
		Enabled:                 true,
		Name:                    name,
		ShowInDiscoveryDocument: true,
		Properties:              map[string]string{},
	}
}

// IdentityResource is a named group of user claims.
type IdentityResource struct {
	Enabled                 bool              `json:"enabled" yaml:"enabled"`
	Name                    string            `json:"name" yaml:"name"`
	DisplayName             string            `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Description             string            `json:"description,omitempty" yaml:"description,omitempty"`
	ShowInDiscoveryDocument bool              `json:"showInDiscoveryDocument" yaml:"showInDiscoveryDocument"`
	UserClaims              []string          `json:"userClaims" yaml:"userClaims"`
	Properties              map[string]string `json:"properties" yaml:"properties"`

	Required  bool `json:"required" yaml:"required"`
	Emphasize bool `json:"emphasize" yaml:"emphasize"`
}

// NewIdentityResource returns an enabled, discoverable identity resource.
func NewIdentityResource(name string, userClaims ...string) *IdentityResource {
	return &IdentityResource{
		Enabled:                 true,
		Name:                    name,
		ShowInDiscoveryDocument: true,
		UserClaims:              userClaims,
		Properties:              map[string]string{},
	}
}

// Resources is every resource known to the store.
type Resources struct {
	IdentityResources []*IdentityResource
	APIResources      []*APIResource
	APIScopes         []*APIScope
}
