package models

import "context"

// Absence is reported as a nil result with a nil error by every store.

// ClientStore retrieves clients.
type ClientStore interface {
	FindClientByID(ctx context.Context, clientID string) (*Client, error)
}

// ResourceStore retrieves API and identity resources. The name set
// methods fail on a nil set and return an empty, non-nil slice when
// nothing matches.
type ResourceStore interface {
	FindIdentityResourcesByScopeName(ctx context.Context, scopeNames []string) ([]*IdentityResource, error)
	FindAPIScopesByName(ctx context.Context, scopeNames []string) ([]*APIScope, error)
	FindAPIResourcesByScopeName(ctx context.Context, scopeNames []string) ([]*APIResource, error)
	FindAPIResourcesByName(ctx context.Context, apiResourceNames []string) ([]*APIResource, error)
	GetAllResources(ctx context.Context) (*Resources, error)
}

// PersistedGrantStore stores grants under the key the host supplies.
type PersistedGrantStore interface {
	Store(ctx context.Context, grant *PersistedGrant) error
	Get(ctx context.Context, key string) (*PersistedGrant, error)
	GetAll(ctx context.Context, filter PersistedGrantFilter) ([]*PersistedGrant, error)
	Remove(ctx context.Context, key string) error
	RemoveAll(ctx context.Context, filter PersistedGrantFilter) error
}

// DeviceFlowStore stores device authorization requests.
type DeviceFlowStore interface {
	StoreDeviceAuthorization(ctx context.Context, deviceCode, userCode string, data *DeviceCode) error
	FindByUserCode(ctx context.Context, userCode string) (*DeviceCode, error)
	FindByDeviceCode(ctx context.Context, deviceCode string) (*DeviceCode, error)
	UpdateByUserCode(ctx context.Context, userCode string, data *DeviceCode) error
	RemoveByDeviceCode(ctx context.Context, deviceCode string) error
}

// CorsPolicyService decides whether a browser origin may call the host.
type CorsPolicyService interface {
	IsOriginAllowed(ctx context.Context, origin string) (bool, error)
}
