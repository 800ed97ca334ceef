// Package indexes declares the projections the stores query through.
package indexes

import (
	"context"
	"fmt"

	"github.com/alexjbarnes/idsrv-docstore/internal/docdb"
)

// Index names.
const (
	ClientIndexName           = "ClientIndex"
	APIResourceIndexName      = "ApiResourceIndex"
	APIScopeIndexName         = "ApiScopeIndex"
	IdentityResourceIndexName = "IdentityResourceIndex"
	PersistedGrantIndexName   = "PersistedGrantIndex"
	DeviceFlowCodeIndexName   = "DeviceFlowCodeIndex"
)

// Projected field names.
const (
	FieldClientID           = "ClientId"
	FieldAllowedCorsOrigins = "AllowedCorsOrigins"
	FieldName               = "Name"
	FieldScopes             = "Scopes"
	FieldKey                = "Key"
	FieldSessionID          = "SessionId"
	FieldSubjectID          = "SubjectId"
	FieldType               = "Type"
	FieldUserCode           = "UserCode"
	FieldDeviceCode         = "DeviceCode"
)

// ClientIndex supports client id lookups and case insensitive origin
// lookups.
var ClientIndex = docdb.IndexDefinition{
	Name:       ClientIndexName,
	Collection: "Clients",
	Fields: []docdb.IndexField{
		{Name: FieldClientID, Path: "ClientId"},
		{Name: FieldAllowedCorsOrigins, Path: "AllowedCorsOrigins", Analyzer: docdb.FoldCase},
	},
}

// APIResourceIndex supports name lookups and scope intersection.
var APIResourceIndex = docdb.IndexDefinition{
	Name:       APIResourceIndexName,
	Collection: "ApiResources",
	Fields: []docdb.IndexField{
		{Name: FieldName, Path: "Name"},
		{Name: FieldScopes, Path: "Scopes"},
	},
}

var APIScopeIndex = docdb.IndexDefinition{
	Name:       APIScopeIndexName,
	Collection: "ApiScopes",
	Fields:     []docdb.IndexField{{Name: FieldName, Path: "Name"}},
}

var IdentityResourceIndex = docdb.IndexDefinition{
	Name:       IdentityResourceIndexName,
	Collection: "IdentityResources",
	Fields:     []docdb.IndexField{{Name: FieldName, Path: "Name"}},
}

// PersistedGrantIndex supports hashed key lookups and the grant filter.
var PersistedGrantIndex = docdb.IndexDefinition{
	Name:       PersistedGrantIndexName,
	Collection: "PersistedGrants",
	Fields: []docdb.IndexField{
		{Name: FieldKey, Path: "Key"},
		{Name: FieldClientID, Path: "ClientId"},
		{Name: FieldSessionID, Path: "SessionId"},
		{Name: FieldSubjectID, Path: "SubjectId"},
		{Name: FieldType, Path: "Type"},
	},
}

var DeviceFlowCodeIndex = docdb.IndexDefinition{
	Name:       DeviceFlowCodeIndexName,
	Collection: "DeviceFlowCodes",
	Fields: []docdb.IndexField{
		{Name: FieldUserCode, Path: "UserCode"},
		{Name: FieldDeviceCode, Path: "DeviceCode"},
	},
}

// Configuration returns the indexes of the configuration store family.
func Configuration() []docdb.IndexDefinition {
	return []docdb.IndexDefinition{ClientIndex, APIResourceIndex, APIScopeIndex, IdentityResourceIndex}
}

// Operational returns the indexes of the operational store family.
func Operational() []docdb.IndexDefinition {
	return []docdb.IndexDefinition{PersistedGrantIndex, DeviceFlowCodeIndex}
}

// ExecuteConfigurationIndexes registers the configuration indexes.
func ExecuteConfigurationIndexes(ctx context.Context, store *docdb.DocumentStore) error {
	if err := store.ExecuteIndexes(ctx, Configuration()...); err != nil {
		return fmt.Errorf("configuration indexes: %w", err)
	}

	return nil
}

// ExecuteOperationalIndexes registers the operational indexes.
func ExecuteOperationalIndexes(ctx context.Context, store *docdb.DocumentStore) error {
	if err := store.ExecuteIndexes(ctx, Operational()...); err != nil {
		return fmt.Errorf("operational indexes: %w", err)
	}

	return nil
}
