package mappers

import (
	"github.com/alexjbarnes/idsrv-docstore/internal/entities"
	"github.com/alexjbarnes/idsrv-docstore/internal/models"
)

// APIResourceToModel maps a stored API resource. The signing algorithms
// are split from their comma joined form.
func APIResourceToModel(e *entities.APIResource) *models.APIResource {
	if e == nil {
		return nil
	}

	m := models.NewAPIResource(e.Name)
	m.Enabled = e.Enabled
	m.DisplayName = e.DisplayName
	m.Description = e.Description
	m.ShowInDiscoveryDocument = e.ShowInDiscoveryDocument
	m.UserClaims = cloneStrings(e.UserClaims)
	m.Properties = propertiesToMap(e.Properties)
	m.Scopes = cloneStrings(e.Scopes)
	m.APISecrets = secretsToModel(e.Secrets)
	m.AllowedAccessTokenSigningAlgorithms = splitList(e.AllowedAccessTokenSigningAlgorithms)

	return m
}

// APIResourceToEntity maps an API resource for storage. The id is derived
// from the name.
func APIResourceToEntity(m *models.APIResource) *entities.APIResource {
	if m == nil {
		return nil
	}

	e := entities.NewAPIResource(m.Name)
	e.Enabled = m.Enabled
	e.DisplayName = m.DisplayName
	e.Description = m.Description
	e.ShowInDiscoveryDocument = m.ShowInDiscoveryDocument
	e.UserClaims = cloneStrings(m.UserClaims)
	e.Properties = propertiesFromMap(m.Properties)
	e.Scopes = cloneStrings(m.Scopes)
	e.Secrets = secretsToEntity(m.APISecrets)
	e.AllowedAccessTokenSigningAlgorithms = joinList(m.AllowedAccessTokenSigningAlgorithms)

	return e
}

// APIScopeToModel maps a stored API scope.
func APIScopeToModel(e *entities.APIScope) *models.APIScope {
	if e == nil {
		return nil
	}

	m := models.NewAPIScope(e.Name)
	m.Enabled = e.Enabled
	m.DisplayName = e.DisplayName
	m.Description = e.Description
	m.ShowInDiscoveryDocument = e.ShowInDiscoveryDocument
	m.UserClaims = cloneStrings(e.UserClaims)
	m.Properties = propertiesToMap(e.Properties)
	m.Required = e.Required
	m.Emphasize = e.Emphasize

	return m
}

// APIScopeToEntity maps an API scope for storage, deriving the id from
// the name.
func APIScopeToEntity(m *models.APIScope) *entities.APIScope {
	if m == nil {
		return nil
	}

	e := entities.NewAPIScope(m.Name)
	e.Enabled = m.Enabled
	e.DisplayName = m.DisplayName
	e.Description = m.Description
	e.ShowInDiscoveryDocument = m.ShowInDiscoveryDocument
	e.UserClaims = cloneStrings(m.UserClaims)
	e.Properties = propertiesFromMap(m.Properties)
	e.Required = m.Required
	e.Emphasize = m.Emphasize

	return e
}

// IdentityResourceToModel maps a stored identity resource.
func IdentityResourceToModel(e *entities.IdentityResource) *models.IdentityResource {
	if e == nil {
		return nil
	}

	m := models.NewIdentityResource(e.Name, cloneStrings(e.UserClaims)...)
	m.Enabled = e.Enabled
	m.DisplayName = e.DisplayName
	m.Description = e.Description
	m.ShowInDiscoveryDocument = e.ShowInDiscoveryDocument
	m.Properties = propertiesToMap(e.Properties)
	m.Required = e.Required
	m.Emphasize = e.Emphasize

	return m
}

// IdentityResourceToEntity maps an identity resource for storage,
// deriving the id from the name.
func IdentityResourceToEntity(m *models.IdentityResource) *entities.IdentityResource {
	if m == nil {
		return nil
	}

	e := entities.NewIdentityResource(m.Name)
	e.Enabled = m.Enabled
	e.DisplayName = m.DisplayName
	e.Description = m.Description
	e.ShowInDiscoveryDocument = m.ShowInDiscoveryDocument
	e.UserClaims = cloneStrings(m.UserClaims)
	e.Properties = propertiesFromMap(m.Properties)
	e.Required = m.Required
	e.Emphasize = m.Emphasize

	return e
}
