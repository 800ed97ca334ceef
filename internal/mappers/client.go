package mappers

import (
	"github.com/alexjbarnes/idsrv-docstore/internal/entities"
	"github.com/alexjbarnes/idsrv-docstore/internal/models"
)

// ClientToModel maps a stored client. An empty protocol type leaves the
// model default in place.
func ClientToModel(e *entities.Client) *models.Client {
	if e == nil {
		return nil
	}

	m := models.NewClient()

	m.Enabled = e.Enabled
	m.ClientID = e.ClientID
	m.ClientName = e.ClientName
	m.Description = e.Description
	m.ClientURI = e.ClientURI
	m.LogoURI = e.LogoURI

	if e.ProtocolType != "" {
		m.ProtocolType = e.ProtocolType
	}

	m.RequireClientSecret = e.RequireClientSecret
	m.RequireConsent = e.RequireConsent
	m.RequirePkce = e.RequirePkce
	m.AllowOfflineAccess = e.AllowOfflineAccess
	m.AllowAccessTokensViaBrowser = e.AllowAccessTokensViaBrowser

	m.AllowedGrantTypes = cloneStrings(e.AllowedGrantTypes)
	m.AllowedScopes = cloneStrings(e.AllowedScopes)
	m.RedirectURIs = cloneStrings(e.RedirectURIs)
	m.PostLogoutRedirectURIs = cloneStrings(e.PostLogoutRedirectURIs)
	m.AllowedCorsOrigins = cloneStrings(e.AllowedCorsOrigins)
	m.IdentityProviderRestrictions = cloneStrings(e.IdentityProviderRestrictions)
	m.ClientSecrets = secretsToModel(e.ClientSecrets)
	m.Properties = propertiesToMap(e.Properties)
	m.AllowedIdentityTokenSigningAlgorithms = splitList(e.AllowedIdentityTokenSigningAlgorithms)

	if e.Claims != nil {
		m.Claims = make([]models.ClientClaim, len(e.Claims))
		for i, c := range e.Claims {
			valueType := c.ValueType
			if valueType == "" {
				valueType = models.ClaimValueTypeString
			}

			m.Claims[i] = models.NewClientClaim(c.Type, c.Value, valueType)
		}
	}

	m.IdentityTokenLifetime = e.IdentityTokenLifetime
	m.AccessTokenLifetime = e.AccessTokenLifetime
	m.AuthorizationCodeLifetime = e.AuthorizationCodeLifetime
	m.AbsoluteRefreshTokenLifetime = e.AbsoluteRefreshTokenLifetime
	m.SlidingRefreshTokenLifetime = e.SlidingRefreshTokenLifetime
	m.AccessTokenType = models.AccessTokenType(e.AccessTokenType)

	return m
}

// ClientToEntity maps a client for storage. The entity has no id yet.
func ClientToEntity(m *models.Client) *entities.Client {
	if m == nil {
		return nil
	}

	e := &entities.Client{
		Enabled:      m.Enabled,
		ClientID:     m.ClientID,
		ClientName:   m.ClientName,
		Description:  m.Description,
		ClientURI:    m.ClientURI,
		LogoURI:      m.LogoURI,
		ProtocolType: m.ProtocolType,

		RequireClientSecret:         m.RequireClientSecret,
		RequireConsent:              m.RequireConsent,
		RequirePkce:                 m.RequirePkce,
		AllowOfflineAccess:          m.AllowOfflineAccess,
		AllowAccessTokensViaBrowser: m.AllowAccessTokensViaBrowser,

		AllowedGrantTypes:            cloneStrings(m.AllowedGrantTypes),
		AllowedScopes:                cloneStrings(m.AllowedScopes),
		RedirectURIs:                 cloneStrings(m.RedirectURIs),
		PostLogoutRedirectURIs:       cloneStrings(m.PostLogoutRedirectURIs),
		AllowedCorsOrigins:           cloneStrings(m.AllowedCorsOrigins),
		IdentityProviderRestrictions: cloneStrings(m.IdentityProviderRestrictions),
		ClientSecrets:                secretsToEntity(m.ClientSecrets),
		Properties:                   propertiesFromMap(m.Properties),

		AllowedIdentityTokenSigningAlgorithms: joinList(m.AllowedIdentityTokenSigningAlgorithms),

		IdentityTokenLifetime:        m.IdentityTokenLifetime,
		AccessTokenLifetime:          m.AccessTokenLifetime,
		AuthorizationCodeLifetime:    m.AuthorizationCodeLifetime,
		AbsoluteRefreshTokenLifetime: m.AbsoluteRefreshTokenLifetime,
		SlidingRefreshTokenLifetime:  m.SlidingRefreshTokenLifetime,
		AccessTokenType:              int(m.AccessTokenType),
	}

	if m.Claims != nil {
		e.Claims = make([]entities.ClientClaim, len(m.Claims))
		for i, c := range m.Claims {
			claim := entities.NewClientClaim(c.Type, c.Value)
			if c.ValueType != "" {
				claim.ValueType = c.ValueType
			}

			e.Claims[i] = claim
		}
	}

	return e
}
