// Package models defines the host identity provider's models and the
// storage contracts it calls. The stores in internal/stores implement the
// contracts; entities never leave that layer.
package models

import "time"

// ProtocolTypeOpenIDConnect is the default client protocol.
const ProtocolTypeOpenIDConnect = "oidc"

// ClaimValueTypeString is the value type of plain string claims.
const ClaimValueTypeString = "http://www.w3.org/2001/XMLSchema#string"

// SecretTypeSharedSecret is the default secret type.
const SecretTypeSharedSecret = "SharedSecret"

// AccessTokenType selects self contained or reference access tokens.
type AccessTokenType int

const (
	AccessTokenJWT AccessTokenType = iota
	AccessTokenReference
)

// Secret is a hashed client or API secret.
type Secret struct {
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Value       string     `json:"value" yaml:"value"`
	Expiration  *time.Time `json:"expiration,omitempty" yaml:"expiration,omitempty"`
	Type        string     `json:"type" yaml:"type"`
}

// NewSecret returns a shared secret.
func NewSecret(value string) Secret {
	return Secret{Value: value, Type: SecretTypeSharedSecret}
}

// ClientClaim is a claim issued to a client in every token.
type ClientClaim struct {
	Type      string `json:"type" yaml:"type"`
	Value     string `json:"value" yaml:"value"`
	ValueType string `json:"valueType" yaml:"valueType"`
}

// NewClientClaim builds a claim with an explicit value type.
func NewClientClaim(claimType, value, valueType string) ClientClaim {
	return ClientClaim{Type: claimType, Value: value, ValueType: valueType}
}

// Client is an OpenID Connect or OAuth2 client.
type Client struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	ClientID     string `json:"clientId" yaml:"clientId"`
	ClientName   string `json:"clientName,omitempty" yaml:"clientName,omitempty"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	ClientURI    string `json:"clientUri,omitempty" yaml:"clientUri,omitempty"`
	LogoURI      string `json:"logoUri,omitempty" yaml:"logoUri,omitempty"`
	ProtocolType string `json:"protocolType" yaml:"protocolType"`

	RequireClientSecret         bool `json:"requireClientSecret" yaml:"requireClientSecret"`
	RequireConsent              bool `json:"requireConsent" yaml:"requireConsent"`
	RequirePkce                 bool `json:"requirePkce" yaml:"requirePkce"`
	AllowOfflineAccess          bool `json:"allowOfflineAccess" yaml:"allowOfflineAccess"`
	AllowAccessTokensViaBrowser bool `json:"allowAccessTokensViaBrowser" yaml:"allowAccessTokensViaBrowser"`

	AllowedGrantTypes            []string          `json:"allowedGrantTypes" yaml:"allowedGrantTypes"`
	AllowedScopes                []string          `json:"allowedScopes" yaml:"allowedScopes"`
	RedirectURIs                 []string          `json:"redirectUris" yaml:"redirectUris"`
	PostLogoutRedirectURIs       []string          `json:"postLogoutRedirectUris" yaml:"postLogoutRedirectUris"`
	AllowedCorsOrigins           []string          `json:"allowedCorsOrigins" yaml:"allowedCorsOrigins"`
	Claims                       []ClientClaim     `json:"claims" yaml:"claims"`
	ClientSecrets                []Secret          `json:"clientSecrets" yaml:"clientSecrets"`
	IdentityProviderRestrictions []string          `json:"identityProviderRestrictions" yaml:"identityProviderRestrictions"`
	Properties                   map[string]string `json:"properties" yaml:"properties"`

	// Stored comma joined: names must be non-blank, without commas or
	// surrounding spaces.
	AllowedIdentityTokenSigningAlgorithms []string `json:"allowedIdentityTokenSigningAlgorithms" yaml:"allowedIdentityTokenSigningAlgorithms"`

	IdentityTokenLifetime        int             `json:"identityTokenLifetime" yaml:"identityTokenLifetime"`
	AccessTokenLifetime          int             `json:"accessTokenLifetime" yaml:"accessTokenLifetime"`
	AuthorizationCodeLifetime    int             `json:"authorizationCodeLifetime" yaml:"authorizationCodeLifetime"`
	AbsoluteRefreshTokenLifetime int             `json:"absoluteRefreshTokenLifetime" yaml:"absoluteRefreshTokenLifetime"`
	SlidingRefreshTokenLifetime  int             `json:"slidingRefreshTokenLifetime" yaml:"slidingRefreshTokenLifetime"`
	AccessTokenType              AccessTokenType `json:"accessTokenType" yaml:"accessTokenType"`
}

// NewClient returns a client with the host's defaults. Lifetimes are in
// seconds.
func NewClient() *Client {
	return &Client{
		Enabled:                      true,
		ProtocolType:                 ProtocolTypeOpenIDConnect,
		RequireClientSecret:          true,
		RequirePkce:                  true,
		IdentityTokenLifetime:        300,
		AccessTokenLifetime:          3600,
		AuthorizationCodeLifetime:    300,
		AbsoluteRefreshTokenLifetime: 2592000,
		SlidingRefreshTokenLifetime:  1296000,
		AccessTokenType:              AccessTokenJWT,
		Properties:                   map[string]string{},
	}
}
