package entities

import "time"

// ClaimValueTypeString is the default value type of a client claim.
const ClaimValueTypeString = "http://www.w3.org/2001/XMLSchema#string"

// SecretTypeSharedSecret is the default secret type.
const SecretTypeSharedSecret = "SharedSecret"

// Property is a key/value pair attached to a client or resource.
type Property struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// Secret is a client or API resource secret. Value holds the hashed
// secret as supplied by the host.
type Secret struct {
	Description string     `json:"Description,omitempty"`
	Value       string     `json:"Value"`
	Expiration  *time.Time `json:"Expiration,omitempty"`
	Type        string     `json:"Type"`
	Created     time.Time  `json:"Created"`
}

// NewSecret returns a shared secret created now.
func NewSecret(value string) Secret {
	return Secret{Value: value, Type: SecretTypeSharedSecret, Created: time.Now().UTC()}
}

// ClientClaim is a claim always issued to a client.
type ClientClaim struct {
	Type      string `json:"Type"`
	Value     string `json:"Value"`
	ValueType string `json:"ValueType"`
}

// NewClientClaim returns a claim with the string value type.
func NewClientClaim(claimType, value string) ClientClaim {
	return ClientClaim{Type: claimType, Value: value, ValueType: ClaimValueTypeString}
}

// Client is stored in the Clients collection under a generated id.
// ClientID is the business key and is unique across documents.
type Client struct {
	ID string `json:"-"`

	Enabled      bool   `json:"Enabled"`
	ClientID     string `json:"ClientId"`
	ClientName   string `json:"ClientName,omitempty"`
	Description  string `json:"Description,omitempty"`
	ClientURI    string `json:"ClientUri,omitempty"`
	LogoURI      string `json:"LogoUri,omitempty"`
	ProtocolType string `json:"ProtocolType,omitempty"`

	RequireClientSecret         bool `json:"RequireClientSecret"`
	RequireConsent              bool `json:"RequireConsent"`
	RequirePkce                 bool `json:"RequirePkce"`
	AllowOfflineAccess          bool `json:"AllowOfflineAccess"`
	AllowAccessTokensViaBrowser bool `json:"AllowAccessTokensViaBrowser"`

	AllowedGrantTypes            []string      `json:"AllowedGrantTypes"`
	AllowedScopes                []string      `json:"AllowedScopes"`
	RedirectURIs                 []string      `json:"RedirectUris"`
	PostLogoutRedirectURIs       []string      `json:"PostLogoutRedirectUris"`
	AllowedCorsOrigins           []string      `json:"AllowedCorsOrigins"`
	Claims                       []ClientClaim `json:"Claims"`
	ClientSecrets                []Secret      `json:"ClientSecrets"`
	IdentityProviderRestrictions []string      `json:"IdentityProviderRestrictions"`
	Properties                   []Property    `json:"Properties"`

	// AllowedIdentityTokenSigningAlgorithms is the comma joined algorithm
	// list.
	AllowedIdentityTokenSigningAlgorithms string `json:"AllowedIdentityTokenSigningAlgorithms,omitempty"`

	IdentityTokenLifetime        int `json:"IdentityTokenLifetime"`
	AccessTokenLifetime          int `json:"AccessTokenLifetime"`
	AuthorizationCodeLifetime    int `json:"AuthorizationCodeLifetime"`
	AbsoluteRefreshTokenLifetime int `json:"AbsoluteRefreshTokenLifetime"`
	SlidingRefreshTokenLifetime  int `json:"SlidingRefreshTokenLifetime"`
	AccessTokenType              int `json:"AccessTokenType"`
}

func (c *Client) Collection() string      { return "Clients" }
func (c *Client) DocumentID() string      { return c.ID }
func (c *Client) SetDocumentID(id string) { c.ID = id }
