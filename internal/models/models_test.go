package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	errs "github.com/alexjbarnes/idsrv-docstore/internal/errors"
)

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient()
	assert.True(t, c.Enabled)
	assert.Equal(t, ProtocolTypeOpenIDConnect, c.ProtocolType)
	assert.True(t, c.RequireClientSecret)
	assert.Equal(t, 3600, c.AccessTokenLifetime)
	assert.NotNil(t, c.Properties)
}

func TestPersistedGrantFilter_Validate(t *testing.T) {
	assert.ErrorIs(t, PersistedGrantFilter{}.Validate(), errs.ErrEmptyFilter)
	assert.ErrorIs(t, PersistedGrantFilter{ClientID: "  "}.Validate(), errs.ErrEmptyFilter)
	assert.NoError(t, PersistedGrantFilter{Type: "refresh_token"}.Validate())
}

func TestClaimsPrincipal_FindFirst(t *testing.T) {
	p := &ClaimsPrincipal{Claims: []Claim{
		{Type: "name", Value: "alice"},
		{Type: ClaimSubject, Value: "123"},
		{Type: ClaimSubject, Value: "456"},
	}}

	c := p.FindFirst(ClaimSubject)
	if assert.NotNil(t, c) {
		assert.Equal(t, "123", c.Value)
	}
	assert.Equal(t, "123", p.SubjectID())
	assert.Nil(t, p.FindFirst("email"))

	var nilPrincipal *ClaimsPrincipal
	assert.Nil(t, nilPrincipal.FindFirst(ClaimSubject))
	assert.Equal(t, "", nilPrincipal.SubjectID())
}
