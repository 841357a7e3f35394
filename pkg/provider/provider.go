package provider

import (
	"errors"

	"github.com/authbridge/authbridge/pkg/settings"
)

// Provider field names. Providers are loosely typed objects because raw
// configuration may be hand-edited, machine-generated, or incomplete, and the
// absent-vs-false distinction must survive the persistence round trip.
const (
	FieldProtocol = "protocol"
	FieldID       = "id"
	FieldLabel    = "label"

	FieldForceAuthn = "forceAuthn"

	FieldIssuerURI     = "issuerUri"
	FieldClientID      = "clientId"
	FieldClientSecret  = "clientSecret"
	FieldClientCert    = "clientCert"
	FieldClientKey     = "clientKey"
	FieldSigningAlgo   = "signingAlgo"
	FieldSelectAccount = "selectAccount"

	FieldMetadataURL         = "metadataUrl"
	FieldMetadataFile        = "metadataFile"
	FieldMetadata            = "metadata"
	FieldIDPEntityID         = "idpEntityId"
	FieldSignonURL           = "signonUrl"
	FieldLogoutURL           = "logoutUrl"
	FieldSPEntityID          = "spEntityId"
	FieldNameIDFormat        = "nameIdFormat"
	FieldAuthnContext        = "authnContext"
	FieldWantAssertionSigned = "wantAssertionSigned"
	FieldWantResponseSigned  = "wantResponseSigned"
)

// Protocol discriminators.
const (
	ProtocolOIDC = "oidc"
	ProtocolSAML = "saml"
)

// ErrInvalidProvider indicates a provider entry that fails validation; the
// message names the failing constraint.
var ErrInvalidProvider = errors.New("invalid provider")

// ErrUnknownProvider indicates an identifier with no matching registry entry.
var ErrUnknownProvider = errors.New("unknown provider")

// Provider is the configuration for one identity provider integration.
type Provider map[string]any

// Protocol returns the protocol discriminator, or "" when unset.
func (p Provider) Protocol() string {
	return p.str(FieldProtocol)
}

// ID returns the stable identifier, or "" when unset.
func (p Provider) ID() string {
	return p.str(FieldID)
}

// Label returns the human-readable label, or "" when unset.
func (p Provider) Label() string {
	return p.str(FieldLabel)
}

// Has reports whether the field is present, regardless of its value type.
func (p Provider) Has(field string) bool {
	_, ok := p[field]
	return ok
}

// GetString renders the field's value as a string, or "" when absent.
func (p Provider) GetString(field string) string {
	if !p.Has(field) {
		return ""
	}
	return settings.Render(p[field])
}

// GetBool coerces the field to a boolean under the standard truthiness rule:
// absent, nil, or a case-insensitive "false" are false, all else is true.
func (p Provider) GetBool(field string) bool {
	return settings.Truth(p[field])
}

// Clone returns a shallow copy of the provider.
func (p Provider) Clone() Provider {
	clone := make(Provider, len(p))
	for k, v := range p {
		clone[k] = v
	}
	return clone
}

// Concealed returns a copy with private key material removed, suitable for
// returning from the administrative API.
func (p Provider) Concealed() Provider {
	clone := p.Clone()
	delete(clone, FieldClientKey)
	return clone
}

// IsLegacy reports whether this entry is a single-provider auto-conversion
// from classic settings. Such entries keep their identifier through
// normalization so existing login URLs never change.
func (p Provider) IsLegacy() bool {
	id := p.ID()
	return id != "" && id == p.Protocol()
}

func (p Provider) str(field string) string {
	if s, ok := p[field].(string); ok {
		return s
	}
	return ""
}
