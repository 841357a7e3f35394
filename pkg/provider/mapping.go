package provider

// OIDCNameMapping relates classic per-protocol settings keys to OIDC provider
// fields. Used both to auto-convert classic single-provider settings into a
// registry entry and to strip fields redundant with defaults before
// persistence.
var OIDCNameMapping = map[string]string{
	"OIDC_ISSUER_URI":         FieldIssuerURI,
	"OIDC_CLIENT_ID":          FieldClientID,
	"OIDC_CLIENT_SECRET":      FieldClientSecret,
	"OIDC_CLIENT_CERT":        FieldClientCert,
	"OIDC_CLIENT_KEY":         FieldClientKey,
	"OIDC_TOKEN_SIGNING_ALGO": FieldSigningAlgo,
	"OIDC_SELECT_ACCOUNT":     FieldSelectAccount,
}

// SAMLNameMapping is the SAML counterpart of OIDCNameMapping.
var SAMLNameMapping = map[string]string{
	"SAML_IDP_METADATA_URL":      FieldMetadataURL,
	"SAML_IDP_METADATA_FILE":     FieldMetadataFile,
	"SAML_IDP_METADATA":          FieldMetadata,
	"SAML_IDP_ENTITY_ID":         FieldIDPEntityID,
	"SAML_IDP_SSO_URL":           FieldSignonURL,
	"SAML_IDP_SLO_URL":           FieldLogoutURL,
	"SAML_SP_ENTITY_ID":          FieldSPEntityID,
	"SAML_NAMEID_FORMAT":         FieldNameIDFormat,
	"SAML_AUTHN_CONTEXT":         FieldAuthnContext,
	"SAML_WANT_ASSERTION_SIGNED": FieldWantAssertionSigned,
	"SAML_WANT_RESPONSE_SIGNED":  FieldWantResponseSigned,
	"SAML_FORCE_AUTHN":           FieldForceAuthn,
}

// NameMapping returns the settings-to-field mapping for the given protocol.
func NameMapping(protocol string) map[string]string {
	if protocol == ProtocolOIDC {
		return OIDCNameMapping
	}
	return SAMLNameMapping
}
