package settings

// Names of the settings consumed by the service. Collected here so that the
// admin handlers, the authorization engine, and the provider registry agree on
// spelling.
const (
	AuthProviders          = "AUTH_PROVIDERS"
	CACertFile             = "CA_CERT_FILE"
	ClientCertFingerprint  = "CLIENT_CERT_FP"
	ClientCertCommonName   = "CLIENT_CERT_CN"
	AssumeClientAuthorized = "ASSUME_CLIENT_AUTHORIZED"
	AdminAPIToken          = "ADMIN_API_TOKEN"
	RedisURL               = "REDIS_URL"
	RedisPassword          = "REDIS_PASSWORD"
	RedisTimeout           = "REDIS_TIMEOUT"
	LoginTimeout           = "LOGIN_TIMEOUT"
	CacheTTL               = "CACHE_TTL"
	ServiceBaseURI         = "SVC_BASE_URI"
)

// Defaults returns the repository of factory-default settings. The anonymizer
// compares provider fields against these values to decide what is redundant;
// administrators never edit this layer.
func Defaults() *MapRepository {
	return NewMapRepositoryFrom(map[string]any{
		LoginTimeout: "60",
		CacheTTL:     "300",
		RedisTimeout: "5",

		"OIDC_SELECT_ACCOUNT":     "false",
		"OIDC_TOKEN_SIGNING_ALGO": "RS256",

		"SAML_AUTHN_CONTEXT":         "urn:oasis:names:tc:SAML:2.0:ac:classes:PasswordProtectedTransport",
		"SAML_NAMEID_FORMAT":         "urn:oasis:names:tc:SAML:2.0:nameid-format:unspecified",
		"SAML_WANT_ASSERTION_SIGNED": "true",
		"SAML_WANT_RESPONSE_SIGNED":  "true",
		"SAML_FORCE_AUTHN":           "false",
	})
}
