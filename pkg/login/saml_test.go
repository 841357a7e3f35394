package login

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authbridge/authbridge/pkg/provider"
	"github.com/authbridge/authbridge/pkg/settings"
)

const idpMetadataTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<EntityDescriptor xmlns="urn:oasis:names:tc:SAML:2.0:metadata" entityID="urn:test:idp">
  <IDPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
    <KeyDescriptor use="signing">
      <KeyInfo xmlns="http://www.w3.org/2000/09/xmldsig#">
        <X509Data>
          <X509Certificate>%s</X509Certificate>
        </X509Data>
      </KeyInfo>
    </KeyDescriptor>
    <SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
      Location="https://idp.test/sso-post"/>
    <SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"
      Location="https://idp.test/sso-redirect"/>
  </IDPSSODescriptor>
</EntityDescriptor>`

func testIdPMetadata(t *testing.T) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "idp.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	return fmt.Sprintf(idpMetadataTemplate, base64.StdEncoding.EncodeToString(der))
}

func newTestHub(t *testing.T, configured map[string]any) *Hub {
	t.Helper()
	if _, ok := configured[settings.ServiceBaseURI]; !ok {
		configured[settings.ServiceBaseURI] = "https://auth.example.com"
	}
	repo := settings.NewLayered(settings.NewMapRepositoryFrom(configured), settings.Defaults())
	registry := provider.NewRegistry(repo, testObsLogger())
	return NewHub(registry, repo, nil, testLog())
}

func TestBuildServiceProviderFromInlineMetadata(t *testing.T) {
	hub := newTestHub(t, map[string]any{})
	p := provider.Provider{
		provider.FieldProtocol:            provider.ProtocolSAML,
		provider.FieldID:                  "saml-0",
		provider.FieldMetadata:            testIdPMetadata(t),
		provider.FieldWantAssertionSigned: true,
	}

	sp, err := hub.ServiceProvider(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "https://idp.test/sso-redirect", sp.IdentityProviderSSOURL, "redirect binding preferred")
	assert.Equal(t, "urn:test:idp", sp.IdentityProviderIssuer)
	assert.NotNil(t, sp.IDPCertificateStore)
	assert.False(t, sp.SkipSignatureValidation)
	assert.Equal(t, "https://auth.example.com/saml/sso", sp.AssertionConsumerServiceURL)
}

func TestBuildServiceProviderFromMetadataURL(t *testing.T) {
	metadata := testIdPMetadata(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, metadata)
	}))
	defer srv.Close()

	hub := newTestHub(t, map[string]any{})
	p := provider.Provider{
		provider.FieldProtocol:    provider.ProtocolSAML,
		provider.FieldID:          "saml-0",
		provider.FieldMetadataURL: srv.URL,
	}

	sp, err := hub.ServiceProvider(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "urn:test:idp", sp.IdentityProviderIssuer)
	assert.NotNil(t, sp.IDPCertificateStore)
}

func TestBuildServiceProviderMetadataURLFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	hub := newTestHub(t, map[string]any{})
	p := provider.Provider{
		provider.FieldProtocol:    provider.ProtocolSAML,
		provider.FieldID:          "saml-0",
		provider.FieldMetadataURL: srv.URL,
	}

	_, err := hub.ServiceProvider(context.Background(), p)
	assert.Error(t, err)
}

func TestBuildServiceProviderExplicitEndpoints(t *testing.T) {
	hub := newTestHub(t, map[string]any{})
	p := provider.Provider{
		provider.FieldProtocol:    provider.ProtocolSAML,
		provider.FieldID:          "saml-0",
		provider.FieldSignonURL:   "https://idp.test/sso",
		provider.FieldIDPEntityID: "urn:test:idp",
	}

	sp, err := hub.ServiceProvider(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "https://idp.test/sso", sp.IdentityProviderSSOURL)
	assert.True(t, sp.SkipSignatureValidation, "neither signing flag is set")
}

func TestBuildServiceProviderSigningFlags(t *testing.T) {
	hub := newTestHub(t, map[string]any{})

	// either flag keeps validation on, even without metadata certs, so an
	// unsigned response is rejected rather than accepted
	for _, field := range []string{provider.FieldWantAssertionSigned, provider.FieldWantResponseSigned} {
		p := provider.Provider{
			provider.FieldProtocol:  provider.ProtocolSAML,
			provider.FieldID:        "saml-0",
			provider.FieldSignonURL: "https://idp.test/sso",
			field:                   true,
		}

		sp, err := hub.ServiceProvider(context.Background(), p)
		require.NoError(t, err)
		assert.False(t, sp.SkipSignatureValidation, field)
		hub.Reset()
	}

	// disabling both flags skips validation even when metadata carries certs
	p := provider.Provider{
		provider.FieldProtocol:            provider.ProtocolSAML,
		provider.FieldID:                  "saml-0",
		provider.FieldMetadata:            testIdPMetadata(t),
		provider.FieldWantAssertionSigned: false,
		provider.FieldWantResponseSigned:  false,
	}

	sp, err := hub.ServiceProvider(context.Background(), p)
	require.NoError(t, err)
	assert.NotNil(t, sp.IDPCertificateStore)
	assert.True(t, sp.SkipSignatureValidation)
}

func TestBuildServiceProviderNoEndpoint(t *testing.T) {
	hub := newTestHub(t, map[string]any{})
	p := provider.Provider{
		provider.FieldProtocol: provider.ProtocolSAML,
		provider.FieldID:       "saml-0",
	}

	_, err := hub.ServiceProvider(context.Background(), p)
	assert.ErrorIs(t, err, provider.ErrInvalidProvider)
}

func TestBuildServiceProviderHonorsEntryFields(t *testing.T) {
	hub := newTestHub(t, map[string]any{})
	p := provider.Provider{
		provider.FieldProtocol:     provider.ProtocolSAML,
		provider.FieldID:           "saml-0",
		provider.FieldSignonURL:    "https://idp.test/sso",
		provider.FieldSPEntityID:   "urn:example:authbridge",
		provider.FieldNameIDFormat: "urn:oasis:names:tc:SAML:1.1:nameid-format:emailAddress",
		provider.FieldForceAuthn:   true,
	}

	sp, err := hub.ServiceProvider(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "urn:example:authbridge", sp.ServiceProviderIssuer)
	assert.Equal(t, "urn:example:authbridge", sp.AudienceURI)
	assert.Equal(t, "urn:oasis:names:tc:SAML:1.1:nameid-format:emailAddress", sp.NameIdFormat)
	assert.True(t, sp.ForceAuthn)
}

func TestServiceProviderCached(t *testing.T) {
	hub := newTestHub(t, map[string]any{})
	p := provider.Provider{
		provider.FieldProtocol:  provider.ProtocolSAML,
		provider.FieldID:        "saml-0",
		provider.FieldSignonURL: "https://idp.test/sso",
	}

	first, err := hub.ServiceProvider(context.Background(), p)
	require.NoError(t, err)
	second, err := hub.ServiceProvider(context.Background(), p)
	require.NoError(t, err)
	assert.Same(t, first, second)

	hub.Reset()
	third, err := hub.ServiceProvider(context.Background(), p)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestAuthURLCarriesRelayState(t *testing.T) {
	hub := newTestHub(t, map[string]any{})
	p := provider.Provider{
		provider.FieldProtocol:  provider.ProtocolSAML,
		provider.FieldID:        "saml-0",
		provider.FieldSignonURL: "https://idp.test/sso",
	}

	authURL, err := hub.AuthURL(context.Background(), p, "request123")
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "idp.test", parsed.Hostname())
	assert.NotEmpty(t, parsed.Query().Get("SAMLRequest"))
	assert.Equal(t, "request123", parsed.Query().Get("RelayState"))
}

func TestHubMetadataWithoutProviders(t *testing.T) {
	hub := newTestHub(t, map[string]any{})

	metadata, err := hub.Metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/saml/metadata", metadata.EntityID)
	require.NotNil(t, metadata.SPSSODescriptor)
}
