package login

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	saml2 "github.com/russellhaering/gosaml2"
	"github.com/russellhaering/gosaml2/types"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/authbridge/authbridge/pkg/provider"
)

// buildServiceProvider assembles a gosaml2 service provider from a registry
// entry. IdP details come from the metadata URL, inline metadata, or the
// individually configured endpoint fields, in that order of preference.
func (h *Hub) buildServiceProvider(ctx context.Context, p provider.Provider) (*saml2.SAMLServiceProvider, error) {
	base := strings.TrimSuffix(h.baseURI(), "/")

	sp := &saml2.SAMLServiceProvider{
		ServiceProviderIssuer:       base + "/saml/metadata",
		AssertionConsumerServiceURL: base + "/saml/sso",
		AudienceURI:                 base + "/saml/metadata",
		SignAuthnRequests:           h.keyStore != nil,
		SPKeyStore:                  h.keyStore,
		ForceAuthn:                  p.GetBool(provider.FieldForceAuthn),
	}
	if entityID := p.GetString(provider.FieldSPEntityID); entityID != "" {
		sp.ServiceProviderIssuer = entityID
		sp.AudienceURI = entityID
	}
	if format := p.GetString(provider.FieldNameIDFormat); format != "" {
		sp.NameIdFormat = format
	}
	if class := p.GetString(provider.FieldAuthnContext); class != "" {
		sp.RequestedAuthnContext = &saml2.RequestedAuthnContext{
			Comparison: saml2.AuthnPolicyMatchExact,
			Contexts:   []string{class},
		}
	}
	if sp.SPKeyStore == nil {
		sp.SPKeyStore = dsig.RandomKeyStoreForTest()
	}

	metadata, err := h.loadIdPMetadata(ctx, p)
	if err != nil {
		return nil, err
	}
	if metadata != nil {
		if err := applyIdPMetadata(sp, metadata); err != nil {
			return nil, err
		}
	} else {
		sp.IdentityProviderSSOURL = p.GetString(provider.FieldSignonURL)
		sp.IdentityProviderIssuer = p.GetString(provider.FieldIDPEntityID)
	}
	// gosaml2 accepts a signature on either the response or the assertion,
	// so the two signing flags collapse to one requirement: validation
	// stays on while either is set, even without pinned certificates, and
	// an unsigned response is then rejected at the callback. Running
	// unsigned requires disabling both flags.
	sp.SkipSignatureValidation = !p.GetBool(provider.FieldWantAssertionSigned) &&
		!p.GetBool(provider.FieldWantResponseSigned)
	if sp.IdentityProviderSSOURL == "" {
		return nil, fmt.Errorf("%w: no single sign-on endpoint", provider.ErrInvalidProvider)
	}
	return sp, nil
}

// loadIdPMetadata returns the parsed IdP entity descriptor, or nil when the
// provider is configured with explicit endpoints instead of metadata.
func (h *Hub) loadIdPMetadata(ctx context.Context, p provider.Provider) (*types.EntityDescriptor, error) {
	var raw []byte
	switch {
	case p.GetString(provider.FieldMetadataURL) != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.GetString(provider.FieldMetadataURL), nil)
		if err != nil {
			return nil, fmt.Errorf("%w: bad metadata URL: %v", provider.ErrInvalidProvider, err)
		}
		res, err := h.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch IdP metadata: %w", err)
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to fetch IdP metadata: status %d", res.StatusCode)
		}
		raw, err = io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch IdP metadata: %w", err)
		}
	case p.GetString(provider.FieldMetadata) != "":
		raw = []byte(p.GetString(provider.FieldMetadata))
	default:
		return nil, nil
	}

	metadata := &types.EntityDescriptor{}
	if err := xml.Unmarshal(raw, metadata); err != nil {
		return nil, fmt.Errorf("%w: malformed IdP metadata: %v", provider.ErrInvalidProvider, err)
	}
	return metadata, nil
}

// applyIdPMetadata copies the IdP endpoints and signing certificates from the
// entity descriptor onto the service provider.
func applyIdPMetadata(sp *saml2.SAMLServiceProvider, metadata *types.EntityDescriptor) error {
	if metadata.IDPSSODescriptor == nil {
		return fmt.Errorf("%w: metadata has no IdP descriptor", provider.ErrInvalidProvider)
	}
	sp.IdentityProviderIssuer = metadata.EntityID

	// prefer the redirect binding, fall back to whatever is first
	for _, svc := range metadata.IDPSSODescriptor.SingleSignOnServices {
		if sp.IdentityProviderSSOURL == "" || strings.HasSuffix(svc.Binding, "HTTP-Redirect") {
			sp.IdentityProviderSSOURL = svc.Location
		}
		if strings.HasSuffix(svc.Binding, "HTTP-Redirect") {
			break
		}
	}

	certStore := dsig.MemoryX509CertificateStore{Roots: []*x509.Certificate{}}
	for _, kd := range metadata.IDPSSODescriptor.KeyDescriptors {
		for _, xcert := range kd.KeyInfo.X509Data.X509Certificates {
			if xcert.Data == "" {
				continue
			}
			// certificates in metadata are base64 with arbitrary whitespace
			der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(xcert.Data), ""))
			if err != nil {
				return fmt.Errorf("%w: malformed IdP certificate: %v", provider.ErrInvalidProvider, err)
			}
			cert, err := x509.ParseCertificate(der)
			if err != nil {
				return fmt.Errorf("%w: malformed IdP certificate: %v", provider.ErrInvalidProvider, err)
			}
			certStore.Roots = append(certStore.Roots, cert)
		}
	}
	if len(certStore.Roots) > 0 {
		sp.IDPCertificateStore = &certStore
	}
	return nil
}

// SAMLAssertion is the subset of a validated assertion the service cares
// about: the subject and the attribute statement flattened to strings.
type SAMLAssertion struct {
	NameID       string
	SessionIndex string
	Attributes   map[string]any
}

// ValidateResponse decodes and validates a SAMLResponse form value against
// the provider's metadata, returning the asserted subject and attributes.
func (h *Hub) ValidateResponse(ctx context.Context, p provider.Provider, encodedResponse string) (*SAMLAssertion, error) {
	sp, err := h.ServiceProvider(ctx, p)
	if err != nil {
		return nil, err
	}
	info, err := sp.RetrieveAssertionInfo(encodedResponse)
	if err != nil {
		return nil, fmt.Errorf("failed to validate assertion: %w", err)
	}
	if info.WarningInfo != nil {
		if info.WarningInfo.InvalidTime {
			return nil, fmt.Errorf("assertion has invalid time")
		}
		if info.WarningInfo.NotInAudience {
			return nil, fmt.Errorf("assertion not in expected audience")
		}
	}
	assertion := &SAMLAssertion{
		NameID:       info.NameID,
		SessionIndex: info.SessionIndex,
		Attributes:   make(map[string]any),
	}
	for _, attr := range info.Values {
		if len(attr.Values) == 1 {
			assertion.Attributes[attr.Name] = attr.Values[0].Value
			continue
		}
		values := make([]string, 0, len(attr.Values))
		for _, v := range attr.Values {
			values = append(values, v.Value)
		}
		assertion.Attributes[attr.Name] = values
	}
	if assertion.NameID == "" {
		return nil, fmt.Errorf("assertion has no subject")
	}
	return assertion, nil
}

// AuthURL builds the IdP redirect URL that starts the SAML handshake. The
// relay state carries the login request identifier through the IdP.
func (h *Hub) AuthURL(ctx context.Context, p provider.Provider, relayState string) (string, error) {
	sp, err := h.ServiceProvider(ctx, p)
	if err != nil {
		return "", err
	}
	authURL, err := sp.BuildAuthURL(relayState)
	if err != nil {
		return "", fmt.Errorf("failed to build auth URL: %w", err)
	}
	return authURL, nil
}

// Metadata renders this service's own SP entity descriptor for IdP
// registration. Any configured SAML provider yields the same descriptor; with
// none configured a minimal synthetic provider stands in.
func (h *Hub) Metadata(ctx context.Context) (*types.EntityDescriptor, error) {
	providers, err := h.registry.Providers()
	if err != nil {
		return nil, err
	}
	for _, p := range providers {
		if p.Protocol() != provider.ProtocolSAML {
			continue
		}
		sp, err := h.ServiceProvider(ctx, p)
		if err != nil {
			continue
		}
		return sp.Metadata()
	}
	sp := &saml2.SAMLServiceProvider{
		ServiceProviderIssuer:       strings.TrimSuffix(h.baseURI(), "/") + "/saml/metadata",
		AssertionConsumerServiceURL: strings.TrimSuffix(h.baseURI(), "/") + "/saml/sso",
		SPKeyStore:                  h.keyStore,
	}
	if sp.SPKeyStore == nil {
		sp.SPKeyStore = dsig.RandomKeyStoreForTest()
	}
	return sp.Metadata()
}
