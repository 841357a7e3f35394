package provider

import "fmt"

// Validate reports whether a provider entry carries enough configuration to
// attempt a login against it. Entries synthesized from default settings
// alone will fail here and get filtered out during normalization.
func Validate(p Provider) error {
	switch p.Protocol() {
	case ProtocolOIDC:
		if p.GetString(FieldIssuerURI) == "" {
			return fmt.Errorf("%w: missing issuerUri", ErrInvalidProvider)
		}
		if p.GetString(FieldClientID) == "" {
			return fmt.Errorf("%w: missing clientId", ErrInvalidProvider)
		}
		if p.GetString(FieldClientSecret) == "" && p.GetString(FieldClientCert) == "" {
			return fmt.Errorf("%w: missing clientSecret", ErrInvalidProvider)
		}
		return nil
	case ProtocolSAML:
		if p.GetString(FieldMetadataURL) == "" &&
			p.GetString(FieldMetadataFile) == "" &&
			p.GetString(FieldMetadata) == "" &&
			p.GetString(FieldSignonURL) == "" {
			return fmt.Errorf("%w: missing metadataUrl or signonUrl", ErrInvalidProvider)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported protocol %q", ErrInvalidProvider, p.Protocol())
	}
}
