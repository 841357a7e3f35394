package clientcert

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/authbridge/authbridge/pkg/observability"
	"github.com/authbridge/authbridge/pkg/settings"
)

var (
	// ErrCertificateRequired indicates a TLS connection without a peer
	// certificate.
	ErrCertificateRequired = errors.New("client certificate required")

	// ErrNotAuthorized indicates the peer certificate does not chain to any
	// loaded trust anchor. Deliberately identical whether no authority is
	// configured or the certificate simply fails verification.
	ErrNotAuthorized = errors.New("client certificate is not authorized")

	// ErrFingerprintMismatch indicates a trusted certificate whose SHA-256
	// fingerprint is absent from the configured allow-list.
	ErrFingerprintMismatch = errors.New("client certificate fingerprint does not match")

	// ErrCommonNameMismatch indicates a trusted certificate whose subject
	// common name is absent from the configured allow-list.
	ErrCommonNameMismatch = errors.New("client certificate common name does not match")
)

// Engine decides whether an inbound connection may reach administrative and
// other sensitive endpoints. Purely computational per call; the trust store
// is loaded once at startup.
type Engine struct {
	settings settings.Repository
	logger   *observability.Logger
}

// NewEngine creates an authorization engine over the given settings.
func NewEngine(repo settings.Repository, logger *observability.Logger) *Engine {
	return &Engine{settings: repo, logger: logger}
}

// Authorize evaluates the connection in strict order: plaintext connections
// pass unconditionally; the bypass setting passes unconditionally; then the
// peer must present a certificate that chains to a loaded trust anchor (the
// TLS layer's verification result); the fingerprint allow-list, or failing
// that the common-name allow-list, narrows the already-trusted population.
func (e *Engine) Authorize(r *http.Request) error {
	if r.TLS == nil {
		// the service trusts its network boundary for plaintext listeners
		return nil
	}
	if settings.Truth(e.settings.Get(settings.AssumeClientAuthorized)) {
		return nil
	}
	if len(r.TLS.PeerCertificates) == 0 {
		e.logger.Warn("connection rejected: no client certificate presented")
		return ErrCertificateRequired
	}
	cert := r.TLS.PeerCertificates[0]
	if len(r.TLS.VerifiedChains) == 0 {
		e.logger.WithField("subject", cert.Subject.String()).
			Warn("connection rejected: certificate does not chain to a configured authority")
		return ErrNotAuthorized
	}
	if allowed := ParseList(e.settings.GetString(settings.ClientCertFingerprint)); len(allowed) > 0 {
		fingerprint := Fingerprint(cert)
		for _, entry := range allowed {
			if normalizeFingerprint(entry) == normalizeFingerprint(fingerprint) {
				return nil
			}
		}
		e.logger.WithField("fingerprint", fingerprint).
			Warn("connection rejected: fingerprint not in allow-list")
		return ErrFingerprintMismatch
	}
	if allowed := ParseList(e.settings.GetString(settings.ClientCertCommonName)); len(allowed) > 0 {
		for _, entry := range allowed {
			if entry == cert.Subject.CommonName {
				return nil
			}
		}
		e.logger.WithField("common_name", cert.Subject.CommonName).
			Warn("connection rejected: common name not in allow-list")
		return ErrCommonNameMismatch
	}
	return nil
}

// Fingerprint renders the certificate's SHA-256 fingerprint in the
// conventional colon-separated uppercase hex form.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	encoded := strings.ToUpper(hex.EncodeToString(sum[:]))
	parts := make([]string, 0, len(encoded)/2)
	for i := 0; i < len(encoded); i += 2 {
		parts = append(parts, encoded[i:i+2])
	}
	return strings.Join(parts, ":")
}

// comparison tolerates both colon-separated and bare hex forms, any case
func normalizeFingerprint(fp string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(fp), ":", ""))
}
