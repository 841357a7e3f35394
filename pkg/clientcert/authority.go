package clientcert

import (
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/authbridge/authbridge/pkg/settings"
)

// LoadAuthorityCerts reads the configured trust-anchor bundle(s) into a
// certificate pool. The CA_CERT_FILE setting accepts a single path or a
// bracketed, comma-separated list of paths; each file may hold one
// certificate or a PEM bundle. No configuration yields an empty pool, which
// is not an error; a configured but unreadable or unparseable file is fatal.
func LoadAuthorityCerts(repo settings.Repository) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, path := range ParseList(repo.GetString(settings.CACertFile)) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read authority certificate %s: %w", path, err)
		}
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("no certificates found in %s", path)
		}
	}
	return pool, nil
}

// ParseList splits a setting that is either a single value or a bracketed,
// comma-separated list of values. Empty entries are dropped.
func ParseList(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		var values []string
		for _, entry := range strings.Split(value[1:len(value)-1], ",") {
			if entry = strings.TrimSpace(entry); entry != "" {
				values = append(values, entry)
			}
		}
		return values
	}
	return []string{value}
}
