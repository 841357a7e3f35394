package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/authbridge/authbridge/pkg/clientcert"
	"github.com/authbridge/authbridge/pkg/httputil"
	"github.com/authbridge/authbridge/pkg/settings"
)

// requireAdminToken guards the administrative routes with the bearer
// credential from settings. With no token configured the routes are
// disabled outright rather than left open.
func (s *Server) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.settings.GetString(settings.AdminAPIToken)
		if token == "" {
			httputil.WriteForbidden(w, "administrative API is not enabled")
			return
		}
		header := r.Header.Get("Authorization")
		if header == "" {
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] != token {
			httputil.WriteUnauthorized(w, "invalid credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireClientCert applies the client certificate authorization engine.
func (s *Server) requireClientCert(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.certs.Authorize(r); err != nil {
			s.writeAuthzError(w, err)
			return
		}
		if s.metrics != nil {
			s.metrics.AuthzDecisionsTotal.WithLabelValues("allow").Inc()
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeAuthzError(w http.ResponseWriter, err error) {
	outcome := "denied"
	switch {
	case errors.Is(err, clientcert.ErrCertificateRequired):
		outcome = "certificate_required"
		httputil.WriteUnauthorized(w, "client certificate required")
	case errors.Is(err, clientcert.ErrNotAuthorized),
		errors.Is(err, clientcert.ErrFingerprintMismatch),
		errors.Is(err, clientcert.ErrCommonNameMismatch):
		outcome = "not_authorized"
		httputil.WriteForbidden(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
	if s.metrics != nil {
		s.metrics.AuthzDecisionsTotal.WithLabelValues(outcome).Inc()
	}
}
