package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/authbridge/authbridge/pkg/clientcert"
	"github.com/authbridge/authbridge/pkg/login"
	"github.com/authbridge/authbridge/pkg/observability"
	"github.com/authbridge/authbridge/pkg/provider"
	"github.com/authbridge/authbridge/pkg/settings"
	"github.com/authbridge/authbridge/pkg/store"
)

const testAdminToken = "test-admin-token"

type testServer struct {
	*Server
	handler  http.Handler
	requests store.Store[*store.Request]
}

func newTestServer(t *testing.T, configured map[string]any) *testServer {
	t.Helper()
	if configured == nil {
		configured = map[string]any{}
	}
	if _, ok := configured[settings.AdminAPIToken]; !ok {
		configured[settings.AdminAPIToken] = testAdminToken
	}
	if _, ok := configured[settings.ServiceBaseURI]; !ok {
		configured[settings.ServiceBaseURI] = "https://auth.example.com"
	}
	layered := settings.NewLayered(settings.NewMapRepositoryFrom(configured), settings.Defaults())

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	protoLog := logrus.New()
	protoLog.SetOutput(io.Discard)

	requests := store.NewMemoryStore[*store.Request](time.Minute)
	users := store.NewMemoryStore[*store.User](time.Minute)
	t.Cleanup(func() {
		requests.Close()
		users.Close()
	})

	registry := provider.NewRegistry(layered, logger)
	svc := login.NewService(requests, users, protoLog)
	hub := login.NewHub(registry, layered, nil, protoLog)

	server := NewServer(Options{
		Settings: layered,
		Registry: registry,
		Service:  svc,
		Hub:      hub,
		Certs:    clientcert.NewEngine(layered, logger),
		Metrics:  observability.NewMetrics(nil),
		Health:   observability.NewHealthChecker(nil),
		Logger:   logger,
	})
	return &testServer{Server: server, handler: server.Router(), requests: requests}
}

func (ts *testServer) do(t *testing.T, method, path, body string, authorized bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorized {
		req.Header.Set("Authorization", "Bearer "+testAdminToken)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

const singleOIDCProvider = `{"providers":[{"protocol":"oidc","issuerUri":"https://oidc.example.com","clientId":"client-id","clientSecret":"client-secret"}]}`

const singleSAMLProvider = `{"providers":[{"protocol":"saml","signonUrl":"https://idp.example.com/sso","idpEntityId":"urn:test:idp"}]}`

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, "GET", "/healthz", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, "GET", "/metrics", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRouteIs404(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, "GET", "/nonesuch", "", false)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
