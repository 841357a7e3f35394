package login

import (
	"context"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	saml2 "github.com/russellhaering/gosaml2"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/sirupsen/logrus"

	"github.com/authbridge/authbridge/pkg/provider"
	"github.com/authbridge/authbridge/pkg/settings"
)

const (
	handleCacheSize = 16
	handleCacheTTL  = 10 * time.Minute
)

// Hub constructs and caches the protocol handles used to talk to identity
// providers. Building a handle may involve fetching IdP metadata or OIDC
// discovery documents, so constructed handles are kept in a bounded cache
// and rebuilt after the TTL or a configuration change.
type Hub struct {
	registry *provider.Registry
	settings settings.Repository
	client   *http.Client
	keyStore dsig.X509KeyStore
	log      logrus.FieldLogger

	spCache   *lru.LRU[string, *saml2.SAMLServiceProvider]
	oidcCache *lru.LRU[string, *OIDCClient]
}

// NewHub creates a hub over the provider registry. The key store signs
// outgoing SAML requests; pass nil to send unsigned requests.
func NewHub(registry *provider.Registry, repo settings.Repository, keyStore dsig.X509KeyStore, log logrus.FieldLogger) *Hub {
	return &Hub{
		registry:  registry,
		settings:  repo,
		client:    &http.Client{Timeout: 30 * time.Second},
		keyStore:  keyStore,
		log:       log,
		spCache:   lru.NewLRU[string, *saml2.SAMLServiceProvider](handleCacheSize, nil, handleCacheTTL),
		oidcCache: lru.NewLRU[string, *OIDCClient](handleCacheSize, nil, handleCacheTTL),
	}
}

func (h *Hub) baseURI() string {
	return h.settings.GetString(settings.ServiceBaseURI)
}

// ServiceProvider returns the SAML service provider for the registry entry,
// building and caching it on first use.
func (h *Hub) ServiceProvider(ctx context.Context, p provider.Provider) (*saml2.SAMLServiceProvider, error) {
	if sp, ok := h.spCache.Get(p.ID()); ok {
		return sp, nil
	}
	sp, err := h.buildServiceProvider(ctx, p)
	if err != nil {
		return nil, err
	}
	h.spCache.Add(p.ID(), sp)
	h.log.WithField("provider", p.ID()).Debug("constructed SAML service provider")
	return sp, nil
}

// OpenIDClient returns the OIDC client for the registry entry, building and
// caching it on first use. Building runs issuer discovery.
func (h *Hub) OpenIDClient(ctx context.Context, p provider.Provider) (*OIDCClient, error) {
	if c, ok := h.oidcCache.Get(p.ID()); ok {
		return c, nil
	}
	c, err := h.buildOpenIDClient(ctx, p)
	if err != nil {
		return nil, err
	}
	h.oidcCache.Add(p.ID(), c)
	h.log.WithField("provider", p.ID()).Debug("constructed OIDC client")
	return c, nil
}

// Reset discards all cached handles. Called after provider configuration
// changes are applied.
func (h *Hub) Reset() {
	h.spCache.Purge()
	h.oidcCache.Purge()
}
