package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/authbridge/authbridge/pkg/api"
	"github.com/authbridge/authbridge/pkg/clientcert"
	"github.com/authbridge/authbridge/pkg/config"
	"github.com/authbridge/authbridge/pkg/login"
	"github.com/authbridge/authbridge/pkg/observability"
	"github.com/authbridge/authbridge/pkg/provider"
	"github.com/authbridge/authbridge/pkg/settings"
	"github.com/authbridge/authbridge/pkg/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("service exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	repo, file, err := buildSettings(cfg)
	if err != nil {
		return err
	}

	registry := provider.NewRegistry(repo, logger)
	if providers, err := registry.Providers(); err != nil {
		logger.WithError(err).Warn("identity provider configuration is invalid")
	} else {
		logger.WithField("count", len(providers)).Info("identity providers configured")
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	ttl := settings.Seconds(repo.Get(settings.CacheTTL), 5*time.Minute)
	var (
		requests    store.Store[*store.Request]
		users       store.Store[*store.User]
		redisClient *redis.Client
		backend     string
	)
	if repo.GetString(settings.RedisURL) != "" {
		client, err := store.NewRedisClient(repo)
		if err != nil {
			return err
		}
		defer client.Close()
		timeout := settings.Seconds(repo.Get(settings.RedisTimeout), 5*time.Second)
		requests = store.NewRedisStore[*store.Request](client, "req", ttl, timeout, false)
		users = store.NewRedisStore[*store.User](client, "user", ttl, timeout, true)
		redisClient = client
		backend = "redis"
	} else {
		requestStore := store.NewMemoryStore[*store.Request](ttl)
		userStore := store.NewMemoryStore[*store.User](ttl)
		defer requestStore.Close()
		defer userStore.Close()
		requests, users = requestStore, userStore
		backend = "memory"
	}
	logger.WithField("backend", backend).Info("entity store ready")
	requests = store.Instrument[*store.Request](requests, metrics, backend, "request")
	users = store.Instrument[*store.User](users, metrics, backend, "user")

	protoLog := protocolLogger(cfg.Observability.LogLevel)
	svc := login.NewService(requests, users, protoLog)

	var keyStore dsig.X509KeyStore
	if cfg.TLSEnabled() {
		serverCert, err := tls.LoadX509KeyPair(cfg.Server.CertFile, cfg.Server.KeyFile)
		if err != nil {
			return err
		}
		// the server certificate doubles as the SAML request signing key
		signingStore := dsig.TLSCertKeyStore(serverCert)
		keyStore = &signingStore
	}
	hub := login.NewHub(registry, repo, keyStore, protoLog)
	health := observability.NewHealthChecker(redisClient)

	server := api.NewServer(api.Options{
		Settings: repo,
		File:     file,
		Registry: registry,
		Service:  svc,
		Hub:      hub,
		Certs:    clientcert.NewEngine(repo, logger),
		Metrics:  metrics,
		Health:   health,
		Logger:   logger,
	})

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if cfg.TLSEnabled() {
		pool, err := clientcert.LoadAuthorityCerts(repo)
		if err != nil {
			return err
		}
		httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ClientCAs:  pool,
			// optional here so login endpoints stay reachable; the
			// authorization engine enforces presence per route
			ClientAuth: tls.VerifyClientCertIfGiven,
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.WithFields(map[string]interface{}{
			"addr": httpServer.Addr,
			"tls":  cfg.TLSEnabled(),
		}).Info("starting server")
		var err error
		if cfg.TLSEnabled() {
			err = httpServer.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	if file != nil {
		group.Go(func() error {
			err := file.Watch(ctx, func() {
				hub.Reset()
				logger.WithField("path", file.Path()).Info("settings file reloaded")
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// knownSettingKeys lists every setting read from the process environment at
// startup. Anything else in the environment is ignored.
var knownSettingKeys = []string{
	settings.AuthProviders,
	settings.CACertFile,
	settings.ClientCertFingerprint,
	settings.ClientCertCommonName,
	settings.AssumeClientAuthorized,
	settings.AdminAPIToken,
	settings.RedisURL,
	settings.RedisPassword,
	settings.RedisTimeout,
	settings.LoginTimeout,
	settings.CacheTTL,
	settings.ServiceBaseURI,
}

// buildSettings assembles the layered settings repository: a configured layer
// seeded from the environment, optionally persisted to a file, over the
// factory defaults. Values already present in the settings file win over the
// environment since the file records deliberate administrative edits.
func buildSettings(cfg *config.Config) (*settings.Layered, *settings.FileRepository, error) {
	var configured settings.Repository
	var file *settings.FileRepository
	if cfg.SettingsFile != "" {
		f, err := settings.NewFileRepository(cfg.SettingsFile)
		if err != nil {
			return nil, nil, err
		}
		configured, file = f, f
	} else {
		configured = settings.NewMapRepository()
	}

	keys := make([]string, 0, len(knownSettingKeys)+len(provider.OIDCNameMapping)+len(provider.SAMLNameMapping))
	keys = append(keys, knownSettingKeys...)
	for key := range provider.OIDCNameMapping {
		keys = append(keys, key)
	}
	for key := range provider.SAMLNameMapping {
		keys = append(keys, key)
	}
	for _, key := range keys {
		if configured.Has(key) {
			continue
		}
		if value, ok := os.LookupEnv(key); ok {
			configured.Set(key, value)
		}
	}
	return settings.NewLayered(configured, settings.Defaults()), file, nil
}

func protocolLogger(level observability.LogLevel) *logrus.Logger {
	l := logrus.New()
	switch level {
	case observability.DebugLevel:
		l.SetLevel(logrus.DebugLevel)
	case observability.WarnLevel:
		l.SetLevel(logrus.WarnLevel)
	case observability.ErrorLevel:
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}
