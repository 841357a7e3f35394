// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings. Service-level settings (identity
// providers, credentials, timeouts) are managed by pkg/settings instead; this
// package covers only the process-level knobs that cannot change at runtime.
//
// # Configuration Structure
//
// Server settings:
//
//	AUTHBRIDGE_HOST="0.0.0.0"
//	AUTHBRIDGE_PORT="3000"
//	AUTHBRIDGE_READ_TIMEOUT="15s"
//	AUTHBRIDGE_WRITE_TIMEOUT="120s"
//	AUTHBRIDGE_SHUTDOWN_TIMEOUT="30s"
//	AUTHBRIDGE_CERT_FILE="/etc/authbridge/server.crt"
//	AUTHBRIDGE_KEY_FILE="/etc/authbridge/server.key"
//
// The write timeout bounds the login status long poll, so it must exceed the
// LOGIN_TIMEOUT setting.
//
// Settings persistence:
//
//	AUTHBRIDGE_SETTINGS_FILE="/etc/authbridge/settings.yaml"
//
// Observability settings:
//
//	AUTHBRIDGE_LOG_LEVEL="info"  # debug, info, warn, error
//	AUTHBRIDGE_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/settings: Runtime-editable service settings
//   - pkg/observability: Uses observability configuration
package config
