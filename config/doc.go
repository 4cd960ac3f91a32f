// Package config provides configuration loading and validation for Pagehaven.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (PAGEHAVEN_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with PAGEHAVEN_ prefix:
//   - server.port → PAGEHAVEN_SERVER_PORT
//   - server.base_domain → PAGEHAVEN_SERVER_BASE_DOMAIN
//   - session.secret → PAGEHAVEN_SESSION_SECRET
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port, base_domain, web_base_url and metrics_port
//   - Gate: password_cookie_prefix shared with the web app
//   - Session: cookie_name, secret and issuer of the session token
//   - Service: cleanup_timeout for background operations
//   - Database: type, DSN, and table names
//   - Storage: backend (filesystem, s3, stowry) and its settings
//   - Cache: optional Redis site cache
//   - CORS: cross-origin resource sharing settings
//   - Log: level and env (dev or prod)
//
// # Validation
//
// Configuration is validated using struct tags, plus checks that span
// sections:
//   - Port must be 1-65535
//   - base_domain must be a hostname and web_base_url a URL
//   - The selected storage backend must be fully configured
//   - Table names must be valid and distinct
//   - Log level must be debug, info, warn, or error
package config
