// Package config provides environment-variable-driven configuration for the
// server framework.
//
// Load reads Defaults, overlays recognized environment variables (see the
// Environment configuration table in the project documentation), and runs
// Validate before returning. There is no config file: every setting is an
// environment variable, and secrets may instead be supplied via a sibling
// <VAR>_FILE path (e.g. OAUTH_PROVIDER_CLIENT_SECRET_FILE) so they need not
// sit in plaintext environment variables in production deployments.
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
