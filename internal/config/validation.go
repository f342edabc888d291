package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors.
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add appends a new validation error.
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{Field: field, Value: val, Message: message})
}

// Validate rejects configuration combinations that are individually valid
// but jointly impossible for the framework to honor.
func Validate(cfg Config) ValidationErrors {
	var errs ValidationErrors

	switch cfg.Transport.Kind {
	case TransportStdio, TransportHTTP:
	default:
		errs.Add("transport.kind", fmt.Sprintf("must be %q or %q", TransportStdio, TransportHTTP), cfg.Transport.Kind)
	}

	if cfg.Transport.Kind == TransportHTTP && cfg.Transport.HTTPPort <= 0 {
		errs.Add("transport.httpPort", "must be a positive port number when transport is http", cfg.Transport.HTTPPort)
	}

	if cfg.Session.MaxConcurrent <= 0 {
		errs.Add("session.maxConcurrent", "must be greater than zero", cfg.Session.MaxConcurrent)
	}
	if cfg.Session.Timeout <= 0 {
		errs.Add("session.timeout", "must be greater than zero", cfg.Session.Timeout)
	}
	if cfg.Session.MaxRequestBytes <= 0 {
		errs.Add("session.maxRequestBytes", "must be greater than zero", cfg.Session.MaxRequestBytes)
	}

	// PKCE is the only defense a public client (one that cannot hold a
	// client secret) has against authorization code interception; dynamic
	// registration routinely creates public clients, so disabling PKCE while
	// allowing dynamic registration would silently strip that defense.
	if cfg.OAuthServer.DynamicRegistration && !cfg.OAuthServer.PKCERequired {
		errs.Add("oauthServer.pkceRequired", "PKCE must stay required when dynamic client registration is enabled")
	}

	if cfg.Auth.StdioEnabled && cfg.Auth.StdioAllowOAuth && !cfg.Auth.SessionBindingEnabled {
		errs.Add("auth.sessionBindingEnabled", "must be enabled when stdio transport allows OAuth-bound sessions")
	}

	if cfg.Auth.Enabled && !cfg.Auth.HTTPEnabled && !cfg.Auth.StdioEnabled {
		errs.Add("auth", "enabled but neither http nor stdio auth is enabled - no transport would enforce it")
	}

	if cfg.OAuthConsumer.Provider != "" {
		if cfg.OAuthConsumer.ClientID == "" {
			errs.Add("oauthConsumer.clientId", "required when an upstream provider is configured", cfg.OAuthConsumer.Provider)
		}
		if cfg.OAuthConsumer.TokenURL == "" {
			errs.Add("oauthConsumer.tokenUrl", "required when an upstream provider is configured", cfg.OAuthConsumer.Provider)
		}
	}

	if cfg.Audit.Enabled && cfg.Audit.RetentionDays <= 0 {
		errs.Add("audit.retentionDays", "must be greater than zero when auditing is enabled", cfg.Audit.RetentionDays)
	}

	return errs
}

// ValidateOneOf checks if a value is in a list of allowed values.
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}
