// Package apierr defines the single structured error type every library
// boundary in this repo returns instead of an ad hoc error string - the kind
// taxonomy from spec section 7, plus the HTTP status and OAuth challenge
// fields the HTTP router needs to render it. The STDIO transport renders the
// same value as an MCP JSON-RPC error object instead.
//
// The teacher has no single error type like this (it returns plain
// fmt.Errorf/errors.New from its aggregator and workflow packages, wrapped
// with %w where a caller needs to errors.Is/As); this package is new,
// grounded on the teacher's habit of exporting sentinel errors
// (internal/oauthserver's ErrNotFound/ErrExpired/ErrAlreadyConsumed,
// internal/oauthconsumer's ErrStateNotFound) generalized into one carrier
// type so the router has exactly one thing to switch on.
package apierr
