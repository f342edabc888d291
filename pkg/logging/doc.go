// Package logging provides subsystem-tagged structured logging on top of
// log/slog.
//
// Every log call names a subsystem (the package or component emitting it),
// which makes it possible to filter and correlate log lines across the
// transport, OAuth, registry, and workflow packages without each of them
// constructing their own slog.Logger.
//
//	logging.Init(logging.ParseLevel(os.Getenv("LOG_LEVEL")), os.Getenv("LOG_FORMAT"), nil)
//	logging.Info("Transport", "listening on %s", addr)
//	logging.Error("OAuthServer", err, "token exchange failed for client=%s", clientID)
//
// Audit records (token issuance, refresh, session binding decisions) use
// Audit, which never fails the operation it describes - logging errors here
// are swallowed by design, matching the framework's error-handling policy
// that audit logging is a best-effort side effect.
package logging
