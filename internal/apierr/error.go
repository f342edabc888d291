package apierr

import "fmt"

// Kind is the error taxonomy from spec section 7. Each kind maps to exactly
// one HTTP status and one JSON-RPC rendering; handlers should construct
// errors via the New* helpers rather than setting Kind directly so that
// mapping stays centralized.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindNotFound       Kind = "not_found"
	KindExpired        Kind = "expired"
	KindRateLimited    Kind = "rate_limited"
	KindTimeout        Kind = "timeout"
	KindAPIError       Kind = "api_error"
	KindSystemError    Kind = "system_error"
)

// statusByKind is the kind -> HTTP status mapping spec section 7 prescribes.
var statusByKind = map[Kind]int{
	KindValidation:     400,
	KindAuthentication: 401,
	KindAuthorization:  403,
	KindNotFound:       404,
	KindExpired:        410,
	KindRateLimited:    429,
	KindTimeout:        504,
	KindAPIError:       502,
	KindSystemError:    500,
}

// Error is the structured error value every library boundary returns.
// Code and ActionTaken are the machine-readable hints spec section 7 asks
// for ("errorCode", "actionTaken") so a client can decide whether to refresh
// a token, re-authorize, or give up.
type Error struct {
	Kind        Kind
	Status      int
	Code        string
	Message     string
	Guidance    string
	Fields      map[string]string // validation: field path -> problem
	ActionTaken string            // e.g. "refresh_token", "reauthorize"
	RetryAfter  int               // seconds, for rate_limited

	// Challenge fields, set only for KindAuthentication/KindAuthorization,
	// rendered into a WWW-Authenticate header by the HTTP router.
	ChallengeRealm      string
	ChallengeScope      string
	ChallengeError      string
	ResourceMetadataURL string
	AuthorizationURL    string
	RegistrationURL     string

	cause error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// new builds an Error for kind, deriving its default Status from the
// taxonomy table.
func new(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Status: statusByKind[kind], Code: code, Message: message}
}

func Validation(field, message string) *Error {
	e := new(KindValidation, "invalid_request", message)
	e.Fields = map[string]string{field: message}
	return e
}

func Unauthorized(code, message string) *Error {
	return new(KindAuthentication, code, message)
}

func Forbidden(code, message string) *Error {
	return new(KindAuthorization, code, message)
}

func NotFound(message string) *Error {
	return new(KindNotFound, "not_found", message)
}

func Expired(message string) *Error {
	return new(KindExpired, "expired", message)
}

func RateLimited(retryAfterSeconds int) *Error {
	e := new(KindRateLimited, "rate_limited", "too many requests")
	e.RetryAfter = retryAfterSeconds
	return e
}

func Timeout(message string) *Error {
	return new(KindTimeout, "timeout", message)
}

func UpstreamAPI(cause error, message string) *Error {
	e := new(KindAPIError, "upstream_error", message)
	e.cause = cause
	return e
}

func System(cause error, message string) *Error {
	e := new(KindSystemError, "internal_error", message)
	e.cause = cause
	return e
}

// Wrap adapts a plain error into a KindSystemError apierr.Error unless it
// already is one, in which case it is returned unchanged. Library boundaries
// that call into code outside this repo's control (stdlib, third-party
// clients) use this so a caller can always type-assert *apierr.Error.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return System(err, err.Error())
}

func (e *Error) WithGuidance(guidance string) *Error {
	e.Guidance = guidance
	return e
}

func (e *Error) WithAction(action string) *Error {
	e.ActionTaken = action
	return e
}

func (e *Error) WithChallenge(realm, scope, errCode, resourceMetadataURL, authURL, registrationURL string) *Error {
	e.ChallengeRealm = realm
	e.ChallengeScope = scope
	e.ChallengeError = errCode
	e.ResourceMetadataURL = resourceMetadataURL
	e.AuthorizationURL = authURL
	e.RegistrationURL = registrationURL
	return e
}

// WWWAuthenticate renders the RFC 6750 challenge header value for
// authentication/authorization errors. Returns "" for kinds that carry no
// challenge.
func (e *Error) WWWAuthenticate() string {
	if e.Kind != KindAuthentication && e.Kind != KindAuthorization {
		return ""
	}
	s := `Bearer realm="` + e.ChallengeRealm + `"`
	if e.ChallengeScope != "" {
		s += fmt.Sprintf(`, scope="%s"`, e.ChallengeScope)
	}
	if e.ChallengeError != "" {
		s += fmt.Sprintf(`, error="%s"`, e.ChallengeError)
	}
	if e.ResourceMetadataURL != "" {
		s += fmt.Sprintf(`, resource_metadata="%s"`, e.ResourceMetadataURL)
	}
	if e.AuthorizationURL != "" {
		s += fmt.Sprintf(`, authorization_uri="%s"`, e.AuthorizationURL)
	}
	if e.RegistrationURL != "" {
		s += fmt.Sprintf(`, registration_uri="%s"`, e.RegistrationURL)
	}
	return s
}
