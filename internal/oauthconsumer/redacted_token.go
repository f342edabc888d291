package oauthconsumer

// RedactedToken wraps a sensitive token string so it never renders in a log
// line, error string, or %v/%#v debug dump by accident. Adapted verbatim
// from the teacher's internal/oauth/redacted_token.go.
type RedactedToken struct {
	value string
}

// NewRedactedToken wraps value.
func NewRedactedToken(value string) RedactedToken {
	return RedactedToken{value: value}
}

// Value returns the actual token value. Only call this where the token is
// about to be sent in an authenticated request; never log the result.
func (t RedactedToken) Value() string {
	return t.value
}

// String implements fmt.Stringer.
func (t RedactedToken) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer.
func (t RedactedToken) GoString() string {
	return "oauthconsumer.RedactedToken{[REDACTED]}"
}

// IsEmpty reports whether the wrapped value is empty.
func (t RedactedToken) IsEmpty() bool {
	return t.value == ""
}

// MarshalText implements encoding.TextMarshaler.
func (t RedactedToken) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// MarshalJSON implements json.Marshaler.
func (t RedactedToken) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}
