package oauthconsumer

import (
	"regexp"
	"strings"
)

// WWWAuthenticateParams holds the parsed parameters of a WWW-Authenticate
// response header, including the MCP-specific resource_metadata parameter
// (RFC 9728) that points back at this server's own protected-resource
// metadata document.
type WWWAuthenticateParams struct {
	Scheme              string
	Realm               string
	Scope               string
	Error               string
	ErrorDescription    string
	ResourceMetadataURL string
}

var wwwAuthParamPattern = regexp.MustCompile(`(\w+)="([^"]*)"`)

// ParseWWWAuthenticate parses a WWW-Authenticate header value, adapted
// from the teacher's internal/oauth/www_authenticate.go.
func ParseWWWAuthenticate(header string) *WWWAuthenticateParams {
	if header == "" {
		return nil
	}

	parts := strings.SplitN(header, " ", 2)
	params := &WWWAuthenticateParams{Scheme: strings.TrimSpace(parts[0])}
	if len(parts) == 1 {
		return params
	}

	for _, match := range wwwAuthParamPattern.FindAllStringSubmatch(parts[1], -1) {
		if len(match) != 3 {
			continue
		}
		switch strings.ToLower(match[1]) {
		case "realm":
			params.Realm = match[2]
		case "scope":
			params.Scope = match[2]
		case "error":
			params.Error = match[2]
		case "error_description":
			params.ErrorDescription = match[2]
		case "resource_metadata":
			params.ResourceMetadataURL = match[2]
		}
	}
	return params
}

// IsOAuthChallenge reports whether the parameters describe a Bearer
// authentication challenge rather than some other auth scheme.
func (p *WWWAuthenticateParams) IsOAuthChallenge() bool {
	if p == nil {
		return false
	}
	if !strings.EqualFold(p.Scheme, "Bearer") {
		return false
	}
	return p.Realm != "" || p.ResourceMetadataURL != ""
}
