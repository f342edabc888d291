package oauthserver

// AuthorizationServerMetadata is the RFC 8414 discovery document served at
// /.well-known/oauth-authorization-server.
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
}

// ProtectedResourceMetadata is the RFC 9728 discovery document served at
// /.well-known/oauth-protected-resource, pointing MCP clients at the
// authorization server that protects this resource.
type ProtectedResourceMetadata struct {
	Resource             string   `json:"resource"`
	AuthorizationServers []string `json:"authorization_servers"`
	ScopesSupported      []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
}

// Metadata builds the authorization-server discovery document advertising
// this server's endpoints, mounted under baseURL by internal/httprouter.
func (s *Server) Metadata(baseURL string) AuthorizationServerMetadata {
	m := AuthorizationServerMetadata{
		Issuer:                            s.cfg.Issuer,
		AuthorizationEndpoint:             baseURL + "/oauth/authorize",
		TokenEndpoint:                     baseURL + "/oauth/token",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
		CodeChallengeMethodsSupported:     []string{"S256"},
		TokenEndpointAuthMethodsSupported: []string{"none", "client_secret_basic"},
	}
	if s.cfg.DynamicRegistration {
		m.RegistrationEndpoint = baseURL + "/oauth/register"
	}
	return m
}

// ProtectedResource builds the RFC 9728 document for this server acting as
// its own resource server.
func ProtectedResource(resourceURL, authServerURL string, scopes []string) ProtectedResourceMetadata {
	return ProtectedResourceMetadata{
		Resource:                resourceURL,
		AuthorizationServers:    []string{authServerURL},
		ScopesSupported:         scopes,
		BearerMethodsSupported:  []string{"header"},
	}
}
