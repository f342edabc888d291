package oauthconsumer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mcpkit/mcpserver/pkg/logging"
)

// metadataCacheTTL bounds how long a fetched authorization-server metadata
// document is trusted before being re-fetched, matching the teacher's
// internal/oauth/client.go metadataCacheTTL.
const metadataCacheTTL = 30 * time.Minute

// ProviderMetadata is the subset of RFC 8414 authorization server metadata
// this consumer needs to drive a flow.
type ProviderMetadata struct {
	Issuer                string   `json:"issuer"`
	AuthorizationEndpoint string   `json:"authorization_endpoint"`
	TokenEndpoint         string   `json:"token_endpoint"`
	ScopesSupported       []string `json:"scopes_supported,omitempty"`
}

type metadataCacheEntry struct {
	metadata  *ProviderMetadata
	fetchedAt time.Time
}

// metadataResolver fetches and caches upstream provider metadata, either
// from a static configured endpoint or RFC 8414/OIDC discovery. Adapted
// from the teacher's Client.fetchMetadata/doFetchMetadata, which
// deduplicates concurrent fetches for the same issuer with singleflight.
type metadataResolver struct {
	httpClient *http.Client

	mu    sync.RWMutex
	cache map[string]*metadataCacheEntry
	group singleflight.Group
}

func newMetadataResolver(httpClient *http.Client) *metadataResolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &metadataResolver{httpClient: httpClient, cache: make(map[string]*metadataCacheEntry)}
}

// resolve returns metadata for issuer, using authURL/tokenURL directly when
// both are statically configured (the common case for a known provider),
// falling back to well-known discovery otherwise.
func (r *metadataResolver) resolve(ctx context.Context, issuer, authURL, tokenURL string) (*ProviderMetadata, error) {
	if authURL != "" && tokenURL != "" {
		return &ProviderMetadata{Issuer: issuer, AuthorizationEndpoint: authURL, TokenEndpoint: tokenURL}, nil
	}
	return r.fetch(ctx, issuer)
}

func (r *metadataResolver) fetch(ctx context.Context, issuer string) (*ProviderMetadata, error) {
	r.mu.RLock()
	if entry, ok := r.cache[issuer]; ok && time.Since(entry.fetchedAt) < metadataCacheTTL {
		r.mu.RUnlock()
		return entry.metadata, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.group.Do(issuer, func() (interface{}, error) {
		r.mu.RLock()
		if entry, ok := r.cache[issuer]; ok && time.Since(entry.fetchedAt) < metadataCacheTTL {
			r.mu.RUnlock()
			return entry.metadata, nil
		}
		r.mu.RUnlock()
		return r.doFetch(ctx, issuer)
	})
	if err != nil {
		return nil, err
	}
	return result.(*ProviderMetadata), nil
}

func (r *metadataResolver) doFetch(ctx context.Context, issuer string) (*ProviderMetadata, error) {
	candidates := []string{
		strings.TrimSuffix(issuer, "/") + "/.well-known/oauth-authorization-server",
		strings.TrimSuffix(issuer, "/") + "/.well-known/openid-configuration",
	}

	var lastErr error
	for _, wellKnownURL := range candidates {
		md, err := r.fetchOne(ctx, wellKnownURL)
		if err != nil {
			lastErr = err
			continue
		}

		r.mu.Lock()
		r.cache[issuer] = &metadataCacheEntry{metadata: md, fetchedAt: time.Now()}
		r.mu.Unlock()

		logging.Debug("OAuthConsumer", "fetched provider metadata for issuer=%s", issuer)
		return md, nil
	}
	return nil, fmt.Errorf("failed to discover provider metadata for issuer=%s: %w", issuer, lastErr)
}

func (r *metadataResolver) fetchOne(ctx context.Context, wellKnownURL string) (*ProviderMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnownURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery endpoint %s returned status %d", wellKnownURL, resp.StatusCode)
	}

	var md ProviderMetadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return nil, fmt.Errorf("parse provider metadata: %w", err)
	}
	return &md, nil
}
