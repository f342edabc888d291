package app

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpkit/mcpserver/internal/config"
)

func freeTestPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestBuild_StdioWiresWithoutHTTPRouter(t *testing.T) {
	cfg := config.Defaults()
	cfg.Transport.Kind = config.TransportStdio
	cfg.Session.EnablePersistence = false

	srv, err := build(cfg)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	assert.NotNil(t, srv.transport)
	assert.NotNil(t, srv.kv)
}

func TestBuild_HTTPWiresRouterAndStarts(t *testing.T) {
	cfg := config.Defaults()
	cfg.Transport.Kind = config.TransportHTTP
	cfg.Transport.HTTPHost = "127.0.0.1"
	cfg.Transport.HTTPPort = freeTestPort(t)
	cfg.Session.EnablePersistence = false

	srv, err := build(cfg)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, srv.transport.Start(ctx))
	t.Cleanup(func() { _ = srv.transport.Stop(context.Background(), 0) })
}

func TestBuildRouter_AdvertisesBaseURLMetadata(t *testing.T) {
	cfg := config.Defaults()
	cfg.Transport.Kind = config.TransportHTTP
	cfg.Transport.HTTPHost = "127.0.0.1"
	cfg.Transport.HTTPPort = freeTestPort(t)

	srv, err := build(cfg)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	router, err := buildRouter(cfg, srv.kv, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/.well-known/oauth-authorization-server", nil)
	router.Handler().ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
}
