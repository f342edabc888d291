// Package app bootstraps a full server instance: it loads configuration,
// wires every internal package together, and runs the result until its
// context is cancelled.
//
// Grounded on the teacher's internal/app (bootstrap.go's two-phase
// "load config, build services, then run" shape), narrowed from the
// teacher's TUI/CLI/orchestrator mode-selection down to the single
// long-running server process spec section 4 describes.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcpkit/mcpserver/internal/authmw"
	"github.com/mcpkit/mcpserver/internal/config"
	"github.com/mcpkit/mcpserver/internal/credential"
	"github.com/mcpkit/mcpserver/internal/eventstore"
	"github.com/mcpkit/mcpserver/internal/httprouter"
	"github.com/mcpkit/mcpserver/internal/kvstore"
	"github.com/mcpkit/mcpserver/internal/oauthconsumer"
	"github.com/mcpkit/mcpserver/internal/oauthserver"
	"github.com/mcpkit/mcpserver/internal/plugin"
	"github.com/mcpkit/mcpserver/internal/session"
	"github.com/mcpkit/mcpserver/internal/toolregistry"
	"github.com/mcpkit/mcpserver/internal/transport"
	"github.com/mcpkit/mcpserver/internal/workflow"
	"github.com/mcpkit/mcpserver/pkg/logging"
)

// Options carries the process-level flags that influence bootstrap but
// aren't part of the environment-driven config.Config (spec section 6
// deliberately has no file-based configuration, so these are the only
// values Run takes outside the environment).
type Options struct {
	Debug bool
}

// Run loads config.Config from the environment, wires every component it
// selects, starts the configured transport, and blocks until ctx is
// cancelled or a listening SIGINT/SIGTERM arrives, then shuts down with a
// bounded grace period.
func Run(ctx context.Context, opts Options) error {
	level := logging.LevelInfo
	if opts.Debug {
		level = logging.LevelDebug
	}
	logging.Init(level, "text", os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if !opts.Debug {
		level = logging.ParseLevel(cfg.Logging.Level)
	}
	logOut := os.Stderr
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logging.Init(level, cfg.Logging.Format, logOut)

	srv, err := build(cfg)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	defer srv.Close()

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.transport.Start(runCtx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	logging.Info("App", "server started, transport=%s", cfg.Transport.Kind)

	<-runCtx.Done()
	logging.Info("App", "shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.transport.Stop(stopCtx, 10*time.Second)
}

// server bundles the wired components that need an explicit teardown step
// beyond the transport itself.
type server struct {
	transport *transport.Manager
	kv        kvstore.Store
	plugins   *plugin.Manager
}

func (s *server) Close() {
	if s.plugins != nil {
		if err := s.plugins.Close(); err != nil {
			logging.Warn("App", "plugin manager close: %s", err)
		}
	}
	if s.kv != nil {
		if err := s.kv.Close(); err != nil {
			logging.Warn("App", "kvstore close: %s", err)
		}
	}
}

// build wires every internal package per SPEC_FULL.md's component
// breakdown: storage first (everything else either persists to or reads
// from it), then the MCP-facing pieces (registry, workflows, plugins),
// then the two transports, then auth and internal/httprouter over the top
// of the HTTP one.
func build(cfg config.Config) (*server, error) {
	kv, err := openStore(cfg.Storage, cfg.Session.EnablePersistence)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	registry := toolregistry.NewRegistry()
	workflows := workflow.NewManager(kv)
	executor := workflow.NewExecutor(registry)

	pluginMgr, err := loadPlugins(cfg.Plugins, registry)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("load plugins: %w", err)
	}

	sessions := session.NewManager(cfg.Session.Timeout,
		session.WithMaxSessions(cfg.Session.MaxConcurrent),
		withPersistenceIfEnabled(kv, cfg.Session.EnablePersistence),
	)

	events, err := eventstore.New(kv)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("build event store: %w", err)
	}

	dispatcher := transport.NewDispatcher(registry, workflows, executor)
	httpHandler := transport.NewHTTPHandler(sessions, events, dispatcher, cfg.Transport.KeepaliveInterval, cfg.Session.MaxRequestBytes)
	stdioTransport := transport.NewStdioTransport(dispatcher)

	mgr := transport.NewManager(cfg.Transport, httpHandler, stdioTransport, events)

	if cfg.Transport.Kind == config.TransportHTTP {
		router, err := buildRouter(cfg, kv, httpHandler)
		if err != nil {
			kv.Close()
			return nil, fmt.Errorf("build HTTP router: %w", err)
		}
		mgr = mgr.WithRootHandler(router.Handler())
	}

	return &server{transport: mgr, kv: kv, plugins: pluginMgr}, nil
}

// buildRouter wires the OAuth 2.1 authorization server, the optional
// upstream consumer, and the auth middleware onto an internal/httprouter.Router.
func buildRouter(cfg config.Config, kv kvstore.Store, mcpHandler http.Handler) (*httprouter.Router, error) {
	var encKey []byte
	if k := os.Getenv("MCP_ENCRYPTION_KEY"); k != "" {
		encKey = []byte(k)
	}

	storage := oauthserver.NewStorage(kv)
	signingKey := []byte(os.Getenv("MCP_TOKEN_SIGNING_KEY"))
	if len(signingKey) == 0 {
		signingKey = []byte("insecure-development-signing-key-change-me")
		logging.Warn("App", "MCP_TOKEN_SIGNING_KEY not set, using an insecure development key")
	}
	oauthSrv, err := oauthserver.New(storage, cfg.OAuthServer, signingKey)
	if err != nil {
		return nil, fmt.Errorf("build oauth server: %w", err)
	}

	credStore, err := credential.NewStore(kv, encKey)
	if err != nil {
		return nil, fmt.Errorf("build credential store: %w", err)
	}
	consumer := oauthconsumer.New(cfg.OAuthConsumer, kv, credStore)

	baseURL := fmt.Sprintf("http://%s:%d", cfg.Transport.HTTPHost, cfg.Transport.HTTPPort)
	if v := os.Getenv("MCP_PUBLIC_BASE_URL"); v != "" {
		baseURL = v
	}

	mw := authmw.New(oauthSrv, consumer, cfg.Auth, authmw.Challenge{
		Realm:               baseURL,
		ResourceMetadataURL: baseURL + "/.well-known/oauth-protected-resource",
		AuthorizationURL:    baseURL + "/oauth/authorize",
		RegistrationURL:     baseURL + "/oauth/register",
	})

	return httprouter.NewRouter(httprouter.Options{
		Server:              oauthSrv,
		Consumer:            consumer,
		Auth:                mw,
		KV:                  kv,
		MCPHandler:          mcpHandler,
		Transport:           cfg.Transport,
		Auth2:               cfg.Auth,
		BaseURL:             baseURL,
		DynamicRegistration: cfg.OAuthServer.DynamicRegistration,
		ScopesSupported:     []string{"tools:read", "tools:write", "workflows:execute"},
	}), nil
}

func openStore(cfg config.StorageConfig, persist bool) (kvstore.Store, error) {
	if !persist {
		return kvstore.NewMemory(time.Minute), nil
	}
	return kvstore.NewSQLite(cfg.KVPath)
}

func withPersistenceIfEnabled(kv kvstore.Store, enabled bool) session.Option {
	if !enabled {
		return func(*session.Manager) {}
	}
	return session.WithPersistence(kv)
}

func loadPlugins(cfg config.PluginsConfig, registry *toolregistry.Registry) (*plugin.Manager, error) {
	if !cfg.Autoload || len(cfg.DiscoveryPaths) == 0 {
		return plugin.NewManager("", registry), nil
	}

	mgr := plugin.NewManager(cfg.DiscoveryPaths[0], registry)
	if err := mgr.Load(context.Background()); err != nil {
		return nil, err
	}
	if cfg.WatchChanges {
		go func() {
			if err := mgr.Watch(context.Background()); err != nil {
				logging.Warn("App", "plugin watch stopped: %s", err)
			}
		}()
	}
	return mgr, nil
}
