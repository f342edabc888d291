package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	"golang.org/x/sync/errgroup"

	"github.com/mcpkit/mcpserver/internal/config"
	"github.com/mcpkit/mcpserver/internal/eventstore"
	"github.com/mcpkit/mcpserver/pkg/logging"
)

// Manager is the Transport Manager of spec section 4.1/4.7/4.8: it starts
// whichever of HTTP or STDIO the configuration selects and coordinates
// their shutdown.
//
// Grounded on the teacher's AggregatorServer.Start/Stop
// (internal/aggregator/server.go): systemd socket activation via
// github.com/coreos/go-systemd/v22/activation.ListenersWithNames() ahead of
// a plain net.Listen, a cancellable context, and a shutdown path with a
// bounded timeout. The teacher coordinates its background goroutines with a
// bare sync.WaitGroup; this package instead uses
// golang.org/x/sync/errgroup, which SPEC_FULL.md's Transport Manager
// section calls for and which the teacher's go.mod already carries as an
// unused dependency.
type Manager struct {
	cfg    config.TransportConfig
	http   *HTTPHandler
	stdio  *StdioTransport
	events *eventstore.Store

	// rootHandler, when set, serves the entire HTTP surface (internal/
	// httprouter's OAuth/discovery/rate-limited mux, which itself mounts
	// http as "/mcp"). When nil, Manager falls back to serving http alone
	// on "/mcp" - a minimal deployment with no OAuth surface.
	rootHandler http.Handler

	mu          sync.Mutex
	cancel      context.CancelFunc
	group       *errgroup.Group
	httpServers []*http.Server
	cleanupDone chan struct{}
}

// NewManager builds a Manager. stdio may be nil when cfg.Kind is not
// TransportStdio; http may be nil when cfg.Kind is not TransportHTTP.
func NewManager(cfg config.TransportConfig, httpHandler *HTTPHandler, stdio *StdioTransport, events *eventstore.Store) *Manager {
	return &Manager{cfg: cfg, http: httpHandler, stdio: stdio, events: events}
}

// WithRootHandler installs h (typically internal/httprouter.Router.Handler())
// as the full HTTP surface, superseding the bare "/mcp"-only mux startHTTP
// otherwise builds.
func (m *Manager) WithRootHandler(h http.Handler) *Manager {
	m.rootHandler = h
	return m
}

// Start launches the configured transport(s) and the event-store cleanup
// ticker as background goroutines, then returns. Call Stop to shut down.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return fmt.Errorf("transport: already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	m.cancel = cancel
	m.group = group
	m.cleanupDone = make(chan struct{})
	m.mu.Unlock()

	switch m.cfg.Kind {
	case config.TransportHTTP:
		if err := m.startHTTP(groupCtx, group); err != nil {
			cancel()
			return err
		}
	case config.TransportStdio:
		if m.stdio == nil {
			cancel()
			return fmt.Errorf("transport: stdio selected but no StdioTransport configured")
		}
		group.Go(func() error {
			err := m.stdio.Run(groupCtx, os.Stdin, os.Stdout)
			if err != nil && groupCtx.Err() == nil {
				logging.Error("Transport", err, "stdio transport exited")
			}
			return nil
		})
	default:
		cancel()
		return fmt.Errorf("transport: unknown transport kind %q", m.cfg.Kind)
	}

	go m.cleanupLoop(runCtx)

	return nil
}

// startHTTP binds the configured address (or adopts systemd-provided
// listeners) and serves the root handler, or m.http alone on "/mcp" when
// no root handler is installed.
func (m *Manager) startHTTP(ctx context.Context, group *errgroup.Group) error {
	var mux http.Handler
	if m.rootHandler != nil {
		mux = m.rootHandler
	} else {
		plain := http.NewServeMux()
		plain.Handle("/mcp", m.http)
		mux = plain
	}

	listeners, err := systemdListeners()
	if err != nil {
		logging.Warn("Transport", "failed to query systemd listeners: %s", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(listeners) > 0 {
		logging.Info("Transport", "using %d systemd-activated listener(s)", len(listeners))
		for i, l := range listeners {
			srv := &http.Server{Handler: mux}
			m.httpServers = append(m.httpServers, srv)
			listener := l
			index := i
			group.Go(func() error {
				if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
					logging.Error("Transport", err, "listener %d: HTTP server error", index)
					return err
				}
				return nil
			})
		}
		return nil
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.HTTPHost, m.cfg.HTTPPort)
	srv := &http.Server{Addr: addr, Handler: mux}
	m.httpServers = append(m.httpServers, srv)
	group.Go(func() error {
		logging.Info("Transport", "HTTP transport listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Transport", err, "HTTP server error")
			return err
		}
		return nil
	})
	return nil
}

// systemdListeners collects every listener provided by systemd socket
// activation, regardless of name, mirroring the teacher's flattening of
// activation.ListenersWithNames() in internal/aggregator/server.go.
func systemdListeners() ([]net.Listener, error) {
	byName, err := activation.ListenersWithNames()
	if err != nil {
		return nil, err
	}
	var out []net.Listener
	for _, ls := range byName {
		out = append(out, ls...)
	}
	return out, nil
}

// cleanupLoop runs CleanupOldEvents against every known stream on a fixed
// interval, per spec section 5's "global ticker runs the event-store
// cleanup" concurrency invariant.
func (m *Manager) cleanupLoop(ctx context.Context) {
	defer close(m.cleanupDone)

	interval := m.cfg.EventCleanupInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	keepLast := m.cfg.EventKeepLast
	if keepLast <= 0 {
		keepLast = 1000
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			streams, err := m.events.ListStreams(ctx)
			if err != nil {
				logging.Warn("Transport", "event cleanup: failed to list streams: %s", err)
				continue
			}
			for _, s := range streams {
				if err := m.events.CleanupOldEvents(ctx, s, keepLast); err != nil {
					logging.Warn("Transport", "event cleanup: stream=%s: %s", s, err)
				}
			}
		}
	}
}

// Stop gracefully shuts down every running transport server within
// timeout, then cancels the remaining background goroutines and waits for
// them to exit.
func (m *Manager) Stop(ctx context.Context, timeout time.Duration) error {
	m.mu.Lock()
	cancel := m.cancel
	group := m.group
	servers := m.httpServers
	cleanupDone := m.cleanupDone
	m.mu.Unlock()

	if cancel == nil {
		return fmt.Errorf("transport: not started")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, timeout)
	defer shutdownCancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Transport", "error shutting down HTTP server: %s", err)
		}
	}

	cancel()

	if cleanupDone != nil {
		<-cleanupDone
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("transport: shutdown: %w", err)
	}
	return nil
}
