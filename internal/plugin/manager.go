package plugin

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mcpkit/mcpserver/internal/toolregistry"
	"github.com/mcpkit/mcpserver/pkg/logging"
)

// reloadDebounce coalesces bursts of filesystem events into a single
// reload, matching the debounce interval the teacher's
// FilesystemDetector defaults to (internal/reconciler/filesystem_detector.go).
const reloadDebounce = 500 * time.Millisecond

// loadedPlugin pairs a parsed Manifest with its live subprocess client.
type loadedPlugin struct {
	manifest *Manifest
	client   *client
}

// Manager discovers plugin manifests under a directory, spawns each
// plugin's subprocess, and proxies its declared tools/workflows into a
// toolregistry.Registry as native-mode tools - a call simply forwards the
// name and raw arguments to the subprocess and relays its result back.
//
// Grounded on the teacher's internal/mcpserver.Manager (spawn-on-load,
// tear-down-on-remove lifecycle) narrowed to this package's simpler
// load-everything-from-a-directory model, since spec section 9 describes
// a static descriptor-file loader rather than the teacher's dynamic
// CRD-backed server registry.
type Manager struct {
	dir      string
	registry *toolregistry.Registry

	mu      sync.Mutex
	loaded  map[string]*loadedPlugin
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewManager builds a Manager that will load manifests from dir into
// registry.
func NewManager(dir string, registry *toolregistry.Registry) *Manager {
	return &Manager{
		dir:      dir,
		registry: registry,
		loaded:   make(map[string]*loadedPlugin),
	}
}

// Load reads every manifest under the configured directory, spawns its
// subprocess, and registers its declared tools/workflows. A plugin that
// fails to start is logged and skipped so one bad plugin cannot prevent
// the others from loading.
func (m *Manager) Load(ctx context.Context) error {
	manifests, err := LoadManifests(m.dir)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, manifest := range manifests {
		if err := m.loadOneLocked(ctx, manifest); err != nil {
			logging.Error("PluginManager", err, "failed to load plugin %s", manifest.Name)
		}
	}
	return nil
}

func (m *Manager) loadOneLocked(ctx context.Context, manifest *Manifest) error {
	if existing, ok := m.loaded[manifest.Name]; ok {
		_ = existing.client.close()
		delete(m.loaded, manifest.Name)
	}

	c := newClient(manifest.Name)
	if err := c.start(ctx, manifest.Command, manifest.Args, manifest.Env); err != nil {
		return err
	}

	remoteTools, err := c.listTools(ctx)
	if err != nil {
		_ = c.close()
		return fmt.Errorf("plugin %s: %w", manifest.Name, err)
	}

	wanted := make(map[string]bool, len(manifest.Tools)+len(manifest.Workflows))
	for _, n := range manifest.Tools {
		wanted[n] = true
	}
	for _, n := range manifest.Workflows {
		wanted[n] = true
	}

	registered := 0
	for _, tool := range remoteTools {
		if len(wanted) > 0 && !wanted[tool.Name] {
			continue
		}
		if err := m.registerProxy(c, tool); err != nil {
			logging.Error("PluginManager", err, "failed to register proxied tool %s from plugin %s", tool.Name, manifest.Name)
			continue
		}
		registered++
	}

	m.loaded[manifest.Name] = &loadedPlugin{manifest: manifest, client: c}
	logging.Info("PluginManager", "plugin %s: proxied %d tools", manifest.Name, registered)
	return nil
}

// registerProxy registers tool as a native-mode toolregistry.Definition
// whose handler forwards the call to the plugin subprocess over its
// existing stdio connection.
func (m *Manager) registerProxy(c *client, tool mcp.Tool) error {
	return m.registry.RegisterTool(toolregistry.Definition{
		Name:        tool.Name,
		Description: tool.Description,
		Mode:        toolregistry.ModeNative,
		Handler: func(ctx context.Context, args map[string]interface{}, _ toolregistry.Extra) (*mcp.CallToolResult, error) {
			return c.callTool(ctx, tool.Name, args)
		},
	})
}

// Watch starts an fsnotify watch on the plugin directory and reloads all
// manifests (debounced) whenever a file changes, for PLUGINS_WATCH_CHANGES.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("plugin: create watcher: %w", err)
	}
	if err := watcher.Add(m.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("plugin: watch %s: %w", m.dir, err)
	}

	m.mu.Lock()
	m.watcher = watcher
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	go m.watchLoop(ctx, watcher, stopCh)
	logging.Info("PluginManager", "watching %s for plugin manifest changes", m.dir)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, stopCh chan struct{}) {
	var timer *time.Timer
	reload := func() {
		if err := m.Load(ctx); err != nil {
			logging.Error("PluginManager", err, "reload after manifest change failed")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".yaml" && filepath.Ext(event.Name) != ".yml" {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("PluginManager", err, "plugin manifest watcher error")
		}
	}
}

// Close stops the filesystem watcher (if running) and every plugin
// subprocess.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
	if m.watcher != nil {
		_ = m.watcher.Close()
		m.watcher = nil
	}

	var firstErr error
	for name, lp := range m.loaded {
		if err := lp.client.close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("plugin %s: %w", name, err)
		}
	}
	m.loaded = make(map[string]*loadedPlugin)
	return firstErr
}

// Loaded returns the names of every currently loaded plugin.
func (m *Manager) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.loaded))
	for name := range m.loaded {
		names = append(names, name)
	}
	return names
}
