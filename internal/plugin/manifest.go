package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mcpkit/mcpserver/pkg/logging"
)

// Manifest is the descriptor-file shape a plugin directory entry must
// satisfy: the subprocess command to launch over stdio, and the tool and
// workflow names that subprocess is expected to expose. Tools and
// Workflows are both proxied identically (a Manager never distinguishes
// them at call time) - the split is purely documentation for whoever reads
// the manifest.
type Manifest struct {
	Name        string            `yaml:"name"`
	Version     string            `yaml:"version"`
	Description string            `yaml:"description"`
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args"`
	Env         map[string]string `yaml:"env"`
	Tools       []string          `yaml:"tools"`
	Workflows   []string          `yaml:"workflows"`
}

// LoadManifests reads every .yaml/.yml file directly under dir and parses
// it as a Manifest. A file that fails to parse is logged and skipped
// rather than aborting the whole load, matching the teacher's
// LoadDefinitions behavior of continuing past a single bad file.
func LoadManifests(dir string) ([]*Manifest, error) {
	if dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Warn("PluginManifest", "plugin directory does not exist: %s", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("plugin: read dir %s: %w", dir, err)
	}

	var manifests []*Manifest
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		m, err := LoadManifest(path)
		if err != nil {
			logging.Error("PluginManifest", err, "failed to load manifest %s", path)
			continue
		}
		manifests = append(manifests, m)
	}

	logging.Info("PluginManifest", "loaded %d plugin manifests from %s", len(manifests), dir)
	return manifests, nil
}

// LoadManifest parses a single manifest file.
func LoadManifest(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(content, &m); err != nil {
		return nil, fmt.Errorf("plugin: parse %s: %w", path, err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("plugin: %s: name must not be empty", path)
	}
	if m.Command == "" {
		return nil, fmt.Errorf("plugin: %s: command must not be empty", path)
	}

	return &m, nil
}
