// Package plugin implements the descriptor-file plugin loader: a YAML
// manifest per plugin (name, version, description, command/args/env, the
// tool and workflow names it provides) naming a subprocess that speaks MCP
// over stdio, rather than a Go plugin loaded as code. Manager spawns each
// manifest's subprocess, lists its tools, and proxies the manifest's
// declared tool/workflow names into an internal/toolregistry.Registry so
// callers invoke them exactly like any natively registered tool.
//
// Grounded on the teacher's internal/mcpserver package: client.go/
// client_stdio.go/client_interface.go's stdio-transport MCP client (trimmed
// to the tools surface only - this module has no resources/prompts
// concept) and loader.go's directory-of-YAML-files definition loader,
// narrowed from the teacher's api.MCPServer CRD-shaped type to this
// package's own Manifest. PLUGINS_WATCH_CHANGES reload is grounded on
// internal/reconciler/filesystem_detector.go's fsnotify-plus-debounce
// pattern, simplified from that file's per-resource-type change-event
// stream down to a single "something changed, reload everything" signal,
// since a plugin subprocess restart is not incremental the way the
// teacher's resource reconciliation is.
package plugin
