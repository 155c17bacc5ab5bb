// Package mcp exposes the resolver as MCP tools over stdio transport.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kwehner/mzusi/internal/config"
	"github.com/kwehner/mzusi/internal/log"
	"github.com/kwehner/mzusi/internal/resolve"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"spectrum_resolve": {
		def:     resolveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleResolve },
	},
	"spectrum_locate": {
		def:     locateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLocate },
	},
	"usi_parse": {
		def:     parseToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleParse },
	},
	"cache_invalidate": {
		def:     invalidateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInvalidate },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with resolver tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(svc *resolve.Service, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"mzusi",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(svc, cfg)

	disabled := make(map[string]bool)
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(cfg *config.Config, logger *log.Logger, version string) error {
	svc := resolve.NewService(cfg, logger)
	s := NewServer(svc, cfg, version)
	return server.ServeStdio(s)
}
