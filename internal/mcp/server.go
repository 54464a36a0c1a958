package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/atlas/internal/app"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"memory_add": {
		def:     memoryAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryAdd },
	},
	"memory_update": {
		def:     memoryUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryUpdate },
	},
	"memory_remove": {
		def:     memoryRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryRemove },
	},
	"memory_list": {
		def:     memoryListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryList },
	},
	"memory_bulk_delete": {
		def:     memoryBulkDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryBulkDelete },
	},
	"memory_bulk_move": {
		def:     memoryBulkMoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryBulkMove },
	},
	"memory_reorder": {
		def:     memoryReorderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryReorder },
	},
	"group_add": {
		def:     groupAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupAdd },
	},
	"group_update": {
		def:     groupUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupUpdate },
	},
	"group_remove": {
		def:     groupRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupRemove },
	},
	"history_undo": {
		def:     historyUndoToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUndo },
	},
	"history_redo": {
		def:     historyRedoToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRedo },
	},
	"atlas_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"atlas_import": {
		def:     importToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImport },
	},
	"atlas_stats": {
		def:     statsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStats },
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

// NewServer creates a new MCP server with Atlas tools registered.
// Tools listed in the session's DisabledTools are excluded from registration.
// Every tool shares the session's state container, so undo and redo span calls.
func NewServer(a *app.App, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"atlas",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(a)

	if unknown := ValidateDisabledTools(a.Config.DisabledTools); len(unknown) > 0 {
		a.Logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}

	disabled := make(map[string]bool)
	for _, name := range a.Config.DisabledTools {
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
func Run(a *app.App, version string) error {
	s := NewServer(a, version)
	return server.ServeStdio(s)
}
