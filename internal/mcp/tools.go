package mcp

import "github.com/mark3labs/mcp-go/mcp"

var memoryAddToolDef = mcp.NewTool("memory_add",
	mcp.WithDescription("Pin a new memory on the map. Returns the stored memory with its generated id."),
	mcp.WithNumber("lat", mcp.Required(), mcp.Description("Latitude in degrees, -90 to 90")),
	mcp.WithNumber("lng", mcp.Required(), mcp.Description("Longitude in degrees, -180 to 180")),
	mcp.WithString("title", mcp.Description("Short title")),
	mcp.WithString("date", mcp.Description("Calendar date YYYY-MM-DD (default: today)")),
	mcp.WithString("notes", mcp.Description("Free-form notes (Markdown)")),
	mcp.WithString("group_id", mcp.Description("Group to file the memory under (default: the default group)")),
	mcp.WithString("custom_label", mcp.Description("Up to 3 characters shown instead of the A/B/C label")),
	mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Tags (lowercased, deduplicated)")),
	mcp.WithArray("links", mcp.WithStringItems(), mcp.Description("Related URLs")),
	mcp.WithBoolean("starred", mcp.Description("Mark as favourite")),
	mcp.WithBoolean("hidden", mcp.Description("Hide from the map")),
)

var memoryUpdateToolDef = mcp.NewTool("memory_update",
	mcp.WithDescription("Update fields of a memory. Omitted fields are unchanged; an empty group_id or custom_label clears it."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Memory id")),
	mcp.WithNumber("lat", mcp.Description("Latitude in degrees")),
	mcp.WithNumber("lng", mcp.Description("Longitude in degrees")),
	mcp.WithString("title", mcp.Description("Short title")),
	mcp.WithString("date", mcp.Description("Calendar date YYYY-MM-DD")),
	mcp.WithString("notes", mcp.Description("Free-form notes (Markdown)")),
	mcp.WithString("group_id", mcp.Description("Group id, or empty to ungroup")),
	mcp.WithString("custom_label", mcp.Description("Custom label, or empty to clear")),
	mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Replacement tag list")),
	mcp.WithArray("links", mcp.WithStringItems(), mcp.Description("Replacement link list")),
	mcp.WithBoolean("starred", mcp.Description("Favourite flag")),
	mcp.WithBoolean("hidden", mcp.Description("Hidden-from-map flag")),
)

var memoryRemoveToolDef = mcp.NewTool("memory_remove",
	mcp.WithDescription("Delete a memory. Undoable with history_undo."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithString("id", mcp.Required(), mcp.Description("Memory id")),
)

var memoryListToolDef = mcp.NewTool("memory_list",
	mcp.WithDescription("List memories in sidebar order: ungrouped first, then each group in turn, each by manual order."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("query", mcp.Description("Case-insensitive match on title, notes and date")),
	mcp.WithString("date_from", mcp.Description("Inclusive lower date bound YYYY-MM-DD")),
	mcp.WithString("date_to", mcp.Description("Inclusive upper date bound YYYY-MM-DD")),
	mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Match memories carrying any of these tags")),
	mcp.WithBoolean("starred_only", mcp.Description("Only favourites")),
	mcp.WithBoolean("visible_only", mcp.Description("Only memories shown on the map")),
)

var memoryBulkDeleteToolDef = mcp.NewTool("memory_bulk_delete",
	mcp.WithDescription("Delete several memories as one undoable change."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithArray("ids", mcp.Required(), mcp.WithStringItems(), mcp.Description("Memory ids")),
)

var memoryBulkMoveToolDef = mcp.NewTool("memory_bulk_move",
	mcp.WithDescription("Move several memories into a group (or ungroup them with an empty group_id) as one undoable change."),
	mcp.WithArray("ids", mcp.Required(), mcp.WithStringItems(), mcp.Description("Memory ids")),
	mcp.WithString("group_id", mcp.Description("Target group id, empty for ungrouped")),
)

var memoryReorderToolDef = mcp.NewTool("memory_reorder",
	mcp.WithDescription("Set the manual order of memories within a group. Ids outside the group are ignored."),
	mcp.WithString("group_id", mcp.Description("Group id, empty for the ungrouped bucket")),
	mcp.WithArray("ids", mcp.Required(), mcp.WithStringItems(), mcp.Description("Memory ids in the new order")),
)

var groupAddToolDef = mcp.NewTool("group_add",
	mcp.WithDescription("Create a group."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Group name")),
)

var groupUpdateToolDef = mcp.NewTool("group_update",
	mcp.WithDescription("Rename a group or change its collapsed/hidden flags."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Group id")),
	mcp.WithString("name", mcp.Description("New name")),
	mcp.WithBoolean("collapsed", mcp.Description("Collapsed in the sidebar")),
	mcp.WithBoolean("hidden", mcp.Description("Hide the group's memories from the map")),
)

var groupRemoveToolDef = mcp.NewTool("group_remove",
	mcp.WithDescription("Delete a group. Its memories become ungrouped. Undoable with history_undo."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithString("id", mcp.Required(), mcp.Description("Group id")),
)

var historyUndoToolDef = mcp.NewTool("history_undo",
	mcp.WithDescription("Undo the last change to memories or groups. A no-op when there is nothing to undo."),
)

var historyRedoToolDef = mcp.NewTool("history_redo",
	mcp.WithDescription("Redo the last undone change. A no-op when there is nothing to redo."),
)

var exportToolDef = mcp.NewTool("atlas_export",
	mcp.WithDescription("Export memories (and groups, for JSON) to a file in ~/.atlas/exports or an allowed path."),
	mcp.WithString("path", mcp.Description("Output file (default: ~/.atlas/exports/memory-atlas-backup-DATE.json)")),
	mcp.WithString("format", mcp.Enum("json", "csv"), mcp.Description("File format (default: from extension, else json)")),
)

var importToolDef = mcp.NewTool("atlas_import",
	mcp.WithDescription("Import a JSON or CSV export. Invalid records are skipped and reported. Undoable with history_undo."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithString("path", mcp.Required(), mcp.Description("File to import (.json or .csv)")),
	mcp.WithString("mode", mcp.Enum("replace", "merge"), mcp.Description("replace (default) swaps all data; merge adds records with new ids")),
)

var statsToolDef = mcp.NewTool("atlas_stats",
	mcp.WithDescription("Summary statistics: totals, distinct places, favourites, photos, per-year counts and busiest months."),
	mcp.WithReadOnlyHintAnnotation(true),
)
