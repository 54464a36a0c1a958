package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/atlas/internal/app"
	"github.com/hpungsan/atlas/internal/errors"
	"github.com/hpungsan/atlas/internal/memory"
	"github.com/hpungsan/atlas/internal/transfer"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	app *app.App
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(a *app.App) *Handlers {
	return &Handlers{app: a}
}

// Request types for each tool

// MemoryAddRequest represents the arguments for memory_add.
type MemoryAddRequest struct {
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	Title       string   `json:"title,omitempty"`
	Date        string   `json:"date,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	GroupID     *string  `json:"group_id,omitempty"`
	CustomLabel string   `json:"custom_label,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Links       []string `json:"links,omitempty"`
	Starred     bool     `json:"starred,omitempty"`
	Hidden      bool     `json:"hidden,omitempty"`
}

// MemoryUpdateRequest represents the arguments for memory_update.
type MemoryUpdateRequest struct {
	ID          string    `json:"id"`
	Lat         *float64  `json:"lat,omitempty"`
	Lng         *float64  `json:"lng,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Date        *string   `json:"date,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	GroupID     *string   `json:"group_id,omitempty"`
	CustomLabel *string   `json:"custom_label,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Links       *[]string `json:"links,omitempty"`
	Starred     *bool     `json:"starred,omitempty"`
	Hidden      *bool     `json:"hidden,omitempty"`
}

// IDRequest represents the arguments for tools addressing one entity by id.
type IDRequest struct {
	ID string `json:"id"`
}

// MemoryListRequest represents the arguments for memory_list.
type MemoryListRequest struct {
	Query       string   `json:"query,omitempty"`
	DateFrom    string   `json:"date_from,omitempty"`
	DateTo      string   `json:"date_to,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	StarredOnly bool     `json:"starred_only,omitempty"`
	VisibleOnly bool     `json:"visible_only,omitempty"`
}

// BulkRequest represents the arguments for memory_bulk_delete and memory_bulk_move.
type BulkRequest struct {
	IDs     []string `json:"ids"`
	GroupID string   `json:"group_id,omitempty"`
}

// ReorderRequest represents the arguments for memory_reorder.
type ReorderRequest struct {
	GroupID string   `json:"group_id,omitempty"`
	IDs     []string `json:"ids"`
}

// GroupAddRequest represents the arguments for group_add.
type GroupAddRequest struct {
	Name string `json:"name"`
}

// GroupUpdateRequest represents the arguments for group_update.
type GroupUpdateRequest struct {
	ID        string  `json:"id"`
	Name      *string `json:"name,omitempty"`
	Collapsed *bool   `json:"collapsed,omitempty"`
	Hidden    *bool   `json:"hidden,omitempty"`
}

// ExportRequest represents the arguments for atlas_export.
type ExportRequest struct {
	Path   string `json:"path,omitempty"`
	Format string `json:"format,omitempty"`
}

// ImportRequest represents the arguments for atlas_import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// Output types

// MemoryItem is a memory as listed by memory_list. Image payloads are
// reduced to a count.
type MemoryItem struct {
	memory.Core
	Label  string `json:"label"`
	Images int    `json:"images"`
}

// ListOutput is the result of memory_list.
type ListOutput struct {
	Memories []MemoryItem `json:"memories"`
	Count    int          `json:"count"`
}

// CountOutput reports how many entities a bulk tool changed.
type CountOutput struct {
	Count int `json:"count"`
}

// HistoryOutput reports the result of an undo or redo.
type HistoryOutput struct {
	Changed  bool `json:"changed"`
	CanUndo  bool `json:"can_undo"`
	CanRedo  bool `json:"can_redo"`
	Memories int  `json:"memories"`
	Groups   int  `json:"groups"`
}

// HandleMemoryAdd handles the memory_add tool call.
func (h *Handlers) HandleMemoryAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoryAddRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.Lat == nil || input.Lng == nil {
		return errorResult(errors.NewInvalidRequest("lat and lng are required")), nil
	}

	st := h.app.Store.Snapshot()
	groupID := st.DefaultGroupID
	if input.GroupID != nil {
		groupID = nil
		if *input.GroupID != "" {
			if _, ok := st.Group(*input.GroupID); !ok {
				return errorResult(errors.NewNotFound("group", *input.GroupID)), nil
			}
			groupID = memory.StringPtr(*input.GroupID)
		}
	}

	m := memory.Memory{Core: memory.Core{
		Lat:     *input.Lat,
		Lng:     *input.Lng,
		Title:   input.Title,
		Date:    input.Date,
		Notes:   input.Notes,
		GroupID: groupID,
		Hidden:  input.Hidden,
		Starred: input.Starred,
		Tags:    input.Tags,
		Links:   input.Links,
	}}
	if input.CustomLabel != "" {
		m.CustomLabel = memory.StringPtr(input.CustomLabel)
	}

	added, err := h.app.Store.AddMemory(m)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(added)
}

// HandleMemoryUpdate handles the memory_update tool call.
func (h *Handlers) HandleMemoryUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoryUpdateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	patch := memory.Patch{
		Lat:         input.Lat,
		Lng:         input.Lng,
		Title:       input.Title,
		Date:        input.Date,
		Notes:       input.Notes,
		GroupID:     input.GroupID,
		CustomLabel: input.CustomLabel,
		Tags:        input.Tags,
		Links:       input.Links,
		Starred:     input.Starred,
		Hidden:      input.Hidden,
	}
	if patch.IsEmpty() {
		return errorResult(errors.NewInvalidRequest("at least one field to update is required")), nil
	}
	if patch.GroupID != nil && *patch.GroupID != "" {
		if _, ok := h.app.Store.Snapshot().Group(*patch.GroupID); !ok {
			return errorResult(errors.NewNotFound("group", *patch.GroupID)), nil
		}
	}

	updated, found, err := h.app.Store.UpdateMemory(input.ID, patch)
	if err != nil {
		return errorResult(err), nil
	}
	if !found {
		return errorResult(errors.NewNotFound("memory", input.ID)), nil
	}
	return successResult(updated)
}

// HandleMemoryRemove handles the memory_remove tool call.
func (h *Handlers) HandleMemoryRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	if !h.app.Store.RemoveMemory(input.ID) {
		return errorResult(errors.NewNotFound("memory", input.ID)), nil
	}
	return successResult(map[string]any{"id": input.ID, "removed": true})
}

// HandleMemoryList handles the memory_list tool call.
func (h *Handlers) HandleMemoryList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoryListRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	st := h.app.Store.Snapshot()
	st.Filter = memory.Filter{
		Query:       input.Query,
		DateFrom:    input.DateFrom,
		DateTo:      input.DateTo,
		Tags:        memory.NormalizeTags(input.Tags),
		StarredOnly: input.StarredOnly,
	}
	listed := st.Sidebar()
	if input.VisibleOnly {
		listed = memory.VisibleOnMap(listed, st.Groups)
	}

	out := ListOutput{Memories: make([]MemoryItem, 0, len(listed)), Count: len(listed)}
	for i, m := range listed {
		out.Memories = append(out.Memories, MemoryItem{
			Core:   m.Core,
			Label:  memory.DisplayLabel(m, i),
			Images: len(m.Images()),
		})
	}
	return successResult(out)
}

// HandleMemoryBulkDelete handles the memory_bulk_delete tool call.
func (h *Handlers) HandleMemoryBulkDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BulkRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if len(input.IDs) == 0 {
		return errorResult(errors.NewInvalidRequest("ids must not be empty")), nil
	}
	return successResult(CountOutput{Count: h.app.Store.BulkDelete(input.IDs)})
}

// HandleMemoryBulkMove handles the memory_bulk_move tool call.
func (h *Handlers) HandleMemoryBulkMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BulkRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if len(input.IDs) == 0 {
		return errorResult(errors.NewInvalidRequest("ids must not be empty")), nil
	}

	n, err := h.app.Store.BulkMoveToGroup(input.IDs, input.GroupID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(CountOutput{Count: n})
}

// HandleMemoryReorder handles the memory_reorder tool call.
func (h *Handlers) HandleMemoryReorder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReorderRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if len(input.IDs) == 0 {
		return errorResult(errors.NewInvalidRequest("ids must not be empty")), nil
	}

	h.app.Store.Reorder(input.GroupID, input.IDs)

	ordered := memory.InGroup(h.app.Store.Snapshot().Memories, input.GroupID)
	ids := make([]string, 0, len(ordered))
	for _, m := range ordered {
		ids = append(ids, m.ID)
	}
	return successResult(map[string]any{"group_id": input.GroupID, "ids": ids})
}

// HandleGroupAdd handles the group_add tool call.
func (h *Handlers) HandleGroupAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GroupAddRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.Name == "" {
		return errorResult(errors.NewInvalidRequest("name is required")), nil
	}

	g, err := h.app.Store.AddGroup(memory.Group{Name: input.Name})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(g)
}

// HandleGroupUpdate handles the group_update tool call.
func (h *Handlers) HandleGroupUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GroupUpdateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	g, found := h.app.Store.UpdateGroup(input.ID, memory.GroupPatch{
		Name:      input.Name,
		Collapsed: input.Collapsed,
		Hidden:    input.Hidden,
	})
	if !found {
		return errorResult(errors.NewNotFound("group", input.ID)), nil
	}
	return successResult(g)
}

// HandleGroupRemove handles the group_remove tool call.
func (h *Handlers) HandleGroupRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	if !h.app.Store.RemoveGroup(input.ID) {
		return errorResult(errors.NewNotFound("group", input.ID)), nil
	}
	return successResult(map[string]any{"id": input.ID, "removed": true})
}

// HandleUndo handles the history_undo tool call.
func (h *Handlers) HandleUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.historyOutput(h.app.Store.Undo()))
}

// HandleRedo handles the history_redo tool call.
func (h *Handlers) HandleRedo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.historyOutput(h.app.Store.Redo()))
}

func (h *Handlers) historyOutput(changed bool) HistoryOutput {
	st := h.app.Store.Snapshot()
	return HistoryOutput{
		Changed:  changed,
		CanUndo:  st.CanUndo,
		CanRedo:  st.CanRedo,
		Memories: len(st.Memories),
		Groups:   len(st.Groups),
	}
}

// HandleExport handles the atlas_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	var format transfer.Format
	if input.Format != "" {
		format, err = transfer.ParseFormat(input.Format)
		if err != nil {
			return errorResult(err), nil
		}
	}

	result, err := h.app.Export(ctx, transfer.ExportInput{Path: input.Path, Format: format})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleImport handles the atlas_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.Path == "" {
		return errorResult(errors.NewInvalidRequest("path is required")), nil
	}

	mode, err := transfer.ParseImportMode(input.Mode)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.app.Import(ctx, transfer.ImportInput{Path: input.Path, Mode: mode})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleStats handles the atlas_stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.app.Store.Stats())
}

// errorResult creates an MCP error result from any error.
// For AtlasErrors, includes code, message, and status.
// Wrapped AtlasErrors keep the wrapper's context in the message.
// Other errors become a generic INTERNAL error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var atlasErr *errors.AtlasError
	if stderrors.As(err, &atlasErr) {
		message := atlasErr.Message
		if err != error(atlasErr) {
			message = err.Error()
		}
		errorObj := map[string]any{
			"code":    atlasErr.Code,
			"message": message,
			"status":  atlasErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if atlasErr.Code != errors.ErrInternal && atlasErr.Details != nil {
			errorObj["details"] = atlasErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
