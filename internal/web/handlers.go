package web

import (
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hpungsan/atlas/internal/app"
	"github.com/hpungsan/atlas/internal/errors"
	"github.com/hpungsan/atlas/internal/memory"
	"github.com/hpungsan/atlas/internal/state"
)

// maxBodyBytes bounds API request bodies. Image data URLs make create requests large.
const maxBodyBytes = 16 << 20

var validate = validator.New()

var sortModes = []state.SortMode{state.SortManual, state.SortNewest, state.SortOldest, state.SortTitleAsc}

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	app      *app.App
	renderer *Renderer
	logger   *zap.Logger
}

// Request bodies

// AddIntentRequest is the body of POST /api/intents/add.
type AddIntentRequest struct {
	Lat *float64 `json:"lat" validate:"required,min=-90,max=90"`
	Lng *float64 `json:"lng" validate:"required,min=-180,max=180"`
}

// DeleteIntentRequest is the body of POST /api/intents/delete.
// With Confirm the memory is removed at once; with Cancel a pending request is dropped.
type DeleteIntentRequest struct {
	ID      string `json:"id" validate:"required_without=Cancel"`
	Confirm bool   `json:"confirm"`
	Cancel  bool   `json:"cancel"`
}

// ReorderIntentRequest is the body of POST /api/intents/reorder.
type ReorderIntentRequest struct {
	GroupID string   `json:"groupId"`
	IDs     []string `json:"ids" validate:"required,min=1,dive,required"`
}

// CreateRequest is the body of POST /api/memories. Lat and Lng default to
// the pending position from the last add intent.
type CreateRequest struct {
	Lat           *float64 `json:"lat" validate:"omitempty,min=-90,max=90"`
	Lng           *float64 `json:"lng" validate:"omitempty,min=-180,max=180"`
	Title         string   `json:"title"`
	Date          string   `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Notes         string   `json:"notes"`
	GroupID       *string  `json:"groupId"`
	Tags          []string `json:"tags"`
	ImageDataURLs []string `json:"imageDataUrls" validate:"dive,startswith=data:image/"`
}

// VisibleMemory is one marker on the map.
type VisibleMemory struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Title   string  `json:"title"`
	Date    string  `json:"date"`
	Starred bool    `json:"starred"`
	GroupID *string `json:"groupId"`
}

// HandleList handles GET /memories: the sidebar.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	st := h.app.Store.Snapshot()

	st.Filter = memory.Filter{
		Query:       q.Get("q"),
		DateFrom:    q.Get("from"),
		DateTo:      q.Get("to"),
		Tags:        memory.NormalizeTags(q["tag"]),
		StarredOnly: parseBoolParam(r, "starred"),
	}
	st.Sort = parseSort(q.Get("sort"))

	labels := labelsFor(st)
	groups := groupNames(st.Groups)
	visible := idSetOf(memory.VisibleOnMap(st.Memories, st.Groups))

	listed := st.Sidebar()
	items := make([]ListItem, 0, len(listed))
	for _, m := range listed {
		items = append(items, ListItem{
			Memory:    m,
			Label:     labels[m.ID],
			GroupName: groups[m.Group()],
			OnMap:     visible[m.ID],
		})
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: h.pageData(st, "Memories", "memories"),
		Items:    items,
		Total:    len(st.Memories),
		Query:    st.Filter.Query,
		From:     st.Filter.DateFrom,
		To:       st.Filter.DateTo,
		Tag:      q.Get("tag"),
		Starred:  st.Filter.StarredOnly,
		Sort:     st.Sort,
		Sorts:    sortModes,
		AllTags:  memory.AllTags(st.Memories),
		Filtered: len(items) != len(st.Memories),
	})
}

// HandleDetail handles GET /memories/{id} with its notes rendered.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("memory ID is required"))
		return
	}

	st := h.app.Store.Snapshot()
	m, ok := st.Memory(id)
	if !ok {
		h.renderer.renderError(w, r, errors.NewNotFound("memory", id))
		return
	}

	title := m.Title
	if title == "" {
		title = "Untitled memory"
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData:      h.pageData(st, title, "memories"),
		Memory:        m,
		Label:         labelsFor(st)[m.ID],
		GroupName:     groupNames(st.Groups)[m.Group()],
		RenderedNotes: renderMarkdown(m.Notes),
		Images:        imageURLs(m),
	})
}

// HandleStats handles GET /stats: statistics and the calendar.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	st := h.app.Store.Snapshot()
	days := memory.Calendar(st.Memories)
	if month := r.URL.Query().Get("month"); month != "" {
		days = memory.Month(st.Memories, month)
	}

	h.renderer.renderPage(w, r, "stats", StatsPageData{
		PageData: h.pageData(st, "Statistics", "stats"),
		Stats:    memory.ComputeStats(st.Memories),
		Days:     days,
	})
}

// HandleVisible handles GET /api/visible: the markers the map should draw.
func (h *Handlers) HandleVisible(w http.ResponseWriter, r *http.Request) {
	st := h.app.Store.Snapshot()
	labels := labelsFor(st)

	visible := memory.VisibleOnMap(st.Memories, st.Groups)
	out := make([]VisibleMemory, 0, len(visible))
	for _, m := range visible {
		out = append(out, VisibleMemory{
			ID:      m.ID,
			Label:   labels[m.ID],
			Lat:     m.Lat,
			Lng:     m.Lng,
			Title:   m.Title,
			Date:    m.Date,
			Starred: m.Starred,
			GroupID: m.GroupID,
		})
	}

	renderJSON(w, http.StatusOK, map[string]any{
		"memories":  out,
		"pending":   st.Pending,
		"highlight": st.SearchHighlight,
	})
}

// HandleCreate handles POST /api/memories: save the memory being added.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateRequest
	if err := decodeBody(w, r, &input); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	st := h.app.Store.Snapshot()
	lat, lng := input.Lat, input.Lng
	if lat == nil || lng == nil {
		if st.Pending == nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("lat and lng are required when no add is pending"))
			return
		}
		lat, lng = &st.Pending.Lat, &st.Pending.Lng
	}

	groupID := st.DefaultGroupID
	if input.GroupID != nil {
		groupID = nil
		if *input.GroupID != "" {
			if _, ok := st.Group(*input.GroupID); !ok {
				h.renderer.renderError(w, r, errors.NewNotFound("group", *input.GroupID))
				return
			}
			groupID = input.GroupID
		}
	}

	added, err := h.app.Store.AddMemory(memory.Memory{
		Core: memory.Core{
			Lat:     *lat,
			Lng:     *lng,
			Title:   input.Title,
			Date:    input.Date,
			Notes:   input.Notes,
			GroupID: groupID,
			Tags:    input.Tags,
		},
		ImageDataURLs: input.ImageDataURLs,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, added)
}

// HandleIntentAdd handles POST /api/intents/add: a click on the map in add mode.
func (h *Handlers) HandleIntentAdd(w http.ResponseWriter, r *http.Request) {
	var input AddIntentRequest
	if err := decodeBody(w, r, &input); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if err := h.app.Store.RequestAdd(*input.Lat, *input.Lng); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	st := h.app.Store.Snapshot()
	renderJSON(w, http.StatusOK, map[string]any{
		"adding":  st.Adding,
		"pending": st.Pending,
	})
}

// HandleIntentDelete handles POST /api/intents/delete: the delete button on a marker popup.
func (h *Handlers) HandleIntentDelete(w http.ResponseWriter, r *http.Request) {
	var input DeleteIntentRequest
	if err := decodeBody(w, r, &input); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if input.Cancel {
		h.app.Store.CancelDelete()
		renderJSON(w, http.StatusOK, map[string]any{"pending": "", "deleted": false})
		return
	}

	if err := h.app.Store.RequestDelete(input.ID); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if !input.Confirm {
		renderJSON(w, http.StatusOK, map[string]any{"pending": input.ID, "deleted": false})
		return
	}

	deleted := h.app.Store.ConfirmDelete()
	renderJSON(w, http.StatusOK, map[string]any{"pending": "", "deleted": deleted, "id": input.ID})
}

// HandleIntentReorder handles POST /api/intents/reorder: a sidebar drag and drop.
func (h *Handlers) HandleIntentReorder(w http.ResponseWriter, r *http.Request) {
	var input ReorderIntentRequest
	if err := decodeBody(w, r, &input); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.app.Store.Reorder(input.GroupID, input.IDs)

	ordered := memory.InGroup(h.app.Store.Snapshot().Memories, input.GroupID)
	ids := make([]string, 0, len(ordered))
	for _, m := range ordered {
		ids = append(ids, m.ID)
	}
	renderJSON(w, http.StatusOK, map[string]any{"groupId": input.GroupID, "ids": ids})
}

// HandleUndo handles POST /api/undo.
func (h *Handlers) HandleUndo(w http.ResponseWriter, r *http.Request) {
	h.renderHistory(w, h.app.Store.Undo())
}

// HandleRedo handles POST /api/redo.
func (h *Handlers) HandleRedo(w http.ResponseWriter, r *http.Request) {
	h.renderHistory(w, h.app.Store.Redo())
}

func (h *Handlers) renderHistory(w http.ResponseWriter, changed bool) {
	st := h.app.Store.Snapshot()
	renderJSON(w, http.StatusOK, map[string]any{
		"changed":  changed,
		"canUndo":  st.CanUndo,
		"canRedo":  st.CanRedo,
		"memories": len(st.Memories),
		"groups":   len(st.Groups),
	})
}

func (h *Handlers) pageData(st state.State, title, nav string) PageData {
	return PageData{
		Title:   title,
		Version: h.renderer.version,
		Nav:     nav,
		CanUndo: st.CanUndo,
		CanRedo: st.CanRedo,
	}
}

// decodeBody reads a JSON body into v and validates its struct tags.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.NewInvalidRequest("request body is required")
		}
		return errors.NewInvalidRequest("invalid JSON body: " + err.Error())
	}
	if err := validate.Struct(v); err != nil {
		return errors.NewInvalidRequest(validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}
	return strings.Join(msgs, "; ")
}

// labelsFor assigns A/B/C labels in unfiltered sidebar order, so a memory
// keeps its label while the list is filtered.
func labelsFor(st state.State) map[string]string {
	ordered := memory.SidebarOrder(st.Memories, st.Groups)
	labels := make(map[string]string, len(ordered))
	for i, m := range ordered {
		labels[m.ID] = memory.DisplayLabel(m, i)
	}
	return labels
}

func groupNames(groups []memory.Group) map[string]string {
	names := make(map[string]string, len(groups))
	for _, g := range groups {
		names[g.ID] = g.Name
	}
	return names
}

func idSetOf(ms []memory.Memory) map[string]bool {
	set := make(map[string]bool, len(ms))
	for _, m := range ms {
		set[m.ID] = true
	}
	return set
}

// parseSort maps a query value onto a sort mode. Unknown values mean manual.
func parseSort(s string) state.SortMode {
	mode := state.SortMode(s)
	if slices.Contains(sortModes, mode) {
		return mode
	}
	return state.SortManual
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1" || s == "on"
}
