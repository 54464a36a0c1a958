package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/atlas/internal/app"
	"github.com/hpungsan/atlas/internal/errors"
	"github.com/hpungsan/atlas/internal/memory"
	"github.com/hpungsan/atlas/internal/persist"
	"github.com/hpungsan/atlas/internal/transfer"
	"github.com/hpungsan/atlas/internal/web"
)

// maxStdinBytes bounds notes read from stdin.
const maxStdinBytes = 1 << 20

// newCLIApp creates the CLI application with all commands.
func newCLIApp(a *app.App) *cli.App {
	cliApp := &cli.App{
		Name:    "atlas",
		Usage:   "Map-centric memory notes",
		Version: Version,
		Commands: []*cli.Command{
			addCmd(a),
			updateCmd(a),
			removeCmd(a),
			listCmd(a),
			showCmd(a),
			groupCmd(a),
			reorderCmd(a),
			moveCmd(a),
			bulkDeleteCmd(a),
			flagCmd("star", "Mark memories as favourites", func(ids []string, on bool) int {
				return a.Store.BulkSetStarred(ids, on)
			}),
			flagCmd("hide", "Hide memories from the map", func(ids []string, on bool) int {
				return a.Store.BulkSetHidden(ids, on)
			}),
			themeCmd(a),
			exportCmd(a),
			importCmd(a),
			statsCmd(a),
			calendarCmd(a),
			backupCmd(a),
			serveCmd(a),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// listItem is a memory as printed by list: its row label plus the stored fields.
type listItem struct {
	memory.Core
	Label  string `json:"label"`
	Images int    `json:"images"`
}

func addCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Add a memory at a position",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "lat", Required: true, Usage: "Latitude (-90..90)"},
			&cli.Float64Flag{Name: "lng", Required: true, Usage: "Longitude (-180..180)"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title"},
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Date as YYYY-MM-DD (default: today)"},
			&cli.StringFlag{Name: "notes", Usage: "Notes (markdown)"},
			&cli.BoolFlag{Name: "notes-stdin", Usage: "Read notes from stdin"},
			&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Usage: "Group ID (default: the default group; \"\" for none)"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
			&cli.StringFlag{Name: "label", Usage: "Custom label (up to 3 characters)"},
			&cli.BoolFlag{Name: "star", Usage: "Mark as favourite"},
		},
		Action: func(c *cli.Context) error {
			notes, err := notesFrom(c)
			if err != nil {
				return outputError(err)
			}

			m := memory.Memory{Core: memory.Core{
				Lat:     c.Float64("lat"),
				Lng:     c.Float64("lng"),
				Title:   c.String("title"),
				Date:    c.String("date"),
				Notes:   notes,
				Starred: c.Bool("star"),
				Tags:    parseTags(c.String("tags")),
			}}
			if label := c.String("label"); label != "" {
				m.CustomLabel = &label
			}

			st := a.Store.Snapshot()
			m.GroupID = st.DefaultGroupID
			if c.IsSet("group") {
				m.GroupID = nil
				if gid := c.String("group"); gid != "" {
					if _, ok := st.Group(gid); !ok {
						return outputError(errors.NewNotFound("group", gid))
					}
					m.GroupID = &gid
				}
			}

			added, err := a.Store.AddMemory(m)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(added)
		},
	}
}

func updateCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update fields of a memory",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "lat", Usage: "New latitude"},
			&cli.Float64Flag{Name: "lng", Usage: "New longitude"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "New date (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "notes", Usage: "New notes"},
			&cli.BoolFlag{Name: "notes-stdin", Usage: "Read new notes from stdin"},
			&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Usage: "Move to group (\"\" to ungroup)"},
			&cli.StringFlag{Name: "tags", Usage: "Replace tags (comma-separated)"},
			&cli.StringFlag{Name: "label", Usage: "Custom label (\"\" to clear)"},
			&cli.BoolFlag{Name: "star", Usage: "Favourite on or off"},
			&cli.BoolFlag{Name: "hidden", Usage: "Hidden on or off"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "memory ID")
			if err != nil {
				return outputError(err)
			}

			var patch memory.Patch
			if c.IsSet("lat") {
				v := c.Float64("lat")
				patch.Lat = &v
			}
			if c.IsSet("lng") {
				v := c.Float64("lng")
				patch.Lng = &v
			}
			if c.IsSet("title") {
				patch.Title = memory.StringPtr(c.String("title"))
			}
			if c.IsSet("date") {
				patch.Date = memory.StringPtr(c.String("date"))
			}
			if c.IsSet("notes") || c.Bool("notes-stdin") {
				notes, err := notesFrom(c)
				if err != nil {
					return outputError(err)
				}
				patch.Notes = &notes
			}
			if c.IsSet("group") {
				gid := c.String("group")
				if gid != "" {
					if _, ok := a.Store.Snapshot().Group(gid); !ok {
						return outputError(errors.NewNotFound("group", gid))
					}
				}
				patch.GroupID = &gid
			}
			if c.IsSet("tags") {
				tags := parseTags(c.String("tags"))
				patch.Tags = &tags
			}
			if c.IsSet("label") {
				patch.CustomLabel = memory.StringPtr(c.String("label"))
			}
			if c.IsSet("star") {
				v := c.Bool("star")
				patch.Starred = &v
			}
			if c.IsSet("hidden") {
				v := c.Bool("hidden")
				patch.Hidden = &v
			}
			if patch.IsEmpty() {
				return outputError(errors.NewInvalidRequest("at least one field to update is required"))
			}

			updated, found, err := a.Store.UpdateMemory(id, patch)
			if err != nil {
				return outputError(err)
			}
			if !found {
				return outputError(errors.NewNotFound("memory", id))
			}
			return outputJSON(updated)
		},
	}
}

func removeCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Aliases:   []string{"rm"},
		Usage:     "Remove a memory",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "memory ID")
			if err != nil {
				return outputError(err)
			}
			if !a.Store.RemoveMemory(id) {
				return outputError(errors.NewNotFound("memory", id))
			}
			return outputJSON(map[string]any{"id": id, "removed": true})
		},
	}
}

func listCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List memories in sidebar order",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Search title, notes and tags"},
			&cli.StringFlag{Name: "from", Usage: "Earliest date (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "to", Usage: "Latest date (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "tags", Usage: "Match any of these tags (comma-separated)"},
			&cli.BoolFlag{Name: "starred", Usage: "Favourites only"},
			&cli.BoolFlag{Name: "visible", Usage: "Only memories shown on the map"},
		},
		Action: func(c *cli.Context) error {
			st := a.Store.Snapshot()
			labels := make(map[string]string, len(st.Memories))
			for i, m := range memory.SidebarOrder(st.Memories, st.Groups) {
				labels[m.ID] = memory.DisplayLabel(m, i)
			}

			st.Filter = memory.Filter{
				Query:       c.String("query"),
				DateFrom:    c.String("from"),
				DateTo:      c.String("to"),
				Tags:        memory.NormalizeTags(parseTags(c.String("tags"))),
				StarredOnly: c.Bool("starred"),
			}
			listed := st.Sidebar()
			if c.Bool("visible") {
				onMap := make(map[string]bool)
				for _, m := range memory.VisibleOnMap(st.Memories, st.Groups) {
					onMap[m.ID] = true
				}
				kept := listed[:0]
				for _, m := range listed {
					if onMap[m.ID] {
						kept = append(kept, m)
					}
				}
				listed = kept
			}

			items := make([]listItem, 0, len(listed))
			for _, m := range listed {
				items = append(items, listItem{Core: m.Core, Label: labels[m.ID], Images: len(m.Images())})
			}
			return outputJSON(map[string]any{"memories": items, "count": len(items)})
		},
	}
}

func showCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one memory including its images",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "memory ID")
			if err != nil {
				return outputError(err)
			}
			m, ok := a.Store.Snapshot().Memory(id)
			if !ok {
				return outputError(errors.NewNotFound("memory", id))
			}
			return outputJSON(m)
		},
	}
}

func groupCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "group",
		Usage: "Manage groups",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List groups",
				Action: func(c *cli.Context) error {
					st := a.Store.Snapshot()
					return outputJSON(map[string]any{
						"groups":           st.Groups,
						"default_group_id": st.DefaultGroupID,
					})
				},
			},
			{
				Name:      "add",
				Usage:     "Add a group and make it the default",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					name, err := requireArg(c, "group name")
					if err != nil {
						return outputError(err)
					}
					g, err := a.Store.AddGroup(memory.Group{Name: name})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(g)
				},
			},
			{
				Name:      "update",
				Usage:     "Rename, collapse or hide a group",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "New name"},
					&cli.BoolFlag{Name: "collapsed", Usage: "Collapsed in the sidebar"},
					&cli.BoolFlag{Name: "hidden", Usage: "Hidden from the map"},
				},
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "group ID")
					if err != nil {
						return outputError(err)
					}
					var patch memory.GroupPatch
					if c.IsSet("name") {
						patch.Name = memory.StringPtr(c.String("name"))
					}
					if c.IsSet("collapsed") {
						v := c.Bool("collapsed")
						patch.Collapsed = &v
					}
					if c.IsSet("hidden") {
						v := c.Bool("hidden")
						patch.Hidden = &v
					}
					g, found := a.Store.UpdateGroup(id, patch)
					if !found {
						return outputError(errors.NewNotFound("group", id))
					}
					return outputJSON(g)
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove a group; its memories become ungrouped",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "group ID")
					if err != nil {
						return outputError(err)
					}
					if !a.Store.RemoveGroup(id) {
						return outputError(errors.NewNotFound("group", id))
					}
					return outputJSON(map[string]any{"id": id, "removed": true})
				},
			},
			{
				Name:      "default",
				Usage:     "Set the default group for new memories (\"\" for none)",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id := c.Args().First()
					if err := a.Store.SetDefaultGroup(id); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"default_group_id": a.Store.Snapshot().DefaultGroupID})
				},
			},
		},
	}
}

func reorderCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "reorder",
		Usage:     "Set the manual order of memories within a group",
		ArgsUsage: "<id>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Usage: "Group ID (empty for ungrouped)"},
		},
		Action: func(c *cli.Context) error {
			ids := c.Args().Slice()
			if len(ids) == 0 {
				return outputError(errors.NewInvalidRequest("at least one memory ID is required"))
			}
			gid := c.String("group")
			a.Store.ReorderMemoriesInGroup(gid, ids)

			ordered := memory.InGroup(a.Store.Snapshot().Memories, gid)
			out := make([]string, 0, len(ordered))
			for _, m := range ordered {
				out = append(out, m.ID)
			}
			return outputJSON(map[string]any{"group_id": gid, "ids": out})
		},
	}
}

func moveCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "move",
		Usage:     "Move memories to a group",
		ArgsUsage: "<id>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Usage: "Target group ID (empty to ungroup)"},
		},
		Action: func(c *cli.Context) error {
			ids := c.Args().Slice()
			if len(ids) == 0 {
				return outputError(errors.NewInvalidRequest("at least one memory ID is required"))
			}
			n, err := a.Store.BulkMoveToGroup(ids, c.String("group"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"count": n})
		},
	}
}

func bulkDeleteCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "bulk-delete",
		Usage:     "Remove several memories at once",
		ArgsUsage: "<id>...",
		Action: func(c *cli.Context) error {
			ids := c.Args().Slice()
			if len(ids) == 0 {
				return outputError(errors.NewInvalidRequest("at least one memory ID is required"))
			}
			return outputJSON(map[string]any{"count": a.Store.BulkDelete(ids)})
		},
	}
}

// flagCmd builds star/hide: set a boolean on many memories, or clear it with --off.
func flagCmd(name, usage string, set func(ids []string, on bool) int) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<id>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "off", Usage: "Clear instead of set"},
		},
		Action: func(c *cli.Context) error {
			ids := c.Args().Slice()
			if len(ids) == 0 {
				return outputError(errors.NewInvalidRequest("at least one memory ID is required"))
			}
			return outputJSON(map[string]any{"count": set(ids, !c.Bool("off"))})
		},
	}
}

func themeCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "theme",
		Usage:     "Show or set the UI theme (light|dark)",
		ArgsUsage: "[light|dark]",
		Action: func(c *cli.Context) error {
			if c.NArg() > 0 {
				theme := c.Args().First()
				if theme != string(persist.ThemeLight) && theme != string(persist.ThemeDark) {
					return outputError(errors.NewInvalidRequest(fmt.Sprintf("unknown theme %q (want light or dark)", theme)))
				}
				a.Store.SetTheme(persist.Theme(theme))
			}
			return outputJSON(map[string]any{"theme": a.Store.Snapshot().Theme})
		},
	}
}

func exportCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export memories to a JSON or CSV file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.atlas/exports/memory-atlas-<kind>-<date>.<ext>)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json|csv (default: from path, else json)"},
		},
		Action: func(c *cli.Context) error {
			input := transfer.ExportInput{Path: c.String("path")}
			if f := c.String("format"); f != "" {
				format, err := transfer.ParseFormat(f)
				if err != nil {
					return outputError(err)
				}
				input.Format = format
			}

			output, err := a.Export(c.Context, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func importCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import memories from a JSON or CSV file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "replace", Usage: "replace|merge"},
		},
		Action: func(c *cli.Context) error {
			mode, err := transfer.ParseImportMode(c.String("mode"))
			if err != nil {
				return outputError(err)
			}
			output, err := a.Import(c.Context, transfer.ImportInput{Path: c.String("path"), Mode: mode})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func statsCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show totals, places and busiest months",
		Action: func(c *cli.Context) error {
			return outputJSON(a.Store.Stats())
		},
	}
}

func calendarCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "calendar",
		Usage: "List memories by date",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "month", Usage: "Only this month (YYYY-MM)"},
		},
		Action: func(c *cli.Context) error {
			if month := c.String("month"); month != "" {
				return outputJSON(memory.Month(a.Store.Snapshot().Memories, month))
			}
			return outputJSON(a.Store.Calendar())
		},
	}
}

func backupCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Back up to, and restore from, an S3 bucket",
		Subcommands: []*cli.Command{
			{
				Name:  "upload",
				Usage: "Upload a JSON backup",
				Action: func(c *cli.Context) error {
					res, err := a.Backup(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(res)
				},
			},
			{
				Name:  "list",
				Usage: "List backups, newest first",
				Action: func(c *cli.Context) error {
					objects, err := a.ListBackups(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"backups": objects, "count": len(objects)})
				},
			},
			{
				Name:      "restore",
				Usage:     "Import a backup",
				ArgsUsage: "<key>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "replace", Usage: "replace|merge"},
				},
				Action: func(c *cli.Context) error {
					key, err := requireArg(c, "backup key")
					if err != nil {
						return outputError(err)
					}
					mode, err := transfer.ParseImportMode(c.String("mode"))
					if err != nil {
						return outputError(err)
					}
					output, err := a.Restore(c.Context, key, mode)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

func serveCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Address to bind (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port to listen on (default from config)"},
		},
		Action: func(c *cli.Context) error {
			if bind := c.String("bind"); bind != "" {
				a.Config.WebBind = bind
			}
			if c.IsSet("port") {
				a.Config.WebPort = c.Int("port")
			}

			srv, err := web.NewServer(a, Version)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(c.Context, srv, a.Logger.Named("web")); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var aErr *errors.AtlasError
	if stderrors.As(err, &aErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", aErr.Code, aErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

func requireArg(c *cli.Context, what string) (string, error) {
	if c.NArg() == 0 || c.Args().First() == "" {
		return "", errors.NewInvalidRequest(what + " is required")
	}
	return c.Args().First(), nil
}

// notesFrom returns --notes, or stdin when --notes-stdin is set.
func notesFrom(c *cli.Context) (string, error) {
	if !c.Bool("notes-stdin") {
		return c.String("notes"), nil
	}
	return readStdinWithLimit(os.Stdin, maxStdinBytes)
}

// readStdinWithLimit reads at most limit bytes from r, failing if there is more.
func readStdinWithLimit(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("stdin exceeds %d bytes", limit))
	}
	return strings.TrimSpace(string(data)), nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
