package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hpungsan/atlas/internal/app"
	"github.com/hpungsan/atlas/internal/config"
	"github.com/hpungsan/atlas/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"add": true, "update": true, "remove": true, "rm": true,
	"list": true, "show": true, "group": true,
	"reorder": true, "move": true, "bulk-delete": true,
	"star": true, "hide": true, "theme": true,
	"export": true, "import": true, "stats": true, "calendar": true,
	"backup": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
     _   _   _
    / \ | |_| | __ _ ___
   / _ \| __| |/ _' / __|
  / ___ \ |_| | (_| \__ \
 /_/   \_\__|_|\__,_|___/

  Memories on a map

  Usage: atlas <command> [options]
         atlas serve      (web UI)
         atlas --help

  MCP server mode requires piped input.`)
}

func main() {
	os.Exit(run())
}

func run() (code int) {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return 0
	}

	// Handle --help/--version before opening storage
	if isHelpOrVersion() {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode() && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'atlas --help' for usage.\n")
		return 1
	}

	baseDir, err := app.DefaultBaseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = baseDir
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	a, err := app.Open(ctx, app.Options{BaseDir: baseDir, Config: cfg})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open atlas: %v\n", err)
		return 1
	}
	defer func() {
		if err := a.Close(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "error: failed to save changes: %v\n", err)
			code = 1
		}
	}()

	// CLI mode: known subcommand
	if isCLIMode() {
		if err := newCLIApp(a).RunContext(ctx, os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	// MCP server mode (default)
	if err := mcp.Run(a, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
