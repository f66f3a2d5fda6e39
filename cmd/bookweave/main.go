// Command bookweave ingests memoir sources, asks the oracle for tags or
// placement hints, and merges two sources into one document.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

// version is set by the linker at build time.
var version = "dev"

var errUsage = errors.New("usage")

const usage = `usage: bookweave <command> [flags]

commands:
  ingest    load a book into a lined-page JSON file
  tag       ask the oracle for line tags
  place     ask the oracle where secondary pages belong in base
  merge     merge two sources and write merged.txt, structure.json, report.json
  coverage  check how completely tags cover a source
  mcp       serve the merge tools over MCP on stdio
  version   print the version

run "bookweave <command> -h" for the flags of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, newLogger(os.Stderr)); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, log *slog.Logger) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "ingest":
		return cmdIngest(ctx, rest, stdout, log)
	case "tag":
		return cmdTag(ctx, rest, stdout, log)
	case "place":
		return cmdPlace(ctx, rest, stdout, log)
	case "merge":
		return cmdMerge(ctx, rest, stdout, log)
	case "coverage":
		return cmdCoverage(rest, stdout)
	case "mcp":
		return cmdMCP(ctx, log)
	case "version":
		fmt.Fprintln(stdout, version)
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
}

// newLogger writes text logs at the level named by BOOKWEAVE_LOG_LEVEL.
func newLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if v := os.Getenv("BOOKWEAVE_LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(strings.ToUpper(v))); err != nil {
			level = slog.LevelInfo
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
