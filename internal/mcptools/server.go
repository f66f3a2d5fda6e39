// Package mcptools exposes the merge engine as MCP tools, so an agent can
// run merges and coverage checks over lined-page files on disk.
package mcptools

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewServer creates an MCP server with the bookweave tools registered.
func NewServer(svc *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "bookweave",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "merge_sources",
		Description: "Merge a secondary memoir into a base memoir. Takes lined-page JSON files plus optional tag and placement hint files, and returns the merged text, the structure manifest and a run summary. With outDir set, also writes merged.txt, structure.json and report.json there.",
	}, svc.MergeSources)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_coverage",
		Description: "Check how completely a tag file covers each tagged page of a lined-page source: untagged non-empty lines, overlapping ranges and invalid ranges.",
	}, svc.CheckCoverage)

	return server
}

// Run serves the tools on stdin/stdout until ctx is done or the client
// disconnects.
func Run(ctx context.Context, log *slog.Logger) error {
	log.Info("mcp server starting", "transport", "stdio", "version", version)
	return NewServer(NewService(log)).Run(ctx, &mcp.StdioTransport{})
}
