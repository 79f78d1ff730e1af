package mcp

import "github.com/mark3labs/mcp-go/mcp"

var fetchToolDef = mcp.NewTool("memory_fetch",
	mcp.WithDescription("Fetch a bounded line or byte range of a stored memory blob. "+
		"Defaults to lines 1..200 when no range is given."),
	mcp.WithString("memory_id",
		mcp.Required(),
		mcp.Description("SHA-256 id of the blob, as carried in memory_refs")),
	mcp.WithNumber("line_start",
		mcp.Description("1-based first line (default 1)")),
	mcp.WithNumber("line_end",
		mcp.Description("1-based last line, inclusive (default 200)")),
	mcp.WithNumber("byte_offset",
		mcp.Description("0-based byte offset; when set, byte addressing replaces line addressing")),
	mcp.WithNumber("byte_length",
		mcp.Description("byte count from offset (default 65536)")),
)

var metadataToolDef = mcp.NewTool("memory_metadata",
	mcp.WithDescription("Return the index row for one memory blob without reading its content."),
	mcp.WithString("memory_id",
		mcp.Required(),
		mcp.Description("SHA-256 id of the blob")),
)

var listToolDef = mcp.NewTool("memory_list",
	mcp.WithDescription("List memory index rows, newest first."),
	mcp.WithString("type",
		mcp.Description("filter by blob type (TOOL_OUTPUT, WEB_SCRAPE, FILE_LIST, DOC_EXTRACT, USER_UPLOAD, OTHER)")),
	mcp.WithNumber("limit",
		mcp.Description("maximum rows to return (default 50)")),
)

var statsToolDef = mcp.NewTool("memory_stats",
	mcp.WithDescription("Summarize the memory store: blob count, compressed bytes, counts by type."),
)
