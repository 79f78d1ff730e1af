package agent

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	irerrors "github.com/irisworks/iris/internal/errors"
	"github.com/irisworks/iris/internal/memory"
)

// MemoryFetchTool is the one tool the runtime provides itself. The model
// calls it with a memory_refs ID to hydrate offloaded content on demand.
const MemoryFetchTool = "memory_fetch"

// Default windows when the call names no range. The byte default matches
// the store's slice cap.
const (
	defaultFetchLineStart = 1
	defaultFetchLineEnd   = 200
	defaultFetchByteLen   = 65536
)

// RegisterMemoryFetch wires the fetch tool into reg, backed by store.
// The tool is pure: it never mutates the store and parallel calls are safe.
func RegisterMemoryFetch(reg *Registry, store *memory.Store) {
	reg.Register(MemoryFetchTool, true, func(ctx context.Context, args map[string]any) (ToolResult, error) {
		return fetchMemory(store, args)
	})
}

func fetchMemory(store *memory.Store, args map[string]any) (ToolResult, error) {
	id, _ := args["memory_id"].(string)
	if id == "" {
		return ToolResult{Output: "memory_id is required", IsSuccess: false}, nil
	}
	meta, err := store.GetMetadata(id)
	if err != nil {
		if irerrors.Is(err, irerrors.ErrNotFound) {
			return ToolResult{Output: "unknown memory id", IsSuccess: false}, nil
		}
		return ToolResult{}, err
	}

	// Byte addressing wins when present; otherwise line addressing with
	// a bounded default window.
	if off, ok := intArg(args, "byte_offset"); ok {
		length, ok := intArg(args, "byte_length")
		if !ok || length <= 0 {
			length = defaultFetchByteLen
		}
		data, err := store.GetBytes(id, off, length)
		if err != nil {
			return fetchFailure(err)
		}
		desc := fmt.Sprintf("bytes %d..%d", off, off+len(data))
		return renderFetch(meta, desc, data), nil
	}

	start, ok := intArg(args, "line_start")
	if !ok {
		start = defaultFetchLineStart
	}
	end, ok := intArg(args, "line_end")
	if !ok {
		end = defaultFetchLineEnd
	}
	if isTextMIME(meta.MIME) {
		slice, err := store.GetSlice(id, start, end)
		if err != nil {
			return fetchFailure(err)
		}
		desc := fmt.Sprintf("lines %d..%d", start, end)
		return renderFetch(meta, desc, []byte(slice)), nil
	}

	// Non-text content has no line structure; fall back to the default
	// byte window from the start.
	data, err := store.GetBytes(id, 0, defaultFetchByteLen)
	if err != nil {
		return fetchFailure(err)
	}
	desc := fmt.Sprintf("bytes 0..%d", len(data))
	return renderFetch(meta, desc, data), nil
}

// renderFetch frames the fetched span with a provenance header. Non-text
// payloads are base64-encoded so the output stays a valid message body.
func renderFetch(meta *memory.Meta, rangeDesc string, data []byte) ToolResult {
	header := fmt.Sprintf("Memory %s %s/%s %s range=%s",
		meta.MemoryID, meta.Type, meta.Subtype, meta.MIME, rangeDesc)
	var body string
	if isTextMIME(meta.MIME) {
		body = string(data)
	} else {
		body = base64.StdEncoding.EncodeToString(data)
	}
	return ToolResult{
		Output:    header + "\n" + body,
		MIME:      meta.MIME,
		IsSuccess: true,
	}
}

// fetchFailure converts a store error into a failed tool result with the
// error text as output, so the model can see why the fetch was rejected.
func fetchFailure(err error) (ToolResult, error) {
	return ToolResult{Output: err.Error(), IsSuccess: false}, nil
}

func isTextMIME(mime string) bool {
	if strings.HasPrefix(mime, "text/") {
		return true
	}
	switch mime {
	case "application/json", "application/xml", "application/x-ndjson":
		return true
	}
	return false
}

// intArg reads a numeric argument that may arrive as float64 (JSON),
// int, or a numeric string.
func intArg(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		var parsed int
		if _, err := fmt.Sscanf(n, "%d", &parsed); err == nil {
			return parsed, true
		}
	}
	return 0, false
}
