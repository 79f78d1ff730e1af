// Package mcp exposes the memory store over the Model Context Protocol
// for debugging and external inspection. The surface is read-only: every
// tool is a query against the index or the CAS, never a mutation.
package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/irisworks/iris/internal/errors"
	"github.com/irisworks/iris/internal/memory"
)

// defaultListLimit bounds memory_list when the call names no limit.
const defaultListLimit = 50

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store *memory.Store
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store *memory.Store) *Handlers {
	return &Handlers{store: store}
}

// Request types for each tool

// FetchRequest represents the arguments for memory_fetch.
type FetchRequest struct {
	MemoryID   string `json:"memory_id"`
	LineStart  *int   `json:"line_start,omitempty"`
	LineEnd    *int   `json:"line_end,omitempty"`
	ByteOffset *int   `json:"byte_offset,omitempty"`
	ByteLength *int   `json:"byte_length,omitempty"`
}

// MetadataRequest represents the arguments for memory_metadata.
type MetadataRequest struct {
	MemoryID string `json:"memory_id"`
}

// ListRequest represents the arguments for memory_list.
type ListRequest struct {
	Type  string `json:"type,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// FetchResult is the memory_fetch payload.
type FetchResult struct {
	MemoryID string `json:"memory_id"`
	MIME     string `json:"mime"`
	Range    string `json:"range"`
	Content  string `json:"content"` // base64 when the blob is not text
	Base64   bool   `json:"base64,omitempty"`
}

// HandleFetch handles the memory_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.MemoryID == "" {
		return errorResult(errors.NewInvalidRequest("memory_id is required")), nil
	}

	meta, err := h.store.GetMetadata(input.MemoryID)
	if err != nil {
		return errorResult(err), nil
	}

	if input.ByteOffset != nil {
		length := 65536
		if input.ByteLength != nil && *input.ByteLength > 0 {
			length = *input.ByteLength
		}
		data, err := h.store.GetBytes(input.MemoryID, *input.ByteOffset, length)
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(renderSlice(meta, fmt.Sprintf("bytes %d..%d", *input.ByteOffset, *input.ByteOffset+len(data)), data))
	}

	start, end := 1, 200
	if input.LineStart != nil {
		start = *input.LineStart
	}
	if input.LineEnd != nil {
		end = *input.LineEnd
	}
	if isTextMIME(meta.MIME) {
		slice, err := h.store.GetSlice(input.MemoryID, start, end)
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(renderSlice(meta, fmt.Sprintf("lines %d..%d", start, end), []byte(slice)))
	}

	data, err := h.store.GetBytes(input.MemoryID, 0, 65536)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(renderSlice(meta, fmt.Sprintf("bytes 0..%d", len(data)), data))
}

// HandleMetadata handles the memory_metadata tool call.
func (h *Handlers) HandleMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MetadataRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.MemoryID == "" {
		return errorResult(errors.NewInvalidRequest("memory_id is required")), nil
	}

	meta, err := h.store.GetMetadata(input.MemoryID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(meta)
}

// HandleList handles the memory_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := h.store.List(input.Type, limit)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"memories": rows, "count": len(rows)})
}

// HandleStats handles the memory_stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.store.Stats()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(stats)
}

func renderSlice(meta *memory.Meta, rangeDesc string, data []byte) FetchResult {
	res := FetchResult{
		MemoryID: meta.MemoryID,
		MIME:     meta.MIME,
		Range:    rangeDesc,
	}
	if isTextMIME(meta.MIME) {
		res.Content = string(data)
	} else {
		res.Content = base64.StdEncoding.EncodeToString(data)
		res.Base64 = true
	}
	return res
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

// decode round-trips the request's argument map through JSON into a typed
// request struct, so handlers never pick fields out of map[string]any by
// hand.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var out T
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return out, fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode arguments into %T: %w", out, err)
	}
	return out, nil
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if irisErr, ok := err.(*errors.IrisError); ok {
		errorObj := map[string]any{
			"code":    irisErr.Code,
			"message": irisErr.Message,
		}
		// Internal errors keep their details out of the wire to avoid
		// leaking paths or SQL text.
		if irisErr.Code != errors.ErrInternal && irisErr.Details != nil {
			errorObj["details"] = irisErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
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
