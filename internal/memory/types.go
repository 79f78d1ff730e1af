// Package memory is the content-addressed store for offloaded payloads:
// zstd-compressed blobs under .iris/memory/warm/ keyed by the SHA-256 of
// the uncompressed content, with a small sqlite index for metadata.
package memory

// Blob type classifiers for the memory index.
const (
	TypeToolOutput = "TOOL_OUTPUT"
	TypeWebScrape  = "WEB_SCRAPE"
	TypeFileList   = "FILE_LIST"
	TypeDocExtract = "DOC_EXTRACT"
	TypeUserUpload = "USER_UPLOAD"
	TypeOther      = "OTHER"
)

// CompressionZstd is the only supported compression scheme.
const CompressionZstd = "zstd"

// TitleMaxChars bounds the human label stored in the index.
const TitleMaxChars = 120

// Ref is the capability handle embedded in message metadata in place of
// inline content. Holding an ID grants read access through the fetch
// tool; no mutation is expressible through a Ref.
type Ref struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	MIME    string `json:"mime"`
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Bytes   int    `json:"bytes"`
}

// Meta is one row of the memory index.
type Meta struct {
	MemoryID    string   `json:"memory_id"` // SHA-256 hex of the uncompressed payload
	Type        string   `json:"type"`
	Subtype     string   `json:"subtype,omitempty"`
	MIME        string   `json:"mime"`
	Bytes       int      `json:"bytes"` // compressed size on disk
	Compression string   `json:"compression"`
	Path        string   `json:"path"` // CAS-relative: warm/<aa>/<sha>.zst
	SHA256      string   `json:"sha256"`
	Title       string   `json:"title"`
	Tags        []string `json:"tags,omitempty"`
	CreatedAt   string   `json:"created_at"` // ISO-8601 UTC
}

// Ref converts an index row to a capability handle.
func (m *Meta) Ref() Ref {
	return Ref{
		ID:      m.MemoryID,
		Title:   m.Title,
		MIME:    m.MIME,
		Type:    m.Type,
		Subtype: m.Subtype,
		Bytes:   m.Bytes,
	}
}

// PutOptions classifies a payload being stored.
type PutOptions struct {
	Type    string // required; one of the Type* constants
	Subtype string // free-form, e.g. tool name
	MIME    string // default text/plain
	Title   string // short human label; derived from content if empty
	Tags    []string
}

// Stats summarizes the store for inspection surfaces.
type Stats struct {
	Blobs           int            `json:"blobs"`
	CompressedBytes int64          `json:"compressed_bytes"`
	ByType          map[string]int `json:"by_type"`
}
