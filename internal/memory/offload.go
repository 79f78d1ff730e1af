package memory

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// PointerMarker is the literal trailing marker of every offloaded summary.
// The LLM system prompt trains the model to recognize it, so it is never
// translated or reworded.
const PointerMarker = "[See memory_refs]"

// OffloadResult pairs the inline replacement summary with the capability
// handle for the stored payload.
type OffloadResult struct {
	Summary     string
	Ref         Ref
	TokensSaved int
}

// Offload stores a large text payload and produces the pointer-protocol
// summary that replaces it inline: the head of the content, a truncation
// note, and the marker.
func (s *Store) Offload(content string, opts PutOptions) (*OffloadResult, error) {
	ref, err := s.PutText(content, opts)
	if err != nil {
		return nil, err
	}

	head := content
	if len(head) > s.cfg.SummaryHeadChars {
		head = head[:s.cfg.SummaryHeadChars]
	}
	summary := fmt.Sprintf("%s\n\n[truncated %d chars]\n\n%s", head, len(content), PointerMarker)

	return &OffloadResult{
		Summary:     summary,
		Ref:         ref,
		TokensSaved: len(content) / 4,
	}, nil
}

// OffloadBinary stores a binary payload. Binary content has no meaningful
// head, so the summary is a stable textual rendering of its shape.
func (s *Store) OffloadBinary(data []byte, opts PutOptions) (*OffloadResult, error) {
	ref, err := s.PutBinary(data, opts)
	if err != nil {
		return nil, err
	}
	summary := fmt.Sprintf("binary blob, mime=%s, bytes=%d\n\n%s", opts.MIME, len(data), PointerMarker)
	return &OffloadResult{
		Summary:     summary,
		Ref:         ref,
		TokensSaved: len(data) / 4,
	}, nil
}

// AggregateSummary renders a summary for a message carrying several refs
// (explicit aggregation only). Refs are listed in order; the marker
// appears once.
func AggregateSummary(refs []Ref) string {
	var b strings.Builder
	for i, r := range refs {
		fmt.Fprintf(&b, "%d. %s (%s, %s, %d bytes compressed)\n", i+1, r.Title, r.ID[:12], r.MIME, r.Bytes)
	}
	b.WriteString("\n")
	b.WriteString(PointerMarker)
	return b.String()
}

// DeriveTitle produces a short human label for a payload. Markdown gets
// its first heading; other text falls back to its first non-empty line.
func DeriveTitle(data []byte, mime string) string {
	if strings.HasPrefix(mime, "text/") || mime == "application/json" {
		if title := markdownHeading(data); title != "" {
			return clampTitle(title)
		}
		if line := firstLine(string(data)); line != "" {
			return clampTitle(line)
		}
	}
	return fmt.Sprintf("%s blob (%d bytes)", mime, len(data))
}

// markdownHeading returns the text of the first heading, if any.
func markdownHeading(source []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	var title string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			title = strings.TrimSpace(string(h.Text(source)))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}

func clampTitle(s string) string {
	if len(s) > TitleMaxChars {
		return s[:TitleMaxChars]
	}
	return s
}
