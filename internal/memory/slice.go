package memory

import (
	"strings"

	"github.com/irisworks/iris/internal/errors"
)

// GetSlice returns lines lineStart..lineEnd (1-based, inclusive) of a text
// blob. Bounds are clamped to the available range, but the *requested*
// range is capped first: asking for more than the configured maximum fails
// with SLICE_TOO_LARGE and produces no partial output.
func (s *Store) GetSlice(memoryID string, lineStart, lineEnd int) (string, error) {
	if lineStart < 1 {
		return "", errors.NewInvalidRequest("line_start must be >= 1")
	}
	if lineEnd < lineStart {
		return "", errors.NewInvalidRequest("line_end must be >= line_start")
	}
	requested := lineEnd - lineStart + 1
	if requested > s.cfg.MaxSliceLines {
		return "", errors.NewSliceTooLarge(requested, s.cfg.MaxSliceLines)
	}

	full, err := s.GetFull(memoryID)
	if err != nil {
		return "", err
	}

	// Lines keep their terminators so slices are byte-faithful to the
	// original content.
	lines := strings.SplitAfter(full, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	if lineStart > len(lines) {
		return "", nil
	}
	if lineEnd > len(lines) {
		lineEnd = len(lines)
	}
	return strings.Join(lines[lineStart-1:lineEnd], ""), nil
}

// CountLines reports how many lines a text blob has.
func (s *Store) CountLines(memoryID string) (int, error) {
	full, err := s.GetFull(memoryID)
	if err != nil {
		return 0, err
	}
	if full == "" {
		return 0, nil
	}
	n := strings.Count(full, "\n")
	if !strings.HasSuffix(full, "\n") {
		n++
	}
	return n, nil
}

// GetBytes returns length bytes starting at offset (0-based). The length
// is capped; the range is clamped to the blob size.
func (s *Store) GetBytes(memoryID string, offset, length int) ([]byte, error) {
	if offset < 0 {
		return nil, errors.NewInvalidRequest("byte_offset must be >= 0")
	}
	if length <= 0 {
		return nil, errors.NewInvalidRequest("byte_length must be > 0")
	}
	if length > s.cfg.MaxSliceBytes {
		return nil, errors.NewSliceTooLarge(length, s.cfg.MaxSliceBytes)
	}

	data, err := s.GetBinary(memoryID)
	if err != nil {
		return nil, err
	}
	if offset >= len(data) {
		return nil, nil
	}
	end := offset + length
	if end > len(data) {
		end = len(data)
	}
	return data[offset:end], nil
}
