package memory

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/irisworks/iris/internal/config"
	"github.com/irisworks/iris/internal/errors"
)

// Store is the content-addressed memory store for one sandbox. Blobs are
// immutable once written; identical content always maps to the same
// memory_id, so duplicate puts are free.
type Store struct {
	root   string
	cfg    *config.Config
	db     *sql.DB
	logger *zap.Logger

	enc *zstd.Encoder
	dec *zstd.Decoder

	// Single writer: puts are serialized; reads go straight to sqlite/disk.
	putMu sync.Mutex
}

// Open opens the store rooted at the sandbox root. The workspace must be
// bootstrapped first.
func Open(root string, cfg *config.Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := openIndex(root, cfg.DBMaxOpenConns)
	if err != nil {
		return nil, errors.NewIndexCorrupt(err)
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(cfg.CompressionLevel)))
	if err != nil {
		db.Close()
		return nil, errors.NewInternal(err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, errors.NewInternal(err)
	}

	return &Store{root: root, cfg: cfg, db: db, logger: logger, enc: enc, dec: dec}, nil
}

// Close releases the index handle and codec state.
func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

// PutText stores a text payload and returns its capability handle. If the
// content is already present the existing handle is returned; no new row
// or file is created.
func (s *Store) PutText(text string, opts PutOptions) (Ref, error) {
	if opts.MIME == "" {
		opts.MIME = "text/plain"
	}
	return s.put([]byte(text), opts)
}

// PutBinary stores a binary payload. MIME is required.
func (s *Store) PutBinary(data []byte, opts PutOptions) (Ref, error) {
	if opts.MIME == "" {
		return Ref{}, errors.NewInvalidRequest("mime is required for binary payloads")
	}
	return s.put(data, opts)
}

func (s *Store) put(data []byte, opts PutOptions) (Ref, error) {
	if opts.Type == "" {
		opts.Type = TypeOther
	}

	sum := sha256.Sum256(data)
	sha := hex.EncodeToString(sum[:])

	s.putMu.Lock()
	defer s.putMu.Unlock()

	// Dedup: same content, same id, no new row, no new file.
	if existing, err := getMeta(s.db, sha); err == nil {
		return existing.Ref(), nil
	} else if !errors.Is(err, errors.ErrNotFound) {
		return Ref{}, err
	}

	compressed := s.enc.EncodeAll(data, nil)
	relPath := blobRelPath(sha)
	absPath := filepath.Join(s.root, ".iris", "memory", filepath.FromSlash(relPath))

	// The blob hits disk before the row: readers tolerate a row without a
	// file only inside this narrow window, never the reverse.
	if err := s.writeBlob(absPath, compressed); err != nil {
		return Ref{}, err
	}

	title := opts.Title
	if title == "" {
		title = DeriveTitle(data, opts.MIME)
	}
	if len(title) > TitleMaxChars {
		title = title[:TitleMaxChars]
	}

	meta := &Meta{
		MemoryID:    sha,
		Type:        opts.Type,
		Subtype:     opts.Subtype,
		MIME:        opts.MIME,
		Bytes:       len(compressed),
		Compression: CompressionZstd,
		Path:        relPath,
		SHA256:      sha,
		Title:       title,
		Tags:        opts.Tags,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := insertMeta(s.db, meta); err != nil {
		if err == errDuplicateRow {
			// Lost a race against an identical put; the winner's row is
			// observationally equivalent.
			winner, getErr := getMeta(s.db, sha)
			if getErr != nil {
				return Ref{}, getErr
			}
			return winner.Ref(), nil
		}
		// The row failed; remove the orphan file so the store never holds
		// a blob the index cannot reach... except via a recovery scan.
		os.Remove(absPath)
		return Ref{}, err
	}

	s.logger.Info("blob stored",
		zap.String("memory_id", sha),
		zap.String("type", meta.Type),
		zap.Int("raw_bytes", len(data)),
		zap.Int("compressed_bytes", meta.Bytes))
	return meta.Ref(), nil
}

// writeBlob writes the compressed frame atomically: temp file, then rename.
// A partial write never leaves a readable blob behind.
func (s *Store) writeBlob(absPath string, compressed []byte) error {
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return s.diskErr(err)
	}
	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		os.Remove(tmp)
		return s.diskErr(err)
	}
	if err := os.Rename(tmp, absPath); err != nil {
		os.Remove(tmp)
		return s.diskErr(err)
	}
	return nil
}

func (s *Store) diskErr(err error) error {
	if stderrors.Is(err, syscall.ENOSPC) {
		return errors.NewStoreFull(err)
	}
	return errors.NewInternal(err)
}

// GetFull decompresses and returns the full text of a blob.
func (s *Store) GetFull(memoryID string) (string, error) {
	data, err := s.GetBinary(memoryID)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetBinary decompresses and returns the full bytes of a blob, verifying
// content against the stored hash.
func (s *Store) GetBinary(memoryID string) ([]byte, error) {
	meta, err := s.GetMetadata(memoryID)
	if err != nil {
		return nil, err
	}
	return s.readBlob(meta)
}

func (s *Store) readBlob(meta *Meta) ([]byte, error) {
	absPath := filepath.Join(s.root, ".iris", "memory", filepath.FromSlash(meta.Path))
	compressed, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewBlobMissing(meta.MemoryID)
		}
		return nil, errors.NewInternal(err)
	}

	data, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, errors.NewIndexCorrupt(fmt.Errorf("decompress %s: %w", meta.MemoryID, err))
	}

	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != meta.SHA256 {
		return nil, errors.NewIndexCorrupt(fmt.Errorf("content hash mismatch for %s", meta.MemoryID))
	}
	return data, nil
}

// GetMetadata returns the index row for a blob, or NOT_FOUND.
func (s *Store) GetMetadata(memoryID string) (*Meta, error) {
	return getMeta(s.db, memoryID)
}

// List returns up to limit index rows, newest first, optionally filtered
// by type.
func (s *Store) List(typeFilter string, limit int) ([]Meta, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return listMeta(s.db, typeFilter, limit)
}

// Stats summarizes the index.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{ByType: make(map[string]int)}

	row := s.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(bytes), 0) FROM memories")
	if err := row.Scan(&stats.Blobs, &stats.CompressedBytes); err != nil {
		return nil, errors.NewIndexCorrupt(err)
	}

	rows, err := s.db.Query("SELECT type, COUNT(*) FROM memories GROUP BY type")
	if err != nil {
		return nil, errors.NewIndexCorrupt(err)
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, errors.NewIndexCorrupt(err)
		}
		stats.ByType[typ] = n
	}
	return stats, rows.Err()
}

// blobRelPath shards blobs by the first two hex chars of the hash.
func blobRelPath(sha string) string {
	return "warm/" + sha[:2] + "/" + sha + ".zst"
}

// firstLine returns the first non-empty line of text, trimmed.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
