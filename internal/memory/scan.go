package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/irisworks/iris/internal/errors"
)

// RecoverIndex rebuilds missing index rows by scanning warm/. A corrupt or
// lost meta.sqlite is recoverable because every blob carries its own
// identity in its filename; recovered rows get type OTHER and a derived
// title. Returns the number of rows recovered.
func (s *Store) RecoverIndex() (int, error) {
	warmDir := filepath.Join(s.root, ".iris", "memory", "warm")
	recovered := 0

	err := filepath.WalkDir(warmDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".zst") {
			return nil
		}

		sha := strings.TrimSuffix(d.Name(), ".zst")
		if len(sha) != 64 {
			s.logger.Warn("skipping foreign file in warm/", zap.String("path", path))
			return nil
		}
		if _, err := getMeta(s.db, sha); err == nil {
			return nil // row intact
		} else if !errors.Is(err, errors.ErrNotFound) {
			return err
		}

		compressed, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		data, err := s.dec.DecodeAll(compressed, nil)
		if err != nil {
			s.logger.Warn("undecodable blob during recovery", zap.String("sha", sha), zap.Error(err))
			return nil
		}
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != sha {
			s.logger.Warn("blob content does not match filename hash", zap.String("sha", sha))
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		meta := &Meta{
			MemoryID:    sha,
			Type:        TypeOther,
			MIME:        "text/plain",
			Bytes:       int(info.Size()),
			Compression: CompressionZstd,
			Path:        blobRelPath(sha),
			SHA256:      sha,
			Title:       DeriveTitle(data, "text/plain"),
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		}
		if err := insertMeta(s.db, meta); err != nil && err != errDuplicateRow {
			return err
		}
		recovered++
		return nil
	})
	if err != nil {
		return recovered, errors.NewInternal(err)
	}

	if recovered > 0 {
		s.logger.Info("index recovery complete", zap.Int("recovered", recovered))
	}
	return recovered, nil
}
