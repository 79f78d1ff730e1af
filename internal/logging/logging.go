// Package logging writes operational diagnostics to the sandbox's
// append-only ops.log. Surfaced errors carry only a short code and
// one-line message; everything else lands here.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// OpsLogPath is the ops log location relative to the sandbox root.
const OpsLogPath = ".iris/memory/logs/ops.log"

// Open creates a JSON-lines logger appending to root/.iris/memory/logs/ops.log.
// The caller owns the returned logger and should Sync it on shutdown.
func Open(root string) (*zap.Logger, error) {
	path := filepath.Join(root, filepath.FromSlash(OpsLogPath))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(f),
		zap.InfoLevel,
	)
	return zap.New(core), nil
}

// Nop returns a logger that discards everything. Components take a
// *zap.Logger dependency; tests and callers that do not care pass this.
func Nop() *zap.Logger {
	return zap.NewNop()
}
