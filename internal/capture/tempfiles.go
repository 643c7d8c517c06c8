package capture

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/synthesishq/synthesis-agent/internal/logging"
	"github.com/synthesishq/synthesis-agent/internal/metrics"
)

// TempFiles manages screenshot temp files under one directory with a
// fixed name prefix. The prefix is what makes orphans from a crashed
// process recognizable at the next startup.
type TempFiles struct {
	Dir     string
	Prefix  string
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewTempFiles uses the system temp directory when dir is empty.
func NewTempFiles(dir, prefix string, m *metrics.Metrics, logger *logging.Logger) *TempFiles {
	if dir == "" {
		dir = os.TempDir()
	}
	return &TempFiles{Dir: dir, Prefix: prefix, logger: logger, metrics: m}
}

// NewPath returns a fresh unique screenshot path. The file is not created.
func (t *TempFiles) NewPath() string {
	return filepath.Join(t.Dir, t.Prefix+uuid.NewString()+".png")
}

// Cleanup removes a temp file, tolerating it already being gone.
func (t *TempFiles) Cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		t.logger.Warn("failed to remove temp file", "path", path, "error", err.Error())
	}
}

// SweepOrphans removes every file in Dir carrying the prefix. Called once
// at startup to clean up after crashes.
func (t *TempFiles) SweepOrphans() int {
	matches, err := filepath.Glob(filepath.Join(t.Dir, t.Prefix+"*"))
	if err != nil {
		t.logger.Warn("orphan sweep glob failed", "error", err.Error())
		return 0
	}

	removed := 0
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			t.logger.Warn("failed to remove orphaned temp file", "path", path, "error", err.Error())
			continue
		}
		removed++
	}

	if removed > 0 {
		t.logger.Info("swept orphaned temp files", "count", removed)
		if t.metrics != nil {
			t.metrics.TempFilesSwept.Add(float64(removed))
		}
	}
	return removed
}
