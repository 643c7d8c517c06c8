package browserurl

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/synthesishq/synthesis-agent/internal/logging"
)

// ScriptRunner executes an inter-app scripting command and returns its raw
// output. Implementations must bound their own execution time.
type ScriptRunner interface {
	Run(ctx context.Context, script string) (string, error)
}

// OsascriptRunner runs AppleScript via the osascript binary. The script is
// written to a temp file first; passing multi-line scripts through -e is
// unreliable.
type OsascriptRunner struct {
	Timeout time.Duration
	logger  *logging.Logger
}

// NewOsascriptRunner creates a runner with the default 2-second bound.
func NewOsascriptRunner(logger *logging.Logger) *OsascriptRunner {
	return &OsascriptRunner{
		Timeout: 2 * time.Second,
		logger:  logger,
	}
}

// Run executes the script and returns its stdout.
func (r *OsascriptRunner) Run(ctx context.Context, script string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	tmpFile := filepath.Join(os.TempDir(), "synthesis-osascript-"+uuid.NewString()+".scpt")
	if err := os.WriteFile(tmpFile, []byte(script), 0600); err != nil {
		return "", err
	}
	defer os.Remove(tmpFile)

	out, err := exec.CommandContext(ctx, "osascript", tmpFile).Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			r.logger.Debug("osascript timed out")
		} else {
			r.logger.Debug("osascript failed", "error", err.Error())
		}
		return "", err
	}
	return string(out), nil
}
