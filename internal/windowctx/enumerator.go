package windowctx

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"

	"github.com/synthesishq/synthesis-agent/internal/errors"
	"github.com/synthesishq/synthesis-agent/internal/logging"
)

// Enumerator correlates a selected region with the owning window.
// A nil match with a nil error means no window overlaps the region.
type Enumerator interface {
	FrontWindow(ctx context.Context, region Region) (*Match, error)
}

// helperMatch is the JSON shape the native helper prints in match mode.
// Fields are null when the helper could not determine them.
type helperMatch struct {
	AppName     *string `json:"appName"`
	BundleID    *string `json:"bundleId"`
	WindowTitle *string `json:"windowTitle"`
	PID         *int    `json:"pid"`
}

// HelperEnumerator invokes the native window-enumeration helper binary.
//
// In "match" mode the helper receives the region as four positional numeric
// arguments and prints the single correlated window. In "list" mode it
// prints the full front-to-back snapshot and correlation happens in-process
// via Correlate, which keeps the self-exclusion app name a parameter rather
// than a constant compiled into the helper.
type HelperEnumerator struct {
	Path       string
	Mode       string
	ExcludeApp string
	logger     *logging.Logger
}

// NewHelperEnumerator creates an enumerator for the configured helper.
func NewHelperEnumerator(path, mode, excludeApp string, logger *logging.Logger) *HelperEnumerator {
	return &HelperEnumerator{
		Path:       path,
		Mode:       mode,
		ExcludeApp: excludeApp,
		logger:     logger,
	}
}

// FrontWindow runs the helper and returns the correlated window.
func (h *HelperEnumerator) FrontWindow(ctx context.Context, region Region) (*Match, error) {
	if h.Mode == "list" {
		return h.frontWindowFromList(ctx, region)
	}
	return h.frontWindowFromMatch(ctx, region)
}

func (h *HelperEnumerator) frontWindowFromMatch(ctx context.Context, region Region) (*Match, error) {
	args := []string{
		strconv.FormatFloat(region.X, 'f', -1, 64),
		strconv.FormatFloat(region.Y, 'f', -1, 64),
		strconv.FormatFloat(region.Width, 'f', -1, 64),
		strconv.FormatFloat(region.Height, 'f', -1, 64),
	}

	out, err := exec.CommandContext(ctx, h.Path, args...).Output()
	if err != nil {
		return nil, &errors.ErrHelperExec{Helper: h.Path, Err: err}
	}

	var raw helperMatch
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &errors.ErrHelperOutput{Helper: h.Path, Err: err}
	}

	if raw.AppName == nil || *raw.AppName == "" {
		return nil, nil
	}
	m := &Match{AppName: *raw.AppName}
	if raw.BundleID != nil {
		m.BundleID = *raw.BundleID
	}
	if raw.WindowTitle != nil {
		m.Title = *raw.WindowTitle
	}
	if raw.PID != nil {
		m.PID = *raw.PID
	}
	return m, nil
}

func (h *HelperEnumerator) frontWindowFromList(ctx context.Context, region Region) (*Match, error) {
	out, err := exec.CommandContext(ctx, h.Path, "--list").Output()
	if err != nil {
		return nil, &errors.ErrHelperExec{Helper: h.Path, Err: err}
	}

	var windows []WindowInfo
	if err := json.Unmarshal(out, &windows); err != nil {
		return nil, &errors.ErrHelperOutput{Helper: h.Path, Err: err}
	}

	return Correlate(region, windows, h.ExcludeApp), nil
}
