package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"

	"github.com/synthesishq/synthesis-agent/internal/errors"
	"github.com/synthesishq/synthesis-agent/internal/windowctx"
)

// Screenshotter writes a full-screen screenshot to the given path.
type Screenshotter interface {
	Capture(ctx context.Context, path string) error
}

// RegionSelector presents the selection overlay and reports the chosen
// rectangle. ok=false means the user cancelled (Escape) and is not an
// error.
type RegionSelector interface {
	Select(ctx context.Context) (region windowctx.Region, ok bool, err error)
}

// CommandScreenshotter shells out to the OS screenshot tool, appending
// the target path as the final argument.
type CommandScreenshotter struct {
	Command []string
}

func (s *CommandScreenshotter) Capture(ctx context.Context, path string) error {
	if len(s.Command) == 0 {
		return &errors.ErrHelperExec{Helper: "screenshot", Err: exec.ErrNotFound}
	}
	args := append(append([]string{}, s.Command[1:]...), path)
	if err := exec.CommandContext(ctx, s.Command[0], args...).Run(); err != nil {
		return &errors.ErrHelperExec{Helper: s.Command[0], Err: err}
	}
	return nil
}

// CommandRegionSelector runs the overlay command and reads the selected
// rectangle as a single JSON object from stdout. A non-zero exit or empty
// output is treated as cancellation.
type CommandRegionSelector struct {
	Command []string
}

func (s *CommandRegionSelector) Select(ctx context.Context) (windowctx.Region, bool, error) {
	if len(s.Command) == 0 {
		return windowctx.Region{}, false, nil
	}

	out, err := exec.CommandContext(ctx, s.Command[0], s.Command[1:]...).Output()
	if err != nil {
		return windowctx.Region{}, false, nil
	}
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return windowctx.Region{}, false, nil
	}

	var region windowctx.Region
	if err := json.Unmarshal(out, &region); err != nil {
		return windowctx.Region{}, false, &errors.ErrHelperOutput{Helper: s.Command[0], Err: err}
	}
	return region, true, nil
}
