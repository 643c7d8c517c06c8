package auth

import (
	"context"
	"os/exec"
)

// ExecOpener opens URLs through the platform's `open` command.
type ExecOpener struct{}

func (ExecOpener) OpenURL(ctx context.Context, rawURL string) error {
	return exec.CommandContext(ctx, "open", rawURL).Run()
}
