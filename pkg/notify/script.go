package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// scriptChannel pipes the run result to a user script, for integrations the
// built-in channels don't cover (pagers, CI annotations, local desktop
// notifications).
type scriptChannel struct {
	path string
}

// send marshals the run result to JSON and feeds it to the script's stdin.
// A non-zero exit is a send failure; stderr is included in the error.
func (c *scriptChannel) send(ctx context.Context, r Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.path) //nolint:gosec // path comes from user config, not user input
	cmd.Stdin = bytes.NewReader(data)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err = cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("script %s: %w, stderr: %s", c.path, err, stderr.String())
		}
		return fmt.Errorf("script %s: %w", c.path, err)
	}
	return nil
}
