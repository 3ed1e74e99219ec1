package hardware

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const captureTimeout = 30 * time.Second

// ExecCamera shells out to the camera tool (libcamera-still on the Pi) for
// each capture.
type ExecCamera struct {
	command string
	log     zerolog.Logger
}

// NewExecCamera verifies the capture tool exists on PATH.
func NewExecCamera(command string, log zerolog.Logger) (*ExecCamera, error) {
	if _, err := exec.LookPath(command); err != nil {
		return nil, fmt.Errorf("camera tool %q not found: %w", command, err)
	}
	return &ExecCamera{command: command, log: log}, nil
}

// Capture writes a still to path and returns the path on success.
func (c *ExecCamera) Capture(ctx context.Context, path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating capture dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.command, "-o", path, "--nopreview")
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("capture failed: %w (%s)", err, out)
	}

	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("capture produced no file: %w", err)
	}
	c.log.Debug().Str("path", path).Msg("captured still")
	return path, nil
}

func (c *ExecCamera) Close() {}
