package compressor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"texture-compressor-go/internal/texture"
)

// DefaultBinary is the compressonator CLI looked up on PATH.
const DefaultBinary = "compressonatorcli"

// ErrBinaryNotFound is returned when the external compressor is missing.
var ErrBinaryNotFound = errors.New("compression binary not found")

// waitDelay caps how long Wait blocks on inherited pipes after a kill.
const waitDelay = 2 * time.Second

// CLIEncoder shells out to an external block compressor.
type CLIEncoder struct {
	binary string
}

// NewCLIEncoder resolves binary on PATH (or as a path) and returns an encoder.
func NewCLIEncoder(binary string) (*CLIEncoder, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBinaryNotFound, binary, err)
	}
	return &CLIEncoder{binary: resolved}, nil
}

// Name returns the resolved binary path.
func (c *CLIEncoder) Name() string {
	return c.binary
}

// Args returns the argument list passed to the binary for job.
func (c *CLIEncoder) Args(job texture.Job) []string {
	return []string{
		"-fd", job.Format.Code,
		"-nomipmap",
		job.InputPath,
		job.OutputPath,
	}
}

// Encode runs the binary and succeeds on exit status 0.
func (c *CLIEncoder) Encode(ctx context.Context, job texture.Job) error {
	cmd := exec.CommandContext(ctx, c.binary, c.Args(job)...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		msg = strings.TrimSpace(stdout.String())
	}
	if msg == "" {
		return fmt.Errorf("compressor failed: %w", err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
