// Package ffmpeg runs the ffmpeg command line tool.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

// ErrToolFailed matches every *ToolError with errors.Is.
var ErrToolFailed = errors.New("ffmpeg failed")

// DefaultPath is the binary looked up in PATH when no path is configured.
const DefaultPath = "ffmpeg"

// Runner executes ffmpeg synchronously.
type Runner struct {
	path string
}

// NewRunner creates a Runner for the binary at path.
// If path is empty, it defaults to "ffmpeg" (found via PATH).
func NewRunner(path string) *Runner {
	if path == "" {
		path = DefaultPath
	}
	return &Runner{path: path}
}

// Path returns the binary the runner invokes.
func (r *Runner) Path() string {
	return r.path
}

// Run executes ffmpeg with args and waits for it to exit.
// A missing binary or a non-zero exit returns a *ToolError carrying stderr.
func (r *Runner) Run(ctx context.Context, args ...string) error {
	// #nosec G204 - path is set from configuration, not user input
	cmd := exec.CommandContext(ctx, r.path, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &ToolError{
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return nil
}

// ToolError represents a failed ffmpeg invocation, including its stderr output.
type ToolError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg error: %v\nargs: %v", e.Err, e.Args)
	}
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrToolFailed.
func (e *ToolError) Is(target error) bool {
	return target == ErrToolFailed
}

// NotFound reports whether the binary could not be started at all.
func (e *ToolError) NotFound() bool {
	return errors.Is(e.Err, exec.ErrNotFound) || errors.Is(e.Err, fs.ErrNotExist)
}
