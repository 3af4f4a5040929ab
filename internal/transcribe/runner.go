package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/archive-ingest/internal/metrics"
)

// stderrTail bounds how much tool stderr is kept for error messages.
const stderrTail = 2048

// Runner executes an external tool.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ToolError reports a failed tool invocation. ExitCode is -1 when the tool
// did not exit on its own (not found, killed, or timed out).
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	if e.ExitCode < 0 && e.Err != nil {
		msg = fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// ExecRunner runs tools as child processes.
type ExecRunner struct {
	Logger *zap.Logger
}

// Run starts name with args and waits for it. The process is killed when
// ctx ends.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	tool := filepath.Base(name)
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	elapsed := time.Since(started)
	if err == nil {
		metrics.ObserveTool(tool, "ok", elapsed)
		if r.Logger != nil {
			r.Logger.Debug("tool finished", zap.String("tool", tool), zap.Duration("elapsed", elapsed))
		}
		return nil
	}
	metrics.ObserveTool(tool, "error", elapsed)

	toolErr := &ToolError{Tool: tool, ExitCode: -1, Stderr: tail(stderr.String(), stderrTail), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 && ctx.Err() == nil {
		toolErr.ExitCode = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		toolErr.Err = ctx.Err()
	}
	return toolErr
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
