package device

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// execResult is the explicit outcome of one child process: output, a timeout,
// or a spawn failure. Reload commands sever the SSH session, so callers need
// to distinguish "timed out" from "failed" rather than treating both as
// errors.
type execResult struct {
	stdout   string
	stderr   string
	exitCode int
	timedOut bool
	err      error
}

// runner abstracts child-process execution so tests can script outcomes.
type runner interface {
	run(ctx context.Context, stdin string, timeout time.Duration, name string, args ...string) execResult
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, stdin string, timeout time.Duration, name string, args ...string) execResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := execResult{stdout: stdout.String(), stderr: stderr.String()}

	if ctx.Err() == context.DeadlineExceeded {
		res.timedOut = true
		return res
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.exitCode = exitErr.ExitCode()
		} else {
			res.err = err
		}
	}
	return res
}
