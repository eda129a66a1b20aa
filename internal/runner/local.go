package runner

import (
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/nlsh-dev/nlsh/internal/errors"
)

// shellArgs builds the invocation for the platform default shell with a
// pipefail-equivalent flag when the shell supports one, so pipeline
// failures surface in the exit code.
func shellArgs(shell, command string) []string {
	switch filepath.Base(shell) {
	case "bash", "zsh", "ksh":
		return []string{"-o", "pipefail", "-c", command}
	default:
		return []string{"-c", command}
	}
}

// defaultShell returns $SHELL, falling back to /bin/sh.
func defaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

// runLocal executes the command via the local shell, streaming output.
func (r *Runner) runLocal(ctx context.Context, command string, opts Options) (Result, error) {
	shell := defaultShell()

	execCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, shell, shellArgs(shell, command)...)
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}

	stdout := newStreamWriter(opts.OnStdout)
	stderr := newStreamWriter(opts.OnStderr)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.log.Debug("local exec: %s", command)
	runErr := cmd.Run()

	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if execCtx.Err() == context.DeadlineExceeded && opts.Timeout > 0 {
		result.ExitCode = -1
		return result, &TimeoutError{Command: command, Timeout: opts.Timeout}
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if stderrors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		return result, errors.WrapWithCode(runErr, errors.ErrExec,
			"Couldn't run the command locally",
			"Make sure the command exists and is executable.")
	}

	result.ExitCode = 0
	return result, nil
}
