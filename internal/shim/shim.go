// Package shim wraps external command invocation (spec.md §4.1): the
// container runtime, zfs, and the system service manager's CLI fallbacks are
// all launched through Run, which captures stdout/stderr/exit and surfaces a
// typed failure instead of a bare error. Grounded on the teacher's
// file_ops.go defaultFileOps.Copy, which logs the command line before
// running it and wraps a non-zero exit with the captured output.
package shim

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/trunkctl/trunk/internal/trunkerr"
)

// Result is the successful outcome of a command invocation.
type Result struct {
	Stdout string
	Stderr string
}

// Run launches name with args, waits for it to exit, and decodes its output
// as UTF-8 (lossy on invalid sequences, which is acceptable on error paths
// per spec.md §4.1). No retries are attempted; callers decide.
func Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	exitCode := -1
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}
	full := append([]string{name}, args...)
	return res, trunkerr.Command(full, res.Stderr, exitCode)
}
