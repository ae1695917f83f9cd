package worker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/shaycichocki/missionctl/pkg/models"
)

// Backend runs a work unit to completion in an isolated workspace and
// returns its result envelope. Implementations own process lifecycle;
// Run must never block past ctx's deadline.
type Backend interface {
	Run(ctx context.Context, workspacePath string, unit models.WorkUnit) (models.ResultEnvelope, error)
}

// LocalSubprocessBackend runs a fixed command line per unit, in the
// workspace clone the caller provisioned, and parses its MC_RESULT
// envelope from combined stdout/stderr.
type LocalSubprocessBackend struct {
	// Command is the program to invoke, e.g. "claude" or a wrapper script.
	Command string
	// Args are appended after Command; "{description}" is substituted
	// with the unit's description before exec.
	Args []string
	// Timeout bounds a single unit's execution; zero means no timeout
	// beyond ctx's own deadline.
	Timeout time.Duration
}

// Run executes the configured command in workspacePath and parses its
// output. A non-zero exit or timeout is reflected as a parse/transient
// envelope rather than a Go error, so the caller's classification layer
// makes the retry/abandon decision uniformly.
func (b *LocalSubprocessBackend) Run(ctx context.Context, workspacePath string, unit models.WorkUnit) (models.ResultEnvelope, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if b.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	args := make([]string, len(b.Args))
	for i, a := range b.Args {
		args[i] = strings.ReplaceAll(a, "{description}", unit.Description)
	}

	cmd := exec.CommandContext(runCtx, b.Command, args...)
	cmd.Dir = workspacePath

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	env := parseEnvelope(buf.String())
	env.WorkerDuration = duration

	if runCtx.Err() == context.DeadlineExceeded {
		env.ExitStatus = 1
		env.ErrorKind = models.ErrorTransient
		env.Summary = fmt.Sprintf("worker timed out after %s", b.Timeout)
		return env, nil
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			env.ExitStatus = exitErr.ExitCode()
			if env.ErrorKind == "" {
				env.ErrorKind = models.ErrorContent
			}
			return env, nil
		}
		// Process never started: this is infrastructure, not worker content.
		return env, fmt.Errorf("spawn worker: %w", err)
	}

	return env, nil
}

var _ Backend = (*LocalSubprocessBackend)(nil)
