// SPDX-License-Identifier: AGPL-3.0-only
package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// Result captures one shell invocation.
type Result struct {
	Command  string
	Output   string
	ExitCode int
	Err      string
	Duration time.Duration
}

// Executor runs shell commands with a bounded timeout. It backs the
// assistant's shell tool; it is a plain I/O wrapper with no knowledge of
// tools or conversations.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an executor whose commands are killed after timeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{timeout: timeout}
}

// Run executes command through sh -c, capturing combined output.
func (e *Executor) Run(ctx context.Context, command string) *Result {
	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	result := &Result{
		Command:  command,
		Duration: time.Since(start),
		Output:   strings.TrimSpace(stdout.String() + "\n" + stderr.String()),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		result.Err = err.Error()
	}
	return result
}
