// SPDX-License-Identifier: AGPL-3.0-only
package tools

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aman-senpai/macassist/internal/command"
	"github.com/aman-senpai/macassist/internal/llm"
)

// maxFileToolBytes bounds how much of a file the read tool returns to the
// model; larger files are truncated, not rejected.
const maxFileToolBytes = 64 * 1024

// Builtin returns the assistant's built-in tool set: the simple local I/O
// wrappers the model can call. exec runs the shell tool's commands.
func Builtin(exec *command.Executor) (*Set, error) {
	set := NewSet()

	datetime := llm.NewToolSchema(
		"getCurrentDateTime",
		"Returns the current local date and time.",
		map[string]interface{}{},
		nil,
	)
	if err := set.Register(datetime, func(ctx context.Context, args map[string]interface{}) (string, error) {
		return time.Now().Format("Monday, January 2, 2006 at 3:04:05 PM MST"), nil
	}); err != nil {
		return nil, err
	}

	shell := llm.NewToolSchema(
		"runShellCommand",
		"Runs a shell command on the user's machine and returns its output.",
		map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "The shell command to run.",
			},
		},
		[]string{"command"},
	)
	if err := set.Register(shell, func(ctx context.Context, args map[string]interface{}) (string, error) {
		cmdStr, ok := args["command"].(string)
		if !ok || cmdStr == "" {
			return "", fmt.Errorf("missing required argument: command")
		}
		result := exec.Run(ctx, cmdStr)
		if result.Err != "" {
			return "", fmt.Errorf("%s (output: %s)", result.Err, result.Output)
		}
		return result.Output, nil
	}); err != nil {
		return nil, err
	}

	readFile := llm.NewToolSchema(
		"readFile",
		"Reads a text file from the user's machine and returns its contents.",
		map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Absolute path of the file to read.",
			},
		},
		[]string{"path"},
	)
	if err := set.Register(readFile, func(ctx context.Context, args map[string]interface{}) (string, error) {
		path, ok := args["path"].(string)
		if !ok || path == "" {
			return "", fmt.Errorf("missing required argument: path")
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		if len(raw) > maxFileToolBytes {
			return string(raw[:maxFileToolBytes]) + "\n[truncated]", nil
		}
		return string(raw), nil
	}); err != nil {
		return nil, err
	}

	return set, nil
}
