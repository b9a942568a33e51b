// SPDX-License-Identifier: AGPL-3.0-only
package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aman-senpai/macassist/internal/command"
)

func builtinSet(t *testing.T) *Set {
	t.Helper()
	set, err := Builtin(command.NewExecutor(10 * time.Second))
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	return set
}

func TestBuiltinCatalogue(t *testing.T) {
	set := builtinSet(t)
	names := map[string]bool{}
	for _, s := range set.Schemas() {
		names[s.Name] = true
	}
	for _, want := range []string{"getCurrentDateTime", "runShellCommand", "readFile"} {
		if !names[want] {
			t.Errorf("Missing builtin tool %s", want)
		}
	}
}

func TestGetCurrentDateTime(t *testing.T) {
	set := builtinSet(t)
	out, err := set.Execute(context.Background(), "getCurrentDateTime", map[string]interface{}{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "20") { // some year
		t.Errorf("Expected a formatted date, got %q", out)
	}
}

func TestRunShellCommand(t *testing.T) {
	set := builtinSet(t)
	out, err := set.Execute(context.Background(), "runShellCommand", map[string]interface{}{
		"command": "printf hello",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "hello" {
		t.Errorf("Expected 'hello', got %q", out)
	}
}

func TestRunShellCommandMissingArg(t *testing.T) {
	set := builtinSet(t)
	_, err := set.Execute(context.Background(), "runShellCommand", map[string]interface{}{})
	if err == nil || !strings.Contains(err.Error(), "command") {
		t.Errorf("Expected missing-argument error, got %v", err)
	}
}

func TestRunShellCommandFailure(t *testing.T) {
	set := builtinSet(t)
	_, err := set.Execute(context.Background(), "runShellCommand", map[string]interface{}{
		"command": "exit 3",
	})
	if err == nil {
		t.Error("Expected non-zero exit to be an error")
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte("file body"), 0644); err != nil {
		t.Fatal(err)
	}

	set := builtinSet(t)
	out, err := set.Execute(context.Background(), "readFile", map[string]interface{}{"path": path})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "file body" {
		t.Errorf("Expected file contents, got %q", out)
	}
}

func TestReadFileTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	if err := os.WriteFile(path, make([]byte, maxFileToolBytes+100), 0644); err != nil {
		t.Fatal(err)
	}

	set := builtinSet(t)
	out, err := set.Execute(context.Background(), "readFile", map[string]interface{}{"path": path})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasSuffix(out, "[truncated]") {
		t.Error("Expected truncation marker")
	}
	if len(out) > maxFileToolBytes+len("\n[truncated]") {
		t.Errorf("Output not bounded: %d bytes", len(out))
	}
}

func TestReadFileMissing(t *testing.T) {
	set := builtinSet(t)
	_, err := set.Execute(context.Background(), "readFile", map[string]interface{}{
		"path": filepath.Join(t.TempDir(), "nope.txt"),
	})
	if err == nil {
		t.Error("Expected error for missing file")
	}
}
