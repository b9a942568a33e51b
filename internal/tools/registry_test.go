// SPDX-License-Identifier: AGPL-3.0-only
package tools

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/aman-senpai/macassist/internal/llm"
)

func echoHandler(ctx context.Context, args map[string]interface{}) (string, error) {
	s, _ := args["text"].(string)
	return s, nil
}

func TestRegisterAndExecute(t *testing.T) {
	set := NewSet()
	if err := set.Register(llm.NewToolSchema("echo", "Echoes text", nil, nil), echoHandler); err != nil {
		t.Fatalf("Register: %v", err)
	}

	out, err := set.Execute(context.Background(), "echo", map[string]interface{}{"text": "hello"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "hello" {
		t.Errorf("Expected 'hello', got %q", out)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	set := NewSet()
	schema := llm.NewToolSchema("echo", "Echoes text", nil, nil)
	if err := set.Register(schema, echoHandler); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := set.Register(schema, echoHandler); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}

func TestRegisterRejectsInvalid(t *testing.T) {
	set := NewSet()
	if err := set.Register(llm.ToolSchema{}, echoHandler); err == nil {
		t.Error("Expected nameless schema to be rejected")
	}
	if err := set.Register(llm.NewToolSchema("x", "", nil, nil), nil); err == nil {
		t.Error("Expected nil handler to be rejected")
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	set := NewSet()
	_, err := set.Execute(context.Background(), "nope", nil)
	var toolErr *ToolError
	if !stderrors.As(err, &toolErr) {
		t.Fatalf("Expected *ToolError, got %v", err)
	}
	if toolErr.Tool != "nope" {
		t.Errorf("Expected tool name in error, got %q", toolErr.Tool)
	}
	if !strings.Contains(err.Error(), "unknown tool") {
		t.Errorf("Expected 'unknown tool' in message, got %q", err.Error())
	}
}

func TestExecuteWrapsHandlerError(t *testing.T) {
	set := NewSet()
	cause := stderrors.New("boom")
	if err := set.Register(llm.NewToolSchema("fail", "", nil, nil), func(ctx context.Context, args map[string]interface{}) (string, error) {
		return "", cause
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := set.Execute(context.Background(), "fail", nil)
	if !stderrors.Is(err, cause) {
		t.Errorf("Expected wrapped cause to be reachable, got %v", err)
	}
}

func TestSchemasKeepRegistrationOrder(t *testing.T) {
	set := NewSet()
	for _, name := range []string{"alpha", "beta", "gamma"} {
		if err := set.Register(llm.NewToolSchema(name, "", nil, nil), echoHandler); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}
	schemas := set.Schemas()
	if len(schemas) != 3 {
		t.Fatalf("Expected 3 schemas, got %d", len(schemas))
	}
	for i, want := range []string{"alpha", "beta", "gamma"} {
		if schemas[i].Name != want {
			t.Errorf("Schema %d: expected %s, got %s", i, want, schemas[i].Name)
		}
	}
}

func TestMerge(t *testing.T) {
	a := NewSet()
	b := NewSet()
	if err := a.Register(llm.NewToolSchema("one", "", nil, nil), echoHandler); err != nil {
		t.Fatal(err)
	}
	if err := b.Register(llm.NewToolSchema("two", "", nil, nil), echoHandler); err != nil {
		t.Fatal(err)
	}

	if err := a.Merge(b); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(a.Schemas()) != 2 {
		t.Errorf("Expected 2 schemas after merge, got %d", len(a.Schemas()))
	}
	if err := a.Merge(nil); err != nil {
		t.Errorf("Merge(nil) must be a no-op, got %v", err)
	}
}

func TestMergeCollision(t *testing.T) {
	a := NewSet()
	b := NewSet()
	schema := llm.NewToolSchema("dup", "", nil, nil)
	if err := a.Register(schema, echoHandler); err != nil {
		t.Fatal(err)
	}
	if err := b.Register(schema, echoHandler); err != nil {
		t.Fatal(err)
	}
	if err := a.Merge(b); err == nil {
		t.Error("Expected merge collision to fail")
	}
}
