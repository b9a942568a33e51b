// SPDX-License-Identifier: AGPL-3.0-only
package tools

import (
	"context"
	"fmt"

	"github.com/aman-senpai/macassist/internal/llm"
)

// ToolError is the typed failure a tool execution reports. The agent loop
// formats it into the tool-result message instead of aborting the turn.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Handler executes one tool call. Arguments arrive as an already-parsed
// JSON object; malformed payloads never reach a handler.
type Handler func(ctx context.Context, args map[string]interface{}) (string, error)

// Registry is the narrow contract the agent loop consumes: a static schema
// catalogue plus execution by name.
type Registry interface {
	Schemas() []llm.ToolSchema
	Execute(ctx context.Context, name string, args map[string]interface{}) (string, error)
}

// Set is the standard Registry implementation: an ordered catalogue of
// schemas with one handler per tool name.
type Set struct {
	schemas  []llm.ToolSchema
	handlers map[string]Handler
}

// NewSet creates an empty tool set.
func NewSet() *Set {
	return &Set{handlers: map[string]Handler{}}
}

// Register adds a tool. Registering a duplicate name is a programming
// error and is rejected.
func (s *Set) Register(schema llm.ToolSchema, handler Handler) error {
	if schema.Name == "" {
		return fmt.Errorf("tool schema has no name")
	}
	if handler == nil {
		return fmt.Errorf("tool %s has no handler", schema.Name)
	}
	if _, exists := s.handlers[schema.Name]; exists {
		return fmt.Errorf("tool %s already registered", schema.Name)
	}
	s.schemas = append(s.schemas, schema)
	s.handlers[schema.Name] = handler
	return nil
}

// Merge folds every tool from other into s. Name collisions fail the merge.
func (s *Set) Merge(other *Set) error {
	if other == nil {
		return nil
	}
	for _, schema := range other.schemas {
		if err := s.Register(schema, other.handlers[schema.Name]); err != nil {
			return err
		}
	}
	return nil
}

// Schemas returns the catalogue in registration order.
func (s *Set) Schemas() []llm.ToolSchema {
	out := make([]llm.ToolSchema, len(s.schemas))
	copy(out, s.schemas)
	return out
}

// Execute dispatches one call. An unknown name is a ToolError, as is any
// failure the handler reports.
func (s *Set) Execute(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	handler, ok := s.handlers[name]
	if !ok {
		return "", &ToolError{Tool: name, Err: fmt.Errorf("unknown tool")}
	}
	out, err := handler(ctx, args)
	if err != nil {
		return "", &ToolError{Tool: name, Err: err}
	}
	return out, nil
}
