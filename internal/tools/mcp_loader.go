// SPDX-License-Identifier: AGPL-3.0-only
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aman-senpai/macassist/internal/llm"
	"github.com/aman-senpai/macassist/internal/logging"
)

// MCPTools holds tools imported from external MCP servers plus the live
// sessions backing them. Close the sessions when the assistant shuts down.
type MCPTools struct {
	Set      *Set
	sessions []*mcp.ClientSession
}

// Close terminates every MCP session.
func (m *MCPTools) Close() {
	for _, session := range m.sessions {
		_ = session.Close()
	}
}

// LoadMCPTools reads an mcpServers JSON config, connects to each server and
// imports its tools into a Set. Servers that fail to connect are skipped
// with a warning; an empty config yields an empty set, not an error.
func LoadMCPTools(ctx context.Context, configPath string, logger *logging.Logger) (*MCPTools, error) {
	var cfg struct {
		MCP map[string]struct {
			Command string   `json:"command,omitempty"`
			Args    []string `json:"args,omitempty"`
			URL     string   `json:"url,omitempty"`
		} `json:"mcpServers"`
	}
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read MCP config: %w", err)
	}
	if err = json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse MCP config: %w", err)
	}

	loaded := &MCPTools{Set: NewSet()}

	for name, spec := range cfg.MCP {
		var tp mcp.Transport
		switch {
		case spec.Command != "":
			tp = &mcp.CommandTransport{Command: exec.Command(spec.Command, spec.Args...)}
		case spec.URL != "":
			tp = &mcp.SSEClientTransport{Endpoint: spec.URL}
		default:
			continue
		}

		cli := mcp.NewClient(&mcp.Implementation{Name: "macassist", Version: "1.0.0"}, nil)
		session, err := cli.Connect(ctx, tp, nil)
		if err != nil {
			logger.Warnf("Failed to connect to MCP server %s: %v", name, err)
			continue
		}
		loaded.sessions = append(loaded.sessions, session)

		resp, err := session.ListTools(ctx, nil)
		if err != nil {
			logger.Warnf("Failed to list tools for MCP server %s: %v", name, err)
			continue
		}
		for _, tl := range resp.Tools {
			params, err := decodeInputSchema(tl.InputSchema)
			if err != nil {
				logger.Warnf("Skipping tool %s: %v", tl.Name, err)
				continue
			}
			schema := llm.ToolSchema{
				Name:        tl.Name,
				Description: tl.Description,
				Parameters:  params,
			}
			sess := session
			handler := func(ctx context.Context, args map[string]interface{}) (string, error) {
				res, err := sess.CallTool(ctx, &mcp.CallToolParams{
					Name:      schema.Name,
					Arguments: args,
				})
				if err != nil {
					return "", err
				}
				out, _ := json.Marshal(res.Content)
				return string(out), nil
			}
			if err := loaded.Set.Register(schema, handler); err != nil {
				logger.Warnf("Skipping tool %s from server %s: %v", tl.Name, name, err)
			}
		}
	}

	return loaded, nil
}

// decodeInputSchema flattens an MCP input schema into the unified parameter
// map, patching empty object schemas: some OpenAI-compatible endpoints
// reject a function declaration whose properties map is empty.
func decodeInputSchema(inputSchema any) (map[string]interface{}, error) {
	params := map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	if inputSchema != nil {
		raw, err := json.Marshal(inputSchema)
		if err != nil {
			return nil, fmt.Errorf("marshal input schema: %w", err)
		}
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, fmt.Errorf("unmarshal input schema: %w", err)
		}
	}
	if params["type"] == "object" {
		props, _ := params["properties"].(map[string]interface{})
		if len(props) == 0 {
			params["properties"] = map[string]interface{}{
				"random_string": map[string]interface{}{
					"type":        "string",
					"description": "Dummy parameter for no-parameter tools",
				},
			}
			params["required"] = []string{"random_string"}
		}
	}
	return params, nil
}
