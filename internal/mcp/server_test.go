package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdltools/svls/internal/config"
	"github.com/hdltools/svls/internal/server"
)

// callTool simulates one MCP tool call and returns the text payload.
func (s *Server) callTool(toolName string, params map[string]interface{}) (string, bool, error) {
	ctx := context.Background()
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal params: %w", err)
	}
	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      toolName,
			Arguments: paramsJSON,
		},
	}

	var result *mcp.CallToolResult
	switch toolName {
	case "set_top_level":
		result, err = s.handleSetTopLevel(ctx, req)
	case "set_build_file":
		result, err = s.handleSetBuildFile(ctx, req)
	case "clear_design":
		result, err = s.handleClearDesign(ctx, req)
	case "get_scopes_by_module":
		result, err = s.handleGetScopesByModule(ctx, req)
	case "get_instances_of_module":
		result, err = s.handleGetInstancesOfModule(ctx, req)
	case "get_scope":
		result, err = s.handleGetScope(ctx, req)
	case "get_cone_paths":
		result, err = s.handleGetConePaths(ctx, req)
	case "get_doc_instances":
		result, err = s.handleGetDocInstances(ctx, req)
	case "get_modules_in_file":
		result, err = s.handleGetModulesInFile(ctx, req)
	case "search_symbols":
		result, err = s.handleSearchSymbols(ctx, req)
	case "get_definitions":
		result, err = s.handleGetDefinitions(ctx, req)
	case "get_diagnostics":
		result, err = s.handleGetDiagnostics(ctx, req)
	default:
		return "", false, errors.New("unknown tool: " + toolName)
	}
	if err != nil {
		return "", false, err
	}
	text := result.Content[0].(*mcp.TextContent).Text
	return text, result.IsError, nil
}

func newTestServer(t *testing.T, files map[string]string) *Server {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	cfg := config.Default()
	cfg.Performance.IndexingThreads = 2
	d := server.New(cfg, dir)
	require.NoError(t, d.Start(context.Background(), false))
	return NewServer(d)
}

const testDesign = `module leaf(input logic a, output logic y);
  assign y = a;
endmodule

module top;
  logic p, q;
  leaf l(.a(p), .y(q));
endmodule
`

func TestSetTopLevelAndScopeTools(t *testing.T) {
	s := newTestServer(t, map[string]string{"design.sv": testDesign})

	text, isErr, err := s.callTool("set_top_level", map[string]interface{}{"module": "top"})
	require.NoError(t, err)
	require.False(t, isErr, text)
	var status map[string]string
	require.NoError(t, json.Unmarshal([]byte(text), &status))
	assert.Equal(t, "top", status["top"])
	assert.Equal(t, "ready", status["state"])

	text, isErr, err = s.callTool("get_scopes_by_module", nil)
	require.NoError(t, err)
	require.False(t, isErr, text)
	var scopes []scopeInfo
	require.NoError(t, json.Unmarshal([]byte(text), &scopes))
	byName := map[string]scopeInfo{}
	for _, sc := range scopes {
		byName[sc.DeclName] = sc
	}
	require.Contains(t, byName, "leaf")
	assert.Equal(t, 1, byName["leaf"].Instances)
	assert.Equal(t, "top.l", byName["leaf"].Path)

	text, isErr, err = s.callTool("get_scope", map[string]interface{}{"path": "top"})
	require.NoError(t, err)
	require.False(t, isErr, text)
	var children []scopeChild
	require.NoError(t, json.Unmarshal([]byte(text), &children))
	names := make([]string, 0, len(children))
	for _, c := range children {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "l")
	assert.Contains(t, names, "p")
}

func TestConePathsTool(t *testing.T) {
	s := newTestServer(t, map[string]string{"design.sv": testDesign})
	_, _, err := s.callTool("set_top_level", map[string]interface{}{"module": "top"})
	require.NoError(t, err)

	text, isErr, err := s.callTool("get_cone_paths", map[string]interface{}{
		"direction": "loads", "path": "top.p",
	})
	require.NoError(t, err)
	require.False(t, isErr, text)
	var res struct {
		Paths []string `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &res))
	assert.Contains(t, res.Paths, "top.l.a")

	// Bad direction is a tool-level error, not a protocol error.
	text, isErr, err = s.callTool("get_cone_paths", map[string]interface{}{
		"direction": "sideways", "path": "top.p",
	})
	require.NoError(t, err)
	assert.True(t, isErr)
	assert.Contains(t, text, "sideways")
}

func TestToolsRequireActiveDesign(t *testing.T) {
	s := newTestServer(t, map[string]string{"design.sv": testDesign})

	text, isErr, err := s.callTool("get_scopes_by_module", nil)
	require.NoError(t, err)
	assert.True(t, isErr)
	assert.Contains(t, text, "design")
}

func TestWorkspaceTools(t *testing.T) {
	s := newTestServer(t, map[string]string{"design.sv": testDesign})

	text, isErr, err := s.callTool("search_symbols", map[string]interface{}{"query": "lea"})
	require.NoError(t, err)
	require.False(t, isErr, text)
	var syms []symbolInfo
	require.NoError(t, json.Unmarshal([]byte(text), &syms))
	require.NotEmpty(t, syms)
	assert.Equal(t, "leaf", syms[0].Name)

	text, isErr, err = s.callTool("get_definitions", map[string]interface{}{"name": "top"})
	require.NoError(t, err)
	require.False(t, isErr, text)

	_, isErr, err = s.callTool("get_definitions", map[string]interface{}{"name": "absent"})
	require.NoError(t, err)
	assert.True(t, isErr)
}

func TestGetModulesInFileTool(t *testing.T) {
	s := newTestServer(t, map[string]string{"design.sv": testDesign})

	text, isErr, err := s.callTool("get_modules_in_file", map[string]interface{}{
		"file": filepath.Join(s.driver.Indexer().Root(), "design.sv"),
	})
	require.NoError(t, err)
	require.False(t, isErr, text)
	var mods []moduleInfo
	require.NoError(t, json.Unmarshal([]byte(text), &mods))
	assert.Len(t, mods, 2)
}
