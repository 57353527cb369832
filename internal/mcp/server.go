// Package mcp exposes the language server's operations as MCP tools over
// stdio. The tool layer is a thin dispatcher: it deserializes parameters,
// calls into the driver, and serializes results as JSON text content. All
// design semantics live below it.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hdltools/svls/internal/debug"
	"github.com/hdltools/svls/internal/design"
	"github.com/hdltools/svls/internal/server"
	"github.com/hdltools/svls/internal/version"
)

// Server wires the driver's operations onto an MCP stdio server.
type Server struct {
	driver *server.Driver
	server *mcp.Server
}

// NewServer builds the tool surface over an already-started driver.
func NewServer(d *server.Driver) *Server {
	s := &Server{driver: d}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "svls",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s
}

// Run serves requests on stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	debug.LogServer("mcp server starting on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func createJSONResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %v", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

func createTextResponse(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// createErrorResponse reports a tool-level failure in-band so the client
// sees the message instead of a protocol error.
func createErrorResponse(err error) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: err.Error()},
		},
	}, nil
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "set_top_level",
		Description: "Select a design by its top-level module name and elaborate the full hierarchy. Replaces any active design.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"module": {
					Type:        "string",
					Description: "Top-level module name from the workspace index",
				},
			},
			Required: []string{"module"},
		},
	}, s.handleSetTopLevel)

	s.server.AddTool(&mcp.Tool{
		Name:        "set_build_file",
		Description: "Select a design from a .f file list (source files plus an optional -top). Replaces any active design.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "Path to the .f build file",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleSetBuildFile)

	s.server.AddTool(&mcp.Tool{
		Name:        "clear_design",
		Description: "Drop the active design and return to shallow explore mode.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleClearDesign)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_scopes_by_module",
		Description: "List every module definition in the active design with its instance count, declaration site, and (for single-instance modules) its hierarchical path.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleGetScopesByModule)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_instances_of_module",
		Description: "List the hierarchical paths of every elaborated instance of a module definition.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"module": {
					Type:        "string",
					Description: "Module definition name",
				},
			},
			Required: []string{"module"},
		},
	}, s.handleGetInstancesOfModule)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_scope",
		Description: "List the children of a hierarchical scope: instances, generate blocks, ports, parameters, and variables. An empty path lists the design roots. Unresolvable path suffixes fall back to the deepest existing ancestor.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "Hierarchical path such as top.cpu.alu0, or empty for the roots",
				},
			},
		},
	}, s.handleGetScope)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_cone_paths",
		Description: "Trace the driver or load cone of a signal and return the hierarchical paths of its terminals.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"direction": {
					Type:        "string",
					Description: "Either \"drivers\" (what determines the signal) or \"loads\" (what the signal affects)",
				},
				"path": {
					Type:        "string",
					Description: "Hierarchical signal path such as top.cpu.mem_ctrl.cpu_ack",
				},
			},
			Required: []string{"direction", "path"},
		},
	}, s.handleGetConePaths)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_doc_instances",
		Description: "Given a file position inside a module declaration, return the hierarchical paths of that module's instances in the active design.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file": {
					Type:        "string",
					Description: "Source file path",
				},
				"line": {
					Type:        "integer",
					Description: "1-based line",
				},
				"column": {
					Type:        "integer",
					Description: "1-based column",
				},
			},
			Required: []string{"file", "line", "column"},
		},
	}, s.handleGetDocInstances)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_modules_in_file",
		Description: "List the module, interface, package, program, and class declarations in one file, using the open buffer when the file is open.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file": {
					Type:        "string",
					Description: "Source file path",
				},
			},
			Required: []string{"file"},
		},
	}, s.handleGetModulesInFile)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_symbols",
		Description: "Fuzzy-match workspace symbols (modules, interfaces, packages, macros) against a query.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					Description: "Symbol name or prefix",
				},
				"max": {
					Type:        "integer",
					Description: "Maximum results (default 25)",
				},
			},
			Required: []string{"query"},
		},
	}, s.handleSearchSymbols)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_definitions",
		Description: "Return every definition site of a workspace symbol. Multiple results mean the name is ambiguous.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": {
					Type:        "string",
					Description: "Exact symbol name",
				},
			},
			Required: []string{"name"},
		},
	}, s.handleGetDefinitions)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_diagnostics",
		Description: "Return parse and elaboration diagnostics for one file.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file": {
					Type:        "string",
					Description: "Source file path",
				},
			},
			Required: []string{"file"},
		},
	}, s.handleGetDiagnostics)

	s.server.AddTool(&mcp.Tool{
		Name:        "attach_waveform",
		Description: "Connect to a waveform viewer speaking the waveform control protocol over TCP.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"address": {
					Type:        "string",
					Description: "host:port of the viewer's WCP socket",
				},
			},
			Required: []string{"address"},
		},
	}, s.handleAttachWaveform)

	s.server.AddTool(&mcp.Tool{
		Name:        "detach_waveform",
		Description: "Disconnect from the attached waveform viewer.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleDetachWaveform)

	s.server.AddTool(&mcp.Tool{
		Name:        "add_signals_to_waveform",
		Description: "Push hierarchical signal paths to the attached waveform viewer.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"paths": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Hierarchical signal paths",
				},
			},
			Required: []string{"paths"},
		},
	}, s.handleAddSignalsToWaveform)
}

func (s *Server) compilation() (*design.Compilation, error) {
	return s.driver.Compilation()
}
