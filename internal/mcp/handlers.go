package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hdltools/svls/internal/design"
	"github.com/hdltools/svls/internal/syntax"
)

type setTopLevelParams struct {
	Module string `json:"module"`
}

func (s *Server) handleSetTopLevel(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params setTopLevelParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(fmt.Errorf("invalid parameters: %w", err))
	}
	if params.Module == "" {
		return createErrorResponse(fmt.Errorf("module is required"))
	}
	if err := s.driver.SetTopLevel(ctx, params.Module); err != nil {
		return createErrorResponse(err)
	}
	comp, err := s.compilation()
	if err != nil {
		return createErrorResponse(err)
	}
	return createJSONResponse(map[string]interface{}{
		"top":   comp.Top(),
		"state": comp.State().String(),
	})
}

type setBuildFileParams struct {
	Path string `json:"path"`
}

func (s *Server) handleSetBuildFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params setBuildFileParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(fmt.Errorf("invalid parameters: %w", err))
	}
	if params.Path == "" {
		return createErrorResponse(fmt.Errorf("path is required"))
	}
	if err := s.driver.SetBuildFile(ctx, params.Path); err != nil {
		return createErrorResponse(err)
	}
	comp, err := s.compilation()
	if err != nil {
		return createErrorResponse(err)
	}
	return createJSONResponse(map[string]interface{}{
		"top":   comp.Top(),
		"state": comp.State().String(),
	})
}

func (s *Server) handleClearDesign(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.driver.ClearDesign()
	return createTextResponse("design cleared"), nil
}

type scopeInfo struct {
	DeclName  string `json:"decl_name"`
	DeclFile  string `json:"decl_file"`
	DeclRange string `json:"decl_range"`
	Instances int    `json:"instances"`
	Path      string `json:"path,omitempty"`
}

func (s *Server) handleGetScopesByModule(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	comp, err := s.compilation()
	if err != nil {
		return createErrorResponse(err)
	}
	scopes, err := comp.GetScopesByModule()
	if err != nil {
		return createErrorResponse(err)
	}
	out := make([]scopeInfo, 0, len(scopes))
	for _, sc := range scopes {
		out = append(out, scopeInfo{
			DeclName:  sc.DeclName,
			DeclFile:  sc.DeclFile,
			DeclRange: sc.DeclRng.String(),
			Instances: sc.InstCount,
			Path:      sc.Path,
		})
	}
	return createJSONResponse(out)
}

type getInstancesParams struct {
	Module string `json:"module"`
}

func (s *Server) handleGetInstancesOfModule(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params getInstancesParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(fmt.Errorf("invalid parameters: %w", err))
	}
	comp, err := s.compilation()
	if err != nil {
		return createErrorResponse(err)
	}
	refs, err := comp.GetInstancesOfModule(params.Module)
	if err != nil {
		return createErrorResponse(err)
	}
	out := make([]instanceInfo, 0, len(refs))
	for _, ref := range refs {
		out = append(out, instanceInfo{
			Path:  ref.Path,
			File:  ref.Sym.File(),
			Range: ref.Sym.Loc().String(),
		})
	}
	return createJSONResponse(map[string]interface{}{
		"module":    params.Module,
		"instances": out,
	})
}

type instanceInfo struct {
	Path  string `json:"path"`
	File  string `json:"file"`
	Range string `json:"range"`
}

type getScopeParams struct {
	Path string `json:"path"`
}

type scopeChild struct {
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	DeclName string `json:"decl_name,omitempty"`
	Path     string `json:"path,omitempty"`
	File     string `json:"file,omitempty"`
	Range    string `json:"range,omitempty"`
}

func (s *Server) handleGetScope(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params getScopeParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(fmt.Errorf("invalid parameters: %w", err))
	}
	comp, err := s.compilation()
	if err != nil {
		return createErrorResponse(err)
	}
	nodes, err := comp.GetScope(params.Path)
	if err != nil {
		return createErrorResponse(err)
	}
	out := make([]scopeChild, 0, len(nodes))
	for _, n := range nodes {
		child := scopeChild{
			Kind:     n.Kind.String(),
			Name:     n.Name,
			DeclName: n.DeclName,
			Path:     n.Path,
			File:     n.File,
		}
		if n.Rng != (syntax.Range{}) {
			child.Range = n.Rng.String()
		}
		out = append(out, child)
	}
	return createJSONResponse(out)
}

type getConePathsParams struct {
	Direction string `json:"direction"`
	Path      string `json:"path"`
}

func (s *Server) handleGetConePaths(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params getConePathsParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(fmt.Errorf("invalid parameters: %w", err))
	}
	var dir design.ConeDirection
	switch params.Direction {
	case "drivers":
		dir = design.ConeDrivers
	case "loads":
		dir = design.ConeLoads
	default:
		return createErrorResponse(fmt.Errorf("direction must be %q or %q, got %q", "drivers", "loads", params.Direction))
	}
	comp, err := s.compilation()
	if err != nil {
		return createErrorResponse(err)
	}
	paths, err := comp.GetConePaths(dir, params.Path)
	if err != nil {
		return createErrorResponse(err)
	}
	return createJSONResponse(map[string]interface{}{
		"signal":    params.Path,
		"direction": params.Direction,
		"paths":     paths,
	})
}

type getDocInstancesParams struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (s *Server) handleGetDocInstances(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params getDocInstancesParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(fmt.Errorf("invalid parameters: %w", err))
	}
	comp, err := s.compilation()
	if err != nil {
		return createErrorResponse(err)
	}
	paths, err := comp.GetDocInstances(params.File, syntax.Pos{Line: params.Line, Column: params.Column})
	if err != nil {
		return createErrorResponse(err)
	}
	return createJSONResponse(map[string]interface{}{
		"instances": paths,
	})
}

type getModulesInFileParams struct {
	File string `json:"file"`
}

type moduleInfo struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Container string `json:"container,omitempty"`
	Range     string `json:"range"`
}

func (s *Server) handleGetModulesInFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params getModulesInFileParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(fmt.Errorf("invalid parameters: %w", err))
	}
	mods, err := s.driver.GetModulesInFile(params.File)
	if err != nil {
		return createErrorResponse(err)
	}
	out := make([]moduleInfo, 0, len(mods))
	for _, m := range mods {
		out = append(out, moduleInfo{
			Name:      m.Name,
			Kind:      m.Kind,
			Container: m.Container,
			Range:     m.Rng.String(),
		})
	}
	return createJSONResponse(out)
}

type searchSymbolsParams struct {
	Query string `json:"query"`
	Max   int    `json:"max"`
}

type symbolInfo struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	File  string `json:"file"`
	Range string `json:"range"`
}

func (s *Server) handleSearchSymbols(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params searchSymbolsParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(fmt.Errorf("invalid parameters: %w", err))
	}
	entries := s.driver.WorkspaceSymbols(params.Query, params.Max)
	out := make([]symbolInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, symbolInfo{
			Name:  e.Name,
			Kind:  e.Kind.String(),
			File:  e.File,
			Range: e.Rng.String(),
		})
	}
	return createJSONResponse(out)
}

type getDefinitionsParams struct {
	Name string `json:"name"`
}

func (s *Server) handleGetDefinitions(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params getDefinitionsParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(fmt.Errorf("invalid parameters: %w", err))
	}
	entries, err := s.driver.Definitions(params.Name)
	if err != nil {
		return createErrorResponse(err)
	}
	out := make([]symbolInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, symbolInfo{
			Name:  e.Name,
			Kind:  e.Kind.String(),
			File:  e.File,
			Range: e.Rng.String(),
		})
	}
	return createJSONResponse(out)
}

type getDiagnosticsParams struct {
	File string `json:"file"`
}

type diagInfo struct {
	Severity string `json:"severity"`
	Range    string `json:"range"`
	Message  string `json:"message"`
}

func (s *Server) handleGetDiagnostics(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params getDiagnosticsParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(fmt.Errorf("invalid parameters: %w", err))
	}
	diags := s.driver.Diagnostics(params.File)
	out := make([]diagInfo, 0, len(diags))
	for _, d := range diags {
		out = append(out, diagInfo{
			Severity: d.Severity.String(),
			Range:    d.Rng.String(),
			Message:  d.Message,
		})
	}
	return createJSONResponse(out)
}

type attachWaveformParams struct {
	Address string `json:"address"`
}

func (s *Server) handleAttachWaveform(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params attachWaveformParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(fmt.Errorf("invalid parameters: %w", err))
	}
	if err := s.driver.AttachWaveform(ctx, params.Address); err != nil {
		return createErrorResponse(err)
	}
	return createTextResponse(fmt.Sprintf("attached to waveform viewer at %s", params.Address)), nil
}

func (s *Server) handleDetachWaveform(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.driver.DetachWaveform()
	return createTextResponse("waveform viewer detached"), nil
}

type addSignalsParams struct {
	Paths []string `json:"paths"`
}

func (s *Server) handleAddSignalsToWaveform(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params addSignalsParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(fmt.Errorf("invalid parameters: %w", err))
	}
	if len(params.Paths) == 0 {
		return createErrorResponse(fmt.Errorf("paths is required"))
	}
	if err := s.driver.AddSignalsToWaveform(params.Paths); err != nil {
		return createErrorResponse(err)
	}
	return createTextResponse(fmt.Sprintf("added %d signal(s)", len(params.Paths))), nil
}
