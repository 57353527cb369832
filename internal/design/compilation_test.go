package design

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdltools/svls/internal/config"
	"github.com/hdltools/svls/internal/document"
	svlerr "github.com/hdltools/svls/internal/errors"
	"github.com/hdltools/svls/internal/syntax"
	"github.com/hdltools/svls/internal/workspace"
)

func syntaxPos(line, col int) syntax.Pos {
	return syntax.Pos{Line: line, Column: col}
}

type fixture struct {
	dir   string
	store *document.Store
	ix    *workspace.Indexer
	comp  *Compilation
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	cfg := config.Default()
	cfg.Performance.IndexingThreads = 2
	cfg.Performance.ParsingThreads = 2
	ix := workspace.NewIndexer(cfg, dir)
	require.NoError(t, ix.IndexWorkspace(context.Background()))
	store := document.NewStore()
	return &fixture{
		dir:   dir,
		store: store,
		ix:    ix,
		comp:  NewCompilation(cfg, store, ix.Snapshot),
	}
}

const coneSrc = `
module m(input logic a, b, output logic x);
  logic unused_sig;
  assign x = a + b;
endmodule
`

func TestConeTraceSymmetry(t *testing.T) {
	f := newFixture(t, map[string]string{"m.sv": coneSrc})
	require.NoError(t, f.comp.SetTopLevel(context.Background(), "m"))
	require.Equal(t, StateReady, f.comp.State())

	drivers, err := f.comp.GetConePaths(ConeDrivers, "m.x")
	require.NoError(t, err)
	assert.Equal(t, []string{"m.a", "m.b"}, drivers)

	loads, err := f.comp.GetConePaths(ConeLoads, "m.a")
	require.NoError(t, err)
	assert.Contains(t, loads, "m.x")
}

func TestConeTraceErrorTaxonomy(t *testing.T) {
	f := newFixture(t, map[string]string{"m.sv": coneSrc})
	require.NoError(t, f.comp.SetTopLevel(context.Background(), "m"))

	// A path missing from the design is a not-found condition.
	_, err := f.comp.GetConePaths(ConeDrivers, "m.no_such_signal")
	var nf *svlerr.NotFoundError
	require.ErrorAs(t, err, &nf)

	// A signal that exists but is never referenced is a distinct condition.
	_, err = f.comp.GetConePaths(ConeDrivers, "m.unused_sig")
	var nr *svlerr.NoReferenceError
	require.ErrorAs(t, err, &nr)
}

func TestConditionDrivers(t *testing.T) {
	f := newFixture(t, map[string]string{"m.sv": `
module m(input logic clk, sel, d0, d1, output logic q);
  always_ff @(posedge clk) begin
    if (sel) q <= d0;
    else q <= d1;
  end
endmodule
`})
	require.NoError(t, f.comp.SetTopLevel(context.Background(), "m"))

	drivers, err := f.comp.GetConePaths(ConeDrivers, "m.q")
	require.NoError(t, err)
	assert.Equal(t, []string{"m.d0", "m.d1", "m.sel"}, drivers)

	// The condition signal's loads include the gated target.
	loads, err := f.comp.GetConePaths(ConeLoads, "m.sel")
	require.NoError(t, err)
	assert.Contains(t, loads, "m.q")
}

func TestConeAcrossHierarchy(t *testing.T) {
	f := newFixture(t, map[string]string{
		"leaf.sv": `
module leaf(input logic a, output logic y);
  assign y = ~a;
endmodule
`,
		"top.sv": `
module top(input logic src, output logic dst);
  logic mid;
  leaf l(.a(src), .y(mid));
  assign dst = mid;
endmodule
`,
	})
	require.NoError(t, f.comp.SetTopLevel(context.Background(), "top"))

	drivers, err := f.comp.GetConePaths(ConeDrivers, "top.mid")
	require.NoError(t, err)
	assert.Contains(t, drivers, "top.l.y", "crossing the output port")
	assert.Contains(t, drivers, "top.l.a", "driver inside the child")

	loads, err := f.comp.GetConePaths(ConeLoads, "top.src")
	require.NoError(t, err)
	assert.Contains(t, loads, "top.l.a", "crossing the input port")
	assert.Contains(t, loads, "top.l.y", "load inside the child")
}

func TestInstanceArraySynthesis(t *testing.T) {
	f := newFixture(t, map[string]string{
		"alu.sv": `
module alu(input logic [7:0] x, output logic [7:0] z);
  assign z = x;
endmodule
`,
		"top.sv": `
module top(input logic [7:0] in, output logic [7:0] out);
  alu alu_inst_array[3:0](.x(in), .z(out));
endmodule
`,
	})
	require.NoError(t, f.comp.SetTopLevel(context.Background(), "top"))

	scopes, err := f.comp.GetScopesByModule()
	require.NoError(t, err)
	var aluScope *ModuleScope
	for i := range scopes {
		if scopes[i].DeclName == "alu" {
			aluScope = &scopes[i]
		}
	}
	require.NotNil(t, aluScope)
	assert.Equal(t, 4, aluScope.InstCount)
	assert.Empty(t, aluScope.Path, "multi-instance definitions omit the path")

	nodes, err := f.comp.GetScope("top")
	require.NoError(t, err)
	var arrNode *ViewNode
	for i := range nodes {
		if nodes[i].Kind == NodeInstanceArray {
			arrNode = &nodes[i]
		}
	}
	require.NotNil(t, arrNode)
	assert.Equal(t, "alu_inst_array", arrNode.Name)
	assert.Equal(t, "alu[3:0]", arrNode.DeclName)

	insts, err := f.comp.GetInstancesOfModule("alu")
	require.NoError(t, err)
	require.Len(t, insts, 4)
	assert.Equal(t, "top.alu_inst_array[3]", insts[0].Path)
}

func TestEmptyScopeElision(t *testing.T) {
	f := newFixture(t, map[string]string{"top.sv": `
module top #(parameter USE_FAST = 0) (input logic clk);
  if (USE_FAST) begin : fast_path
    logic [31:0] fast_reg;
  end else begin : slow_path
    logic [31:0] slow_reg;
  end
  if (USE_FAST) begin : empty_when_taken
  end
endmodule
`})
	require.NoError(t, f.comp.SetTopLevel(context.Background(), "top"))

	nodes, err := f.comp.GetScope("top")
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, n := range nodes {
		names[n.Name] = true
	}
	assert.True(t, names["slow_path"], "taken branch is shown")
	assert.False(t, names["fast_path"], "untaken branch produces no node")
	assert.False(t, names["empty_when_taken"], "empty blocks are elided")
}

func TestGetScopeEagerPartialMatch(t *testing.T) {
	f := newFixture(t, map[string]string{
		"inner.sv": "module inner(input logic a);\n  logic sig;\nendmodule\n",
		"outer.sv": "module outer;\n  logic w;\n  inner i(.a(w));\nendmodule\n",
	})
	require.NoError(t, f.comp.SetTopLevel(context.Background(), "outer"))

	full, err := f.comp.GetScope("outer.i")
	require.NoError(t, err)

	// A prefix-valid path resolves to the deepest found ancestor.
	partial, err := f.comp.GetScope("outer.i.bogus.deeper")
	require.NoError(t, err)
	assert.Equal(t, full, partial)

	_, err = f.comp.GetScope("unknown_root.x")
	var nf *svlerr.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestStaleAnalysisOnFailedRefresh(t *testing.T) {
	f := newFixture(t, map[string]string{"m.sv": coneSrc})
	require.NoError(t, f.comp.SetTopLevel(context.Background(), "m"))
	require.Equal(t, StateReady, f.comp.State())
	before := f.comp.Analysis()
	require.NotNil(t, before)

	// The contributing buffer loses the top module definition.
	doc := f.store.Get(filepath.Join(f.dir, "m.sv"))
	require.NotNil(t, doc)
	doc.SetText("// file gutted\n")

	err := f.comp.Refresh(context.Background())
	require.Error(t, err)
	var el *svlerr.ElaborationError
	assert.ErrorAs(t, err, &el)

	// Queries keep serving the previous Analysis.
	after := f.comp.Analysis()
	assert.Same(t, before, after)
	drivers, err := f.comp.GetConePaths(ConeDrivers, "m.x")
	require.NoError(t, err)
	assert.Equal(t, []string{"m.a", "m.b"}, drivers)
	assert.Error(t, f.comp.LastError())
}

func TestRefreshAtomicity(t *testing.T) {
	f := newFixture(t, map[string]string{"m.sv": coneSrc})
	require.NoError(t, f.comp.SetTopLevel(context.Background(), "m"))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var lastGen uint64
			for {
				select {
				case <-stop:
					return
				default:
				}
				a := f.comp.Analysis()
				if a == nil {
					t.Error("analysis vanished mid-refresh")
					return
				}
				if a.Generation < lastGen {
					t.Error("generation went backwards")
					return
				}
				lastGen = a.Generation
				if a.Instances == nil || a.Comp == nil {
					t.Error("half-built analysis observed")
					return
				}
				if _, _, ok := a.Comp.Definition("m"); !ok {
					t.Error("analysis missing its definitions")
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		require.NoError(t, f.comp.Refresh(context.Background()))
	}
	close(stop)
	wg.Wait()
}

func TestBuildFileCompilation(t *testing.T) {
	f := newFixture(t, map[string]string{
		"rtl/leaf.sv": "module leaf(input logic a, output logic y);\n  assign y = a;\nendmodule\n",
		"rtl/top.sv":  "module top;\n  logic p, q;\n  leaf l(.a(p), .y(q));\nendmodule\n",
	})
	fileList := filepath.Join(f.dir, "design.f")
	require.NoError(t, os.WriteFile(fileList, []byte(`
// design file list
-top top
rtl/leaf.sv
rtl/top.sv
+incdir+rtl
`), 0o644))

	require.NoError(t, f.comp.SetBuildFile(context.Background(), fileList))
	require.Equal(t, StateReady, f.comp.State())
	assert.Equal(t, "top", f.comp.Top())

	insts, err := f.comp.GetInstancesOfModule("leaf")
	require.NoError(t, err)
	require.Len(t, insts, 1)
	assert.Equal(t, "top.l", insts[0].Path)

	assert.True(t, f.comp.DependsOn(filepath.Join(f.dir, "rtl/leaf.sv")))
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t, map[string]string{
		"cpu.sv": `
module cpu(input logic clk, rst, output logic done);
  logic [7:0] op_a, op_b, alu_out;
  logic req, ack;
  alu alu0(.a(op_a), .b(op_b), .y(alu_out));
  memory_controller mem_ctrl(.clk(clk), .rst(rst), .req(req), .cpu_ack(ack));
  assign done = ack;
endmodule
`,
		"alu.sv": `
module alu(input logic [7:0] a, b, output logic [7:0] y);
  assign y = a + b;
endmodule
`,
		"memory_controller.sv": `
module memory_controller(input logic clk, rst, req, output logic cpu_ack);
  logic [1:0] state;
  always_ff @(posedge clk) begin
    if (rst) state <= 2'b00;
    else if (req) state <= 2'b01;
  end
  assign cpu_ack = (state == 2'b01);
endmodule
`,
	})

	require.NoError(t, f.comp.SetTopLevel(context.Background(), "cpu"))
	require.Equal(t, StateReady, f.comp.State())

	scopes, err := f.comp.GetScopesByModule()
	require.NoError(t, err)
	byName := make(map[string]ModuleScope)
	for _, sc := range scopes {
		byName[sc.DeclName] = sc
	}
	require.Contains(t, byName, "alu")
	assert.Equal(t, 1, byName["alu"].InstCount)
	assert.Equal(t, "cpu.alu0", byName["alu"].Path)
	require.Contains(t, byName, "memory_controller")
	assert.Equal(t, 1, byName["memory_controller"].InstCount)
	assert.Equal(t, "cpu.mem_ctrl", byName["memory_controller"].Path)

	drivers, err := f.comp.GetConePaths(ConeDrivers, "cpu.mem_ctrl.cpu_ack")
	require.NoError(t, err)
	assert.Contains(t, drivers, "cpu.mem_ctrl.state")
}

func TestGetDocInstances(t *testing.T) {
	f := newFixture(t, map[string]string{
		"alu.sv": "module alu(input logic a);\nendmodule\n",
		"top.sv": "module top;\n  logic w;\n  alu u0(.a(w));\n  alu u1(.a(w));\nendmodule\n",
	})
	require.NoError(t, f.comp.SetTopLevel(context.Background(), "top"))

	paths, err := f.comp.GetDocInstances(filepath.Join(f.dir, "alu.sv"),
		syntaxPos(1, 8))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"top.u0", "top.u1"}, paths)
}

func TestSetTopLevelAmbiguousTop(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a/fifo.sv": "module fifo; endmodule\n",
		"b/fifo.sv": "module fifo; endmodule\n",
	})

	err := f.comp.SetTopLevel(context.Background(), "fifo")
	var amb *svlerr.AmbiguousError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, "fifo", amb.Name)
	assert.Len(t, amb.Files, 2)

	// The refused selection leaves the compilation untouched.
	assert.Equal(t, StateUnset, f.comp.State())
}

func TestClearIsTerminal(t *testing.T) {
	f := newFixture(t, map[string]string{"m.sv": coneSrc})
	require.NoError(t, f.comp.SetTopLevel(context.Background(), "m"))
	f.comp.Clear()
	assert.Equal(t, StateCleared, f.comp.State())
	require.NoError(t, f.comp.Refresh(context.Background()))
	assert.Equal(t, StateCleared, f.comp.State())
}
