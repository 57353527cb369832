package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svlerr "github.com/hdltools/svls/internal/errors"
	"github.com/hdltools/svls/internal/syntax"
)

func parseTrees(t *testing.T, files map[string]string) []*syntax.Tree {
	t.Helper()
	var trees []*syntax.Tree
	for name, src := range files {
		trees = append(trees, syntax.ParseText(name, src))
	}
	return trees
}

func TestElaborateSimpleHierarchy(t *testing.T) {
	trees := parseTrees(t, map[string]string{
		"cpu.sv": `
module cpu(input logic clk, output logic [7:0] out);
  logic [7:0] a, b;
  alu alu_inst(.clk(clk), .x(a), .y(b), .z(out));
endmodule
`,
		"alu.sv": `
module alu(input logic clk, input logic [7:0] x, y, output logic [7:0] z);
  assign z = x + y;
endmodule
`,
	})

	comp, err := Elaborate(trees, "cpu")
	require.NoError(t, err)
	require.Len(t, comp.Tops, 1)

	top := comp.Tops[0]
	assert.Equal(t, "cpu", top.Name())
	assert.Equal(t, "cpu", HierarchicalPath(top))

	sym, err := comp.LookupPath("cpu.alu_inst")
	require.NoError(t, err)
	inst, ok := sym.(*InstanceSymbol)
	require.True(t, ok)
	assert.Equal(t, "alu", inst.DefinitionName())
	assert.Equal(t, "cpu.alu_inst", HierarchicalPath(inst))
	require.Len(t, inst.Connections, 4)

	// .z(out) connects the child port to a net of the parent.
	var zConn *PortConnection
	for _, pc := range inst.Connections {
		if pc.Port.Name() == "z" {
			zConn = pc
		}
	}
	require.NotNil(t, zConn)
	nv, ok := zConn.Expr.(*NamedValue)
	require.True(t, ok)
	assert.Equal(t, "out", nv.Sym.Name())
	assert.Equal(t, "cpu", nv.Sym.Parent().Name())

	sig, err := comp.LookupPath("cpu.alu_inst.z")
	require.NoError(t, err)
	assert.Equal(t, KindPort, sig.Kind())
}

func TestElaborateTopInference(t *testing.T) {
	trees := parseTrees(t, map[string]string{
		"design.sv": `
module leaf(input logic a, output logic b);
  assign b = ~a;
endmodule

module mid(input logic a, output logic b);
  leaf l(.a(a), .b(b));
endmodule

module top1;
  logic x, y;
  mid m(.a(x), .b(y));
endmodule

module top2;
  logic p, q;
  mid m(.a(p), .b(q));
endmodule
`,
	})

	comp, err := Elaborate(trees, "")
	require.NoError(t, err)
	require.Len(t, comp.Tops, 2)
	assert.Equal(t, "top1", comp.Tops[0].Name())
	assert.Equal(t, "top2", comp.Tops[1].Name())
}

func TestElaborateUnknownTop(t *testing.T) {
	trees := parseTrees(t, map[string]string{
		"m.sv": "module m; endmodule\n",
	})
	_, err := Elaborate(trees, "missing")
	require.Error(t, err)
	var nf *svlerr.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestParameterOverrideDrivesGenerate(t *testing.T) {
	trees := parseTrees(t, map[string]string{
		"d.sv": `
module widget #(parameter W = 4) (input logic clk);
  if (W > 8) begin : wide
    logic [W-1:0] big;
  end else begin : narrow
    logic [W-1:0] small;
  end
endmodule

module top;
  logic clk;
  widget #(.W(16)) w16(.clk(clk));
  widget w4(.clk(clk));
endmodule
`,
	})

	comp, err := Elaborate(trees, "top")
	require.NoError(t, err)

	wide, err := comp.LookupPath("top.w16.wide.big")
	require.NoError(t, err)
	assert.Equal(t, "top.w16.wide.big", HierarchicalPath(wide))

	_, err = comp.LookupPath("top.w16.narrow")
	assert.Error(t, err)

	narrow, err := comp.LookupPath("top.w4.narrow.small")
	require.NoError(t, err)
	assert.Equal(t, KindVariable, narrow.Kind())
}

func TestGenerateForArray(t *testing.T) {
	trees := parseTrees(t, map[string]string{
		"d.sv": `
module stage(input logic d, output logic q);
  assign q = d;
endmodule

module pipe;
  logic [3:0] d, q;
  for (genvar i = 0; i < 4; i++) begin : gen_loop
    stage s(.d(d[i]), .q(q[i]));
  end
endmodule
`,
	})

	comp, err := Elaborate(trees, "pipe")
	require.NoError(t, err)

	sym, err := comp.LookupPath("pipe.gen_loop")
	require.NoError(t, err)
	arr, ok := sym.(*GenerateArraySymbol)
	require.True(t, ok)
	require.Len(t, arr.Entries, 4)
	assert.Equal(t, "gen_loop[0]", arr.Entries[0].Name())
	assert.Equal(t, 3, arr.Entries[3].Index)

	inner, err := comp.LookupPath("pipe.gen_loop[2].s")
	require.NoError(t, err)
	assert.Equal(t, "pipe.gen_loop[2].s", HierarchicalPath(inner))
}

func TestInstanceArray(t *testing.T) {
	trees := parseTrees(t, map[string]string{
		"d.sv": `
module alu(input logic [7:0] x, output logic [7:0] z);
  assign z = x;
endmodule

module top;
  logic [7:0] xs [4];
  logic [7:0] zs [4];
  alu cores[3:0](.x(xs[0]), .z(zs[0]));
endmodule
`,
	})

	comp, err := Elaborate(trees, "top")
	require.NoError(t, err)

	sym, err := comp.LookupPath("top.cores")
	require.NoError(t, err)
	arr, ok := sym.(*InstanceArraySymbol)
	require.True(t, ok)
	assert.Equal(t, 3, arr.Left)
	assert.Equal(t, 0, arr.Right)
	require.Len(t, arr.Elements, 4)
	assert.Equal(t, "cores[3]", arr.Elements[0].Name())
	assert.Equal(t, "top.cores[3]", HierarchicalPath(arr.Elements[0]))

	el, err := comp.LookupPath("top.cores[1]")
	require.NoError(t, err)
	assert.Equal(t, KindInstance, el.Kind())
}

func TestLookupPathPartial(t *testing.T) {
	trees := parseTrees(t, map[string]string{
		"d.sv": `
module inner;
  logic sig;
endmodule

module outer;
  inner i(.sig());
endmodule
`,
	})

	comp, err := Elaborate(trees, "outer")
	require.NoError(t, err)

	sym, rest, err := comp.LookupPathPartial("outer.i.sig.bit")
	require.NoError(t, err)
	assert.Equal(t, "sig", sym.Name())
	assert.Equal(t, "bit", rest)

	sym, rest, err = comp.LookupPathPartial("outer.i.nope.deeper")
	require.NoError(t, err)
	assert.Equal(t, "i", sym.Name())
	assert.Equal(t, "nope.deeper", rest)

	_, _, err = comp.LookupPathPartial("missing.i")
	require.Error(t, err)
}

func TestDuplicateDefinitionDiagnostic(t *testing.T) {
	trees := parseTrees(t, map[string]string{
		"a.sv": "module foo; endmodule\n",
		"b.sv": "module foo; endmodule\n",
	})

	comp, err := Elaborate(trees, "foo")
	require.NoError(t, err)
	require.Len(t, comp.Tops, 1)

	found := false
	for _, d := range comp.Diags {
		if d.Severity == syntax.SeverityWarning && d.Message != "" {
			found = true
		}
	}
	assert.True(t, found, "expected a duplicate definition diagnostic")
}

func TestConstEval(t *testing.T) {
	cases := []struct {
		expr string
		want int64
	}{
		{"1 + 2 * 3", 7},
		{"(8 - 2) / 3", 2},
		{"1 << 4", 16},
		{"4'b1010", 10},
		{"2 ** 10", 1024},
		{"$clog2(256)", 8},
		{"$clog2(1)", 0},
		{"5 > 3 ? 10 : 20", 10},
		{"1 && 0", 0},
		{"~0 == -1", 1},
	}
	for _, tc := range cases {
		src := "module m #(parameter P = " + tc.expr + "); endmodule\n"
		tree := syntax.ParseText("m.sv", src)
		comp, err := Elaborate([]*syntax.Tree{tree}, "m")
		require.NoError(t, err, tc.expr)
		sym, err := comp.LookupPath("m.P")
		require.NoError(t, err, tc.expr)
		vs := sym.(*ValueSymbol)
		require.NotNil(t, vs.ParamValue, tc.expr)
		assert.Equal(t, tc.want, *vs.ParamValue, tc.expr)
	}
}

func TestProceduralBlockBinding(t *testing.T) {
	trees := parseTrees(t, map[string]string{
		"d.sv": `
module ff(input logic clk, d, output logic q);
  always_ff @(posedge clk) begin
    q <= d;
  end
endmodule
`,
	})

	comp, err := Elaborate(trees, "ff")
	require.NoError(t, err)

	var blocks []*ProceduralBlockSymbol
	Visit(comp.Tops[0], func(s Symbol) bool {
		if pb, ok := s.(*ProceduralBlockSymbol); ok {
			blocks = append(blocks, pb)
		}
		return true
	})
	require.Len(t, blocks, 1)
	assert.Equal(t, syntax.ProcAlwaysFF, blocks[0].ProcKind)

	var assigns []*Assignment
	WalkStmt(blocks[0].Body, func(s Stmt) {
		if a, ok := s.(*Assignment); ok {
			assigns = append(assigns, a)
		}
	}, nil)
	require.Len(t, assigns, 1)
	assert.True(t, assigns[0].NonBlocking)
	assert.Equal(t, "q", SelectRoot(assigns[0].LHS).Name())
	assert.Equal(t, "d", SelectRoot(assigns[0].RHS).Name())
}
