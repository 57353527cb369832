package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModuleHeader(t *testing.T) {
	tree := ParseText("adder.sv", `
module adder #(parameter WIDTH = 8, localparam DEPTH = 4) (
  input  logic [WIDTH-1:0] a, b,
  output logic [WIDTH-1:0] sum
);
  assign sum = a + b;
endmodule
`)
	require.False(t, tree.HasErrors(), "diags: %v", tree.Diags)
	require.Len(t, tree.Decls, 1)

	decl := tree.Decls[0]
	assert.Equal(t, "adder", decl.Name)
	assert.Equal(t, DeclModule, decl.Kind)

	require.Len(t, decl.Params, 2)
	assert.Equal(t, "WIDTH", decl.Params[0].Name)
	assert.False(t, decl.Params[0].Local)
	assert.True(t, decl.Params[1].Local)

	require.Len(t, decl.Ports, 3)
	assert.Equal(t, "a", decl.Ports[0].Name)
	// Direction and type carry across comma-separated declarators.
	assert.Equal(t, DirInput, decl.Ports[1].Dir)
	assert.Equal(t, DirOutput, decl.Ports[2].Dir)
	require.NotNil(t, decl.Ports[2].Dim)
}

func TestParseAllDeclKinds(t *testing.T) {
	tree := ParseText("kinds.sv", `
module m; endmodule
interface bus_if; endinterface
package pkg; endpackage
program tb; endprogram
`)
	require.Len(t, tree.Decls, 4)
	kinds := make(map[string]DeclKind)
	for _, d := range tree.Decls {
		kinds[d.Name] = d.Kind
	}
	assert.Equal(t, DeclModule, kinds["m"])
	assert.Equal(t, DeclInterface, kinds["bus_if"])
	assert.Equal(t, DeclPackage, kinds["pkg"])
	assert.Equal(t, DeclProgram, kinds["tb"])
}

func TestParseInstantiation(t *testing.T) {
	tree := ParseText("top.sv", `
module top;
  logic clk, d, q;
  dff #(.INIT(0)) u0 (.clk(clk), .d(d), .q(q));
  dff u1 (clk, d, q);
  buf_cell bufs[3:0] (.in(d), .out(q));
endmodule
`)
	require.Len(t, tree.Decls, 1)
	var insts []*Instantiation
	for _, item := range tree.Decls[0].Items {
		if inst, ok := item.(*Instantiation); ok {
			insts = append(insts, inst)
		}
	}
	require.Len(t, insts, 3)

	assert.Equal(t, "dff", insts[0].Module)
	require.Len(t, insts[0].Params, 1)
	assert.Equal(t, "INIT", insts[0].Params[0].Name)
	require.Len(t, insts[0].Instances, 1)
	assert.Equal(t, "u0", insts[0].Instances[0].Name)
	require.Len(t, insts[0].Instances[0].Conns, 3)
	assert.Equal(t, "clk", insts[0].Instances[0].Conns[0].Name)

	// Ordered connections have no names.
	assert.Empty(t, insts[1].Instances[0].Conns[0].Name)

	// Instance arrays carry a dimension.
	require.NotNil(t, insts[2].Instances[0].Dim)

	assert.ElementsMatch(t, []string{"dff", "buf_cell"}, InstantiatedModules(tree.Decls[0]))
}

func TestParseGenerateConstructs(t *testing.T) {
	tree := ParseText("gen.sv", `
module gen_top #(parameter N = 4);
  genvar i;
  generate
    for (i = 0; i < N; i = i + 1) begin : stages
      logic s;
    end
    if (N > 2) begin : wide
      logic big;
    end else begin : narrow
      logic small;
    end
  endgenerate
endmodule
`)
	require.False(t, tree.HasErrors(), "diags: %v", tree.Diags)

	var region *GenBlock
	for _, item := range tree.Decls[0].Items {
		if b, ok := item.(*GenBlock); ok && b.Region {
			region = b
		}
	}
	require.NotNil(t, region, "generate region should parse as a transparent block")

	var genFor *GenFor
	var genIf *GenIf
	for _, item := range region.Items {
		switch it := item.(type) {
		case *GenFor:
			genFor = it
		case *GenIf:
			genIf = it
		}
	}
	require.NotNil(t, genFor)
	assert.Equal(t, "i", genFor.Var)
	assert.Equal(t, "stages", genFor.Label)
	require.NotNil(t, genIf)
	assert.Equal(t, "wide", genIf.ThenLabel)
	assert.Equal(t, "narrow", genIf.ElseLabel)
}

func TestParseProceduralBlock(t *testing.T) {
	tree := ParseText("ff.sv", `
module ff(input logic clk, d, output logic q);
  always_ff @(posedge clk) begin
    if (d)
      q <= 1'b1;
    else
      q <= 1'b0;
  end
  always_comb begin
    case (d)
      1'b0: ;
      default: ;
    endcase
  end
endmodule
`)
	require.False(t, tree.HasErrors(), "diags: %v", tree.Diags)

	var blocks []*ProceduralBlock
	for _, item := range tree.Decls[0].Items {
		if b, ok := item.(*ProceduralBlock); ok {
			blocks = append(blocks, b)
		}
	}
	require.Len(t, blocks, 2)
	assert.Equal(t, ProcAlwaysFF, blocks[0].Kind)
	assert.Equal(t, ProcAlwaysComb, blocks[1].Kind)

	body, ok := blocks[0].Body.(*BlockStmt)
	require.True(t, ok)
	ifStmt, ok := body.Stmts[0].(*IfStmt)
	require.True(t, ok)
	thenAssign, ok := ifStmt.Then.(*AssignStmt)
	require.True(t, ok)
	assert.True(t, thenAssign.NonBlocking)
}

func TestParseRecoversFromGarbage(t *testing.T) {
	tree := ParseText("broken.sv", `
module broken(input logic a;
  assign = @@ ;
endmodule

module intact;
endmodule
`)
	assert.True(t, tree.HasErrors())
	// Recovery still finds the following declaration.
	require.NotNil(t, tree.FindDecl("intact"))
}

func TestNestedModuleContainer(t *testing.T) {
	tree := ParseText("nest.sv", `
module outer;
  module inner; endmodule
endmodule
`)
	decls := tree.TopDecls()
	require.Len(t, decls, 2)
	byName := map[string]*ModuleDecl{}
	for _, d := range decls {
		byName[d.Name] = d
	}
	require.Contains(t, byName, "inner")
	assert.Equal(t, "outer", byName["inner"].Container)
	assert.Empty(t, byName["outer"].Container)
}

func TestDeclAt(t *testing.T) {
	tree := ParseText("two.sv", `module first;
endmodule
module second;
  logic x;
endmodule
`)
	require.Len(t, tree.Decls, 2)
	first := tree.DeclAt(Pos{Line: 1, Column: 3})
	require.NotNil(t, first)
	assert.Equal(t, "first", first.Name)

	second := tree.DeclAt(Pos{Line: 4, Column: 5})
	require.NotNil(t, second)
	assert.Equal(t, "second", second.Name)
}

func TestNumberLiterals(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{"42", 42},
		{"8'hFF", 255},
		{"4'b1010", 10},
		{"8'o17", 15},
		{"16'd100", 100},
		{"32'habcd_ef01", 0xabcdef01},
		{"1'b1", 1},
	}
	for _, tc := range cases {
		got, known := parseNumber(tc.raw)
		require.True(t, known, "parseNumber(%q)", tc.raw)
		assert.Equal(t, tc.want, got, "parseNumber(%q)", tc.raw)
	}

	_, known := parseNumber("8'hxz")
	assert.False(t, known, "x/z digits have no numeric value")
}
