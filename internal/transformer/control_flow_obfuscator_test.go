package transformer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/luamixer/internal/ast"
	"github.com/whit3rabbit/luamixer/internal/parser"
	"github.com/whit3rabbit/luamixer/internal/printer"
)

func applyControlFlow(t *testing.T, o *ControlFlowObfuscator, src string) (string, *ast.Chunk) {
	t.Helper()
	chunk, err := parser.Parse(src, "test.lua")
	require.NoError(t, err)
	require.NoError(t, o.Apply(chunk))
	out, err := printer.Print(chunk)
	require.NoError(t, err)
	return out, chunk
}

func TestControlFlowWrapsChunkBody(t *testing.T) {
	o := NewControlFlowObfuscator(1, false)
	out, chunk := applyControlFlow(t, o, "result = 7\n")

	require.Len(t, chunk.Body.Stmts, 1)
	wrapper, ok := chunk.Body.Stmts[0].(*ast.IfStmt)
	require.True(t, ok)
	assert.True(t, wrapper.Tags().Has(ast.TagGenerated))
	assert.Nil(t, wrapper.Else)

	assert.Contains(t, out, "if ")
	assert.Equal(t, "7", runLua(t, out))
}

func TestControlFlowNestingDepth(t *testing.T) {
	o := NewControlFlowObfuscator(3, false)
	_, chunk := applyControlFlow(t, o, "result = 7\n")

	depth := 0
	stmts := chunk.Body.Stmts
	for len(stmts) == 1 {
		wrapper, ok := stmts[0].(*ast.IfStmt)
		if !ok {
			break
		}
		depth++
		stmts = wrapper.Then.Stmts
	}
	assert.Equal(t, 3, depth)
}

func TestControlFlowWrapsFunctionBodies(t *testing.T) {
	src := `
local function double(n)
    return n * 2
end
result = double(21)
`
	o := NewControlFlowObfuscator(2, false)
	out, _ := applyControlFlow(t, o, src)

	assert.Equal(t, "42", runLua(t, out))
}

func TestControlFlowDeadBranches(t *testing.T) {
	o := NewControlFlowObfuscator(1, true)
	out, chunk := applyControlFlow(t, o, "result = 7\n")

	wrapper := chunk.Body.Stmts[0].(*ast.IfStmt)
	require.NotNil(t, wrapper.Else)
	assert.True(t, wrapper.Else.Tags().Has(ast.TagGenerated))
	assert.NotEmpty(t, wrapper.Else.Stmts)

	assert.Contains(t, out, "else")
	assert.Equal(t, "7", runLua(t, out))
}

func TestControlFlowKeepsLocalsVisible(t *testing.T) {
	src := `
local a = 1
local b = a + 1
result = a + b
`
	o := NewControlFlowObfuscator(2, true)
	out, _ := applyControlFlow(t, o, src)

	// Wrapped declarations still resolve for the statements after them.
	assert.Equal(t, "3", runLua(t, out))
}

func TestControlFlowEmptyBlockUntouched(t *testing.T) {
	o := NewControlFlowObfuscator(2, false)
	out, chunk := applyControlFlow(t, o, "local f = function() end\nresult = 1\n")

	// The empty function body gains no wrapper.
	decl := chunk.Body.Stmts[0].(*ast.IfStmt).Then.Stmts[0].(*ast.IfStmt).Then.Stmts[0].(*ast.LocalAssignStmt)
	fn := decl.Exprs[0].(*ast.FunctionExpr)
	assert.Empty(t, fn.Body.Stmts)
	assert.Equal(t, "1", runLua(t, out))
}

func TestControlFlowUpvaluesSurvive(t *testing.T) {
	src := `
local count = 0
local function tick()
    count = count + 1
    return count
end
tick()
result = tick()
`
	o := NewControlFlowObfuscator(2, true)
	out, _ := applyControlFlow(t, o, src)

	assert.Equal(t, "2", runLua(t, out))
}

func TestControlFlowConditionIsTautology(t *testing.T) {
	// Whatever shape the condition takes, the body must always run.
	for i := 0; i < 30; i++ {
		o := NewControlFlowObfuscator(1, false)
		out, _ := applyControlFlow(t, o, "result = 99\n")
		require.Equal(t, "99", runLua(t, out), "condition must hold:\n%s", out)
	}
}

func TestControlFlowOutputStructure(t *testing.T) {
	o := NewControlFlowObfuscator(1, false)
	out, _ := applyControlFlow(t, o, "print(1)\nprint(2)\n")

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "if "))
	assert.Equal(t, "    print(1)", lines[1])
	assert.Equal(t, "    print(2)", lines[2])
	assert.Equal(t, "end", lines[3])
}
