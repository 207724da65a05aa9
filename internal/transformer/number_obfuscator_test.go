package transformer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/luamixer/internal/ast"
	"github.com/whit3rabbit/luamixer/internal/parser"
	"github.com/whit3rabbit/luamixer/internal/printer"
)

// evalConst folds a generated arithmetic expression back to its value.
func evalConst(t *testing.T, e ast.Expr) float64 {
	t.Helper()
	switch ex := e.(type) {
	case *ast.NumberExpr:
		return ex.Value
	case *ast.BinaryExpr:
		lhs := evalConst(t, ex.Lhs)
		rhs := evalConst(t, ex.Rhs)
		switch ex.Op {
		case ast.OpAdd:
			return lhs + rhs
		case ast.OpSub:
			return lhs - rhs
		case ast.OpMul:
			return lhs * rhs
		}
	}
	t.Fatalf("unexpected node %s in generated expression", e.Kind())
	return 0
}

func TestNumberObfuscatorPreservesValues(t *testing.T) {
	values := []float64{0, 1, 42, 255, -7, 1000000, -65536}

	for _, v := range values {
		t.Run(fmt.Sprintf("%v", v), func(t *testing.T) {
			for complexity := 1; complexity <= 3; complexity++ {
				o := NewNumberObfuscator(complexity, 100)
				for i := 0; i < 20; i++ {
					expr := o.expand(v, complexity)
					assert.Equal(t, v, evalConst(t, expr))
				}
			}
		})
	}
}

func TestNumberObfuscatorApply(t *testing.T) {
	chunk, err := parser.Parse("result = 42 + 0.5\n", "test.lua")
	require.NoError(t, err)

	o := NewNumberObfuscator(2, 100)
	require.NoError(t, o.Apply(chunk))

	sum := chunk.Body.Stmts[0].(*ast.AssignStmt).Rhs[0].(*ast.BinaryExpr)

	// The integer became an expression, the fraction stayed a literal.
	_, intact := sum.Lhs.(*ast.NumberExpr)
	assert.False(t, intact, "42 should have been expanded")
	frac, ok := sum.Rhs.(*ast.NumberExpr)
	require.True(t, ok)
	assert.Equal(t, 0.5, frac.Value)

	out, err := printer.Print(chunk)
	require.NoError(t, err)
	assert.Equal(t, "42.5", runLua(t, out))
}

func TestNumberObfuscatorZeroRate(t *testing.T) {
	chunk, err := parser.Parse("result = 42\n", "test.lua")
	require.NoError(t, err)

	o := NewNumberObfuscator(1, 0)
	require.NoError(t, o.Apply(chunk))

	num, ok := chunk.Body.Stmts[0].(*ast.AssignStmt).Rhs[0].(*ast.NumberExpr)
	require.True(t, ok)
	assert.Equal(t, float64(42), num.Value)
}

func TestNumberObfuscatorSkipsIneligible(t *testing.T) {
	chunk, err := parser.Parse("result = 1\n", "test.lua")
	require.NoError(t, err)
	stmt := chunk.Body.Stmts[0].(*ast.AssignStmt)

	huge := float64(1 << 50)
	stmt.Rhs[0] = ast.NewNumber(huge)

	o := NewNumberObfuscator(3, 100)
	require.NoError(t, o.Apply(chunk))

	num, ok := stmt.Rhs[0].(*ast.NumberExpr)
	require.True(t, ok, "out-of-range literals stay verbatim")
	assert.Equal(t, huge, num.Value)
}

func TestNumberObfuscatorMarksOutputGenerated(t *testing.T) {
	o := NewNumberObfuscator(1, 100)
	expr := o.expand(42, 1)
	assert.True(t, expr.Tags().Has(ast.TagGenerated))

	// A second pass over its own output changes nothing.
	chunk, err := parser.Parse("result = 1\n", "test.lua")
	require.NoError(t, err)
	stmt := chunk.Body.Stmts[0].(*ast.AssignStmt)
	stmt.Rhs[0] = expr

	require.NoError(t, o.Apply(chunk))
	assert.Same(t, expr, stmt.Rhs[0].(ast.Expr))
}

func TestNumberObfuscatorClampsSettings(t *testing.T) {
	o := NewNumberObfuscator(99, 500)
	assert.Equal(t, 3, o.ComplexityLevel)
	assert.Equal(t, 100, o.TransformationRate)

	o = NewNumberObfuscator(-1, -5)
	assert.Equal(t, 1, o.ComplexityLevel)
	assert.Equal(t, 0, o.TransformationRate)
}
