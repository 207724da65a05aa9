package transformer

import (
	"math"
	"math/rand"
	"time"

	"github.com/whit3rabbit/luamixer/internal/ast"
	"github.com/whit3rabbit/luamixer/internal/astutil"
)

/*
Number Literal Obfuscation Overview:
------------------------------------
Integer literals are replaced with equivalent but less readable
arithmetic expressions. Only exact integer values within a safe range
are touched, so floating point rounding can never change program
behavior.

Examples of transformations:
  - 42  →  (97 - 55)
  - 42  →  (21 * 2)
  - 42  →  ((13 + 50) - 21)       (complexity 2+)

The transformations are applied randomly to avoid predictable patterns.
*/

// NumberObfuscator replaces integer literals with equivalent expressions.
type NumberObfuscator struct {
	// ComplexityLevel selects how deeply expressions nest (1-3).
	ComplexityLevel int
	// TransformationRate is the percentage of eligible literals to
	// transform (0-100).
	TransformationRate int

	random *rand.Rand
}

func NewNumberObfuscator(complexity, rate int) *NumberObfuscator {
	if complexity < 1 {
		complexity = 1
	}
	if complexity > 3 {
		complexity = 3
	}
	if rate < 0 {
		rate = 0
	}
	if rate > 100 {
		rate = 100
	}
	return &NumberObfuscator{
		ComplexityLevel:    complexity,
		TransformationRate: rate,
		random:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Literals this large risk losing exactness under the added arithmetic.
const maxObfuscatedLiteral = 1 << 40

// Apply transforms eligible integer literals throughout the chunk.
func (o *NumberObfuscator) Apply(chunk *ast.Chunk) error {
	tr := astutil.NewTraverser(nil, func(n ast.Node, ctx *astutil.Context) astutil.Rewrite {
		num, ok := n.(*ast.NumberExpr)
		if !ok || !o.eligible(num) {
			return astutil.Unchanged()
		}
		if o.random.Intn(100) >= o.TransformationRate {
			return astutil.Unchanged()
		}
		return astutil.Replace(o.expand(num.Value, o.ComplexityLevel))
	})
	tr.Traverse(chunk)
	return nil
}

func (o *NumberObfuscator) eligible(num *ast.NumberExpr) bool {
	if num.Tags().Has(ast.TagGenerated) || num.Tags().Has(ast.TagProtected) {
		return false
	}
	v := num.Value
	return v == math.Trunc(v) && math.Abs(v) < maxObfuscatedLiteral
}

// expand builds an arithmetic expression that evaluates to v. Each level
// of complexity splits one operand again.
func (o *NumberObfuscator) expand(v float64, depth int) ast.Expr {
	if depth <= 0 {
		return ast.Tagged(ast.NewNumber(v), ast.TagGenerated)
	}
	switch o.random.Intn(3) {
	case 0: // v = a + b
		a := o.randomPart(v)
		lhs := o.expand(a, depth-1)
		rhs := o.expand(v-a, depth-1)
		return ast.Tagged(ast.NewBinary(ast.OpAdd, lhs, rhs), ast.TagGenerated)
	case 1: // v = a - b
		b := float64(1 + o.random.Intn(1<<16))
		lhs := o.expand(v+b, depth-1)
		rhs := o.expand(b, depth-1)
		return ast.Tagged(ast.NewBinary(ast.OpSub, lhs, rhs), ast.TagGenerated)
	default: // v = a * b, only when v splits into exact factors
		if f := o.smallFactor(v); f != 0 {
			lhs := o.expand(v/f, depth-1)
			rhs := o.expand(f, depth-1)
			return ast.Tagged(ast.NewBinary(ast.OpMul, lhs, rhs), ast.TagGenerated)
		}
		a := o.randomPart(v)
		lhs := o.expand(a, depth-1)
		rhs := o.expand(v-a, depth-1)
		return ast.Tagged(ast.NewBinary(ast.OpAdd, lhs, rhs), ast.TagGenerated)
	}
}

func (o *NumberObfuscator) randomPart(v float64) float64 {
	span := int(math.Min(math.Abs(v)+1024, 1<<20))
	if span < 1 {
		span = 1
	}
	return v - float64(o.random.Intn(span))
}

func (o *NumberObfuscator) smallFactor(v float64) float64 {
	if v == 0 {
		return 0
	}
	for _, f := range []float64{7, 5, 3, 2} {
		q := v / f
		if q == math.Trunc(q) {
			return f
		}
	}
	return 0
}
