package transformer

import (
	"math/rand"
	"time"

	"github.com/whit3rabbit/luamixer/internal/ast"
	"github.com/whit3rabbit/luamixer/internal/astutil"
)

/*
Dead Code Injection Overview:
-----------------------------
Unreachable blocks are inserted at random statement boundaries:

    if false then
        local __v12 = 4821
        __v12 = __v12 * 3
    end

The guard is always false, so injected code never executes. Injected
nodes carry the generated tag and are skipped by every other pass.
*/

// DeadCodeInserter injects unreachable blocks into statement lists.
type DeadCodeInserter struct {
	// InjectionRate is the percentage chance to inject at each statement
	// boundary (0-100).
	InjectionRate int
	// MaxInjectionDepth limits how deeply nested a block may be and still
	// receive injections.
	MaxInjectionDepth int

	random *rand.Rand
}

func NewDeadCodeInserter(rate, maxDepth int) *DeadCodeInserter {
	if rate < 0 {
		rate = 0
	}
	if rate > 100 {
		rate = 100
	}
	if maxDepth < 1 {
		maxDepth = 1
	}
	return &DeadCodeInserter{
		InjectionRate:     rate,
		MaxInjectionDepth: maxDepth,
		random:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Apply injects dead blocks throughout the chunk.
func (d *DeadCodeInserter) Apply(chunk *ast.Chunk) error {
	seen := astutil.Visited{}
	tr := astutil.NewTraverser(func(n ast.Node, ctx *astutil.Context) astutil.Rewrite {
		block, ok := n.(*ast.Block)
		if !ok || seen.Seen(block) || block.Tags().Has(ast.TagGenerated) {
			return astutil.Unchanged()
		}
		seen.Mark(block)
		if scopeDepth(block.Scope) > d.MaxInjectionDepth {
			return astutil.Unchanged()
		}
		d.injectInto(block)
		return astutil.Unchanged()
	}, nil)
	tr.Traverse(chunk)
	return nil
}

func scopeDepth(s *ast.Scope) int {
	depth := 0
	for sc := s.Parent(); sc != nil; sc = sc.Parent() {
		depth++
	}
	return depth
}

func (d *DeadCodeInserter) injectInto(block *ast.Block) {
	out := make([]ast.Stmt, 0, len(block.Stmts)+2)
	for _, stmt := range block.Stmts {
		if d.random.Intn(100) < d.InjectionRate {
			out = append(out, d.deadBlock(block.Scope))
		}
		out = append(out, stmt)
	}
	block.Stmts = out
}

// deadBlock builds one unreachable if-false statement.
func (d *DeadCodeInserter) deadBlock(parent *ast.Scope) ast.Stmt {
	scope := ast.NewScope(parent)
	id := scope.AddVariable("")
	decl := ast.Tagged(ast.NewLocalAssign(scope, []ast.SymbolID{id},
		[]ast.Expr{ast.Tagged(ast.NewNumber(float64(d.random.Intn(10000))), ast.TagGenerated)}), ast.TagGenerated)
	churn := ast.Tagged(ast.NewAssign(
		[]ast.Expr{ast.NewLocal(scope, id)},
		[]ast.Expr{ast.Tagged(ast.NewBinary(ast.OpMul,
			ast.NewLocal(scope, id),
			ast.Tagged(ast.NewNumber(float64(1+d.random.Intn(9))), ast.TagGenerated)), ast.TagGenerated)}), ast.TagGenerated)
	body := ast.Tagged(ast.NewBlock(scope, decl, churn), ast.TagGenerated)
	return ast.Tagged(ast.NewIf(ast.Tagged(ast.NewFalse(), ast.TagGenerated), body, nil), ast.TagGenerated)
}
