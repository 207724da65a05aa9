package transformer

import (
	"math/rand"
	"time"

	"github.com/whit3rabbit/luamixer/internal/ast"
	"github.com/whit3rabbit/luamixer/internal/astutil"
)

/*
Control Flow Obfuscation Overview:
----------------------------------
Function bodies and the top-level chunk are wrapped in conditionals that
always run:

    function f()          function f()
        return 1      →       if true then
    end                           return 1
                              end
                          end

Statement scope pointers are left alone: the wrapped statements still
declare into the enclosing scope, the wrapper only adds nesting depth to
the printed text. Optionally a bogus else branch of unreachable junk is
attached.
*/

// ControlFlowObfuscator wraps executable blocks in always-true
// conditionals.
type ControlFlowObfuscator struct {
	// MaxNestingDepth controls how many wrappers are stacked per block.
	MaxNestingDepth int
	// AddDeadBranches attaches an unreachable else branch to each wrapper.
	AddDeadBranches bool

	random *rand.Rand
}

func NewControlFlowObfuscator(maxDepth int, deadBranches bool) *ControlFlowObfuscator {
	if maxDepth < 1 {
		maxDepth = 1
	}
	return &ControlFlowObfuscator{
		MaxNestingDepth: maxDepth,
		AddDeadBranches: deadBranches,
		random:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Apply wraps every function block in the chunk, including the chunk
// body itself.
func (o *ControlFlowObfuscator) Apply(chunk *ast.Chunk) error {
	wrapped := astutil.Visited{}
	tr := astutil.NewTraverser(func(n ast.Node, ctx *astutil.Context) astutil.Rewrite {
		block, ok := n.(*ast.Block)
		if !ok || !block.FunctionBlock || wrapped.Seen(block) {
			return astutil.Unchanged()
		}
		wrapped.Mark(block)
		o.wrap(block)
		return astutil.Unchanged()
	}, nil)
	tr.Traverse(chunk)
	return nil
}

// wrap replaces the block's statement list with nested if-true wrappers
// around the original statements.
func (o *ControlFlowObfuscator) wrap(block *ast.Block) {
	if len(block.Stmts) == 0 {
		return
	}
	stmts := block.Stmts
	for i := 0; i < o.MaxNestingDepth; i++ {
		inner := ast.Tagged(ast.NewBlock(ast.NewScope(block.Scope), stmts...), ast.TagGenerated)
		var els *ast.Block
		if o.AddDeadBranches {
			els = o.deadBranch(block.Scope)
		}
		wrapper := ast.Tagged(ast.NewIf(o.trueCond(), inner, els), ast.TagGenerated)
		stmts = []ast.Stmt{wrapper}
	}
	block.Stmts = stmts
}

// trueCond produces a tautology that is not literally "true".
func (o *ControlFlowObfuscator) trueCond() ast.Expr {
	switch o.random.Intn(3) {
	case 0:
		return ast.Tagged(ast.NewTrue(), ast.TagGenerated)
	case 1:
		a := float64(1 + o.random.Intn(100))
		cond := ast.NewBinary(ast.OpLt,
			ast.Tagged(ast.NewNumber(a), ast.TagGenerated),
			ast.Tagged(ast.NewNumber(a+float64(1+o.random.Intn(100))), ast.TagGenerated))
		return ast.Tagged(cond, ast.TagGenerated)
	default:
		a := float64(o.random.Intn(1000))
		cond := ast.NewBinary(ast.OpEq,
			ast.Tagged(ast.NewNumber(a), ast.TagGenerated),
			ast.Tagged(ast.NewNumber(a), ast.TagGenerated))
		return ast.Tagged(cond, ast.TagGenerated)
	}
}

// deadBranch builds an unreachable else block of junk assignments.
func (o *ControlFlowObfuscator) deadBranch(parent *ast.Scope) *ast.Block {
	scope := ast.NewScope(parent)
	id := scope.AddVariable("")
	junk := ast.Tagged(ast.NewLocalAssign(scope, []ast.SymbolID{id},
		[]ast.Expr{ast.Tagged(ast.NewNumber(float64(o.random.Intn(10000))), ast.TagGenerated)}), ast.TagGenerated)
	return ast.Tagged(ast.NewBlock(scope, junk), ast.TagGenerated)
}
