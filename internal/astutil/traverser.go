// Package astutil provides the traversal and rewrite engine shared by all
// obfuscation passes, plus the small helpers passes need to stay hygienic
// (identity-keyed visited sets, upvalue ledger repair).
package astutil

import (
	"fmt"

	"github.com/whit3rabbit/luamixer/internal/ast"
)

// Rewrite is the result of a traversal callback: either Unchanged or
// Replace(node). The explicit sum type keeps "no-op" unambiguous from
// "replace with nothing".
type Rewrite struct {
	node    ast.Node
	replace bool
}

// Unchanged leaves the visited node in place.
func Unchanged() Rewrite { return Rewrite{} }

// Replace substitutes n into the visited node's slot in its parent.
func Replace(n ast.Node) Rewrite {
	if n == nil {
		panic("astutil: Replace(nil); use Unchanged for a no-op")
	}
	return Rewrite{node: n, replace: true}
}

// FunctionData is the per-enclosing-function record threaded through a
// traversal. It lives from the function's first statement to its last, so
// passes can accumulate function-scoped state on it. Statements appended
// to Prepend are inserted at the top of the function body when the engine
// leaves the block.
type FunctionData struct {
	Block *ast.Block
	Scope *ast.Scope
	Vars  map[string]interface{}

	Prepend []ast.Stmt
}

func newFunctionData(b *ast.Block) *FunctionData {
	return &FunctionData{Block: b, Scope: b.Scope, Vars: map[string]interface{}{}}
}

// Context is threaded through one traversal. Scope is the innermost
// enclosing scope of the visited node (a block's own scope while visiting
// its children and its post callback); Func is the record of the innermost
// enclosing function block.
type Context struct {
	Scope *ast.Scope
	Func  *FunctionData
}

// Callback inspects a node and optionally replaces it.
type Callback func(n ast.Node, ctx *Context) Rewrite

// Traverser performs one full depth-first walk, visiting every
// structurally owned child exactly once. The pre-order callback runs
// before a node's children; if it replaces the node, traversal descends
// into the replacement's children (the replacement itself is not
// re-visited from scratch). The post-order callback runs after the
// children and may likewise replace the node; the result is substituted
// into the parent's child slot.
//
// Traversal is single-threaded and synchronous. Running two traversals
// over the same tree concurrently is not supported: replacement mutates in
// place. Re-entering Traverse on a running Traverser panics.
type Traverser struct {
	pre     Callback
	post    Callback
	running bool
}

// NewTraverser builds a traverser from a pre-order and a post-order
// callback; either may be nil.
func NewTraverser(pre, post Callback) *Traverser {
	return &Traverser{pre: pre, post: post}
}

// Traverse walks the tree rooted at root and returns the (possibly
// replaced) root.
func (t *Traverser) Traverse(root ast.Node) ast.Node {
	if root == nil {
		return nil
	}
	if t.running {
		panic("astutil: nested Traverse on a running traverser")
	}
	t.running = true
	defer func() { t.running = false }()
	return t.walk(root, &Context{})
}

func (t *Traverser) walk(n ast.Node, ctx *Context) ast.Node {
	if t.pre != nil {
		if rw := t.pre(n, ctx); rw.replace {
			n = rw.node
		}
	}

	switch node := n.(type) {
	case *ast.Chunk:
		node.Body = t.walkBlock(node.Body, ctx)

	case *ast.Block:
		prevScope := ctx.Scope
		ctx.Scope = node.Scope
		var prevFunc *FunctionData
		if node.FunctionBlock {
			prevFunc = ctx.Func
			ctx.Func = newFunctionData(node)
		}
		for i, stmt := range node.Stmts {
			node.Stmts[i] = t.walkStmt(stmt, ctx)
		}
		if t.post != nil {
			if rw := t.post(n, ctx); rw.replace {
				n = rw.node
			}
		}
		if node.FunctionBlock {
			if fd := ctx.Func; len(fd.Prepend) > 0 {
				// The post callback may have replaced the block; the
				// prepends belong to whichever block stays in the tree.
				if out, ok := n.(*ast.Block); ok {
					out.Stmts = append(append([]ast.Stmt{}, fd.Prepend...), out.Stmts...)
				}
			}
			ctx.Func = prevFunc
		}
		ctx.Scope = prevScope
		return n

	case *ast.LocalAssignStmt:
		for i, e := range node.Exprs {
			node.Exprs[i] = t.walkExpr(e, ctx)
		}
	case *ast.AssignStmt:
		for i, e := range node.Lhs {
			node.Lhs[i] = t.walkExpr(e, ctx)
		}
		for i, e := range node.Rhs {
			node.Rhs[i] = t.walkExpr(e, ctx)
		}
	case *ast.CallStmt:
		node.Call = t.walkExpr(node.Call, ctx)
	case *ast.DoStmt:
		node.Body = t.walkBlock(node.Body, ctx)
	case *ast.WhileStmt:
		node.Cond = t.walkExpr(node.Cond, ctx)
		node.Body = t.walkBlock(node.Body, ctx)
	case *ast.RepeatStmt:
		node.Body = t.walkBlock(node.Body, ctx)
		node.Cond = t.walkExpr(node.Cond, ctx)
	case *ast.IfStmt:
		node.Cond = t.walkExpr(node.Cond, ctx)
		node.Then = t.walkBlock(node.Then, ctx)
		if node.Else != nil {
			node.Else = t.walkBlock(node.Else, ctx)
		}
	case *ast.NumericForStmt:
		node.Init = t.walkExpr(node.Init, ctx)
		node.Limit = t.walkExpr(node.Limit, ctx)
		if node.Step != nil {
			node.Step = t.walkExpr(node.Step, ctx)
		}
		node.Body = t.walkBlock(node.Body, ctx)
	case *ast.GenericForStmt:
		for i, e := range node.Exprs {
			node.Exprs[i] = t.walkExpr(e, ctx)
		}
		node.Body = t.walkBlock(node.Body, ctx)
	case *ast.ReturnStmt:
		for i, e := range node.Exprs {
			node.Exprs[i] = t.walkExpr(e, ctx)
		}
	case *ast.BreakStmt, *ast.GotoStmt, *ast.LabelStmt:
		// Leaves.

	case *ast.IndexExpr:
		node.Object = t.walkExpr(node.Object, ctx)
		node.Key = t.walkExpr(node.Key, ctx)
	case *ast.CallExpr:
		node.Func = t.walkExpr(node.Func, ctx)
		for i, e := range node.Args {
			node.Args[i] = t.walkExpr(e, ctx)
		}
	case *ast.MethodCallExpr:
		node.Object = t.walkExpr(node.Object, ctx)
		for i, e := range node.Args {
			node.Args[i] = t.walkExpr(e, ctx)
		}
	case *ast.FunctionExpr:
		node.Body = t.walkBlock(node.Body, ctx)
	case *ast.TableExpr:
		for i := range node.Fields {
			if node.Fields[i].Key != nil {
				node.Fields[i].Key = t.walkExpr(node.Fields[i].Key, ctx)
			}
			node.Fields[i].Value = t.walkExpr(node.Fields[i].Value, ctx)
		}
	case *ast.BinaryExpr:
		node.Lhs = t.walkExpr(node.Lhs, ctx)
		node.Rhs = t.walkExpr(node.Rhs, ctx)
	case *ast.UnaryExpr:
		node.Operand = t.walkExpr(node.Operand, ctx)

	case *ast.NilExpr, *ast.TrueExpr, *ast.FalseExpr, *ast.VarargExpr,
		*ast.NumberExpr, *ast.StringExpr, *ast.LocalExpr, *ast.GlobalExpr:
		// Leaves.
	}

	if t.post != nil {
		if rw := t.post(n, ctx); rw.replace {
			n = rw.node
		}
	}
	return n
}

func (t *Traverser) walkStmt(s ast.Stmt, ctx *Context) ast.Stmt {
	n := t.walk(s, ctx)
	stmt, ok := n.(ast.Stmt)
	if !ok {
		panic(fmt.Sprintf("astutil: statement replaced with non-statement %s", n.Kind()))
	}
	return stmt
}

func (t *Traverser) walkExpr(e ast.Expr, ctx *Context) ast.Expr {
	n := t.walk(e, ctx)
	expr, ok := n.(ast.Expr)
	if !ok {
		panic(fmt.Sprintf("astutil: expression replaced with non-expression %s", n.Kind()))
	}
	return expr
}

func (t *Traverser) walkBlock(b *ast.Block, ctx *Context) *ast.Block {
	n := t.walk(b, ctx)
	block, ok := n.(*ast.Block)
	if !ok {
		panic(fmt.Sprintf("astutil: block replaced with non-block %s", n.Kind()))
	}
	return block
}
