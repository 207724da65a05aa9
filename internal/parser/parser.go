// Package parser is the front-end collaborator: it drives gopher-lua's
// parser over the input and lowers the resulting tree into this project's
// node model, building the scope chain and resolving every identifier to a
// symbol id on the way.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	luaast "github.com/yuin/gopher-lua/ast"
	luaparse "github.com/yuin/gopher-lua/parse"

	"github.com/whit3rabbit/luamixer/internal/ast"
)

// SyntaxError is a user-visible parse failure with a source location. It
// aborts the whole run; the parser never returns a partial tree.
type SyntaxError struct {
	Source string
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Source, e.Line, e.Column, e.Msg)
}

// Parse parses a whole program. The returned chunk's body is a function
// block whose scope chains up to a fresh global scope; every identifier is
// resolved (locals innermost-first, everything else interned as a global)
// and cross-scope references are recorded in the upvalue ledger.
func Parse(src, name string) (*ast.Chunk, error) {
	stmts, err := luaparse.Parse(strings.NewReader(src), name)
	if err != nil {
		return nil, wrapSyntaxError(err)
	}
	global := ast.NewGlobalScope()
	top := ast.NewScope(global)
	c := &converter{scope: top}
	body := append([]ast.Stmt{}, c.convStmts(stmts)...)
	return ast.NewChunk(ast.NewFunctionBlock(top, body...)), nil
}

// ParseFragment parses pass-synthesized program text into a standalone
// block with a detached scope root. Free identifiers stay unresolved
// (pending globals) until the splicer re-roots the block onto a host scope
// and binds them through the host's namespace.
func ParseFragment(src, name string) (*ast.Block, error) {
	stmts, err := luaparse.Parse(strings.NewReader(src), name)
	if err != nil {
		return nil, wrapSyntaxError(err)
	}
	root := ast.NewScope(nil)
	c := &converter{scope: root, fragment: true}
	body := append([]ast.Stmt{}, c.convStmts(stmts)...)
	return ast.NewBlock(root, body...), nil
}

func wrapSyntaxError(err error) error {
	var perr *luaparse.Error
	if errors.As(err, &perr) {
		return &SyntaxError{
			Source: perr.Pos.Source,
			Line:   perr.Pos.Line,
			Column: perr.Pos.Column,
			Msg:    perr.Message,
		}
	}
	return err
}

type converter struct {
	scope    *ast.Scope
	fragment bool
}

func (c *converter) withScope(s *ast.Scope, fn func()) {
	prev := c.scope
	c.scope = s
	fn()
	c.scope = prev
}

func (c *converter) convStmts(stmts []luaast.Stmt) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, c.convStmt(s))
	}
	return out
}

// convBlock lowers a statement list into a fresh child scope of the
// current one.
func (c *converter) convBlock(stmts []luaast.Stmt, function bool) *ast.Block {
	scope := ast.NewScope(c.scope)
	var body []ast.Stmt
	c.withScope(scope, func() {
		body = c.convStmts(stmts)
	})
	if function {
		return ast.NewFunctionBlock(scope, body...)
	}
	return ast.NewBlock(scope, body...)
}

func (c *converter) convStmt(s luaast.Stmt) ast.Stmt {
	var out ast.Stmt
	switch st := s.(type) {
	case *luaast.LocalAssignStmt:
		// "local function f" arrives as a single-name local with a
		// function initializer; the local must be declared before the
		// body is lowered so recursive references bind to it.
		if len(st.Names) == 1 && len(st.Exprs) == 1 {
			if fe, ok := st.Exprs[0].(*luaast.FunctionExpr); ok {
				id := c.scope.AddVariable(st.Names[0])
				fn := c.convFuncExpr(fe, false)
				out = ast.NewLocalAssign(c.scope, []ast.SymbolID{id}, []ast.Expr{fn})
				break
			}
		}
		exprs := c.convExprs(st.Exprs)
		ids := make([]ast.SymbolID, len(st.Names))
		for i, name := range st.Names {
			ids[i] = c.scope.AddVariable(name)
		}
		out = ast.NewLocalAssign(c.scope, ids, exprs)

	case *luaast.AssignStmt:
		out = ast.NewAssign(c.convExprs(st.Lhs), c.convExprs(st.Rhs))

	case *luaast.FuncCallStmt:
		out = ast.NewCallStmt(c.convExpr(st.Expr))

	case *luaast.DoBlockStmt:
		out = ast.NewDo(c.convBlock(st.Stmts, false))

	case *luaast.WhileStmt:
		out = ast.NewWhile(c.convExpr(st.Condition), c.convBlock(st.Stmts, false))

	case *luaast.RepeatStmt:
		// The until condition sees the body's locals.
		scope := ast.NewScope(c.scope)
		var body []ast.Stmt
		var cond ast.Expr
		c.withScope(scope, func() {
			body = c.convStmts(st.Stmts)
			cond = c.convExpr(st.Condition)
		})
		out = ast.NewRepeat(ast.NewBlock(scope, body...), cond)

	case *luaast.IfStmt:
		cond := c.convExpr(st.Condition)
		then := c.convBlock(st.Then, false)
		var els *ast.Block
		if len(st.Else) > 0 {
			els = c.convBlock(st.Else, false)
		}
		out = ast.NewIf(cond, then, els)

	case *luaast.NumberForStmt:
		init := c.convExpr(st.Init)
		limit := c.convExpr(st.Limit)
		var step ast.Expr
		if st.Step != nil {
			step = c.convExpr(st.Step)
		}
		scope := ast.NewScope(c.scope)
		id := scope.AddVariable(st.Name)
		var body []ast.Stmt
		c.withScope(scope, func() {
			body = c.convStmts(st.Stmts)
		})
		out = ast.NewNumericFor(id, init, limit, step, ast.NewBlock(scope, body...))

	case *luaast.GenericForStmt:
		exprs := c.convExprs(st.Exprs)
		scope := ast.NewScope(c.scope)
		ids := make([]ast.SymbolID, len(st.Names))
		for i, name := range st.Names {
			ids[i] = scope.AddVariable(name)
		}
		var body []ast.Stmt
		c.withScope(scope, func() {
			body = c.convStmts(st.Stmts)
		})
		out = ast.NewGenericFor(ids, exprs, ast.NewBlock(scope, body...))

	case *luaast.FuncDefStmt:
		out = c.convFuncDef(st)

	case *luaast.ReturnStmt:
		out = ast.NewReturn(c.convExprs(st.Exprs)...)

	case *luaast.BreakStmt:
		out = ast.NewBreak()

	case *luaast.LabelStmt:
		out = ast.NewLabel(st.Name)

	case *luaast.GotoStmt:
		out = ast.NewGoto(st.Label)

	default:
		panic(fmt.Sprintf("parser: unhandled statement %T", s))
	}
	if ps, ok := s.(luaast.PositionHolder); ok {
		setLine(out, ps.Line())
	}
	return out
}

// convFuncDef lowers "function name(...)", "function a.b.c(...)" and
// "function a:m(...)" into an assignment of a function literal. The method
// form gets an implicit self parameter.
func (c *converter) convFuncDef(st *luaast.FuncDefStmt) ast.Stmt {
	if st.Name.Method != "" {
		fn := c.convFuncExpr(st.Func, true)
		target := ast.NewIndex(c.convExpr(st.Name.Receiver), ast.NewString(st.Name.Method))
		return ast.NewAssign([]ast.Expr{target}, []ast.Expr{fn})
	}
	fn := c.convFuncExpr(st.Func, false)
	target := c.convExpr(st.Name.Func)
	return ast.NewAssign([]ast.Expr{target}, []ast.Expr{fn})
}

func (c *converter) convFuncExpr(fe *luaast.FunctionExpr, addSelf bool) *ast.FunctionExpr {
	scope := ast.NewScope(c.scope)
	var params []ast.SymbolID
	vararg := false
	if addSelf {
		params = append(params, scope.AddVariable("self"))
	}
	if fe.ParList != nil {
		for _, name := range fe.ParList.Names {
			params = append(params, scope.AddVariable(name))
		}
		vararg = fe.ParList.HasVargs
	}
	var body []ast.Stmt
	c.withScope(scope, func() {
		body = c.convStmts(fe.Stmts)
	})
	return ast.NewFunction(params, vararg, ast.NewFunctionBlock(scope, body...))
}

func (c *converter) convExprs(exprs []luaast.Expr) []ast.Expr {
	out := make([]ast.Expr, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, c.convExpr(e))
	}
	return out
}

func (c *converter) convExpr(e luaast.Expr) ast.Expr {
	switch ex := e.(type) {
	case *luaast.NilExpr:
		return ast.NewNil()
	case *luaast.TrueExpr:
		return ast.NewTrue()
	case *luaast.FalseExpr:
		return ast.NewFalse()
	case *luaast.Comma3Expr:
		return ast.NewVararg()
	case *luaast.NumberExpr:
		return ast.NewRawNumber(parseNumber(ex.Value), ex.Value)
	case *luaast.StringExpr:
		return ast.NewString(ex.Value)
	case *luaast.IdentExpr:
		return c.resolveName(ex.Value)
	case *luaast.AttrGetExpr:
		return ast.NewIndex(c.convExpr(ex.Object), c.convExpr(ex.Key))
	case *luaast.TableExpr:
		fields := make([]ast.TableField, 0, len(ex.Fields))
		for _, f := range ex.Fields {
			var key ast.Expr
			if f.Key != nil {
				key = c.convExpr(f.Key)
			}
			fields = append(fields, ast.TableField{Key: key, Value: c.convExpr(f.Value)})
		}
		return ast.NewTable(fields...)
	case *luaast.FuncCallExpr:
		if ex.Method != "" {
			return ast.NewMethodCall(c.convExpr(ex.Receiver), ex.Method, c.convExprs(ex.Args)...)
		}
		return ast.NewCall(c.convExpr(ex.Func), c.convExprs(ex.Args)...)
	case *luaast.LogicalOpExpr:
		op := ast.OpAnd
		if ex.Operator == "or" {
			op = ast.OpOr
		}
		return ast.NewBinary(op, c.convExpr(ex.Lhs), c.convExpr(ex.Rhs))
	case *luaast.RelationalOpExpr:
		return ast.NewBinary(relationalOp(ex.Operator), c.convExpr(ex.Lhs), c.convExpr(ex.Rhs))
	case *luaast.StringConcatOpExpr:
		return ast.NewBinary(ast.OpConcat, c.convExpr(ex.Lhs), c.convExpr(ex.Rhs))
	case *luaast.ArithmeticOpExpr:
		return ast.NewBinary(arithmeticOp(ex.Operator), c.convExpr(ex.Lhs), c.convExpr(ex.Rhs))
	case *luaast.UnaryMinusOpExpr:
		return ast.NewUnary(ast.OpNeg, c.convExpr(ex.Expr))
	case *luaast.UnaryNotOpExpr:
		return ast.NewUnary(ast.OpNot, c.convExpr(ex.Expr))
	case *luaast.UnaryLenOpExpr:
		return ast.NewUnary(ast.OpLen, c.convExpr(ex.Expr))
	case *luaast.FunctionExpr:
		return c.convFuncExpr(ex, false)
	default:
		panic(fmt.Sprintf("parser: unhandled expression %T", e))
	}
}

// resolveName binds an identifier: locals innermost-first, recording an
// upvalue ledger entry when the declaring scope is an ancestor; anything
// else is a global (interned immediately for whole-program parses,
// deferred for fragments).
func (c *converter) resolveName(name string) ast.Expr {
	if id, owner, ok := c.scope.Resolve(name); ok {
		if owner != c.scope {
			if err := c.scope.AddReferenceToHigherScope(owner, id); err != nil {
				panic(fmt.Sprintf("parser: %v", err))
			}
		}
		return ast.NewLocal(c.scope, id)
	}
	if c.fragment {
		return ast.NewUnresolvedGlobal(c.scope, name)
	}
	return ast.NewGlobal(c.scope, c.scope.ResolveGlobal(name))
}

func relationalOp(op string) ast.BinaryOp {
	switch op {
	case "==":
		return ast.OpEq
	case "~=":
		return ast.OpNe
	case "<":
		return ast.OpLt
	case "<=":
		return ast.OpLe
	case ">":
		return ast.OpGt
	case ">=":
		return ast.OpGe
	}
	panic(fmt.Sprintf("parser: unknown relational operator %q", op))
}

func arithmeticOp(op string) ast.BinaryOp {
	switch op {
	case "+":
		return ast.OpAdd
	case "-":
		return ast.OpSub
	case "*":
		return ast.OpMul
	case "/":
		return ast.OpDiv
	case "%":
		return ast.OpMod
	case "^":
		return ast.OpPow
	}
	panic(fmt.Sprintf("parser: unknown arithmetic operator %q", op))
}

func parseNumber(raw string) float64 {
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	// Plain hex integers ("0x10") are not hex floats; route them through
	// ParseInt.
	if v, err := strconv.ParseInt(raw, 0, 64); err == nil {
		return float64(v)
	}
	if v, err := strconv.ParseUint(raw, 0, 64); err == nil {
		return float64(v)
	}
	return 0
}

type lineSetter interface{ SetLine(int) }

func setLine(n ast.Node, line int) {
	if ls, ok := n.(lineSetter); ok {
		ls.SetLine(line)
	}
}
