package ast

import "fmt"

// Constructors build well-formed nodes and panic on shape violations. A
// panic here always means a pass produced an ill-formed rewrite, never a
// normal runtime condition; the pipeline driver recovers it into a
// scope-consistency error naming the pass.

func shapeCheck(ok bool, format string, args ...interface{}) {
	if !ok {
		panic(fmt.Sprintf("ast: "+format, args...))
	}
}

func noNilExprs(where string, exprs []Expr) {
	for i, e := range exprs {
		shapeCheck(e != nil, "%s: nil expression at index %d", where, i)
	}
}

func noNilStmts(where string, stmts []Stmt) {
	for i, s := range stmts {
		shapeCheck(s != nil, "%s: nil statement at index %d", where, i)
	}
}

// NewBlock builds a plain block. A block always requires the scope it
// introduces.
func NewBlock(scope *Scope, stmts ...Stmt) *Block {
	shapeCheck(scope != nil, "block requires a scope")
	noNilStmts("block", stmts)
	return &Block{Scope: scope, Stmts: stmts}
}

// NewFunctionBlock builds a function body block. The function-block tag
// governs which rewrites may cross it.
func NewFunctionBlock(scope *Scope, stmts ...Stmt) *Block {
	b := NewBlock(scope, stmts...)
	b.FunctionBlock = true
	return b
}

// NewChunk wraps the top-level block of a program. The block must be a
// function block (a chunk body is a vararg function in Lua).
func NewChunk(body *Block) *Chunk {
	shapeCheck(body != nil, "chunk requires a body block")
	shapeCheck(body.FunctionBlock, "chunk body must be a function block")
	return &Chunk{Body: body}
}

// NewLocalAssign declares names in scope with parallel initializers. Every
// id must already be declared in the given scope. The initializer list may
// be shorter or longer than the name list (Lua adjusts value lists), but
// never contains nils.
func NewLocalAssign(scope *Scope, names []SymbolID, exprs []Expr) *LocalAssignStmt {
	shapeCheck(scope != nil, "local assignment requires a scope")
	shapeCheck(len(names) > 0, "local assignment requires at least one name")
	for _, id := range names {
		shapeCheck(scope.Owns(id), "local assignment: symbol %d not declared in its scope", id)
	}
	noNilExprs("local assignment", exprs)
	return &LocalAssignStmt{Scope: scope, Names: names, Exprs: exprs}
}

func assignable(e Expr) bool {
	switch e.(type) {
	case *LocalExpr, *GlobalExpr, *IndexExpr:
		return true
	}
	return false
}

// NewAssign builds a (possibly multi-target) assignment. Both lists must be
// non-empty and nil-free, and every target must be assignable.
func NewAssign(lhs, rhs []Expr) *AssignStmt {
	shapeCheck(len(lhs) > 0, "assignment requires at least one target")
	shapeCheck(len(rhs) > 0, "assignment requires at least one value")
	noNilExprs("assignment lhs", lhs)
	noNilExprs("assignment rhs", rhs)
	for i, e := range lhs {
		shapeCheck(assignable(e), "assignment target %d is a %s, not assignable", i, e.Kind())
	}
	return &AssignStmt{Lhs: lhs, Rhs: rhs}
}

// NewCallStmt wraps a call expression as a statement. Only calls and method
// calls may stand alone.
func NewCallStmt(call Expr) *CallStmt {
	shapeCheck(call != nil, "call statement requires a call")
	switch call.(type) {
	case *CallExpr, *MethodCallExpr:
	default:
		shapeCheck(false, "call statement requires a call expression, got %s", call.Kind())
	}
	return &CallStmt{Call: call}
}

func NewDo(body *Block) *DoStmt {
	shapeCheck(body != nil, "do statement requires a body")
	return &DoStmt{Body: body}
}

func NewWhile(cond Expr, body *Block) *WhileStmt {
	shapeCheck(cond != nil, "while requires a condition")
	shapeCheck(body != nil, "while requires a body")
	return &WhileStmt{Cond: cond, Body: body}
}

func NewRepeat(body *Block, cond Expr) *RepeatStmt {
	shapeCheck(body != nil, "repeat requires a body")
	shapeCheck(cond != nil, "repeat requires a condition")
	return &RepeatStmt{Body: body, Cond: cond}
}

// NewIf builds a conditional. Else may be nil; an elseif chain is an Else
// block holding a single nested IfStmt.
func NewIf(cond Expr, then *Block, els *Block) *IfStmt {
	shapeCheck(cond != nil, "if requires a condition")
	shapeCheck(then != nil, "if requires a then block")
	return &IfStmt{Cond: cond, Then: then, Else: els}
}

func NewNumericFor(v SymbolID, init, limit, step Expr, body *Block) *NumericForStmt {
	shapeCheck(body != nil, "numeric for requires a body")
	shapeCheck(body.Scope.Owns(v), "numeric for: control variable %d not declared in body scope", v)
	shapeCheck(init != nil && limit != nil, "numeric for requires init and limit expressions")
	return &NumericForStmt{Var: v, Init: init, Limit: limit, Step: step, Body: body}
}

func NewGenericFor(vars []SymbolID, exprs []Expr, body *Block) *GenericForStmt {
	shapeCheck(body != nil, "generic for requires a body")
	shapeCheck(len(vars) > 0, "generic for requires at least one loop variable")
	for _, id := range vars {
		shapeCheck(body.Scope.Owns(id), "generic for: loop variable %d not declared in body scope", id)
	}
	shapeCheck(len(exprs) > 0, "generic for requires at least one iterator expression")
	noNilExprs("generic for", exprs)
	return &GenericForStmt{Vars: vars, Exprs: exprs, Body: body}
}

func NewReturn(exprs ...Expr) *ReturnStmt {
	noNilExprs("return", exprs)
	return &ReturnStmt{Exprs: exprs}
}

func NewBreak() *BreakStmt { return &BreakStmt{} }

func NewGoto(label string) *GotoStmt {
	shapeCheck(label != "", "goto requires a label name")
	return &GotoStmt{Label: label}
}

func NewLabel(name string) *LabelStmt {
	shapeCheck(name != "", "label requires a name")
	return &LabelStmt{Name: name}
}

func NewNil() *NilExpr       { return &NilExpr{} }
func NewTrue() *TrueExpr     { return &TrueExpr{} }
func NewFalse() *FalseExpr   { return &FalseExpr{} }
func NewVararg() *VarargExpr { return &VarargExpr{} }

func NewNumber(v float64) *NumberExpr { return &NumberExpr{Value: v} }

// NewRawNumber keeps the source spelling for the printer.
func NewRawNumber(v float64, raw string) *NumberExpr {
	shapeCheck(raw != "", "raw number requires its source spelling")
	return &NumberExpr{Value: v, Raw: raw}
}

func NewString(v string) *StringExpr { return &StringExpr{Value: v} }

// NewLocal builds a reference to a local symbol. The id must be declared in
// scope or one of its ancestors.
func NewLocal(scope *Scope, id SymbolID) *LocalExpr {
	shapeCheck(scope != nil, "local reference requires a scope")
	owner := scope.ownerOf(id)
	shapeCheck(owner != nil, "local reference: symbol %d not visible from its scope", id)
	return &LocalExpr{Scope: scope, Sym: id}
}

// NewGlobal builds a reference to a global binding already interned via
// ResolveGlobal.
func NewGlobal(scope *Scope, id SymbolID) *GlobalExpr {
	shapeCheck(scope != nil, "global reference requires a scope")
	r := scope.root()
	shapeCheck(r.global && r.globals.owns(id), "global reference: symbol %d not interned", id)
	return &GlobalExpr{Scope: scope, Sym: id, Name: r.globals.ids[id]}
}

// NewUnresolvedGlobal builds a free global reference inside a detached
// fragment. The splicer binds it through the host's namespace; until then
// it carries no symbol id.
func NewUnresolvedGlobal(scope *Scope, name string) *GlobalExpr {
	shapeCheck(scope != nil, "global reference requires a scope")
	shapeCheck(name != "", "global reference requires a name")
	return &GlobalExpr{Scope: scope, Sym: NoSymbol, Name: name}
}

func NewIndex(object, key Expr) *IndexExpr {
	shapeCheck(object != nil && key != nil, "index requires object and key")
	return &IndexExpr{Object: object, Key: key}
}

func NewCall(fn Expr, args ...Expr) *CallExpr {
	shapeCheck(fn != nil, "call requires a callee")
	noNilExprs("call", args)
	return &CallExpr{Func: fn, Args: args}
}

func NewMethodCall(object Expr, method string, args ...Expr) *MethodCallExpr {
	shapeCheck(object != nil, "method call requires an object")
	shapeCheck(method != "", "method call requires a method name")
	noNilExprs("method call", args)
	return &MethodCallExpr{Object: object, Method: method, Args: args}
}

// NewFunction builds a function literal. The body must be a function block
// and every parameter must be declared in its scope.
func NewFunction(params []SymbolID, vararg bool, body *Block) *FunctionExpr {
	shapeCheck(body != nil, "function requires a body block")
	shapeCheck(body.FunctionBlock, "function body must be a function block")
	for _, id := range params {
		shapeCheck(body.Scope.Owns(id), "function parameter %d not declared in body scope", id)
	}
	return &FunctionExpr{Params: params, Vararg: vararg, Body: body}
}

func NewTable(fields ...TableField) *TableExpr {
	for i, f := range fields {
		shapeCheck(f.Value != nil, "table field %d has no value", i)
	}
	return &TableExpr{Fields: fields}
}

func NewBinary(op BinaryOp, lhs, rhs Expr) *BinaryExpr {
	shapeCheck(lhs != nil && rhs != nil, "binary %s requires two operands", op)
	return &BinaryExpr{Op: op, Lhs: lhs, Rhs: rhs}
}

func NewUnary(op UnaryOp, operand Expr) *UnaryExpr {
	shapeCheck(operand != nil, "unary %s requires an operand", op)
	return &UnaryExpr{Op: op, Operand: operand}
}
