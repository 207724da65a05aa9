// Package printer emits Lua source from a finished tree. It consumes the
// scope name tables for every symbol id; the pipeline guarantees every id
// has a resolvable printable name by the time printing runs. Original
// formatting and comments are not preserved.
package printer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/whit3rabbit/luamixer/internal/ast"
)

// Lua operator precedence, low to high. Concat and pow associate to the
// right.
const (
	precOr = iota + 1
	precAnd
	precCompare
	precConcat
	precAdd
	precMul
	precUnary
	precPow
	precAtom
)

var luaKeywords = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true,
	"end": true, "false": true, "for": true, "function": true, "goto": true,
	"if": true, "in": true, "local": true, "nil": true, "not": true,
	"or": true, "repeat": true, "return": true, "then": true, "true": true,
	"until": true, "while": true,
}

type printer struct {
	sb     strings.Builder
	indent int
	err    error
}

// Print renders a chunk back to Lua source, one statement per line.
func Print(chunk *ast.Chunk) (string, error) {
	p := &printer{}
	p.stmts(chunk.Body.Stmts)
	if p.err != nil {
		return "", p.err
	}
	return p.sb.String(), nil
}

// PrintBlock renders a standalone block, used by diagnostics and tests.
func PrintBlock(b *ast.Block) (string, error) {
	p := &printer{}
	p.stmts(b.Stmts)
	if p.err != nil {
		return "", p.err
	}
	return p.sb.String(), nil
}

func (p *printer) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *printer) write(s string) {
	p.sb.WriteString(s)
}

func (p *printer) line(s string) {
	p.write(strings.Repeat("    ", p.indent))
	p.write(s)
	p.write("\n")
}

func (p *printer) name(scope *ast.Scope, id ast.SymbolID) string {
	name, err := scope.VariableName(id)
	if err != nil {
		p.fail(err)
		return "?"
	}
	return name
}

func (p *printer) stmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		p.stmt(s)
	}
}

func (p *printer) block(b *ast.Block) {
	p.indent++
	p.stmts(b.Stmts)
	p.indent--
}

func (p *printer) stmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.LocalAssignStmt:
		names := make([]string, len(st.Names))
		for i, id := range st.Names {
			names[i] = p.name(st.Scope, id)
		}
		if len(st.Exprs) == 0 {
			p.line("local " + strings.Join(names, ", "))
			return
		}
		p.line("local " + strings.Join(names, ", ") + " = " + p.exprList(st.Exprs))
	case *ast.AssignStmt:
		p.line(p.exprList(st.Lhs) + " = " + p.exprList(st.Rhs))
	case *ast.CallStmt:
		p.line(p.expr(st.Call, precAtom))
	case *ast.DoStmt:
		p.line("do")
		p.block(st.Body)
		p.line("end")
	case *ast.WhileStmt:
		p.line("while " + p.expr(st.Cond, precOr) + " do")
		p.block(st.Body)
		p.line("end")
	case *ast.RepeatStmt:
		p.line("repeat")
		p.block(st.Body)
		p.line("until " + p.expr(st.Cond, precOr))
	case *ast.IfStmt:
		p.ifChain(st, "if")
		p.line("end")
	case *ast.NumericForStmt:
		head := "for " + p.name(st.Body.Scope, st.Var) + " = " +
			p.expr(st.Init, precOr) + ", " + p.expr(st.Limit, precOr)
		if st.Step != nil {
			head += ", " + p.expr(st.Step, precOr)
		}
		p.line(head + " do")
		p.block(st.Body)
		p.line("end")
	case *ast.GenericForStmt:
		names := make([]string, len(st.Vars))
		for i, id := range st.Vars {
			names[i] = p.name(st.Body.Scope, id)
		}
		p.line("for " + strings.Join(names, ", ") + " in " + p.exprList(st.Exprs) + " do")
		p.block(st.Body)
		p.line("end")
	case *ast.ReturnStmt:
		if len(st.Exprs) == 0 {
			p.line("return")
			return
		}
		p.line("return " + p.exprList(st.Exprs))
	case *ast.BreakStmt:
		p.line("break")
	case *ast.GotoStmt:
		p.line("goto " + st.Label)
	case *ast.LabelStmt:
		p.line("::" + st.Name + "::")
	default:
		p.fail(fmt.Errorf("printer: unhandled statement %s", s.Kind()))
	}
}

func (p *printer) ifChain(st *ast.IfStmt, keyword string) {
	p.line(keyword + " " + p.expr(st.Cond, precOr) + " then")
	p.block(st.Then)
	if st.Else == nil {
		return
	}
	// An else block holding a single nested if prints as an elseif chain.
	if len(st.Else.Stmts) == 1 {
		if nested, ok := st.Else.Stmts[0].(*ast.IfStmt); ok {
			p.ifChain(nested, "elseif")
			return
		}
	}
	p.line("else")
	p.block(st.Else)
}

func (p *printer) exprList(exprs []ast.Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = p.expr(e, precOr)
	}
	return strings.Join(parts, ", ")
}

func (p *printer) expr(e ast.Expr, prec int) string {
	switch ex := e.(type) {
	case *ast.NilExpr:
		return "nil"
	case *ast.TrueExpr:
		return "true"
	case *ast.FalseExpr:
		return "false"
	case *ast.VarargExpr:
		return "..."
	case *ast.NumberExpr:
		if ex.Raw != "" {
			return ex.Raw
		}
		return formatNumber(ex.Value)
	case *ast.StringExpr:
		return Quote(ex.Value)
	case *ast.LocalExpr:
		return p.name(ex.Scope, ex.Sym)
	case *ast.GlobalExpr:
		if ex.Sym == ast.NoSymbol {
			return ex.Name
		}
		return p.name(ex.Scope, ex.Sym)
	case *ast.IndexExpr:
		obj := p.prefix(ex.Object)
		if key, ok := ex.Key.(*ast.StringExpr); ok && isIdent(key.Value) {
			return obj + "." + key.Value
		}
		return obj + "[" + p.expr(ex.Key, precOr) + "]"
	case *ast.CallExpr:
		return p.prefix(ex.Func) + "(" + p.exprList(ex.Args) + ")"
	case *ast.MethodCallExpr:
		return p.prefix(ex.Object) + ":" + ex.Method + "(" + p.exprList(ex.Args) + ")"
	case *ast.FunctionExpr:
		return p.function(ex)
	case *ast.TableExpr:
		return p.table(ex)
	case *ast.BinaryExpr:
		return p.binary(ex, prec)
	case *ast.UnaryExpr:
		operand := p.expr(ex.Operand, precUnary)
		tok := ex.Op.String()
		if ex.Op == ast.OpNot {
			tok += " "
		}
		if precUnary < prec {
			return "(" + tok + operand + ")"
		}
		return tok + operand
	default:
		p.fail(fmt.Errorf("printer: unhandled expression %s", e.Kind()))
		return "?"
	}
}

// prefix renders an expression in prefix position (callee, indexed
// object), parenthesizing anything that is not itself a prefix
// expression.
func (p *printer) prefix(e ast.Expr) string {
	switch e.(type) {
	case *ast.LocalExpr, *ast.GlobalExpr, *ast.IndexExpr, *ast.CallExpr, *ast.MethodCallExpr:
		return p.expr(e, precAtom)
	}
	return "(" + p.expr(e, precOr) + ")"
}

func binaryPrec(op ast.BinaryOp) (prec int, rightAssoc bool) {
	switch op {
	case ast.OpOr:
		return precOr, false
	case ast.OpAnd:
		return precAnd, false
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return precCompare, false
	case ast.OpConcat:
		return precConcat, true
	case ast.OpAdd, ast.OpSub:
		return precAdd, false
	case ast.OpMul, ast.OpDiv, ast.OpMod:
		return precMul, false
	case ast.OpPow:
		return precPow, true
	}
	return precAtom, false
}

func (p *printer) binary(ex *ast.BinaryExpr, prec int) string {
	opPrec, rightAssoc := binaryPrec(ex.Op)
	lp, rp := opPrec, opPrec+1
	if rightAssoc {
		lp, rp = opPrec+1, opPrec
	}
	out := p.expr(ex.Lhs, lp) + " " + ex.Op.String() + " " + p.expr(ex.Rhs, rp)
	if opPrec < prec {
		return "(" + out + ")"
	}
	return out
}

func (p *printer) function(ex *ast.FunctionExpr) string {
	params := make([]string, 0, len(ex.Params)+1)
	for _, id := range ex.Params {
		params = append(params, p.name(ex.Body.Scope, id))
	}
	if ex.Vararg {
		params = append(params, "...")
	}
	sub := &printer{indent: p.indent + 1}
	sub.stmts(ex.Body.Stmts)
	if sub.err != nil {
		p.fail(sub.err)
	}
	var sb strings.Builder
	sb.WriteString("function(" + strings.Join(params, ", ") + ")\n")
	sb.WriteString(sub.sb.String())
	sb.WriteString(strings.Repeat("    ", p.indent) + "end")
	return sb.String()
}

func (p *printer) table(ex *ast.TableExpr) string {
	if len(ex.Fields) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(ex.Fields))
	for _, f := range ex.Fields {
		switch {
		case f.Key == nil:
			parts = append(parts, p.expr(f.Value, precOr))
		default:
			if key, ok := f.Key.(*ast.StringExpr); ok && isIdent(key.Value) {
				parts = append(parts, key.Value+" = "+p.expr(f.Value, precOr))
				continue
			}
			parts = append(parts, "["+p.expr(f.Key, precOr)+"] = "+p.expr(f.Value, precOr))
		}
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func isIdent(s string) bool {
	if s == "" || luaKeywords[s] {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Quote renders s as a double-quoted Lua string literal, escaping
// non-printable bytes with decimal escapes.
func Quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if c < 32 || c > 126 {
				// Three digits always, so a literal digit can follow.
				sb.WriteString(fmt.Sprintf("\\%03d", c))
			} else {
				sb.WriteByte(c)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
