// Package ast defines the tree node model and the scope/symbol table used
// by every obfuscation pass. Nodes are built through constructors that
// enforce each kind's shape; node identity is by pointer, never by
// structural equality. A node is exclusively owned by its parent container:
// passes move nodes to new parents, they do not copy them.
package ast

import "fmt"

// Kind tags every node with its structural category. The set is closed:
// passes must not invent kinds, and the printer and traverser switch over
// the concrete types exhaustively.
type Kind uint8

const (
	KindInvalid Kind = iota

	KindChunk
	KindBlock

	// Statements
	KindLocalAssign
	KindAssign
	KindCallStmt
	KindDo
	KindWhile
	KindRepeat
	KindIf
	KindNumericFor
	KindGenericFor
	KindReturn
	KindBreak
	KindGoto
	KindLabel

	// Expressions
	KindNil
	KindTrue
	KindFalse
	KindVararg
	KindNumber
	KindString
	KindLocal
	KindGlobal
	KindIndex
	KindCall
	KindMethodCall
	KindFunction
	KindTable
	KindBinary
	KindUnary
)

var kindNames = map[Kind]string{
	KindInvalid:     "invalid",
	KindChunk:       "chunk",
	KindBlock:       "block",
	KindLocalAssign: "local-assign",
	KindAssign:      "assign",
	KindCallStmt:    "call-stmt",
	KindDo:          "do",
	KindWhile:       "while",
	KindRepeat:      "repeat",
	KindIf:          "if",
	KindNumericFor:  "numeric-for",
	KindGenericFor:  "generic-for",
	KindReturn:      "return",
	KindBreak:       "break",
	KindGoto:        "goto",
	KindLabel:       "label",
	KindNil:         "nil",
	KindTrue:        "true",
	KindFalse:       "false",
	KindVararg:      "vararg",
	KindNumber:      "number",
	KindString:      "string",
	KindLocal:       "local",
	KindGlobal:      "global",
	KindIndex:       "index",
	KindCall:        "call",
	KindMethodCall:  "method-call",
	KindFunction:    "function",
	KindTable:       "table",
	KindBinary:      "binary",
	KindUnary:       "unary",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Tags is an immutable bit set fixed when a node is constructed. Passes use
// it to mark synthesized nodes and nodes that later passes must leave
// alone. Per-pass transient state belongs in an identity-keyed visited set,
// not here.
type Tags uint8

const (
	// TagGenerated marks a node synthesized by a pass rather than parsed
	// from the input program.
	TagGenerated Tags = 1 << iota
	// TagProtected exempts a node (and conventionally its subtree) from
	// further rewriting.
	TagProtected
)

// Has reports whether all bits of flag are set.
func (t Tags) Has(flag Tags) bool { return t&flag == flag }

// Node is the interface satisfied by every tree node.
type Node interface {
	Kind() Kind
	Tags() Tags
	Line() int
	setTags(Tags)
	sealed()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

type base struct {
	tags Tags
	line int
}

func (b *base) Tags() Tags    { return b.tags }
func (b *base) Line() int     { return b.line }
func (b *base) SetLine(l int) { b.line = l }
func (b *base) setTags(t Tags) {
	if b.tags != 0 {
		panic("ast: node tags are fixed at construction")
	}
	b.tags = t
}
func (b *base) sealed() {}

type stmtBase struct{ base }

func (stmtBase) stmtNode() {}

type exprBase struct{ base }

func (exprBase) exprNode() {}

// Tagged stamps a freshly constructed node with an immutable tag set and
// returns it. Calling it on a node that already carries tags panics: tags
// are construction-time only.
func Tagged[T Node](n T, tags Tags) T {
	n.setTags(tags)
	return n
}

// Chunk is the root of a parsed program: one function block holding the
// top-level statements, whose scope chains up to the global scope.
type Chunk struct {
	base
	Body *Block
}

func (*Chunk) Kind() Kind { return KindChunk }

// Block is an ordered statement sequence plus the scope it introduces.
// FunctionBlock marks function bodies; rewrites that must not cross a
// function boundary (e.g. anything touching parameters) check it.
type Block struct {
	base
	Scope         *Scope
	Stmts         []Stmt
	FunctionBlock bool
}

func (*Block) Kind() Kind { return KindBlock }

// --- Statements ---

// LocalAssignStmt declares locals in Scope with parallel id/initializer
// lists. Lua multi-value semantics allow the lists to differ in length.
type LocalAssignStmt struct {
	stmtBase
	Scope *Scope
	Names []SymbolID
	Exprs []Expr
}

func (*LocalAssignStmt) Kind() Kind { return KindLocalAssign }

// AssignStmt assigns Rhs values to the assignable expressions in Lhs.
type AssignStmt struct {
	stmtBase
	Lhs []Expr
	Rhs []Expr
}

func (*AssignStmt) Kind() Kind { return KindAssign }

// CallStmt is a call expression in statement position.
type CallStmt struct {
	stmtBase
	Call Expr
}

func (*CallStmt) Kind() Kind { return KindCallStmt }

// DoStmt is a bare do...end block.
type DoStmt struct {
	stmtBase
	Body *Block
}

func (*DoStmt) Kind() Kind { return KindDo }

type WhileStmt struct {
	stmtBase
	Cond Expr
	Body *Block
}

func (*WhileStmt) Kind() Kind { return KindWhile }

type RepeatStmt struct {
	stmtBase
	Body *Block
	Cond Expr
}

func (*RepeatStmt) Kind() Kind { return KindRepeat }

// IfStmt holds one condition and branch; an elseif chain is represented as
// an Else block containing a single nested IfStmt.
type IfStmt struct {
	stmtBase
	Cond Expr
	Then *Block
	Else *Block
}

func (*IfStmt) Kind() Kind { return KindIf }

// NumericForStmt declares its control variable in Body.Scope.
type NumericForStmt struct {
	stmtBase
	Var   SymbolID
	Init  Expr
	Limit Expr
	Step  Expr // nil means the implicit step of 1
	Body  *Block
}

func (*NumericForStmt) Kind() Kind { return KindNumericFor }

// GenericForStmt declares its loop variables in Body.Scope.
type GenericForStmt struct {
	stmtBase
	Vars  []SymbolID
	Exprs []Expr
	Body  *Block
}

func (*GenericForStmt) Kind() Kind { return KindGenericFor }

type ReturnStmt struct {
	stmtBase
	Exprs []Expr
}

func (*ReturnStmt) Kind() Kind { return KindReturn }

type BreakStmt struct{ stmtBase }

func (*BreakStmt) Kind() Kind { return KindBreak }

type GotoStmt struct {
	stmtBase
	Label string
}

func (*GotoStmt) Kind() Kind { return KindGoto }

type LabelStmt struct {
	stmtBase
	Name string
}

func (*LabelStmt) Kind() Kind { return KindLabel }

// --- Expressions ---

type NilExpr struct{ exprBase }

func (*NilExpr) Kind() Kind { return KindNil }

type TrueExpr struct{ exprBase }

func (*TrueExpr) Kind() Kind { return KindTrue }

type FalseExpr struct{ exprBase }

func (*FalseExpr) Kind() Kind { return KindFalse }

type VarargExpr struct{ exprBase }

func (*VarargExpr) Kind() Kind { return KindVararg }

// NumberExpr keeps the source spelling in Raw when the literal came from
// the parser; synthesized numbers leave Raw empty and print from Value.
type NumberExpr struct {
	exprBase
	Value float64
	Raw   string
}

func (*NumberExpr) Kind() Kind { return KindNumber }

type StringExpr struct {
	exprBase
	Value string
}

func (*StringExpr) Kind() Kind { return KindString }

// LocalExpr references a local variable: the declaring scope plus the
// symbol id declared in it (or in one of its ancestors, for references
// recorded against the scope that owns the declaration).
type LocalExpr struct {
	exprBase
	Scope *Scope
	Sym   SymbolID
}

func (*LocalExpr) Kind() Kind { return KindLocal }

// GlobalExpr references a binding interned in the tree-wide global
// namespace. Scope is the scope the reference occurs in; the id lives in
// the global table at the chain root. In a detached fragment Sym is
// NoSymbol until the splicer binds the name through the host's namespace;
// Name always carries the surface name.
type GlobalExpr struct {
	exprBase
	Scope *Scope
	Sym   SymbolID
	Name  string
}

func (*GlobalExpr) Kind() Kind { return KindGlobal }

type IndexExpr struct {
	exprBase
	Object Expr
	Key    Expr
}

func (*IndexExpr) Kind() Kind { return KindIndex }

type CallExpr struct {
	exprBase
	Func Expr
	Args []Expr
}

func (*CallExpr) Kind() Kind { return KindCall }

type MethodCallExpr struct {
	exprBase
	Object Expr
	Method string
	Args   []Expr
}

func (*MethodCallExpr) Kind() Kind { return KindMethodCall }

// FunctionExpr is a function literal. Parameters are symbol ids declared
// in Body.Scope, which is always a function block.
type FunctionExpr struct {
	exprBase
	Params []SymbolID
	Vararg bool
	Body   *Block
}

func (*FunctionExpr) Kind() Kind { return KindFunction }

// TableField is one table constructor entry. A nil Key means an array-style
// entry.
type TableField struct {
	Key   Expr
	Value Expr
}

type TableExpr struct {
	exprBase
	Fields []TableField
}

func (*TableExpr) Kind() Kind { return KindTable }

type BinaryExpr struct {
	exprBase
	Op  BinaryOp
	Lhs Expr
	Rhs Expr
}

func (*BinaryExpr) Kind() Kind { return KindBinary }

type UnaryExpr struct {
	exprBase
	Op      UnaryOp
	Operand Expr
}

func (*UnaryExpr) Kind() Kind { return KindUnary }

type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpConcat
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

var binaryOpTokens = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%", OpPow: "^",
	OpConcat: "..",
	OpEq:     "==", OpNe: "~=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpAnd: "and", OpOr: "or",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpTokens) {
		return binaryOpTokens[op]
	}
	return "?"
}

type UnaryOp uint8

const (
	OpNeg UnaryOp = iota
	OpNot
	OpLen
)

var unaryOpTokens = [...]string{OpNeg: "-", OpNot: "not", OpLen: "#"}

func (op UnaryOp) String() string {
	if int(op) < len(unaryOpTokens) {
		return unaryOpTokens[op]
	}
	return "?"
}
