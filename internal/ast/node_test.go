package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "chunk", KindChunk.String())
	assert.Equal(t, "local-assign", KindLocalAssign.String())
	assert.Equal(t, "method-call", KindMethodCall.String())
	assert.Equal(t, "invalid", KindInvalid.String())
	assert.Equal(t, "kind(200)", Kind(200).String())
}

func TestTaggedIsConstructionTimeOnly(t *testing.T) {
	n := Tagged(NewNumber(1), TagGenerated)
	assert.True(t, n.Tags().Has(TagGenerated))
	assert.False(t, n.Tags().Has(TagProtected))

	// Tags are fixed once set.
	assert.Panics(t, func() { Tagged(n, TagProtected) })

	both := Tagged(NewString("s"), TagGenerated|TagProtected)
	assert.True(t, both.Tags().Has(TagGenerated))
	assert.True(t, both.Tags().Has(TagProtected))
}

func TestConstructorShapePanics(t *testing.T) {
	global := NewGlobalScope()
	top := NewScope(global)
	id := top.AddVariable("x")

	testCases := []struct {
		name  string
		build func()
	}{
		{"block without scope", func() { NewBlock(nil) }},
		{"chunk body not a function block", func() { NewChunk(NewBlock(top)) }},
		{"local assign with foreign symbol", func() {
			NewLocalAssign(NewScope(top), []SymbolID{id}, nil)
		}},
		{"local assign without names", func() { NewLocalAssign(top, nil, nil) }},
		{"assign to a literal", func() {
			NewAssign([]Expr{NewNumber(1)}, []Expr{NewNumber(2)})
		}},
		{"call statement on non-call", func() { NewCallStmt(NewNil()) }},
		{"nil in expression list", func() { NewReturn(NewNumber(1), nil) }},
		{"local reference out of scope", func() {
			NewLocal(NewScope(global), id)
		}},
		{"global reference not interned", func() { NewGlobal(top, SymbolID(999)) }},
		{"function body not a function block", func() {
			NewFunction(nil, false, NewBlock(NewScope(top)))
		}},
		{"goto without label", func() { NewGoto("") }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Panics(t, tc.build)
		})
	}
}

func TestLocalReferenceThroughAncestor(t *testing.T) {
	global := NewGlobalScope()
	top := NewScope(global)
	inner := NewScope(top)

	id := top.AddVariable("x")
	ref := NewLocal(inner, id)
	assert.Equal(t, id, ref.Sym)
	assert.Same(t, inner, ref.Scope)
}

func TestNewGlobalCarriesName(t *testing.T) {
	global := NewGlobalScope()
	top := NewScope(global)

	id := top.ResolveGlobal("print")
	ref := NewGlobal(top, id)
	assert.Equal(t, "print", ref.Name)
	assert.Equal(t, id, ref.Sym)
}

func TestUnresolvedGlobal(t *testing.T) {
	frag := NewScope(nil)
	ref := NewUnresolvedGlobal(frag, "print")
	require.Equal(t, NoSymbol, ref.Sym)
	assert.Equal(t, "print", ref.Name)
}

func TestRawNumberKeepsSpelling(t *testing.T) {
	n := NewRawNumber(255, "0xFF")
	assert.Equal(t, float64(255), n.Value)
	assert.Equal(t, "0xFF", n.Raw)
	assert.Panics(t, func() { NewRawNumber(1, "") })
}
