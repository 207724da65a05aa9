package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddVariableAndResolve(t *testing.T) {
	global := NewGlobalScope()
	top := NewScope(global)

	id := top.AddVariable("x")
	require.NotEqual(t, NoSymbol, id)
	assert.True(t, top.Owns(id))

	got, declScope, ok := top.Resolve("x")
	require.True(t, ok)
	assert.Equal(t, id, got)
	assert.Same(t, top, declScope)

	name, err := top.VariableName(id)
	require.NoError(t, err)
	assert.Equal(t, "x", name)
}

func TestAddVariableEmptyHint(t *testing.T) {
	global := NewGlobalScope()
	top := NewScope(global)

	id := top.AddVariable("")
	name, err := top.VariableName(id)
	require.NoError(t, err)
	assert.Regexp(t, `^__v\d+$`, name)

	// The placeholder must still resolve like any other name.
	got, _, ok := top.Resolve(name)
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestShadowingMintsDistinctIDs(t *testing.T) {
	global := NewGlobalScope()
	outer := NewScope(global)
	inner := NewScope(outer)

	outerID := outer.AddVariable("x")
	innerID := inner.AddVariable("x")
	require.NotEqual(t, outerID, innerID)

	// Innermost declaration wins from the inner scope.
	got, declScope, ok := inner.Resolve("x")
	require.True(t, ok)
	assert.Equal(t, innerID, got)
	assert.Same(t, inner, declScope)

	// The outer binding is untouched.
	got, declScope, ok = outer.Resolve("x")
	require.True(t, ok)
	assert.Equal(t, outerID, got)
	assert.Same(t, outer, declScope)

	// Same-scope shadows also mint fresh ids.
	again := inner.AddVariable("x")
	assert.NotEqual(t, innerID, again)
}

func TestDeclaredOrder(t *testing.T) {
	global := NewGlobalScope()
	top := NewScope(global)

	a := top.AddVariable("a")
	b := top.AddVariable("b")
	c := top.AddVariable("c")

	assert.Equal(t, []SymbolID{a, b, c}, top.Declared())
}

func TestRenameKeepsID(t *testing.T) {
	global := NewGlobalScope()
	top := NewScope(global)
	inner := NewScope(top)

	id := top.AddVariable("count")
	require.NoError(t, inner.Rename(id, "n"))

	name, err := inner.VariableName(id)
	require.NoError(t, err)
	assert.Equal(t, "n", name)

	// The old name no longer resolves, the new one does, id unchanged.
	_, _, ok := inner.Resolve("count")
	assert.False(t, ok)
	got, _, ok := inner.Resolve("n")
	require.True(t, ok)
	assert.Equal(t, id, got)

	err = inner.Rename(SymbolID(9999), "oops")
	assert.ErrorIs(t, err, ErrScopeConsistency)

	err = inner.Rename(id, "")
	assert.ErrorIs(t, err, ErrScopeConsistency)
}

func TestRenameGlobal(t *testing.T) {
	global := NewGlobalScope()
	top := NewScope(global)

	id := top.ResolveGlobal("print")
	require.NoError(t, top.Rename(id, "p"))

	name, err := top.VariableName(id)
	require.NoError(t, err)
	assert.Equal(t, "p", name)
	assert.Equal(t, id, top.ResolveGlobal("p"))
}

func TestUndeclare(t *testing.T) {
	global := NewGlobalScope()
	top := NewScope(global)

	id := top.AddVariable("tmp")
	require.NoError(t, top.Undeclare(id))

	assert.False(t, top.Owns(id))
	_, _, ok := top.Resolve("tmp")
	assert.False(t, ok)
	assert.Empty(t, top.Declared())

	err := top.Undeclare(id)
	assert.ErrorIs(t, err, ErrScopeConsistency)
}

func TestResolveGlobalInterns(t *testing.T) {
	global := NewGlobalScope()
	top := NewScope(global)
	inner := NewScope(top)

	a := top.ResolveGlobal("print")
	b := inner.ResolveGlobal("print")
	assert.Equal(t, a, b)

	other := inner.ResolveGlobal("type")
	assert.NotEqual(t, a, other)

	assert.Equal(t, []string{"print", "type"}, top.Globals())
}

func TestResolveGlobalPanicsOnDetachedChain(t *testing.T) {
	root := NewScope(nil)
	assert.Panics(t, func() { root.ResolveGlobal("print") })
}

func TestLocalsShadowGlobalsInResolve(t *testing.T) {
	global := NewGlobalScope()
	top := NewScope(global)

	gid := top.ResolveGlobal("print")
	lid := top.AddVariable("print")

	got, _, ok := top.Resolve("print")
	require.True(t, ok)
	assert.Equal(t, lid, got)
	assert.NotEqual(t, gid, lid)
}

func TestVariableNameUnknownID(t *testing.T) {
	global := NewGlobalScope()
	top := NewScope(global)

	_, err := top.VariableName(SymbolID(12345))
	assert.ErrorIs(t, err, ErrScopeConsistency)
}

func TestUpvalueLedger(t *testing.T) {
	global := NewGlobalScope()
	outer := NewScope(global)
	inner := NewScope(outer)

	id := outer.AddVariable("captured")
	require.NoError(t, inner.AddReferenceToHigherScope(outer, id))
	require.NoError(t, inner.AddReferenceToHigherScope(outer, id))

	assert.True(t, outer.HasHigherReference(id))
	assert.Equal(t, 2, outer.HigherReferenceCount(id))

	require.NoError(t, inner.RemoveReferenceToHigherScope(outer, id))
	assert.Equal(t, 1, outer.HigherReferenceCount(id))
	require.NoError(t, inner.RemoveReferenceToHigherScope(outer, id))
	assert.False(t, outer.HasHigherReference(id))

	// A fully drained entry cannot be removed again.
	err := inner.RemoveReferenceToHigherScope(outer, id)
	assert.ErrorIs(t, err, ErrScopeConsistency)
}

func TestLedgerRejectsInconsistentClaims(t *testing.T) {
	global := NewGlobalScope()
	outer := NewScope(global)
	sibling := NewScope(global)
	inner := NewScope(outer)

	id := outer.AddVariable("x")

	// The claimed owner must be an ancestor of the referencing scope.
	err := inner.AddReferenceToHigherScope(sibling, id)
	assert.ErrorIs(t, err, ErrScopeConsistency)

	// And the symbol must actually be declared there.
	err = inner.AddReferenceToHigherScope(outer, SymbolID(777))
	assert.ErrorIs(t, err, ErrScopeConsistency)

	err = inner.RemoveReferenceToHigherScope(outer, id)
	assert.ErrorIs(t, err, ErrScopeConsistency)
}

func TestAttachTo(t *testing.T) {
	global := NewGlobalScope()
	host := NewScope(global)
	hostID := host.AddVariable("shared")

	frag := NewScope(nil)
	fragID := frag.AddVariable("own")

	require.NoError(t, frag.AttachTo(host))

	// Fragment locals stay resolvable, and host names become visible.
	got, _, ok := frag.Resolve("own")
	require.True(t, ok)
	assert.Equal(t, fragID, got)

	got, declScope, ok := frag.Resolve("shared")
	require.True(t, ok)
	assert.Equal(t, hostID, got)
	assert.Same(t, host, declScope)

	// Globals resolve now that the chain has a global root.
	assert.NotEqual(t, NoSymbol, frag.ResolveGlobal("print"))
}

func TestAttachToIsOneShot(t *testing.T) {
	global := NewGlobalScope()
	host := NewScope(global)

	frag := NewScope(nil)
	require.NoError(t, frag.AttachTo(host))

	err := frag.AttachTo(host)
	assert.ErrorIs(t, err, ErrScopeConsistency)
}

func TestAttachToRejectsBadTargets(t *testing.T) {
	global := NewGlobalScope()

	assert.ErrorIs(t, NewScope(nil).AttachTo(nil), ErrScopeConsistency)
	assert.ErrorIs(t, global.AttachTo(NewScope(nil)), ErrScopeConsistency)

	// Attaching a scope under its own descendant would form a cycle.
	frag := NewScope(nil)
	child := NewScope(frag)
	assert.ErrorIs(t, frag.AttachTo(child), ErrScopeConsistency)
	assert.ErrorIs(t, frag.AttachTo(frag), ErrScopeConsistency)
}

func TestAttachedScopeMintsFromHostCounter(t *testing.T) {
	global := NewGlobalScope()
	host := NewScope(global)
	seen := map[SymbolID]bool{}
	for i := 0; i < 3; i++ {
		seen[host.AddVariable("")] = true
	}

	frag := NewScope(nil)
	fragID := frag.AddVariable("a")
	require.NoError(t, frag.AttachTo(host))

	// New ids allocated through the attached scope must not collide with
	// ids the host root hands out afterwards.
	after := frag.AddVariable("b")
	assert.False(t, seen[after])
	assert.NotEqual(t, fragID, after)
	assert.NotEqual(t, after, host.AddVariable("c"))
}
