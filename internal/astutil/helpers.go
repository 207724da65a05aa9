package astutil

import (
	"fmt"

	"github.com/whit3rabbit/luamixer/internal/ast"
)

// Visited is a pass-local, identity-keyed set of nodes. Passes use it to
// avoid re-processing nodes they produced themselves instead of stashing
// transient state on the node.
type Visited map[ast.Node]struct{}

// Mark records n as seen.
func (v Visited) Mark(n ast.Node) { v[n] = struct{}{} }

// Seen reports whether n was marked.
func (v Visited) Seen(n ast.Node) bool {
	_, ok := v[n]
	return ok
}

// NoteReferences walks the subtree rooted at root and records, for every
// local reference whose declaring scope is an ancestor of the scope it
// occurs in, an upvalue ledger entry. Splices and rewrites that graft
// subtrees under new scopes call this to keep the ledger consistent. A
// reference whose symbol is not visible from its own scope is a
// scope-consistency error.
func NoteReferences(root ast.Node) error {
	var firstErr error
	tr := NewTraverser(func(n ast.Node, _ *Context) Rewrite {
		ref, ok := n.(*ast.LocalExpr)
		if !ok || firstErr != nil {
			return Unchanged()
		}
		owner := ref.Scope.DeclaringScope(ref.Sym)
		if owner == nil {
			firstErr = fmt.Errorf("%w: reference to symbol %d not visible from its scope",
				ast.ErrScopeConsistency, ref.Sym)
			return Unchanged()
		}
		if owner != ref.Scope {
			if err := ref.Scope.AddReferenceToHigherScope(owner, ref.Sym); err != nil {
				firstErr = err
			}
		}
		return Unchanged()
	}, nil)
	tr.Traverse(root)
	return firstErr
}
