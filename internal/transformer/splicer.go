package transformer

import (
	"fmt"

	"github.com/whit3rabbit/luamixer/internal/ast"
	"github.com/whit3rabbit/luamixer/internal/astutil"
	"github.com/whit3rabbit/luamixer/internal/parser"
)

// Splice parses src as a standalone fragment and merges its statements
// into the front of the host block. Names listed in exports become
// declarations of the host scope under their fragment names, so host code
// inserted later can reference them; the returned map gives their symbol
// ids. Every other fragment binding gets a fresh id minted from the host
// counter, and its name is regenerated when it would collide with a name
// already visible in the host, so spliced helpers never capture or shadow
// host bindings and the fragment's detached ids never alias host ids.
//
// Free names in the fragment bind through the host chain: to a host local
// when one is visible, otherwise to the tree-wide global namespace.
func Splice(host *ast.Block, src, name string, exports []string) (map[string]ast.SymbolID, error) {
	return SpliceAt(host, src, name, exports, 0)
}

// SpliceAt is Splice with an explicit statement index in the host block.
func SpliceAt(host *ast.Block, src, name string, exports []string, at int) (map[string]ast.SymbolID, error) {
	frag, err := parser.ParseFragment(src, name)
	if err != nil {
		return nil, fmt.Errorf("splice %s: %w", name, err)
	}
	fragScope := frag.Scope
	if err := fragScope.AttachTo(host.Scope); err != nil {
		return nil, fmt.Errorf("splice %s: %w", name, err)
	}

	exported := make(map[string]bool, len(exports))
	for _, e := range exports {
		exported[e] = true
	}

	// Re-home every root-level fragment binding onto the host scope.
	// Exported names keep their surface name; the rest get a fresh one on
	// collision.
	remap := make(map[ast.SymbolID]ast.SymbolID)
	newOwner := make(map[ast.SymbolID]*ast.Scope)
	oldDecl := make(map[ast.SymbolID]*ast.Scope)
	result := make(map[string]ast.SymbolID)
	for _, fragID := range fragScope.Declared() {
		origName, nerr := fragScope.VariableName(fragID)
		if nerr != nil {
			return nil, fmt.Errorf("splice %s: %w", name, nerr)
		}
		hint := origName
		if !exported[origName] {
			if _, _, taken := host.Scope.Resolve(origName); taken {
				hint = ""
			}
		}
		hostID := host.Scope.AddVariable(hint)
		remap[fragID] = hostID
		newOwner[fragID] = host.Scope
		oldDecl[fragID] = fragScope
		if exported[origName] {
			result[origName] = hostID
		}
	}
	for e := range exported {
		if _, ok := result[e]; !ok {
			return nil, fmt.Errorf("splice %s: fragment does not declare exported name %q", name, e)
		}
	}

	// Nested fragment scopes minted their ids from the detached counter,
	// and those values can alias ids the host minted earlier. Re-mint every
	// nested declaration from the host counter so the two id domains stay
	// disjoint; the declarations keep their scope and surface name. All old
	// ids come out of their scopes before any fresh one goes in: a fresh id
	// may coincide numerically with a stale detached id, and both in one
	// scope map would clobber each other.
	type nestedDecl struct {
		sc   *ast.Scope
		id   ast.SymbolID
		name string
	}
	var nestedDecls []nestedDecl
	for _, sc := range fragmentScopes(frag, fragScope) {
		for _, oldID := range sc.Declared() {
			scName, nerr := sc.VariableName(oldID)
			if nerr != nil {
				return nil, fmt.Errorf("splice %s: %w", name, nerr)
			}
			nestedDecls = append(nestedDecls, nestedDecl{sc: sc, id: oldID, name: scName})
		}
	}
	for _, d := range nestedDecls {
		if err := d.sc.Undeclare(d.id); err != nil {
			return nil, fmt.Errorf("splice %s: %w", name, err)
		}
	}
	for _, d := range nestedDecls {
		freshID := d.sc.AddVariable(d.name)
		remap[d.id] = freshID
		newOwner[d.id] = d.sc
		oldDecl[d.id] = d.sc
	}

	var walkErr error
	note := func(err error) {
		if walkErr == nil && err != nil {
			walkErr = err
		}
	}
	tr := astutil.NewTraverser(func(n ast.Node, ctx *astutil.Context) astutil.Rewrite {
		switch node := n.(type) {
		case *ast.LocalAssignStmt:
			for i, id := range node.Names {
				if nid, ok := remap[id]; ok {
					node.Names[i] = nid
				}
			}
			if node.Scope == fragScope {
				node.Scope = host.Scope
			}
		case *ast.NumericForStmt:
			if nid, ok := remap[node.Var]; ok {
				node.Var = nid
			}
		case *ast.GenericForStmt:
			for i, id := range node.Vars {
				if nid, ok := remap[id]; ok {
					node.Vars[i] = nid
				}
			}
		case *ast.FunctionExpr:
			for i, id := range node.Params {
				if nid, ok := remap[id]; ok {
					node.Params[i] = nid
				}
			}
		case *ast.LocalExpr:
			nid, mapped := remap[node.Sym]
			if !mapped {
				return astutil.Unchanged()
			}
			from, to := oldDecl[node.Sym], newOwner[node.Sym]
			if node.Scope == from {
				node.Sym = nid
				node.Scope = to
				return astutil.Unchanged()
			}
			note(node.Scope.RemoveReferenceToHigherScope(from, node.Sym))
			note(node.Scope.AddReferenceToHigherScope(to, nid))
			node.Sym = nid
		case *ast.GlobalExpr:
			if node.Sym != ast.NoSymbol {
				return astutil.Unchanged()
			}
			occ := node.Scope
			if occ == fragScope {
				occ = host.Scope
			}
			if id, declScope, ok := occ.Resolve(node.Name); ok {
				if declScope == fragScope {
					id = remap[id]
					declScope = host.Scope
				}
				local := ast.NewLocal(occ, id)
				if occ != declScope {
					note(occ.AddReferenceToHigherScope(declScope, id))
				}
				return astutil.Replace(local)
			}
			node.Sym = occ.ResolveGlobal(node.Name)
			node.Scope = occ
		}
		return astutil.Unchanged()
	}, nil)
	tr.Traverse(frag)
	if walkErr != nil {
		return nil, fmt.Errorf("splice %s: %w", name, walkErr)
	}

	for oldID, sc := range oldDecl {
		if sc != fragScope {
			continue // nested ids were undeclared before the re-mint
		}
		if err := fragScope.Undeclare(oldID); err != nil {
			return nil, fmt.Errorf("splice %s: %w", name, err)
		}
	}

	if at < 0 {
		at = 0
	}
	if at > len(host.Stmts) {
		at = len(host.Stmts)
	}
	merged := make([]ast.Stmt, 0, len(host.Stmts)+len(frag.Stmts))
	merged = append(merged, host.Stmts[:at]...)
	merged = append(merged, frag.Stmts...)
	merged = append(merged, host.Stmts[at:]...)
	host.Stmts = merged

	return result, nil
}

// fragmentScopes lists every scope introduced below the fragment's root
// scope, in traversal order.
func fragmentScopes(frag *ast.Block, root *ast.Scope) []*ast.Scope {
	var scopes []*ast.Scope
	seen := map[*ast.Scope]bool{root: true}
	tr := astutil.NewTraverser(func(n ast.Node, _ *astutil.Context) astutil.Rewrite {
		if b, ok := n.(*ast.Block); ok && !seen[b.Scope] {
			seen[b.Scope] = true
			scopes = append(scopes, b.Scope)
		}
		return astutil.Unchanged()
	}, nil)
	tr.Traverse(frag)
	return scopes
}
