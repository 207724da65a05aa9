package transformer

import (
	"fmt"

	"github.com/whit3rabbit/luamixer/internal/ast"
	"github.com/whit3rabbit/luamixer/internal/astutil"
	"github.com/whit3rabbit/luamixer/internal/scrambler"
)

// VariableRenamer rewrites the surface names of local bindings and goto
// labels. Symbol ids never change, only the printable names attached to
// scopes, so references cannot detach from their bindings. Every local
// binding gets a distinct generated name, which also makes textually
// colliding bindings from spliced fragments unambiguous again.
//
// Globals keep their names: they are the program's external surface.
type VariableRenamer struct {
	vars   *scrambler.Scrambler
	labels *scrambler.Scrambler

	RenameVariables bool
	RenameLabels    bool
}

func NewVariableRenamer(vars, labels *scrambler.Scrambler) *VariableRenamer {
	return &VariableRenamer{
		vars:            vars,
		labels:          labels,
		RenameVariables: true,
		RenameLabels:    true,
	}
}

// Apply renames every local binding declared anywhere in the chunk, and
// every label, in one traversal.
func (r *VariableRenamer) Apply(chunk *ast.Chunk) error {
	var walkErr error
	fail := func(err error) {
		if walkErr == nil && err != nil {
			walkErr = err
		}
	}
	renamed := make(map[*ast.Scope]bool)

	tr := astutil.NewTraverser(func(n ast.Node, ctx *astutil.Context) astutil.Rewrite {
		switch node := n.(type) {
		case *ast.Block:
			if r.RenameVariables && !renamed[node.Scope] {
				renamed[node.Scope] = true
				fail(r.renameScope(node.Scope))
			}
		case *ast.GotoStmt:
			if r.RenameLabels {
				node.Label = r.labels.Scramble(node.Label)
			}
		case *ast.LabelStmt:
			if r.RenameLabels {
				node.Name = r.labels.Scramble(node.Name)
			}
		}
		return astutil.Unchanged()
	}, nil)
	tr.Traverse(chunk)
	return walkErr
}

func (r *VariableRenamer) renameScope(scope *ast.Scope) error {
	for _, id := range scope.Declared() {
		name, err := scope.VariableName(id)
		if err != nil {
			return fmt.Errorf("rename pass: %w", err)
		}
		if r.vars.ShouldIgnore(name) {
			continue
		}
		fresh := r.vars.GenerateLabelName("v")
		if fresh == name {
			continue
		}
		if err := scope.Rename(id, fresh); err != nil {
			return fmt.Errorf("rename pass: %w", err)
		}
	}
	return nil
}
