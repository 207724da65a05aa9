package ast

import (
	"errors"
	"fmt"
	"sort"
)

// SymbolID is an opaque handle for a declared variable, unique for the
// lifetime of the whole tree. Renaming a variable's surface name never
// changes its id.
type SymbolID int

// NoSymbol is the zero SymbolID; no declared variable ever carries it.
const NoSymbol SymbolID = 0

// ErrScopeConsistency marks fatal internal errors: a pass produced an
// ill-formed tree (dangling id, inconsistent upvalue ledger, attach to a
// bad chain). The pipeline driver aborts the run naming the offending
// pass when it sees one of these.
var ErrScopeConsistency = errors.New("scope consistency violation")

// symbolTable is the flat, tree-wide global namespace kept at the chain
// root.
type symbolTable struct {
	names map[string]SymbolID
	ids   map[SymbolID]string
}

func newSymbolTable() *symbolTable {
	return &symbolTable{names: map[string]SymbolID{}, ids: map[SymbolID]string{}}
}

func (t *symbolTable) owns(id SymbolID) bool {
	_, ok := t.ids[id]
	return ok
}

// Scope is one level of the lexical scope chain. The parent link is a
// lookup relation, not an ownership edge: a scope never outlives the block
// that owns it, and scopes do not track their children.
type Scope struct {
	parent *Scope
	global bool

	// Valid at a chain root only.
	nextID  SymbolID
	globals *symbolTable

	names map[string]SymbolID
	ids   map[SymbolID]string
	order []SymbolID

	// Upvalue ledger, kept on both ends: outbound records, per ancestor
	// scope, which of its ids this scope's subtree references; inbound
	// counts, per id declared here, live references from nested scopes.
	outbound map[*Scope]map[SymbolID]int
	inbound  map[SymbolID]int
}

// NewGlobalScope creates the outermost scope of a tree. It owns the
// symbol id counter and the global namespace.
func NewGlobalScope() *Scope {
	s := newScope()
	s.global = true
	s.nextID = 1
	s.globals = newSymbolTable()
	return s
}

// NewScope creates a child scope. A nil parent yields a detached,
// non-global root (used for fragments and scopes built ahead of an
// AttachTo); detached roots mint ids from their own counter until they are
// attached.
func NewScope(parent *Scope) *Scope {
	s := newScope()
	s.parent = parent
	if parent == nil {
		s.nextID = 1
	}
	return s
}

func newScope() *Scope {
	return &Scope{
		names:    map[string]SymbolID{},
		ids:      map[SymbolID]string{},
		outbound: map[*Scope]map[SymbolID]int{},
		inbound:  map[SymbolID]int{},
	}
}

func (s *Scope) Parent() *Scope { return s.parent }

// IsGlobal reports whether this is the distinguished outermost scope.
func (s *Scope) IsGlobal() bool { return s.global }

func (s *Scope) root() *Scope {
	r := s
	for r.parent != nil {
		r = r.parent
	}
	return r
}

func (s *Scope) alloc() SymbolID {
	r := s.root()
	id := r.nextID
	r.nextID++
	return id
}

// AddVariable allocates a fresh local symbol id in this scope. Shadowing
// an outer (or even a same-scope) name always succeeds by minting a new
// id: surface names are cosmetic, ids are ground truth. An empty hint
// synthesizes a printable placeholder from the id.
func (s *Scope) AddVariable(nameHint string) SymbolID {
	id := s.alloc()
	name := nameHint
	if name == "" {
		name = fmt.Sprintf("__v%d", id)
	}
	s.names[name] = id
	s.ids[id] = name
	s.order = append(s.order, id)
	return id
}

// Owns reports whether id is declared directly in this scope.
func (s *Scope) Owns(id SymbolID) bool {
	_, ok := s.ids[id]
	return ok
}

// Declared returns the ids declared in this scope, in declaration order.
func (s *Scope) Declared() []SymbolID {
	out := make([]SymbolID, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Scope) ownerOf(id SymbolID) *Scope {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.Owns(id) {
			return sc
		}
	}
	return nil
}

// DeclaringScope walks the chain from this scope outward and returns the
// scope that declares id, or nil if no scope on the chain does.
func (s *Scope) DeclaringScope(id SymbolID) *Scope { return s.ownerOf(id) }

// Undeclare removes a declaration from this scope. Used by the splicer
// when an exported fragment binding is re-homed onto a host symbol.
func (s *Scope) Undeclare(id SymbolID) error {
	name, ok := s.ids[id]
	if !ok {
		return fmt.Errorf("%w: undeclare of symbol %d not owned by scope", ErrScopeConsistency, id)
	}
	delete(s.ids, id)
	if s.names[name] == id {
		delete(s.names, name)
	}
	for i, d := range s.order {
		if d == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Resolve looks a local up by surface name, walking the chain
// innermost-first. It returns the id, the declaring scope, and whether the
// name is declared anywhere up the chain.
func (s *Scope) Resolve(name string) (SymbolID, *Scope, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if id, ok := sc.names[name]; ok {
			return id, sc, true
		}
	}
	return NoSymbol, nil, false
}

// ResolveGlobal interns a binding in the tree-wide global namespace,
// independent of which scope requested it. Panics if the chain has no
// global root: only detached fragments lack one, and they must be attached
// before global resolution.
func (s *Scope) ResolveGlobal(name string) SymbolID {
	r := s.root()
	if !r.global {
		panic(fmt.Sprintf("ast: ResolveGlobal(%q) on a chain with no global root", name))
	}
	if id, ok := r.globals.names[name]; ok {
		return id
	}
	id := r.nextID
	r.nextID++
	r.globals.names[name] = id
	r.globals.ids[id] = name
	return id
}

// Globals returns the interned global names in a stable order, for
// diagnostics.
func (s *Scope) Globals() []string {
	r := s.root()
	if !r.global {
		return nil
	}
	out := make([]string, 0, len(r.globals.names))
	for name := range r.globals.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// VariableName reverse-maps an id to its current surface name, searching
// this scope, its ancestors, and the global namespace. Failure is a
// scope-consistency error: the id belongs to no scope reachable from
// here.
func (s *Scope) VariableName(id SymbolID) (string, error) {
	for sc := s; sc != nil; sc = sc.parent {
		if name, ok := sc.ids[id]; ok {
			return name, nil
		}
	}
	r := s.root()
	if r.global {
		if name, ok := r.globals.ids[id]; ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: symbol %d not visible from scope", ErrScopeConsistency, id)
}

// Rename changes the surface name of a symbol visible from this scope. The
// id stays stable; only the printable name changes.
func (s *Scope) Rename(id SymbolID, name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name for symbol %d", ErrScopeConsistency, id)
	}
	for sc := s; sc != nil; sc = sc.parent {
		if old, ok := sc.ids[id]; ok {
			if sc.names[old] == id {
				delete(sc.names, old)
			}
			sc.ids[id] = name
			sc.names[name] = id
			return nil
		}
	}
	r := s.root()
	if r.global {
		if old, ok := r.globals.ids[id]; ok {
			delete(r.globals.names, old)
			r.globals.ids[id] = name
			r.globals.names[name] = id
			return nil
		}
	}
	return fmt.Errorf("%w: rename of unknown symbol %d", ErrScopeConsistency, id)
}

func (s *Scope) isAncestor(candidate *Scope) bool {
	for sc := s.parent; sc != nil; sc = sc.parent {
		if sc == candidate {
			return true
		}
	}
	return false
}

// AddReferenceToHigherScope records that this scope's subtree references
// id, which is declared in the ancestor scope owner. Passes must call this
// whenever they relocate a reference to a different nesting depth, or
// later code generation produces broken closures.
func (s *Scope) AddReferenceToHigherScope(owner *Scope, id SymbolID) error {
	if owner == nil || !s.isAncestor(owner) {
		return fmt.Errorf("%w: higher-scope reference owner is not an ancestor", ErrScopeConsistency)
	}
	if !owner.Owns(id) {
		return fmt.Errorf("%w: symbol %d not declared in its claimed owner scope", ErrScopeConsistency, id)
	}
	refs := s.outbound[owner]
	if refs == nil {
		refs = map[SymbolID]int{}
		s.outbound[owner] = refs
	}
	refs[id]++
	owner.inbound[id]++
	return nil
}

// RemoveReferenceToHigherScope erases one previously recorded reference.
// Removing a reference that was never recorded is a ledger inconsistency.
func (s *Scope) RemoveReferenceToHigherScope(owner *Scope, id SymbolID) error {
	refs := s.outbound[owner]
	if refs == nil || refs[id] == 0 {
		return fmt.Errorf("%w: removing unrecorded higher-scope reference to symbol %d", ErrScopeConsistency, id)
	}
	refs[id]--
	if refs[id] == 0 {
		delete(refs, id)
		if len(refs) == 0 {
			delete(s.outbound, owner)
		}
	}
	owner.inbound[id]--
	if owner.inbound[id] == 0 {
		delete(owner.inbound, id)
	}
	return nil
}

// HasHigherReference reports, on a declaring scope, whether id is
// currently referenced from some nested scope.
func (s *Scope) HasHigherReference(id SymbolID) bool {
	return s.inbound[id] > 0
}

// HigherReferenceCount returns the number of live nested-scope references
// to id recorded against this declaring scope.
func (s *Scope) HigherReferenceCount(id SymbolID) int {
	return s.inbound[id]
}

// AttachTo grafts a previously free-floating scope onto a host chain. It
// is a one-time, consuming operation: the scope must be a detached,
// non-global root. Ids already resolved against the scope stay stable;
// only the ancestor-lookup chain changes.
func (s *Scope) AttachTo(parent *Scope) error {
	if parent == nil {
		return fmt.Errorf("%w: attach requires a host scope", ErrScopeConsistency)
	}
	if s.parent != nil {
		return fmt.Errorf("%w: scope is already attached", ErrScopeConsistency)
	}
	if s.global {
		return fmt.Errorf("%w: the global scope cannot be attached", ErrScopeConsistency)
	}
	if parent == s || parent.isAncestor(s) {
		return fmt.Errorf("%w: attach would create a scope cycle", ErrScopeConsistency)
	}
	s.parent = parent
	s.nextID = 0 // future ids mint from the host root
	return nil
}
