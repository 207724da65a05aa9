package transformer

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/whit3rabbit/luamixer/internal/ast"
	"github.com/whit3rabbit/luamixer/internal/astutil"
	"github.com/whit3rabbit/luamixer/internal/config"
	"github.com/whit3rabbit/luamixer/internal/printer"
)

/*
String Obfuscation Overview:
----------------------------
String literals are replaced with runtime reconstructions so they no
longer appear verbatim in the output.

Two techniques are supported:
  - escape: the literal becomes a string.char(...) call over its bytes
  - xor:    the literal is XORed with a per-run key and wrapped in a call
            to a decoder function spliced into the top of the chunk

Examples:
  - "secret"  →  string.char(115, 101, 99, 114, 101, 116)
  - "secret"  →  __lm_d("\31\4\ ...")
*/

// decoderName is the binding the XOR decoder fragment exports.
const decoderName = "__lm_d"

// decoderFragment reconstructs XORed strings at runtime. Pure Lua 5.1
// arithmetic, no bit library required.
const decoderFragment = `local __lm_k = %s
local function __lm_d(s)
    local out = {}
    for i = 1, #s do
        local a = string.byte(s, i)
        local b = string.byte(__lm_k, ((i - 1) %% #__lm_k) + 1)
        local r, p = 0, 1
        while a > 0 or b > 0 do
            local x, y = a %% 2, b %% 2
            if x ~= y then
                r = r + p
            end
            a = (a - x) / 2
            b = (b - y) / 2
            p = p * 2
        end
        out[i] = string.char(r)
    end
    return table.concat(out)
end
`

// StringObfuscator rewrites string literals in place.
type StringObfuscator struct {
	technique string
	key       []byte
	random    *rand.Rand
	DebugMode bool
}

// NewStringObfuscator creates a pass for the given technique. An empty
// xorKey selects a random per-run key.
func NewStringObfuscator(technique, xorKey string) *StringObfuscator {
	o := &StringObfuscator{
		technique: technique,
		random:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if technique == config.StringObfuscationTechniqueXOR {
		if xorKey == "" {
			key := make([]byte, 8)
			for i := range key {
				key[i] = byte(1 + o.random.Intn(255))
			}
			o.key = key
		} else {
			o.key = []byte(xorKey)
		}
	}
	return o
}

// Apply transforms every eligible string literal in the chunk. Eligible
// means non-empty, not produced by an earlier pass, and not protected.
func (o *StringObfuscator) Apply(chunk *ast.Chunk) error {
	switch o.technique {
	case config.StringObfuscationTechniqueEscape:
		o.rewrite(chunk, nil, func(scope *ast.Scope, s *ast.StringExpr) ast.Expr {
			return o.charCall(scope, s.Value)
		})
		return nil
	case config.StringObfuscationTechniqueXOR:
		return o.applyXOR(chunk)
	default:
		return fmt.Errorf("unknown string obfuscation technique %q", o.technique)
	}
}

func (o *StringObfuscator) applyXOR(chunk *ast.Chunk) error {
	// Collect the targets before the decoder goes in: the decoder's own
	// parsed literals (its key and the stdlib index names) must not be fed
	// back through the cipher they implement.
	eligible := collectEligibleStrings(chunk)
	if len(eligible) == 0 {
		return nil
	}
	src := fmt.Sprintf(decoderFragment, printer.Quote(string(o.key)))
	exports, err := Splice(chunk.Body, src, "string-decoder", []string{decoderName})
	if err != nil {
		return fmt.Errorf("string obfuscation: %w", err)
	}
	decoder := exports[decoderName]
	hostScope := chunk.Body.Scope

	var walkErr error
	o.rewrite(chunk, eligible, func(scope *ast.Scope, s *ast.StringExpr) ast.Expr {
		encoded := make([]byte, len(s.Value))
		for i := 0; i < len(s.Value); i++ {
			encoded[i] = s.Value[i] ^ o.key[i%len(o.key)]
		}
		callee := ast.NewLocal(scope, decoder)
		if scope != hostScope {
			if err := scope.AddReferenceToHigherScope(hostScope, decoder); err != nil && walkErr == nil {
				walkErr = err
			}
		}
		arg := ast.Tagged(ast.NewString(string(encoded)), ast.TagGenerated)
		return ast.Tagged(ast.NewCall(callee, arg), ast.TagGenerated)
	})
	return walkErr
}

// rewrite runs one traversal replacing eligible literals via repl. The
// callback receives the innermost enclosing scope of the literal. A
// non-nil only set restricts the rewrite to its members.
func (o *StringObfuscator) rewrite(chunk *ast.Chunk, only astutil.Visited, repl func(*ast.Scope, *ast.StringExpr) ast.Expr) {
	tr := astutil.NewTraverser(nil, func(n ast.Node, ctx *astutil.Context) astutil.Rewrite {
		s, ok := n.(*ast.StringExpr)
		if !ok || !eligibleString(s) {
			return astutil.Unchanged()
		}
		if only != nil && !only.Seen(s) {
			return astutil.Unchanged()
		}
		return astutil.Replace(repl(ctx.Scope, s))
	})
	tr.Traverse(chunk)
}

func (o *StringObfuscator) charCall(scope *ast.Scope, value string) ast.Expr {
	strSym := scope.ResolveGlobal("string")
	args := make([]ast.Expr, len(value))
	for i := 0; i < len(value); i++ {
		args[i] = ast.Tagged(ast.NewNumber(float64(value[i])), ast.TagGenerated)
	}
	callee := ast.NewIndex(
		ast.NewGlobal(scope, strSym),
		ast.Tagged(ast.NewString("char"), ast.TagGenerated),
	)
	return ast.Tagged(ast.NewCall(callee, args...), ast.TagGenerated)
}

func eligibleString(s *ast.StringExpr) bool {
	if s.Tags().Has(ast.TagGenerated) || s.Tags().Has(ast.TagProtected) {
		return false
	}
	return len(s.Value) > 0 && len(s.Value) < 4096 && !strings.Contains(s.Value, "\x00")
}

func collectEligibleStrings(chunk *ast.Chunk) astutil.Visited {
	found := astutil.Visited{}
	tr := astutil.NewTraverser(func(n ast.Node, ctx *astutil.Context) astutil.Rewrite {
		if s, ok := n.(*ast.StringExpr); ok && eligibleString(s) {
			found.Mark(s)
		}
		return astutil.Unchanged()
	}, nil)
	tr.Traverse(chunk)
	return found
}
