package transformer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/whit3rabbit/luamixer/internal/ast"
	"github.com/whit3rabbit/luamixer/internal/parser"
	"github.com/whit3rabbit/luamixer/internal/printer"
)

// runLua executes src in a fresh interpreter and returns the global
// "result" as a string.
func runLua(t *testing.T, src string) string {
	t.Helper()
	L := lua.NewState()
	defer L.Close()
	require.NoError(t, L.DoString(src), "obfuscated output must stay valid Lua:\n%s", src)
	return L.GetGlobal("result").String()
}

func obfuscateStrings(t *testing.T, technique, key, src string) string {
	t.Helper()
	chunk, err := parser.Parse(src, "test.lua")
	require.NoError(t, err)
	o := NewStringObfuscator(technique, key)
	require.NoError(t, o.Apply(chunk))
	out, err := printer.Print(chunk)
	require.NoError(t, err)
	return out
}

func TestStringObfuscatorEscape(t *testing.T) {
	out := obfuscateStrings(t, "escape", "", `result = "secret"`)

	assert.NotContains(t, out, `"secret"`)
	assert.Contains(t, out, "string.char(")
	assert.Equal(t, "secret", runLua(t, out))
}

func TestStringObfuscatorXOR(t *testing.T) {
	testCases := []struct {
		name string
		key  string
	}{
		{"fixed key", "mykey"},
		{"random key", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := obfuscateStrings(t, "xor", tc.key, `result = "hello world"`)

			assert.NotContains(t, out, `"hello world"`)
			assert.Contains(t, out, "__lm_d")
			assert.Equal(t, "hello world", runLua(t, out))
		})
	}
}

func TestStringObfuscatorXORLeavesDecoderIntact(t *testing.T) {
	out := obfuscateStrings(t, "xor", "mykey", `result = "hello"`)

	// The spliced decoder is parsed source like any other; its own
	// literals (the key, the stdlib index names) must survive the pass
	// verbatim or the decoder cannot run.
	assert.Contains(t, out, "string.byte")
	assert.Contains(t, out, "string.char")
	assert.Contains(t, out, "table.concat")
	assert.Equal(t, 2, strings.Count(out, "__lm_d"), "one declaration and one call site")
	assert.Equal(t, "hello", runLua(t, out))
}

func TestStringObfuscatorXORInsideFunctions(t *testing.T) {
	src := `
local function tag(s)
    return "[" .. s .. "]"
end
result = tag("deep")
`
	out := obfuscateStrings(t, "xor", "k3y", src)
	assert.Equal(t, "[deep]", runLua(t, out))
}

func TestStringObfuscatorXORSkipsWhenNothingEligible(t *testing.T) {
	out := obfuscateStrings(t, "xor", "k", `result = 42`)

	// No decoder is spliced into a program without string literals.
	assert.NotContains(t, out, "__lm_d")
	assert.Equal(t, "42", runLua(t, out))
}

func TestStringObfuscatorSkipsEmptyAndHuge(t *testing.T) {
	big := strings.Repeat("a", 5000)
	chunk, err := parser.Parse(`result = "" .. big_str`, "test.lua")
	require.NoError(t, err)

	decl := chunk.Body.Stmts[0].(*ast.AssignStmt)
	concat := decl.Rhs[0].(*ast.BinaryExpr)
	concat.Rhs = ast.NewString(big)

	o := NewStringObfuscator("escape", "")
	require.NoError(t, o.Apply(chunk))

	// Both the empty and the oversized literal are left alone.
	_, emptyOK := concat.Lhs.(*ast.StringExpr)
	assert.True(t, emptyOK)
	kept, bigOK := concat.Rhs.(*ast.StringExpr)
	require.True(t, bigOK)
	assert.Equal(t, big, kept.Value)
}

func TestStringObfuscatorSkipsGeneratedLiterals(t *testing.T) {
	chunk, err := parser.Parse("result = 1", "test.lua")
	require.NoError(t, err)
	stmt := chunk.Body.Stmts[0].(*ast.AssignStmt)
	stmt.Rhs[0] = ast.Tagged(ast.NewString("minted"), ast.TagGenerated)

	o := NewStringObfuscator("escape", "")
	require.NoError(t, o.Apply(chunk))

	_, still := stmt.Rhs[0].(*ast.StringExpr)
	assert.True(t, still, "generated literals are not re-obfuscated")
}

func TestStringObfuscatorUnknownTechnique(t *testing.T) {
	chunk, err := parser.Parse(`result = "x"`, "test.lua")
	require.NoError(t, err)

	o := NewStringObfuscator("rot13", "")
	assert.Error(t, o.Apply(chunk))
}

func TestStringObfuscatorBinaryContent(t *testing.T) {
	src := "result = \"line1\\nline2\\t\\\"quoted\\\"\""
	out := obfuscateStrings(t, "xor", "\x01\x02", src)
	assert.Equal(t, "line1\nline2\t\"quoted\"", runLua(t, out))
}
