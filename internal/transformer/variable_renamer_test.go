package transformer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/luamixer/internal/config"
	"github.com/whit3rabbit/luamixer/internal/parser"
	"github.com/whit3rabbit/luamixer/internal/printer"
	"github.com/whit3rabbit/luamixer/internal/scrambler"
)

func newTestRenamer(t *testing.T, cfg *config.Config) *VariableRenamer {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	vars, err := scrambler.NewScrambler(scrambler.TypeVariable, cfg)
	require.NoError(t, err)
	labels, err := scrambler.NewScrambler(scrambler.TypeLabel, cfg)
	require.NoError(t, err)
	return NewVariableRenamer(vars, labels)
}

func renameSource(t *testing.T, r *VariableRenamer, src string) string {
	t.Helper()
	chunk, err := parser.Parse(src, "test.lua")
	require.NoError(t, err)
	require.NoError(t, r.Apply(chunk))
	out, err := printer.Print(chunk)
	require.NoError(t, err)
	return out
}

func TestRenamerRenamesLocals(t *testing.T) {
	r := newTestRenamer(t, nil)
	out := renameSource(t, r, "local secret = 1\nprint(secret)\n")

	assert.NotContains(t, out, "secret")
	// The declaration and the use line still share one name.
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	name := strings.TrimSuffix(strings.TrimPrefix(lines[0], "local "), " = 1")
	assert.Equal(t, "print("+name+")", lines[1])
	assert.Equal(t, "1", runLua(t, renameSource(t, newTestRenamer(t, nil), "local v = 1\nresult = v\n")))
}

func TestRenamerKeepsGlobals(t *testing.T) {
	r := newTestRenamer(t, nil)
	out := renameSource(t, r, "local x = 1\nmyGlobal = x\nprint(myGlobal)\n")

	assert.Contains(t, out, "myGlobal = ")
	assert.Contains(t, out, "print(myGlobal)")

	decl := strings.Fields(strings.Split(out, "\n")[0])
	require.Len(t, decl, 4)
	assert.NotEqual(t, "x", decl[1])
}

func TestRenamerDistinctNamesForShadows(t *testing.T) {
	src := `
local x = 1
do
    local x = 2
    result = x
end
`
	r := newTestRenamer(t, nil)
	out := renameSource(t, r, src)

	// Two declarations, two distinct generated names.
	var declNames []string
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "local ") {
			declNames = append(declNames, strings.Fields(trimmed)[1])
		}
	}
	require.Len(t, declNames, 2)
	assert.NotEqual(t, declNames[0], declNames[1])
	assert.Equal(t, "2", runLua(t, out))
}

func TestRenamerHonorsIgnoreList(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.IgnoreVariables = []string{"keepMe"}
	cfg.IgnoreVariablesPrefix = []string{"api_"}

	r := newTestRenamer(t, cfg)
	out := renameSource(t, r, "local keepMe = 1\nlocal api_token = 2\nlocal hideMe = 3\n")

	assert.Contains(t, out, "keepMe")
	assert.Contains(t, out, "api_token")
	assert.NotContains(t, out, "hideMe")
}

func TestRenamerKeepsSelf(t *testing.T) {
	src := `
local obj = { prefix = "hi " }
function obj:greet(name)
    return self.prefix .. name
end
result = obj:greet("lua")
`
	r := newTestRenamer(t, nil)
	out := renameSource(t, r, src)

	assert.Contains(t, out, "self.prefix")
	assert.Equal(t, "hi lua", runLua(t, out))
}

func TestRenamerRenamesLabels(t *testing.T) {
	src := `
local i = 0
::again::
i = i + 1
if i < 3 then
    goto again
end
result = i
`
	r := newTestRenamer(t, nil)
	out := renameSource(t, r, src)

	assert.NotContains(t, out, "again")
	// goto and label still agree on the new name.
	assert.Equal(t, "3", runLua(t, out))
}

func TestRenamerTogglesOff(t *testing.T) {
	r := newTestRenamer(t, nil)
	r.RenameVariables = false
	r.RenameLabels = false

	src := "local visible = 1\n::spot::\nprint(visible)\n"
	out := renameSource(t, r, src)
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "::spot::")
}

func TestRenamerPreservesUpvalues(t *testing.T) {
	src := `
local counter = 0
local function bump()
    counter = counter + 1
    return counter
end
bump()
bump()
result = bump()
`
	r := newTestRenamer(t, nil)
	out := renameSource(t, r, src)

	assert.NotContains(t, out, "counter")
	assert.Equal(t, "3", runLua(t, out))
}
