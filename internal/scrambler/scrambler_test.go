package scrambler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/luamixer/internal/config"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.IgnoreVariables = []string{"ignoreMeVar"}
	cfg.IgnoreVariablesPrefix = []string{"api_"}
	cfg.IgnoreLabels = []string{"keepLabel"}
	return cfg
}

func newTestScrambler(t *testing.T, sType ScrambleType, cfg *config.Config) *Scrambler {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	s, err := NewScrambler(sType, cfg)
	require.NoError(t, err)
	return s
}

func TestScrambleBasic(t *testing.T) {
	s := newTestScrambler(t, TypeVariable, nil)

	scrambled := s.Scramble("myVariable")
	assert.NotEqual(t, "myVariable", scrambled)
	assert.True(t, IsValidIdentifier(scrambled))

	// Scrambling is consistent.
	assert.Equal(t, scrambled, s.Scramble("myVariable"))

	// Distinct originals get distinct names.
	other := s.Scramble("otherVariable")
	assert.NotEqual(t, scrambled, other)
}

func TestScrambleCaseSensitive(t *testing.T) {
	s := newTestScrambler(t, TypeVariable, nil)

	lower := s.Scramble("name")
	upper := s.Scramble("Name")
	assert.NotEqual(t, lower, upper)
}

func TestUnscrambleRoundTrip(t *testing.T) {
	s := newTestScrambler(t, TypeVariable, nil)

	scrambled := s.Scramble("original")
	back, found := s.Unscramble(scrambled)
	require.True(t, found)
	assert.Equal(t, "original", back)

	_, found = s.Unscramble("neverIssued123")
	assert.False(t, found)
}

func TestLookupObfuscatedDoesNotCreate(t *testing.T) {
	s := newTestScrambler(t, TypeVariable, nil)

	_, found := s.LookupObfuscated("fresh")
	assert.False(t, found)

	scrambled := s.Scramble("fresh")
	got, found := s.LookupObfuscated("fresh")
	require.True(t, found)
	assert.Equal(t, scrambled, got)
}

func TestShouldIgnore(t *testing.T) {
	s := newTestScrambler(t, TypeVariable, nil)

	testCases := []struct {
		name   string
		input  string
		ignore bool
	}{
		{"keyword", "while", true},
		{"stdlib global", "print", true},
		{"self", "self", true},
		{"explicit ignore", "ignoreMeVar", true},
		{"ignored prefix", "api_token", true},
		{"ordinary name", "mine", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.ignore, s.ShouldIgnore(tc.input))
			if tc.ignore {
				assert.Equal(t, tc.input, s.Scramble(tc.input))
			}
		})
	}
}

func TestLabelIgnoreList(t *testing.T) {
	s := newTestScrambler(t, TypeLabel, nil)

	assert.Equal(t, "keepLabel", s.Scramble("keepLabel"))
	assert.NotEqual(t, "loop", s.Scramble("loop"))
}

func TestGenerateLabelName(t *testing.T) {
	s := newTestScrambler(t, TypeVariable, nil)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		name := s.GenerateLabelName("v")
		assert.True(t, IsValidIdentifier(name))
		assert.False(t, seen[name], "generated names must be unique")
		seen[name] = true
	}
}

func TestScrambleModes(t *testing.T) {
	testCases := []struct {
		mode  string
		check func(t *testing.T, name string)
	}{
		{"identifier", func(t *testing.T, name string) {
			assert.True(t, IsValidIdentifier(name))
		}},
		{"hexa", func(t *testing.T, name string) {
			assert.Regexp(t, `^[a-fA-F][0-9a-fA-F]+$`, name)
		}},
		{"numeric", func(t *testing.T, name string) {
			assert.Regexp(t, `^O[0-9]+$`, name)
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.mode, func(t *testing.T) {
			cfg := testConfig()
			cfg.ScrambleMode = tc.mode
			s := newTestScrambler(t, TypeVariable, cfg)
			tc.check(t, s.Scramble("something"))
		})
	}
}

func TestNewScramblerRejectsUnknownType(t *testing.T) {
	_, err := NewScrambler(ScrambleType("method"), testConfig())
	assert.Error(t, err)
}

func TestSaveAndLoadState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "variable.scramble")

	s1 := newTestScrambler(t, TypeVariable, nil)
	scrambled := s1.Scramble("persistent")
	require.NoError(t, s1.SaveState(path))

	s2 := newTestScrambler(t, TypeVariable, nil)
	require.NoError(t, s2.LoadState(path))

	// The mapping survives the round trip in both directions.
	assert.Equal(t, scrambled, s2.Scramble("persistent"))
	back, found := s2.Unscramble(scrambled)
	require.True(t, found)
	assert.Equal(t, "persistent", back)
}

func TestLoadStateMissingFileIsNotError(t *testing.T) {
	s := newTestScrambler(t, TypeVariable, nil)
	assert.NoError(t, s.LoadState(filepath.Join(t.TempDir(), "absent.scramble")))
}

func TestLoadStateRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.scramble")
	require.NoError(t, os.WriteFile(path, []byte("not gob data"), 0644))

	s := newTestScrambler(t, TypeVariable, nil)
	assert.Error(t, s.LoadState(path))
}

func TestIsValidIdentifier(t *testing.T) {
	assert.True(t, IsValidIdentifier("_name"))
	assert.True(t, IsValidIdentifier("n123"))
	assert.False(t, IsValidIdentifier(""))
	assert.False(t, IsValidIdentifier("1abc"))
	assert.False(t, IsValidIdentifier("with-dash"))
	assert.False(t, IsValidIdentifier("while"))
}

func TestParseScrambleType(t *testing.T) {
	got, err := ParseScrambleType("variable")
	require.NoError(t, err)
	assert.Equal(t, TypeVariable, got)

	got, err = ParseScrambleType("label")
	require.NoError(t, err)
	assert.Equal(t, TypeLabel, got)

	_, err = ParseScrambleType("function")
	assert.Error(t, err)
}
