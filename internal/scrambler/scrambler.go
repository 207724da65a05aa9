// Package scrambler handles name generation and mapping persistence.
package scrambler

import (
	"bytes"
	"crypto/rand"
	"encoding/gob"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/whit3rabbit/luamixer/internal/config"
)

const (
	// Characters for the different scramble modes
	firstCharsIdentifier = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	allCharsIdentifier   = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_"
	firstCharsHex        = "abcdefABCDEF"
	allCharsHex          = "0123456789abcdefABCDEF"
	firstCharsNumeric    = "O"
	allCharsNumeric      = "0123456789"

	// Limits
	maxIdentifierLen = 16
	maxHexNumericLen = 32
	minScrambleLen   = 2
	maxRegenAttempts = 50

	// Context serialization version
	contextVersion = "luamix-scramble-v1.0"
)

// scramblerState holds the data that needs to be persisted.
// Exported fields for gob encoding.
type scramblerState struct {
	Version      string
	ScrambleMap  map[string]string // original -> scrambled
	RScrambleMap map[string]string // scrambled -> original
	LabelCounter *big.Int
	CurrentLen   int
}

// Scrambler manages the renaming map for one category of identifier.
// Lua names are case sensitive, so mappings are stored verbatim.
type Scrambler struct {
	sType         ScrambleType
	cfg           *config.Config
	mode          string
	targetLength  int
	minLength     int
	maxLength     int
	currentLength int
	ignoreMap     map[string]bool
	ignorePrefix  []string

	// State to be persisted (protected by mutex)
	scrambleMap  map[string]string
	rScrambleMap map[string]string
	labelCounter *big.Int

	mu sync.RWMutex
}

// NewScrambler creates and initializes a scrambler for a specific type.
func NewScrambler(sType ScrambleType, cfg *config.Config) (*Scrambler, error) {
	s := &Scrambler{
		sType:        sType,
		cfg:          cfg,
		scrambleMap:  make(map[string]string),
		rScrambleMap: make(map[string]string),
		ignoreMap:    make(map[string]bool),
		labelCounter: big.NewInt(0),
	}

	switch sType {
	case TypeVariable, TypeLabel:
	default:
		return nil, fmt.Errorf("unknown scramble type: %s", sType)
	}

	s.mode = strings.ToLower(cfg.ScrambleMode)
	if s.mode == "" {
		s.mode = "identifier"
	}
	s.minLength = minScrambleLen
	s.maxLength = maxIdentifierLen
	switch s.mode {
	case "identifier":
		// default max length ok
	case "hexa", "numeric":
		s.maxLength = maxHexNumericLen
	default:
		fmt.Fprintf(os.Stderr, "Warning: Invalid scramble_mode '%s', using 'identifier'.\n", cfg.ScrambleMode)
		s.mode = "identifier"
	}
	s.targetLength = cfg.ScrambleLength
	if s.targetLength < s.minLength {
		s.targetLength = s.minLength
	}
	if s.targetLength > s.maxLength {
		s.targetLength = s.maxLength
	}
	s.currentLength = s.targetLength

	var ignoreList []string
	var prefixList []string
	switch sType {
	case TypeVariable:
		ignoreList = cfg.IgnoreVariables
		prefixList = cfg.IgnoreVariablesPrefix
	case TypeLabel:
		ignoreList = cfg.IgnoreLabels
		prefixList = cfg.IgnoreLabelsPrefix
	}
	for _, item := range ignoreList {
		s.ignoreMap[item] = true
	}
	s.ignorePrefix = append(s.ignorePrefix, prefixList...)

	return s, nil
}

// ShouldIgnore checks if a name should be left untouched based on
// reserved words, specific ignore lists, and prefix lists.
func (s *Scrambler) ShouldIgnore(name string) bool {
	if IsReserved(name, s.sType) {
		return true
	}
	if s.ignoreMap[name] {
		return true
	}
	for _, prefix := range s.ignorePrefix {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Scramble returns the scrambled replacement for originalName, generating
// and recording one on first sight. Ignored names come back unchanged.
func (s *Scrambler) Scramble(originalName string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrambleLocked(originalName)
}

func (s *Scrambler) scrambleLocked(originalName string) string {
	if s.ShouldIgnore(originalName) {
		return originalName
	}
	if scrambled, exists := s.scrambleMap[originalName]; exists {
		return scrambled
	}

	for attempt := 0; attempt < maxRegenAttempts; attempt++ {
		candidate := s.generateScrambledName()
		if IsReserved(candidate, s.sType) || s.ignoreMap[candidate] {
			continue
		}
		if _, exists := s.rScrambleMap[candidate]; exists {
			if attempt > 5 && s.currentLength < s.maxLength {
				s.currentLength++
			}
			continue
		}
		s.scrambleMap[originalName] = candidate
		s.rScrambleMap[candidate] = originalName
		return candidate
	}
	fmt.Fprintf(os.Stderr, "Error: Failed to generate unique scrambled name for '%s' (type: %s) after %d attempts.\n", originalName, s.sType, maxRegenAttempts)
	s.scrambleMap[originalName] = originalName
	s.rScrambleMap[originalName] = originalName
	return originalName
}

// Unscramble looks up the original name given a scrambled name.
func (s *Scrambler) Unscramble(scrambledName string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	original, found := s.rScrambleMap[scrambledName]
	return original, found
}

// LookupObfuscated attempts to find the obfuscated name for the given
// original name without creating a new mapping.
func (s *Scrambler) LookupObfuscated(original string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obfuscated, found := s.scrambleMap[original]
	return obfuscated, found
}

// GenerateLabelName mints a fresh scrambled name for a synthetic label
// or helper variable that has no original counterpart.
func (s *Scrambler) GenerateLabelName(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	counterVal := s.labelCounter.String()
	s.labelCounter.Add(s.labelCounter, big.NewInt(1))
	generated := fmt.Sprintf("%s_%s", prefix, counterVal)
	return s.scrambleLocked(generated)
}

func (s *Scrambler) generateScrambledName() string {
	var firstChars, allChars string
	length := s.currentLength
	switch s.mode {
	case "numeric":
		firstChars = firstCharsNumeric
		allChars = allCharsNumeric
	case "hexa":
		firstChars = firstCharsHex
		allChars = allCharsHex
	case "identifier":
		fallthrough
	default:
		firstChars = firstCharsIdentifier
		allChars = allCharsIdentifier
	}
	if length < s.minLength {
		length = s.minLength
	}
	if length > s.maxLength {
		length = s.maxLength
	}
	sb := strings.Builder{}
	sb.Grow(length)
	idx := randInt(len(firstChars))
	sb.WriteByte(firstChars[idx])
	for i := 1; i < length; i++ {
		idx = randInt(len(allChars))
		sb.WriteByte(allChars[idx])
	}
	return sb.String()
}

// --- Context Persistence ---

// SaveState saves the scrambler's current mapping state to a file.
func (s *Scrambler) SaveState(filePath string) error {
	s.mu.RLock()
	state := scramblerState{
		Version:      contextVersion,
		ScrambleMap:  s.scrambleMap,
		RScrambleMap: s.rScrambleMap,
		LabelCounter: s.labelCounter,
		CurrentLen:   s.currentLength,
	}
	s.mu.RUnlock()

	var buffer bytes.Buffer
	encoder := gob.NewEncoder(&buffer)
	if err := encoder.Encode(state); err != nil {
		return fmt.Errorf("failed to encode scrambler state: %w", err)
	}

	if err := os.WriteFile(filePath, buffer.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write scrambler state to file %s: %w", filePath, err)
	}
	return nil
}

// LoadState loads the scrambler's state from a file, replacing the
// current state. A missing file is not an error.
func (s *Scrambler) LoadState(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read scrambler state file %s: %w", filePath, err)
	}

	buffer := bytes.NewBuffer(data)
	decoder := gob.NewDecoder(buffer)
	var state scramblerState

	if err := decoder.Decode(&state); err != nil {
		return fmt.Errorf("failed to decode scrambler state from file %s: %w", filePath, err)
	}

	if state.Version != contextVersion {
		return fmt.Errorf("incompatible context version: file has '%s', expected '%s'", state.Version, contextVersion)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scrambleMap = state.ScrambleMap
	s.rScrambleMap = state.RScrambleMap
	s.labelCounter = state.LabelCounter
	s.currentLength = state.CurrentLen

	if s.scrambleMap == nil {
		s.scrambleMap = make(map[string]string)
	}
	if s.rScrambleMap == nil {
		s.rScrambleMap = make(map[string]string)
	}
	if s.labelCounter == nil {
		s.labelCounter = big.NewInt(0)
	}

	return nil
}

// --- Utility Functions ---

func randInt(max int) int {
	if max <= 0 {
		return 0
	}
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return int(nBig.Int64())
}

// AllScrambleTypes lists every known scramble type.
var AllScrambleTypes = []ScrambleType{
	TypeVariable,
	TypeLabel,
}

func errInvalidType(typeStr string) error {
	return fmt.Errorf("invalid scramble type specified: '%s'", typeStr)
}
