package scrambler

import "strings"

// ScrambleType defines the category of identifier being scrambled.
type ScrambleType string

const (
	TypeVariable ScrambleType = "variable"
	TypeLabel    ScrambleType = "label"
)

// Lua keywords. Generated names must never collide with these.
var reservedKeywords = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true,
	"end": true, "false": true, "for": true, "function": true, "goto": true,
	"if": true, "in": true, "local": true, "nil": true, "not": true,
	"or": true, "repeat": true, "return": true, "then": true, "true": true,
	"until": true, "while": true,
}

// Names of the standard global environment. Renaming locals to any of
// these would shadow the library and break spliced helper fragments
// that call into it.
var reservedGlobals = map[string]bool{
	"_G": true, "_ENV": true, "_VERSION": true,
	"assert": true, "collectgarbage": true, "dofile": true, "error": true,
	"getmetatable": true, "ipairs": true, "load": true, "loadstring": true,
	"next": true, "pairs": true, "pcall": true, "print": true,
	"rawequal": true, "rawget": true, "rawlen": true, "rawset": true,
	"require": true, "select": true, "setmetatable": true, "tonumber": true,
	"tostring": true, "type": true, "unpack": true, "xpcall": true,
	"coroutine": true, "debug": true, "io": true, "math": true,
	"os": true, "package": true, "string": true, "table": true,
	"bit32": true, "utf8": true,
	// self carries the receiver in method bodies
	"self": true,
}

// IsReserved reports whether a name may not be produced or replaced for
// the given scramble type. Lua identifiers are case sensitive, so no
// lowering happens here beyond the keyword check.
func IsReserved(name string, sType ScrambleType) bool {
	if reservedKeywords[name] {
		return true
	}
	switch sType {
	case TypeVariable:
		return reservedGlobals[name]
	case TypeLabel:
		return false
	default:
		return false
	}
}

// IsValidIdentifier reports whether s is a well-formed Lua name.
func IsValidIdentifier(s string) bool {
	if s == "" || reservedKeywords[s] {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// ParseScrambleType converts a string identifier to its corresponding
// ScrambleType constant.
func ParseScrambleType(typeStr string) (ScrambleType, error) {
	lowerType := strings.ToLower(strings.TrimSpace(typeStr))
	for _, sType := range AllScrambleTypes {
		if string(sType) == lowerType {
			return sType, nil
		}
	}
	return "", errInvalidType(typeStr)
}
