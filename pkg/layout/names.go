package layout

import "strings"

// NameValidity selects the grammar names are checked against
type NameValidity int

const (
	// ValidityStrict requires a letter or one of ".:" first, then letters,
	// digits or one of "@:#+%-._$&/[]".
	ValidityStrict NameValidity = iota
	// ValidityAllowV15 additionally lets a name start with any continuation
	// character other than a digit.
	ValidityAllowV15
	// ValidityAllowAny disables checking; only the empty name is refused.
	ValidityAllowAny
)

const (
	nameStartChars = ".:"
	nameValidChars = "@:#+%-._$&/[]"
)

// ParseNameValidity maps a configuration keyword to a NameValidity
func ParseNameValidity(s string) (NameValidity, bool) {
	switch strings.ToLower(s) {
	case "", "strict":
		return ValidityStrict, true
	case "allow_v15", "v15":
		return ValidityAllowV15, true
	case "allow_any", "any":
		return ValidityAllowAny, true
	}
	return ValidityStrict, false
}

// IsValidName checks name against the grammar selected by v
func IsValidName(name string, v NameValidity) bool {
	if name == "" {
		return false
	}
	if v == ValidityAllowAny {
		return true
	}
	first := name[0]
	switch {
	case isAlpha(first):
	case strings.IndexByte(nameStartChars, first) >= 0:
	case v == ValidityAllowV15 && strings.IndexByte(nameValidChars, first) >= 0:
	default:
		return false
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !isAlpha(c) && !isDigit(c) && strings.IndexByte(nameValidChars, c) < 0 {
			return false
		}
	}
	return true
}

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }
