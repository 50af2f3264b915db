package table

import (
	"strings"
	"unicode"
)

// Match reports whether s matches the wildcard pattern. The grammar is
//
//	*        any run of characters, including none
//	?        exactly one character
//	[set]    one character from set; ranges like a-z are allowed
//	[^set]   one character not in set ([!set] is accepted too)
//	\c       the literal character c
//
// Unlike path.Match a '*' also spans '/' characters, which are legal in names.
func Match(pattern, s string, noCase bool) bool {
	return match([]rune(pattern), []rune(s), noCase)
}

// HasWildcards reports whether pattern contains any unescaped wildcard
func HasWildcards(pattern string) bool {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// matcher returns a test of names against pattern. Patterns without
// wildcards compare as literals once their escapes are removed.
func matcher(pattern string, noCase bool) func(string) bool {
	if HasWildcards(pattern) {
		return func(s string) bool { return Match(pattern, s, noCase) }
	}
	literal := []rune(unescapeLiteral(pattern))
	return func(s string) bool {
		if !noCase {
			return string(literal) == s
		}
		runes := []rune(s)
		if len(runes) != len(literal) {
			return false
		}
		for i, r := range runes {
			if !equalRune(literal[i], r, true) {
				return false
			}
		}
		return true
	}
}

// unescapeLiteral drops the backslash of each \c escape; a trailing
// backslash stays literal
func unescapeLiteral(pattern string) string {
	if !strings.ContainsRune(pattern, '\\') {
		return pattern
	}
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '\\' && i+1 < len(pattern) {
			i++
		}
		_ = b.WriteByte(pattern[i])
	}
	return b.String()
}

func match(p, s []rune, noCase bool) bool {
	// Backtracking over the last '*' only is enough for this grammar.
	var starP, starS = -1, 0
	pi, si := 0, 0
	for si < len(s) {
		if pi < len(p) {
			switch p[pi] {
			case '*':
				starP, starS = pi, si
				pi++
				continue
			case '?':
				pi++
				si++
				continue
			case '[':
				if ok, next, valid := matchSet(p, pi, s[si], noCase); valid {
					if ok {
						pi = next
						si++
						continue
					}
				} else if equalRune('[', s[si], noCase) {
					pi++
					si++
					continue
				}
			case '\\':
				if pi+1 < len(p) && equalRune(p[pi+1], s[si], noCase) {
					pi += 2
					si++
					continue
				}
				if pi+1 == len(p) && s[si] == '\\' {
					pi++
					si++
					continue
				}
			default:
				if equalRune(p[pi], s[si], noCase) {
					pi++
					si++
					continue
				}
			}
		}
		if starP < 0 {
			return false
		}
		starS++
		pi, si = starP+1, starS
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

// matchSet evaluates the bracket expression starting at p[start]. valid is
// false when the bracket is never closed, in which case '[' is literal.
func matchSet(p []rune, start int, c rune, noCase bool) (ok bool, next int, valid bool) {
	i := start + 1
	negate := false
	if i < len(p) && (p[i] == '^' || p[i] == '!') {
		negate = true
		i++
	}
	first := true
	for i < len(p) {
		if p[i] == ']' && !first {
			return ok != negate, i + 1, true
		}
		first = false
		lo := p[i]
		if lo == '\\' && i+1 < len(p) {
			i++
			lo = p[i]
		}
		hi := lo
		if i+2 < len(p) && p[i+1] == '-' && p[i+2] != ']' {
			hi = p[i+2]
			if hi == '\\' && i+3 < len(p) {
				i++
				hi = p[i+2]
			}
			i += 2
		}
		i++
		if inRange(c, lo, hi, noCase) {
			ok = true
		}
	}
	return false, 0, false
}

func inRange(c, lo, hi rune, noCase bool) bool {
	if lo <= c && c <= hi {
		return true
	}
	if !noCase {
		return false
	}
	l, u := unicode.ToLower(c), unicode.ToUpper(c)
	return (lo <= l && l <= hi) || (lo <= u && u <= hi)
}

func equalRune(a, b rune, noCase bool) bool {
	if a == b {
		return true
	}
	return noCase && unicode.ToLower(a) == unicode.ToLower(b)
}
