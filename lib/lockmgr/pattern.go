package lockmgr

import (
	"errors"
	"strings"
	"unicode"

	"github.com/gobwas/glob"
)

// --------------------------------------------------------------------------
// Shell Patterns
// --------------------------------------------------------------------------

// Find patterns follow the shell rules: "*" matches any sequence, "?" a single character
// and "[...]" a character class ("[!...]" negated). Every other character matches itself.
// gobwas/glob knows more syntax ("{a,b}", "\" escapes), so patterns are translated first.

var errNegatedMixedClass = errors.New("negated class mixes ranges and characters")

// compilePattern returns a matcher for the shell pattern.
// Patterns that cannot be expressed as a glob match lock ids literally.
func compilePattern(pattern string) func(string) bool {
	expr, err := translatePattern(pattern)
	if err == nil {
		var g glob.Glob
		if g, err = glob.Compile(expr); err == nil {
			return g.Match
		}
	}

	Logger.Debugf("find pattern %q is matched literally: %v", pattern, err)
	return func(id string) bool {
		return id == pattern
	}
}

// translatePattern converts a shell pattern into the gobwas/glob syntax
func translatePattern(pattern string) (string, error) {
	runes := []rune(pattern)
	var b strings.Builder

	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '*', '?':
			b.WriteRune(r)
		case '[':
			end := classEnd(runes, i)
			if end < 0 {
				// an unterminated class is a plain "["
				b.WriteString(quoteRune(r))
				continue
			}
			class, err := translateClass(runes[i+1 : end])
			if err != nil {
				return "", err
			}
			b.WriteString(class)
			i = end
		default:
			b.WriteString(quoteRune(r))
		}
	}
	return b.String(), nil
}

// classEnd returns the index of the "]" that closes the class opened at start or -1.
// A "]" right after "[" or "[!" is a member of the class.
func classEnd(runes []rune, start int) int {
	j := start + 1
	if j < len(runes) && runes[j] == '!' {
		j++
	}
	if j < len(runes) && runes[j] == ']' {
		j++
	}
	for ; j < len(runes); j++ {
		if runes[j] == ']' {
			return j
		}
	}
	return -1
}

type classRange struct {
	lo, hi rune
}

// translateClass converts the body of a class (without brackets)
func translateClass(body []rune) (string, error) {
	negated := len(body) > 0 && body[0] == '!'
	if negated {
		body = body[1:]
	}

	var chars []rune
	var ranges []classRange
	for i := 0; i < len(body); i++ {
		if i+2 < len(body) && body[i+1] == '-' {
			ranges = append(ranges, classRange{body[i], body[i+2]})
			i += 2
			continue
		}
		chars = append(chars, body[i])
	}

	for _, rg := range ranges {
		if rg.lo > rg.hi {
			return "", errors.New("reversed range in class")
		}
	}

	switch {
	case len(ranges) == 0:
		if !negated && len(chars) == 1 {
			return quoteRune(chars[0]), nil
		}
		return charList(chars, negated), nil

	case len(ranges) == 1 && len(chars) == 0:
		if negated {
			return "[!" + string(ranges[0].lo) + "-" + string(ranges[0].hi) + "]", nil
		}
		return "[" + string(ranges[0].lo) + "-" + string(ranges[0].hi) + "]", nil

	case negated:
		return "", errNegatedMixedClass
	}

	// ranges and characters become alternatives
	alternatives := make([]string, 0, len(ranges)+len(chars))
	for _, rg := range ranges {
		alternatives = append(alternatives, "["+string(rg.lo)+"-"+string(rg.hi)+"]")
	}
	for _, c := range chars {
		alternatives = append(alternatives, quoteRune(c))
	}
	return "{" + strings.Join(alternatives, ",") + "}", nil
}

// charList builds a class of single characters, a "-" is put last so it is never read as a range
func charList(chars []rune, negated bool) string {
	if negated && len(chars) == 1 && chars[0] == '-' {
		return "[!---]"
	}

	var b strings.Builder
	b.WriteByte('[')
	if negated {
		b.WriteByte('!')
	}
	dash := false
	for _, c := range chars {
		if c == '-' {
			dash = true
			continue
		}
		b.WriteString(quoteRune(c))
	}
	if dash {
		b.WriteString(quoteRune('-'))
	}
	b.WriteByte(']')
	return b.String()
}

// quoteRune escapes every rune that is not a letter or digit
func quoteRune(r rune) string {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return string(r)
	}
	return `\` + string(r)
}
