package template

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// unquoteChar decodes the first character or escape sequence of s, which
// follows a quote character. quote is the surrounding quote ('\'' or '"'):
// inside a single-quoted constant a bare single quote is illegal, and the
// escapes \' and \" are legal only when they match the surrounding quote.
// It returns the decoded rune and the remaining tail of s.
//
// The recognised escapes are \n \t \b \r \f \\ \' \" , a 4-hex-digit \u
// sequence, and a 1-3 digit octal sequence (3 bits per digit; a fourth
// octal digit is an error).
func unquoteChar(s string, quote byte) (r rune, tail string, err error) {
	malformed := func() error {
		return fmt.Errorf("malformed character constant: %s", s)
	}
	if s == "" {
		return 0, "", malformed()
	}
	c := s[0]
	if c == quote && (quote == '\'' || quote == '"') {
		return 0, "", malformed()
	}
	if c != '\\' {
		// Not an escape; take one rune as-is.
		rr, size := utf8.DecodeRuneInString(s)
		return rr, s[size:], nil
	}

	if len(s) <= 1 {
		return 0, "", malformed()
	}
	c = s[1]
	tail = s[2:]
	switch c {
	case 'n':
		return '\n', tail, nil
	case 't':
		return '\t', tail, nil
	case 'b':
		return '\b', tail, nil
	case 'r':
		return '\r', tail, nil
	case 'f':
		return '\f', tail, nil
	case '\\':
		return '\\', tail, nil
	case '\'', '"':
		if c != quote {
			return 0, "", malformed()
		}
		return rune(c), tail, nil
	case 'u':
		const hexDigits = 4
		if len(tail) < hexDigits {
			return 0, "", malformed()
		}
		val := rune(0)
		for i := 0; i < hexDigits; i++ {
			n, ok := unhex(tail[i])
			if !ok {
				return 0, "", malformed()
			}
			val = val<<4 | rune(n)
		}
		return val, tail[hexDigits:], nil
	case '0', '1', '2', '3', '4', '5', '6', '7':
		val := rune(c - '0')
		n := 0
		for n < 2 && len(tail) > 0 && tail[0] >= '0' && tail[0] <= '7' {
			val = val<<3 | rune(tail[0]-'0')
			tail = tail[1:]
			n++
		}
		if len(tail) > 0 && tail[0] >= '0' && tail[0] <= '7' {
			// More than three octal digits.
			return 0, "", malformed()
		}
		if val > 0xFF {
			return 0, "", malformed()
		}
		return val, tail, nil
	}
	return 0, "", malformed()
}

func unhex(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

// unquote interprets s as a quoted template string constant, returning
// the string value that it represents. Double-quoted strings support the
// escape sequences of unquoteChar; back-quoted raw strings keep their
// content verbatim except that carriage returns are discarded.
func unquote(s string) (string, error) {
	n := len(s)
	malformed := func() error {
		return fmt.Errorf("malformed string constant: %s", s)
	}
	if n < 2 {
		return "", malformed()
	}
	quote := s[0]
	if quote != s[n-1] {
		return "", malformed()
	}
	s = s[1 : n-1]

	if quote == '`' {
		if strings.ContainsRune(s, '`') {
			return "", malformed()
		}
		if strings.ContainsRune(s, '\r') {
			return strings.ReplaceAll(s, "\r", ""), nil
		}
		return s, nil
	}
	if quote != '"' && quote != '\'' {
		return "", malformed()
	}
	if strings.ContainsRune(s, '\n') {
		return "", malformed()
	}

	// Fast path: no escapes and no stray quotes.
	if !strings.ContainsAny(s, `\`+string(quote)) {
		if quote == '"' || len(s) == 1 {
			return s, nil
		}
	}

	var sb strings.Builder
	for len(s) > 0 {
		r, tail, err := unquoteChar(s, quote)
		if err != nil {
			return "", err
		}
		s = tail
		sb.WriteRune(r)
		if quote == '\'' && len(s) != 0 {
			return "", malformed()
		}
	}
	return sb.String(), nil
}

// isHexConstant reports whether s looks like a hexadecimal number literal.
func isHexConstant(s string) bool {
	return len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
