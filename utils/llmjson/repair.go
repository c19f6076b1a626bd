package llmjson

import (
	"fmt"
	"strings"
)

// Repair rewrites near-JSON into JSON. It fixes exactly these malformations:
//   - trailing commas before } or ]
//   - single-quoted strings
//   - unquoted object keys, and bare-word values (True/False/None become true/false/null)
//   - raw control characters and invalid escapes inside strings
//   - truncated tails: an unterminated string, a dangling key, ',' or ':', unclosed brackets
//
// Anything else is passed through untouched and left for the strict parser to reject.
func Repair(s string) string {
	r := repairer{src: s, buf: make([]byte, 0, len(s)+16)}
	r.run()
	return string(r.buf)
}

type repairer struct {
	src string
	buf []byte

	closers []byte

	inString    bool
	quote       byte
	stringIsKey bool
	// lastWasKey is set after a key string closes and cleared by the next significant byte
	lastWasKey bool
}

func (r *repairer) run() {
	for i := 0; i < len(r.src); i++ {
		c := r.src[i]

		if r.inString {
			i = r.stringByte(i)
			continue
		}

		switch {
		case c == '"' || c == '\'':
			r.stringIsKey = r.expectingKey()
			r.lastWasKey = false
			r.inString = true
			r.quote = c
			r.buf = append(r.buf, '"')
		case c == '{':
			r.significant(c)
			r.closers = append(r.closers, '}')
		case c == '[':
			r.significant(c)
			r.closers = append(r.closers, ']')
		case c == '}' || c == ']':
			r.trimTrailingComma()
			r.significant(c)
			if n := len(r.closers); n > 0 && r.closers[n-1] == c {
				r.closers = r.closers[:n-1]
			}
		case c == '-' || isDigit(c):
			i = r.number(i)
		case isIdentStart(c):
			i = r.bareWord(i)
		default:
			if !isSpace(c) {
				r.lastWasKey = false
			}
			r.buf = append(r.buf, c)
		}
	}
	r.closeTail()
}

// stringByte consumes one byte (or escape pair) inside a string and returns the last index used
func (r *repairer) stringByte(i int) int {
	c := r.src[i]
	switch {
	case c == '\\':
		if i+1 >= len(r.src) {
			return i
		}
		next := r.src[i+1]
		switch {
		case r.quote == '\'' && next == '\'':
			r.buf = append(r.buf, '\'')
		case strings.IndexByte(`"\/bfnrtu`, next) != -1:
			r.buf = append(r.buf, '\\', next)
		default:
			r.buf = append(r.buf, '\\', '\\')
			return i
		}
		return i + 1
	case c == r.quote:
		r.inString = false
		r.buf = append(r.buf, '"')
		r.lastWasKey = r.stringIsKey
	case c == '"':
		r.buf = append(r.buf, '\\', '"')
	case c < 0x20:
		r.buf = append(r.buf, escapeControl(c)...)
	default:
		r.buf = append(r.buf, c)
	}
	return i
}

// bareWord handles an unquoted identifier starting at i and returns the last index used
func (r *repairer) bareWord(i int) int {
	j := i
	for j < len(r.src) && isIdentPart(r.src[j]) {
		j++
	}
	word := r.src[i:j]

	k := j
	for k < len(r.src) && isSpace(r.src[k]) {
		k++
	}
	followedByColon := k < len(r.src) && r.src[k] == ':'

	switch {
	case followedByColon && r.expectingKey():
		r.appendQuoted(word)
		r.lastWasKey = true
		return j - 1
	case word == "true" || word == "false" || word == "null":
		r.buf = append(r.buf, word...)
	case word == "True":
		r.buf = append(r.buf, "true"...)
	case word == "False":
		r.buf = append(r.buf, "false"...)
	case word == "None":
		r.buf = append(r.buf, "null"...)
	default:
		r.appendQuoted(word)
	}
	r.lastWasKey = false
	return j - 1
}

// number copies a numeric literal so exponents are not mistaken for bare words
func (r *repairer) number(i int) int {
	j := i
	for j < len(r.src) && (isDigit(r.src[j]) || strings.IndexByte("+-.eE", r.src[j]) != -1) {
		j++
	}
	r.lastWasKey = false
	r.buf = append(r.buf, r.src[i:j]...)
	return j - 1
}

func (r *repairer) appendQuoted(word string) {
	r.buf = append(r.buf, '"')
	r.buf = append(r.buf, word...)
	r.buf = append(r.buf, '"')
}

func (r *repairer) significant(c byte) {
	r.lastWasKey = false
	r.buf = append(r.buf, c)
}

// expectingKey reports whether the next token sits in key position of an object
func (r *repairer) expectingKey() bool {
	if n := len(r.closers); n == 0 || r.closers[n-1] != '}' {
		return false
	}
	last, _ := r.lastSignificant()
	return last == '{' || last == ','
}

func (r *repairer) lastSignificant() (byte, int) {
	for i := len(r.buf) - 1; i >= 0; i-- {
		if !isSpace(r.buf[i]) {
			return r.buf[i], i
		}
	}
	return 0, -1
}

func (r *repairer) trimTrailingComma() {
	if last, idx := r.lastSignificant(); last == ',' {
		r.buf = r.buf[:idx]
	}
}

func (r *repairer) closeTail() {
	if r.inString {
		r.buf = append(r.buf, '"')
		r.inString = false
		r.lastWasKey = r.stringIsKey
	}

	last, idx := r.lastSignificant()
	if idx >= 0 {
		r.buf = r.buf[:idx+1]
	}
	switch {
	case r.lastWasKey:
		r.buf = append(r.buf, ':', 'n', 'u', 'l', 'l')
	case last == ':':
		r.buf = append(r.buf, "null"...)
	case last == ',':
		r.buf = r.buf[:idx]
	}

	for i := len(r.closers) - 1; i >= 0; i-- {
		r.buf = append(r.buf, r.closers[i])
	}
	r.closers = nil
}

func escapeControl(c byte) []byte {
	switch c {
	case '\n':
		return []byte(`\n`)
	case '\r':
		return []byte(`\r`)
	case '\t':
		return []byte(`\t`)
	case '\b':
		return []byte(`\b`)
	case '\f':
		return []byte(`\f`)
	}
	return []byte(fmt.Sprintf(`\u%04x`, c))
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '-'
}
