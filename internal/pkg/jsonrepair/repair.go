package jsonrepair

import (
	"encoding/json"
	"regexp"
	"strings"
)

// codeFields are string fields whose values are known to carry raw source
// code. Model output frequently embeds literal newlines and quotes in these
// values, which breaks the string literal boundaries of the surrounding JSON.
var codeFields = []string{"code"}

var (
	fenceRe         = regexp.MustCompile("```(?:json)?\n?")
	lineCommentRe   = regexp.MustCompile(`(?m)(^|[^:"])//[^\n]*`)
	blockCommentRe  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// Repair applies a series of best-effort textual transforms to near-JSON text
// produced by a generative model so that a standard JSON parser accepts it.
// It never fails: when the repaired text still does not parse, the original
// input is returned unchanged and the caller's own parse surfaces the error.
//
// The transform order matters. Bracket balancing has to run after the fence
// and comment stripping (phantom brackets inside comments would be counted),
// and the code-field escaping has to run before balancing (brackets inside
// code strings must not count as structural).
func Repair(raw string) string {
	cleaned := stripControlChars(raw)
	cleaned = stripNonJSONWrapper(cleaned)
	cleaned = blockCommentRe.ReplaceAllString(cleaned, "")
	cleaned = lineCommentRe.ReplaceAllString(cleaned, "$1")
	for _, field := range codeFields {
		cleaned = escapeFieldValue(cleaned, field)
	}
	cleaned = trailingCommaRe.ReplaceAllString(cleaned, "$1")
	cleaned = balanceBrackets(cleaned)
	cleaned = collapseWhitespace(cleaned)
	cleaned = strings.TrimSpace(cleaned)

	if json.Valid([]byte(cleaned)) {
		return cleaned
	}
	return raw
}

// stripControlChars removes control characters except newline and tab, which
// later passes still need for comment and code-field handling.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if r < 0x20 || (r >= 0x7f && r <= 0x9f) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// stripNonJSONWrapper drops markdown fences and any prose outside the
// outermost {...} span. A missing closing brace keeps the tail so the
// balancing pass can complete it.
func stripNonJSONWrapper(s string) string {
	s = fenceRe.ReplaceAllString(s, "")
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	end := strings.LastIndexByte(s, '}')
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// escapeFieldValue escapes literal newlines and unescaped double quotes inside
// the string value of the given field. Go's regexp has no lookbehind, so this
// is a field-name-anchored scan instead of the usual lookaround pattern: the
// value is taken to end at the first quote whose next non-space character
// closes or continues the enclosing object or array.
func escapeFieldValue(s, field string) string {
	marker := `"` + field + `"`
	var b strings.Builder
	rest := s
	for {
		idx := strings.Index(rest, marker)
		if idx < 0 {
			b.WriteString(rest)
			return b.String()
		}
		pos := idx + len(marker)
		pos = skipSpace(rest, pos)
		if pos >= len(rest) || rest[pos] != ':' {
			b.WriteString(rest[:idx+len(marker)])
			rest = rest[idx+len(marker):]
			continue
		}
		pos = skipSpace(rest, pos+1)
		if pos >= len(rest) || rest[pos] != '"' {
			b.WriteString(rest[:pos])
			rest = rest[pos:]
			continue
		}
		valueStart := pos + 1
		valueEnd := findValueEnd(rest, valueStart)
		b.WriteString(rest[:valueStart])
		b.WriteString(escapeValue(rest[valueStart:valueEnd]))
		if valueEnd < len(rest) {
			b.WriteByte('"')
			rest = rest[valueEnd+1:]
			continue
		}
		rest = ""
	}
}

// findValueEnd returns the index of the quote terminating the string value
// that starts at from, or len(s) when no plausible terminator exists.
func findValueEnd(s string, from int) int {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			next := skipSpace(s, i+1)
			if next >= len(s) {
				return i
			}
			switch s[next] {
			case ',', '}', ']':
				return i
			}
		}
	}
	return len(s)
}

func escapeValue(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case '\\':
			b.WriteByte('\\')
			if i+1 < len(v) {
				i++
				b.WriteByte(v[i])
			}
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(v[i])
		}
	}
	return b.String()
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

// balanceBrackets appends the closers still open at end of input. Brackets
// inside string literals are not structural and are skipped.
func balanceBrackets(s string) string {
	var stack []byte
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 {
		return s
	}
	var b strings.Builder
	b.WriteString(s)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

// collapseWhitespace folds runs of whitespace outside string literals into a
// single space. Values already carry escaped newlines at this point, so
// nothing meaningful is lost.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	pendingSpace := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch c {
			case '\\':
				if i+1 < len(s) {
					i++
					b.WriteByte(s[i])
				}
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case ' ', '\t', '\n', '\r':
			pendingSpace = true
		case '"':
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteByte(c)
			inString = true
		default:
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}
