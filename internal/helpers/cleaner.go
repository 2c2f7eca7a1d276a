package helpers

import "strings"

// JSONObjects returns every top-level balanced {...} segment of a model
// response, in order of appearance. A response wrapped in a single code fence
// is unwrapped first. Braces and brackets inside JSON strings are ignored, and
// an opener that never balances is skipped so a later object can still match.
func JSONObjects(s string) []string {
	s = UnwrapCodeFence(s)
	var out []string
	for i := 0; i < len(s); {
		open := strings.IndexByte(s[i:], '{')
		if open < 0 {
			break
		}
		open += i
		if end, ok := objectEnd(s, open); ok {
			out = append(out, s[open:end])
			i = end
			continue
		}
		i = open + 1
	}
	return out
}

// objectEnd returns the index just past the value opened at s[start].
func objectEnd(s string, start int) (int, bool) {
	closers := make([]byte, 0, 8)
	quoted, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if quoted {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				quoted = false
			}
			continue
		}
		switch c {
		case '"':
			quoted = true
		case '{':
			closers = append(closers, '}')
		case '[':
			closers = append(closers, ']')
		case '}', ']':
			if len(closers) == 0 || closers[len(closers)-1] != c {
				return 0, false
			}
			closers = closers[:len(closers)-1]
			if len(closers) == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// UnwrapCodeFence returns the body of s when the whole response is wrapped in
// a single ``` or ~~~ fence (with an optional language tag). Anything else is
// returned trimmed and unchanged.
func UnwrapCodeFence(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "\uFEFF"))
	if len(s) < 6 {
		return s
	}
	fence := s[:3]
	if fence != "```" && fence != "~~~" {
		return s
	}
	nl := strings.IndexByte(s, '\n')
	if nl == -1 {
		return s
	}
	body := s[nl+1:]
	end := strings.Index(body, fence)
	if end == -1 || strings.TrimSpace(body[end+3:]) != "" {
		return s
	}
	return strings.TrimSpace(body[:end])
}
