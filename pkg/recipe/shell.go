package recipe

import (
	"fmt"
	"strings"
)

// splitCommand splits a command line the way a POSIX shell would, honoring
// single quotes, double quotes and backslash escapes. No expansion is done.
func splitCommand(s string) ([]string, error) {
	var args []string
	var cur strings.Builder
	inSingle, inDouble, pending := false, false, false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case inSingle:
			if ch == '\'' {
				inSingle = false
			} else {
				cur.WriteByte(ch)
			}
		case inDouble:
			if ch == '\\' && i+1 < len(s) {
				next := s[i+1]
				if next == '"' || next == '\\' || next == '$' || next == '`' {
					cur.WriteByte(next)
					i++
				} else {
					cur.WriteByte(ch)
				}
			} else if ch == '"' {
				inDouble = false
			} else {
				cur.WriteByte(ch)
			}
		case ch == '\\':
			if i+1 < len(s) {
				cur.WriteByte(s[i+1])
				i++
			}
			pending = true
		case ch == '\'':
			inSingle, pending = true, true
		case ch == '"':
			inDouble, pending = true, true
		case ch == ' ' || ch == '\t' || ch == '\n':
			if pending || cur.Len() > 0 {
				args = append(args, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteByte(ch)
		}
	}

	if inSingle {
		return nil, fmt.Errorf("unterminated single quote in command %q", s)
	}
	if inDouble {
		return nil, fmt.Errorf("unterminated double quote in command %q", s)
	}
	if pending || cur.Len() > 0 {
		args = append(args, cur.String())
	}
	return args, nil
}

// commandArgs accepts a command as a string or a list of strings. A list with
// a single element is split like a string.
func commandArgs(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return splitCommand(v)
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("command element %d: expected string, got %T", i, item)
			}
			out = append(out, s)
		}
		if len(out) == 1 {
			return splitCommand(out[0])
		}
		return out, nil
	case []string:
		return commandArgs(toAny(v))
	default:
		return nil, fmt.Errorf("command: expected string or list, got %T", raw)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
