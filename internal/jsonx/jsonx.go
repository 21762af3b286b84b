// Package jsonx holds the lenient JSON handling shared by the memory store
// and the orchestration engine: loosely-typed accessors for repairing stored
// records, and object extraction from raw model output.
package jsonx

import (
	"encoding/json"
	"strings"
)

// AsMap returns v as a JSON object, or nil if it is anything else.
func AsMap(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m
}

// AsList returns v as a JSON array, or nil.
func AsList(v any) []any {
	l, ok := v.([]any)
	if !ok {
		return nil
	}
	return l
}

// AsString returns v as a string. ok is false for non-strings.
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// AsNumber returns v as a float64. json.Unmarshal decodes every JSON number
// into float64, so ints arrive here too. ok is false for non-numbers.
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// StringList keeps only the string elements of a JSON array.
func StringList(v any) []string {
	out := []string{}
	for _, item := range AsList(v) {
		if s, ok := AsString(item); ok {
			out = append(out, s)
		}
	}
	return out
}

// ExtractObject recovers a JSON object from raw model output. It tries, in
// order: the text as-is, the text with a leading/trailing triple-backtick
// fence stripped, and finally the first balanced {...} found by a
// string-aware depth scan. Returns nil, false when no variant parses to an
// object.
func ExtractObject(output string) (map[string]any, bool) {
	s := strings.TrimSpace(output)
	if s == "" {
		return nil, false
	}

	if m := tryObject(s); m != nil {
		return m, true
	}

	if strings.HasPrefix(s, "```") {
		lines := strings.Split(s, "\n")[1:]
		if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
			lines = lines[:len(lines)-1]
		}
		if m := tryObject(strings.TrimSpace(strings.Join(lines, "\n"))); m != nil {
			return m, true
		}
	}

	if m := scanBalancedObject(s); m != nil {
		return m, true
	}
	return nil, false
}

func tryObject(s string) map[string]any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	return AsMap(v)
}

// scanBalancedObject walks the text tracking string and escape state so that
// braces inside string literals do not count toward depth. Each balanced
// candidate is parsed; the first one that yields an object wins.
func scanBalancedObject(s string) map[string]any {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return nil
	}

	depth := 0
	inStr := false
	esc := false
	objStart := -1

	for i := start; i < len(s); i++ {
		c := s[i]

		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}

		switch c {
		case '"':
			inStr = true
		case '{':
			if depth == 0 {
				objStart = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && objStart >= 0 {
				if m := tryObject(s[objStart : i+1]); m != nil {
					return m
				}
				objStart = -1
			}
		}
	}
	return nil
}
