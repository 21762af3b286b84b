package orchestrate

import (
	"strings"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/memory"
)

// ScanModuleSource statically indexes a generated module: top-level
// function definitions in source order, import statements re-serialised in
// canonical form, and top-level constant assignments. Only column-zero
// statements count as top level. Functions and imports are de-duplicated
// preserving first occurrence; constants de-duplicate on (name, value).
func ScanModuleSource(content string) ([]string, []string, []memory.Constant) {
	var functions []string
	var imports []string
	var constants []memory.Constant

	for _, line := range strings.Split(content, "\n") {
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		stmt := strings.TrimRight(line, " \t\r")

		switch {
		case strings.HasPrefix(stmt, "def ") || strings.HasPrefix(stmt, "async def "):
			if name := functionName(stmt); name != "" {
				functions = append(functions, name)
			}
		case strings.HasPrefix(stmt, "import "):
			if imp := canonicalImport(strings.TrimPrefix(stmt, "import ")); imp != "" {
				imports = append(imports, "import "+imp)
			}
		case strings.HasPrefix(stmt, "from "):
			if imp := canonicalFromImport(stmt); imp != "" {
				imports = append(imports, imp)
			}
		default:
			if name, value, ok := constantAssignment(stmt); ok {
				constants = append(constants, memory.Constant{Name: name, Value: value})
			}
		}
	}

	return dedupeStrings(functions), dedupeStrings(imports), dedupeConstants(constants)
}

func functionName(stmt string) string {
	rest := strings.TrimPrefix(stmt, "async ")
	rest = strings.TrimPrefix(rest, "def ")
	end := strings.IndexAny(rest, "(:")
	if end == -1 {
		return ""
	}
	name := strings.TrimSpace(rest[:end])
	if !isIdentifier(name) {
		return ""
	}
	return name
}

// canonicalImport re-serialises "a as b, c" alias lists, dropping malformed
// entries.
func canonicalImport(list string) string {
	var parts []string
	for _, item := range strings.Split(list, ",") {
		fields := strings.Fields(item)
		switch {
		case len(fields) == 1 && fields[0] != "":
			parts = append(parts, fields[0])
		case len(fields) == 3 && fields[1] == "as":
			parts = append(parts, fields[0]+" as "+fields[2])
		}
	}
	return strings.Join(parts, ", ")
}

// canonicalFromImport re-serialises a "from m import x as y, z" statement.
func canonicalFromImport(stmt string) string {
	rest := strings.TrimPrefix(stmt, "from ")
	idx := strings.Index(rest, " import ")
	if idx == -1 {
		return ""
	}
	module := strings.TrimSpace(rest[:idx])
	if module == "" {
		return ""
	}
	names := canonicalImport(strings.Trim(strings.TrimSpace(rest[idx+len(" import "):]), "()"))
	if names == "" {
		return ""
	}
	return "from " + module + " import " + names
}

// constantAssignment recognises "NAME = value" and "NAME: type = value"
// statements whose target passes the constant-name rule. The value is the
// right-hand source text as written.
func constantAssignment(stmt string) (string, string, bool) {
	eq := assignmentIndex(stmt)
	if eq == -1 {
		return "", "", false
	}
	target := strings.TrimSpace(stmt[:eq])
	if colon := strings.IndexByte(target, ':'); colon != -1 {
		target = strings.TrimSpace(target[:colon])
	}
	if !isIdentifier(target) || !IsConstantName(target) {
		return "", "", false
	}
	value := strings.TrimSpace(stmt[eq+1:])
	if value == "" {
		return "", "", false
	}
	return target, value, true
}

// assignmentIndex finds the first top-level "=" that is not part of a
// comparison or augmented assignment.
func assignmentIndex(stmt string) int {
	depth := 0
	for i := 0; i < len(stmt); i++ {
		switch stmt[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '=':
			if depth > 0 {
				continue
			}
			if i+1 < len(stmt) && stmt[i+1] == '=' {
				return -1
			}
			if i > 0 && strings.ContainsRune("=!<>+-*/%&|^:", rune(stmt[i-1])) {
				if stmt[i-1] == ':' {
					return i // annotated assignment
				}
				return -1
			}
			return i
		}
	}
	return -1
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// IsConstantName reports whether an identifier names a constant: after
// stripping leading underscores, every character is uppercase, a digit or
// an underscore, and at least one character is alphabetic.
func IsConstantName(name string) bool {
	trimmed := strings.TrimLeft(name, "_")
	if trimmed == "" {
		return false
	}
	hasAlpha := false
	for _, c := range trimmed {
		switch {
		case c >= 'A' && c <= 'Z':
			hasAlpha = true
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return false
		}
	}
	return hasAlpha
}

func dedupeStrings(values []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func dedupeConstants(constants []memory.Constant) []memory.Constant {
	type key struct{ name, value string }
	seen := map[key]bool{}
	out := []memory.Constant{}
	for _, c := range constants {
		if c.Name == "" || c.Value == "" {
			continue
		}
		k := key{c.Name, c.Value}
		if !seen[k] {
			seen[k] = true
			out = append(out, c)
		}
	}
	return out
}
