// Package naming converts arbitrary API identifiers (operation ids, schema
// names, path fragments) into the casing styles the generated code needs.
package naming

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// Snake converts s to snake_case. Runs of uppercase letters are kept
// together ("HTTPResponse" becomes "httpresponse"); any non-alphanumeric
// character acts as a word separator.
func Snake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	prevLower := false
	prevUnderscore := true // suppress a leading underscore
	for _, r := range s {
		switch {
		case isUpper(r):
			if prevLower && !prevUnderscore {
				b.WriteByte('_')
			}
			b.WriteRune(toLower(r))
			prevLower = false
			prevUnderscore = false
		case isAlnum(r):
			b.WriteRune(r)
			prevLower = isLower(r)
			prevUnderscore = false
		default:
			if !prevUnderscore {
				b.WriteByte('_')
			}
			prevLower = false
			prevUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// Pascal converts s to PascalCase by normalizing through Snake first, so
// "find-pets-by-status" and "FIND_PETS_BY_STATUS" both yield
// "FindPetsByStatus".
func Pascal(s string) string {
	words := strings.Split(Snake(s), "_")
	var b strings.Builder
	for _, w := range words {
		if w == "" {
			continue
		}
		b.WriteString(titleCaser.String(w))
	}
	return b.String()
}

// Camel converts s to camelCase.
func Camel(s string) string {
	p := Pascal(s)
	if p == "" {
		return p
	}
	r := []rune(p)
	r[0] = toLower(r[0])
	return string(r)
}

var (
	smartPunct = strings.NewReplacer(
		"‘", "'",
		"’", "'",
		"“", `"`,
		"”", `"`,
		"—", "-",
		"\t", " ",
	)
	innerSpace = regexp.MustCompile(`\s+`)
)

// SanitizeMarkdown flattens free-form description text into a single line
// safe to embed in generated string literals and doc comments: smart
// punctuation is normalized, whitespace collapsed, quotes and backslashes
// escaped, and braces/brackets replaced with HTML entities so template and
// doc tooling never re-interprets them.
func SanitizeMarkdown(input string) string {
	var out []string
	for _, line := range strings.Split(input, "\n") {
		line = smartPunct.Replace(line)
		line = innerSpace.ReplaceAllString(strings.TrimSpace(line), " ")
		line = strings.ReplaceAll(line, " - ", "-")
		line = strings.ReplaceAll(line, "- ", "-")
		line = strings.ReplaceAll(line, " -", "-")
		line = strings.ReplaceAll(line, `\`, `\\`)
		line = strings.ReplaceAll(line, `"`, `\"`)
		line = strings.ReplaceAll(line, "{", "&#123;")
		line = strings.ReplaceAll(line, "}", "&#125;")
		line = strings.ReplaceAll(line, "[", "&#91;")
		line = strings.ReplaceAll(line, "]", "&#93;")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, " ")
}

// ValidateProjectName checks that name is usable as a generated project
// name: non-empty, alphanumeric plus dashes and underscores, and not
// starting with a dash or underscore.
func ValidateProjectName(name string) error {
	if name == "" {
		return errors.New("project name cannot be empty")
	}
	for _, r := range name {
		if !isAlnum(r) && r != '-' && r != '_' {
			return errors.New("project name must contain only alphanumeric characters, dashes, and underscores")
		}
	}
	if name[0] == '-' || name[0] == '_' {
		return errors.New("project name cannot start with a dash or underscore")
	}
	return nil
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }

func isAlnum(r rune) bool {
	return isUpper(r) || isLower(r) || (r >= '0' && r <= '9')
}

func toLower(r rune) rune {
	if isUpper(r) {
		return r + ('a' - 'A')
	}
	return r
}
