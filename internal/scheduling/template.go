package scheduling

import (
	"fmt"
	"regexp"
	"strings"
)

var variablePattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Render substitutes {{identifier}} tokens from vars. Identifiers are trimmed
// of surrounding whitespace before lookup. Tokens with no matching variable
// stay verbatim in the output and are reported in first-seen order, without
// duplicates.
func Render(template string, vars map[string]string) (string, []string) {
	var missing []string
	seen := make(map[string]struct{})

	out := variablePattern.ReplaceAllStringFunc(template, func(token string) string {
		name := strings.TrimSpace(token[2 : len(token)-2])
		if value, ok := vars[name]; ok {
			return value
		}
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			missing = append(missing, name)
		}
		return token
	})

	return out, missing
}

// RenderStrict is Render that refuses partial output: any unresolved variable
// is an error.
func RenderStrict(template string, vars map[string]string) (string, error) {
	out, missing := Render(template, vars)
	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved template variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// CheckSyntax flags mismatched or malformed {{ }} pairs independent of
// substitution.
func CheckSyntax(template string) error {
	opens := strings.Count(template, "{{")
	closes := strings.Count(template, "}}")
	if opens != closes {
		return fmt.Errorf("unbalanced template braces: %d opening, %d closing", opens, closes)
	}

	depth := 0
	for i := 0; i+1 < len(template); i++ {
		switch template[i : i+2] {
		case "{{":
			depth++
			if depth > 1 {
				return fmt.Errorf("nested template braces at position %d", i)
			}
			i++
		case "}}":
			depth--
			if depth < 0 {
				return fmt.Errorf("closing braces before opening at position %d", i)
			}
			i++
		}
	}
	if depth != 0 {
		return fmt.Errorf("unclosed template braces")
	}
	return nil
}
