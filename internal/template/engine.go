// Package template renders {{name}} placeholders in message bodies. The
// engine is pure: no storage, no I/O, safe for concurrent use.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxContentLength bounds template content. Concatenation limits for long
// SMS are the provider's concern, not the template layer's.
const MaxContentLength = 1000

var variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render replaces every {{name}} with variables[name]. Placeholders without
// a matching variable are left verbatim so the mistake stays visible to the
// caller instead of silently producing an empty gap.
func Render(content string, variables map[string]string) string {
	return variablePattern.ReplaceAllStringFunc(content, func(match string) string {
		name := variablePattern.FindStringSubmatch(match)[1]
		if value, ok := variables[name]; ok {
			return value
		}
		return match
	})
}

// ExtractVariables returns the placeholder names found in content, in
// first-occurrence order with duplicates removed. Names are case-sensitive.
func ExtractVariables(content string) []string {
	matches := variablePattern.FindAllStringSubmatch(content, -1)

	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}

	return names
}

// ValidationResult carries the outcome of Validate along with the variables
// found, so callers validating before persistence do not scan twice.
type ValidationResult struct {
	Valid     bool
	Reason    string
	Variables []string
}

// Validate rejects empty and over-long content.
func Validate(content string) ValidationResult {
	if strings.TrimSpace(content) == "" {
		return ValidationResult{Valid: false, Reason: "template cannot be empty"}
	}
	if len(content) > MaxContentLength {
		return ValidationResult{
			Valid:  false,
			Reason: fmt.Sprintf("template too long (max %d characters)", MaxContentLength),
		}
	}
	return ValidationResult{Valid: true, Variables: ExtractVariables(content)}
}
