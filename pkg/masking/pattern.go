package masking

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/tarsy-labs/queryweave/pkg/config"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement,
// kept from the teacher's pkg/masking/pattern.go idiom.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// builtinPatterns are always applied regardless of annotation status —
// email, phone, SSN, and credit-card shapes, the classic PII sweep the
// teacher's registry compiled from its own built-in config.
var builtinPatterns = []CompiledPattern{
	{
		Name:        "email",
		Regex:       regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
		Replacement: "[REDACTED_EMAIL]",
		Description: "email address",
	},
	{
		Name:        "ssn",
		Regex:       regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		Replacement: "[REDACTED_SSN]",
		Description: "US social security number",
	},
	{
		Name:        "credit_card",
		Regex:       regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`),
		Replacement: "[REDACTED_CARD]",
		Description: "credit card number",
	},
	{
		Name:        "phone",
		Regex:       regexp.MustCompile(`\b(?:\+?\d{1,2}[ .-]?)?\(?\d{3}\)?[ .-]?\d{3}[ .-]?\d{4}\b`),
		Replacement: "[REDACTED_PHONE]",
		Description: "phone number",
	},
}

// compileCustomPatterns compiles the caller-configured custom patterns.
// Invalid patterns are logged and skipped, the same fail-soft behavior the
// teacher applies to its own built-in pattern compilation.
func compileCustomPatterns(custom []config.MaskingPattern) []CompiledPattern {
	compiled := make([]CompiledPattern, 0, len(custom))
	for i, p := range custom {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			slog.Error("masking: failed to compile custom pattern, skipping",
				"name", fmt.Sprintf("custom:%d:%s", i, p.Name), "error", err)
			continue
		}
		replacement := p.Replacement
		if replacement == "" {
			replacement = "[REDACTED]"
		}
		compiled = append(compiled, CompiledPattern{
			Name:        p.Name,
			Regex:       re,
			Replacement: replacement,
			Description: p.Description,
		})
	}
	return compiled
}
