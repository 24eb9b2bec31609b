// Package rules models stack trace enhancement rules of the form
// "stack.module:<pattern> +app|-app" and their ordered, newline-separated
// storage representation.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const matcherPrefix = "stack.module:"

// ErrInvalidRule is returned for lines that are not module in-app rules.
var ErrInvalidRule = errors.New("invalid enhancement rule")

// Rule marks frames whose module matches Pattern as in-app or not.
//
// Stored lists may hold lines of the wider enhancement grammar
// ("family:native function:std::* -app"). Those are kept as opaque rules:
// Raw holds the line, Pattern is empty and the rule never matches.
type Rule struct {
	Pattern string
	InApp   bool
	Raw     string
}

// Opaque reports whether r is an unrecognized line kept verbatim.
func (r Rule) Opaque() bool {
	return r.Pattern == "" && r.Raw != ""
}

// ForModuleRoot returns the +app rule covering a package directory root
// ("com/example/" -> "stack.module:com.example.** +app").
func ForModuleRoot(moduleRoot string) Rule {
	pkg := strings.ReplaceAll(strings.TrimSuffix(moduleRoot, "/"), "/", ".")
	return Rule{Pattern: pkg + ".**", InApp: true}
}

// Parse parses one rule line.
func Parse(line string) (Rule, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 || !strings.HasPrefix(fields[0], matcherPrefix) {
		return Rule{}, fmt.Errorf("%w: %q", ErrInvalidRule, line)
	}
	pattern := strings.TrimPrefix(fields[0], matcherPrefix)
	if pattern == "" {
		return Rule{}, fmt.Errorf("%w: empty pattern in %q", ErrInvalidRule, line)
	}

	var inApp bool
	switch fields[1] {
	case "+app":
		inApp = true
	case "-app":
		inApp = false
	default:
		return Rule{}, fmt.Errorf("%w: unknown action %q", ErrInvalidRule, fields[1])
	}
	return Rule{Pattern: pattern, InApp: inApp}, nil
}

// String renders the rule in its storage form.
func (r Rule) String() string {
	if r.Opaque() {
		return r.Raw
	}
	action := "-app"
	if r.InApp {
		action = "+app"
	}
	return matcherPrefix + r.Pattern + " " + action
}

// PackagePrefix returns the dotted package covered by a "<pkg>.**" pattern,
// with a trailing dot ("com.example."). It is empty for other patterns.
func (r Rule) PackagePrefix() string {
	if !strings.HasSuffix(r.Pattern, ".**") {
		return ""
	}
	prefix := strings.TrimSuffix(r.Pattern, "**")
	if strings.ContainsAny(prefix, "*?") {
		return ""
	}
	return prefix
}

// StackRoot returns the code mapping stack root a "<pkg>.**" pattern was
// derived from ("com.example.**" -> "com/example/").
func (r Rule) StackRoot() string {
	prefix := r.PackagePrefix()
	if prefix == "" {
		return ""
	}
	return strings.ReplaceAll(prefix, ".", "/")
}

// Matches reports whether module matches the rule's glob pattern. "**"
// matches any run of characters, "*" stops at dots.
func (r Rule) Matches(module string) bool {
	if r.Pattern == "" {
		return false
	}
	return compile(r.Pattern).MatchString(module)
}

func compile(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; {
		case c == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			b.WriteString(".*")
			i++
		case c == '*':
			b.WriteString(`[^.]*`)
		case c == '?':
			b.WriteString(`[^.]`)
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}
