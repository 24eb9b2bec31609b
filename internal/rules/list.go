package rules

import (
	"strings"
)

// List is an ordered rule sequence. Order is significant: when several
// rules match a module the last one wins.
type List []Rule

// ParseList parses newline-separated rules. Blank lines and lines starting
// with "#" are skipped. Lines that are not module in-app rules are kept in
// place as opaque rules.
func ParseList(text string) List {
	var out List
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r, err := Parse(line)
		if err != nil {
			r = Rule{Raw: line}
		}
		out = append(out, r)
	}
	return out
}

// Opaque returns the raw lines of the opaque rules in l.
func (l List) Opaque() []string {
	var out []string
	for _, r := range l {
		if r.Opaque() {
			out = append(out, r.Raw)
		}
	}
	return out
}

// String joins the rules with newlines.
func (l List) String() string {
	lines := make([]string, len(l))
	for i, r := range l {
		lines[i] = r.String()
	}
	return strings.Join(lines, "\n")
}

// HasPattern reports whether any module rule uses pattern.
func (l List) HasPattern(pattern string) bool {
	if pattern == "" {
		return false
	}
	for _, r := range l {
		if r.Pattern == pattern {
			return true
		}
	}
	return false
}

// Without returns l minus the rules for which drop returns true, keeping
// order, plus the removed rules.
func (l List) Without(drop func(Rule) bool) (kept, removed List) {
	for _, r := range l {
		if drop(r) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	return kept, removed
}

// Effective returns the rules in evaluation order. Manual rules come after
// automatic ones so they take precedence.
func Effective(manual, automatic List) List {
	out := make(List, 0, len(manual)+len(automatic))
	out = append(out, automatic...)
	return append(out, manual...)
}

// InApp evaluates module against l. matched is false when no rule applies.
func (l List) InApp(module string) (inApp, matched bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].Matches(module) {
			return l[i].InApp, true
		}
	}
	return false, false
}
