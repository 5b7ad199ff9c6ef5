// Package scope implements the rule scope compiler (C7): include/exclude
// roles, package regexes, and path globs compiled once into a predicate
// over a class fact.
package scope

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aalsanie/shamash-sub001/internal/config"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
)

// Predicate decides whether a class is in scope, given its classified role
// (empty string if it has none).
type Predicate func(cf *factmodel.ClassFact, role string) bool

// Compile builds a Predicate from an optional RuleScope and an optional
// explicit role allowlist (RuleDef.Roles). A nil scope with a nil roles
// list matches everything.
func Compile(rs *config.RuleScope, explicitRoles []string) (Predicate, error) {
	var includeRoles, excludeRoles map[string]bool
	var includePkg, excludePkg []*regexp.Regexp
	var includeGlob, excludeGlob []*regexp.Regexp

	if rs != nil {
		includeRoles = toSet(rs.IncludeRoles)
		excludeRoles = toSet(rs.ExcludeRoles)

		var err error
		includePkg, err = compileAll(rs.IncludePackages)
		if err != nil {
			return nil, fmt.Errorf("includePackages: %w", err)
		}
		excludePkg, err = compileAll(rs.ExcludePackages)
		if err != nil {
			return nil, fmt.Errorf("excludePackages: %w", err)
		}
		includeGlob, err = compileGlobs(rs.IncludeGlobs)
		if err != nil {
			return nil, fmt.Errorf("includeGlobs: %w", err)
		}
		excludeGlob, err = compileGlobs(rs.ExcludeGlobs)
		if err != nil {
			return nil, fmt.Errorf("excludeGlobs: %w", err)
		}
	}

	var explicitSet map[string]bool
	if explicitRoles != nil {
		explicitSet = toSet(explicitRoles)
	}

	return func(cf *factmodel.ClassFact, role string) bool {
		if explicitSet != nil && !explicitSet[role] {
			return false
		}
		if len(includeRoles) > 0 && !includeRoles[role] {
			return false
		}
		if len(excludeRoles) > 0 && excludeRoles[role] {
			return false
		}
		pkg := cf.Type.PackageName
		if len(includePkg) > 0 && !anyMatch(includePkg, pkg) {
			return false
		}
		if anyMatch(excludePkg, pkg) {
			return false
		}
		path := cf.Location.FilePath()
		if len(includeGlob) > 0 && !anyMatch(includeGlob, path) {
			return false
		}
		if anyMatch(excludeGlob, path) {
			return false
		}
		return true
	}, nil
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		rx, err := regexp.Compile("^(?:" + p + ")$")
		if err != nil {
			return nil, err
		}
		out = append(out, rx)
	}
	return out, nil
}

func compileGlobs(globs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(globs))
	for _, g := range globs {
		rx, err := regexp.Compile(globToRegex(g))
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", g, err)
		}
		out = append(out, rx)
	}
	return out, nil
}

func anyMatch(rxs []*regexp.Regexp, s string) bool {
	for _, rx := range rxs {
		if rx.MatchString(s) {
			return true
		}
	}
	return false
}

// globToRegex translates the predictable glob dialect from spec §4.7 into
// an anchored regex: "*" any run except "/", "**" any run including "/",
// "?" one non-"/", "[...]" a character class passed through verbatim.
func globToRegex(glob string) string {
	var b strings.Builder
	b.WriteByte('^')
	runes := []rune(glob)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		case '[':
			j := i + 1
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j < len(runes) {
				b.WriteByte('[')
				b.WriteString(string(runes[i+1 : j]))
				b.WriteByte(']')
				i = j
			} else {
				b.WriteString(regexp.QuoteMeta(string(c)))
			}
		case '.', '+', '(', ')', '|', '^', '$', '{', '}', '\\':
			b.WriteString(regexp.QuoteMeta(string(c)))
		default:
			b.WriteRune(c)
		}
	}
	b.WriteByte('$')
	return b.String()
}
