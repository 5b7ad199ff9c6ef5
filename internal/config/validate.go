package config

import (
	"fmt"
	"regexp"
)

// Diagnostic is a single validator finding: an ERROR aborts use of the
// config, a WARNING passes through.
type Diagnostic struct {
	Path     string
	Severity Severity
	Message  string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Severity, d.Path, d.Message)
}

// RuleSpecLookup resolves a canonical "type.name" rule id to its parameter
// validator, mirroring rules.Registry.Specs() without an import cycle
// (internal/rules depends on internal/config, not the reverse).
type RuleSpecLookup interface {
	// Lookup returns the param validator for id and whether it is known.
	Lookup(id string) (func(params map[string]any) []string, bool)
}

// Validate runs every C4 check against a bound Config and returns the
// accumulated diagnostics. registry may be nil, meaning "rule registry
// unavailable" — unknown-rule diagnostics are then emitted at
// project.validation.unknownRule per spec §4.4.
func Validate(cfg *Config, registry RuleSpecLookup) []Diagnostic {
	var diags []Diagnostic

	if cfg.Version != 1 {
		diags = append(diags, Diagnostic{Path: "version", Severity: SeverityError,
			Message: "must be 1"})
		return diags
	}

	for id, role := range cfg.Roles {
		diags = append(diags, validateRoleMatcher(cfg, fmt.Sprintf("roles.%s.match", id), role.Match)...)
	}

	knownRoles := make(map[string]bool, len(cfg.Roles))
	for id := range cfg.Roles {
		knownRoles[id] = true
	}

	for i, rule := range cfg.Rules {
		path := fmt.Sprintf("rules[%d]", i)
		diags = append(diags, validateRuleDef(cfg, path, rule, knownRoles, registry)...)
	}

	for i, exc := range cfg.Exceptions {
		path := fmt.Sprintf("exceptions[%d]", i)
		diags = append(diags, validateException(path, exc, knownRoles, registry)...)
	}

	return diags
}

func validateRoleMatcher(cfg *Config, path string, m Matcher) []Diagnostic {
	var diags []Diagnostic
	diags = append(diags, compileCheckMatcher(path, m)...)
	return diags
}

// compileCheckMatcher recurses a Matcher tree checking every regex sub-node
// compiles and every ClassNameEndsWithAny list is non-empty of non-empty
// strings, without needing a live FactIndex (matcher.Compiler requires one,
// so regex/shape checks are done directly here; semantic correctness is
// covered once compiled against real data during C5/C9).
func compileCheckMatcher(path string, m Matcher) []Diagnostic {
	var diags []Diagnostic
	switch m.Kind {
	case MatcherAnyOf, MatcherAllOf:
		for i, child := range m.Children {
			diags = append(diags, compileCheckMatcher(fmt.Sprintf("%s[%d]", path, i), child)...)
		}
	case MatcherNot:
		if m.Inner == nil {
			diags = append(diags, Diagnostic{Path: path, Severity: SeverityError, Message: "not requires an inner matcher"})
		} else {
			diags = append(diags, compileCheckMatcher(path+".not", *m.Inner)...)
		}
	case MatcherPackageRegex, MatcherClassNameRegex:
		if _, err := regexp.Compile("^(?:" + m.Regex + ")$"); err != nil {
			diags = append(diags, Diagnostic{Path: path, Severity: SeverityError, Message: "regex does not compile: " + err.Error()})
		}
	case MatcherClassNameEndsWithAny:
		if len(m.Suffixes) == 0 {
			diags = append(diags, Diagnostic{Path: path, Severity: SeverityError, Message: "classNameEndsWithAny requires a non-empty list"})
		}
		for i, s := range m.Suffixes {
			if s == "" {
				diags = append(diags, Diagnostic{Path: fmt.Sprintf("%s[%d]", path, i), Severity: SeverityError, Message: "suffix must be non-empty"})
			}
		}
	case MatcherAnnotation, MatcherImplements, MatcherExtends:
		if m.Fqn == "" {
			diags = append(diags, Diagnostic{Path: path, Severity: SeverityError, Message: "fqn must be non-empty"})
		}
	case MatcherAnnotationPrefix:
		if m.Prefix == "" {
			diags = append(diags, Diagnostic{Path: path, Severity: SeverityError, Message: "prefix must be non-empty"})
		}
	case MatcherPackageContainsSegment:
		if m.Segment == "" {
			diags = append(diags, Diagnostic{Path: path, Severity: SeverityError, Message: "segment must be non-empty"})
		}
	case MatcherClassNameEndsWith:
		if m.Suffix == "" {
			diags = append(diags, Diagnostic{Path: path, Severity: SeverityError, Message: "suffix must be non-empty"})
		}
	case MatcherHasMainMethod:
		// no constraints beyond the bool itself
	default:
		diags = append(diags, Diagnostic{Path: path, Severity: SeverityError, Message: "unrecognized matcher kind"})
	}
	return diags
}

func compileCheckRegexList(path string, patterns []string) []Diagnostic {
	var diags []Diagnostic
	for i, p := range patterns {
		if _, err := regexp.Compile("^(?:" + p + ")$"); err != nil {
			diags = append(diags, Diagnostic{Path: fmt.Sprintf("%s[%d]", path, i), Severity: SeverityError,
				Message: "regex does not compile: " + err.Error()})
		}
	}
	return diags
}

func validateRuleDef(cfg *Config, path string, rule RuleDef, knownRoles map[string]bool, registry RuleSpecLookup) []Diagnostic {
	var diags []Diagnostic

	if rule.Type == "" {
		diags = append(diags, Diagnostic{Path: path + ".type", Severity: SeverityError, Message: "must be non-empty"})
	}
	if rule.Name == "" {
		diags = append(diags, Diagnostic{Path: path + ".name", Severity: SeverityError, Message: "must be non-empty"})
	}

	if rule.Scope != nil {
		diags = append(diags, compileCheckRegexList(path+".scope.includePackages", rule.Scope.IncludePackages)...)
		diags = append(diags, compileCheckRegexList(path+".scope.excludePackages", rule.Scope.ExcludePackages)...)
		for _, r := range rule.Scope.IncludeRoles {
			if !knownRoles[r] {
				diags = append(diags, Diagnostic{Path: path + ".scope.includeRoles", Severity: SeverityError,
					Message: "unknown role: " + r})
			}
		}
		for _, r := range rule.Scope.ExcludeRoles {
			if !knownRoles[r] {
				diags = append(diags, Diagnostic{Path: path + ".scope.excludeRoles", Severity: SeverityError,
					Message: "unknown role: " + r})
			}
		}
	}

	if rule.Roles != nil {
		for i, r := range rule.Roles {
			if !knownRoles[r] {
				diags = append(diags, Diagnostic{Path: fmt.Sprintf("%s.roles[%d]", path, i), Severity: SeverityError,
					Message: "unknown role: " + r})
			}
		}
	}

	if !rule.Enabled {
		return diags
	}

	id := rule.CanonicalID()
	if registry == nil {
		if sev := severityForPolicy(cfg.Project.UnknownRule); sev != "" {
			diags = append(diags, Diagnostic{Path: "project.validation.unknownRule", Severity: sev,
				Message: "rule registry unavailable; cannot validate " + id})
		}
		return diags
	}

	validate, ok := registry.Lookup(id)
	if !ok {
		sev := severityForPolicy(cfg.Project.UnknownRule)
		if sev != "" {
			diags = append(diags, Diagnostic{Path: path, Severity: sev, Message: "unknown rule: " + id})
		}
		return diags
	}

	for _, msg := range validate(rule.Params) {
		diags = append(diags, Diagnostic{Path: path + ".params", Severity: SeverityError, Message: msg})
	}
	return diags
}

// severityForPolicy maps project.validation.unknownRule to the diagnostic
// severity it should emit; IGNORE emits nothing ("" sentinel).
func severityForPolicy(policy UnknownRulePolicy) Severity {
	switch policy {
	case UnknownRuleError:
		return SeverityError
	case UnknownRuleWarn:
		return SeverityWarning
	default:
		return ""
	}
}

func validateException(path string, exc Exception, knownRoles map[string]bool, registry RuleSpecLookup) []Diagnostic {
	var diags []Diagnostic

	if exc.ID == "" {
		diags = append(diags, Diagnostic{Path: path + ".id", Severity: SeverityError, Message: "must be non-empty"})
	}
	if exc.Reason == "" {
		diags = append(diags, Diagnostic{Path: path + ".reason", Severity: SeverityError, Message: "must be non-empty"})
	}
	if len(exc.Suppress) == 0 {
		diags = append(diags, Diagnostic{Path: path + ".suppress", Severity: SeverityError, Message: "must be non-empty"})
	}
	for i, s := range exc.Suppress {
		if s == "*" || s == "all" {
			continue
		}
		if registry != nil {
			if _, ok := registry.Lookup(s); !ok {
				diags = append(diags, Diagnostic{Path: fmt.Sprintf("%s.suppress[%d]", path, i), Severity: SeverityWarning,
					Message: "references unknown rule: " + s})
			}
		}
	}

	m := exc.Match
	if m.FilePath == "" && m.ClassFqn == "" && m.MemberName == "" && m.Annotation == "" && m.Role == "" {
		diags = append(diags, Diagnostic{Path: path + ".match", Severity: SeverityError, Message: "at least one match field is required"})
	}
	if m.Role != "" && !knownRoles[m.Role] {
		diags = append(diags, Diagnostic{Path: path + ".match.role", Severity: SeverityError, Message: "unknown role: " + m.Role})
	}
	if m.FilePath != "" {
		diags = append(diags, compileCheckRegex(path+".match.filePath", m.FilePath)...)
	}
	if m.ClassFqn != "" {
		diags = append(diags, compileCheckRegex(path+".match.classFqn", m.ClassFqn)...)
	}
	if m.MemberName != "" {
		diags = append(diags, compileCheckRegex(path+".match.memberName", m.MemberName)...)
	}
	if m.Annotation != "" {
		diags = append(diags, compileCheckRegex(path+".match.annotation", m.Annotation)...)
	}

	return diags
}

// compileCheckRegex verifies pattern compiles as an anchored regex, the
// same shape suppression.Apply compiles exception match fields with.
func compileCheckRegex(path, pattern string) []Diagnostic {
	if _, err := regexp.Compile("^(?:" + pattern + ")$"); err != nil {
		return []Diagnostic{{Path: path, Severity: SeverityError, Message: "regex does not compile: " + err.Error()}}
	}
	return nil
}

// HasErrors reports whether diags contains at least one ERROR-severity
// entry, meaning the config must be rejected.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
