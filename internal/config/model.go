// Package config holds the typed, bound, and validated shape of a shamash
// configuration document: the Config Binder (C3) converts a raw YAML tree
// into these types, and the Semantic Validator (C4) checks them for
// cross-referential and rule-specific correctness.
package config

import "time"

// Severity is a finding's severity level.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
	SeverityHint    Severity = "HINT"
)

// UnknownRulePolicy controls what happens when a rule id has no registered
// implementation.
type UnknownRulePolicy string

const (
	UnknownRuleIgnore UnknownRulePolicy = "IGNORE"
	UnknownRuleWarn   UnknownRulePolicy = "WARN"
	UnknownRuleError  UnknownRulePolicy = "ERROR"
)

// RootPackageMode selects how the project's root package is determined.
type RootPackageMode string

const (
	RootPackageAuto     RootPackageMode = "AUTO"
	RootPackageExplicit RootPackageMode = "EXPLICIT"
)

// Config is the fully bound and validated shamash configuration (v1).
type Config struct {
	Version    int
	Project    ProjectConfig
	Roles      map[string]RoleDef
	Rules      []RuleDef
	Exceptions []Exception
}

// ProjectConfig is the `project` block.
type ProjectConfig struct {
	RootPackageMode  RootPackageMode
	RootPackageValue string
	SourceIncludes   []string
	SourceExcludes   []string
	UnknownRule      UnknownRulePolicy
	ScanLimitBytes   int64
	BytecodeRoots    []string
}

// RoleDef is one entry of the `roles` map.
type RoleDef struct {
	ID          string
	Priority    int
	Description string
	Match       Matcher
}

// RuleDef is one entry of the `rules` list.
type RuleDef struct {
	Type     string
	Name     string
	Roles    []string // nil means wildcard (all roles)
	Enabled  bool
	Severity Severity
	Scope    *RuleScope
	Params   map[string]any
}

// CanonicalID returns "type.name", the un-expanded rule identity.
func (r RuleDef) CanonicalID() string {
	return r.Type + "." + r.Name
}

// ExpandedIDs returns the canonical ids this rule produces findings under:
// "type.name" if Roles is nil (wildcard), else "type.name.<role>" per role,
// in the same order Roles was declared.
func (r RuleDef) ExpandedIDs() []string {
	if r.Roles == nil {
		return []string{r.CanonicalID()}
	}
	ids := make([]string, 0, len(r.Roles))
	for _, role := range r.Roles {
		ids = append(ids, r.CanonicalID()+"."+role)
	}
	return ids
}

// ExpandedID returns the canonical finding id for one role-expanded
// invocation of this rule: "type.name" when Roles is nil (wildcard),
// otherwise "type.name.<role>".
func (r RuleDef) ExpandedID(role string) string {
	if r.Roles == nil {
		return r.CanonicalID()
	}
	return r.CanonicalID() + "." + role
}

// RuleScope is an optional include/exclude filter attached to a RuleDef.
type RuleScope struct {
	IncludeRoles    []string
	ExcludeRoles    []string
	IncludePackages []string // regex source
	ExcludePackages []string // regex source
	IncludeGlobs    []string
	ExcludeGlobs    []string
}

// ExceptionMatch is the set of optional match fields on an Exception entry.
// A nil/zero field is treated as "don't filter on this".
type ExceptionMatch struct {
	FilePath   string
	ClassFqn   string
	MemberName string
	Annotation string
	Role       string
}

// Exception is one entry of the `exceptions` list: a standing suppression of
// named rules for classes/members matching ExceptionMatch.
type Exception struct {
	ID        string
	Reason    string
	ExpiresOn *time.Time
	Match     ExceptionMatch
	Suppress  []string // rule ids, or "*"/"all"
}

// IsExpired reports whether ExpiresOn names a date strictly before now.
func (e Exception) IsExpired(now time.Time) bool {
	if e.ExpiresOn == nil {
		return false
	}
	return e.ExpiresOn.Before(now)
}
