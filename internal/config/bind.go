package config

import (
	"fmt"
	"strings"
	"time"
)

// ConfigBindError is a structural/type binding failure with a dotted,
// index-aware path (spec §4.3), e.g. "rules[3].params.forbidden[0].from".
type ConfigBindError struct {
	Path    string
	Message string
}

func (e ConfigBindError) Error() string {
	return e.Path + ": " + e.Message
}

type binder struct {
	errors []ConfigBindError
}

func (b *binder) fail(path, format string, args ...any) {
	b.errors = append(b.errors, ConfigBindError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// Bind converts a decoded config tree (as produced by pkg/configsource and
// normalized by rawconfig.Normalize) into a Config. Binding is total: it
// always returns either a fully typed Config
// (errs empty) or a non-empty error list; no semantic interpretation
// happens here (that's the Validator, C4).
func Bind(raw any) (*Config, []ConfigBindError) {
	b := &binder{}
	root, ok := asMap(raw, "", b)
	if !ok {
		return nil, b.errors
	}

	cfg := &Config{}
	cfg.Version = bindIntField(root, "version", "version", 0, b)
	cfg.Project = bindProject(mapField(root, "project"), "project", b)
	cfg.Roles = bindRoles(mapField(root, "roles"), "roles", b)
	cfg.Rules = bindRules(listField(root, "rules"), "rules", b)
	cfg.Exceptions = bindExceptions(listField(root, "exceptions"), "exceptions", b)

	if len(b.errors) > 0 {
		return nil, b.errors
	}
	return cfg, nil
}

func mapField(m map[string]any, key string) any {
	if m == nil {
		return nil
	}
	return m[key]
}

func listField(m map[string]any, key string) any {
	if m == nil {
		return nil
	}
	return m[key]
}

func asMap(v any, path string, b *binder) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		b.fail(path, "must be a map")
		return nil, false
	}
	return m, true
}

func asList(v any, path string, b *binder) ([]any, bool) {
	if v == nil {
		return nil, true
	}
	l, ok := v.([]any)
	if !ok {
		b.fail(path, "must be a list")
		return nil, false
	}
	return l, true
}

func asString(v any, path string, b *binder) (string, bool) {
	s, ok := v.(string)
	if !ok {
		b.fail(path, "must be a string")
		return "", false
	}
	return s, true
}

func asBool(v any, path string, b *binder) (bool, bool) {
	bv, ok := v.(bool)
	if !ok {
		b.fail(path, "must be a boolean")
		return false, false
	}
	return bv, true
}

func asInt(v any, path string, b *binder) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		b.fail(path, "must be an integer")
		return 0, false
	}
}

func bindIntField(m map[string]any, key, path string, def int, b *binder) int {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	n, _ := asInt(v, path, b)
	return n
}

func bindStringField(m map[string]any, key, path string, def string, b *binder) string {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	s, _ := asString(v, path, b)
	return s
}

func bindStringListField(m map[string]any, key, path string, b *binder) []string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	list, ok := asList(v, path, b)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		s, ok := asString(item, fmt.Sprintf("%s[%d]", path, i), b)
		if ok {
			out = append(out, s)
		}
	}
	return out
}

func bindEnum(v any, path string, allowed map[string]string, b *binder) string {
	s, ok := v.(string)
	if !ok {
		b.fail(path, "must be a string")
		return ""
	}
	norm := strings.ToLower(strings.TrimSpace(s))
	canonical, ok := allowed[norm]
	if !ok {
		keys := make([]string, 0, len(allowed))
		for _, c := range allowed {
			keys = append(keys, c)
		}
		b.fail(path, "must be one of: %s", strings.Join(keys, ", "))
		return ""
	}
	return canonical
}

var rootPackageModeEnum = map[string]string{"auto": string(RootPackageAuto), "explicit": string(RootPackageExplicit)}
var unknownRuleEnum = map[string]string{
	"ignore": string(UnknownRuleIgnore), "warn": string(UnknownRuleWarn), "error": string(UnknownRuleError),
}
var severityEnum = map[string]string{
	"error": string(SeverityError), "warning": string(SeverityWarning),
	"info": string(SeverityInfo), "hint": string(SeverityHint),
}

func bindProject(v any, path string, b *binder) ProjectConfig {
	if v == nil {
		return ProjectConfig{UnknownRule: UnknownRuleWarn, RootPackageMode: RootPackageAuto}
	}
	m, ok := asMap(v, path, b)
	if !ok {
		return ProjectConfig{UnknownRule: UnknownRuleWarn, RootPackageMode: RootPackageAuto}
	}

	pc := ProjectConfig{
		RootPackageMode: RootPackageAuto,
		UnknownRule:     UnknownRuleWarn,
	}

	if rp, ok := m["rootPackage"]; ok && rp != nil {
		rpMap, ok := asMap(rp, path+".rootPackage", b)
		if ok {
			if mode, ok := rpMap["mode"]; ok && mode != nil {
				if s := bindEnum(mode, path+".rootPackage.mode", rootPackageModeEnum, b); s != "" {
					pc.RootPackageMode = RootPackageMode(s)
				}
			}
			pc.RootPackageValue = bindStringField(rpMap, "value", path+".rootPackage.value", "", b)
		}
	}

	if sg, ok := m["sourceGlobs"]; ok && sg != nil {
		sgMap, ok := asMap(sg, path+".sourceGlobs", b)
		if ok {
			pc.SourceIncludes = bindStringListField(sgMap, "include", path+".sourceGlobs.include", b)
			pc.SourceExcludes = bindStringListField(sgMap, "exclude", path+".sourceGlobs.exclude", b)
		}
	}

	if val, ok := m["validation"]; ok && val != nil {
		valMap, ok := asMap(val, path+".validation", b)
		if ok {
			if ur, ok := valMap["unknownRule"]; ok && ur != nil {
				if s := bindEnum(ur, path+".validation.unknownRule", unknownRuleEnum, b); s != "" {
					pc.UnknownRule = UnknownRulePolicy(s)
				}
			}
		}
	}

	pc.ScanLimitBytes = int64(bindIntField(m, "scanLimitBytes", path+".scanLimitBytes", 0, b))
	pc.BytecodeRoots = bindStringListField(m, "bytecodeRoots", path+".bytecodeRoots", b)

	return pc
}

func bindRoles(v any, path string, b *binder) map[string]RoleDef {
	if v == nil {
		return nil
	}
	m, ok := asMap(v, path, b)
	if !ok {
		return nil
	}
	out := make(map[string]RoleDef, len(m))
	for id, raw := range m {
		rm, ok := asMap(raw, fmt.Sprintf("%s.%s", path, id), b)
		if !ok {
			continue
		}
		rd := RoleDef{
			ID:          id,
			Priority:    bindIntField(rm, "priority", fmt.Sprintf("%s.%s.priority", path, id), 0, b),
			Description: bindStringField(rm, "description", fmt.Sprintf("%s.%s.description", path, id), "", b),
		}
		if matchRaw, ok := rm["match"]; ok {
			rd.Match = bindMatcher(matchRaw, fmt.Sprintf("%s.%s.match", path, id), b)
		} else {
			b.fail(fmt.Sprintf("%s.%s.match", path, id), "match is required")
		}
		out[id] = rd
	}
	return out
}

func bindMatcher(v any, path string, b *binder) Matcher {
	m, ok := asMap(v, path, b)
	if !ok {
		return Matcher{}
	}
	for key, val := range m {
		switch key {
		case "anyOf":
			return Matcher{Kind: MatcherAnyOf, Children: bindMatcherList(val, path+".anyOf", b)}
		case "allOf":
			return Matcher{Kind: MatcherAllOf, Children: bindMatcherList(val, path+".allOf", b)}
		case "not":
			inner := bindMatcher(val, path+".not", b)
			return Matcher{Kind: MatcherNot, Inner: &inner}
		case "annotation":
			s, _ := asString(val, path+".annotation", b)
			return Matcher{Kind: MatcherAnnotation, Fqn: s}
		case "annotationPrefix":
			s, _ := asString(val, path+".annotationPrefix", b)
			return Matcher{Kind: MatcherAnnotationPrefix, Prefix: s}
		case "packageRegex":
			s, _ := asString(val, path+".packageRegex", b)
			return Matcher{Kind: MatcherPackageRegex, Regex: s}
		case "packageContainsSegment":
			s, _ := asString(val, path+".packageContainsSegment", b)
			return Matcher{Kind: MatcherPackageContainsSegment, Segment: s}
		case "classNameRegex":
			s, _ := asString(val, path+".classNameRegex", b)
			return Matcher{Kind: MatcherClassNameRegex, Regex: s}
		case "classNameEndsWith":
			s, _ := asString(val, path+".classNameEndsWith", b)
			return Matcher{Kind: MatcherClassNameEndsWith, Suffix: s}
		case "classNameEndsWithAny":
			return Matcher{Kind: MatcherClassNameEndsWithAny, Suffixes: bindStringListAny(val, path+".classNameEndsWithAny", b)}
		case "hasMainMethod":
			bv, _ := asBool(val, path+".hasMainMethod", b)
			return Matcher{Kind: MatcherHasMainMethod, Bool: bv}
		case "implements":
			s, _ := asString(val, path+".implements", b)
			return Matcher{Kind: MatcherImplements, Fqn: s}
		case "extends":
			s, _ := asString(val, path+".extends", b)
			return Matcher{Kind: MatcherExtends, Fqn: s}
		}
	}
	b.fail(path, "unrecognized matcher shape")
	return Matcher{}
}

func bindMatcherList(v any, path string, b *binder) []Matcher {
	list, ok := asList(v, path, b)
	if !ok {
		return nil
	}
	out := make([]Matcher, 0, len(list))
	for i, item := range list {
		out = append(out, bindMatcher(item, fmt.Sprintf("%s[%d]", path, i), b))
	}
	return out
}

func bindStringListAny(v any, path string, b *binder) []string {
	list, ok := asList(v, path, b)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		s, ok := asString(item, fmt.Sprintf("%s[%d]", path, i), b)
		if ok {
			out = append(out, s)
		}
	}
	return out
}

func bindRules(v any, path string, b *binder) []RuleDef {
	list, ok := asList(v, path, b)
	if !ok {
		return nil
	}
	out := make([]RuleDef, 0, len(list))
	for i, item := range list {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		m, ok := asMap(item, itemPath, b)
		if !ok {
			continue
		}
		rd := RuleDef{
			Type:    bindStringField(m, "type", itemPath+".type", "", b),
			Name:    bindStringField(m, "name", itemPath+".name", "", b),
			Enabled: true,
		}
		if en, ok := m["enabled"]; ok && en != nil {
			rd.Enabled, _ = asBool(en, itemPath+".enabled", b)
		}
		if sev, ok := m["severity"]; ok && sev != nil {
			if s := bindEnum(sev, itemPath+".severity", severityEnum, b); s != "" {
				rd.Severity = Severity(s)
			}
		} else {
			rd.Severity = SeverityWarning
		}

		if rolesRaw, ok := m["roles"]; ok && rolesRaw != nil {
			list, ok := asList(rolesRaw, itemPath+".roles", b)
			if ok {
				roles := make([]string, 0, len(list))
				for j, r := range list {
					s, ok := asString(r, fmt.Sprintf("%s.roles[%d]", itemPath, j), b)
					if ok {
						roles = append(roles, s)
					}
				}
				rd.Roles = roles
			}
		}

		if scopeRaw, ok := m["scope"]; ok && scopeRaw != nil {
			rd.Scope = bindScope(scopeRaw, itemPath+".scope", b)
		}

		if paramsRaw, ok := m["params"]; ok && paramsRaw != nil {
			pm, ok := asMap(paramsRaw, itemPath+".params", b)
			if ok {
				rd.Params = pm
			}
		} else {
			rd.Params = map[string]any{}
		}

		out = append(out, rd)
	}
	return out
}

func bindScope(v any, path string, b *binder) *RuleScope {
	m, ok := asMap(v, path, b)
	if !ok {
		return nil
	}
	return &RuleScope{
		IncludeRoles:    bindStringListField(m, "includeRoles", path+".includeRoles", b),
		ExcludeRoles:    bindStringListField(m, "excludeRoles", path+".excludeRoles", b),
		IncludePackages: bindStringListField(m, "includePackages", path+".includePackages", b),
		ExcludePackages: bindStringListField(m, "excludePackages", path+".excludePackages", b),
		IncludeGlobs:    bindStringListField(m, "includeGlobs", path+".includeGlobs", b),
		ExcludeGlobs:    bindStringListField(m, "excludeGlobs", path+".excludeGlobs", b),
	}
}

func bindExceptions(v any, path string, b *binder) []Exception {
	list, ok := asList(v, path, b)
	if !ok {
		return nil
	}
	out := make([]Exception, 0, len(list))
	for i, item := range list {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		m, ok := asMap(item, itemPath, b)
		if !ok {
			continue
		}
		exc := Exception{
			ID:     bindStringField(m, "id", itemPath+".id", "", b),
			Reason: bindStringField(m, "reason", itemPath+".reason", "", b),
		}
		if expRaw, ok := m["expiresOn"]; ok && expRaw != nil {
			s, ok := asString(expRaw, itemPath+".expiresOn", b)
			if ok {
				t, err := time.Parse("2006-01-02", s)
				if err != nil {
					b.fail(itemPath+".expiresOn", "must be ISO-8601 YYYY-MM-DD")
				} else {
					exc.ExpiresOn = &t
				}
			}
		}
		if matchRaw, ok := m["match"]; ok {
			mm, ok := asMap(matchRaw, itemPath+".match", b)
			if ok {
				exc.Match = ExceptionMatch{
					FilePath:   bindStringField(mm, "filePath", itemPath+".match.filePath", "", b),
					ClassFqn:   bindStringField(mm, "classFqn", itemPath+".match.classFqn", "", b),
					MemberName: bindStringField(mm, "memberName", itemPath+".match.memberName", "", b),
					Annotation: bindStringField(mm, "annotation", itemPath+".match.annotation", "", b),
					Role:       bindStringField(mm, "role", itemPath+".match.role", "", b),
				}
			}
		}
		exc.Suppress = bindStringListField(m, "suppress", itemPath+".suppress", b)
		out = append(out, exc)
	}
	return out
}
