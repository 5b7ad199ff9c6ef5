package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/aalsanie/shamash-sub001/internal/config"
	"github.com/aalsanie/shamash-sub001/internal/finding"
	"github.com/aalsanie/shamash-sub001/internal/graph"
	"github.com/aalsanie/shamash-sub001/internal/scope"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
)

func builtinCatalog() []Rule {
	return []Rule{
		forbiddenRoleDependenciesRule{},
		layerCycleRule{},
		maxFanInRule{},
		maxFanOutRule{},
		maxPackageSpreadRule{},
		maxMethodsByRoleRule{},
		bannedSuffixesRule{},
		rolePlacementRule{},
		rootPackageRule{},
		unusedPrivateMembersRule{},
		customExpressionRule{},
	}
}

// granularityParam parses the "granularity" param, defaulting to PACKAGE.
func granularityParam(params map[string]any, def graph.Granularity) graph.Granularity {
	switch strings.ToUpper(paramString(params, "granularity", string(def))) {
	case "CLASS":
		return graph.GranularityClass
	case "MODULE":
		return graph.GranularityModule
	default:
		return graph.GranularityPackage
	}
}

func anchorClass(ec *EvalContext, granularity graph.Granularity, node string, inScope scope.Predicate) *factmodel.ClassFact {
	var best *factmodel.ClassFact
	for i := range ec.Index.Classes {
		cf := &ec.Index.Classes[i]
		if graph.NodeOf(cf.Type, granularity) != node {
			continue
		}
		role := ec.Index.ClassToRole[cf.Type.FQName]
		if !inScope(cf, role) {
			continue
		}
		if best == nil || cf.Type.FQName < best.Type.FQName {
			best = cf
		}
	}
	return best
}

// ---- arch.forbiddenRoleDependencies ----

type forbiddenRoleDependenciesRule struct{}

func (forbiddenRoleDependenciesRule) ID() string { return "arch.forbiddenRoleDependencies" }

func (forbiddenRoleDependenciesRule) Spec() RuleSpec {
	return RuleSpec{ID: "arch.forbiddenRoleDependencies", Validate: func(params map[string]any) []string {
		var errs []string
		if _, ok := params["forbidden"]; !ok {
			errs = append(errs, "forbidden is required")
		}
		return errs
	}}
}

func (forbiddenRoleDependenciesRule) Evaluate(ec *EvalContext, def config.RuleDef, inScope scope.Predicate, role string) ([]finding.Finding, error) {
	var kinds map[factmodel.DependencyKind]bool
	if ks := paramStringSlice(def.Params, "kinds"); len(ks) > 0 {
		kinds = map[factmodel.DependencyKind]bool{}
		for _, k := range ks {
			if kind, ok := factmodel.KindAliases[k]; ok {
				kinds[kind] = true
			} else {
				kinds[factmodel.DependencyKind(k)] = true
			}
		}
	}

	var out []finding.Finding
	for _, entry := range paramMapSlice(def.Params, "forbidden") {
		from, _ := entry["from"].(string)
		if role != "" && from != role {
			continue
		}
		toRoles := map[string]bool{}
		for _, t := range toSliceOfStrings(entry["to"]) {
			toRoles[t] = true
		}
		message, _ := entry["message"].(string)
		if message == "" {
			message = fmt.Sprintf("role %q must not depend on %v", from, entry["to"])
		}

		for _, e := range ec.Index.Edges {
			if kinds != nil && !kinds[e.Kind] {
				continue
			}
			fromRole := ec.Index.ClassToRole[e.From.FQName]
			if fromRole != from {
				continue
			}
			toRole := ec.Index.ClassToRole[e.To.FQName]
			if !toRoles[toRole] {
				continue
			}
			fromClass, ok := ec.Index.ClassByFQName(e.From.FQName)
			if !ok || !inScope(fromClass, fromRole) {
				continue
			}
			out = append(out, finding.Finding{
				RuleID:     def.ExpandedID(role),
				Message:    message,
				FilePath:   fromClass.Location.FilePath(),
				Severity:   def.Severity,
				ClassFqn:   e.From.FQName,
				MemberName: e.Detail,
				Data:       []finding.DataEntry{{Key: "toTypeFqn", Value: e.To.FQName}},
			})
		}
	}
	return out, nil
}

func toSliceOfStrings(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ---- arch.layerCycle ----

type layerCycleRule struct{}

func (layerCycleRule) ID() string { return "arch.layerCycle" }

func (layerCycleRule) Spec() RuleSpec {
	return RuleSpec{ID: "arch.layerCycle", Validate: func(params map[string]any) []string { return nil }}
}

func (layerCycleRule) Evaluate(ec *EvalContext, def config.RuleDef, inScope scope.Predicate, role string) ([]finding.Finding, error) {
	granularity := granularityParam(def.Params, graph.GranularityPackage)
	includeExternal := paramBool(def.Params, "includeExternal", false)
	g := ec.GraphFor(granularity, includeExternal)

	var out []finding.Finding
	for _, scc := range g.StronglyConnectedComponents() {
		if !scc.Cyclic {
			continue
		}
		anchor := anchorClass(ec, granularity, scc.Nodes[0], inScope)
		filePath := ""
		if anchor != nil {
			filePath = anchor.Location.FilePath()
		}
		classFqn := ""
		if granularity == graph.GranularityClass && anchor != nil {
			classFqn = anchor.Type.FQName
		}
		out = append(out, finding.Finding{
			RuleID:   def.ExpandedID(role),
			Message:  fmt.Sprintf("dependency cycle: %s", strings.Join(scc.RepresentativeCycle, " -> ")),
			FilePath: filePath,
			Severity: def.Severity,
			ClassFqn: classFqn,
			Data: []finding.DataEntry{
				{Key: "cycleSize", Value: fmt.Sprint(len(scc.Nodes))},
				{Key: "cycleNodes", Value: strings.Join(scc.Nodes, ",")},
			},
		})
	}
	return out, nil
}

// ---- metrics.maxFanIn / metrics.maxFanOut ----

type maxFanInRule struct{}

func (maxFanInRule) ID() string { return "metrics.maxFanIn" }
func (maxFanInRule) Spec() RuleSpec {
	return RuleSpec{ID: "metrics.maxFanIn", Validate: requireNonNegativeMax}
}
func (maxFanInRule) Evaluate(ec *EvalContext, def config.RuleDef, inScope scope.Predicate, role string) ([]finding.Finding, error) {
	return evalFanMetric(ec, def, inScope, role, "fanIn", func(g *graph.Graph, n string) int { return g.FanIn(n) })
}

type maxFanOutRule struct{}

func (maxFanOutRule) ID() string { return "metrics.maxFanOut" }
func (maxFanOutRule) Spec() RuleSpec {
	return RuleSpec{ID: "metrics.maxFanOut", Validate: requireNonNegativeMax}
}
func (maxFanOutRule) Evaluate(ec *EvalContext, def config.RuleDef, inScope scope.Predicate, role string) ([]finding.Finding, error) {
	return evalFanMetric(ec, def, inScope, role, "fanOut", func(g *graph.Graph, n string) int { return g.FanOut(n) })
}

func requireNonNegativeMax(params map[string]any) []string {
	if _, err := requireParam(params, "max"); err != nil {
		return []string{err.Error()}
	}
	if paramInt(params, "max", 0) < 0 {
		return []string{"max must be >= 0"}
	}
	return nil
}

type fanViolator struct {
	node  string
	value int
}

func evalFanMetric(ec *EvalContext, def config.RuleDef, inScope scope.Predicate, role, metricName string, metric func(*graph.Graph, string) int) ([]finding.Finding, error) {
	max := paramInt(def.Params, "max", 0)
	granularity := granularityParam(def.Params, graph.GranularityPackage)
	includeExternal := paramBool(def.Params, "includeExternal", false)
	top := paramInt(def.Params, "top", 10)

	g := ec.GraphFor(granularity, includeExternal)
	var violators []fanViolator
	for _, n := range g.Nodes() {
		if anchorClass(ec, granularity, n, inScope) == nil {
			continue
		}
		v := metric(g, n)
		if v > max {
			violators = append(violators, fanViolator{node: n, value: v})
		}
	}
	if len(violators) == 0 {
		return nil, nil
	}

	sort.Slice(violators, func(i, j int) bool {
		if violators[i].value != violators[j].value {
			return violators[i].value > violators[j].value
		}
		return violators[i].node < violators[j].node
	})

	truncated := len(violators) > top
	shown := violators
	if truncated {
		shown = violators[:top]
	}

	anchor := anchorClass(ec, granularity, shown[0].node, inScope)
	filePath := ""
	if anchor != nil {
		filePath = anchor.Location.FilePath()
	}

	var sb strings.Builder
	var examples strings.Builder
	for i, v := range shown {
		if i > 0 {
			sb.WriteString(", ")
			examples.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%d", v.node, v.value)
		fmt.Fprintf(&examples, "%s:%d", v.node, v.value)
	}

	return []finding.Finding{{
		RuleID:   def.ExpandedID(role),
		Message:  fmt.Sprintf("%s exceeds max %d: %s", metricName, max, sb.String()),
		FilePath: filePath,
		Severity: def.Severity,
		Data: []finding.DataEntry{
			{Key: "violators", Value: fmt.Sprint(len(violators))},
			{Key: "truncated", Value: fmt.Sprint(truncated)},
			{Key: "examples", Value: examples.String()},
		},
	}}, nil
}

// ---- metrics.maxPackageSpread ----

type maxPackageSpreadRule struct{}

func (maxPackageSpreadRule) ID() string { return "metrics.maxPackageSpread" }
func (maxPackageSpreadRule) Spec() RuleSpec {
	return RuleSpec{ID: "metrics.maxPackageSpread", Validate: requireNonNegativeMax}
}

func (maxPackageSpreadRule) Evaluate(ec *EvalContext, def config.RuleDef, inScope scope.Predicate, role string) ([]finding.Finding, error) {
	max := paramInt(def.Params, "max", 0)
	includeExternal := paramBool(def.Params, "includeExternal", false)
	includeSelf := paramBool(def.Params, "includeSelf", false)
	top := paramInt(def.Params, "top", 20)

	pkgs := map[string]bool{}
	for _, cf := range ec.Index.Classes {
		role := ec.Index.ClassToRole[cf.Type.FQName]
		if !inScope(&cf, role) {
			continue
		}
		pkgs[cf.Type.PackageName] = true
	}

	type spreadEntry struct {
		pkg    string
		spread int
	}
	var violators []spreadEntry
	for pkg := range pkgs {
		s := graph.PackageSpread(ec.Index, pkg, includeExternal, includeSelf)
		if s > max {
			violators = append(violators, spreadEntry{pkg: pkg, spread: s})
		}
	}
	if len(violators) == 0 {
		return nil, nil
	}
	sort.Slice(violators, func(i, j int) bool {
		if violators[i].spread != violators[j].spread {
			return violators[i].spread > violators[j].spread
		}
		return violators[i].pkg < violators[j].pkg
	})

	truncated := len(violators) > top
	shown := violators
	if truncated {
		shown = violators[:top]
	}

	anchor := anchorClass(ec, graph.GranularityPackage, shown[0].pkg, inScope)
	filePath := ""
	if anchor != nil {
		filePath = anchor.Location.FilePath()
	}

	var sb strings.Builder
	for i, v := range shown {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%d", v.pkg, v.spread)
	}

	return []finding.Finding{{
		RuleID:   def.ExpandedID(role),
		Message:  fmt.Sprintf("package spread exceeds max %d: %s", max, sb.String()),
		FilePath: filePath,
		Severity: def.Severity,
		Data: []finding.DataEntry{
			{Key: "violators", Value: fmt.Sprint(len(violators))},
			{Key: "truncated", Value: fmt.Sprint(truncated)},
		},
	}}, nil
}

// ---- metrics.maxMethodsByRole ----

type maxMethodsByRoleRule struct{}

func (maxMethodsByRoleRule) ID() string { return "metrics.maxMethodsByRole" }
func (maxMethodsByRoleRule) Spec() RuleSpec {
	return RuleSpec{ID: "metrics.maxMethodsByRole", Validate: requireNonNegativeMax}
}

func (maxMethodsByRoleRule) Evaluate(ec *EvalContext, def config.RuleDef, inScope scope.Predicate, role string) ([]finding.Finding, error) {
	max := paramInt(def.Params, "max", 0)

	counts := map[string]int{}
	for _, m := range ec.Index.Methods {
		if m.Name == "<init>" || m.Name == "<clinit>" {
			continue
		}
		counts[m.Owner.FQName]++
	}

	var out []finding.Finding
	for _, cf := range ec.Index.Classes {
		classRole := ec.Index.ClassToRole[cf.Type.FQName]
		if !inScope(&cf, classRole) {
			continue
		}
		count := counts[cf.Type.FQName]
		if count > max {
			out = append(out, finding.Finding{
				RuleID:   def.ExpandedID(role),
				Message:  fmt.Sprintf("class declares %d methods, exceeding max %d", count, max),
				FilePath: cf.Location.FilePath(),
				Severity: def.Severity,
				ClassFqn: cf.Type.FQName,
				Data: []finding.DataEntry{
					{Key: "actual", Value: fmt.Sprint(count)},
					{Key: "role", Value: role},
				},
			})
		}
	}
	return out, nil
}

// ---- naming.bannedSuffixes ----

type bannedSuffixesRule struct{}

func (bannedSuffixesRule) ID() string { return "naming.bannedSuffixes" }
func (bannedSuffixesRule) Spec() RuleSpec {
	return RuleSpec{ID: "naming.bannedSuffixes", Validate: func(params map[string]any) []string {
		if len(paramStringSlice(params, "suffixes")) == 0 {
			return []string{"suffixes must be a non-empty list"}
		}
		return nil
	}}
}

func (bannedSuffixesRule) Evaluate(ec *EvalContext, def config.RuleDef, inScope scope.Predicate, role string) ([]finding.Finding, error) {
	suffixes := paramStringSlice(def.Params, "suffixes")
	var out []finding.Finding
	for _, cf := range ec.Index.Classes {
		classRole := ec.Index.ClassToRole[cf.Type.FQName]
		if !inScope(&cf, classRole) {
			continue
		}
		name := cf.Type.SimpleName()
		for _, suffix := range suffixes {
			if strings.HasSuffix(name, suffix) {
				out = append(out, finding.Finding{
					RuleID:   def.ExpandedID(role),
					Message:  fmt.Sprintf("class name %q uses banned suffix %q", name, suffix),
					FilePath: cf.Location.FilePath(),
					Severity: def.Severity,
					ClassFqn: cf.Type.FQName,
				})
				break
			}
		}
	}
	return out, nil
}

// ---- packages.rolePlacement ----

type rolePlacementRule struct{}

func (rolePlacementRule) ID() string { return "packages.rolePlacement" }
func (rolePlacementRule) Spec() RuleSpec {
	return RuleSpec{ID: "packages.rolePlacement", Validate: func(params map[string]any) []string {
		var errs []string
		for _, p := range paramStringSlice(params, "allowed") {
			if _, err := regexp.Compile(p); err != nil {
				errs = append(errs, fmt.Sprintf("allowed pattern %q: %v", p, err))
			}
		}
		return errs
	}}
}

func (rolePlacementRule) Evaluate(ec *EvalContext, def config.RuleDef, inScope scope.Predicate, role string) ([]finding.Finding, error) {
	patterns := paramStringSlice(def.Params, "allowed")
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		rx, err := regexp.Compile("^(?:" + p + ")$")
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, rx)
	}

	var out []finding.Finding
	for _, cf := range ec.Index.Classes {
		classRole := ec.Index.ClassToRole[cf.Type.FQName]
		if !inScope(&cf, classRole) {
			continue
		}
		matched := false
		for _, rx := range compiled {
			if rx.MatchString(cf.Type.PackageName) {
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, finding.Finding{
				RuleID:   def.ExpandedID(role),
				Message:  fmt.Sprintf("package %q is not an allowed location for role %q", cf.Type.PackageName, classRole),
				FilePath: cf.Location.FilePath(),
				Severity: def.Severity,
				ClassFqn: cf.Type.FQName,
			})
		}
	}
	return out, nil
}

// ---- packages.rootPackage ----

type rootPackageRule struct{}

func (rootPackageRule) ID() string { return "packages.rootPackage" }
func (rootPackageRule) Spec() RuleSpec {
	return RuleSpec{ID: "packages.rootPackage", Validate: func(params map[string]any) []string { return nil }}
}

func (rootPackageRule) Evaluate(ec *EvalContext, def config.RuleDef, inScope scope.Predicate, role string) ([]finding.Finding, error) {
	root := paramString(def.Params, "value", ec.Config.Project.RootPackageValue)
	if root == "" {
		return nil, nil
	}
	var out []finding.Finding
	for _, cf := range ec.Index.Classes {
		classRole := ec.Index.ClassToRole[cf.Type.FQName]
		if !inScope(&cf, classRole) {
			continue
		}
		pkg := cf.Type.PackageName
		if pkg != root && !strings.HasPrefix(pkg, root+".") {
			out = append(out, finding.Finding{
				RuleID:   def.ExpandedID(role),
				Message:  fmt.Sprintf("package %q is outside root package %q", pkg, root),
				FilePath: cf.Location.FilePath(),
				Severity: def.Severity,
				ClassFqn: cf.Type.FQName,
			})
		}
	}
	return out, nil
}

// ---- deadcode.unusedPrivateMembers ----

type unusedPrivateMembersRule struct{}

func (unusedPrivateMembersRule) ID() string { return "deadcode.unusedPrivateMembers" }
func (unusedPrivateMembersRule) Spec() RuleSpec {
	return RuleSpec{ID: "deadcode.unusedPrivateMembers", Validate: func(params map[string]any) []string { return nil }}
}

func (unusedPrivateMembersRule) Evaluate(ec *EvalContext, def config.RuleDef, inScope scope.Predicate, role string) ([]finding.Finding, error) {
	referenced := map[string]bool{}
	for _, e := range ec.Index.Edges {
		if e.Kind != factmodel.KindFieldAccess && e.Kind != factmodel.KindMethodCall {
			continue
		}
		if e.Detail == "" {
			continue
		}
		referenced[e.To.FQName+"#"+e.Detail] = true
	}

	var out []finding.Finding
	for _, cf := range ec.Index.Classes {
		classRole := ec.Index.ClassToRole[cf.Type.FQName]
		if !inScope(&cf, classRole) {
			continue
		}
		for _, f := range ec.Index.Fields {
			if f.Owner.FQName != cf.Type.FQName || f.Access&classfilePrivate == 0 {
				continue
			}
			if strings.HasPrefix(f.Name, "_") {
				continue
			}
			if referenced[cf.Type.FQName+"#"+f.Name] {
				continue
			}
			out = append(out, unusedFinding(def, role, cf, f.Name, "field"))
		}
		for _, m := range ec.Index.Methods {
			if m.Owner.FQName != cf.Type.FQName || m.Access&classfilePrivate == 0 {
				continue
			}
			if strings.HasPrefix(m.Name, "_") || m.Name == "<init>" || m.Name == "<clinit>" {
				continue
			}
			if referenced[cf.Type.FQName+"#"+m.Name] {
				continue
			}
			out = append(out, unusedFinding(def, role, cf, m.Name, "method"))
		}
	}
	return out, nil
}

// classfilePrivate mirrors classfile.AccPrivate without importing the
// classfile package purely for one bit constant.
const classfilePrivate uint16 = 0x0002

func unusedFinding(def config.RuleDef, role string, cf factmodel.ClassFact, memberName, kind string) finding.Finding {
	return finding.Finding{
		RuleID:     def.ExpandedID(role),
		Message:    fmt.Sprintf("private %s %q is never referenced", kind, memberName),
		FilePath:   cf.Location.FilePath(),
		Severity:   def.Severity,
		ClassFqn:   cf.Type.FQName,
		MemberName: memberName,
	}
}
