package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalsanie/shamash-sub001/internal/config"
	"github.com/aalsanie/shamash-sub001/internal/finding"
	"github.com/aalsanie/shamash-sub001/internal/pipeline"
	"github.com/aalsanie/shamash-sub001/internal/rules"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
)

// class is a small helper to build a ClassFact with a predictable file path.
func class(fqn string) factmodel.ClassFact {
	t := factmodel.NewTypeRef(toInternal(fqn))
	return factmodel.ClassFact{
		Type:     t,
		Location: factmodel.SourceLocation{OriginKind: factmodel.OriginDirClass, OriginPath: t.InternalName + ".class"},
	}
}

func toInternal(fqn string) string {
	out := make([]byte, len(fqn))
	for i := 0; i < len(fqn); i++ {
		if fqn[i] == '.' {
			out[i] = '/'
		} else {
			out[i] = fqn[i]
		}
	}
	return string(out)
}

func edge(from, to string, kind factmodel.DependencyKind) factmodel.DependencyEdge {
	return factmodel.DependencyEdge{
		From: factmodel.NewTypeRef(toInternal(from)),
		To:   factmodel.NewTypeRef(toInternal(to)),
		Kind: kind,
	}
}

func suffixRole(id string, priority int, suffixes ...string) config.RoleDef {
	return config.RoleDef{
		ID:       id,
		Priority: priority,
		Match:    config.Matcher{Kind: config.MatcherClassNameEndsWithAny, Suffixes: suffixes},
	}
}

func packageRole(id string, priority int, segment string) config.RoleDef {
	return config.RoleDef{
		ID:       id,
		Priority: priority,
		Match:    config.Matcher{Kind: config.MatcherPackageContainsSegment, Segment: segment},
	}
}

func baseCfg(roles map[string]config.RoleDef, ruleDefs []config.RuleDef, exceptions []config.Exception) *config.Config {
	return &config.Config{
		Version:    1,
		Project:    config.ProjectConfig{RootPackageMode: config.RootPackageAuto, UnknownRule: config.UnknownRuleWarn},
		Roles:      roles,
		Rules:      ruleDefs,
		Exceptions: exceptions,
	}
}

func evaluate(t *testing.T, idx *factmodel.FactIndex, cfg *config.Config) pipeline.Result {
	t.Helper()
	idx.Stabilize()
	registry := rules.NewRegistry()
	result, err := pipeline.Evaluate(context.Background(), idx, cfg, registry, nil, time.Now())
	require.NoError(t, err)
	return result
}

// Scenario 1: forbidden dependency service -> controller.
func TestScenario_ForbiddenRoleDependency(t *testing.T) {
	idx := &factmodel.FactIndex{
		Classes: []factmodel.ClassFact{
			class("com.pit.app.service.UserService"),
			class("com.pit.app.web.UserController"),
		},
		Edges: []factmodel.DependencyEdge{
			edge("com.pit.app.service.UserService", "com.pit.app.web.UserController", factmodel.KindMethodCall),
		},
	}

	cfg := baseCfg(
		map[string]config.RoleDef{
			"service":    packageRole("service", 1, "service"),
			"controller": packageRole("controller", 1, "web"),
		},
		[]config.RuleDef{{
			Type: "arch", Name: "forbiddenRoleDependencies", Enabled: true, Severity: config.SeverityError,
			Params: map[string]any{
				"forbidden": []any{
					map[string]any{"from": "service", "to": []any{"controller"}},
				},
			},
		}},
		nil,
	)

	result := evaluate(t, idx, cfg)
	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	assert.Equal(t, "arch.forbiddenRoleDependencies", f.RuleID)
	assert.Equal(t, "com.pit.app.service.UserService", f.ClassFqn)
	require.Len(t, f.Data, 1)
	assert.Equal(t, "toTypeFqn", f.Data[0].Key)
	assert.Equal(t, "com.pit.app.web.UserController", f.Data[0].Value)
}

// Scenario 2: role placement — repository outranks data via ClassNameEndsWithAny.
func TestScenario_RolePlacement(t *testing.T) {
	idx := &factmodel.FactIndex{
		Classes: []factmodel.ClassFact{
			class("com.pit.app.other.UserDao"),
		},
	}

	cfg := baseCfg(
		map[string]config.RoleDef{
			"repository": suffixRole("repository", 10, "Dao", "Repository"),
			"data":       packageRole("data", 1, "data"),
		},
		[]config.RuleDef{{
			Type: "packages", Name: "rolePlacement", Enabled: true, Severity: config.SeverityWarning,
			Roles: []string{"repository"},
			Params: map[string]any{
				"allowed": []any{`com\.pit\.app\.(dao|repository)(\..*)?`},
			},
		}},
		nil,
	)

	result := evaluate(t, idx, cfg)
	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	assert.Equal(t, "packages.rolePlacement.repository", f.RuleID)
	assert.Equal(t, "com.pit.app.other.UserDao", f.ClassFqn)
}

// Scenario 3: max methods by role.
func TestScenario_MaxMethodsByRole(t *testing.T) {
	svc := "com.pit.app.service.UserService"
	idx := &factmodel.FactIndex{
		Classes: []factmodel.ClassFact{class(svc)},
		Methods: []factmodel.MethodRef{
			{MemberRef: factmodel.MemberRef{Owner: factmodel.NewTypeRef(toInternal(svc)), Name: "compute"}},
			{MemberRef: factmodel.MemberRef{Owner: factmodel.NewTypeRef(toInternal(svc)), Name: "helper"}},
		},
	}

	cfg := baseCfg(
		map[string]config.RoleDef{"service": packageRole("service", 1, "service")},
		[]config.RuleDef{{
			Type: "metrics", Name: "maxMethodsByRole", Enabled: true, Severity: config.SeverityWarning,
			Roles:  []string{"service"},
			Params: map[string]any{"max": 1},
		}},
		nil,
	)

	result := evaluate(t, idx, cfg)
	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	assert.Equal(t, "metrics.maxMethodsByRole.service", f.RuleID)
	data := dataMap(f.Data)
	assert.Equal(t, "2", data["actual"])
	assert.Equal(t, "service", data["role"])
}

// Scenario 4: fan-in violation, five classes depend on one hub.
func TestScenario_MaxFanIn(t *testing.T) {
	classes := []factmodel.ClassFact{class("com.example.Hub")}
	var edges []factmodel.DependencyEdge
	for i := 0; i < 5; i++ {
		name := "com.example.Caller" + string(rune('A'+i))
		classes = append(classes, class(name))
		edges = append(edges, edge(name, "com.example.Hub", factmodel.KindMethodCall))
	}

	idx := &factmodel.FactIndex{Classes: classes, Edges: edges}

	cfg := baseCfg(
		nil,
		[]config.RuleDef{{
			Type: "metrics", Name: "maxFanIn", Enabled: true, Severity: config.SeverityWarning,
			Params: map[string]any{"max": 3, "granularity": "class"},
		}},
		nil,
	)

	result := evaluate(t, idx, cfg)
	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	assert.Equal(t, "metrics.maxFanIn", f.RuleID)
	data := dataMap(f.Data)
	assert.Equal(t, "1", data["violators"])
	assert.Equal(t, "com.example.Hub:5", data["examples"])
}

// Scenario 5: a two-class cycle.
func TestScenario_LayerCycle(t *testing.T) {
	idx := &factmodel.FactIndex{
		Classes: []factmodel.ClassFact{
			class("com.example.A"),
			class("com.example.B"),
		},
		Edges: []factmodel.DependencyEdge{
			edge("com.example.A", "com.example.B", factmodel.KindMethodCall),
			edge("com.example.B", "com.example.A", factmodel.KindMethodCall),
		},
	}

	cfg := baseCfg(
		nil,
		[]config.RuleDef{{
			Type: "arch", Name: "layerCycle", Enabled: true, Severity: config.SeverityError,
			Params: map[string]any{"granularity": "class"},
		}},
		nil,
	)

	result := evaluate(t, idx, cfg)
	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	assert.Equal(t, "arch.layerCycle", f.RuleID)
	data := dataMap(f.Data)
	assert.Equal(t, "2", data["cycleSize"])
}

// Scenario 6: scenario 1 plus an exception suppressing every service finding.
func TestScenario_Suppression(t *testing.T) {
	idx := &factmodel.FactIndex{
		Classes: []factmodel.ClassFact{
			class("com.pit.app.service.UserService"),
			class("com.pit.app.web.UserController"),
		},
		Edges: []factmodel.DependencyEdge{
			edge("com.pit.app.service.UserService", "com.pit.app.web.UserController", factmodel.KindMethodCall),
		},
	}

	cfg := baseCfg(
		map[string]config.RoleDef{
			"service":    packageRole("service", 1, "service"),
			"controller": packageRole("controller", 1, "web"),
		},
		[]config.RuleDef{{
			Type: "arch", Name: "forbiddenRoleDependencies", Enabled: true, Severity: config.SeverityError,
			Params: map[string]any{
				"forbidden": []any{
					map[string]any{"from": "service", "to": []any{"controller"}},
				},
			},
		}},
		[]config.Exception{{
			ID:       "svc-exempt",
			Reason:   "legacy",
			Match:    config.ExceptionMatch{ClassFqn: `com\.pit\.app\.service\..*`},
			Suppress: []string{"arch.forbiddenRoleDependencies"},
		}},
	)

	result := evaluate(t, idx, cfg)
	assert.Empty(t, result.Findings)

	// Suppression idempotence: applying Evaluate twice against the same
	// inputs produces the same (empty) finding set.
	result2 := evaluate(t, idx, cfg)
	assert.Equal(t, result.Findings, result2.Findings)
}

// Boundary: empty rule set with non-empty facts yields zero findings.
func TestBoundary_EmptyRules(t *testing.T) {
	idx := &factmodel.FactIndex{
		Classes: []factmodel.ClassFact{class("com.pit.app.service.UserService")},
	}
	cfg := baseCfg(nil, nil, nil)
	result := evaluate(t, idx, cfg)
	assert.Empty(t, result.Findings)
}

// Boundary: a disabled rule is skipped entirely.
func TestBoundary_DisabledRuleSkipped(t *testing.T) {
	idx := &factmodel.FactIndex{
		Classes: []factmodel.ClassFact{class("com.pit.app.service.BadNameDao")},
	}
	cfg := baseCfg(nil, []config.RuleDef{{
		Type: "naming", Name: "bannedSuffixes", Enabled: false, Severity: config.SeverityWarning,
		Params: map[string]any{"suffixes": []any{"Dao"}},
	}}, nil)
	result := evaluate(t, idx, cfg)
	assert.Empty(t, result.Findings)
}

// Boundary: metrics.maxFanIn with max:0 flags every node with any incoming edge.
func TestBoundary_MaxFanInZero(t *testing.T) {
	idx := &factmodel.FactIndex{
		Classes: []factmodel.ClassFact{class("com.example.A"), class("com.example.B")},
		Edges:   []factmodel.DependencyEdge{edge("com.example.A", "com.example.B", factmodel.KindMethodCall)},
	}
	cfg := baseCfg(nil, []config.RuleDef{{
		Type: "metrics", Name: "maxFanIn", Enabled: true, Severity: config.SeverityWarning,
		Params: map[string]any{"max": 0, "granularity": "class"},
	}}, nil)
	result := evaluate(t, idx, cfg)
	require.Len(t, result.Findings, 1)
	data := dataMap(result.Findings[0].Data)
	assert.Equal(t, "1", data["violators"])
}

// Scope monotonicity: adding an exclusion never increases the finding count
// for the same rule and config.
func TestProperty_ScopeMonotonicity(t *testing.T) {
	idx := &factmodel.FactIndex{
		Classes: []factmodel.ClassFact{
			class("com.pit.app.service.BadNameDao"),
			class("com.pit.app.other.BadNameDao"),
		},
	}
	wide := baseCfg(nil, []config.RuleDef{{
		Type: "naming", Name: "bannedSuffixes", Enabled: true, Severity: config.SeverityWarning,
		Params: map[string]any{"suffixes": []any{"Dao"}},
	}}, nil)
	narrow := baseCfg(nil, []config.RuleDef{{
		Type: "naming", Name: "bannedSuffixes", Enabled: true, Severity: config.SeverityWarning,
		Scope:  &config.RuleScope{ExcludePackages: []string{`com\.pit\.app\.other`}},
		Params: map[string]any{"suffixes": []any{"Dao"}},
	}}, nil)

	wideResult := evaluate(t, idx, wide)
	narrowResult := evaluate(t, idx, narrow)
	assert.LessOrEqual(t, len(narrowResult.Findings), len(wideResult.Findings))
}

func dataMap(entries []finding.DataEntry) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out
}
