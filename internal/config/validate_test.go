package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalsanie/shamash-sub001/internal/config"
)

type fakeLookup map[string]func(map[string]any) []string

func (f fakeLookup) Lookup(id string) (func(map[string]any) []string, bool) {
	v, ok := f[id]
	return v, ok
}

func TestValidate_WrongVersionAbortsImmediately(t *testing.T) {
	cfg := &config.Config{Version: 2}
	diags := config.Validate(cfg, nil)
	require.Len(t, diags, 1)
	assert.Equal(t, "version", diags[0].Path)
	assert.True(t, config.HasErrors(diags))
}

func TestValidate_UnknownRuleWithNilRegistry(t *testing.T) {
	cfg := &config.Config{
		Version: 1,
		Project: config.ProjectConfig{UnknownRule: config.UnknownRuleError},
		Rules:   []config.RuleDef{{Type: "metrics", Name: "maxFanIn", Enabled: true, Params: map[string]any{}}},
	}
	diags := config.Validate(cfg, nil)
	require.NotEmpty(t, diags)
	found := false
	for _, d := range diags {
		if d.Path == "project.validation.unknownRule" {
			found = true
			assert.Equal(t, config.SeverityError, d.Severity)
		}
	}
	assert.True(t, found)
}

func TestValidate_UnknownRuleIgnorePolicyEmitsNothing(t *testing.T) {
	cfg := &config.Config{
		Version: 1,
		Project: config.ProjectConfig{UnknownRule: config.UnknownRuleIgnore},
		Rules:   []config.RuleDef{{Type: "metrics", Name: "doesNotExist", Enabled: true, Params: map[string]any{}}},
	}
	registry := fakeLookup{}
	diags := config.Validate(cfg, registry)
	assert.False(t, config.HasErrors(diags))
}

func TestValidate_KnownRuleParamErrorsSurfaced(t *testing.T) {
	cfg := &config.Config{
		Version: 1,
		Rules: []config.RuleDef{{
			Type: "metrics", Name: "maxFanIn", Enabled: true, Params: map[string]any{},
		}},
	}
	registry := fakeLookup{
		"metrics.maxFanIn": func(params map[string]any) []string {
			if _, ok := params["max"]; !ok {
				return []string{"max is required"}
			}
			return nil
		},
	}
	diags := config.Validate(cfg, registry)
	require.True(t, config.HasErrors(diags))
}

func TestValidate_UnknownRoleReferenceRejected(t *testing.T) {
	cfg := &config.Config{
		Version: 1,
		Rules: []config.RuleDef{{
			Type: "metrics", Name: "maxFanIn", Roles: []string{"ghost"}, Params: map[string]any{"max": 1},
		}},
	}
	registry := fakeLookup{"metrics.maxFanIn": func(map[string]any) []string { return nil }}
	diags := config.Validate(cfg, registry)
	require.True(t, config.HasErrors(diags))
}

func TestValidate_MatcherRegexMustCompile(t *testing.T) {
	cfg := &config.Config{
		Version: 1,
		Roles: map[string]config.RoleDef{
			"bad": {ID: "bad", Match: config.Matcher{Kind: config.MatcherClassNameRegex, Regex: "("}},
		},
	}
	diags := config.Validate(cfg, nil)
	require.True(t, config.HasErrors(diags))
}

func TestValidate_ExceptionRequiresMatchField(t *testing.T) {
	cfg := &config.Config{
		Version: 1,
		Exceptions: []config.Exception{{
			ID: "exc1", Reason: "legacy", Suppress: []string{"*"},
		}},
	}
	diags := config.Validate(cfg, nil)
	require.True(t, config.HasErrors(diags))
	found := false
	for _, d := range diags {
		if d.Path == "exceptions[0].match" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidate_ExceptionWildcardSuppressNeverFlaggedUnknown(t *testing.T) {
	cfg := &config.Config{
		Version: 1,
		Exceptions: []config.Exception{{
			ID: "exc1", Reason: "legacy", Suppress: []string{"*", "all"},
			Match: config.ExceptionMatch{ClassFqn: "com.example.Foo"},
		}},
	}
	registry := fakeLookup{}
	diags := config.Validate(cfg, registry)
	assert.False(t, config.HasErrors(diags))
}

func TestValidate_DisabledRuleStillTypeCheckedButNotDeeper(t *testing.T) {
	cfg := &config.Config{
		Version: 1,
		Rules:   []config.RuleDef{{Type: "", Name: "", Enabled: false}},
	}
	diags := config.Validate(cfg, fakeLookup{})
	require.True(t, config.HasErrors(diags))
}

func TestValidate_ExceptionMatchRegexMustCompile(t *testing.T) {
	cfg := &config.Config{
		Version: 1,
		Exceptions: []config.Exception{{
			ID: "exc1", Reason: "legacy", Suppress: []string{"*"},
			Match: config.ExceptionMatch{ClassFqn: "com.pit.app.service.("},
		}},
	}
	diags := config.Validate(cfg, nil)
	require.True(t, config.HasErrors(diags))
	found := false
	for _, d := range diags {
		if d.Path == "exceptions[0].match.classFqn" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidate_DisabledRuleSkipsRegistryAndParamValidation(t *testing.T) {
	cfg := &config.Config{
		Version: 1,
		Rules: []config.RuleDef{{
			Type: "metrics", Name: "doesNotExist", Enabled: false, Params: map[string]any{},
		}},
	}
	registry := fakeLookup{}
	diags := config.Validate(cfg, registry)
	assert.False(t, config.HasErrors(diags))
}
