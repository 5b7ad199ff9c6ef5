package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalsanie/shamash-sub001/internal/config"
)

func TestBind_MinimalValidDocument(t *testing.T) {
	raw := map[string]any{
		"version": 1,
		"project": map[string]any{
			"rootPackage": map[string]any{"mode": "AUTO"},
		},
		"roles": map[string]any{
			"service": map[string]any{
				"priority": 5,
				"match":    map[string]any{"packageContainsSegment": "service"},
			},
		},
		"rules": []any{
			map[string]any{
				"type": "metrics",
				"name": "maxFanIn",
				"params": map[string]any{
					"max": 3,
				},
			},
		},
	}

	cfg, errs := config.Bind(raw)
	require.Empty(t, errs)
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, config.RootPackageAuto, cfg.Project.RootPackageMode)
	require.Contains(t, cfg.Roles, "service")
	assert.Equal(t, 5, cfg.Roles["service"].Priority)
	require.Len(t, cfg.Rules, 1)
	assert.True(t, cfg.Rules[0].Enabled)
	assert.Equal(t, config.SeverityWarning, cfg.Rules[0].Severity)
}

func TestBind_RootMustBeMap(t *testing.T) {
	cfg, errs := config.Bind([]any{"not", "a", "map"})
	assert.Nil(t, cfg)
	require.Len(t, errs, 1)
	assert.Equal(t, "", errs[0].Path)
}

func TestBind_RoleMatchRequired(t *testing.T) {
	raw := map[string]any{
		"version": 1,
		"roles": map[string]any{
			"service": map[string]any{"priority": 1},
		},
	}
	cfg, errs := config.Bind(raw)
	assert.Nil(t, cfg)
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if e.Path == "roles.service.match" {
			found = true
		}
	}
	assert.True(t, found, "expected a bind error at roles.service.match")
}

func TestBind_InvalidEnumRejected(t *testing.T) {
	raw := map[string]any{
		"version": 1,
		"project": map[string]any{
			"rootPackage": map[string]any{"mode": "NOT_A_MODE"},
		},
	}
	cfg, errs := config.Bind(raw)
	assert.Nil(t, cfg)
	require.NotEmpty(t, errs)
}

func TestBind_MatcherDiscriminatedMapShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
		kind config.MatcherKind
	}{
		{"anyOf", map[string]any{"anyOf": []any{map[string]any{"hasMainMethod": true}}}, config.MatcherAnyOf},
		{"allOf", map[string]any{"allOf": []any{map[string]any{"hasMainMethod": true}}}, config.MatcherAllOf},
		{"not", map[string]any{"not": map[string]any{"hasMainMethod": true}}, config.MatcherNot},
		{"annotation", map[string]any{"annotation": "javax.inject.Singleton"}, config.MatcherAnnotation},
		{"annotationPrefix", map[string]any{"annotationPrefix": "javax."}, config.MatcherAnnotationPrefix},
		{"packageRegex", map[string]any{"packageRegex": "com\\.example\\..*"}, config.MatcherPackageRegex},
		{"packageContainsSegment", map[string]any{"packageContainsSegment": "service"}, config.MatcherPackageContainsSegment},
		{"classNameRegex", map[string]any{"classNameRegex": ".*Service"}, config.MatcherClassNameRegex},
		{"classNameEndsWith", map[string]any{"classNameEndsWith": "Service"}, config.MatcherClassNameEndsWith},
		{"classNameEndsWithAny", map[string]any{"classNameEndsWithAny": []any{"Dao", "Repository"}}, config.MatcherClassNameEndsWithAny},
		{"hasMainMethod", map[string]any{"hasMainMethod": true}, config.MatcherHasMainMethod},
		{"implements", map[string]any{"implements": "java.io.Serializable"}, config.MatcherImplements},
		{"extends", map[string]any{"extends": "java.lang.Exception"}, config.MatcherExtends},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := map[string]any{
				"version": 1,
				"roles": map[string]any{
					"r": map[string]any{"match": tc.raw},
				},
			}
			cfg, errs := config.Bind(raw)
			require.Empty(t, errs)
			require.NotNil(t, cfg)
			assert.Equal(t, tc.kind, cfg.Roles["r"].Match.Kind)
		})
	}
}

func TestBind_ExceptionExpiresOnParsed(t *testing.T) {
	raw := map[string]any{
		"version": 1,
		"exceptions": []any{
			map[string]any{
				"id":        "exc1",
				"reason":    "legacy",
				"expiresOn": "2026-01-01",
				"suppress":  []any{"arch.layerCycle"},
			},
		},
	}
	cfg, errs := config.Bind(raw)
	require.Empty(t, errs)
	require.Len(t, cfg.Exceptions, 1)
	require.NotNil(t, cfg.Exceptions[0].ExpiresOn)
	assert.Equal(t, 2026, cfg.Exceptions[0].ExpiresOn.Year())
}

func TestBind_ExceptionExpiresOnMalformedRejected(t *testing.T) {
	raw := map[string]any{
		"version": 1,
		"exceptions": []any{
			map[string]any{"id": "exc1", "reason": "x", "expiresOn": "not-a-date"},
		},
	}
	cfg, errs := config.Bind(raw)
	assert.Nil(t, cfg)
	require.NotEmpty(t, errs)
}

func TestBind_RuleParamsDefaultToEmptyMap(t *testing.T) {
	raw := map[string]any{
		"version": 1,
		"rules": []any{
			map[string]any{"type": "arch", "name": "layerCycle"},
		},
	}
	cfg, errs := config.Bind(raw)
	require.Empty(t, errs)
	require.Len(t, cfg.Rules, 1)
	assert.NotNil(t, cfg.Rules[0].Params)
	assert.Empty(t, cfg.Rules[0].Params)
}
