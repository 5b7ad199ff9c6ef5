package suppression_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalsanie/shamash-sub001/internal/config"
	"github.com/aalsanie/shamash-sub001/internal/finding"
	"github.com/aalsanie/shamash-sub001/internal/suppression"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
)

type fakeSource map[string][]string

func (f fakeSource) Lines(path string) ([]string, bool) {
	lines, ok := f[path]
	return lines, ok
}

func TestApply_SuppressesByClassFqn(t *testing.T) {
	findings := []finding.Finding{
		{RuleID: "arch.forbiddenRoleDependencies", ClassFqn: "com.pit.app.service.UserService"},
	}
	exceptions := []config.Exception{{
		ID: "exc1", Reason: "legacy",
		Match:    config.ExceptionMatch{ClassFqn: "com.pit.app.service.UserService"},
		Suppress: []string{"arch.forbiddenRoleDependencies"},
	}}
	out := suppression.Apply(findings, &factmodel.FactIndex{}, exceptions, time.Now(), nil)
	assert.Empty(t, out)
}

// Scenario 6: an exception's classFqn is a regex, not a literal string.
func TestApply_ClassFqnMatchFieldIsRegex(t *testing.T) {
	findings := []finding.Finding{
		{RuleID: "arch.forbiddenRoleDependencies", ClassFqn: "com.pit.app.service.UserService"},
	}
	exceptions := []config.Exception{{
		ID: "exc1", Reason: "legacy",
		Match:    config.ExceptionMatch{ClassFqn: `com\.pit\.app\.service\..*`},
		Suppress: []string{"arch.forbiddenRoleDependencies"},
	}}
	out := suppression.Apply(findings, &factmodel.FactIndex{}, exceptions, time.Now(), nil)
	assert.Empty(t, out)
}

func TestApply_ClassFqnRegexDoesNotMatchOtherPackages(t *testing.T) {
	findings := []finding.Finding{
		{RuleID: "arch.forbiddenRoleDependencies", ClassFqn: "com.pit.app.web.UserController"},
	}
	exceptions := []config.Exception{{
		ID: "exc1", Reason: "legacy",
		Match:    config.ExceptionMatch{ClassFqn: `com\.pit\.app\.service\..*`},
		Suppress: []string{"arch.forbiddenRoleDependencies"},
	}}
	out := suppression.Apply(findings, &factmodel.FactIndex{}, exceptions, time.Now(), nil)
	require.Len(t, out, 1)
}

func TestApply_InvalidMatchRegexNeverMatches(t *testing.T) {
	findings := []finding.Finding{{RuleID: "arch.layerCycle", ClassFqn: "com.example.A"}}
	exceptions := []config.Exception{{
		ID: "exc1", Reason: "legacy",
		Match:    config.ExceptionMatch{ClassFqn: "("},
		Suppress: []string{"arch.layerCycle"},
	}}
	out := suppression.Apply(findings, &factmodel.FactIndex{}, exceptions, time.Now(), nil)
	require.Len(t, out, 1, "an exception whose match regex fails to compile should never suppress")
}

func TestApply_WildcardMatchNeedsExplicitMatchField(t *testing.T) {
	findings := []finding.Finding{{RuleID: "arch.layerCycle", ClassFqn: "com.example.A"}}
	exceptions := []config.Exception{{
		ID: "exc1", Reason: "legacy",
		Suppress: []string{"*"}, // no Match fields set at all
	}}
	out := suppression.Apply(findings, &factmodel.FactIndex{}, exceptions, time.Now(), nil)
	require.Len(t, out, 1, "an exception with no match criteria should never match anything")
}

func TestApply_ExpiredExceptionProducesInfoDiagnosticAndDoesNotSuppress(t *testing.T) {
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	findings := []finding.Finding{{RuleID: "arch.layerCycle", ClassFqn: "com.example.A"}}
	exceptions := []config.Exception{{
		ID: "exc1", Reason: "legacy", ExpiresOn: &past,
		Match:    config.ExceptionMatch{ClassFqn: "com.example.A"},
		Suppress: []string{"arch.layerCycle"},
	}}
	out := suppression.Apply(findings, &factmodel.FactIndex{}, exceptions, time.Now(), nil)
	require.Len(t, out, 2)
	assert.Equal(t, "engine.expiredException", out[0].RuleID)
	assert.Equal(t, config.SeverityInfo, out[0].Severity)
	assert.Equal(t, "arch.layerCycle", out[1].RuleID)
}

func TestApply_RoleSuppressionReadsClassToRole(t *testing.T) {
	idx := &factmodel.FactIndex{ClassToRole: map[string]string{"com.example.A": "service"}}
	findings := []finding.Finding{{RuleID: "arch.layerCycle", ClassFqn: "com.example.A"}}
	exceptions := []config.Exception{{
		ID: "exc1", Reason: "legacy",
		Match:    config.ExceptionMatch{Role: "service"},
		Suppress: []string{"arch.layerCycle"},
	}}
	out := suppression.Apply(findings, idx, exceptions, time.Now(), nil)
	assert.Empty(t, out)
}

func TestApply_InlineIgnoreDirectiveSuppresses(t *testing.T) {
	findings := []finding.Finding{{
		RuleID:   "naming.bannedSuffixes",
		FilePath: "UserDao.java",
		Data:     []finding.DataEntry{{Key: "line", Value: "3"}},
	}}
	src := fakeSource{
		"UserDao.java": {
			"package com.example;",
			"// shamash:ignore naming.bannedSuffixes",
			"class UserDao {}",
		},
	}
	out := suppression.Apply(findings, &factmodel.FactIndex{}, nil, time.Now(), src)
	assert.Empty(t, out)
}

// Suppression idempotence: applying twice yields the same finding set.
func TestApply_Idempotent(t *testing.T) {
	findings := []finding.Finding{
		{RuleID: "arch.layerCycle", ClassFqn: "com.example.A"},
		{RuleID: "metrics.maxFanIn"},
	}
	exceptions := []config.Exception{{
		ID: "exc1", Reason: "legacy",
		Match:    config.ExceptionMatch{ClassFqn: "com.example.A"},
		Suppress: []string{"arch.layerCycle"},
	}}
	idx := &factmodel.FactIndex{}
	now := time.Now()

	once := suppression.Apply(findings, idx, exceptions, now, nil)
	twice := suppression.Apply(once, idx, exceptions, now, nil)
	assert.Equal(t, once, twice)
}

func TestApply_RulePrefixSuppressionCoversRoleExpandedIDs(t *testing.T) {
	findings := []finding.Finding{{RuleID: "metrics.maxMethodsByRole.service", ClassFqn: "com.example.A"}}
	exceptions := []config.Exception{{
		ID: "exc1", Reason: "legacy",
		Match:    config.ExceptionMatch{ClassFqn: "com.example.A"},
		Suppress: []string{"metrics.maxMethodsByRole"},
	}}
	out := suppression.Apply(findings, &factmodel.FactIndex{}, exceptions, time.Now(), nil)
	assert.Empty(t, out)
}
