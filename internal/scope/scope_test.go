package scope_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalsanie/shamash-sub001/internal/config"
	"github.com/aalsanie/shamash-sub001/internal/scope"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
)

func classIn(pkgFqn, path string) *factmodel.ClassFact {
	return &factmodel.ClassFact{
		Type:     factmodel.NewTypeRef(pkgFqn),
		Location: factmodel.SourceLocation{OriginPath: path},
	}
}

func TestCompile_NilScopeAndNilRolesMatchesEverything(t *testing.T) {
	pred, err := scope.Compile(nil, nil)
	require.NoError(t, err)
	assert.True(t, pred(classIn("com/example/Anything", "Anything.java"), "whatever"))
}

func TestCompile_IncludeRolesRestrictsToListed(t *testing.T) {
	pred, err := scope.Compile(&config.RuleScope{IncludeRoles: []string{"service"}}, nil)
	require.NoError(t, err)
	cf := classIn("com/example/A", "A.java")
	assert.True(t, pred(cf, "service"))
	assert.False(t, pred(cf, "controller"))
	assert.False(t, pred(cf, ""))
}

func TestCompile_ExcludeRolesVetoesMembers(t *testing.T) {
	pred, err := scope.Compile(&config.RuleScope{ExcludeRoles: []string{"controller"}}, nil)
	require.NoError(t, err)
	cf := classIn("com/example/A", "A.java")
	assert.False(t, pred(cf, "controller"))
	assert.True(t, pred(cf, "service"))
}

func TestCompile_ExplicitRoleAllowlistAppliesBeforeScope(t *testing.T) {
	pred, err := scope.Compile(nil, []string{"service", "repository"})
	require.NoError(t, err)
	cf := classIn("com/example/A", "A.java")
	assert.True(t, pred(cf, "service"))
	assert.False(t, pred(cf, "controller"))
}

func TestCompile_IncludePackagesAnchoredRegex(t *testing.T) {
	pred, err := scope.Compile(&config.RuleScope{IncludePackages: []string{"com\\.example\\.service"}}, nil)
	require.NoError(t, err)
	assert.True(t, pred(classIn("com/example/service/UserService", ""), ""))
	assert.False(t, pred(classIn("com/example/web/UserController", ""), ""))
}

func TestCompile_ExcludePackagesVetoesMatches(t *testing.T) {
	pred, err := scope.Compile(&config.RuleScope{ExcludePackages: []string{"com\\.example\\.generated"}}, nil)
	require.NoError(t, err)
	assert.False(t, pred(classIn("com/example/generated/Foo", ""), ""))
	assert.True(t, pred(classIn("com/example/service/Foo", ""), ""))
}

func TestCompile_IncludeGlobMatchesFilePath(t *testing.T) {
	pred, err := scope.Compile(&config.RuleScope{IncludeGlobs: []string{"src/main/**/*.java"}}, nil)
	require.NoError(t, err)
	assert.True(t, pred(classIn("com/example/A", "src/main/java/com/example/A.java"), ""))
	assert.False(t, pred(classIn("com/example/A", "src/test/java/com/example/A.java"), ""))
}

func TestCompile_ExcludeGlobVetoesFilePath(t *testing.T) {
	pred, err := scope.Compile(&config.RuleScope{ExcludeGlobs: []string{"**/generated/*.java"}}, nil)
	require.NoError(t, err)
	assert.False(t, pred(classIn("com/example/A", "src/main/generated/A.java"), ""))
	assert.True(t, pred(classIn("com/example/A", "src/main/java/A.java"), ""))
}

func TestCompile_InvalidIncludePackageRegexFails(t *testing.T) {
	_, err := scope.Compile(&config.RuleScope{IncludePackages: []string{"("}}, nil)
	assert.Error(t, err)
}

// Scope monotonicity: narrowing a scope (adding an exclude) never widens
// what's in scope relative to the unnarrowed predicate.
func TestCompile_NarrowingScopeNeverWidensMembership(t *testing.T) {
	wide, err := scope.Compile(&config.RuleScope{IncludeRoles: []string{"service", "repository"}}, nil)
	require.NoError(t, err)
	narrow, err := scope.Compile(&config.RuleScope{IncludeRoles: []string{"service", "repository"}, ExcludeRoles: []string{"repository"}}, nil)
	require.NoError(t, err)

	cf := classIn("com/example/A", "A.java")
	for _, role := range []string{"service", "repository", "controller", ""} {
		if narrow(cf, role) {
			assert.True(t, wide(cf, role), "narrow matched %q but wide did not", role)
		}
	}
}
