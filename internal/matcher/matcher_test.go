package matcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalsanie/shamash-sub001/internal/config"
	"github.com/aalsanie/shamash-sub001/internal/matcher"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
)

func newIndex(classes ...factmodel.ClassFact) *factmodel.FactIndex {
	idx := &factmodel.FactIndex{Classes: classes}
	idx.Stabilize()
	return idx
}

func TestCompile_PackageContainsSegment(t *testing.T) {
	cf := factmodel.ClassFact{Type: factmodel.NewTypeRef("com/pit/app/service/UserService")}
	idx := newIndex(cf)
	c, err := matcher.NewCompiler(idx)
	require.NoError(t, err)

	pred, err := c.Compile(config.Matcher{Kind: config.MatcherPackageContainsSegment, Segment: "service"})
	require.NoError(t, err)
	assert.True(t, pred(&cf))

	pred2, err := c.Compile(config.Matcher{Kind: config.MatcherPackageContainsSegment, Segment: "web"})
	require.NoError(t, err)
	assert.False(t, pred2(&cf))
}

func TestCompile_ClassNameEndsWithAnyRequiresNonEmptyList(t *testing.T) {
	idx := newIndex()
	c, err := matcher.NewCompiler(idx)
	require.NoError(t, err)

	_, err = c.Compile(config.Matcher{Kind: config.MatcherClassNameEndsWithAny})
	assert.Error(t, err)
}

func TestCompile_AnyOfAllOfNot(t *testing.T) {
	cf := factmodel.ClassFact{Type: factmodel.NewTypeRef("com/example/UserDao"), HasMainMethod: true}
	idx := newIndex(cf)
	c, err := matcher.NewCompiler(idx)
	require.NoError(t, err)

	anyOf, err := c.Compile(config.Matcher{Kind: config.MatcherAnyOf, Children: []config.Matcher{
		{Kind: config.MatcherClassNameEndsWith, Suffix: "Repository"},
		{Kind: config.MatcherClassNameEndsWith, Suffix: "Dao"},
	}})
	require.NoError(t, err)
	assert.True(t, anyOf(&cf))

	allOf, err := c.Compile(config.Matcher{Kind: config.MatcherAllOf, Children: []config.Matcher{
		{Kind: config.MatcherClassNameEndsWith, Suffix: "Dao"},
		{Kind: config.MatcherHasMainMethod, Bool: false},
	}})
	require.NoError(t, err)
	assert.False(t, allOf(&cf))

	not, err := c.Compile(config.Matcher{Kind: config.MatcherNot, Inner: &config.Matcher{
		Kind: config.MatcherHasMainMethod, Bool: false,
	}})
	require.NoError(t, err)
	assert.True(t, not(&cf))
}

func TestCompile_ImplementsTransitively(t *testing.T) {
	serializable := factmodel.ClassFact{Type: factmodel.NewTypeRef("java/io/Serializable")}
	base := factmodel.ClassFact{
		Type:       factmodel.NewTypeRef("com/example/Base"),
		Interfaces: []factmodel.TypeRef{factmodel.NewTypeRef("java/io/Serializable")},
	}
	superType := base.Type
	child := factmodel.ClassFact{
		Type:      factmodel.NewTypeRef("com/example/Child"),
		SuperType: &superType,
	}

	idx := newIndex(serializable, base, child)
	c, err := matcher.NewCompiler(idx)
	require.NoError(t, err)

	pred, err := c.Compile(config.Matcher{Kind: config.MatcherImplements, Fqn: "java.io.Serializable"})
	require.NoError(t, err)
	assert.True(t, pred(&child))
	assert.True(t, pred(&base))
	assert.False(t, pred(&serializable))
}

func TestCompile_ExtendsTransitively(t *testing.T) {
	grandparent := factmodel.ClassFact{Type: factmodel.NewTypeRef("com/example/Grandparent")}
	gp := grandparent.Type
	parent := factmodel.ClassFact{Type: factmodel.NewTypeRef("com/example/Parent"), SuperType: &gp}
	pt := parent.Type
	child := factmodel.ClassFact{Type: factmodel.NewTypeRef("com/example/Child"), SuperType: &pt}

	idx := newIndex(grandparent, parent, child)
	c, err := matcher.NewCompiler(idx)
	require.NoError(t, err)

	pred, err := c.Compile(config.Matcher{Kind: config.MatcherExtends, Fqn: "com.example.Grandparent"})
	require.NoError(t, err)
	assert.True(t, pred(&child))
	assert.False(t, pred(&grandparent))
}

func TestCompile_InvalidRegexFails(t *testing.T) {
	idx := newIndex()
	c, err := matcher.NewCompiler(idx)
	require.NoError(t, err)
	_, err = c.Compile(config.Matcher{Kind: config.MatcherPackageRegex, Regex: "("})
	assert.Error(t, err)
}

func TestCompile_UnknownKindFails(t *testing.T) {
	idx := newIndex()
	c, err := matcher.NewCompiler(idx)
	require.NoError(t, err)
	_, err = c.Compile(config.Matcher{Kind: "BOGUS"})
	assert.Error(t, err)
}
