// Package matcher compiles the config.Matcher DSL into evaluator closures
// (C5). Compilation happens once per scan; evaluation is pure and read-only.
package matcher

import (
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aalsanie/shamash-sub001/internal/config"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
)

// Predicate evaluates a compiled matcher against one class.
type Predicate func(cf *factmodel.ClassFact) bool

// Compiler owns the transitive Implements/Extends memoization for one
// scan. It must be discarded at scan end (spec
// §5's "no process-wide state").
type Compiler struct {
	index *factmodel.FactIndex

	implCache *lru.Cache[string, bool]
	extCache  *lru.Cache[string, bool]
}

// NewCompiler builds a Compiler bound to a stabilized FactIndex.
func NewCompiler(index *factmodel.FactIndex) (*Compiler, error) {
	implCache, err := lru.New[string, bool](4096)
	if err != nil {
		return nil, err
	}
	extCache, err := lru.New[string, bool](4096)
	if err != nil {
		return nil, err
	}
	return &Compiler{index: index, implCache: implCache, extCache: extCache}, nil
}

// Compile turns a Matcher tree into a Predicate, failing if any regex
// sub-node doesn't compile (spec: "a failure in compilation is a validation
// error, never a runtime rule error" — C4 compile-checks the same regexes in
// internal/config, and the role classifier calls Compile during evaluation).
func (c *Compiler) Compile(m config.Matcher) (Predicate, error) {
	switch m.Kind {
	case config.MatcherAnyOf:
		preds, err := c.compileAll(m.Children)
		if err != nil {
			return nil, err
		}
		return func(cf *factmodel.ClassFact) bool {
			for _, p := range preds {
				if p(cf) {
					return true
				}
			}
			return false
		}, nil

	case config.MatcherAllOf:
		preds, err := c.compileAll(m.Children)
		if err != nil {
			return nil, err
		}
		return func(cf *factmodel.ClassFact) bool {
			for _, p := range preds {
				if !p(cf) {
					return false
				}
			}
			return true
		}, nil

	case config.MatcherNot:
		if m.Inner == nil {
			return nil, fmt.Errorf("NOT matcher missing inner matcher")
		}
		inner, err := c.Compile(*m.Inner)
		if err != nil {
			return nil, err
		}
		return func(cf *factmodel.ClassFact) bool { return !inner(cf) }, nil

	case config.MatcherAnnotation:
		fqn := m.Fqn
		return func(cf *factmodel.ClassFact) bool {
			for _, a := range cf.AnnotationsFqns {
				if a == fqn {
					return true
				}
			}
			return false
		}, nil

	case config.MatcherAnnotationPrefix:
		prefix := m.Prefix
		return func(cf *factmodel.ClassFact) bool {
			for _, a := range cf.AnnotationsFqns {
				if strings.HasPrefix(a, prefix) {
					return true
				}
			}
			return false
		}, nil

	case config.MatcherPackageRegex:
		rx, err := regexp.Compile("^(?:" + m.Regex + ")$")
		if err != nil {
			return nil, fmt.Errorf("PackageRegex %q: %w", m.Regex, err)
		}
		return func(cf *factmodel.ClassFact) bool { return rx.MatchString(packageOf(cf)) }, nil

	case config.MatcherPackageContainsSegment:
		seg := m.Segment
		return func(cf *factmodel.ClassFact) bool {
			for _, s := range strings.Split(packageOf(cf), ".") {
				if s == seg {
					return true
				}
			}
			return false
		}, nil

	case config.MatcherClassNameRegex:
		rx, err := regexp.Compile("^(?:" + m.Regex + ")$")
		if err != nil {
			return nil, fmt.Errorf("ClassNameRegex %q: %w", m.Regex, err)
		}
		return func(cf *factmodel.ClassFact) bool { return rx.MatchString(cf.Type.SimpleName()) }, nil

	case config.MatcherClassNameEndsWith:
		suffix := m.Suffix
		return func(cf *factmodel.ClassFact) bool { return strings.HasSuffix(cf.Type.SimpleName(), suffix) }, nil

	case config.MatcherClassNameEndsWithAny:
		if len(m.Suffixes) == 0 {
			return nil, fmt.Errorf("ClassNameEndsWithAny requires a non-empty suffix list")
		}
		suffixes := append([]string(nil), m.Suffixes...)
		return func(cf *factmodel.ClassFact) bool {
			name := cf.Type.SimpleName()
			for _, s := range suffixes {
				if strings.HasSuffix(name, s) {
					return true
				}
			}
			return false
		}, nil

	case config.MatcherHasMainMethod:
		want := m.Bool
		return func(cf *factmodel.ClassFact) bool { return cf.HasMainMethod == want }, nil

	case config.MatcherImplements:
		fqn := m.Fqn
		return func(cf *factmodel.ClassFact) bool { return c.implementsTransitively(cf, fqn) }, nil

	case config.MatcherExtends:
		fqn := m.Fqn
		return func(cf *factmodel.ClassFact) bool { return c.extendsTransitively(cf, fqn) }, nil

	default:
		return nil, fmt.Errorf("unknown matcher kind %q", m.Kind)
	}
}

func (c *Compiler) compileAll(ms []config.Matcher) ([]Predicate, error) {
	out := make([]Predicate, 0, len(ms))
	for i, m := range ms {
		p, err := c.Compile(m)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func packageOf(cf *factmodel.ClassFact) string {
	return cf.Type.PackageName
}

// implementsTransitively BFS-walks the interface set and superclass chain;
// unknown supers are treated as having no further interfaces.
func (c *Compiler) implementsTransitively(cf *factmodel.ClassFact, fqn string) bool {
	key := cf.Type.FQName + "->" + fqn
	if v, ok := c.implCache.Get(key); ok {
		return v
	}
	result := c.bfsImplements(cf, fqn, map[string]bool{})
	c.implCache.Add(key, result)
	return result
}

func (c *Compiler) bfsImplements(cf *factmodel.ClassFact, fqn string, visited map[string]bool) bool {
	if visited[cf.Type.InternalName] {
		return false
	}
	visited[cf.Type.InternalName] = true

	for _, iface := range cf.Interfaces {
		if iface.FQName == fqn {
			return true
		}
		if ifaceFact, ok := c.index.ClassByFQName(iface.FQName); ok {
			if c.bfsImplements(ifaceFact, fqn, visited) {
				return true
			}
		}
	}
	if cf.SuperType != nil {
		if superFact, ok := c.index.ClassByFQName(cf.SuperType.FQName); ok {
			if c.bfsImplements(superFact, fqn, visited) {
				return true
			}
		}
	}
	return false
}

func (c *Compiler) extendsTransitively(cf *factmodel.ClassFact, fqn string) bool {
	key := cf.Type.FQName + "->" + fqn
	if v, ok := c.extCache.Get(key); ok {
		return v
	}
	cur := cf
	seen := map[string]bool{}
	result := false
	for cur.SuperType != nil {
		if seen[cur.Type.InternalName] {
			break
		}
		seen[cur.Type.InternalName] = true
		if cur.SuperType.FQName == fqn {
			result = true
			break
		}
		next, ok := c.index.ClassByFQName(cur.SuperType.FQName)
		if !ok {
			break
		}
		cur = next
	}
	c.extCache.Add(key, result)
	return result
}
