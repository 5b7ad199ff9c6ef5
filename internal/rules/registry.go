// Package rules implements the rule registry and executor (C9): it
// dispatches configured rules against a stabilized FactIndex, collecting and
// canonicalizing findings.
package rules

import (
	"context"
	"sort"

	"github.com/aalsanie/shamash-sub001/internal/config"
	"github.com/aalsanie/shamash-sub001/internal/finding"
	"github.com/aalsanie/shamash-sub001/internal/graph"
	"github.com/aalsanie/shamash-sub001/internal/scope"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
)

// ErrCancelled is returned by Execute when the supplied context is done
// before evaluation completes.
var ErrCancelled = &cancelledError{}

type cancelledError struct{}

func (e *cancelledError) Error() string { return "rule execution cancelled" }

// EvalContext is the read-only state handed to every rule's Evaluate call.
type EvalContext struct {
	Index  *factmodel.FactIndex
	Config *config.Config

	graphs map[string]*graph.Graph
}

// GraphFor returns (and memoizes) the dependency graph at the requested
// granularity/external-bucket setting for this scan.
func (c *EvalContext) GraphFor(granularity graph.Granularity, includeExternal bool) *graph.Graph {
	if c.graphs == nil {
		c.graphs = map[string]*graph.Graph{}
	}
	key := string(granularity)
	if includeExternal {
		key += "+ext"
	}
	if g, ok := c.graphs[key]; ok {
		return g
	}
	g := graph.Build(c.Index, granularity, includeExternal)
	c.graphs[key] = g
	return g
}

// RuleSpec describes a rule's expected parameters for the semantic
// validator (C4). Validate returns one message per violation found in
// params; an empty slice means params are acceptable.
type RuleSpec struct {
	ID       string
	Validate func(params map[string]any) []string
}

// Rule is one registered rule implementation.
type Rule interface {
	ID() string
	Spec() RuleSpec
	// Evaluate runs this rule once. role is the role this invocation was
	// expanded for, or "" if the rule is unscoped by role (wildcard).
	Evaluate(ctx *EvalContext, def config.RuleDef, inScope scope.Predicate, role string) ([]finding.Finding, error)
}

// Registry maps "type.name" to its Rule implementation.
type Registry struct {
	rules map[string]Rule
}

// NewRegistry builds the registry with the full built-in rule catalog.
func NewRegistry() *Registry {
	r := &Registry{rules: map[string]Rule{}}
	for _, rule := range builtinCatalog() {
		r.rules[rule.ID()] = rule
	}
	return r
}

// Lookup resolves a rule by its canonical "type.name" identity.
func (r *Registry) Lookup(canonicalID string) (Rule, bool) {
	rule, ok := r.rules[canonicalID]
	return rule, ok
}

// Specs returns every registered rule's param spec, keyed by canonical id.
func (r *Registry) Specs() map[string]RuleSpec {
	out := make(map[string]RuleSpec, len(r.rules))
	for id, rule := range r.rules {
		out[id] = rule.Spec()
	}
	return out
}

// specLookupAdapter satisfies config.RuleSpecLookup without internal/config
// needing to import internal/rules (which itself imports internal/config).
type specLookupAdapter struct{ r *Registry }

func (s specLookupAdapter) Lookup(id string) (func(params map[string]any) []string, bool) {
	rule, ok := s.r.rules[id]
	if !ok {
		return nil, false
	}
	return rule.Spec().Validate, true
}

// AsSpecLookup adapts this Registry to config.RuleSpecLookup for use by the
// C4 semantic validator.
func (r *Registry) AsSpecLookup() config.RuleSpecLookup {
	return specLookupAdapter{r: r}
}

// Execute runs every enabled RuleDef in cfg in (type, name, role?) order,
// returning the accumulated, sorted Finding list. ctx.Done() is checked
// between rule invocations (spec §5 cancellation contract).
func Execute(ctx context.Context, ec *EvalContext, registry *Registry) ([]finding.Finding, error) {
	defs := append([]config.RuleDef(nil), ec.Config.Rules...)
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Type != defs[j].Type {
			return defs[i].Type < defs[j].Type
		}
		return defs[i].Name < defs[j].Name
	})

	var all []finding.Finding
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		rule, ok := registry.Lookup(def.CanonicalID())
		if !ok {
			continue
		}
		scopePred, err := scope.Compile(def.Scope, def.Roles)
		if err != nil {
			return nil, err
		}

		roleInvocations := []string{""}
		if def.Roles != nil {
			roleInvocations = append([]string(nil), def.Roles...)
			sort.Strings(roleInvocations)
		}
		for _, role := range roleInvocations {
			select {
			case <-ctx.Done():
				return nil, ErrCancelled
			default:
			}
			fs, err := EvaluateWithRecover(rule, ec, def, scopePred, role)
			if err != nil {
				all = append(all, finding.Finding{
					RuleID:   "engine.ruleError",
					Message:  def.CanonicalID() + ": " + err.Error(),
					Severity: config.SeverityError,
				})
				continue
			}
			all = append(all, fs...)
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].SortKey() < all[j].SortKey() })
	return all, nil
}

// EvaluateWithRecover wraps a rule's Evaluate with panic recovery so one
// misbehaving rule never aborts the whole scan; it surfaces as the
// "engine.ruleError" system finding instead (spec §4.9).
func EvaluateWithRecover(rule Rule, ctx *EvalContext, def config.RuleDef, inScope scope.Predicate, role string) (fs []finding.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return rule.Evaluate(ctx, def, inScope, role)
}

type panicError struct{ value any }

func (e *panicError) Error() string {
	return "panic during rule evaluation"
}
