package rules

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/expr-lang/expr"

	"github.com/aalsanie/shamash-sub001/internal/config"
	"github.com/aalsanie/shamash-sub001/internal/finding"
	"github.com/aalsanie/shamash-sub001/internal/scope"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
)

// customExpressionRule is the escape hatch for checks the built-in catalog
// doesn't cover: an expr-lang boolean expression evaluated per in-scope
// class, with an optional text/template message.
type customExpressionRule struct{}

func (customExpressionRule) ID() string { return "metrics.customExpression" }

func (customExpressionRule) Spec() RuleSpec {
	return RuleSpec{ID: "metrics.customExpression", Validate: func(params map[string]any) []string {
		var errs []string
		exprSrc := paramString(params, "expression", "")
		if exprSrc == "" {
			errs = append(errs, "expression is required")
			return errs
		}
		if _, err := expr.Compile(exprSrc, expr.AsBool()); err != nil {
			errs = append(errs, fmt.Sprintf("expression: %v", err))
		}
		if msg := paramString(params, "message", ""); msg != "" {
			if _, err := template.New("customExpressionMessage").Parse(msg); err != nil {
				errs = append(errs, fmt.Sprintf("message template: %v", err))
			}
		}
		return errs
	}}
}

func (customExpressionRule) Evaluate(ec *EvalContext, def config.RuleDef, inScope scope.Predicate, role string) ([]finding.Finding, error) {
	exprSrc := paramString(def.Params, "expression", "")
	program, err := expr.Compile(exprSrc, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling expression: %w", err)
	}

	messageSrc := paramString(def.Params, "message", "class {{.classFqn}} failed custom rule")
	tmpl, err := template.New("customExpressionMessage").Parse(messageSrc)
	if err != nil {
		return nil, fmt.Errorf("parsing message template: %w", err)
	}

	methodCounts := map[string]int{}
	fieldCounts := map[string]int{}
	for _, m := range ec.Index.Methods {
		if m.Name != "<init>" && m.Name != "<clinit>" {
			methodCounts[m.Owner.FQName]++
		}
	}
	for _, f := range ec.Index.Fields {
		fieldCounts[f.Owner.FQName]++
	}

	var out []finding.Finding
	for _, cf := range ec.Index.Classes {
		classRole := ec.Index.ClassToRole[cf.Type.FQName]
		if !inScope(&cf, classRole) {
			continue
		}
		env := buildClassEnv(cf, classRole, methodCounts[cf.Type.FQName], fieldCounts[cf.Type.FQName])

		result, err := expr.Run(program, env)
		if err != nil {
			return nil, fmt.Errorf("running expression for %s: %w", cf.Type.FQName, err)
		}
		matched, ok := result.(bool)
		if !ok || !matched {
			continue
		}

		var msg bytes.Buffer
		if err := tmpl.Execute(&msg, env); err != nil {
			return nil, fmt.Errorf("rendering message for %s: %w", cf.Type.FQName, err)
		}

		out = append(out, finding.Finding{
			RuleID:   def.ExpandedID(role),
			Message:  msg.String(),
			FilePath: cf.Location.FilePath(),
			Severity: def.Severity,
			ClassFqn: cf.Type.FQName,
		})
	}
	return out, nil
}

func buildClassEnv(cf factmodel.ClassFact, role string, methodCount, fieldCount int) map[string]any {
	return map[string]any{
		"classFqn":      cf.Type.FQName,
		"simpleName":    cf.Type.SimpleName(),
		"packageName":   cf.Type.PackageName,
		"role":          role,
		"hasMainMethod": cf.HasMainMethod,
		"methodCount":   methodCount,
		"fieldCount":    fieldCount,
		"annotations":   cf.AnnotationsFqns,
		"isAbstract":    cf.Access&0x0400 != 0,
		"isInterface":   cf.Access&0x0200 != 0,
		"isFinal":       cf.Access&0x0010 != 0,
	}
}
