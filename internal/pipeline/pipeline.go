// Package pipeline wires C1 through C11 into one end-to-end scan: parallel
// bytecode extraction, fact stabilization, config load/bind/validate, role
// classification, rule evaluation, suppression, and aggregation.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aalsanie/shamash-sub001/internal/aggregator"
	"github.com/aalsanie/shamash-sub001/internal/config"
	"github.com/aalsanie/shamash-sub001/internal/extractor"
	"github.com/aalsanie/shamash-sub001/internal/finding"
	"github.com/aalsanie/shamash-sub001/internal/matcher"
	"github.com/aalsanie/shamash-sub001/internal/roles"
	"github.com/aalsanie/shamash-sub001/internal/rules"
	"github.com/aalsanie/shamash-sub001/internal/suppression"
	"github.com/aalsanie/shamash-sub001/pkg/configsource"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
	"github.com/aalsanie/shamash-sub001/pkg/schema"
	"github.com/aalsanie/shamash-sub001/pkg/shamashlog"
)

// NumWorkers bounds the C1 extraction worker pool. A package variable
// (mirroring the teacher's Keys.NumWorkers) rather than a hardcoded constant,
// so a caller embedding this pipeline in a long-lived service can tune it.
var NumWorkers = 8

// Result is the outcome of one full scan.
type Result struct {
	Index       *factmodel.FactIndex
	Findings    []finding.Finding
	Score       aggregator.Score
	Diagnostics []config.Diagnostic
}

// ErrConfigRejected is returned when C4 validation produces at least one
// ERROR-severity diagnostic; Diagnostics on the returned Result explain why.
var ErrConfigRejected = fmt.Errorf("configuration rejected by validation")

// LoadConfig runs the RawConfig -> C3 -> C4 leg of the pipeline: schema
// check, shape binding, then semantic validation against registry. raw is an
// already-decoded Map/List/Scalar tree (see pkg/configsource, which turns
// config text into this shape) — the core pipeline never parses text itself.
// It returns the bound Config with a nil error when diagnostics contain only
// warnings or infos; any ERROR diagnostic yields ErrConfigRejected.
func LoadConfig(raw any, registry *rules.Registry) (*config.Config, []config.Diagnostic, error) {
	if err := schema.Validate(schema.ASMConfig, raw); err != nil {
		return nil, nil, fmt.Errorf("schema validation: %w", err)
	}

	cfg, bindErrs := config.Bind(raw)
	if len(bindErrs) > 0 {
		diags := make([]config.Diagnostic, 0, len(bindErrs))
		for _, e := range bindErrs {
			diags = append(diags, config.Diagnostic{Path: e.Path, Severity: config.SeverityError, Message: e.Message})
		}
		return nil, diags, ErrConfigRejected
	}

	var lookup config.RuleSpecLookup
	if registry != nil {
		lookup = registry.AsSpecLookup()
	}
	diags := config.Validate(cfg, lookup)
	if config.HasErrors(diags) {
		return cfg, diags, ErrConfigRejected
	}
	return cfg, diags, nil
}

// Extract runs C1 across every unit with a bounded worker pool, then merges
// and stabilizes (C2). Units are processed out of order but the merged
// index is sorted, so the result is independent of scheduling order.
func Extract(ctx context.Context, units []factmodel.BytecodeUnit) *factmodel.FactIndex {
	type job struct {
		unit factmodel.BytecodeUnit
	}

	work := make(chan job, NumWorkers)
	results := make(chan *factmodel.FactIndex, len(units))

	var wg sync.WaitGroup
	workers := NumWorkers
	if workers > len(units) && len(units) > 0 {
		workers = len(units)
	}
	if workers < 1 {
		workers = 1
	}

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := range work {
				select {
				case <-ctx.Done():
					return
				default:
				}
				results <- extractor.ExtractUnit(j.unit)
			}
		}()
	}

	go func() {
		for _, u := range units {
			work <- job{unit: u}
		}
		close(work)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	merged := &factmodel.FactIndex{}
	for idx := range results {
		merged.Merge(idx)
	}
	merged.Stabilize()
	return merged
}

// Evaluate runs C6 through C11 against a stabilized index and a validated
// config, producing the final, suppressed, scored finding set.
func Evaluate(ctx context.Context, idx *factmodel.FactIndex, cfg *config.Config, registry *rules.Registry, src suppression.SourceProvider, now time.Time) (Result, error) {
	compiler, err := matcher.NewCompiler(idx)
	if err != nil {
		return Result{}, fmt.Errorf("building matcher compiler: %w", err)
	}

	if err := roles.Classify(idx, cfg.Roles, compiler); err != nil {
		return Result{}, fmt.Errorf("classifying roles: %w", err)
	}

	ec := &rules.EvalContext{Index: idx, Config: cfg}
	findings, err := rules.Execute(ctx, ec, registry)
	if err != nil {
		return Result{}, fmt.Errorf("evaluating rules: %w", err)
	}

	findings = suppression.Apply(findings, idx, cfg.Exceptions, now, src)
	score := aggregator.ComputeScore(findings)

	return Result{Index: idx, Findings: findings, Score: score}, nil
}

// Run is the full end-to-end scan: decode yamlBytes, C1 extraction over
// units, config load/validate, then C6 through C11. yamlBytes is decoded via
// pkg/configsource at this single entry point so callers can keep handing
// this function raw config text.
func Run(ctx context.Context, units []factmodel.BytecodeUnit, yamlBytes []byte, src suppression.SourceProvider, now time.Time) (Result, error) {
	registry := rules.NewRegistry()

	raw, err := configsource.LoadYAML(yamlBytes)
	if err != nil {
		return Result{}, fmt.Errorf("parsing yaml: %w", err)
	}

	cfg, diags, err := LoadConfig(raw, registry)
	if err != nil {
		return Result{Diagnostics: diags}, err
	}

	shamashlog.Infof("extracting facts from %d bytecode units", len(units))
	idx := Extract(ctx, units)
	shamashlog.Infof("extracted %d classes, %d edges, %d errors", len(idx.Classes), len(idx.Edges), len(idx.Errors))

	result, err := Evaluate(ctx, idx, cfg, registry, src, now)
	result.Diagnostics = diags
	if err != nil {
		return result, err
	}

	shamashlog.Infof("scan complete: %d findings, score=%d (%s)", len(result.Findings), result.Score.Value, result.Score.Band)
	return result, nil
}
