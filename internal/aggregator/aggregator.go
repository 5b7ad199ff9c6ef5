// Package aggregator implements the analysis aggregator (C11): hotspots,
// scoring bands, and cycle summaries computed as pure functions over a
// FactIndex and finding list.
package aggregator

import (
	"sort"

	"github.com/aalsanie/shamash-sub001/internal/config"
	"github.com/aalsanie/shamash-sub001/internal/finding"
	"github.com/aalsanie/shamash-sub001/internal/graph"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
)

// Hotspot is one top-N entry ranked by a metric value.
type Hotspot struct {
	Node  string
	Value int
}

// Hotspots returns the top N nodes by fanIn (or fanOut) at the given
// granularity, ranked by (metric DESC, id ASC) — deterministic regardless
// of map iteration order.
func Hotspots(idx *factmodel.FactIndex, granularity graph.Granularity, includeExternal bool, byFanIn bool, top int) []Hotspot {
	g := graph.Build(idx, granularity, includeExternal)
	metric := g.FanOut
	if byFanIn {
		metric = g.FanIn
	}

	entries := make([]Hotspot, 0, len(g.Nodes()))
	for _, n := range g.Nodes() {
		entries = append(entries, Hotspot{Node: n, Value: metric(n)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].Node < entries[j].Node
	})
	if top > 0 && len(entries) > top {
		entries = entries[:top]
	}
	return entries
}

// CycleSummary describes one cyclic SCC for reporting.
type CycleSummary struct {
	Nodes                []string
	RepresentativeCycle  []string
}

// CycleSummaries returns every cyclic SCC at the given granularity.
func CycleSummaries(idx *factmodel.FactIndex, granularity graph.Granularity, includeExternal bool) []CycleSummary {
	g := graph.Build(idx, granularity, includeExternal)
	var out []CycleSummary
	for _, scc := range g.StronglyConnectedComponents() {
		if !scc.Cyclic {
			continue
		}
		out = append(out, CycleSummary{Nodes: scc.Nodes, RepresentativeCycle: scc.RepresentativeCycle})
	}
	return out
}

// ScoreBand buckets a scan's findings into a qualitative health band.
type ScoreBand string

const (
	ScoreBandHealthy  ScoreBand = "HEALTHY"
	ScoreBandWarning  ScoreBand = "WARNING"
	ScoreBandCritical ScoreBand = "CRITICAL"
)

// Score is a deterministic weighted tally of findings by severity, with the
// resulting band. Weights: ERROR=10, WARNING=3, INFO=1, HINT=0.
type Score struct {
	Value int
	Band  ScoreBand
	Counts map[config.Severity]int
}

func severityWeight(s config.Severity) int {
	switch s {
	case config.SeverityError:
		return 10
	case config.SeverityWarning:
		return 3
	case config.SeverityInfo:
		return 1
	default:
		return 0
	}
}

// ComputeScore tallies findings deterministically (iteration order never
// affects the total, since addition over ints is order-independent, but the
// per-severity counts are still collected in a stable map shape for callers
// that want to report them).
func ComputeScore(findings []finding.Finding) Score {
	counts := map[config.Severity]int{}
	total := 0
	for _, f := range findings {
		counts[f.Severity]++
		total += severityWeight(f.Severity)
	}

	band := ScoreBandHealthy
	switch {
	case counts[config.SeverityError] > 0 || total >= 50:
		band = ScoreBandCritical
	case total >= 10:
		band = ScoreBandWarning
	}

	return Score{Value: total, Band: band, Counts: counts}
}
