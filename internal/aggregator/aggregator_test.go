package aggregator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalsanie/shamash-sub001/internal/aggregator"
	"github.com/aalsanie/shamash-sub001/internal/config"
	"github.com/aalsanie/shamash-sub001/internal/finding"
	"github.com/aalsanie/shamash-sub001/internal/graph"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
)

func buildIndex(edges ...factmodel.DependencyEdge) *factmodel.FactIndex {
	classSet := map[string]factmodel.ClassFact{}
	for _, e := range edges {
		classSet[e.From.FQName] = factmodel.ClassFact{Type: e.From}
		classSet[e.To.FQName] = factmodel.ClassFact{Type: e.To}
	}
	idx := &factmodel.FactIndex{Edges: edges}
	for _, cf := range classSet {
		idx.Classes = append(idx.Classes, cf)
	}
	idx.Stabilize()
	return idx
}

func e(from, to string) factmodel.DependencyEdge {
	return factmodel.DependencyEdge{
		From: factmodel.NewTypeRef(from), To: factmodel.NewTypeRef(to), Kind: factmodel.KindMethodCall,
	}
}

func TestHotspots_RankedByMetricDescThenNodeAsc(t *testing.T) {
	idx := buildIndex(
		e("com/example/A", "com/example/Hub"),
		e("com/example/B", "com/example/Hub"),
		e("com/example/C", "com/example/Mid"),
	)
	hs := aggregator.Hotspots(idx, graph.GranularityClass, false, true, 10)
	require.NotEmpty(t, hs)
	assert.Equal(t, "com.example.Hub", hs[0].Node)
	assert.Equal(t, 2, hs[0].Value)
}

func TestHotspots_TopLimitsResults(t *testing.T) {
	idx := buildIndex(
		e("com/example/A", "com/example/Hub"),
		e("com/example/B", "com/example/Hub"),
		e("com/example/C", "com/example/Mid"),
	)
	hs := aggregator.Hotspots(idx, graph.GranularityClass, false, true, 1)
	assert.Len(t, hs, 1)
}

func TestHotspots_TieBrokenByNodeIDAscending(t *testing.T) {
	idx := buildIndex(
		e("com/example/Zed", "com/example/Sink"),
		e("com/example/Alpha", "com/example/Sink2"),
	)
	hs := aggregator.Hotspots(idx, graph.GranularityClass, false, false, 10)
	require.True(t, len(hs) >= 2)
	assert.Equal(t, "com.example.Alpha", hs[0].Node)
	assert.Equal(t, "com.example.Zed", hs[1].Node)
}

func TestCycleSummaries_OnlyReportsCyclicSCCs(t *testing.T) {
	idx := buildIndex(
		e("com/example/A", "com/example/B"),
		e("com/example/B", "com/example/A"),
		e("com/example/C", "com/example/D"),
	)
	summaries := aggregator.CycleSummaries(idx, graph.GranularityClass, false)
	require.Len(t, summaries, 1)
	assert.ElementsMatch(t, []string{"com.example.A", "com.example.B"}, summaries[0].Nodes)
	assert.NotEmpty(t, summaries[0].RepresentativeCycle)
}

func TestCycleSummaries_EmptyWhenAcyclic(t *testing.T) {
	idx := buildIndex(e("com/example/A", "com/example/B"))
	summaries := aggregator.CycleSummaries(idx, graph.GranularityClass, false)
	assert.Empty(t, summaries)
}

func TestComputeScore_HealthyWithNoFindings(t *testing.T) {
	score := aggregator.ComputeScore(nil)
	assert.Equal(t, 0, score.Value)
	assert.Equal(t, aggregator.ScoreBandHealthy, score.Band)
}

func TestComputeScore_WarningBandBetweenTenAndFifty(t *testing.T) {
	findings := []finding.Finding{
		{Severity: config.SeverityWarning},
		{Severity: config.SeverityWarning},
		{Severity: config.SeverityWarning},
		{Severity: config.SeverityWarning},
	}
	score := aggregator.ComputeScore(findings)
	assert.Equal(t, 12, score.Value)
	assert.Equal(t, aggregator.ScoreBandWarning, score.Band)
	assert.Equal(t, 4, score.Counts[config.SeverityWarning])
}

func TestComputeScore_AnyErrorForcesCriticalRegardlessOfTotal(t *testing.T) {
	findings := []finding.Finding{{Severity: config.SeverityError}}
	score := aggregator.ComputeScore(findings)
	assert.Equal(t, 10, score.Value)
	assert.Equal(t, aggregator.ScoreBandCritical, score.Band)
}

func TestComputeScore_HighVolumeOfLowSeverityReachesCriticalByTotal(t *testing.T) {
	findings := make([]finding.Finding, 50)
	for i := range findings {
		findings[i] = finding.Finding{Severity: config.SeverityInfo}
	}
	score := aggregator.ComputeScore(findings)
	assert.Equal(t, 50, score.Value)
	assert.Equal(t, aggregator.ScoreBandCritical, score.Band)
}

func TestComputeScore_HintsDoNotMoveTheNeedle(t *testing.T) {
	findings := []finding.Finding{{Severity: config.SeverityHint}, {Severity: config.SeverityHint}}
	score := aggregator.ComputeScore(findings)
	assert.Equal(t, 0, score.Value)
	assert.Equal(t, aggregator.ScoreBandHealthy, score.Band)
	assert.Equal(t, 2, score.Counts[config.SeverityHint])
}
