// Package graph builds directed dependency graphs at class/package/module
// granularity (C8) and computes fan-in, fan-out, package spread, and
// strongly connected components deterministically.
package graph

import (
	"sort"
	"strings"

	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
)

// Granularity selects the node resolution of a Graph.
type Granularity string

const (
	GranularityClass   Granularity = "CLASS"
	GranularityPackage Granularity = "PACKAGE"
	GranularityModule  Granularity = "MODULE"
)

// externalBucketPrefixes are the canonical internal-name prefixes collapsed
// into one synthetic external node each, per spec §4.8.
var externalBucketPrefixes = []string{
	"java/", "javax/", "jdk/", "jakarta/", "kotlin/", "scala/",
	"org/springframework/", "org/jetbrains/", "com/intellij/",
	"org/apache/", "com/google/",
}

// Graph is a directed multigraph (collapsed to edge multiplicity per
// ordered pair) over nodes at one Granularity.
type Graph struct {
	Granularity Granularity
	// out[node] -> target -> count
	out map[string]map[string]int
	in  map[string]map[string]int
	// nodes is the sorted set of every node that appears as a source,
	// target, or declared class.
	nodes []string
}

// Build collapses idx's dependency edges into a Graph at the given
// granularity. When includeExternalBuckets is false, edges to classes
// outside idx are dropped entirely.
func Build(idx *factmodel.FactIndex, granularity Granularity, includeExternalBuckets bool) *Graph {
	g := &Graph{
		Granularity: granularity,
		out:         map[string]map[string]int{},
		in:          map[string]map[string]int{},
	}

	nodeSet := map[string]bool{}
	addNode := func(n string) {
		if n != "" {
			nodeSet[n] = true
		}
	}

	for _, cf := range idx.Classes {
		addNode(nodeOf(cf.Type, granularity))
	}

	for _, e := range idx.Edges {
		from := nodeOf(e.From, granularity)
		var to string
		if _, known := idx.ClassByFQName(e.To.FQName); known {
			to = nodeOf(e.To, granularity)
		} else if includeExternalBuckets {
			to = externalBucket(e.To.InternalName)
		} else {
			continue
		}
		if from == "" || to == "" || from == to {
			continue
		}
		addNode(from)
		addNode(to)
		if g.out[from] == nil {
			g.out[from] = map[string]int{}
		}
		g.out[from][to]++
		if g.in[to] == nil {
			g.in[to] = map[string]int{}
		}
		g.in[to][from]++
	}

	g.nodes = make([]string, 0, len(nodeSet))
	for n := range nodeSet {
		g.nodes = append(g.nodes, n)
	}
	sort.Strings(g.nodes)
	return g
}

// NodeOf exposes the node-resolution rule used by Build, so rule
// implementations can map a class back to the node it was collapsed into.
func NodeOf(t factmodel.TypeRef, granularity Granularity) string {
	return nodeOf(t, granularity)
}

func nodeOf(t factmodel.TypeRef, granularity Granularity) string {
	switch granularity {
	case GranularityClass:
		return t.FQName
	case GranularityPackage:
		return t.PackageName
	case GranularityModule:
		return moduleOf(t)
	default:
		return t.FQName
	}
}

// moduleOf resolves a module name from a class's package: the first path
// segment, matching a typical multi-module layout's top-level grouping.
func moduleOf(t factmodel.TypeRef) string {
	parts := strings.Split(t.PackageName, ".")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func externalBucket(internalName string) string {
	for _, prefix := range externalBucketPrefixes {
		if strings.HasPrefix(internalName, prefix) {
			return "external:" + strings.TrimSuffix(prefix, "/")
		}
	}
	segs := strings.Split(internalName, "/")
	if len(segs) >= 2 {
		return "external:" + segs[0] + "/" + segs[1]
	}
	if len(segs) == 1 {
		return "external:" + segs[0]
	}
	return "external:unknown"
}

// Nodes returns every node in sorted order.
func (g *Graph) Nodes() []string { return g.nodes }

// FanOut is the number of distinct outgoing neighbors of node.
func (g *Graph) FanOut(node string) int { return len(g.out[node]) }

// FanIn is the number of distinct incoming neighbors of node.
func (g *Graph) FanIn(node string) int { return len(g.in[node]) }

// Successors returns node's outgoing neighbors in sorted order.
func (g *Graph) Successors(node string) []string {
	m := g.out[node]
	out := make([]string, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// SCC is one strongly connected component: its member node ids (sorted) and
// whether it is cyclic (size > 1; self-loops are never materialized since
// Build drops them).
type SCC struct {
	Nodes  []string
	Cyclic bool
	// RepresentativeCycle is the shortest cycle through the lexicographically
	// smallest node in the component, populated only for cyclic SCCs.
	RepresentativeCycle []string
}

// StronglyConnectedComponents runs Tarjan's algorithm with deterministic
// traversal order: nodes and each node's successor list are both visited in
// sorted order, so SCC membership and the chosen representative cycle are
// identical across runs on identical input.
func (g *Graph) StronglyConnectedComponents() []SCC {
	t := &tarjan{
		g:       g,
		index:   map[string]int{},
		lowlink: map[string]int{},
		onStack: map[string]bool{},
	}
	for _, n := range g.nodes {
		if _, visited := t.index[n]; !visited {
			t.strongConnect(n)
		}
	}

	sccs := make([]SCC, 0, len(t.result))
	for _, members := range t.result {
		sorted := append([]string(nil), members...)
		sort.Strings(sorted)
		scc := SCC{Nodes: sorted, Cyclic: len(sorted) > 1}
		if scc.Cyclic {
			scc.RepresentativeCycle = g.representativeCycle(sorted)
		}
		sccs = append(sccs, scc)
	}
	sort.Slice(sccs, func(i, j int) bool { return sccs[i].Nodes[0] < sccs[j].Nodes[0] })
	return sccs
}

type tarjan struct {
	g       *Graph
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	counter int
	result  [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.g.Successors(v) {
		if _, visited := t.index[w]; !visited {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var members []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			members = append(members, w)
			if w == v {
				break
			}
		}
		t.result = append(t.result, members)
	}
}

// representativeCycle returns a shortest cycle through the lexicographically
// smallest node of a cyclic SCC, found by BFS restricted to the SCC.
func (g *Graph) representativeCycle(sccNodes []string) []string {
	start := sccNodes[0]
	inSCC := make(map[string]bool, len(sccNodes))
	for _, n := range sccNodes {
		inSCC[n] = true
	}

	parent := map[string]string{}
	visited := map[string]bool{start: true}
	queue := []string{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.Successors(cur) {
			if !inSCC[next] {
				continue
			}
			if next == start {
				path := []string{start}
				for n := cur; n != start; n = parent[n] {
					path = append(path, n)
				}
				path = append(path, start)
				return reverseExceptEnds(path)
			}
			if !visited[next] {
				visited[next] = true
				parent[next] = cur
				queue = append(queue, next)
			}
		}
	}
	return []string{start}
}

func reverseExceptEnds(path []string) []string {
	out := make([]string, len(path))
	for i, n := range path {
		out[len(path)-1-i] = n
	}
	return out
}

// PackageSpread counts the number of distinct target packages reachable by
// direct class-level dependency edges whose source class is in pkg.
func PackageSpread(idx *factmodel.FactIndex, pkg string, includeExternal bool, includeSelf bool) int {
	targets := map[string]bool{}
	for _, e := range idx.Edges {
		if e.From.PackageName != pkg {
			continue
		}
		var targetPkg string
		if _, known := idx.ClassByFQName(e.To.FQName); known {
			targetPkg = e.To.PackageName
		} else if includeExternal {
			targetPkg = externalBucket(e.To.InternalName)
		} else {
			continue
		}
		if !includeSelf && targetPkg == pkg {
			continue
		}
		targets[targetPkg] = true
	}
	return len(targets)
}
