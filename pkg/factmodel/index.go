package factmodel

import "sort"

// BytecodeUnit is a single class file's bytes plus its provenance, handed to
// the extractor by whatever external collaborator enumerated .class/.jar
// entries.
type BytecodeUnit struct {
	OriginID string
	Location SourceLocation
	Bytes    []byte
}

// classKey is the dedup key for classes: (internalName, originPath, entryPath).
type classKey struct {
	internalName string
	originPath   string
	entryPath    string
}

// FactIndex is the deduplicated, sorted snapshot the whole pipeline operates
// on after C2 stabilization. Classes/Methods/Fields/Edges/Errors are frozen
// and sorted; Roles/ClassToRole start out empty and are filled in by the
// role classifier (C6).
type FactIndex struct {
	Classes []ClassFact
	Methods []MethodRef
	Fields  []FieldRef
	Edges   []DependencyEdge
	Errors  []FactsError

	// Roles maps a role id to the ordered set of class FQNs assigned to it.
	Roles map[string][]string
	// ClassToRole maps a class FQN to its single assigned role id, if any.
	ClassToRole map[string]string

	// byFQName indexes Classes for O(1) lookup by Implements/Extends BFS and
	// the role classifier; Stabilize clears it and ClassByFQName rebuilds it
	// on first use.
	byFQName map[string]*ClassFact
}

// ClassByFQName returns the class fact for fqName, if the index knows it.
func (idx *FactIndex) ClassByFQName(fqName string) (*ClassFact, bool) {
	if idx.byFQName == nil {
		idx.buildLookup()
	}
	c, ok := idx.byFQName[fqName]
	return c, ok
}

func (idx *FactIndex) buildLookup() {
	idx.byFQName = make(map[string]*ClassFact, len(idx.Classes))
	for i := range idx.Classes {
		idx.byFQName[idx.Classes[i].Type.FQName] = &idx.Classes[i]
	}
}

// Merge concatenates another partial index's facts into idx. It does not
// stabilize; call Stabilize once after all merges (spec §4.2 — associative
// concatenation then one C2 pass). Role maps use "last non-empty wins".
func (idx *FactIndex) Merge(other *FactIndex) {
	idx.Classes = append(idx.Classes, other.Classes...)
	idx.Methods = append(idx.Methods, other.Methods...)
	idx.Fields = append(idx.Fields, other.Fields...)
	idx.Edges = append(idx.Edges, other.Edges...)
	idx.Errors = append(idx.Errors, other.Errors...)
	if len(other.Roles) > 0 {
		idx.Roles = other.Roles
	}
	if len(other.ClassToRole) > 0 {
		idx.ClassToRole = other.ClassToRole
	}
}

// Stabilize deduplicates and sorts every fact list per spec §4.2, producing
// the byte-stable snapshot the rest of the pipeline relies on.
func (idx *FactIndex) Stabilize() {
	idx.Classes = dedupSorted(idx.Classes, func(c ClassFact) string {
		return c.Type.InternalName + "|" + c.Location.OriginPath + "|" + c.Location.EntryPath
	}, func(a, b ClassFact) bool {
		if a.Type.FQName != b.Type.FQName {
			return a.Type.FQName < b.Type.FQName
		}
		if a.Location.OriginPath != b.Location.OriginPath {
			return a.Location.OriginPath < b.Location.OriginPath
		}
		return a.Location.EntryPath < b.Location.EntryPath
	})

	idx.Methods = dedupSorted(idx.Methods, func(m MethodRef) string {
		return m.SignatureKey()
	}, func(a, b MethodRef) bool {
		return a.SignatureKey() < b.SignatureKey()
	})

	idx.Fields = dedupSorted(idx.Fields, func(f FieldRef) string {
		return f.SignatureKey()
	}, func(a, b FieldRef) bool {
		return a.SignatureKey() < b.SignatureKey()
	})

	idx.Edges = dedupSorted(idx.Edges, func(e DependencyEdge) string {
		return e.EdgeKey()
	}, func(a, b DependencyEdge) bool {
		return a.EdgeKey() < b.EdgeKey()
	})

	idx.Errors = dedupSorted(idx.Errors, func(e FactsError) string {
		return e.SortKey()
	}, func(a, b FactsError) bool {
		return a.SortKey() < b.SortKey()
	})

	idx.byFQName = nil
}

// dedupSorted is a small generic helper: key groups duplicates, less orders
// the deduplicated result. The first occurrence in insertion order within a
// key group is kept, matching "dedupe by X; sort by Y" semantics used
// throughout spec §4.2.
func dedupSorted[T any](items []T, key func(T) string, less func(a, b T) bool) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
