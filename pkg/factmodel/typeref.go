// Package factmodel holds the structural facts extracted from JVM bytecode:
// classes, members, dependency edges, and the deduplicated index they are
// assembled into. Nothing in this package reads bytecode itself — see
// internal/classfile and internal/extractor for that.
package factmodel

import "strings"

// TypeRef identifies a JVM type by its internal form (e.g. "pkg/sub/Name").
// Equality and hashing are defined on InternalName alone; FQName and
// PackageName are derived and cached at construction time.
type TypeRef struct {
	InternalName string
	FQName       string
	PackageName  string
}

// NewTypeRef builds a TypeRef from a JVM internal name. Array element
// references must already be decayed to their component object type by the
// caller; primitives and void never reach here.
func NewTypeRef(internalName string) TypeRef {
	fq := strings.ReplaceAll(internalName, "/", ".")
	pkg := ""
	if i := strings.LastIndex(fq, "."); i >= 0 {
		pkg = fq[:i]
	}
	return TypeRef{
		InternalName: internalName,
		FQName:       fq,
		PackageName:  pkg,
	}
}

// SimpleName returns the class name without its package prefix.
func (t TypeRef) SimpleName() string {
	if i := strings.LastIndex(t.FQName, "."); i >= 0 {
		return t.FQName[i+1:]
	}
	return t.FQName
}

func (t TypeRef) IsZero() bool {
	return t.InternalName == ""
}
