package factmodel

import "strconv"

// OriginKind says where a BytecodeUnit's bytes came from.
type OriginKind int

const (
	OriginUnknown OriginKind = iota
	OriginDirClass
	OriginJarEntry
	OriginOther
)

func (k OriginKind) String() string {
	switch k {
	case OriginDirClass:
		return "DIR_CLASS"
	case OriginJarEntry:
		return "JAR_ENTRY"
	case OriginOther:
		return "OTHER"
	default:
		return "UNKNOWN"
	}
}

// SourceLocation is best-effort provenance for a fact. It never affects rule
// decisions except when a rule surfaces its FilePath.
type SourceLocation struct {
	OriginKind    OriginKind
	OriginPath    string
	ContainerPath string
	EntryPath     string
	SourceFile    string
	Line          int // 0 means unknown
}

// FilePath is the best path to show in an IDE/CI to a human: the jar entry
// path if this came from an archive, otherwise the origin path.
func (l SourceLocation) FilePath() string {
	if l.EntryPath != "" {
		return l.EntryPath
	}
	return l.OriginPath
}

// LocationKey is the stable sort/dedup key described in spec §4.2.
func (l SourceLocation) LocationKey() string {
	line := ""
	if l.Line > 0 {
		line = strconv.Itoa(l.Line)
	}
	return l.OriginKind.String() + "|" + l.OriginPath + "|" + l.ContainerPath + "|" + l.EntryPath + "|" + l.SourceFile + "|" + line
}

// ClassFact is the one record extracted per accepted class file.
type ClassFact struct {
	Type            TypeRef
	Access          uint16
	SuperType       *TypeRef
	Interfaces      []TypeRef // sorted by InternalName, deduplicated
	AnnotationsFqns []string  // sorted, deduplicated
	HasMainMethod   bool
	Location        SourceLocation
}

// MemberRef carries the fields shared by methods and fields.
type MemberRef struct {
	Owner      TypeRef
	Name       string
	Descriptor string
	Signature  string
	Access     uint16
	Annotation []string
	Location   SourceLocation
}

// FieldRef is one declared field.
type FieldRef struct {
	MemberRef
	FieldType TypeRef
}

// MethodRef is one declared method (including constructors).
type MethodRef struct {
	MemberRef
	ReturnType    TypeRef
	ParamTypes    []TypeRef
	ThrowsTypes   []TypeRef
	IsConstructor bool
}

// SignatureKey is the dedup/sort key from spec §4.2: "owner#name:desc".
func (m MemberRef) SignatureKey() string {
	return m.Owner.InternalName + "#" + m.Name + ":" + m.Descriptor
}

// DependencyKind enumerates every edge kind the extractor can emit.
type DependencyKind string

const (
	KindExtends          DependencyKind = "EXTENDS"
	KindImplements       DependencyKind = "IMPLEMENTS"
	KindFieldType        DependencyKind = "FIELD_TYPE"
	KindFieldAccess      DependencyKind = "FIELD_ACCESS"
	KindMethodParamType  DependencyKind = "METHOD_PARAM_TYPE"
	KindMethodReturnType DependencyKind = "METHOD_RETURN_TYPE"
	KindThrowsType       DependencyKind = "THROWS_TYPE"
	KindMethodCall       DependencyKind = "METHOD_CALL"
	KindTypeInstruction  DependencyKind = "TYPE_INSTRUCTION"
	KindAnnotationType   DependencyKind = "ANNOTATION_TYPE"
	KindConstType        DependencyKind = "CONST_TYPE"
)

// KindAliases maps the camelCase wire aliases from spec §6 to their
// canonical uppercase DependencyKind, used by arch.forbiddenRoleDependencies
// when its kinds param lists edge kinds.
var KindAliases = map[string]DependencyKind{
	"extends":         KindExtends,
	"implements":      KindImplements,
	"fieldType":       KindFieldType,
	"fieldAccess":     KindFieldAccess,
	"parameterType":   KindMethodParamType,
	"returnType":      KindMethodReturnType,
	"throwsType":      KindThrowsType,
	"methodCall":      KindMethodCall,
	"typeInstruction": KindTypeInstruction,
	"annotationType":  KindAnnotationType,
	"constType":       KindConstType,
}

// DependencyEdge is a single typed dependency from one class to another.
// Self-edges (From.InternalName == To.InternalName) must never be emitted.
type DependencyEdge struct {
	From     TypeRef
	To       TypeRef
	Kind     DependencyKind
	Detail   string
	Location SourceLocation
}

// EdgeKey is the dedup/sort key from spec §4.2.
func (e DependencyEdge) EdgeKey() string {
	return e.From.InternalName + "|" + e.To.InternalName + "|" + string(e.Kind) + "|" + e.Detail + "|" + e.Location.LocationKey()
}

// FactsError records a non-fatal failure while extracting one element of one
// unit. Extraction must never panic past a FactsError boundary.
type FactsError struct {
	OriginID      string
	Phase         string
	Message       string
	ThrowableClass string
}

func (e FactsError) Error() string {
	return e.Phase + ": " + e.Message
}

// SortKey mirrors spec §4.2's error ordering: (phase, message, throwableClass, originID).
func (e FactsError) SortKey() string {
	return e.Phase + "|" + e.Message + "|" + e.ThrowableClass + "|" + e.OriginID
}
