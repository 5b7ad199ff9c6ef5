package config

// MatcherKind tags a Matcher node's variant.
type MatcherKind string

const (
	MatcherAnyOf                  MatcherKind = "ANY_OF"
	MatcherAllOf                  MatcherKind = "ALL_OF"
	MatcherNot                    MatcherKind = "NOT"
	MatcherAnnotation             MatcherKind = "ANNOTATION"
	MatcherAnnotationPrefix       MatcherKind = "ANNOTATION_PREFIX"
	MatcherPackageRegex           MatcherKind = "PACKAGE_REGEX"
	MatcherPackageContainsSegment MatcherKind = "PACKAGE_CONTAINS_SEGMENT"
	MatcherClassNameRegex         MatcherKind = "CLASS_NAME_REGEX"
	MatcherClassNameEndsWith      MatcherKind = "CLASS_NAME_ENDS_WITH"
	MatcherClassNameEndsWithAny   MatcherKind = "CLASS_NAME_ENDS_WITH_ANY"
	MatcherHasMainMethod          MatcherKind = "HAS_MAIN_METHOD"
	MatcherImplements             MatcherKind = "IMPLEMENTS"
	MatcherExtends                MatcherKind = "EXTENDS"
)

// Matcher is a tagged-union node of the role/exception matcher DSL (spec
// §3). Only the fields relevant to Kind are populated.
type Matcher struct {
	Kind     MatcherKind
	Children []Matcher // AnyOf, AllOf
	Inner    *Matcher  // Not

	Fqn     string // Annotation, Implements, Extends
	Prefix  string // AnnotationPrefix
	Regex   string // PackageRegex, ClassNameRegex
	Segment string // PackageContainsSegment
	Suffix  string // ClassNameEndsWith

	Suffixes []string // ClassNameEndsWithAny

	Bool bool // HasMainMethod
}
