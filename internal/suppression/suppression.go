// Package suppression implements the suppression engine (C10): exception
// entries and inline ignore directives applied to the finding stream before
// it is returned to the caller.
package suppression

import (
	"regexp"
	"strings"
	"time"

	"github.com/aalsanie/shamash-sub001/internal/config"
	"github.com/aalsanie/shamash-sub001/internal/finding"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
)

// SourceProvider resolves the source lines of a file for inline-directive
// scanning. Implementations may return (nil, false) when source text isn't
// available (e.g. a pure-bytecode scan with no accompanying sources).
type SourceProvider interface {
	Lines(filePath string) ([]string, bool)
}

var inlineDirective = regexp.MustCompile(`//\s*shamash:ignore\s+(\S+)`)
var annotationDirective = regexp.MustCompile(`@Suppress(?:Warnings)?\(\s*"shamash:(\S+?)"\s*\)`)

// Apply removes every finding matched by an exception entry or an inline
// ignore directive, and prepends one INFO diagnostic per expired exception.
func Apply(findings []finding.Finding, idx *factmodel.FactIndex, exceptions []config.Exception, now time.Time, src SourceProvider) []finding.Finding {
	var diagnostics []finding.Finding
	compiled := make([]compiledException, 0, len(exceptions))
	for _, exc := range exceptions {
		if exc.IsExpired(now) {
			diagnostics = append(diagnostics, finding.Finding{
				RuleID:   "engine.expiredException",
				Message:  "exception " + exc.ID + " has expired and no longer applies",
				Severity: config.SeverityInfo,
			})
			continue
		}
		compiled = append(compiled, compileException(exc))
	}

	out := make([]finding.Finding, 0, len(findings)+len(diagnostics))
	out = append(out, diagnostics...)

	for _, f := range findings {
		if matchesAnyException(f, idx, compiled) {
			continue
		}
		if src != nil && inlineSuppressed(f, src) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// fieldMatcher is a compiled-once anchored regex for one optional
// ExceptionMatch field. present is false when the field was left empty in
// config, meaning "don't filter on this". A field that failed to compile
// (validation should have already rejected it, but Apply never trusts that)
// never matches rather than silently matching everything.
type fieldMatcher struct {
	present bool
	rx      *regexp.Regexp
}

func compileField(pattern string) fieldMatcher {
	if pattern == "" {
		return fieldMatcher{}
	}
	rx, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return fieldMatcher{present: true}
	}
	return fieldMatcher{present: true, rx: rx}
}

func (fm fieldMatcher) matches(s string) bool {
	if !fm.present {
		return true
	}
	if fm.rx == nil {
		return false
	}
	return fm.rx.MatchString(s)
}

// compiledException is an Exception with its regex match fields compiled
// once per Apply call, not per finding.
type compiledException struct {
	exc        config.Exception
	filePath   fieldMatcher
	classFqn   fieldMatcher
	memberName fieldMatcher
	annotation fieldMatcher
}

func compileException(exc config.Exception) compiledException {
	return compiledException{
		exc:        exc,
		filePath:   compileField(exc.Match.FilePath),
		classFqn:   compileField(exc.Match.ClassFqn),
		memberName: compileField(exc.Match.MemberName),
		annotation: compileField(exc.Match.Annotation),
	}
}

func matchesAnyException(f finding.Finding, idx *factmodel.FactIndex, exceptions []compiledException) bool {
	for _, ce := range exceptions {
		if exceptionMatches(ce, f, idx) {
			return true
		}
	}
	return false
}

func exceptionMatches(ce compiledException, f finding.Finding, idx *factmodel.FactIndex) bool {
	exc := ce.exc
	if !ruleSuppressed(exc.Suppress, f.RuleID) {
		return false
	}
	m := exc.Match

	hasAnyField := ce.filePath.present || ce.classFqn.present || ce.memberName.present || ce.annotation.present || m.Role != ""
	if !hasAnyField {
		return false
	}

	if !ce.filePath.matches(f.FilePath) {
		return false
	}
	if !ce.classFqn.matches(f.ClassFqn) {
		return false
	}
	if !ce.memberName.matches(f.MemberName) {
		return false
	}
	if m.Role != "" {
		role, ok := idx.ClassToRole[f.ClassFqn]
		if !ok || role != m.Role {
			return false
		}
	}
	if ce.annotation.present {
		cf, ok := idx.ClassByFQName(f.ClassFqn)
		if !ok || !anyAnnotationMatches(cf, ce.annotation) {
			return false
		}
	}
	return true
}

func anyAnnotationMatches(cf *factmodel.ClassFact, fm fieldMatcher) bool {
	for _, a := range cf.AnnotationsFqns {
		if fm.matches(a) {
			return true
		}
	}
	return false
}

func ruleSuppressed(suppress []string, ruleID string) bool {
	for _, s := range suppress {
		if s == "*" || s == "all" {
			return true
		}
		if s == ruleID {
			return true
		}
		if strings.HasPrefix(ruleID, s+".") {
			return true
		}
	}
	return false
}

// inlineSuppressed scans the finding's anchor line (or the line above it)
// for a `// shamash:ignore` comment or `@Suppress`/`@SuppressWarnings`
// annotation naming this rule or "all".
func inlineSuppressed(f finding.Finding, src SourceProvider) bool {
	lines, ok := src.Lines(f.FilePath)
	if !ok {
		return false
	}
	line := lineFromFinding(f)
	if line <= 0 || line > len(lines) {
		return false
	}
	for _, idx := range []int{line - 1, line - 2} {
		if idx < 0 || idx >= len(lines) {
			continue
		}
		if directiveMatches(lines[idx], f.RuleID) {
			return true
		}
	}
	return false
}

func directiveMatches(line, ruleID string) bool {
	if m := inlineDirective.FindStringSubmatch(line); m != nil {
		return m[1] == "all" || m[1] == ruleID
	}
	if m := annotationDirective.FindStringSubmatch(line); m != nil {
		return m[1] == "all" || m[1] == ruleID
	}
	return false
}

// lineFromFinding is a placeholder hook: findings don't carry a line number
// directly (spec's Finding type has no line field), so inline suppression
// only activates for findings whose Data carries a "line" entry of decimal
// digits; any other finding yields 0 and is never suppressed inline.
func lineFromFinding(f finding.Finding) int {
	for _, d := range f.Data {
		if d.Key == "line" {
			n := 0
			for _, c := range d.Value {
				if c < '0' || c > '9' {
					return 0
				}
				n = n*10 + int(c-'0')
			}
			return n
		}
	}
	return 0
}
