// Package finding defines the Finding record produced by rule evaluation
// (C9), consumed by the suppression engine (C10) and the aggregator (C11).
package finding

import "github.com/aalsanie/shamash-sub001/internal/config"

// Finding is one reported violation or diagnostic.
type Finding struct {
	RuleID     string
	Message    string
	FilePath   string
	Severity   config.Severity
	ClassFqn   string
	MemberName string
	Data       []DataEntry // ordered, stable scalar diagnostic attributes
}

// DataEntry is one key/value pair of Finding.Data, kept as a slice instead
// of a map so iteration order is part of the value, not an implementation
// detail that needs separate sorting at serialization time.
type DataEntry struct {
	Key   string
	Value string
}

// SortKey mirrors spec §4.9: (ruleId, filePath, classFqn, memberName, message).
func (f Finding) SortKey() string {
	return f.RuleID + "|" + f.FilePath + "|" + f.ClassFqn + "|" + f.MemberName + "|" + f.Message
}
