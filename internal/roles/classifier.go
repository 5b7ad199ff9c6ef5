// Package roles implements the role classifier (C6): at most one role per
// class, assigned deterministically by priority (highest first), ties broken
// by role id ascending.
package roles

import (
	"sort"

	"github.com/aalsanie/shamash-sub001/internal/config"
	"github.com/aalsanie/shamash-sub001/internal/matcher"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
)

// Classify assigns a role to every class in idx.Classes, writing the result
// into idx.Roles and idx.ClassToRole. It never mutates idx.Classes.
func Classify(idx *factmodel.FactIndex, roleDefs map[string]config.RoleDef, compiler *matcher.Compiler) error {
	ordered := make([]config.RoleDef, 0, len(roleDefs))
	for _, rd := range roleDefs {
		ordered = append(ordered, rd)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	compiled := make([]matcher.Predicate, len(ordered))
	for i, rd := range ordered {
		p, err := compiler.Compile(rd.Match)
		if err != nil {
			return err
		}
		compiled[i] = p
	}

	classes := append([]factmodel.ClassFact(nil), idx.Classes...)
	sort.Slice(classes, func(i, j int) bool { return classes[i].Type.FQName < classes[j].Type.FQName })

	classToRole := make(map[string]string, len(classes))
	roleMembers := make(map[string][]string, len(ordered))

	for _, cf := range classes {
		cf := cf
		for i, rd := range ordered {
			if compiled[i](&cf) {
				classToRole[cf.Type.FQName] = rd.ID
				roleMembers[rd.ID] = append(roleMembers[rd.ID], cf.Type.FQName)
				break
			}
		}
	}

	idx.ClassToRole = classToRole
	idx.Roles = roleMembers
	return nil
}
