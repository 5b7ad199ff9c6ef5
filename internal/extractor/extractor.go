// Package extractor implements the bytecode fact extractor (C1): it turns
// one BytecodeUnit into a partial FactIndex, never letting a malformed class
// file abort the scan.
package extractor

import (
	"fmt"
	"slices"
	"sort"

	"github.com/aalsanie/shamash-sub001/internal/classfile"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
)

// ExtractUnit parses one class file and returns the partial FactIndex it
// contributes. Parse or visitor failures never propagate as an error; they
// become a FactsError entry in the returned index, and extraction of
// whatever could be recovered still proceeds.
func ExtractUnit(unit factmodel.BytecodeUnit) (idx *factmodel.FactIndex) {
	idx = &factmodel.FactIndex{}
	defer func() {
		if r := recover(); r != nil {
			idx.Errors = append(idx.Errors, factmodel.FactsError{
				OriginID: unit.OriginID,
				Phase:    "extract",
				Message:  fmt.Sprintf("panic: %v", r),
			})
		}
	}()

	rc, err := classfile.Parse(unit.Bytes)
	if err != nil {
		idx.Errors = append(idx.Errors, factmodel.FactsError{
			OriginID: unit.OriginID,
			Phase:    "parse",
			Message:  err.Error(),
		})
		return idx
	}

	loc := unit.Location
	loc.SourceFile = rc.SourceFile

	ex := &unitExtractor{rc: rc, unitID: unit.OriginID, baseLoc: loc, idx: idx}
	ex.run()
	return idx
}

type unitExtractor struct {
	rc      *classfile.RawClass
	unitID  string
	baseLoc factmodel.SourceLocation
	idx     *factmodel.FactIndex

	classType factmodel.TypeRef
}

func (ex *unitExtractor) run() {
	defer func() {
		if r := recover(); r != nil {
			ex.recordError("class", fmt.Sprintf("panic: %v", r))
		}
	}()

	ex.classType = factmodel.NewTypeRef(ex.rc.ThisClass)

	cf := factmodel.ClassFact{
		Type:     ex.classType,
		Access:   ex.rc.AccessFlags,
		Location: ex.baseLoc,
	}

	if ex.rc.SuperClass != "" {
		super := factmodel.NewTypeRef(ex.rc.SuperClass)
		cf.SuperType = &super
		ex.emitEdge(ex.classType, super, factmodel.KindExtends, "", ex.baseLoc)
	}

	for _, iface := range ex.rc.Interfaces {
		t := factmodel.NewTypeRef(iface)
		cf.Interfaces = append(cf.Interfaces, t)
		ex.emitEdge(ex.classType, t, factmodel.KindImplements, "", ex.baseLoc)
	}

	for _, ann := range ex.rc.Annotations {
		fq := factmodel.NewTypeRef(ann.TypeInternalName).FQName
		cf.AnnotationsFqns = append(cf.AnnotationsFqns, fq)
		ex.emitEdge(ex.classType, factmodel.NewTypeRef(ann.TypeInternalName), factmodel.KindAnnotationType, "", ex.baseLoc)
	}
	sort.Slice(cf.Interfaces, func(i, j int) bool { return cf.Interfaces[i].InternalName < cf.Interfaces[j].InternalName })
	cf.Interfaces = slices.CompactFunc(cf.Interfaces, func(a, b factmodel.TypeRef) bool { return a.InternalName == b.InternalName })
	sort.Strings(cf.AnnotationsFqns)
	cf.AnnotationsFqns = slices.Compact(cf.AnnotationsFqns)

	for _, m := range ex.rc.Methods {
		if m.IsMain() {
			cf.HasMainMethod = true
		}
	}

	ex.idx.Classes = append(ex.idx.Classes, cf)

	for _, f := range ex.rc.Fields {
		ex.extractField(f)
	}
	for _, m := range ex.rc.Methods {
		ex.extractMethod(m)
	}
}

func (ex *unitExtractor) extractField(f classfile.RawField) {
	defer func() {
		if r := recover(); r != nil {
			ex.recordError("field:"+f.Name, fmt.Sprintf("panic: %v", r))
		}
	}()

	member := factmodel.MemberRef{
		Owner:      ex.classType,
		Name:       f.Name,
		Descriptor: f.Descriptor,
		Access:     f.AccessFlags,
		Location:   ex.baseLoc,
	}
	var fieldType factmodel.TypeRef
	if resolved := classfile.ParseFieldDescriptorExported(f.Descriptor); resolved.Ok {
		fieldType = factmodel.NewTypeRef(resolved.InternalName)
		if fieldType.InternalName != ex.classType.InternalName {
			ex.emitEdge(ex.classType, fieldType, factmodel.KindFieldType, f.Name, ex.baseLoc)
		}
	}
	for _, ann := range f.Annotations {
		fq := factmodel.NewTypeRef(ann.TypeInternalName).FQName
		member.Annotation = append(member.Annotation, fq)
		ex.emitEdge(ex.classType, factmodel.NewTypeRef(ann.TypeInternalName), factmodel.KindAnnotationType, f.Name, ex.baseLoc)
	}

	ex.idx.Fields = append(ex.idx.Fields, factmodel.FieldRef{MemberRef: member, FieldType: fieldType})
}

func (ex *unitExtractor) extractMethod(m classfile.RawMethod) {
	defer func() {
		if r := recover(); r != nil {
			ex.recordError("method:"+m.Name, fmt.Sprintf("panic: %v", r))
		}
	}()

	member := factmodel.MemberRef{
		Owner:      ex.classType,
		Name:       m.Name,
		Descriptor: m.Descriptor,
		Access:     m.AccessFlags,
		Location:   ex.baseLoc,
	}
	for _, ann := range m.Annotations {
		fq := factmodel.NewTypeRef(ann.TypeInternalName).FQName
		member.Annotation = append(member.Annotation, fq)
		ex.emitEdge(ex.classType, factmodel.NewTypeRef(ann.TypeInternalName), factmodel.KindAnnotationType, m.Name, ex.baseLoc)
	}

	mr := factmodel.MethodRef{
		MemberRef:     member,
		IsConstructor: m.Name == "<init>" || m.Name == "<clinit>",
	}

	params, ret, err := classfile.ParseMethodDescriptorExported(m.Descriptor)
	if err != nil {
		ex.recordError("method:"+m.Name, err.Error())
	} else {
		for _, p := range params {
			if !p.Ok {
				mr.ParamTypes = append(mr.ParamTypes, factmodel.TypeRef{})
				continue
			}
			t := factmodel.NewTypeRef(p.InternalName)
			mr.ParamTypes = append(mr.ParamTypes, t)
			if t.InternalName != ex.classType.InternalName {
				ex.emitEdge(ex.classType, t, factmodel.KindMethodParamType, m.Name, ex.baseLoc)
			}
		}
		if ret.Ok {
			mr.ReturnType = factmodel.NewTypeRef(ret.InternalName)
			if mr.ReturnType.InternalName != ex.classType.InternalName {
				ex.emitEdge(ex.classType, mr.ReturnType, factmodel.KindMethodReturnType, m.Name, ex.baseLoc)
			}
		}
	}

	for _, th := range m.ThrowsTypes {
		t := factmodel.NewTypeRef(th)
		mr.ThrowsTypes = append(mr.ThrowsTypes, t)
		if t.InternalName != ex.classType.InternalName {
			ex.emitEdge(ex.classType, t, factmodel.KindThrowsType, m.Name, ex.baseLoc)
		}
	}

	ex.idx.Methods = append(ex.idx.Methods, mr)

	if m.Code != nil {
		ex.extractCode(m.Name, m.Code)
	}
}

func (ex *unitExtractor) extractCode(methodName string, code *classfile.RawCode) {
	defer func() {
		if r := recover(); r != nil {
			ex.recordError("code:"+methodName, fmt.Sprintf("panic: %v", r))
		}
	}()

	for _, caught := range code.CaughtTypes {
		t := factmodel.NewTypeRef(caught)
		if t.InternalName != ex.classType.InternalName {
			ex.emitEdge(ex.classType, t, factmodel.KindThrowsType, methodName, ex.baseLoc)
		}
	}

	for _, ev := range code.Events {
		loc := ex.baseLoc
		loc.Line = code.LineFor(ev.Offset)

		switch ev.Kind {
		case classfile.EventTypeInstruction:
			t := factmodel.NewTypeRef(ev.TypeInternalName)
			if t.InternalName != ex.classType.InternalName {
				ex.emitEdge(ex.classType, t, factmodel.KindTypeInstruction, methodName, loc)
			}
		case classfile.EventFieldAccess:
			t := factmodel.NewTypeRef(ev.FieldOwner)
			if t.InternalName != ex.classType.InternalName {
				ex.emitEdge(ex.classType, t, factmodel.KindFieldAccess, ev.FieldName, loc)
			}
		case classfile.EventMethodCall:
			t := factmodel.NewTypeRef(ev.CallOwner)
			if t.InternalName != ex.classType.InternalName {
				ex.emitEdge(ex.classType, t, factmodel.KindMethodCall, ev.CallName, loc)
			}
		case classfile.EventConstType:
			t := factmodel.NewTypeRef(ev.ConstInternalName)
			if t.InternalName != ex.classType.InternalName {
				ex.emitEdge(ex.classType, t, factmodel.KindConstType, "", loc)
			}
		case classfile.EventInvokeDynamic:
			if ev.BootstrapOwner != "" {
				t := factmodel.NewTypeRef(ev.BootstrapOwner)
				if t.InternalName != ex.classType.InternalName {
					ex.emitEdge(ex.classType, t, factmodel.KindConstType, "bootstrap", loc)
				}
			}
			for _, bt := range ev.BootstrapTypes {
				t := factmodel.NewTypeRef(bt)
				if t.InternalName != ex.classType.InternalName {
					ex.emitEdge(ex.classType, t, factmodel.KindConstType, "bootstrapArg", loc)
				}
			}
		}
	}
}

func (ex *unitExtractor) emitEdge(from, to factmodel.TypeRef, kind factmodel.DependencyKind, detail string, loc factmodel.SourceLocation) {
	if from.InternalName == to.InternalName {
		return
	}
	ex.idx.Edges = append(ex.idx.Edges, factmodel.DependencyEdge{
		From: from, To: to, Kind: kind, Detail: detail, Location: loc,
	})
}

func (ex *unitExtractor) recordError(phase, message string) {
	ex.idx.Errors = append(ex.idx.Errors, factmodel.FactsError{
		OriginID: ex.unitID,
		Phase:    phase,
		Message:  message,
	})
}
