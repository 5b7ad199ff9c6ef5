package classfile

import "fmt"

// CodeEvent is one dependency-bearing event found while walking a method's
// bytecode. Offset is the byte offset within the Code attribute, used to
// look up a line number from the LineNumberTable.
type CodeEvent struct {
	Offset int
	Kind   CodeEventKind

	// TypeInstruction (new/anewarray/checkcast/instanceof)
	TypeInternalName string

	// FieldAccess (getfield/putfield/getstatic/putstatic)
	FieldOwner      string
	FieldName       string
	FieldDescriptor string
	IsFieldWrite    bool

	// MethodCall (invokevirtual/invokespecial/invokestatic/invokeinterface)
	CallOwner      string
	CallName       string
	CallDescriptor string
	CallIsInterface bool

	// ConstType (ldc/ldc_w of a Class or MethodHandle constant; MethodType
	// constants produce no event)
	ConstInternalName string

	// InvokeDynamic: bootstrap handle owner plus any Class/MethodHandle
	// bootstrap arguments.
	BootstrapOwner string
	BootstrapTypes []string
}

type CodeEventKind int

const (
	EventTypeInstruction CodeEventKind = iota
	EventFieldAccess
	EventMethodCall
	EventConstType
	EventInvokeDynamic
)

// RawCode is the parsed Code attribute of a method: the events relevant to
// dependency extraction, the declared exception handler types, and a
// best-effort offset->line mapping from LineNumberTable.
type RawCode struct {
	Events         []CodeEvent
	CaughtTypes    []string // internal names from the exception table, excluding "any" (finally) handlers
	LineForOffset  map[int]int
}

// LineFor returns the nearest known line number at or before offset, or 0.
func (c *RawCode) LineFor(offset int) int {
	best := 0
	for off, line := range c.LineForOffset {
		if off <= offset && off >= best {
			best = off
			_ = line
		}
	}
	if line, ok := c.LineForOffset[best]; ok {
		return line
	}
	return 0
}

func parseCodeAttribute(body []byte, cp *ConstantPool, bootstraps []rawBootstrapMethod) (*RawCode, error) {
	r := newByteReader(body)
	if _, err := r.u2(); err != nil { // max_stack
		return nil, err
	}
	if _, err := r.u2(); err != nil { // max_locals
		return nil, err
	}
	codeLen, err := r.u4()
	if err != nil {
		return nil, err
	}
	code, err := r.bytes(int(codeLen))
	if err != nil {
		return nil, err
	}

	rc := &RawCode{LineForOffset: map[int]int{}}

	events, err := walkInstructions(code, cp, bootstraps)
	if err != nil {
		return nil, err
	}
	rc.Events = events

	excCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(excCount); i++ {
		if _, err := r.u2(); err != nil { // start_pc
			return nil, err
		}
		if _, err := r.u2(); err != nil { // end_pc
			return nil, err
		}
		if _, err := r.u2(); err != nil { // handler_pc
			return nil, err
		}
		catchType, err := r.u2()
		if err != nil {
			return nil, err
		}
		if catchType != 0 {
			name, err := cp.ClassName(catchType)
			if err != nil {
				return nil, err
			}
			rc.CaughtTypes = append(rc.CaughtTypes, name)
		}
	}

	attrCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(attrCount); i++ {
		name, attrBody, err := readAttributeHeader(r, cp)
		if err != nil {
			return nil, err
		}
		if name == "LineNumberTable" {
			if err := parseLineNumberTable(attrBody, rc); err != nil {
				return nil, err
			}
		}
	}
	return rc, nil
}

func parseLineNumberTable(body []byte, rc *RawCode) error {
	r := newByteReader(body)
	count, err := r.u2()
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		startPC, err := r.u2()
		if err != nil {
			return err
		}
		line, err := r.u2()
		if err != nil {
			return err
		}
		rc.LineForOffset[int(startPC)] = int(line)
	}
	return nil
}

// walkInstructions advances through a method's bytecode, emitting a
// CodeEvent for every opcode C1 cares about and correctly skipping the
// operands of every other opcode (including the variable-length
// tableswitch/lookupswitch/wide forms) so the instruction pointer never
// desyncs.
func walkInstructions(code []byte, cp *ConstantPool, bootstraps []rawBootstrapMethod) ([]CodeEvent, error) {
	r := newByteReader(code)
	var events []CodeEvent

	for r.pos < len(code) {
		offset := r.pos
		op, err := r.u1()
		if err != nil {
			return nil, err
		}

		switch op {
		case opTableswitch:
			if err := skipPadding(r, offset); err != nil {
				return nil, err
			}
			if _, err := r.u4(); err != nil { // default
				return nil, err
			}
			low, err := r.u4()
			if err != nil {
				return nil, err
			}
			high, err := r.u4()
			if err != nil {
				return nil, err
			}
			n := int32(high) - int32(low) + 1
			if n > 0 {
				if err := r.skip(int(n) * 4); err != nil {
					return nil, err
				}
			}
			continue
		case opLookupswitch:
			if err := skipPadding(r, offset); err != nil {
				return nil, err
			}
			if _, err := r.u4(); err != nil { // default
				return nil, err
			}
			npairs, err := r.u4()
			if err != nil {
				return nil, err
			}
			if err := r.skip(int(npairs) * 8); err != nil {
				return nil, err
			}
			continue
		case opWide:
			inner, err := r.u1()
			if err != nil {
				return nil, err
			}
			if _, err := r.u2(); err != nil { // index
				return nil, err
			}
			if inner == opIinc {
				if _, err := r.u2(); err != nil { // const
					return nil, err
				}
			}
			continue
		case opLdc:
			idx, err := r.u1()
			if err != nil {
				return nil, err
			}
			if ev, ok, err := ldcEvent(cp, uint16(idx), offset); err != nil {
				return nil, err
			} else if ok {
				events = append(events, ev)
			}
			continue
		case opLdcW:
			idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			if ev, ok, err := ldcEvent(cp, idx, offset); err != nil {
				return nil, err
			} else if ok {
				events = append(events, ev)
			}
			continue
		case opNew, opAnewarray, opCheckcast, opInstanceof:
			idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			name, err := cp.ClassName(idx)
			if err != nil {
				return nil, err
			}
			events = append(events, CodeEvent{Offset: offset, Kind: EventTypeInstruction, TypeInternalName: name})
			continue
		case opGetfield, opGetstatic, opPutfield, opPutstatic:
			idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			ref, err := cp.Ref(idx)
			if err != nil {
				return nil, err
			}
			events = append(events, CodeEvent{
				Offset:          offset,
				Kind:            EventFieldAccess,
				FieldOwner:      ref.OwnerInternalName,
				FieldName:       ref.Name,
				FieldDescriptor: ref.Descriptor,
				IsFieldWrite:    op == opPutfield || op == opPutstatic,
			})
			continue
		case opInvokevirtual, opInvokespecial, opInvokestatic:
			idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			ref, err := cp.Ref(idx)
			if err != nil {
				return nil, err
			}
			events = append(events, CodeEvent{
				Offset: offset, Kind: EventMethodCall,
				CallOwner: ref.OwnerInternalName, CallName: ref.Name,
				CallDescriptor: ref.Descriptor, CallIsInterface: ref.IsInterface,
			})
			continue
		case opInvokeinterface:
			idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			if _, err := r.u1(); err != nil { // count
				return nil, err
			}
			if _, err := r.u1(); err != nil { // zero
				return nil, err
			}
			ref, err := cp.Ref(idx)
			if err != nil {
				return nil, err
			}
			events = append(events, CodeEvent{
				Offset: offset, Kind: EventMethodCall,
				CallOwner: ref.OwnerInternalName, CallName: ref.Name,
				CallDescriptor: ref.Descriptor, CallIsInterface: true,
			})
			continue
		case opInvokedynamic:
			idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			if _, err := r.u2(); err != nil { // zero
				return nil, err
			}
			ev, ok, err := invokeDynamicEvent(cp, idx, offset, bootstraps)
			if err != nil {
				return nil, err
			}
			if ok {
				events = append(events, ev)
			}
			continue
		}

		n := fixedOperandBytes[op]
		if err := r.skip(n); err != nil {
			return nil, fmt.Errorf("opcode 0x%02x at offset %d: %w", op, offset, err)
		}
	}
	return events, nil
}

// skipPadding consumes the 0-3 zero bytes that pad tableswitch/lookupswitch
// to a 4-byte-aligned boundary relative to the start of the method's code.
func skipPadding(r *byteReader, instructionStart int) error {
	pad := (4 - (instructionStart+1)%4) % 4
	return r.skip(pad)
}

func ldcEvent(cp *ConstantPool, idx uint16, offset int) (CodeEvent, bool, error) {
	tag, err := cp.Tag(idx)
	if err != nil {
		return CodeEvent{}, false, err
	}
	switch tag {
	case tagClass:
		name, err := cp.ClassName(idx)
		if err != nil {
			return CodeEvent{}, false, err
		}
		return CodeEvent{Offset: offset, Kind: EventConstType, ConstInternalName: name}, true, nil
	case tagMethodHandle:
		owner, err := cp.MethodHandleOwner(idx)
		if err != nil {
			return CodeEvent{}, false, err
		}
		return CodeEvent{Offset: offset, Kind: EventConstType, ConstInternalName: owner}, true, nil
	default:
		return CodeEvent{}, false, nil
	}
}

// rawBootstrapMethod is one entry of the class-level BootstrapMethods
// attribute, resolved just enough for invokedynamic edges.
type rawBootstrapMethod struct {
	handleOwner string
	argTypes    []string // Class/MethodHandle bootstrap arguments, resolved to internal names
}

func invokeDynamicEvent(cp *ConstantPool, cpIdx uint16, offset int, bootstraps []rawBootstrapMethod) (CodeEvent, bool, error) {
	e, err := cp.get(cpIdx)
	if err != nil {
		return CodeEvent{}, false, err
	}
	if e.tag != tagInvokeDynamic {
		return CodeEvent{}, false, fmt.Errorf("constant pool index %d is not InvokeDynamic", cpIdx)
	}
	bmIdx := int(e.idx1)
	if bmIdx < 0 || bmIdx >= len(bootstraps) {
		return CodeEvent{}, false, nil
	}
	bm := bootstraps[bmIdx]
	return CodeEvent{
		Offset:         offset,
		Kind:           EventInvokeDynamic,
		BootstrapOwner: bm.handleOwner,
		BootstrapTypes: bm.argTypes,
	}, true, nil
}
