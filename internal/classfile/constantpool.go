// Package classfile is a minimal, read-only JVM class file parser. It knows
// just enough of the class file format (JVM SE 17 §4) to support C1's fact
// extraction: the constant pool, access flags, fields, methods, and the
// handful of attributes (Code, Exceptions, RuntimeVisibleAnnotations,
// BootstrapMethods, LineNumberTable) that carry dependency information.
//
// It never panics on malformed input; every Parse* function returns an
// error instead, which internal/extractor turns into a FactsError and
// continues with the next unit (spec §4.1).
package classfile

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Constant pool tags (JVM SE 17 §4.4).
const (
	tagUtf8              = 1
	tagInteger           = 3
	tagFloat             = 4
	tagLong              = 5
	tagDouble            = 6
	tagClass             = 7
	tagString            = 8
	tagFieldref          = 9
	tagMethodref         = 10
	tagInterfaceMethodref = 11
	tagNameAndType       = 12
	tagMethodHandle      = 15
	tagMethodType        = 16
	tagDynamic           = 17
	tagInvokeDynamic     = 18
	tagModule            = 19
	tagPackage           = 20
)

// cpEntry is one constant pool slot. Only the fields relevant to the tag are
// populated; Long/Double entries occupy two pool slots per the JVM spec,
// with the second slot left zero-valued.
type cpEntry struct {
	tag      byte
	utf8     string
	intVal   int32
	longVal  int64
	floatVal float32
	doubleVal float64
	// Class, String, MethodType, Module, Package: one index
	idx1 uint16
	// Fieldref, Methodref, InterfaceMethodref, NameAndType, Dynamic, InvokeDynamic: two indices
	idx2 uint16
	// MethodHandle: reference kind + reference index
	refKind byte
}

// ConstantPool is the parsed constant pool of one class file, 1-indexed as
// the format requires (index 0 is never valid).
type ConstantPool struct {
	entries []cpEntry
}

func (cp *ConstantPool) get(idx uint16) (cpEntry, error) {
	if int(idx) <= 0 || int(idx) >= len(cp.entries) {
		return cpEntry{}, fmt.Errorf("constant pool index %d out of range", idx)
	}
	return cp.entries[idx], nil
}

// Utf8 resolves a CP index that must point to a UTF-8 entry.
func (cp *ConstantPool) Utf8(idx uint16) (string, error) {
	e, err := cp.get(idx)
	if err != nil {
		return "", err
	}
	if e.tag != tagUtf8 {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag %d)", idx, e.tag)
	}
	return e.utf8, nil
}

// ClassName resolves a CP index that must point to a Class entry, returning
// its internal name (e.g. "java/lang/String").
func (cp *ConstantPool) ClassName(idx uint16) (string, error) {
	e, err := cp.get(idx)
	if err != nil {
		return "", err
	}
	if e.tag != tagClass {
		return "", fmt.Errorf("constant pool index %d is not a Class (tag %d)", idx, e.tag)
	}
	return cp.Utf8(e.idx1)
}

// NameAndType resolves a NameAndType entry to (name, descriptor).
func (cp *ConstantPool) NameAndType(idx uint16) (string, string, error) {
	e, err := cp.get(idx)
	if err != nil {
		return "", "", err
	}
	if e.tag != tagNameAndType {
		return "", "", fmt.Errorf("constant pool index %d is not a NameAndType (tag %d)", idx, e.tag)
	}
	name, err := cp.Utf8(e.idx1)
	if err != nil {
		return "", "", err
	}
	desc, err := cp.Utf8(e.idx2)
	if err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// MemberRef is a resolved Fieldref/Methodref/InterfaceMethodref: owning
// class internal name, member name, and descriptor.
type MemberRef struct {
	OwnerInternalName string
	Name              string
	Descriptor        string
	IsInterface       bool
}

// Ref resolves a Fieldref/Methodref/InterfaceMethodref entry.
func (cp *ConstantPool) Ref(idx uint16) (MemberRef, error) {
	e, err := cp.get(idx)
	if err != nil {
		return MemberRef{}, err
	}
	if e.tag != tagFieldref && e.tag != tagMethodref && e.tag != tagInterfaceMethodref {
		return MemberRef{}, fmt.Errorf("constant pool index %d is not a ref (tag %d)", idx, e.tag)
	}
	owner, err := cp.ClassName(e.idx1)
	if err != nil {
		return MemberRef{}, err
	}
	name, desc, err := cp.NameAndType(e.idx2)
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{OwnerInternalName: owner, Name: name, Descriptor: desc, IsInterface: e.tag == tagInterfaceMethodref}, nil
}

// MethodHandleOwner resolves a MethodHandle entry to the internal name of
// the class owning the field/method it references, used for invokedynamic
// bootstrap handles.
func (cp *ConstantPool) MethodHandleOwner(idx uint16) (string, error) {
	e, err := cp.get(idx)
	if err != nil {
		return "", err
	}
	if e.tag != tagMethodHandle {
		return "", fmt.Errorf("constant pool index %d is not a MethodHandle (tag %d)", idx, e.tag)
	}
	ref, err := cp.Ref(e.idx2)
	if err != nil {
		return "", err
	}
	return ref.OwnerInternalName, nil
}

// Tag exposes the raw tag of an entry, used by the Code walker to decide
// what an ldc/ldc_w operand points at without a full resolve.
func (cp *ConstantPool) Tag(idx uint16) (byte, error) {
	e, err := cp.get(idx)
	if err != nil {
		return 0, err
	}
	return e.tag, nil
}

// MethodTypeDescriptor resolves a MethodType entry's descriptor string.
func (cp *ConstantPool) MethodTypeDescriptor(idx uint16) (string, error) {
	e, err := cp.get(idx)
	if err != nil {
		return "", err
	}
	if e.tag != tagMethodType {
		return "", fmt.Errorf("constant pool index %d is not a MethodType (tag %d)", idx, e.tag)
	}
	return cp.Utf8(e.idx1)
}

// bootstrapArg describes one resolved bootstrap argument relevant to
// dependency extraction: either a Class constant or a MethodHandle.
type bootstrapArg struct {
	isClass         bool
	classInternal   string
	isMethodHandle  bool
	handleOwner     string
}

func (cp *ConstantPool) resolveBootstrapArg(idx uint16) (bootstrapArg, bool) {
	e, err := cp.get(idx)
	if err != nil {
		return bootstrapArg{}, false
	}
	switch e.tag {
	case tagClass:
		name, err := cp.Utf8(e.idx1)
		if err != nil {
			return bootstrapArg{}, false
		}
		return bootstrapArg{isClass: true, classInternal: name}, true
	case tagMethodHandle:
		owner, err := cp.MethodHandleOwner(idx)
		if err != nil {
			return bootstrapArg{}, false
		}
		return bootstrapArg{isMethodHandle: true, handleOwner: owner}, true
	default:
		return bootstrapArg{}, false
	}
}

func parseConstantPool(r *byteReader, count int) (*ConstantPool, error) {
	entries := make([]cpEntry, count)
	for i := 1; i < count; i++ {
		tag, err := r.u1()
		if err != nil {
			return nil, fmt.Errorf("cp entry %d: %w", i, err)
		}
		e := cpEntry{tag: tag}
		switch tag {
		case tagUtf8:
			length, err := r.u2()
			if err != nil {
				return nil, err
			}
			b, err := r.bytes(int(length))
			if err != nil {
				return nil, err
			}
			e.utf8 = decodeModifiedUtf8(b)
		case tagInteger:
			v, err := r.u4()
			if err != nil {
				return nil, err
			}
			e.intVal = int32(v)
		case tagFloat:
			v, err := r.u4()
			if err != nil {
				return nil, err
			}
			e.floatVal = math.Float32frombits(v)
		case tagLong:
			v, err := r.u8()
			if err != nil {
				return nil, err
			}
			e.longVal = int64(v)
		case tagDouble:
			v, err := r.u8()
			if err != nil {
				return nil, err
			}
			e.doubleVal = math.Float64frombits(v)
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			e.idx1 = idx
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			a, err := r.u2()
			if err != nil {
				return nil, err
			}
			b, err := r.u2()
			if err != nil {
				return nil, err
			}
			e.idx1, e.idx2 = a, b
		case tagMethodHandle:
			kind, err := r.u1()
			if err != nil {
				return nil, err
			}
			idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			e.refKind = kind
			e.idx2 = idx
		default:
			return nil, fmt.Errorf("cp entry %d: unknown tag %d", i, tag)
		}
		entries[i] = e
		if tag == tagLong || tag == tagDouble {
			i++ // occupies two slots
		}
	}
	return &ConstantPool{entries: entries}, nil
}

func decodeModifiedUtf8(b []byte) string {
	// Modified UTF-8 differs from standard UTF-8 only for the NUL byte and
	// supplementary characters, neither of which matter for identifiers
	// used as type/member names; treat it as UTF-8.
	return string(b)
}

// byteReader is a tiny cursor over a []byte, returning an error instead of
// panicking on truncated input.
type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(buf []byte) *byteReader {
	return &byteReader{buf: buf}
}

func (r *byteReader) u1() (byte, error) {
	if r.pos+1 > len(r.buf) {
		return 0, fmt.Errorf("unexpected end of class file at offset %d", r.pos)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) u2() (uint16, error) {
	if r.pos+2 > len(r.buf) {
		return 0, fmt.Errorf("unexpected end of class file at offset %d", r.pos)
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *byteReader) u4() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, fmt.Errorf("unexpected end of class file at offset %d", r.pos)
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *byteReader) u8() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, fmt.Errorf("unexpected end of class file at offset %d", r.pos)
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("unexpected end of class file at offset %d", r.pos)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) skip(n int) error {
	if n < 0 || r.pos+n > len(r.buf) {
		return fmt.Errorf("unexpected end of class file at offset %d", r.pos)
	}
	r.pos += n
	return nil
}
