package classfile

import "fmt"

const classMagic = 0xCAFEBABE

// Access flag bits (JVM SE 17 §4.1, §4.5, §4.6). The same bit positions are
// reused with different meanings across class/field/method contexts; callers
// are expected to mask the ones that apply to what they're inspecting.
const (
	AccPublic     uint16 = 0x0001
	AccPrivate    uint16 = 0x0002
	AccProtected  uint16 = 0x0004
	AccStatic     uint16 = 0x0008
	AccFinal      uint16 = 0x0010
	AccSuper      uint16 = 0x0020
	AccSynchronized uint16 = 0x0020
	AccBridge     uint16 = 0x0040
	AccVarargs    uint16 = 0x0080
	AccNative     uint16 = 0x0100
	AccInterface  uint16 = 0x0200
	AccAbstract   uint16 = 0x0400
	AccStrict     uint16 = 0x0800
	AccSynthetic  uint16 = 0x1000
	AccAnnotation uint16 = 0x2000
	AccEnum       uint16 = 0x4000
	AccModule     uint16 = 0x8000
)

// RawField is a class file field_info, resolved just enough for C1.
type RawField struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Annotations []Annotation
}

// RawMethod is a class file method_info, resolved just enough for C1.
type RawMethod struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Annotations []Annotation
	ThrowsTypes []string
	Code        *RawCode
}

// IsMain reports whether this method is a valid program entry point:
// public static void main(String[]).
func (m RawMethod) IsMain() bool {
	return m.Name == "main" &&
		m.AccessFlags&AccPublic != 0 &&
		m.AccessFlags&AccStatic != 0 &&
		IsMainMethodDescriptor(m.Descriptor)
}

// RawClass is a fully parsed class file, resolved just enough for C1's fact
// extraction: the type identity, supertypes, members, and annotations, with
// bytecode-derived events already attached to each method's Code.
type RawClass struct {
	MinorVersion uint16
	MajorVersion uint16
	AccessFlags  uint16
	ThisClass    string
	SuperClass   string // empty for java/lang/Object
	Interfaces   []string
	Fields       []RawField
	Methods      []RawMethod
	Annotations  []Annotation
	SourceFile   string
}

// Parse reads one .class file's bytes into a RawClass. It never panics;
// malformed input always comes back as an error.
func Parse(data []byte) (rc *RawClass, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			rc, err = nil, fmt.Errorf("class file parse panic: %v", rec)
		}
	}()

	r := newByteReader(data)
	magic, err := r.u4()
	if err != nil {
		return nil, err
	}
	if magic != classMagic {
		return nil, fmt.Errorf("not a class file: bad magic 0x%08x", magic)
	}
	minor, err := r.u2()
	if err != nil {
		return nil, err
	}
	major, err := r.u2()
	if err != nil {
		return nil, err
	}

	cpCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	cp, err := parseConstantPool(r, int(cpCount))
	if err != nil {
		return nil, fmt.Errorf("constant pool: %w", err)
	}

	accessFlags, err := r.u2()
	if err != nil {
		return nil, err
	}
	thisIdx, err := r.u2()
	if err != nil {
		return nil, err
	}
	thisClass, err := cp.ClassName(thisIdx)
	if err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}
	superIdx, err := r.u2()
	if err != nil {
		return nil, err
	}
	var superClass string
	if superIdx != 0 {
		superClass, err = cp.ClassName(superIdx)
		if err != nil {
			return nil, fmt.Errorf("super_class: %w", err)
		}
	}

	ifaceCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	interfaces := make([]string, 0, ifaceCount)
	for i := 0; i < int(ifaceCount); i++ {
		idx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := cp.ClassName(idx)
		if err != nil {
			return nil, fmt.Errorf("interface %d: %w", i, err)
		}
		interfaces = append(interfaces, name)
	}

	fieldCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	fields := make([]RawField, 0, fieldCount)
	for i := 0; i < int(fieldCount); i++ {
		f, err := parseFieldInfo(r, cp)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		fields = append(fields, f)
	}

	methodCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	methods := make([]RawMethod, 0, methodCount)
	pendingCode := map[int][]byte{}
	for i := 0; i < int(methodCount); i++ {
		m, codeBody, err := parseMethodInfo(r, cp)
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		if codeBody != nil {
			pendingCode[len(methods)] = codeBody
		}
		methods = append(methods, m)
	}

	classAttrCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	var annotations []Annotation
	var bootstraps []rawBootstrapMethod
	var sourceFile string
	for i := 0; i < int(classAttrCount); i++ {
		name, body, err := readAttributeHeader(r, cp)
		if err != nil {
			return nil, fmt.Errorf("class attribute %d: %w", i, err)
		}
		switch name {
		case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
			as, err := parseAnnotations(newByteReader(body), cp)
			if err != nil {
				return nil, err
			}
			annotations = append(annotations, as...)
		case "BootstrapMethods":
			bootstraps, err = parseBootstrapMethods(body, cp)
			if err != nil {
				return nil, err
			}
		case "SourceFile":
			idx, err := newByteReader(body).u2()
			if err != nil {
				return nil, err
			}
			sourceFile, err = cp.Utf8(idx)
			if err != nil {
				return nil, err
			}
		}
	}

	for idx, body := range pendingCode {
		code, err := parseCodeAttribute(body, cp, bootstraps)
		if err != nil {
			return nil, fmt.Errorf("method %q code: %w", methods[idx].Name, err)
		}
		methods[idx].Code = code
	}

	return &RawClass{
		MinorVersion: minor,
		MajorVersion: major,
		AccessFlags:  accessFlags,
		ThisClass:    thisClass,
		SuperClass:   superClass,
		Interfaces:   interfaces,
		Fields:       fields,
		Methods:      methods,
		Annotations:  annotations,
		SourceFile:   sourceFile,
	}, nil
}

func parseFieldInfo(r *byteReader, cp *ConstantPool) (RawField, error) {
	accessFlags, err := r.u2()
	if err != nil {
		return RawField{}, err
	}
	nameIdx, err := r.u2()
	if err != nil {
		return RawField{}, err
	}
	name, err := cp.Utf8(nameIdx)
	if err != nil {
		return RawField{}, err
	}
	descIdx, err := r.u2()
	if err != nil {
		return RawField{}, err
	}
	descriptor, err := cp.Utf8(descIdx)
	if err != nil {
		return RawField{}, err
	}
	attrCount, err := r.u2()
	if err != nil {
		return RawField{}, err
	}
	var annotations []Annotation
	for i := 0; i < int(attrCount); i++ {
		attrName, body, err := readAttributeHeader(r, cp)
		if err != nil {
			return RawField{}, err
		}
		if attrName == "RuntimeVisibleAnnotations" || attrName == "RuntimeInvisibleAnnotations" {
			as, err := parseAnnotations(newByteReader(body), cp)
			if err != nil {
				return RawField{}, err
			}
			annotations = append(annotations, as...)
		}
	}
	return RawField{AccessFlags: accessFlags, Name: name, Descriptor: descriptor, Annotations: annotations}, nil
}

// parseMethodInfo returns the parsed method plus, when present, the raw body
// of its Code attribute — not parsed yet, since invokedynamic resolution
// needs the class-level BootstrapMethods attribute that comes later in the
// file.
func parseMethodInfo(r *byteReader, cp *ConstantPool) (RawMethod, []byte, error) {
	accessFlags, err := r.u2()
	if err != nil {
		return RawMethod{}, nil, err
	}
	nameIdx, err := r.u2()
	if err != nil {
		return RawMethod{}, nil, err
	}
	name, err := cp.Utf8(nameIdx)
	if err != nil {
		return RawMethod{}, nil, err
	}
	descIdx, err := r.u2()
	if err != nil {
		return RawMethod{}, nil, err
	}
	descriptor, err := cp.Utf8(descIdx)
	if err != nil {
		return RawMethod{}, nil, err
	}
	attrCount, err := r.u2()
	if err != nil {
		return RawMethod{}, nil, err
	}
	var annotations []Annotation
	var throwsTypes []string
	var codeBody []byte
	for i := 0; i < int(attrCount); i++ {
		attrName, body, err := readAttributeHeader(r, cp)
		if err != nil {
			return RawMethod{}, nil, err
		}
		switch attrName {
		case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
			as, err := parseAnnotations(newByteReader(body), cp)
			if err != nil {
				return RawMethod{}, nil, err
			}
			annotations = append(annotations, as...)
		case "Code":
			codeBody = body
		case "Exceptions":
			throwsTypes, err = parseExceptionsAttribute(body, cp)
			if err != nil {
				return RawMethod{}, nil, err
			}
		}
	}
	return RawMethod{
		AccessFlags: accessFlags,
		Name:        name,
		Descriptor:  descriptor,
		Annotations: annotations,
		ThrowsTypes: throwsTypes,
	}, codeBody, nil
}

func parseExceptionsAttribute(body []byte, cp *ConstantPool) ([]string, error) {
	r := newByteReader(body)
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		idx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := cp.ClassName(idx)
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

func parseBootstrapMethods(body []byte, cp *ConstantPool) ([]rawBootstrapMethod, error) {
	r := newByteReader(body)
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	out := make([]rawBootstrapMethod, 0, count)
	for i := 0; i < int(count); i++ {
		handleIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		owner, err := cp.MethodHandleOwner(handleIdx)
		if err != nil {
			return nil, err
		}
		argCount, err := r.u2()
		if err != nil {
			return nil, err
		}
		var types []string
		for j := 0; j < int(argCount); j++ {
			argIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			if arg, ok := cp.resolveBootstrapArg(argIdx); ok {
				if arg.isClass {
					types = append(types, arg.classInternal)
				}
				if arg.isMethodHandle {
					types = append(types, arg.handleOwner)
				}
			}
		}
		out = append(out, rawBootstrapMethod{handleOwner: owner, argTypes: types})
	}
	return out, nil
}

// readAttributeHeader reads one generic attribute_info (name + length +
// body), leaving interpretation of the body to the caller.
func readAttributeHeader(r *byteReader, cp *ConstantPool) (string, []byte, error) {
	nameIdx, err := r.u2()
	if err != nil {
		return "", nil, err
	}
	name, err := cp.Utf8(nameIdx)
	if err != nil {
		return "", nil, err
	}
	length, err := r.u4()
	if err != nil {
		return "", nil, err
	}
	body, err := r.bytes(int(length))
	if err != nil {
		return "", nil, err
	}
	return name, body, nil
}
