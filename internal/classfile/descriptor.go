package classfile

import "strings"

// fieldDescriptorToInternalName strips a field descriptor's 'L' ... ';'
// wrapper. Annotation type_index entries are always object descriptors.
func fieldDescriptorToInternalName(descriptor string) string {
	d := strings.TrimPrefix(descriptor, "[")
	d = strings.TrimPrefix(d, "L")
	return strings.TrimSuffix(d, ";")
}

// ResolvedType is a type parsed out of a descriptor, already decayed per
// spec §3: primitives and void never appear, array component types decay to
// their eventual object type, and a primitive (or primitive-array)
// descriptor resolves to Ok == false so the caller skips it.
type ResolvedType struct {
	InternalName string
	Ok           bool
}

// parseFieldDescriptor parses exactly one FieldDescriptor (JVM SE 17 §4.3.2),
// decaying arrays to their component type.
func parseFieldDescriptor(descriptor string) ResolvedType {
	d := descriptor
	for strings.HasPrefix(d, "[") {
		d = d[1:]
	}
	if strings.HasPrefix(d, "L") && strings.HasSuffix(d, ";") {
		return ResolvedType{InternalName: d[1 : len(d)-1], Ok: true}
	}
	return ResolvedType{} // primitive base type, not an object
}

// parseMethodDescriptor splits a MethodDescriptor into parameter and return
// types, decaying each like parseFieldDescriptor and dropping primitives.
func parseMethodDescriptor(descriptor string) (params []ResolvedType, ret ResolvedType, err error) {
	i := strings.IndexByte(descriptor, '(')
	j := strings.IndexByte(descriptor, ')')
	if i != 0 || j < 0 || j >= len(descriptor) {
		return nil, ResolvedType{}, errDescriptor(descriptor)
	}
	paramsPart := descriptor[i+1 : j]
	returnPart := descriptor[j+1:]

	for k := 0; k < len(paramsPart); {
		start := k
		for k < len(paramsPart) && paramsPart[k] == '[' {
			k++
		}
		if k >= len(paramsPart) {
			return nil, ResolvedType{}, errDescriptor(descriptor)
		}
		switch paramsPart[k] {
		case 'L':
			end := strings.IndexByte(paramsPart[k:], ';')
			if end < 0 {
				return nil, ResolvedType{}, errDescriptor(descriptor)
			}
			k = k + end + 1
		default:
			k++
		}
		params = append(params, parseFieldDescriptor(paramsPart[start:k]))
	}

	if returnPart == "V" {
		return params, ResolvedType{}, nil
	}
	return params, parseFieldDescriptor(returnPart), nil
}

// ParseFieldDescriptorExported exposes parseFieldDescriptor to other
// packages (internal/extractor builds TypeRefs from its result).
func ParseFieldDescriptorExported(descriptor string) ResolvedType {
	return parseFieldDescriptor(descriptor)
}

// ParseMethodDescriptorExported exposes parseMethodDescriptor to other
// packages.
func ParseMethodDescriptorExported(descriptor string) ([]ResolvedType, ResolvedType, error) {
	return parseMethodDescriptor(descriptor)
}

func errDescriptor(descriptor string) error {
	return &descriptorError{descriptor: descriptor}
}

type descriptorError struct {
	descriptor string
}

func (e *descriptorError) Error() string {
	return "malformed method descriptor: " + e.descriptor
}

// IsMainMethodDescriptor reports whether descriptor is exactly
// "([Ljava/lang/String;)V", the descriptor required for a main method.
func IsMainMethodDescriptor(descriptor string) bool {
	return descriptor == "([Ljava/lang/String;)V"
}
