package classfile

import "fmt"

// Annotation is a parsed annotation: the internal name of the annotation
// type plus its resolved (unused beyond FQN conversion by the caller) type
// index, element-value pairs are walked but discarded — C1 only needs the
// annotation's type.
type Annotation struct {
	TypeInternalName string
}

// parseAnnotations reads the RuntimeVisibleAnnotations/RuntimeInvisibleAnnotations
// attribute body: num_annotations u2, then that many annotation structures.
func parseAnnotations(r *byteReader, cp *ConstantPool) ([]Annotation, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	out := make([]Annotation, 0, count)
	for i := 0; i < int(count); i++ {
		a, err := parseAnnotation(r, cp)
		if err != nil {
			return nil, fmt.Errorf("annotation %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// parseAnnotation reads one `annotation` structure (JVM SE 17 §4.7.16):
// type_index u2, num_element_value_pairs u2, pairs[].
func parseAnnotation(r *byteReader, cp *ConstantPool) (Annotation, error) {
	typeIdx, err := r.u2()
	if err != nil {
		return Annotation{}, err
	}
	descriptor, err := cp.Utf8(typeIdx)
	if err != nil {
		return Annotation{}, err
	}
	pairCount, err := r.u2()
	if err != nil {
		return Annotation{}, err
	}
	for i := 0; i < int(pairCount); i++ {
		if _, err := r.u2(); err != nil { // element_name_index
			return Annotation{}, err
		}
		if err := skipElementValue(r, cp); err != nil {
			return Annotation{}, err
		}
	}
	return Annotation{TypeInternalName: fieldDescriptorToInternalName(descriptor)}, nil
}

// skipElementValue consumes one `element_value` structure without
// interpreting it; C1 only needs annotation type names, never their
// arguments.
func skipElementValue(r *byteReader, cp *ConstantPool) error {
	tag, err := r.u1()
	if err != nil {
		return err
	}
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		_, err := r.u2()
		return err
	case 'e':
		if _, err := r.u2(); err != nil {
			return err
		}
		_, err := r.u2()
		return err
	case 'c':
		_, err := r.u2()
		return err
	case '@':
		_, err := parseAnnotation(r, cp)
		return err
	case '[':
		n, err := r.u2()
		if err != nil {
			return err
		}
		for i := 0; i < int(n); i++ {
			if err := skipElementValue(r, cp); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown element_value tag %q", tag)
	}
}
