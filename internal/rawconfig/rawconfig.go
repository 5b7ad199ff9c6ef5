// Package rawconfig provides Normalize, which brings any decoded document
// (YAML, JSON, ...) into the untyped map[string]any / []any / scalar tree
// the config binder (C3) walks; the package declares no tree type of its own. Parsing text into this tree is an
// external concern — see pkg/configsource — the core pipeline only ever
// consumes the tree itself.
package rawconfig

// Normalize walks a decoded document converting any map[any]any entries (a
// legacy yaml.v2 shape some decoders still produce for nested anchors) into
// map[string]any, so the binder never has to special-case key types.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if ks, ok := k.(string); ok {
				out[ks] = Normalize(val)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	default:
		return v
	}
}
