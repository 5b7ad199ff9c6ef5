// Package schema embeds the shamash-asm configuration JSON Schema and
// validates documents against it prior to C3 binding.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Kind selects which embedded schema a document is validated against.
type Kind int

const (
	ASMConfig Kind = iota + 1
)

//go:embed schemas/*
var schemaFiles embed.FS

// Load resolves an "embedFS://" URL against the embedded schema files, so
// jsonschema.Compile can $ref between documents in this package. The URL's
// host and path together name the embedded file (embedFS://schemas/x.json
// opens schemas/x.json). url.Parse lowercases the scheme, so the loader is
// registered under "embedfs".
func Load(s string) (io.ReadCloser, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	return schemaFiles.Open(u.Host + u.Path)
}

func init() {
	jsonschema.Loaders["embedfs"] = Load
}

// Validate checks v — a tree of map[string]any/[]any/scalars such as
// pkg/configsource.LoadYAML produces — against the schema named by k. YAML decodes
// integers as Go int while JSON Schema's numeric checks expect float64, so v
// is round-tripped through encoding/json first to normalize scalar types.
func Validate(k Kind, v any) error {
	var s *jsonschema.Schema
	var err error

	switch k {
	case ASMConfig:
		s, err = jsonschema.Compile("embedFS://schemas/shamash-asm.schema.json")
	default:
		return fmt.Errorf("unknown schema kind")
	}
	if err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}

	normalized, err := normalizeForJSON(v)
	if err != nil {
		return fmt.Errorf("normalizing document: %w", err)
	}

	if err := s.Validate(normalized); err != nil {
		return fmt.Errorf("%#v", err)
	}
	return nil
}

func normalizeForJSON(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
