// Package configsource decodes configuration text into the untyped tree
// internal/rawconfig.Normalize expects. It is a thin, replaceable outer
// layer: pipeline.Run is its only caller in the core pipeline, and
// pipeline.LoadConfig takes the decoded tree — a caller wanting JSON or
// TOML config text instead of YAML only needs a different Load function
// feeding the same tree shape into pipeline.LoadConfig.
package configsource

import (
	"go.yaml.in/yaml/v3"

	"github.com/aalsanie/shamash-sub001/internal/rawconfig"
)

// LoadYAML decodes a YAML document into the Map/List/Scalar tree the config
// binder walks.
func LoadYAML(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return rawconfig.Normalize(v), nil
}
