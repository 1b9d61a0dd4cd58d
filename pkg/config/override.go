package config

import (
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/automator/pkg/errors"
)

// ApplyOverride deep-merges a YAML fragment over cfg and returns the merged
// configuration. Mappings merge key by key; scalars and sequences replace.
// cfg itself is not modified.
func ApplyOverride(cfg *Config, override string) (*Config, error) {
	if strings.TrimSpace(override) == "" {
		return cfg, nil
	}

	base, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.NewConfigError("override", "cannot encode configuration", err)
	}
	var baseMap map[string]any
	if err := yaml.Unmarshal(base, &baseMap); err != nil {
		return nil, errors.NewConfigError("override", "cannot decode configuration", err)
	}
	var overMap map[string]any
	if err := yaml.Unmarshal([]byte(override), &overMap); err != nil {
		return nil, errors.WrapParse(string(FormatYAML), "config-override", err)
	}

	merged, err := yaml.Marshal(mergeMaps(baseMap, overMap))
	if err != nil {
		return nil, errors.NewConfigError("override", "cannot encode merged configuration", err)
	}
	result, err := Parse(merged, FormatYAML)
	if err != nil {
		return nil, errors.NewConfigError("override", "merged configuration is invalid", err)
	}
	return result, nil
}

// mergeMaps merges src into dst recursively.
func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, value := range src {
		srcMap, srcIsMap := asMap(value)
		dstMap, dstIsMap := asMap(dst[key])
		if srcIsMap && dstIsMap {
			dst[key] = mergeMaps(dstMap, srcMap)
			continue
		}
		dst[key] = value
	}
	return dst
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		converted := make(map[string]any, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			converted[key] = val
		}
		return converted, true
	}
	return nil, false
}
