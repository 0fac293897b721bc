// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clustercockpit-labs/dcrunner/pkg/schema"
)

// Defaults mirrors the teacher's package-level Keys pattern, but is
// returned rather than mutated in place: dcrunner is embedded as a
// library as often as it is run standalone, so a package-global
// config would make concurrent Load calls interfere with each other.
func Defaults() schema.Config {
	return schema.Config{
		Runner: schema.RunnerConfig{
			ChannelCapacity:    16,
			TerminationTimeout: "10s",
			FinalizerTimeout:   "10s",
			MetadataPadding:    0,
		},
		Plugin: schema.PluginConfig{
			OnDuplicate: "warn",
		},
	}
}

// Load reads the YAML (or JSON, a subset of YAML) document at path,
// substitutes ${VAR} environment references, validates it against the
// embedded schema, and decodes it on top of Defaults.
func Load(path string) (*schema.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse runs the same substitute/validate/decode pipeline as Load
// directly on an in-memory document, used by tests and by callers that
// assemble configuration from something other than a file.
func Parse(raw []byte) (*schema.Config, error) {
	raw = substituteEnv(raw)

	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("config: parsing document: %w", err)
	}
	instance, err := json.Marshal(normalizeForJSON(generic))
	if err != nil {
		return nil, fmt.Errorf("config: re-encoding document for validation: %w", err)
	}
	if err := Validate(documentSchema, instance); err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: decoding document: %w", err)
	}

	if len(cfg.Tasks) == 0 {
		return nil, fmt.Errorf("config: at least one task is required")
	}

	if err := resolveConfFiles(cfg.Tasks); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// resolveConfFiles fills in Conf for any task that named a conf_file
// instead of (or in addition to) an inline conf tree: the file's
// contents are environment-substituted and YAML-decoded exactly like
// the top-level document, then used as that task's element_config. An
// inline conf takes precedence if both are present.
func resolveConfFiles(tasks []schema.TaskConfig) error {
	for i := range tasks {
		t := &tasks[i]
		if t.ConfFile == "" || t.Conf != nil {
			continue
		}
		raw, err := os.ReadFile(t.ConfFile)
		if err != nil {
			return fmt.Errorf("config: task %s: reading conf_file %s: %w", t.ID, t.ConfFile, err)
		}
		raw = substituteEnv(raw)
		var conf any
		if err := yaml.Unmarshal(raw, &conf); err != nil {
			return fmt.Errorf("config: task %s: parsing conf_file %s: %w", t.ID, t.ConfFile, err)
		}
		t.Conf = normalizeForJSON(conf)
	}
	return nil
}

// TerminationTimeout parses the runner's termination_timeout field,
// falling back to the default on an empty or invalid value.
func TerminationTimeout(c *schema.Config) time.Duration {
	return parseDurationOr(c.Runner.TerminationTimeout, 10*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// FinalizerTimeout parses the runner's finalizer_timeout field, falling
// back to the default on an empty or invalid value.
func FinalizerTimeout(c *schema.Config) time.Duration {
	return parseDurationOr(c.Runner.FinalizerTimeout, 10*time.Second)
}

// normalizeForJSON converts the map[interface{}]interface{} that some
// yaml.v3 decode paths still produce for deeply nested documents into
// map[string]interface{}, which encoding/json (and so jsonschema) can
// marshal.
func normalizeForJSON(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[k] = normalizeForJSON(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[fmt.Sprint(k)] = normalizeForJSON(val)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, val := range vv {
			out[i] = normalizeForJSON(val)
		}
		return out
	default:
		return v
	}
}
