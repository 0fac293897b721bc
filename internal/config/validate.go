// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validate compiles schemaText and checks instance against it,
// returning a descriptive error rather than aborting the process: a
// library caller decides for itself whether a bad config is fatal.
func Validate(schemaText string, instance []byte) error {
	sch, err := jsonschema.CompileString("dcrunner-config.json", schemaText)
	if err != nil {
		return fmt.Errorf("config: compiling schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(instance, &v); err != nil {
		return fmt.Errorf("config: decoding instance for validation: %w", err)
	}

	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
