// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"os"
	"regexp"

	"github.com/clustercockpit-labs/dcrunner/pkg/dclog"
)

// envPattern matches `${VAR_NAME}` occurrences in a raw config
// document, the same grammar the original env-replace pass used.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnv replaces every ${VAR} reference in raw with the
// current value of the named environment variable, logging and
// substituting the empty string for anything unset.
func substituteEnv(raw []byte) []byte {
	return envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		val, ok := os.LookupEnv(string(name))
		if !ok {
			dclog.Infof("config: environment variable %q not set, substituting empty string", name)
			return nil
		}
		return []byte(val)
	})
}
