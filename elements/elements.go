// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package elements bundles a minimal, in-process-registered element
// set used to make a dcrunner pipeline runnable without an external
// plugin: a text source, a counting filter, a stdout sink, an
// expression-predicate filter, and two recorder sinks (InfluxDB line
// protocol, Avro). They register through the same plugin.Builder API
// an out-of-process shared-library plugin uses, exercised here with
// Registry.RegisterInProcess instead of LoadSharedLibrary.
package elements

import "github.com/clustercockpit-labs/dcrunner/internal/plugin"

// Init registers every bundled element with b. It is called from
// cmd/dcrunner via Registry.RegisterInProcess("dcrunner-elements", elements.Init)
// and matches plugin.InitFunc's signature exactly, so a reference
// element set looks, to the registry, like any other plugin.
func Init(b *plugin.Builder) bool {
	b.SetName("dcrunner-elements").
		SetFrameworkVersion("1.0.0").
		SetAuthors("dcrunner contributors")

	registerTextSource(b)
	registerStatFilter(b)
	registerStdoutSink(b)
	registerExprFilter(b)
	registerLPSink(b)
	registerAvroRecorder(b)
	return true
}
