// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pluginsource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLocalPathPassesThrough(t *testing.T) {
	path, cleanup, err := Resolve(context.Background(), "/opt/dcrunner/plugins/textsource.so")
	require.NoError(t, err)
	assert.Equal(t, "/opt/dcrunner/plugins/textsource.so", path)
	cleanup()
}

func TestSplitS3URI(t *testing.T) {
	bucket, key, err := splitS3URI("s3://plugins-bucket/prod/textsource.so")
	require.NoError(t, err)
	assert.Equal(t, "plugins-bucket", bucket)
	assert.Equal(t, "prod/textsource.so", key)
}

func TestSplitS3URIRejectsMalformed(t *testing.T) {
	_, _, err := splitS3URI("s3://bucket-only")
	assert.Error(t, err)
}
