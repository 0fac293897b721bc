// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package bgprocess

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustercockpit-labs/dcrunner/pkg/schema"
)

func TestRunHooksStopsOnFirstFailure(t *testing.T) {
	err := RunHooks("before_task", []string{"true", "false", "true"})
	assert.Error(t, err)
}

func TestRunHooksRunsAllOnSuccess(t *testing.T) {
	err := RunHooks("after_task", []string{"true", "true"})
	assert.NoError(t, err)
}

func TestStartWithoutWaitSignalReturnsImmediately(t *testing.T) {
	procs, err := Start([]schema.BgProcessConfig{{Command: "sleep 0.2"}}, time.Second)
	require.NoError(t, err)
	require.Len(t, procs, 1)
	procs[0].Stop()
}

func TestParseWaitSignalRejectsUnknown(t *testing.T) {
	_, _, err := parseWaitSignal("sigkill")
	assert.Error(t, err)
}

func TestParseWaitSignalAcceptsKnown(t *testing.T) {
	_, ok, err := parseWaitSignal("sigusr1")
	require.NoError(t, err)
	assert.True(t, ok)
}
