// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ledger

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndHistory(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Record("group-1", "src", EventGroupPlanned, ""))
	require.NoError(t, s.Record("group-1", "src", EventWorkerStarted, ""))
	require.NoError(t, s.Record("group-2", "other", EventGroupPlanned, ""))

	events, err := s.History("group-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, string(EventGroupPlanned), events[0].Kind)
	assert.Equal(t, string(EventWorkerStarted), events[1].Kind)
}

func TestRecentErrorsFiltersAndLimits(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Record("group-1", "flt", EventStepError, "boom 1"))
	require.NoError(t, s.Record("group-1", "flt", EventGroupDrained, ""))
	require.NoError(t, s.Record("group-1", "flt", EventStepError, "boom 2"))

	errs, err := s.RecentErrors(1)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "boom 2", errs[0].Detail)
}

func TestExportProducesGzippedNDJSON(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Record("group-1", "src", EventGroupPlanned, "hello"))

	var buf bytes.Buffer
	require.NoError(t, s.Export(&buf, "group-1"))

	gr, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	defer gr.Close()

	var e Event
	require.NoError(t, json.NewDecoder(gr).Decode(&e))
	assert.Equal(t, "group-1", e.GroupID)
	assert.Equal(t, "hello", e.Detail)
}
