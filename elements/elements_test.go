// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package elements

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustercockpit-labs/dcrunner/internal/metadata"
	"github.com/clustercockpit-labs/dcrunner/internal/plugin"
	"github.com/clustercockpit-labs/dcrunner/internal/shutdown"
	"github.com/clustercockpit-labs/dcrunner/internal/taskgroup"
	"github.com/clustercockpit-labs/dcrunner/pkg/schema"
)

func newTestRegistry(t *testing.T) (*plugin.Registry, *metadata.Registry) {
	t.Helper()
	md := metadata.NewRegistry()
	reg := plugin.NewRegistry(md, plugin.DuplicateWarnKeepLast)
	require.NoError(t, reg.RegisterInProcess("dcrunner-elements", Init))
	return reg, md
}

// TestHelloLoopFusesIntoOneGroup exercises spec scenario 1: a
// text source, a stat filter and a stdout sink, linked by SPSC edges,
// should fuse into a single task group with no real channel between
// them.
func TestHelloLoopFusesIntoOneGroup(t *testing.T) {
	reg, md := newTestRegistry(t)

	tasks := []schema.TaskConfig{
		{ID: "src", Element: "textsource", Conf: map[string]any{"text": "hi", "interval": "10ms"}},
		{ID: "stat", Element: "statfilter", From: [][]string{{"src"}}},
		{ID: "snk", Element: "stdoutsink", From: [][]string{{"stat"}}},
	}

	plan, err := taskgroup.Build(tasks, reg, 16)
	require.NoError(t, err)
	require.Len(t, plan.Chains, 1, "three SPSC-linked elements fuse into a single group")

	chain := plan.Chains["snk"]
	require.NotNil(t, chain, "root is the sink: nothing downstream of it")
	assert.Equal(t, []string{"snk", "stat", "src"}, chainIDs(chain))

	coord := shutdown.New(2*time.Second, time.Second)
	ex := taskgroup.NewExecutor(plan, md, coord, 0)

	done := make(chan struct{})
	go func() {
		ex.Run()
		close(done)
	}()

	time.Sleep(150 * time.Millisecond)
	coord.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("executor did not drain after close")
	}
}

func chainIDs(c *taskgroup.Chain) []string {
	ids := make([]string, len(c.Elements))
	for i, e := range c.Elements {
		ids[i] = e.TaskID
	}
	return ids
}

// TestExprFilterDropsNonMatching verifies exprfilter only forwards
// messages whose payload length satisfies the configured predicate.
func TestExprFilterDropsNonMatching(t *testing.T) {
	reg, md := newTestRegistry(t)
	outPath := filepath.Join(t.TempDir(), "out.lp")

	tasks := []schema.TaskConfig{
		{ID: "src", Element: "textsource", Conf: map[string]any{"text": "toolong", "interval": "5ms"}},
		{ID: "filt", Element: "exprfilter", From: [][]string{{"src"}}, Conf: map[string]any{"expr": "len < 3"}},
		{ID: "snk", Element: "lpsink", From: [][]string{{"filt"}}, Conf: map[string]any{"measurement": "m", "path": outPath}},
	}

	plan, err := taskgroup.Build(tasks, reg, 16)
	require.NoError(t, err)

	coord := shutdown.New(2*time.Second, time.Second)
	ex := taskgroup.NewExecutor(plan, md, coord, 0)

	done := make(chan struct{})
	go func() {
		ex.Run()
		close(done)
	}()

	time.Sleep(80 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("pipeline stopped on its own after a message was dropped")
	default:
	}
	coord.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("executor did not drain after close")
	}

	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Empty(t, written, "no message satisfies len < 3, so the sink writes nothing")
}
