// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package taskgroup

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustercockpit-labs/dcrunner/internal/metadata"
	"github.com/clustercockpit-labs/dcrunner/internal/msgtype"
	"github.com/clustercockpit-labs/dcrunner/internal/plugin"
	"github.com/clustercockpit-labs/dcrunner/internal/shutdown"
	"github.com/clustercockpit-labs/dcrunner/pkg/schema"
)

type countingSource struct {
	remaining int
}

func sourceDescriptor(count int) plugin.Descriptor {
	return plugin.Descriptor{
		Name:          "counting-source",
		RecvPorts:     0,
		SendPorts:     1,
		ProducedTypes: []msgtype.Type{msgtype.MustParse("any")},
		Callbacks: plugin.Callbacks{
			New:  func(string) (plugin.Instance, error) { return &countingSource{remaining: count}, nil },
			Free: func(plugin.Instance) {},
			Next: func(inst plugin.Instance, p plugin.Pipeline, r plugin.Receiver) plugin.StepResult {
				s := inst.(*countingSource)
				if s.remaining <= 0 {
					return plugin.StepResult{Kind: plugin.StepClose}
				}
				s.remaining--
				buf := p.MsgBuf(0)
				buf.Write([]byte("x"))
				return plugin.StepResult{Kind: plugin.StepMsgBuf}
			},
		},
	}
}

type recordingSink struct {
	mu  sync.Mutex
	got [][]byte
}

func TestExecutorRunsFusedSourceToSink(t *testing.T) {
	md := metadata.NewRegistry()
	registry := plugin.NewRegistry(md, plugin.DuplicateWarnKeepLast)

	require.NoError(t, registry.RegisterInProcess("source-plugin", func(b *plugin.Builder) bool {
		return b.RegisterElement(sourceDescriptor(5)) == nil
	}))

	sink := &recordingSink{}
	sinkDesc := plugin.Descriptor{
		Name:          "recording-sink",
		RecvPorts:     1,
		SendPorts:     0,
		AcceptedTypes: [][]msgtype.Type{{msgtype.MustParse("any")}},
		Callbacks: plugin.Callbacks{
			New:  func(string) (plugin.Instance, error) { return sink, nil },
			Free: func(plugin.Instance) {},
			Next: func(inst plugin.Instance, p plugin.Pipeline, r plugin.Receiver) plugin.StepResult {
				s := inst.(*recordingSink)
				msg, err := r.Recv(0)
				if err != nil {
					return plugin.StepResult{Kind: plugin.StepClose}
				}
				s.mu.Lock()
				s.got = append(s.got, append([]byte(nil), msg.AsBytes()...))
				s.mu.Unlock()
				msg.Drop()
				return plugin.StepResult{Kind: plugin.StepMsgBuf}
			},
		},
	}
	require.NoError(t, registry.RegisterInProcess("sink-plugin", func(b *plugin.Builder) bool {
		return b.RegisterElement(sinkDesc) == nil
	}))

	tasks := []schema.TaskConfig{
		{ID: "src", Element: "counting-source"},
		{ID: "snk", Element: "recording-sink", From: [][]string{{"src"}}},
	}

	plan, err := Build(tasks, registry, 16)
	require.NoError(t, err)
	require.Len(t, plan.Chains, 1, "single send/receive edge fuses into one group")

	coord := shutdown.New(2*time.Second, time.Second)
	ex := NewExecutor(plan, md, coord, 0)

	done := make(chan struct{})
	go func() {
		ex.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("executor did not finish after source closed")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.got, 5)
	for _, b := range sink.got {
		assert.Equal(t, []byte("x"), b)
	}
}
