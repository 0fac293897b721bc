// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package elements

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/clustercockpit-labs/dcrunner/internal/msgtype"
	"github.com/clustercockpit-labs/dcrunner/internal/plugin"
)

type stdoutSinkConfig struct {
	Separator string `json:"separator"` // default "\n"
}

type stdoutSink struct {
	separator string
	mu        sync.Mutex
	w         *bufio.Writer
}

func registerStdoutSink(b *plugin.Builder) {
	b.RegisterElement(plugin.Descriptor{
		Name:          "stdoutsink",
		Description:   "Writes every received message's payload to stdout, separated by a configurable separator.",
		ConfigDoc:     `{"separator": "<string, default \"\\n\">"}`,
		RecvPorts:     1,
		SendPorts:     0,
		AcceptedTypes: [][]msgtype.Type{{msgtype.Type{Variant: msgtype.Any}}},
		ProducedTypes: nil,
		Callbacks: plugin.Callbacks{
			New:  stdoutSinkNew,
			Next: stdoutSinkNext,
			Free: stdoutSinkFree,
		},
	})
}

func stdoutSinkNew(configText string) (plugin.Instance, error) {
	cfg := stdoutSinkConfig{Separator: "\n"}
	if configText != "" && configText != "{}" {
		if err := json.Unmarshal([]byte(configText), &cfg); err != nil {
			return nil, fmt.Errorf("stdoutsink: parsing config: %w", err)
		}
	}
	return &stdoutSink{separator: cfg.Separator, w: bufio.NewWriter(os.Stdout)}, nil
}

func stdoutSinkNext(inst plugin.Instance, p plugin.Pipeline, r plugin.Receiver) plugin.StepResult {
	s := inst.(*stdoutSink)

	msg, err := r.Recv(0)
	if err != nil {
		if errors.Is(err, plugin.ErrClosed) {
			s.flush()
			return plugin.StepResult{Kind: plugin.StepClose}
		}
		return plugin.StepResult{Kind: plugin.StepErr, Err: err}
	}

	s.mu.Lock()
	_, writeErr := s.w.Write(msg.AsBytes())
	if writeErr == nil && s.separator != "" {
		_, writeErr = io.WriteString(s.w, s.separator)
	}
	if writeErr == nil {
		writeErr = s.w.Flush()
	}
	s.mu.Unlock()
	msg.Drop()

	if writeErr != nil {
		p.SetErrMessage(writeErr.Error())
		return plugin.StepResult{Kind: plugin.StepErr, Err: writeErr}
	}
	return plugin.StepResult{Kind: plugin.StepMsgBuf}
}

func (s *stdoutSink) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
}

func stdoutSinkFree(inst plugin.Instance) {
	inst.(*stdoutSink).flush()
}
