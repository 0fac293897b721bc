// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package elements

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/clustercockpit-labs/dcrunner/internal/msgtype"
	"github.com/clustercockpit-labs/dcrunner/internal/plugin"
)

// pollInterval bounds how long a blocking element-level sleep waits
// between checks of the shutdown flag, so close() is noticed promptly
// even with a long configured interval.
const pollInterval = 50 * time.Millisecond

type textSourceConfig struct {
	Text     string `json:"text"`
	Interval string `json:"interval"` // duration string, default "1s"
}

type textSource struct {
	text     string
	interval time.Duration
}

func registerTextSource(b *plugin.Builder) {
	b.RegisterElement(plugin.Descriptor{
		Name:        "textsource",
		Description: "Emits a configured text message at a fixed interval.",
		ConfigDoc:   `{"text": "<string, required>", "interval": "<duration, default 1s>"}`,
		RecvPorts:   0,
		SendPorts:   1,
		ProducedTypes: []msgtype.Type{
			msgtype.MustParse("mime:text/plain"),
		},
		Callbacks: plugin.Callbacks{
			New:  textSourceNew,
			Next: textSourceNext,
			Free: func(plugin.Instance) {},
		},
	})
}

func textSourceNew(configText string) (plugin.Instance, error) {
	var cfg textSourceConfig
	if err := json.Unmarshal([]byte(configText), &cfg); err != nil {
		return nil, fmt.Errorf("textsource: parsing config: %w", err)
	}
	if cfg.Text == "" {
		return nil, fmt.Errorf("textsource: config field 'text' is required")
	}
	interval := time.Second
	if cfg.Interval != "" {
		d, err := time.ParseDuration(cfg.Interval)
		if err != nil {
			return nil, fmt.Errorf("textsource: parsing interval: %w", err)
		}
		interval = d
	}
	return &textSource{text: cfg.Text, interval: interval}, nil
}

func textSourceNext(inst plugin.Instance, p plugin.Pipeline, _ plugin.Receiver) plugin.StepResult {
	s := inst.(*textSource)

	remaining := s.interval
	for remaining > 0 {
		if p.Closing() {
			return plugin.StepResult{Kind: plugin.StepClose}
		}
		step := pollInterval
		if step > remaining {
			step = remaining
		}
		time.Sleep(step)
		remaining -= step
	}

	buf := p.MsgBuf(0)
	if _, err := buf.Write([]byte(s.text)); err != nil {
		p.SetErrMessage(err.Error())
		return plugin.StepResult{Kind: plugin.StepErr, Err: err}
	}
	return plugin.StepResult{Kind: plugin.StepMsgBuf}
}
