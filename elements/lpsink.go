// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package elements

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/influxdata/line-protocol/v2/lineprotocol"

	"github.com/clustercockpit-labs/dcrunner/internal/message"
	"github.com/clustercockpit-labs/dcrunner/internal/msgtype"
	"github.com/clustercockpit-labs/dcrunner/internal/plugin"
)

type lpSinkConfig struct {
	Measurement   string   `json:"measurement"`
	FieldName     string   `json:"field_name"`     // default "payload"
	MetadataNames []string `json:"metadata_names"` // written as integer fields
	Path          string   `json:"path"`           // default "-" (stdout)
}

type lpSink struct {
	measurement   string
	fieldName     string
	metadataNames []string
	metadataIDs   []uint32
	idsSet        bool

	mu  sync.Mutex
	w   *bufio.Writer
	out *os.File
}

func registerLPSink(b *plugin.Builder) {
	b.RegisterElement(plugin.Descriptor{
		Name:          "lpsink",
		Description:   "Serializes message payload and metadata to InfluxDB line protocol.",
		ConfigDoc:     `{"measurement": "<string, required>", "field_name": "<string, default \"payload\">", "metadata_names": ["<names written as integer fields>"], "path": "<file path, default stdout>"}`,
		RecvPorts:     1,
		SendPorts:     0,
		AcceptedTypes: [][]msgtype.Type{{msgtype.Type{Variant: msgtype.Any}}},
		ProducedTypes: nil,
		Callbacks: plugin.Callbacks{
			New:  lpSinkNew,
			Next: lpSinkNext,
			Free: lpSinkFree,
		},
	})
}

func lpSinkNew(configText string) (plugin.Instance, error) {
	cfg := lpSinkConfig{FieldName: "payload", Path: "-"}
	if err := json.Unmarshal([]byte(configText), &cfg); err != nil {
		return nil, fmt.Errorf("lpsink: parsing config: %w", err)
	}
	if cfg.Measurement == "" {
		return nil, fmt.Errorf("lpsink: config field 'measurement' is required")
	}

	out := os.Stdout
	if cfg.Path != "" && cfg.Path != "-" {
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("lpsink: opening %s: %w", cfg.Path, err)
		}
		out = f
	}

	return &lpSink{
		measurement:   cfg.Measurement,
		fieldName:     cfg.FieldName,
		metadataNames: cfg.MetadataNames,
		w:             bufio.NewWriter(out),
		out:           out,
	}, nil
}

func lpSinkNext(inst plugin.Instance, p plugin.Pipeline, r plugin.Receiver) plugin.StepResult {
	s := inst.(*lpSink)
	if !s.idsSet {
		s.metadataIDs = make([]uint32, len(s.metadataNames))
		for i, name := range s.metadataNames {
			s.metadataIDs[i] = p.MetadataID(name)
		}
		s.idsSet = true
	}

	msg, err := r.Recv(0)
	if err != nil {
		if errors.Is(err, plugin.ErrClosed) {
			s.flush()
			return plugin.StepResult{Kind: plugin.StepClose}
		}
		return plugin.StepResult{Kind: plugin.StepErr, Err: err}
	}

	line, encErr := s.encode(msg)
	msg.Drop()
	if encErr != nil {
		p.SetErrMessage(encErr.Error())
		return plugin.StepResult{Kind: plugin.StepErr, Err: encErr}
	}

	s.mu.Lock()
	_, writeErr := s.w.Write(line)
	if writeErr == nil {
		writeErr = s.w.Flush()
	}
	s.mu.Unlock()
	if writeErr != nil {
		p.SetErrMessage(writeErr.Error())
		return plugin.StepResult{Kind: plugin.StepErr, Err: writeErr}
	}
	return plugin.StepResult{Kind: plugin.StepMsgBuf}
}

func (s *lpSink) encode(msg message.Message) ([]byte, error) {
	var enc lineprotocol.Encoder
	enc.SetPrecision(lineprotocol.Nanosecond)
	enc.StartLine(s.measurement)
	enc.AddField(s.fieldName, lineprotocol.StringValue(string(msg.AsBytes())))
	for i, name := range s.metadataNames {
		md := msg.GetMetadata(s.metadataIDs[i])
		if md.Kind == message.KindInt {
			enc.AddField(name, lineprotocol.IntValue(md.AsInt()))
		}
	}
	enc.EndLine(time.Now())
	if err := enc.Err(); err != nil {
		return nil, fmt.Errorf("lpsink: encoding line: %w", err)
	}
	return enc.Bytes(), nil
}

func (s *lpSink) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
}

func lpSinkFree(inst plugin.Instance) {
	s := inst.(*lpSink)
	s.flush()
	if s.out != os.Stdout {
		s.out.Close()
	}
}
