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

	"github.com/linkedin/goavro/v2"

	"github.com/clustercockpit-labs/dcrunner/internal/msgtype"
	"github.com/clustercockpit-labs/dcrunner/internal/plugin"
)

type avroRecorderConfig struct {
	Schema    string `json:"schema"`     // Avro record schema JSON, required
	FieldName string `json:"field_name"` // record field holding the payload, default "payload"
	Path      string `json:"path"`       // output .avro file, required
}

type avroRecorder struct {
	fieldName string
	codec     *goavro.Codec
	file      *os.File
	writer    *bufio.Writer
	ocf       *goavro.OCFWriter
	mu        sync.Mutex
}

func registerAvroRecorder(b *plugin.Builder) {
	b.RegisterElement(plugin.Descriptor{
		Name:          "avrorecorder",
		Description:   "Appends every received message's payload as an Avro record to an object container file.",
		ConfigDoc:     `{"schema": "<avro record schema JSON, required>", "field_name": "<string, default \"payload\">", "path": "<output .avro file, required>"}`,
		RecvPorts:     1,
		SendPorts:     0,
		AcceptedTypes: [][]msgtype.Type{{msgtype.Type{Variant: msgtype.Any}}},
		ProducedTypes: nil,
		Callbacks: plugin.Callbacks{
			New:  avroRecorderNew,
			Next: avroRecorderNext,
			Free: avroRecorderFree,
		},
	})
}

func avroRecorderNew(configText string) (plugin.Instance, error) {
	cfg := avroRecorderConfig{FieldName: "payload"}
	if err := json.Unmarshal([]byte(configText), &cfg); err != nil {
		return nil, fmt.Errorf("avrorecorder: parsing config: %w", err)
	}
	if cfg.Schema == "" || cfg.Path == "" {
		return nil, fmt.Errorf("avrorecorder: config fields 'schema' and 'path' are required")
	}

	codec, err := goavro.NewCodec(cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("avrorecorder: compiling schema: %w", err)
	}

	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("avrorecorder: opening %s: %w", cfg.Path, err)
	}

	w := bufio.NewWriter(f)
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: goavro.CompressionDeflateLabel,
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("avrorecorder: creating OCF writer: %w", err)
	}

	return &avroRecorder{
		fieldName: cfg.FieldName,
		codec:     codec,
		file:      f,
		writer:    w,
		ocf:       ocf,
	}, nil
}

func avroRecorderNext(inst plugin.Instance, p plugin.Pipeline, r plugin.Receiver) plugin.StepResult {
	a := inst.(*avroRecorder)

	msg, err := r.Recv(0)
	if err != nil {
		if errors.Is(err, plugin.ErrClosed) {
			a.flush()
			return plugin.StepResult{Kind: plugin.StepClose}
		}
		return plugin.StepResult{Kind: plugin.StepErr, Err: err}
	}

	record := map[string]interface{}{a.fieldName: append([]byte(nil), msg.AsBytes()...)}
	msg.Drop()

	a.mu.Lock()
	appendErr := a.ocf.Append([]interface{}{record})
	if appendErr == nil {
		appendErr = a.writer.Flush()
	}
	a.mu.Unlock()
	if appendErr != nil {
		p.SetErrMessage(appendErr.Error())
		return plugin.StepResult{Kind: plugin.StepErr, Err: appendErr}
	}
	return plugin.StepResult{Kind: plugin.StepMsgBuf}
}

func (a *avroRecorder) flush() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writer.Flush()
}

func avroRecorderFree(inst plugin.Instance) {
	a := inst.(*avroRecorder)
	a.flush()
	a.file.Close()
}
