// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package elements

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/clustercockpit-labs/dcrunner/internal/message"
	"github.com/clustercockpit-labs/dcrunner/internal/msgtype"
	"github.com/clustercockpit-labs/dcrunner/internal/plugin"
)

// exprEnv is the evaluation environment exposed to a configured
// predicate: payload length and every declared metadata name, read as
// an int64 (0 if the slot is absent or not integer-valued).
type exprEnv struct {
	Len  int            `expr:"len"`
	Meta map[string]int64 `expr:"meta"`
}

type exprFilterConfig struct {
	Expr          string   `json:"expr"`
	MetadataNames []string `json:"metadata_names"`
}

type exprFilter struct {
	program       *vm.Program
	metadataNames []string
	metadataIDs   []uint32
	idsSet        bool
}

func registerExprFilter(b *plugin.Builder) {
	b.RegisterElement(plugin.Descriptor{
		Name:          "exprfilter",
		Description:   "Drops messages for which a configured boolean expr-lang predicate evaluates false.",
		ConfigDoc:     `{"expr": "<expr-lang boolean expression, required>", "metadata_names": ["<names readable as meta.NAME>"]}`,
		RecvPorts:     1,
		SendPorts:     1,
		AcceptedTypes: [][]msgtype.Type{{msgtype.Type{Variant: msgtype.Any}}},
		ProducedTypes: []msgtype.Type{{Variant: msgtype.Any}},
		Callbacks: plugin.Callbacks{
			New:  exprFilterNew,
			Next: exprFilterNext,
			Free: func(plugin.Instance) {},
		},
	})
}

func exprFilterNew(configText string) (plugin.Instance, error) {
	var cfg exprFilterConfig
	if err := json.Unmarshal([]byte(configText), &cfg); err != nil {
		return nil, fmt.Errorf("exprfilter: parsing config: %w", err)
	}
	if cfg.Expr == "" {
		return nil, fmt.Errorf("exprfilter: config field 'expr' is required")
	}
	program, err := expr.Compile(cfg.Expr, expr.Env(exprEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("exprfilter: compiling expression: %w", err)
	}
	return &exprFilter{program: program, metadataNames: cfg.MetadataNames}, nil
}

func exprFilterNext(inst plugin.Instance, p plugin.Pipeline, r plugin.Receiver) plugin.StepResult {
	f := inst.(*exprFilter)
	if !f.idsSet {
		f.metadataIDs = make([]uint32, len(f.metadataNames))
		for i, name := range f.metadataNames {
			f.metadataIDs[i] = p.MetadataID(name)
		}
		f.idsSet = true
	}

	msg, err := r.Recv(0)
	if err != nil {
		if errors.Is(err, plugin.ErrClosed) {
			return plugin.StepResult{Kind: plugin.StepClose}
		}
		return plugin.StepResult{Kind: plugin.StepErr, Err: err}
	}

	env := exprEnv{Len: msg.Len(), Meta: make(map[string]int64, len(f.metadataNames))}
	for i, name := range f.metadataNames {
		md := msg.GetMetadata(f.metadataIDs[i])
		if md.Kind == message.KindInt {
			env.Meta[name] = md.AsInt()
		} else {
			env.Meta[name] = 0
		}
	}

	out, err := expr.Run(f.program, env)
	if err != nil {
		msg.Drop()
		p.SetErrMessage(err.Error())
		return plugin.StepResult{Kind: plugin.StepErr, Err: err}
	}
	keep, _ := out.(bool)
	if !keep {
		msg.Drop()
		return plugin.StepResult{Kind: plugin.StepMsgBuf}
	}

	buf := p.MsgBuf(0)
	for _, md := range msg.Metadata() {
		buf.SetMetadata(md)
	}
	_, writeErr := buf.Write(msg.AsBytes())
	msg.Drop()
	if writeErr != nil {
		p.SetErrMessage(writeErr.Error())
		return plugin.StepResult{Kind: plugin.StepErr, Err: writeErr}
	}
	return plugin.StepResult{Kind: plugin.StepMsgBuf}
}
