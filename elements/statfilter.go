// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package elements

import (
	"errors"
	"sync/atomic"

	"github.com/clustercockpit-labs/dcrunner/internal/message"
	"github.com/clustercockpit-labs/dcrunner/internal/msgtype"
	"github.com/clustercockpit-labs/dcrunner/internal/plugin"
)

// Metadata names stat filter uses; interned at plugin-load time via
// Descriptor.MetadataNames and resolved per instance on first use.
const (
	statCountMetadata = "dcrunner.stat.count"
	statBytesMetadata = "dcrunner.stat.bytes"
)

type statFilter struct {
	countID uint32
	bytesID uint32
	count   atomic.Int64
	bytes   atomic.Int64
	idsSet  bool
}

func registerStatFilter(b *plugin.Builder) {
	b.RegisterElement(plugin.Descriptor{
		Name:          "statfilter",
		Description:   "Pass-through filter recording running message and byte counts as metadata.",
		ConfigDoc:     `{}`,
		RecvPorts:     1,
		SendPorts:     1,
		AcceptedTypes: [][]msgtype.Type{{msgtype.Type{Variant: msgtype.Any}}},
		ProducedTypes: []msgtype.Type{{Variant: msgtype.Any}},
		MetadataNames: []string{statCountMetadata, statBytesMetadata},
		Callbacks: plugin.Callbacks{
			New:  func(string) (plugin.Instance, error) { return &statFilter{}, nil },
			Next: statFilterNext,
			Free: func(plugin.Instance) {},
		},
	})
}

func statFilterNext(inst plugin.Instance, p plugin.Pipeline, r plugin.Receiver) plugin.StepResult {
	s := inst.(*statFilter)
	if !s.idsSet {
		s.countID = p.MetadataID(statCountMetadata)
		s.bytesID = p.MetadataID(statBytesMetadata)
		s.idsSet = true
	}

	msg, err := r.Recv(0)
	if err != nil {
		if errors.Is(err, plugin.ErrClosed) {
			return plugin.StepResult{Kind: plugin.StepClose}
		}
		return plugin.StepResult{Kind: plugin.StepErr, Err: err}
	}

	count := s.count.Add(1)
	byteTotal := s.bytes.Add(int64(msg.Len()))

	buf := p.MsgBuf(0)
	for _, md := range msg.Metadata() {
		buf.SetMetadata(md)
	}
	if _, err := buf.Write(msg.AsBytes()); err != nil {
		msg.Drop()
		p.SetErrMessage(err.Error())
		return plugin.StepResult{Kind: plugin.StepErr, Err: err}
	}
	msg.Drop()

	buf.SetMetadata(message.NewIntMetadata(s.countID, count))
	buf.SetMetadata(message.NewIntMetadata(s.bytesID, byteTotal))
	return plugin.StepResult{Kind: plugin.StepMsgBuf}
}
