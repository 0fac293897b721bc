// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package receiver implements the per-step receive API an element's
// Next callback uses to pull its input. Three shapes exist: a source
// element has no receive ports at all (Empty), a fused non-head link
// reads by invoking its upstream's step function inline (Child), and a
// chain head or tail with real upstream channels reads from them
// directly (Channel).
package receiver

import (
	"context"
	"errors"

	"github.com/clustercockpit-labs/dcrunner/internal/channel"
	"github.com/clustercockpit-labs/dcrunner/internal/message"
	"github.com/clustercockpit-labs/dcrunner/internal/plugin"
)

// ErrEmptyReceive is returned by every call on an Empty receiver: a
// source element that never has a receive port must never call Recv.
var ErrEmptyReceive = errors.New("receiver: recv called on a source element with no receive ports")

// ErrInvalidChildPort is returned when Recv is called with any port
// other than 0 on a Child receiver: only one logical link exists
// between fused elements.
var ErrInvalidChildPort = errors.New("receiver: child receivers only expose port 0")

// StepFn runs one step of the upstream element fused into this chain
// and reports whether it produced a message on its single send port:
// false covers both StepClose and StepErr, converted to plugin.ErrClosed
// by Recv so the caller cannot distinguish a deliberate close from an
// inline upstream error — matching the documented ReceiveError-as-Close
// contract.
type StepFn func() (msg message.Message, produced bool)

// Handle implements plugin.Receiver. Exactly one of child or channel
// is set; the zero value (both nil) is the Empty variant.
type Handle struct {
	ctx     context.Context
	child   StepFn
	channel *channel.Receiver
}

// NewEmpty returns a Receiver for an element with zero receive ports.
func NewEmpty() *Handle { return &Handle{} }

// NewChild returns a Receiver whose single port 0 runs step inline
// whenever something downstream asks for a message.
func NewChild(ctx context.Context, step StepFn) *Handle {
	return &Handle{ctx: ctx, child: step}
}

// NewChannel returns a Receiver backed by real inbound channels, one
// per receive port.
func NewChannel(ctx context.Context, ch *channel.Receiver) *Handle {
	return &Handle{ctx: ctx, channel: ch}
}

// Recv implements plugin.Receiver.
func (h *Handle) Recv(port int) (message.Message, error) {
	switch {
	case h.child != nil:
		if port != 0 {
			return message.Message{}, ErrInvalidChildPort
		}
		msg, produced := h.child()
		if !produced {
			return message.Message{}, plugin.ErrClosed
		}
		return msg, nil
	case h.channel != nil:
		msg, err := h.channel.Recv(h.ctx, port)
		if err != nil {
			return message.Message{}, asReceiveClose(err)
		}
		return msg, nil
	default:
		return message.Message{}, ErrEmptyReceive
	}
}

// RecvAny implements plugin.Receiver. On a Child receiver it behaves
// like Recv(0); on Empty it always fails.
func (h *Handle) RecvAny() (int, message.Message, error) {
	switch {
	case h.child != nil:
		msg, err := h.Recv(0)
		return 0, msg, err
	case h.channel != nil:
		port, msg, err := h.channel.RecvAny(h.ctx)
		if err != nil {
			return port, message.Message{}, asReceiveClose(err)
		}
		return port, msg, nil
	default:
		return 0, message.Message{}, ErrEmptyReceive
	}
}

// asReceiveClose converts a disconnected-channel error into
// plugin.ErrClosed, the sentinel an element's Next treats as normal
// upstream completion. It uses errors.Is, so a disconnection wrapped
// at any depth inside another error is still recognized.
func asReceiveClose(err error) error {
	if errors.Is(err, channel.ErrDisconnected) {
		return plugin.ErrClosed
	}
	return err
}
