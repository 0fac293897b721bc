// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package channel implements the bounded, fan-out transport between
// task groups. One logical sender port may feed several receivers; a
// Sender keeps one underlying Go channel per receiver and clones the
// message to every receiver but the last, which gets the original.
//
// A receiving task group exiting is modeled as context cancellation
// rather than a receiver-side channel close (only a sender may close a
// Go channel): callers pass the group's shutdown context to Send and
// treat ctx.Err() the same as a disconnected downstream.
package channel

import (
	"context"
	"errors"
	"reflect"

	"github.com/clustercockpit-labs/dcrunner/internal/message"
)

// DefaultCapacity is the default per-channel buffer depth when a
// configuration does not override it.
const DefaultCapacity = 16

// ErrDisconnected is returned by Send/Recv/RecvAny once the relevant
// endpoint is closed (upstream done sending) or the caller's context
// is canceled (downstream has exited).
var ErrDisconnected = errors.New("channel: disconnected")

// endpoint is one underlying bounded Go channel, the transport unit
// between exactly one sender and one receiver.
type endpoint chan message.Message

func newEndpoint(capacity int) endpoint {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return make(endpoint, capacity)
}

// Endpoint is the shareable handle to one underlying channel; the
// planner hands these out when wiring a chain's tail to its upstream
// roots, and the scheduler builds a Sender/Receiver pair around them.
type Endpoint = endpoint

// NewEndpoint creates a single endpoint of the given capacity. The
// planner creates one per chain-tail receive port and shares it among
// every upstream sender wired to that port.
func NewEndpoint(capacity int) Endpoint { return newEndpoint(capacity) }

// Sender fans one logical output port out to every downstream
// receiver registered against it.
type Sender struct {
	outs []endpoint
}

// NewFanOut builds a Sender with n fresh downstream endpoints, each of
// the given capacity.
func NewFanOut(n, capacity int) *Sender {
	s := &Sender{outs: make([]endpoint, n)}
	for i := range s.outs {
		s.outs[i] = newEndpoint(capacity)
	}
	return s
}

// NewSender builds a Sender fanning out to a set of endpoints supplied
// by the caller, which may already be shared with other senders — the
// mechanism the planner uses to implement many-to-one fan-in: every
// upstream feeding a given receive port is handed the same endpoint,
// and Go channels accept concurrent writers natively.
func NewSender(endpoints ...Endpoint) *Sender {
	return &Sender{outs: endpoints}
}

// Endpoint exposes the i-th underlying endpoint so a Receiver can be
// built against it.
func (s *Sender) Endpoint(i int) Endpoint { return s.outs[i] }

// Send delivers msg to every registered receiver: a Clone to every
// receiver but the last, and the original to the last, avoiding one
// refcount bump on the common single-receiver path. Send blocks while
// any downstream channel is full, until either every receiver has
// accepted its copy or ctx is canceled.
func (s *Sender) Send(ctx context.Context, msg message.Message) error {
	n := len(s.outs)
	if n == 0 {
		return nil
	}
	for i := 0; i < n-1; i++ {
		if err := sendOne(ctx, s.outs[i], msg.Clone()); err != nil {
			return err
		}
	}
	return sendOne(ctx, s.outs[n-1], msg)
}

func sendOne(ctx context.Context, e endpoint, msg message.Message) error {
	select {
	case e <- msg:
		return nil
	case <-ctx.Done():
		msg.Drop()
		return ErrDisconnected
	}
}

// Close closes every downstream endpoint, signaling receivers that no
// more messages will arrive on this port.
func (s *Sender) Close() {
	for _, e := range s.outs {
		close(e)
	}
}

// Receiver reads from one or more inbound endpoints, one per wired
// upstream task, indexed by receive-port number.
type Receiver struct {
	ports []endpoint
}

// NewReceiver builds a Receiver over the given endpoints.
func NewReceiver(ports ...Endpoint) *Receiver {
	return &Receiver{ports: ports}
}

// Depths reports the number of messages currently buffered on each
// inbound port, used for channel-depth instrumentation.
func (r *Receiver) Depths() []int {
	depths := make([]int, len(r.ports))
	for i, p := range r.ports {
		depths[i] = len(p)
	}
	return depths
}

// Recv blocks on the single endpoint at the given port until a message
// arrives, the endpoint is closed, or ctx is canceled.
func (r *Receiver) Recv(ctx context.Context, port int) (message.Message, error) {
	select {
	case msg, ok := <-r.ports[port]:
		if !ok {
			return message.Message{}, ErrDisconnected
		}
		return msg, nil
	case <-ctx.Done():
		return message.Message{}, ErrDisconnected
	}
}

// RecvAny waits on every inbound port and returns the first message to
// arrive, along with the port it arrived on. No fairness guarantee
// beyond Go's select pseudo-random case choice. A port whose endpoint
// is closed is dropped from the wait set; once every port is closed
// (or ctx is canceled) it returns ErrDisconnected.
func (r *Receiver) RecvAny(ctx context.Context) (int, message.Message, error) {
	live := append([]int(nil), indices(len(r.ports))...)
	for {
		if len(live) == 0 {
			return 0, message.Message{}, ErrDisconnected
		}
		cases := make([]reflect.SelectCase, 0, len(live)+1)
		for _, port := range live {
			cases = append(cases, reflect.SelectCase{
				Dir:  reflect.SelectRecv,
				Chan: reflect.ValueOf(r.ports[port]),
			})
		}
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(ctx.Done()),
		})

		chosen, recv, recvOK := reflect.Select(cases)
		if chosen == len(cases)-1 {
			return 0, message.Message{}, ErrDisconnected
		}
		port := live[chosen]
		if !recvOK {
			live = removeIndex(live, chosen)
			continue
		}
		return port, recv.Interface().(message.Message), nil
	}
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func removeIndex(s []int, i int) []int {
	return append(append([]int(nil), s[:i]...), s[i+1:]...)
}
