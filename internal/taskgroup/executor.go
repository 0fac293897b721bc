// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package taskgroup

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/clustercockpit-labs/dcrunner/internal/channel"
	"github.com/clustercockpit-labs/dcrunner/internal/message"
	"github.com/clustercockpit-labs/dcrunner/internal/metadata"
	"github.com/clustercockpit-labs/dcrunner/internal/metrics"
	"github.com/clustercockpit-labs/dcrunner/internal/pipeline"
	"github.com/clustercockpit-labs/dcrunner/internal/plugin"
	"github.com/clustercockpit-labs/dcrunner/internal/receiver"
	"github.com/clustercockpit-labs/dcrunner/internal/shutdown"
	"github.com/clustercockpit-labs/dcrunner/pkg/dclog"
)

// Executor drives every root task group in the plan, one goroutine
// per group, until the shutdown coordinator's flag is set and every
// group has drained.
type Executor struct {
	plan        *Plan
	metadata    *metadata.Registry
	coordinator *shutdown.Coordinator
	padding     int
	ctx         context.Context
}

// NewExecutor builds an Executor whose internal cancellation context
// is tied to coord: every blocking channel operation a group performs
// unblocks as soon as coord.Close is called.
func NewExecutor(plan *Plan, md *metadata.Registry, coord *shutdown.Coordinator, padding int) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-coord.Done()
		cancel()
	}()
	return &Executor{plan: plan, metadata: md, coordinator: coord, padding: padding, ctx: ctx}
}

// Run spawns one worker goroutine per root task group and blocks until
// every group has exited.
func (ex *Executor) Run() {
	var wg sync.WaitGroup
	for rootID, chain := range ex.plan.Chains {
		wg.Add(1)
		go ex.runGroup(rootID, chain, &wg)
	}
	wg.Wait()
}

type builtElement struct {
	taskID     string
	descriptor plugin.Descriptor
	instance   plugin.Instance
	pipeline   *pipeline.Handle
}

func (ex *Executor) runGroup(rootID string, chain *Chain, wg *sync.WaitGroup) {
	defer wg.Done()
	metrics.GroupState.WithLabelValues(rootID).Set(metrics.GroupStatePlanned)
	defer metrics.GroupState.WithLabelValues(rootID).Set(metrics.GroupStateDrained)

	n := len(chain.Elements)
	builts := make([]*builtElement, n)
	for i := n - 1; i >= 0; i-- {
		e := chain.Elements[i]
		inst, err := e.Descriptor.Callbacks.New(e.ConfigText)
		if err != nil {
			dclog.Errorf("taskgroup: task %s: construction failed: %v", e.TaskID, err)
			ex.coordinator.Close()
			return
		}
		builts[i] = &builtElement{
			taskID:     e.TaskID,
			descriptor: e.Descriptor,
			instance:   inst,
			pipeline:   pipeline.New(e.TaskID, e.Descriptor.SendPorts, ex.padding, ex.metadata, ex.coordinator, e.DownstreamAccepted),
		}
	}

	for _, b := range builts {
		if b.descriptor.Callbacks.FinalizerBuilder == nil {
			continue
		}
		if fin, ok := b.descriptor.Callbacks.FinalizerBuilder(b.instance); ok {
			taskID, ctx := b.taskID, fin.Ctx
			fn := fin.Fn
			ex.coordinator.RegisterFinalizer(shutdown.Finalizer{
				TaskID: taskID,
				Fn:     func() error { return fn(ctx) },
			})
		}
	}

	defer func() {
		for _, b := range builts {
			b.descriptor.Callbacks.Free(b.instance)
		}
	}()

	recv, tailChRecv := ex.buildTailReceiver(rootID, builts[n-1])
	go sampleChannelDepth(ex.ctx, rootID, tailChRecv)
	for i := n - 2; i >= 0; i-- {
		child := builts[i+1]
		childRecv := recv
		recv = receiver.NewChild(ex.ctx, func() (message.Message, bool) {
			return ex.stepChild(child, childRecv)
		})
	}

	head := builts[0]
	sendEndpoints := ex.plan.SendEndpoints[rootID]
	senders := make([]*channel.Sender, len(sendEndpoints))
	for i, eps := range sendEndpoints {
		senders[i] = channel.NewSender(eps...)
	}
	// Endpoints are not closed here: a fan-in destination may be shared
	// by several root producers, and only a sender may close a Go
	// channel without panicking the others. Termination instead
	// propagates through ex.ctx, canceled once any group requests
	// shutdown.

	metrics.GroupState.WithLabelValues(rootID).Set(metrics.GroupStateRunning)
	for !ex.coordinator.Closing() {
		result := head.descriptor.Callbacks.Next(head.instance, head.pipeline, recv)
		outs, done := stepOutputs(head, result)
		if len(senders) == 0 && len(outs) > 0 {
			dclog.Errorf("taskgroup: task %s produced a message but has no outbound channels", head.taskID)
			for _, o := range outs {
				o.msg.Drop()
			}
		}
		for _, o := range outs {
			if o.port < 0 || o.port >= len(senders) {
				dclog.Errorf("taskgroup: task %s produced on out-of-range port %d", head.taskID, o.port)
				o.msg.Drop()
				continue
			}
			if err := senders[o.port].Send(ex.ctx, o.msg); err != nil {
				dclog.Infof("taskgroup: task %s: downstream disconnected", head.taskID)
				done = true
				continue
			}
			metrics.MessagesForwarded.WithLabelValues(head.taskID, strconv.Itoa(o.port)).Inc()
		}
		if done {
			break
		}
	}
	ex.coordinator.Close()
}

func (ex *Executor) buildTailReceiver(rootID string, tail *builtElement) (*receiver.Handle, *channel.Receiver) {
	if tail.descriptor.RecvPorts == 0 {
		return receiver.NewEmpty(), nil
	}
	endpoints := ex.plan.RecvEndpoints[rootID]
	chRecv := channel.NewReceiver(endpoints...)
	return receiver.NewChannel(ex.ctx, chRecv), chRecv
}

// sampleChannelDepth periodically reports the tail receiver's buffered
// message counts until ctx is canceled.
func sampleChannelDepth(ctx context.Context, taskID string, chRecv *channel.Receiver) {
	if chRecv == nil {
		return
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for port, depth := range chRecv.Depths() {
				metrics.ChannelDepth.WithLabelValues(taskID, strconv.Itoa(port)).Set(float64(depth))
			}
		}
	}
}

// stepChild steps a fused non-head element until it produces a
// message or finishes, and converts the outcome into the (message,
// produced) pair a Child receiver hands back to its downstream caller.
// Steps that produce nothing (a filter dropping its input) are
// repeated; only Close, Err or shutdown yield produced=false.
func (ex *Executor) stepChild(b *builtElement, recv *receiver.Handle) (message.Message, bool) {
	for !ex.coordinator.Closing() {
		result := b.descriptor.Callbacks.Next(b.instance, b.pipeline, recv)
		outs, done := stepOutputs(b, result)
		if done {
			return message.Message{}, false
		}
		if len(outs) > 0 {
			return outs[0].msg, true
		}
	}
	return message.Message{}, false
}

type producedMsg struct {
	port int
	msg  message.Message
}

// stepOutputs interprets a StepResult uniformly for both root and
// fused elements: Close/Err terminate (done=true, no output); Msg
// yields the explicit result message; MsgBuf yields one message per
// send-port buffer touched during the step.
func stepOutputs(b *builtElement, result plugin.StepResult) (out []producedMsg, done bool) {
	switch result.Kind {
	case plugin.StepClose:
		dclog.Infof("taskgroup: task %s closed", b.taskID)
		return nil, true
	case plugin.StepErr:
		text := b.pipeline.ErrMessage()
		if text == "" && result.Err != nil {
			text = result.Err.Error()
		}
		dclog.Errorf("taskgroup: task %s: %s", b.taskID, text)
		return nil, true
	case plugin.StepMsg:
		port, msg, ok := b.pipeline.TakeResultMessage()
		if !ok {
			dclog.Errorf("taskgroup: task %s returned a Msg result without calling SetResultMessage", b.taskID)
			return nil, false
		}
		return []producedMsg{{port: port, msg: msg}}, false
	case plugin.StepMsgBuf:
		var out []producedMsg
		for port := 0; port < b.pipeline.NumBuffers(); port++ {
			buf := b.pipeline.Buffer(port)
			if buf.Touched() {
				out = append(out, producedMsg{port: port, msg: buf.Take()})
			}
		}
		return out, false
	default:
		dclog.Errorf("taskgroup: task %s returned an unrecognized step result", b.taskID)
		return nil, false
	}
}
