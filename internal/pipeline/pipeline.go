// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipeline implements the per-step context an element's Next
// callback uses to acquire its output buffers, consult or request
// shutdown, record an error or explicit result message, and resolve
// metadata names to interned ids.
package pipeline

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/clustercockpit-labs/dcrunner/internal/message"
	"github.com/clustercockpit-labs/dcrunner/internal/metadata"
	"github.com/clustercockpit-labs/dcrunner/internal/msgbuf"
	"github.com/clustercockpit-labs/dcrunner/internal/msgtype"
	"github.com/clustercockpit-labs/dcrunner/internal/plugin"
	"github.com/clustercockpit-labs/dcrunner/internal/shutdown"
	"github.com/clustercockpit-labs/dcrunner/pkg/dclog"
)

// recheckCacheSize bounds the per-Handle re-check cache; a send port
// that oscillates between more distinct produced types than this will
// simply pay the validation cost again on eviction.
const recheckCacheSize = 64

// Handle is the concrete implementation of plugin.Pipeline passed to
// an element's Next callback on every step. One Handle is built per
// element instance and reused across the element's whole lifetime.
type Handle struct {
	taskID      string
	buffers     []*msgbuf.Buffer
	metadata    *metadata.Registry
	coordinator *shutdown.Coordinator

	// downstreamAccepted[port] lists every consumer's accepted-type set
	// for that send port; RecheckType passes only when every consumer
	// accepts the produced type.
	downstreamAccepted [][][]msgtype.Type
	recheckCache       []*lru.Cache[string, bool]

	errMsg     string
	hasResult  bool
	resultPort int
	resultMsg  message.Message
}

// New builds a Handle with one MessageBuffer per send port. padding is
// the engine-wide metadata-padding setting applied to every buffer's
// Take. downstreamAccepted carries, for each send port, the accepted-
// type list of every consumer wired to that port, used by RecheckType.
func New(taskID string, sendPorts int, padding int, md *metadata.Registry, coord *shutdown.Coordinator, downstreamAccepted [][][]msgtype.Type) *Handle {
	buffers := make([]*msgbuf.Buffer, sendPorts)
	caches := make([]*lru.Cache[string, bool], sendPorts)
	for i := range buffers {
		buffers[i] = msgbuf.New(padding)
		caches[i], _ = lru.New[string, bool](recheckCacheSize)
	}
	return &Handle{
		taskID:             taskID,
		buffers:            buffers,
		metadata:           md,
		coordinator:        coord,
		downstreamAccepted: downstreamAccepted,
		recheckCache:       caches,
	}
}

// MsgBuf returns the write handle for the given send port.
func (h *Handle) MsgBuf(port int) plugin.MessageBuffer {
	return h.buffers[port]
}

// MsgBufPorts returns distinct write handles for several send ports at
// once; it panics if any port is repeated, matching the one-handle-
// per-port invariant elements rely on.
func (h *Handle) MsgBufPorts(ports ...int) []plugin.MessageBuffer {
	seen := make(map[int]bool, len(ports))
	out := make([]plugin.MessageBuffer, len(ports))
	for i, p := range ports {
		if seen[p] {
			panic(fmt.Sprintf("pipeline: port %d requested more than once in the same MsgBufPorts call", p))
		}
		seen[p] = true
		out[i] = h.buffers[p]
	}
	return out
}

// Buffer exposes the concrete *msgbuf.Buffer for a send port, used by
// the executor after a MsgBuf step result to decide which ports were
// touched and need sealing.
func (h *Handle) Buffer(port int) *msgbuf.Buffer { return h.buffers[port] }

// NumBuffers reports the number of send-port buffers this Handle owns.
func (h *Handle) NumBuffers() int { return len(h.buffers) }

// Closing reports whether the engine-wide shutdown flag is set.
func (h *Handle) Closing() bool { return h.coordinator.Closing() }

// RequestClose sets the engine-wide shutdown flag.
func (h *Handle) RequestClose() { h.coordinator.Close() }

// SetErrMessage stores the text an element wants logged when its step
// returns StepErr.
func (h *Handle) SetErrMessage(msg string) { h.errMsg = msg }

// ErrMessage returns the text last stored by SetErrMessage.
func (h *Handle) ErrMessage() string { return h.errMsg }

// SetResultMessage records an explicit message consumed by the
// executor on a StepMsg result, bypassing the MessageBuffer path.
func (h *Handle) SetResultMessage(port int, msg message.Message) {
	h.resultPort = port
	h.resultMsg = msg
	h.hasResult = true
}

// TakeResultMessage returns and clears the message last recorded by
// SetResultMessage, if any.
func (h *Handle) TakeResultMessage() (port int, msg message.Message, ok bool) {
	if !h.hasResult {
		return 0, message.Message{}, false
	}
	h.hasResult = false
	return h.resultPort, h.resultMsg, true
}

// MetadataID resolves name to its interned id. MetadataIds are
// registered only at plugin-load time, so an unknown name here is an
// element bug; it is logged and 0 (the reserved/invalid id) returned
// rather than panicking a worker thread.
func (h *Handle) MetadataID(name string) uint32 {
	id, ok := h.metadata.Lookup(name)
	if !ok {
		dclog.Errorf("pipeline: task %s requested unknown metadata name %q", h.taskID, name)
		return 0
	}
	return id
}

// RecheckType lets an element override its declared produced type for
// one send port at run time; the runtime compares it against every
// wired consumer's accepted types once per distinct value and caches
// the verdict, so repeated calls with the same type are free.
func (h *Handle) RecheckType(port int, produced msgtype.Type) bool {
	if port < 0 || port >= len(h.buffers) {
		dclog.Errorf("pipeline: task %s: RecheckType on out-of-range port %d", h.taskID, port)
		return false
	}
	key := produced.String()
	if v, ok := h.recheckCache[port].Get(key); ok {
		return v
	}

	ok := true
	for _, accepted := range h.downstreamAccepted[port] {
		if !msgtype.AnyAccepts(accepted, produced) {
			ok = false
			break
		}
	}
	h.recheckCache[port].Add(key, ok)
	return ok
}
