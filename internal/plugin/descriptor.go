// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package plugin implements the element registry and the stable
// boundary through which a plugin contributes elements: either a
// shared library exporting PluginInit, or a function registered
// directly by code linked into this process.
package plugin

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/clustercockpit-labs/dcrunner/internal/message"
	"github.com/clustercockpit-labs/dcrunner/internal/msgtype"
)

// Instance is the opaque handle an element's New returns and every
// other callback receives back. It is never interpreted by the
// runtime, only threaded through.
type Instance any

// Pipeline and Receiver are satisfied by internal/pipeline.Handle and
// internal/receiver.Handle respectively. The method sets below are
// only what an element actually calls, so the descriptor package
// stays free of an import cycle with pipeline and receiver, both of
// which depend on plugin for StepResult.
type Pipeline interface {
	MsgBuf(port int) MessageBuffer
	MetadataID(name string) uint32
	Closing() bool
	RequestClose()
	SetErrMessage(msg string)
	SetResultMessage(port int, msg message.Message)
	RecheckType(port int, produced msgtype.Type) bool
}

// MessageBuffer is the subset of msgbuf.Buffer an element needs
// through the Pipeline interface.
type MessageBuffer interface {
	Write(p []byte) (int, error)
	SetMetadata(m message.Metadata)
}

// Receiver is the subset of receiver.Handle an element's Next callback
// uses to pull its input. ErrClosed, returned by either method,
// signals upstream completion rather than a failure.
type Receiver interface {
	Recv(port int) (message.Message, error)
	RecvAny() (port int, msg message.Message, err error)
}

// ErrClosed is the sentinel a Receiver returns once its upstream has
// finished sending and drained; an element's Next should treat it the
// same as a deliberate StepClose.
var ErrClosed = errors.New("plugin: receiver closed")

// StepKind tags a step's outcome.
type StepKind int

const (
	StepMsg StepKind = iota
	StepMsgBuf
	StepClose
	StepErr
)

// StepResult is returned by an element's Next callback.
type StepResult struct {
	Kind StepKind
	Port int             // valid for StepMsg
	Msg  message.Message // valid for StepMsg
	Err  error           // valid for StepErr
}

// Finalizer is returned optionally by an element's FinalizerBuilder; Fn
// is invoked once during shutdown with Ctx as its argument.
type Finalizer struct {
	Fn  func(ctx Instance) error
	Ctx Instance
}

// Callbacks is the four-pointer vtable every element descriptor
// carries: construct, step, finalizer builder, destroy.
type Callbacks struct {
	New             func(configText string) (Instance, error)
	Next            func(inst Instance, p Pipeline, r Receiver) StepResult
	Free            func(inst Instance)
	FinalizerBuilder func(inst Instance) (Finalizer, bool)
}

// Descriptor is the static metadata an element registers: port
// counts, per-port accepted/produced message types, declared metadata
// names and the callback vtable.
type Descriptor struct {
	Name          string
	Description   string
	ConfigDoc     string
	RecvPorts     int
	SendPorts     int
	AcceptedTypes [][]msgtype.Type // indexed by recv port
	ProducedTypes []msgtype.Type   // indexed by send port
	MetadataNames []string
	Callbacks     Callbacks
}

// Validate checks structural invariants a plugin author is expected to
// satisfy: port-indexed slices sized to the declared port counts, every
// string NUL-free valid UTF-8, and the four callbacks all non-nil save
// FinalizerBuilder which is optional.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("plugin: descriptor has empty name")
	}
	if !utf8.ValidString(d.Name) || !utf8.ValidString(d.Description) || !utf8.ValidString(d.ConfigDoc) {
		return fmt.Errorf("%w: %s has non-UTF-8 text", ErrDescriptorInvalid, d.Name)
	}
	if strings.ContainsRune(d.Name, 0) || strings.ContainsRune(d.Description, 0) || strings.ContainsRune(d.ConfigDoc, 0) {
		return fmt.Errorf("%w: %q has text containing NUL", ErrDescriptorInvalid, d.Name)
	}
	if len(d.AcceptedTypes) != d.RecvPorts {
		return fmt.Errorf("%w: %s declares %d recv ports but %d accepted-type entries",
			ErrDescriptorInvalid, d.Name, d.RecvPorts, len(d.AcceptedTypes))
	}
	if len(d.ProducedTypes) != d.SendPorts {
		return fmt.Errorf("%w: %s declares %d send ports but %d produced-type entries",
			ErrDescriptorInvalid, d.Name, d.SendPorts, len(d.ProducedTypes))
	}
	for i, accepted := range d.AcceptedTypes {
		if len(accepted) == 0 {
			return fmt.Errorf("%w: %s recv port %d accepts no types", ErrDescriptorInvalid, d.Name, i)
		}
	}
	if d.Callbacks.New == nil || d.Callbacks.Next == nil || d.Callbacks.Free == nil {
		return fmt.Errorf("%w: %s is missing a required callback", ErrDescriptorInvalid, d.Name)
	}
	for _, name := range d.MetadataNames {
		if !utf8.ValidString(name) {
			return fmt.Errorf("%w: %s declares a non-UTF-8 metadata name", ErrDescriptorInvalid, d.Name)
		}
		if strings.ContainsRune(name, 0) {
			return fmt.Errorf("%w: %s declares a metadata name containing NUL", ErrDescriptorInvalid, d.Name)
		}
	}
	return nil
}
