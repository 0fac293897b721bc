// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package msgbuf implements the write-only staging area an element
// fills per send port; Take seals its contents into a message.Message
// and resets the buffer for reuse. A Buffer belongs to exactly one
// Pipeline in one thread and is never shared.
package msgbuf

import "github.com/clustercockpit-labs/dcrunner/internal/message"

// Buffer is the mutable scratch structure elements write into.
type Buffer struct {
	data     []byte
	pending  []message.Metadata
	touched  bool
	padding  int // engine-wide metadata-padding setting
}

// New returns an empty Buffer. padding is the engine-wide
// metadata-padding setting: that many empty slots are appended on
// every Take so later in-place SetMetadata calls on the resulting
// Message can avoid a reallocation.
func New(padding int) *Buffer {
	return &Buffer{padding: padding}
}

// Write appends bytes to the pending payload and marks the buffer
// touched.
func (b *Buffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	b.touched = true
	return len(p), nil
}

// SetMetadata queues a metadata slot to be written on the next Take.
func (b *Buffer) SetMetadata(m message.Metadata) {
	b.pending = append(b.pending, m)
	b.touched = true
}

// Touched reports whether Write or SetMetadata has been called since
// the buffer was created or last reset by Take — the executor's
// per-port "touched" flag that decides which buffers get sealed into a
// message after a step returns a MsgBuf result.
func (b *Buffer) Touched() bool { return b.touched }

// Take seals the buffer's current contents into a Message, then clears
// the buffer (payload emptied, pending metadata emptied, touched
// cleared) so it can be reused by the next step.
func (b *Buffer) Take() message.Message {
	m := message.Build(b.data, b.pending, b.padding)
	b.data = nil
	b.pending = nil
	b.touched = false
	return m
}

// Reset discards any written-but-untaken content without producing a
// Message. The executor does not call it; untaken content stays in the
// buffer until the next Take.
func (b *Buffer) Reset() {
	b.data = nil
	b.pending = nil
	b.touched = false
}
