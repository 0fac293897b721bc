// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package message implements the reference-counted, immutable byte
// payload that flows between tasks, together with its inline fixed-slot
// metadata array.
//
// Layout (of the shared buf field below): an 8-byte little-endian
// payload length, the payload bytes, then a contiguous array of
// fixed-size metadata slots. Mutation is copy-on-write: a slot is
// written in place only when the caller holds the sole reference and an
// empty or matching-id slot already exists; otherwise a new, one-slot-
// larger buffer is allocated.
package message

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

// SlotSize is the on-wire size of one metadata slot: a 4-byte id, a
// 1-byte kind tag and an 8-byte value union.
const SlotSize = 4 + 1 + 8

const lengthHeaderSize = 8

// MetadataKind tags the 8-byte value union of a metadata slot.
type MetadataKind uint8

const (
	KindEmpty MetadataKind = iota
	KindInt
	KindFloat
	KindString8 // up to 8 raw bytes, not NUL-terminated
)

// Metadata is one {id, kind, value} slot. ID 0 is reserved/invalid.
type Metadata struct {
	ID    uint32
	Kind  MetadataKind
	Value [8]byte
}

func (m Metadata) empty() bool { return m.ID == 0 }

// NewIntMetadata builds an integer-valued metadata slot.
func NewIntMetadata(id uint32, v int64) Metadata {
	var val [8]byte
	binary.LittleEndian.PutUint64(val[:], uint64(v))
	return Metadata{ID: id, Kind: KindInt, Value: val}
}

// NewFloatMetadata builds a float-valued metadata slot.
func NewFloatMetadata(id uint32, v float64) Metadata {
	var val [8]byte
	binary.LittleEndian.PutUint64(val[:], math.Float64bits(v))
	return Metadata{ID: id, Kind: KindFloat, Value: val}
}

// AsInt decodes the slot's value as an int64 (valid only for KindInt).
func (m Metadata) AsInt() int64 {
	return int64(binary.LittleEndian.Uint64(m.Value[:]))
}

// AsFloat decodes the slot's value as a float64 (valid only for KindFloat).
func (m Metadata) AsFloat() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(m.Value[:]))
}

// shared is the reference-counted backing store. Every Message clone
// points at the same shared; the count reaches zero exactly once.
type shared struct {
	refs atomic.Int64
	buf  []byte // length header + payload + metadata slots
	nmet int    // number of metadata slots currently present in buf
}

// Message is an immutable, reference-counted byte payload with inline
// metadata. The zero Message is not valid; use Build or a
// MessageBuffer's Take.
type Message struct {
	s *shared
}

func newShared(buf []byte, nmet int) Message {
	s := &shared{buf: buf, nmet: nmet}
	s.refs.Store(1)
	return Message{s: s}
}

// Build assembles a Message directly from a payload and metadata slots,
// used by elements returning an explicit result via
// Pipeline.SetResultMessage rather than writing through a MessageBuffer.
// padding appends that many extra empty slots, mirroring the engine-wide
// metadata-padding setting applied by MessageBuffer.Take.
func Build(payload []byte, metadata []Metadata, padding int) Message {
	total := lengthHeaderSize + len(payload) + (len(metadata)+padding)*SlotSize
	buf := make([]byte, total)
	binary.LittleEndian.PutUint64(buf[:lengthHeaderSize], uint64(len(payload)))
	copy(buf[lengthHeaderSize:], payload)
	off := lengthHeaderSize + len(payload)
	for _, m := range metadata {
		writeSlot(buf[off:off+SlotSize], m)
		off += SlotSize
	}
	// padding slots are already zero (KindEmpty, ID 0) from make().
	return newShared(buf, len(metadata)+padding)
}

func writeSlot(dst []byte, m Metadata) {
	binary.LittleEndian.PutUint32(dst[0:4], m.ID)
	dst[4] = byte(m.Kind)
	copy(dst[5:13], m.Value[:])
}

func readSlot(src []byte) Metadata {
	var m Metadata
	m.ID = binary.LittleEndian.Uint32(src[0:4])
	m.Kind = MetadataKind(src[4])
	copy(m.Value[:], src[5:13])
	return m
}

func (s *shared) payloadLen() int {
	return int(binary.LittleEndian.Uint64(s.buf[:lengthHeaderSize]))
}

func (s *shared) metaOffset(i int) int {
	return lengthHeaderSize + s.payloadLen() + i*SlotSize
}

// AsBytes returns the payload slice. The slice must not be mutated by
// callers; Message is immutable once built.
func (m Message) AsBytes() []byte {
	n := m.s.payloadLen()
	return m.s.buf[lengthHeaderSize : lengthHeaderSize+n]
}

// GetMetadata scans the metadata region and returns the first
// non-empty slot with a matching id, or the zero/empty slot if none is
// found. ID 0 always yields the empty slot.
func (m Message) GetMetadata(id uint32) Metadata {
	if id == 0 {
		return Metadata{}
	}
	s := m.s
	for i := 0; i < s.nmet; i++ {
		off := s.metaOffset(i)
		slot := readSlot(s.buf[off : off+SlotSize])
		if !slot.empty() && slot.ID == id {
			return slot
		}
	}
	return Metadata{}
}

// Metadata returns every non-empty metadata slot, in slot order.
func (m Message) Metadata() []Metadata {
	s := m.s
	out := make([]Metadata, 0, s.nmet)
	for i := 0; i < s.nmet; i++ {
		off := s.metaOffset(i)
		slot := readSlot(s.buf[off : off+SlotSize])
		if !slot.empty() {
			out = append(out, slot)
		}
	}
	return out
}

// SetMetadata mutates in place when this Message is the sole owner of
// its backing buffer and an empty-or-same-id slot exists; otherwise it
// allocates a new buffer extended by one slot and returns a fresh
// Message, leaving the receiver untouched (copy-on-write).
func (m Message) SetMetadata(md Metadata) Message {
	s := m.s
	if s.refs.Load() == 1 {
		for i := 0; i < s.nmet; i++ {
			off := s.metaOffset(i)
			slot := readSlot(s.buf[off : off+SlotSize])
			if slot.empty() || slot.ID == md.ID {
				writeSlot(s.buf[off:off+SlotSize], md)
				return m
			}
		}
	}

	payload := m.AsBytes()
	metas := m.Metadata()
	replaced := false
	for i, existing := range metas {
		if existing.ID == md.ID {
			metas[i] = md
			replaced = true
			break
		}
	}
	if !replaced {
		metas = append(metas, md)
	}
	return Build(payload, metas, 0)
}

// Clone increments the reference count and returns a Message sharing
// the same backing buffer.
func (m Message) Clone() Message {
	m.s.refs.Add(1)
	return m
}

// Drop decrements the reference count. The backing buffer is freed
// (left for the GC) once the count reaches zero. Dropping more times
// than the message was built and cloned drives the count below zero
// and panics; an extra Drop of one clone while other references are
// still live is not detected.
func (m Message) Drop() {
	n := m.s.refs.Add(-1)
	if n < 0 {
		panic("message: Drop called more times than Clone")
	}
}

// RefCount reports the current reference count, primarily for tests
// and the copy-on-write decision in SetMetadata.
func (m Message) RefCount() int64 { return m.s.refs.Load() }

// Len returns the payload length in bytes.
func (m Message) Len() int { return m.s.payloadLen() }
