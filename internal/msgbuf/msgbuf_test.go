// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package msgbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustercockpit-labs/dcrunner/internal/message"
)

func TestUntouchedByDefault(t *testing.T) {
	b := New(0)
	assert.False(t, b.Touched())
}

func TestWriteMarksTouched(t *testing.T) {
	b := New(0)
	n, err := b.Write([]byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, b.Touched())
}

func TestSetMetadataMarksTouched(t *testing.T) {
	b := New(0)
	b.SetMetadata(message.NewIntMetadata(1, 5))
	assert.True(t, b.Touched())
}

func TestTakeSealsAndResets(t *testing.T) {
	b := New(1)
	b.Write([]byte("payload"))
	b.SetMetadata(message.NewIntMetadata(1, 7))

	m := b.Take()
	assert.Equal(t, []byte("payload"), m.AsBytes())
	assert.Equal(t, int64(7), m.GetMetadata(1).AsInt())

	// one padding slot was requested: a second distinct id can be
	// written in place without reallocating.
	before := m
	m2 := m.SetMetadata(message.NewIntMetadata(2, 9))
	assert.Equal(t, before, m2)
	assert.Equal(t, int64(9), m2.GetMetadata(2).AsInt())

	assert.False(t, b.Touched())
	m.Drop()
}

func TestTakeThenReuse(t *testing.T) {
	b := New(0)
	b.Write([]byte("first"))
	m1 := b.Take()

	b.Write([]byte("second"))
	m2 := b.Take()

	assert.Equal(t, []byte("first"), m1.AsBytes())
	assert.Equal(t, []byte("second"), m2.AsBytes())
	m1.Drop()
	m2.Drop()
}

func TestReset(t *testing.T) {
	b := New(0)
	b.Write([]byte("discard me"))
	b.SetMetadata(message.NewIntMetadata(1, 1))
	b.Reset()
	assert.False(t, b.Touched())

	m := b.Take()
	assert.Empty(t, m.AsBytes())
	m.Drop()
}
