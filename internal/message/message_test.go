// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		meta    []Metadata
	}{
		{"empty", nil, nil},
		{"payload only", []byte("hello"), nil},
		{"payload and metadata", []byte("hi"), []Metadata{NewIntMetadata(1, 42), NewFloatMetadata(2, 3.5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Build(tt.payload, tt.meta, 0)
			if got := m.AsBytes(); string(got) != string(tt.payload) {
				t.Errorf("AsBytes() = %q, want %q", got, tt.payload)
			}
			for _, want := range tt.meta {
				got := m.GetMetadata(want.ID)
				if got != want {
					t.Errorf("GetMetadata(%d) = %+v, want %+v", want.ID, got, want)
				}
			}
			if got := m.GetMetadata(999); got != (Metadata{}) {
				t.Errorf("GetMetadata(unknown) = %+v, want empty", got)
			}
		})
	}
}

func TestSetMetadataCOW(t *testing.T) {
	t.Run("unique owner with padding writes in place", func(t *testing.T) {
		m := Build([]byte("x"), nil, 2)
		before := m.s
		m2 := m.SetMetadata(NewIntMetadata(1, 10))
		assert.Same(t, before, m2.s, "expected in-place write to reuse the backing buffer")
		assert.Equal(t, int64(10), m2.GetMetadata(1).AsInt())
	})

	t.Run("unique owner, same id overwrites in place", func(t *testing.T) {
		m := Build([]byte("x"), []Metadata{NewIntMetadata(1, 10)}, 0)
		before := m.s
		m2 := m.SetMetadata(NewIntMetadata(1, 99))
		assert.Same(t, before, m2.s)
		assert.Equal(t, int64(99), m2.GetMetadata(1).AsInt())
	})

	t.Run("no free slot allocates a new buffer", func(t *testing.T) {
		m := Build([]byte("x"), []Metadata{NewIntMetadata(1, 10)}, 0)
		before := m.s
		m2 := m.SetMetadata(NewIntMetadata(2, 20))
		assert.NotSame(t, before, m2.s, "expected a fresh buffer when no empty/matching slot exists")
		assert.Equal(t, int64(10), m2.GetMetadata(1).AsInt())
		assert.Equal(t, int64(20), m2.GetMetadata(2).AsInt())
	})

	t.Run("shared owner never mutates in place", func(t *testing.T) {
		m := Build([]byte("x"), nil, 2)
		clone := m.Clone()
		require.Equal(t, int64(2), m.RefCount())

		before := m.s
		m2 := m.SetMetadata(NewIntMetadata(1, 10))
		assert.NotSame(t, before, m2.s, "a message with refcount > 1 must copy on write")
		assert.Equal(t, Metadata{}, clone.GetMetadata(1), "the clone must be unaffected")
		clone.Drop()
	})
}

func TestCloneDropIndependence(t *testing.T) {
	m := Build([]byte("payload"), []Metadata{NewIntMetadata(1, 7)}, 0)
	clone := m.Clone()

	require.Equal(t, m.AsBytes(), clone.AsBytes())
	require.Equal(t, m.GetMetadata(1), clone.GetMetadata(1))

	clone.Drop()
	// Original is still readable after the clone is dropped.
	assert.Equal(t, []byte("payload"), m.AsBytes())
	m.Drop()
}
