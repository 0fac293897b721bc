// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package metadata

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternAssignsStableIDs(t *testing.T) {
	r := NewRegistry()
	id1 := r.Intern("timestamp")
	id2 := r.Intern("sequence-number")
	id3 := r.Intern("timestamp")

	assert.NotZero(t, id1)
	assert.NotZero(t, id2)
	assert.Equal(t, id1, id3)
	assert.NotEqual(t, id1, id2)
}

func TestLookupUnknown(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("nope")
	assert.False(t, ok)

	id := r.Intern("known")
	got, ok := r.Lookup("known")
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestNameRoundTrip(t *testing.T) {
	r := NewRegistry()
	id := r.Intern("frame-index")
	assert.Equal(t, "frame-index", r.Name(id))
	assert.Equal(t, "", r.Name(0))
	assert.Equal(t, "", r.Name(999))
}

func TestConcurrentIntern(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	ids := make([]uint32, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = r.Intern("shared-name")
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, r.Len())
}
