// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package shutdown

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseIsIdempotent(t *testing.T) {
	c := New(time.Hour, time.Hour)
	assert.False(t, c.Closing())
	c.Close()
	c.Close()
	assert.True(t, c.Closing())
}

func TestRunFinalizersRunsEachOnce(t *testing.T) {
	c := New(time.Hour, time.Hour)
	var calls atomic.Int32
	c.RegisterFinalizer(Finalizer{TaskID: "a", Fn: func() error { calls.Add(1); return nil }})
	c.RegisterFinalizer(Finalizer{TaskID: "b", Fn: func() error { calls.Add(1); return nil }})

	c.RunFinalizers()
	c.RunFinalizers()
	assert.EqualValues(t, 2, calls.Load())
}

func TestRunFinalizersToleratesErrors(t *testing.T) {
	c := New(time.Hour, time.Hour)
	ran := false
	c.RegisterFinalizer(Finalizer{TaskID: "a", Fn: func() error { return errors.New("boom") }})
	c.RegisterFinalizer(Finalizer{TaskID: "b", Fn: func() error { ran = true; return nil }})

	c.RunFinalizers()
	assert.True(t, ran, "a later finalizer must still run after an earlier one errors")
}

func TestTerminationGuardianForcesFinalizers(t *testing.T) {
	c := New(20*time.Millisecond, time.Second)
	done := make(chan struct{})
	c.RegisterFinalizer(Finalizer{TaskID: "a", Fn: func() error { close(done); return nil }})

	c.Close()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("termination guardian did not force finalizers in time")
	}
}

func TestDoneChannelClosesOnClose(t *testing.T) {
	c := New(time.Hour, time.Hour)
	select {
	case <-c.Done():
		t.Fatal("Done channel should not be closed before Close")
	default:
	}
	c.Close()
	select {
	case <-c.Done():
	default:
		t.Fatal("Done channel should be closed after Close")
	}
}

func TestRunFinalizersNormalDrainBeforeGuardian(t *testing.T) {
	c := New(time.Hour, time.Hour)
	var calls atomic.Int32
	c.RegisterFinalizer(Finalizer{TaskID: "a", Fn: func() error { calls.Add(1); return nil }})
	c.RunFinalizers()
	require.EqualValues(t, 1, calls.Load())
}
