// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package shutdown implements the engine-wide closing flag, finalizer
// registry and bounded-timeout guardian that coordinate graceful
// termination across every task group's worker goroutine.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/clustercockpit-labs/dcrunner/internal/metrics"
	"github.com/clustercockpit-labs/dcrunner/pkg/dclog"
)

// DefaultTimeout is used for both termination_timeout and
// finalizer_timeout when a configuration does not override them.
const DefaultTimeout = 10 * time.Second

// Finalizer is one registered (task id, cleanup) pair. Fn runs once
// during shutdown; a non-nil error is logged at warn level and does
// not by itself affect the process exit code.
type Finalizer struct {
	TaskID string
	Fn     func() error
}

// Coordinator owns the monotonic closing flag, the finalizer registry
// and the guardian goroutines that bound how long shutdown may take.
type Coordinator struct {
	closing             chan struct{}
	closeOnce           sync.Once
	finalizersRunOnce   sync.Once
	mu                  sync.Mutex
	finalizers          []Finalizer
	termination         time.Duration
	finalizer           time.Duration
}

// New returns a Coordinator with the given timeouts. A zero duration
// is replaced by DefaultTimeout.
func New(terminationTimeout, finalizerTimeout time.Duration) *Coordinator {
	if terminationTimeout <= 0 {
		terminationTimeout = DefaultTimeout
	}
	if finalizerTimeout <= 0 {
		finalizerTimeout = DefaultTimeout
	}
	return &Coordinator{
		closing:     make(chan struct{}),
		termination: terminationTimeout,
		finalizer:   finalizerTimeout,
	}
}

// Done returns a channel closed once Close has been called, suitable
// for use as a cancellation signal in a select alongside channel recv.
func (c *Coordinator) Done() <-chan struct{} { return c.closing }

// Closing reports whether Close has been called.
func (c *Coordinator) Closing() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

// Close sets the monotonic flag on its first call and starts the
// termination guardian. Later calls are no-ops.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		close(c.closing)
		go c.terminationGuardian()
	})
}

// RegisterFinalizer adds a (task id, cleanup) pair, called once during
// shutdown. Safe to call concurrently from every task group's startup.
func (c *Coordinator) RegisterFinalizer(f Finalizer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finalizers = append(c.finalizers, f)
}

// terminationGuardian sleeps termination_timeout after Close, then
// forces the finalizer run if normal drain has not already triggered
// it.
func (c *Coordinator) terminationGuardian() {
	time.Sleep(c.termination)
	dclog.Warnf("shutdown: termination timeout elapsed, forcing finalizer run")
	c.RunFinalizers()
}

// RunFinalizers invokes every registered finalizer exactly once,
// guarded by finalizer_timeout. Called either by the main goroutine
// after every worker has joined (normal drain) or by the termination
// guardian if drain does not finish in time. A second, internal
// guardian calls os.Exit(1) if the finalizers themselves do not
// complete within the timeout.
func (c *Coordinator) RunFinalizers() {
	c.finalizersRunOnce.Do(func() {
		done := make(chan struct{})
		go func() {
			defer close(done)
			c.mu.Lock()
			finalizers := append([]Finalizer(nil), c.finalizers...)
			c.mu.Unlock()
			for _, f := range finalizers {
				if err := f.Fn(); err != nil {
					dclog.Warnf("shutdown: finalizer for task %s returned an error: %v", f.TaskID, err)
				}
			}
		}()

		select {
		case <-done:
		case <-time.After(c.finalizer):
			dclog.Errorf("shutdown: finalizer timeout exceeded, forcing exit")
			c.mu.Lock()
			for _, f := range c.finalizers {
				metrics.FinalizerTimeouts.WithLabelValues(f.TaskID).Inc()
			}
			c.mu.Unlock()
			os.Exit(1)
		}
	})
}

// InstallSignalHandler spawns a goroutine that calls Close once on
// SIGINT or SIGTERM.
func (c *Coordinator) InstallSignalHandler() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		dclog.Info("shutdown: signal received, closing")
		c.Close()
	}()
}
