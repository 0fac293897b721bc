// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics declares the Prometheus collectors the taskgroup
// executor updates as it runs and the admin API exposes at /metrics.
// Kept dependency-free of net/http so the executor does not need to
// import the admin surface just to report its own state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChannelDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dcrunner",
		Name:      "channel_depth",
		Help:      "Number of messages currently buffered on a wired channel endpoint.",
	}, []string{"task_id", "port"})

	MessagesForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dcrunner",
		Name:      "messages_forwarded_total",
		Help:      "Messages a root task group has sent downstream.",
	}, []string{"task_id", "port"})

	GroupState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dcrunner",
		Name:      "group_state",
		Help:      "Task group lifecycle state: 0=planned, 1=running, 2=drained.",
	}, []string{"group_id"})

	FinalizerTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dcrunner",
		Name:      "finalizer_timeouts_total",
		Help:      "Finalizer runs that hit the finalizer timeout and forced an exit.",
	}, []string{"task_id"})
)

const (
	GroupStatePlanned = 0
	GroupStateRunning = 1
	GroupStateDrained = 2
)
