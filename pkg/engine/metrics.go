// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// runsStarted counts runs accepted for execution
	runsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "graphexec_runs_started_total",
			Help: "Total runs started",
		},
	)

	// runsCompleted counts terminal runs by status
	runsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphexec_runs_completed_total",
			Help: "Total runs reaching a terminal status, by status",
		},
		[]string{"status"},
	)

	// activeRuns tracks runs currently executing
	activeRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphexec_active_runs",
			Help: "Number of runs currently executing",
		},
	)

	// nodeExecutions counts node dispatches by node type
	nodeExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphexec_node_executions_total",
			Help: "Total node dispatches by node type",
		},
		[]string{"type"},
	)

	// droppedEvents counts events dropped because a subscriber was full
	droppedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "graphexec_events_dropped_total",
			Help: "Total events dropped due to full subscriber channels",
		},
	)

	// runDuration observes wall-clock run duration
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphexec_run_duration_seconds",
			Help:    "Run duration from start to terminal status",
			Buckets: prometheus.DefBuckets,
		},
	)
)
