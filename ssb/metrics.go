/*
 * Copyright (C) 2026 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package ssb

import (
	"github.com/nuts-foundation/ssb-cooler/core"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsSubsystem = "ssb"

const (
	outcomeSuccess        = "success"
	outcomeFailure        = "failure"
	outcomeAlreadyRunning = "already_running"
)

var probeAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: core.MetricsNamespace,
	Subsystem: metricsSubsystem,
	Name:      "probe_attempts_total",
	Help:      "Number of attempts to connect to a Scuttlebutt server, by outcome.",
}, []string{"outcome"})

var bootstrapAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: core.MetricsNamespace,
	Subsystem: metricsSubsystem,
	Name:      "bootstrap_attempts_total",
	Help:      "Number of attempts to start a local Scuttlebutt server, by outcome.",
}, []string{"outcome"})

var supervisionCycles = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: core.MetricsNamespace,
	Subsystem: metricsSubsystem,
	Name:      "supervision_cycles_total",
	Help:      "Number of connection supervision cycles started.",
})

var connectedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: core.MetricsNamespace,
	Subsystem: metricsSubsystem,
	Name:      "connected",
	Help:      "1 when a live connection to a Scuttlebutt server is cached, 0 otherwise.",
})

func registerMetrics() error {
	return core.RegisterCollectors(probeAttempts, bootstrapAttempts, supervisionCycles, connectedGauge)
}
