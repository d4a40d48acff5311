/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metrics exports request-cycle outcomes, fleet totals and store
// telemetry as Prometheus metrics, and keeps a short in-memory cycle history.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mfreeman451/nodeverify/pkg/models"
)

const metricsNamespace = "nodeverify"

// Manager records cycle outcomes. It satisfies verifier.Recorder.
type Manager struct {
	config   models.MetricsConfig
	registry *prometheus.Registry
	history  CycleStore

	cyclesTotal    *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	totals         *prometheus.GaugeVec
	baselineRows   prometheus.Gauge
	baselineTime   prometheus.Gauge
	storeCounters  *prometheus.GaugeVec
	statsAvailable prometheus.Gauge
}

// NewManager registers all collectors on a private registry.
func NewManager(cfg models.MetricsConfig) *Manager {
	if cfg.Retention <= 0 {
		cfg.Retention = models.DefaultCycleRetention
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)

	return &Manager{
		config:   cfg,
		registry: reg,
		history:  NewBuffer(cfg.Retention),
		cyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cycles_total",
			Help:      "Request cycles by outcome class (ok on success).",
		}, []string{"class"}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one request cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		totals: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "fleet_nodes",
			Help:      "Fleet totals from the last refresh by kind (total, fsue_ok, ufa_ok, ufh_ok).",
		}, []string{"kind"}),
		baselineRows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "baseline_rows",
			Help:      "Nodes in the last captured baseline.",
		}),
		baselineTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "baseline_captured_timestamp_seconds",
			Help:      "Unix time of the last baseline capture.",
		}),
		storeCounters: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "store",
			Name:      "counter",
			Help:      "Store connection counters from the last telemetry snapshot.",
		}, []string{"name"}),
		statsAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "store",
			Name:      "stats_available",
			Help:      "1 when the last telemetry snapshot succeeded.",
		}),
	}
}

// ObserveCycle counts a finished cycle. An empty class means success.
func (m *Manager) ObserveCycle(class string, elapsed time.Duration) {
	if !m.config.Enabled {
		return
	}

	label := class
	if label == "" {
		label = "ok"
	}

	m.cyclesTotal.WithLabelValues(label).Inc()
	m.cycleDuration.Observe(elapsed.Seconds())

	m.history.Add(models.CyclePoint{
		Timestamp: time.Now(),
		Elapsed:   elapsed,
		Class:     class,
	})
}

// ObserveTotals publishes the totals a refresh produced. In fsue mode only the
// total and FSUE gauges move.
func (m *Manager) ObserveTotals(totals models.Totals, mode models.RefreshMode) {
	if !m.config.Enabled {
		return
	}

	m.totals.WithLabelValues("total").Set(float64(totals.TotalNodos))
	m.totals.WithLabelValues("fsue_ok").Set(float64(totals.TotalFSUEOK))

	if mode == models.RefreshFSUE {
		return
	}

	m.totals.WithLabelValues("ufa_ok").Set(float64(totals.TotalUFAOK))
	m.totals.WithLabelValues("ufh_ok").Set(float64(totals.TotalUFHOK))
}

// ObserveStats publishes the counters present in stats. A nil snapshot marks
// telemetry unavailable.
func (m *Manager) ObserveStats(stats *models.StoreStats) {
	if !m.config.Enabled {
		return
	}

	if stats == nil {
		m.statsAvailable.Set(0)
		return
	}

	m.statsAvailable.Set(1)

	for name, v := range map[string]*int64{
		"threads_connected": stats.ConnectedThreads,
		"threads_running":   stats.RunningThreads,
		"threads_created":   stats.CreatedThreads,
		"threads_cached":    stats.CachedThreads,
		"connections":       stats.Connections,
		"aborted_connects":  stats.AbortedConnects,
	} {
		if v == nil {
			m.storeCounters.DeleteLabelValues(name)
			continue
		}

		m.storeCounters.WithLabelValues(name).Set(float64(*v))
	}
}

// ObserveCapture publishes the size and time of a new baseline generation.
func (m *Manager) ObserveCapture(result *models.CaptureResult) {
	if !m.config.Enabled || result == nil {
		return
	}

	m.baselineRows.Set(float64(result.Rows))
	m.baselineTime.Set(float64(result.CapturedAt.Unix()))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// History returns recent cycles, newest first.
func (m *Manager) History() []models.CyclePoint {
	return m.history.GetPoints()
}
