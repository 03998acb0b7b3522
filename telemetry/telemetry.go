/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

/*

Package telemetry wires the ambient observability stack:
structured per-request logs (zerolog), Prometheus counters/histograms,
and an optional OTLP trace exporter, built from the libraries a Go
service typically reaches for these concerns.

*/
package telemetry

import "os"
import "time"

import "github.com/prometheus/client_golang/prometheus"
import "github.com/prometheus/client_golang/prometheus/promauto"
import "github.com/rs/zerolog"

// Metrics holds every counter/histogram/gauge hematite exports.
type Metrics struct {
	AppendsTotal   *prometheus.CounterVec
	ReadsTotal     *prometheus.CounterVec
	OpenStreams    prometheus.Gauge
	Evictions      prometheus.Counter
	FsyncDuration  prometheus.Histogram
	RequestLatency *prometheus.HistogramVec
}

// NewMetrics registers every metric against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AppendsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hematite",
			Name:      "appends_total",
			Help:      "Total append operations, labeled by outcome.",
		}, []string{"outcome"}),
		ReadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hematite",
			Name:      "reads_total",
			Help:      "Total read operations, labeled by outcome.",
		}, []string{"outcome"}),
		OpenStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "hematite",
			Name:      "open_streams",
			Help:      "Number of stream log handles currently cached by the manager.",
		}),
		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "hematite",
			Name:      "evictions_total",
			Help:      "Total stream handle evictions from the manager's LRU cache.",
		}),
		FsyncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hematite",
			Name:      "fsync_duration_seconds",
			Help:      "Duration of the fsync call issued by each successful append.",
			Buckets:   prometheus.DefBuckets,
		}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hematite",
			Name:      "request_duration_seconds",
			Help:      "Per-endpoint HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "status"}),
	}
}

// NewLogger builds the process-wide structured logger. level is parsed
// with zerolog's own level names ("debug", "info", "warn", "error");
// an unrecognized level falls back to info.
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

// RequestLog is the structured fields logged once per request:
// method, path, stream, revision, outcome, latency.
type RequestLog struct {
	Method   string
	Path     string
	Stream   string
	Revision *uint64
	Outcome  string
	Latency  time.Duration
	Status   int
}

// Log emits one structured line for a completed request.
func Log(logger zerolog.Logger, rl RequestLog) {
	ev := logger.Info()
	if rl.Status >= 400 {
		ev = logger.Warn()
	}
	ev = ev.Str("method", rl.Method).
		Str("path", rl.Path).
		Str("stream", rl.Stream).
		Str("outcome", rl.Outcome).
		Int("status", rl.Status).
		Dur("latency", rl.Latency)
	if rl.Revision != nil {
		ev = ev.Uint64("revision", *rl.Revision)
	}
	ev.Msg("request")
}
