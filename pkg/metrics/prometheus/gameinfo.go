// Package prometheus provides Prometheus-backed implementations of the
// metrics interfaces consumed by the domain packages.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gameshelf/gameshelf/pkg/gameinfo"
	"github.com/gameshelf/gameshelf/pkg/metrics"
)

// gameInfoMetrics is the Prometheus implementation of gameinfo.Metrics.
type gameInfoMetrics struct {
	lookups       *prometheus.CounterVec
	escalations   prometheus.Counter
	loads         *prometheus.CounterVec
	loadDuration  *prometheus.HistogramVec
	decodes       *prometheus.CounterVec
	decodeTime    *prometheus.HistogramVec
	staleWrites   prometheus.Counter
	residentCount prometheus.Gauge
}

// NewGameInfoMetrics creates a new Prometheus-backed gameinfo.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewGameInfoMetrics() gameinfo.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &gameInfoMetrics{
		lookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gameshelf_cache_lookups_total",
				Help: "Total number of cache lookups by result",
			},
			[]string{"result"}, // "hit", "miss"
		),
		escalations: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "gameshelf_cache_escalations_total",
				Help: "Total number of records re-queued to also fetch background artwork",
			},
		),
		loads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gameshelf_loads_total",
				Help: "Total number of background load jobs by image kind and outcome",
			},
			[]string{"kind", "outcome"}, // outcome: "ok", "aborted"
		),
		loadDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "gameshelf_load_duration_milliseconds",
				Help: "Duration of background load jobs in milliseconds",
				Buckets: []float64{
					1,    // 1ms - bundle header reads
					5,    // 5ms
					10,   // 10ms
					50,   // 50ms
					100,  // 100ms - compressed volume walks
					500,  // 500ms
					1000, // 1s
					5000, // 5s - cold spinning disk
				},
			},
			[]string{"kind"},
		),
		decodes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gameshelf_decodes_total",
				Help: "Total number of artwork decodes by slot and outcome",
			},
			[]string{"slot", "outcome"}, // outcome: "ok", "failed"
		),
		decodeTime: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "gameshelf_decode_duration_milliseconds",
				Help: "Duration of artwork decodes in milliseconds",
				Buckets: []float64{
					0.5, // 500us - small icons
					1,   // 1ms
					5,   // 5ms
					10,  // 10ms
					50,  // 50ms - full-screen backgrounds
					100, // 100ms
					500, // 500ms
				},
			},
			[]string{"slot"},
		),
		staleWrites: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "gameshelf_stale_writes_discarded_total",
				Help: "Total number of loader results discarded because the record was superseded",
			},
		),
		residentCount: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "gameshelf_resident_records",
				Help: "Current number of records resident in the cache",
			},
		),
	}
}

func (m *gameInfoMetrics) ObserveLookup(hit bool) {
	if m == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.WithLabelValues(result).Inc()
}

func (m *gameInfoMetrics) ObserveEscalation() {
	if m == nil {
		return
	}
	m.escalations.Inc()
}

func (m *gameInfoMetrics) ObserveLoad(kind gameinfo.Kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}

	m.loads.WithLabelValues(kind.String(), outcome).Inc()
	m.loadDuration.WithLabelValues(kind.String()).Observe(duration.Seconds() * 1000)
}

func (m *gameInfoMetrics) ObserveDecode(slot gameinfo.SlotID, outcome string, duration time.Duration) {
	if m == nil {
		return
	}

	m.decodes.WithLabelValues(slot.String(), outcome).Inc()
	m.decodeTime.WithLabelValues(slot.String()).Observe(duration.Seconds() * 1000)
}

func (m *gameInfoMetrics) ObserveStaleWrite() {
	if m == nil {
		return
	}
	m.staleWrites.Inc()
}

func (m *gameInfoMetrics) RecordCount(count int) {
	if m == nil {
		return
	}
	m.residentCount.Set(float64(count))
}
