// Package metrics exposes Prometheus instrumentation for the vault server.
package metrics

import (
	"net/http"
	"sync"

	"github.com/atinyakov/easyvault/internal/sealed"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK      = "ok"
	ResultDenied  = "denied"
	ResultInvalid = "invalid"
	ResultError   = "error"
	ResultEmpty   = "empty"
)

var (
	entryReads    *prometheus.CounterVec
	batchReads    *prometheus.CounterVec
	batchWrites   *prometheus.CounterVec
	sealedGauge   prometheus.Gauge
	cachedEntries prometheus.Gauge
	transitions   *prometheus.CounterVec

	metricsOnce sync.Once
)

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	metricsOnce.Do(func() {
		entryReads = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "easyvault_entry_reads_total",
				Help: "Single-entry reads by result",
			},
			[]string{"result"},
		)
		batchReads = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "easyvault_batch_reads_total",
				Help: "Batch reads by result",
			},
			[]string{"result"},
		)
		batchWrites = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "easyvault_batch_writes_total",
				Help: "Batch writes by result",
			},
			[]string{"result"},
		)
		sealedGauge = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "easyvault_sealed",
			Help: "1 while the vault cache is sealed, 0 once unsealed",
		})
		cachedEntries = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "easyvault_cached_entries",
			Help: "Number of decrypted entries held in memory",
		})
		transitions = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "easyvault_seal_transitions_total",
				Help: "Seal state changes by the state entered",
			},
			[]string{"to"},
		)
		sealedGauge.Set(1)
	})
}

// EntryRead counts a single-entry read.
func EntryRead(result string) {
	Init()
	entryReads.WithLabelValues(result).Inc()
}

// BatchRead counts a batch read.
func BatchRead(result string) {
	Init()
	batchReads.WithLabelValues(result).Inc()
}

// BatchWrite counts a batch write.
func BatchWrite(result string) {
	Init()
	batchWrites.WithLabelValues(result).Inc()
}

// ObserveTransition is a sealed.Listener that counts state changes and
// mirrors the current state into gauges.
func ObserveTransition(t sealed.Transition) {
	Init()
	transitions.WithLabelValues(t.To.String()).Inc()
	if t.To == sealed.Sealed {
		sealedGauge.Set(1)
	} else {
		sealedGauge.Set(0)
	}
	cachedEntries.Set(float64(t.Entries))
}

// SetCachedEntries records the current cache size.
func SetCachedEntries(n int) {
	Init()
	cachedEntries.Set(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}
